package scanner

import (
	"context"
	"fmt"

	"github.com/zhengda-lu/zerotrace/internal/platform"
)

// TaskScanner matches scheduled tasks by name, or by any candidate key
// appearing inside the task's folder path.
type TaskScanner struct {
	tasks platform.Tasks
}

func NewTaskScanner(tasks platform.Tasks) *TaskScanner {
	return &TaskScanner{tasks: tasks}
}

func (s *TaskScanner) Name() string        { return "Scheduled Tasks" }
func (s *TaskScanner) Description() string { return "Task Scheduler entries created by the app" }

func (s *TaskScanner) Scan(ctx context.Context, req Request) ([]Target, error) {
	tasks, err := s.tasks.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list scheduled tasks: %w", err)
	}
	var targets []Target
	for _, t := range tasks {
		if err := ctx.Err(); err != nil {
			return targets, err
		}
		// Substring on the folder is broad: "\Acme Updates\" matches acme.
		if req.Keys.Matches(t.Name) || req.Keys.ContainedIn(t.Path) {
			targets = append(targets, Target{Kind: ScheduledTask, Value: t.FullPath(), Source: SourceTask, Confidence: Medium})
		}
	}
	return targets, nil
}
