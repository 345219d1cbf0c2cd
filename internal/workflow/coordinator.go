package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/zhengda-lu/zerotrace/internal/catalog"
	"github.com/zhengda-lu/zerotrace/internal/cleanup"
	"github.com/zhengda-lu/zerotrace/internal/history"
	"github.com/zhengda-lu/zerotrace/internal/scanner"
)

// Scanner finds residual targets for an app.
type Scanner interface {
	Scan(ctx context.Context, app catalog.App, fullCleanup bool) ([]scanner.Target, error)
}

// Resolver annotates scanned targets with existence and safety.
type Resolver interface {
	Resolve(ctx context.Context, targets []scanner.Target) []scanner.Target
}

// Executor removes a selection of targets.
type Executor interface {
	Run(ctx context.Context, targets []scanner.Target) cleanup.Result
}

// Uninstaller runs an app's own uninstaller.
type Uninstaller interface {
	Run(ctx context.Context, app catalog.App) error
}

// Recorder persists finished cleanups.
type Recorder interface {
	Record(e history.Entry) error
}

// Observer is called with the new state after every change. It runs on the
// goroutine that made the change and must not call back into the
// Coordinator.
type Observer func(State)

// Deps are the collaborators of a Coordinator. Uninstaller, Recorder and
// Observer may be nil.
type Deps struct {
	Scanner     Scanner
	Resolver    Resolver
	Executor    Executor
	Uninstaller Uninstaller
	Recorder    Recorder
	Observer    Observer
}

// Coordinator owns one session's State and serializes the long-running
// actions on it.
type Coordinator struct {
	mu    sync.Mutex
	state State
	deps  Deps
	now   func() time.Time
	log   logr.Logger
}

func New(deps Deps, fullCleanup bool, log logr.Logger) *Coordinator {
	return &Coordinator{
		state: Initial(fullCleanup),
		deps:  deps,
		now:   time.Now,
		log:   log.WithName("workflow"),
	}
}

// State returns a snapshot of the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// apply runs a pure transition under the lock and notifies the observer
// when it succeeds.
func (c *Coordinator) apply(fn func(State) (State, error)) (State, error) {
	c.mu.Lock()
	next, err := fn(c.state)
	if err != nil {
		c.mu.Unlock()
		return c.State(), err
	}
	c.state = next
	snap := next.clone()
	c.mu.Unlock()

	c.log.V(1).Info("state changed", "step", snap.Step.String(), "busy", snap.Busy, "status", snap.Status)
	if c.deps.Observer != nil {
		c.deps.Observer(snap)
	}
	return snap, nil
}

// Scan scans and resolves app and leaves the session in Audit.
func (c *Coordinator) Scan(ctx context.Context, app catalog.App, fullCleanup bool) (State, error) {
	if _, err := c.apply(func(s State) (State, error) { return BeginScan(s, app, fullCleanup) }); err != nil {
		return c.State(), err
	}
	return c.scan(ctx, app, fullCleanup)
}

// Uninstall runs the app's uninstaller when it has one and then scans. An
// uninstaller failure returns the session to AppPicker without scanning.
func (c *Coordinator) Uninstall(ctx context.Context, app catalog.App, fullCleanup bool) (State, error) {
	if c.deps.Uninstaller == nil || !app.HasUninstaller() {
		return c.Scan(ctx, app, fullCleanup)
	}
	if _, err := c.apply(func(s State) (State, error) { return BeginUninstall(s, app, fullCleanup) }); err != nil {
		return c.State(), err
	}

	runErr := c.deps.Uninstaller.Run(ctx, app)
	if runErr != nil {
		c.log.Info("uninstaller did not succeed", "app", app.DisplayName, "error", runErr.Error())
	}
	st, err := c.apply(func(s State) (State, error) { return UninstallFinished(s, runErr) })
	if err != nil || st.Step != Scanning {
		return st, err
	}
	return c.scan(ctx, app, fullCleanup)
}

func (c *Coordinator) scan(ctx context.Context, app catalog.App, fullCleanup bool) (State, error) {
	targets, scanErr := c.deps.Scanner.Scan(ctx, app, fullCleanup)
	if scanErr != nil {
		c.log.Error(scanErr, "scan failed", "app", app.DisplayName)
	}
	if c.deps.Resolver != nil {
		targets = c.deps.Resolver.Resolve(ctx, targets)
	}
	return c.apply(func(s State) (State, error) { return ScanFinished(s, targets, scanErr) })
}

// Cleanup removes the selected items and returns the session to AppPicker.
// An empty selection returns to AppPicker without calling the executor.
func (c *Coordinator) Cleanup(ctx context.Context) (State, error) {
	var targets []scanner.Target
	var app *catalog.App
	st, err := c.apply(func(s State) (State, error) {
		n, sel, err := BeginCleanup(s)
		targets, app = sel, s.App
		return n, err
	})
	if err != nil || len(targets) == 0 {
		return st, err
	}

	res := c.deps.Executor.Run(ctx, targets)
	if c.deps.Recorder != nil && app != nil && res.Success {
		if err := c.deps.Recorder.Record(history.FromResult(*app, res, c.now())); err != nil {
			c.log.Error(err, "failed to record history")
		}
	}
	return c.apply(func(s State) (State, error) { return CleanupFinished(s, res) })
}

// FinishScanOnly ends the session after review without changes.
func (c *Coordinator) FinishScanOnly() (State, error) {
	return c.apply(FinishScanOnly)
}

// Toggle flips the inclusion of item i.
func (c *Coordinator) Toggle(i int) (State, error) {
	return c.apply(func(s State) (State, error) { return Toggle(s, i) })
}

// SetAll includes or excludes every item.
func (c *Coordinator) SetAll(included bool) (State, error) {
	return c.apply(func(s State) (State, error) { return SetAll(s, included) })
}

// Reset returns an idle session to AppPicker.
func (c *Coordinator) Reset() (State, error) {
	return c.apply(Reset)
}
