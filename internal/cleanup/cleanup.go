// Package cleanup removes selected residual targets.
package cleanup

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/zhengda-lu/zerotrace/internal/platform"
	"github.com/zhengda-lu/zerotrace/internal/safety"
	"github.com/zhengda-lu/zerotrace/internal/scanner"
	"github.com/zhengda-lu/zerotrace/internal/schedule"
)

// AdminRequiredMessage is returned when cleanup runs without elevation.
const AdminRequiredMessage = "Administrator privileges required. Restart zerotrace from an elevated prompt (Run as administrator)."

// DefaultServiceStopTimeout bounds the wait for a service to stop.
const DefaultServiceStopTimeout = 15 * time.Second

// Counts holds the number of removed targets per kind.
type Counts struct {
	Paths    int `json:"paths"`
	Registry int `json:"registry"`
	Services int `json:"services"`
	Tasks    int `json:"tasks"`
	Firewall int `json:"firewall"`
}

// Total is the number of removed targets across all kinds.
func (c Counts) Total() int {
	return c.Paths + c.Registry + c.Services + c.Tasks + c.Firewall
}

// Failure records one target that could not be removed.
type Failure struct {
	Target scanner.Target `json:"target"`
	Reason string         `json:"reason"`
}

// Result is the single outcome of a cleanup run.
type Result struct {
	// Success is true whenever the elevation precondition held, even if
	// individual items failed.
	Success       bool   `json:"success"`
	AdminRequired bool   `json:"admin_required,omitempty"`
	Cancelled     bool   `json:"cancelled,omitempty"`
	Counts        Counts `json:"counts"`
	// Deferred is the number of locked paths handed to the next-logon script.
	Deferred      int                    `json:"deferred"`
	DeferredPaths []string               `json:"deferred_paths,omitempty"`
	Registration  *schedule.Registration `json:"registration,omitempty"`
	Skipped       int                    `json:"skipped"`
	Errors        int                    `json:"errors"`
	Failures      []Failure              `json:"failures,omitempty"`
	Message       string                 `json:"message"`
}

// Deferrer schedules locked paths for removal at the next logon.
type Deferrer interface {
	Schedule(paths []string) (*schedule.Registration, error)
}

// Options tunes an Executor.
type Options struct {
	ServiceStopTimeout time.Duration
}

// Executor performs the removals. It is stateless between runs.
type Executor struct {
	plat     platform.Platform
	gate     *safety.Gate
	deferrer Deferrer
	opts     Options
	log      logr.Logger
}

func New(p platform.Platform, gate *safety.Gate, deferrer Deferrer, opts Options, log logr.Logger) *Executor {
	if opts.ServiceStopTimeout <= 0 {
		opts.ServiceStopTimeout = DefaultServiceStopTimeout
	}
	return &Executor{plat: p, gate: gate, deferrer: deferrer, opts: opts, log: log.WithName("cleanup")}
}

// Run removes targets one by one and never aborts the batch on an item
// failure. Without elevation it returns AdminRequired and touches nothing.
func (e *Executor) Run(ctx context.Context, targets []scanner.Target) Result {
	if !e.plat.IsElevated() {
		return Result{AdminRequired: true, Message: AdminRequiredMessage}
	}

	res := Result{Success: true}
	var locked []string
	lockedSeen := make(map[string]bool)
	remaining := 0

	for i, t := range targets {
		if ctx.Err() != nil {
			res.Cancelled = true
			remaining = len(targets) - i
			break
		}
		if !t.Exists || (t.Kind == scanner.Path && (t.Blocked || e.gate.Blocked(t.Value))) {
			res.Skipped++
			continue
		}

		switch t.Kind {
		case scanner.Path:
			if err := e.removePath(t.Value); err != nil {
				e.log.V(1).Info("path locked, deferring", "path", t.Value, "error", err.Error())
				if k := strings.ToLower(t.Value); !lockedSeen[k] {
					lockedSeen[k] = true
					locked = append(locked, t.Value)
				}
				continue
			}
			res.Counts.Paths++
		case scanner.RegistryKey:
			e.apply(&res, t, &res.Counts.Registry, e.removeKey(t.Value))
		case scanner.Service:
			if !e.plat.ServiceExists(t.Value) {
				res.Skipped++
				continue
			}
			e.apply(&res, t, &res.Counts.Services, e.removeService(ctx, t.Value))
		case scanner.ScheduledTask:
			if !e.plat.TaskExists(ctx, t.Value) {
				res.Skipped++
				continue
			}
			e.apply(&res, t, &res.Counts.Tasks, e.plat.DeleteTask(ctx, t.Value))
		case scanner.FirewallRule:
			if !e.plat.FirewallRuleExists(ctx, t.Value) {
				res.Skipped++
				continue
			}
			e.apply(&res, t, &res.Counts.Firewall, e.plat.DeleteFirewallRule(ctx, t.Value))
		default:
			res.Skipped++
		}
	}

	var registerErr error
	if len(locked) > 0 {
		res.Deferred = len(locked)
		res.DeferredPaths = locked
		if e.deferrer == nil {
			registerErr = fmt.Errorf("no deferrer configured")
		} else {
			res.Registration, registerErr = e.deferrer.Schedule(locked)
		}
		if registerErr != nil {
			e.log.Error(registerErr, "failed to schedule next-logon deletion", "paths", len(locked))
		}
	}

	res.Message = Summary(res, remaining, registerErr)
	e.log.Info("cleanup finished", "removed", res.Counts.Total(), "deferred", res.Deferred,
		"skipped", res.Skipped, "errors", res.Errors, "cancelled", res.Cancelled)
	return res
}

func (e *Executor) apply(res *Result, t scanner.Target, counter *int, err error) {
	if err != nil {
		e.log.V(1).Info("removal failed", "kind", t.Kind.String(), "value", t.Value, "error", err.Error())
		res.Errors++
		res.Failures = append(res.Failures, Failure{Target: t, Reason: err.Error()})
		return
	}
	*counter++
}

// removePath treats an already-missing path as removed.
func (e *Executor) removePath(path string) error {
	if _, err := os.Lstat(path); os.IsNotExist(err) {
		return nil
	}
	return e.plat.RemovePath(path)
}

func (e *Executor) removeKey(value string) error {
	h, p, ok := platform.ParseKeyPath(value)
	if !ok {
		return fmt.Errorf("not a registry key path: %q", value)
	}
	return e.plat.DeleteKeyTree(h, p)
}

func (e *Executor) removeService(ctx context.Context, name string) error {
	status, err := e.plat.ServiceStatus(name)
	if err != nil {
		return fmt.Errorf("failed to query service: %w", err)
	}
	if status != platform.StatusStopped {
		if err := e.plat.StopService(ctx, name, e.opts.ServiceStopTimeout); err != nil {
			return fmt.Errorf("failed to stop service: %w", err)
		}
	}
	if err := e.plat.DeleteService(name); err != nil {
		return fmt.Errorf("failed to delete service: %w", err)
	}
	return nil
}

// Summary renders the one-line message for a result.
func Summary(res Result, notProcessed int, registerErr error) string {
	if res.AdminRequired {
		return AdminRequiredMessage
	}
	c := res.Counts
	msg := fmt.Sprintf("Paths: %d, Registry: %d, Services: %d, Tasks: %d, Firewall: %d.",
		c.Paths, c.Registry, c.Services, c.Tasks, c.Firewall)
	if res.Deferred > 0 {
		msg += fmt.Sprintf(" %d locked path(s) scheduled for deletion after reboot.", res.Deferred)
		if registerErr != nil {
			msg += " Registering the deletion script failed: " + registerErr.Error() + "."
		}
	}
	if res.Errors > 0 {
		msg += fmt.Sprintf(" %d item(s) could not be removed.", res.Errors)
	}
	if res.Cancelled {
		msg += fmt.Sprintf(" Cleanup cancelled; %d item(s) were not processed.", notProcessed)
	}
	return msg
}
