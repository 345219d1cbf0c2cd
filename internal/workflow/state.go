// Package workflow drives one residual cleanup session: pick an app,
// optionally uninstall it, scan, review the findings, then clean up.
package workflow

import (
	"errors"
	"fmt"

	"github.com/zhengda-lu/zerotrace/internal/catalog"
	"github.com/zhengda-lu/zerotrace/internal/cleanup"
	"github.com/zhengda-lu/zerotrace/internal/scanner"
)

// Step is the position of a session in the workflow.
type Step int

const (
	AppPicker Step = iota
	Uninstalling
	Scanning
	Audit
	Done
)

func (s Step) String() string {
	switch s {
	case AppPicker:
		return "AppPicker"
	case Uninstalling:
		return "Uninstalling"
	case Scanning:
		return "Scanning"
	case Audit:
		return "Audit"
	case Done:
		return "Done"
	default:
		return fmt.Sprintf("Step(%d)", int(s))
	}
}

// Status messages shown to the user.
const (
	StatusScanning        = "Scanning for residuals..."
	StatusUninstalling    = "Running uninstaller for %s..."
	StatusUninstallDone   = "Uninstaller finished. Scanning for leftover files and registry entries..."
	StatusUninstallFailed = "Uninstall failed: %s."
	StatusFound           = "%d item(s) found (files, registry, services, tasks). Select which to delete, then click Delete."
	StatusScanFailed      = "Error: %s"
	StatusRemoving        = "Removing selected targets..."
	StatusNothingSelected = "No targets selected. Returned to app list."
	StatusScanOnly        = "Scan complete. No changes were made (scan-only mode)."
)

var (
	// ErrBusy is returned when a scan or cleanup is already in flight.
	ErrBusy = errors.New("another operation is in progress")
	// ErrInvalidTransition is returned when an action is not allowed in the
	// current step.
	ErrInvalidTransition = errors.New("action not allowed in the current step")
	// ErrNoApp is returned when a scan is requested without an app.
	ErrNoApp = errors.New("no application selected")
)

// Item is one finding in the audit list.
type Item struct {
	Target   scanner.Target `json:"target"`
	Included bool           `json:"included"`
}

// Selectable reports whether the item can be part of a cleanup.
func (i Item) Selectable() bool {
	return i.Target.Exists && !i.Target.Blocked
}

// State is an immutable snapshot of a session. Transition functions return
// a new State and never modify their input.
type State struct {
	Step        Step            `json:"step"`
	App         *catalog.App    `json:"app,omitempty"`
	Items       []Item          `json:"items,omitempty"`
	FullCleanup bool            `json:"full_cleanup"`
	Busy        bool            `json:"busy"`
	Status      string          `json:"status"`
	LastResult  *cleanup.Result `json:"last_result,omitempty"`
}

// Initial is the state of a fresh session.
func Initial(fullCleanup bool) State {
	return State{Step: AppPicker, FullCleanup: fullCleanup}
}

func (s State) clone() State {
	if s.Items != nil {
		s.Items = append([]Item(nil), s.Items...)
	}
	return s
}

func idle(s State, steps ...Step) error {
	if s.Busy {
		return ErrBusy
	}
	for _, st := range steps {
		if s.Step == st {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidTransition, s.Step)
}

// Selected returns the targets that a cleanup would consume: included,
// existing and not blocked, in list order.
func (s State) Selected() []scanner.Target {
	var out []scanner.Target
	for _, it := range s.Items {
		if it.Included && it.Selectable() {
			out = append(out, it.Target)
		}
	}
	return out
}

// BeginScan moves an idle session into Scanning for app.
func BeginScan(s State, app catalog.App, fullCleanup bool) (State, error) {
	if err := idle(s, AppPicker, Audit, Done); err != nil {
		return s, err
	}
	if app.DisplayName == "" {
		return s, ErrNoApp
	}
	n := s.clone()
	n.Step = Scanning
	n.App = &app
	n.FullCleanup = fullCleanup
	n.Items = nil
	n.Busy = true
	n.Status = StatusScanning
	return n, nil
}

// BeginUninstall moves an idle session into Uninstalling for app.
func BeginUninstall(s State, app catalog.App, fullCleanup bool) (State, error) {
	if err := idle(s, AppPicker, Audit, Done); err != nil {
		return s, err
	}
	if app.DisplayName == "" {
		return s, ErrNoApp
	}
	n := s.clone()
	n.Step = Uninstalling
	n.App = &app
	n.FullCleanup = fullCleanup
	n.Items = nil
	n.Busy = true
	n.Status = fmt.Sprintf(StatusUninstalling, app.DisplayName)
	return n, nil
}

// UninstallFinished continues into Scanning on success. On failure the
// session returns to AppPicker with the uninstaller's error in the status.
func UninstallFinished(s State, err error) (State, error) {
	if s.Step != Uninstalling {
		return s, fmt.Errorf("%w: %s", ErrInvalidTransition, s.Step)
	}
	n := s.clone()
	if err != nil {
		n.Step = AppPicker
		n.Busy = false
		n.Status = fmt.Sprintf(StatusUninstallFailed, err)
		return n, nil
	}
	n.Step = Scanning
	n.Status = StatusUninstallDone
	return n, nil
}

// ScanFinished lands in Audit with every finding included. A scan error
// still lands in Audit, with the error as the status.
func ScanFinished(s State, targets []scanner.Target, scanErr error) (State, error) {
	if s.Step != Scanning {
		return s, fmt.Errorf("%w: %s", ErrInvalidTransition, s.Step)
	}
	n := s.clone()
	n.Step = Audit
	n.Busy = false
	n.Items = make([]Item, 0, len(targets))
	for _, t := range targets {
		n.Items = append(n.Items, Item{Target: t, Included: true})
	}
	if scanErr != nil {
		n.Status = fmt.Sprintf(StatusScanFailed, scanErr.Error())
	} else {
		n.Status = fmt.Sprintf(StatusFound, len(targets))
	}
	return n, nil
}

// BeginCleanup returns the session in its cleanup-in-progress form together
// with the targets to remove. With nothing selected it returns to AppPicker
// and a nil target list.
func BeginCleanup(s State) (State, []scanner.Target, error) {
	if err := idle(s, Audit); err != nil {
		return s, nil, err
	}
	sel := s.Selected()
	n := s.clone()
	if len(sel) == 0 {
		n = toPicker(n)
		n.Status = StatusNothingSelected
		return n, nil, nil
	}
	n.Busy = true
	n.Status = StatusRemoving
	return n, sel, nil
}

// CleanupFinished records res and returns to AppPicker.
func CleanupFinished(s State, res cleanup.Result) (State, error) {
	if s.Step != Audit || !s.Busy {
		return s, fmt.Errorf("%w: %s", ErrInvalidTransition, s.Step)
	}
	n := toPicker(s.clone())
	n.LastResult = &res
	n.Status = res.Message
	return n, nil
}

// FinishScanOnly ends a session after review without touching anything.
func FinishScanOnly(s State) (State, error) {
	if err := idle(s, Audit); err != nil {
		return s, err
	}
	n := s.clone()
	n.Step = Done
	n.Status = StatusScanOnly
	return n, nil
}

// Toggle flips the inclusion of item i. Missing and blocked items never
// reach a cleanup whatever their flag says.
func Toggle(s State, i int) (State, error) {
	if err := idle(s, Audit); err != nil {
		return s, err
	}
	if i < 0 || i >= len(s.Items) {
		return s, fmt.Errorf("item %d out of range", i)
	}
	n := s.clone()
	n.Items[i].Included = !n.Items[i].Included
	return n, nil
}

// SetAll includes or excludes every item.
func SetAll(s State, included bool) (State, error) {
	if err := idle(s, Audit); err != nil {
		return s, err
	}
	n := s.clone()
	for i := range n.Items {
		n.Items[i].Included = included
	}
	return n, nil
}

// Reset returns an idle session to AppPicker, keeping the full-cleanup
// preference and the last cleanup result.
func Reset(s State) (State, error) {
	if s.Busy {
		return s, ErrBusy
	}
	n := toPicker(s.clone())
	n.Status = ""
	return n, nil
}

func toPicker(s State) State {
	s.Step = AppPicker
	s.App = nil
	s.Items = nil
	s.Busy = false
	return s
}
