// Package platform is the only place that talks to the host operating
// system. Everything above it (scanning, safety checks, cleanup) works
// against these interfaces so it can be exercised with fakes.
package platform

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrUnsupported is returned by every operation on hosts other than Windows.
	ErrUnsupported = errors.New("operation not supported on this platform")
	// ErrNotFound is returned when a registry key, value, service or task does not exist.
	ErrNotFound = errors.New("not found")
	// ErrTimeout is returned when an external tool or a service stop exceeds its budget.
	ErrTimeout = errors.New("timed out")
)

// Folders holds the well-known directories the scanner and the safety gate
// care about. Empty fields mean the folder is unknown on this host.
type Folders struct {
	SystemDrive     string // volume root, e.g. C:\
	Windows         string
	System32        string
	SysWOW64        string
	ProgramFiles    string
	ProgramFilesX86 string
	ProgramData     string
	LocalAppData    string
	AppData         string
	Temp            string
}

// Registry reads and mutates the host registry. Paths are relative to the hive
// and use backslashes.
type Registry interface {
	SubKeys(hive Hive, path string) ([]string, error)
	KeyExists(hive Hive, path string) bool
	StringValue(hive Hive, path, name string) (string, error)
	DWORDValue(hive Hive, path, name string) (uint32, error)
	SetStringValue(hive Hive, path, name, value string) error
	SetDWORDValue(hive Hive, path, name string, value uint32) error
	// DeleteKeyTree removes path and all of its subkeys. A missing key is not an error.
	DeleteKeyTree(hive Hive, path string) error
}

// Services wraps the service control manager.
type Services interface {
	ListServices(ctx context.Context) ([]ServiceInfo, error)
	ServiceExists(name string) bool
	ServiceStatus(name string) (ServiceStatus, error)
	// StopService asks the service to stop and waits up to timeout for it to reach Stopped.
	StopService(ctx context.Context, name string, timeout time.Duration) error
	DeleteService(name string) error
}

// Tasks wraps the scheduled-task command line tool.
type Tasks interface {
	ListTasks(ctx context.Context) ([]TaskInfo, error)
	TaskExists(ctx context.Context, fullPath string) bool
	DeleteTask(ctx context.Context, fullPath string) error
}

// Firewall wraps the firewall command line tool.
type Firewall interface {
	ListFirewallRules(ctx context.Context) ([]string, error)
	FirewallRuleExists(ctx context.Context, name string) bool
	DeleteFirewallRule(ctx context.Context, name string) error
}

// Files performs destructive filesystem operations.
type Files interface {
	// RemovePath deletes a file or a directory tree. A missing path is not an error.
	RemovePath(path string) error
}

// ExitError reports that a program ran and exited with a non-zero code.
type ExitError struct {
	Exe  string
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Exe, e.Code)
}

// Processes launches external programs.
type Processes interface {
	// RunCommandLine starts exe with the raw argument string and waits for it
	// to exit. A non-zero exit code is returned as *ExitError. When timeout
	// elapses the whole process tree is killed and ErrTimeout is returned.
	RunCommandLine(ctx context.Context, exe, args string, timeout time.Duration) error
}

// Platform is the complete host abstraction.
type Platform interface {
	Registry
	Services
	Tasks
	Firewall
	Files
	Processes
	Folders() Folders
	IsElevated() bool
}

// Options tunes the external tool budgets of the host implementation.
type Options struct {
	TaskQueryTimeout     time.Duration
	FirewallQueryTimeout time.Duration
}

// DefaultOptions returns the budgets used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		TaskQueryTimeout:     15 * time.Second,
		FirewallQueryTimeout: 15 * time.Second,
	}
}
