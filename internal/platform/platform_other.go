//go:build !windows

package platform

import (
	"context"
	"os"
	"path/filepath"
	"time"
)

// unsupported answers read queries with empty results and refuses every
// mutation. It lets the CLI start and report cleanly on non-Windows hosts.
type unsupported struct {
	folders Folders
}

// New returns the implementation for hosts other than Windows.
func New(opts Options) Platform {
	_ = opts
	home, _ := os.UserHomeDir()
	return &unsupported{folders: Folders{
		SystemDrive:  string(filepath.Separator),
		LocalAppData: filepath.Join(home, ".local", "share"),
		AppData:      filepath.Join(home, ".config"),
		Temp:         os.TempDir(),
	}}
}

func (u *unsupported) Folders() Folders { return u.folders }
func (u *unsupported) IsElevated() bool { return effectiveRoot() }

func (u *unsupported) SubKeys(Hive, string) ([]string, error)            { return nil, ErrUnsupported }
func (u *unsupported) KeyExists(Hive, string) bool                       { return false }
func (u *unsupported) StringValue(Hive, string, string) (string, error)  { return "", ErrUnsupported }
func (u *unsupported) DWORDValue(Hive, string, string) (uint32, error)   { return 0, ErrUnsupported }
func (u *unsupported) SetStringValue(Hive, string, string, string) error { return ErrUnsupported }
func (u *unsupported) SetDWORDValue(Hive, string, string, uint32) error  { return ErrUnsupported }
func (u *unsupported) DeleteKeyTree(Hive, string) error                  { return ErrUnsupported }

func (u *unsupported) ListServices(context.Context) ([]ServiceInfo, error) {
	return nil, ErrUnsupported
}
func (u *unsupported) ServiceExists(string) bool { return false }
func (u *unsupported) ServiceStatus(string) (ServiceStatus, error) {
	return StatusUnknown, ErrUnsupported
}
func (u *unsupported) StopService(context.Context, string, time.Duration) error {
	return ErrUnsupported
}
func (u *unsupported) DeleteService(string) error { return ErrUnsupported }

func (u *unsupported) ListTasks(context.Context) ([]TaskInfo, error) { return nil, ErrUnsupported }
func (u *unsupported) TaskExists(context.Context, string) bool       { return false }
func (u *unsupported) DeleteTask(context.Context, string) error      { return ErrUnsupported }

func (u *unsupported) ListFirewallRules(context.Context) ([]string, error) {
	return nil, ErrUnsupported
}
func (u *unsupported) FirewallRuleExists(context.Context, string) bool  { return false }
func (u *unsupported) DeleteFirewallRule(context.Context, string) error { return ErrUnsupported }

func (u *unsupported) RemovePath(string) error { return ErrUnsupported }

func (u *unsupported) RunCommandLine(context.Context, string, string, time.Duration) error {
	return ErrUnsupported
}
