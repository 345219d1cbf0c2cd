package platform

import (
	"fmt"
	"strings"
)

// Hive is a registry root.
type Hive int

const (
	LocalMachine Hive = iota
	CurrentUser
)

func (h Hive) String() string {
	switch h {
	case LocalMachine:
		return "HKLM"
	case CurrentUser:
		return "HKCU"
	default:
		return "Unknown"
	}
}

// KeyPath renders a hive-qualified key in the HKLM:\SOFTWARE\Vendor form used
// as a target value.
func KeyPath(h Hive, path string) string {
	return h.String() + `:\` + strings.TrimLeft(path, `\`)
}

// ParseKeyPath is the inverse of KeyPath. Both "HKLM:\X" and "HKLM\X" are
// accepted, case-insensitively.
func ParseKeyPath(s string) (Hive, string, bool) {
	upper := strings.ToUpper(s)
	for _, h := range []Hive{LocalMachine, CurrentUser} {
		for _, prefix := range []string{h.String() + `:\`, h.String() + `\`} {
			if strings.HasPrefix(upper, prefix) {
				rest := strings.Trim(s[len(prefix):], `\`)
				if rest == "" {
					return 0, "", false
				}
				return h, rest, true
			}
		}
	}
	return 0, "", false
}

// ServiceStatus is the coarse run state of a service.
type ServiceStatus int

const (
	StatusUnknown ServiceStatus = iota
	StatusStopped
	StatusStartPending
	StatusStopPending
	StatusRunning
	StatusContinuePending
	StatusPausePending
	StatusPaused
)

func (s ServiceStatus) String() string {
	switch s {
	case StatusStopped:
		return "Stopped"
	case StatusStartPending:
		return "StartPending"
	case StatusStopPending:
		return "StopPending"
	case StatusRunning:
		return "Running"
	case StatusContinuePending:
		return "ContinuePending"
	case StatusPausePending:
		return "PausePending"
	case StatusPaused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// StartType mirrors the Start DWORD under a service's registry key.
type StartType uint32

const (
	StartUnknown   StartType = 0
	StartAutomatic StartType = 2
	StartManual    StartType = 3
	StartDisabled  StartType = 4
)

func (s StartType) String() string {
	switch s {
	case StartAutomatic:
		return "Automatic"
	case StartManual:
		return "Manual"
	case StartDisabled:
		return "Disabled"
	default:
		return "Unknown"
	}
}

// ParseStartType accepts automatic, manual or disabled in any case.
func ParseStartType(s string) (StartType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "automatic", "auto":
		return StartAutomatic, nil
	case "manual", "demand":
		return StartManual, nil
	case "disabled":
		return StartDisabled, nil
	default:
		return StartUnknown, fmt.Errorf("invalid start type %q (use automatic, manual or disabled)", s)
	}
}

// ServiceKeyPath is the per-service registry branch holding the Start value.
func ServiceKeyPath(name string) string {
	return `SYSTEM\CurrentControlSet\Services\` + name
}

// ServiceStartType reads the Start DWORD of a service.
func ServiceStartType(r Registry, name string) StartType {
	v, err := r.DWORDValue(LocalMachine, ServiceKeyPath(name), "Start")
	if err != nil {
		return StartUnknown
	}
	switch StartType(v) {
	case StartAutomatic, StartManual, StartDisabled:
		return StartType(v)
	default:
		return StartUnknown
	}
}

// SetServiceStartType writes the Start DWORD of a service.
func SetServiceStartType(r Registry, name string, st StartType) error {
	switch st {
	case StartAutomatic, StartManual, StartDisabled:
	default:
		return fmt.Errorf("refusing to write start type %d", uint32(st))
	}
	return r.SetDWORDValue(LocalMachine, ServiceKeyPath(name), "Start", uint32(st))
}

// ServiceInfo describes one installed service.
type ServiceInfo struct {
	Name        string        `json:"name"`
	DisplayName string        `json:"display_name"`
	Status      ServiceStatus `json:"-"`
	StartType   StartType     `json:"-"`
}

// TaskInfo is one scheduled task. Path is the containing folder with leading
// and trailing backslashes ("\" for the root folder).
type TaskInfo struct {
	Name string
	Path string
}

// FullPath joins Path and Name into the form the task tool accepts.
func (t TaskInfo) FullPath() string {
	return JoinTaskPath(t.Path, t.Name)
}
