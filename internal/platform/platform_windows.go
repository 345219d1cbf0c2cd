//go:build windows

package platform

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"
	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/mgr"
)

type windowsPlatform struct {
	opts    Options
	folders Folders
}

// New returns the Windows implementation.
func New(opts Options) Platform {
	return &windowsPlatform{opts: opts, folders: detectFolders()}
}

func (w *windowsPlatform) Folders() Folders { return w.folders }

func (w *windowsPlatform) IsElevated() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}

func knownFolder(id *windows.KNOWNFOLDERID, env string) string {
	if p, err := windows.KnownFolderPath(id, windows.KF_FLAG_DEFAULT); err == nil && p != "" {
		return p
	}
	return os.Getenv(env)
}

func detectFolders() Folders {
	win := knownFolder(windows.FOLDERID_Windows, "SystemRoot")
	drive := os.Getenv("SystemDrive")
	if drive == "" && win != "" {
		drive = filepath.VolumeName(win)
	}
	if drive != "" && !strings.HasSuffix(drive, `\`) {
		drive += `\`
	}
	f := Folders{
		SystemDrive:     drive,
		Windows:         win,
		System32:        knownFolder(windows.FOLDERID_System, ""),
		ProgramFiles:    knownFolder(windows.FOLDERID_ProgramFiles, "ProgramFiles"),
		ProgramFilesX86: knownFolder(windows.FOLDERID_ProgramFilesX86, "ProgramFiles(x86)"),
		ProgramData:     knownFolder(windows.FOLDERID_ProgramData, "ProgramData"),
		LocalAppData:    knownFolder(windows.FOLDERID_LocalAppData, "LOCALAPPDATA"),
		AppData:         knownFolder(windows.FOLDERID_RoamingAppData, "APPDATA"),
		Temp:            os.TempDir(),
	}
	if win != "" {
		if f.System32 == "" {
			f.System32 = filepath.Join(win, "System32")
		}
		f.SysWOW64 = filepath.Join(win, "SysWOW64")
	}
	return f
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

func rootKey(h Hive) registry.Key {
	if h == CurrentUser {
		return registry.CURRENT_USER
	}
	return registry.LOCAL_MACHINE
}

func openKey(h Hive, path string, access uint32) (registry.Key, error) {
	k, err := registry.OpenKey(rootKey(h), path, access|registry.WOW64_64KEY)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return 0, errors.Wrapf(ErrNotFound, "%s", KeyPath(h, path))
		}
		return 0, errors.Wrapf(err, "open %s", KeyPath(h, path))
	}
	return k, nil
}

func (w *windowsPlatform) SubKeys(h Hive, path string) ([]string, error) {
	k, err := openKey(h, path, registry.ENUMERATE_SUB_KEYS)
	if err != nil {
		return nil, err
	}
	defer k.Close()
	names, err := k.ReadSubKeyNames(-1)
	if err != nil {
		return nil, errors.Wrapf(err, "enumerate %s", KeyPath(h, path))
	}
	return names, nil
}

func (w *windowsPlatform) KeyExists(h Hive, path string) bool {
	k, err := openKey(h, path, registry.QUERY_VALUE)
	if err != nil {
		return false
	}
	k.Close()
	return true
}

func (w *windowsPlatform) StringValue(h Hive, path, name string) (string, error) {
	k, err := openKey(h, path, registry.QUERY_VALUE)
	if err != nil {
		return "", err
	}
	defer k.Close()
	v, _, err := k.GetStringValue(name)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return "", errors.Wrapf(ErrNotFound, "%s[%s]", KeyPath(h, path), name)
		}
		return "", errors.Wrapf(err, "read %s[%s]", KeyPath(h, path), name)
	}
	return v, nil
}

func (w *windowsPlatform) DWORDValue(h Hive, path, name string) (uint32, error) {
	k, err := openKey(h, path, registry.QUERY_VALUE)
	if err != nil {
		return 0, err
	}
	defer k.Close()
	v, _, err := k.GetIntegerValue(name)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return 0, errors.Wrapf(ErrNotFound, "%s[%s]", KeyPath(h, path), name)
		}
		return 0, errors.Wrapf(err, "read %s[%s]", KeyPath(h, path), name)
	}
	return uint32(v), nil
}

func (w *windowsPlatform) SetStringValue(h Hive, path, name, value string) error {
	k, _, err := registry.CreateKey(rootKey(h), path, registry.SET_VALUE|registry.WOW64_64KEY)
	if err != nil {
		return errors.Wrapf(err, "create %s", KeyPath(h, path))
	}
	defer k.Close()
	return errors.Wrapf(k.SetStringValue(name, value), "write %s[%s]", KeyPath(h, path), name)
}

func (w *windowsPlatform) SetDWORDValue(h Hive, path, name string, value uint32) error {
	k, err := openKey(h, path, registry.SET_VALUE)
	if err != nil {
		return err
	}
	defer k.Close()
	return errors.Wrapf(k.SetDWordValue(name, value), "write %s[%s]", KeyPath(h, path), name)
}

func (w *windowsPlatform) DeleteKeyTree(h Hive, path string) error {
	path = strings.Trim(path, `\`)
	if path == "" {
		return errors.New("refusing to delete a hive root")
	}
	return deleteTree(rootKey(h), path)
}

func deleteTree(parent registry.Key, path string) error {
	k, err := registry.OpenKey(parent, path, registry.ENUMERATE_SUB_KEYS|registry.QUERY_VALUE|registry.WOW64_64KEY)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return nil
		}
		return errors.Wrapf(err, "open %s", path)
	}
	children, err := k.ReadSubKeyNames(-1)
	if err != nil {
		k.Close()
		return errors.Wrapf(err, "enumerate %s", path)
	}
	for _, c := range children {
		if err := deleteTree(k, c); err != nil {
			k.Close()
			return err
		}
	}
	k.Close()
	if err := registry.DeleteKey(parent, path); err != nil && !errors.Is(err, registry.ErrNotExist) {
		return errors.Wrapf(err, "delete %s", path)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Services
// ---------------------------------------------------------------------------

// readOnlyManager connects with the rights a non-elevated user holds.
func readOnlyManager() (*mgr.Mgr, error) {
	h, err := windows.OpenSCManager(nil, nil, windows.SC_MANAGER_CONNECT|windows.SC_MANAGER_ENUMERATE_SERVICE)
	if err != nil {
		return nil, errors.Wrap(err, "open service control manager")
	}
	return &mgr.Mgr{Handle: h}, nil
}

func openReadOnly(m *mgr.Mgr, name string) (*mgr.Service, error) {
	p, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, errors.Wrapf(err, "service name %q", name)
	}
	h, err := windows.OpenService(m.Handle, p, windows.SERVICE_QUERY_CONFIG|windows.SERVICE_QUERY_STATUS)
	if err != nil {
		if errors.Is(err, windows.ERROR_SERVICE_DOES_NOT_EXIST) {
			return nil, errors.Wrapf(ErrNotFound, "service %s", name)
		}
		return nil, errors.Wrapf(err, "open service %s", name)
	}
	return &mgr.Service{Name: name, Handle: h}, nil
}

func (w *windowsPlatform) ListServices(ctx context.Context) ([]ServiceInfo, error) {
	m, err := readOnlyManager()
	if err != nil {
		return nil, err
	}
	defer m.Disconnect()

	names, err := m.ListServices()
	if err != nil {
		return nil, errors.Wrap(err, "list services")
	}

	infos := make([]ServiceInfo, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return infos, err
		}
		s, err := openReadOnly(m, name)
		if err != nil {
			continue
		}
		info := ServiceInfo{Name: name, DisplayName: name}
		if cfg, err := s.Config(); err == nil {
			if cfg.DisplayName != "" {
				info.DisplayName = cfg.DisplayName
			}
			info.StartType = StartType(cfg.StartType)
		}
		if st, err := s.Query(); err == nil {
			info.Status = statusFromState(st.State)
		}
		s.Close()
		infos = append(infos, info)
	}
	return infos, nil
}

func (w *windowsPlatform) ServiceExists(name string) bool {
	m, err := readOnlyManager()
	if err != nil {
		return false
	}
	defer m.Disconnect()
	s, err := openReadOnly(m, name)
	if err != nil {
		return false
	}
	s.Close()
	return true
}

func (w *windowsPlatform) ServiceStatus(name string) (ServiceStatus, error) {
	m, err := readOnlyManager()
	if err != nil {
		return StatusUnknown, err
	}
	defer m.Disconnect()
	s, err := openReadOnly(m, name)
	if err != nil {
		return StatusUnknown, err
	}
	defer s.Close()
	st, err := s.Query()
	if err != nil {
		return StatusUnknown, errors.Wrapf(err, "query service %s", name)
	}
	return statusFromState(st.State), nil
}

func (w *windowsPlatform) StopService(ctx context.Context, name string, timeout time.Duration) error {
	m, err := mgr.Connect()
	if err != nil {
		return errors.Wrap(err, "connect to service control manager")
	}
	defer m.Disconnect()
	s, err := m.OpenService(name)
	if err != nil {
		return errors.Wrapf(err, "open service %s", name)
	}
	defer s.Close()

	st, err := s.Control(svc.Stop)
	if err != nil && !errors.Is(err, windows.ERROR_SERVICE_NOT_ACTIVE) {
		return errors.Wrapf(err, "stop service %s", name)
	}

	deadline := time.Now().Add(timeout)
	for st.State != svc.Stopped {
		if time.Now().After(deadline) {
			return errors.Wrapf(ErrTimeout, "waiting for %s to stop", name)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
		st, err = s.Query()
		if err != nil {
			return errors.Wrapf(err, "query service %s", name)
		}
	}
	return nil
}

func (w *windowsPlatform) DeleteService(name string) error {
	m, err := mgr.Connect()
	if err != nil {
		return errors.Wrap(err, "connect to service control manager")
	}
	defer m.Disconnect()
	s, err := m.OpenService(name)
	if err != nil {
		return errors.Wrapf(err, "open service %s", name)
	}
	defer s.Close()
	return errors.Wrapf(s.Delete(), "delete service %s", name)
}

func statusFromState(s svc.State) ServiceStatus {
	switch s {
	case svc.Stopped:
		return StatusStopped
	case svc.StartPending:
		return StatusStartPending
	case svc.StopPending:
		return StatusStopPending
	case svc.Running:
		return StatusRunning
	case svc.ContinuePending:
		return StatusContinuePending
	case svc.PausePending:
		return StatusPausePending
	case svc.Paused:
		return StatusPaused
	default:
		return StatusUnknown
	}
}

// ---------------------------------------------------------------------------
// Scheduled tasks and firewall (external tools)
// ---------------------------------------------------------------------------

func hidden(cmd *exec.Cmd) *exec.Cmd {
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}
	return cmd
}

func runOutput(ctx context.Context, timeout time.Duration, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	out, err := hidden(exec.CommandContext(ctx, name, args...)).Output()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return string(out), errors.Wrapf(ErrTimeout, "%s", name)
	}
	if err != nil {
		return string(out), errors.Wrapf(err, "%s %s", name, strings.Join(args, " "))
	}
	return string(out), nil
}

func (w *windowsPlatform) ListTasks(ctx context.Context) ([]TaskInfo, error) {
	out, err := runOutput(ctx, w.opts.TaskQueryTimeout, "schtasks", "/query", "/fo", "csv")
	if err != nil && out == "" {
		return nil, err
	}
	return ParseTaskList(out), nil
}

func (w *windowsPlatform) TaskExists(ctx context.Context, fullPath string) bool {
	out, err := runOutput(ctx, w.opts.TaskQueryTimeout, "schtasks", "/query", "/tn", fullPath)
	return err == nil && taskQueryMatched(out)
}

func (w *windowsPlatform) DeleteTask(ctx context.Context, fullPath string) error {
	_, err := runOutput(ctx, w.opts.TaskQueryTimeout, "schtasks", "/delete", "/tn", fullPath, "/f")
	return err
}

func (w *windowsPlatform) ListFirewallRules(ctx context.Context) ([]string, error) {
	out, err := runOutput(ctx, w.opts.FirewallQueryTimeout, "netsh", "advfirewall", "firewall", "show", "rule", "name=all")
	if err != nil && out == "" {
		return nil, err
	}
	return ParseFirewallRules(out), nil
}

func (w *windowsPlatform) FirewallRuleExists(ctx context.Context, name string) bool {
	out, err := runOutput(ctx, w.opts.FirewallQueryTimeout, "netsh", "advfirewall", "firewall", "show", "rule", "name="+name)
	return err == nil && firewallQueryMatched(out)
}

func (w *windowsPlatform) DeleteFirewallRule(ctx context.Context, name string) error {
	_, err := runOutput(ctx, w.opts.FirewallQueryTimeout, "netsh", "advfirewall", "firewall", "delete", "rule", "name="+name)
	return err
}

// ---------------------------------------------------------------------------
// Files and processes
// ---------------------------------------------------------------------------

func (w *windowsPlatform) RemovePath(path string) error {
	if _, err := os.Lstat(path); os.IsNotExist(err) {
		return nil
	}
	return errors.Wrapf(os.RemoveAll(path), "remove %s", path)
}

func (w *windowsPlatform) RunCommandLine(ctx context.Context, exe, args string, timeout time.Duration) error {
	cmd := exec.Command(exe)
	line := syscall.EscapeArg(exe)
	if args != "" {
		line += " " + args
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{CmdLine: line}
	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "start %s", exe)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{Exe: exe, Code: exitErr.ExitCode()}
		}
		return errors.Wrapf(err, "%s", exe)
	case <-timer.C:
		killTree(cmd.Process.Pid)
		<-done
		return errors.Wrapf(ErrTimeout, "%s did not exit within %s", exe, timeout)
	case <-ctx.Done():
		killTree(cmd.Process.Pid)
		<-done
		return ctx.Err()
	}
}

func killTree(pid int) {
	_ = hidden(exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(pid))).Run()
}
