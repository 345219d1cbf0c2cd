// Package uninstall runs an application's registered uninstaller.
package uninstall

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/zhengda-lu/zerotrace/internal/catalog"
	"github.com/zhengda-lu/zerotrace/internal/platform"
)

// DefaultTimeout bounds how long an uninstaller may run before its process
// tree is killed.
const DefaultTimeout = 5 * time.Minute

var (
	ErrNoCommand      = errors.New("no uninstall command registered")
	ErrInvalidCommand = errors.New("invalid uninstall command")
	ErrTimeout        = errors.New("uninstaller did not exit in time")
)

// Command is an uninstall command line split into executable and arguments.
type Command struct {
	Exe  string
	Args string
}

func (c Command) String() string {
	if c.Args == "" {
		return c.Exe
	}
	return c.Exe + " " + c.Args
}

// CommandFor picks the quiet uninstall string when present, otherwise the
// interactive one, and splits it.
func CommandFor(app catalog.App) (Command, error) {
	line := strings.TrimSpace(app.QuietUninstallString)
	if line == "" {
		line = strings.TrimSpace(app.UninstallString)
	}
	if line == "" {
		return Command{}, ErrNoCommand
	}
	return Parse(line)
}

// Parse splits a registry command line. A leading quoted executable ends at
// the closing quote; otherwise the executable ends at the first space.
// Arguments are kept verbatim, so MsiExec.exe lines run exactly as given.
func Parse(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, ErrNoCommand
	}
	var exe, args string
	if strings.HasPrefix(line, `"`) {
		end := strings.Index(line[1:], `"`)
		if end < 0 {
			return Command{}, ErrInvalidCommand
		}
		exe = line[1 : end+1]
		args = line[end+2:]
	} else if i := strings.IndexByte(line, ' '); i >= 0 {
		exe, args = line[:i], line[i+1:]
	} else {
		exe = line
	}
	exe = strings.TrimSpace(exe)
	if exe == "" {
		return Command{}, ErrInvalidCommand
	}
	return Command{Exe: exe, Args: strings.TrimSpace(args)}, nil
}

// Runner starts uninstallers and waits for them.
type Runner struct {
	proc    platform.Processes
	timeout time.Duration
	log     logr.Logger
}

func New(proc platform.Processes, timeout time.Duration, log logr.Logger) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Runner{proc: proc, timeout: timeout, log: log.WithName("uninstall")}
}

// Run executes app's uninstaller and blocks until it exits, the timeout
// elapses, or ctx is done. Any exit code counts as finished: installers
// report success with codes such as 3010 (reboot required). On timeout the
// process tree is killed and ErrTimeout is returned.
func (r *Runner) Run(ctx context.Context, app catalog.App) error {
	cmd, err := CommandFor(app)
	if err != nil {
		return err
	}
	r.log.Info("running uninstaller", "app", app.DisplayName, "command", cmd.String())
	err = r.proc.RunCommandLine(ctx, cmd.Exe, cmd.Args, r.timeout)
	var exitErr *platform.ExitError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &exitErr):
		r.log.Info("uninstaller exited", "app", app.DisplayName, "code", exitErr.Code)
		return nil
	case errors.Is(err, platform.ErrTimeout):
		r.log.Info("uninstaller timed out", "app", app.DisplayName, "timeout", r.timeout.String())
		return fmt.Errorf("%w after %s, it may still be running", ErrTimeout, r.timeout)
	default:
		r.log.Error(err, "uninstaller failed", "app", app.DisplayName)
		return fmt.Errorf("failed to run uninstaller: %w", err)
	}
}
