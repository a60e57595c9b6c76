// Package proc launches external worker processes and keeps track of the
// ones still running so they can be killed on hard termination.
package proc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
)

// ErrStopped is returned by Spawn once KillAll has run
var ErrStopped = errors.New("launcher stopped")

// Launcher spawns processes and remembers them until they exit
type Launcher struct {
	// Stdout and Stderr receive the children's output; nil discards stdout
	// and forwards stderr to the parent's stderr
	Stdout io.Writer
	Stderr io.Writer
	// Env is appended to the parent's environment for every child
	Env    []string
	Logger *slog.Logger

	mu      sync.Mutex
	running map[*exec.Cmd]struct{}
	stopped bool
}

// NewLauncher creates a Launcher forwarding child stderr to os.Stderr
func NewLauncher(logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{Stderr: os.Stderr, Logger: logger}
}

// Spawn runs path with args and blocks until it exits, returning the exit
// code. A process killed by a signal reports -1. The error is non-nil only
// when the process could not be started, and is ErrStopped after KillAll.
// Cancelling ctx does not kill a running process; use KillAll for that.
func (l *Launcher) Spawn(ctx context.Context, path string, args []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return -1, err
	}

	cmd := exec.Command(path, args...)
	cmd.Stdout = l.Stdout
	cmd.Stderr = l.Stderr
	if len(l.Env) > 0 {
		cmd.Env = append(os.Environ(), l.Env...)
	}

	if err := l.start(cmd); err != nil {
		return -1, err
	}
	defer l.untrack(cmd)

	err := cmd.Wait()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

// Running returns the number of spawned processes that have not exited
func (l *Launcher) Running() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.running)
}

// KillAll kills every running spawned process and returns how many were
// signalled. The launcher refuses to spawn anything afterwards.
func (l *Launcher) KillAll() int {
	l.mu.Lock()
	l.stopped = true
	cmds := make([]*exec.Cmd, 0, len(l.running))
	for cmd := range l.running {
		cmds = append(cmds, cmd)
	}
	l.mu.Unlock()

	killed := 0
	for _, cmd := range cmds {
		if err := cmd.Process.Kill(); err != nil {
			if !errors.Is(err, os.ErrProcessDone) {
				l.logger().Warn("failed to kill process", "pid", cmd.Process.Pid, "error", err)
			}
			continue
		}
		killed++
	}
	return killed
}

// start starts cmd and tracks it under the lock KillAll takes, so a process
// is either refused or visible to KillAll
func (l *Launcher) start(cmd *exec.Cmd) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return ErrStopped
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	if l.running == nil {
		l.running = make(map[*exec.Cmd]struct{})
	}
	l.running[cmd] = struct{}{}
	return nil
}

func (l *Launcher) untrack(cmd *exec.Cmd) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.running, cmd)
}

func (l *Launcher) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}
