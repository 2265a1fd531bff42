//go:build !windows

package orchestrator

import (
	"errors"
	"os/exec"
	"syscall"
)

const (
	defaultShell     = "/bin/sh"
	defaultShellFlag = "-c"
)

func configureCommandProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func terminateCommandProcess(cmd *exec.Cmd) {
	signalCommandProcess(cmd, syscall.SIGTERM)
}

func killCommandProcess(cmd *exec.Cmd) {
	signalCommandProcess(cmd, syscall.SIGKILL)
}

func signalCommandProcess(cmd *exec.Cmd, sig syscall.Signal) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	pid := cmd.Process.Pid
	if pid <= 0 {
		return
	}
	if pgid, err := syscall.Getpgid(pid); err == nil && pgid > 0 {
		// Negative PGID targets the shell and everything it spawned.
		_ = syscall.Kill(-pgid, sig)
		return
	}
	_ = cmd.Process.Signal(sig)
}

// exitCodeOf maps a Wait error to an exit code; signalled processes report 128+signal.
func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return ExitSpawnFailure
	}
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return 128 + int(status.Signal())
	}
	return exitErr.ExitCode()
}
