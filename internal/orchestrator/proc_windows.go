//go:build windows

package orchestrator

import (
	"errors"
	"os/exec"
	"strconv"
)

const (
	defaultShell     = "cmd"
	defaultShellFlag = "/C"
)

func configureCommandProcess(cmd *exec.Cmd) {}

// Windows has no SIGTERM; cancelling kills the whole tree so pipeline
// children do not hold the output pipes open.
func terminateCommandProcess(cmd *exec.Cmd) {
	killCommandProcess(cmd)
}

func killCommandProcess(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	if err := exec.Command("taskkill", taskkillArgs(cmd.Process.Pid)...).Run(); err != nil {
		_ = cmd.Process.Kill()
	}
}

func taskkillArgs(pid int) []string {
	return []string{"/T", "/F", "/PID", strconv.Itoa(pid)}
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return ExitSpawnFailure
	}
	if code := exitErr.ExitCode(); code >= 0 {
		return code
	}
	return 1
}
