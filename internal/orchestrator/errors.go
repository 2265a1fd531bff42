package orchestrator

import (
	"errors"
	"fmt"
)

// Sentinel exit codes handed to Sink.OnExit when no real exit status exists.
const (
	ExitSpawnFailure = -1
	ExitCancelled    = -2
)

var (
	// ErrCommandNotFound is returned by Start when the executable does not resolve on PATH.
	ErrCommandNotFound = errors.New("command not found")
	ErrEmptyCommand    = errors.New("empty command")
	ErrClosed          = errors.New("orchestrator is closed")
)

// CommandNotFoundError names the executable that failed to resolve.
type CommandNotFoundError struct {
	Name string
	Err  error
}

func (e *CommandNotFoundError) Error() string {
	return fmt.Sprintf("%s not found in PATH: %v", e.Name, e.Err)
}

func (e *CommandNotFoundError) Is(target error) bool { return target == ErrCommandNotFound }

func (e *CommandNotFoundError) Unwrap() error { return e.Err }
