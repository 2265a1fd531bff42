// internal/process/job.go
package process

import (
	"time"

	"github.com/google/uuid"
)

// State represents the lifecycle state of the orchestrator slot or of a single job.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether no further transitions happen for a job in this state.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCancelled
}

// Stream identifies which pipe of the child process a chunk came from.
type Stream string

const (
	Stdout Stream = "stdout"
	Stderr Stream = "stderr"
)

// Handle identifies one job invocation.
type Handle string

func NewHandle() Handle { return Handle(uuid.NewString()) }

func (h Handle) String() string { return string(h) }

// Job captures what the orchestrator tracks about one external command.
type Job struct {
	Handle     Handle
	Action     string
	Command    string
	Dir        string
	State      State
	ExitCode   *int
	StartedAt  time.Time
	FinishedAt time.Time
}

func NewJob(handle Handle, action, command, dir string) *Job {
	return &Job{
		Handle:    handle,
		Action:    action,
		Command:   command,
		Dir:       dir,
		State:     StateRunning,
		StartedAt: time.Now(),
	}
}

func MarkCancelled(j *Job) { j.State = StateCancelled }

// MarkExited records the exit code. A job already marked cancelled keeps that state.
func MarkExited(j *Job, code int) {
	j.ExitCode = &code
	j.FinishedAt = time.Now()
	if j.State == StateCancelled {
		return
	}
	if code == 0 {
		j.State = StateSucceeded
		return
	}
	j.State = StateFailed
}

// Duration is the elapsed run time, up to now for jobs still running.
func (j *Job) Duration() time.Duration {
	if j.StartedAt.IsZero() {
		return 0
	}
	if j.FinishedAt.IsZero() {
		return time.Since(j.StartedAt)
	}
	return j.FinishedAt.Sub(j.StartedAt)
}
