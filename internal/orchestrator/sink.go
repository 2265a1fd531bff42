package orchestrator

import "github.com/tendant/simple-xcede/internal/process"

// Sink receives the output and the exit notification of one job.
// Calls are serialized on the orchestrator's dispatcher.
type Sink interface {
	// OnOutput receives complete lines from one stream, trailing "\r" removed.
	OnOutput(stream process.Stream, lines []string)
	// OnExit is called exactly once, after every OnOutput call for the job.
	OnExit(code int)
}

// HandleBinder is implemented by sinks that tag their output with the job handle.
// Start calls Bind before any other callback reaches the sink.
type HandleBinder interface {
	Bind(h process.Handle)
}

// SinkFuncs adapts plain functions to Sink. Nil fields are skipped.
type SinkFuncs struct {
	Output func(stream process.Stream, lines []string)
	Exit   func(code int)
}

func (f SinkFuncs) OnOutput(stream process.Stream, lines []string) {
	if f.Output != nil {
		f.Output(stream, lines)
	}
}

func (f SinkFuncs) OnExit(code int) {
	if f.Exit != nil {
		f.Exit(code)
	}
}

// StateChange is delivered to subscribers whenever the slot state moves.
type StateChange struct {
	Handle   process.Handle
	Action   string
	State    process.State
	ExitCode *int
}
