package bus

import (
	"log/slog"
	"time"

	"github.com/tendant/simple-xcede/internal/orchestrator"
	"github.com/tendant/simple-xcede/internal/process"
	"github.com/tendant/simple-xcede/pkg/schema"
)

// Sink publishes one job's output and exit to <subject>.output and <subject>.exit.
type Sink struct {
	pub     Publisher
	subject string
	action  string
	logger  *slog.Logger
	started time.Time

	handle process.Handle
	seq    int64
}

func NewSink(pub Publisher, subject, action string, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{pub: pub, subject: subject, action: action, logger: logger, started: time.Now()}
}

func (s *Sink) Bind(h process.Handle) { s.handle = h }

func (s *Sink) OnOutput(stream process.Stream, lines []string) {
	s.seq++
	evt := schema.JobOutput{
		Handle:     s.handle.String(),
		Action:     s.action,
		Stream:     string(stream),
		Lines:      lines,
		Sequence:   s.seq,
		HappenedAt: time.Now().UnixMilli(),
	}
	if err := s.pub.PublishJSON(s.subject+schema.SuffixOutput, evt); err != nil {
		s.logger.Error("publish output failed", "subject", s.subject, "handle", evt.Handle, "err", err)
	}
}

func (s *Sink) OnExit(code int) {
	evt := schema.JobExit{
		Handle:     s.handle.String(),
		Action:     s.action,
		ExitCode:   code,
		State:      string(exitState(code)),
		DurationMs: time.Since(s.started).Milliseconds(),
		HappenedAt: time.Now().UnixMilli(),
	}
	if err := s.pub.PublishJSON(s.subject+schema.SuffixExit, evt); err != nil {
		s.logger.Error("publish exit failed", "subject", s.subject, "handle", evt.Handle, "err", err)
	}
}

// PublishState relays an orchestrator state change to <subject>.state.
func PublishState(pub Publisher, subject string, change orchestrator.StateChange, logger *slog.Logger) {
	evt := schema.StateChanged{
		Handle:     change.Handle.String(),
		Action:     change.Action,
		State:      string(change.State),
		Status:     process.StatusText(change.State, change.Action),
		ExitCode:   change.ExitCode,
		HappenedAt: time.Now().UnixMilli(),
	}
	if err := pub.PublishJSON(subject+schema.SuffixState, evt); err != nil && logger != nil {
		logger.Error("publish state failed", "subject", subject, "state", evt.State, "err", err)
	}
}

func exitState(code int) process.State {
	switch code {
	case 0:
		return process.StateSucceeded
	case orchestrator.ExitCancelled:
		return process.StateCancelled
	default:
		return process.StateFailed
	}
}
