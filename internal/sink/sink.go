// Package sink provides orchestrator.Sink implementations for terminals,
// log files and fan-out.
package sink

import (
	"fmt"
	"io"
	"time"

	"github.com/tendant/simple-xcede/internal/orchestrator"
	"github.com/tendant/simple-xcede/internal/process"
)

// Writer prints stdout lines to Out and stderr lines to Err.
type Writer struct {
	Out    io.Writer
	Err    io.Writer
	Action string
	// Now is used for the exit summary; defaults to time.Now.
	Now     func() time.Time
	started time.Time
}

func NewWriter(out, errOut io.Writer, action string) *Writer {
	if errOut == nil {
		errOut = out
	}
	w := &Writer{Out: out, Err: errOut, Action: action, Now: time.Now}
	w.started = w.Now()
	return w
}

func (w *Writer) OnOutput(stream process.Stream, lines []string) {
	dst := w.Out
	if stream == process.Stderr {
		dst = w.Err
	}
	for _, line := range lines {
		fmt.Fprintln(dst, line)
	}
}

func (w *Writer) OnExit(code int) {
	elapsed := w.Now().Sub(w.started).Round(time.Millisecond)
	fmt.Fprintf(w.Out, "[%s] %s\n", w.Action, Summary(code, elapsed))
}

// Summary renders a one-line exit description.
func Summary(code int, elapsed time.Duration) string {
	switch code {
	case 0:
		return fmt.Sprintf("succeeded in %s", elapsed)
	case orchestrator.ExitCancelled:
		return fmt.Sprintf("cancelled after %s", elapsed)
	case orchestrator.ExitSpawnFailure:
		return "could not start process"
	default:
		return fmt.Sprintf("failed with exit code %d after %s", code, elapsed)
	}
}

// Multi forwards every callback to each sink in order.
type Multi []orchestrator.Sink

func (m Multi) OnOutput(stream process.Stream, lines []string) {
	for _, s := range m {
		s.OnOutput(stream, lines)
	}
}

func (m Multi) Bind(h process.Handle) {
	for _, s := range m {
		if binder, ok := s.(orchestrator.HandleBinder); ok {
			binder.Bind(h)
		}
	}
}

func (m Multi) OnExit(code int) {
	for _, s := range m {
		s.OnExit(code)
	}
}
