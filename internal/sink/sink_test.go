package sink

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tendant/simple-xcede/internal/orchestrator"
	"github.com/tendant/simple-xcede/internal/process"
)

func TestWriterRoutesStreams(t *testing.T) {
	var out, errOut bytes.Buffer
	w := NewWriter(&out, &errOut, "build")
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	w.started = fixed
	w.Now = func() time.Time { return fixed.Add(1500 * time.Millisecond) }

	w.OnOutput(process.Stdout, []string{"Compiling App", "Linking App"})
	w.OnOutput(process.Stderr, []string{"warning: unused variable"})
	w.OnExit(0)

	if got := out.String(); got != "Compiling App\nLinking App\n[build] succeeded in 1.5s\n" {
		t.Fatalf("unexpected stdout: %q", got)
	}
	if got := errOut.String(); got != "warning: unused variable\n" {
		t.Fatalf("unexpected stderr: %q", got)
	}
}

func TestWriterDefaultsErrToOut(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out, nil, "test")
	w.OnOutput(process.Stderr, []string{"boom"})
	if out.String() != "boom\n" {
		t.Fatalf("stderr not routed to out: %q", out.String())
	}
}

func TestSummary(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{0, "succeeded in 2s"},
		{65, "failed with exit code 65 after 2s"},
		{orchestrator.ExitCancelled, "cancelled after 2s"},
		{orchestrator.ExitSpawnFailure, "could not start process"},
	}
	for _, tt := range tests {
		if got := Summary(tt.code, 2*time.Second); got != tt.want {
			t.Errorf("Summary(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestMultiFansOut(t *testing.T) {
	var a, b bytes.Buffer
	m := Multi{NewWriter(&a, nil, "run"), NewWriter(&b, nil, "run")}
	m.OnOutput(process.Stdout, []string{"hello"})

	if a.String() != "hello\n" || b.String() != "hello\n" {
		t.Fatalf("fan-out mismatch: %q %q", a.String(), b.String())
	}
}

func TestLogFileWritesJobOutput(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	l, err := NewLogFile(dir, "build/and run", "xcede buildrun --scheme App", nil)
	if err != nil {
		t.Fatalf("NewLogFile returned error: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(l.Path()), "buildandrun_") {
		t.Fatalf("unexpected log file name: %s", l.Path())
	}

	l.OnOutput(process.Stdout, []string{"Build succeeded"})
	l.OnOutput(process.Stderr, []string{"simulator booting"})
	l.OnExit(1)

	data, err := os.ReadFile(l.Path())
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	content := string(data)
	for _, want := range []string{"$ xcede buildrun --scheme App", "Build succeeded\n", "! simulator booting\n", "failed with exit code 1"} {
		if !strings.Contains(content, want) {
			t.Fatalf("log missing %q:\n%s", want, content)
		}
	}
}

func TestCreateUniqueKeepsExistingLogs(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "build_20260102_030405.000.log")
	if err := os.WriteFile(existing, []byte("first job\n"), 0o644); err != nil {
		t.Fatalf("write existing log: %v", err)
	}

	f, path, err := createUnique(dir, "build_20260102_030405.000")
	if err != nil {
		t.Fatalf("createUnique returned error: %v", err)
	}
	f.Close()
	if path != filepath.Join(dir, "build_20260102_030405.000-1.log") {
		t.Fatalf("unexpected path: %s", path)
	}
	data, err := os.ReadFile(existing)
	if err != nil || string(data) != "first job\n" {
		t.Fatalf("existing log changed: %q %v", data, err)
	}
}

func TestLogFilesInSameMillisecondDoNotCollide(t *testing.T) {
	dir := t.TempDir()
	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		l, err := NewLogFile(dir, "build", "xcede build", nil)
		if err != nil {
			t.Fatalf("NewLogFile returned error: %v", err)
		}
		if seen[l.Path()] {
			t.Fatalf("log path reused: %s", l.Path())
		}
		seen[l.Path()] = true
		l.OnExit(0)
	}
}

func TestLogFileAbortRemovesFile(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLogFile(dir, "build", "xcede build", nil)
	if err != nil {
		t.Fatalf("NewLogFile returned error: %v", err)
	}
	l.Abort()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty log dir, found %d entries", len(entries))
	}
}

func TestSanitize(t *testing.T) {
	if got := sanitize("build-and-run"); got != "build-and-run" {
		t.Fatalf("sanitize changed safe name: %s", got)
	}
	if got := sanitize("../../"); got != "job" {
		t.Fatalf("expected fallback name, got %s", got)
	}
}

type bindRecorder struct {
	orchestrator.SinkFuncs
	handle process.Handle
}

func (b *bindRecorder) Bind(h process.Handle) { b.handle = h }

func TestMultiForwardsBind(t *testing.T) {
	rec := &bindRecorder{}
	var m orchestrator.Sink = Multi{NewWriter(&bytes.Buffer{}, nil, "run"), rec}

	binder, ok := m.(orchestrator.HandleBinder)
	if !ok {
		t.Fatal("Multi does not implement HandleBinder")
	}
	binder.Bind("h-9")
	if rec.handle != "h-9" {
		t.Fatalf("handle not forwarded: %q", rec.handle)
	}
}
