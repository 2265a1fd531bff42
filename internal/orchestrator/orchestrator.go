// Package orchestrator runs at most one external command at a time, relaying
// its output line by line to a Sink and tracking the job lifecycle.
//
// A second Start cancels the running job. The cancelled job's remaining output
// is dropped and its sink still gets exactly one OnExit, with ExitCancelled.
// Every callback, to sinks and to state subscribers, runs on a single
// dispatcher so callers never need their own locking.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tendant/simple-xcede/internal/process"
)

const (
	defaultGracePeriod = 5 * time.Second
	defaultKillTimeout = 3 * time.Second
	readBufferSize     = 32 * 1024
)

// Request describes one command invocation.
type Request struct {
	// Command is a complete shell command line, pipelines included.
	Command string
	// Executable must resolve on PATH; defaults to the first word of Command.
	Executable string
	// Dir defaults to the current working directory.
	Dir    string
	Action string
	Env    map[string]string
}

type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithShell overrides the shell used to run command lines.
func WithShell(path string) Option {
	return func(o *Orchestrator) {
		if path != "" {
			o.shell = path
		}
	}
}

// WithGracePeriod sets how long a finished job's state is shown before the slot returns to idle.
func WithGracePeriod(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.grace = d
		}
	}
}

// WithKillTimeout sets the delay between SIGTERM and SIGKILL for a cancelled job.
func WithKillTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.killTimeout = d
		}
	}
}

// WithDispatcher routes callbacks onto the caller's own serialized context.
func WithDispatcher(d Dispatcher) Option {
	return func(o *Orchestrator) {
		if d != nil {
			o.dispatcher = d
		}
	}
}

func WithLookPath(fn func(string) (string, error)) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.lookPath = fn
		}
	}
}

type run struct {
	job    *process.Job // guarded by Orchestrator.mu
	cmd    *exec.Cmd    // guarded by Orchestrator.mu
	sink   Sink
	logger *slog.Logger

	cancelled  bool // guarded by Orchestrator.mu
	suppressed atomic.Bool
	done       chan struct{}
}

// Orchestrator owns a single job slot.
type Orchestrator struct {
	logger      *slog.Logger
	shell       string
	shellFlag   string
	grace       time.Duration
	killTimeout time.Duration
	lookPath    func(string) (string, error)
	dispatcher  Dispatcher
	serial      *serialDispatcher

	mu         sync.Mutex
	active     *run
	state      process.State
	resetTimer *time.Timer
	subs       map[uint64]func(StateChange)
	nextSub    uint64
	closed     bool
	wg         sync.WaitGroup
}

func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		logger:      slog.Default(),
		shell:       defaultShell,
		shellFlag:   defaultShellFlag,
		grace:       defaultGracePeriod,
		killTimeout: defaultKillTimeout,
		lookPath:    exec.LookPath,
		state:       process.StateIdle,
		subs:        make(map[uint64]func(StateChange)),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.dispatcher == nil {
		o.serial = newSerialDispatcher()
		o.dispatcher = o.serial
	}
	return o
}

// Start launches req, cancelling any running job first. The returned handle
// identifies the new job; the slot is already running when Start returns.
func (o *Orchestrator) Start(req Request, sink Sink) (process.Handle, error) {
	if strings.TrimSpace(req.Command) == "" {
		return "", ErrEmptyCommand
	}
	dir := req.Dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve working directory: %w", err)
		}
		dir = wd
	}
	exe := req.Executable
	if exe == "" {
		exe = executableOf(req.Command)
	}
	if err := o.resolve(exe, dir); err != nil {
		return "", err
	}
	if sink == nil {
		sink = SinkFuncs{}
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return "", ErrClosed
	}
	if prev := o.active; prev != nil && !prev.job.State.Terminal() {
		o.cancelLocked(prev)
		o.notifyLocked(changeOf(prev.job))
	}
	if o.resetTimer != nil {
		o.resetTimer.Stop()
		o.resetTimer = nil
	}

	handle := process.NewHandle()
	if binder, ok := sink.(HandleBinder); ok {
		binder.Bind(handle)
	}
	r := &run{
		job:    process.NewJob(handle, req.Action, req.Command, dir),
		sink:   sink,
		logger: o.logger.With("handle", handle.String(), "action", req.Action),
		done:   make(chan struct{}),
	}
	o.active = r
	o.state = process.StateRunning
	o.notifyLocked(changeOf(r.job))
	o.wg.Add(1)
	o.mu.Unlock()

	r.logger.Info("starting job", "command", req.Command, "dir", dir)
	go o.execute(r, req.Env)
	return handle, nil
}

// Cancel signals the job identified by h. Stale handles are ignored.
func (o *Orchestrator) Cancel(h process.Handle) {
	o.mu.Lock()
	defer o.mu.Unlock()

	r := o.active
	if r == nil || r.job.Handle != h || r.job.State.Terminal() {
		o.logger.Debug("cancel ignored for stale handle", "handle", h.String())
		return
	}
	o.cancelLocked(r)
	o.state = process.StateCancelled
	o.notifyLocked(changeOf(r.job))
}

// CancelCurrent cancels whatever job occupies the slot.
func (o *Orchestrator) CancelCurrent() {
	o.mu.Lock()
	r := o.active
	o.mu.Unlock()
	if r == nil {
		return
	}
	o.Cancel(r.job.Handle)
}

func (o *Orchestrator) CurrentState() process.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Current returns a snapshot of the job occupying the slot.
func (o *Orchestrator) Current() (process.Job, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active == nil {
		return process.Job{}, false
	}
	return *o.active.job, true
}

// Subscribe registers fn for state changes and returns a function that removes it.
func (o *Orchestrator) Subscribe(fn func(StateChange)) func() {
	o.mu.Lock()
	id := o.nextSub
	o.nextSub++
	o.subs[id] = fn
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		delete(o.subs, id)
		o.mu.Unlock()
	}
}

// Close cancels the active job, waits for it to be reaped and stops the
// internal dispatcher after draining pending callbacks.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	if r := o.active; r != nil && !r.job.State.Terminal() {
		o.cancelLocked(r)
	}
	if o.resetTimer != nil {
		o.resetTimer.Stop()
		o.resetTimer = nil
	}
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("wait for active job: %w", ctx.Err())
	}
	if o.serial != nil {
		o.serial.Stop()
	}
	return nil
}

func (o *Orchestrator) resolve(exe, dir string) error {
	if exe == "" {
		return ErrEmptyCommand
	}
	name := exe
	if !filepath.IsAbs(name) && strings.ContainsRune(name, filepath.Separator) {
		name = filepath.Join(dir, name)
	}
	if _, err := o.lookPath(name); err != nil {
		return &CommandNotFoundError{Name: exe, Err: err}
	}
	return nil
}

func (o *Orchestrator) execute(r *run, env map[string]string) {
	defer o.wg.Done()

	cmd := exec.Command(o.shell, o.shellFlag, r.job.Command)
	cmd.Dir = r.job.Dir
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	configureCommandProcess(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		o.spawnFailed(r, fmt.Errorf("stdout pipe: %w", err))
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		o.spawnFailed(r, fmt.Errorf("stderr pipe: %w", err))
		return
	}
	if err := cmd.Start(); err != nil {
		o.spawnFailed(r, fmt.Errorf("start %s: %w", o.shell, err))
		return
	}

	o.mu.Lock()
	r.cmd = cmd
	if r.cancelled {
		o.terminate(r)
	}
	o.mu.Unlock()

	var readers sync.WaitGroup
	readers.Add(2)
	go o.relay(r, process.Stdout, stdout, &readers)
	go o.relay(r, process.Stderr, stderr, &readers)
	readers.Wait()

	o.finish(r, exitCodeOf(cmd.Wait()))
}

func (o *Orchestrator) spawnFailed(r *run, err error) {
	r.logger.Error("spawn failed", "err", err)
	o.finish(r, ExitSpawnFailure)
}

func (o *Orchestrator) relay(r *run, stream process.Stream, rd io.Reader, wg *sync.WaitGroup) {
	defer wg.Done()

	var splitter lineSplitter
	buf := make([]byte, readBufferSize)
	for {
		n, err := rd.Read(buf)
		if n > 0 {
			o.deliver(r, stream, splitter.Feed(buf[:n]))
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				r.logger.Warn("read output failed", "stream", string(stream), "err", err)
			}
			break
		}
	}
	o.deliver(r, stream, splitter.Flush())
}

func (o *Orchestrator) deliver(r *run, stream process.Stream, lines []string) {
	if len(lines) == 0 || r.suppressed.Load() {
		return
	}
	o.dispatcher.Dispatch(func() {
		// Re-checked here: the job may have been cancelled while queued.
		if r.suppressed.Load() {
			return
		}
		r.sink.OnOutput(stream, lines)
	})
}

func (o *Orchestrator) finish(r *run, code int) {
	o.mu.Lock()
	if r.cancelled {
		code = ExitCancelled
	}
	process.MarkExited(r.job, code)
	if o.active == r {
		// Cancel already announced the cancelled state.
		if o.state != r.job.State {
			o.state = r.job.State
			o.notifyLocked(changeOf(r.job))
		}
		if !o.closed {
			o.scheduleResetLocked(r.job.Handle)
		}
	}
	state := r.job.State
	elapsed := r.job.Duration()
	o.mu.Unlock()
	close(r.done)

	r.logger.Info("job finished", "state", string(state), "exit_code", code, "duration_ms", elapsed.Milliseconds())
	o.dispatcher.Dispatch(func() {
		r.sink.OnExit(code)
	})
}

func (o *Orchestrator) cancelLocked(r *run) {
	if r.cancelled {
		return
	}
	r.cancelled = true
	r.suppressed.Store(true)
	process.MarkCancelled(r.job)
	r.logger.Info("cancelling job")
	if r.cmd != nil {
		o.terminate(r)
	}
}

// terminate must be called with o.mu held and r.cmd set.
func (o *Orchestrator) terminate(r *run) {
	cmd := r.cmd
	terminateCommandProcess(cmd)
	go func() {
		select {
		case <-r.done:
		case <-time.After(o.killTimeout):
			r.logger.Warn("job ignored termination, killing", "timeout", o.killTimeout)
			killCommandProcess(cmd)
		}
	}()
}

func (o *Orchestrator) scheduleResetLocked(h process.Handle) {
	if o.resetTimer != nil {
		o.resetTimer.Stop()
	}
	o.resetTimer = time.AfterFunc(o.grace, func() { o.resetIdle(h) })
}

// resetIdle clears the slot unless another job took it since the reset was scheduled.
func (o *Orchestrator) resetIdle(h process.Handle) {
	o.mu.Lock()
	defer o.mu.Unlock()

	r := o.active
	if r == nil || r.job.Handle != h || !r.job.State.Terminal() || o.state == process.StateIdle {
		return
	}
	o.active = nil
	o.state = process.StateIdle
	o.notifyLocked(StateChange{Handle: h, Action: r.job.Action, State: process.StateIdle})
}

func (o *Orchestrator) notifyLocked(change StateChange) {
	o.dispatcher.Dispatch(func() {
		for _, fn := range o.subscribers() {
			fn(change)
		}
	})
}

func (o *Orchestrator) subscribers() []func(StateChange) {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids := make([]uint64, 0, len(o.subs))
	for id := range o.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(StateChange), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, o.subs[id])
	}
	return fns
}

func changeOf(j *process.Job) StateChange {
	return StateChange{
		Handle:   j.Handle,
		Action:   j.Action,
		State:    j.State,
		ExitCode: j.ExitCode,
	}
}

// executableOf returns the first word of a command line, skipping leading
// VAR=value assignments.
func executableOf(command string) string {
	for _, field := range strings.Fields(command) {
		if isAssignment(field) {
			continue
		}
		return strings.Trim(field, `"'`)
	}
	return ""
}

func isAssignment(field string) bool {
	name, _, ok := strings.Cut(field, "=")
	if !ok || name == "" {
		return false
	}
	for i, c := range name {
		switch {
		case c == '_', c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z':
		case i > 0 && c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}
