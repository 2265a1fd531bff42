// Package runner maps named actions (build, run, build-and-run, test, stop,
// debug info) onto a single orchestrator.
package runner

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/tendant/simple-xcede/internal/command"
	"github.com/tendant/simple-xcede/internal/orchestrator"
	"github.com/tendant/simple-xcede/internal/process"
	"github.com/tendant/simple-xcede/internal/sink"
	"github.com/tendant/simple-xcede/internal/xcrc"
	"github.com/tendant/simple-xcede/pkg/schema"
)

// SinkFactory returns the sink for a job about to start.
type SinkFactory func(action string, req orchestrator.Request) orchestrator.Sink

type Config struct {
	// Dir is used when a request names no directory.
	Dir string
	// LogDir, when set, keeps a log file per job.
	LogDir string
	Sinks  SinkFactory
	Logger *slog.Logger
}

type Runner struct {
	orch    *orchestrator.Orchestrator
	builder *command.Builder
	cfg     Config
	logger  *slog.Logger
}

func New(orch *orchestrator.Orchestrator, builder *command.Builder, cfg Config) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Dir == "" {
		cfg.Dir = "."
	}
	return &Runner{orch: orch, builder: builder, cfg: cfg, logger: logger}
}

func (r *Runner) Orchestrator() *orchestrator.Orchestrator { return r.orch }

// Project resolves the project root and settings for dir. Without a
// settings file the directory itself is the root and settings are empty.
func (r *Runner) Project(dir string) (string, xcrc.Settings, error) {
	if dir == "" {
		dir = r.cfg.Dir
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", nil, fmt.Errorf("resolve %s: %w", dir, err)
	}
	root, err := xcrc.FindRoot(abs)
	if errors.Is(err, xcrc.ErrNoProjectRoot) {
		return abs, xcrc.Settings{}, nil
	}
	if err != nil {
		return "", nil, err
	}
	settings, err := xcrc.Load(filepath.Join(root, xcrc.FileName))
	if err != nil {
		return "", nil, err
	}
	return root, settings, nil
}

// Start launches the requested action, replacing any running job.
func (r *Runner) Start(req schema.ActionRequest) (schema.ActionResponse, error) {
	root, settings, err := r.Project(req.Dir)
	if err != nil {
		return schema.ActionResponse{}, fmt.Errorf("load project: %w", err)
	}
	settings = settings.Merge(req.Settings)

	orchReq, err := r.builder.Request(req.Action, root, settings)
	if err != nil {
		return schema.ActionResponse{}, err
	}

	s, abort := r.sinkFor(req.Action, orchReq)
	h, err := r.orch.Start(orchReq, s)
	if err != nil {
		abort()
		r.logger.Warn("action not started", "action", req.Action, "err", err)
		return schema.ActionResponse{}, command.Hint(err)
	}
	return schema.ActionResponse{Handle: h.String(), Action: req.Action, Command: orchReq.Command}, nil
}

// Stop cancels the current job, if any.
func (r *Runner) Stop() {
	r.orch.CancelCurrent()
}

func (r *Runner) Status() schema.StatusResponse {
	state := r.orch.CurrentState()
	resp := schema.StatusResponse{State: string(state)}
	job, ok := r.orch.Current()
	if !ok {
		resp.Status = process.StatusText(state, "")
		return resp
	}
	resp.Status = process.StatusText(state, job.Action)
	resp.Job = &schema.JobInfo{
		Handle:    job.Handle.String(),
		Action:    job.Action,
		Command:   job.Command,
		Dir:       job.Dir,
		State:     string(job.State),
		ExitCode:  job.ExitCode,
		StartedAt: job.StartedAt.UnixMilli(),
	}
	return resp
}

func (r *Runner) DebugInfo(dir string) (command.DebugInfo, error) {
	root, settings, err := r.Project(dir)
	if err != nil {
		return command.DebugInfo{}, err
	}
	action := ""
	if job, ok := r.orch.Current(); ok {
		action = job.Action
	}
	return r.builder.CollectDebugInfo(root, settings, r.orch.CurrentState(), action), nil
}

// sinkFor builds the job's sink. abort releases it when Start rejects the
// job and OnExit will never come.
func (r *Runner) sinkFor(action string, req orchestrator.Request) (orchestrator.Sink, func()) {
	var sinks sink.Multi
	abort := func() {}
	if r.cfg.LogDir != "" {
		logFile, err := sink.NewLogFile(r.cfg.LogDir, action, req.Command, r.logger)
		if err != nil {
			r.logger.Warn("job log disabled", "log_dir", r.cfg.LogDir, "err", err)
		} else {
			r.logger.Info("writing job log", "path", logFile.Path())
			sinks = append(sinks, logFile)
			abort = logFile.Abort
		}
	}
	if r.cfg.Sinks != nil {
		if s := r.cfg.Sinks(action, req); s != nil {
			sinks = append(sinks, s)
		}
	}
	return sinks, abort
}
