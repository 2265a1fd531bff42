// cmd/xcede-runner runs one xcede action in the current project and streams
// its output to the terminal. Ctrl-C stops the job.
//
// Usage:
//
//	./xcede-runner build
//	./xcede-runner -dir ~/src/App -log-dir ./logs build-and-run
//	./xcede-runner -set scheme=AppTests test
//	./xcede-runner debug
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tendant/simple-xcede/internal/command"
	"github.com/tendant/simple-xcede/internal/orchestrator"
	"github.com/tendant/simple-xcede/internal/runner"
	"github.com/tendant/simple-xcede/internal/sink"
	"github.com/tendant/simple-xcede/internal/xcrc"
	"github.com/tendant/simple-xcede/pkg/schema"
)

// Exit statuses for failures that happen before a job exits on its own.
const (
	exitUsage       = 2
	exitNotFound    = 127
	exitInterrupted = 130
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type settingFlags map[string]string

func (s settingFlags) String() string {
	return fmt.Sprint(map[string]string(s))
}

func (s settingFlags) Set(value string) error {
	key, val, ok := strings.Cut(value, "=")
	if !ok || strings.TrimSpace(key) == "" {
		return fmt.Errorf("expected key=value, got %q", value)
	}
	s[strings.TrimSpace(key)] = val
	return nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("xcede-runner", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dir := fs.String("dir", ".", "Project directory (the nearest .xcrc above it is used)")
	xcrcPath := fs.String("xcrc", "", "Settings file to apply over the project's .xcrc")
	actionsFile := fs.String("actions", "", "YAML actions file (default: built-in actions)")
	logDir := fs.String("log-dir", "", "Write a log file per job to this directory")
	verbose := fs.Bool("v", false, "Verbose output")
	overrides := settingFlags{}
	fs.Var(overrides, "set", "Override a setting, key=value (repeatable)")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: xcede-runner [flags] <build|run|build-and-run|test|debug>\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return exitUsage
	}
	action := fs.Arg(0)

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	catalog, err := command.LoadCatalog(*actionsFile)
	if err != nil {
		fmt.Fprintf(stderr, "Error: load actions: %v\n", err)
		return 1
	}

	settings := xcrc.Settings{}
	if *xcrcPath != "" {
		if settings, err = xcrc.Load(*xcrcPath); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}
	settings = settings.Merge(xcrc.Settings(overrides))

	exited := make(chan int, 1)
	orch := orchestrator.New(orchestrator.WithLogger(logger))
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = orch.Close(closeCtx)
	}()

	r := runner.New(orch, command.NewBuilder(catalog), runner.Config{
		Dir:    *dir,
		LogDir: *logDir,
		Logger: logger,
		Sinks: func(action string, _ orchestrator.Request) orchestrator.Sink {
			return sink.Multi{
				sink.NewWriter(stdout, stderr, action),
				orchestrator.SinkFuncs{Exit: func(code int) { exited <- code }},
			}
		},
	})

	if action == "debug" {
		info, err := r.DebugInfo("")
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		for _, line := range info.Lines() {
			fmt.Fprintln(stdout, line)
		}
		return 0
	}

	resp, err := r.Start(schema.ActionRequest{Action: action, Settings: settings})
	switch {
	case errors.Is(err, command.ErrUnknownAction):
		fmt.Fprintf(stderr, "Error: %v (available: %s, debug)\n", err, strings.Join(catalog.Names(), ", "))
		return exitUsage
	case errors.Is(err, command.ErrInvalidSetting):
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	case errors.Is(err, orchestrator.ErrCommandNotFound):
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitNotFound
	case err != nil:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	logger.Debug("job started", "handle", resp.Handle, "command", resp.Command)

	var code int
	select {
	case code = <-exited:
	case <-ctx.Done():
		r.Stop()
		code = <-exited
	}
	return exitStatus(code)
}

func exitStatus(code int) int {
	switch code {
	case orchestrator.ExitCancelled:
		return exitInterrupted
	case orchestrator.ExitSpawnFailure:
		return 1
	default:
		return code
	}
}
