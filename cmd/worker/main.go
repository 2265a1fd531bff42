// cmd/worker/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tendant/simple-xcede/internal/api"
	"github.com/tendant/simple-xcede/internal/bus"
	"github.com/tendant/simple-xcede/internal/command"
	"github.com/tendant/simple-xcede/internal/orchestrator"
	"github.com/tendant/simple-xcede/internal/runner"
	"github.com/tendant/simple-xcede/pkg/schema"
)

func main() {
	_ = godotenv.Load()

	cfg, err := LoadConfig()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	logger.Info("worker starting", "nats_url", cfg.NATSURL, "subject", cfg.Subject, "http_addr", cfg.HTTPAddr, "project_dir", cfg.ProjectDir, "actions_file", cfg.ActionsFile, "log_dir", cfg.LogDir)

	catalog, err := command.LoadCatalog(cfg.ActionsFile)
	if err != nil {
		fatal(logger, "load actions", err, "actions_file", cfg.ActionsFile)
	}
	builder := command.NewBuilder(catalog)
	if path, err := builder.Require(); err != nil {
		logger.Warn("build cli unavailable, actions will be rejected", "err", err)
	} else {
		logger.Info("build cli found", "path", path)
	}

	nc, err := bus.Connect(cfg.NATSURL)
	if err != nil {
		fatal(logger, "connect to NATS", err, "nats_url", cfg.NATSURL)
	}
	logger.Info("connected to NATS", "nats_url", cfg.NATSURL)
	defer nc.Close()

	orch := orchestrator.New(
		orchestrator.WithLogger(logger),
		orchestrator.WithGracePeriod(cfg.GracePeriod),
		orchestrator.WithKillTimeout(cfg.KillTimeout),
	)
	unsubscribe := orch.Subscribe(func(change orchestrator.StateChange) {
		bus.PublishState(nc, cfg.Subject, change, logger)
	})
	defer unsubscribe()

	r := runner.New(orch, builder, runner.Config{
		Dir:    cfg.ProjectDir,
		LogDir: cfg.LogDir,
		Logger: logger,
		Sinks: func(action string, _ orchestrator.Request) orchestrator.Sink {
			return bus.NewSink(nc, cfg.Subject, action, logger)
		},
	})

	actions := cfg.Subject + schema.SuffixActions
	if _, err := nc.SubscribeJSON(actions, handleRequest(r, logger)); err != nil {
		fatal(logger, "subscribe actions", err, "subject", actions)
	}
	logger.Info("listening for actions", "subject", actions)

	var srv *http.Server
	if cfg.HTTPAddr != "" {
		srv = &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           api.NewServer(r, logger).Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				fatal(logger, "http server", err, "addr", cfg.HTTPAddr)
			}
		}()
		logger.Info("http api listening", "addr", cfg.HTTPAddr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	logger.Info("worker shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.KillTimeout+5*time.Second)
	defer cancel()
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", "err", err)
		}
	}
	if err := orch.Close(shutdownCtx); err != nil {
		logger.Warn("orchestrator close", "err", err)
	}
}

// handleRequest decodes an ActionRequest and replies with an ActionResponse.
func handleRequest(ctl api.Controller, logger *slog.Logger) func(context.Context, []byte) any {
	return func(_ context.Context, data []byte) any {
		var req schema.ActionRequest
		if err := json.Unmarshal(data, &req); err != nil {
			logger.Warn("invalid action request", "err", err)
			return schema.ActionResponse{Error: "invalid request: " + err.Error()}
		}

		if req.Stop {
			ctl.Stop()
			logger.Info("stop requested")
			return schema.ActionResponse{Action: "stop"}
		}
		if req.Action == "" {
			return schema.ActionResponse{Error: "missing action"}
		}

		resp, err := ctl.Start(req)
		if err != nil {
			return schema.ActionResponse{Action: req.Action, Error: err.Error()}
		}
		logger.Info("action started", "action", resp.Action, "handle", resp.Handle, "command", resp.Command)
		return resp
	}
}

func fatal(logger *slog.Logger, msg string, err error, attrs ...any) {
	attrs = append(attrs, "err", err)
	logger.Error(msg, attrs...)
	os.Exit(1)
}
