// Package api exposes the runner's actions over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tendant/simple-xcede/internal/command"
	"github.com/tendant/simple-xcede/internal/orchestrator"
	"github.com/tendant/simple-xcede/pkg/schema"
)

// Controller is the part of runner.Runner the HTTP layer drives.
type Controller interface {
	Start(req schema.ActionRequest) (schema.ActionResponse, error)
	Stop()
	Status() schema.StatusResponse
	DebugInfo(dir string) (command.DebugInfo, error)
}

type Server struct {
	ctl    Controller
	logger *slog.Logger
}

func NewServer(ctl Controller, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{ctl: ctl, logger: logger}
}

// Router wires the routes:
//
//	GET  /status
//	POST /actions/{action}
//	POST /stop
//	GET  /debug?dir=
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/status", s.handleStatus)
	r.Post("/actions/{action}", s.handleAction)
	r.Post("/stop", s.handleStop)
	r.Get("/debug", s.handleDebug)
	return r
}

// GET /status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctl.Status())
}

// POST /actions/{action} with an optional ActionRequest body.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	var req schema.ActionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, schema.ActionResponse{Error: "invalid request body"})
			return
		}
	}
	req.Action = chi.URLParam(r, "action")

	resp, err := s.ctl.Start(req)
	if err != nil {
		status := statusFor(err)
		s.logger.Warn("action rejected", "action", req.Action, "status", status, "err", err)
		writeJSON(w, status, schema.ActionResponse{Action: req.Action, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

// POST /stop
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.ctl.Stop()
	w.WriteHeader(http.StatusNoContent)
}

// GET /debug
func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	info, err := s.ctl.DebugInfo(r.URL.Query().Get("dir"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, command.ErrUnknownAction):
		return http.StatusNotFound
	case errors.Is(err, orchestrator.ErrCommandNotFound):
		return http.StatusFailedDependency
	case errors.Is(err, orchestrator.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, orchestrator.ErrEmptyCommand), errors.Is(err, command.ErrInvalidSetting):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
