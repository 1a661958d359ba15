// Package api exposes the run controller over HTTP: start, stop, and status
// for load-test runs, plus a websocket stream of live statistics. This is the
// boundary the browser UI talks to; the engine itself lives in the registry
// and runner packages.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Puppy4C/httprequest2/internal/config"
	"github.com/Puppy4C/httprequest2/internal/registry"
	"github.com/Puppy4C/httprequest2/internal/runner"
)

// Server serves the control API for a Registry.
type Server struct {
	reg          *registry.Registry
	log          *logrus.Logger
	pushInterval time.Duration
}

// NewServer creates a Server. logger may be nil, in which case the standard
// logrus logger is used.
func NewServer(reg *registry.Registry, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Server{
		reg:          reg,
		log:          logger,
		pushInterval: time.Second,
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/runs", s.handleStart)
	mux.HandleFunc("GET /api/runs", s.handleList)
	mux.HandleFunc("GET /api/runs/{id}", s.handleStatus)
	mux.HandleFunc("POST /api/runs/{id}/stop", s.handleStop)
	mux.HandleFunc("DELETE /api/runs/{id}", s.handleRemove)
	mux.HandleFunc("GET /api/runs/{id}/stream", s.handleStream)
	return mux
}

// ListenAndServe runs the API server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("control API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// startRequest is the JSON body accepted by POST /api/runs. Durations are in
// seconds to match what a form-driven UI submits.
type startRequest struct {
	Target          string  `json:"target"`
	Concurrency     int     `json:"concurrency"`
	DurationSeconds float64 `json:"duration_seconds"`
	TimeoutSeconds  float64 `json:"timeout_seconds,omitempty"`
	QueryParam      string  `json:"query_param,omitempty"`
}

func (req startRequest) runConfig() config.RunConfig {
	return config.RunConfig{
		TargetURL:   req.Target,
		Concurrency: req.Concurrency,
		Duration:    time.Duration(req.DurationSeconds * float64(time.Second)),
		Timeout:     time.Duration(req.TimeoutSeconds * float64(time.Second)),
		QueryParam:  req.QueryParam,
	}
}

// statusPayload is the response shape for status queries and stream pushes.
type statusPayload struct {
	RunID          string         `json:"run_id"`
	State          string         `json:"state"`
	TotalRequests  int64          `json:"total_requests"`
	SuccessCount   int64          `json:"success_count"`
	FailureCount   int64          `json:"failure_count"`
	AvgLatencyMs   float64        `json:"avg_latency_ms"`
	MinLatencyMs   float64        `json:"min_latency_ms"`
	MaxLatencyMs   float64        `json:"max_latency_ms"`
	P99LatencyMs   float64        `json:"p99_latency_ms"`
	RequestsPerSec float64        `json:"requests_per_sec"`
	ElapsedSeconds float64        `json:"elapsed_seconds"`
	Errors         map[string]int `json:"errors,omitempty"`
	StatusCodes    map[int]int64  `json:"status_codes,omitempty"`
	LastResponse   interface{}    `json:"last_response,omitempty"`
}

func buildStatusPayload(id string, status runner.Status) statusPayload {
	stats := status.Stats
	payload := statusPayload{
		RunID:          id,
		State:          status.State.String(),
		TotalRequests:  stats.Total,
		SuccessCount:   stats.Successes,
		FailureCount:   stats.Failures,
		AvgLatencyMs:   stats.MeanLatencyMs,
		MinLatencyMs:   stats.MinLatencyMs,
		MaxLatencyMs:   stats.MaxLatencyMs,
		P99LatencyMs:   stats.P99LatencyMs,
		RequestsPerSec: stats.RequestsPerSec,
		ElapsedSeconds: status.Elapsed.Seconds(),
		Errors:         stats.Errors,
		StatusCodes:    stats.StatusCodes,
	}
	if stats.LastResponse != nil {
		payload.LastResponse = stats.LastResponse
	}
	return payload
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	id, err := s.reg.Start(req.runConfig())
	if err != nil {
		var vErr config.ValidationError
		switch {
		case errors.As(err, &vErr):
			s.writeError(w, http.StatusBadRequest, vErr.Error())
		case errors.Is(err, registry.ErrAlreadyRunning):
			s.writeError(w, http.StatusConflict, "a run is already in progress")
		default:
			s.writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	s.log.WithFields(logrus.Fields{
		"run_id":      id,
		"target":      req.Target,
		"concurrency": req.Concurrency,
		"duration_s":  req.DurationSeconds,
	}).Info("run started")

	s.writeJSON(w, http.StatusCreated, map[string]string{"run_id": id, "status": "started"})
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	infos := s.reg.List()
	payloads := make([]statusPayload, 0, len(infos))
	for _, info := range infos {
		payloads = append(payloads, buildStatusPayload(info.ID, info.Status))
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"runs": payloads})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	status, err := s.reg.Status(id)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	s.writeJSON(w, http.StatusOK, buildStatusPayload(id, status))
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.reg.Stop(id); err != nil {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	s.log.WithField("run_id", id).Info("stop requested")
	s.writeJSON(w, http.StatusOK, map[string]string{"run_id": id, "status": "stopping"})
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := s.reg.Remove(id)
	switch {
	case errors.Is(err, registry.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "run not found")
	case errors.Is(err, registry.ErrAlreadyRunning):
		s.writeError(w, http.StatusConflict, "run is still active; stop it first")
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.WithError(err).Warn("write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, map[string]string{"error": msg})
}
