// Package httpapi serves the workflow agent over HTTP: start workflows, read
// tickets, channel history and snapshots, call actions, and expose metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/actions"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/logx"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/metrics"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/notify"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/statestore"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/ticket"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/version"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/workflow"
)

const (
	maxRequestBytes = 1 << 20
	defaultLogLimit = 100
)

// Runner starts one workflow.
type Runner interface {
	Run(ctx context.Context, userInput, channel string) *workflow.Run
}

// SnapshotLister reads the snapshot log.
type SnapshotLister interface {
	List(ctx context.Context, workflowID string) ([]statestore.Snapshot, error)
}

// Deps are the services the server exposes.
type Deps struct {
	Runner    Runner
	Tickets   ticket.Registry
	Notifier  notify.Notifier
	Snapshots SnapshotLister
	Actions   *actions.Registry
	Gatherer  prometheus.Gatherer
}

// Server is the HTTP API.
type Server struct {
	deps   Deps
	logger *logx.Logger
}

// NewServer creates a server over deps.
func NewServer(deps Deps) *Server {
	return &Server{deps: deps, logger: logx.NewLogger("httpapi")}
}

// RunRequest is the body of POST /v1/workflows.
type RunRequest struct {
	Text    string `json:"text"`
	Channel string `json:"channel,omitempty"`
}

// RegisterRoutes sets up HTTP routes for the API.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /v1/workflows", s.handleRunWorkflow)
	mux.HandleFunc("GET /v1/workflows/{id}/snapshots", s.handleSnapshots)
	mux.HandleFunc("GET /v1/tickets", s.handleSearchTickets)
	mux.HandleFunc("GET /v1/tickets/{id}", s.handleGetTicket)
	mux.HandleFunc("GET /v1/channels/{channel}/messages", s.handleMessages)
	mux.HandleFunc("POST /v1/actions/{server}/{action}", s.handleAction)
	mux.HandleFunc("GET /v1/logs", s.handleLogs)
	if s.deps.Gatherer != nil {
		mux.Handle("GET /metrics", metrics.Handler(s.deps.Gatherer))
	}
}

// Handler returns a mux with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return mux
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully within shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("🌐 Listening on http://%s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	//nolint:contextcheck // parent context is cancelled; shutdown needs a fresh one
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

func (s *Server) handleRunWorkflow(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	run := s.deps.Runner.Run(r.Context(), req.Text, req.Channel)
	s.logger.Info("Workflow %s finished via API: %s", run.ID, run.Status)
	s.writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.deps.Snapshots.List(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if snaps == nil {
		snaps = []statestore.Snapshot{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"snapshots": snaps, "count": len(snaps)})
}

func (s *Server) handleSearchTickets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	found, err := s.deps.Tickets.Search(r.Context(), q.Get("q"), queryInt(q.Get("limit"), ticket.DefaultSearchLimit))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tickets": found, "count": len(found)})
}

func (s *Server) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	t, err := s.deps.Tickets.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, ticket.ErrTicketNotFound) {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, t)
}

// handleMessages accepts the channel with or without its leading '#'.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	channel := r.PathValue("channel")
	if !strings.HasPrefix(channel, "#") {
		channel = "#" + channel
	}
	msgs, err := s.deps.Notifier.History(r.Context(), channel, queryInt(r.URL.Query().Get("limit"), notify.DefaultHistoryLimit))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"channel": channel, "messages": msgs, "count": len(msgs)})
}

// handleAction always answers 200 for a well-formed request; the action
// outcome, including unknown actions, is in the Result body.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	params := map[string]any{}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&params); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}
	}
	result := s.deps.Actions.Call(r.Context(), r.PathValue("server"), r.PathValue("action"), params)
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entries := logx.RecentEntries(q.Get("component"), queryInt(q.Get("limit"), defaultLogLimit))
	s.writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func queryInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
