// Package httpapi exposes the engine's HTTP surface: the conversation
// websocket, live-session hint and scenario endpoints, health probes, and
// Prometheus metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/malangee/ai-engine/internal/bridge"
	"github.com/malangee/ai-engine/internal/health"
	"github.com/malangee/ai-engine/internal/hint"
	"github.com/malangee/ai-engine/internal/observe"
	"github.com/malangee/ai-engine/internal/realtime"
)

// recentContextLimit is how many trailing transcript messages feed the hint
// generator.
const recentContextLimit = 10

// HintGenerator produces next-utterance suggestions from a transcript slice.
// *hint.Generator satisfies it.
type HintGenerator interface {
	Generate(ctx context.Context, messages []bridge.Message, scenario bridge.Scenario) ([]string, error)
}

// ServerConfig holds the collaborators for a Server. Registry and Dialer are
// required; the rest are optional.
type ServerConfig struct {
	Registry   *bridge.Registry
	Dialer     bridge.UpstreamDialer
	Recorder   bridge.Recorder
	History    bridge.HistoryFetcher
	Hints      HintGenerator
	SessionCfg realtime.SessionConfig
	Metrics    *observe.Metrics
	Health     *health.Handler
}

// Server routes HTTP traffic to the bridge and its collaborators.
type Server struct {
	registry   *bridge.Registry
	dialer     bridge.UpstreamDialer
	recorder   bridge.Recorder
	history    bridge.HistoryFetcher
	hints      HintGenerator
	sessionCfg realtime.SessionConfig
	metrics    *observe.Metrics
	health     *health.Handler
}

// NewServer creates a Server from cfg.
func NewServer(cfg ServerConfig) *Server {
	m := cfg.Metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}
	h := cfg.Health
	if h == nil {
		h = health.New()
	}
	return &Server{
		registry:   cfg.Registry,
		dialer:     cfg.Dialer,
		recorder:   cfg.Recorder,
		history:    cfg.History,
		hints:      cfg.Hints,
		sessionCfg: cfg.SessionCfg,
		metrics:    m,
		health:     h,
	}
}

// Router assembles the chi router with all routes and middleware.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(observe.Middleware(s.metrics))

	s.health.Register(r)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/ws/conversation", s.handleConversation)
	r.Route("/v1/sessions/{id}", func(r chi.Router) {
		r.Get("/hints", s.handleHints)
		r.Post("/scenario-complete", s.handleScenarioComplete)
	})

	return r
}

// handleConversation upgrades the request to a websocket and runs one bridged
// session for the life of the connection.
func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sessionID := q.Get("session_id")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	scenario := bridge.Scenario{
		Title:   q.Get("scenario_title"),
		Place:   q.Get("scenario_place"),
		Partner: q.Get("scenario_partner"),
		Goal:    q.Get("scenario_goal"),
	}

	client, err := acceptClient(w, r)
	if err != nil {
		slog.Warn("httpapi: websocket accept failed", "err", err)
		return
	}

	handler := bridge.NewHandler(bridge.HandlerConfig{
		SessionID: sessionID,
		OwnerID:   q.Get("owner_id"),
		Client:    client,
		Upstream:  s.dialer,
		Registry:  s.registry,
		Recorder:  s.recorder,
		History:   s.history,
		Config:    s.sessionCfg,
		Scenario:  scenario,
		Metrics:   s.metrics,
	})

	report, err := handler.Run(r.Context())
	if err != nil {
		slog.Error("httpapi: session failed to start", "session_id", sessionID, "err", err)
		return
	}
	if report != nil {
		slog.Info("httpapi: session report ready",
			"session_id", sessionID,
			"messages", len(report.Messages),
			"duration", report.TotalDuration,
		)
	}
}

// handleHints returns up to three suggested responses for a live session.
func (s *Server) handleHints(w http.ResponseWriter, r *http.Request) {
	if s.hints == nil {
		writeError(w, http.StatusNotImplemented, "hints are not enabled")
		return
	}

	id := chi.URLParam(r, "id")
	handler := s.registry.Get(id)
	if handler == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	start := time.Now()
	hints, err := s.hints.Generate(r.Context(), handler.RecentContext(recentContextLimit), handler.Scenario())
	s.metrics.HintDuration.Record(r.Context(), time.Since(start).Seconds())
	if err != nil {
		slog.Warn("httpapi: hint generation failed", "session_id", id, "err", err)
		if errors.Is(err, hint.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "hint generation temporarily unavailable")
			return
		}
		writeError(w, http.StatusBadGateway, "hint generation failed")
		return
	}

	if hints == nil {
		hints = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"hints": hints})
}

// handleScenarioComplete records that the learner reached the scenario goal.
func (s *Server) handleScenarioComplete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	handler := s.registry.Get(id)
	if handler == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	handler.MarkScenarioCompleted()
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
