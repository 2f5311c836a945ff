package transport

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oselabs/webrelay/internal/classifier"
	"github.com/oselabs/webrelay/internal/events"
	"github.com/oselabs/webrelay/internal/monitor"
)

// ServerConfig holds configuration for the relay HTTP server.
type ServerConfig struct {
	Bind   string
	Port   int
	APIKey string
}

// Server is the relay's HTTP surface. It accepts dispatch requests from
// the CLI, event reports from any actor, serves the monitor's query
// endpoints and fans notifications out over the websocket hub. It is
// safe for concurrent use.
type Server struct {
	mu      sync.RWMutex
	config  ServerConfig
	mon     *monitor.Monitor
	bus     events.Bus
	hub     *Hub
	router  *chi.Mux
	server  *http.Server
	logger  *slog.Logger
	unsub   func()
	upgrade websocket.Upgrader
	feed    *classifier.SnapshotFeed

	trainingMu sync.Mutex
	training   map[string]string // website -> session id
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the logger.
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = l
	}
}

// WithSignalFeed enables the signal ingestion endpoint, pushing probe
// snapshots into the given feed for the server-side classifier.
func WithSignalFeed(feed *classifier.SnapshotFeed) ServerOption {
	return func(s *Server) {
		s.feed = feed
	}
}

// NewServer creates a relay server around the given monitor and bus.
func NewServer(cfg ServerConfig, mon *monitor.Monitor, bus events.Bus, opts ...ServerOption) *Server {
	s := &Server{
		config:   cfg,
		mon:      mon,
		bus:      bus,
		logger:   slog.Default(),
		router:   chi.NewRouter(),
		training: make(map[string]string),
		upgrade: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	s.hub = NewHub(s.logger)
	s.setupRoutes()

	// Everything the monitor publishes goes out to the watchers.
	if bus != nil {
		s.unsub = bus.SubscribeAll(func(n events.Notification) {
			s.hub.Broadcast(n)
		})
	}

	return s
}

// setupRoutes configures the HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", promhttp.Handler())
	s.router.Get("/ws", s.handleWS)

	s.router.Group(func(r chi.Router) {
		r.Use(s.requireAPIKey)
		r.Post("/api/dispatch", s.handleDispatch)
		r.Post("/api/events", s.handleEventReport)
		if s.feed != nil {
			r.Post("/api/signals", s.handleSignal)
		}
		r.Get("/api/health", s.handleHealthReport)
		r.Get("/api/history", s.handleHistory)
		r.Post("/api/bottlenecks/{id}/resolve", s.handleResolve)
		r.Post("/api/training/enable", s.handleTrainingEnable)
	})
}

// Handler returns the HTTP handler for testing purposes.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start runs the HTTP server until it fails or is shut down.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Bind, s.config.Port)

	s.mu.Lock()
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
		BaseContext: func(l net.Listener) context.Context {
			return ctx
		},
	}
	server := s.server
	s.mu.Unlock()

	s.logger.Info("relay server listening", "addr", addr)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error; %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server and the hub.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.unsub != nil {
		s.unsub()
	}
	s.hub.Close()

	s.mu.RLock()
	server := s.server
	s.mu.RUnlock()

	if server == nil {
		return nil
	}

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown http server; %w", err)
	}

	return nil
}

// requireAPIKey enforces bearer auth when an API key is configured.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.APIKey == "" {
			next.ServeHTTP(w, r)
			return
		}
		got := r.Header.Get("Authorization")
		want := "Bearer " + s.config.APIKey
		if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// handleDispatch validates a dispatch request, records the dispatch
// event and relays the command to connected probes over the hub.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var req DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, DispatchAck{Error: "malformed dispatch request"})
		return
	}

	intent, err := DecodeIntent(req.Message)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, DispatchAck{
			CorrelationID: req.Message.CorrelationID,
			Error:         err.Error(),
		})
		return
	}

	correlationID := req.Message.CorrelationID
	if correlationID == "" {
		correlationID = events.NewCorrelationID()
	}

	ev := events.NewEvent(events.TypeDispatch, correlationID, events.ActorCLI)
	ev.Target = events.ActorProbe
	ev.Status = "dispatched"
	ev.Payload = map[string]any{"action": string(intent.Action())}
	s.mon.RecordEvent(r.Context(), ev)

	// Forward the command to connected probes.
	s.hub.Broadcast(map[string]any{
		"kind":    "command",
		"target":  req.Target,
		"message": req.Message,
	})

	writeJSON(w, http.StatusAccepted, DispatchAck{
		CorrelationID: correlationID,
		Accepted:      true,
	})
}

// handleEventReport accepts an integration event from any actor.
// Malformed reports are rejected here and never reach the registries.
func (s *Server) handleEventReport(w http.ResponseWriter, r *http.Request) {
	var report EventReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed event report"})
		return
	}

	ev, err := DecodeEventReport(report)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	s.mon.RecordEvent(r.Context(), ev)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

// handleSignal ingests one raw signal snapshot from the browser probe.
// Snapshots are classifier input, not integration events; they feed the
// snapshot feed and never touch the monitor directly.
func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	var snap classifier.SignalSnapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed signal snapshot"})
		return
	}

	s.feed.Push(snap)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleHealthReport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.mon.HealthReport())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	f := monitor.Filter{
		Source: r.URL.Query().Get("source"),
		Target: r.URL.Query().Get("target"),
		Type:   events.EventType(r.URL.Query().Get("type")),
	}
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "since must be RFC3339"})
			return
		}
		f.Since = since
	}
	if f.Type != "" && !f.Type.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("unknown event type %q", f.Type)})
		return
	}

	history := s.mon.EventHistory(f)
	out := make([]EventReport, 0, len(history))
	for _, ev := range history {
		out = append(out, EncodeEventReport(ev))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleTrainingEnable opens the training session for a website, or
// returns the existing one. Sessions live in memory for the relay's
// lifetime. There is no pattern store behind the relay yet, so the
// pattern count always reports zero.
func (s *Server) handleTrainingEnable(w http.ResponseWriter, r *http.Request) {
	var req TrainingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed training request"})
		return
	}
	if req.Website == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "training request requires a website"})
		return
	}

	correlationID := req.CorrelationID
	if correlationID == "" {
		correlationID = events.NewCorrelationID()
	}

	s.trainingMu.Lock()
	session, ok := s.training[req.Website]
	if !ok {
		session = uuid.NewString()
		s.training[req.Website] = session
	}
	s.trainingMu.Unlock()

	ev := events.NewEvent(events.TypeProcessed, correlationID, events.ActorRelay)
	ev.Status = "training_enabled"
	ev.Payload = map[string]any{"website": req.Website, "session_id": session}
	s.mon.RecordEvent(r.Context(), ev)

	writeJSON(w, http.StatusOK, TrainingAck{
		SessionID:     session,
		Website:       req.Website,
		CorrelationID: correlationID,
	})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	resolved := s.mon.ResolveBottleneck(r.Context(), id)
	writeJSON(w, http.StatusOK, map[string]bool{"resolved": resolved})
}

// handleWS upgrades a watcher connection and hands it to the hub.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrade.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	s.hub.Serve(r.Context(), conn)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
