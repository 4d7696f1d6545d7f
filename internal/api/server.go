// Package api serves the bridge status and archived history over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"can-mqtt-bridge/internal/dbc"
	"can-mqtt-bridge/internal/display"
	"can-mqtt-bridge/internal/models"
	"can-mqtt-bridge/internal/mqtt"
	"can-mqtt-bridge/internal/pipeline"
)

// PipelineStats reports the read loop counters
type PipelineStats interface {
	Stats() pipeline.Stats
}

// BusStats reports the latest interface statistics
type BusStats interface {
	Latest() (models.SocketCANStats, bool)
}

// RowSource returns the newest display rows
type RowSource interface {
	Tail(n int) []display.Row
}

// MessageCatalog lists the loaded message definitions
type MessageCatalog interface {
	Source() string
	Messages() []dbc.MessageDefinition
}

// HistoryQuerier answers archived frame queries
type HistoryQuerier interface {
	Query(ctx context.Context, params models.QueryParams) ([]models.FrameRecord, error)
}

// PublisherStats reports MQTT publisher counters
type PublisherStats interface {
	Stats() mqtt.Stats
}

// Deps are the components the API reads from. Nil members disable the
// matching endpoint data.
type Deps struct {
	Pipeline  PipelineStats
	Bus       BusStats
	Rows      RowSource
	Messages  MessageCatalog
	History   HistoryQuerier
	Publisher PublisherStats
}

// Server represents the HTTP API server
type Server struct {
	server  *http.Server
	deps    Deps
	started time.Time
}

// NewServer creates a new API server instance
func NewServer(port int, deps Deps) *Server {
	s := &Server{deps: deps, started: time.Now()}

	mux := http.NewServeMux()
	s.setupRoutes(mux)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      loggingMiddleware(corsMiddleware(mux)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)

	mux.HandleFunc("/api/pipeline", s.handlePipeline)
	mux.HandleFunc("/api/bus", s.handleBus)
	mux.HandleFunc("/api/rows", s.handleRows)
	mux.HandleFunc("/api/messages", s.handleMessages)
	mux.HandleFunc("/api/history", s.handleHistory)
}

// Handler returns the routed handler with middleware
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// handleRoot returns API information
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	info := map[string]any{
		"name": "CAN MQTT Bridge API",
		"endpoints": map[string]string{
			"health":   "/health",
			"pipeline": "/api/pipeline",
			"bus":      "/api/bus",
			"rows":     "/api/rows?limit=50",
			"messages": "/api/messages",
			"history":  "/api/history?can_id=0x18FEF100&start_time=2024-01-01T00:00:00Z&end_time=2024-01-02T00:00:00Z&interface=can0&limit=100&offset=0",
		},
	}

	respondWithJSON(w, http.StatusOK, info)
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	services := map[string]string{"api": "up"}
	if s.deps.Pipeline != nil {
		services["pipeline"] = s.deps.Pipeline.Stats().State
	}
	if s.deps.Publisher != nil {
		if s.deps.Publisher.Stats().Connected {
			services["mqtt"] = "connected"
		} else {
			services["mqtt"] = "disconnected"
		}
	}
	if s.deps.History != nil {
		services["clickhouse"] = "enabled"
	}

	health := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now(),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"services":  services,
	}

	respondWithJSON(w, http.StatusOK, health)
}

// Start starts the API server. It returns nil after Stop.
func (s *Server) Start() error {
	slog.Info("starting HTTP API server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve API: %w", err)
	}
	return nil
}

// Stop gracefully stops the API server
func (s *Server) Stop(ctx context.Context) error {
	slog.Info("stopping API server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("http request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr, "duration", time.Since(start))
	})
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
