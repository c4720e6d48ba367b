package trader

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// APIServer provides an HTTP interface for the trading engine.
type APIServer struct {
	server *http.Server
	engine *Engine
	logger *zap.Logger
}

// NewAPIServer creates a new APIServer.
func NewAPIServer(engine *Engine, logger *zap.Logger) *APIServer {
	s := &APIServer{
		engine: engine,
		logger: logger.Named("api-server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.statusHandler)
	mux.HandleFunc("/health", s.healthHandler)
	if m := engine.deps.Metrics; m != nil {
		mux.Handle("/metrics", m.Handler())
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", engine.cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the routes, mainly for tests.
func (s *APIServer) Handler() http.Handler {
	return s.server.Handler
}

// Start runs the HTTP server in a new goroutine.
func (s *APIServer) Start() {
	s.logger.Info("Starting API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *APIServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.server.Shutdown(ctx)
}

func (s *APIServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := struct {
		UUID       string      `json:"uuid"`
		Name       string      `json:"name"`
		StartTime  string      `json:"start_time"`
		Uptime     string      `json:"uptime"`
		DryRun     bool        `json:"dry_run"`
		KillSwitch bool        `json:"kill_switch"`
		Channels   []string    `json:"channels"`
		LastCycle  CycleStatus `json:"last_cycle"`
	}{
		UUID:       s.engine.UUID,
		Name:       s.engine.Name,
		StartTime:  s.engine.StartTime.Format(time.RFC3339),
		Uptime:     time.Since(s.engine.StartTime).String(),
		DryRun:     s.engine.cfg.Trading.DryRun,
		KillSwitch: s.engine.cfg.Trading.KillSwitch,
		Channels:   make([]string, 0, len(s.engine.deps.Channels)),
		LastCycle:  s.engine.LastCycle(),
	}
	for _, ch := range s.engine.deps.Channels {
		status.Channels = append(status.Channels, ch.Platform())
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.logger.Error("Failed to write status response", zap.Error(err))
		http.Error(w, "Failed to encode status", http.StatusInternalServerError)
	}
}

func (s *APIServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}
