// Package health provides HTTP liveness and readiness endpoints for the
// daemon. Readiness flips to true after the first completed evaluation
// cycle; the /status endpoint reports the outcome of the last cycle.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/supporttools/fleet-doctor/pkg/evaluator"
	"github.com/supporttools/fleet-doctor/pkg/logger"
)

// Server provides HTTP health check endpoints.
type Server struct {
	config       *Config
	httpServer   *http.Server
	mu           sync.RWMutex
	started      bool
	healthy      bool
	ready        bool
	lastStats    evaluator.CycleStats
	lastCycle    time.Time
	startTime    time.Time
	healthChecks []HealthCheck
}

// Config contains configuration for the health server.
type Config struct {
	// Enabled controls whether the health server is running
	Enabled bool

	// BindAddress is the address to bind to (default: 0.0.0.0)
	BindAddress string

	// Port is the port to listen on (default: 8080)
	Port int

	// ReadTimeout for HTTP requests
	ReadTimeout time.Duration

	// WriteTimeout for HTTP responses
	WriteTimeout time.Duration
}

// HealthCheck represents a health check function.
type HealthCheck struct {
	Name  string
	Check func() error
}

// HealthResponse represents the JSON response for /healthz endpoint.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
	Checks    []Check   `json:"checks,omitempty"`
}

// Check represents an individual health check result.
type Check struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// ReadinessResponse represents the JSON response for /ready endpoint.
type ReadinessResponse struct {
	Ready     bool      `json:"ready"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message,omitempty"`
}

// StatusResponse represents the JSON response for /status endpoint.
type StatusResponse struct {
	Healthy        bool           `json:"healthy"`
	Ready          bool           `json:"ready"`
	Uptime         string         `json:"uptime"`
	LastCycle      time.Time      `json:"lastCycle"`
	HostsEvaluated int            `json:"hostsEvaluated"`
	ServicesTotal  int            `json:"servicesTotal"`
	StatesByName   map[string]int `json:"statesByName,omitempty"`
}

// NewServer creates a new health server with the given configuration.
func NewServer(config *Config) (*Server, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if config.BindAddress == "" {
		config.BindAddress = "0.0.0.0"
	}
	if config.Port == 0 {
		config.Port = 8080
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = 5 * time.Second
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = 10 * time.Second
	}

	return &Server{
		config:       config,
		healthy:      true,
		ready:        false,
		startTime:    time.Now(),
		healthChecks: make([]HealthCheck, 0),
	}, nil
}

// Start starts the health server.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("health server already started")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/ready", s.handleReady)
	mux.HandleFunc("/status", s.handleStatus)

	addr := fmt.Sprintf("%s:%d", s.config.BindAddress, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	go func() {
		logger.Infof("Starting health server on %s", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("Health server failed: %v", err)
		}
	}()

	s.started = true
	return nil
}

// Stop stops the health server gracefully.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown health server: %w", err)
	}

	s.started = false
	return nil
}

// RecordCycle updates the last-cycle view and marks the daemon ready.
func (s *Server) RecordCycle(stats evaluator.CycleStats) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastStats = stats
	s.lastCycle = time.Now()
	s.ready = true
}

// SetHealthy sets the overall health status.
func (s *Server) SetHealthy(healthy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthy = healthy
}

// SetReady sets the readiness status.
func (s *Server) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// AddHealthCheck adds a custom health check.
func (s *Server) AddHealthCheck(name string, check func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthChecks = append(s.healthChecks, HealthCheck{Name: name, Check: check})
}

// handleHealthz handles the /healthz endpoint (liveness probe).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	checks := make([]Check, 0, len(s.healthChecks))
	allHealthy := s.healthy

	for _, hc := range s.healthChecks {
		check := Check{Name: hc.Name, Status: "ok"}
		if err := hc.Check(); err != nil {
			check.Status = "failed"
			check.Error = err.Error()
			allHealthy = false
		}
		checks = append(checks, check)
	}

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Checks:    checks,
	}

	w.Header().Set("Content-Type", "application/json")
	if !allHealthy {
		response.Status = "unhealthy"
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(response)
}

// handleReady handles the /ready endpoint (readiness probe).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	response := ReadinessResponse{
		Ready:     s.ready,
		Timestamp: time.Now(),
	}

	w.Header().Set("Content-Type", "application/json")
	if !s.ready {
		response.Message = "Not ready: no evaluation cycle completed yet"
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		response.Message = "Ready"
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(response)
}

// handleStatus handles the /status endpoint (detailed status).
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	states := make(map[string]int, len(s.lastStats.StatesByName))
	for state, count := range s.lastStats.StatesByName {
		states[state.String()] = count
	}

	response := StatusResponse{
		Healthy:        s.healthy,
		Ready:          s.ready,
		Uptime:         time.Since(s.startTime).Round(time.Second).String(),
		LastCycle:      s.lastCycle,
		HostsEvaluated: s.lastStats.HostsEvaluated,
		ServicesTotal:  s.lastStats.ServicesTotal,
		StatesByName:   states,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}
