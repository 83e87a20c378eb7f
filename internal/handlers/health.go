package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"lab-management-platform/internal/logger"
	"lab-management-platform/internal/store"
)

// Health statuses
const (
	HealthStatusHealthy   = "healthy"
	HealthStatusUnhealthy = "unhealthy"
)

// checkTimeout bounds each component check
const checkTimeout = 3 * time.Second

// ComponentHealth is the outcome of one component check
type ComponentHealth struct {
	Component string        `json:"component"`
	Status    string        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Latency   time.Duration `json:"latency_ns"`
	Critical  bool          `json:"critical"`
}

// IsHealthy reports whether the component passed its check
func (c *ComponentHealth) IsHealthy() bool {
	return c.Status == HealthStatusHealthy
}

// CheckFunc probes one component
type CheckFunc func(ctx context.Context) error

type registeredCheck struct {
	check    CheckFunc
	critical bool
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	logger *logger.Logger
	mu     sync.RWMutex
	checks map[string]registeredCheck
	now    func() time.Time
}

// NewHealthHandler creates a health handler with the store registered as a critical component
func NewHealthHandler(logger *logger.Logger, st store.Store) *HealthHandler {
	h := &HealthHandler{
		logger: logger,
		checks: make(map[string]registeredCheck),
		now:    time.Now,
	}
	h.RegisterHealthCheck("store", true, st.Ping)
	return h
}

// RegisterHealthCheck adds or replaces a component check. Failing critical
// components fail the readiness probe.
func (h *HealthHandler) RegisterHealthCheck(component string, critical bool, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[component] = registeredCheck{check: check, critical: critical}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string                      `json:"status"`
	Timestamp  time.Time                   `json:"timestamp"`
	Components map[string]*ComponentHealth `json:"components"`
}

// Status runs every registered check
func (h *HealthHandler) Status(ctx context.Context) map[string]*ComponentHealth {
	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	checks := make(map[string]registeredCheck, len(h.checks))
	for name, c := range h.checks {
		checks[name] = c
	}
	h.mu.RUnlock()
	sort.Strings(names)

	results := make(map[string]*ComponentHealth, len(names))
	for _, name := range names {
		c := checks[name]
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		started := h.now()
		err := c.check(checkCtx)
		cancel()

		result := &ComponentHealth{
			Component: name,
			Status:    HealthStatusHealthy,
			Latency:   h.now().Sub(started),
			Critical:  c.critical,
		}
		if err != nil {
			result.Status = HealthStatusUnhealthy
			result.Message = err.Error()
			h.logger.WithField("component", name).WithError(err).Warn("Health check failed")
		}
		results[name] = result
	}
	return results
}

// HandleHealthCheck handles the main health check endpoint
func (h *HealthHandler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	components := h.Status(r.Context())

	overallStatus := HealthStatusHealthy
	for _, component := range components {
		if !component.IsHealthy() {
			overallStatus = HealthStatusUnhealthy
			break
		}
	}

	response := HealthResponse{
		Status:     overallStatus,
		Timestamp:  h.now().UTC(),
		Components: components,
	}

	w.Header().Set("Content-Type", "application/json")
	if overallStatus != HealthStatusHealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	json.NewEncoder(w).Encode(response)
}

// HandleLivenessProbe handles Kubernetes liveness probe
func (h *HealthHandler) HandleLivenessProbe(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// HandleReadinessProbe fails while any critical component is unhealthy
func (h *HealthHandler) HandleReadinessProbe(w http.ResponseWriter, r *http.Request) {
	for _, component := range h.Status(r.Context()) {
		if component.Critical && !component.IsHealthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("Service Unavailable"))
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
