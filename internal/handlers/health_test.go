package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lab-management-platform/internal/logger"
	"lab-management-platform/internal/store/memory"
)

func TestHealthCheckHealthy(t *testing.T) {
	handler := NewHealthHandler(logger.NewDiscardLogger(), memory.NewStore())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	handler.HandleHealthCheck(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var response HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, HealthStatusHealthy, response.Status)
	require.Contains(t, response.Components, "store")
	assert.True(t, response.Components["store"].Critical)
}

func TestHealthCheckUnhealthyComponent(t *testing.T) {
	handler := NewHealthHandler(logger.NewDiscardLogger(), memory.NewStore())
	handler.RegisterHealthCheck("parameters", false, func(context.Context) error {
		return errors.New("throttled")
	})

	w := httptest.NewRecorder()
	handler.HandleHealthCheck(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var response HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, HealthStatusUnhealthy, response.Status)
	assert.Equal(t, "throttled", response.Components["parameters"].Message)

	// Non-critical failures leave the instance ready.
	w = httptest.NewRecorder()
	handler.HandleReadinessProbe(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadinessFailsOnCriticalComponent(t *testing.T) {
	handler := NewHealthHandler(logger.NewDiscardLogger(), memory.NewStore())
	handler.RegisterHealthCheck("store", true, func(context.Context) error {
		return errors.New("connection refused")
	})

	w := httptest.NewRecorder()
	handler.HandleReadinessProbe(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "Service Unavailable", w.Body.String())
}

func TestLivenessProbe(t *testing.T) {
	handler := NewHealthHandler(logger.NewDiscardLogger(), memory.NewStore())

	w := httptest.NewRecorder()
	handler.HandleLivenessProbe(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}
