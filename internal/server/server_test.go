package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lab-management-platform/internal/config"
	"lab-management-platform/internal/handlers"
	"lab-management-platform/internal/logger"
	"lab-management-platform/internal/models"
	"lab-management-platform/internal/repositories"
	"lab-management-platform/internal/services"
	"lab-management-platform/internal/store/memory"
)

func TestServerRoutes(t *testing.T) {
	log := logger.NewDiscardLogger()
	registry := prometheus.NewRegistry()
	st := memory.NewStore()
	access := services.NewAccessService(log, st, repositories.NewSet(st), models.NewValidationService(), services.NewAccessMetrics(registry))
	_, err := access.CreateOrganization(context.Background(), "admin", &models.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)

	srv := NewServer(
		&config.Config{Server: config.ServerConfig{Port: "0"}},
		log,
		handlers.NewHealthHandler(log, st),
		registry,
	)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "lab_access_operations_total")

	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
