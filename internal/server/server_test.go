package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucifer2f/sld-design-sub001/internal/api"
	"github.com/lucifer2f/sld-design-sub001/internal/config"
	"github.com/lucifer2f/sld-design-sub001/internal/importer"
	"github.com/lucifer2f/sld-design-sub001/internal/metrics"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	m, err := metrics.NewImportMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	c, err := importer.NewCoordinator(importer.Options{Metrics: m})
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.Server.DevMode = true
	return NewServer(cfg, api.NewHandler(c, nil, nil), m.Registry(), nil)
}

func TestServer_Routes(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/import", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sldimport_")

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
