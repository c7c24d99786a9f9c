package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"insights-filter/internal/config"
	"insights-filter/internal/insights/insights_api"
	"insights-filter/internal/insights/loader"
	"insights-filter/internal/kafka"
	"insights-filter/internal/logger"
	"insights-filter/internal/session"
)

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := config.Load()
	cfg.CORS.AllowedOrigins = []string{"https://dashboard.example.com"}
	log := logger.NewWithWriter(io.Discard)
	h := insights_api.NewHandler(loader.New(loader.Options{Logger: log}), session.NewStore(time.Hour, nil, log), kafka.NoopPublisher{}, log, 1<<20)
	return newRouter(cfg, h, log)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	r := testRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestRouter_APIMountedAndCORS(t *testing.T) {
	r := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/insights/tables/unknown", nil)
	req.Header.Set("Origin", "https://dashboard.example.com")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "https://dashboard.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSetupPublisher_Modes(t *testing.T) {
	log := logger.NewWithWriter(io.Discard)
	cfg := config.Load()

	cfg.Kafka.Enabled = false
	_, ok := setupPublisher(t.Context(), cfg, log).(kafka.NoopPublisher)
	assert.True(t, ok)

	cfg.Kafka.Enabled = true
	cfg.Kafka.MockMode = true
	_, ok = setupPublisher(t.Context(), cfg, log).(*kafka.MockProducer)
	assert.True(t, ok)
}
