package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salonbase/noshow-engine/internal/intervention"
	"github.com/salonbase/noshow-engine/internal/retention"
	"github.com/salonbase/noshow-engine/pkg/logging"
)

func TestHealthz(t *testing.T) {
	h := New(&Config{Logger: logging.New("error")})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := New(&Config{
		Logger:         logging.New("error"),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRetentionRoutesMounted(t *testing.T) {
	logger := logging.New("error")
	engine := intervention.NewEngine(intervention.DefaultRules(), nil, nil, logger)
	h := New(&Config{
		Logger:           logger,
		RetentionHandler: retention.NewHandler(nil, nil, nil, engine, logger),
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/rules", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "critical_confirmation")
}

func TestUnknownRouteIs404(t *testing.T) {
	h := New(&Config{Logger: logging.New("error")})

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimitRejectsBursts(t *testing.T) {
	h := New(&Config{Logger: logging.New("error"), RateLimit: 1, RateLimitBurst: 2})

	var last int
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("X-Real-Ip", "10.1.2.3")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		last = rec.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}
