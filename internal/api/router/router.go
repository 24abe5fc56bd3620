package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/salonbase/noshow-engine/internal/http/middleware"
	"github.com/salonbase/noshow-engine/internal/retention"
	"github.com/salonbase/noshow-engine/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	RetentionHandler   *retention.Handler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// Requests/sec and burst per client IP; zero disables rate limiting.
	RateLimit      float64
	RateLimitBurst int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}
	if cfg.RateLimit > 0 {
		r.Use(httpmiddleware.RateLimit(cfg.RateLimit, cfg.RateLimitBurst))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.RetentionHandler != nil {
		r.Mount("/v1", cfg.RetentionHandler.Routes())
	}

	return r
}
