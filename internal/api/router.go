// Package api exposes the zone service over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/AlissonDuarte/itssafe-backend/internal/metrics"
	"github.com/AlissonDuarte/itssafe-backend/internal/service"
	"github.com/AlissonDuarte/itssafe-backend/internal/tilecache"
)

// Config holds the HTTP surface settings.
type Config struct {
	CORSOrigins  []string      `yaml:"cors_origins" mapstructure:"cors_origins"`
	RateLimit    float64       `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second per client; 0 disables
	RateBurst    int           `yaml:"rate_burst" mapstructure:"rate_burst"`
	AuthSecret   string        `yaml:"auth_secret" mapstructure:"auth_secret"` // HS256 key; empty disables auth
	RequestLimit time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy   bool          `yaml:"trust_proxy" mapstructure:"trust_proxy"`
}

// Deps are the collaborators behind the handlers. Memory, Metrics and Health
// may be nil.
type Deps struct {
	Zones   *service.ZoneService
	Memory  *tilecache.Memory
	Metrics *metrics.Metrics
	Health  func(ctx context.Context) error
}

// NewRouter builds the chi router with middleware and routes.
func NewRouter(d Deps, cfg Config) http.Handler {
	h := &handlers{deps: d}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(accessLog(d.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(corsOptions(cfg.CORSOrigins)))
	if cfg.RequestLimit > 0 {
		r.Use(middleware.Timeout(cfg.RequestLimit))
	}

	r.Get("/health", h.health)
	r.Handle("/metrics", d.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		if cfg.RateLimit > 0 {
			r.Use(newClientLimiter(cfg.RateLimit, cfg.RateBurst).middleware)
		}
		r.Get("/zones", h.zonesInBBox)
		r.Get("/zones/tiles/{z}/{x}/{y}", h.zonesForTile)
		r.Get("/cache/stats", h.cacheStats)
		r.With(requireToken(cfg.AuthSecret)).Get("/danger-zones", h.dangerZones)
	})
	return r
}

func corsOptions(origins []string) cors.Options {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Cache", "X-Tile-ID", "X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}
}
