package middleware

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/cors"

	"github.com/nostalgiatan/see/internal/config"
)

// Chain bundles the ingress stages for the external listener. Stages
// disabled in configuration stay nil and Wrap skips them. Request-path
// evaluation order is fixed: MagicLink, Auth, IPFilter, CircuitBreaker,
// RateLimit, CORS. Magic links run before auth so a verified link can
// mark the request pre-authenticated.
type Chain struct {
	MagicLinks *MagicLinks
	Auth       *Auth
	IPFilter   *IPFilter
	Breaker    *CircuitBreaker
	Limiter    *RateLimiter

	cors func(http.Handler) http.Handler
}

// NewChain builds the stages the external listener configuration
// enables. CORS is always present.
func NewChain(cfg *config.Config, logger *slog.Logger) *Chain {
	ext := cfg.Network.External
	c := &Chain{cors: corsHandler(ext.CORSOrigins)}

	if ext.EnableMagicLink {
		c.MagicLinks = NewMagicLinks(cfg.MagicLink, logger)
	}
	if ext.EnableJWTAuth {
		c.Auth = NewAuth(cfg.Auth, logger)
	}
	if ext.EnableIPFilter {
		c.IPFilter = NewIPFilter(cfg.IPFilter, logger)
	}
	if ext.EnableCircuitBreaker {
		c.Breaker = NewCircuitBreaker(cfg.Breaker, logger)
	}
	if ext.EnableRateLimit {
		c.Limiter = NewRateLimiter(cfg.RateLimit, logger)
	}
	return c
}

func corsHandler(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}

// Wrap applies the enabled stages around next. The first stage in the
// evaluation order is the outermost wrapper, so it sees the request
// first.
func (c *Chain) Wrap(next http.Handler) http.Handler {
	h := c.cors(next)
	if c.Limiter != nil {
		h = c.Limiter.Middleware(h)
	}
	if c.Breaker != nil {
		h = c.Breaker.Middleware(h)
	}
	if c.IPFilter != nil {
		h = c.IPFilter.Middleware(h)
	}
	if c.Auth != nil {
		h = c.Auth.Middleware(h)
	}
	if c.MagicLinks != nil {
		h = c.MagicLinks.Middleware(h)
	}
	return h
}

// WrapInternal applies only CORS. The internal listener is loopback
// bound and trusted, so it skips the hardening stages.
func (c *Chain) WrapInternal(next http.Handler) http.Handler {
	return c.cors(next)
}
