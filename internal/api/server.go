// Package api serves the HTTP surface on up to two listeners: a trusted
// internal listener that binds loopback and carries the full route set,
// and a hardened external listener whose requests traverse the ingress
// middleware chain and which hides the administrative routes.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/nostalgiatan/see/internal/cache"
	"github.com/nostalgiatan/see/internal/config"
	"github.com/nostalgiatan/see/internal/engine"
	"github.com/nostalgiatan/see/internal/middleware"
	"github.com/nostalgiatan/see/internal/observability"
	"github.com/nostalgiatan/see/internal/rss"
	"github.com/nostalgiatan/see/internal/search"
)

// Server owns both HTTP listeners and their route tables.
type Server struct {
	cfg       *config.Config
	searcher  search.SearchInterface
	registry  *engine.Registry
	store     cache.Store  // nil when caching is disabled
	feeds     *rss.Service // nil when RSS is disabled
	links     *middleware.MagicLinks
	chain     *middleware.Chain
	collector *observability.Collector
	logger    *slog.Logger

	internalMux *http.ServeMux
	externalMux *http.ServeMux

	internalSrv  *http.Server
	externalSrv  *http.Server
	internalAddr string
	externalAddr string
	errs         chan error
}

// NewServer wires the handlers, the ingress chain, and the metrics
// hooks. store and feeds may be nil; their endpoints then answer 503.
func NewServer(cfg *config.Config, searcher search.SearchInterface, registry *engine.Registry, store cache.Store, feeds *rss.Service, collector *observability.Collector, logger *slog.Logger) *Server {
	chain := middleware.NewChain(cfg, logger)

	// The mint endpoint and the verifying middleware share one token
	// store, otherwise minted links would never verify.
	links := chain.MagicLinks
	if links == nil {
		links = middleware.NewMagicLinks(cfg.MagicLink, logger)
	}

	s := &Server{
		cfg:       cfg,
		searcher:  searcher,
		registry:  registry,
		store:     store,
		feeds:     feeds,
		links:     links,
		chain:     chain,
		collector: collector,
		logger:    logger.With("component", "api"),
		errs:      make(chan error, 2),
	}

	if chain.Limiter != nil {
		chain.Limiter.OnLimited(collector.RecordRateLimited)
	}
	if chain.Breaker != nil {
		chain.Breaker.OnTrip(collector.RecordBreakerTrip)
	}
	if chain.IPFilter != nil {
		chain.IPFilter.OnBlocked(collector.RecordIPBlocked)
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.internalMux = http.NewServeMux()
	s.externalMux = http.NewServeMux()

	for _, mux := range []*http.ServeMux{s.internalMux, s.externalMux} {
		mux.HandleFunc("GET /{$}", s.handleIndex)
		mux.HandleFunc("GET /favicon.ico", s.handleFavicon)
		mux.HandleFunc("GET /api/search", s.handleSearch)
		mux.HandleFunc("POST /api/search", s.handleSearchPost)
		mux.HandleFunc("GET /api/engines", s.handleEngines)
		mux.HandleFunc("GET /api/rss/feeds", s.handleRSSFeeds)
		mux.HandleFunc("POST /api/rss/fetch", s.handleRSSFetch)
		mux.HandleFunc("GET /api/stats", s.handleStats)
		mux.HandleFunc("GET /api/health", s.handleHealth)
		mux.HandleFunc("GET /health", s.handleHealth)
		mux.HandleFunc("GET /api/version", s.handleVersion)
		mux.HandleFunc("GET /api/metrics", s.handleMetrics)
	}

	// Administrative routes never leave the internal listener.
	s.internalMux.HandleFunc("GET /api/metrics/realtime", s.handleRealtimeMetrics)
	s.internalMux.HandleFunc("POST /api/rss/feeds/add", s.handleRSSFeedAdd)
	s.internalMux.HandleFunc("POST /api/rss/feeds/remove", s.handleRSSFeedRemove)
	s.internalMux.HandleFunc("GET /api/cache/stats", s.handleCacheStats)
	s.internalMux.HandleFunc("POST /api/cache/clear", s.handleCacheClear)
	s.internalMux.HandleFunc("POST /api/cache/cleanup", s.handleCacheCleanup)
	s.internalMux.HandleFunc("POST /api/magic-link/generate", s.handleMagicLinkGenerate)
}

// InternalHandler returns the internal listener's handler: the full
// route set behind CORS and request metrics only.
func (s *Server) InternalHandler() http.Handler {
	return s.collector.Middleware(s.chain.WrapInternal(s.internalMux))
}

// ExternalHandler returns the hardened handler. Metrics wrap the chain
// so rejected requests are counted too.
func (s *Server) ExternalHandler() http.Handler {
	return s.collector.Middleware(s.chain.Wrap(s.externalMux))
}

// MagicLinks exposes the shared token store.
func (s *Server) MagicLinks() *middleware.MagicLinks {
	return s.links
}

// InternalAddr returns the bound internal address, or "" before Start.
// Useful when the configured port is 0.
func (s *Server) InternalAddr() string { return s.internalAddr }

// ExternalAddr returns the bound external address, or "" before Start.
func (s *Server) ExternalAddr() string { return s.externalAddr }

// Start binds the listeners the network mode calls for and begins
// serving. A bind failure is returned immediately; runtime serve errors
// arrive on Errs.
func (s *Server) Start() error {
	mode := s.cfg.Network.Mode
	internal := mode == config.ModeInternal || (mode == config.ModeDual && s.cfg.Network.Internal.Enabled)
	external := mode == config.ModeExternal || (mode == config.ModeDual && s.cfg.Network.External.Enabled)

	if internal {
		if err := s.startInternal(); err != nil {
			return err
		}
	}
	if external {
		if err := s.startExternal(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) startInternal() error {
	cfg := s.cfg.Network.Internal
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("internal listener %s: %w", addr, err)
	}

	s.internalSrv = &http.Server{
		Handler:           s.InternalHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.internalAddr = ln.Addr().String()
	s.logger.Info("internal listener started", "addr", s.internalAddr)
	go func() { s.report("internal listener", s.internalSrv.Serve(ln)) }()
	return nil
}

func (s *Server) startExternal() error {
	cfg := s.cfg.Network.External
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("external listener %s: %w", addr, err)
	}

	s.externalSrv = &http.Server{
		Handler:           s.ExternalHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.externalAddr = ln.Addr().String()
	s.logger.Info("external listener started", "addr", s.externalAddr,
		"rate_limit", cfg.EnableRateLimit,
		"circuit_breaker", cfg.EnableCircuitBreaker,
		"ip_filter", cfg.EnableIPFilter,
		"jwt_auth", cfg.EnableJWTAuth,
		"magic_link", cfg.EnableMagicLink)
	go func() { s.report("external listener", s.externalSrv.Serve(ln)) }()
	return nil
}

func (s *Server) report(name string, err error) {
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return
	}
	select {
	case s.errs <- fmt.Errorf("%s: %w", name, err):
	default:
	}
}

// Errs delivers runtime serve failures. Buffered, never closed.
func (s *Server) Errs() <-chan error {
	return s.errs
}

// Shutdown drains both listeners.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.internalSrv != nil {
		if err := s.internalSrv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("internal listener: %w", err))
		}
	}
	if s.externalSrv != nil {
		if err := s.externalSrv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("external listener: %w", err))
		}
	}
	return errors.Join(errs...)
}
