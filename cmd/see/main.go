package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nostalgiatan/see/internal/api"
	"github.com/nostalgiatan/see/internal/cache"
	"github.com/nostalgiatan/see/internal/config"
	"github.com/nostalgiatan/see/internal/engine"
	"github.com/nostalgiatan/see/internal/engines"
	"github.com/nostalgiatan/see/internal/fetcher"
	"github.com/nostalgiatan/see/internal/observability"
	"github.com/nostalgiatan/see/internal/rss"
	"github.com/nostalgiatan/see/internal/search"
)

var (
	cfgFile  string
	logLevel string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "see",
		Short: "See — privacy-preserving meta search",
		Long: `See queries many upstream search engines concurrently, merges their
results into one deduplicated ranked list, and serves the aggregate
over an HTTP API. Upstreams see the server, never the user.

Features:
  • 13 engine adapters (web, images, videos, news) queried in parallel
  • URL-normalized dedup with multi-engine score boosting
  • Dual listeners: a trusted internal API and a hardened external one
  • Magic links, JWT auth, IP filtering, circuit breaker, rate limiting
  • Result cache (memory or MongoDB) and RSS-backed full-text search
  • Prometheus metrics plus a realtime JSON snapshot`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(searchCommand())
	rootCmd.AddCommand(enginesCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// serveCmd creates the "serve" subcommand.
func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the search API server",
		Long:  "Start the configured listeners and serve the search API until SIGINT or SIGTERM.",
		RunE:  runServe,
	}
}

// runServe wires the full stack and blocks until shutdown. Exit codes:
// 0 on a clean stop, 1 on configuration errors (via RunE), 2 when a
// listener cannot bind.
func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cfg)
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger := setupLogger(cfg)

	httpFetcher, err := fetcher.NewHTTPFetcher(&cfg.Fetcher, &cfg.Proxy, logger)
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}

	// The browser fetcher only exists when some engine is routed to it.
	// A failed browser start degrades those engines instead of aborting.
	var browser fetcher.Fetcher
	if len(cfg.Fetcher.BrowserEngines) > 0 {
		bf, err := fetcher.NewBrowserFetcher(cfg.Fetcher, logger)
		if err != nil {
			logger.Warn("browser fetcher unavailable",
				"error", err,
				"browser_engines", cfg.Fetcher.BrowserEngines,
			)
		} else {
			browser = bf
		}
	}
	dispatcher := fetcher.NewDispatcher(httpFetcher, browser)

	health := engine.NewHealthStore(cfg.Search.FailureThreshold, cfg.Search.DisableDuration, logger)
	registry := engine.NewRegistry(cfg.Search.DefaultEngines, health)
	if err := engines.Register(registry, dispatcher, cfg.Fetcher.BrowserEngines); err != nil {
		return fmt.Errorf("register engines: %w", err)
	}

	var store cache.Store
	if cfg.Cache.Enabled {
		store, err = cache.Open(cfg.Cache, logger)
		if err != nil {
			// The cache accelerates; a dead backend degrades, not aborts.
			logger.Warn("cache backend unavailable, continuing without cache",
				"backend", cfg.Cache.Backend,
				"error", err,
			)
			store = nil
		}
	}

	var feeds *rss.Service
	if cfg.RSS.Enabled {
		feeds = rss.NewService(cfg.RSS, httpFetcher.HTTPClient(cfg.RSS.Timeout), logger)
	}
	var passive search.PassiveSource
	if feeds != nil {
		passive = feeds
	}

	stats := search.NewStats()
	executor := search.NewExecutor(registry, cfg.Search, stats, logger)
	searcher := search.NewSearcher(cfg.Search, registry, executor, store, passive, stats, logger)
	collector := observability.NewCollector(logger)

	srv := api.NewServer(cfg, searcher, registry, store, feeds, collector, logger)
	if err := srv.Start(); err != nil {
		logger.Error("listener bind failed", "error", err)
		if store != nil {
			store.Close()
		}
		dispatcher.Close()
		os.Exit(2)
	}

	logger.Info("server started",
		"version", config.Version,
		"mode", cfg.Network.Mode,
		"engines", len(registry.Names()),
	)
	fmt.Printf("🌊 See %s\n", config.Version)
	if addr := srv.InternalAddr(); addr != "" {
		fmt.Printf("   Internal API:  http://%s\n", addr)
	}
	if addr := srv.ExternalAddr(); addr != "" {
		fmt.Printf("   External API:  http://%s\n", addr)
	}
	fmt.Println("   Press Ctrl+C to stop")

	// Warm the feed registry so full-text search has data from the start.
	if feeds != nil {
		go func() {
			n, err := feeds.FetchAll(context.Background())
			if err != nil {
				logger.Warn("initial feed fetch incomplete", "items", n, "error", err)
				return
			}
			logger.Info("feeds warmed", "items", n)
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down...", "signal", sig)
	case err := <-srv.Errs():
		logger.Error("listener failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete", "error", err)
	}
	if store != nil {
		if err := store.Close(); err != nil {
			logger.Warn("cache close failed", "error", err)
		}
	}
	if err := dispatcher.Close(); err != nil {
		logger.Warn("fetcher close failed", "error", err)
	}

	fmt.Println("✅ Shutdown complete")
	return nil
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("See %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Printf("Network:\n")
			fmt.Printf("  Mode:              %s\n", cfg.Network.Mode)
			fmt.Printf("  Internal:          %s:%d (enabled: %v)\n", cfg.Network.Internal.Host, cfg.Network.Internal.Port, cfg.Network.Internal.Enabled)
			fmt.Printf("  External:          %s:%d (enabled: %v)\n", cfg.Network.External.Host, cfg.Network.External.Port, cfg.Network.External.Enabled)
			fmt.Printf("  External guards:   rate_limit=%v breaker=%v ip_filter=%v jwt=%v magic_link=%v\n",
				cfg.Network.External.EnableRateLimit,
				cfg.Network.External.EnableCircuitBreaker,
				cfg.Network.External.EnableIPFilter,
				cfg.Network.External.EnableJWTAuth,
				cfg.Network.External.EnableMagicLink,
			)
			fmt.Printf("\nSearch:\n")
			fmt.Printf("  Default Engines:   %d configured\n", len(cfg.Search.DefaultEngines))
			fmt.Printf("  Default Timeout:   %s\n", cfg.Search.DefaultTimeout)
			fmt.Printf("  Max Concurrent:    %d\n", cfg.Search.MaxConcurrentEngines)
			fmt.Printf("  Failure Threshold: %d\n", cfg.Search.FailureThreshold)
			fmt.Printf("  Disable Duration:  %s\n", cfg.Search.DisableDuration)
			fmt.Printf("\nFetcher:\n")
			fmt.Printf("  Timeout:           %s\n", cfg.Fetcher.Timeout)
			fmt.Printf("  Follow Redirects:  %v\n", cfg.Fetcher.FollowRedirects)
			fmt.Printf("  Max Body Size:     %d bytes\n", cfg.Fetcher.MaxBodySize)
			fmt.Printf("  User Agents:       %d configured\n", len(cfg.Fetcher.UserAgents))
			fmt.Printf("  Browser Engines:   %d routed\n", len(cfg.Fetcher.BrowserEngines))
			fmt.Printf("\nProxy:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Proxy.Enabled)
			fmt.Printf("  Rotation:          %s\n", cfg.Proxy.Rotation)
			fmt.Printf("  Count:             %d\n", len(cfg.Proxy.URLs))
			fmt.Printf("\nCache:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Cache.Enabled)
			fmt.Printf("  Backend:           %s\n", cfg.Cache.Backend)
			fmt.Printf("  TTL:               %s\n", cfg.Cache.TTL)
			fmt.Printf("\nRSS:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.RSS.Enabled)
			fmt.Printf("  Feeds:             %d configured\n", len(cfg.RSS.Feeds))
			fmt.Printf("\nMetrics:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Metrics.Enabled)
			return nil
		},
	}
}

// setupLogger creates the process logger from the logging section.
func setupLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Logging.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// applyCLIOverrides applies command-line flag values to the config.
func applyCLIOverrides(cfg *config.Config) {
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
}
