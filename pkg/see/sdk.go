// Package see provides a public SDK for embedding the meta-search
// aggregator as a library, without running the HTTP server.
//
// Example usage:
//
//	client, err := see.NewClient(
//	    see.WithEngines("bing", "sogou", "baidu"),
//	    see.WithTimeout(5*time.Second),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	resp, err := client.Search(context.Background(), "zero copy networking")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, item := range resp.Result.Items {
//	    fmt.Println(item.Title, item.URL)
//	}
package see

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nostalgiatan/see/internal/cache"
	"github.com/nostalgiatan/see/internal/config"
	"github.com/nostalgiatan/see/internal/engine"
	"github.com/nostalgiatan/see/internal/engines"
	"github.com/nostalgiatan/see/internal/fetcher"
	"github.com/nostalgiatan/see/internal/rss"
	"github.com/nostalgiatan/see/internal/search"
	"github.com/nostalgiatan/see/internal/types"
)

// ErrRSSDisabled is returned by feed operations when the client was
// built without any RSS configuration.
var ErrRSSDisabled = errors.New("rss is not enabled")

// Aliases so SDK callers can name every type the client returns or
// accepts without importing internal packages.
type (
	SearchRequest  = types.SearchRequest
	SearchResponse = types.SearchResponse
	SearchResult   = types.SearchResult
	ResultItem     = types.ResultItem
	Config         = config.Config
)

// NewSearchRequest creates a request with the standard limits, for use
// with Do.
func NewSearchRequest(text string) *SearchRequest {
	return types.NewSearchRequest(text)
}

// clientOptions collects everything the options can set before the
// client is wired.
type clientOptions struct {
	cfg    *config.Config
	logger *slog.Logger
	err    error
}

// Option configures a Client.
type Option func(*clientOptions)

// WithConfig replaces the whole configuration. Later options still
// apply on top of it.
func WithConfig(cfg *Config) Option {
	return func(o *clientOptions) {
		if cfg != nil {
			o.cfg = cfg
		}
	}
}

// WithConfigFile loads the configuration from a file, with the same
// defaults and SEE_* environment overrides as the CLI.
func WithConfigFile(path string) Option {
	return func(o *clientOptions) {
		cfg, err := config.Load(path)
		if err != nil {
			o.err = err
			return
		}
		o.cfg = cfg
	}
}

// WithEngines sets the default engine selection, in dispatch order.
func WithEngines(names ...string) Option {
	return func(o *clientOptions) { o.cfg.Search.DefaultEngines = names }
}

// WithTimeout sets the default per-search timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) { o.cfg.Search.DefaultTimeout = d }
}

// WithMaxConcurrent bounds how many engines are queried in parallel.
func WithMaxConcurrent(n int) Option {
	return func(o *clientOptions) { o.cfg.Search.MaxConcurrentEngines = n }
}

// WithUserAgents sets the User-Agent pool rotated across upstream
// requests.
func WithUserAgents(agents ...string) Option {
	return func(o *clientOptions) { o.cfg.Fetcher.UserAgents = agents }
}

// WithProxies enables outbound proxy rotation over the given URLs.
func WithProxies(urls ...string) Option {
	return func(o *clientOptions) {
		o.cfg.Proxy.Enabled = true
		o.cfg.Proxy.URLs = urls
	}
}

// WithBrowserEngines routes the named engines through the headless
// browser fetcher instead of the plain HTTP client.
func WithBrowserEngines(names ...string) Option {
	return func(o *clientOptions) { o.cfg.Fetcher.BrowserEngines = names }
}

// WithMemoryCache enables the in-process result cache.
func WithMemoryCache(ttl time.Duration, maxEntries int) Option {
	return func(o *clientOptions) {
		o.cfg.Cache.Enabled = true
		o.cfg.Cache.Backend = "memory"
		o.cfg.Cache.TTL = ttl
		o.cfg.Cache.MaxEntries = maxEntries
	}
}

// WithMongoCache enables the MongoDB result cache.
func WithMongoCache(uri, database, collection string, ttl time.Duration) Option {
	return func(o *clientOptions) {
		o.cfg.Cache.Enabled = true
		o.cfg.Cache.Backend = "mongo"
		o.cfg.Cache.MongoURI = uri
		o.cfg.Cache.Database = database
		o.cfg.Cache.Collection = collection
		o.cfg.Cache.TTL = ttl
	}
}

// WithFeed subscribes an RSS/Atom feed and enables the RSS subsystem.
// Keywords weight the feed's items during full-text ranking.
func WithFeed(name, url string, keywords ...string) Option {
	return func(o *clientOptions) {
		o.cfg.RSS.Enabled = true
		o.cfg.RSS.Feeds = append(o.cfg.RSS.Feeds, config.FeedConfig{
			Name:     name,
			URL:      url,
			Keywords: keywords,
		})
	}
}

// WithLogger sets the logger every component derives from.
func WithLogger(l *slog.Logger) Option {
	return func(o *clientOptions) { o.logger = l }
}

// WithVerbose enables debug-level logging.
func WithVerbose() Option {
	return func(o *clientOptions) { o.cfg.Logging.Level = "debug" }
}

// Client is the high-level API for using the aggregator as a library.
type Client struct {
	cfg        *config.Config
	logger     *slog.Logger
	dispatcher *fetcher.Dispatcher
	registry   *engine.Registry
	store      cache.Store
	feeds      *rss.Service
	searcher   *search.Searcher
}

// NewClient wires a search client from defaults plus options. Unlike
// the server, an unreachable cache backend or browser is an error
// here: a library caller asked for it explicitly.
func NewClient(opts ...Option) (*Client, error) {
	o := &clientOptions{cfg: config.DefaultConfig()}
	for _, opt := range opts {
		opt(o)
	}
	if o.err != nil {
		return nil, o.err
	}
	cfg := o.cfg
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := o.logger
	if logger == nil {
		level := slog.LevelInfo
		if cfg.Logging.Level == "debug" {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}

	httpFetcher, err := fetcher.NewHTTPFetcher(&cfg.Fetcher, &cfg.Proxy, logger)
	if err != nil {
		return nil, fmt.Errorf("create fetcher: %w", err)
	}
	var browser fetcher.Fetcher
	if len(cfg.Fetcher.BrowserEngines) > 0 {
		bf, err := fetcher.NewBrowserFetcher(cfg.Fetcher, logger)
		if err != nil {
			httpFetcher.Close()
			return nil, fmt.Errorf("create browser fetcher: %w", err)
		}
		browser = bf
	}
	dispatcher := fetcher.NewDispatcher(httpFetcher, browser)

	health := engine.NewHealthStore(cfg.Search.FailureThreshold, cfg.Search.DisableDuration, logger)
	registry := engine.NewRegistry(cfg.Search.DefaultEngines, health)
	if err := engines.Register(registry, dispatcher, cfg.Fetcher.BrowserEngines); err != nil {
		dispatcher.Close()
		return nil, fmt.Errorf("register engines: %w", err)
	}

	var store cache.Store
	if cfg.Cache.Enabled {
		store, err = cache.Open(cfg.Cache, logger)
		if err != nil {
			dispatcher.Close()
			return nil, fmt.Errorf("open cache: %w", err)
		}
	}

	var feeds *rss.Service
	var passive search.PassiveSource
	if cfg.RSS.Enabled {
		feeds = rss.NewService(cfg.RSS, httpFetcher.HTTPClient(cfg.RSS.Timeout), logger)
		passive = feeds
	}

	stats := search.NewStats()
	executor := search.NewExecutor(registry, cfg.Search, stats, logger)
	searcher := search.NewSearcher(cfg.Search, registry, executor, store, passive, stats, logger)

	return &Client{
		cfg:        cfg,
		logger:     logger,
		dispatcher: dispatcher,
		registry:   registry,
		store:      store,
		feeds:      feeds,
		searcher:   searcher,
	}, nil
}

// Search runs one batched search over the configured engines and
// returns the merged, deduplicated, ranked response.
func (c *Client) Search(ctx context.Context, text string) (*SearchResponse, error) {
	return c.searcher.Search(ctx, types.NewSearchRequest(text))
}

// SearchStream runs a streaming search: sink receives each engine's
// non-empty result as it completes, then the merged response returns.
func (c *Client) SearchStream(ctx context.Context, text string, sink func(result *SearchResult)) (*SearchResponse, error) {
	return c.searcher.SearchStream(ctx, types.NewSearchRequest(text), sink)
}

// SearchFullText runs a live search and folds in cached and RSS items
// matching the query tokens.
func (c *Client) SearchFullText(ctx context.Context, text string) (*SearchResponse, error) {
	return c.searcher.SearchFullText(ctx, types.NewSearchRequest(text))
}

// Do runs a fully specified request for callers that need paging,
// explicit engine selection, or cache control.
func (c *Client) Do(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	return c.searcher.Search(ctx, req)
}

// Engines lists every registered engine with its health snapshot.
func (c *Client) Engines() []engine.Descriptor {
	return c.registry.Descriptors()
}

// Stats returns the cumulative search counters.
func (c *Client) Stats() search.StatsSnapshot {
	return c.searcher.StatsSnapshot()
}

// FetchFeeds fetches every subscribed feed once so full-text searches
// have fresh passive items.
func (c *Client) FetchFeeds(ctx context.Context) (int, error) {
	if c.feeds == nil {
		return 0, ErrRSSDisabled
	}
	return c.feeds.FetchAll(ctx)
}

// AddFeed subscribes a feed at runtime.
func (c *Client) AddFeed(name, url string, keywords ...string) error {
	if c.feeds == nil {
		return ErrRSSDisabled
	}
	return c.feeds.AddFeed(rss.Feed{Name: name, URL: url, Keywords: keywords})
}

// Close releases the fetcher pool and any cache backend.
func (c *Client) Close() error {
	var errs []error
	if c.store != nil {
		errs = append(errs, c.store.Close())
	}
	errs = append(errs, c.dispatcher.Close())
	return errors.Join(errs...)
}
