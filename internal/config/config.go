package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Service identity reported by the version endpoint.
const (
	Name        = "see"
	Description = "privacy-preserving meta-search aggregator"
)

// Network modes.
const (
	ModeInternal = "internal"
	ModeExternal = "external"
	ModeDual     = "dual"
)

// Config is the root configuration for See.
type Config struct {
	Network   NetworkConfig   `mapstructure:"network"         yaml:"network"`
	Search    SearchConfig    `mapstructure:"search"          yaml:"search"`
	Fetcher   FetcherConfig   `mapstructure:"fetcher"         yaml:"fetcher"`
	Proxy     ProxyConfig     `mapstructure:"proxy"           yaml:"proxy"`
	Auth      AuthConfig      `mapstructure:"auth"            yaml:"auth"`
	MagicLink MagicLinkConfig `mapstructure:"magic_link"      yaml:"magic_link"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"      yaml:"rate_limit"`
	Breaker   BreakerConfig   `mapstructure:"circuit_breaker" yaml:"circuit_breaker"`
	IPFilter  IPFilterConfig  `mapstructure:"ip_filter"       yaml:"ip_filter"`
	Cache     CacheConfig     `mapstructure:"cache"           yaml:"cache"`
	RSS       RSSConfig       `mapstructure:"rss"             yaml:"rss"`
	Logging   LoggingConfig   `mapstructure:"logging"         yaml:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"         yaml:"metrics"`
}

// NetworkConfig selects which listeners run and how the external one is
// hardened. The internal listener must bind a loopback address.
type NetworkConfig struct {
	Mode     string         `mapstructure:"mode"     yaml:"mode"`
	Internal ListenerConfig `mapstructure:"internal" yaml:"internal"`
	External ExternalConfig `mapstructure:"external" yaml:"external"`
}

// ListenerConfig describes one HTTP listener.
type ListenerConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Host    string `mapstructure:"host"    yaml:"host"`
	Port    int    `mapstructure:"port"    yaml:"port"`
}

// ExternalConfig describes the hardened external listener and its
// middleware toggles.
type ExternalConfig struct {
	Enabled              bool     `mapstructure:"enabled"                yaml:"enabled"`
	Host                 string   `mapstructure:"host"                   yaml:"host"`
	Port                 int      `mapstructure:"port"                   yaml:"port"`
	CORSOrigins          []string `mapstructure:"cors_origins"           yaml:"cors_origins"`
	EnableRateLimit      bool     `mapstructure:"enable_rate_limit"      yaml:"enable_rate_limit"`
	EnableCircuitBreaker bool     `mapstructure:"enable_circuit_breaker" yaml:"enable_circuit_breaker"`
	EnableIPFilter       bool     `mapstructure:"enable_ip_filter"       yaml:"enable_ip_filter"`
	EnableJWTAuth        bool     `mapstructure:"enable_jwt_auth"        yaml:"enable_jwt_auth"`
	EnableMagicLink      bool     `mapstructure:"enable_magic_link"      yaml:"enable_magic_link"`
}

// SearchConfig controls engine selection and dispatch.
type SearchConfig struct {
	// DefaultEngines is the global engine set, in display order. The
	// order is a hand-maintained latency assumption: fast engines first.
	DefaultEngines []string `mapstructure:"default_engines" yaml:"default_engines"`

	// DefaultTimeout bounds a search call when the request carries none.
	DefaultTimeout time.Duration `mapstructure:"default_timeout" yaml:"default_timeout"`

	// MaxConcurrentEngines bounds parallel engine dispatch. Zero means
	// unbounded.
	MaxConcurrentEngines int `mapstructure:"max_concurrent_engines" yaml:"max_concurrent_engines"`

	// FailureThreshold is the consecutive-failure count that temporarily
	// disables an engine.
	FailureThreshold int `mapstructure:"failure_threshold" yaml:"failure_threshold"`

	// DisableDuration is how long a hard-failing engine stays disabled.
	DisableDuration time.Duration `mapstructure:"disable_duration" yaml:"disable_duration"`

	// Language and Region are the defaults applied to queries that carry
	// none.
	Language string `mapstructure:"language" yaml:"language"`
	Region   string `mapstructure:"region"   yaml:"region"`
}

// FetcherConfig controls the shared HTTP client.
type FetcherConfig struct {
	Timeout         time.Duration `mapstructure:"timeout"           yaml:"timeout"`
	FollowRedirects bool          `mapstructure:"follow_redirects"  yaml:"follow_redirects"`
	MaxRedirects    int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	TLSInsecure     bool          `mapstructure:"tls_insecure"      yaml:"tls_insecure"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
	UserAgents      []string      `mapstructure:"user_agents"       yaml:"user_agents"`

	// BrowserEngines lists engines fetched through the headless browser
	// instead of the plain HTTP client.
	BrowserEngines []string `mapstructure:"browser_engines" yaml:"browser_engines"`
}

// ProxyConfig controls outbound proxy rotation.
type ProxyConfig struct {
	Enabled  bool     `mapstructure:"enabled"   yaml:"enabled"`
	Rotation string   `mapstructure:"rotation"  yaml:"rotation"`
	URLs     []string `mapstructure:"urls"      yaml:"urls"`
	CheckURL string   `mapstructure:"check_url" yaml:"check_url"`
}

// AuthConfig controls bearer-token authentication on the external
// listener.
type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"     yaml:"jwt_secret"`
	JWTExpiration time.Duration `mapstructure:"jwt_expiration" yaml:"jwt_expiration"`
	APIKeys       []string      `mapstructure:"api_keys"       yaml:"api_keys"`
}

// MagicLinkConfig controls single-use pre-authenticated links.
type MagicLinkConfig struct {
	// Expiration is how long a minted link stays valid.
	Expiration time.Duration `mapstructure:"expiration" yaml:"expiration"`

	// Secret is mixed into the token hash. Empty selects a random
	// per-process secret, which invalidates links across restarts.
	Secret string `mapstructure:"secret" yaml:"secret"`
}

// RateLimitConfig controls the ingress token buckets.
type RateLimitConfig struct {
	RequestsPerSecond int `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int `mapstructure:"burst"               yaml:"burst"`
}

// BreakerConfig controls the ingress circuit breaker.
type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold" yaml:"failure_threshold"`
	SuccessThreshold int           `mapstructure:"success_threshold" yaml:"success_threshold"`
	Timeout          time.Duration `mapstructure:"timeout"           yaml:"timeout"`
}

// IPFilterConfig controls ingress IP filtering. In "deny" mode listed
// deny IPs are rejected; in "allow" mode only listed allow IPs pass.
type IPFilterConfig struct {
	Mode  string            `mapstructure:"mode"  yaml:"mode"`
	Allow map[string]string `mapstructure:"allow" yaml:"allow"`
	Deny  map[string]string `mapstructure:"deny"  yaml:"deny"`
}

// CacheConfig controls the result cache.
type CacheConfig struct {
	Enabled    bool          `mapstructure:"enabled"     yaml:"enabled"`
	Backend    string        `mapstructure:"backend"     yaml:"backend"`
	TTL        time.Duration `mapstructure:"ttl"         yaml:"ttl"`
	MaxEntries int           `mapstructure:"max_entries" yaml:"max_entries"`
	MongoURI   string        `mapstructure:"mongo_uri"   yaml:"mongo_uri"`
	Database   string        `mapstructure:"database"    yaml:"database"`
	Collection string        `mapstructure:"collection"  yaml:"collection"`
}

// RSSConfig controls the RSS ingestion subsystem.
type RSSConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Feeds   []FeedConfig  `mapstructure:"feeds"   yaml:"feeds"`
}

// FeedConfig describes one subscribed RSS/Atom feed.
type FeedConfig struct {
	Name     string   `mapstructure:"name"     yaml:"name"`
	URL      string   `mapstructure:"url"      yaml:"url"`
	Keywords []string `mapstructure:"keywords" yaml:"keywords"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig controls the metrics endpoints.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Network: NetworkConfig{
			Mode: ModeDual,
			Internal: ListenerConfig{
				Enabled: true,
				Host:    "127.0.0.1",
				Port:    8081,
			},
			External: ExternalConfig{
				Enabled:              true,
				Host:                 "0.0.0.0",
				Port:                 8080,
				CORSOrigins:          []string{"*"},
				EnableRateLimit:      true,
				EnableCircuitBreaker: true,
				EnableIPFilter:       true,
				EnableJWTAuth:        false,
				EnableMagicLink:      true,
			},
		},
		Search: SearchConfig{
			DefaultEngines:   DefaultEngines(),
			DefaultTimeout:   10 * time.Second,
			FailureThreshold: 3,
			DisableDuration:  5 * time.Minute,
			Language:         "zh-CN",
			Region:           "cn",
		},
		Fetcher: FetcherConfig{
			Timeout:         30 * time.Second,
			FollowRedirects: true,
			MaxRedirects:    10,
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    100,
			UserAgents:      DefaultUserAgents(),
		},
		Proxy: ProxyConfig{
			Enabled:  false,
			Rotation: "round_robin",
		},
		Auth: AuthConfig{
			JWTExpiration: time.Hour,
		},
		MagicLink: MagicLinkConfig{
			Expiration: 5 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Timeout:          time.Minute,
		},
		IPFilter: IPFilterConfig{
			Mode: "deny",
		},
		Cache: CacheConfig{
			Enabled:    true,
			Backend:    "memory",
			TTL:        time.Hour,
			MaxEntries: 10000,
			Database:   "see",
			Collection: "results",
		},
		RSS: RSSConfig{
			Enabled: false,
			Timeout: 15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// DefaultEngines returns the global engine set in display order. The
// order assumes faster engines first so that engine_count prefixes keep
// latency low.
func DefaultEngines() []string {
	return []string{
		"yandex",
		"bing",
		"baidu",
		"so",
		"sogou",
		"bilibili",
		"unsplash",
		"bing_images",
		"sogou_videos",
	}
}

// DefaultUserAgents returns the rotation pool used when none is
// configured.
func DefaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
}
