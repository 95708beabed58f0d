package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file, environment, and defaults.
// Priority (highest to lowest): env vars > config file > defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	// Set defaults from struct
	setDefaults(v, cfg)

	// Environment variable support: SEE_NETWORK_MODE, SEE_AUTH_JWT_SECRET, ...
	v.SetEnvPrefix("SEE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Search default locations
		v.SetConfigName("see")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".see"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay if not explicitly specified
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	return Load(path)
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("network.mode", cfg.Network.Mode)
	v.SetDefault("network.internal.enabled", cfg.Network.Internal.Enabled)
	v.SetDefault("network.internal.host", cfg.Network.Internal.Host)
	v.SetDefault("network.internal.port", cfg.Network.Internal.Port)
	v.SetDefault("network.external.enabled", cfg.Network.External.Enabled)
	v.SetDefault("network.external.host", cfg.Network.External.Host)
	v.SetDefault("network.external.port", cfg.Network.External.Port)
	v.SetDefault("network.external.cors_origins", cfg.Network.External.CORSOrigins)
	v.SetDefault("network.external.enable_rate_limit", cfg.Network.External.EnableRateLimit)
	v.SetDefault("network.external.enable_circuit_breaker", cfg.Network.External.EnableCircuitBreaker)
	v.SetDefault("network.external.enable_ip_filter", cfg.Network.External.EnableIPFilter)
	v.SetDefault("network.external.enable_jwt_auth", cfg.Network.External.EnableJWTAuth)
	v.SetDefault("network.external.enable_magic_link", cfg.Network.External.EnableMagicLink)

	v.SetDefault("search.default_engines", cfg.Search.DefaultEngines)
	v.SetDefault("search.default_timeout", cfg.Search.DefaultTimeout)
	v.SetDefault("search.max_concurrent_engines", cfg.Search.MaxConcurrentEngines)
	v.SetDefault("search.failure_threshold", cfg.Search.FailureThreshold)
	v.SetDefault("search.disable_duration", cfg.Search.DisableDuration)
	v.SetDefault("search.language", cfg.Search.Language)
	v.SetDefault("search.region", cfg.Search.Region)

	v.SetDefault("fetcher.timeout", cfg.Fetcher.Timeout)
	v.SetDefault("fetcher.follow_redirects", cfg.Fetcher.FollowRedirects)
	v.SetDefault("fetcher.max_redirects", cfg.Fetcher.MaxRedirects)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.idle_conn_timeout", cfg.Fetcher.IdleConnTimeout)
	v.SetDefault("fetcher.max_idle_conns", cfg.Fetcher.MaxIdleConns)
	v.SetDefault("fetcher.user_agents", cfg.Fetcher.UserAgents)
	v.SetDefault("fetcher.browser_engines", cfg.Fetcher.BrowserEngines)

	v.SetDefault("proxy.enabled", cfg.Proxy.Enabled)
	v.SetDefault("proxy.rotation", cfg.Proxy.Rotation)
	v.SetDefault("proxy.check_url", cfg.Proxy.CheckURL)

	v.SetDefault("auth.jwt_secret", cfg.Auth.JWTSecret)
	v.SetDefault("auth.jwt_expiration", cfg.Auth.JWTExpiration)
	v.SetDefault("auth.api_keys", cfg.Auth.APIKeys)

	v.SetDefault("magic_link.expiration", cfg.MagicLink.Expiration)
	v.SetDefault("magic_link.secret", cfg.MagicLink.Secret)

	v.SetDefault("rate_limit.requests_per_second", cfg.RateLimit.RequestsPerSecond)
	v.SetDefault("rate_limit.burst", cfg.RateLimit.Burst)

	v.SetDefault("circuit_breaker.failure_threshold", cfg.Breaker.FailureThreshold)
	v.SetDefault("circuit_breaker.success_threshold", cfg.Breaker.SuccessThreshold)
	v.SetDefault("circuit_breaker.timeout", cfg.Breaker.Timeout)

	v.SetDefault("ip_filter.mode", cfg.IPFilter.Mode)

	v.SetDefault("cache.enabled", cfg.Cache.Enabled)
	v.SetDefault("cache.backend", cfg.Cache.Backend)
	v.SetDefault("cache.ttl", cfg.Cache.TTL)
	v.SetDefault("cache.max_entries", cfg.Cache.MaxEntries)
	v.SetDefault("cache.mongo_uri", cfg.Cache.MongoURI)
	v.SetDefault("cache.database", cfg.Cache.Database)
	v.SetDefault("cache.collection", cfg.Cache.Collection)

	v.SetDefault("rss.enabled", cfg.RSS.Enabled)
	v.SetDefault("rss.timeout", cfg.RSS.Timeout)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output", cfg.Logging.Output)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
}
