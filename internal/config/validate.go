package config

import (
	"fmt"
	"net/url"
)

// loopbackHosts are the only hosts the internal listener may bind.
var loopbackHosts = map[string]bool{
	"127.0.0.1": true,
	"localhost": true,
	"::1":       true,
}

// Validate checks the configuration for invalid values. A non-nil error
// aborts startup.
func Validate(cfg *Config) error {
	if err := validateNetwork(&cfg.Network); err != nil {
		return err
	}

	if cfg.Search.DefaultTimeout <= 0 {
		return fmt.Errorf("search.default_timeout must be > 0")
	}
	if cfg.Search.MaxConcurrentEngines < 0 {
		return fmt.Errorf("search.max_concurrent_engines must be >= 0, got %d", cfg.Search.MaxConcurrentEngines)
	}
	if cfg.Search.FailureThreshold < 1 {
		return fmt.Errorf("search.failure_threshold must be >= 1, got %d", cfg.Search.FailureThreshold)
	}
	if cfg.Search.DisableDuration <= 0 {
		return fmt.Errorf("search.disable_duration must be > 0")
	}

	if cfg.Fetcher.Timeout <= 0 {
		return fmt.Errorf("fetcher.timeout must be > 0")
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}

	if cfg.Proxy.Enabled {
		if cfg.Proxy.Rotation != "round_robin" && cfg.Proxy.Rotation != "random" {
			return fmt.Errorf("proxy.rotation must be 'round_robin' or 'random', got %q", cfg.Proxy.Rotation)
		}
		if len(cfg.Proxy.URLs) == 0 {
			return fmt.Errorf("proxy.enabled requires at least one proxy.urls entry")
		}
		for _, proxyURL := range cfg.Proxy.URLs {
			if _, err := url.Parse(proxyURL); err != nil {
				return fmt.Errorf("invalid proxy URL %q: %w", proxyURL, err)
			}
		}
	}

	if cfg.Network.External.EnableJWTAuth && cfg.Auth.JWTSecret == "" && len(cfg.Auth.APIKeys) == 0 {
		return fmt.Errorf("auth requires auth.jwt_secret or auth.api_keys when external.enable_jwt_auth is set")
	}
	if cfg.Auth.JWTExpiration <= 0 {
		return fmt.Errorf("auth.jwt_expiration must be > 0")
	}

	if cfg.MagicLink.Expiration <= 0 {
		return fmt.Errorf("magic_link.expiration must be > 0")
	}

	if cfg.RateLimit.RequestsPerSecond < 1 {
		return fmt.Errorf("rate_limit.requests_per_second must be >= 1, got %d", cfg.RateLimit.RequestsPerSecond)
	}
	if cfg.RateLimit.Burst < 1 {
		return fmt.Errorf("rate_limit.burst must be >= 1, got %d", cfg.RateLimit.Burst)
	}

	if cfg.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("circuit_breaker.failure_threshold must be >= 1, got %d", cfg.Breaker.FailureThreshold)
	}
	if cfg.Breaker.SuccessThreshold < 1 {
		return fmt.Errorf("circuit_breaker.success_threshold must be >= 1, got %d", cfg.Breaker.SuccessThreshold)
	}
	if cfg.Breaker.Timeout <= 0 {
		return fmt.Errorf("circuit_breaker.timeout must be > 0")
	}

	if cfg.IPFilter.Mode != "allow" && cfg.IPFilter.Mode != "deny" {
		return fmt.Errorf("ip_filter.mode must be 'allow' or 'deny', got %q", cfg.IPFilter.Mode)
	}

	switch cfg.Cache.Backend {
	case "memory":
	case "mongodb":
		if cfg.Cache.MongoURI == "" {
			return fmt.Errorf("cache.backend 'mongodb' requires cache.mongo_uri")
		}
	default:
		return fmt.Errorf("cache.backend must be 'memory' or 'mongodb', got %q", cfg.Cache.Backend)
	}
	if cfg.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be > 0")
	}

	if cfg.RSS.Enabled {
		for _, feed := range cfg.RSS.Feeds {
			if feed.Name == "" {
				return fmt.Errorf("rss feed with URL %q has no name", feed.URL)
			}
			if err := ValidateURL(feed.URL); err != nil {
				return fmt.Errorf("rss feed %q: %w", feed.Name, err)
			}
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	return nil
}

// validateNetwork enforces the listener composition rules: the selected
// mode must have its listeners enabled, and the internal listener may
// only bind loopback.
func validateNetwork(nc *NetworkConfig) error {
	switch nc.Mode {
	case ModeInternal:
		if !nc.Internal.Enabled {
			return fmt.Errorf("network.mode 'internal' requires network.internal.enabled")
		}
	case ModeExternal:
		if !nc.External.Enabled {
			return fmt.Errorf("network.mode 'external' requires network.external.enabled")
		}
	case ModeDual:
		if !nc.Internal.Enabled && !nc.External.Enabled {
			return fmt.Errorf("network.mode 'dual' requires at least one listener enabled")
		}
	default:
		return fmt.Errorf("network.mode must be internal/external/dual, got %q", nc.Mode)
	}

	if nc.Internal.Enabled {
		if !loopbackHosts[nc.Internal.Host] {
			return fmt.Errorf("network.internal.host must be a loopback address, got %q", nc.Internal.Host)
		}
		if nc.Internal.Port < 1 || nc.Internal.Port > 65535 {
			return fmt.Errorf("network.internal.port must be 1-65535, got %d", nc.Internal.Port)
		}
	}
	if nc.External.Enabled {
		if nc.External.Host == "" {
			return fmt.Errorf("network.external.host must not be empty")
		}
		if nc.External.Port < 1 || nc.External.Port > 65535 {
			return fmt.Errorf("network.external.port must be 1-65535, got %d", nc.External.Port)
		}
		if nc.Internal.Enabled && nc.External.Enabled &&
			nc.Internal.Port == nc.External.Port && nc.Internal.Host == nc.External.Host {
			return fmt.Errorf("internal and external listeners cannot share %s:%d", nc.Internal.Host, nc.Internal.Port)
		}
	}

	return nil
}

// ValidateURL checks if a URL string is a fetchable absolute http(s) URL.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
