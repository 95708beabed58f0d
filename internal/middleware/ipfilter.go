package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/nostalgiatan/see/internal/config"
)

// IPFilter rejects requests by client address. In allow mode only
// listed addresses pass; in deny mode listed addresses are rejected.
// Requests without a resolvable client IP always pass.
type IPFilter struct {
	mu        sync.RWMutex
	allowMode bool
	allow     map[string]string // ip -> reason
	deny      map[string]string

	onBlocked func()
	logger    *slog.Logger
}

// NewIPFilter creates the filter from config. Unparsable configured
// addresses are skipped with a warning.
func NewIPFilter(cfg config.IPFilterConfig, logger *slog.Logger) *IPFilter {
	f := &IPFilter{
		allowMode: cfg.Mode == "allow",
		allow:     make(map[string]string, len(cfg.Allow)),
		deny:      make(map[string]string, len(cfg.Deny)),
		logger:    logger.With("component", "ip_filter"),
	}
	for ip, reason := range cfg.Allow {
		f.AddAllow(ip, reason)
	}
	for ip, reason := range cfg.Deny {
		f.AddDeny(ip, reason)
	}
	return f
}

// normalizeIP parses and re-renders an address so map keys match the
// canonical form ClientIP produces. Returns "" for garbage.
func normalizeIP(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}
	return parsed.String()
}

// AddDeny puts an address on the deny list.
func (f *IPFilter) AddDeny(ip, reason string) {
	key := normalizeIP(ip)
	if key == "" {
		f.logger.Warn("ignoring unparsable deny address", "ip", ip)
		return
	}
	f.mu.Lock()
	f.deny[key] = reason
	f.mu.Unlock()
	f.logger.Info("ip added to deny list", "ip", key, "reason", reason)
}

// RemoveDeny drops an address from the deny list.
func (f *IPFilter) RemoveDeny(ip string) {
	key := normalizeIP(ip)
	f.mu.Lock()
	delete(f.deny, key)
	f.mu.Unlock()
}

// AddAllow puts an address on the allow list.
func (f *IPFilter) AddAllow(ip, reason string) {
	key := normalizeIP(ip)
	if key == "" {
		f.logger.Warn("ignoring unparsable allow address", "ip", ip)
		return
	}
	f.mu.Lock()
	f.allow[key] = reason
	f.mu.Unlock()
	f.logger.Info("ip added to allow list", "ip", key, "reason", reason)
}

// RemoveAllow drops an address from the allow list.
func (f *IPFilter) RemoveAllow(ip string) {
	key := normalizeIP(ip)
	f.mu.Lock()
	delete(f.allow, key)
	f.mu.Unlock()
}

// Allowed reports whether the address may pass under the current mode.
func (f *IPFilter) Allowed(ip string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.allowMode {
		_, ok := f.allow[ip]
		return ok
	}
	_, denied := f.deny[ip]
	return !denied
}

// Sizes returns the list sizes for listings.
func (f *IPFilter) Sizes() (allow, deny int) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.allow), len(f.deny)
}

// OnBlocked registers a hook invoked on every rejection. Set before
// serving; used by the metrics collector.
func (f *IPFilter) OnBlocked(fn func()) { f.onBlocked = fn }

// Middleware rejects filtered addresses with 403.
func (f *IPFilter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ip := ClientIP(r); ip != "" && !f.Allowed(ip) {
			if f.onBlocked != nil {
				f.onBlocked()
			}
			f.logger.Info("request blocked by ip filter", "ip", ip)
			WriteError(w, http.StatusForbidden, CodeIPBlocked, "address is not permitted")
			return
		}
		next.ServeHTTP(w, r)
	})
}
