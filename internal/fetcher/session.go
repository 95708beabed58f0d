package fetcher

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

// SessionManager hands out one HTTP client per engine. The clients share
// a single pooled transport but each carries its own cookie jar, so
// upstream session state never leaks between engines.
type SessionManager struct {
	clients      map[string]*http.Client
	transport    http.RoundTripper
	timeout      time.Duration
	maxRedirects int
	mu           sync.RWMutex
	logger       *slog.Logger
}

// NewSessionManager creates a SessionManager over a shared transport.
func NewSessionManager(transport http.RoundTripper, timeout time.Duration, maxRedirects int, logger *slog.Logger) *SessionManager {
	return &SessionManager{
		clients:      make(map[string]*http.Client),
		transport:    transport,
		timeout:      timeout,
		maxRedirects: maxRedirects,
		logger:       logger.With("component", "session_manager"),
	}
}

// Client returns the client for an engine, creating one if needed.
func (sm *SessionManager) Client(engine string) *http.Client {
	sm.mu.RLock()
	client, ok := sm.clients[engine]
	sm.mu.RUnlock()
	if ok {
		return client
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	// Double-check
	client, ok = sm.clients[engine]
	if ok {
		return client
	}

	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	maxRedirects := sm.maxRedirects
	client = &http.Client{
		Transport: sm.transport,
		Jar:       jar,
		Timeout:   sm.timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("max redirects (%d) reached", maxRedirects)
			}
			return nil
		},
	}
	sm.clients[engine] = client
	return client
}

// Clear drops the session state for one engine.
func (sm *SessionManager) Clear(engine string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.clients, engine)
}

// ClearAll drops all session state.
func (sm *SessionManager) ClearAll() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.clients = make(map[string]*http.Client)
}

// Count returns the number of engines with active sessions.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.clients)
}
