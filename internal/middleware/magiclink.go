package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nostalgiatan/see/internal/config"
)

// purgeGrace is how long past expiration a record lingers before the
// scheduled purge removes it. Expired-but-present tokens still fail
// verification; the grace only delays map cleanup.
const purgeGrace = 60 * time.Second

// magicRecord is one minted link. The row lock serializes verification
// so a token redeems exactly once.
type magicRecord struct {
	mu        sync.Mutex
	createdAt time.Time
	purpose   string
	used      bool
}

// MagicLinks mints and redeems single-use pre-authentication tokens.
// A token is hex(SHA-256(uuid ∥ secret)); the preimage never leaves the
// process.
type MagicLinks struct {
	mu    sync.RWMutex
	links map[string]*magicRecord

	secret     string
	expiration time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// NewMagicLinks creates the link store. An empty secret selects a
// random per-process one, which invalidates links across restarts.
func NewMagicLinks(cfg config.MagicLinkConfig, logger *slog.Logger) *MagicLinks {
	secret := cfg.Secret
	if secret == "" {
		secret = uuid.NewString()
		logger.Warn("magic link secret not configured, links will not survive restarts")
	}
	expiration := cfg.Expiration
	if expiration <= 0 {
		expiration = 5 * time.Minute
	}
	return &MagicLinks{
		links:      make(map[string]*magicRecord),
		secret:     secret,
		expiration: expiration,
		logger:     logger.With("component", "magic_link"),
		now:        time.Now,
	}
}

// Generate mints a token bound to purpose and schedules its removal at
// expiration plus the purge grace.
func (m *MagicLinks) Generate(purpose string) (token string, expiresIn time.Duration) {
	sum := sha256.Sum256([]byte(uuid.NewString() + m.secret))
	token = hex.EncodeToString(sum[:])

	m.mu.Lock()
	m.links[token] = &magicRecord{createdAt: m.now(), purpose: purpose}
	m.mu.Unlock()

	time.AfterFunc(m.expiration+purgeGrace, func() {
		m.mu.Lock()
		delete(m.links, token)
		m.mu.Unlock()
	})

	m.logger.Info("magic link minted", "purpose", purpose, "expires_in", m.expiration)
	return token, m.expiration
}

// Verify redeems a token and returns its purpose. A token verifies
// successfully exactly once; missing, expired, and already-used tokens
// all fail.
func (m *MagicLinks) Verify(token string) (string, error) {
	m.mu.RLock()
	rec := m.links[token]
	m.mu.RUnlock()
	if rec == nil {
		return "", errors.New("unknown token")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if m.now().Sub(rec.createdAt) > m.expiration {
		return "", errors.New("token expired")
	}
	if rec.used {
		return "", errors.New("token already used")
	}
	rec.used = true
	return rec.purpose, nil
}

// CleanupExpired drops records past expiration plus the purge grace and
// returns how many were removed. The scheduled per-token purges make
// this a safety net, not a requirement.
func (m *MagicLinks) CleanupExpired() int {
	cutoff := m.now().Add(-(m.expiration + purgeGrace))

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for token, rec := range m.links {
		if rec.createdAt.Before(cutoff) {
			delete(m.links, token)
			removed++
		}
	}
	return removed
}

// ActiveLinks returns the number of stored records, used and not.
func (m *MagicLinks) ActiveLinks() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.links)
}

// Middleware verifies a magic_token query parameter when present and
// marks the request pre-authenticated on success. Requests without the
// parameter pass through untouched.
func (m *MagicLinks) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("magic_token")
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		purpose, err := m.Verify(token)
		if err != nil {
			WriteError(w, http.StatusUnauthorized, CodeMagicLinkInvalid, "magic link rejected: "+err.Error())
			return
		}
		m.logger.Info("magic link verified", "purpose", purpose)
		next.ServeHTTP(w, MarkPreAuthenticated(r))
	})
}
