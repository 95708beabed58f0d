package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nostalgiatan/see/internal/config"
)

// Auth validates Authorization headers: "Bearer <jwt>" signed HS256
// with the configured secret, or "ApiKey <key>" against the configured
// key set.
type Auth struct {
	secret     []byte
	expiration time.Duration
	apiKeys    map[string]struct{}
	logger     *slog.Logger
}

// NewAuth creates the validator. An empty secret selects a random
// per-process one, which invalidates tokens across restarts.
func NewAuth(cfg config.AuthConfig, logger *slog.Logger) *Auth {
	secret := cfg.JWTSecret
	if secret == "" {
		secret = "jwt_default_" + uuid.NewString()
		logger.Warn("jwt secret not configured, tokens will not survive restarts")
	}
	expiration := cfg.JWTExpiration
	if expiration <= 0 {
		expiration = time.Hour
	}
	keys := make(map[string]struct{}, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		keys[k] = struct{}{}
	}
	return &Auth{
		secret:     []byte(secret),
		expiration: expiration,
		apiKeys:    keys,
		logger:     logger.With("component", "auth"),
	}
}

// GenerateToken mints an HS256 bearer token for subject with the
// configured expiration.
func (a *Auth) GenerateToken(subject string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.expiration)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// verifyHeader accepts "Bearer <jwt>" or "ApiKey <key>"; anything else
// is an unsupported format.
func (a *Auth) verifyHeader(header string) error {
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		_, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{},
			func(*jwt.Token) (any, error) { return a.secret, nil },
			jwt.WithValidMethods([]string{"HS256"}),
		)
		if err != nil {
			return fmt.Errorf("invalid bearer token: %w", err)
		}
		return nil
	}
	if key, ok := strings.CutPrefix(header, "ApiKey "); ok {
		if _, known := a.apiKeys[key]; known {
			return nil
		}
		return errors.New("unknown api key")
	}
	return errors.New("unsupported authorization format")
}

// Middleware rejects requests without valid credentials. Requests a
// magic link already pre-authenticated pass through.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if PreAuthenticated(r) {
			next.ServeHTTP(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		if header == "" {
			WriteError(w, http.StatusUnauthorized, CodeAuthRequired, "authentication required")
			return
		}
		if err := a.verifyHeader(header); err != nil {
			a.logger.Debug("authentication rejected", "error", err)
			WriteError(w, http.StatusUnauthorized, CodeAuthFailed, "authentication failed: "+err.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}
