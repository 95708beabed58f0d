// Package middleware implements the external listener's ingress
// protections: single-use magic links, bearer/API-key authentication,
// IP filtering, circuit breaking, token-bucket rate limiting, and CORS.
// Chain applies them in exactly that order, outermost first.
package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
)

// Rejection codes carried in the error envelope.
const (
	CodeAuthRequired     = "AUTH_REQUIRED"
	CodeAuthFailed       = "AUTH_FAILED"
	CodeIPBlocked        = "IP_BLOCKED"
	CodeCircuitOpen      = "CIRCUIT_BREAKER_OPEN"
	CodeRateLimited      = "RATE_LIMIT_EXCEEDED"
	CodeMagicLinkInvalid = "MAGIC_LINK_INVALID"
)

// Envelope is the JSON body every 4xx/5xx response carries.
type Envelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// WriteError writes the error envelope with the given status. Headers
// must be set before calling.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{Code: code, Message: message})
}

type contextKey int

const preAuthKey contextKey = iota

// MarkPreAuthenticated returns a request whose context records that an
// earlier stage already established identity, letting Auth pass it.
func MarkPreAuthenticated(r *http.Request) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), preAuthKey, true))
}

// PreAuthenticated reports whether the request carries the marker.
func PreAuthenticated(r *http.Request) bool {
	v, _ := r.Context().Value(preAuthKey).(bool)
	return v
}

// ClientIP extracts the caller address from the first X-Forwarded-For
// token, then X-Real-IP. It returns "" when neither header carries a
// parsable address; such requests are treated as anonymous (global rate
// limit only, no IP filtering).
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	if rip := strings.TrimSpace(r.Header.Get("X-Real-IP")); rip != "" {
		if ip := net.ParseIP(rip); ip != nil {
			return ip.String()
		}
	}
	return ""
}

// statusRecorder captures the response status for stages that react to
// downstream outcomes.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}
