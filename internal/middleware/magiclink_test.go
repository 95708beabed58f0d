package middleware

import (
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nostalgiatan/see/internal/config"
)

// fakeClock lets tests step the link store's notion of now. Generate
// still schedules real purge timers, so tests keep expirations long
// enough that none fire.
type fakeClock struct {
	t time.Time
}

func (fc *fakeClock) now() time.Time          { return fc.t }
func (fc *fakeClock) advance(d time.Duration) { fc.t = fc.t.Add(d) }

func newTestLinks(expiration time.Duration) (*MagicLinks, *fakeClock) {
	m := NewMagicLinks(config.MagicLinkConfig{Secret: "test-secret", Expiration: expiration}, testLogger())
	fc := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	m.now = fc.now
	return m, fc
}

func TestGenerateTokenShape(t *testing.T) {
	m, _ := newTestLinks(time.Minute)

	token, expiresIn := m.Generate("admin access")
	if expiresIn != time.Minute {
		t.Errorf("expiresIn = %v, want 1m", expiresIn)
	}
	if len(token) != 64 {
		t.Fatalf("token length = %d, want 64 hex chars", len(token))
	}
	if _, err := hex.DecodeString(token); err != nil {
		t.Errorf("token %q is not hex: %v", token, err)
	}
	if m.ActiveLinks() != 1 {
		t.Errorf("active links = %d, want 1", m.ActiveLinks())
	}
}

func TestVerifyExactlyOnce(t *testing.T) {
	m, _ := newTestLinks(time.Minute)
	token, _ := m.Generate("admin access")

	purpose, err := m.Verify(token)
	if err != nil {
		t.Fatalf("first verify: %v", err)
	}
	if purpose != "admin access" {
		t.Errorf("purpose = %q", purpose)
	}

	if _, err := m.Verify(token); err == nil {
		t.Fatal("second verify should fail")
	}
	if _, err := m.Verify("deadbeef"); err == nil {
		t.Error("unknown token should fail")
	}
}

func TestVerifyExpired(t *testing.T) {
	m, fc := newTestLinks(time.Minute)
	token, _ := m.Generate("admin access")

	fc.advance(61 * time.Second)
	if _, err := m.Verify(token); err == nil {
		t.Fatal("expired token should fail")
	}
}

func TestCleanupExpired(t *testing.T) {
	m, fc := newTestLinks(time.Minute)
	m.Generate("one")
	m.Generate("two")

	if n := m.CleanupExpired(); n != 0 {
		t.Fatalf("cleanup before expiry removed %d", n)
	}

	fc.advance(time.Minute + purgeGrace + time.Second)
	if n := m.CleanupExpired(); n != 2 {
		t.Errorf("cleanup removed %d, want 2", n)
	}
	if m.ActiveLinks() != 0 {
		t.Errorf("active links = %d, want 0", m.ActiveLinks())
	}
}

func TestMagicLinkMiddleware(t *testing.T) {
	m, _ := newTestLinks(time.Minute)
	token, _ := m.Generate("search")

	preAuthed := false
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		preAuthed = PreAuthenticated(r)
		w.WriteHeader(http.StatusOK)
	}))

	// Without the parameter the stage is transparent.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search?q=go", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("plain request status = %d", rec.Code)
	}
	if preAuthed {
		t.Error("plain request should not be pre-authenticated")
	}

	// First redemption succeeds and marks the request.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search?q=go&magic_token="+token, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("token request status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !preAuthed {
		t.Error("token request should be pre-authenticated")
	}

	// Replay is rejected.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search?q=go&magic_token="+token, nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("replayed token status = %d, want 401", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Code != CodeMagicLinkInvalid {
		t.Errorf("code = %q, want %q", env.Code, CodeMagicLinkInvalid)
	}
}
