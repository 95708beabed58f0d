package fetcher

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/nostalgiatan/see/internal/config"
	"github.com/nostalgiatan/see/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestFetcher(t *testing.T, mutate func(*config.FetcherConfig)) *HTTPFetcher {
	t.Helper()
	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(&cfg.Fetcher)
	}
	f, err := NewHTTPFetcher(&cfg.Fetcher, nil, testLogger())
	if err != nil {
		t.Fatalf("NewHTTPFetcher: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func mustRequest(t *testing.T, rawURL string) *types.Request {
	t.Helper()
	req, err := types.NewRequest(rawURL)
	if err != nil {
		t.Fatalf("NewRequest(%q): %v", rawURL, err)
	}
	req.Engine = "test"
	return req
}

func TestFetchSetsDefaultHeaders(t *testing.T) {
	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept-Encoding")
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, "<html>ok</html>")
	}))
	defer srv.Close()

	f := newTestFetcher(t, nil)
	resp, err := f.Fetch(context.Background(), mustRequest(t, srv.URL))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if resp.StatusCode != 200 {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if got := resp.Text(); got != "<html>ok</html>" {
		t.Errorf("body = %q", got)
	}
	if resp.ContentType != "text/html" {
		t.Errorf("content type = %q", resp.ContentType)
	}
	if gotUA == "" {
		t.Error("no User-Agent sent")
	}
	if gotAccept != "gzip, deflate, br" {
		t.Errorf("Accept-Encoding = %q", gotAccept)
	}
}

func TestFetchRotatesUserAgents(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[string]bool)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen[r.Header.Get("User-Agent")] = true
		mu.Unlock()
	}))
	defer srv.Close()

	f := newTestFetcher(t, func(cfg *config.FetcherConfig) {
		cfg.UserAgents = []string{"ua-one", "ua-two"}
	})
	for i := 0; i < 2; i++ {
		if _, err := f.Fetch(context.Background(), mustRequest(t, srv.URL)); err != nil {
			t.Fatalf("Fetch %d: %v", i, err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if !seen["ua-one"] || !seen["ua-two"] {
		t.Errorf("rotation skipped an agent: %v", seen)
	}
}

func TestFetchWithoutConfiguredAgents(t *testing.T) {
	f := newTestFetcher(t, func(cfg *config.FetcherConfig) {
		cfg.UserAgents = nil
	})
	if got := f.nextUserAgent(); got != "See/"+config.Version {
		t.Errorf("fallback agent = %q", got)
	}
}

func TestFetchAdapterHeadersOverrideDefaults(t *testing.T) {
	var gotUA, gotCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		if c, err := r.Cookie("mkt"); err == nil {
			gotCookie = c.Value
		}
	}))
	defer srv.Close()

	f := newTestFetcher(t, nil)
	req := mustRequest(t, srv.URL)
	req.Headers.Set("User-Agent", "custom-agent")
	req.Cookies = []types.Cookie{{Name: "mkt", Value: "us"}}

	if _, err := f.Fetch(context.Background(), req); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if gotUA != "custom-agent" {
		t.Errorf("User-Agent = %q, want custom-agent", gotUA)
	}
	if gotCookie != "us" {
		t.Errorf("cookie mkt = %q, want us", gotCookie)
	}
}

func TestFetchClassifiesRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, "slow down")
	}))
	defer srv.Close()

	f := newTestFetcher(t, nil)
	_, err := f.Fetch(context.Background(), mustRequest(t, srv.URL))
	if err == nil {
		t.Fatal("expected error on 429")
	}

	var fe *types.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("error type = %T", err)
	}
	if !errors.Is(err, types.ErrRateLimited) {
		t.Errorf("not classified rate limited: %v", err)
	}
	if !fe.Retryable {
		t.Error("429 should be retryable")
	}
	if fe.RetryAfter != 7*time.Second {
		t.Errorf("RetryAfter = %v, want 7s", fe.RetryAfter)
	}
}

func TestFetchClassifiesBlockAndUnavailable(t *testing.T) {
	for _, tc := range []struct {
		status    int
		sentinel  error
		retryable bool
	}{
		{http.StatusForbidden, types.ErrBlocked, false},
		{http.StatusServiceUnavailable, types.ErrUnavailable, true},
	} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))

		f := newTestFetcher(t, nil)
		_, err := f.Fetch(context.Background(), mustRequest(t, srv.URL))
		srv.Close()
		if err == nil {
			t.Fatalf("status %d: expected error", tc.status)
		}
		if !errors.Is(err, tc.sentinel) {
			t.Errorf("status %d: wrong sentinel: %v", tc.status, err)
		}
		var fe *types.FetchError
		if errors.As(err, &fe) && fe.Retryable != tc.retryable {
			t.Errorf("status %d: retryable = %v, want %v", tc.status, fe.Retryable, tc.retryable)
		}
	}
}

func TestFetchKeepsUnfollowedRedirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "https://example.com/elsewhere", http.StatusFound)
	}))
	defer srv.Close()

	f := newTestFetcher(t, nil)
	req := mustRequest(t, srv.URL)
	req.FollowRedirects = false

	resp, err := f.Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if resp.StatusCode != http.StatusFound {
		t.Errorf("status = %d, want 302", resp.StatusCode)
	}
	if resp.Location != "https://example.com/elsewhere" {
		t.Errorf("location = %q", resp.Location)
	}
	if !resp.IsRedirect() {
		t.Error("IsRedirect() = false")
	}
}

func TestFetchFollowsRedirectByDefault(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "arrived")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := newTestFetcher(t, nil)
	resp, err := f.Fetch(context.Background(), mustRequest(t, srv.URL+"/start"))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if resp.Text() != "arrived" {
		t.Errorf("body = %q", resp.Text())
	}
	if resp.FinalURL != srv.URL+"/final" {
		t.Errorf("final url = %q", resp.FinalURL)
	}
}

func TestFetchCapsBodySize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 4096))
	}))
	defer srv.Close()

	f := newTestFetcher(t, func(cfg *config.FetcherConfig) {
		cfg.MaxBodySize = 1024
	})
	resp, err := f.Fetch(context.Background(), mustRequest(t, srv.URL))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(resp.Body) != 1024 {
		t.Errorf("body size = %d, want capped at 1024", len(resp.Body))
	}
}

func TestFetchDecompressesGzip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		io.WriteString(gz, "compressed payload")
		gz.Close()
	}))
	defer srv.Close()

	f := newTestFetcher(t, nil)
	resp, err := f.Fetch(context.Background(), mustRequest(t, srv.URL))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if resp.Text() != "compressed payload" {
		t.Errorf("body = %q", resp.Text())
	}
}

func TestFetchDecompressesBrotli(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "br")
		br := brotli.NewWriter(w)
		io.WriteString(br, "brotli payload")
		br.Close()
	}))
	defer srv.Close()

	f := newTestFetcher(t, nil)
	resp, err := f.Fetch(context.Background(), mustRequest(t, srv.URL))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if resp.Text() != "brotli payload" {
		t.Errorf("body = %q", resp.Text())
	}
}

func TestFetchTimeoutClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	f := newTestFetcher(t, nil)
	req := mustRequest(t, srv.URL)
	req.Timeout = 50 * time.Millisecond

	_, err := f.Fetch(context.Background(), req)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.Is(err, types.ErrTimeout) {
		t.Errorf("not classified as timeout: %v", err)
	}
}

func TestFetchCancellationClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	f := newTestFetcher(t, nil)
	_, err := f.Fetch(ctx, mustRequest(t, srv.URL))
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if !errors.Is(err, types.ErrCancelled) {
		t.Errorf("not classified as cancelled: %v", err)
	}
}

// Cookie state set by one engine's upstream must not leak into another
// engine's requests.
func TestSessionsIsolateCookieJars(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("set") {
			http.SetCookie(w, &http.Cookie{Name: "sid", Value: "alpha", Path: "/"})
			return
		}
		if c, err := r.Cookie("sid"); err == nil {
			io.WriteString(w, c.Value)
		}
	}))
	defer srv.Close()

	f := newTestFetcher(t, nil)

	seed := mustRequest(t, srv.URL+"/?set=1")
	seed.Engine = "alpha"
	if _, err := f.Fetch(context.Background(), seed); err != nil {
		t.Fatalf("seed fetch: %v", err)
	}

	same := mustRequest(t, srv.URL)
	same.Engine = "alpha"
	resp, err := f.Fetch(context.Background(), same)
	if err != nil {
		t.Fatalf("same-engine fetch: %v", err)
	}
	if resp.Text() != "alpha" {
		t.Errorf("same engine lost its session cookie: %q", resp.Text())
	}

	other := mustRequest(t, srv.URL)
	other.Engine = "beta"
	resp, err = f.Fetch(context.Background(), other)
	if err != nil {
		t.Fatalf("other-engine fetch: %v", err)
	}
	if resp.Text() != "" {
		t.Errorf("cookie leaked across engines: %q", resp.Text())
	}

	if f.Sessions().Count() != 2 {
		t.Errorf("session count = %d, want 2", f.Sessions().Count())
	}
	f.Sessions().Clear("alpha")
	if f.Sessions().Count() != 1 {
		t.Errorf("session count after clear = %d, want 1", f.Sessions().Count())
	}
}

func TestDispatcherRoutesByFetcherType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "via http")
	}))
	defer srv.Close()

	f := newTestFetcher(t, nil)
	d := NewDispatcher(f, nil)

	resp, err := d.Fetch(context.Background(), mustRequest(t, srv.URL))
	if err != nil {
		t.Fatalf("http dispatch: %v", err)
	}
	if resp.Text() != "via http" {
		t.Errorf("body = %q", resp.Text())
	}

	// A browser request with no browser configured is a typed failure.
	req := mustRequest(t, srv.URL)
	req.FetcherType = types.FetcherBrowser
	_, err = d.Fetch(context.Background(), req)
	if !errors.Is(err, types.ErrNoFetcher) {
		t.Errorf("browser dispatch error = %v, want ErrNoFetcher", err)
	}
}

func TestHTTPClientSharesTransport(t *testing.T) {
	f := newTestFetcher(t, nil)

	c := f.HTTPClient(2 * time.Second)
	if c.Timeout != 2*time.Second {
		t.Errorf("timeout = %v", c.Timeout)
	}
	if c.Transport != f.transport {
		t.Error("client does not share the pooled transport")
	}

	// Zero falls back to the configured fetch timeout.
	if got := f.HTTPClient(0).Timeout; got != f.cfg.Timeout {
		t.Errorf("default timeout = %v, want %v", got, f.cfg.Timeout)
	}
}

func TestParseRetryAfter(t *testing.T) {
	for _, tc := range []struct {
		header string
		want   time.Duration
	}{
		{"7", 7 * time.Second},
		{" 30 ", 30 * time.Second},
		{"600", 2 * time.Minute}, // capped
		{"", 5 * time.Second},
		{"garbage", 5 * time.Second},
	} {
		if got := parseRetryAfter(tc.header); got != tc.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tc.header, got, tc.want)
		}
	}

	// HTTP-date form, bounded by the two-minute cap.
	future := time.Now().Add(30 * time.Second).UTC().Format(http.TimeFormat)
	if got := parseRetryAfter(future); got < 25*time.Second || got > 31*time.Second {
		t.Errorf("parseRetryAfter(date) = %v, want about 30s", got)
	}
	past := time.Now().Add(-time.Hour).UTC().Format(http.TimeFormat)
	if got := parseRetryAfter(past); got != time.Second {
		t.Errorf("parseRetryAfter(past date) = %v, want 1s", got)
	}
}

func TestIsRetryableError(t *testing.T) {
	reset := &net.OpError{Op: "read", Err: syscall.ECONNRESET}
	for _, tc := range []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.Canceled, false},
		{context.DeadlineExceeded, false},
		{io.ErrUnexpectedEOF, true},
		{io.EOF, true},
		{reset, true},
		{errors.New("opaque"), false},
	} {
		if got := isRetryableError(tc.err); got != tc.want {
			t.Errorf("isRetryableError(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
