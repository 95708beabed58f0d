package fetcher

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/nostalgiatan/see/internal/config"
	"github.com/nostalgiatan/see/internal/types"
)

// HTTPFetcher implements Fetcher using net/http. A single instance is
// shared by every engine adapter: the underlying transport pools
// connections while cookie state stays isolated per engine.
type HTTPFetcher struct {
	transport  *http.Transport
	sessions   *SessionManager
	cfg        *config.FetcherConfig
	proxyMgr   *ProxyManager
	logger     *slog.Logger
	userAgents []string
	uaIndex    atomic.Int64
}

// NewHTTPFetcher creates the shared HTTP fetcher.
func NewHTTPFetcher(cfg *config.FetcherConfig, proxyCfg *config.ProxyConfig, logger *slog.Logger) (*HTTPFetcher, error) {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConns / 2,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.TLSInsecure,
		},
		DisableCompression: true, // We handle decompression ourselves (including brotli)
	}

	var proxyMgr *ProxyManager
	if proxyCfg != nil && proxyCfg.Enabled && len(proxyCfg.URLs) > 0 {
		proxyMgr = NewProxyManager(proxyCfg, logger)
		transport.Proxy = proxyMgr.ProxyFunc()
	}

	return &HTTPFetcher{
		transport:  transport,
		sessions:   NewSessionManager(transport, cfg.Timeout, cfg.MaxRedirects, logger),
		cfg:        cfg,
		proxyMgr:   proxyMgr,
		logger:     logger.With("component", "http_fetcher"),
		userAgents: cfg.UserAgents,
	}, nil
}

// Fetch executes a prepared request and returns the raw response.
// Blocked (403), rate-limited (429) and unavailable (503) upstreams are
// surfaced as classified FetchErrors; an unfollowed 3xx comes back as a
// normal response with its Location header preserved.
func (f *HTTPFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	var bodyReader io.Reader
	if len(req.Body) > 0 {
		bodyReader = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URLString(), bodyReader)
	if err != nil {
		return nil, &types.FetchError{Engine: req.Engine, URL: req.URLString(), Err: err}
	}

	httpReq.Header.Set("User-Agent", f.nextUserAgent())
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "en-US,en;q=0.9")
	httpReq.Header.Set("Accept-Encoding", "gzip, deflate, br")
	httpReq.Header.Set("Connection", "keep-alive")

	// Adapter headers override the defaults
	for key, values := range req.Headers {
		for _, v := range values {
			httpReq.Header.Set(key, v)
		}
	}

	// Per-call cookie tuples ride only on this request
	for _, c := range req.Cookies {
		httpReq.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}

	client := f.clientFor(req)

	start := time.Now()
	httpResp, err := client.Do(httpReq)
	duration := time.Since(start)

	if err != nil {
		return nil, &types.FetchError{
			Engine:    req.Engine,
			URL:       req.URLString(),
			Err:       classifyTransport(err),
			Retryable: isRetryableError(err),
		}
	}
	defer httpResp.Body.Close()

	switch status := httpResp.StatusCode; {
	case status == http.StatusTooManyRequests:
		snippet, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		fe := types.NewFetchError(req.Engine, req.URLString(), status)
		fe.RetryAfter = parseRetryAfter(httpResp.Header.Get("Retry-After"))
		fe.Err = fmt.Errorf("%w: retry after %s: %s", types.ErrRateLimited, fe.RetryAfter, strings.TrimSpace(string(snippet)))
		return nil, fe

	case status == http.StatusForbidden, status == http.StatusServiceUnavailable:
		io.Copy(io.Discard, io.LimitReader(httpResp.Body, 512))
		return nil, types.NewFetchError(req.Engine, req.URLString(), status)

	case status >= 400:
		snippet, _ := io.ReadAll(io.LimitReader(httpResp.Body, 1024))
		fe := types.NewFetchError(req.Engine, req.URLString(), status)
		fe.Err = fmt.Errorf("HTTP %d: %s", status, strings.TrimSpace(string(snippet)))
		return nil, fe
	}
	// 2xx, and 3xx when redirects are not followed, fall through with the body

	var reader io.Reader = httpResp.Body
	if f.cfg.MaxBodySize > 0 {
		reader = io.LimitReader(reader, f.cfg.MaxBodySize)
	}

	reader, err = decompressReader(httpResp, reader)
	if err != nil {
		return nil, &types.FetchError{Engine: req.Engine, URL: req.URLString(), Err: err}
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, &types.FetchError{Engine: req.Engine, URL: req.URLString(), Err: err, Retryable: true}
	}

	resp := types.NewResponse(req, httpResp, body, duration)

	f.logger.Debug("fetch complete",
		"engine", req.Engine,
		"url", req.URLString(),
		"status", resp.StatusCode,
		"size", len(body),
		"duration", duration,
	)

	return resp, nil
}

// Close releases resources.
func (f *HTTPFetcher) Close() error {
	f.transport.CloseIdleConnections()
	return nil
}

// Type returns the fetcher type identifier.
func (f *HTTPFetcher) Type() string {
	return types.FetcherHTTP
}

// Sessions exposes the per-engine session manager.
func (f *HTTPFetcher) Sessions() *SessionManager {
	return f.sessions
}

// Proxies exposes the proxy manager, or nil when rotation is disabled.
func (f *HTTPFetcher) Proxies() *ProxyManager {
	return f.proxyMgr
}

// HTTPClient returns a plain client on the shared pooled transport for
// collaborators that speak net/http directly, such as feed parsing.
func (f *HTTPFetcher) HTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = f.cfg.Timeout
	}
	return &http.Client{Transport: f.transport, Timeout: timeout}
}

// clientFor returns the engine's session client, swapping in a
// non-following redirect policy when the request asks for one.
func (f *HTTPFetcher) clientFor(req *types.Request) *http.Client {
	client := f.sessions.Client(req.Engine)
	if !req.FollowRedirects || !f.cfg.FollowRedirects {
		c := *client
		c.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
		return &c
	}
	return client
}

// nextUserAgent returns the next User-Agent in rotation.
func (f *HTTPFetcher) nextUserAgent() string {
	if len(f.userAgents) == 0 {
		return "See/" + config.Version
	}
	idx := f.uaIndex.Add(1) % int64(len(f.userAgents))
	return f.userAgents[idx]
}

// classifyTransport maps context errors onto the sentinel taxonomy so
// callers can tell a deadline from a caller cancellation.
func classifyTransport(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", types.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %v", types.ErrCancelled, err)
	default:
		return err
	}
}

// decompressReader wraps a reader with the appropriate decompressor.
// Handles gzip, deflate, and brotli (br) encodings.
func decompressReader(resp *http.Response, reader io.Reader) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(reader)
	case "deflate":
		return flate.NewReader(reader), nil
	case "br":
		return brotli.NewReader(reader), nil
	default:
		return reader, nil
	}
}

// isRetryableError checks if a network error warrants a retry.
// Covers timeouts, connection resets, unexpected EOF, and connection refused.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	// Context cancellation is NOT retryable
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// Unexpected EOF mid-stream — retryable
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	// Network-level errors
	if netErr, ok := err.(net.Error); ok {
		if netErr.Timeout() {
			return true
		}
	}
	// Connection reset by peer, connection refused
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errors.Is(opErr.Err, syscall.ECONNRESET) ||
			errors.Is(opErr.Err, syscall.ECONNREFUSED) {
			return true
		}
	}
	return false
}

// parseRetryAfter parses the Retry-After header value.
// Supports both integer seconds and HTTP-date formats.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 5 * time.Second // default back-off
	}
	// Try seconds integer
	if secs, err := strconv.Atoi(strings.TrimSpace(header)); err == nil {
		if secs > 120 {
			secs = 120 // cap at 2 minutes
		}
		return time.Duration(secs) * time.Second
	}
	// Try HTTP-date
	if t, err := http.ParseTime(header); err == nil {
		d := time.Until(t)
		if d < 0 {
			return time.Second
		}
		if d > 2*time.Minute {
			return 2 * time.Minute
		}
		return d
	}
	return 5 * time.Second
}
