package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/nostalgiatan/see/internal/config"
	"github.com/nostalgiatan/see/internal/types"
)

// BrowserFetcher renders pages in headless Chromium via Rod. Engines that
// hide their results behind JavaScript are routed here by the Dispatcher;
// everything else goes through the cheaper HTTPFetcher.
type BrowserFetcher struct {
	browser  *rod.Browser
	cfg      config.FetcherConfig
	logger   *slog.Logger
	proxyMgr *ProxyManager
	pagePool chan *rod.Page
	maxPages int
	stealth  bool
}

// BrowserOption configures the BrowserFetcher.
type BrowserOption func(*BrowserFetcher)

// WithBrowserProxy routes browser traffic through the proxy pool.
func WithBrowserProxy(pm *ProxyManager) BrowserOption {
	return func(bf *BrowserFetcher) { bf.proxyMgr = pm }
}

// WithMaxPages bounds the number of concurrently open tabs.
func WithMaxPages(n int) BrowserOption {
	return func(bf *BrowserFetcher) {
		if n > 0 {
			bf.maxPages = n
		}
	}
}

// WithoutStealth disables the fingerprint-evasion page priming.
func WithoutStealth() BrowserOption {
	return func(bf *BrowserFetcher) { bf.stealth = false }
}

// NewBrowserFetcher launches a headless Chromium and connects to it.
func NewBrowserFetcher(cfg config.FetcherConfig, logger *slog.Logger, opts ...BrowserOption) (*BrowserFetcher, error) {
	bf := &BrowserFetcher{
		cfg:      cfg,
		logger:   logger.With("component", "browser_fetcher"),
		maxPages: 4,
		stealth:  true,
	}
	for _, opt := range opts {
		opt(bf)
	}

	launchURL, err := bf.launchBrowser()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(launchURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	bf.browser = browser
	bf.pagePool = make(chan *rod.Page, bf.maxPages)

	bf.logger.Info("browser fetcher ready", "max_pages", bf.maxPages, "stealth", bf.stealth)
	return bf, nil
}

func (bf *BrowserFetcher) launchBrowser() (string, error) {
	l := launcher.New().
		Headless(true).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-blink-features", "AutomationControlled")

	if bf.proxyMgr != nil {
		if proxyURL := bf.proxyMgr.Next(); proxyURL != nil {
			l = l.Proxy(proxyURL.String())
		}
	}

	return l.Launch()
}

// Fetch navigates to the prepared URL and returns the rendered HTML. The
// reported status code is always 200: Rod does not surface the document
// status, and a challenge page is caught downstream by DetectChallenge.
func (bf *BrowserFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	start := time.Now()

	page, err := bf.getPage()
	if err != nil {
		return nil, &types.FetchError{Engine: req.Engine, URL: req.URLString(), Err: err, Retryable: true}
	}
	defer bf.putPage(page)

	page = page.Context(ctx)

	if ua := req.Headers.Get("User-Agent"); ua != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
			bf.logger.Warn("set user agent failed", "engine", req.Engine, "error", err)
		}
	}

	if extra := extraHeaders(req.Headers); len(extra) > 0 {
		_, _ = page.SetExtraHeaders(extra)
	}

	if len(req.Cookies) > 0 {
		params := make([]*proto.NetworkCookieParam, 0, len(req.Cookies))
		for _, c := range req.Cookies {
			params = append(params, &proto.NetworkCookieParam{
				Name:   c.Name,
				Value:  c.Value,
				Domain: req.Domain(),
				Path:   "/",
			})
		}
		if err := page.SetCookies(params); err != nil {
			bf.logger.Warn("set cookies failed", "engine", req.Engine, "error", err)
		}
	}

	timeout := bf.cfg.Timeout
	if req.Timeout > 0 && req.Timeout < timeout {
		timeout = req.Timeout
	}

	if err := page.Timeout(timeout).Navigate(req.URLString()); err != nil {
		return nil, &types.FetchError{Engine: req.Engine, URL: req.URLString(), Err: err, Retryable: true}
	}

	if err := page.Timeout(timeout).WaitStable(300 * time.Millisecond); err != nil {
		bf.logger.Debug("page stability timeout, using current DOM", "engine", req.Engine, "url", req.URLString())
	}

	html, err := page.HTML()
	if err != nil {
		return nil, &types.FetchError{Engine: req.Engine, URL: req.URLString(), Err: err, Retryable: true}
	}

	finalURL := req.URLString()
	if info, err := page.Info(); err == nil && info != nil {
		finalURL = info.URL
	}

	duration := time.Since(start)
	resp := types.NewBrowserResponse(req, 200, []byte(html), finalURL, duration)

	bf.logger.Debug("browser fetch complete",
		"engine", req.Engine,
		"url", req.URLString(),
		"final_url", finalURL,
		"size", len(html),
		"duration", duration,
	)
	return resp, nil
}

// Close shuts down pooled pages and the browser process.
func (bf *BrowserFetcher) Close() error {
	close(bf.pagePool)
	for page := range bf.pagePool {
		_ = page.Close()
	}
	if bf.browser != nil {
		return bf.browser.Close()
	}
	return nil
}

// Type returns the fetcher type identifier.
func (bf *BrowserFetcher) Type() string {
	return types.FetcherBrowser
}

func (bf *BrowserFetcher) getPage() (*rod.Page, error) {
	select {
	case page := <-bf.pagePool:
		return page, nil
	default:
	}
	if bf.stealth {
		return stealth.Page(bf.browser)
	}
	return bf.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
}

func (bf *BrowserFetcher) putPage(page *rod.Page) {
	// Park on about:blank so the pooled tab releases the previous DOM.
	_ = page.Navigate("about:blank")

	select {
	case bf.pagePool <- page:
	default:
		_ = page.Close()
	}
}

// extraHeaders flattens request headers into Rod's key/value list,
// skipping the User-Agent which is set through the CDP override.
func extraHeaders(h map[string][]string) []string {
	out := make([]string, 0, len(h)*2)
	for k, vals := range h {
		if k == "User-Agent" {
			continue
		}
		for _, v := range vals {
			out = append(out, k, v)
		}
	}
	return out
}
