package engines

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/nostalgiatan/see/internal/config"
	"github.com/nostalgiatan/see/internal/engine"
	"github.com/nostalgiatan/see/internal/fetcher"
	"github.com/nostalgiatan/see/internal/types"
)

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parsing fixture: %v", err)
	}
	return doc
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testFetcher(t *testing.T) *fetcher.HTTPFetcher {
	t.Helper()
	cfg := config.DefaultConfig()
	f, err := fetcher.NewHTTPFetcher(&cfg.Fetcher, nil, testLogger())
	if err != nil {
		t.Fatalf("NewHTTPFetcher: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestRegisterBuildsFullCatalog(t *testing.T) {
	f := testFetcher(t)
	reg := engine.NewRegistry(config.DefaultEngines(), engine.NewHealthStore(3, 0, testLogger()))

	if err := Register(reg, f, nil); err != nil {
		t.Fatalf("Register: %v", err)
	}

	want := []string{
		"yandex", "bing", "baidu", "so", "sogou", "bilibili", "unsplash",
		"bing_images", "sogou_videos", "bing_news", "bing_videos",
		"sogou_wechat", "sogou_images",
	}
	for _, name := range want {
		if !reg.Has(name) {
			t.Errorf("engine %q not registered", name)
		}
	}
	if got := len(reg.Names()); got != len(want) {
		t.Errorf("catalog size = %d, want %d", got, len(want))
	}

	// Defaults stay a strict subset of the catalog, in display order.
	for _, name := range reg.Defaults() {
		if !reg.Has(name) {
			t.Errorf("default engine %q missing from catalog", name)
		}
	}
}

func TestRegisterRoutesBrowserEngines(t *testing.T) {
	f := testFetcher(t)
	reg := engine.NewRegistry(config.DefaultEngines(), engine.NewHealthStore(3, 0, testLogger()))

	if err := Register(reg, f, []string{"yandex"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	yandex, err := reg.Get("yandex")
	if err != nil {
		t.Fatalf("Get(yandex): %v", err)
	}
	req, err := yandex.Prepare(types.NewQuery("golang"))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if req.FetcherType != types.FetcherBrowser {
		t.Errorf("yandex request FetcherType = %q, want %q", req.FetcherType, types.FetcherBrowser)
	}
	if yandex.Info().Name != "yandex" {
		t.Errorf("decorator hides Info: got %q", yandex.Info().Name)
	}

	bing, err := reg.Get("bing")
	if err != nil {
		t.Fatalf("Get(bing): %v", err)
	}
	req, err = bing.Prepare(types.NewQuery("golang"))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if req.FetcherType != types.FetcherHTTP {
		t.Errorf("bing request FetcherType = %q, want %q", req.FetcherType, types.FetcherHTTP)
	}
}

func TestAdapterInfoConsistency(t *testing.T) {
	f := testFetcher(t)
	reg := engine.NewRegistry(config.DefaultEngines(), engine.NewHealthStore(3, 0, testLogger()))
	if err := Register(reg, f, nil); err != nil {
		t.Fatalf("Register: %v", err)
	}

	for _, name := range reg.Names() {
		a, err := reg.Get(name)
		if err != nil {
			t.Fatalf("Get(%s): %v", name, err)
		}
		info := a.Info()
		if info.Name != name {
			t.Errorf("info name %q registered under %q", info.Name, name)
		}
		if info.DisplayName == "" || info.Category == "" || info.Website == "" {
			t.Errorf("%s: incomplete info: %+v", name, info)
		}
		if info.Timeout <= 0 {
			t.Errorf("%s: no timeout", name)
		}
		if len(info.Capabilities.ResultTypes) == 0 {
			t.Errorf("%s: no result types", name)
		}
	}
}
