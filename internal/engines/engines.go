package engines

import (
	"github.com/nostalgiatan/see/internal/engine"
	"github.com/nostalgiatan/see/internal/fetcher"
	"github.com/nostalgiatan/see/internal/types"
)

// Register builds the full adapter catalog on the shared fetcher and
// registers it. Engines named in browserEngines have their prepared
// requests routed through the headless browser instead of plain HTTP.
func Register(reg *engine.Registry, f fetcher.Fetcher, browserEngines []string) error {
	adapters := []engine.Adapter{
		NewYandex(f),
		NewBing(f),
		NewBaidu(f),
		NewSo(f),
		NewSogou(f),
		NewBilibili(f),
		NewUnsplash(f),
		NewBingImages(f),
		NewSogouVideos(f),
		NewBingNews(f),
		NewBingVideos(f),
		NewSogouWechat(f),
		NewSogouImages(f),
	}

	browser := make(map[string]bool, len(browserEngines))
	for _, name := range browserEngines {
		browser[name] = true
	}

	for _, a := range adapters {
		if browser[a.Info().Name] {
			a = browserRouted{a}
		}
		if err := reg.Register(a); err != nil {
			return err
		}
	}
	return nil
}

// browserRouted decorates an adapter so its prepared requests take the
// headless browser path. Everything else passes through.
type browserRouted struct {
	engine.Adapter
}

func (b browserRouted) Prepare(q *types.Query) (*types.Request, error) {
	req, err := b.Adapter.Prepare(q)
	if err != nil {
		return nil, err
	}
	req.FetcherType = types.FetcherBrowser
	return req, nil
}
