package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/nostalgiatan/see/internal/config"
	"github.com/nostalgiatan/see/internal/rss"
	"github.com/nostalgiatan/see/internal/types"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(indexHTML))
}

func (s *Server) handleFavicon(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(faviconSVG))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	s.executeSearch(w, r, paramsFromQuery(r.URL.Query()))
}

func (s *Server) handleSearchPost(w http.ResponseWriter, r *http.Request) {
	var params searchParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		s.errorResponse(w, http.StatusBadRequest, codeInvalidQuery, "invalid JSON body", err.Error())
		return
	}
	s.executeSearch(w, r, params)
}

func (s *Server) executeSearch(w http.ResponseWriter, r *http.Request, params searchParams) {
	req, err := params.toRequest()
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, codeInvalidQuery, "invalid search parameters", err.Error())
		return
	}

	resp, err := s.searcher.Search(r.Context(), req)
	if err != nil {
		if errors.Is(err, types.ErrInvalidQuery) {
			s.errorResponse(w, http.StatusBadRequest, codeInvalidQuery, "invalid search parameters", err.Error())
			return
		}
		s.errorResponse(w, http.StatusInternalServerError, codeSearchError, "search failed", err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, newSearchResponse(req, resp))
}

func (s *Server) handleEngines(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.registry.Descriptors())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.searcher.StatsSnapshot())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	descriptors := s.registry.Descriptors()
	available := 0
	for _, d := range descriptors {
		if d.Health.Available {
			available++
		}
	}
	s.jsonResponse(w, http.StatusOK, healthResponse{
		Status:           "healthy",
		Version:          config.Version,
		AvailableEngines: available,
		TotalEngines:     len(descriptors),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, versionResponse{
		Version:     config.Version,
		Name:        config.Name,
		Description: config.Description,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Metrics.Enabled {
		s.errorResponse(w, http.StatusServiceUnavailable, codeDisabled, "metrics disabled", "")
		return
	}
	s.collector.Handler().ServeHTTP(w, r)
}

func (s *Server) handleRealtimeMetrics(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.collector.Realtime())
}

func (s *Server) handleRSSFeeds(w http.ResponseWriter, r *http.Request) {
	if s.feeds == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, codeDisabled, "rss disabled", "")
		return
	}
	s.jsonResponse(w, http.StatusOK, s.feeds.Feeds())
}

func (s *Server) handleRSSFetch(w http.ResponseWriter, r *http.Request) {
	if s.feeds == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, codeDisabled, "rss disabled", "")
		return
	}
	var body struct {
		Feed string `json:"feed"`
	}
	// An empty body means "fetch everything".
	_ = json.NewDecoder(r.Body).Decode(&body)

	if body.Feed == "" {
		items, err := s.feeds.FetchAll(r.Context())
		if items == 0 && err != nil {
			s.errorResponse(w, http.StatusBadGateway, codeRSSError, "rss fetch failed", err.Error())
			return
		}
		s.jsonResponse(w, http.StatusOK, map[string]any{"feed": "all", "items": items})
		return
	}

	if !s.feedKnown(body.Feed) {
		s.errorResponse(w, http.StatusNotFound, codeNotFound, fmt.Sprintf("unknown feed %q", body.Feed), "")
		return
	}
	items, err := s.feeds.Fetch(r.Context(), body.Feed)
	if err != nil {
		s.errorResponse(w, http.StatusBadGateway, codeRSSError, "rss fetch failed", err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"feed": body.Feed, "items": items})
}

func (s *Server) feedKnown(name string) bool {
	for _, st := range s.feeds.Feeds() {
		if st.Name == name {
			return true
		}
	}
	return false
}

func (s *Server) handleRSSFeedAdd(w http.ResponseWriter, r *http.Request) {
	if s.feeds == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, codeDisabled, "rss disabled", "")
		return
	}
	var feed rss.Feed
	if err := json.NewDecoder(r.Body).Decode(&feed); err != nil {
		s.errorResponse(w, http.StatusBadRequest, codeInvalidQuery, "invalid JSON body", err.Error())
		return
	}
	if err := s.feeds.AddFeed(feed); err != nil {
		s.errorResponse(w, http.StatusBadRequest, codeInvalidQuery, "invalid feed", err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "added", "name": feed.Name})
}

func (s *Server) handleRSSFeedRemove(w http.ResponseWriter, r *http.Request) {
	if s.feeds == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, codeDisabled, "rss disabled", "")
		return
	}
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.errorResponse(w, http.StatusBadRequest, codeInvalidQuery, "invalid JSON body", err.Error())
		return
	}
	if !s.feeds.RemoveFeed(body.Name) {
		s.errorResponse(w, http.StatusNotFound, codeNotFound, fmt.Sprintf("unknown feed %q", body.Name), "")
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "removed", "name": body.Name})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, codeDisabled, "cache disabled", "")
		return
	}
	stats := s.store.Stats()
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"backend": s.store.Name(),
		"entries": stats.Entries,
		"hits":    stats.Hits,
		"misses":  stats.Misses,
	})
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, codeDisabled, "cache disabled", "")
		return
	}
	if err := s.store.Clear(); err != nil {
		s.errorResponse(w, http.StatusInternalServerError, codeCacheError, "cache clear failed", err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleCacheCleanup(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, codeDisabled, "cache disabled", "")
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"removed": s.store.Cleanup()})
}

func (s *Server) handleMagicLinkGenerate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Purpose string `json:"purpose"`
	}
	// An empty or absent body mints a general-purpose link.
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.Purpose == "" {
		body.Purpose = "general"
	}

	token, expiresIn := s.links.Generate(body.Purpose)
	s.jsonResponse(w, http.StatusOK, magicLinkResponse{
		Token:     token,
		ExpiresIn: int64(expiresIn.Seconds()),
		URL:       fmt.Sprintf("/api/search?magic_token=%s", token),
	})
}
