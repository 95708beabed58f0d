package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nostalgiatan/see/internal/config"
	"github.com/nostalgiatan/see/internal/engine"
	"github.com/nostalgiatan/see/internal/engines"
	"github.com/nostalgiatan/see/internal/fetcher"
	"github.com/nostalgiatan/see/internal/rss"
	"github.com/nostalgiatan/see/internal/search"
	"github.com/nostalgiatan/see/internal/types"
)

var (
	searchEngines  string
	searchCount    int
	searchPage     int
	searchPageSize int
	searchLanguage string
	searchRegion   string
	searchSafe     bool
	searchRange    string
	searchTimeout  time.Duration
	searchFullText bool
	searchJSON     bool
)

// searchCommand creates the "search" subcommand: a one-shot aggregated
// search from the terminal, no server involved.
func searchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Run a one-shot search from the command line",
		Long:  "Query the configured engines once, merge the results and print them.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSearch,
	}

	cmd.Flags().StringVarP(&searchEngines, "engines", "e", "", "comma-separated engines to query (default: configured set)")
	cmd.Flags().IntVarP(&searchCount, "count", "n", 0, "query only the first n default engines (0 = all)")
	cmd.Flags().IntVar(&searchPage, "page", 1, "result page")
	cmd.Flags().IntVar(&searchPageSize, "page-size", 10, "results per page requested from each engine")
	cmd.Flags().StringVar(&searchLanguage, "language", "", "preferred language (e.g. en, zh-CN)")
	cmd.Flags().StringVar(&searchRegion, "region", "", "preferred region (e.g. us, cn)")
	cmd.Flags().BoolVar(&searchSafe, "safe-search", false, "enable safe search on engines that support it")
	cmd.Flags().StringVar(&searchRange, "time-range", "", "restrict result age: day, week, month, year")
	cmd.Flags().DurationVar(&searchTimeout, "timeout", 0, "overall search timeout (0 = config default)")
	cmd.Flags().BoolVar(&searchFullText, "full-text", false, "full-text mode: expand the query and fold in RSS/cache items")
	cmd.Flags().BoolVar(&searchJSON, "json", false, "print the raw JSON response")

	return cmd
}

// runSearch executes the search command.
func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cfg)
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger := setupLogger(cfg)

	req := types.NewSearchRequest(strings.Join(args, " "))
	if searchPage > 0 {
		req.Query.Page = searchPage
	}
	if searchPageSize > 0 {
		req.Query.PageSize = searchPageSize
	}
	req.Query.Language = searchLanguage
	req.Query.Region = searchRegion
	req.Query.SafeSearch = searchSafe
	if searchRange != "" {
		tr, err := types.ParseTimeRange(searchRange)
		if err != nil {
			return fmt.Errorf("invalid time range: %w", err)
		}
		req.Query.TimeRange = tr
	}
	if searchEngines != "" {
		for _, name := range strings.Split(searchEngines, ",") {
			if name = strings.TrimSpace(name); name != "" {
				req.Engines = append(req.Engines, name)
			}
		}
	}
	if len(req.Engines) == 0 && searchCount > 0 {
		req.EngineCount = searchCount
	}
	if searchTimeout > 0 {
		req.Timeout = searchTimeout
	}

	httpFetcher, err := fetcher.NewHTTPFetcher(&cfg.Fetcher, &cfg.Proxy, logger)
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}
	// One-shot searches skip the headless browser; engines normally routed
	// through it fall back to the plain HTTP client.
	dispatcher := fetcher.NewDispatcher(httpFetcher, nil)
	defer dispatcher.Close()

	health := engine.NewHealthStore(cfg.Search.FailureThreshold, cfg.Search.DisableDuration, logger)
	registry := engine.NewRegistry(cfg.Search.DefaultEngines, health)
	if err := engines.Register(registry, dispatcher, nil); err != nil {
		return fmt.Errorf("register engines: %w", err)
	}

	stats := search.NewStats()
	executor := search.NewExecutor(registry, cfg.Search, stats, logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Full-text mode folds in RSS items, so the feeds are fetched first.
	var passive search.PassiveSource
	if searchFullText && cfg.RSS.Enabled {
		feeds := rss.NewService(cfg.RSS, httpFetcher.HTTPClient(cfg.RSS.Timeout), logger)
		if n, err := feeds.FetchAll(ctx); err != nil {
			logger.Warn("feed fetch incomplete", "items", n, "error", err)
		}
		passive = feeds
	}

	searcher := search.NewSearcher(cfg.Search, registry, executor, nil, passive, stats, logger)
	var resp *types.SearchResponse
	if searchFullText {
		resp, err = searcher.SearchFullText(ctx, req)
	} else {
		resp, err = searcher.Search(ctx, req)
	}
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	printResults(resp)
	return nil
}

// printResults renders a response for the terminal.
func printResults(resp *types.SearchResponse) {
	items := resp.Result.Items
	fmt.Printf("\n🔍 %d results for %q in %dms\n", len(items), resp.Query, resp.QueryTimeMs)
	if len(resp.EnginesUsed) > 0 {
		fmt.Printf("   Engines: %s\n", strings.Join(resp.EnginesUsed, ", "))
	}
	fmt.Println()

	for i, item := range items {
		fmt.Printf("%3d. %s\n", i+1, item.Title)
		fmt.Printf("     %s\n", item.URL)
		if snippet := strings.TrimSpace(item.Content); snippet != "" {
			if r := []rune(snippet); len(r) > 160 {
				snippet = string(r[:160]) + "…"
			}
			fmt.Printf("     %s\n", snippet)
		}
		if eng := item.Meta("engine"); eng != "" {
			fmt.Printf("     [%s, score %.2f]\n", eng, item.Score)
		}
		fmt.Println()
	}

	if len(items) == 0 {
		fmt.Println("   No results. Try different engines or a broader query.")
	}
}
