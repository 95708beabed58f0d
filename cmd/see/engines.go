package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nostalgiatan/see/internal/config"
	"github.com/nostalgiatan/see/internal/engine"
	"github.com/nostalgiatan/see/internal/engines"
	"github.com/nostalgiatan/see/internal/fetcher"
)

// enginesCmd creates the "engines" subcommand.
func enginesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "engines",
		Short: "List the registered search engines",
		RunE:  runEngines,
	}
}

// runEngines prints every registered adapter with its category and
// whether it belongs to the configured default set.
func runEngines(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cfg)
	logger := setupLogger(cfg)

	httpFetcher, err := fetcher.NewHTTPFetcher(&cfg.Fetcher, &cfg.Proxy, logger)
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}
	dispatcher := fetcher.NewDispatcher(httpFetcher, nil)
	defer dispatcher.Close()

	health := engine.NewHealthStore(cfg.Search.FailureThreshold, cfg.Search.DisableDuration, logger)
	registry := engine.NewRegistry(cfg.Search.DefaultEngines, health)
	if err := engines.Register(registry, dispatcher, cfg.Fetcher.BrowserEngines); err != nil {
		return fmt.Errorf("register engines: %w", err)
	}

	defaults := make(map[string]bool, len(cfg.Search.DefaultEngines))
	for _, name := range cfg.Search.DefaultEngines {
		defaults[name] = true
	}

	descs := registry.Descriptors()
	fmt.Printf("%-16s %-10s %-9s %s\n", "NAME", "CATEGORY", "DEFAULT", "DESCRIPTION")
	for _, d := range descs {
		def := ""
		if defaults[d.Info.Name] {
			def = "✓"
		}
		fmt.Printf("%-16s %-10s %-9s %s\n", d.Info.Name, d.Info.Category, def, d.Info.Description)
	}
	fmt.Printf("\n%d engines registered, %d in the default set\n", len(descs), len(cfg.Search.DefaultEngines))
	return nil
}
