package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/lazyload/internal/catalog"
	"github.com/Sternrassler/lazyload/internal/config"
	"github.com/Sternrassler/lazyload/internal/tui"
	"github.com/Sternrassler/lazyload/pkg/surface"
)

const version = "0.1.0"

// flags shared by all commands; empty values keep the config file setting.
type rootFlags struct {
	configPath string
	baseURL    string
	search     string
	trigger    string
	logLevel   string
	logFile    string
	cache      bool
	prefetch   int
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "lazyfeed",
		Short:         "Browse a paged listing with infinite scrolling",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			if cfg.Log.File == "" {
				cfg.Log.File = filepath.Join(os.TempDir(), "lazyfeed.log")
			}
			return runBrowser(cmd.Context(), cfg)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", config.DefaultPath(), "Path to config.toml")
	pf.StringVar(&flags.baseURL, "url", "", "Base URL of the listing source")
	pf.StringVarP(&flags.search, "search", "s", "", "Initial search term")
	pf.StringVar(&flags.trigger, "trigger", "", "Load trigger: scroll or sentinel")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&flags.logFile, "log-file", "", "Write logs to this file")
	pf.BoolVar(&flags.cache, "cache", false, "Cache pages in Redis")
	pf.IntVar(&flags.prefetch, "prefetch", -1, "Pages to load ahead (requires --cache to pay off)")

	cmd.AddCommand(newFetchCmd(flags), newConfigCmd(flags), newCacheCmd(flags))
	return cmd
}

// loadConfig reads the config file and applies the flags set on cmd.
func loadConfig(cmd *cobra.Command, flags *rootFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("url") {
		cfg.Source.BaseURL = flags.baseURL
	}
	if changed("search") {
		cfg.Feed.InitialSearch = flags.search
	}
	if changed("trigger") {
		cfg.Feed.Trigger = flags.trigger
	}
	if changed("log-level") {
		cfg.Log.Level = flags.logLevel
	}
	if changed("log-file") {
		cfg.Log.File = flags.logFile
	}
	if changed("cache") {
		cfg.Cache.Enabled = flags.cache
	}
	if changed("prefetch") {
		cfg.Prefetch.Pages = flags.prefetch
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runBrowser(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	region := surface.NewRegion(surface.Options{
		MaxHeight: cfg.Feed.MaxHeight,
		Styles:    map[string]string{"border": "rounded", "border-color": "8"},
	})
	if err := a.attach(cfg, region); err != nil {
		return err
	}

	model := tui.New(a.feed, region, tui.Options[catalog.Item]{
		Format:        formatItem,
		Placeholder:   "type to search",
		InitialSearch: cfg.Feed.InitialSearch,
		Logger:        &a.logger,
	})
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("terminal ui: %w", err)
	}
	return nil
}

func formatItem(it catalog.Item) string {
	return fmt.Sprintf("%6d  %s", it.ID, it.Name)
}

func newFetchCmd(flags *rootFlags) *cobra.Command {
	var pages int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Load pages without the terminal UI and print the items",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			items, err := a.fetch(cmd.Context(), cfg.Feed.InitialSearch, pages)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				for _, it := range items {
					if err := enc.Encode(it); err != nil {
						return err
					}
				}
				return nil
			}
			for _, it := range items {
				fmt.Fprintln(out, formatItem(it))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&pages, "pages", "n", 1, "Number of pages to load (0 = all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print one JSON object per line")
	return cmd
}

func newConfigCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(flags.configPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", flags.configPath)
			}
			if err := config.Save(config.Default(), flags.configPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", flags.configPath)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			return toml.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}

func newCacheCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the Redis page cache",
	}
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached pages of the configured endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			cfg.Cache.Enabled = true
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.cached.Invalidate(cmd.Context())
			if err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached pages\n", n)
			return nil
		},
	}
	cmd.AddCommand(clearCmd)
	return cmd
}
