// command komiktrap
package main

// SPDX-License-Identifier: GPL-3.0-only

// This is the main entry point for komiktrap, an incremental comic metadata
// and chapter-image-URL scraper.  Each run re-walks the target site's
// catalog, fetches only chapters that are not yet persisted, and writes one
// JSON file per comic.

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/pflag"
)

var (
	// Build information, set via -ldflags at build time.
	buildGitCommitHash = "unknown"
	buildTimestamp     = "unknown"
)

// Config holds the application configuration.  Defaults come from the env
// tags, may be overridden by KOMIKTRAP_* environment variables, and CLI
// flags win over both.
type Config struct {
	Debug        bool          `env:"KOMIKTRAP_DEBUG"         envDefault:"false"` // Enable debug logging
	Site         string        `env:"KOMIKTRAP_SITE"          envDefault:"komikindo"`
	OutputDir    string        `env:"KOMIKTRAP_OUTPUT"        envDefault:"comics"`
	Workers      int           `env:"KOMIKTRAP_WORKERS"       envDefault:"3"`
	MaxPages     int           `env:"KOMIKTRAP_MAX_PAGES"     envDefault:"50"` // Catalog page safety ceiling
	PageDelay    time.Duration `env:"KOMIKTRAP_PAGE_DELAY"    envDefault:"1s"`
	ChapterDelay time.Duration `env:"KOMIKTRAP_CHAPTER_DELAY" envDefault:"500ms"`
	SaveEvery    int           `env:"KOMIKTRAP_SAVE_EVERY"    envDefault:"10"` // NEW path persist cadence
	Repair       bool          `env:"KOMIKTRAP_REPAIR"        envDefault:"false"`
}

func main() {
	config, err := ParseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	logger := CreateLogger(os.Stderr, config.Debug)

	site, err := SiteByName(config.Site)
	if err != nil {
		logger.Error("Unknown site", "site", config.Site, "error", err)
		os.Exit(1)
	}

	logger.Info("Starting komiktrap",
		"commit", buildGitCommitHash,
		"buildDate", buildTimestamp,
		"site", site.Name())
	logger.Debug("Configuration", "config", fmt.Sprintf("%+v", config))

	client := NewHTTPClient(logger, site.BaseURL())
	store := NewStore(logger, config.OutputDir)
	index := NewComicIndex()

	existing, err := store.LoadAll()
	if err != nil {
		logger.Error("Failed to load existing comics", "dir", config.OutputDir, "error", err)
		os.Exit(1)
	}
	for _, comic := range existing {
		index.Insert(comic)
	}
	logger.Info("Loaded existing comics", "count", index.Len())

	walker := NewCatalogWalker(logger, client, site, config.MaxPages, config.PageDelay)
	engine := NewEngine(logger, client, site, store, index,
		config.ChapterDelay, config.SaveEvery, config.Repair)
	controller := NewController(logger, walker, engine, index, config.Workers)

	// Ctrl+C stops dispatching new comics; in-flight ones finish their
	// current complete-record write.  Either way we fall through to the
	// summary and exit cleanly.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary := controller.Run(ctx)

	logger.Info("Done!",
		"discovered", summary.Discovered,
		"comics", summary.Comics,
		"chapters", summary.Chapters,
		"newChapters", summary.NewChapters)
}

// ParseFlags builds the configuration: env-tag defaults, then KOMIKTRAP_*
// environment variables, then command line flags.
//
// Returns:
//   - Config: A populated configuration struct
//   - error: Any error parsing the environment
func ParseFlags() (Config, error) {
	config := Config{}
	if err := env.Parse(&config); err != nil {
		return config, fmt.Errorf("failed to parse environment: %w", err)
	}

	pflag.BoolVarP(&config.Debug, "debug", "d", config.Debug, "Enable debug logging")
	pflag.StringVarP(&config.Site, "site", "s", config.Site, "Target site (komikindo, komikcast)")
	pflag.StringVarP(&config.OutputDir, "output", "o", config.OutputDir, "Output directory for comic JSON files")
	pflag.IntVarP(&config.Workers, "workers", "w", config.Workers, "Number of comics processed in parallel")
	pflag.IntVarP(&config.MaxPages, "max-pages", "p", config.MaxPages, "Safety ceiling on catalog pages")
	pflag.DurationVar(&config.PageDelay, "page-delay", config.PageDelay, "Delay between catalog page fetches")
	pflag.DurationVar(&config.ChapterDelay, "chapter-delay", config.ChapterDelay, "Delay between chapter page fetches")
	pflag.IntVar(&config.SaveEvery, "save-every", config.SaveEvery, "Persist a new comic after every N chapters")
	pflag.BoolVarP(&config.Repair, "repair", "r", config.Repair, "Re-fetch images for chapters saved without any")

	pflag.Parse()

	// Check for unexpected positional arguments
	if pflag.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "usage: %s [-dr] [-s <site>] [-o <output_dir>] [-w <workers>] [-p <max_pages>]\n\n",
			os.Args[0])
		pflag.PrintDefaults()
		os.Exit(1)
	}

	return config, nil
}

// CreateLogger creates a new slog.Logger instance with the specified output
// writer and log level based on the debug flag.
//
// Parameters:
//   - w: The io.Writer where log output will be written
//   - debug: If true, sets log level to Debug; otherwise sets to Info
//
// Returns:
//   - *slog.Logger: A configured logger instance
func CreateLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler)
}

// fatalInvariant intentionally panics when a fundamental assumption is
// broken.  These checks keep the crawler from continuing in a corrupted
// state, so we do not attempt to recover or retry if one of them triggers.
// This is used in cases where an error must not be returned up the stack,
// because the caller must not be allowed to retry or continue processing.
func fatalInvariant(message any) {
	panic(message)
}
