package main

// SPDX-License-Identifier: GPL-3.0-only

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

// Engine is the incremental crawl-and-merge core.  For each catalog entry it
// decides between the NEW path (full scrape of an unseen comic) and the
// UPDATE path (fetch only chapters whose number is not yet persisted), then
// merges, re-sorts and writes the complete record back to the store.
//
// Identity is always the comic's URL.  Titles drift between runs and are
// overwritten freely; a chapter number already present in a record is never
// fetched again.
type Engine struct {
	logger    *slog.Logger
	client    Client
	site      Site
	store     *Store
	index     *ComicIndex
	limiter   *rate.Limiter
	saveEvery int
	repair    bool
}

// NewEngine creates a merge engine.
//
// Parameters:
//   - logger: Logger instance
//   - client: HTTP client interface for making web requests
//   - site: The target site adapter
//   - store: The persistence store
//   - index: Shared index of known comics, seeded from the store
//   - chapterDelay: Minimum delay between chapter page fetches
//   - saveEvery: NEW path persist cadence in chapters
//   - repair: Re-fetch images for known chapters whose image list is empty
//
// Returns:
//   - *Engine: A new engine ready for use
func NewEngine(
	logger *slog.Logger,
	client Client,
	site Site,
	store *Store,
	index *ComicIndex,
	chapterDelay time.Duration,
	saveEvery int,
	repair bool,
) *Engine {
	if saveEvery < 1 {
		saveEvery = 1
	}
	return &Engine{
		logger:    logger,
		client:    client,
		site:      site,
		store:     store,
		index:     index,
		limiter:   newDelayLimiter(chapterDelay),
		saveEvery: saveEvery,
		repair:    repair,
	}
}

// Process runs one catalog entry through the engine.  A comic already known
// to the index takes the UPDATE path, everything else the NEW path.
//
// A detail page fetch failure aborts only this comic for this run; nothing
// partial is persisted and the caller moves on to the next entry.
//
// Parameters:
//   - ctx: Context for cancellation
//   - entry: The candidate produced by the catalog walker
//
// Returns:
//   - int: Number of chapters added (or repaired) for this comic
//   - error: Any error that aborted the comic, nil on success
func (e *Engine) Process(ctx context.Context, entry CatalogEntry) (int, error) {
	if existing, ok := e.index.Lookup(entry.URL); ok {
		return e.update(ctx, entry, existing)
	}
	return e.scrapeNew(ctx, entry)
}

// update is the UPDATE path: refresh volatile metadata, diff the fresh stub
// list against the persisted chapter numbers, fetch images for the new ones
// only, merge, re-sort, and save exactly once if anything changed.
func (e *Engine) update(ctx context.Context, entry CatalogEntry, comic *Comic) (int, error) {
	e.logger.Info("checking for updates",
		"title", entry.Title, "known", len(comic.Chapters))

	// Identity is the URL; the title just follows the listing page.
	if comic.Title != entry.Title {
		e.logger.Info("title drift, adopting list title",
			"old", comic.Title, "new", entry.Title)
		comic.Title = entry.Title
	}

	doc, err := e.fetchDocument(ctx, entry.URL)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch detail page: %w", err)
	}

	// Volatile metadata follows the site on every run.
	fresh := e.site.ExtractComic(doc, entry.URL, entry.Title)
	comic.LastUpdated = fresh.LastUpdated
	comic.ScrapedAt = fresh.ScrapedAt

	known := comic.KnownNumbers()
	added := 0
	for _, stub := range e.site.ExtractChapters(doc) {
		if known[stub.Number] {
			continue
		}
		images, err := e.materialize(ctx, stub.URL)
		if err != nil {
			// Skip the stub entirely so a later run rediscovers it.
			e.logger.Error("chapter fetch failed, skipping",
				"title", comic.Title, "chapter", stub.Number, "error", err)
			continue
		}
		e.logger.Info("new chapter",
			"title", comic.Title, "chapter", stub.Number, "images", len(images))
		known[stub.Number] = true
		comic.Chapters = append(comic.Chapters, Chapter{
			Number: stub.Number,
			URL:    stub.URL,
			Date:   stub.Date,
			Images: images,
		})
		added++
	}

	repaired := 0
	if e.repair {
		repaired = e.repairChapters(ctx, comic)
	}

	if added+repaired == 0 {
		e.logger.Info("no new chapters", "title", comic.Title)
		return 0, nil
	}

	SortChapters(comic.Chapters)
	if err := e.store.Save(comic); err != nil {
		return added, fmt.Errorf("failed to save comic: %w", err)
	}
	return added + repaired, nil
}

// scrapeNew is the NEW path: build the full record, fetch every chapter's
// images oldest to newest, and persist the complete record every saveEvery
// chapters plus once at the end.  The cadence bounds what an interruption
// can lose; each save is a whole-record write, never a delta.
func (e *Engine) scrapeNew(ctx context.Context, entry CatalogEntry) (int, error) {
	e.logger.Info("new comic, full scrape", "title", entry.Title, "url", entry.URL)

	doc, err := e.fetchDocument(ctx, entry.URL)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch detail page: %w", err)
	}

	comic := e.site.ExtractComic(doc, entry.URL, entry.Title)

	stubs := e.site.ExtractChapters(doc)
	if e.site.ChaptersNewestFirst() {
		slices.Reverse(stubs)
	}
	e.logger.Info("chapters found", "title", comic.Title, "count", len(stubs))

	seen := make(map[string]bool)
	added := 0
	for _, stub := range stubs {
		if seen[stub.Number] {
			continue
		}
		seen[stub.Number] = true

		if ctx.Err() != nil {
			// Interrupted: stop fetching, fall through to the final save so
			// the chapters already gathered are not lost.
			break
		}

		images, err := e.materialize(ctx, stub.URL)
		if err != nil {
			e.logger.Error("chapter fetch failed, skipping",
				"title", comic.Title, "chapter", stub.Number, "error", err)
			continue
		}
		e.logger.Debug("chapter scraped",
			"title", comic.Title, "chapter", stub.Number, "images", len(images))

		comic.Chapters = append(comic.Chapters, Chapter{
			Number: stub.Number,
			URL:    stub.URL,
			Date:   stub.Date,
			Images: images,
		})
		added++

		if added%e.saveEvery == 0 {
			SortChapters(comic.Chapters)
			if err := e.store.Save(comic); err != nil {
				e.logger.Error("progress save failed",
					"title", comic.Title, "error", err)
			}
		}
	}

	SortChapters(comic.Chapters)
	if err := e.store.Save(comic); err != nil {
		return added, fmt.Errorf("failed to save comic: %w", err)
	}

	// Register so a second discovery of the same URL in this run takes the
	// UPDATE path instead of scraping from scratch.
	e.index.Insert(comic)

	e.logger.Info("full scrape finished", "title", comic.Title, "chapters", added)
	return added, nil
}

// repairChapters re-fetches images for chapters that were recorded with an
// empty image list on an earlier run.  The chapter stays in place; only its
// Images field is filled in.
func (e *Engine) repairChapters(ctx context.Context, comic *Comic) int {
	repaired := 0
	for i := range comic.Chapters {
		ch := &comic.Chapters[i]
		if len(ch.Images) > 0 {
			continue
		}
		images, err := e.materialize(ctx, ch.URL)
		if err != nil || len(images) == 0 {
			continue
		}
		e.logger.Info("repaired chapter images",
			"title", comic.Title, "chapter", ch.Number, "images", len(images))
		ch.Images = images
		repaired++
	}
	return repaired
}

// materialize fetches a chapter page and extracts its image URLs.  A fetch
// failure is an error (the stub should be retried on a later run); a page
// that parses but yields no images returns an empty slice, which the caller
// records as-is.
func (e *Engine) materialize(ctx context.Context, url string) ([]string, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := e.client.Get(ctx, url)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		fatalInvariant(err)
	}

	images := e.site.ExtractImages(doc)
	if images == nil {
		images = []string{}
	}
	return images, nil
}

// fetchDocument fetches a URL and parses it into a goquery document.
func (e *Engine) fetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	body, err := e.client.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		fatalInvariant(err)
	}
	return doc, nil
}
