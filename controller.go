package main

// SPDX-License-Identifier: GPL-3.0-only

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Summary is the end-of-run report printed before exit.
type Summary struct {
	Discovered  int // catalog entries found this run
	Comics      int // comics known after the run, on disk and new
	Chapters    int // chapters known after the run
	NewChapters int // chapters fetched by this run
}

// Controller drives one full run: walk the catalog, then push every entry
// through the merge engine on a bounded worker pool.  Distinct comics are
// processed in parallel; a single comic is never handled by two workers
// because each entry is dispatched exactly once, after URL deduplication.
//
// Cancellation is cooperative: once the context is canceled the controller
// stops acquiring pool slots and waits for in-flight comics, whose writes
// are always complete-record overwrites, so nothing partial survives an
// interrupt.
type Controller struct {
	logger  *slog.Logger
	walker  *CatalogWalker
	engine  *Engine
	index   *ComicIndex
	workers int64
}

// NewController creates a run controller.
//
// Parameters:
//   - logger: Logger instance
//   - walker: The catalog walker
//   - engine: The incremental merge engine
//   - index: Shared index of known comics
//   - workers: Worker pool size
//
// Returns:
//   - *Controller: A new controller ready for use
func NewController(
	logger *slog.Logger,
	walker *CatalogWalker,
	engine *Engine,
	index *ComicIndex,
	workers int,
) *Controller {
	if workers < 1 {
		workers = 1
	}
	return &Controller{
		logger:  logger,
		walker:  walker,
		engine:  engine,
		index:   index,
		workers: int64(workers),
	}
}

// Run executes one complete crawl.  A single comic's failure never aborts
// the run; only an unreachable first catalog page ends it early, and even
// that produces a zero summary rather than an error.
//
// Parameters:
//   - ctx: Context for cancellation
//
// Returns:
//   - Summary: Counts for the end-of-run report
func (c *Controller) Run(ctx context.Context) Summary {
	entries, err := c.walker.Walk(ctx)
	if err != nil {
		c.logger.Error("catalog walk failed", "error", err)
		return c.summary(0, 0)
	}

	// The walker dedupes by title; pagination can still surface one URL
	// under two titles, and each comic must be dispatched exactly once.
	entries = dedupeByURL(entries)
	c.logger.Info("dispatching comics", "count", len(entries))

	sem := semaphore.NewWeighted(c.workers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	newChapters := 0

	for _, entry := range entries {
		if err := sem.Acquire(ctx, 1); err != nil {
			c.logger.Info("interrupted, no new comics will be scheduled")
			break
		}

		wg.Add(1)
		go func(entry CatalogEntry) {
			defer wg.Done()
			defer sem.Release(1)

			added, err := c.engine.Process(ctx, entry)
			if err != nil {
				c.logger.Error("comic failed, continuing",
					"title", entry.Title, "url", entry.URL, "error", err)
			}

			mu.Lock()
			newChapters += added
			mu.Unlock()
		}(entry)
	}

	wg.Wait()
	return c.summary(len(entries), newChapters)
}

func (c *Controller) summary(discovered, newChapters int) Summary {
	return Summary{
		Discovered:  discovered,
		Comics:      c.index.Len(),
		Chapters:    c.index.TotalChapters(),
		NewChapters: newChapters,
	}
}

// dedupeByURL keeps the first entry for each identity URL, preserving
// discovery order.
func dedupeByURL(entries []CatalogEntry) []CatalogEntry {
	seen := make(map[string]bool, len(entries))
	out := entries[:0]
	for _, entry := range entries {
		if seen[entry.URL] {
			continue
		}
		seen[entry.URL] = true
		out = append(out, entry)
	}
	return out
}
