package main

// SPDX-License-Identifier: GPL-3.0-only

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

const (
	// How many times a single listing page fetch is retried before the
	// walk gives up on it.
	catalogRetryCount = 3
)

// CatalogWalker paginates a site's listing endpoint and collects candidate
// comics.  Each Walk call starts over from page 1; the sequence is finite
// and bounded by the page ceiling.
type CatalogWalker struct {
	logger    *slog.Logger
	client    Client
	site      Site
	limiter   *rate.Limiter
	maxPages  int
	retryBase time.Duration
}

// NewCatalogWalker creates a walker for the given site.  pageDelay is the
// minimum spacing between listing page fetches and also seeds the retry
// backoff.
//
// Parameters:
//   - logger: Logger instance
//   - client: HTTP client interface for making web requests
//   - site: The target site adapter
//   - maxPages: Safety ceiling on the number of listing pages walked
//   - pageDelay: Minimum delay between listing page fetches
//
// Returns:
//   - *CatalogWalker: A new walker ready for use
func NewCatalogWalker(
	logger *slog.Logger,
	client Client,
	site Site,
	maxPages int,
	pageDelay time.Duration,
) *CatalogWalker {
	return &CatalogWalker{
		logger:    logger,
		client:    client,
		site:      site,
		limiter:   newDelayLimiter(pageDelay),
		maxPages:  maxPages,
		retryBase: 2 * pageDelay,
	}
}

// Walk crawls listing pages from page 1 and returns the candidate comics
// found, deduplicated by title within this run.  It stops when a page
// yields no candidates, when the site's next-page control disappears, when
// the page ceiling is reached, or when the context is canceled.
//
// Only a completely unreachable first page is an error; a mid-walk page
// failure ends the walk with whatever was collected so far.
//
// Parameters:
//   - ctx: Context for cancellation
//
// Returns:
//   - []CatalogEntry: Candidates in discovery order
//   - error: Non-nil only when the first page could not be fetched
func (w *CatalogWalker) Walk(ctx context.Context) ([]CatalogEntry, error) {
	seenTitles := make(map[string]bool)
	var entries []CatalogEntry

	for page := 1; page <= w.maxPages; page++ {
		if err := w.limiter.Wait(ctx); err != nil {
			return entries, nil
		}

		body, err := w.fetchPage(ctx, page)
		if err != nil {
			if page == 1 {
				return nil, fmt.Errorf("failed to fetch first catalog page: %w", err)
			}
			w.logger.Error("catalog page failed after retries, ending walk",
				"site", w.site.Name(), "page", page, "error", err)
			break
		}

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			// goquery won't error just because the HTML is malformed.  An
			// error indicates a failure to read from the in-memory byte
			// slice, which should never happen.
			fatalInvariant(err)
		}

		candidates := w.pageCandidates(doc)
		if candidates.Length() == 0 {
			w.logger.Info("no candidates on page, ending walk",
				"site", w.site.Name(), "page", page)
			break
		}

		found := 0
		candidates.Each(func(_ int, a *goquery.Selection) {
			href, ok := a.Attr("href")
			if !ok || !strings.HasPrefix(href, "http") {
				return
			}
			if !w.site.IsComicURL(href) {
				return
			}
			title := w.site.ListEntryTitle(a)
			if title == "" || seenTitles[title] {
				return
			}
			seenTitles[title] = true
			entries = append(entries, CatalogEntry{
				Title:   title,
				URL:     href,
				FoundAt: timestamp(),
			})
			found++
		})

		w.logger.Debug("listing page processed",
			"site", w.site.Name(), "page", page, "new", found)

		if next := w.site.NextPageSelector(); next != "" && doc.Find(next).Length() == 0 {
			w.logger.Info("no next page control, ending walk",
				"site", w.site.Name(), "page", page)
			break
		}
	}

	w.logger.Info("catalog walk finished", "site", w.site.Name(), "count", len(entries))
	return entries, nil
}

// pageCandidates applies the site's selector fallback chain and returns the
// first selection that yields any anchors.
func (w *CatalogWalker) pageCandidates(doc *goquery.Document) *goquery.Selection {
	var candidates *goquery.Selection
	for _, selector := range w.site.ListSelectors() {
		candidates = doc.Find(selector)
		if candidates.Length() > 0 {
			break
		}
	}
	return candidates
}

// fetchPage fetches one listing page with bounded retries and doubling
// backoff between attempts.
func (w *CatalogWalker) fetchPage(ctx context.Context, page int) ([]byte, error) {
	url := w.site.ListURL(page)
	backoff := w.retryBase

	var lastErr error
	for attempt := 1; attempt <= catalogRetryCount; attempt++ {
		body, err := w.client.Get(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		w.logger.Info("catalog page fetch failed, retrying",
			"url", url, "attempt", attempt, "backoff", backoff, "error", err)
		if attempt < catalogRetryCount {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	return nil, lastErr
}

// newDelayLimiter builds a rate limiter that spaces events delay apart,
// letting the first one through immediately.  A zero or negative delay
// disables limiting entirely.
func newDelayLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}
