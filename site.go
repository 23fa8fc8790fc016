package main

// SPDX-License-Identifier: GPL-3.0-only

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	ErrUnknownSite = errors.New("unknown site")

	// Regexes shared by the site adapters for pulling numeric values out of
	// free-form rating / vote text.
	floatRegexp   = regexp.MustCompile(`\d+\.\d+|\d+`)
	integerRegexp = regexp.MustCompile(`\d+`)
)

// imageSourceAttrs is the attribute fallback chain for chapter images.
// Lazy-loading themes move the real URL into a data attribute, so we try
// each in order and take the first that is set.
var imageSourceAttrs = []string{"src", "data-src", "data-lazy-src", "data-original"}

// Site is the extraction contract for one target website.  The crawl engine
// is site-agnostic: everything that depends on the site's markup (listing
// layout, detail page fields, chapter list, image containers) lives behind
// this interface.
type Site interface {
	// Name returns the short site identifier used in config and logs.
	Name() string

	// BaseURL returns the site root, also used as the Referer header.
	BaseURL() string

	// ListURL builds the URL of the given 1-based listing page.
	ListURL(page int) string

	// ListSelectors returns the ordered selector fallback chain for
	// candidate anchors on a listing page.  The walker uses the first
	// selector that yields any results.
	ListSelectors() []string

	// NextPageSelector returns the selector for the "next page" control,
	// or "" if the site has none and the walker should rely on empty
	// pages to stop.
	NextPageSelector() string

	// IsComicURL reports whether an href points at a comic detail page
	// rather than a deep link to a chapter.
	IsComicURL(href string) bool

	// ListEntryTitle extracts the display title for a candidate anchor on
	// a listing page, or "" if none of the title strategies match.
	ListEntryTitle(a *goquery.Selection) string

	// ExtractComic builds a Comic record from a detail page document.
	// Field extraction failures are non-fatal: every field falls back to
	// its zero default.  The returned record has no chapters.
	ExtractComic(doc *goquery.Document, url, listTitle string) *Comic

	// ExtractChapters returns the chapter stubs listed on a detail page,
	// in source markup order, with empty Images.
	ExtractChapters(doc *goquery.Document) []Chapter

	// ChaptersNewestFirst reports whether ExtractChapters yields chapters
	// newest-first, in which case the engine reverses them before a full
	// scrape so numbering proceeds oldest to newest.
	ChaptersNewestFirst() bool

	// ExtractImages returns the deduplicated absolute image URLs of a
	// chapter page, trying the site's container strategies in priority
	// order.  An empty result means "chapter found but assets
	// unavailable" and is not an error.
	ExtractImages(doc *goquery.Document) []string
}

// SiteByName returns the Site adapter for the given identifier.
//
// Parameters:
//   - name: The site identifier ("komikindo" or "komikcast")
//
// Returns:
//   - Site: The matching adapter
//   - error: ErrUnknownSite if no adapter matches
func SiteByName(name string) (Site, error) {
	switch name {
	case "komikindo":
		return &KomikindoSite{}, nil
	case "komikcast":
		return &KomikcastSite{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSite, name)
}

// collectImages gathers image URLs from every <img> inside the container,
// using the lazy-load attribute fallback chain.  Only absolute http(s) URLs
// are kept; query strings are stripped and duplicates removed while
// preserving first-seen order.
//
// Parameters:
//   - container: The selection holding the chapter's img elements
//
// Returns:
//   - []string: Cleaned, deduplicated image URLs
func collectImages(container *goquery.Selection) []string {
	var images []string
	seen := make(map[string]bool)

	container.Find("img").Each(func(_ int, img *goquery.Selection) {
		var src string
		for _, attr := range imageSourceAttrs {
			if v, ok := img.Attr(attr); ok && v != "" {
				src = v
				break
			}
		}

		if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
			return
		}

		// Strip cache-buster query strings
		src = strings.TrimSpace(strings.SplitN(src, "?", 2)[0])
		if src == "" || seen[src] {
			return
		}
		seen[src] = true
		images = append(images, src)
	})

	return images
}

// imagesFromContainers applies the container strategy chain: the first
// container selector that exists and yields at least one image wins.  A
// container that exists but holds no usable images falls through to the next
// strategy.
func imagesFromContainers(doc *goquery.Document, selectors []string) []string {
	for _, selector := range selectors {
		container := doc.Find(selector).First()
		if container.Length() == 0 {
			continue
		}
		if images := collectImages(container); len(images) > 0 {
			return images
		}
	}
	return nil
}

// firstFloat extracts the first floating point number found by trying each
// selector in order against the document.
func firstFloat(doc *goquery.Document, selectors []string) float64 {
	for _, selector := range selectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		match := floatRegexp.FindString(sel.Text())
		if match == "" {
			continue
		}
		if value, err := strconv.ParseFloat(match, 64); err == nil {
			return value
		}
	}
	return 0
}

// firstInt extracts the first integer found by trying each selector in order
// against the document.
func firstInt(doc *goquery.Document, selectors []string) int {
	for _, selector := range selectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		match := integerRegexp.FindString(sel.Text())
		if match == "" {
			continue
		}
		if value, err := strconv.Atoi(match); err == nil {
			return value
		}
	}
	return 0
}

// splitCommaList splits a comma-separated field value into trimmed non-empty
// parts.  Used for alternative titles, authors and illustrators.
func splitCommaList(text string) []string {
	parts := strings.Split(text, ",")
	out := []string{}
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
