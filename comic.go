package main

// SPDX-License-Identifier: GPL-3.0-only

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// timestampFormat is the layout used for all human-readable timestamps we
// persist (scraped_at, discovery times).
const timestampFormat = "2006-01-02 15:04:05"

var (
	// Regex to extract the leading numeric component of a chapter number.
	// "12", "12.5" and "Ch.12" all yield a value; "Extra" yields none.
	chapterValueRegexp = regexp.MustCompile(`\d+(?:\.\d+)?`)

	// Regex to collapse runs of whitespace into a single space.
	whitespaceRegexp = regexp.MustCompile(`\s+`)

	// Regex to strip a leading "Komik " prefix that listing pages prepend
	// to every title.
	komikPrefixRegexp = regexp.MustCompile(`(?i)^Komik\s+`)
)

// CatalogEntry is a candidate comic discovered on a listing page.  It is
// ephemeral: produced by the catalog walker and consumed once per run.  URL is
// the stable identity key; Title is display-only and may drift between runs.
type CatalogEntry struct {
	Title   string
	URL     string
	FoundAt string
}

// Chapter is a single numbered chapter of a comic.  Number is a display label
// ("12", "12.5", "Ch.40 Extra") and is not guaranteed to be numeric-clean.
// Images holds absolute http(s) image URLs in first-seen order, deduplicated.
type Chapter struct {
	Number string   `json:"number"`
	URL    string   `json:"url"`
	Date   string   `json:"date"`
	Images []string `json:"images"`
}

// Comic is the full persisted record for one comic.  The JSON field names
// match the on-disk layout exactly, one file per comic.  URL is the identity
// key; everything else is refreshed from the site on each run.
type Comic struct {
	Title             string    `json:"title"`
	CoverImage        string    `json:"cover_image"`
	AlternativeTitles []string  `json:"alternative_titles"`
	Status            string    `json:"status"`
	Author            []string  `json:"author"`
	Illustrator       []string  `json:"illustrator"`
	Type              string    `json:"type"`
	Demographic       string    `json:"demographic"`
	Themes            []string  `json:"themes"`
	Genres            []string  `json:"genres"`
	Rating            float64   `json:"rating"`
	Votes             int       `json:"votes"`
	Synopsis          string    `json:"synopsis"`
	LastUpdated       string    `json:"last_updated"`
	URL               string    `json:"url"`
	ScrapedAt         string    `json:"scraped_at"`
	Chapters          []Chapter `json:"chapters"`
}

// NewComic creates an empty Comic with the given identity URL and display
// title.  All metadata fields start at their documented defaults (empty
// string, empty list, zero) so that extraction failures degrade gracefully.
//
// Parameters:
//   - url: The stable identity URL of the comic
//   - title: The display title, usually taken from the listing page
//
// Returns:
//   - *Comic: A new Comic with empty metadata and no chapters
func NewComic(url, title string) *Comic {
	return &Comic{
		Title:             title,
		AlternativeTitles: []string{},
		Author:            []string{},
		Illustrator:       []string{},
		Themes:            []string{},
		Genres:            []string{},
		Chapters:          []Chapter{},
		URL:               url,
		ScrapedAt:         timestamp(),
	}
}

// KnownNumbers returns the set of chapter numbers already present in the
// record.  The merge engine uses this to decide which freshly discovered
// chapters still need their images fetched.
//
// Returns:
//   - map[string]bool: Set of chapter number labels present in Chapters
func (c *Comic) KnownNumbers() map[string]bool {
	known := make(map[string]bool, len(c.Chapters))
	for _, ch := range c.Chapters {
		known[ch.Number] = true
	}
	return known
}

// ChapterValue extracts the numeric sort key from a chapter number label.
// The rule is: first run of digits with an optional decimal part.  Labels
// without any digits ("Extra", "Oneshot") sort first with value 0.
//
// Parameters:
//   - number: The chapter number display label
//
// Returns:
//   - float64: The numeric sort key, 0 if the label has no digits
func ChapterValue(number string) float64 {
	match := chapterValueRegexp.FindString(number)
	if match == "" {
		return 0
	}
	value, err := strconv.ParseFloat(match, 64)
	if err != nil {
		// The regex only matches valid float syntax, so ParseFloat cannot
		// fail on its output.
		fatalInvariant(err)
	}
	return value
}

// SortChapters sorts chapters ascending by their numeric value.  The sort is
// stable so chapters with equal values (e.g. two digit-less labels) keep
// their first-seen order.
//
// Parameters:
//   - chapters: The slice to sort in place
func SortChapters(chapters []Chapter) {
	sort.SliceStable(chapters, func(i, j int) bool {
		return ChapterValue(chapters[i].Number) < ChapterValue(chapters[j].Number)
	})
}

// CleanTitle normalizes a scraped title: the leading "Komik " prefix is
// removed and whitespace runs are collapsed.
//
// Parameters:
//   - title: The raw title text from the page
//
// Returns:
//   - string: The cleaned title
func CleanTitle(title string) string {
	title = komikPrefixRegexp.ReplaceAllString(title, "")
	title = whitespaceRegexp.ReplaceAllString(title, " ")
	return strings.TrimSpace(title)
}

// timestamp returns the current time formatted for persisted records.
func timestamp() string {
	return time.Now().Format(timestampFormat)
}
