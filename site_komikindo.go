package main

// SPDX-License-Identifier: GPL-3.0-only

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const komikindoBaseURL = "https://komikindo.ch"

var (
	// Chapter deep links look like ".../judul-chapter-12/"; comic detail
	// pages never contain that suffix.
	chapterURLRegexp = regexp.MustCompile(`[-/]chapter-\d+`)

	// Regex to recover a display title from a detail URL slug.
	komikSlugRegexp = regexp.MustCompile(`/komik/([^/]+)/?`)

	// Synopsis blocks start with a "Manhua Xyz" / "Manga Xyz" breadcrumb
	// line that is not part of the synopsis proper.
	synopsisNoiseRegexp = regexp.MustCompile(`(?i)^(Manhua|Manga|Manhwa)\s+`)

	slugTitleCaser = cases.Title(language.Und)
)

// KomikindoSite is the Site adapter for komikindo.ch.  All selectors in this
// file mirror the site's theme markup as of the last time it was checked;
// when the theme changes, only this file needs updating.
type KomikindoSite struct{}

func (s *KomikindoSite) Name() string    { return "komikindo" }
func (s *KomikindoSite) BaseURL() string { return komikindoBaseURL }

// ListURL builds the "komik-terbaru" listing URL for the given page.  Page 1
// has no page suffix.
func (s *KomikindoSite) ListURL(page int) string {
	if page <= 1 {
		return komikindoBaseURL + "/komik-terbaru/"
	}
	return fmt.Sprintf("%s/komik-terbaru/page/%d/", komikindoBaseURL, page)
}

// ListSelectors returns the anchor fallback chain for listing pages.  The
// first selector matches the current theme; the rest cover older theme
// variants the site has shipped.
func (s *KomikindoSite) ListSelectors() []string {
	return []string{
		`.listupd .animepost .animposx a[itemprop="url"]`,
		`.animepost a[itemprop="url"]`,
		`.animepost .thumb a`,
		`.film-list a[itemprop="url"]`,
	}
}

func (s *KomikindoSite) NextPageSelector() string {
	return "a.next.page-numbers"
}

// IsComicURL filters out chapter deep links that listing pages mix in with
// comic links.
func (s *KomikindoSite) IsComicURL(href string) bool {
	if href == "" || chapterURLRegexp.MatchString(href) {
		return false
	}
	return strings.Contains(href, "/komik/")
}

// ListEntryTitle extracts the display title for a listing anchor.  Strategies
// in priority order: the title element inside the surrounding post card, the
// anchor's title attribute, the thumbnail's alt text, and finally the URL
// slug.
//
// Parameters:
//   - a: The candidate anchor selection
//
// Returns:
//   - string: The cleaned title, or "" if every strategy fails
func (s *KomikindoSite) ListEntryTitle(a *goquery.Selection) string {
	if post := a.Closest(".animepost"); post.Length() > 0 {
		if title := CleanTitle(post.Find(".bigors .tt h4 a").First().Text()); title != "" {
			return title
		}
	}

	if title := CleanTitle(a.AttrOr("title", "")); title != "" {
		return title
	}

	if title := CleanTitle(a.Find("img").AttrOr("alt", "")); title != "" {
		return title
	}

	if match := komikSlugRegexp.FindStringSubmatch(a.AttrOr("href", "")); match != nil {
		slug := strings.ReplaceAll(match[1], "-", " ")
		return CleanTitle(slugTitleCaser.String(slug))
	}

	return ""
}

// ExtractComic builds a Comic from a komikindo detail page.  The title comes
// from the listing page, not the detail page: listing titles are cleaner and
// the detail h1 repeats the "Komik" prefix.  Every other field is extracted
// here with its documented default on a selector miss.
//
// Parameters:
//   - doc: The parsed detail page
//   - url: The comic's identity URL
//   - listTitle: The display title from the listing page
//
// Returns:
//   - *Comic: The populated record with no chapters
func (s *KomikindoSite) ExtractComic(doc *goquery.Document, url, listTitle string) *Comic {
	comic := NewComic(url, listTitle)

	comic.CoverImage = doc.Find("div.thumb img").First().AttrOr("src", "")

	doc.Find("div.infox span").Each(func(_ int, span *goquery.Selection) {
		text := strings.TrimSpace(span.Text())
		switch {
		case strings.Contains(text, "Judul Alternatif:"):
			comic.AlternativeTitles = splitCommaList(labelValue(text, "Judul Alternatif:"))
		case strings.Contains(text, "Status:"):
			comic.Status = labelValue(text, "Status:")
		case strings.Contains(text, "Pengarang:"):
			comic.Author = splitCommaList(labelValue(text, "Pengarang:"))
		case strings.Contains(text, "Ilustrator:"):
			comic.Illustrator = splitCommaList(labelValue(text, "Ilustrator:"))
		case strings.Contains(text, "Grafis:"):
			comic.Demographic = strings.TrimSpace(span.Find("a").First().Text())
		case strings.Contains(text, "Tema:"):
			comic.Themes = anchorTexts(span)
		case strings.Contains(text, "Jenis Komik:"):
			comic.Type = strings.TrimSpace(span.Find("a").First().Text())
		}
	})

	comic.Genres = anchorTexts(doc.Find(".genre-info, .series-genres, .genres"))

	comic.Rating = firstFloat(doc, []string{
		`i[itemprop="ratingValue"]`,
		".ratingmanga i",
		".rtg i",
		".archiveanime-rating i",
	})

	comic.Votes = firstInt(doc, []string{
		".votescount",
		".rating-count",
		".vote-count",
	})

	comic.Synopsis = extractSynopsis(doc, []string{
		".entry-content.entry-content-single",
		".entry-content-single",
		".synopsis",
		".description",
	})

	comic.LastUpdated = strings.TrimSpace(doc.Find("span.datech").First().Text())

	return comic
}

// ExtractChapters returns the chapter stubs from the detail page's chapter
// list.  komikindo lists chapters newest-first.
func (s *KomikindoSite) ExtractChapters(doc *goquery.Document) []Chapter {
	var chapters []Chapter

	doc.Find("div#chapter_list li").Each(func(_ int, li *goquery.Selection) {
		a := li.Find("span.lchx a").First()
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		// The theme wraps the bare number in a custom <chapter> element.
		number := strings.TrimSpace(a.Find("chapter").Text())
		if number == "" {
			return
		}
		chapters = append(chapters, Chapter{
			Number: number,
			URL:    href,
			Date:   strings.TrimSpace(li.Find("span.dt").First().Text()),
			Images: []string{},
		})
	})

	return chapters
}

func (s *KomikindoSite) ChaptersNewestFirst() bool { return true }

// ExtractImages returns the image URLs of a chapter page, trying the reader
// container strategies in priority order.
func (s *KomikindoSite) ExtractImages(doc *goquery.Document) []string {
	return imagesFromContainers(doc, []string{
		"div#Baca_Komik",
		"div.chapter-image",
		".reader-area",
		".chapter-body",
	})
}

// labelValue strips a "Label:" prefix from an info span's text and trims the
// remainder.
func labelValue(text, label string) string {
	return strings.TrimSpace(strings.Replace(text, label, "", 1))
}

// anchorTexts collects the trimmed non-empty text of every anchor inside the
// selection.
func anchorTexts(sel *goquery.Selection) []string {
	out := []string{}
	sel.Find("a").Each(func(_ int, a *goquery.Selection) {
		if text := strings.TrimSpace(a.Text()); text != "" {
			out = append(out, text)
		}
	})
	return out
}

// extractSynopsis tries each synopsis selector in order and returns the first
// block that yields usable lines.  Breadcrumb lines ("Manga Xyz ...") are
// dropped.
func extractSynopsis(doc *goquery.Document, selectors []string) string {
	for _, selector := range selectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}

		var cleaned []string
		for _, line := range strings.Split(sel.Text(), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || synopsisNoiseRegexp.MatchString(line) {
				continue
			}
			cleaned = append(cleaned, line)
		}

		if len(cleaned) > 0 {
			return strings.Join(cleaned, "\n")
		}
	}
	return ""
}
