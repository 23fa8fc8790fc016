package main

// SPDX-License-Identifier: GPL-3.0-only

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const komikcastBaseURL = "https://komikcast03.com"

// KomikcastSite is the Site adapter for komikcast03.com.  The site shares the
// comic/chapter URL scheme with komikindo but uses a completely different
// theme, so every selector differs.
type KomikcastSite struct{}

func (s *KomikcastSite) Name() string    { return "komikcast" }
func (s *KomikcastSite) BaseURL() string { return komikcastBaseURL }

func (s *KomikcastSite) ListURL(page int) string {
	if page <= 1 {
		return komikcastBaseURL + "/daftar-komik/"
	}
	return fmt.Sprintf("%s/daftar-komik/page/%d/", komikcastBaseURL, page)
}

func (s *KomikcastSite) ListSelectors() []string {
	return []string{
		".list-update_item a",
		".list-update_items a",
	}
}

// NextPageSelector returns "" because komikcast listing pages have no next
// control; the walker stops on the first empty page instead.
func (s *KomikcastSite) NextPageSelector() string { return "" }

func (s *KomikcastSite) IsComicURL(href string) bool {
	if href == "" || chapterURLRegexp.MatchString(href) {
		return false
	}
	return strings.Contains(href, "/komik/")
}

// ListEntryTitle extracts the title from a listing card: the h3 element
// inside the anchor, falling back to the title attribute and the thumbnail
// alt text.
func (s *KomikcastSite) ListEntryTitle(a *goquery.Selection) string {
	if title := CleanTitle(a.Find("h3.title").First().Text()); title != "" {
		return title
	}
	if title := CleanTitle(a.AttrOr("title", "")); title != "" {
		return title
	}
	return CleanTitle(a.Find("img").AttrOr("alt", ""))
}

// ExtractComic builds a Comic from a komikcast detail page.  Unlike
// komikindo, the detail h1 is the cleanest title source here, so the listing
// title is only a fallback.  The " Bahasa Indonesia" suffix the site appends
// is stripped.
//
// Parameters:
//   - doc: The parsed detail page
//   - url: The comic's identity URL
//   - listTitle: The display title from the listing page
//
// Returns:
//   - *Comic: The populated record with no chapters
func (s *KomikcastSite) ExtractComic(doc *goquery.Document, url, listTitle string) *Comic {
	comic := NewComic(url, listTitle)

	if title := strings.TrimSpace(doc.Find("h1.komik_info-content-body-title").First().Text()); title != "" {
		comic.Title = CleanTitle(strings.Replace(title, " Bahasa Indonesia", "", 1))
	}

	if native := strings.TrimSpace(doc.Find("span.komik_info-content-native").First().Text()); native != "" {
		comic.AlternativeTitles = []string{native}
	}

	comic.CoverImage = doc.Find("div.komik_info-cover-image img").First().AttrOr("src", "")
	comic.Genres = anchorTexts(doc.Find(".komik_info-content-genre"))

	doc.Find(".komik_info-content-meta span").Each(func(_ int, span *goquery.Selection) {
		text := strings.TrimSpace(span.Text())
		switch {
		case strings.Contains(text, "Author:"):
			comic.Author = splitCommaList(labelValue(text, "Author:"))
		case strings.Contains(text, "Status:"):
			comic.Status = labelValue(text, "Status:")
		case strings.Contains(text, "Type:"):
			if t := strings.TrimSpace(span.Find("a").First().Text()); t != "" {
				comic.Type = t
			} else {
				comic.Type = labelValue(text, "Type:")
			}
		case strings.Contains(text, "Updated on:"):
			if t := strings.TrimSpace(span.Find("time").First().Text()); t != "" {
				comic.LastUpdated = t
			} else {
				comic.LastUpdated = labelValue(text, "Updated on:")
			}
		}
	})

	if rating, ok := doc.Find("div.data-rating").First().Attr("data-ratingkomik"); ok {
		if value, err := strconv.ParseFloat(strings.TrimSpace(rating), 64); err == nil {
			comic.Rating = value
		}
	}

	comic.Synopsis = extractSynopsis(doc, []string{
		"div.komik_info-description-sinopsis",
	})

	return comic
}

// ExtractChapters returns the chapter stubs from the chapter wrapper list.
// The site spells out "Chapter 12"; we shorten that to the "Ch.12" label
// style used everywhere else.
func (s *KomikcastSite) ExtractChapters(doc *goquery.Document) []Chapter {
	var chapters []Chapter

	doc.Find("ul#chapter-wrapper li.komik_info-chapters-item").Each(func(_ int, li *goquery.Selection) {
		a := li.Find("a.chapter-link-item").First()
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		number := strings.TrimSpace(strings.ReplaceAll(a.Text(), "Chapter ", "Ch."))
		if number == "" {
			return
		}
		chapters = append(chapters, Chapter{
			Number: number,
			URL:    href,
			Date:   strings.TrimSpace(li.Find(".chapter-link-time").First().Text()),
			Images: []string{},
		})
	})

	return chapters
}

func (s *KomikcastSite) ChaptersNewestFirst() bool { return true }

func (s *KomikcastSite) ExtractImages(doc *goquery.Document) []string {
	return imagesFromContainers(doc, []string{
		"div#chapter_body",
		".main-reading-area",
	})
}
