package main

// SPDX-License-Identifier: GPL-3.0-only

import "sync"

// ComicIndex is the shared in-memory index of known comics, keyed by their
// identity URL.  It is seeded from the persistence store at startup and
// consulted by every worker, so all access goes through a mutex.  Lookup and
// Insert are the only mutating entry points; a record registered here is
// visible to later dispatches within the same run.
type ComicIndex struct {
	mu     sync.Mutex
	comics map[string]*Comic
}

// NewComicIndex creates an empty index.
func NewComicIndex() *ComicIndex {
	return &ComicIndex{comics: make(map[string]*Comic)}
}

// Lookup returns the known record for an identity URL, if any.
//
// Parameters:
//   - url: The comic's identity URL
//
// Returns:
//   - *Comic: The known record, or nil
//   - bool: Whether a record was found
func (x *ComicIndex) Lookup(url string) (*Comic, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	comic, ok := x.comics[url]
	return comic, ok
}

// Insert registers a record under its identity URL, replacing any previous
// record for the same URL.
//
// Parameters:
//   - comic: The record to register
func (x *ComicIndex) Insert(comic *Comic) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.comics[comic.URL] = comic
}

// Len returns the number of known comics.
func (x *ComicIndex) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.comics)
}

// TotalChapters returns the chapter count summed over all known comics.
// Used for the end-of-run summary.
func (x *ComicIndex) TotalChapters() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	total := 0
	for _, comic := range x.comics {
		total += len(comic.Chapters)
	}
	return total
}
