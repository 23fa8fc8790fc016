package main_test

// SPDX-License-Identifier: GPL-3.0-only

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	main "komiktrap"
)

// TestResponse represents a predefined response for a specific URI in the
// TestClient mock.
type TestResponse struct {
	data  []byte
	error error
}

// TestClient is a mock Client for use in tests.  It returns predefined
// responses for specific URIs and counts how often each URI was fetched, so
// tests can assert that the engine does not re-fetch what it already has.
// URIs without a response behave like a 404.
type TestClient struct {
	mu     sync.Mutex
	uris   map[string]TestResponse
	counts map[string]int
}

// NewTestClient creates a new TestClient instance with an empty set of
// predefined responses.
func NewTestClient() *TestClient {
	return &TestClient{
		uris:   make(map[string]TestResponse),
		counts: make(map[string]int),
	}
}

// SetResponse sets a predefined response for the specified URI.
//
// Parameters:
//   - uri: The URI for which to set the response
//   - response: The byte slice to return when the URI is requested
//   - err: The error to return when the URI is requested (nil for no error)
func (t *TestClient) SetResponse(uri string, response []byte, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.uris[uri] = TestResponse{data: response, error: err}
}

// Get simulates an HTTP GET request to the specified URI and records the
// fetch.  The mutex makes the mock safe for the controller's worker pool.
//
// Parameters:
//   - ctx: Ignored; the mock never blocks
//   - uri: The URI to request
//
// Returns:
//   - []byte: The response data
//   - error: An error if the request fails
func (t *TestClient) Get(_ context.Context, uri string) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[uri]++
	if response, ok := t.uris[uri]; ok {
		return response.data, response.error
	}
	return nil, fmt.Errorf("resource not found: %w", main.ErrHTTPNotFound)
}

// FetchCount returns how many times the given URI has been requested.
func (t *TestClient) FetchCount(uri string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[uri]
}

// komikindoListingPage builds a synthetic komikindo listing page.  Each
// entry is a (title, href) pair rendered as a post card; hasNext controls
// the presence of the next-page control.
func komikindoListingPage(hasNext bool, entries ...[2]string) []byte {
	var b strings.Builder
	b.WriteString(`<html><body><div class="listupd">`)
	for _, entry := range entries {
		fmt.Fprintf(&b, `<div class="animepost">`+
			`<div class="animposx"><a itemprop="url" href="%s"><img alt="%s"></a></div>`+
			`<div class="bigors"><div class="tt"><h4><a href="%s">%s</a></h4></div></div>`+
			`</div>`,
			entry[1], entry[0], entry[1], entry[0])
	}
	b.WriteString(`</div>`)
	if hasNext {
		b.WriteString(`<a class="next page-numbers" href="#">Next</a>`)
	}
	b.WriteString(`</body></html>`)
	return []byte(b.String())
}

// komikindoDetailPage builds a synthetic komikindo detail page with the
// given chapter list entries, newest first as the real site lists them.
// Each chapter is a (number, href) pair.
func komikindoDetailPage(chapters ...[2]string) []byte {
	var b strings.Builder
	b.WriteString(`<html><body>` +
		`<div class="thumb"><img src="https://cdn.example/cover.jpg"></div>` +
		`<div class="infox">` +
		`<span>Judul Alternatif: Alt One, Alt Two</span>` +
		`<span>Status: Ongoing</span>` +
		`<span>Pengarang: Author A, Author B</span>` +
		`<span>Ilustrator: Artist C</span>` +
		`<span>Grafis: <a>Shounen</a></span>` +
		`<span>Tema: <a>Action</a><a>Magic</a></span>` +
		`<span>Jenis Komik: <a>Manhwa</a></span>` +
		`</div>` +
		`<div class="genre-info"><a>Action</a><a>Fantasy</a></div>` +
		`<i itemprop="ratingValue">8.5</i>` +
		`<div class="votescount">123 votes</div>` +
		`<div class="entry-content entry-content-single">Manhwa Some Breadcrumb
A hunter rises from the lowest rank.</div>` +
		`<span class="datech">2024-01-01</span>` +
		`<div id="chapter_list"><ul>`)
	for _, ch := range chapters {
		fmt.Fprintf(&b,
			`<li><span class="lchx"><a href="%s"><chapter>%s</chapter></a></span>`+
				`<span class="dt">Jan 1</span></li>`,
			ch[1], ch[0])
	}
	b.WriteString(`</ul></div></body></html>`)
	return []byte(b.String())
}

// komikindoChapterPage builds a synthetic chapter reader page containing the
// given image URLs.
func komikindoChapterPage(images ...string) []byte {
	var b strings.Builder
	b.WriteString(`<html><body><div id="Baca_Komik">`)
	for _, img := range images {
		fmt.Fprintf(&b, `<img src="%s">`, img)
	}
	b.WriteString(`</div></body></html>`)
	return []byte(b.String())
}

// TestLogForwarder is an io.Writer that forwards log output to
// testing.T.Logf.  This is used to capture application log output and report
// it in the test output.
type TestLogForwarder struct {
	t *testing.T
}

// Write implements the io.Writer interface for TestLogForwarder.  It
// forwards the log output to the testing.T instance.
func (t TestLogForwarder) Write(p []byte) (int, error) {
	t.t.Helper()

	// Get the caller info 5 levels up the stack to find the original log
	// call.
	_, file, line, ok := runtime.Caller(5)
	if !ok {
		// This should never happen because we're always in test with a stack
		// at least this deep.
		panic("unable to get caller info for test logger")
	}

	filename := filepath.Base(file)

	// t.Logf tries to prepend the file and line number of the caller, but
	// because of the way we're wrapping it, it will always show "helper.go".
	// We'll prepend the correct file and line number ourselves.
	t.t.Logf("%s:%d: %s", filename, line, p)

	return len(p), nil
}

// NewTestLogger creates a new slog.Logger that writes to the provided
// testing.T instance.  This allows capturing log output in test logs.
func NewTestLogger(t *testing.T) *slog.Logger {
	t.Helper()
	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	handler := slog.NewTextHandler(TestLogForwarder{t: t}, opts)
	return slog.New(handler)
}
