package main_test

// SPDX-License-Identifier: GPL-3.0-only

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	main "komiktrap"

	"gotest.tools/assert"
)

type Flaky502Handler struct {
	failuresRemaining int
}

func (h *Flaky502Handler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	if h.failuresRemaining > 0 {
		h.failuresRemaining--
		http.Error(w, "502 Bad Gateway", http.StatusBadGateway)
		return
	}
	_, _ = w.Write([]byte("<html><body>chapter reader</body></html>"))
}

func TestHTTPClient_Get(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("<html><body>chapter reader</body></html>"))
	}
	server := httptest.NewServer(http.HandlerFunc(handler))
	defer server.Close()

	client := main.NewHTTPClient(NewTestLogger(t), server.URL)
	client.SetRetryPolicy(3, 0*time.Millisecond)
	ctx := context.Background()

	t.Run("Basic GET", func(t *testing.T) {
		have, err := client.Get(ctx, server.URL+"/komik/alpha/")
		assert.NilError(t, err)

		got := bytes.Contains(have, []byte("chapter reader"))
		assert.Assert(t, got, "Should get the page body")
	})

	t.Run("404", func(t *testing.T) {
		_, err := client.Get(ctx, server.URL+"/missing")
		assert.Assert(t, errors.Is(err, main.ErrHTTPNotFound), "Should get ErrHTTPNotFound on 404")
	})

	t.Run("HTTPClient#Get with flaky 502 succeeds after retry", func(t *testing.T) {
		flakyHandler := &Flaky502Handler{failuresRemaining: 2}
		flakyServer := httptest.NewServer(flakyHandler)
		defer flakyServer.Close()

		have, err := client.Get(ctx, flakyServer.URL)
		assert.NilError(t, err)

		got := bytes.Contains(have, []byte("chapter reader"))
		assert.Assert(t, got, "Should get the page body")

		// Make sure it actually retried
		assert.Equal(t, flakyHandler.failuresRemaining, 0)
	})

	t.Run("HTTPClient#Get with flaky 502 fails after retries exceeded", func(t *testing.T) {
		flakyHandler := &Flaky502Handler{failuresRemaining: 5}
		flakyServer := httptest.NewServer(flakyHandler)
		defer flakyServer.Close()

		_, err := client.Get(ctx, flakyServer.URL)
		assert.ErrorContains(t, err, "502 Bad Gateway")
	})

	t.Run("canceled context stops the retry loop", func(t *testing.T) {
		flakyHandler := &Flaky502Handler{failuresRemaining: 5}
		flakyServer := httptest.NewServer(flakyHandler)
		defer flakyServer.Close()

		canceled, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := client.Get(canceled, flakyServer.URL)
		assert.Assert(t, err != nil)
		// One attempt at most, no retries after cancellation.
		assert.Assert(t, flakyHandler.failuresRemaining >= 4)
	})
}

func TestHTTPClient_Headers(t *testing.T) {
	// The sites reject obvious bot traffic, so every request must carry a
	// browser User-Agent and a Referer pointing back at the site.
	var gotUA, gotReferer string
	handler := func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotReferer = r.Header.Get("Referer")
		_, _ = w.Write([]byte("ok"))
	}
	server := httptest.NewServer(http.HandlerFunc(handler))
	defer server.Close()

	client := main.NewHTTPClient(NewTestLogger(t), "https://komikindo.ch")
	client.SetRetryPolicy(1, 0*time.Millisecond)

	_, err := client.Get(context.Background(), server.URL)
	assert.NilError(t, err)
	assert.Assert(t, bytes.Contains([]byte(gotUA), []byte("Mozilla/5.0")),
		"Should send a browser User-Agent")
	assert.Equal(t, gotReferer, "https://komikindo.ch")
}
