package assets

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newAssetServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/logo.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png-bytes"))
	})
	mux.HandleFunc("/dynamic-image", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/webp")
		w.Write([]byte("webp-bytes"))
	})
	mux.HandleFunc("/mystery", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("mystery-bytes"))
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/logo.png", http.StatusFound)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second * 2)
		w.Write([]byte("late"))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestFetch(t *testing.T) {
	server := newAssetServer(t)
	dir := t.TempDir()
	fetcher := NewFetcher(FetcherOptions{})

	ctx := context.Background()

	testCases := []struct {
		name     string
		url      string
		base     string
		expected string
		body     string
	}{
		{
			name:     "extension from url path",
			url:      server.URL + "/logo.png",
			base:     "p1_1_logo",
			expected: "p1_1_logo.png",
			body:     "png-bytes",
		},
		{
			name:     "extension from content type",
			url:      server.URL + "/dynamic-image",
			base:     "p1_1_header",
			expected: "p1_1_header.webp",
			body:     "webp-bytes",
		},
		{
			name:     "generic fallback extension",
			url:      server.URL + "/mystery",
			base:     "p1_2_header",
			expected: "p1_2_header.jpg",
			body:     "mystery-bytes",
		},
		{
			name:     "redirect followed",
			url:      server.URL + "/moved",
			base:     "p2_1_logo",
			expected: "p2_1_logo.png",
			body:     "png-bytes",
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			result, err := fetcher.Fetch(ctx, test.url, dir, test.base)
			require.NoError(t, err)
			require.False(t, result.Skipped)
			require.Equal(t, test.expected, result.Filename)

			contents, err := os.ReadFile(filepath.Join(dir, test.expected))
			require.NoError(t, err)
			require.Equal(t, test.body, string(contents))
		})
	}
}

func TestFetchNothingToFetch(t *testing.T) {
	dir := t.TempDir()
	fetcher := NewFetcher(FetcherOptions{})

	for _, url := range []string{"", "data:image/png;base64,iVBORw0KGgo="} {
		result, err := fetcher.Fetch(context.Background(), url, dir, "p1_1_logo")
		require.NoError(t, err)
		require.True(t, result.Skipped)
		require.Empty(t, result.Filename)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestFetchFailures(t *testing.T) {
	server := newAssetServer(t)
	dir := t.TempDir()

	t.Run("non-success status", func(t *testing.T) {
		fetcher := NewFetcher(FetcherOptions{})
		_, err := fetcher.Fetch(context.Background(), server.URL+"/missing.png", dir, "p1_1_logo")

		var fetchErr *FetchError
		require.True(t, errors.As(err, &fetchErr))
		require.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
	})

	t.Run("timeout", func(t *testing.T) {
		fetcher := NewFetcher(FetcherOptions{Timeout: time.Millisecond * 100})
		_, err := fetcher.Fetch(context.Background(), server.URL+"/slow", dir, "p1_1_header")

		var fetchErr *FetchError
		require.True(t, errors.As(err, &fetchErr))
		require.True(t, fetchErr.Timeout)
	})

	// failures never leave files behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestExtensionDerivation(t *testing.T) {
	testCases := []struct {
		url      string
		expected string
	}{
		{url: "https://cdn.example.com/a/logo.PNG", expected: "png"},
		{url: "https://cdn.example.com/a/logo.jpeg?v=2", expected: "jpeg"},
		{url: "https://cdn.example.com/a/render", expected: ""},
		{url: "https://cdn.example.com/archive.tar.gz", expected: ""},
	}
	for _, test := range testCases {
		require.Equal(t, test.expected, extensionFromURL(test.url), test.url)
	}

	require.Equal(t, "svg", extensionFromContentType("image/svg+xml"))
	require.Equal(t, "jpg", extensionFromContentType("IMAGE/JPEG; charset=binary"))
	require.Equal(t, "", extensionFromContentType("text/html"))
}
