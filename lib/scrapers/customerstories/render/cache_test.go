package render

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

type stubRenderer struct {
	calls int
	html  string
}

func (s *stubRenderer) Render(ctx context.Context, pageURL string) (*goquery.Document, error) {
	s.calls++
	return goquery.NewDocumentFromReader(strings.NewReader(s.html))
}

func openTestBadger(t *testing.T) *badger.DB {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func TestCachedRender(t *testing.T) {
	db := openTestBadger(t)
	stub := &stubRenderer{html: `<html><body><div class="search-results"><p>hi</p></div></body></html>`}
	renderer := NewCached(stub, NewCache(db, time.Hour))

	ctx := context.Background()
	pageURL := "https://stories.example.com/search?q=retail"

	doc, err := renderer.Render(ctx, pageURL)
	require.NoError(t, err)
	require.Equal(t, 1, doc.Find("div.search-results").Length())
	require.Equal(t, 1, stub.calls)

	// second render of the same URL is served from the cache
	doc, err = renderer.Render(ctx, pageURL)
	require.NoError(t, err)
	require.Equal(t, 1, doc.Find("div.search-results").Length())
	require.Equal(t, 1, stub.calls)

	// normalization collapses equivalent urls onto one key
	_, err = renderer.Render(ctx, "https://stories.example.com/search?q=retail#top")
	require.NoError(t, err)
	require.Equal(t, 1, stub.calls)

	// a different page misses
	_, err = renderer.Render(ctx, "https://stories.example.com/search?q=retail&page=2")
	require.NoError(t, err)
	require.Equal(t, 2, stub.calls)
}

func TestCachedRenderExpiry(t *testing.T) {
	db := openTestBadger(t)
	stub := &stubRenderer{html: `<html><body><p>hi</p></body></html>`}
	renderer := NewCached(stub, NewCache(db, -time.Second))

	ctx := context.Background()
	pageURL := "https://stories.example.com/search"

	_, err := renderer.Render(ctx, pageURL)
	require.NoError(t, err)
	_, err = renderer.Render(ctx, pageURL)
	require.NoError(t, err)
	require.Equal(t, 2, stub.calls)
}
