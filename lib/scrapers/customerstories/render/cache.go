package render

import (
	"bytes"
	"context"
	"encoding/gob"
	"log/slog"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/PuerkitoBio/purell"
	"github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var errPageNotFound = badger.ErrKeyNotFound

type renderedPage struct {
	HTML      []byte
	ExpiresAt int64
}

// Cache stores rendered page HTML keyed by normalized URL so repeated
// runs against the same listing can skip the browser entirely.
type Cache struct {
	db       *badger.DB
	lifetime time.Duration
}

func NewCache(db *badger.DB, lifetime time.Duration) Cache {
	return Cache{db: db, lifetime: lifetime}
}

func (c Cache) key(pageURL string) (string, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	normalized := purell.NormalizeURL(
		parsed,
		purell.FlagsSafe|
			purell.FlagsUsuallySafeNonGreedy|
			purell.FlagRemoveFragment|
			purell.FlagSortQuery,
	)
	return "page:" + normalized, nil
}

func (c Cache) get(ctx context.Context, pageURL string) (renderedPage, error) {
	ctx, span := tracer.Start(ctx, "cache:get")
	defer span.End()

	key, err := c.key(pageURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create cache key")
		return renderedPage{}, err
	}
	span.SetAttributes(attribute.String("cache_key", key))

	tx := c.db.NewTransaction(false)
	defer tx.Discard()
	item, err := tx.Get([]byte(key))
	if err == badger.ErrKeyNotFound {
		return renderedPage{}, errPageNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read item from badger")
		return renderedPage{}, err
	}
	serialized, err := item.ValueCopy(nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to copy cached item")
		return renderedPage{}, err
	}

	var cached renderedPage
	err = gob.NewDecoder(bytes.NewBuffer(serialized)).Decode(&cached)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to deserialize cached item")
		return renderedPage{}, err
	}

	if time.Now().Unix() >= cached.ExpiresAt {
		span.AddEvent("delete expired cache key", trace.WithAttributes(
			attribute.String("key", key),
		))

		tx := c.db.NewTransaction(true)
		defer tx.Commit()
		err = tx.Delete([]byte(key))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to delete expired cache key")
		}
		return renderedPage{}, errPageNotFound
	}

	return cached, nil
}

func (c Cache) set(ctx context.Context, pageURL string, html []byte) error {
	ctx, span := tracer.Start(ctx, "cache:set")
	defer span.End()

	key, err := c.key(pageURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create cache key")
		return err
	}
	span.SetAttributes(attribute.String("cache_key", key))

	serialized := bytes.Buffer{}
	err = gob.NewEncoder(&serialized).Encode(renderedPage{
		HTML:      html,
		ExpiresAt: time.Now().Add(c.lifetime).Unix(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to serialize page")
		return err
	}

	tx := c.db.NewTransaction(true)
	defer tx.Discard()
	err = tx.Set([]byte(key), serialized.Bytes())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write page to badger")
		return err
	}
	return tx.Commit()
}

// Cached wraps a Renderer with a page cache. Cache failures are warned
// about and fall through to the inner renderer.
type Cached struct {
	inner Renderer
	cache Cache
}

func NewCached(inner Renderer, cache Cache) Cached {
	return Cached{inner: inner, cache: cache}
}

func (c Cached) Render(ctx context.Context, pageURL string) (*goquery.Document, error) {
	ctx, span := tracer.Start(ctx, "cached:Render")
	defer span.End()

	cached, err := c.cache.get(ctx, pageURL)
	if err == nil {
		span.SetStatus(codes.Ok, "CACHE HIT")
		return goquery.NewDocumentFromReader(bytes.NewBuffer(cached.HTML))
	}
	if err != errPageNotFound {
		slog.WarnContext(ctx, "failed to read page cache", "url", pageURL, "err", err)
	}

	doc, err := c.inner.Render(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	html, err := goquery.OuterHtml(doc.Selection)
	if err != nil {
		slog.WarnContext(ctx, "failed to serialize rendered page for cache", "url", pageURL, "err", err)
		return doc, nil
	}
	err = c.cache.set(ctx, pageURL, []byte(html))
	if err != nil {
		slog.WarnContext(ctx, "failed to write page cache", "url", pageURL, "err", err)
	}
	return doc, nil
}
