// Package stories drives a full extraction run against the customer
// story listing: pagination traversal, per-page extraction, asset
// download reconciliation and dataset assembly.
package stories

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"casevault-backend/lib/assets"
	"casevault-backend/lib/scrapers/customerstories"
	"casevault-backend/lib/scrapers/customerstories/render"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/stories")

var ErrMissingSeedUrl = errors.New("a seed url is required")

type Options struct {
	SeedUrl string
	// hard upper bound on pages visited per run
	MaxPages int
	// politeness wait between page requests
	InterPageDelay time.Duration
	MediaDir       string
	// number of records downloading their assets at once; one worker
	// owns one record end to end, so per-record field writes never
	// interleave
	DownloadWorkers int

	Selectors           customerstories.Selectors
	PaginationSelectors customerstories.PaginationSelectors
}

type Service struct {
	renderer  render.Renderer
	fetcher   assets.Fetcher
	extractor customerstories.Extractor
	oracle    customerstories.Oracle
	opts      Options
}

func NewService(renderer render.Renderer, fetcher assets.Fetcher, opts Options) Service {
	if opts.MaxPages <= 0 {
		opts.MaxPages = 10
	}
	if opts.InterPageDelay <= 0 {
		opts.InterPageDelay = time.Second * 2
	}
	if opts.MediaDir == "" {
		opts.MediaDir = "media"
	}
	if opts.DownloadWorkers <= 0 {
		opts.DownloadWorkers = 1
	}
	if opts.Selectors == (customerstories.Selectors{}) {
		opts.Selectors = customerstories.DefaultSelectors()
	}
	if opts.PaginationSelectors == (customerstories.PaginationSelectors{}) {
		opts.PaginationSelectors = customerstories.DefaultPaginationSelectors()
	}

	return Service{
		renderer:  renderer,
		fetcher:   fetcher,
		extractor: customerstories.NewExtractor(opts.Selectors),
		oracle:    customerstories.NewOracle(opts.PaginationSelectors),
		opts:      opts,
	}
}

// Run walks the paginated listing, accumulates every valid story record
// in (page, position) order, downloads the records' assets and returns
// the assembled dataset. Only a missing seed url or a page that never
// renders aborts the run; every narrower failure is converted into an
// omission.
func (s Service) Run(ctx context.Context) (*customerstories.Dataset, error) {
	ctx, span := tracer.Start(ctx, "service:Run")
	defer span.End()

	if s.opts.SeedUrl == "" {
		span.SetStatus(codes.Error, ErrMissingSeedUrl.Error())
		return nil, ErrMissingSeedUrl
	}
	span.SetAttributes(attribute.String("seed_url", s.opts.SeedUrl))

	records := []customerstories.StoryRecord{}
	storiesPerPage := map[int]int{}
	pagesVisited := 0

	for page := 1; page <= s.opts.MaxPages; page++ {
		if page > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.opts.InterPageDelay):
			}
		}

		pageURL, err := customerstories.PageURL(s.opts.SeedUrl, page)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "invalid seed url")
			return nil, fmt.Errorf("deriving url for page %d: %w", page, err)
		}

		doc, err := s.renderer.Render(ctx, pageURL)
		if err != nil {
			// an un-rendered page cannot be told apart from an empty
			// one, so this is fatal rather than a truncated dataset
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to render page")
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		pagesVisited++

		if s.extractor.CardCount(doc) == 0 {
			slog.InfoContext(ctx, "no cards rendered, stopping", "page", page)
			break
		}

		pageRecords := s.extractor.Extract(ctx, doc, page)
		records = append(records, pageRecords...)
		storiesPerPage[page] = len(pageRecords)

		decision := s.oracle.Evaluate(ctx, doc)
		slog.InfoContext(
			ctx, "page extracted",
			"page", page,
			"stories", len(pageRecords),
			"continue", decision.Continue,
			"reason", decision.Reason,
		)
		if !decision.Continue {
			break
		}
	}

	s.downloadAssets(ctx, records)

	dataset := BuildDataset(s.opts.SeedUrl, pagesVisited, storiesPerPage, records)
	span.SetAttributes(
		attribute.Int("total_pages", dataset.Metadata.TotalPages),
		attribute.Int("total_stories", dataset.Metadata.TotalStories),
	)
	return &dataset, nil
}
