// Package render turns a listing URL into a queryable document via
// headless Chrome, with an optional cache of rendered pages.
package render

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/customerstories/render")

// Renderer produces a fully rendered document for a page URL. A wait
// that never resolves is reported as an error wrapping ErrContentWait:
// an un-rendered page cannot be told apart from an empty one, so the
// caller treats it as fatal.
type Renderer interface {
	Render(ctx context.Context, pageURL string) (*goquery.Document, error)
}

var ErrContentWait = errors.New("content anchor did not render within its bound")

type Options struct {
	// selector that must become visible before the page is considered rendered
	AnchorSelector string
	WaitTimeout    time.Duration
	// fixed post-load wait for client-rendered content to finish populating
	SettleDelay time.Duration
	UserAgent   string
	// path to a Chrome binary, empty for auto-detection
	ChromePath string
	Headless   bool
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

func DefaultOptions() Options {
	return Options{
		AnchorSelector: "div.search-results",
		WaitTimeout:    time.Second * 60,
		SettleDelay:    time.Second * 3,
		UserAgent:      defaultUserAgent,
		Headless:       true,
	}
}

type Chrome struct {
	opts Options
}

func NewChrome(opts Options) Chrome {
	defaults := DefaultOptions()
	if opts.AnchorSelector == "" {
		opts.AnchorSelector = defaults.AnchorSelector
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = defaults.WaitTimeout
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = defaults.SettleDelay
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaults.UserAgent
	}
	return Chrome{opts: opts}
}

func (c Chrome) allocatorOptions() []chromedp.ExecAllocatorOption {
	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoDefaultBrowserCheck,
		chromedp.NoFirstRun,
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(c.opts.UserAgent),
		chromedp.WindowSize(1920, 1080),
	}
	if c.opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", "new"))
	}
	if c.opts.ChromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(c.opts.ChromePath))
	}
	return allocOpts
}

func (c Chrome) Render(ctx context.Context, pageURL string) (*goquery.Document, error) {
	ctx, span := tracer.Start(ctx, "chrome:Render")
	defer span.End()
	span.SetAttributes(attribute.String("url", pageURL))

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, c.allocatorOptions()...)
	defer allocCancel()

	runCtx, cancel := context.WithTimeout(allocCtx, c.opts.WaitTimeout+c.opts.SettleDelay)
	defer cancel()

	runCtx, cancel = chromedp.NewContext(runCtx)
	defer cancel()

	var html string
	err := chromedp.Run(runCtx,
		network.SetExtraHTTPHeaders(network.Headers(map[string]interface{}{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
		})),
		chromedp.Navigate(pageURL),
		chromedp.WaitVisible(c.opts.AnchorSelector, chromedp.ByQuery),
		chromedp.Sleep(c.opts.SettleDelay),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to render page")
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: waiting for %q on %s: %v",
				ErrContentWait, c.opts.AnchorSelector, pageURL, err)
		}
		return nil, fmt.Errorf("rendering %s: %w", pageURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse rendered html")
		return nil, fmt.Errorf("parsing rendered page %s: %w", pageURL, err)
	}
	return doc, nil
}
