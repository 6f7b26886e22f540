// Package assets retrieves remote images and reconciles them to locally
// stored files. Failures are reported to the caller as typed errors and
// never leave partial files behind.
package assets

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"casevault-backend/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("lib/assets")

var restyInstrumentOutput restyutil.InstrumentOutput

func SetRestyInstrumentOutput(output restyutil.InstrumentOutput) {
	restyInstrumentOutput = output
}

// FetchError reports a failed asset retrieval.
type FetchError struct {
	URL        string
	StatusCode int
	Timeout    bool
	Err        error
}

func (e *FetchError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("fetching %s: timed out", e.URL)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Result describes a completed fetch. Skipped results carry no file:
// inline data and empty URLs are "nothing to fetch", not errors.
type Result struct {
	Filename string
	Skipped  bool
}

type FetcherOptions struct {
	Timeout      time.Duration // per-attempt bound, default 30s
	MaxRedirects int           // redirect hop cap, default 5
	UserAgent    string
}

type Fetcher struct {
	client *resty.Client
}

func NewFetcher(opts FetcherOptions) Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = time.Second * 30
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = 5
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
	}

	client := resty.New()
	client.SetTimeout(opts.Timeout)
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(opts.MaxRedirects))
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetHeader("user-agent", opts.UserAgent)

	restyutil.InstrumentClient(client, tracer, restyInstrumentOutput)

	return Fetcher{client: client}
}

// Fetch retrieves a remote asset and writes it verbatim to
// {destDir}/{baseName}.{ext}, creating destDir if needed. The extension
// comes from the URL path when it carries a known image extension, then
// from the response Content-Type, then defaults to jpg.
func (f Fetcher) Fetch(ctx context.Context, remoteURL, destDir, baseName string) (Result, error) {
	ctx, span := tracer.Start(ctx, "fetcher:Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("url", remoteURL))

	if remoteURL == "" || strings.HasPrefix(remoteURL, "data:") {
		span.SetStatus(codes.Ok, "nothing to fetch")
		return Result{Skipped: true}, nil
	}

	res, err := f.client.R().
		SetContext(ctx).
		Get(remoteURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return Result{}, &FetchError{
			URL:     remoteURL,
			Timeout: isTimeout(err),
			Err:     err,
		}
	}
	if !res.IsSuccess() {
		span.SetStatus(codes.Error, "unexpected status")
		return Result{}, &FetchError{URL: remoteURL, StatusCode: res.StatusCode()}
	}

	ext := extensionFromURL(remoteURL)
	if ext == "" {
		ext = extensionFromContentType(res.Header().Get("Content-Type"))
	}
	if ext == "" {
		ext = defaultExtension
	}

	err = os.MkdirAll(destDir, 0755)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create asset directory")
		return Result{}, &FetchError{URL: remoteURL, Err: err}
	}

	filename := fmt.Sprintf("%s.%s", baseName, ext)
	dest := filepath.Join(destDir, filename)
	err = os.WriteFile(dest, res.Body(), 0644)
	if err != nil {
		// never leave a partial artifact behind
		os.Remove(dest)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write asset")
		return Result{}, &FetchError{URL: remoteURL, Err: err}
	}

	span.SetAttributes(attribute.String("filename", filename))
	return Result{Filename: filename}, nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

const defaultExtension = "jpg"

var knownExtensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"gif":  true,
	"webp": true,
	"svg":  true,
	"bmp":  true,
	"ico":  true,
}

var contentTypeExtensions = map[string]string{
	"image/jpeg":               "jpg",
	"image/png":                "png",
	"image/gif":                "gif",
	"image/webp":               "webp",
	"image/svg+xml":            "svg",
	"image/bmp":                "bmp",
	"image/x-icon":             "ico",
	"image/vnd.microsoft.icon": "ico",
}

func extensionFromURL(remoteURL string) string {
	parsed, err := url.Parse(remoteURL)
	if err != nil {
		return ""
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(parsed.Path), "."))
	if knownExtensions[ext] {
		return ext
	}
	return ""
}

func extensionFromContentType(contentType string) string {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	return contentTypeExtensions[contentType]
}
