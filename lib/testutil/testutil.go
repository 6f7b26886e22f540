// Package testutil sets up the shared environment scraper tests need.
package testutil

import (
	"os"
	"testing"

	"casevault-backend/lib/telemetry"
)

type ScraperParams struct {
	Name string
}

type ScraperResult struct {
	// directory downloaded assets land in, removed when the test ends
	MediaDir string
}

func SetupScraper(t testing.TB, params ScraperParams) (ScraperResult, func()) {
	cleanup := telemetry.SetupForTesting(t, "test:"+params.Name)

	dir, err := os.MkdirTemp("", "casevault-media-*")
	if err != nil {
		t.Fatal(err)
	}

	return ScraperResult{MediaDir: dir}, func() {
		os.RemoveAll(dir)
		cleanup()
	}
}
