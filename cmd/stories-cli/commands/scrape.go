package commands

import (
	"log/slog"
	"time"

	"casevault-backend/lib/assets"
	"casevault-backend/lib/configutil"
	"casevault-backend/lib/osutil"
	"casevault-backend/lib/restyutil"
	"casevault-backend/lib/scrapers/customerstories/render"
	"casevault-backend/services/stories"

	"github.com/dgraph-io/badger/v4"
	"github.com/spf13/cobra"
)

type CacheConfig struct {
	// directory the rendered page cache lives in, empty to disable caching
	Dir      string `json:"dir"`
	Lifetime string `json:"lifetime"`
}

type Config struct {
	SeedUrl         string      `json:"seed_url"`
	MaxPages        int         `json:"max_pages"`
	MediaDir        string      `json:"media_dir"`
	DownloadWorkers int         `json:"download_workers"`
	ChromePath      string      `json:"chrome_path"`
	ShowBrowser     bool        `json:"show_browser"`
	Cache           CacheConfig `json:"cache"`
}

var scrapeOut *string

func init() {
	scrapeOut = scrapeCmd.Flags().String("out", stories.DatasetFilename, "The file to write the scraped dataset to.")
	rootCmd.AddCommand(scrapeCmd)
}

func createRenderer(cfg Config) (render.Renderer, func()) {
	opts := render.DefaultOptions()
	opts.ChromePath = cfg.ChromePath
	opts.Headless = !cfg.ShowBrowser

	var renderer render.Renderer = render.NewChrome(opts)
	if cfg.Cache.Dir == "" {
		return renderer, func() {}
	}

	lifetime := time.Hour
	if cfg.Cache.Lifetime != "" {
		parsed, err := time.ParseDuration(cfg.Cache.Lifetime)
		if err != nil {
			osutil.Fatal("failed to parse cache lifetime", err)
		}
		lifetime = parsed
	}

	db, err := badger.Open(badger.DefaultOptions(cfg.Cache.Dir).WithLogger(nil))
	if err != nil {
		osutil.Fatal("failed to open page cache", err)
	}

	return render.NewCached(renderer, render.NewCache(db, lifetime)), func() {
		db.Close()
	}
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [--out <path/to/output.json>]",
	Short: "Scrapes the customer story listing according to a config and writes a dataset.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := configutil.ReadConfig[Config]("config.json5")
		if err != nil {
			osutil.Fatal("failed to read config", err)
		}
		assets.SetRestyInstrumentOutput(restyutil.NewFilesystemOutput(".dev/resty/assets"))

		renderer, closeRenderer := createRenderer(cfg)
		defer closeRenderer()

		service := stories.NewService(renderer, assets.NewFetcher(assets.FetcherOptions{}), stories.Options{
			SeedUrl:         cfg.SeedUrl,
			MaxPages:        cfg.MaxPages,
			MediaDir:        cfg.MediaDir,
			DownloadWorkers: cfg.DownloadWorkers,
		})

		t1 := time.Now()
		dataset, err := service.Run(cmd.Context())
		if err != nil {
			osutil.Fatal("failed to scrape stories", err)
		}
		t2 := time.Now()

		err = stories.WriteDataset(*scrapeOut, dataset)
		if err != nil {
			osutil.Fatal("failed to write dataset", err)
		}

		slog.Info(
			"scraping time",
			"seconds", t2.Sub(t1).Seconds(),
			"pages", dataset.Metadata.TotalPages,
			"stories", dataset.Metadata.TotalStories,
		)
	},
}
