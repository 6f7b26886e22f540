package stories

import (
	"context"
	"log/slog"
	"path"
	"path/filepath"
	"sync"

	"casevault-backend/lib/scrapers/customerstories"
)

// downloadAssets resolves every record's remote images to local files.
// Each worker owns a whole record, and every failure is logged and left
// as an unset *Local field; the run always reaches the dataset write.
func (s Service) downloadAssets(ctx context.Context, records []customerstories.StoryRecord) {
	ctx, span := tracer.Start(ctx, "service:downloadAssets")
	defer span.End()

	sem := make(chan struct{}, s.opts.DownloadWorkers)
	wg := sync.WaitGroup{}
	for i := range records {
		wg.Add(1)
		sem <- struct{}{}
		go func(record *customerstories.StoryRecord) {
			defer wg.Done()
			defer func() { <-sem }()
			s.downloadRecordAssets(ctx, record)
		}(&records[i])
	}
	wg.Wait()
}

func (s Service) downloadRecordAssets(ctx context.Context, record *customerstories.StoryRecord) {
	if local, ok := s.fetchOne(ctx, record, record.Company.Logo, customerstories.RoleLogo); ok {
		record.Company.LogoLocal = local
	}
	if local, ok := s.fetchOne(ctx, record, record.Media.HeaderImage, customerstories.RoleHeader); ok {
		record.Media.HeaderImageLocal = local
	}
	for i := range record.MicrosoftProducts {
		product := &record.MicrosoftProducts[i]
		role := customerstories.ProductRole(product.Name)
		if local, ok := s.fetchOne(ctx, record, product.Icon, role); ok {
			product.IconLocal = local
		}
	}
}

// fetchOne downloads a single asset and reports the dataset-relative
// path to store, or ok=false when nothing was written.
func (s Service) fetchOne(ctx context.Context, record *customerstories.StoryRecord, remoteURL, role string) (string, bool) {
	base := customerstories.AssetBase(record.GlobalId, role)
	result, err := s.fetcher.Fetch(ctx, remoteURL, s.opts.MediaDir, base)
	if err != nil {
		slog.WarnContext(
			ctx, "failed to download asset",
			"story", record.GlobalId,
			"role", role,
			"url", remoteURL,
			"err", err,
		)
		return "", false
	}
	if result.Skipped {
		return "", false
	}
	return path.Join(filepath.Base(s.opts.MediaDir), result.Filename), true
}
