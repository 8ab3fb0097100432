package task

import (
	"context"
	"errors"
	"log/slog"

	"github.com/icodeforyou/rdn-scraper/ingest"
)

type Scraper interface {
	Run(ctx context.Context) (ingest.Summary, error)
}

// NewScrapeTask runs the pipeline with ctx, so a shutdown aborts a fetch in
// progress. The pipeline logs the outcome itself.
func NewScrapeTask(ctx context.Context, logger *slog.Logger, scraper Scraper) func() {
	return func() {
		logger.Debug("running scrape task...")
		if _, err := scraper.Run(ctx); errors.Is(err, ingest.ErrRunInProgress) {
			logger.Warn("scrape task skipped, a run is already in progress")
		}
	}
}
