package scraper

import (
	"context"
	"time"

	"github.com/google/uuid"

	"cararth-ingest/metrics"
	"cararth-ingest/models"
	"cararth-ingest/scraper/dealer"
	"cararth-ingest/utils"
)

// Runner fans an ingestion run out across source adapters. Sources
// target independent hosts and share no mutable state beyond this
// append-only result collection, so they may run concurrently up to
// maxParallel.
type Runner struct {
	adapters    []*dealer.Adapter
	logger      *utils.Logger
	maxParallel int
}

// NewRunner creates a Runner over the given adapters.
func NewRunner(adapters []*dealer.Adapter, logger *utils.Logger, maxParallel int) *Runner {
	if maxParallel <= 0 {
		maxParallel = 1
	}
	return &Runner{
		adapters:    adapters,
		logger:      logger,
		maxParallel: maxParallel,
	}
}

// Run executes all adapters and aggregates their summaries. One
// source exhausting its error budget never blocks another source;
// the report carries every source's outcome.
func (r *Runner) Run(ctx context.Context, city string, maxPages int) *models.RunReport {
	report := &models.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}

	summaries := make([]*models.SourceSummary, len(r.adapters))
	pool := utils.NewWorkerPool(r.maxParallel)
	for i, adapter := range r.adapters {
		i, adapter := i, adapter
		pool.Submit(func() {
			summaries[i] = adapter.Run(ctx, city, maxPages)
		})
	}
	pool.Wait()

	for _, s := range summaries {
		if s != nil {
			report.Sources = append(report.Sources, s)
		}
	}

	report.FinishedAt = time.Now()
	metrics.MarkRunFinished(report.FinishedAt)

	r.logger.Info("[runner] run %s finished — found %d, certified %d, errors %d",
		report.RunID, report.TotalFound(), report.TotalCertified(), report.TotalErrors())
	return report
}
