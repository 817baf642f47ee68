package dealer

import (
	"context"
	"fmt"
	"time"

	"cararth-ingest/config"
	"cararth-ingest/fetch"
	"cararth-ingest/metrics"
	"cararth-ingest/models"
	"cararth-ingest/services"
	"cararth-ingest/storage"
	"cararth-ingest/utils"
)

// Adapter runs the full discovery → extraction → gating → screening
// pipeline for one certified-dealer source.
//
// Every listing follows a strict state machine: it is either certified
// (screening approved) or rejected (screening denied), both terminal.
// A URL that fails extraction never becomes a listing at all; it is
// recorded only as a processing error in the source summary.
type Adapter struct {
	cfg        config.SourceConfig
	discoverer *Discoverer
	extractor  *Extractor
	gate       *services.ImageGate
	trust      *services.TrustLayer
	sink       storage.ListingSink
	rejected   storage.RejectedSink
	logger     *utils.Logger
	delay      time.Duration

	// sleep is swapped for a fake in timing tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewAdapter validates the source config and wires the per-source
// pipeline. A bad config aborts only this source.
func NewAdapter(
	cfg config.SourceConfig,
	fetcher fetch.Fetcher,
	gate *services.ImageGate,
	trust *services.TrustLayer,
	sink storage.ListingSink,
	rejected storage.RejectedSink,
	logger *utils.Logger,
	delay time.Duration,
) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Adapter{
		cfg:        cfg,
		discoverer: NewDiscoverer(cfg, fetcher, logger),
		extractor:  NewExtractor(cfg, fetcher, logger),
		gate:       gate,
		trust:      trust,
		sink:       sink,
		rejected:   rejected,
		logger:     logger,
		delay:      delay,
		sleep:      ctxSleep,
	}, nil
}

// Run processes one source end to end and returns its summary. It
// never panics the run: every URL lands in exactly one of the
// certified, rejected, or error buckets.
func (a *Adapter) Run(ctx context.Context, city string, maxPages int) *models.SourceSummary {
	summary := &models.SourceSummary{Source: a.cfg.Name}

	urls, err := a.discoverer.Discover(ctx, city, maxPages)
	if err != nil {
		summary.Errors = append(summary.Errors, err.Error())
		return summary
	}
	summary.TotalFound = len(urls)
	a.logger.Info("[%s] discovered %d detail URLs", a.cfg.Name, len(urls))

	for i, detailURL := range urls {
		if i > 0 {
			// Deliberate throughput cap between detail pages, applied
			// regardless of the previous URL's outcome.
			if err := a.sleep(ctx, a.delay); err != nil {
				summary.Errors = append(summary.Errors,
					fmt.Sprintf("run canceled with %d URLs unprocessed", len(urls)-i))
				return summary
			}
		}
		if ctx.Err() != nil {
			summary.Errors = append(summary.Errors,
				fmt.Sprintf("run canceled with %d URLs unprocessed", len(urls)-i))
			return summary
		}

		a.processURL(ctx, detailURL, summary)
	}

	return summary
}

func (a *Adapter) processURL(ctx context.Context, detailURL string, summary *models.SourceSummary) {
	raw, err := a.extractor.Extract(ctx, detailURL)
	if err != nil {
		summary.Errors = append(summary.Errors, err.Error())
		metrics.ListingsTotal.WithLabelValues(a.cfg.Name, "error").Inc()
		return
	}

	verdicts := a.gate.Screen(ctx, raw)
	result := a.trust.Screen(raw, verdicts)

	listing := a.buildListing(raw, verdicts, result)

	if result.Approved {
		listing.VerificationStatus = models.StatusCertified
		if err := a.sink.Store(ctx, listing); err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("store %s: %v", listing.ID, err))
			metrics.ListingsTotal.WithLabelValues(a.cfg.Name, "error").Inc()
			return
		}
		summary.Certified++
		metrics.ListingsTotal.WithLabelValues(a.cfg.Name, "certified").Inc()
		a.logger.Info("[%s] certified %s — %s", a.cfg.Name, listing.ID, result.Explanation)
		return
	}

	listing.VerificationStatus = models.StatusRejected
	summary.Rejected++
	metrics.ListingsTotal.WithLabelValues(a.cfg.Name, "rejected").Inc()
	a.logger.Info("[%s] rejected %s — %s", a.cfg.Name, listing.ID, result.Explanation)
	if a.rejected != nil {
		if err := a.rejected.Record(listing); err != nil {
			a.logger.Warn("[%s] rejected-audit write failed for %s: %v", a.cfg.Name, listing.ID, err)
		}
	}
}

// buildListing combines the immutable RawListing, its verdicts, and the
// trust result into the final artifact. Public image URLs come from
// passed verdicts only.
func (a *Adapter) buildListing(raw *models.RawListing, verdicts []models.ImageVerdict, result models.TrustResult) *models.Listing {
	var publicURLs []string
	for _, v := range verdicts {
		if v.Passed {
			publicURLs = append(publicURLs, storage.ProxyImageURL(v.StorageKey))
		}
	}

	return &models.Listing{
		RawListing:         *raw,
		ImagePublicURLs:    publicURLs,
		VerificationStatus: models.StatusPending,
		SellerType:         models.SellerDealer,
		TrustScore:         result.Score,
		TrustExplanation:   result.Explanation,
		CreatedAt:          time.Now(),
	}
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
