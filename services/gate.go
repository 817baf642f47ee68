package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"cararth-ingest/fetch"
	"cararth-ingest/metrics"
	"cararth-ingest/models"
	"cararth-ingest/storage"
	"cararth-ingest/utils"
)

// minImageBytes rejects tracking pixels and truncated downloads.
const minImageBytes = 1024

// ImageGate screens a listing's candidate images for authenticity.
// Each candidate is processed independently; one bad image never
// aborts gating for the rest.
type ImageGate struct {
	fetcher   fetch.Fetcher
	store     storage.ImageStore
	logger    *utils.Logger
	maxImages int
}

// NewImageGate creates a gate that screens at most maxImages candidates
// per listing.
func NewImageGate(fetcher fetch.Fetcher, store storage.ImageStore, logger *utils.Logger, maxImages int) *ImageGate {
	if maxImages <= 0 {
		maxImages = 5
	}
	return &ImageGate{
		fetcher:   fetcher,
		store:     store,
		logger:    logger,
		maxImages: maxImages,
	}
}

// Screen returns one verdict per attempted candidate, in candidate
// order. Passed verdicts carry the durable storage key.
func (g *ImageGate) Screen(ctx context.Context, listing *models.RawListing) []models.ImageVerdict {
	candidates := listing.ImageURLs
	if len(candidates) > g.maxImages {
		candidates = candidates[:g.maxImages]
	}

	verdicts := make([]models.ImageVerdict, 0, len(candidates))
	passed := 0
	for _, imgURL := range candidates {
		v := g.screenOne(ctx, imgURL)
		if v.Passed {
			passed++
			metrics.ImagesTotal.WithLabelValues("passed").Inc()
		} else {
			metrics.ImagesTotal.WithLabelValues("failed").Inc()
			g.logger.Debug("[gate] %s failed %s: %s", listing.ID, imgURL, v.Reason)
		}
		verdicts = append(verdicts, v)
	}

	g.logger.Info("[gate] %s: %d/%d images passed", listing.ID, passed, len(candidates))
	return verdicts
}

func (g *ImageGate) screenOne(ctx context.Context, imgURL string) models.ImageVerdict {
	v := models.ImageVerdict{URL: imgURL}

	data, err := g.fetcher.Fetch(ctx, imgURL, nil)
	if err != nil {
		v.Reason = fmt.Sprintf("fetch failed: %v", err)
		return v
	}
	if len(data) < minImageBytes {
		v.Reason = fmt.Sprintf("too small (%d bytes)", len(data))
		return v
	}
	if ct := http.DetectContentType(data); !strings.HasPrefix(ct, "image/") {
		v.Reason = fmt.Sprintf("not an image (%s)", ct)
		return v
	}

	key, err := g.store.Put(ctx, imgURL, data)
	if err != nil {
		v.Reason = fmt.Sprintf("store failed: %v", err)
		return v
	}

	v.Passed = true
	v.StorageKey = key
	return v
}
