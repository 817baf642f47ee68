package storage

import (
	"context"

	"cararth-ingest/models"
)

// ListingSink accepts certified listings. Implementations must be
// idempotent on the deterministic listing ID: re-running ingestion on
// the same URL overwrites rather than duplicating.
type ListingSink interface {
	Store(ctx context.Context, listing *models.Listing) error
	Close() error
}

// RejectedSink receives rejected listings for audit, never publication.
type RejectedSink interface {
	Record(listing *models.Listing) error
	Close() error
}

// ImageStore is the object-storage collaborator for gated images. Put
// persists raw image bytes and returns a durable storage key.
type ImageStore interface {
	Put(ctx context.Context, sourceURL string, data []byte) (string, error)
}
