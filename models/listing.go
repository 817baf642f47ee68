package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Verification status of a Listing. A listing only ever moves
// extracted → certified or extracted → rejected; both are terminal.
const (
	StatusPending   = "pending"
	StatusCertified = "certified"
	StatusRejected  = "rejected"
)

// SellerDealer tags every OEM-sourced listing.
const SellerDealer = "dealer"

// RawListing holds extracted-but-unverified data from one detail page.
// It is mutable only during extraction and treated as read-only afterward.
type RawListing struct {
	ID           string
	Title        string
	Brand        string
	Model        string
	Year         int
	Price        int
	Mileage      int
	Location     string
	City         string
	FuelType     string
	Transmission string
	Features     []string
	Source       string
	SourceURL    string
	ImageURLs    []string
	ExtractedAt  time.Time
}

// ImageVerdict is the per-image outcome of the authenticity gate.
// StorageKey is set only when Passed is true.
type ImageVerdict struct {
	URL        string
	Passed     bool
	StorageKey string
	Reason     string
}

// TrustResult is the immutable output of trust screening for one
// RawListing. A re-screen produces a new TrustResult, never an edit.
type TrustResult struct {
	Score       float64
	Approved    bool
	Explanation string
}

// Listing is the finished artifact handed to the storage sink.
type Listing struct {
	RawListing
	ImagePublicURLs    []string
	VerificationStatus string
	SellerType         string
	TrustScore         float64
	TrustExplanation   string
	CreatedAt          time.Time
}

// SourceSummary reports one adapter's run.
type SourceSummary struct {
	Source     string
	TotalFound int
	Certified  int
	Rejected   int
	Errors     []string
}

// RunReport aggregates all source summaries for one ingestion run.
type RunReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Sources    []*SourceSummary
}

// TotalFound sums discovered detail URLs across all sources.
func (r *RunReport) TotalFound() int {
	n := 0
	for _, s := range r.Sources {
		n += s.TotalFound
	}
	return n
}

// TotalCertified sums published listings across all sources.
func (r *RunReport) TotalCertified() int {
	n := 0
	for _, s := range r.Sources {
		n += s.Certified
	}
	return n
}

// TotalErrors sums per-URL processing errors across all sources.
func (r *RunReport) TotalErrors() int {
	n := 0
	for _, s := range r.Sources {
		n += len(s.Errors)
	}
	return n
}

// ListingID derives a deterministic identifier from a detail-page URL,
// so re-ingesting the same URL is idempotent rather than duplicating.
func ListingID(sourceURL string) string {
	sum := sha256.Sum256([]byte(sourceURL))
	return hex.EncodeToString(sum[:])[:16]
}
