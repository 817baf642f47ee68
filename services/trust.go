package services

import (
	"fmt"
	"strings"
	"time"

	"cararth-ingest/models"
	"cararth-ingest/utils"
)

// TrustPolicy holds the scoring weights and the publish threshold.
// Weights are an external policy; the pipeline only relies on the
// screening contract, not on these exact numbers.
type TrustPolicy struct {
	ImageWeight      float64
	MetadataWeight   float64
	SourceWeight     float64
	FeatureWeight    float64
	ApproveThreshold float64
}

// DefaultTrustPolicy returns the production weights (sums to 100).
func DefaultTrustPolicy() TrustPolicy {
	return TrustPolicy{
		ImageWeight:      40,
		MetadataWeight:   30,
		SourceWeight:     20,
		FeatureWeight:    10,
		ApproveThreshold: 60,
	}
}

// TrustLayer computes a composite trust score for a raw listing. The
// scoring is pure: same inputs, same verdict, no side effects.
type TrustLayer struct {
	policy  TrustPolicy
	logger  *utils.Logger
	maxYear int
}

// NewTrustLayer creates a TrustLayer with the given policy. The year
// plausibility bound is fixed at construction so Screen stays pure.
func NewTrustLayer(policy TrustPolicy, logger *utils.Logger) *TrustLayer {
	return &TrustLayer{
		policy:  policy,
		logger:  logger,
		maxYear: time.Now().Year() + 1,
	}
}

// Screen scores one listing against its image verdicts and renders an
// approve/reject verdict. It is total: every well-formed input yields
// a TrustResult, and the explanation is always populated.
func (t *TrustLayer) Screen(listing *models.RawListing, verdicts []models.ImageVerdict) models.TrustResult {
	var notes []string

	imageScore := t.imageScore(verdicts, &notes)
	metaScore := t.metadataScore(listing, &notes)
	sourceScore := t.sourceScore(listing, &notes)
	featureScore := t.featureScore(listing, &notes)

	score := round1(imageScore + metaScore + sourceScore + featureScore)
	approved := score >= t.policy.ApproveThreshold

	verdict := "rejected"
	if approved {
		verdict = "approved"
	}
	explanation := fmt.Sprintf("score %.1f/100 (%s): %s",
		score, verdict, strings.Join(notes, "; "))

	return models.TrustResult{
		Score:       score,
		Approved:    approved,
		Explanation: explanation,
	}
}

func (t *TrustLayer) imageScore(verdicts []models.ImageVerdict, notes *[]string) float64 {
	if len(verdicts) == 0 {
		*notes = append(*notes, "no imagery available")
		return 0
	}
	passed := 0
	for _, v := range verdicts {
		if v.Passed {
			passed++
		}
	}
	ratio := float64(passed) / float64(len(verdicts))
	*notes = append(*notes, fmt.Sprintf("%d/%d images authentic", passed, len(verdicts)))
	return ratio * t.policy.ImageWeight
}

func (t *TrustLayer) metadataScore(l *models.RawListing, notes *[]string) float64 {
	checks := []struct {
		name string
		ok   bool
	}{
		{"price", l.Price > 0},
		{"year", l.Year >= 1990 && l.Year <= t.maxYear},
		{"mileage", l.Mileage > 0},
		{"fuel type", known(l.FuelType)},
		{"transmission", known(l.Transmission)},
		{"model", known(l.Model)},
	}

	passed := 0
	var missing []string
	for _, c := range checks {
		if c.ok {
			passed++
		} else {
			missing = append(missing, c.name)
		}
	}

	if len(missing) > 0 {
		*notes = append(*notes, "missing/implausible: "+strings.Join(missing, ", "))
	} else {
		*notes = append(*notes, "metadata complete")
	}
	return float64(passed) / float64(len(checks)) * t.policy.MetadataWeight
}

func (t *TrustLayer) sourceScore(l *models.RawListing, notes *[]string) float64 {
	if l.Source == "" || l.SourceURL == "" {
		*notes = append(*notes, "unattributed source")
		return 0
	}
	*notes = append(*notes, "OEM certified-dealer source")
	return t.policy.SourceWeight
}

func (t *TrustLayer) featureScore(l *models.RawListing, notes *[]string) float64 {
	const fullAt = 8
	n := len(l.Features)
	ratio := float64(n) / fullAt
	if ratio > 1 {
		ratio = 1
	}
	*notes = append(*notes, fmt.Sprintf("%d features listed", n))
	return ratio * t.policy.FeatureWeight
}

func known(s string) bool {
	return s != "" && s != "Unknown"
}

func round1(f float64) float64 {
	return float64(int(f*10+0.5)) / 10
}
