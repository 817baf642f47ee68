package dealer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"cararth-ingest/config"
	"cararth-ingest/fetch"
	"cararth-ingest/models"
	"cararth-ingest/utils"
)

// ErrNoTitle invalidates the whole record: a detail page whose title
// cannot be resolved yields no RawListing at all.
var ErrNoTitle = errors.New("detail page has no resolvable title")

var (
	// currencyPriceRegexp matches a currency-prefixed amount anywhere in
	// page text, e.g. "₹ 4,50,000" or "Rs. 4.5 Lakh".
	currencyPriceRegexp = regexp.MustCompile(`(?i)(?:₹|Rs\.?|INR)\s*([\d,]+(?:\.\d+)?)\s*(lakh|lac)?`)
	// bareNumberRegexp matches the first numeric value inside a price element.
	bareNumberRegexp = regexp.MustCompile(`([\d,]+(?:\.\d+)?)\s*(?i:(lakh|lac))?`)
	yearRegexp       = regexp.MustCompile(`\b(19[89]\d|20[0-4]\d)\b`)
	mileageRegexp    = regexp.MustCompile(`(?i)([\d,]+)\s*(?:km|kms|kilometers)\b`)
)

// Extractor parses one detail page into a RawListing. Each field has an
// ordered list of strategies; the first non-empty, type-valid value
// wins. Missing secondary fields degrade to typed defaults.
type Extractor struct {
	cfg     config.SourceConfig
	fetcher fetch.Fetcher
	logger  *utils.Logger

	// models sorted longest-first so "Grand i10" beats "i10".
	modelsByLength []string
}

// NewExtractor creates an Extractor for one source.
func NewExtractor(cfg config.SourceConfig, fetcher fetch.Fetcher, logger *utils.Logger) *Extractor {
	byLen := append([]string(nil), cfg.Models...)
	sort.Slice(byLen, func(i, j int) bool { return len(byLen[i]) > len(byLen[j]) })

	return &Extractor{
		cfg:            cfg,
		fetcher:        fetcher,
		logger:         logger,
		modelsByLength: byLen,
	}
}

// Extract fetches and parses one detail page. Only a missing title
// fails the record; every other field falls back to its default.
func (e *Extractor) Extract(ctx context.Context, detailURL string) (*models.RawListing, error) {
	body, err := e.fetcher.Fetch(ctx, detailURL, nil)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", detailURL, err)
	}
	return e.Parse(body, detailURL)
}

// Parse builds a RawListing from already-fetched page markup.
func (e *Extractor) Parse(body []byte, detailURL string) (*models.RawListing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("extract %s: parse markup: %w", detailURL, err)
	}

	title := e.extractTitle(doc)
	if title == "" {
		return nil, fmt.Errorf("extract %s: %w", detailURL, ErrNoTitle)
	}

	pageText := doc.Text()
	lowerText := strings.ToLower(pageText)

	listing := &models.RawListing{
		ID:           models.ListingID(detailURL),
		Title:        title,
		Brand:        e.cfg.Brand,
		Model:        e.matchModel(title),
		Year:         extractYear(title, pageText),
		Price:        e.extractPrice(doc, pageText),
		Mileage:      extractMileage(pageText),
		Location:     e.extractLocation(doc),
		FuelType:     extractFuelType(lowerText),
		Transmission: extractTransmission(lowerText),
		Features:     e.extractFeatures(lowerText),
		Source:       e.cfg.Name,
		SourceURL:    detailURL,
		ImageURLs:    e.extractImageURLs(doc, detailURL),
		ExtractedAt:  time.Now(),
	}
	listing.City = cityFromLocation(listing.Location)

	return listing, nil
}

func (e *Extractor) extractTitle(doc *goquery.Document) string {
	for _, sel := range []string{"h1", "[class*=car-title]", "[class*=title]", "[class*=name]"} {
		if t := firstText(doc, sel); t != "" {
			return t
		}
	}
	// Last resort: the document title, minus any site-name suffix.
	t := strings.TrimSpace(doc.Find("title").First().Text())
	for _, cut := range []string{"|", " - "} {
		if i := strings.Index(t, cut); i > 0 {
			t = strings.TrimSpace(t[:i])
		}
	}
	return t
}

// extractPrice tries a dedicated price element first, then any element
// whose class suggests a price, then a currency-prefixed number in the
// page text.
func (e *Extractor) extractPrice(doc *goquery.Document, pageText string) int {
	for _, sel := range []string{"[data-price]", "[class*=price]", "[class*=amount]"} {
		if t := firstText(doc, sel); t != "" {
			if p := parsePriceValue(t); p > 0 {
				return p
			}
		}
	}
	if m := currencyPriceRegexp.FindStringSubmatch(pageText); len(m) >= 2 {
		return toRupees(m[1], m[2])
	}
	return 0
}

func (e *Extractor) extractLocation(doc *goquery.Document) string {
	for _, sel := range []string{"[class*=location]", "[class*=city]", "address"} {
		if t := firstText(doc, sel); t != "" {
			return t
		}
	}
	return "India"
}

// matchModel substring-matches the title against the source's known
// model list; no match yields "Unknown".
func (e *Extractor) matchModel(title string) string {
	lower := strings.ToLower(title)
	for _, m := range e.modelsByLength {
		if strings.Contains(lower, strings.ToLower(m)) {
			return m
		}
	}
	return "Unknown"
}

// extractFeatures is keyword-presence detection over the whole page
// text, seeded with the source's baseline regardless of hits.
func (e *Extractor) extractFeatures(lowerText string) []string {
	features := append([]string(nil), e.cfg.BaselineFeatures...)
	for _, kw := range e.cfg.FeatureKeywords {
		if strings.Contains(lowerText, strings.ToLower(kw)) {
			features = append(features, kw)
		}
	}
	return features
}

func (e *Extractor) extractImageURLs(doc *goquery.Document, detailURL string) []string {
	base, err := url.Parse(detailURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var out []string
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("src")
		if !ok || src == "" {
			src, _ = sel.Attr("data-src")
		}
		abs := absoluteURL(base, src)
		if abs == "" || !looksLikePhoto(abs) {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
	})
	return out
}

func looksLikePhoto(imgURL string) bool {
	lower := strings.ToLower(imgURL)
	for _, skip := range []string{"logo", "icon", "sprite", "placeholder", ".svg", ".gif"} {
		if strings.Contains(lower, skip) {
			return false
		}
	}
	path := strings.SplitN(lower, "?", 2)[0]
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".webp"} {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

func firstText(doc *goquery.Document, selector string) string {
	var out string
	doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if t := strings.TrimSpace(sel.Text()); t != "" {
			out = collapseSpace(t)
			return false
		}
		return true
	})
	return out
}

// parsePriceValue reads the first number out of a price element,
// honoring lakh notation.
func parsePriceValue(s string) int {
	if m := currencyPriceRegexp.FindStringSubmatch(s); len(m) >= 2 {
		return toRupees(m[1], m[2])
	}
	if m := bareNumberRegexp.FindStringSubmatch(s); len(m) >= 2 {
		return toRupees(m[1], m[2])
	}
	return 0
}

func toRupees(number, unit string) int {
	cleaned := strings.ReplaceAll(number, ",", "")
	val, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	if unit != "" {
		val *= 100000
	}
	return int(val)
}

func extractYear(title, pageText string) int {
	for _, hay := range []string{title, pageText} {
		if m := yearRegexp.FindString(hay); m != "" {
			y, _ := strconv.Atoi(m)
			return y
		}
	}
	return 0
}

func extractMileage(pageText string) int {
	m := mileageRegexp.FindStringSubmatch(pageText)
	if len(m) < 2 {
		return 0
	}
	val, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0
	}
	return val
}

func extractFuelType(lowerText string) string {
	for _, f := range []struct{ token, name string }{
		{"diesel", "Diesel"},
		{"petrol", "Petrol"},
		{"cng", "CNG"},
		{"electric", "Electric"},
		{"hybrid", "Hybrid"},
	} {
		if strings.Contains(lowerText, f.token) {
			return f.name
		}
	}
	return "Unknown"
}

func extractTransmission(lowerText string) string {
	switch {
	case strings.Contains(lowerText, "automatic"):
		return "Automatic"
	case strings.Contains(lowerText, "amt"):
		return "AMT"
	case strings.Contains(lowerText, "manual"):
		return "Manual"
	}
	return "Unknown"
}

func cityFromLocation(location string) string {
	if location == "" || location == "India" {
		return "India"
	}
	parts := strings.Split(location, ",")
	return strings.TrimSpace(parts[len(parts)-1])
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
