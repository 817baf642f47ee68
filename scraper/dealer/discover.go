package dealer

import (
	"bytes"
	"context"
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"cararth-ingest/config"
	"cararth-ingest/fetch"
	"cararth-ingest/utils"
)

// maxDetailURLs is the hard ceiling on detail pages per source per run,
// bounding cost no matter how many links a listing page contains.
const maxDetailURLs = 50

// Discoverer finds candidate detail-page URLs on a source's paginated
// listing pages.
type Discoverer struct {
	cfg     config.SourceConfig
	fetcher fetch.Fetcher
	logger  *utils.Logger
}

// NewDiscoverer creates a Discoverer for one source.
func NewDiscoverer(cfg config.SourceConfig, fetcher fetch.Fetcher, logger *utils.Logger) *Discoverer {
	return &Discoverer{cfg: cfg, fetcher: fetcher, logger: logger}
}

// Discover returns a de-duplicated, order-preserving list of absolute
// detail URLs, truncated to maxDetailURLs. Links that do not match the
// source's detail pattern are skipped silently — malformed or foreign
// links degrade coverage, not correctness. A failed first page is an
// error; later page failures just stop pagination.
func (d *Discoverer) Discover(ctx context.Context, city string, maxPages int) ([]string, error) {
	if maxPages <= 0 {
		maxPages = d.cfg.MaxPages
	}

	seen := utils.NewURLSet()
	var urls []string

	for page := 1; page <= maxPages; page++ {
		pageURL := d.cfg.ListingPageURL(city, page)
		d.logger.Debug("[%s] discovering page %d: %s", d.cfg.Name, page, pageURL)

		body, err := d.fetcher.Fetch(ctx, pageURL, nil)
		if err != nil {
			if page == 1 {
				return nil, fmt.Errorf("discover %s: %w", d.cfg.Name, err)
			}
			d.logger.Warn("[%s] page %d failed, stopping pagination: %v", d.cfg.Name, page, err)
			break
		}

		found := d.extractLinks(body, pageURL)
		added := 0
		for _, u := range found {
			if len(urls) >= maxDetailURLs {
				break
			}
			if seen.Add(u) {
				urls = append(urls, u)
				added++
			}
		}

		d.logger.Info("[%s] page %d: %d detail links (%d new)", d.cfg.Name, page, len(found), added)
		if len(urls) >= maxDetailURLs || added == 0 {
			break
		}
	}

	return urls, nil
}

func (d *Discoverer) extractLinks(body []byte, pageURL string) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		d.logger.Warn("[%s] unparseable listing page %s: %v", d.cfg.Name, pageURL, err)
		return nil
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	var out []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		abs := absoluteURL(base, href)
		if abs == "" || !d.cfg.MatchesDetailURL(abs) {
			return
		}
		out = append(out, abs)
	})
	return out
}

func absoluteURL(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	abs.Fragment = ""
	return abs.String()
}
