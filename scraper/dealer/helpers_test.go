package dealer

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"sync"

	"cararth-ingest/config"
	"cararth-ingest/fetch"
	"cararth-ingest/models"
	"cararth-ingest/utils"
)

// stubFetcher serves canned bodies keyed by URL and records every call.
type stubFetcher struct {
	mu    sync.Mutex
	pages map[string][]byte
	errs  map[string]error
	calls []string
}

var _ fetch.Fetcher = (*stubFetcher)(nil)

func (s *stubFetcher) Fetch(_ context.Context, rawURL string, _ map[string]string) ([]byte, error) {
	s.mu.Lock()
	s.calls = append(s.calls, rawURL)
	s.mu.Unlock()

	if err, ok := s.errs[rawURL]; ok {
		return nil, err
	}
	if body, ok := s.pages[rawURL]; ok {
		return body, nil
	}
	return nil, &fetch.FetchError{URL: rawURL, StatusCode: http.StatusNotFound}
}

func (s *stubFetcher) hits(rawURL string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == rawURL {
			n++
		}
	}
	return n
}

func testSource() config.SourceConfig {
	return config.SourceConfig{
		Name:             "Maruti True Value",
		Brand:            "Maruti Suzuki",
		BaseURL:          "https://cars.example.com",
		DetailURLToken:   "/used-car-details/",
		CityPathTemplate: "/used-cars/{city}",
		MaxPages:         2,
		MaxImages:        5,
		Models: []string{
			"Swift", "Baleno", "Dzire", "WagonR", "Brezza",
		},
		FeatureKeywords: []string{
			"Airbags", "ABS", "Power Steering", "Air Conditioning",
			"Touchscreen", "Alloy Wheels", "Rear Camera", "Keyless Entry",
		},
		BaselineFeatures: []string{"Certified Program", "Quality Check"},
	}
}

func testLogger() *utils.Logger {
	return utils.NewLogger()
}

// listingPage renders a search-results page containing the given hrefs.
func listingPage(hrefs ...string) []byte {
	var b strings.Builder
	b.WriteString("<html><body><div class=\"results\">")
	for _, h := range hrefs {
		fmt.Fprintf(&b, `<a href="%s">car</a>`, h)
	}
	b.WriteString("</div></body></html>")
	return []byte(b.String())
}

// detailPage renders a car detail page. Empty title omits the h1 and
// the document title entirely.
func detailPage(title, price, location, bodyText string, imgs ...string) []byte {
	var b strings.Builder
	b.WriteString("<html><head><title></title></head><body>")
	if title != "" {
		fmt.Fprintf(&b, "<h1>%s</h1>", title)
	}
	if price != "" {
		fmt.Fprintf(&b, `<div class="car-price">%s</div>`, price)
	}
	if location != "" {
		fmt.Fprintf(&b, `<div class="car-location">%s</div>`, location)
	}
	if bodyText != "" {
		fmt.Fprintf(&b, "<p>%s</p>", bodyText)
	}
	for _, img := range imgs {
		fmt.Fprintf(&b, `<img src="%s">`, img)
	}
	b.WriteString("</body></html>")
	return []byte(b.String())
}

// fakeJPEG is large enough and carries a real JPEG signature, so it
// clears both gate checks.
func fakeJPEG() []byte {
	return append([]byte{0xff, 0xd8, 0xff, 0xe0}, bytes.Repeat([]byte{0x42}, 2048)...)
}

type memSink struct {
	mu       sync.Mutex
	listings map[string]*models.Listing
	stores   int
}

func newMemSink() *memSink {
	return &memSink{listings: make(map[string]*models.Listing)}
}

func (m *memSink) Store(_ context.Context, l *models.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *l
	m.listings[l.ID] = &cp
	m.stores++
	return nil
}

func (m *memSink) Close() error { return nil }

type memRejected struct {
	mu      sync.Mutex
	records []*models.Listing
}

func (m *memRejected) Record(l *models.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *l
	m.records = append(m.records, &cp)
	return nil
}

func (m *memRejected) Close() error { return nil }

type memImages struct {
	mu   sync.Mutex
	puts map[string][]byte
}

func newMemImages() *memImages {
	return &memImages{puts: make(map[string][]byte)}
}

func (m *memImages) Put(_ context.Context, sourceURL string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := "img-" + path.Base(sourceURL)
	m.puts[key] = data
	return key, nil
}
