package dealer

import (
	"errors"
	"testing"

	"cararth-ingest/models"
)

func TestParseFullDetailPage(t *testing.T) {
	detailURL := "https://cars.example.com/used-car-details/swift-1"
	body := detailPage(
		"2021 Maruti Suzuki Swift VXI",
		"₹ 5,45,000",
		"Banjara Hills, Hyderabad",
		"Driven 32,000 km. Petrol engine with manual gearbox. Airbags, ABS and Touchscreen included.",
		"/img/swift-front.jpg",
		"https://cdn.example.com/site-logo.png",
		"/img/swift-rear.webp",
	)

	e := NewExtractor(testSource(), &stubFetcher{}, testLogger())
	l, err := e.Parse(body, detailURL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if l.ID != models.ListingID(detailURL) {
		t.Errorf("ID: got %s, want deterministic ID for %s", l.ID, detailURL)
	}
	if l.Title != "2021 Maruti Suzuki Swift VXI" {
		t.Errorf("Title: got %q", l.Title)
	}
	if l.Brand != "Maruti Suzuki" {
		t.Errorf("Brand: got %q", l.Brand)
	}
	if l.Model != "Swift" {
		t.Errorf("Model: got %q", l.Model)
	}
	if l.Year != 2021 {
		t.Errorf("Year: got %d, want 2021", l.Year)
	}
	if l.Price != 545000 {
		t.Errorf("Price: got %d, want 545000", l.Price)
	}
	if l.Mileage != 32000 {
		t.Errorf("Mileage: got %d, want 32000", l.Mileage)
	}
	if l.FuelType != "Petrol" {
		t.Errorf("FuelType: got %q", l.FuelType)
	}
	if l.Transmission != "Manual" {
		t.Errorf("Transmission: got %q", l.Transmission)
	}
	if l.Location != "Banjara Hills, Hyderabad" {
		t.Errorf("Location: got %q", l.Location)
	}
	if l.City != "Hyderabad" {
		t.Errorf("City: got %q", l.City)
	}
	if l.SourceURL != detailURL || l.Source != "Maruti True Value" {
		t.Errorf("source attribution: got %q / %q", l.Source, l.SourceURL)
	}

	// The site logo must be filtered out; car photos resolve to absolute URLs.
	wantImgs := []string{
		"https://cars.example.com/img/swift-front.jpg",
		"https://cars.example.com/img/swift-rear.webp",
	}
	if len(l.ImageURLs) != len(wantImgs) {
		t.Fatalf("ImageURLs: got %v", l.ImageURLs)
	}
	for i, u := range wantImgs {
		if l.ImageURLs[i] != u {
			t.Errorf("ImageURLs[%d]: got %s, want %s", i, l.ImageURLs[i], u)
		}
	}

	for _, want := range []string{"Certified Program", "Quality Check", "Airbags", "ABS", "Touchscreen"} {
		if !contains(l.Features, want) {
			t.Errorf("Features missing %q: %v", want, l.Features)
		}
	}
	if contains(l.Features, "Alloy Wheels") {
		t.Errorf("Features claims an absent keyword: %v", l.Features)
	}
}

func TestParseMissingTitleFailsRecord(t *testing.T) {
	body := detailPage("", "₹ 2,00,000", "", "A nice car.")

	e := NewExtractor(testSource(), &stubFetcher{}, testLogger())
	_, err := e.Parse(body, "https://cars.example.com/used-car-details/no-title")
	if !errors.Is(err, ErrNoTitle) {
		t.Fatalf("expected ErrNoTitle, got %v", err)
	}
}

func TestParseMissingFieldsDegradeToDefaults(t *testing.T) {
	body := detailPage("Well Maintained Family Hatchback", "", "", "")

	e := NewExtractor(testSource(), &stubFetcher{}, testLogger())
	l, err := e.Parse(body, "https://cars.example.com/used-car-details/sparse")
	if err != nil {
		t.Fatalf("sparse page must still parse: %v", err)
	}

	if l.Price != 0 || l.Year != 0 || l.Mileage != 0 {
		t.Errorf("numeric defaults: price=%d year=%d mileage=%d, want zeros", l.Price, l.Year, l.Mileage)
	}
	if l.Model != "Unknown" || l.FuelType != "Unknown" || l.Transmission != "Unknown" {
		t.Errorf("string defaults: model=%q fuel=%q transmission=%q, want Unknown",
			l.Model, l.FuelType, l.Transmission)
	}
	if l.Location != "India" || l.City != "India" {
		t.Errorf("location defaults: %q / %q, want India", l.Location, l.City)
	}
	if len(l.ImageURLs) != 0 {
		t.Errorf("ImageURLs: got %v, want none", l.ImageURLs)
	}
	// Baseline features are present even on the sparsest page.
	if len(l.Features) != 2 || !contains(l.Features, "Certified Program") {
		t.Errorf("Features: got %v, want baseline only", l.Features)
	}
}

func TestParseLakhPrice(t *testing.T) {
	cases := []struct {
		name  string
		price string
		want  int
	}{
		{"comma grouped", "₹ 4,50,000", 450000},
		{"lakh suffix", "Rs. 4.5 Lakh", 450000},
		{"lac spelling", "INR 6 lac", 600000},
		{"plain rupees", "Rs 85000", 85000},
	}

	e := NewExtractor(testSource(), &stubFetcher{}, testLogger())
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := detailPage("2020 Swift LXI", tc.price, "", "")
			l, err := e.Parse(body, "https://cars.example.com/used-car-details/p")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if l.Price != tc.want {
				t.Errorf("Price: got %d, want %d", l.Price, tc.want)
			}
		})
	}
}

func TestMatchModelPrefersLongestName(t *testing.T) {
	src := testSource()
	src.Brand = "Hyundai"
	src.Models = []string{"i10", "Grand i10", "i20", "Creta"}

	e := NewExtractor(src, &stubFetcher{}, testLogger())
	body := detailPage("2020 Hyundai Grand i10 Sportz", "", "", "")
	l, err := e.Parse(body, "https://cars.example.com/used-car-details/g10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Model != "Grand i10" {
		t.Errorf("Model: got %q, want Grand i10", l.Model)
	}
}

func TestParseFallsBackToDocumentTitle(t *testing.T) {
	body := []byte(`<html><head><title>2019 Baleno Delta | True Value</title></head>` +
		`<body><div class="spec">Good condition</div></body></html>`)

	e := NewExtractor(testSource(), &stubFetcher{}, testLogger())
	l, err := e.Parse(body, "https://cars.example.com/used-car-details/b1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Title != "2019 Baleno Delta" {
		t.Errorf("Title: got %q, want site suffix stripped", l.Title)
	}
	if l.Model != "Baleno" {
		t.Errorf("Model: got %q", l.Model)
	}
}

func contains(ss []string, want string) bool {
	for _, s := range ss {
		if s == want {
			return true
		}
	}
	return false
}
