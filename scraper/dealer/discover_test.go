package dealer

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestDiscoverDedupesAndPreservesOrder(t *testing.T) {
	src := testSource()
	page1 := src.ListingPageURL("hyderabad", 1)

	fetcher := &stubFetcher{pages: map[string][]byte{
		page1: listingPage(
			"/used-car-details/swift-1",
			"/about-us",
			"https://cars.example.com/used-car-details/baleno-2",
			"/used-car-details/swift-1",
			"/used-car-details/swift-1#gallery",
			"mailto:sales@cars.example.com",
			"/used-car-details/dzire-3",
		),
	}}

	d := NewDiscoverer(src, fetcher, testLogger())
	urls, err := d.Discover(context.Background(), "hyderabad", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"https://cars.example.com/used-car-details/swift-1",
		"https://cars.example.com/used-car-details/baleno-2",
		"https://cars.example.com/used-car-details/dzire-3",
	}
	if len(urls) != len(want) {
		t.Fatalf("urls: got %d (%v), want %d", len(urls), urls, len(want))
	}
	for i, u := range want {
		if urls[i] != u {
			t.Errorf("urls[%d]: got %s, want %s", i, urls[i], u)
		}
	}
}

func TestDiscoverFirstPageFailureIsFatal(t *testing.T) {
	src := testSource()
	fetcher := &stubFetcher{errs: map[string]error{
		src.ListingPageURL("hyderabad", 1): errors.New("connection refused"),
	}}

	d := NewDiscoverer(src, fetcher, testLogger())
	if _, err := d.Discover(context.Background(), "hyderabad", 2); err == nil {
		t.Fatal("expected error when the first page fails")
	}
}

func TestDiscoverLaterPageFailureStopsPagination(t *testing.T) {
	src := testSource()
	page1 := src.ListingPageURL("hyderabad", 1)
	page2 := src.ListingPageURL("hyderabad", 2)

	fetcher := &stubFetcher{
		pages: map[string][]byte{
			page1: listingPage("/used-car-details/swift-1", "/used-car-details/baleno-2"),
		},
		errs: map[string]error{
			page2: errors.New("gateway timeout"),
		},
	}

	d := NewDiscoverer(src, fetcher, testLogger())
	urls, err := d.Discover(context.Background(), "hyderabad", 3)
	if err != nil {
		t.Fatalf("a later page failure must not fail discovery: %v", err)
	}
	if len(urls) != 2 {
		t.Errorf("urls: got %d, want 2 from page 1", len(urls))
	}
	if fetcher.hits(src.ListingPageURL("hyderabad", 3)) != 0 {
		t.Error("pagination continued past a failed page")
	}
}

func TestDiscoverStopsWhenPageAddsNothing(t *testing.T) {
	src := testSource()
	body := listingPage("/used-car-details/swift-1")
	fetcher := &stubFetcher{pages: map[string][]byte{
		src.ListingPageURL("hyderabad", 1): body,
		src.ListingPageURL("hyderabad", 2): body,
		src.ListingPageURL("hyderabad", 3): body,
	}}

	d := NewDiscoverer(src, fetcher, testLogger())
	urls, err := d.Discover(context.Background(), "hyderabad", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(urls) != 1 {
		t.Errorf("urls: got %d, want 1", len(urls))
	}
	if fetcher.hits(src.ListingPageURL("hyderabad", 3)) != 0 {
		t.Error("kept paginating after a page yielded nothing new")
	}
}

func TestDiscoverCapsDetailURLs(t *testing.T) {
	hrefs := make([]string, 0, 60)
	for i := 0; i < 60; i++ {
		hrefs = append(hrefs, fmt.Sprintf("/used-car-details/car-%d", i))
	}

	src := testSource()
	fetcher := &stubFetcher{pages: map[string][]byte{
		src.ListingPageURL("hyderabad", 1): listingPage(hrefs...),
	}}

	d := NewDiscoverer(src, fetcher, testLogger())
	urls, err := d.Discover(context.Background(), "hyderabad", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(urls) != maxDetailURLs {
		t.Errorf("urls: got %d, want the %d cap", len(urls), maxDetailURLs)
	}
}
