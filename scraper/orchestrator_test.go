package scraper

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"fundaswipe/httputil"
	"fundaswipe/models"
)

type fixtureFetcher struct {
	pages map[string]string
	err   error
}

func (f *fixtureFetcher) Get(ctx context.Context, url string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	body, ok := f.pages[url]
	if !ok {
		return "<html><body>Geen resultaten gevonden.</body></html>", nil
	}
	return body, nil
}

func TestSearchParsesAndDedupes(t *testing.T) {
	params := models.SearchParams{Area: "amsterdam", Transaction: "koop", MaxPages: 2}
	searchURL := params.BuildSearchURL()

	fixture, err := os.ReadFile(filepath.Join("testdata", "search_nextdata.html"))
	if err != nil {
		t.Fatal(err)
	}

	fetcher := &fixtureFetcher{pages: map[string]string{
		searchURL: string(fixture),
		// page 2 serves the same payload; dedupe must collapse it
		models.PageURL(searchURL, 2): string(fixture),
	}}

	o := NewOrchestrator(fetcher, nil)
	listings, run, err := o.Search(context.Background(), params)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if run.Strategy != "nextdata" {
		t.Errorf("strategy = %s", run.Strategy)
	}
	if run.ListingsFound != 4 {
		t.Errorf("found = %d, want 4 raw", run.ListingsFound)
	}
	if len(listings) != 2 || run.AfterDedup != 2 {
		t.Errorf("deduped = %d (run says %d), want 2", len(listings), run.AfterDedup)
	}
	if run.FinishedAt == nil {
		t.Error("run not finished")
	}
	for _, l := range listings {
		if l.ImportedAt.IsZero() {
			t.Error("ImportedAt not stamped")
		}
	}
}

func TestSearchEmptyPageIsNotAnError(t *testing.T) {
	fetcher := &fixtureFetcher{pages: map[string]string{}}
	o := NewOrchestrator(fetcher, nil)

	listings, _, err := o.Search(context.Background(), models.SearchParams{Area: "amsterdam"})
	if err != nil {
		t.Fatalf("empty result must not be an error, got %v", err)
	}
	if len(listings) != 0 {
		t.Fatalf("listings = %d", len(listings))
	}
}

// gateEnricher blocks the first Enrich call until released, so a test
// can start a second search while the first is mid-flight.
type gateEnricher struct {
	entered chan struct{}
	release chan struct{}
	calls   int
}

func (g *gateEnricher) Enrich(ctx context.Context, listings []models.Listing) []models.Listing {
	g.calls++
	if g.calls == 1 {
		close(g.entered)
		<-g.release
	}
	return listings
}

func TestNewSearchSupersedesInFlightOne(t *testing.T) {
	params := models.SearchParams{Area: "amsterdam", Transaction: "koop", MaxPages: 1}
	searchURL := params.BuildSearchURL()

	fixture, err := os.ReadFile(filepath.Join("testdata", "search_nextdata.html"))
	if err != nil {
		t.Fatal(err)
	}
	fetcher := &fixtureFetcher{pages: map[string]string{searchURL: string(fixture)}}

	gate := &gateEnricher{entered: make(chan struct{}), release: make(chan struct{})}
	o := NewOrchestrator(fetcher, gate)

	type result struct {
		listings []models.Listing
		err      error
	}
	first := make(chan result, 1)
	go func() {
		listings, _, err := o.Search(context.Background(), params)
		first <- result{listings, err}
	}()

	<-gate.entered
	listings, _, err := o.Search(context.Background(), params)
	if err != nil {
		t.Fatalf("second Search: %v", err)
	}
	if len(listings) != 2 {
		t.Fatalf("second Search returned %d listings, want 2", len(listings))
	}

	close(gate.release)
	got := <-first
	if !errors.Is(got.err, context.Canceled) {
		t.Fatalf("superseded Search returned %v, want context.Canceled", got.err)
	}
	if got.listings != nil {
		t.Fatalf("superseded Search leaked %d listings", len(got.listings))
	}
}

func TestSearchPropagatesFetchExhaustion(t *testing.T) {
	fetcher := &fixtureFetcher{err: &httputil.FetchExhaustedError{LastRelay: "corsproxy", Reason: "bot challenge detected"}}
	o := NewOrchestrator(fetcher, nil)

	_, _, err := o.Search(context.Background(), models.SearchParams{Area: "amsterdam"})
	var exhausted *httputil.FetchExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected FetchExhaustedError, got %v", err)
	}
}
