package scraper

import (
	"os"
	"path/filepath"
	"testing"
)

func loadFixture(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join("testdata", name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	return string(data)
}

func TestChainPrefersEmbeddedData(t *testing.T) {
	chain := NewChain()
	listings, strategy := chain.Parse(loadFixture(t, "search_nextdata.html"))

	if strategy != "nextdata" {
		t.Fatalf("strategy = %s, want nextdata", strategy)
	}
	if len(listings) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(listings))
	}
}

func TestChainFallsThroughToJSONLD(t *testing.T) {
	chain := NewChain()
	listings, strategy := chain.Parse(loadFixture(t, "search_jsonld.html"))

	if strategy != "jsonld" {
		t.Fatalf("strategy = %s, want jsonld", strategy)
	}
	if len(listings) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(listings))
	}
}

func TestChainFallsThroughToDOMCards(t *testing.T) {
	chain := NewChain()
	listings, strategy := chain.Parse(loadFixture(t, "search_domcards.html"))

	if strategy != "domcards" {
		t.Fatalf("strategy = %s, want domcards", strategy)
	}
	if len(listings) != 2 {
		t.Fatalf("expected 2 listings (card without price dropped), got %d", len(listings))
	}
}

func TestChainEmptyPageYieldsNothing(t *testing.T) {
	chain := NewChain()
	listings, strategy := chain.Parse("<html><body><p>Geen resultaten gevonden.</p></body></html>")

	if len(listings) != 0 || strategy != "" {
		t.Fatalf("expected empty outcome, got %d listings via %q", len(listings), strategy)
	}
}
