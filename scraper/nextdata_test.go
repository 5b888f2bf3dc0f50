package scraper

import "testing"

func TestNextDataKnownPath(t *testing.T) {
	s := &NextDataStrategy{}
	listings := s.Parse(loadFixture(t, "search_nextdata.html"))
	if len(listings) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(listings))
	}

	first := listings[0]
	if first.ID != "43210987" {
		t.Errorf("ID = %s", first.ID)
	}
	if first.Address != "Prinsengracht 263" {
		t.Errorf("address = %q", first.Address)
	}
	if first.Price == nil || *first.Price != 875000 {
		t.Errorf("price = %v, want 875000", first.Price)
	}
	if first.PostalCode != "1016 GV" || first.Neighborhood != "Jordaan" {
		t.Errorf("location = %s / %s", first.PostalCode, first.Neighborhood)
	}
	if first.YearBuilt == nil || *first.YearBuilt != 1635 {
		t.Error("construction year missing")
	}
	if first.URL != "https://www.funda.nl/koop/amsterdam/huis-43210987-prinsengracht-263/" {
		t.Errorf("URL = %s", first.URL)
	}
	if !first.IsNew {
		t.Error("isNew flag lost")
	}

	second := listings[1]
	if second.Address != "Ceintuurbaan 101-2" {
		t.Errorf("flat address = %q", second.Address)
	}
	if second.Price == nil || *second.Price != 450000 {
		t.Errorf("formatted price = %v, want 450000", second.Price)
	}
	if second.Size != 58 {
		t.Errorf("size = %d, want 58", second.Size)
	}
	if len(second.Images) != 2 {
		t.Errorf("images = %v", second.Images)
	}
}

func TestNextDataDeepSearch(t *testing.T) {
	s := &NextDataStrategy{}
	listings := s.Parse(loadFixture(t, "search_nextdata_deep.html"))
	if len(listings) != 1 {
		t.Fatalf("expected 1 listing via deep search, got %d", len(listings))
	}

	got := listings[0]
	if got.ID != "88001122" {
		t.Errorf("ID = %s", got.ID)
	}
	if got.Address != "Javastraat 12" {
		t.Errorf("address = %q", got.Address)
	}
	if got.Price == nil || *got.Price != 525000 {
		t.Errorf("price from nested priceInfo = %v", got.Price)
	}
}

func TestDeepFindListingsDepthBound(t *testing.T) {
	wrap := func(obj interface{}, levels int) interface{} {
		for i := 0; i < levels; i++ {
			obj = map[string]interface{}{"nested": obj}
		}
		return obj
	}
	target := []interface{}{map[string]interface{}{"id": "1", "address": "Herengracht 1"}}

	if found := deepFindListings(wrap(target, maxSearchDepth)); len(found) != 1 {
		t.Errorf("listing at the depth limit not found, got %d", len(found))
	}
	if found := deepFindListings(wrap(target, maxSearchDepth+2)); found != nil {
		t.Errorf("listing beyond the depth limit should be skipped, got %v", found)
	}
	// deeply nested garbage must not exhaust the stack
	if found := deepFindListings(wrap(map[string]interface{}{"x": 1}, 100_000)); found != nil {
		t.Errorf("expected nil for over-deep payload, got %v", found)
	}
}

func TestNextDataAbsent(t *testing.T) {
	s := &NextDataStrategy{}
	if listings := s.Parse("<html><body>niets</body></html>"); len(listings) != 0 {
		t.Fatalf("expected no listings, got %d", len(listings))
	}
}
