package models

import (
	"strings"
	"time"
)

// Listing represents one scraped property. Price is nil for
// "price on request" listings; YearBuilt is nil when unknown.
type Listing struct {
	ID           string   `json:"id"`
	Price        *int     `json:"price"`
	Address      string   `json:"address"`
	PostalCode   string   `json:"postal_code"`
	City         string   `json:"city"`
	Neighborhood string   `json:"neighborhood"`
	Bedrooms     int      `json:"bedrooms"`
	Bathrooms    int      `json:"bathrooms"`
	Size         int      `json:"size"` // m²
	YearBuilt    *int     `json:"year_built"`
	EnergyLabel  string   `json:"energy_label"`
	Image        string   `json:"image"`
	Images       []string `json:"images"`
	URL          string   `json:"url"`
	Source       string   `json:"source"`
	Description  string   `json:"description"`
	IsNew        bool     `json:"is_new"`
	DaysOnMarket int      `json:"days_on_market"`

	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`

	// Which enrichment passes filled in missing fields.
	EnrichedFromDetail   bool `json:"enriched_from_detail"`
	EnrichedFromRegistry bool `json:"enriched_from_registry"`

	// Every origin that contributed to this record after dedup.
	Sources []string `json:"sources"`

	ImportedAt time.Time `json:"imported_at"`
}

// HasDetailURL reports whether URL points at a per-listing detail page
// rather than a search page or placeholder.
func (l *Listing) HasDetailURL() bool {
	if l.URL == "" || l.URL == "#" {
		return false
	}
	return strings.Contains(l.URL, "/koop/") || strings.Contains(l.URL, "/huur/") ||
		strings.Contains(l.URL, "/detail/")
}

// Sale price sanity window for the target market. Values outside are
// rejected by the normalizer, values in the thousands band get a x1000
// correction.
const (
	MinPlausiblePrice = 50_000
	MaxPlausiblePrice = 10_000_000
)
