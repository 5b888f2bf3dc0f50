package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"fundaswipe/models"
)

const (
	enrichBatchSize  = 3
	enrichBatchPause = 500 * time.Millisecond
	maxDetailImages  = 8
)

// PageFetcher fetches a page body. Satisfied by httputil.FetchClient.
type PageFetcher interface {
	Get(ctx context.Context, url string) (string, error)
}

// AddressLookup resolves a free-text address query against an address
// registry. Satisfied by RegistryClient.
type AddressLookup interface {
	Lookup(ctx context.Context, query string) (*AddressRecord, error)
}

// Enricher upgrades listings with data from their detail pages and
// from the address registry. All enrichment is best-effort: a failed
// lookup leaves the listing as it was and never aborts the batch.
type Enricher struct {
	fetcher  PageFetcher
	registry AddressLookup
	pause    func(time.Duration)
}

func NewEnricher(fetcher PageFetcher, registry AddressLookup) *Enricher {
	return &Enricher{
		fetcher:  fetcher,
		registry: registry,
		pause:    time.Sleep,
	}
}

// Enrich runs detail-page and registry enrichment over the listings in
// small concurrent batches, with a short pause between batches to stay
// within external rate limits.
func (e *Enricher) Enrich(ctx context.Context, listings []models.Listing) []models.Listing {
	out := make([]models.Listing, len(listings))
	copy(out, listings)

	for start := 0; start < len(out); start += enrichBatchSize {
		end := start + enrichBatchSize
		if end > len(out) {
			end = len(out)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(l *models.Listing) {
				defer wg.Done()
				e.enrichOne(ctx, l)
			}(&out[i])
		}
		wg.Wait()

		if end < len(out) {
			e.pause(enrichBatchPause)
		}
	}

	return out
}

func (e *Enricher) enrichOne(ctx context.Context, listing *models.Listing) {
	if e.fetcher != nil && listing.HasDetailURL() {
		if err := e.fromDetailPage(ctx, listing); err != nil {
			log.Printf("Warning: detail enrichment skipped for %s: %v", listing.Address, err)
		}
	}
	if e.registry != nil && listing.Address != "" {
		e.fromRegistry(ctx, listing)
	}
}

// fromDetailPage re-runs field extraction against the listing's own
// detail document. The detail page is the most trustworthy source for
// the price, so it overwrites even an existing value; every other
// field is fill-only.
func (e *Enricher) fromDetailPage(ctx context.Context, listing *models.Listing) error {
	body, err := e.fetcher.Get(ctx, listing.URL)
	if err != nil {
		return err
	}

	fields := ExtractContextFields(body)

	if fields.Price != nil {
		listing.Price = fields.Price
	}
	if listing.Size == 0 {
		listing.Size = fields.Size
	}
	if listing.Bedrooms == 0 {
		listing.Bedrooms = fields.Bedrooms
	}
	if listing.Bathrooms == 0 {
		listing.Bathrooms = fields.Bathrooms
	}
	if listing.PostalCode == "" {
		listing.PostalCode = fields.PostalCode
	}
	if listing.YearBuilt == nil {
		listing.YearBuilt = fields.YearBuilt
	}
	if listing.EnergyLabel == "" {
		listing.EnergyLabel = fields.EnergyLabel
	}

	if images := ExtractImageURLs(body, maxDetailImages); len(images) > 0 {
		listing.Images = mergeImages(listing.Images, images)
		if listing.Image == "" {
			listing.Image = images[0]
		}
	}

	listing.EnrichedFromDetail = true
	return nil
}

// fromRegistry asks the address registry for the authoritative record
// and fills the fields the listing lacks. Strictly best-effort.
func (e *Enricher) fromRegistry(ctx context.Context, listing *models.Listing) {
	query := listing.Address
	if listing.PostalCode != "" {
		query = fmt.Sprintf("%s %s", listing.Address, listing.PostalCode)
	}

	record, err := e.registry.Lookup(ctx, query)
	if err != nil {
		log.Printf("Warning: registry lookup failed for %q: %v", query, err)
		return
	}
	if record == nil {
		return
	}

	if listing.YearBuilt == nil && record.YearBuilt > 0 {
		listing.YearBuilt = &record.YearBuilt
	}
	if listing.PostalCode == "" {
		listing.PostalCode = record.PostalCode
	}
	if listing.City == "" {
		listing.City = record.City
	}
	if listing.Neighborhood == "" {
		listing.Neighborhood = record.Neighborhood
	}
	if listing.Lat == nil && record.Lat != 0 {
		lat, lng := record.Lat, record.Lng
		listing.Lat, listing.Lng = &lat, &lng
	}

	listing.EnrichedFromRegistry = true
}
