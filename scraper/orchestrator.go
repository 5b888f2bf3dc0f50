package scraper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"fundaswipe/httputil"
	"fundaswipe/models"
	"fundaswipe/services"
)

// Enricher upgrades listings after parsing. Satisfied by
// services.Enricher.
type Enricher interface {
	Enrich(ctx context.Context, listings []models.Listing) []models.Listing
}

// Orchestrator runs one search end to end: fetch every result page
// through the relay layer, parse with the strategy chain, dedupe, then
// enrich. A new search supersedes any in-flight one; late results from
// a superseded search are discarded.
type Orchestrator struct {
	fetcher  services.PageFetcher
	chain    *Chain
	enricher Enricher

	epoch atomic.Uint64
}

func NewOrchestrator(fetcher services.PageFetcher, enricher Enricher) *Orchestrator {
	return &Orchestrator{
		fetcher:  fetcher,
		chain:    NewChain(),
		enricher: enricher,
	}
}

// Search fetches and parses every result page for the given params and
// returns the deduplicated, enriched listings plus run statistics.
// An empty result with a nil error means the search genuinely found
// nothing; fetch exhaustion on the first page is returned as an error.
func (o *Orchestrator) Search(ctx context.Context, params models.SearchParams) ([]models.Listing, *models.SearchRun, error) {
	epoch := o.epoch.Add(1)

	run := &models.SearchRun{
		ID:        uuid.New(),
		Params:    params,
		StartedAt: time.Now(),
	}

	searchURL := params.BuildSearchURL()
	maxPages := params.MaxPages
	if maxPages <= 0 {
		maxPages = 3
	}

	var all []models.Listing
	for page := 1; page <= maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, run, err
		}

		pageURL := models.PageURL(searchURL, page)
		body, err := o.fetcher.Get(ctx, pageURL)
		if err != nil {
			var exhausted *httputil.FetchExhaustedError
			if errors.As(err, &exhausted) && page == 1 {
				run.Errors++
				return nil, run, fmt.Errorf("search page %d: %w", page, err)
			}
			log.Printf("Warning: page %d fetch failed, stopping pagination: %v", page, err)
			run.Errors++
			break
		}

		listings, strategy := o.chain.Parse(body)
		if len(listings) == 0 {
			log.Printf("No listings on page %d, stopping pagination", page)
			break
		}
		if run.Strategy == "" {
			run.Strategy = strategy
		}
		all = append(all, listings...)
	}

	run.ListingsFound = len(all)

	deduped := services.Dedupe(all)
	run.AfterDedup = len(deduped)

	if o.superseded(epoch) {
		return nil, run, context.Canceled
	}

	if o.enricher != nil && len(deduped) > 0 {
		deduped = o.enricher.Enrich(ctx, deduped)
		for _, l := range deduped {
			if l.EnrichedFromDetail || l.EnrichedFromRegistry {
				run.Enriched++
			}
		}
	}

	if o.superseded(epoch) {
		return nil, run, context.Canceled
	}

	now := time.Now()
	for i := range deduped {
		deduped[i].ImportedAt = now
	}
	run.FinishedAt = &now

	return deduped, run, nil
}

// superseded reports whether a newer search has started since this one
// began.
func (o *Orchestrator) superseded(epoch uint64) bool {
	return o.epoch.Load() != epoch
}
