package scraper

import (
	"log"

	"fundaswipe/models"
)

// Strategy turns a raw page body into listings. A strategy that finds
// nothing returns an empty slice, not an error; malformed input falls
// through to the next strategy in the chain.
type Strategy interface {
	Name() string
	Parse(html string) []models.Listing
}

// Chain runs strategies in priority order and keeps the output of the
// first one that yields any listings. Outputs are never merged across
// strategies.
type Chain struct {
	strategies []Strategy
}

func NewChain() *Chain {
	return &Chain{
		strategies: []Strategy{
			&NextDataStrategy{},
			&JSONLDStrategy{},
			&DOMCardStrategy{},
			&RecoveryStrategy{},
		},
	}
}

// Parse returns the first non-empty strategy output and the name of
// the strategy that produced it. An empty result with name "" means no
// strategy recognized anything, which is a valid "no results" outcome.
func (c *Chain) Parse(html string) ([]models.Listing, string) {
	for _, s := range c.strategies {
		listings := s.Parse(html)
		if len(listings) > 0 {
			log.Printf("Parsed %d listings via %s", len(listings), s.Name())
			return listings, s.Name()
		}
	}
	return nil, ""
}
