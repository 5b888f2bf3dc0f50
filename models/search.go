package models

import (
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// SearchParams describes one portal search.
type SearchParams struct {
	Area        string `json:"area"`         // e.g. "amsterdam"
	Transaction string `json:"transaction"`  // "koop" or "huur"
	MinPrice    int    `json:"min_price"`
	MaxPrice    int    `json:"max_price"`
	MinRooms    int    `json:"min_rooms"`
	MinSize     int    `json:"min_size"`
	DaysOld     int    `json:"days_old"` // publication date filter, 0 = any
	MaxPages    int    `json:"max_pages"`
}

// BuildSearchURL renders the portal search URL for these params.
func (p SearchParams) BuildSearchURL() string {
	area := p.Area
	if area == "" {
		area = "amsterdam"
	}
	tx := p.Transaction
	if tx != "koop" && tx != "huur" {
		tx = "koop"
	}

	u := fmt.Sprintf("https://www.funda.nl/zoeken/%s?selected_area=%s",
		tx, url.QueryEscape(fmt.Sprintf(`["%s"]`, area)))

	if p.DaysOld > 0 {
		u += fmt.Sprintf(`&publication_date=%s`, url.QueryEscape(fmt.Sprintf(`"%d"`, p.DaysOld)))
	}
	if p.MinPrice > 0 || p.MaxPrice > 0 {
		max := ""
		if p.MaxPrice > 0 {
			max = fmt.Sprintf("%d", p.MaxPrice)
		}
		u += fmt.Sprintf(`&price=%s`, url.QueryEscape(fmt.Sprintf(`"%d-%s"`, p.MinPrice, max)))
	}
	if p.MinRooms > 0 {
		u += fmt.Sprintf(`&rooms=%s`, url.QueryEscape(fmt.Sprintf(`"%d+"`, p.MinRooms)))
	}
	if p.MinSize > 0 {
		u += fmt.Sprintf(`&floor_area=%s`, url.QueryEscape(fmt.Sprintf(`"%d+"`, p.MinSize)))
	}
	return u
}

// PageURL appends pagination to a search URL. Page 1 is the bare URL.
func PageURL(searchURL string, page int) string {
	if page <= 1 {
		return searchURL
	}
	sep := "?"
	if containsQuery(searchURL) {
		sep = "&"
	}
	return fmt.Sprintf("%s%ssearch_result_page=%d", searchURL, sep, page)
}

func containsQuery(u string) bool {
	for i := 0; i < len(u); i++ {
		if u[i] == '?' {
			return true
		}
	}
	return false
}

// SearchRun records one execution of a search for logging/stats.
type SearchRun struct {
	ID            uuid.UUID    `json:"id"`
	Params        SearchParams `json:"params"`
	StartedAt     time.Time    `json:"started_at"`
	FinishedAt    *time.Time   `json:"finished_at"`
	Strategy      string       `json:"strategy"` // which parser strategy produced the result
	ListingsFound int          `json:"listings_found"`
	AfterDedup    int          `json:"after_dedup"`
	Enriched      int          `json:"enriched"`
	Errors        int          `json:"errors"`
}
