package scraper

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"fundaswipe/models"
	"fundaswipe/services"
)

// DOMCardStrategy scans for container elements that plausibly render
// one listing card each. Cards that do not yield a price are dropped:
// without one the card is more likely an ad or a navigation tile.
type DOMCardStrategy struct{}

func (s *DOMCardStrategy) Name() string { return "domcards" }

var cardSelectors = []string{
	`[data-test-id="search-result-item"]`,
	".search-result",
	`[class*="search-result"]`,
}

func (s *DOMCardStrategy) Parse(html string) []models.Listing {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var cards *goquery.Selection
	for _, selector := range cardSelectors {
		cards = doc.Find(selector)
		if cards.Length() > 0 {
			break
		}
	}
	if cards == nil || cards.Length() == 0 {
		return nil
	}

	var listings []models.Listing
	cards.Each(func(i int, card *goquery.Selection) {
		listing, ok := parseCard(card, i)
		if ok {
			listings = append(listings, listing)
		}
	})
	return listings
}

func parseCard(card *goquery.Selection, index int) (models.Listing, bool) {
	priceText := firstText(card, `[class*="price"]`, `[data-test-id="price"]`, ".search-result__price")
	price := services.ParsePrice(priceText)
	if price == nil {
		return models.Listing{}, false
	}

	address := firstText(card, `[class*="address"]`, `[data-test-id="address"]`, ".search-result__address", "h2", "h3")
	if address == "" {
		address = "Adres onbekend"
	}

	listing := models.Listing{
		ID:        fmt.Sprintf("funda-html-%d-%d", index, time.Now().UnixMilli()),
		Price:     price,
		Address:   address,
		City:      "Amsterdam",
		Bathrooms: 1,
		Source:    "domcards",
	}

	listing.Neighborhood = NeighborhoodFromAddress(address)
	listing.Size = services.ParseIntField(firstText(card, `[class*="size"]`, `[class*="living-area"]`, `[class*="woonoppervlakte"]`))
	listing.Bedrooms = services.ParseIntField(firstText(card, `[class*="rooms"]`, `[class*="kamers"]`))

	if img := card.Find(`img[src*="funda"], img[data-src], .search-result__image img`).First(); img.Length() > 0 {
		if src, ok := img.Attr("src"); ok && src != "" {
			listing.Image = src
		} else if src, ok := img.Attr("data-src"); ok {
			listing.Image = src
		}
	}

	if link := card.Find(`a[href*="/koop/"], a[href*="/huur/"]`).First(); link.Length() > 0 {
		if href, ok := link.Attr("href"); ok {
			if strings.HasPrefix(href, "http") {
				listing.URL = href
			} else {
				listing.URL = "https://www.funda.nl" + href
			}
		}
	}

	text := strings.ToLower(card.Text())
	listing.IsNew = strings.Contains(text, "nieuw")

	return listing, true
}

func firstText(sel *goquery.Selection, selectors ...string) string {
	for _, s := range selectors {
		found := sel.Find(s).First()
		if found.Length() > 0 {
			if text := strings.TrimSpace(found.Text()); text != "" {
				return text
			}
		}
	}
	return ""
}
