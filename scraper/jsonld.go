package scraper

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"fundaswipe/models"
	"fundaswipe/services"
)

// JSONLDStrategy reads the linked-data blocks search pages embed for
// search engines: an ItemList of Residence items.
type JSONLDStrategy struct{}

func (s *JSONLDStrategy) Name() string { return "jsonld" }

func (s *JSONLDStrategy) Parse(html string) []models.Listing {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var listings []models.Listing
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		var data map[string]interface{}
		if err := json.Unmarshal([]byte(sel.Text()), &data); err != nil {
			return
		}
		listings = append(listings, itemListResidences(data)...)
	})
	return listings
}

func itemListResidences(data map[string]interface{}) []models.Listing {
	if t, _ := data["@type"].(string); t != "ItemList" {
		return nil
	}
	elements, ok := data["itemListElement"].([]interface{})
	if !ok {
		return nil
	}

	var listings []models.Listing
	for i, el := range elements {
		entry, ok := el.(map[string]interface{})
		if !ok {
			continue
		}
		item, ok := entry["item"].(map[string]interface{})
		if !ok {
			continue
		}
		if t, _ := item["@type"].(string); t != "Residence" {
			continue
		}
		listings = append(listings, jsonLDListing(item, i))
	}
	return listings
}

func jsonLDListing(item map[string]interface{}, index int) models.Listing {
	listing := models.Listing{
		ID:     fmt.Sprintf("funda-jsonld-%d", index),
		City:   "Amsterdam",
		Source: "jsonld",
	}

	listing.Price = services.ParsePrice(dig(item, "offers", "price"))

	if addr, ok := item["address"].(map[string]interface{}); ok {
		listing.Address = stringField(addr, "streetAddress")
		if city := stringField(addr, "addressLocality"); city != "" {
			listing.City = city
		}
		listing.Neighborhood = stringField(addr, "addressRegion")
		listing.PostalCode = normalizePostcode(stringField(addr, "postalCode"))
	}
	if listing.Address == "" {
		listing.Address = stringField(item, "name")
	}

	listing.Bedrooms = services.ParseIntField(item["numberOfRooms"])
	listing.Bathrooms = 1
	listing.Size = services.ParseIntField(dig(item, "floorSize", "value"))
	listing.Image = stringField(item, "image")
	listing.URL = stringField(item, "url")
	listing.Description = stringField(item, "description")

	if listing.Neighborhood == "" {
		listing.Neighborhood = NeighborhoodFromPostcode(listing.PostalCode)
	}

	return listing
}
