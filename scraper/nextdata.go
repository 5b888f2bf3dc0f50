package scraper

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"fundaswipe/models"
	"fundaswipe/services"
)

// NextDataStrategy pulls listings out of the embedded client-side state
// blob that server-rendered pages carry in a __NEXT_DATA__ script tag.
// This is the most reliable source when present.
type NextDataStrategy struct{}

func (s *NextDataStrategy) Name() string { return "nextdata" }

func (s *NextDataStrategy) Parse(html string) []models.Listing {
	raw := extractNextData(html)
	if raw == "" {
		return nil
	}

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		log.Printf("Warning: embedded state blob did not parse: %v", err)
		return nil
	}

	props, _ := dig(data, "props", "pageProps").(map[string]interface{})
	if props == nil {
		return nil
	}

	items := knownPathListings(props)
	if len(items) == 0 {
		items = deepFindListings(props)
	}
	if len(items) == 0 {
		return nil
	}

	listings := make([]models.Listing, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		listings = append(listings, listingFromItem(obj, i))
	}
	return listings
}

func extractNextData(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err == nil {
		if content := doc.Find("script#__NEXT_DATA__").First().Text(); strings.TrimSpace(content) != "" {
			return content
		}
	}

	// Some relays escape the markup; fall back to a raw scan.
	start := strings.Index(html, `id="__NEXT_DATA__"`)
	if start < 0 {
		return ""
	}
	open := strings.Index(html[start:], ">")
	if open < 0 {
		return ""
	}
	rest := html[start+open+1:]
	end := strings.Index(rest, "</script>")
	if end < 0 {
		return ""
	}
	blob := rest[:end]
	if strings.Contains(blob, `\"`) {
		blob = strings.ReplaceAll(blob, `\"`, `"`)
		blob = strings.ReplaceAll(blob, `\\`, `\`)
	}
	return blob
}

// knownPathListings probes the result-list locations the site has used
// across redesigns.
func knownPathListings(props map[string]interface{}) []interface{} {
	paths := [][]string{
		{"searchResult", "resultList"},
		{"searchResult", "objects"},
		{"searchResult", "listings"},
		{"searchResults", "resultList"},
		{"searchResults", "objects"},
		{"searchResults", "listings"},
		{"objects"},
		{"listings"},
		{"results"},
		{"data", "searchResult", "resultList"},
		{"data", "objects"},
		{"pageData", "searchResult", "resultList"},
	}
	for _, path := range paths {
		if arr, ok := dig(props, path...).([]interface{}); ok && len(arr) > 0 {
			return arr
		}
	}

	// dehydrated query state keeps the list one level deeper
	if queries, ok := dig(props, "dehydratedState", "queries").([]interface{}); ok && len(queries) > 0 {
		if q, ok := queries[0].(map[string]interface{}); ok {
			if arr, ok := dig(q, "state", "data", "resultList").([]interface{}); ok && len(arr) > 0 {
				return arr
			}
		}
	}
	return nil
}

const maxSearchDepth = 8

// deepFindListings walks the object graph looking for the first array
// whose elements look like listings. The traversal runs off an explicit
// worklist so arbitrarily nested payloads cannot grow the stack, and
// nodes below maxSearchDepth are not expanded.
func deepFindListings(obj interface{}) []interface{} {
	type frame struct {
		node  interface{}
		depth int
	}
	work := []frame{{node: obj}}
	for len(work) > 0 {
		f := work[len(work)-1]
		work = work[:len(work)-1]
		if f.node == nil || f.depth > maxSearchDepth {
			continue
		}

		switch v := f.node.(type) {
		case []interface{}:
			if len(v) > 0 {
				if first, ok := v[0].(map[string]interface{}); ok && looksLikeListing(first) {
					return v
				}
			}
			for i := len(v) - 1; i >= 0; i-- {
				work = append(work, frame{node: v[i], depth: f.depth + 1})
			}
		case map[string]interface{}:
			for _, value := range v {
				work = append(work, frame{node: value, depth: f.depth + 1})
			}
		}
	}
	return nil
}

func looksLikeListing(item map[string]interface{}) bool {
	for _, key := range []string{"id", "globalId", "address", "price", "sellPrice", "askingPrice", "url"} {
		if _, ok := item[key]; ok {
			return true
		}
	}
	return false
}

func dig(obj interface{}, path ...string) interface{} {
	current := obj
	for _, key := range path {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		current = m[key]
	}
	return current
}

func listingFromItem(item map[string]interface{}, index int) models.Listing {
	listing := models.Listing{
		City:   "Amsterdam",
		Source: "nextdata",
	}

	listing.ID = stringField(item, "id", "globalId", "objectId")
	if listing.ID == "" {
		listing.ID = fmt.Sprintf("funda-%d-%d", time.Now().UnixMilli(), index)
	}

	listing.Price = services.PriceFromItem(item)

	resolveAddress(item["address"], &listing)

	listing.Image = firstImageURL(item)
	listing.Images = imageList(item)

	if raw := stringField(item, "url", "link"); raw != "" {
		if strings.HasPrefix(raw, "http") {
			listing.URL = raw
		} else {
			listing.URL = "https://www.funda.nl" + raw
		}
	}

	listing.Bedrooms = intField(item, "bedrooms", "rooms", "aantalKamers", "numberOfRooms")
	listing.Bathrooms = intField(item, "bathrooms", "numberOfBathrooms")
	if listing.Bathrooms == 0 {
		listing.Bathrooms = 1
	}
	listing.Size = intField(item, "livingArea", "woonoppervlakte", "size", "floorArea")
	if year := intField(item, "constructionYear", "bouwjaar", "yearBuilt"); year > 0 {
		listing.YearBuilt = &year
	}
	listing.EnergyLabel = stringField(item, "energyLabel", "energielabel")
	listing.Description = stringField(item, "description", "omschrijving")
	listing.DaysOnMarket = intField(item, "daysOnMarket", "aantalDagenTeKoop", "daysOnFunda")

	if v, ok := item["isNew"].(bool); ok {
		listing.IsNew = v
	} else if v, ok := item["nieuw"].(bool); ok {
		listing.IsNew = v
	}

	if listing.Neighborhood == "" {
		listing.Neighborhood = NeighborhoodFromPostcode(listing.PostalCode)
	}

	return listing
}

// resolveAddress accepts either a flat address string or a structured
// object with street and house number fields.
func resolveAddress(v interface{}, listing *models.Listing) {
	switch addr := v.(type) {
	case string:
		listing.Address = addr
	case map[string]interface{}:
		street := stringField(addr, "street", "streetName")
		number := stringField(addr, "houseNumber", "huisnummer")
		listing.Address = strings.TrimSpace(street + " " + number)
		listing.PostalCode = normalizePostcode(stringField(addr, "postalCode", "postcode"))
		if city := stringField(addr, "city", "plaats"); city != "" {
			listing.City = city
		}
		listing.Neighborhood = stringField(addr, "neighborhood", "wijk", "buurt")
	}
}

func stringField(item map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if s, ok := item[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func intField(item map[string]interface{}, keys ...string) int {
	for _, key := range keys {
		if v, ok := item[key]; ok {
			if n := services.ParseIntField(v); n > 0 {
				return n
			}
		}
	}
	return 0
}

// firstImageURL probes the many shapes the main photo shows up in.
func firstImageURL(item map[string]interface{}) string {
	candidates := []interface{}{
		dig(item, "mainPhoto", "url"), dig(item, "mainPhoto", "src"), item["mainPhoto"],
		dig(item, "coverPhoto", "url"), item["coverPhoto"],
		dig(item, "primaryPhoto", "url"), item["primaryPhoto"],
		dig(item, "photo", "url"), item["photo"],
		dig(item, "thumbnail", "url"), item["thumbnail"],
		dig(item, "image", "url"), item["image"],
	}
	for _, key := range []string{"media", "photos", "images"} {
		if arr, ok := item[key].([]interface{}); ok && len(arr) > 0 {
			candidates = append(candidates, dig(arr[0], "url"), arr[0])
		}
	}
	for _, c := range candidates {
		if s, ok := c.(string); ok && strings.HasPrefix(s, "http") {
			return s
		}
	}
	return ""
}

func imageList(item map[string]interface{}) []string {
	var out []string
	for _, key := range []string{"photos", "images", "fotos"} {
		arr, ok := item[key].([]interface{})
		if !ok {
			continue
		}
		for _, entry := range arr {
			if s, ok := entry.(string); ok && strings.HasPrefix(s, "http") {
				out = append(out, s)
			} else if u, ok := dig(entry, "url").(string); ok && strings.HasPrefix(u, "http") {
				out = append(out, u)
			}
		}
		if len(out) > 0 {
			break
		}
	}
	return out
}
