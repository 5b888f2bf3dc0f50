package scraper

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"fundaswipe/identity"
	"fundaswipe/models"
	"fundaswipe/services"
)

// RecoveryStrategy is the last resort: no usable structure survived in
// the page, so listings are reassembled from raw text. It tries, in
// order: detail links matched to the nearest unused price, repeated
// card blocks, price+address pairs within a bounded window, and
// finally a positional zip of the address and price lists.
type RecoveryStrategy struct{}

func (s *RecoveryStrategy) Name() string { return "recovery" }

const (
	streetSuffixes  = `straat|weg|laan|plein|gracht|kade|singel|dijk|dreef|pad|hof|park|markt|steeg|burcht|haven|brug|sluis|ring`
	contextWindow   = 500
	priceLinkWindow = 1500
	pairWindowExpr  = `[^\x{20ac}]{0,500}?`
	addressBodyExpr = `[A-Z][a-zA-Z\s\-']+(?:` + streetSuffixes + `)\s*\d+[a-zA-Z]?(?:[\-\/][a-zA-Z0-9]+)?`
	priceBodyExpr   = `\x{20ac}\s*[\d.,]+`
)

var (
	recPriceRegex   = regexp.MustCompile(priceBodyExpr)
	recAddressRegex = regexp.MustCompile(`(` + addressBodyExpr + `)`)
	detailLinkRegex = regexp.MustCompile(`/(?:koop|huur)/([a-z\-]+)/(?:huis|appartement|woning|object)-\d+-([a-z0-9\-]+)/?`)
	cardBlockRegex  = regexp.MustCompile(`(?s)<[^>]+data-test-id="search-result-item"[^>]*>.*?</[^>]+>`)
	pairRegex       = regexp.MustCompile(`(?:` + priceBodyExpr + pairWindowExpr + addressBodyExpr + `)|(?:` + addressBodyExpr + pairWindowExpr + priceBodyExpr + `)`)
)

func (s *RecoveryStrategy) Parse(html string) []models.Listing {
	prices := indexPrices(html)

	if listings := s.fromDetailLinks(html, prices); len(listings) > 0 {
		return listings
	}
	if listings := s.fromCardBlocks(html, prices); len(listings) > 0 {
		return listings
	}
	if listings := s.fromPairs(html, prices); len(listings) > 0 {
		return listings
	}
	return s.fromPositionalZip(html, prices)
}

// priceHit is one currency occurrence at a character offset.
type priceHit struct {
	offset int
	amount int
}

// priceIndex holds every plausible price occurrence on the page,
// sorted by offset, with consumption tracking so the same occurrence
// is never assigned to two listings.
type priceIndex struct {
	hits []priceHit
	used []bool
}

func indexPrices(html string) *priceIndex {
	matches := recPriceRegex.FindAllStringIndex(html, -1)
	idx := &priceIndex{}
	for _, m := range matches {
		amount := services.ParsePrice(html[m[0]:m[1]])
		if amount == nil {
			continue
		}
		idx.hits = append(idx.hits, priceHit{offset: m[0], amount: *amount})
	}
	sort.Slice(idx.hits, func(i, j int) bool { return idx.hits[i].offset < idx.hits[j].offset })
	idx.used = make([]bool, len(idx.hits))
	return idx
}

// takeNearest consumes and returns the unused price occurrence closest
// to anchor, as long as it lies within maxDist characters.
func (p *priceIndex) takeNearest(anchor, maxDist int) (priceHit, bool) {
	pos := sort.Search(len(p.hits), func(i int) bool { return p.hits[i].offset >= anchor })

	best := -1
	bestDist := maxDist + 1
	for i := pos; i < len(p.hits); i++ {
		d := p.hits[i].offset - anchor
		if d >= bestDist {
			break
		}
		if !p.used[i] {
			best, bestDist = i, d
			break
		}
	}
	for i := pos - 1; i >= 0; i-- {
		d := anchor - p.hits[i].offset
		if d >= bestDist {
			break
		}
		if !p.used[i] {
			best, bestDist = i, d
			break
		}
	}
	if best < 0 {
		return priceHit{}, false
	}
	p.used[best] = true
	return p.hits[best], true
}

// takeInRange consumes the first unused occurrence between lo and hi.
func (p *priceIndex) takeInRange(lo, hi int) (priceHit, bool) {
	pos := sort.Search(len(p.hits), func(i int) bool { return p.hits[i].offset >= lo })
	for ; pos < len(p.hits) && p.hits[pos].offset < hi; pos++ {
		if p.used[pos] {
			continue
		}
		p.used[pos] = true
		return p.hits[pos], true
	}
	return priceHit{}, false
}

// takeNext consumes the next unused occurrence in document order.
func (p *priceIndex) takeNext() (priceHit, bool) {
	for i, hit := range p.hits {
		if !p.used[i] {
			p.used[i] = true
			return hit, true
		}
	}
	return priceHit{}, false
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// fromDetailLinks resolves addresses from per-listing detail links and
// pairs each with the nearest unused price on the page.
func (s *RecoveryStrategy) fromDetailLinks(html string, prices *priceIndex) []models.Listing {
	matches := detailLinkRegex.FindAllStringSubmatchIndex(html, -1)
	if len(matches) == 0 {
		return nil
	}

	var listings []models.Listing
	seen := make(map[string]bool)
	for i, m := range matches {
		link := html[m[0]:m[1]]
		if seen[link] {
			continue
		}
		seen[link] = true

		slug := html[m[4]:m[5]]
		address := addressFromSlug(slug)
		if address == "" {
			continue
		}

		hit, ok := prices.takeNearest(m[0], priceLinkWindow)
		if !ok {
			continue
		}

		listing := models.Listing{
			ID:        fmt.Sprintf("funda-link-%d-%d", i, time.Now().UnixMilli()),
			Price:     &hit.amount,
			Address:   address,
			City:      titleWords(strings.ReplaceAll(html[m[2]:m[3]], "-", " ")),
			Bathrooms: 1,
			URL:       "https://www.funda.nl" + strings.TrimRight(link, "/") + "/",
			Source:    "recovery",
		}
		fillFromContext(html, m[0], &listing)
		listings = append(listings, listing)
	}
	return listings
}

// addressFromSlug turns "prinsengracht-263-h" into "Prinsengracht 263-H".
func addressFromSlug(slug string) string {
	parts := strings.Split(slug, "-")
	if len(parts) == 0 {
		return ""
	}
	var words []string
	for _, part := range parts {
		if part == "" {
			continue
		}
		words = append(words, strings.ToUpper(part[:1])+part[1:])
	}
	if len(words) == 0 {
		return ""
	}
	// reattach a trailing single-character unit to the house number
	out := strings.Join(words, " ")
	if len(words) >= 2 {
		last := words[len(words)-1]
		prev := words[len(words)-2]
		if len(last) == 1 && isNumeric(prev) {
			out = strings.Join(words[:len(words)-1], " ") + "-" + last
		}
	}
	return out
}

func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// fromCardBlocks extracts one listing per repeated card-like block.
func (s *RecoveryStrategy) fromCardBlocks(html string, prices *priceIndex) []models.Listing {
	blocks := cardBlockRegex.FindAllStringIndex(html, -1)
	if len(blocks) == 0 {
		return nil
	}

	var listings []models.Listing
	for i, b := range blocks {
		block := html[b[0]:b[1]]

		hit, ok := prices.takeInRange(b[0], b[1])
		if !ok {
			continue
		}

		address := fmt.Sprintf("Woning %d", i+1)
		if m := recAddressRegex.FindString(block); m != "" {
			address = identity.CleanAddress(m)
		}

		listing := models.Listing{
			ID:        fmt.Sprintf("funda-block-%d-%d", i, time.Now().UnixMilli()),
			Price:     &hit.amount,
			Address:   address,
			City:      "Amsterdam",
			Bathrooms: 1,
			Source:    "recovery",
		}
		fillFromBlock(block, &listing)
		listing.IsNew = strings.Contains(strings.ToLower(block), "nieuw")
		listings = append(listings, listing)
	}
	return listings
}

// fromPairs finds price and address occurrences within a bounded
// character window of each other, in either order.
func (s *RecoveryStrategy) fromPairs(html string, prices *priceIndex) []models.Listing {
	matches := pairRegex.FindAllStringIndex(html, -1)
	if len(matches) == 0 {
		return nil
	}

	var listings []models.Listing
	seen := make(map[string]bool)
	for i, m := range matches {
		segment := html[m[0]:m[1]]
		addrMatch := recAddressRegex.FindString(segment)
		if addrMatch == "" {
			continue
		}
		address := identity.CleanAddress(addrMatch)
		key := identity.NormalizeAddress(address)
		if seen[key] {
			continue
		}

		hit, ok := prices.takeInRange(m[0], m[1])
		if !ok {
			continue
		}
		seen[key] = true

		listing := models.Listing{
			ID:        fmt.Sprintf("funda-pair-%d-%d", i, time.Now().UnixMilli()),
			Price:     &hit.amount,
			Address:   address,
			City:      "Amsterdam",
			Bathrooms: 1,
			Source:    "recovery",
		}
		fillFromContext(html, m[0], &listing)
		listings = append(listings, listing)
	}
	return listings
}

// fromPositionalZip is the absolute fallback: zip the ordered address
// list against the ordered price list.
func (s *RecoveryStrategy) fromPositionalZip(html string, prices *priceIndex) []models.Listing {
	addrMatches := recAddressRegex.FindAllStringIndex(html, -1)
	if len(addrMatches) == 0 {
		return nil
	}

	var listings []models.Listing
	seen := make(map[string]bool)
	for i, m := range addrMatches {
		address := identity.CleanAddress(html[m[0]:m[1]])
		key := identity.NormalizeAddress(address)
		if seen[key] {
			continue
		}
		seen[key] = true

		listing := models.Listing{
			ID:        fmt.Sprintf("funda-regex-%d-%d", i, time.Now().UnixMilli()),
			Address:   address,
			City:      "Amsterdam",
			Bathrooms: 1,
			Source:    "recovery",
		}

		// prefer a price from this address's own context window
		if hit, ok := prices.takeNearest(m[0], contextWindow); ok {
			listing.Price = &hit.amount
		} else if hit, ok := prices.takeNext(); ok {
			listing.Price = &hit.amount
		}

		fillFromContext(html, m[0], &listing)
		listings = append(listings, listing)
	}
	return listings
}

// fillFromContext derives supplementary fields from a bounded window
// of text around the anchor offset.
func fillFromContext(html string, anchor int, listing *models.Listing) {
	start := maxInt(0, anchor-contextWindow)
	end := minInt(len(html), anchor+contextWindow)
	fillFromBlock(html[start:end], listing)
}

func fillFromBlock(context string, listing *models.Listing) {
	fields := services.ExtractContextFields(context)

	if fields.Size > 0 {
		listing.Size = fields.Size
	}
	if fields.Bedrooms > 0 {
		listing.Bedrooms = fields.Bedrooms
	}
	if fields.Bathrooms > 0 {
		listing.Bathrooms = fields.Bathrooms
	}
	if fields.PostalCode != "" {
		listing.PostalCode = fields.PostalCode
	}
	if fields.YearBuilt != nil {
		listing.YearBuilt = fields.YearBuilt
	}
	if fields.EnergyLabel != "" {
		listing.EnergyLabel = fields.EnergyLabel
	}
	if listing.Neighborhood == "" {
		if n := NeighborhoodFromPostcode(listing.PostalCode); n != "" {
			listing.Neighborhood = n
		} else {
			listing.Neighborhood = NeighborhoodFromAddress(listing.Address)
		}
	}
}
