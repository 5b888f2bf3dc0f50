package services

import (
	"regexp"
	"strings"
)

// ContextFields are the supplementary listing fields that can be read
// out of a span of page text with field-specific sub-patterns.
type ContextFields struct {
	Price       *int
	Size        int
	Bedrooms    int
	Bathrooms   int
	PostalCode  string
	YearBuilt   *int
	EnergyLabel string
}

var (
	ctxPriceRegex    = regexp.MustCompile(`\x{20ac}\s*[\d.,]+`)
	ctxSizeRegex     = regexp.MustCompile(`(?i)(\d+)\s*m²`)
	ctxRoomsRegex    = regexp.MustCompile(`(?i)(\d+)\s*(?:slaapkamers?|kamers?)`)
	ctxBedroomRegex  = regexp.MustCompile(`(?i)(\d+)\s*slaapkamer`)
	ctxBathroomRegex = regexp.MustCompile(`(?i)(\d+)\s*badkamers?`)
	ctxPostcodeRegex = regexp.MustCompile(`\b(\d{4}\s*[A-Z]{2})\b`)
	ctxYearRegex     = regexp.MustCompile(`(?i)(?:bouwjaar|gebouwd)(?:\s+in)?[:\s]*(\d{4})`)
	ctxEnergyRegex   = regexp.MustCompile(`(?i)(?:energielabel|energie)[:\s]*([A-G]\+*)`)
	ctxSpaceRegex    = regexp.MustCompile(`\s+`)

	fundaImageRegex = regexp.MustCompile(`https?://cloud\.funda\.nl/[^"'\s\\]+\.(?:jpg|jpeg|png|webp)`)
)

// ExtractContextFields reads supplementary fields from a span of text.
// A year is only accepted from an explicit construction-year phrase; a
// bare four-digit number is too often a street number or a copyright
// year.
func ExtractContextFields(text string) ContextFields {
	var f ContextFields

	if m := ctxPriceRegex.FindString(text); m != "" {
		f.Price = ParsePrice(m)
	}
	if m := ctxSizeRegex.FindStringSubmatch(text); m != nil {
		f.Size = ParseIntField(m[1])
	}
	if m := ctxBedroomRegex.FindStringSubmatch(text); m != nil {
		f.Bedrooms = ParseIntField(m[1])
	} else if m := ctxRoomsRegex.FindStringSubmatch(text); m != nil {
		f.Bedrooms = ParseIntField(m[1])
	}
	if m := ctxBathroomRegex.FindStringSubmatch(text); m != nil {
		f.Bathrooms = ParseIntField(m[1])
	}
	if m := ctxPostcodeRegex.FindStringSubmatch(text); m != nil {
		f.PostalCode = ctxSpaceRegex.ReplaceAllString(strings.TrimSpace(m[1]), " ")
	}
	if m := ctxYearRegex.FindStringSubmatch(text); m != nil {
		if year := ParseIntField(m[1]); year > 0 {
			f.YearBuilt = &year
		}
	}
	if m := ctxEnergyRegex.FindStringSubmatch(text); m != nil {
		f.EnergyLabel = strings.ToUpper(m[1])
	}

	return f
}

// ExtractImageURLs collects the photo CDN URLs in a page, deduplicated
// by base photo identity.
func ExtractImageURLs(html string, limit int) []string {
	matches := fundaImageRegex.FindAllString(html, -1)
	seen := make(map[string]bool)
	var out []string
	for _, img := range matches {
		key := BasePhotoKey(img)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, img)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
