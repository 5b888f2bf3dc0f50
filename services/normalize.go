package services

import (
	"regexp"
	"strconv"
	"strings"

	"fundaswipe/models"
)

var (
	digitRunRegex = regexp.MustCompile(`\d[\d.,]*`)
	nonDigitRegex = regexp.MustCompile(`[^\d]`)
	intRegex      = regexp.MustCompile(`\d+`)
)

// ParsePrice extracts an integer euro amount from whatever shape the
// source hands us: a number, a formatted string ("€ 450.000 k.k."),
// or a nested map with an amount field. Returns nil when no plausible
// price can be recovered.
//
// Funda sometimes reports prices in thousands; amounts in the 50..10000
// band are multiplied by 1000 before the sanity check.
func ParsePrice(v interface{}) *int {
	switch p := v.(type) {
	case nil:
		return nil
	case float64:
		return plausiblePrice(int(p))
	case int:
		return plausiblePrice(p)
	case string:
		return parsePriceString(p)
	case map[string]interface{}:
		for _, key := range []string{"amount", "value", "price", "sellingPrice", "rentPrice"} {
			if inner, ok := p[key]; ok {
				if got := ParsePrice(inner); got != nil {
					return got
				}
			}
		}
		return nil
	default:
		return nil
	}
}

func parsePriceString(s string) *int {
	m := digitRunRegex.FindString(s)
	if m == "" {
		return nil
	}
	digits := nonDigitRegex.ReplaceAllString(m, "")
	n, err := strconv.Atoi(digits)
	if err != nil {
		return nil
	}
	return plausiblePrice(n)
}

func plausiblePrice(n int) *int {
	if n >= 50 && n <= 10_000 {
		n *= 1000
	}
	if n < models.MinPlausiblePrice || n > models.MaxPlausiblePrice {
		return nil
	}
	return &n
}

// PriceFromItem probes a decoded listing object for a price, checking
// the flat fields first, then the nested price and priceInfo objects.
func PriceFromItem(item map[string]interface{}) *int {
	for _, key := range []string{"price", "askingPrice", "sellingPrice", "rentPrice", "priceValue"} {
		if v, ok := item[key]; ok {
			if p := ParsePrice(v); p != nil {
				return p
			}
		}
	}
	for _, key := range []string{"price", "priceInfo"} {
		nested, ok := item[key].(map[string]interface{})
		if !ok {
			continue
		}
		if p := ParsePrice(nested); p != nil {
			return p
		}
		for _, v := range nested {
			if p := ParsePrice(v); p != nil {
				return p
			}
		}
	}
	return nil
}

// ParseIntField pulls the first integer out of a free-form field like
// "3 slaapkamers" or a raw number.
func ParseIntField(v interface{}) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case string:
		m := intRegex.FindString(n)
		if m == "" {
			return 0
		}
		i, _ := strconv.Atoi(m)
		return i
	default:
		return 0
	}
}

// ParseSize reads a floor area like "85 m²" into square meters.
func ParseSize(v interface{}) int {
	switch s := v.(type) {
	case string:
		lower := strings.ToLower(s)
		if !strings.Contains(lower, "m") && !strings.ContainsAny(lower, "0123456789") {
			return 0
		}
		return ParseIntField(s)
	default:
		return ParseIntField(v)
	}
}
