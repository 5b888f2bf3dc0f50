package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

var (
	multiSpaceRegex = regexp.MustCompile(`\s+`)
	dashRegex       = regexp.MustCompile(`[‐‑‒–—]`)
	// House number with unit suffix, possibly followed by a stray
	// repeat of the suffix: "Keizersgracht 12-H H", "Singel 4/2 2".
	unitSuffixRegex = regexp.MustCompile(`(\d+[a-zA-Z]?[-\/]([a-zA-Z0-9]+))\s+([a-zA-Z0-9]+)\s*$`)
)

// NormalizeAddress lowercases, unifies dash variants and collapses
// whitespace. Listings that normalize to the same string are treated
// as the same property.
func NormalizeAddress(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	addr = dashRegex.ReplaceAllString(addr, "-")
	addr = multiSpaceRegex.ReplaceAllString(addr, " ")
	return strings.TrimSpace(addr)
}

// CleanAddress strips the duplicated unit suffix that shows up when a
// card renders the unit twice, e.g. "Keizersgracht 12-H H" becomes
// "Keizersgracht 12-H". Idempotent: cleaning a clean address is a
// no-op.
func CleanAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	m := unitSuffixRegex.FindStringSubmatchIndex(addr)
	if m == nil {
		return addr
	}
	unit := addr[m[4]:m[5]]
	trailer := addr[m[6]:m[7]]
	if !strings.EqualFold(unit, trailer) {
		return addr
	}
	return strings.TrimSpace(addr[:m[3]])
}

// Fingerprint is a stable 32-hex-char identity for a listing, derived
// from the normalized address and postal code.
func Fingerprint(address, postalCode string) string {
	input := fmt.Sprintf("%s|%s", NormalizeAddress(address), strings.ToUpper(strings.ReplaceAll(postalCode, " ", "")))
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:16])
}
