package services

import (
	"regexp"
	"strings"

	"fundaswipe/identity"
	"fundaswipe/models"
)

const maxMergedImages = 8

// photoVariantRegex strips size/quality suffix tokens from a photo URL
// so two renditions of the same base photo compare equal.
var photoVariantRegex = regexp.MustCompile(`_(?:klein|groot|middel|thumb|\d+x\d+)(?:\.\w+)?$`)

// Dedupe collapses listings that share a normalized address. The
// first-seen record is kept as the base; colliding records only
// contribute fields the base lacks. Idempotent.
func Dedupe(listings []models.Listing) []models.Listing {
	byKey := make(map[string]int)
	var out []models.Listing

	for _, incoming := range listings {
		key := identity.NormalizeAddress(identity.CleanAddress(incoming.Address))
		if key == "" {
			key = incoming.ID
		}

		idx, seen := byKey[key]
		if !seen {
			incoming.Address = identity.CleanAddress(incoming.Address)
			if incoming.Source != "" && len(incoming.Sources) == 0 {
				incoming.Sources = []string{incoming.Source}
			}
			byKey[key] = len(out)
			out = append(out, incoming)
			continue
		}

		merge(&out[idx], &incoming)
	}

	return out
}

// merge folds an incoming duplicate into the base record, field by
// field, additively.
func merge(base, incoming *models.Listing) {
	if base.Price == nil {
		base.Price = incoming.Price
	}
	if base.Size == 0 {
		base.Size = incoming.Size
	}
	if base.Bedrooms == 0 {
		base.Bedrooms = incoming.Bedrooms
	}
	if base.Bathrooms == 0 {
		base.Bathrooms = incoming.Bathrooms
	}
	if base.YearBuilt == nil {
		base.YearBuilt = incoming.YearBuilt
	}
	if base.EnergyLabel == "" {
		base.EnergyLabel = incoming.EnergyLabel
	}
	if base.PostalCode == "" {
		base.PostalCode = incoming.PostalCode
	}
	if base.Neighborhood == "" {
		base.Neighborhood = incoming.Neighborhood
	}
	if base.Description == "" {
		base.Description = incoming.Description
	}
	if base.Image == "" {
		base.Image = incoming.Image
	}

	// a real detail link beats a generic or missing one
	if !base.HasDetailURL() && incoming.HasDetailURL() {
		base.URL = incoming.URL
	} else if base.URL == "" || base.URL == "#" {
		base.URL = incoming.URL
	}

	base.Images = mergeImages(base.Images, incoming.Images)

	if incoming.Source != "" && !contains(base.Sources, incoming.Source) {
		base.Sources = append(base.Sources, incoming.Source)
	}
	for _, src := range incoming.Sources {
		if !contains(base.Sources, src) {
			base.Sources = append(base.Sources, src)
		}
	}
}

// mergeImages unions two image lists, deduplicating by base photo
// identity and capping the result.
func mergeImages(a, b []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, img := range append(append([]string(nil), a...), b...) {
		key := BasePhotoKey(img)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, img)
		if len(out) == maxMergedImages {
			break
		}
	}
	return out
}

// BasePhotoKey reduces a photo URL to its base identity, ignoring
// rendition suffixes so thumbnails and full-size copies of the same
// photo deduplicate.
func BasePhotoKey(url string) string {
	url = strings.TrimSpace(url)
	if url == "" {
		return ""
	}
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	return photoVariantRegex.ReplaceAllString(url, "")
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
