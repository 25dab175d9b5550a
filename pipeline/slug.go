package pipeline

import (
	"strings"

	"panelcatalog/normalization"
)

// normalizeDomainKey folds a free-text product type into a domain lookup
// key: "Panneaux MDF" -> "panneaux-mdf".
func normalizeDomainKey(productType string) string {
	return strings.Join(normalization.Tokenize(productType), "-")
}

// titleFromSlug produces a display name for a category the pipeline had to
// create: "mdf-hydrofuge" -> "Mdf hydrofuge". Operators rename these in
// the back office; the slug is the identifier that matters.
func titleFromSlug(slug string) string {
	words := strings.Split(slug, "-")
	if len(words) == 0 {
		return slug
	}
	joined := strings.Join(words, " ")
	if joined == "" {
		return slug
	}
	return strings.ToUpper(joined[:1]) + joined[1:]
}
