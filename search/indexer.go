package search

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"panelcatalog/catalog"
	"panelcatalog/normalization"
)

// Indexer derives the searchable representation of a panel: a weighted
// term set for token search and a normalized fuzzy string for
// trigram/edit-distance matching. Decor codes and truncated queries do not
// tokenize well but do trigram-match well, hence the two representations.
type Indexer struct {
	stemmer *normalization.FrenchStemmer
}

// NewIndexer creates an indexer with a fresh stem cache.
func NewIndexer() *Indexer {
	return &Indexer{stemmer: normalization.NewFrenchStemmer()}
}

// tier groups the source fields by weight. The order inside a tier does
// not matter; the tier does.
type tier struct {
	weight catalog.TermWeight
	fields func(p *catalog.Panel) []string
}

var tiers = []tier{
	{catalog.WeightA, func(p *catalog.Panel) []string {
		return []string{p.Name, p.Reference, p.ManufacturerRef}
	}},
	{catalog.WeightB, func(p *catalog.Panel) []string {
		return []string{p.DecorName, p.Finish}
	}},
	{catalog.WeightC, func(p *catalog.Panel) []string {
		return []string{p.ProductType, p.Material}
	}},
}

// Derive computes the weighted terms, the fuzzy text and the content hash
// of a panel's indexed source fields. Pure function of the panel's fields.
func (ix *Indexer) Derive(p *catalog.Panel) (catalog.WeightedTerms, string, string) {
	terms := make(catalog.WeightedTerms)

	for _, t := range tiers {
		for _, field := range t.fields(p) {
			tokens := ix.stemmer.StemTokens(normalization.Tokenize(field))
			for _, tok := range tokens {
				if existing, ok := terms[tok]; !ok || t.weight < existing {
					terms[tok] = t.weight
				}
			}
		}
	}

	fuzzy := normalization.FoldJoin(
		p.Name, p.Reference, p.ManufacturerRef,
		p.DecorName, p.Finish,
		p.ProductType, p.Material,
	)

	return terms, fuzzy, ContentHash(p)
}

// ContentHash hashes the source fields the search representation is
// derived from. Reindexing compares this against the stored hash to skip
// records whose indexed content did not change.
func ContentHash(p *catalog.Panel) string {
	fields := []string{
		p.Name, p.Reference, p.ManufacturerRef,
		p.DecorName, p.Finish,
		p.ProductType, p.Material,
	}
	sum := sha256.Sum256([]byte(strings.Join(fields, "\x1f")))
	return hex.EncodeToString(sum[:])
}
