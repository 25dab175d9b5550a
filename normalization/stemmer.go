package normalization

import (
	"strings"
	"sync"

	"github.com/kljensen/snowball"
)

// FrenchStemmer stems words with the Snowball algorithm. The supplier
// catalogs are French, so "hydrofuges" and "hydrofuge" must index to the
// same term. Stemming is comparatively expensive, hence the cache.
type FrenchStemmer struct {
	cache map[string]string
	mu    sync.RWMutex
}

// NewFrenchStemmer creates a stemmer with an empty cache.
func NewFrenchStemmer() *FrenchStemmer {
	return &FrenchStemmer{cache: make(map[string]string)}
}

// Stem returns the stemmed form of a single word. Words snowball cannot
// handle (digits, codes) are returned folded but otherwise untouched.
func (s *FrenchStemmer) Stem(word string) string {
	normalized := Fold(strings.TrimSpace(word))
	if normalized == "" {
		return ""
	}

	s.mu.RLock()
	cached, ok := s.cache[normalized]
	s.mu.RUnlock()
	if ok {
		return cached
	}

	stemmed, err := snowball.Stem(normalized, "french", true)
	if err != nil || stemmed == "" {
		stemmed = normalized
	}

	s.mu.Lock()
	s.cache[normalized] = stemmed
	s.mu.Unlock()

	return stemmed
}

// StemTokens stems every token, dropping empties.
func (s *FrenchStemmer) StemTokens(tokens []string) []string {
	result := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if stemmed := s.Stem(tok); stemmed != "" {
			result = append(result, stemmed)
		}
	}
	return result
}

// CacheSize reports the number of cached stems.
func (s *FrenchStemmer) CacheSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}
