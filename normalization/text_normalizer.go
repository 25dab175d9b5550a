package normalization

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldTransformer decomposes to NFD, strips combining marks and recomposes.
// Built once; transform.Chain is safe for concurrent use through
// transform.String.
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lowercases the input and strips diacritics. Every accent-insensitive
// comparison in the engine goes through this exact function: classification,
// search indexing and fuzzy matching must agree on the folded form or they
// silently disagree on matches.
func Fold(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		// Malformed UTF-8; fall back to plain lowercasing.
		return strings.ToLower(s)
	}
	return strings.ToLower(folded)
}

// canonical code extraction: suppliers embed the same manufacturer code
// inside differently-prefixed reference strings ("105083-unilin",
// "SUP-105083"). The code is the first run of exactly 5-6 digits.

const (
	minCodeLen = 5
	maxCodeLen = 6
)

// ExtractCanonicalCode returns the first run of 5-6 consecutive digits in
// the reference, or ok=false when there is none. Runs longer than 6 digits
// are skipped entirely: those are EANs or dates, and taking their prefix
// would fabricate collisions.
func ExtractCanonicalCode(reference string) (string, bool) {
	runStart := -1
	flush := func(end int) (string, bool) {
		n := end - runStart
		if runStart >= 0 && n >= minCodeLen && n <= maxCodeLen {
			return reference[runStart:end], true
		}
		return "", false
	}

	for i, r := range reference {
		if r >= '0' && r <= '9' {
			if runStart < 0 {
				runStart = i
			}
			continue
		}
		if code, ok := flush(i); ok {
			return code, true
		}
		runStart = -1
	}
	return flush(len(reference))
}

// Tokenize folds the input and splits it into alphanumeric tokens.
func Tokenize(s string) []string {
	folded := Fold(s)
	return strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// FoldJoin folds all parts, drops empty ones and joins with single spaces.
// Used to build classification haystacks and fuzzy-match strings.
func FoldJoin(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if f := strings.Join(strings.Fields(Fold(p)), " "); f != "" {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " ")
}
