package textutil

import (
	"math"
	"strings"
	"unicode"
)

// Fingerprint is a term-frequency vector over a set of titles, used to compare
// a folder's track titles with a catalog release's track list.
type Fingerprint struct {
	terms map[string]float64
	norm  float64
}

// NewFingerprint builds a fingerprint from titles. Returns nil when no term
// survives tokenization.
func NewFingerprint(titles ...string) *Fingerprint {
	counts := make(map[string]float64)
	for _, title := range titles {
		for _, term := range Tokenize(title) {
			counts[term]++
		}
	}
	if len(counts) == 0 {
		return nil
	}
	var sum float64
	for _, count := range counts {
		sum += count * count
	}
	return &Fingerprint{terms: counts, norm: math.Sqrt(sum)}
}

// Tokenize folds case and diacritics and splits text into terms of at least
// two characters.
func Tokenize(text string) []string {
	folded := foldCaser.String(StripDiacritics(text))
	raw := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := raw[:0]
	for _, term := range raw {
		if len(term) < 2 {
			continue
		}
		terms = append(terms, term)
	}
	return terms
}

// Cosine returns the cosine similarity of two fingerprints in [0,1].
func (f *Fingerprint) Cosine(other *Fingerprint) float64 {
	if f == nil || other == nil || f.norm == 0 || other.norm == 0 {
		return 0
	}
	small, large := f, other
	if len(small.terms) > len(large.terms) {
		small, large = large, small
	}
	var dot float64
	for term, weight := range small.terms {
		dot += weight * large.terms[term]
	}
	return dot / (f.norm * other.norm)
}
