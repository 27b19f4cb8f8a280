package textutil

import (
	"github.com/hbollon/go-edlib"
)

// Similarity scores two names in [0,1] using Jaro-Winkler over their cleaned
// forms. Identical clean names score 1; empty input scores 0.
func Similarity(a, b string) float64 {
	ca, cb := CleanName(a), CleanName(b)
	if ca == "" || cb == "" {
		return 0
	}
	if ca == cb {
		return 1
	}
	score, err := edlib.StringsSimilarity(ca, cb, edlib.JaroWinkler)
	if err != nil {
		return 0
	}
	return float64(score)
}

// Distance is 1 - Similarity.
func Distance(a, b string) float64 {
	return 1 - Similarity(a, b)
}
