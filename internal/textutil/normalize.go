package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldCaser = cases.Fold()

// StripDiacritics removes combining marks so "Björk" and "Bjork" compare equal.
func StripDiacritics(value string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, value)
	if err != nil {
		return value
	}
	return out
}

// CleanName reduces a title to a lowercase alphanumeric key used for catalog
// lookups: diacritics are stripped, "&" reads as "and", a leading "the" and all
// punctuation and whitespace are dropped.
func CleanName(value string) string {
	value = StripDiacritics(strings.TrimSpace(value))
	if value == "" {
		return ""
	}
	value = foldCaser.String(value)
	value = strings.ReplaceAll(value, "&", " and ")
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(fields) > 1 && fields[0] == "the" {
		fields = fields[1:]
	}
	return strings.Join(fields, "")
}

// NormalizeSpacing turns dotted or underscored scene names into spaced words.
func NormalizeSpacing(value string) string {
	if !strings.Contains(value, " ") {
		value = strings.NewReplacer(".", " ", "_", " ").Replace(value)
	}
	return strings.Join(strings.Fields(value), " ")
}
