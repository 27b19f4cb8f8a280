package language

import (
	"strings"
	"unicode"
)

type entry struct {
	code2   string
	code3   string
	alt3    string
	display string
	words   []string
}

var languages = []entry{
	{"en", "eng", "", "English", []string{"english"}},
	{"es", "spa", "", "Spanish", []string{"spanish", "espanol"}},
	{"fr", "fra", "fre", "French", []string{"french", "francais"}},
	{"de", "deu", "ger", "German", []string{"german", "deutsch"}},
	{"it", "ita", "", "Italian", []string{"italian", "italiano"}},
	{"pt", "por", "", "Portuguese", []string{"portuguese"}},
	{"ja", "jpn", "", "Japanese", []string{"japanese"}},
	{"ko", "kor", "", "Korean", []string{"korean"}},
	{"zh", "zho", "chi", "Chinese", []string{"chinese", "mandarin", "cantonese"}},
	{"ru", "rus", "", "Russian", []string{"russian"}},
	{"nl", "nld", "dut", "Dutch", []string{"dutch"}},
	{"pl", "pol", "", "Polish", []string{"polish"}},
	{"sv", "swe", "", "Swedish", []string{"swedish"}},
	{"fi", "fin", "", "Finnish", []string{"finnish"}},
}

var (
	byCode2 map[string]*entry
	byCode3 map[string]*entry
	byWord  map[string]*entry
)

func init() {
	byCode2 = make(map[string]*entry, len(languages))
	byCode3 = make(map[string]*entry, len(languages)*2)
	byWord = make(map[string]*entry, len(languages)*2)
	for i := range languages {
		e := &languages[i]
		byCode2[e.code2] = e
		byCode3[e.code3] = e
		if e.alt3 != "" {
			byCode3[e.alt3] = e
		}
		for _, w := range e.words {
			byWord[w] = e
		}
	}
}

func lookup(code string) *entry {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return nil
	}
	if e, ok := byCode2[code]; ok {
		return e
	}
	if e, ok := byCode3[code]; ok {
		return e
	}
	return byWord[code]
}

// ToISO2 converts a recognized code or language name to ISO 639-1.
// Unknown 2-letter codes pass through; anything else unknown yields "".
func ToISO2(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return ""
	}
	if e := lookup(code); e != nil {
		return e.code2
	}
	if len(code) == 2 {
		return code
	}
	return ""
}

// DisplayName returns a human-readable name for code.
func DisplayName(code string) string {
	if strings.TrimSpace(code) == "" {
		return "Unknown"
	}
	if e := lookup(code); e != nil {
		return e.display
	}
	return strings.ToUpper(strings.TrimSpace(code))
}

// NormalizeList deduplicates codes and maps them to ISO 639-1.
func NormalizeList(codes []string) []string {
	if len(codes) == 0 {
		return nil
	}
	normalized := make([]string, 0, len(codes))
	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		trimmed := strings.ToLower(strings.TrimSpace(code))
		if trimmed == "" {
			continue
		}
		if mapped := ToISO2(trimmed); mapped != "" {
			trimmed = mapped
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		normalized = append(normalized, trimmed)
	}
	return normalized
}

// Detect returns the ISO 639-1 code of the language a release title
// advertises, or "" when it names none. Full language names match anywhere in
// the title; 3-letter codes only count inside brackets, where release groups
// put tags such as [JPN].
func Detect(title string) string {
	lower := strings.ToLower(title)
	for _, word := range strings.FieldsFunc(lower, notLetter) {
		if e, ok := byWord[word]; ok {
			return e.code2
		}
	}
	for _, tag := range bracketed(lower) {
		for _, word := range strings.FieldsFunc(tag, notLetter) {
			if len(word) != 3 {
				continue
			}
			if e, ok := byCode3[word]; ok {
				return e.code2
			}
		}
	}
	return ""
}

func notLetter(r rune) bool {
	return !unicode.IsLetter(r)
}

func bracketed(s string) []string {
	var tags []string
	for {
		start := strings.IndexAny(s, "[(")
		if start < 0 {
			return tags
		}
		end := strings.IndexAny(s[start+1:], "])")
		if end < 0 {
			return tags
		}
		tags = append(tags, s[start+1:start+1+end])
		s = s[start+1+end+1:]
	}
}
