package parser

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"needle/internal/quality"
	"needle/internal/textutil"
)

// ParsedAlbumInfo is what a release title says about its content.
type ParsedAlbumInfo struct {
	ArtistName       string
	AlbumTitle       string
	ReleaseYear      int
	Quality          quality.Model
	ReleaseGroup     string
	ReleaseVersion   string
	Discography      bool
	DiscographyStart int
	DiscographyEnd   int
}

// CleanArtistName is the lookup key form of ArtistName.
func (p *ParsedAlbumInfo) CleanArtistName() string {
	return textutil.CleanName(p.ArtistName)
}

var (
	discographyPattern = regexp.MustCompile(`(?i)^(?P<artist>.+?)\W*(?:discography|complete(?:\s+studio)?\s+albums|anthology)(?:\W*(?P<start>(?:19|20)\d{2})\W*-\W*(?P<end>(?:19|20)\d{2}))?`)
	yearPattern        = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)
	groupPattern       = regexp.MustCompile(`[^\s\-]-(?P<group>[A-Za-z0-9]+)$`)
	versionPattern     = regexp.MustCompile(`(?i)[\(\[]([^\)\]]*(?:deluxe|edition|remaster(?:ed)?|expanded|anniversary)[^\)\]]*)[\)\]]`)
	fileExtPattern     = regexp.MustCompile(`(?i)\.(torrent|nzb)$`)
	separatorPattern   = regexp.MustCompile(`\s+[-–]\s+`)
)

var tagTokens = map[string]bool{
	"flac": true, "mp3": true, "aac": true, "alac": true, "ogg": true, "wav": true, "ape": true,
	"wv": true, "m4a": true, "lossless": true, "320": true, "256": true, "192": true, "160": true,
	"128": true, "v0": true, "v2": true, "vbr": true, "cbr": true, "24bit": true, "16bit": true,
	"hi-res": true, "hires": true, "web": true, "cd": true, "cdr": true, "vinyl": true, "lp": true,
	"sacd": true, "dvd": true, "bd": true, "retail": true, "proper": true, "repack": true,
	"24-96": true, "24-192": true, "24-48": true, "24-44": true, "kbps": true, "320kbps": true,
}

// ParseAlbumTitle parses a release title into artist, album and tags. It
// returns nil when no artist can be found.
func ParseAlbumTitle(title string) *ParsedAlbumInfo {
	normalized := normalizeTitle(title)
	if normalized == "" {
		return nil
	}
	info := &ParsedAlbumInfo{
		Quality:        quality.ParseTitle(title),
		ReleaseGroup:   parseReleaseGroup(normalized),
		ReleaseYear:    parseYear(normalized),
		ReleaseVersion: parseVersion(normalized),
	}

	if match := discographyPattern.FindStringSubmatch(normalized); match != nil {
		artist := trimSeparators(match[discographyPattern.SubexpIndex("artist")])
		if artist != "" {
			info.ArtistName = artist
			info.Discography = true
			info.DiscographyStart, _ = strconv.Atoi(match[discographyPattern.SubexpIndex("start")])
			info.DiscographyEnd, _ = strconv.Atoi(match[discographyPattern.SubexpIndex("end")])
			return info
		}
	}

	if loc := separatorPattern.FindStringIndex(normalized); loc != nil {
		info.ArtistName = trimSeparators(normalized[:loc[0]])
		info.AlbumTitle = albumPrefix(normalized[loc[1]:])
	} else if isSceneTitle(normalized) {
		info.ArtistName, info.AlbumTitle = parseSceneTitle(normalized)
	}
	if info.ArtistName == "" {
		return nil
	}
	return info
}

// ParseAlbumTitleWithSearchCriteria parses a title that is expected to start with
// artistName, preferring one of the known album titles for the remainder.
func ParseAlbumTitleWithSearchCriteria(title, artistName string, albumTitles []string) *ParsedAlbumInfo {
	cleanArtist := textutil.CleanName(artistName)
	if cleanArtist == "" {
		return nil
	}
	words := strings.Fields(strings.NewReplacer("-", " ", "[", " ", "]", " ", "(", " ", ")", " ").Replace(normalizeTitle(title)))
	artistEnd := matchPrefix(words, cleanArtist)
	if artistEnd < 0 {
		return nil
	}
	rest := words[artistEnd:]

	info := &ParsedAlbumInfo{
		ArtistName:     artistName,
		Quality:        quality.ParseTitle(title),
		ReleaseGroup:   parseReleaseGroup(normalizeTitle(title)),
		ReleaseYear:    parseYear(strings.Join(rest, " ")),
		ReleaseVersion: parseVersion(normalizeTitle(title)),
	}

	best := -1
	for _, album := range albumTitles {
		if end := matchPrefix(rest, textutil.CleanName(album)); end > best {
			best = end
			info.AlbumTitle = album
		}
	}
	if best < 0 {
		info.AlbumTitle = albumPrefix(strings.Join(rest, " "))
	}
	if match := discographyPattern.FindStringSubmatch(strings.Join(words, " ")); match != nil && info.AlbumTitle == "" {
		info.Discography = true
		info.DiscographyStart, _ = strconv.Atoi(match[discographyPattern.SubexpIndex("start")])
		info.DiscographyEnd, _ = strconv.Atoi(match[discographyPattern.SubexpIndex("end")])
	}
	return info
}

// matchPrefix returns how many words form clean, or -1.
func matchPrefix(words []string, clean string) int {
	if clean == "" {
		return -1
	}
	for i := range words {
		got := textutil.CleanName(strings.Join(words[:i+1], " "))
		if got == clean {
			return i + 1
		}
		if len(got) > len(clean) {
			return -1
		}
	}
	return -1
}

func normalizeTitle(title string) string {
	title = strings.TrimSpace(fileExtPattern.ReplaceAllString(strings.TrimSpace(title), ""))
	title = strings.ReplaceAll(title, "_", " ")
	if !strings.Contains(title, " ") && strings.Count(title, ".") >= 2 {
		title = dotsToSpaces(title)
	}
	return textutil.NormalizeSpacing(title)
}

// dotsToSpaces replaces word-separating dots but keeps decimal points.
func dotsToSpaces(title string) string {
	runes := []rune(title)
	for i, r := range runes {
		if r != '.' {
			continue
		}
		if i > 0 && i < len(runes)-1 && unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1]) &&
			!(i >= 4 && isYearRunes(runes[i-4:i])) {
			continue
		}
		runes[i] = ' '
	}
	return string(runes)
}

func isYearRunes(r []rune) bool {
	year, err := strconv.Atoi(string(r))
	return err == nil && year >= 1900 && year < 2100
}

func isSceneTitle(title string) bool {
	return !strings.Contains(title, " - ") && strings.Count(title, "-") >= 2
}

func parseSceneTitle(title string) (string, string) {
	tokens := strings.Split(title, "-")
	artist := strings.TrimSpace(tokens[0])
	var album []string
	for _, token := range tokens[1:] {
		token = strings.TrimSpace(token)
		if isTag(token) || isYear(token) {
			break
		}
		album = append(album, token)
	}
	return artist, strings.Join(album, " ")
}

// albumPrefix cuts the album title before the first year or tag, either bare
// or inside brackets. Brackets without tags stay part of the title.
func albumPrefix(s string) string {
	stop := len(s)
	for i := 0; i < len(s); {
		switch c := s[i]; {
		case c == '(' || c == '[' || c == '{':
			end := strings.IndexAny(s[i+1:], ")]}")
			if end < 0 {
				end = len(s) - i - 1
			}
			content := s[i+1 : i+1+end]
			if yearPattern.MatchString(content) || containsTag(content) {
				stop = i
				i = len(s)
				continue
			}
			i += end + 2
		case c == ' ':
			i++
		default:
			end := strings.IndexByte(s[i:], ' ')
			if end < 0 {
				end = len(s) - i
			}
			word := strings.Trim(s[i:i+end], ".,")
			if isYear(word) || isTag(word) {
				stop = i
				i = len(s)
				continue
			}
			i += end
		}
	}
	return trimSeparators(s[:stop])
}

func containsTag(s string) bool {
	for _, word := range strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' || r == '/' || r == '|' }) {
		if isTag(word) {
			return true
		}
	}
	return false
}

func isTag(word string) bool {
	return tagTokens[strings.ToLower(strings.TrimSpace(word))]
}

func isYear(word string) bool {
	return len(word) == 4 && isYearRunes([]rune(word))
}

func parseYear(s string) int {
	match := yearPattern.FindStringSubmatch(s)
	if match == nil {
		return 0
	}
	year, _ := strconv.Atoi(match[1])
	return year
}

func parseReleaseGroup(s string) string {
	match := groupPattern.FindStringSubmatch(s)
	if match == nil {
		return ""
	}
	group := match[groupPattern.SubexpIndex("group")]
	if isTag(group) || isYear(group) {
		return ""
	}
	return group
}

func parseVersion(s string) string {
	match := versionPattern.FindStringSubmatch(s)
	if match == nil {
		return ""
	}
	return strings.TrimSpace(match[1])
}

func trimSeparators(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "-–_.,: "))
}
