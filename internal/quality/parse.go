package quality

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	hiResPattern    = regexp.MustCompile(`(?i)\b(24[ -]?bits?|24[ -/](44|48|88|96|176|192)(\.\d)?(khz)?|hi-?res)\b`)
	flacPattern     = regexp.MustCompile(`(?i)\b(flac|lossless)\b`)
	alacPattern     = regexp.MustCompile(`(?i)\balac\b`)
	apePattern      = regexp.MustCompile(`(?i)\bape\b`)
	wavPackPattern  = regexp.MustCompile(`(?i)\b(wavpack|wv)\b`)
	wavPattern      = regexp.MustCompile(`(?i)\bwav\b`)
	v0Pattern       = regexp.MustCompile(`(?i)\b(vbr[ -]?)?v0\b`)
	v2Pattern       = regexp.MustCompile(`(?i)\b(vbr[ -]?)?v2\b`)
	aacPattern      = regexp.MustCompile(`(?i)\b(aac|m4a)\b`)
	oggPattern      = regexp.MustCompile(`(?i)\b(ogg|vorbis)\b`)
	wmaPattern      = regexp.MustCompile(`(?i)\bwma\b`)
	bitratePattern  = regexp.MustCompile(`(?i)\b(320|256|192|160|128)\s?(kbps|kbit|k)?\b`)
	properPattern   = regexp.MustCompile(`(?i)\b(proper|rerip)\b`)
	repackPattern   = regexp.MustCompile(`(?i)\brepack\b`)
	realPattern     = regexp.MustCompile(`\bREAL\b`)
	mp3Bitrates     = map[string]Quality{"128": MP3128, "160": MP3160, "192": MP3192, "256": MP3256, "320": MP3320}
	aacBitrates     = map[string]Quality{"192": AAC192, "256": AAC256, "320": AAC320}
	extensionLookup = map[string]Quality{
		".flac": FLAC,
		".ape":  APE,
		".wv":   WavPack,
		".wav":  WAV,
		".m4a":  AACVBR,
		".aac":  AACVBR,
		".ogg":  OGGVorbis,
		".oga":  OGGVorbis,
		".wma":  WMA,
		".mp3":  Unknown,
	}
)

// ParseTitle infers quality and revision from a release title.
func ParseTitle(title string) Model {
	return Model{Quality: parseQuality(title), Revision: ParseRevision(title)}
}

func parseQuality(title string) Quality {
	hiRes := hiResPattern.MatchString(title)
	switch {
	case alacPattern.MatchString(title):
		if hiRes {
			return ALAC24
		}
		return ALAC
	case flacPattern.MatchString(title):
		if hiRes {
			return FLAC24
		}
		return FLAC
	case apePattern.MatchString(title):
		return APE
	case wavPackPattern.MatchString(title):
		return WavPack
	case wavPattern.MatchString(title):
		return WAV
	case v0Pattern.MatchString(title):
		return MP3VBRV0
	case v2Pattern.MatchString(title):
		return MP3VBRV2
	}

	isAAC := aacPattern.MatchString(title)
	if match := bitratePattern.FindStringSubmatch(title); match != nil {
		if isAAC {
			if q, ok := aacBitrates[match[1]]; ok {
				return q
			}
			return AACVBR
		}
		return mp3Bitrates[match[1]]
	}
	switch {
	case isAAC:
		return AACVBR
	case oggPattern.MatchString(title):
		return OGGVorbis
	case wmaPattern.MatchString(title):
		return WMA
	case hiRes:
		return FLAC24
	}
	return Unknown
}

// ParseRevision extracts proper/repack/real markers from a title.
func ParseRevision(title string) Revision {
	rev := DefaultRevision()
	if properPattern.MatchString(title) {
		rev.Version = 2
	}
	if repackPattern.MatchString(title) {
		rev.Version = 2
		rev.IsRepack = true
	}
	rev.Real = len(realPattern.FindAllString(title, -1))
	return rev
}

// FromExtension maps a file extension to a quality. Lossy formats whose bitrate
// cannot be told from the extension alone yield their VBR class or Unknown.
func FromExtension(path string) Quality {
	ext := strings.ToLower(filepath.Ext(path))
	if q, ok := extensionLookup[ext]; ok {
		return q
	}
	return Unknown
}

// FromBitrate picks the closest MP3 or AAC class for a measured bitrate.
func FromBitrate(codec string, kbps int) Quality {
	table := []Quality{MP3128, MP3160, MP3192, MP3256, MP3320}
	rates := []int{128, 160, 192, 256, 320}
	if strings.EqualFold(codec, "aac") {
		table = []Quality{AAC192, AAC256, AAC320}
		rates = []int{192, 256, 320}
	}
	best := table[0]
	for i, rate := range rates {
		if kbps >= rate-8 {
			best = table[i]
		}
	}
	return best
}

// IsAudioFile reports whether the path has an audio extension.
func IsAudioFile(path string) bool {
	_, ok := extensionLookup[strings.ToLower(filepath.Ext(path))]
	return ok
}
