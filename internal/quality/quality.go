package quality

import "strings"

// Quality is an audio format/bitrate class. IDs are stable and persisted.
type Quality struct {
	ID   int
	Name string
}

var (
	Unknown    = Quality{ID: 0, Name: "Unknown"}
	MP3128     = Quality{ID: 1, Name: "MP3-128"}
	MP3160     = Quality{ID: 2, Name: "MP3-160"}
	MP3192     = Quality{ID: 3, Name: "MP3-192"}
	MP3256     = Quality{ID: 4, Name: "MP3-256"}
	MP3320     = Quality{ID: 5, Name: "MP3-320"}
	MP3VBRV2   = Quality{ID: 6, Name: "MP3-VBR-V2"}
	MP3VBRV0   = Quality{ID: 7, Name: "MP3-VBR-V0"}
	AAC192     = Quality{ID: 8, Name: "AAC-192"}
	AAC256     = Quality{ID: 9, Name: "AAC-256"}
	AAC320     = Quality{ID: 10, Name: "AAC-320"}
	AACVBR     = Quality{ID: 11, Name: "AAC-VBR"}
	OGGVorbis  = Quality{ID: 12, Name: "OGG Vorbis"}
	WMA        = Quality{ID: 13, Name: "WMA"}
	ALAC       = Quality{ID: 14, Name: "ALAC"}
	FLAC       = Quality{ID: 15, Name: "FLAC"}
	FLAC24     = Quality{ID: 16, Name: "FLAC 24bit"}
	ALAC24     = Quality{ID: 17, Name: "ALAC 24bit"}
	APE        = Quality{ID: 18, Name: "APE"}
	WavPack    = Quality{ID: 19, Name: "WavPack"}
	WAV        = Quality{ID: 20, Name: "WAV"}
	all        = []Quality{Unknown, MP3128, MP3160, MP3192, MP3256, MP3320, MP3VBRV2, MP3VBRV0, AAC192, AAC256, AAC320, AACVBR, OGGVorbis, WMA, ALAC, FLAC, FLAC24, ALAC24, APE, WavPack, WAV}
	lossless   = map[int]bool{ALAC.ID: true, FLAC.ID: true, FLAC24.ID: true, ALAC24.ID: true, APE.ID: true, WavPack.ID: true, WAV.ID: true}
	byIDLookup = func() map[int]Quality {
		m := make(map[int]Quality, len(all))
		for _, q := range all {
			m[q.ID] = q
		}
		return m
	}()
)

func (q Quality) String() string { return q.Name }

// IsLossless reports whether q is a lossless format.
func (q Quality) IsLossless() bool { return lossless[q.ID] }

// All returns every known quality in id order.
func All() []Quality {
	out := make([]Quality, len(all))
	copy(out, all)
	return out
}

// FindByID returns the quality with id, or Unknown.
func FindByID(id int) Quality {
	if q, ok := byIDLookup[id]; ok {
		return q
	}
	return Unknown
}

// FindByName resolves a configured quality name case-insensitively.
func FindByName(name string) (Quality, bool) {
	name = strings.TrimSpace(name)
	for _, q := range all {
		if strings.EqualFold(q.Name, name) {
			return q, true
		}
	}
	return Unknown, false
}
