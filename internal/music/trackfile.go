package music

import (
	"time"

	"needle/internal/quality"
)

// TrackFile is an imported file in the library. Quality is taken from the
// LocalTrack that produced it.
type TrackFile struct {
	ID           int64
	ArtistID     int64
	AlbumID      int64
	Path         string
	Size         int64
	Modified     time.Time
	DateAdded    time.Time
	Quality      quality.Model
	ReleaseGroup string
	SceneName    string
	Hash         string
	TrackIDs     []int64
}
