package music

import (
	"time"

	"needle/internal/textutil"
)

// Artist is a monitored library artist.
type Artist struct {
	ID               int64
	Name             string
	CleanName        string
	Path             string
	Monitored        bool
	QualityProfileID int
	Tags             []string
	Added            time.Time
}

// Album is one album of an artist with its known releases.
type Album struct {
	ID           int64
	ArtistID     int64
	Title        string
	CleanTitle   string
	ReleaseDate  time.Time
	AlbumType    string
	Monitored    bool
	AnyReleaseOK bool
	Releases     []*AlbumRelease
}

// AlbumRelease is one concrete edition of an album.
type AlbumRelease struct {
	ID         int64
	AlbumID    int64
	Title      string
	TrackCount int
	Duration   time.Duration
	Monitored  bool
	Tracks     []*Track
}

// Track is one slot on an album release.
type Track struct {
	ID                  int64
	ArtistID            int64
	AlbumID             int64
	AlbumReleaseID      int64
	MediumNumber        int
	TrackNumber         int
	AbsoluteTrackNumber int
	Title               string
	Duration            time.Duration
	TrackFileID         int64
}

// HasFile reports whether the track has an imported file.
func (t *Track) HasFile() bool { return t != nil && t.TrackFileID > 0 }

// NewArtist returns an artist with its clean name filled in.
func NewArtist(name string) *Artist {
	return &Artist{Name: name, CleanName: textutil.CleanName(name), Monitored: true}
}

// NewAlbum returns an album with its clean title filled in.
func NewAlbum(artistID int64, title string) *Album {
	return &Album{ArtistID: artistID, Title: title, CleanTitle: textutil.CleanName(title), Monitored: true}
}

// Year returns the release year, or 0 when unknown.
func (a *Album) Year() int {
	if a == nil || a.ReleaseDate.IsZero() {
		return 0
	}
	return a.ReleaseDate.Year()
}

// MonitoredRelease returns the monitored release, falling back to the first one.
func (a *Album) MonitoredRelease() *AlbumRelease {
	if a == nil || len(a.Releases) == 0 {
		return nil
	}
	for _, release := range a.Releases {
		if release.Monitored {
			return release
		}
	}
	return a.Releases[0]
}

// Duration is the longest duration among releases eligible for download.
func (a *Album) Duration() time.Duration {
	if a == nil {
		return 0
	}
	var longest time.Duration
	for _, release := range a.Releases {
		if (release.Monitored || a.AnyReleaseOK) && release.Duration > longest {
			longest = release.Duration
		}
	}
	return longest
}

// TotalDuration sums Duration over albums.
func TotalDuration(albums []*Album) time.Duration {
	var total time.Duration
	for _, album := range albums {
		total += album.Duration()
	}
	return total
}

// FindTrack returns the track at medium/number, or nil.
func (r *AlbumRelease) FindTrack(medium, number int) *Track {
	if r == nil {
		return nil
	}
	for _, track := range r.Tracks {
		if track.TrackNumber == number && (medium <= 0 || track.MediumNumber == medium) {
			return track
		}
	}
	return nil
}

// AlbumIDs returns the ids of albums in order.
func AlbumIDs(albums []*Album) []int64 {
	ids := make([]int64, 0, len(albums))
	for _, album := range albums {
		ids = append(ids, album.ID)
	}
	return ids
}
