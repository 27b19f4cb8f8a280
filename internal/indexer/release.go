package indexer

import (
	"time"

	"needle/internal/music"
)

// Protocol is the transport a release is fetched over.
type Protocol string

const (
	ProtocolUnknown Protocol = ""
	ProtocolTorrent Protocol = "torrent"
	ProtocolUsenet  Protocol = "usenet"
)

// Release is one candidate returned by an indexer. Values are immutable once
// received.
type Release struct {
	GUID            string
	Title           string
	DownloadURL     string
	MagnetURL       string
	InfoHash        string
	InfoURL         string
	Indexer         string
	IndexerPriority int
	MinimumSeeders  int
	Size            int64
	PublishDate     time.Time
	Protocol        Protocol
	Seeders         *int
	Peers           *int
	ArtistHint      string
	AlbumHint       string
	Categories      []int
}

// Age is how long ago the release was published.
func (r *Release) Age(now time.Time) time.Duration {
	if r.PublishDate.IsZero() {
		return 0
	}
	age := now.Sub(r.PublishDate)
	if age < 0 {
		return 0
	}
	return age
}

// AgeDays is Age in whole days.
func (r *Release) AgeDays(now time.Time) int {
	return int(r.Age(now) / (24 * time.Hour))
}

// SearchCriteria narrows a search to one artist and, optionally, albums.
type SearchCriteria struct {
	Artist      *music.Artist
	Albums      []*music.Album
	Discography bool
	UserInvoked bool
	Interactive bool
}

// AlbumTitles returns the titles of the criteria's albums.
func (c *SearchCriteria) AlbumTitles() []string {
	if c == nil {
		return nil
	}
	titles := make([]string, 0, len(c.Albums))
	for _, album := range c.Albums {
		titles = append(titles, album.Title)
	}
	return titles
}
