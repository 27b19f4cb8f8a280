package decision

import (
	"time"

	"needle/internal/indexer"
	"needle/internal/music"
	"needle/internal/parser"
)

// RemoteAlbum is a release matched against the library and scored.
type RemoteAlbum struct {
	Release           *indexer.Release
	ParsedInfo        *parser.ParsedAlbumInfo
	Artist            *music.Artist
	Albums            []*music.Album
	CustomFormats     []string
	CustomFormatScore int
	DownloadAllowed   bool
}

// Duration is the combined duration of the matched albums.
func (r *RemoteAlbum) Duration() time.Duration {
	return music.TotalDuration(r.Albums)
}

// AlbumIDs returns the ids of the matched albums.
func (r *RemoteAlbum) AlbumIDs() []int64 {
	return music.AlbumIDs(r.Albums)
}

// ReleaseDecision is a decision over a remote album.
type ReleaseDecision = Decision[*RemoteAlbum]

// ReleaseSpecification evaluates a remote album, optionally within a search.
type ReleaseSpecification = Specification[*RemoteAlbum, *indexer.SearchCriteria]
