package music

import (
	"time"

	"needle/internal/parser"
	"needle/internal/quality"
)

// LocalTrack is a scanned file with what could be read about it.
type LocalTrack struct {
	Path         string
	Size         int64
	Modified     time.Time
	FileInfo     *parser.ParsedTrackInfo
	FolderInfo   *parser.ParsedAlbumInfo
	ClientInfo   *parser.ParsedAlbumInfo
	Quality      quality.Model
	ReleaseGroup string
	SceneName    string
	ExistingFile bool
	Distance     float64

	Artist  *Artist
	Album   *Album
	Release *AlbumRelease
	Tracks  []*Track
}

// AlbumTitleHint returns the best known album title for the file.
func (l *LocalTrack) AlbumTitleHint() string {
	switch {
	case l.ClientInfo != nil && l.ClientInfo.AlbumTitle != "":
		return l.ClientInfo.AlbumTitle
	case l.FolderInfo != nil && l.FolderInfo.AlbumTitle != "":
		return l.FolderInfo.AlbumTitle
	case l.FileInfo != nil:
		return l.FileInfo.AlbumTitle
	}
	return ""
}

// ArtistNameHint returns the best known artist name for the file.
func (l *LocalTrack) ArtistNameHint() string {
	switch {
	case l.ClientInfo != nil && l.ClientInfo.ArtistName != "":
		return l.ClientInfo.ArtistName
	case l.FolderInfo != nil && l.FolderInfo.ArtistName != "":
		return l.FolderInfo.ArtistName
	case l.FileInfo != nil:
		return l.FileInfo.ArtistTitle
	}
	return ""
}

// MinAbsoluteTrackNumber is the smallest absolute number among matched tracks,
// or 0 when none are matched.
func (l *LocalTrack) MinAbsoluteTrackNumber() int {
	smallest := 0
	for i, track := range l.Tracks {
		if i == 0 || track.AbsoluteTrackNumber < smallest {
			smallest = track.AbsoluteTrackNumber
		}
	}
	return smallest
}

// LocalAlbumRelease is a group of local tracks identified as one album release.
type LocalAlbumRelease struct {
	LocalTracks    []*LocalTrack
	Artist         *Artist
	Album          *Album
	Release        *AlbumRelease
	Distance       float64
	ExistingTracks []*TrackFile
	NewDownload    bool
}

// Matched reports whether the group was identified against the catalog.
func (r *LocalAlbumRelease) Matched() bool {
	return r != nil && r.Album != nil && r.Release != nil
}
