package events

import (
	"time"

	"needle/internal/decision"
	"needle/internal/downloadclient"
	"needle/internal/music"
)

// Event is anything published on the bus.
type Event interface {
	EventName() string
}

// AlbumGrabbed is published after a download client accepted a release.
type AlbumGrabbed struct {
	Remote     *decision.RemoteAlbum
	Client     string
	Category   string
	DownloadID string
	Date       time.Time
}

// TrackImported is published for every file written into the library.
type TrackImported struct {
	Track       *music.LocalTrack
	File        *music.TrackFile
	Superseded  []*music.TrackFile
	NewDownload bool
	DownloadID  string
	Client      string
}

// AlbumImported is published once per album touched by an import batch.
type AlbumImported struct {
	Artist      *music.Artist
	Album       *music.Album
	Release     *music.AlbumRelease
	Files       []*music.TrackFile
	Superseded  []*music.TrackFile
	NewDownload bool
	DownloadID  string
	Client      string
}

// DownloadCompleted is published when a tracked download reaches imported.
type DownloadCompleted struct {
	DownloadID  string
	Client      string
	SourceTitle string
	Artist      *music.Artist
	Albums      []*music.Album
	Item        downloadclient.Item
}

// DownloadFailed is published when the client reports a failed download.
type DownloadFailed struct {
	DownloadID  string
	Client      string
	SourceTitle string
	Indexer     string
	Message     string
	ArtistID    int64
	AlbumIDs    []int64
}

// DownloadImportIncomplete is published when an import left tracks behind.
type DownloadImportIncomplete struct {
	DownloadID  string
	Client      string
	SourceTitle string
	ArtistID    int64
	AlbumIDs    []int64
	Message     string
}

func (AlbumGrabbed) EventName() string             { return "album_grabbed" }
func (TrackImported) EventName() string            { return "track_imported" }
func (AlbumImported) EventName() string            { return "album_imported" }
func (DownloadCompleted) EventName() string        { return "download_completed" }
func (DownloadFailed) EventName() string           { return "download_failed" }
func (DownloadImportIncomplete) EventName() string { return "download_import_incomplete" }
