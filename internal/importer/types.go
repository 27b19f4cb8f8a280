package importer

import (
	"context"
	"strings"
	"time"

	"needle/internal/decision"
	"needle/internal/downloadclient"
	"needle/internal/history"
	"needle/internal/music"
	"needle/internal/parser"
)

// Decision is the import decision over one local file.
type Decision = decision.Decision[*music.LocalTrack]

// ItemInfo is the import context shared by every file of a batch.
type ItemInfo struct {
	NewDownload bool
	Item        *downloadclient.Item
}

// DownloadID returns the originating download id, or "".
func (i *ItemInfo) DownloadID() string {
	if i == nil || i.Item == nil {
		return ""
	}
	return i.Item.DownloadID
}

// IsNewDownload is a nil-safe read of NewDownload.
func (i *ItemInfo) IsNewDownload() bool { return i != nil && i.NewDownload }

// AlbumSpecification judges an identified album release as a whole.
type AlbumSpecification = decision.Specification[*music.LocalAlbumRelease, *ItemInfo]

// TrackSpecification judges one identified file.
type TrackSpecification = decision.Specification[*music.LocalTrack, *ItemInfo]

// Overrides pin identification to a known artist, album or release.
type Overrides struct {
	Artist  *music.Artist
	Album   *music.Album
	Release *music.AlbumRelease
	// Folder is the parsed folder name, used when files sit directly in a
	// download without album folders.
	Folder *parser.ParsedAlbumInfo
}

// Config controls a decision pass.
type Config struct {
	NewDownload bool
	// Filter drops files that are already known to the library.
	Filter bool
}

// ResultType classifies what happened to one decision.
type ResultType string

const (
	Imported ResultType = "imported"
	Skipped  ResultType = "skipped"
	Rejected ResultType = "rejected"
)

// Result is the outcome of one import decision.
type Result struct {
	Decision *Decision
	Type     ResultType
	Errors   []string
	File     *music.TrackFile
}

// Successful reports whether the file reached the library.
func (r *Result) Successful() bool { return r.Type == Imported }

// DuplicateOrExtra reports whether a rejected result only marks a file the
// library already holds, or a file that maps to no track.
func (r *Result) DuplicateOrExtra() bool {
	if r.Type != Rejected || len(r.Errors) == 0 {
		return false
	}
	for _, reason := range r.Errors {
		switch {
		case reason == ReasonAlreadyImported, reason == reasonSameFile:
		case strings.HasPrefix(reason, reasonImportedAtPrefix), strings.HasPrefix(reason, reasonNoTracksPrefix):
		default:
			return false
		}
	}
	return true
}

// FileRepository persists library track files.
type FileRepository interface {
	TrackFilesByAlbum(ctx context.Context, albumID int64) ([]*music.TrackFile, error)
	TrackFileByPath(ctx context.Context, path string) (*music.TrackFile, error)
	// InsertTrackFile assigns file.ID and links file.TrackIDs to it.
	InsertTrackFile(ctx context.Context, file *music.TrackFile) error
	// DeleteTrackFile removes the file and unlinks its tracks.
	DeleteTrackFile(ctx context.Context, id int64) error
}

// HistoryProvider reads import history by download id.
type HistoryProvider interface {
	FindByDownloadID(ctx context.Context, downloadID string) ([]*history.Record, error)
}

// Identifier clusters local tracks and matches them to the catalog.
type Identifier interface {
	Identify(ctx context.Context, tracks []*music.LocalTrack, artist *music.Artist, album *music.Album, release *music.AlbumRelease, newDownload bool) ([]*music.LocalAlbumRelease, error)
}

// TagReader extracts track metadata from a file.
type TagReader interface {
	ReadTags(ctx context.Context, path string) (*parser.ParsedTrackInfo, error)
}

type clock func() time.Time

func (c clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c()
}
