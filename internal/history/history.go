package history

import (
	"context"
	"time"

	"needle/internal/quality"
)

// EventType names what a record describes.
type EventType string

const (
	EventGrabbed          EventType = "grabbed"
	EventTrackImported    EventType = "track_imported"
	EventDownloadFailed   EventType = "download_failed"
	EventDownloadImported EventType = "download_imported"
	EventImportIncomplete EventType = "import_incomplete"
	EventTrackDeleted     EventType = "track_deleted"
)

// Data keys used on records.
const (
	DataIndexer           = "indexer"
	DataProtocol          = "protocol"
	DataClient            = "client"
	DataSize              = "size"
	DataCustomFormatScore = "custom_format_score"
	DataMessage           = "message"
	DataPath              = "path"
	DataCategory          = "category"
)

// Record is one history row.
type Record struct {
	ID          int64
	EventType   EventType
	ArtistID    int64
	AlbumID     int64
	TrackID     int64
	SourceTitle string
	Quality     quality.Model
	DownloadID  string
	Date        time.Time
	Data        map[string]string
}

// Get returns a data value or "".
func (r *Record) Get(key string) string {
	if r == nil || r.Data == nil {
		return ""
	}
	return r.Data[key]
}

// Repository persists history. Lists are returned newest first.
type Repository interface {
	InsertHistory(ctx context.Context, record *Record) error
	HistoryByDownloadID(ctx context.Context, downloadID string) ([]*Record, error)
	HistoryByAlbum(ctx context.Context, albumID int64) ([]*Record, error)
	HistoryBySourceTitle(ctx context.Context, sourceTitle string) ([]*Record, error)
	HistorySince(ctx context.Context, since time.Time, eventType EventType) ([]*Record, error)
}
