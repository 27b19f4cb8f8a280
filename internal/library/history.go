package library

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"needle/internal/history"
	"needle/internal/quality"
)

const historyColumns = "id, event_type, artist_id, album_id, track_id, source_title, quality_id, revision_version, revision_real, revision_repack, download_id, date, data_json"

// InsertHistory stores record and assigns its id.
func (s *Store) InsertHistory(ctx context.Context, record *history.Record) error {
	if record.Date.IsZero() {
		record.Date = time.Now().UTC()
	}
	var data any
	if len(record.Data) > 0 {
		encoded, err := json.Marshal(record.Data)
		if err != nil {
			return fmt.Errorf("marshal history data: %w", err)
		}
		data = string(encoded)
	}
	res, err := s.execWithRetry(ctx,
		`INSERT INTO history (event_type, artist_id, album_id, track_id, source_title, quality_id,
            revision_version, revision_real, revision_repack, download_id, date, data_json)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(record.EventType),
		record.ArtistID,
		record.AlbumID,
		record.TrackID,
		nullableString(record.SourceTitle),
		record.Quality.Quality.ID,
		record.Quality.Revision.Version,
		record.Quality.Revision.Real,
		boolToInt(record.Quality.Revision.IsRepack),
		nullableString(record.DownloadID),
		formatTime(record.Date),
		data,
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	record.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	return nil
}

// HistoryByDownloadID returns the download's records, newest first. Ids are
// compared case-insensitively.
func (s *Store) HistoryByDownloadID(ctx context.Context, downloadID string) ([]*history.Record, error) {
	if downloadID == "" {
		return nil, nil
	}
	return s.historyWhere(ctx, "download_id = ? COLLATE NOCASE", downloadID)
}

// HistoryByAlbum returns the album's records, newest first.
func (s *Store) HistoryByAlbum(ctx context.Context, albumID int64) ([]*history.Record, error) {
	return s.historyWhere(ctx, "album_id = ?", albumID)
}

// HistoryBySourceTitle returns records of a release title, newest first.
func (s *Store) HistoryBySourceTitle(ctx context.Context, sourceTitle string) ([]*history.Record, error) {
	return s.historyWhere(ctx, "source_title = ?", sourceTitle)
}

// HistorySince returns records at or after since, optionally of one type.
func (s *Store) HistorySince(ctx context.Context, since time.Time, eventType history.EventType) ([]*history.Record, error) {
	if eventType == "" {
		return s.historyWhere(ctx, "date >= ?", formatTime(since))
	}
	return s.historyWhere(ctx, "date >= ? AND event_type = ?", formatTime(since), string(eventType))
}

func (s *Store) historyWhere(ctx context.Context, where string, args ...any) ([]*history.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+historyColumns+` FROM history WHERE `+where+` ORDER BY date DESC, id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()
	var records []*history.Record
	for rows.Next() {
		record, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func scanHistory(row scanner) (*history.Record, error) {
	var (
		record      history.Record
		eventType   string
		sourceTitle sql.NullString
		qualityID   int
		revision    quality.Revision
		repack      int
		downloadID  sql.NullString
		date        string
		data        sql.NullString
	)
	if err := row.Scan(
		&record.ID,
		&eventType,
		&record.ArtistID,
		&record.AlbumID,
		&record.TrackID,
		&sourceTitle,
		&qualityID,
		&revision.Version,
		&revision.Real,
		&repack,
		&downloadID,
		&date,
		&data,
	); err != nil {
		return nil, err
	}
	revision.IsRepack = repack != 0
	record.EventType = history.EventType(eventType)
	record.SourceTitle = sourceTitle.String
	record.DownloadID = downloadID.String
	record.Quality = quality.Model{Quality: quality.FindByID(qualityID), Revision: revision}
	if t, err := parseTimeString(date); err == nil {
		record.Date = t
	}
	if data.String != "" {
		if err := json.Unmarshal([]byte(data.String), &record.Data); err != nil {
			return nil, fmt.Errorf("decode data of history %d: %w", record.ID, err)
		}
	}
	return &record, nil
}
