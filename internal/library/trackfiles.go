package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"needle/internal/music"
	"needle/internal/quality"
)

const trackFileColumns = "id, artist_id, album_id, path, size, modified_at, date_added, quality_id, revision_version, revision_real, revision_repack, release_group, scene_name, hash"

// TrackFilesByAlbum returns the album's imported files with their track ids.
func (s *Store) TrackFilesByAlbum(ctx context.Context, albumID int64) ([]*music.TrackFile, error) {
	return s.trackFilesWhere(ctx, "album_id = ?", albumID)
}

// TrackFileByPath returns the file imported at path, or nil.
func (s *Store) TrackFileByPath(ctx context.Context, path string) (*music.TrackFile, error) {
	files, err := s.trackFilesWhere(ctx, "path = ?", path)
	if err != nil || len(files) == 0 {
		return nil, err
	}
	return files[0], nil
}

// InsertTrackFile stores file, assigns its id and links file.TrackIDs to it.
// Tracks previously linked to another file are relinked.
func (s *Store) InsertTrackFile(ctx context.Context, file *music.TrackFile) error {
	if file == nil || file.Path == "" {
		return errors.New("track file needs a path")
	}
	if file.DateAdded.IsZero() {
		file.DateAdded = time.Now().UTC()
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO track_files (artist_id, album_id, path, size, modified_at, date_added, quality_id,
                revision_version, revision_real, revision_repack, release_group, scene_name, hash)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			file.ArtistID,
			file.AlbumID,
			file.Path,
			file.Size,
			nullableTime(file.Modified),
			formatTime(file.DateAdded),
			file.Quality.Quality.ID,
			file.Quality.Revision.Version,
			file.Quality.Revision.Real,
			boolToInt(file.Quality.Revision.IsRepack),
			nullableString(file.ReleaseGroup),
			nullableString(file.SceneName),
			nullableString(file.Hash),
		)
		if err != nil {
			return fmt.Errorf("insert track file %s: %w", file.Path, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		if len(file.TrackIDs) > 0 {
			args := append([]any{id}, int64Args(file.TrackIDs)...)
			if _, err := tx.ExecContext(ctx,
				`UPDATE tracks SET track_file_id = ? WHERE id IN (`+makePlaceholders(len(file.TrackIDs))+`)`, args...); err != nil {
				return fmt.Errorf("link tracks: %w", err)
			}
		}
		file.ID = id
		return nil
	})
}

// DeleteTrackFile removes the file record and unlinks its tracks.
func (s *Store) DeleteTrackFile(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE tracks SET track_file_id = NULL WHERE track_file_id = ?`, id); err != nil {
			return fmt.Errorf("unlink tracks: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM track_files WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete track file: %w", err)
		}
		return nil
	})
}

func (s *Store) trackFilesWhere(ctx context.Context, where string, args ...any) ([]*music.TrackFile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+trackFileColumns+` FROM track_files WHERE `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list track files: %w", err)
	}
	var files []*music.TrackFile
	for rows.Next() {
		file, err := scanTrackFile(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan track file: %w", err)
		}
		files = append(files, file)
	}
	err = rows.Err()
	rows.Close()
	if err != nil || len(files) == 0 {
		return files, err
	}

	byID := make(map[int64]*music.TrackFile, len(files))
	ids := make([]int64, 0, len(files))
	for _, file := range files {
		byID[file.ID] = file
		ids = append(ids, file.ID)
	}
	rows, err = s.db.QueryContext(ctx,
		`SELECT id, track_file_id FROM tracks WHERE track_file_id IN (`+makePlaceholders(len(ids))+`) ORDER BY absolute_track_number`, int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("list linked tracks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var trackID, fileID int64
		if err := rows.Scan(&trackID, &fileID); err != nil {
			return nil, fmt.Errorf("scan linked track: %w", err)
		}
		byID[fileID].TrackIDs = append(byID[fileID].TrackIDs, trackID)
	}
	return files, rows.Err()
}

func scanTrackFile(row scanner) (*music.TrackFile, error) {
	var (
		file         music.TrackFile
		modified     sql.NullString
		added        sql.NullString
		qualityID    int
		revision     quality.Revision
		repack       int
		releaseGroup sql.NullString
		sceneName    sql.NullString
		hash         sql.NullString
	)
	if err := row.Scan(
		&file.ID,
		&file.ArtistID,
		&file.AlbumID,
		&file.Path,
		&file.Size,
		&modified,
		&added,
		&qualityID,
		&revision.Version,
		&revision.Real,
		&repack,
		&releaseGroup,
		&sceneName,
		&hash,
	); err != nil {
		return nil, err
	}
	revision.IsRepack = repack != 0
	file.Quality = quality.Model{Quality: quality.FindByID(qualityID), Revision: revision}
	file.Modified = parseNullTime(modified)
	file.DateAdded = parseNullTime(added)
	file.ReleaseGroup = releaseGroup.String
	file.SceneName = sceneName.String
	file.Hash = hash.String
	return &file, nil
}
