package library

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"needle/internal/music"
	"needle/internal/textutil"
)

const (
	artistColumns  = "id, name, clean_name, path, monitored, quality_profile_id, tags_json, added_at"
	albumColumns   = "id, artist_id, title, clean_title, release_date, album_type, monitored, any_release_ok"
	releaseColumns = "id, album_id, title, track_count, duration_ms, monitored"
	trackColumns   = "id, artist_id, album_id, album_release_id, medium_number, track_number, absolute_track_number, title, duration_ms, track_file_id"
)

// AddArtist inserts artist and assigns its id.
func (s *Store) AddArtist(ctx context.Context, artist *music.Artist) error {
	if artist == nil || strings.TrimSpace(artist.Name) == "" {
		return errors.New("artist name is required")
	}
	if artist.CleanName == "" {
		artist.CleanName = textutil.CleanName(artist.Name)
	}
	if artist.Added.IsZero() {
		artist.Added = time.Now().UTC()
	}
	if artist.QualityProfileID == 0 {
		artist.QualityProfileID = 1
	}
	tags, err := json.Marshal(artist.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	res, err := s.execWithRetry(ctx,
		`INSERT INTO artists (name, clean_name, path, monitored, quality_profile_id, tags_json, added_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		artist.Name,
		artist.CleanName,
		nullableString(artist.Path),
		boolToInt(artist.Monitored),
		artist.QualityProfileID,
		string(tags),
		formatTime(artist.Added),
	)
	if err != nil {
		return fmt.Errorf("insert artist %q: %w", artist.Name, err)
	}
	artist.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	return nil
}

// AddAlbum inserts album with its releases and tracks in one transaction and
// assigns every id.
func (s *Store) AddAlbum(ctx context.Context, album *music.Album) error {
	if album == nil || album.ArtistID == 0 || strings.TrimSpace(album.Title) == "" {
		return errors.New("album needs an artist and a title")
	}
	if album.CleanTitle == "" {
		album.CleanTitle = textutil.CleanName(album.Title)
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO albums (artist_id, title, clean_title, release_date, album_type, monitored, any_release_ok)
            VALUES (?, ?, ?, ?, ?, ?, ?)`,
			album.ArtistID,
			album.Title,
			album.CleanTitle,
			nullableTime(album.ReleaseDate),
			nullableString(album.AlbumType),
			boolToInt(album.Monitored),
			boolToInt(album.AnyReleaseOK),
		)
		if err != nil {
			return fmt.Errorf("insert album %q: %w", album.Title, err)
		}
		if album.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		for _, release := range album.Releases {
			if err := insertRelease(ctx, tx, album, release); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertRelease(ctx context.Context, tx *sql.Tx, album *music.Album, release *music.AlbumRelease) error {
	release.AlbumID = album.ID
	if release.TrackCount == 0 {
		release.TrackCount = len(release.Tracks)
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO album_releases (album_id, title, track_count, duration_ms, monitored) VALUES (?, ?, ?, ?, ?)`,
		album.ID,
		release.Title,
		release.TrackCount,
		release.Duration.Milliseconds(),
		boolToInt(release.Monitored),
	)
	if err != nil {
		return fmt.Errorf("insert release %q: %w", release.Title, err)
	}
	if release.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	for i, track := range release.Tracks {
		track.ArtistID = album.ArtistID
		track.AlbumID = album.ID
		track.AlbumReleaseID = release.ID
		if track.MediumNumber == 0 {
			track.MediumNumber = 1
		}
		if track.AbsoluteTrackNumber == 0 {
			track.AbsoluteTrackNumber = i + 1
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO tracks (artist_id, album_id, album_release_id, medium_number, track_number, absolute_track_number, title, duration_ms, track_file_id)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			track.ArtistID,
			track.AlbumID,
			track.AlbumReleaseID,
			track.MediumNumber,
			track.TrackNumber,
			track.AbsoluteTrackNumber,
			track.Title,
			track.Duration.Milliseconds(),
			nullableID(track.TrackFileID),
		)
		if err != nil {
			return fmt.Errorf("insert track %q: %w", track.Title, err)
		}
		if track.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
	}
	return nil
}

// Artists returns every artist ordered by name.
func (s *Store) Artists(ctx context.Context) ([]*music.Artist, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+artistColumns+` FROM artists ORDER BY clean_name`)
	if err != nil {
		return nil, fmt.Errorf("list artists: %w", err)
	}
	defer rows.Close()
	var artists []*music.Artist
	for rows.Next() {
		artist, err := scanArtist(rows)
		if err != nil {
			return nil, fmt.Errorf("scan artist: %w", err)
		}
		artists = append(artists, artist)
	}
	return artists, rows.Err()
}

// ArtistByID returns the artist with id, or nil.
func (s *Store) ArtistByID(ctx context.Context, id int64) (*music.Artist, error) {
	return s.artistWhere(ctx, "id = ?", id)
}

// ArtistByCleanName returns the artist with the given clean name, or nil.
func (s *Store) ArtistByCleanName(ctx context.Context, cleanName string) (*music.Artist, error) {
	if cleanName == "" {
		return nil, nil
	}
	return s.artistWhere(ctx, "clean_name = ?", cleanName)
}

func (s *Store) artistWhere(ctx context.Context, where string, args ...any) (*music.Artist, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+artistColumns+` FROM artists WHERE `+where, args...)
	artist, err := scanArtist(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get artist: %w", err)
	}
	return artist, nil
}

// AlbumsByArtist returns the artist's albums with releases and tracks.
func (s *Store) AlbumsByArtist(ctx context.Context, artistID int64) ([]*music.Album, error) {
	return s.albumsWhere(ctx, "artist_id = ?", artistID)
}

// AlbumByID returns the album with id, or nil.
func (s *Store) AlbumByID(ctx context.Context, id int64) (*music.Album, error) {
	albums, err := s.albumsWhere(ctx, "id = ?", id)
	if err != nil || len(albums) == 0 {
		return nil, err
	}
	return albums[0], nil
}

// Albums returns every album with releases and tracks.
func (s *Store) Albums(ctx context.Context) ([]*music.Album, error) {
	return s.albumsWhere(ctx, "1 = 1")
}

// SetAlbumMonitored flips the monitored flag of an album.
func (s *Store) SetAlbumMonitored(ctx context.Context, albumID int64, monitored bool) error {
	res, err := s.execWithRetry(ctx, `UPDATE albums SET monitored = ? WHERE id = ?`, boolToInt(monitored), albumID)
	if err != nil {
		return fmt.Errorf("update album: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("album %d not found", albumID)
	}
	return nil
}

func (s *Store) albumsWhere(ctx context.Context, where string, args ...any) ([]*music.Album, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+albumColumns+` FROM albums WHERE `+where+` ORDER BY release_date, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list albums: %w", err)
	}
	var albums []*music.Album
	for rows.Next() {
		album, err := scanAlbum(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan album: %w", err)
		}
		albums = append(albums, album)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}
	if err := s.loadReleases(ctx, albums); err != nil {
		return nil, err
	}
	return albums, nil
}

// loadReleases attaches releases and tracks to albums.
func (s *Store) loadReleases(ctx context.Context, albums []*music.Album) error {
	if len(albums) == 0 {
		return nil
	}
	byID := make(map[int64]*music.Album, len(albums))
	ids := make([]int64, 0, len(albums))
	for _, album := range albums {
		byID[album.ID] = album
		ids = append(ids, album.ID)
	}
	placeholders := makePlaceholders(len(ids))

	releases := make(map[int64]*music.AlbumRelease)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+releaseColumns+` FROM album_releases WHERE album_id IN (`+placeholders+`) ORDER BY id`, int64Args(ids)...)
	if err != nil {
		return fmt.Errorf("list releases: %w", err)
	}
	for rows.Next() {
		release, err := scanRelease(rows)
		if err != nil {
			rows.Close()
			return fmt.Errorf("scan release: %w", err)
		}
		releases[release.ID] = release
		album := byID[release.AlbumID]
		album.Releases = append(album.Releases, release)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return err
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT `+trackColumns+` FROM tracks WHERE album_id IN (`+placeholders+`) ORDER BY album_release_id, absolute_track_number`, int64Args(ids)...)
	if err != nil {
		return fmt.Errorf("list tracks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return fmt.Errorf("scan track: %w", err)
		}
		if release := releases[track.AlbumReleaseID]; release != nil {
			release.Tracks = append(release.Tracks, track)
		}
	}
	return rows.Err()
}

func scanArtist(row scanner) (*music.Artist, error) {
	var (
		artist    music.Artist
		path      sql.NullString
		monitored int
		tags      sql.NullString
		added     sql.NullString
	)
	if err := row.Scan(&artist.ID, &artist.Name, &artist.CleanName, &path, &monitored, &artist.QualityProfileID, &tags, &added); err != nil {
		return nil, err
	}
	artist.Path = path.String
	artist.Monitored = monitored != 0
	artist.Added = parseNullTime(added)
	if tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &artist.Tags); err != nil {
			return nil, fmt.Errorf("decode tags of artist %d: %w", artist.ID, err)
		}
	}
	return &artist, nil
}

func scanAlbum(row scanner) (*music.Album, error) {
	var (
		album        music.Album
		releaseDate  sql.NullString
		albumType    sql.NullString
		monitored    int
		anyReleaseOK int
	)
	if err := row.Scan(&album.ID, &album.ArtistID, &album.Title, &album.CleanTitle, &releaseDate, &albumType, &monitored, &anyReleaseOK); err != nil {
		return nil, err
	}
	album.ReleaseDate = parseNullTime(releaseDate)
	album.AlbumType = albumType.String
	album.Monitored = monitored != 0
	album.AnyReleaseOK = anyReleaseOK != 0
	return &album, nil
}

func scanRelease(row scanner) (*music.AlbumRelease, error) {
	var (
		release    music.AlbumRelease
		durationMS int64
		monitored  int
	)
	if err := row.Scan(&release.ID, &release.AlbumID, &release.Title, &release.TrackCount, &durationMS, &monitored); err != nil {
		return nil, err
	}
	release.Duration = time.Duration(durationMS) * time.Millisecond
	release.Monitored = monitored != 0
	return &release, nil
}

func scanTrack(row scanner) (*music.Track, error) {
	var (
		track      music.Track
		durationMS int64
		fileID     sql.NullInt64
	)
	if err := row.Scan(
		&track.ID,
		&track.ArtistID,
		&track.AlbumID,
		&track.AlbumReleaseID,
		&track.MediumNumber,
		&track.TrackNumber,
		&track.AbsoluteTrackNumber,
		&track.Title,
		&durationMS,
		&fileID,
	); err != nil {
		return nil, err
	}
	track.Duration = time.Duration(durationMS) * time.Millisecond
	track.TrackFileID = fileID.Int64
	return &track, nil
}
