package library_test

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"needle/internal/history"
	"needle/internal/library"
	"needle/internal/music"
	"needle/internal/quality"
	"needle/internal/testsupport"
)

func TestOpenReopensAndRejectsOtherSchemaVersion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := library.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	ctx := context.Background()
	artist := music.NewArtist("Pink Floyd")
	if err := store.AddArtist(ctx, artist); err != nil {
		t.Fatalf("AddArtist failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	store, err = library.Open(cfg)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	found, err := store.ArtistByCleanName(ctx, artist.CleanName)
	if err != nil {
		t.Fatalf("ArtistByCleanName failed: %v", err)
	}
	if found == nil || found.ID != artist.ID || !found.Monitored {
		t.Fatalf("unexpected artist after reopen: %#v", found)
	}
	store.Close()

	db, err := sql.Open("sqlite", cfg.DatabasePath())
	if err != nil {
		t.Fatalf("sql.Open failed: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	db.Close()

	if _, err := library.Open(cfg); !errors.Is(err, library.ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}

func TestSeedCatalog(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	result, err := store.SeedCatalog(ctx, strings.NewReader(testsupport.CatalogJSON))
	if err != nil {
		t.Fatalf("SeedCatalog failed: %v", err)
	}
	if result.Artists != 1 || result.Albums != 2 {
		t.Fatalf("unexpected seed result %+v", result)
	}

	artist, err := store.ArtistByCleanName(ctx, "pinkfloyd")
	if err != nil || artist == nil {
		t.Fatalf("expected seeded artist, got %v %v", artist, err)
	}
	albums, err := store.AlbumsByArtist(ctx, artist.ID)
	if err != nil {
		t.Fatalf("AlbumsByArtist failed: %v", err)
	}
	if len(albums) != 2 || albums[0].Title != "Animals" {
		t.Fatalf("expected albums ordered by release date, got %+v", albums)
	}
	animals := albums[0]
	release := animals.MonitoredRelease()
	if release == nil || len(release.Tracks) != 3 || release.Duration != 15*time.Minute {
		t.Fatalf("unexpected Animals release %+v", release)
	}
	if animals.Year() != 1977 || !animals.Monitored {
		t.Fatalf("unexpected Animals album %+v", animals)
	}
	wall, err := store.AlbumByID(ctx, albums[1].ID)
	if err != nil {
		t.Fatalf("AlbumByID failed: %v", err)
	}
	if track := wall.MonitoredRelease().FindTrack(2, 1); track == nil || track.Title != "Hey You" || track.AbsoluteTrackNumber != 3 {
		t.Fatalf("unexpected disc two track %+v", track)
	}

	again, err := store.SeedCatalog(ctx, strings.NewReader(testsupport.CatalogJSON))
	if err != nil {
		t.Fatalf("second SeedCatalog failed: %v", err)
	}
	if again.Artists != 0 || again.Albums != 0 || again.Skipped != 2 {
		t.Fatalf("expected reseeding to add nothing, got %+v", again)
	}

	if _, err := store.SeedCatalog(ctx, strings.NewReader(`{"artists": [{"name": "X", "albums": [{"title": "Y", "releaseDate": "1977"}]}]}`)); err == nil {
		t.Fatal("expected a bad release date to fail")
	}
}

func TestTrackFilesLinkTracks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustSeedStore(t, cfg)
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	wanted, err := store.AlbumsWithoutFiles(ctx, now)
	if err != nil {
		t.Fatalf("AlbumsWithoutFiles failed: %v", err)
	}
	if len(wanted) != 2 {
		t.Fatalf("expected both albums wanted, got %d", len(wanted))
	}

	animals := wanted[0].Album
	tracks := animals.MonitoredRelease().Tracks
	var inserted []*music.TrackFile
	for _, track := range tracks {
		file := &music.TrackFile{
			ArtistID: animals.ArtistID,
			AlbumID:  animals.ID,
			Path:     "/music/Pink Floyd/Animals (1977)/" + track.Title + ".flac",
			Size:     30 << 20,
			Quality:  quality.NewModel(quality.FLAC),
			TrackIDs: []int64{track.ID},
		}
		if err := store.InsertTrackFile(ctx, file); err != nil {
			t.Fatalf("InsertTrackFile failed: %v", err)
		}
		inserted = append(inserted, file)
	}

	files, err := store.TrackFilesByAlbum(ctx, animals.ID)
	if err != nil {
		t.Fatalf("TrackFilesByAlbum failed: %v", err)
	}
	if len(files) != 3 || files[1].TrackIDs[0] != tracks[1].ID || files[1].Quality.Quality != quality.FLAC {
		t.Fatalf("unexpected files %+v", files)
	}
	byPath, err := store.TrackFileByPath(ctx, inserted[0].Path)
	if err != nil || byPath == nil || byPath.ID != inserted[0].ID {
		t.Fatalf("TrackFileByPath returned %+v, %v", byPath, err)
	}

	wanted, err = store.AlbumsWithoutFiles(ctx, now)
	if err != nil {
		t.Fatalf("AlbumsWithoutFiles failed: %v", err)
	}
	if len(wanted) != 1 || wanted[0].Album.Title != "The Wall" || wanted[0].Missing != 4 {
		t.Fatalf("expected only The Wall wanted, got %+v", wanted)
	}

	if err := store.DeleteTrackFile(ctx, inserted[0].ID); err != nil {
		t.Fatalf("DeleteTrackFile failed: %v", err)
	}
	reloaded, err := store.AlbumByID(ctx, animals.ID)
	if err != nil {
		t.Fatalf("AlbumByID failed: %v", err)
	}
	if reloaded.MonitoredRelease().Tracks[0].HasFile() || !reloaded.MonitoredRelease().Tracks[1].HasFile() {
		t.Fatalf("expected only the first track unlinked")
	}
}

func TestCutoffUnmet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustSeedStore(t, cfg)
	ctx := context.Background()
	now := time.Now()

	profiles, err := quality.ProfilesFromConfig(cfg.QualityProfiles)
	if err != nil {
		t.Fatalf("ProfilesFromConfig failed: %v", err)
	}
	animals := albumByTitle(t, store, "Animals")
	for i, track := range animals.MonitoredRelease().Tracks {
		q := quality.FLAC
		if i == 1 {
			q = quality.MP3320
		}
		file := &music.TrackFile{
			ArtistID: animals.ArtistID,
			AlbumID:  animals.ID,
			Path:     "/music/" + track.Title,
			Quality:  quality.NewModel(q),
			TrackIDs: []int64{track.ID},
		}
		if err := store.InsertTrackFile(ctx, file); err != nil {
			t.Fatalf("InsertTrackFile failed: %v", err)
		}
	}

	unmet, err := store.CutoffUnmet(ctx, now, profiles)
	if err != nil {
		t.Fatalf("CutoffUnmet failed: %v", err)
	}
	if len(unmet) != 1 || unmet[0].Album.ID != animals.ID || unmet[0].Lowest != quality.MP3320 {
		t.Fatalf("expected Animals below cutoff at MP3-320, got %+v", unmet)
	}

	profiles[1].UpgradeAllowed = false
	unmet, err = store.CutoffUnmet(ctx, now, profiles)
	if err != nil {
		t.Fatalf("CutoffUnmet failed: %v", err)
	}
	if len(unmet) != 0 {
		t.Fatalf("expected no upgrades when the profile forbids them, got %d", len(unmet))
	}
}

func TestHistoryRepository(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	records := []*history.Record{
		{EventType: history.EventGrabbed, AlbumID: 12, SourceTitle: "Pink Floyd - Animals", DownloadID: "ABC", Date: base,
			Quality: quality.NewModel(quality.FLAC), Data: map[string]string{history.DataIndexer: "static"}},
		{EventType: history.EventTrackImported, AlbumID: 12, TrackID: 1201, DownloadID: "abc", Date: base.Add(time.Minute)},
		{EventType: history.EventDownloadFailed, AlbumID: 11, SourceTitle: "Pink Floyd - The Wall", DownloadID: "def", Date: base.Add(500 * time.Millisecond)},
	}
	for _, record := range records {
		if err := store.InsertHistory(ctx, record); err != nil {
			t.Fatalf("InsertHistory failed: %v", err)
		}
	}

	byDownload, err := store.HistoryByDownloadID(ctx, "abc")
	if err != nil {
		t.Fatalf("HistoryByDownloadID failed: %v", err)
	}
	if len(byDownload) != 2 || byDownload[0].EventType != history.EventTrackImported {
		t.Fatalf("expected two records newest first, got %+v", byDownload)
	}
	grab := byDownload[1]
	if grab.Get(history.DataIndexer) != "static" || grab.Quality.Quality != quality.FLAC || !grab.Date.Equal(base) {
		t.Fatalf("unexpected grab record %+v", grab)
	}

	since, err := store.HistorySince(ctx, base.Add(time.Millisecond), "")
	if err != nil {
		t.Fatalf("HistorySince failed: %v", err)
	}
	if len(since) != 2 || since[1].EventType != history.EventDownloadFailed {
		t.Fatalf("unexpected records since %+v", since)
	}
	grabs, err := store.HistorySince(ctx, base, history.EventGrabbed)
	if err != nil || len(grabs) != 1 {
		t.Fatalf("expected one grab, got %d (%v)", len(grabs), err)
	}

	svc := history.NewService(store, nil, nil)
	failed, err := svc.FailedForRelease(ctx, "Pink Floyd - The Wall", "")
	if err != nil {
		t.Fatalf("FailedForRelease failed: %v", err)
	}
	if len(failed) != 1 || failed[0].AlbumID != 11 {
		t.Fatalf("unexpected failures %+v", failed)
	}
	album, err := store.HistoryByAlbum(ctx, 12)
	if err != nil || len(album) != 2 {
		t.Fatalf("expected two album records, got %d (%v)", len(album), err)
	}
}

func albumByTitle(t *testing.T, store *library.Store, title string) *music.Album {
	t.Helper()
	albums, err := store.Albums(context.Background())
	if err != nil {
		t.Fatalf("Albums failed: %v", err)
	}
	for _, album := range albums {
		if album.Title == title {
			return album
		}
	}
	t.Fatalf("album %q not found", title)
	return nil
}
