package history_test

import (
	"context"
	"testing"
	"time"

	"needle/internal/decision"
	"needle/internal/events"
	"needle/internal/history"
	"needle/internal/indexer"
	"needle/internal/music"
	"needle/internal/parser"
	"needle/internal/quality"
)

func newService(t *testing.T) (*history.Service, *events.Bus, *time.Time) {
	t.Helper()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := history.NewService(history.NewMemoryRepository(), nil, func() time.Time { return now })
	bus := events.NewBus(nil)
	svc.Subscribe(bus)
	return svc, bus, &now
}

func grabbed(title, downloadID string, albumIDs ...int64) events.AlbumGrabbed {
	artist := &music.Artist{ID: 1, Name: "Artist"}
	var albums []*music.Album
	for _, id := range albumIDs {
		albums = append(albums, &music.Album{ID: id, ArtistID: 1})
	}
	return events.AlbumGrabbed{
		Remote: &decision.RemoteAlbum{
			Release:           &indexer.Release{Title: title, Indexer: "feed", Protocol: indexer.ProtocolTorrent, Size: 42},
			ParsedInfo:        &parser.ParsedAlbumInfo{Quality: quality.NewModel(quality.FLAC)},
			Artist:            artist,
			Albums:            albums,
			CustomFormatScore: 5,
		},
		Client:     "hole",
		Category:   "music",
		DownloadID: downloadID,
	}
}

func TestServiceRecordsGrabPerAlbum(t *testing.T) {
	svc, bus, _ := newService(t)
	ctx := context.Background()
	bus.Publish(ctx, grabbed("Artist - Discography", "abc", 10, 11))

	records, err := svc.FindByDownloadID(ctx, "ABC")
	if err != nil {
		t.Fatalf("FindByDownloadID failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected one record per album, got %d", len(records))
	}
	r := records[0]
	if r.EventType != history.EventGrabbed || r.Quality.Quality != quality.FLAC {
		t.Fatalf("unexpected record %+v", r)
	}
	if r.Get(history.DataIndexer) != "feed" || r.Get(history.DataCategory) != "music" || r.Get(history.DataCustomFormatScore) != "5" {
		t.Fatalf("unexpected record data %+v", r.Data)
	}
	recent, err := svc.MostRecentForAlbum(ctx, 11)
	if err != nil || recent == nil || recent.DownloadID != "abc" {
		t.Fatalf("MostRecentForAlbum failed: %v %+v", err, recent)
	}
	if none, err := svc.MostRecentForDownloadID(ctx, ""); err != nil || none != nil {
		t.Fatalf("expected no record for empty id, got %+v %v", none, err)
	}
}

func TestServiceOrdersNewestFirst(t *testing.T) {
	svc, bus, now := newService(t)
	ctx := context.Background()
	bus.Publish(ctx, grabbed("Artist - Album", "one", 10))
	*now = now.Add(time.Hour)
	bus.Publish(ctx, events.DownloadCompleted{DownloadID: "one", SourceTitle: "Artist - Album", Albums: []*music.Album{{ID: 10}}})

	latest, err := svc.MostRecentForDownloadID(ctx, "one")
	if err != nil {
		t.Fatalf("MostRecentForDownloadID failed: %v", err)
	}
	if latest.EventType != history.EventDownloadImported {
		t.Fatalf("expected imported record first, got %s", latest.EventType)
	}
	grabs, err := svc.GrabbedSince(ctx, now.Add(-2*time.Hour))
	if err != nil || len(grabs) != 1 {
		t.Fatalf("GrabbedSince: %v %d", err, len(grabs))
	}
}

func TestServiceFailedForRelease(t *testing.T) {
	svc, bus, _ := newService(t)
	ctx := context.Background()
	bus.Publish(ctx, events.DownloadFailed{DownloadID: "x", SourceTitle: "Bad - Release", Indexer: "feed", Message: "stalled", AlbumIDs: []int64{3}})

	for _, tc := range []struct {
		indexer string
		want    int
	}{{"", 1}, {"FEED", 1}, {"other", 0}} {
		records, err := svc.FailedForRelease(ctx, "Bad - Release", tc.indexer)
		if err != nil {
			t.Fatalf("FailedForRelease failed: %v", err)
		}
		if len(records) != tc.want {
			t.Fatalf("indexer %q: expected %d records, got %d", tc.indexer, tc.want, len(records))
		}
	}
}

func TestServiceRecordsImportsAndSupersededFiles(t *testing.T) {
	svc, bus, _ := newService(t)
	ctx := context.Background()
	bus.Publish(ctx, events.TrackImported{
		File:       &music.TrackFile{AlbumID: 4, ArtistID: 1, Path: "/lib/a.flac", TrackIDs: []int64{7}, Quality: quality.NewModel(quality.FLAC)},
		Superseded: []*music.TrackFile{{AlbumID: 4, Path: "/lib/a.mp3", TrackIDs: []int64{7}}},
		DownloadID: "dl",
	})
	records, err := svc.ForAlbum(ctx, 4)
	if err != nil {
		t.Fatalf("ForAlbum failed: %v", err)
	}
	types := map[history.EventType]int{}
	for _, r := range records {
		types[r.EventType]++
	}
	if types[history.EventTrackImported] != 1 || types[history.EventTrackDeleted] != 1 {
		t.Fatalf("unexpected records %v", types)
	}
}
