package music_test

import (
	"testing"
	"time"

	"needle/internal/music"
)

func TestAlbumDuration(t *testing.T) {
	album := music.NewAlbum(1, "The Wall")
	album.Releases = []*music.AlbumRelease{
		{Title: "CD", Duration: 80 * time.Minute, Monitored: true},
		{Title: "Deluxe", Duration: 120 * time.Minute},
	}
	if got := album.Duration(); got != 80*time.Minute {
		t.Fatalf("expected monitored release duration, got %v", got)
	}
	album.AnyReleaseOK = true
	if got := album.Duration(); got != 120*time.Minute {
		t.Fatalf("expected longest release when any release is ok, got %v", got)
	}
	if album.MonitoredRelease().Title != "CD" {
		t.Fatal("expected monitored release")
	}
	if album.CleanTitle != "wall" {
		t.Fatalf("unexpected clean title %q", album.CleanTitle)
	}
}

func TestFindTrackAndMinAbsolute(t *testing.T) {
	release := &music.AlbumRelease{Tracks: []*music.Track{
		{ID: 1, MediumNumber: 1, TrackNumber: 1, AbsoluteTrackNumber: 1},
		{ID: 2, MediumNumber: 2, TrackNumber: 1, AbsoluteTrackNumber: 14},
	}}
	if track := release.FindTrack(2, 1); track == nil || track.ID != 2 {
		t.Fatalf("unexpected track %+v", track)
	}
	if release.FindTrack(3, 1) != nil {
		t.Fatal("expected no track on medium 3")
	}
	local := &music.LocalTrack{Tracks: release.Tracks}
	if local.MinAbsoluteTrackNumber() != 1 {
		t.Fatalf("unexpected min %d", local.MinAbsoluteTrackNumber())
	}
}
