package identification_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"needle/internal/identification"
	"needle/internal/music"
	"needle/internal/parser"
)

type fakeCatalog struct {
	artists     []*music.Artist
	albums      map[int64][]*music.Album
	artistCalls int
	albumCalls  int
	err         error
}

func (f *fakeCatalog) Artists(context.Context) ([]*music.Artist, error) {
	f.artistCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.artists, nil
}

func (f *fakeCatalog) AlbumsByArtist(_ context.Context, id int64) ([]*music.Album, error) {
	f.albumCalls++
	return f.albums[id], nil
}

func track(id int64, medium, number int, title string) *music.Track {
	return &music.Track{ID: id, ArtistID: 1, MediumNumber: medium, TrackNumber: number, AbsoluteTrackNumber: int(id % 100), Title: title}
}

func newCatalog() *fakeCatalog {
	artist := music.NewArtist("Pink Floyd")
	artist.ID = 1

	wall := music.NewAlbum(1, "The Wall")
	wall.ID = 11
	wall.ReleaseDate = time.Date(1979, 11, 30, 0, 0, 0, 0, time.UTC)
	wall.Releases = []*music.AlbumRelease{
		{ID: 111, AlbumID: 11, Title: "The Wall", TrackCount: 4, Monitored: true, Tracks: []*music.Track{
			track(1101, 1, 1, "In the Flesh?"),
			track(1102, 1, 2, "The Thin Ice"),
			track(1103, 2, 1, "Hey You"),
			track(1104, 2, 2, "Is There Anybody Out There?"),
		}},
		{ID: 112, AlbumID: 11, Title: "The Wall (Immersion)", TrackCount: 6, Tracks: []*music.Track{
			track(1201, 1, 1, "In the Flesh?"),
			track(1202, 1, 2, "The Thin Ice"),
			track(1203, 2, 1, "Hey You"),
			track(1204, 2, 2, "Is There Anybody Out There?"),
			track(1205, 3, 1, "Demo 1"),
			track(1206, 3, 2, "Demo 2"),
		}},
	}

	animals := music.NewAlbum(1, "Animals")
	animals.ID = 12
	animals.ReleaseDate = time.Date(1977, 1, 23, 0, 0, 0, 0, time.UTC)
	animals.Releases = []*music.AlbumRelease{
		{ID: 121, AlbumID: 12, Title: "Animals", TrackCount: 3, Monitored: true, Tracks: []*music.Track{
			track(2101, 1, 1, "Pigs on the Wing 1"),
			track(2102, 1, 2, "Dogs"),
			track(2103, 1, 3, "Pigs (Three Different Ones)"),
		}},
	}

	return &fakeCatalog{
		artists: []*music.Artist{artist},
		albums:  map[int64][]*music.Album{1: {wall, animals}},
	}
}

func local(path string) *music.LocalTrack {
	return &music.LocalTrack{
		Path:       path,
		FileInfo:   parser.ParseMusicPath(path),
		FolderInfo: parser.ParseAlbumTitle(filepath.Base(parser.AlbumFolder(path))),
	}
}

func trackIDs(lt *music.LocalTrack) []int64 {
	ids := make([]int64, 0, len(lt.Tracks))
	for _, t := range lt.Tracks {
		ids = append(ids, t.ID)
	}
	return ids
}

func TestIdentifyGroupsFoldersAndMapsTracks(t *testing.T) {
	catalog := newCatalog()
	id := identification.New(catalog, identification.Options{})

	wallDir := "/dl/Pink Floyd - The Wall (1979) [FLAC]"
	animalsDir := "/dl/Pink Floyd - Animals (1977) [FLAC]"
	tracks := []*music.LocalTrack{
		local(wallDir + "/CD1/01 - In the Flesh.flac"),
		local(animalsDir + "/Dogs.flac"),
		local(wallDir + "/CD1/02 - The Thin Ice.flac"),
		local(wallDir + "/CD2/01 - Hey You.flac"),
		local(wallDir + "/CD2/02 - Is There Anybody Out There.flac"),
		local(animalsDir + "/Pigs (Three Different Ones).flac"),
	}

	groups, err := id.Identify(context.Background(), tracks, nil, nil, nil, true)
	if err != nil {
		t.Fatalf("Identify failed: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected two album groups, got %d", len(groups))
	}

	wall := groups[0]
	if !wall.Matched() || wall.Album.ID != 11 || wall.Release.ID != 111 {
		t.Fatalf("expected The Wall standard release, got album=%v release=%v", wall.Album, wall.Release)
	}
	if len(wall.LocalTracks) != 4 || !wall.NewDownload {
		t.Fatalf("expected disc folders merged into one new download group, got %d tracks", len(wall.LocalTracks))
	}
	want := []int64{1101, 1102, 1103, 1104}
	for i, lt := range wall.LocalTracks {
		ids := trackIDs(lt)
		if len(ids) != 1 || ids[0] != want[i] {
			t.Fatalf("track %s mapped to %v, want %d", lt.Path, ids, want[i])
		}
		if lt.Distance > 0.05 {
			t.Fatalf("expected close match for %s, got %.2f", lt.Path, lt.Distance)
		}
		if lt.Artist == nil || lt.Artist.ID != 1 {
			t.Fatalf("expected artist set on %s", lt.Path)
		}
	}

	animals := groups[1]
	if !animals.Matched() || animals.Album.ID != 12 {
		t.Fatalf("expected Animals, got %v", animals.Album)
	}
	if ids := trackIDs(animals.LocalTracks[0]); len(ids) != 1 || ids[0] != 2102 {
		t.Fatalf("expected Dogs matched by title, got %v", ids)
	}
	if ids := trackIDs(animals.LocalTracks[1]); len(ids) != 1 || ids[0] != 2103 {
		t.Fatalf("expected Pigs matched by title, got %v", ids)
	}
}

func TestIdentifyPrefersTitleOverMismatchedNumber(t *testing.T) {
	id := identification.New(newCatalog(), identification.Options{})
	lt := local("/dl/Pink Floyd - The Wall (1979)/02 - Hey You.flac")

	groups, err := id.Identify(context.Background(), []*music.LocalTrack{lt}, nil, nil, nil, true)
	if err != nil {
		t.Fatalf("Identify failed: %v", err)
	}
	if !groups[0].Matched() {
		t.Fatal("expected album match")
	}
	if ids := trackIDs(lt); len(ids) != 1 || ids[0] != 1103 {
		t.Fatalf("expected Hey You, got %v", ids)
	}
}

func TestIdentifyLeavesUnknownArtistUnmatched(t *testing.T) {
	id := identification.New(newCatalog(), identification.Options{})
	lt := local("/dl/Somebody Else - Debut (2001)/01 - Opener.flac")

	groups, err := id.Identify(context.Background(), []*music.LocalTrack{lt}, nil, nil, nil, true)
	if err != nil {
		t.Fatalf("Identify failed: %v", err)
	}
	if len(groups) != 1 || groups[0].Matched() || groups[0].Artist != nil {
		t.Fatalf("expected an unmatched group, got %+v", groups)
	}
	if lt.Distance != 1 || len(lt.Tracks) != 0 {
		t.Fatalf("expected unmatched track, got distance %.2f tracks %v", lt.Distance, lt.Tracks)
	}
}

func TestIdentifyLeavesUnknownAlbumUnmatched(t *testing.T) {
	id := identification.New(newCatalog(), identification.Options{})
	lt := local("/dl/Pink Floyd - Meddle (1971)/01 - One of These Days.flac")

	groups, err := id.Identify(context.Background(), []*music.LocalTrack{lt}, nil, nil, nil, false)
	if err != nil {
		t.Fatalf("Identify failed: %v", err)
	}
	if groups[0].Artist == nil || groups[0].Matched() {
		t.Fatalf("expected artist-only match, got %+v", groups[0])
	}
}

func TestIdentifyHonoursOverridesAndAllowsDuplicates(t *testing.T) {
	catalog := newCatalog()
	id := identification.New(catalog, identification.Options{})
	artist := catalog.artists[0]
	album := catalog.albums[1][0]
	release := album.Releases[1]

	flac := local("/dl/whatever/01 - In the Flesh.flac")
	mp3 := local("/dl/other/01 - In the Flesh.mp3")
	groups, err := id.Identify(context.Background(), []*music.LocalTrack{flac, mp3}, artist, album, release, true)
	if err != nil {
		t.Fatalf("Identify failed: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("expected overrides to keep one group, got %d", len(groups))
	}
	if groups[0].Release.ID != 112 || groups[0].Distance != 0 {
		t.Fatalf("expected pinned release with zero distance, got %+v", groups[0])
	}
	if a, b := trackIDs(flac), trackIDs(mp3); len(a) != 1 || len(b) != 1 || a[0] != 1201 || b[0] != 1201 {
		t.Fatalf("expected both files on the same track, got %v and %v", a, b)
	}
}

func TestIdentifyCachesCatalogLookups(t *testing.T) {
	catalog := newCatalog()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	id := identification.New(catalog, identification.Options{
		CacheTTL: time.Minute,
		Now:      func() time.Time { return now },
	})
	path := "/dl/Pink Floyd - Animals (1977)/Dogs.flac"

	for range 3 {
		if _, err := id.Identify(context.Background(), []*music.LocalTrack{local(path)}, nil, nil, nil, true); err != nil {
			t.Fatalf("Identify failed: %v", err)
		}
	}
	if catalog.artistCalls != 1 || catalog.albumCalls != 1 {
		t.Fatalf("expected cached lookups, got %d artist and %d album calls", catalog.artistCalls, catalog.albumCalls)
	}

	now = now.Add(2 * time.Minute)
	if _, err := id.Identify(context.Background(), []*music.LocalTrack{local(path)}, nil, nil, nil, true); err != nil {
		t.Fatalf("Identify failed: %v", err)
	}
	if catalog.artistCalls != 2 || catalog.albumCalls != 2 {
		t.Fatalf("expected reload after expiry, got %d artist and %d album calls", catalog.artistCalls, catalog.albumCalls)
	}
}

func TestIdentifySurfacesCatalogErrors(t *testing.T) {
	catalog := newCatalog()
	catalog.err = errors.New("database locked")
	id := identification.New(catalog, identification.Options{})

	_, err := id.Identify(context.Background(), []*music.LocalTrack{local("/dl/Pink Floyd - Animals (1977)/Dogs.flac")}, nil, nil, nil, true)
	if err == nil {
		t.Fatal("expected catalog error")
	}
}

func TestCacheExpiresAndPurges(t *testing.T) {
	now := time.Unix(0, 0)
	cache := identification.NewCache[string, int](time.Second, func() time.Time { return now })
	cache.Put("a", 1)
	cache.Put("b", 2)
	if v, ok := cache.Get("a"); !ok || v != 1 {
		t.Fatalf("expected cached value, got %d %v", v, ok)
	}
	now = now.Add(time.Second)
	if _, ok := cache.Get("a"); ok {
		t.Fatal("expected entry to expire at its deadline")
	}
	if remaining := cache.Purge(); remaining != 0 {
		t.Fatalf("expected purge to drop expired entries, %d remain", remaining)
	}

	disabled := identification.NewCache[string, int](0, nil)
	disabled.Put("a", 1)
	if _, ok := disabled.Get("a"); ok {
		t.Fatal("expected zero TTL to disable caching")
	}
}
