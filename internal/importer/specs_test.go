package importer_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"needle/internal/config"
	"needle/internal/decision"
	"needle/internal/downloadclient"
	"needle/internal/history"
	"needle/internal/importer"
	"needle/internal/music"
	"needle/internal/quality"
	"needle/internal/testsupport"
)

type fakeHistory struct {
	records []*history.Record
	err     error
}

func (f fakeHistory) FindByDownloadID(context.Context, string) ([]*history.Record, error) {
	return f.records, f.err
}

func TestTrackSpecifications(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	catalog := testsupport.NewCatalog()
	album := catalog.Album(12)
	dogs := album.Releases[0].Tracks[1]

	track := func(mutate func(*music.LocalTrack)) *music.LocalTrack {
		lt := &music.LocalTrack{
			Path:     "/downloads/Pink Floyd - Animals/02 - Dogs.flac",
			Size:     50 << 20,
			Modified: now.Add(-time.Hour),
			Quality:  quality.NewModel(quality.FLAC),
			Artist:   catalog.Artist(),
			Album:    album,
			Release:  album.Releases[0],
			Tracks:   []*music.Track{dogs},
		}
		if mutate != nil {
			mutate(lt)
		}
		return lt
	}
	unpacking := func(modified time.Time) *music.LocalTrack {
		return track(func(lt *music.LocalTrack) {
			lt.Path = "/downloads/_UNPACK_Animals/02 - Dogs.flac"
			lt.Modified = modified
		})
	}
	existing := func(size int64, q quality.Quality) *testsupport.Files {
		return testsupport.NewFiles(&music.TrackFile{AlbumID: 12, Path: "/music/Pink Floyd/Animals (1977)/02 - Dogs.mp3", Size: size, Quality: quality.NewModel(q), TrackIDs: []int64{1202}})
	}
	item := &importer.ItemInfo{NewDownload: true, Item: &downloadclient.Item{DownloadID: "abc"}}
	imported := &history.Record{EventType: history.EventTrackImported, TrackID: 1202, DownloadID: "abc", Date: now.Add(-time.Minute)}
	grabbed := &history.Record{EventType: history.EventGrabbed, AlbumID: 12, DownloadID: "abc", Date: now.Add(-time.Hour)}

	cases := []struct {
		name  string
		spec  importer.TrackSpecification
		track *music.LocalTrack
		item  *importer.ItemInfo
		want  string
		temp  bool
	}{
		{
			name:  "unpacking folder",
			spec:  importer.NotUnpacking{},
			track: unpacking(time.Now()),
			item:  item,
			want:  "File is still being unpacked",
			temp:  true,
		},
		{
			name:  "unpacked long ago",
			spec:  importer.NotUnpacking{},
			track: unpacking(time.Now().Add(-time.Hour)),
			item:  item,
		},
		{
			name:  "close track match",
			spec:  importer.CloseTrackMatch{Threshold: 0.3},
			track: track(func(lt *music.LocalTrack) { lt.Distance = 0.1 }),
			item:  item,
		},
		{
			name:  "distant track match",
			spec:  importer.CloseTrackMatch{Threshold: 0.3},
			track: track(func(lt *music.LocalTrack) { lt.Distance = 0.5 }),
			item:  item,
			want:  "Track match is not close enough: 50.0% vs 70.0%",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := tc.spec.Evaluate(context.Background(), tc.track, tc.item)
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}
			if result.Reason != tc.want {
				t.Fatalf("got %q, want %q", result.Reason, tc.want)
			}
			if tc.want != "" && (result.Category == decision.Temporary) != tc.temp {
				t.Fatalf("unexpected category %q", result.Category)
			}
		})
	}

	deps := func(files *testsupport.Files, hist importer.HistoryProvider) importer.SpecDependencies {
		return importer.SpecDependencies{Profiles: profiles(t), Files: files, History: hist, Now: func() time.Time { return now }}
	}
	evaluate := func(specs []importer.TrackSpecification, lt *music.LocalTrack, item *importer.ItemInfo) []string {
		var reasons []string
		for _, r := range decision.Evaluate(context.Background(), nil, specs, lt, item) {
			reasons = append(reasons, r.Reason)
		}
		return reasons
	}

	specs := importer.DefaultTrackSpecifications(deps(existing(50<<20, quality.MP3320), nil))
	if got := evaluate(specs, track(nil), item); len(got) != 1 || got[0] != "Has the same filesize as existing file" {
		t.Fatalf("expected same-size rejection, got %v", got)
	}

	specs = importer.DefaultTrackSpecifications(deps(existing(10, quality.FLAC24), nil))
	if got := evaluate(specs, track(nil), item); len(got) != 1 || got[0] != "Not an upgrade for existing track file(s)" {
		t.Fatalf("expected downgrade rejection, got %v", got)
	}

	specs = importer.DefaultTrackSpecifications(deps(testsupport.NewFiles(), fakeHistory{records: []*history.Record{imported, grabbed}}))
	if got := evaluate(specs, track(nil), item); len(got) != 1 || !strings.HasPrefix(got[0], "Track already imported at") {
		t.Fatalf("expected already-imported rejection, got %v", got)
	}

	regrabbed := &history.Record{EventType: history.EventGrabbed, AlbumID: 12, DownloadID: "abc", Date: now}
	specs = importer.DefaultTrackSpecifications(deps(testsupport.NewFiles(), fakeHistory{records: []*history.Record{regrabbed, imported}}))
	if got := evaluate(specs, track(nil), item); len(got) != 0 {
		t.Fatalf("expected a newer grab to allow import again, got %v", got)
	}

	specs = importer.DefaultTrackSpecifications(deps(testsupport.NewFiles(), fakeHistory{err: errors.New("database is locked")}))
	if got := evaluate(specs, track(nil), item); len(got) != 1 || got[0] != "AlreadyImported: load history: database is locked" {
		t.Fatalf("expected collaborator error as named rejection, got %v", got)
	}
}

func TestFreeSpaceSpecification(t *testing.T) {
	lt := &music.LocalTrack{Path: "/downloads/a.flac", Size: 100 << 20, Artist: &music.Artist{Path: "/music/Artist"}}
	cases := []struct {
		name string
		free uint64
		err  error
		want string
	}{
		{"plenty", 10 << 30, nil, ""},
		{"too small", 50 << 20, nil, "Not enough free space"},
		{"below floor", 150 << 20, nil, "Not enough free space to import: 50 MiB would be left, 100 MiB required"},
		{"unknown", 0, errors.New("no such device"), ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var asked string
			specs := importer.DefaultTrackSpecifications(importer.SpecDependencies{
				Import:     config.Import{MinimumFreeSpaceMB: 100},
				LibraryDir: "/music",
				FreeSpace: func(path string) (uint64, error) {
					asked = path
					return tc.free, tc.err
				},
			})
			var spec importer.TrackSpecification
			for _, s := range specs {
				if s.Name() == "FreeSpace" {
					spec = s
				}
			}
			result, err := spec.Evaluate(context.Background(), lt, &importer.ItemInfo{NewDownload: true})
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}
			if result.Reason != tc.want {
				t.Fatalf("got %q, want %q", result.Reason, tc.want)
			}
			if asked != "/music/Artist" {
				t.Fatalf("expected the artist folder to be checked, got %q", asked)
			}
		})
	}
}

func TestAlbumSpecifications(t *testing.T) {
	catalog := testsupport.NewCatalog()
	album := catalog.Album(12)
	group := func(distance float64, newDownload bool) *music.LocalAlbumRelease {
		return &music.LocalAlbumRelease{
			LocalTracks: []*music.LocalTrack{{Path: "/downloads/Pink Floyd - Animals/02 - Dogs.flac"}},
			Artist:      catalog.Artist(),
			Album:       album,
			Release:     album.Releases[0],
			Distance:    distance,
			NewDownload: newDownload,
		}
	}
	cases := []struct {
		name    string
		release *music.LocalAlbumRelease
		want    string
	}{
		{"close", group(0.1, true), ""},
		{"distant download", group(0.3, true), "Album match is not close enough: 70.0% vs 80.0%"},
		{"distant library file", group(0.3, false), ""},
		{"no artist", &music.LocalAlbumRelease{LocalTracks: []*music.LocalTrack{{Path: "/downloads/Unknown - Album/01.flac"}}, Distance: 1, NewDownload: false}, "Couldn't find similar artist for Unknown - Album"},
	}
	specs := importer.DefaultAlbumSpecifications(importer.SpecDependencies{Import: config.Import{AlbumMatchThreshold: 0.2}})
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rejections := decision.Evaluate(context.Background(), nil, specs, tc.release, &importer.ItemInfo{})
			got := ""
			if len(rejections) > 0 {
				got = rejections[0].Reason
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}
