package specs_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"needle/internal/config"
	"needle/internal/decision"
	"needle/internal/decision/specs"
	"needle/internal/history"
	"needle/internal/indexer"
	"needle/internal/music"
	"needle/internal/parser"
	"needle/internal/quality"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeFiles map[int64][]*music.TrackFile

func (f fakeFiles) TrackFilesByAlbum(_ context.Context, albumID int64) ([]*music.TrackFile, error) {
	return f[albumID], nil
}

type fakeHistory struct {
	recent map[int64]*history.Record
	failed map[string]bool
	err    error
}

func (h fakeHistory) MostRecentForAlbum(_ context.Context, albumID int64) (*history.Record, error) {
	return h.recent[albumID], h.err
}

func (h fakeHistory) FailedForRelease(_ context.Context, title, _ string) ([]*history.Record, error) {
	if h.failed[title] {
		return []*history.Record{{EventType: history.EventDownloadFailed, SourceTitle: title}}, nil
	}
	return nil, h.err
}

type fakeQueue []specs.QueueEntry

func (q fakeQueue) QueuedAlbums(context.Context) ([]specs.QueueEntry, error) { return q, nil }

func baseDeps() specs.Dependencies {
	profiles := map[int]*quality.Profile{
		1: {
			ID: 1, Name: "Any", UpgradeAllowed: true, Cutoff: quality.FLAC,
			Items: []quality.Quality{quality.MP3256, quality.MP3320, quality.FLAC},
		},
		2: {
			ID: 2, Name: "Locked", Cutoff: quality.FLAC, MinFormatScore: 10,
			Items: []quality.Quality{quality.MP3320, quality.FLAC},
		},
	}
	return specs.Dependencies{
		Decisions:     config.Decisions{DownloadPropersAndRepacks: config.PropersPreferAndUpgrade},
		Profiles:      profiles,
		Definitions:   quality.DefaultDefinitions(),
		DelayProfiles: config.DefaultDelayProfiles(),
		Now:           func() time.Time { return testNow },
	}
}

func newRemote(mutate func(*decision.RemoteAlbum)) *decision.RemoteAlbum {
	artist := music.NewArtist("Artist")
	artist.ID = 1
	artist.QualityProfileID = 1
	album := music.NewAlbum(1, "Album")
	album.ID = 10
	album.ReleaseDate = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	album.Releases = []*music.AlbumRelease{{ID: 100, AlbumID: 10, Monitored: true, Duration: 40 * time.Minute}}
	title := "Artist - Album (2020) [MP3 320]"
	r := &decision.RemoteAlbum{
		Release: &indexer.Release{
			Title:       title,
			Indexer:     "feed",
			Protocol:    indexer.ProtocolTorrent,
			Size:        80 << 20,
			PublishDate: testNow.Add(-48 * time.Hour),
		},
		ParsedInfo:      &parser.ParsedAlbumInfo{ArtistName: "Artist", AlbumTitle: "Album", Quality: quality.NewModel(quality.MP3320)},
		Artist:          artist,
		Albums:          []*music.Album{album},
		DownloadAllowed: true,
	}
	if mutate != nil {
		mutate(r)
	}
	return r
}

func file(q quality.Model, added time.Time) *music.TrackFile {
	return &music.TrackFile{ID: 1, AlbumID: 10, Quality: q, DateAdded: added, TrackIDs: []int64{1}}
}

func proper(q quality.Quality) quality.Model {
	return quality.Model{Quality: q, Revision: quality.Revision{Version: 2}}
}

func TestSpecifications(t *testing.T) {
	userSearch := &indexer.SearchCriteria{UserInvoked: true}
	cases := []struct {
		name     string
		spec     func(specs.Dependencies) decision.ReleaseSpecification
		deps     func(*specs.Dependencies)
		remote   func(*decision.RemoteAlbum)
		criteria *indexer.SearchCriteria
		want     string
		temp     bool
	}{
		{name: "size within envelope", spec: pick("AcceptableSize")},
		{name: "size above envelope", spec: pick("AcceptableSize"),
			remote: func(r *decision.RemoteAlbum) { r.Release.Size = 200 << 20 }, want: "larger than maximum allowed"},
		{name: "size below envelope", spec: pick("AcceptableSize"),
			deps: func(d *specs.Dependencies) {
				d.Definitions = quality.Definitions{quality.MP3320.ID: {Quality: quality.MP3320, MinKbps: 300}}
			},
			remote: func(r *decision.RemoteAlbum) { r.Release.Size = 10 << 20 }, want: "smaller than minimum allowed"},
		{name: "size without duration", spec: pick("AcceptableSize"),
			remote: func(r *decision.RemoteAlbum) { r.Albums[0].Releases = nil; r.Release.Size = 5 << 30 }},
		{name: "maximum size", spec: pick("MaximumSize"),
			deps: func(d *specs.Dependencies) { d.Decisions.MaximumSizeMB = 50 }, want: "too big"},
		{name: "maximum size unset", spec: pick("MaximumSize")},
		{name: "quality not in profile", spec: pick("QualityAllowedByProfile"),
			remote: func(r *decision.RemoteAlbum) { r.ParsedInfo.Quality = quality.NewModel(quality.MP3128) }, want: "Quality MP3-128 is not wanted"},
		{name: "format score below minimum", spec: pick("CustomFormatAllowedByProfile"),
			remote: func(r *decision.RemoteAlbum) {
				r.Artist.QualityProfileID = 2
				r.CustomFormats = []string{"WEB"}
				r.CustomFormatScore = 5
			}, want: "Custom Formats [WEB] have score 5 below Artist profile minimum 10"},
		{name: "disk holds better", spec: pick("UpgradeDisk"),
			deps: withFiles(file(quality.NewModel(quality.FLAC), testNow)), want: "equal or higher preference: FLAC"},
		{name: "disk holds worse", spec: pick("UpgradeDisk"),
			deps: withFiles(file(quality.NewModel(quality.MP3256), testNow))},
		{name: "disk upgrade not allowed", spec: pick("UpgradeDisk"),
			deps: withFiles(file(quality.NewModel(quality.MP3320), testNow)),
			remote: func(r *decision.RemoteAlbum) {
				r.Artist.QualityProfileID = 2
				r.ParsedInfo.Quality = quality.NewModel(quality.FLAC)
			}, want: "does not allow upgrades"},
		{name: "cutoff met", spec: pick("Cutoff"),
			deps: withFiles(file(quality.NewModel(quality.FLAC), testNow)), want: "Existing files meets cutoff: FLAC"},
		{name: "cutoff met but proper", spec: pick("Cutoff"),
			deps:   withFiles(file(quality.NewModel(quality.FLAC), testNow)),
			remote: func(r *decision.RemoteAlbum) { r.ParsedInfo.Quality = proper(quality.FLAC) }},
		{name: "cutoff not met", spec: pick("Cutoff"),
			deps: withFiles(file(quality.NewModel(quality.MP3256), testNow))},
		{name: "recent grab is better", spec: pick("AlreadyGrabbed"),
			deps: withRecent(history.EventGrabbed, quality.NewModel(quality.FLAC), time.Hour), want: "already meets cutoff"},
		{name: "recent grab is equal", spec: pick("AlreadyGrabbed"),
			deps: withRecent(history.EventGrabbed, quality.NewModel(quality.MP3320), time.Hour), want: "equal or higher preference"},
		{name: "old grab", spec: pick("AlreadyGrabbed"),
			deps: withRecent(history.EventGrabbed, quality.NewModel(quality.FLAC), 13*time.Hour)},
		{name: "grab history ignored in search", spec: pick("AlreadyGrabbed"), criteria: userSearch,
			deps: withRecent(history.EventGrabbed, quality.NewModel(quality.FLAC), time.Hour)},
		{name: "imported history is not a grab", spec: pick("AlreadyGrabbed"),
			deps: withRecent(history.EventDownloadImported, quality.NewModel(quality.FLAC), time.Hour)},
		{name: "blocklisted", spec: pick("Blocklist"),
			deps: func(d *specs.Dependencies) {
				d.History = fakeHistory{failed: map[string]bool{"Artist - Album (2020) [MP3 320]": true}}
			}, want: "Release is blocklisted"},
		{name: "queue holds better", spec: pick("Queue"),
			deps: withQueue(quality.NewModel(quality.FLAC), 10), want: "Release in queue already meets cutoff"},
		{name: "queue holds equal", spec: pick("Queue"),
			deps: withQueue(quality.NewModel(quality.MP3320), 10), want: "Release in queue is of equal or higher preference"},
		{name: "queue holds other album", spec: pick("Queue"),
			deps: withQueue(quality.NewModel(quality.FLAC), 99)},
		{name: "retention exceeded", spec: pick("Retention"),
			deps: func(d *specs.Dependencies) { d.Decisions.RetentionDays = 1 },
			remote: func(r *decision.RemoteAlbum) { r.Release.Protocol = indexer.ProtocolUsenet },
			want:   "Older than configured retention"},
		{name: "retention ignores torrents", spec: pick("Retention"),
			deps: func(d *specs.Dependencies) { d.Decisions.RetentionDays = 1 }},
		{name: "too young", spec: pick("MinimumAge"),
			deps: func(d *specs.Dependencies) { d.Decisions.MinimumAgeMinutes = 60 },
			remote: func(r *decision.RemoteAlbum) {
				r.Release.Protocol = indexer.ProtocolUsenet
				r.Release.PublishDate = testNow.Add(-10 * time.Minute)
			}, want: "minimum age is 60 minutes", temp: true},
		{name: "too young but user search", spec: pick("MinimumAge"), criteria: userSearch,
			deps: func(d *specs.Dependencies) { d.Decisions.MinimumAgeMinutes = 60 },
			remote: func(r *decision.RemoteAlbum) {
				r.Release.Protocol = indexer.ProtocolUsenet
				r.Release.PublishDate = testNow.Add(-10 * time.Minute)
			}},
		{name: "missing required term", spec: pick("ReleaseRestrictions"),
			deps: func(d *specs.Dependencies) { d.Decisions.RequiredTerms = []string{"FLAC", "/24.?bit/"} },
			want: "Does not contain one of the required terms: FLAC, /24.?bit/"},
		{name: "required regex term", spec: pick("ReleaseRestrictions"),
			deps:   func(d *specs.Dependencies) { d.Decisions.RequiredTerms = []string{"/24.?bit/"} },
			remote: func(r *decision.RemoteAlbum) { r.Release.Title = "Artist - Album [FLAC 24bit]" }},
		{name: "ignored term", spec: pick("ReleaseRestrictions"),
			deps: func(d *specs.Dependencies) { d.Decisions.IgnoredTerms = []string{"karaoke", "mp3"} },
			want: "Contains these ignored terms: mp3"},
		{name: "language not allowed", spec: pick("LanguageAllowed"),
			deps:   func(d *specs.Dependencies) { d.Decisions.AllowedLanguages = []string{"en"} },
			remote: func(r *decision.RemoteAlbum) { r.Release.Title = "Rammstein - Mutter (German Edition) [FLAC]" },
			want:   "Language German is not wanted"},
		{name: "untagged language passes", spec: pick("LanguageAllowed"),
			deps: func(d *specs.Dependencies) { d.Decisions.AllowedLanguages = []string{"en"} }},
		{name: "proper disabled", spec: pick("Proper"),
			deps: func(d *specs.Dependencies) {
				d.Decisions.DownloadPropersAndRepacks = config.PropersDoNotUpgrade
				d.Files = fakeFiles{10: {file(quality.NewModel(quality.MP3320), testNow)}}
			},
			remote: func(r *decision.RemoteAlbum) { r.ParsedInfo.Quality = proper(quality.MP3320) },
			want:   "Proper downloading is disabled"},
		{name: "proper for old file", spec: pick("Proper"),
			deps:   withFiles(file(quality.NewModel(quality.MP3320), testNow.Add(-30*24*time.Hour))),
			remote: func(r *decision.RemoteAlbum) { r.ParsedInfo.Quality = proper(quality.MP3320) },
			want:   "Proper for old file"},
		{name: "proper for recent file", spec: pick("Proper"),
			deps:   withFiles(file(quality.NewModel(quality.MP3320), testNow.Add(-24*time.Hour))),
			remote: func(r *decision.RemoteAlbum) { r.ParsedInfo.Quality = proper(quality.MP3320) }},
		{name: "torrent disabled", spec: pick("ProtocolAllowed"),
			deps: func(d *specs.Dependencies) {
				d.DelayProfiles = []config.DelayProfile{
					{Tags: []string{"usenet-only"}, PreferredProtocol: config.ProtocolUsenet, EnableUsenet: true, Order: 1},
					{PreferredProtocol: config.ProtocolTorrent, EnableTorrent: true, EnableUsenet: true, Order: 2},
				}
			},
			remote: func(r *decision.RemoteAlbum) { r.Artist.Tags = []string{"Usenet-Only"} },
			want:   "Torrent is disabled"},
		{name: "not enough seeders", spec: pick("TorrentSeeding"),
			remote: func(r *decision.RemoteAlbum) {
				seeders := 2
				r.Release.Seeders = &seeders
				r.Release.MinimumSeeders = 5
			}, want: "Not enough seeders: 2. Minimum seeders: 5"},
		{name: "unknown seeders", spec: pick("TorrentSeeding"),
			remote: func(r *decision.RemoteAlbum) { r.Release.MinimumSeeders = 5 }},
		{name: "artist unmonitored", spec: pick("MonitoredAlbum"),
			remote: func(r *decision.RemoteAlbum) { r.Artist.Monitored = false }, want: "Artist is not monitored"},
		{name: "album unmonitored", spec: pick("MonitoredAlbum"),
			remote: func(r *decision.RemoteAlbum) { r.Albums[0].Monitored = false }, want: "Album is not monitored"},
		{name: "album unmonitored but user search", spec: pick("MonitoredAlbum"), criteria: userSearch,
			remote: func(r *decision.RemoteAlbum) { r.Albums[0].Monitored = false }},
		{name: "unreleased album in discography", spec: pick("Discography"),
			remote: func(r *decision.RemoteAlbum) {
				r.ParsedInfo.Discography = true
				future := music.NewAlbum(1, "Next")
				future.ReleaseDate = testNow.Add(30 * 24 * time.Hour)
				r.Albums = append(r.Albums, future)
			}, want: "have not released"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			deps := baseDeps()
			if tc.deps != nil {
				tc.deps(&deps)
			}
			spec := tc.spec(deps)
			result, err := spec.Evaluate(context.Background(), newRemote(tc.remote), tc.criteria)
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}
			if tc.want == "" {
				if !result.Accepted {
					t.Fatalf("expected acceptance, got %q", result.Reason)
				}
				return
			}
			if result.Accepted || !strings.Contains(result.Reason, tc.want) {
				t.Fatalf("expected rejection containing %q, got %+v", tc.want, result)
			}
			if tc.temp != (result.Category == decision.Temporary) {
				t.Fatalf("unexpected category %q", result.Category)
			}
		})
	}
}

func pick(name string) func(specs.Dependencies) decision.ReleaseSpecification {
	return func(deps specs.Dependencies) decision.ReleaseSpecification {
		for _, spec := range specs.Default(deps) {
			if spec.Name() == name {
				return spec
			}
		}
		panic("no specification named " + name)
	}
}

func withFiles(files ...*music.TrackFile) func(*specs.Dependencies) {
	return func(d *specs.Dependencies) { d.Files = fakeFiles{10: files} }
}

func withRecent(eventType history.EventType, q quality.Model, age time.Duration) func(*specs.Dependencies) {
	return func(d *specs.Dependencies) {
		d.History = fakeHistory{recent: map[int64]*history.Record{
			10: {EventType: eventType, AlbumID: 10, Quality: q, Date: testNow.Add(-age)},
		}}
	}
}

func withQueue(q quality.Model, albumID int64) func(*specs.Dependencies) {
	return func(d *specs.Dependencies) {
		queued := newRemote(func(r *decision.RemoteAlbum) {
			r.ParsedInfo.Quality = q
			r.Albums[0].ID = albumID
		})
		d.Queue = fakeQueue{{Title: queued.Release.Title, Remote: queued}}
	}
}

func TestDefaultRegistersEverySpecificationOnce(t *testing.T) {
	seen := map[string]bool{}
	for _, spec := range specs.Default(baseDeps()) {
		if seen[spec.Name()] {
			t.Fatalf("duplicate specification %s", spec.Name())
		}
		seen[spec.Name()] = true
	}
	if len(seen) != 17 {
		t.Fatalf("expected 17 specifications, got %d", len(seen))
	}
}

func TestCollaboratorErrorsBecomeNamedRejections(t *testing.T) {
	deps := baseDeps()
	deps.History = fakeHistory{err: errors.New("database locked")}
	rejections := decision.Evaluate(context.Background(), nil, specs.Default(deps), newRemote(nil), nil)
	found := false
	for _, r := range rejections {
		if r.Reason == "Blocklist: load failed history: database locked" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected named Blocklist rejection, got %+v", rejections)
	}
}

func TestDefaultAcceptsCleanRelease(t *testing.T) {
	deps := baseDeps()
	deps.Files = fakeFiles{}
	deps.History = fakeHistory{}
	deps.Queue = fakeQueue{}
	if rejections := decision.Evaluate(context.Background(), nil, specs.Default(deps), newRemote(nil), nil); len(rejections) != 0 {
		t.Fatalf("expected clean release to pass, got %+v", rejections)
	}
}
