package decision_test

import (
	"math/rand"
	"testing"
	"time"

	"needle/internal/config"
	"needle/internal/decision"
	"needle/internal/indexer"
	"needle/internal/music"
	"needle/internal/parser"
	"needle/internal/quality"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newComparator(t *testing.T, propers string) *decision.Comparator {
	t.Helper()
	profiles, err := quality.ProfilesFromConfig(config.DefaultQualityProfiles())
	if err != nil {
		t.Fatalf("ProfilesFromConfig failed: %v", err)
	}
	return decision.NewComparator(decision.ComparatorOptions{
		Profiles:      profiles,
		DelayProfiles: config.DefaultDelayProfiles(),
		Propers:       propers,
		Now:           func() time.Time { return testNow },
	})
}

func intPtr(v int) *int { return &v }

func remote(artist *music.Artist, title string, mutate func(*decision.RemoteAlbum)) *decision.RemoteAlbum {
	album := music.NewAlbum(artist.ID, "Album")
	album.ID = 10
	r := &decision.RemoteAlbum{
		Release: &indexer.Release{
			Title:           title,
			Protocol:        indexer.ProtocolTorrent,
			IndexerPriority: 25,
			Size:            400 << 20,
			PublishDate:     testNow.Add(-48 * time.Hour),
		},
		ParsedInfo:      &parser.ParsedAlbumInfo{ArtistName: artist.Name, AlbumTitle: "Album", Quality: quality.ParseTitle(title)},
		Artist:          artist,
		Albums:          []*music.Album{album},
		DownloadAllowed: true,
	}
	if mutate != nil {
		mutate(r)
	}
	return r
}

func testArtist(id int64) *music.Artist {
	a := music.NewArtist("Artist")
	a.ID = id
	a.QualityProfileID = 1
	return a
}

func TestCompareSeedersBeforeSize(t *testing.T) {
	c := newComparator(t, config.PropersPreferAndUpgrade)
	artist := testArtist(1)
	fifty := remote(artist, "Artist.Album.2020.FLAC", func(r *decision.RemoteAlbum) {
		r.Release.Seeders = intPtr(50)
		r.Release.Size = 400 * 1000 * 1000
	})
	ten := remote(artist, "Artist.Album.2020.FLAC", func(r *decision.RemoteAlbum) {
		r.Release.Seeders = intPtr(10)
		r.Release.Size = 420 * 1000 * 1000
	})
	if c.Compare(fifty, ten) <= 0 {
		t.Fatal("expected the 50-seeder release to rank first")
	}
	if c.Compare(ten, fifty) >= 0 {
		t.Fatal("expected comparison to be antisymmetric")
	}
}

func TestCompareCustomFormatScoreDominatesLaterCriteria(t *testing.T) {
	c := newComparator(t, config.PropersPreferAndUpgrade)
	artist := testArtist(1)
	high := remote(artist, "Artist - Album [FLAC]", func(r *decision.RemoteAlbum) {
		r.CustomFormatScore = 10
		r.Release.Size = 100 << 20
		r.Release.Seeders = intPtr(1)
		r.Release.IndexerPriority = 50
	})
	low := remote(artist, "Artist - Album [FLAC]", func(r *decision.RemoteAlbum) {
		r.CustomFormatScore = 5
		r.Release.Size = 900 << 20
		r.Release.Seeders = intPtr(1000)
		r.Release.IndexerPriority = 1
	})
	if c.Compare(high, low) <= 0 {
		t.Fatal("expected higher custom format score to win")
	}
}

func TestCompareOrderedCriteria(t *testing.T) {
	artist := testArtist(1)
	cases := []struct {
		name    string
		propers string
		better  *decision.RemoteAlbum
		worse   *decision.RemoteAlbum
	}{
		{
			name:   "quality",
			better: remote(artist, "Artist - Album [FLAC]", nil),
			worse:  remote(artist, "Artist - Album [MP3 320]", nil),
		},
		{
			name:   "revision when propers preferred",
			better: remote(artist, "Artist - Album [FLAC] PROPER", nil),
			worse:  remote(artist, "Artist - Album [FLAC]", nil),
		},
		{
			name:   "preferred protocol",
			better: remote(artist, "Artist - Album [FLAC]", nil),
			worse: remote(artist, "Artist - Album [FLAC]", func(r *decision.RemoteAlbum) {
				r.Release.Protocol = indexer.ProtocolUsenet
			}),
		},
		{
			name:   "indexer priority",
			better: remote(artist, "Artist - Album [FLAC]", func(r *decision.RemoteAlbum) { r.Release.IndexerPriority = 10 }),
			worse:  remote(artist, "Artist - Album [FLAC]", func(r *decision.RemoteAlbum) { r.Release.IndexerPriority = 20 }),
		},
		{
			name:   "peers after equal seeders",
			better: remote(artist, "Artist - Album [FLAC]", func(r *decision.RemoteAlbum) { r.Release.Seeders, r.Release.Peers = intPtr(12), intPtr(100) }),
			worse:  remote(artist, "Artist - Album [FLAC]", func(r *decision.RemoteAlbum) { r.Release.Seeders, r.Release.Peers = intPtr(9), intPtr(2) }),
		},
		{
			name:   "single album over discography",
			better: remote(artist, "Artist - Album [FLAC]", nil),
			worse:  remote(artist, "Artist - Album [FLAC]", func(r *decision.RemoteAlbum) { r.ParsedInfo.Discography = true }),
		},
		{
			name: "usenet age buckets",
			better: remote(artist, "Artist - Album [FLAC]", func(r *decision.RemoteAlbum) {
				r.Release.Protocol = indexer.ProtocolUsenet
				r.Release.PublishDate = testNow.Add(-30 * time.Minute)
			}),
			worse: remote(artist, "Artist - Album [FLAC]", func(r *decision.RemoteAlbum) {
				r.Release.Protocol = indexer.ProtocolUsenet
				r.Release.PublishDate = testNow.Add(-3 * time.Hour)
			}),
		},
		{
			name:   "larger size without duration",
			better: remote(artist, "Artist - Album [FLAC]", func(r *decision.RemoteAlbum) { r.Release.Size = 500 << 20 }),
			worse:  remote(artist, "Artist - Album [FLAC]", func(r *decision.RemoteAlbum) { r.Release.Size = 300 << 20 }),
		},
		{
			name: "closest to preferred size with duration",
			better: remote(artist, "Artist - Album [FLAC]", func(r *decision.RemoteAlbum) {
				r.Albums[0].Releases = []*music.AlbumRelease{{Monitored: true, Duration: 40 * time.Minute}}
				r.Release.Size = 270 << 20
			}),
			worse: remote(artist, "Artist - Album [FLAC]", func(r *decision.RemoteAlbum) {
				r.Albums[0].Releases = []*music.AlbumRelease{{Monitored: true, Duration: 40 * time.Minute}}
				r.Release.Size = 900 << 20
			}),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			propers := tc.propers
			if propers == "" {
				propers = config.PropersPreferAndUpgrade
			}
			c := newComparator(t, propers)
			if c.Compare(tc.better, tc.worse) <= 0 {
				t.Fatalf("expected better > worse")
			}
			if c.Compare(tc.worse, tc.better) >= 0 {
				t.Fatalf("expected worse < better")
			}
		})
	}
}

func TestCompareRanksEachSideByItsOwnProfile(t *testing.T) {
	cfgProfiles := append(config.DefaultQualityProfiles(), config.QualityProfile{
		ID:        3,
		Name:      "Lossy first",
		Cutoff:    "MP3-320",
		Qualities: []string{"FLAC", "MP3-320"},
	})
	profiles, err := quality.ProfilesFromConfig(cfgProfiles)
	if err != nil {
		t.Fatalf("ProfilesFromConfig failed: %v", err)
	}
	c := decision.NewComparator(decision.ComparatorOptions{
		Profiles:      profiles,
		DelayProfiles: config.DefaultDelayProfiles(),
		Now:           func() time.Time { return testNow },
	})

	lossyFan := testArtist(2)
	lossyFan.QualityProfileID = 3
	a := remote(testArtist(1), "Artist - Album [FLAC]", nil)
	b := remote(lossyFan, "Artist - Album [MP3 320]", nil)

	ab, ba := c.Compare(a, b), c.Compare(b, a)
	if ab == 0 || ab != -ba {
		t.Fatalf("expected antisymmetric results, got Compare(a,b)=%d Compare(b,a)=%d", ab, ba)
	}
	if ab <= 0 {
		t.Fatalf("expected FLAC at index 11 of its profile to outrank MP3-320 at index 1 of its own, got %d", ab)
	}
}

func TestCompareIgnoresRevisionWhenPropersNotPreferred(t *testing.T) {
	c := newComparator(t, config.PropersDoNotPrefer)
	artist := testArtist(1)
	proper := remote(artist, "Artist - Album [FLAC] PROPER", nil)
	plain := remote(artist, "Artist - Album [FLAC]", nil)
	if got := c.Compare(proper, plain); got != 0 {
		t.Fatalf("expected tie, got %d", got)
	}
}

func TestCompareSizeBuckets(t *testing.T) {
	c := newComparator(t, config.PropersPreferAndUpgrade)
	artist := testArtist(1)
	a := remote(artist, "Artist - Album [FLAC]", func(r *decision.RemoteAlbum) { r.Release.Size = 410 << 20 })
	b := remote(artist, "Artist - Album [FLAC]", func(r *decision.RemoteAlbum) { r.Release.Size = 450 << 20 })
	if got := c.Compare(a, b); got != 0 {
		t.Fatalf("expected sizes in one 100 MiB bucket to tie, got %d", got)
	}
}

func TestPrioritize(t *testing.T) {
	c := newComparator(t, config.PropersPreferAndUpgrade)
	artistA, artistB := testArtist(1), testArtist(2)

	rejected1 := decision.NewDecision(&decision.RemoteAlbum{Release: &indexer.Release{Title: "junk 1"}}, decision.Rejection{Reason: decision.ReasonUnknownArtist})
	rejected2 := decision.NewDecision(&decision.RemoteAlbum{Release: &indexer.Release{Title: "junk 2"}}, decision.Rejection{Reason: decision.ReasonUnknownArtist})
	aLow := decision.NewDecision(remote(artistA, "Artist - Album [MP3 320]", nil))
	aHigh := decision.NewDecision(remote(artistA, "Artist - Album [FLAC]", nil))
	bOnly := decision.NewDecision(remote(artistB, "Artist - Album [FLAC]", nil))

	input := []*decision.ReleaseDecision{rejected1, aLow, bOnly, rejected2, aHigh}
	got := c.Prioritize(input)
	want := []*decision.ReleaseDecision{aHigh, aLow, bOnly, rejected1, rejected2}
	if len(got) != len(want) {
		t.Fatalf("expected %d decisions, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: got %q", i, got[i].Subject.Release.Title)
		}
	}
}

func TestPrioritizeKeepsEveryDecision(t *testing.T) {
	c := newComparator(t, config.PropersPreferAndUpgrade)
	rng := rand.New(rand.NewSource(7))
	var input []*decision.ReleaseDecision
	for i := 0; i < 40; i++ {
		artist := testArtist(int64(rng.Intn(4)))
		r := remote(artist, "Artist - Album [FLAC]", func(r *decision.RemoteAlbum) {
			r.Release.Seeders = intPtr(rng.Intn(200))
			r.Release.Size = int64(rng.Intn(900)) << 20
			r.DownloadAllowed = rng.Intn(3) > 0
		})
		input = append(input, decision.NewDecision(r))
	}
	got := c.Prioritize(input)
	if len(got) != len(input) {
		t.Fatalf("expected %d decisions, got %d", len(input), len(got))
	}
	seen := make(map[*decision.ReleaseDecision]int)
	for _, d := range got {
		seen[d]++
	}
	for _, d := range input {
		if seen[d] != 1 {
			t.Fatalf("decision %p appears %d times", d, seen[d])
		}
	}
	var wantRest, gotRest []*decision.ReleaseDecision
	for _, d := range input {
		if !d.Subject.DownloadAllowed {
			wantRest = append(wantRest, d)
		}
	}
	for _, d := range got {
		if !d.Subject.DownloadAllowed {
			gotRest = append(gotRest, d)
		}
	}
	for i := range wantRest {
		if wantRest[i] != gotRest[i] {
			t.Fatalf("not-allowed decisions reordered at %d", i)
		}
	}
}
