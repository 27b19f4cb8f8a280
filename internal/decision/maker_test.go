package decision_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"needle/internal/config"
	"needle/internal/customformat"
	"needle/internal/decision"
	"needle/internal/indexer"
	"needle/internal/music"
	"needle/internal/quality"
)

type fakeCatalog struct {
	artists []*music.Artist
	albums  map[int64][]*music.Album
}

func (c *fakeCatalog) ArtistByCleanName(_ context.Context, clean string) (*music.Artist, error) {
	for _, a := range c.artists {
		if a.CleanName == clean {
			return a, nil
		}
	}
	return nil, nil
}

func (c *fakeCatalog) Artists(context.Context) ([]*music.Artist, error) {
	return append([]*music.Artist(nil), c.artists...), nil
}

func (c *fakeCatalog) AlbumsByArtist(_ context.Context, id int64) ([]*music.Album, error) {
	return c.albums[id], nil
}

func newCatalog() *fakeCatalog {
	floyd := music.NewArtist("Pink Floyd")
	floyd.ID = 1
	floyd.QualityProfileID = 1
	wall := music.NewAlbum(1, "The Wall")
	wall.ID = 11
	wall.ReleaseDate = time.Date(1979, 11, 30, 0, 0, 0, 0, time.UTC)
	animals := music.NewAlbum(1, "Animals")
	animals.ID = 12
	animals.ReleaseDate = time.Date(1977, 1, 23, 0, 0, 0, 0, time.UTC)

	artist := music.NewArtist("Artist")
	artist.ID = 2
	artist.QualityProfileID = 1
	album := music.NewAlbum(2, "Album")
	album.ID = 21
	return &fakeCatalog{
		artists: []*music.Artist{floyd, artist},
		albums:  map[int64][]*music.Album{1: {wall, animals}, 2: {album}},
	}
}

type stubSpec struct {
	name   string
	result decision.Result
	err    error
	panics bool
}

func (s stubSpec) Name() string { return s.name }

func (s stubSpec) Evaluate(context.Context, *decision.RemoteAlbum, *indexer.SearchCriteria) (decision.Result, error) {
	if s.panics {
		panic("boom")
	}
	return s.result, s.err
}

func newMaker(t *testing.T, specs ...decision.ReleaseSpecification) *decision.Maker {
	t.Helper()
	profiles, err := quality.ProfilesFromConfig([]config.QualityProfile{{
		ID: 1, Name: "Any", Qualities: []string{"MP3-320", "FLAC"}, FormatScores: map[string]int{"WEB": 7},
	}})
	if err != nil {
		t.Fatalf("ProfilesFromConfig failed: %v", err)
	}
	formats, err := customformat.FromConfig([]config.CustomFormat{{
		Name:       "WEB",
		Conditions: []config.CustomFormatCondition{{Type: config.ConditionReleaseTitle, Value: `\bWEB\b`}},
	}})
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}
	return decision.NewMaker(decision.MakerOptions{
		Catalog:        newCatalog(),
		Specifications: specs,
		Formats:        customformat.NewCalculator(formats),
		Profiles:       profiles,
		Workers:        4,
	})
}

func releases(titles ...string) []*indexer.Release {
	out := make([]*indexer.Release, 0, len(titles))
	for _, title := range titles {
		out = append(out, &indexer.Release{Title: title, Protocol: indexer.ProtocolTorrent, Size: 300 << 20})
	}
	return out
}

func TestMakerShortCircuits(t *testing.T) {
	calls := 0
	counting := countingSpec{calls: &calls}
	m := newMaker(t, counting)
	decisions := m.GetRssDecisions(context.Background(), releases(
		"garbage",
		"Unknown Band - Some Album (2001) [FLAC]",
		"Pink Floyd - Meddle (1971) [FLAC]",
	))
	if len(decisions) != 3 {
		t.Fatalf("expected 3 decisions, got %d", len(decisions))
	}
	want := []string{decision.ReasonUnknownArtist, decision.ReasonUnknownArtist, decision.ReasonUnknownAlbums}
	for i, d := range decisions {
		if d.Accepted() || d.Rejections[0].Reason != want[i] {
			t.Fatalf("decision %d: unexpected rejections %v", i, d.Reasons())
		}
		if d.Subject.DownloadAllowed {
			t.Fatalf("decision %d: rejected release must not be download-allowed", i)
		}
	}
	if calls != 0 {
		t.Fatalf("specifications should not run for unmatched releases, ran %d times", calls)
	}
}

type countingSpec struct{ calls *int }

func (countingSpec) Name() string { return "Counting" }

func (s countingSpec) Evaluate(context.Context, *decision.RemoteAlbum, *indexer.SearchCriteria) (decision.Result, error) {
	*s.calls++
	return decision.Accept(), nil
}

func TestMakerCollectsAllRejections(t *testing.T) {
	m := newMaker(t,
		stubSpec{name: "Size", result: decision.Reject("too big")},
		stubSpec{name: "Fine", result: decision.Accept()},
		stubSpec{name: "Age", result: decision.RejectTemporarily("too new")},
		stubSpec{name: "Broken", err: errors.New("history unavailable")},
		stubSpec{name: "Panicky", panics: true},
	)
	decisions := m.GetRssDecisions(context.Background(), releases("Pink Floyd - The Wall (1979) [FLAC]"))
	d := decisions[0]
	reasons := d.Reasons()
	if len(reasons) != 4 {
		t.Fatalf("expected 4 rejections, got %v", reasons)
	}
	if reasons[0] != "too big" || reasons[1] != "too new" {
		t.Fatalf("unexpected rejections %v", reasons)
	}
	if reasons[2] != "Broken: history unavailable" || !strings.HasPrefix(reasons[3], "Panicky: panic: boom") {
		t.Fatalf("unexpected fault rejections %v", reasons)
	}
	if d.Rejections[1].Category != decision.Temporary {
		t.Fatal("expected temporary category to be kept")
	}
	if !d.Subject.DownloadAllowed || d.Subject.Albums[0].ID != 11 {
		t.Fatalf("expected mapped, download-allowed remote album: %+v", d.Subject)
	}
}

func TestMakerMapsAndScores(t *testing.T) {
	m := newMaker(t)
	decisions := m.GetRssDecisions(context.Background(), releases(
		"Pink Floyd - The Wall (1979) [WEB FLAC]",
		"Artist.Album.2020.FLAC",
		"Pink Floyd - Discography (1970-1980) [FLAC]",
	))
	wall := decisions[0]
	if !wall.Accepted() || wall.Subject.CustomFormatScore != 7 {
		t.Fatalf("expected accepted WEB release with score 7, got %v score %d", wall.Reasons(), wall.Subject.CustomFormatScore)
	}
	dotted := decisions[1]
	if !dotted.Accepted() || dotted.Subject.Artist.ID != 2 || dotted.Subject.Albums[0].ID != 21 {
		t.Fatalf("expected dotted title to map through the catalog, got %v", dotted.Reasons())
	}
	disco := decisions[2]
	if !disco.Accepted() || len(disco.Subject.Albums) != 2 {
		t.Fatalf("expected discography to cover both albums, got %d", len(disco.Subject.Albums))
	}
}

func TestMakerSearchReparse(t *testing.T) {
	m := newMaker(t)
	catalog := newCatalog()
	criteria := &indexer.SearchCriteria{Artist: catalog.artists[0], Albums: catalog.albums[1][:1]}
	decisions := m.GetSearchDecisions(context.Background(), releases("Pink.Floyd.The.Wall.1979.FLAC"), criteria)
	if !decisions[0].Accepted() || decisions[0].Subject.Albums[0].Title != "The Wall" {
		t.Fatalf("expected reparse against search criteria, got %v", decisions[0].Reasons())
	}
}

func TestMakerIsDeterministic(t *testing.T) {
	m := newMaker(t,
		stubSpec{name: "Size", result: decision.Reject("too big")},
		stubSpec{name: "Broken", err: errors.New("boom")},
	)
	input := releases("Pink Floyd - The Wall (1979) [FLAC]", "Pink Floyd - Animals (1977) [MP3 320]", "nope")
	first := m.GetRssDecisions(context.Background(), input)
	second := m.GetRssDecisions(context.Background(), input)
	for i := range first {
		if !reflect.DeepEqual(first[i].Rejections, second[i].Rejections) {
			t.Fatalf("decision %d differs between runs: %v vs %v", i, first[i].Reasons(), second[i].Reasons())
		}
		if first[i].Subject.Release != input[i] {
			t.Fatalf("decision %d is out of input order", i)
		}
	}
}

type panickingCatalog struct{ *fakeCatalog }

func (panickingCatalog) AlbumsByArtist(context.Context, int64) ([]*music.Album, error) {
	panic("catalog exploded")
}

func TestMakerContainsPerReleaseFailure(t *testing.T) {
	catalog := newCatalog()
	m := decision.NewMaker(decision.MakerOptions{Catalog: panickingCatalog{catalog}})
	decisions := m.GetRssDecisions(context.Background(), releases("Pink Floyd - The Wall (1979) [FLAC]", "garbage"))
	if got := decisions[0].Reasons(); len(got) != 1 || got[0] != decision.ReasonUnexpectedError {
		t.Fatalf("expected unexpected error rejection, got %v", got)
	}
	if got := decisions[1].Reasons(); len(got) != 1 || got[0] != decision.ReasonUnknownArtist {
		t.Fatalf("expected the next release to be processed, got %v", got)
	}
}
