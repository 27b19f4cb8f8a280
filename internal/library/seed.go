package library

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"needle/internal/music"
	"needle/internal/textutil"
)

// CatalogDocument is the JSON layout accepted by SeedCatalog.
type CatalogDocument struct {
	Artists []SeedArtist `json:"artists"`
}

// SeedArtist is one artist of a catalog document.
type SeedArtist struct {
	Name             string      `json:"name"`
	Path             string      `json:"path,omitempty"`
	Monitored        *bool       `json:"monitored,omitempty"`
	QualityProfileID int         `json:"qualityProfileId,omitempty"`
	Tags             []string    `json:"tags,omitempty"`
	Albums           []SeedAlbum `json:"albums"`
}

// SeedAlbum is one album. Tracks without releases form a single release
// named after the album.
type SeedAlbum struct {
	Title        string        `json:"title"`
	ReleaseDate  string        `json:"releaseDate,omitempty"`
	AlbumType    string        `json:"albumType,omitempty"`
	Monitored    *bool         `json:"monitored,omitempty"`
	AnyReleaseOK bool          `json:"anyReleaseOk,omitempty"`
	Releases     []SeedRelease `json:"releases,omitempty"`
	Tracks       []SeedTrack   `json:"tracks,omitempty"`
}

// SeedRelease is one edition of an album.
type SeedRelease struct {
	Title     string      `json:"title"`
	Monitored bool        `json:"monitored,omitempty"`
	Tracks    []SeedTrack `json:"tracks"`
}

// SeedTrack is one track. Medium defaults to 1.
type SeedTrack struct {
	Medium          int    `json:"medium,omitempty"`
	Number          int    `json:"number"`
	Title           string `json:"title"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`
}

// SeedResult counts what SeedCatalog added.
type SeedResult struct {
	Artists int
	Albums  int
	Skipped int
}

// SeedCatalog reads a catalog document from r and adds the artists and albums
// not yet in the library. Existing entries are matched by clean name and left
// untouched, so seeding the same document twice adds nothing.
func (s *Store) SeedCatalog(ctx context.Context, r io.Reader) (SeedResult, error) {
	var doc CatalogDocument
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return SeedResult{}, fmt.Errorf("decode catalog: %w", err)
	}

	var result SeedResult
	for _, seed := range doc.Artists {
		artist, err := s.ArtistByCleanName(ctx, textutil.CleanName(seed.Name))
		if err != nil {
			return result, err
		}
		if artist == nil {
			artist = music.NewArtist(strings.TrimSpace(seed.Name))
			artist.Path = seed.Path
			artist.QualityProfileID = seed.QualityProfileID
			artist.Tags = seed.Tags
			if seed.Monitored != nil {
				artist.Monitored = *seed.Monitored
			}
			if err := s.AddArtist(ctx, artist); err != nil {
				return result, err
			}
			result.Artists++
		}

		existing, err := s.AlbumsByArtist(ctx, artist.ID)
		if err != nil {
			return result, err
		}
		known := make(map[string]bool, len(existing))
		for _, album := range existing {
			known[album.CleanTitle] = true
		}
		for _, seedAlbum := range seed.Albums {
			album, err := seedAlbum.build(artist.ID)
			if err != nil {
				return result, fmt.Errorf("artist %q: %w", seed.Name, err)
			}
			if known[album.CleanTitle] {
				result.Skipped++
				continue
			}
			if err := s.AddAlbum(ctx, album); err != nil {
				return result, err
			}
			known[album.CleanTitle] = true
			result.Albums++
		}
	}
	return result, nil
}

func (a SeedAlbum) build(artistID int64) (*music.Album, error) {
	album := music.NewAlbum(artistID, strings.TrimSpace(a.Title))
	album.AlbumType = a.AlbumType
	album.AnyReleaseOK = a.AnyReleaseOK
	if a.Monitored != nil {
		album.Monitored = *a.Monitored
	}
	if a.ReleaseDate != "" {
		date, err := time.Parse(time.DateOnly, a.ReleaseDate)
		if err != nil {
			return nil, fmt.Errorf("album %q: release date %q: %w", a.Title, a.ReleaseDate, err)
		}
		album.ReleaseDate = date
	}

	releases := a.Releases
	if len(releases) == 0 && len(a.Tracks) > 0 {
		releases = []SeedRelease{{Title: album.Title, Monitored: true, Tracks: a.Tracks}}
	}
	anyMonitored := false
	for _, seed := range releases {
		release := &music.AlbumRelease{Title: seed.Title, Monitored: seed.Monitored}
		if release.Title == "" {
			release.Title = album.Title
		}
		anyMonitored = anyMonitored || seed.Monitored
		for i, t := range seed.Tracks {
			track := &music.Track{
				MediumNumber:        max(t.Medium, 1),
				TrackNumber:         t.Number,
				AbsoluteTrackNumber: i + 1,
				Title:               t.Title,
				Duration:            time.Duration(t.DurationSeconds) * time.Second,
			}
			if track.TrackNumber == 0 {
				track.TrackNumber = i + 1
			}
			release.Tracks = append(release.Tracks, track)
			release.Duration += track.Duration
		}
		release.TrackCount = len(release.Tracks)
		album.Releases = append(album.Releases, release)
	}
	if !anyMonitored && len(album.Releases) > 0 {
		album.Releases[0].Monitored = true
	}
	return album, nil
}
