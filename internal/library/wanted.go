package library

import (
	"context"
	"fmt"
	"time"

	"needle/internal/music"
	"needle/internal/quality"
)

// Wanted is a monitored album that a search should look for.
type Wanted struct {
	Artist *music.Artist
	Album  *music.Album
	// Missing counts tracks of the monitored release without a file.
	Missing int
	// Lowest is the worst quality among the album's files.
	Lowest quality.Quality
}

// AlbumsWithoutFiles lists released, monitored albums of monitored artists
// whose monitored release still has tracks without a file.
func (s *Store) AlbumsWithoutFiles(ctx context.Context, now time.Time) ([]Wanted, error) {
	candidates, err := s.monitoredAlbums(ctx, now)
	if err != nil {
		return nil, err
	}
	var out []Wanted
	for _, w := range candidates {
		if w.Missing > 0 {
			out = append(out, w)
		}
	}
	return out, nil
}

// CutoffUnmet lists complete monitored albums with at least one file below the
// cutoff of the artist's quality profile. Artists whose profile is unknown or
// does not allow upgrades are skipped.
func (s *Store) CutoffUnmet(ctx context.Context, now time.Time, profiles map[int]*quality.Profile) ([]Wanted, error) {
	candidates, err := s.monitoredAlbums(ctx, now)
	if err != nil {
		return nil, err
	}
	var out []Wanted
	for _, w := range candidates {
		profile := profiles[w.Artist.QualityProfileID]
		if w.Missing > 0 || profile == nil || !profile.UpgradeAllowed {
			continue
		}
		files, err := s.TrackFilesByAlbum(ctx, w.Album.ID)
		if err != nil {
			return nil, err
		}
		unmet := false
		for i, file := range files {
			if i == 0 || profile.Compare(file.Quality.Quality, w.Lowest) < 0 {
				w.Lowest = file.Quality.Quality
			}
			if !profile.CutoffMet(file.Quality.Quality) {
				unmet = true
			}
		}
		if unmet {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *Store) monitoredAlbums(ctx context.Context, now time.Time) ([]Wanted, error) {
	artists, err := s.Artists(ctx)
	if err != nil {
		return nil, fmt.Errorf("wanted: %w", err)
	}
	var out []Wanted
	for _, artist := range artists {
		if !artist.Monitored {
			continue
		}
		albums, err := s.AlbumsByArtist(ctx, artist.ID)
		if err != nil {
			return nil, fmt.Errorf("wanted: %w", err)
		}
		for _, album := range albums {
			if !album.Monitored || album.ReleaseDate.After(now) {
				continue
			}
			release := album.MonitoredRelease()
			if release == nil || len(release.Tracks) == 0 {
				continue
			}
			missing := 0
			for _, track := range release.Tracks {
				if !track.HasFile() {
					missing++
				}
			}
			out = append(out, Wanted{Artist: artist, Album: album, Missing: missing})
		}
	}
	return out, nil
}
