package importer

import (
	"fmt"
	"path/filepath"
	"strings"

	"needle/internal/music"
	"needle/internal/textutil"
)

// ArtistFolder is the artist's own path, or a sanitized folder under library.
func ArtistFolder(library string, artist *music.Artist) string {
	if artist.Path != "" {
		return artist.Path
	}
	return filepath.Join(library, textutil.SanitizeFileName(artist.Name))
}

// TrackPath names a library file:
// <artist folder>/<Album> (<year>)/<disc->NN - <Title><ext>. The disc prefix is
// only used for releases spanning several media.
func TrackPath(library string, artist *music.Artist, album *music.Album, release *music.AlbumRelease, tracks []*music.Track, ext string) string {
	albumFolder := album.Title
	if year := album.Year(); year > 0 {
		albumFolder = fmt.Sprintf("%s (%d)", album.Title, year)
	}

	first := tracks[0]
	number := fmt.Sprintf("%02d", first.TrackNumber)
	if mediaCount(release) > 1 {
		number = fmt.Sprintf("%d-%02d", max(first.MediumNumber, 1), first.TrackNumber)
	}
	titles := make([]string, 0, len(tracks))
	for _, track := range tracks {
		titles = append(titles, track.Title)
	}
	name := fmt.Sprintf("%s - %s", number, strings.Join(titles, " + "))

	return filepath.Join(
		ArtistFolder(library, artist),
		textutil.SanitizeFileName(albumFolder),
		textutil.SanitizeFileName(name)+strings.ToLower(ext),
	)
}

func mediaCount(release *music.AlbumRelease) int {
	if release == nil {
		return 1
	}
	media := make(map[int]struct{})
	for _, track := range release.Tracks {
		media[track.MediumNumber] = struct{}{}
	}
	return len(media)
}
