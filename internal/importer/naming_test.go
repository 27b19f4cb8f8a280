package importer_test

import (
	"path/filepath"
	"testing"

	"needle/internal/importer"
	"needle/internal/music"
	"needle/internal/testsupport"
)

func TestTrackPath(t *testing.T) {
	catalog := testsupport.NewCatalog()
	wall := catalog.Album(11)
	animals := catalog.Album(12)

	custom := music.NewArtist("AC/DC")
	custom.Path = "/srv/music/ACDC"
	undated := music.NewAlbum(2, "Live: At River Plate")
	single := &music.AlbumRelease{Tracks: []*music.Track{{MediumNumber: 1, TrackNumber: 7, Title: "Thunderstruck"}}}

	cases := []struct {
		name    string
		artist  *music.Artist
		album   *music.Album
		release *music.AlbumRelease
		tracks  []*music.Track
		ext     string
		want    string
	}{
		{
			name:    "single disc",
			artist:  catalog.Artist(),
			album:   animals,
			release: animals.Releases[0],
			tracks:  animals.Releases[0].Tracks[1:2],
			ext:     ".FLAC",
			want:    "/music/Pink Floyd/Animals (1977)/02 - Dogs.flac",
		},
		{
			name:    "multi disc",
			artist:  catalog.Artist(),
			album:   wall,
			release: wall.Releases[0],
			tracks:  wall.Releases[0].Tracks[2:3],
			ext:     ".mp3",
			want:    "/music/Pink Floyd/The Wall (1979)/2-01 - Hey You.mp3",
		},
		{
			name:    "joined tracks",
			artist:  catalog.Artist(),
			album:   wall,
			release: wall.Releases[0],
			tracks:  wall.Releases[0].Tracks[:2],
			ext:     ".flac",
			want:    "/music/Pink Floyd/The Wall (1979)/1-01 - In the Flesh + The Thin Ice.flac",
		},
		{
			name:    "artist path and sanitizing",
			artist:  custom,
			album:   undated,
			release: single,
			tracks:  single.Tracks,
			ext:     ".m4a",
			want:    "/srv/music/ACDC/Live- At River Plate/07 - Thunderstruck.m4a",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := importer.TrackPath("/music", tc.artist, tc.album, tc.release, tc.tracks, tc.ext)
			if got != filepath.FromSlash(tc.want) {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestArtistFolderSanitizesName(t *testing.T) {
	got := importer.ArtistFolder("/music", music.NewArtist("AC/DC"))
	if got != filepath.Join("/music", "AC-DC") {
		t.Fatalf("unexpected artist folder %q", got)
	}
}
