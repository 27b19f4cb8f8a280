package testsupport

import (
	"context"
	"slices"
	"sync"
	"time"

	"needle/internal/music"
)

// Catalog is an in-memory library catalog for tests.
type Catalog struct {
	ArtistList []*music.Artist
	Albums     map[int64][]*music.Album
}

// NewCatalog returns a catalog holding one artist with two albums:
// "The Wall" (1979, two discs) and "Animals" (1977).
func NewCatalog() *Catalog {
	artist := music.NewArtist("Pink Floyd")
	artist.ID = 1
	artist.QualityProfileID = 1

	wall := music.NewAlbum(1, "The Wall")
	wall.ID = 11
	wall.ReleaseDate = time.Date(1979, 11, 30, 0, 0, 0, 0, time.UTC)
	wall.Releases = []*music.AlbumRelease{{
		ID: 111, AlbumID: 11, Title: "The Wall", TrackCount: 4, Monitored: true,
		Duration: 26 * time.Minute,
		Tracks: []*music.Track{
			catalogTrack(1101, 11, 1, 1, 1, "In the Flesh?"),
			catalogTrack(1102, 11, 1, 2, 2, "The Thin Ice"),
			catalogTrack(1103, 11, 2, 1, 3, "Hey You"),
			catalogTrack(1104, 11, 2, 2, 4, "Is There Anybody Out There?"),
		},
	}}

	animals := music.NewAlbum(1, "Animals")
	animals.ID = 12
	animals.ReleaseDate = time.Date(1977, 1, 23, 0, 0, 0, 0, time.UTC)
	animals.Releases = []*music.AlbumRelease{{
		ID: 121, AlbumID: 12, Title: "Animals", TrackCount: 3, Monitored: true,
		Duration: 41 * time.Minute,
		Tracks: []*music.Track{
			catalogTrack(1201, 12, 1, 1, 1, "Pigs on the Wing 1"),
			catalogTrack(1202, 12, 1, 2, 2, "Dogs"),
			catalogTrack(1203, 12, 1, 3, 3, "Pigs (Three Different Ones)"),
		},
	}}

	return &Catalog{
		ArtistList: []*music.Artist{artist},
		Albums:     map[int64][]*music.Album{1: {wall, animals}},
	}
}

func catalogTrack(id, albumID int64, medium, number, absolute int, title string) *music.Track {
	return &music.Track{
		ID: id, ArtistID: 1, AlbumID: albumID, AlbumReleaseID: albumID*10 + 1,
		MediumNumber: medium, TrackNumber: number, AbsoluteTrackNumber: absolute,
		Title: title, Duration: 5 * time.Minute,
	}
}

// Artist returns the first artist.
func (c *Catalog) Artist() *music.Artist { return c.ArtistList[0] }

// Album returns the album with id, or nil.
func (c *Catalog) Album(id int64) *music.Album {
	for _, albums := range c.Albums {
		for _, album := range albums {
			if album.ID == id {
				return album
			}
		}
	}
	return nil
}

func (c *Catalog) ArtistByID(_ context.Context, id int64) (*music.Artist, error) {
	for _, artist := range c.ArtistList {
		if artist.ID == id {
			return artist, nil
		}
	}
	return nil, nil
}

func (c *Catalog) AlbumByID(_ context.Context, id int64) (*music.Album, error) {
	return c.Album(id), nil
}

func (c *Catalog) Artists(context.Context) ([]*music.Artist, error) {
	return c.ArtistList, nil
}

func (c *Catalog) ArtistByCleanName(_ context.Context, cleanName string) (*music.Artist, error) {
	for _, artist := range c.ArtistList {
		if artist.CleanName == cleanName {
			return artist, nil
		}
	}
	return nil, nil
}

func (c *Catalog) AlbumsByArtist(_ context.Context, artistID int64) ([]*music.Album, error) {
	return c.Albums[artistID], nil
}

// Files is an in-memory track file repository.
type Files struct {
	mu     sync.Mutex
	nextID int64
	files  []*music.TrackFile
}

// NewFiles returns an empty repository seeded with files.
func NewFiles(files ...*music.TrackFile) *Files {
	f := &Files{}
	for _, file := range files {
		_ = f.InsertTrackFile(context.Background(), file)
	}
	return f
}

// All returns a snapshot of every stored file.
func (f *Files) All() []*music.TrackFile {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.files)
}

func (f *Files) TrackFilesByAlbum(_ context.Context, albumID int64) ([]*music.TrackFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*music.TrackFile
	for _, file := range f.files {
		if file.AlbumID == albumID {
			out = append(out, file)
		}
	}
	return out, nil
}

func (f *Files) TrackFileByPath(_ context.Context, path string) (*music.TrackFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, file := range f.files {
		if file.Path == path {
			return file, nil
		}
	}
	return nil, nil
}

func (f *Files) InsertTrackFile(_ context.Context, file *music.TrackFile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	file.ID = f.nextID
	f.files = append(f.files, file)
	return nil
}

func (f *Files) DeleteTrackFile(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files = slices.DeleteFunc(f.files, func(file *music.TrackFile) bool { return file.ID == id })
	return nil
}
