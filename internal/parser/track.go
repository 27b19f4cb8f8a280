package parser

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"needle/internal/quality"
)

// ParsedTrackInfo is what a file path says about one track.
type ParsedTrackInfo struct {
	ArtistTitle  string
	AlbumTitle   string
	Title        string
	DiscNumber   int
	TrackNumber  int
	Year         int
	ReleaseGroup string
	Quality      quality.Model
}

var (
	fullTrackPattern  = regexp.MustCompile(`^(?P<artist>.+?) - (?P<album>.+?) - (?P<track>\d{1,3}) - (?P<title>.+)$`)
	discTrackPattern  = regexp.MustCompile(`^(?P<disc>\d{1,2})[-.](?P<track>\d{1,3})\s*(?:[-._]\s*)?(?P<title>.+)$`)
	trackPattern      = regexp.MustCompile(`^(?P<track>\d{1,3})\s*(?:[-._)]\s*)?(?P<title>.+)$`)
	discFolderPattern = regexp.MustCompile(`(?i)^(?:cd|disc|disk)\s*(\d{1,2})$`)
)

// ParseMusicPath reads disc, track number, title and album hints from a file
// path and its folders.
func ParseMusicPath(path string) *ParsedTrackInfo {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	base = strings.TrimSpace(strings.ReplaceAll(base, "_", " "))
	if base == "" {
		return nil
	}
	info := &ParsedTrackInfo{}

	dir := filepath.Dir(path)
	folder := filepath.Base(dir)
	if match := discFolderPattern.FindStringSubmatch(folder); match != nil {
		info.DiscNumber, _ = strconv.Atoi(match[1])
		folder = filepath.Base(filepath.Dir(dir))
	}
	if album := ParseAlbumTitle(folder); album != nil {
		info.ArtistTitle = album.ArtistName
		info.AlbumTitle = album.AlbumTitle
		info.Year = album.ReleaseYear
		info.ReleaseGroup = album.ReleaseGroup
	}

	switch {
	case fullTrackPattern.MatchString(base):
		match := fullTrackPattern.FindStringSubmatch(base)
		info.ArtistTitle = match[fullTrackPattern.SubexpIndex("artist")]
		info.AlbumTitle = match[fullTrackPattern.SubexpIndex("album")]
		info.TrackNumber, _ = strconv.Atoi(match[fullTrackPattern.SubexpIndex("track")])
		info.Title = match[fullTrackPattern.SubexpIndex("title")]
	case discTrackPattern.MatchString(base):
		match := discTrackPattern.FindStringSubmatch(base)
		info.DiscNumber, _ = strconv.Atoi(match[discTrackPattern.SubexpIndex("disc")])
		info.TrackNumber, _ = strconv.Atoi(match[discTrackPattern.SubexpIndex("track")])
		info.Title = match[discTrackPattern.SubexpIndex("title")]
	case trackPattern.MatchString(base):
		match := trackPattern.FindStringSubmatch(base)
		info.TrackNumber, _ = strconv.Atoi(match[trackPattern.SubexpIndex("track")])
		info.Title = match[trackPattern.SubexpIndex("title")]
	default:
		info.Title = base
	}
	if artist, title, ok := strings.Cut(info.Title, " - "); ok && info.TrackNumber > 0 {
		if info.ArtistTitle == "" {
			info.ArtistTitle = strings.TrimSpace(artist)
		}
		info.Title = title
	}
	info.Title = strings.TrimSpace(info.Title)
	if info.DiscNumber == 0 {
		info.DiscNumber = 1
	}
	info.Quality = pathQuality(path, folder)
	return info
}

// pathQuality combines the extension with quality tags on the folder name.
func pathQuality(path, folder string) quality.Model {
	fromExt := quality.FromExtension(path)
	fromFolder := quality.ParseTitle(folder)
	model := quality.Model{Quality: fromExt, Revision: fromFolder.Revision}
	switch {
	case fromExt == quality.FLAC && fromFolder.Quality == quality.FLAC24:
		model.Quality = quality.FLAC24
	case fromExt == quality.Unknown && strings.EqualFold(filepath.Ext(path), ".mp3") && isMP3(fromFolder.Quality):
		model.Quality = fromFolder.Quality
	case fromExt == quality.AACVBR && isAAC(fromFolder.Quality):
		model.Quality = fromFolder.Quality
	case fromExt == quality.AACVBR && (fromFolder.Quality == quality.ALAC || fromFolder.Quality == quality.ALAC24):
		model.Quality = fromFolder.Quality
	}
	return model
}

func isMP3(q quality.Quality) bool {
	return strings.HasPrefix(q.Name, "MP3")
}

func isAAC(q quality.Quality) bool {
	return strings.HasPrefix(q.Name, "AAC")
}

// AlbumFolder returns the folder holding the album a file belongs to, stepping
// over a disc subfolder such as "CD2".
func AlbumFolder(path string) string {
	dir := filepath.Dir(path)
	if discFolderPattern.MatchString(filepath.Base(dir)) {
		return filepath.Dir(dir)
	}
	return dir
}
