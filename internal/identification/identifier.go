package identification

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"needle/internal/logging"
	"needle/internal/music"
	"needle/internal/parser"
	"needle/internal/textutil"
)

const (
	defaultAlbumThreshold = 0.2
	defaultTrackThreshold = 0.3
	artistThreshold       = 0.15
	yearMismatchPenalty   = 0.1
	fingerprintWeight     = 0.3
)

// Catalog is the library view identification needs. AlbumsByArtist must
// return albums with their releases and tracks loaded.
type Catalog interface {
	Artists(ctx context.Context) ([]*music.Artist, error)
	AlbumsByArtist(ctx context.Context, artistID int64) ([]*music.Album, error)
}

// Options tunes matching. Zero thresholds use the defaults.
type Options struct {
	AlbumThreshold float64
	TrackThreshold float64
	CacheTTL       time.Duration
	Now            func() time.Time
	Logger         *slog.Logger
}

// Identifier groups local tracks and matches them to the catalog.
type Identifier struct {
	catalog        Catalog
	albumThreshold float64
	trackThreshold float64
	artists        *Cache[string, []*music.Artist]
	albums         *Cache[int64, []*music.Album]
	logger         *slog.Logger
}

// New builds an Identifier.
func New(catalog Catalog, opts Options) *Identifier {
	if opts.AlbumThreshold <= 0 {
		opts.AlbumThreshold = defaultAlbumThreshold
	}
	if opts.TrackThreshold <= 0 {
		opts.TrackThreshold = defaultTrackThreshold
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Identifier{
		catalog:        catalog,
		albumThreshold: opts.AlbumThreshold,
		trackThreshold: opts.TrackThreshold,
		artists:        NewCache[string, []*music.Artist](opts.CacheTTL, opts.Now),
		albums:         NewCache[int64, []*music.Album](opts.CacheTTL, opts.Now),
		logger:         logging.NewComponentLogger(logger, "identification"),
	}
}

// Invalidate forgets cached catalog lookups.
func (i *Identifier) Invalidate() {
	i.artists.Clear()
	i.albums.Clear()
}

// Identify clusters tracks into album releases and matches each against the
// catalog. Non-nil overrides pin the artist, album or release. Groups that
// cannot be matched are returned with nil Album/Release so callers can reject
// their tracks individually.
func (i *Identifier) Identify(ctx context.Context, tracks []*music.LocalTrack, artist *music.Artist, album *music.Album, release *music.AlbumRelease, newDownload bool) ([]*music.LocalAlbumRelease, error) {
	if len(tracks) == 0 {
		return nil, nil
	}
	var groups [][]*music.LocalTrack
	if album != nil {
		groups = [][]*music.LocalTrack{tracks}
	} else {
		groups = clusterByFolder(tracks)
	}

	results := make([]*music.LocalAlbumRelease, 0, len(groups))
	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		candidate := &music.LocalAlbumRelease{LocalTracks: group, NewDownload: newDownload, Distance: 1}
		if err := i.identifyGroup(ctx, candidate, artist, album, release); err != nil {
			return nil, err
		}
		results = append(results, candidate)
	}
	return results, nil
}

func (i *Identifier) identifyGroup(ctx context.Context, candidate *music.LocalAlbumRelease, artist *music.Artist, album *music.Album, release *music.AlbumRelease) error {
	group := candidate.LocalTracks
	for _, lt := range group {
		lt.Distance = 1
	}

	if artist == nil {
		resolved, err := i.resolveArtist(ctx, mostCommon(group, (*music.LocalTrack).ArtistNameHint))
		if err != nil {
			return err
		}
		artist = resolved
	}
	if artist == nil {
		i.logger.Debug("no artist match",
			logging.String(logging.FieldPath, groupFolder(group)),
			logging.String("artist_hint", mostCommon(group, (*music.LocalTrack).ArtistNameHint)))
		return nil
	}
	candidate.Artist = artist
	for _, lt := range group {
		lt.Artist = artist
	}

	albums, err := i.albumsFor(ctx, artist.ID)
	if err != nil {
		return err
	}
	distance := 0.0
	if album == nil {
		album, distance = i.resolveAlbum(group, albums)
	} else if loaded := findAlbum(albums, album.ID); loaded != nil && len(album.Releases) == 0 {
		album = loaded
	}
	if album == nil {
		i.logger.Debug("no album match",
			logging.String(logging.FieldArtist, artist.Name),
			logging.String(logging.FieldPath, groupFolder(group)),
			logging.String("album_hint", mostCommon(group, (*music.LocalTrack).AlbumTitleHint)))
		return nil
	}
	if release == nil {
		release = pickRelease(album, len(group))
	}
	if release == nil {
		return nil
	}

	candidate.Album = album
	candidate.Release = release
	candidate.Distance = distance
	for _, lt := range group {
		lt.Album = album
		lt.Release = release
		i.mapTrack(lt, release)
	}
	i.logger.Debug("identified album release",
		logging.String(logging.FieldArtist, artist.Name),
		logging.String(logging.FieldAlbum, album.Title),
		logging.String(logging.FieldRelease, release.Title),
		logging.Float64("distance", distance),
		logging.Int("tracks", len(group)))
	return nil
}

func (i *Identifier) artistsList(ctx context.Context) ([]*music.Artist, error) {
	if artists, ok := i.artists.Get(""); ok {
		return artists, nil
	}
	artists, err := i.catalog.Artists(ctx)
	if err != nil {
		return nil, fmt.Errorf("load artists: %w", err)
	}
	i.artists.Put("", artists)
	return artists, nil
}

func (i *Identifier) albumsFor(ctx context.Context, artistID int64) ([]*music.Album, error) {
	if albums, ok := i.albums.Get(artistID); ok {
		return albums, nil
	}
	albums, err := i.catalog.AlbumsByArtist(ctx, artistID)
	if err != nil {
		return nil, fmt.Errorf("load albums for artist %d: %w", artistID, err)
	}
	i.albums.Put(artistID, albums)
	return albums, nil
}

func (i *Identifier) resolveArtist(ctx context.Context, hint string) (*music.Artist, error) {
	clean := textutil.CleanName(hint)
	if clean == "" {
		return nil, nil
	}
	artists, err := i.artistsList(ctx)
	if err != nil {
		return nil, err
	}
	var best *music.Artist
	bestDistance := 1.0
	for _, artist := range artists {
		if artist.CleanName == clean {
			return artist, nil
		}
		if d := textutil.Distance(hint, artist.Name); d < bestDistance {
			best, bestDistance = artist, d
		}
	}
	if bestDistance > artistThreshold {
		return nil, nil
	}
	return best, nil
}

func (i *Identifier) resolveAlbum(group []*music.LocalTrack, albums []*music.Album) (*music.Album, float64) {
	hint := mostCommon(group, (*music.LocalTrack).AlbumTitleHint)
	year := groupYear(group)
	titles := make([]string, 0, len(group))
	for _, lt := range group {
		if lt.FileInfo != nil && lt.FileInfo.Title != "" {
			titles = append(titles, lt.FileInfo.Title)
		}
	}
	local := textutil.NewFingerprint(titles...)

	var best *music.Album
	bestDistance := 1.0
	for _, album := range albums {
		d := albumDistance(hint, year, local, album)
		if d < bestDistance {
			best, bestDistance = album, d
		}
	}
	if best == nil || bestDistance > i.albumThreshold {
		return nil, bestDistance
	}
	return best, bestDistance
}

// albumDistance is the title distance, lowered when the local track titles
// cover the album's monitored release well.
func albumDistance(hint string, year int, local *textutil.Fingerprint, album *music.Album) float64 {
	var remote *textutil.Fingerprint
	if release := album.MonitoredRelease(); release != nil {
		names := make([]string, 0, len(release.Tracks))
		for _, track := range release.Tracks {
			names = append(names, track.Title)
		}
		remote = textutil.NewFingerprint(names...)
	}

	var d float64
	switch {
	case hint != "" && local != nil && remote != nil:
		title := textutil.Distance(hint, album.Title)
		d = min(title, (1-fingerprintWeight)*title+fingerprintWeight*(1-local.Cosine(remote)))
	case hint != "":
		d = textutil.Distance(hint, album.Title)
	case local != nil && remote != nil:
		d = 1 - local.Cosine(remote)
	default:
		return 1
	}
	if year > 0 && album.Year() > 0 && year != album.Year() {
		d += yearMismatchPenalty
	}
	return min(d, 1)
}

// mapTrack assigns catalog tracks by disc and number, falling back to the
// closest title. Several files may map to the same track.
func (i *Identifier) mapTrack(lt *music.LocalTrack, release *music.AlbumRelease) {
	lt.Tracks = nil
	lt.Distance = 1
	info := lt.FileInfo
	if info == nil {
		return
	}

	var byNumber *music.Track
	numberDistance := 1.0
	if info.TrackNumber > 0 {
		byNumber = release.FindTrack(info.DiscNumber, info.TrackNumber)
		if byNumber == nil && info.DiscNumber <= 1 {
			byNumber = release.FindTrack(0, info.TrackNumber)
		}
		if byNumber != nil {
			numberDistance = 0
			if info.Title != "" {
				numberDistance = textutil.Distance(info.Title, byNumber.Title)
			}
		}
	}

	var byTitle *music.Track
	titleDistance := 1.0
	if info.Title != "" && numberDistance > i.trackThreshold {
		for _, track := range release.Tracks {
			if d := textutil.Distance(info.Title, track.Title); d < titleDistance {
				byTitle, titleDistance = track, d
			}
		}
	}

	switch {
	case byTitle != nil && titleDistance <= i.trackThreshold && titleDistance < numberDistance:
		lt.Tracks = []*music.Track{byTitle}
		lt.Distance = titleDistance
	case byNumber != nil:
		lt.Tracks = []*music.Track{byNumber}
		lt.Distance = numberDistance
	case byTitle != nil:
		lt.Distance = titleDistance
	}
}

// pickRelease prefers the release whose track count is closest to the number
// of local files, breaking ties towards the monitored one.
func pickRelease(album *music.Album, files int) *music.AlbumRelease {
	var best *music.AlbumRelease
	bestGap := -1
	for _, release := range album.Releases {
		count := release.TrackCount
		if count == 0 {
			count = len(release.Tracks)
		}
		gap := count - files
		if gap < 0 {
			gap = -gap
		}
		if best == nil || gap < bestGap || (gap == bestGap && release.Monitored && !best.Monitored) {
			best, bestGap = release, gap
		}
	}
	return best
}

func findAlbum(albums []*music.Album, id int64) *music.Album {
	for _, album := range albums {
		if album.ID == id {
			return album
		}
	}
	return nil
}

// clusterByFolder groups tracks by album folder, keeping first-seen order.
func clusterByFolder(tracks []*music.LocalTrack) [][]*music.LocalTrack {
	index := make(map[string]int)
	var groups [][]*music.LocalTrack
	for _, lt := range tracks {
		key := parser.AlbumFolder(lt.Path)
		pos, ok := index[key]
		if !ok {
			pos = len(groups)
			index[key] = pos
			groups = append(groups, nil)
		}
		groups[pos] = append(groups[pos], lt)
	}
	return groups
}

func groupFolder(group []*music.LocalTrack) string {
	if len(group) == 0 {
		return ""
	}
	return parser.AlbumFolder(group[0].Path)
}

func groupYear(group []*music.LocalTrack) int {
	for _, lt := range group {
		switch {
		case lt.ClientInfo != nil && lt.ClientInfo.ReleaseYear > 0:
			return lt.ClientInfo.ReleaseYear
		case lt.FolderInfo != nil && lt.FolderInfo.ReleaseYear > 0:
			return lt.FolderInfo.ReleaseYear
		case lt.FileInfo != nil && lt.FileInfo.Year > 0:
			return lt.FileInfo.Year
		}
	}
	return 0
}

// mostCommon returns the most frequent non-empty hint, ties going to the one
// seen first.
func mostCommon(group []*music.LocalTrack, hint func(*music.LocalTrack) string) string {
	counts := make(map[string]int)
	var order []string
	for _, lt := range group {
		value := strings.TrimSpace(hint(lt))
		if value == "" {
			continue
		}
		if counts[value] == 0 {
			order = append(order, value)
		}
		counts[value]++
	}
	if len(order) == 0 {
		return ""
	}
	sort.SliceStable(order, func(a, b int) bool { return counts[order[a]] > counts[order[b]] })
	return order[0]
}
