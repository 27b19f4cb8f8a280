package decision

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"needle/internal/customformat"
	"needle/internal/indexer"
	"needle/internal/logging"
	"needle/internal/music"
	"needle/internal/parser"
	"needle/internal/quality"
	"needle/internal/textutil"
)

// Rejection reasons produced by the maker itself.
const (
	ReasonUnknownArtist    = "Unknown Artist"
	ReasonUnknownAlbums    = "Unable to parse albums from release name"
	ReasonUnexpectedError  = "Unexpected error processing release"
	albumSimilarityMinimum = 0.85
)

// Catalog is the read side of the library the maker maps releases onto.
type Catalog interface {
	ArtistByCleanName(ctx context.Context, cleanName string) (*music.Artist, error)
	Artists(ctx context.Context) ([]*music.Artist, error)
	AlbumsByArtist(ctx context.Context, artistID int64) ([]*music.Album, error)
}

// MakerOptions configures a Maker.
type MakerOptions struct {
	Catalog        Catalog
	Specifications []ReleaseSpecification
	Formats        *customformat.Calculator
	Profiles       map[int]*quality.Profile
	Workers        int
	Logger         *slog.Logger
}

// Maker turns raw releases into decisions.
type Maker struct {
	catalog  Catalog
	specs    []ReleaseSpecification
	formats  *customformat.Calculator
	profiles map[int]*quality.Profile
	workers  int
	logger   *slog.Logger
}

// NewMaker constructs a decision maker.
func NewMaker(opts MakerOptions) *Maker {
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Maker{
		catalog:  opts.Catalog,
		specs:    opts.Specifications,
		formats:  opts.Formats,
		profiles: opts.Profiles,
		workers:  workers,
		logger:   logging.NewComponentLogger(opts.Logger, "decision"),
	}
}

// GetRssDecisions evaluates releases found without a search.
func (m *Maker) GetRssDecisions(ctx context.Context, releases []*indexer.Release) []*ReleaseDecision {
	return m.getDecisions(ctx, releases, nil)
}

// GetSearchDecisions evaluates releases returned for criteria.
func (m *Maker) GetSearchDecisions(ctx context.Context, releases []*indexer.Release, criteria *indexer.SearchCriteria) []*ReleaseDecision {
	return m.getDecisions(ctx, releases, criteria)
}

// getDecisions returns one decision per release, in input order. A failure
// while evaluating one release never affects the others.
func (m *Maker) getDecisions(ctx context.Context, releases []*indexer.Release, criteria *indexer.SearchCriteria) []*ReleaseDecision {
	decisions := make([]*ReleaseDecision, len(releases))
	if len(releases) == 0 {
		return decisions
	}
	m.logger.Debug("evaluating releases",
		logging.Int("count", len(releases)),
		logging.Bool("search", criteria != nil),
	)

	var g errgroup.Group
	g.SetLimit(m.workers)
	for i, release := range releases {
		g.Go(func() error {
			decisions[i] = m.evaluateRelease(ctx, release, criteria)
			return nil
		})
	}
	_ = g.Wait()

	accepted := 0
	for _, d := range decisions {
		if d.Accepted() {
			accepted++
		}
	}
	m.logger.Info("release evaluation complete",
		logging.Int("releases", len(releases)),
		logging.Int("accepted", accepted),
	)
	return decisions
}

func (m *Maker) evaluateRelease(ctx context.Context, release *indexer.Release, criteria *indexer.SearchCriteria) (decision *ReleaseDecision) {
	remote := &RemoteAlbum{Release: release}
	logger := m.logger.With(logging.String(logging.FieldRelease, release.Title))
	defer func() {
		if err := Recovered(recover()); err != nil {
			logging.ErrorWithContext(logger, "release evaluation failed", "release_evaluation_error",
				logging.Error(err),
				logging.String(logging.FieldImpact, "release rejected; remaining releases continue"),
			)
			decision = NewDecision(remote, Rejection{Reason: ReasonUnexpectedError, Category: Permanent})
		}
	}()

	decision, err := m.decide(ctx, remote, criteria, logger)
	if err != nil {
		logging.ErrorWithContext(logger, "release evaluation failed", "release_evaluation_error",
			logging.Error(err),
			logging.String(logging.FieldImpact, "release rejected; remaining releases continue"),
		)
		return NewDecision(remote, Rejection{Reason: ReasonUnexpectedError, Category: Permanent})
	}

	result := "accepted"
	reason := ""
	if !decision.Accepted() {
		result = "rejected"
		reason = strings.Join(decision.Reasons(), "; ")
	}
	logger.Debug("release decision", logging.Args(logging.DecisionAttrs("release", result, reason)...)...)
	return decision
}

func (m *Maker) decide(ctx context.Context, remote *RemoteAlbum, criteria *indexer.SearchCriteria, logger *slog.Logger) (*ReleaseDecision, error) {
	parsed, err := m.parse(ctx, remote.Release, criteria)
	if err != nil {
		return nil, err
	}
	remote.ParsedInfo = parsed
	if parsed == nil || strings.TrimSpace(parsed.ArtistName) == "" {
		return NewDecision(remote, Rejection{Reason: ReasonUnknownArtist, Category: Permanent}), nil
	}

	if err := m.mapRemote(ctx, remote, criteria); err != nil {
		return nil, err
	}
	if remote.Artist == nil {
		return NewDecision(remote, Rejection{Reason: ReasonUnknownArtist, Category: Permanent}), nil
	}
	if len(remote.Albums) == 0 {
		return NewDecision(remote, Rejection{Reason: ReasonUnknownAlbums, Category: Permanent}), nil
	}

	remote.CustomFormats = m.formats.Match(customformat.Input{
		Title:        remote.Release.Title,
		ReleaseGroup: parsed.ReleaseGroup,
		Size:         remote.Release.Size,
		Protocol:     string(remote.Release.Protocol),
	})
	remote.CustomFormatScore = m.profiles[remote.Artist.QualityProfileID].FormatScore(remote.CustomFormats)
	remote.DownloadAllowed = true

	rejections := Evaluate(ctx, logger, m.specs, remote, criteria)
	return NewDecision(remote, rejections...), nil
}

// parse reads the release title, reparsing against the searched artist or
// against catalog artists when the plain parse does not find an artist.
func (m *Maker) parse(ctx context.Context, release *indexer.Release, criteria *indexer.SearchCriteria) (*parser.ParsedAlbumInfo, error) {
	parsed := parser.ParseAlbumTitle(release.Title)
	if criteria != nil && criteria.Artist != nil {
		if parsed == nil || parsed.CleanArtistName() != criteria.Artist.CleanName {
			if reparsed := parser.ParseAlbumTitleWithSearchCriteria(release.Title, criteria.Artist.Name, criteria.AlbumTitles()); reparsed != nil {
				return reparsed, nil
			}
		}
		return parsed, nil
	}
	if parsed != nil || m.catalog == nil {
		return parsed, nil
	}

	artists, err := m.catalog.Artists(ctx)
	if err != nil {
		return nil, fmt.Errorf("list artists: %w", err)
	}
	sort.SliceStable(artists, func(i, j int) bool {
		return len(artists[i].CleanName) > len(artists[j].CleanName)
	})
	cleanTitle := textutil.CleanName(release.Title)
	for _, artist := range artists {
		if artist.CleanName == "" || !strings.HasPrefix(cleanTitle, artist.CleanName) {
			continue
		}
		albums, err := m.catalog.AlbumsByArtist(ctx, artist.ID)
		if err != nil {
			return nil, fmt.Errorf("list albums for %s: %w", artist.Name, err)
		}
		titles := make([]string, 0, len(albums))
		for _, album := range albums {
			titles = append(titles, album.Title)
		}
		if reparsed := parser.ParseAlbumTitleWithSearchCriteria(release.Title, artist.Name, titles); reparsed != nil {
			return reparsed, nil
		}
	}
	return nil, nil
}

// mapRemote resolves the artist and albums a parsed release refers to.
func (m *Maker) mapRemote(ctx context.Context, remote *RemoteAlbum, criteria *indexer.SearchCriteria) error {
	parsed := remote.ParsedInfo
	clean := parsed.CleanArtistName()
	if criteria != nil && criteria.Artist != nil && criteria.Artist.CleanName == clean {
		remote.Artist = criteria.Artist
	} else if m.catalog != nil {
		artist, err := m.catalog.ArtistByCleanName(ctx, clean)
		if err != nil {
			return fmt.Errorf("find artist: %w", err)
		}
		remote.Artist = artist
	}
	if remote.Artist == nil {
		return nil
	}

	var candidates []*music.Album
	if criteria != nil && criteria.Artist != nil && criteria.Artist.ID == remote.Artist.ID && len(criteria.Albums) > 0 {
		candidates = criteria.Albums
		if albums := MatchAlbums(parsed, candidates); len(albums) > 0 {
			remote.Albums = albums
			return nil
		}
	}
	if m.catalog == nil {
		return nil
	}
	all, err := m.catalog.AlbumsByArtist(ctx, remote.Artist.ID)
	if err != nil {
		return fmt.Errorf("list albums: %w", err)
	}
	remote.Albums = MatchAlbums(parsed, all)
	return nil
}

// MatchAlbums picks the albums a parsed release covers: every album inside a
// discography's year range, or the single best title match.
func MatchAlbums(parsed *parser.ParsedAlbumInfo, albums []*music.Album) []*music.Album {
	if parsed.Discography {
		var out []*music.Album
		for _, album := range albums {
			year := album.Year()
			if parsed.DiscographyStart > 0 && (year < parsed.DiscographyStart || year > parsed.DiscographyEnd) {
				continue
			}
			out = append(out, album)
		}
		return out
	}
	cleanTitle := textutil.CleanName(parsed.AlbumTitle)
	if cleanTitle == "" {
		return nil
	}
	for _, album := range albums {
		if album.CleanTitle == cleanTitle {
			return []*music.Album{album}
		}
	}
	if parsed.ReleaseVersion != "" {
		stripped := textutil.CleanName(strings.Replace(parsed.AlbumTitle, "("+parsed.ReleaseVersion+")", "", 1))
		for _, album := range albums {
			if stripped != "" && album.CleanTitle == stripped {
				return []*music.Album{album}
			}
		}
	}
	var best *music.Album
	bestScore := albumSimilarityMinimum
	for _, album := range albums {
		score := textutil.Similarity(parsed.AlbumTitle, album.Title)
		if parsed.ReleaseYear > 0 && album.Year() > 0 && parsed.ReleaseYear != album.Year() {
			score -= 0.05
		}
		if score >= bestScore {
			best, bestScore = album, score
		}
	}
	if best == nil {
		return nil
	}
	return []*music.Album{best}
}
