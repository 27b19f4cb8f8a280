package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"needle/internal/decision"
	"needle/internal/download"
	"needle/internal/indexer"
	"needle/internal/library"
	"needle/internal/logging"
	"needle/internal/quality"
)

// WantedSource lists the albums a search looks for.
type WantedSource interface {
	AlbumsWithoutFiles(ctx context.Context, now time.Time) ([]library.Wanted, error)
	CutoffUnmet(ctx context.Context, now time.Time, profiles map[int]*quality.Profile) ([]library.Wanted, error)
}

// Searcher searches every indexer for wanted albums, one artist at a time.
type Searcher struct {
	wanted     WantedSource
	profiles   map[int]*quality.Profile
	indexers   []indexer.Indexer
	decisions  *decision.Maker
	comparator *decision.Comparator
	grabber    *download.Grabber
	now        func() time.Time
	logger     *slog.Logger
}

// NewSearcher returns the search task over s.
func NewSearcher(s *Services, logger *slog.Logger) *Searcher {
	return &Searcher{
		wanted:     s.Store,
		profiles:   s.Profiles,
		indexers:   s.Indexers,
		decisions:  s.Decisions,
		comparator: s.Comparator,
		grabber:    s.Grabber,
		now:        s.Now,
		logger:     logging.NewComponentLogger(logger, "search"),
	}
}

// Run searches for missing albums and albums below cutoff.
func (s *Searcher) Run(ctx context.Context) (SyncResult, error) {
	now := s.now()
	missing, err := s.wanted.AlbumsWithoutFiles(ctx, now)
	if err != nil {
		return SyncResult{}, err
	}
	upgrades, err := s.wanted.CutoffUnmet(ctx, now, s.profiles)
	if err != nil {
		return SyncResult{}, err
	}
	return s.Search(ctx, append(missing, upgrades...))
}

// Search runs one search per artist over the wanted albums.
func (s *Searcher) Search(ctx context.Context, wanted []library.Wanted) (SyncResult, error) {
	var (
		result SyncResult
		errs   []error
	)
	for _, criteria := range groupByArtist(wanted) {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		logger := logging.WithContext(ctx, s.logger).With(logging.String(logging.FieldArtist, criteria.Artist.Name))

		var releases []*indexer.Release
		for _, idx := range s.indexers {
			found, err := idx.Search(ctx, *criteria)
			if err != nil {
				logging.WarnWithContext(logger, "indexer search failed", "search_indexer_failed",
					logging.String(logging.FieldIndexer, idx.Name()),
					logging.Error(err),
					logging.String(logging.FieldImpact, "the albums are searched again on the next run"))
				errs = append(errs, err)
				continue
			}
			releases = append(releases, found...)
		}
		if len(releases) == 0 {
			logger.Debug("search found nothing", logging.Int("albums", len(criteria.Albums)))
			continue
		}
		result.Releases += len(releases)

		decisions := s.decisions.GetSearchDecisions(ctx, releases, criteria)
		processed := s.grabber.Process(ctx, s.comparator.Prioritize(decisions))
		result.Processed.Grabbed = append(result.Processed.Grabbed, processed.Grabbed...)
		result.Processed.Pending = append(result.Processed.Pending, processed.Pending...)
		result.Processed.Rejected = append(result.Processed.Rejected, processed.Rejected...)
		logger.Info("artist search finished",
			logging.Int("albums", len(criteria.Albums)),
			logging.Int("releases", len(releases)),
			logging.Int("grabbed", len(processed.Grabbed)),
		)
	}
	return result, errors.Join(errs...)
}

func groupByArtist(wanted []library.Wanted) []*indexer.SearchCriteria {
	var (
		out     []*indexer.SearchCriteria
		byID    = make(map[int64]*indexer.SearchCriteria)
		seenIDs = make(map[int64]bool)
	)
	for _, w := range wanted {
		if w.Artist == nil || w.Album == nil || seenIDs[w.Album.ID] {
			continue
		}
		seenIDs[w.Album.ID] = true
		criteria := byID[w.Artist.ID]
		if criteria == nil {
			criteria = &indexer.SearchCriteria{Artist: w.Artist}
			byID[w.Artist.ID] = criteria
			out = append(out, criteria)
		}
		criteria.Albums = append(criteria.Albums, w.Album)
	}
	for _, criteria := range out {
		criteria.Discography = len(criteria.Albums) > 1
	}
	return out
}
