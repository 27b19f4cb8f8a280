package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"needle/internal/decision"
	"needle/internal/download"
	"needle/internal/indexer"
	"needle/internal/logging"
)

// SyncResult summarizes one rss or search run.
type SyncResult struct {
	Releases  int
	Processed download.Processed
}

// RSSSync fetches recent releases from every indexer and grabs the best
// accepted ones.
type RSSSync struct {
	indexers   []indexer.Indexer
	decisions  *decision.Maker
	comparator *decision.Comparator
	grabber    *download.Grabber
	logger     *slog.Logger
}

// NewRSSSync returns the rss task over s.
func NewRSSSync(s *Services, logger *slog.Logger) *RSSSync {
	return &RSSSync{
		indexers:   s.Indexers,
		decisions:  s.Decisions,
		comparator: s.Comparator,
		grabber:    s.Grabber,
		logger:     logging.NewComponentLogger(logger, "rss_sync"),
	}
}

// Run performs one sync. Indexers are queried concurrently; one failing
// indexer does not stop the others, and its error is returned once the
// remaining releases were processed.
func (r *RSSSync) Run(ctx context.Context) (SyncResult, error) {
	var (
		mu       sync.Mutex
		releases []*indexer.Release
		errs     []error
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, idx := range r.indexers {
		g.Go(func() error {
			recent, err := idx.GetRecent(gctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logging.WarnWithContext(logging.WithContext(gctx, r.logger), "indexer rss fetch failed", "rss_indexer_failed",
					logging.String(logging.FieldIndexer, idx.Name()),
					logging.Error(err),
					logging.String(logging.FieldImpact, "releases of this indexer are skipped until the next sync"))
				errs = append(errs, err)
				return nil
			}
			releases = append(releases, recent...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return SyncResult{}, err
	}

	result := SyncResult{Releases: len(releases)}
	if len(releases) > 0 {
		decisions := r.decisions.GetRssDecisions(ctx, releases)
		result.Processed = r.grabber.Process(ctx, r.comparator.Prioritize(decisions))
	}
	logging.WithContext(ctx, r.logger).Info("rss sync finished",
		logging.Int("releases", result.Releases),
		logging.Int("grabbed", len(result.Processed.Grabbed)),
		logging.Int("pending", len(result.Processed.Pending)),
		logging.Int("rejected", len(result.Processed.Rejected)),
	)
	return result, errors.Join(errs...)
}
