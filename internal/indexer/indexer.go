package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"needle/internal/config"
)

// DownloadRequest is what a download client needs to start a release.
type DownloadRequest struct {
	Link    string
	Magnet  string
	Payload []byte
}

// Indexer is a release source.
type Indexer interface {
	Name() string
	Protocol() Protocol
	Search(ctx context.Context, criteria SearchCriteria) ([]*Release, error)
	GetRecent(ctx context.Context) ([]*Release, error)
	GetDownloadRequest(ctx context.Context, release *Release) (DownloadRequest, error)
}

// FromConfig builds the enabled indexers.
func FromConfig(indexers []config.Indexer, logger *slog.Logger, now func() time.Time) ([]Indexer, error) {
	out := make([]Indexer, 0, len(indexers))
	for _, cfg := range indexers {
		if !cfg.Enabled {
			continue
		}
		switch cfg.Kind {
		case config.IndexerKindStatic:
			out = append(out, NewStaticFeed(cfg, logger, now))
		default:
			return nil, fmt.Errorf("indexer %q: unsupported kind %q", cfg.Name, cfg.Kind)
		}
	}
	return out, nil
}
