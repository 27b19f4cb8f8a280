package specs

import (
	"context"

	"github.com/dustin/go-humanize"

	"needle/internal/decision"
	"needle/internal/indexer"
	"needle/internal/quality"
)

// AcceptableSize keeps a release inside the bitrate envelope of its quality
// for the duration of the albums it covers.
type AcceptableSize struct{ deps Dependencies }

func (AcceptableSize) Name() string { return "AcceptableSize" }

func (s AcceptableSize) Evaluate(_ context.Context, remote *decision.RemoteAlbum, _ *indexer.SearchCriteria) (decision.Result, error) {
	seconds := int64(remote.Duration().Seconds())
	if seconds <= 0 || remote.ParsedInfo == nil {
		return decision.Accept(), nil
	}
	def := s.deps.Definitions.Get(remote.ParsedInfo.Quality.Quality)
	size := remote.Release.Size
	if def.MinKbps > 0 {
		minimum := quality.SizeForDuration(def.MinKbps, seconds)
		if size < minimum {
			return decision.Reject("%s is smaller than minimum allowed %s", formatSize(size), formatSize(minimum)), nil
		}
	}
	if def.MaxKbps > 0 {
		maximum := quality.SizeForDuration(def.MaxKbps, seconds)
		if size > maximum {
			return decision.Reject("%s is larger than maximum allowed %s", formatSize(size), formatSize(maximum)), nil
		}
	}
	return decision.Accept(), nil
}

// MaximumSize applies the global size ceiling.
type MaximumSize struct{ deps Dependencies }

func (MaximumSize) Name() string { return "MaximumSize" }

func (s MaximumSize) Evaluate(_ context.Context, remote *decision.RemoteAlbum, _ *indexer.SearchCriteria) (decision.Result, error) {
	limit := int64(s.deps.Decisions.MaximumSizeMB) << 20
	if limit <= 0 || remote.Release.Size <= limit {
		return decision.Accept(), nil
	}
	return decision.Reject("%s is too big, maximum size is %s", formatSize(remote.Release.Size), formatSize(limit)), nil
}

func formatSize(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}
