package specs

import (
	"context"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"needle/internal/decision"
	"needle/internal/indexer"
)

// Retention drops usenet posts older than the provider keeps.
type Retention struct{ deps Dependencies }

func (Retention) Name() string { return "Retention" }

func (s Retention) Evaluate(_ context.Context, remote *decision.RemoteAlbum, _ *indexer.SearchCriteria) (decision.Result, error) {
	days := s.deps.Decisions.RetentionDays
	if remote.Release.Protocol != indexer.ProtocolUsenet || days <= 0 {
		return decision.Accept(), nil
	}
	if age := remote.Release.AgeDays(s.deps.now()); age > days {
		return decision.Reject("Older than configured retention (%d days > %d days)", age, days), nil
	}
	return decision.Accept(), nil
}

// MinimumAge holds back fresh usenet posts until they have propagated. It is
// a temporary rejection and does not apply to user-invoked searches.
type MinimumAge struct{ deps Dependencies }

func (MinimumAge) Name() string { return "MinimumAge" }

func (s MinimumAge) Evaluate(_ context.Context, remote *decision.RemoteAlbum, criteria *indexer.SearchCriteria) (decision.Result, error) {
	minimum := time.Duration(s.deps.Decisions.MinimumAgeMinutes) * time.Minute
	if remote.Release.Protocol != indexer.ProtocolUsenet || minimum <= 0 {
		return decision.Accept(), nil
	}
	if criteria != nil && criteria.UserInvoked {
		return decision.Accept(), nil
	}
	now := s.deps.now()
	if age := remote.Release.Age(now); age < minimum {
		return decision.RejectTemporarily("Only %s old, minimum age is %d minutes",
			strings.TrimSpace(humanize.RelTime(remote.Release.PublishDate, now, "", "")), s.deps.Decisions.MinimumAgeMinutes), nil
	}
	return decision.Accept(), nil
}
