package specs

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"needle/internal/decision"
	"needle/internal/history"
	"needle/internal/indexer"
	"needle/internal/quality"
)

// recentGrabWindow is how long a grab blocks equal or worse releases.
const recentGrabWindow = 12 * time.Hour

// AlreadyGrabbed rejects RSS releases that do not improve on a recent grab.
type AlreadyGrabbed struct{ deps Dependencies }

func (AlreadyGrabbed) Name() string { return "AlreadyGrabbed" }

func (s AlreadyGrabbed) Evaluate(ctx context.Context, remote *decision.RemoteAlbum, criteria *indexer.SearchCriteria) (decision.Result, error) {
	profile := s.deps.profile(remote)
	if criteria != nil || s.deps.History == nil || profile == nil || remote.ParsedInfo == nil {
		return decision.Accept(), nil
	}
	policy := s.deps.policy()
	candidate := remote.ParsedInfo.Quality
	cutoff := s.deps.now().Add(-recentGrabWindow)
	for _, album := range remote.Albums {
		record, err := s.deps.History.MostRecentForAlbum(ctx, album.ID)
		if err != nil {
			return decision.Result{}, fmt.Errorf("load album history: %w", err)
		}
		if record == nil || record.EventType != history.EventGrabbed || record.Date.Before(cutoff) {
			continue
		}
		score := recordScore(record)
		if !policy.CutoffNotMet(profile, record.Quality, score, &candidate) {
			return decision.Reject("Existing grab event in history already meets cutoff: %s", record.Quality), nil
		}
		if !policy.IsUpgradable(profile, []quality.Model{record.Quality}, score, candidate, remote.CustomFormatScore) {
			return decision.Reject("Existing grab event in history is of equal or higher preference: %s", record.Quality), nil
		}
	}
	return decision.Accept(), nil
}

func recordScore(record *history.Record) int {
	score, err := strconv.Atoi(record.Get(history.DataCustomFormatScore))
	if err != nil {
		return 0
	}
	return score
}

// Blocklist rejects releases that failed to download before.
type Blocklist struct{ deps Dependencies }

func (Blocklist) Name() string { return "Blocklist" }

func (s Blocklist) Evaluate(ctx context.Context, remote *decision.RemoteAlbum, _ *indexer.SearchCriteria) (decision.Result, error) {
	if s.deps.History == nil {
		return decision.Accept(), nil
	}
	failed, err := s.deps.History.FailedForRelease(ctx, remote.Release.Title, remote.Release.Indexer)
	if err != nil {
		return decision.Result{}, fmt.Errorf("load failed history: %w", err)
	}
	if len(failed) > 0 {
		return decision.Reject("Release is blocklisted"), nil
	}
	return decision.Accept(), nil
}

// Queue rejects releases that do not improve on one already downloading for
// the same albums.
type Queue struct{ deps Dependencies }

func (Queue) Name() string { return "Queue" }

func (s Queue) Evaluate(ctx context.Context, remote *decision.RemoteAlbum, _ *indexer.SearchCriteria) (decision.Result, error) {
	profile := s.deps.profile(remote)
	if s.deps.Queue == nil || profile == nil || remote.ParsedInfo == nil {
		return decision.Accept(), nil
	}
	entries, err := s.deps.Queue.QueuedAlbums(ctx)
	if err != nil {
		return decision.Result{}, fmt.Errorf("load queue: %w", err)
	}
	policy := s.deps.policy()
	candidate := remote.ParsedInfo.Quality
	wanted := make(map[int64]bool, len(remote.Albums))
	for _, id := range remote.AlbumIDs() {
		wanted[id] = true
	}
	for _, entry := range entries {
		queued := entry.Remote
		if queued == nil || queued.ParsedInfo == nil || !overlaps(wanted, queued.AlbumIDs()) {
			continue
		}
		current := queued.ParsedInfo.Quality
		if !policy.CutoffNotMet(profile, current, queued.CustomFormatScore, &candidate) {
			return decision.Reject("Release in queue already meets cutoff: %s", current), nil
		}
		if !policy.IsUpgradable(profile, []quality.Model{current}, queued.CustomFormatScore, candidate, remote.CustomFormatScore) {
			return decision.Reject("Release in queue is of equal or higher preference: %s", current), nil
		}
		if !policy.IsUpgradeAllowed(profile, []quality.Model{current}, candidate) {
			return decision.Reject("Another release is queued and the Quality profile does not allow upgrades"), nil
		}
	}
	return decision.Accept(), nil
}

func overlaps(wanted map[int64]bool, ids []int64) bool {
	for _, id := range ids {
		if wanted[id] {
			return true
		}
	}
	return false
}
