package specs

import (
	"context"
	"fmt"
	"strings"

	"needle/internal/decision"
	"needle/internal/indexer"
	"needle/internal/music"
	"needle/internal/quality"
)

// QualityAllowedByProfile rejects qualities the artist's profile does not list.
type QualityAllowedByProfile struct{ deps Dependencies }

func (QualityAllowedByProfile) Name() string { return "QualityAllowedByProfile" }

func (s QualityAllowedByProfile) Evaluate(_ context.Context, remote *decision.RemoteAlbum, _ *indexer.SearchCriteria) (decision.Result, error) {
	profile := s.deps.profile(remote)
	if profile == nil || remote.ParsedInfo == nil {
		return decision.Accept(), nil
	}
	q := remote.ParsedInfo.Quality.Quality
	if !profile.Allowed(q) {
		return decision.Reject("Quality %s is not wanted in profile", q), nil
	}
	return decision.Accept(), nil
}

// CustomFormatAllowedByProfile enforces the profile's minimum format score.
type CustomFormatAllowedByProfile struct{ deps Dependencies }

func (CustomFormatAllowedByProfile) Name() string { return "CustomFormatAllowedByProfile" }

func (s CustomFormatAllowedByProfile) Evaluate(_ context.Context, remote *decision.RemoteAlbum, _ *indexer.SearchCriteria) (decision.Result, error) {
	profile := s.deps.profile(remote)
	if profile == nil || remote.CustomFormatScore >= profile.MinFormatScore {
		return decision.Accept(), nil
	}
	formats := "[]"
	if len(remote.CustomFormats) > 0 {
		formats = "[" + strings.Join(remote.CustomFormats, ", ") + "]"
	}
	return decision.Reject("Custom Formats %s have score %d below Artist profile minimum %d",
		formats, remote.CustomFormatScore, profile.MinFormatScore), nil
}

// UpgradeDisk accepts a release only when it improves every album's files.
type UpgradeDisk struct{ deps Dependencies }

func (UpgradeDisk) Name() string { return "UpgradeDisk" }

func (s UpgradeDisk) Evaluate(ctx context.Context, remote *decision.RemoteAlbum, _ *indexer.SearchCriteria) (decision.Result, error) {
	profile := s.deps.profile(remote)
	if profile == nil || s.deps.Files == nil || remote.ParsedInfo == nil {
		return decision.Accept(), nil
	}
	policy := s.deps.policy()
	candidate := remote.ParsedInfo.Quality
	for _, album := range remote.Albums {
		files, err := s.deps.Files.TrackFilesByAlbum(ctx, album.ID)
		if err != nil {
			return decision.Result{}, fmt.Errorf("load track files: %w", err)
		}
		if len(files) == 0 {
			continue
		}
		current, score := s.currentQualities(profile, files)
		if !policy.IsUpgradeAllowed(profile, current, candidate) {
			return decision.Reject("Existing files and the Quality profile does not allow upgrades"), nil
		}
		if !policy.IsUpgradable(profile, current, score, candidate, remote.CustomFormatScore) {
			return decision.Reject("Existing files on disk is of equal or higher preference: %s", describe(current)), nil
		}
	}
	return decision.Accept(), nil
}

func (s UpgradeDisk) currentQualities(profile *quality.Profile, files []*music.TrackFile) ([]quality.Model, int) {
	seen := make(map[quality.Model]bool)
	var models []quality.Model
	score := 0
	for i, file := range files {
		if !seen[file.Quality] {
			seen[file.Quality] = true
			models = append(models, file.Quality)
		}
		fs := s.deps.fileScore(profile, file)
		if i == 0 || fs < score {
			score = fs
		}
	}
	return models, score
}

// Cutoff rejects releases for albums whose files already meet the profile cutoff.
type Cutoff struct{ deps Dependencies }

func (Cutoff) Name() string { return "Cutoff" }

func (s Cutoff) Evaluate(ctx context.Context, remote *decision.RemoteAlbum, _ *indexer.SearchCriteria) (decision.Result, error) {
	profile := s.deps.profile(remote)
	if profile == nil || s.deps.Files == nil || remote.ParsedInfo == nil {
		return decision.Accept(), nil
	}
	policy := s.deps.policy()
	candidate := remote.ParsedInfo.Quality
	for _, album := range remote.Albums {
		files, err := s.deps.Files.TrackFilesByAlbum(ctx, album.ID)
		if err != nil {
			return decision.Result{}, fmt.Errorf("load track files: %w", err)
		}
		if len(files) == 0 {
			continue
		}
		lowest := files[0]
		for _, file := range files[1:] {
			if profile.CompareModels(file.Quality, lowest.Quality, true) < 0 {
				lowest = file
			}
		}
		if !policy.CutoffNotMet(profile, lowest.Quality, s.deps.fileScore(profile, lowest), &candidate) {
			return decision.Reject("Existing files meets cutoff: %s", profile.Cutoff), nil
		}
	}
	return decision.Accept(), nil
}

func describe(models []quality.Model) string {
	names := make([]string, 0, len(models))
	for _, m := range models {
		names = append(names, m.String())
	}
	return strings.Join(names, ", ")
}
