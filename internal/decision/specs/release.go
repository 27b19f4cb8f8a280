package specs

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"needle/internal/config"
	"needle/internal/decision"
	"needle/internal/indexer"
	"needle/internal/language"
)

// properWindow is how old a file may be and still be replaced by a proper.
const properWindow = 7 * 24 * time.Hour

// ReleaseRestrictions applies the required and ignored term lists. Terms
// wrapped in slashes are case-insensitive regular expressions.
type ReleaseRestrictions struct{ deps Dependencies }

func (ReleaseRestrictions) Name() string { return "ReleaseRestrictions" }

func (s ReleaseRestrictions) Evaluate(_ context.Context, remote *decision.RemoteAlbum, _ *indexer.SearchCriteria) (decision.Result, error) {
	title := remote.Release.Title
	required := s.deps.Decisions.RequiredTerms
	if len(required) > 0 {
		matched, err := matchTerms(title, required)
		if err != nil {
			return decision.Result{}, err
		}
		if len(matched) == 0 {
			return decision.Reject("Does not contain one of the required terms: %s", strings.Join(required, ", ")), nil
		}
	}
	ignored, err := matchTerms(title, s.deps.Decisions.IgnoredTerms)
	if err != nil {
		return decision.Result{}, err
	}
	if len(ignored) > 0 {
		return decision.Reject("Contains these ignored terms: %s", strings.Join(ignored, ", ")), nil
	}
	return decision.Accept(), nil
}

func matchTerms(title string, terms []string) ([]string, error) {
	var matched []string
	lower := strings.ToLower(title)
	for _, term := range terms {
		if len(term) > 2 && strings.HasPrefix(term, "/") && strings.HasSuffix(term, "/") {
			re, err := regexp.Compile("(?i)" + term[1:len(term)-1])
			if err != nil {
				return nil, fmt.Errorf("term %q: %w", term, err)
			}
			if re.MatchString(title) {
				matched = append(matched, term)
			}
			continue
		}
		if strings.Contains(lower, strings.ToLower(term)) {
			matched = append(matched, term)
		}
	}
	return matched, nil
}

// LanguageAllowed rejects releases whose title advertises a language outside
// the allowed list.
type LanguageAllowed struct{ deps Dependencies }

func (LanguageAllowed) Name() string { return "LanguageAllowed" }

func (s LanguageAllowed) Evaluate(_ context.Context, remote *decision.RemoteAlbum, _ *indexer.SearchCriteria) (decision.Result, error) {
	allowed := s.deps.Decisions.AllowedLanguages
	if len(allowed) == 0 {
		return decision.Accept(), nil
	}
	detected := language.Detect(remote.Release.Title)
	if detected == "" || slices.Contains(allowed, detected) {
		return decision.Accept(), nil
	}
	return decision.Reject("Language %s is not wanted", language.DisplayName(detected)), nil
}

// Proper governs propers and repacks found by RSS for files already held.
type Proper struct{ deps Dependencies }

func (Proper) Name() string { return "Proper" }

func (s Proper) Evaluate(ctx context.Context, remote *decision.RemoteAlbum, criteria *indexer.SearchCriteria) (decision.Result, error) {
	if criteria != nil || s.deps.Files == nil || remote.ParsedInfo == nil {
		return decision.Accept(), nil
	}
	candidate := remote.ParsedInfo.Quality
	oldest := s.deps.now().Add(-properWindow)
	for _, album := range remote.Albums {
		files, err := s.deps.Files.TrackFilesByAlbum(ctx, album.ID)
		if err != nil {
			return decision.Result{}, fmt.Errorf("load track files: %w", err)
		}
		for _, file := range files {
			if file.Quality.Quality != candidate.Quality || candidate.Revision.Compare(file.Quality.Revision) <= 0 {
				continue
			}
			if s.deps.Decisions.DownloadPropersAndRepacks == config.PropersDoNotUpgrade {
				return decision.Reject("Proper downloading is disabled"), nil
			}
			if file.DateAdded.Before(oldest) {
				return decision.Reject("Proper for old file"), nil
			}
		}
	}
	return decision.Accept(), nil
}

// ProtocolAllowed rejects protocols the artist's delay profile disables.
type ProtocolAllowed struct{ deps Dependencies }

func (ProtocolAllowed) Name() string { return "ProtocolAllowed" }

func (s ProtocolAllowed) Evaluate(_ context.Context, remote *decision.RemoteAlbum, _ *indexer.SearchCriteria) (decision.Result, error) {
	var tags []string
	if remote.Artist != nil {
		tags = remote.Artist.Tags
	}
	profile := decision.DelayProfileFor(s.deps.DelayProfiles, tags)
	switch remote.Release.Protocol {
	case indexer.ProtocolUsenet:
		if !profile.EnableUsenet {
			return decision.Reject("Usenet is disabled for this artist"), nil
		}
	case indexer.ProtocolTorrent:
		if !profile.EnableTorrent {
			return decision.Reject("Torrent is disabled for this artist"), nil
		}
	}
	return decision.Accept(), nil
}

// TorrentSeeding enforces the indexer's minimum seeders.
type TorrentSeeding struct{}

func (TorrentSeeding) Name() string { return "TorrentSeeding" }

func (TorrentSeeding) Evaluate(_ context.Context, remote *decision.RemoteAlbum, _ *indexer.SearchCriteria) (decision.Result, error) {
	release := remote.Release
	if release.Protocol != indexer.ProtocolTorrent || release.Seeders == nil || release.MinimumSeeders <= 0 {
		return decision.Accept(), nil
	}
	if *release.Seeders < release.MinimumSeeders {
		return decision.Reject("Not enough seeders: %d. Minimum seeders: %d", *release.Seeders, release.MinimumSeeders), nil
	}
	return decision.Accept(), nil
}
