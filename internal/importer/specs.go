package importer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"needle/internal/config"
	"needle/internal/decision"
	"needle/internal/history"
	"needle/internal/logging"
	"needle/internal/music"
	"needle/internal/parser"
	"needle/internal/quality"
)

const (
	defaultAlbumDistance   = 0.2
	defaultTrackDistance   = 0.3
	existingAlbumDistance  = 0.5
	unpackingQuietInterval = time.Minute
	bytesPerMB             = 1024 * 1024

	reasonSameFile         = "Has the same filesize as existing file"
	reasonImportedAtPrefix = "Track already imported at"
)

// SpecDependencies is everything the import specifications read.
type SpecDependencies struct {
	Import     config.Import
	LibraryDir string
	Profiles   map[int]*quality.Profile
	Files      FileRepository
	History    HistoryProvider
	// FreeSpace reports free bytes at a path; nil skips the check.
	FreeSpace func(path string) (uint64, error)
	Now       func() time.Time
	Logger    *slog.Logger
}

func (d SpecDependencies) now() time.Time { return clock(d.Now).now() }

func (d SpecDependencies) profile(artist *music.Artist) *quality.Profile {
	if artist == nil {
		return nil
	}
	return d.Profiles[artist.QualityProfileID]
}

// DefaultAlbumSpecifications returns the album-level checks in evaluation order.
func DefaultAlbumSpecifications(deps SpecDependencies) []AlbumSpecification {
	return []AlbumSpecification{
		AlbumMatched{},
		CloseAlbumMatch{Threshold: deps.Import.AlbumMatchThreshold},
		AlbumUpgrade{deps: deps},
	}
}

// DefaultTrackSpecifications returns the track-level checks in evaluation order.
func DefaultTrackSpecifications(deps SpecDependencies) []TrackSpecification {
	return []TrackSpecification{
		NotUnpacking{deps: deps},
		SameFile{deps: deps},
		Upgrade{deps: deps},
		FreeSpace{deps: deps},
		AlreadyImported{deps: deps},
		CloseTrackMatch{Threshold: deps.Import.TrackMatchThreshold},
	}
}

// AlbumMatched rejects groups identification could not place in the catalog.
type AlbumMatched struct{}

func (AlbumMatched) Name() string { return "AlbumMatched" }

func (AlbumMatched) Evaluate(_ context.Context, release *music.LocalAlbumRelease, _ *ItemInfo) (decision.Result, error) {
	folder := groupFolderName(release.LocalTracks)
	switch {
	case release.Artist == nil:
		return decision.Reject("Couldn't find similar artist for %s", folder), nil
	case !release.Matched():
		return decision.Reject("Couldn't find similar album for %s", folder), nil
	}
	return decision.Accept(), nil
}

// CloseAlbumMatch rejects album matches further than the threshold. Files
// already in the library get a more lenient limit.
type CloseAlbumMatch struct{ Threshold float64 }

func (CloseAlbumMatch) Name() string { return "CloseAlbumMatch" }

func (s CloseAlbumMatch) Evaluate(_ context.Context, release *music.LocalAlbumRelease, _ *ItemInfo) (decision.Result, error) {
	limit := s.Threshold
	if limit <= 0 {
		limit = defaultAlbumDistance
	}
	if !release.NewDownload {
		limit = max(limit, existingAlbumDistance)
	}
	if release.Distance > limit {
		return decision.Reject("Album match is not close enough: %.1f%% vs %.1f%%", (1-release.Distance)*100, (1-limit)*100), nil
	}
	return decision.Accept(), nil
}

// AlbumUpgrade rejects a download whose weakest file is worse than the
// weakest file already in the library for the album.
type AlbumUpgrade struct{ deps SpecDependencies }

func (AlbumUpgrade) Name() string { return "AlbumUpgrade" }

func (s AlbumUpgrade) Evaluate(_ context.Context, release *music.LocalAlbumRelease, _ *ItemInfo) (decision.Result, error) {
	profile := s.deps.profile(release.Artist)
	if profile == nil || len(release.ExistingTracks) == 0 || len(release.LocalTracks) == 0 {
		return decision.Accept(), nil
	}
	newest := release.LocalTracks[0].Quality
	for _, lt := range release.LocalTracks[1:] {
		if profile.CompareModels(lt.Quality, newest, true) < 0 {
			newest = lt.Quality
		}
	}
	current := release.ExistingTracks[0].Quality
	for _, file := range release.ExistingTracks[1:] {
		if profile.CompareModels(file.Quality, current, true) < 0 {
			current = file.Quality
		}
	}
	if profile.CompareModels(newest, current, true) < 0 {
		return decision.Reject("Not an upgrade for existing album file(s)"), nil
	}
	return decision.Accept(), nil
}

// NotUnpacking holds back files inside a folder the client is still unpacking.
type NotUnpacking struct{ deps SpecDependencies }

func (NotUnpacking) Name() string { return "NotUnpacking" }

func (s NotUnpacking) Evaluate(_ context.Context, lt *music.LocalTrack, _ *ItemInfo) (decision.Result, error) {
	if lt.ExistingFile {
		return decision.Accept(), nil
	}
	for dir := filepath.Dir(lt.Path); dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
		name := filepath.Base(dir)
		if strings.HasPrefix(name, "_UNPACK_") || strings.HasPrefix(name, "_FAILED_") {
			if s.deps.now().Sub(lt.Modified) < unpackingQuietInterval {
				return decision.RejectTemporarily("File is still being unpacked"), nil
			}
		}
	}
	return decision.Accept(), nil
}

// SameFile rejects a file identical in size to the one already linked to its tracks.
type SameFile struct{ deps SpecDependencies }

func (SameFile) Name() string { return "SameFile" }

func (s SameFile) Evaluate(ctx context.Context, lt *music.LocalTrack, _ *ItemInfo) (decision.Result, error) {
	if lt.ExistingFile {
		return decision.Accept(), nil
	}
	existing, err := existingFiles(ctx, s.deps.Files, lt)
	if err != nil {
		return decision.Result{}, err
	}
	for _, file := range existing {
		if file.Size == lt.Size {
			return decision.Reject(reasonSameFile), nil
		}
	}
	return decision.Accept(), nil
}

// Upgrade rejects files of lower quality than what the library holds.
type Upgrade struct{ deps SpecDependencies }

func (Upgrade) Name() string { return "Upgrade" }

func (s Upgrade) Evaluate(ctx context.Context, lt *music.LocalTrack, _ *ItemInfo) (decision.Result, error) {
	profile := s.deps.profile(lt.Artist)
	if profile == nil {
		return decision.Accept(), nil
	}
	existing, err := existingFiles(ctx, s.deps.Files, lt)
	if err != nil {
		return decision.Result{}, err
	}
	for _, file := range existing {
		if file.Path == lt.Path {
			continue
		}
		if profile.CompareModels(lt.Quality, file.Quality, true) < 0 {
			return decision.Reject("Not an upgrade for existing track file(s)"), nil
		}
	}
	return decision.Accept(), nil
}

// FreeSpace rejects files that would not fit in the library, or would leave
// less than the configured minimum behind.
type FreeSpace struct{ deps SpecDependencies }

func (FreeSpace) Name() string { return "FreeSpace" }

func (s FreeSpace) Evaluate(_ context.Context, lt *music.LocalTrack, _ *ItemInfo) (decision.Result, error) {
	if s.deps.Import.SkipFreeSpaceCheck || s.deps.FreeSpace == nil || lt.ExistingFile {
		return decision.Accept(), nil
	}
	root := s.deps.LibraryDir
	if lt.Artist != nil && lt.Artist.Path != "" {
		root = lt.Artist.Path
	}
	if root == "" {
		return decision.Accept(), nil
	}
	free, err := s.deps.FreeSpace(root)
	if err != nil {
		logging.WarnWithContext(s.deps.Logger, "free space unavailable", "free_space_unknown",
			logging.String(logging.FieldPath, root),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the library folder is mounted"),
			logging.String(logging.FieldImpact, "import continues without a free space check"))
		return decision.Accept(), nil
	}
	size := uint64(max(lt.Size, 0))
	if free < size {
		return decision.Reject("Not enough free space"), nil
	}
	minimum := uint64(max(s.deps.Import.MinimumFreeSpaceMB, 0)) * bytesPerMB
	if free-size < minimum {
		return decision.Reject("Not enough free space to import: %s would be left, %s required", humanize.IBytes(free-size), humanize.IBytes(minimum)), nil
	}
	return decision.Accept(), nil
}

// AlreadyImported rejects files this download already delivered.
type AlreadyImported struct{ deps SpecDependencies }

func (AlreadyImported) Name() string { return "AlreadyImported" }

func (s AlreadyImported) Evaluate(ctx context.Context, lt *music.LocalTrack, item *ItemInfo) (decision.Result, error) {
	downloadID := item.DownloadID()
	if !item.IsNewDownload() || downloadID == "" || s.deps.History == nil || len(lt.Tracks) == 0 {
		return decision.Accept(), nil
	}
	records, err := s.deps.History.FindByDownloadID(ctx, downloadID)
	if err != nil {
		return decision.Result{}, fmt.Errorf("load history: %w", err)
	}
	ids := trackIDs(lt.Tracks)
	var imported, grabbed *history.Record
	for _, record := range records {
		switch {
		case imported == nil && record.EventType == history.EventTrackImported && slices.Contains(ids, record.TrackID):
			imported = record
		case grabbed == nil && record.EventType == history.EventGrabbed && lt.Album != nil && record.AlbumID == lt.Album.ID:
			grabbed = record
		}
	}
	if imported != nil && (grabbed == nil || imported.Date.After(grabbed.Date)) {
		return decision.Reject(reasonImportedAtPrefix+" %s", imported.Date.UTC().Format(time.RFC3339)), nil
	}
	return decision.Accept(), nil
}

// CloseTrackMatch rejects files whose track match is too distant.
type CloseTrackMatch struct{ Threshold float64 }

func (CloseTrackMatch) Name() string { return "CloseTrackMatch" }

func (s CloseTrackMatch) Evaluate(_ context.Context, lt *music.LocalTrack, _ *ItemInfo) (decision.Result, error) {
	limit := s.Threshold
	if limit <= 0 {
		limit = defaultTrackDistance
	}
	if lt.Distance > limit {
		return decision.Reject("Track match is not close enough: %.1f%% vs %.1f%%", (1-lt.Distance)*100, (1-limit)*100), nil
	}
	return decision.Accept(), nil
}

// existingFiles returns the library files linked to any of lt's tracks.
func existingFiles(ctx context.Context, files FileRepository, lt *music.LocalTrack) ([]*music.TrackFile, error) {
	if files == nil || lt.Album == nil || len(lt.Tracks) == 0 {
		return nil, nil
	}
	all, err := files.TrackFilesByAlbum(ctx, lt.Album.ID)
	if err != nil {
		return nil, fmt.Errorf("load track files: %w", err)
	}
	return linkedFiles(all, trackIDs(lt.Tracks)), nil
}

func linkedFiles(all []*music.TrackFile, ids []int64) []*music.TrackFile {
	var linked []*music.TrackFile
	for _, file := range all {
		for _, id := range file.TrackIDs {
			if slices.Contains(ids, id) {
				linked = append(linked, file)
				break
			}
		}
	}
	return linked
}

func trackIDs(tracks []*music.Track) []int64 {
	ids := make([]int64, 0, len(tracks))
	for _, t := range tracks {
		ids = append(ids, t.ID)
	}
	return ids
}

func groupFolderName(tracks []*music.LocalTrack) string {
	if len(tracks) == 0 {
		return ""
	}
	return filepath.Base(parser.AlbumFolder(tracks[0].Path))
}
