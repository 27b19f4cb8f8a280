package importer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"needle/internal/decision"
	"needle/internal/logging"
	"needle/internal/music"
	"needle/internal/parser"
)

// Rejection reasons produced by the decision maker itself.
const (
	ReasonUnableToParse   = "Unable to parse file"
	ReasonUnexpectedError = "Unexpected error processing file"
	reasonNoTracksPrefix  = "Couldn't parse track/album from:"
	reasonNoTracks        = reasonNoTracksPrefix + " %s"
)

// MakerOptions configures a DecisionMaker.
type MakerOptions struct {
	Tags       TagReader
	Identifier Identifier
	Files      FileRepository
	Album      []AlbumSpecification
	Track      []TrackSpecification
	Workers    int
	Logger     *slog.Logger
}

// DecisionMaker produces one import decision per file.
type DecisionMaker struct {
	tags       TagReader
	identifier Identifier
	files      FileRepository
	album      []AlbumSpecification
	track      []TrackSpecification
	workers    int
	logger     *slog.Logger
}

// NewDecisionMaker builds a DecisionMaker. A nil tag reader reads paths.
func NewDecisionMaker(opts MakerOptions) *DecisionMaker {
	tags := opts.Tags
	if tags == nil {
		tags = PathTagReader{}
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	return &DecisionMaker{
		tags:       tags,
		identifier: opts.Identifier,
		files:      opts.Files,
		album:      opts.Album,
		track:      opts.Track,
		workers:    workers,
		logger:     logging.NewComponentLogger(opts.Logger, "import_decisions"),
	}
}

// GetImportDecisions returns decisions for paths. Files that cannot be read
// are rejected individually; files that could be read are identified as one
// batch and then judged per album and per track. Decisions come back grouped
// by album, with unreadable files first.
func (m *DecisionMaker) GetImportDecisions(ctx context.Context, paths []string, overrides Overrides, item *ItemInfo, cfg Config) ([]*Decision, error) {
	if item == nil {
		item = &ItemInfo{NewDownload: cfg.NewDownload}
	}
	logger := logging.WithContext(ctx, m.logger)

	if cfg.Filter {
		filtered, err := m.filterKnown(ctx, paths)
		if err != nil {
			return nil, err
		}
		if skipped := len(paths) - len(filtered); skipped > 0 {
			logger.Debug("skipping known files", logging.Int("count", skipped))
		}
		paths = filtered
	}
	if len(paths) == 0 {
		return nil, nil
	}

	tracks, decisions := m.readTracks(ctx, paths, overrides, item, cfg, logger)
	if len(tracks) == 0 {
		return decisions, nil
	}

	releases, err := m.identifier.Identify(ctx, tracks, overrides.Artist, overrides.Album, overrides.Release, cfg.NewDownload)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logging.ErrorWithContext(logger, "identification failed", "import_identification_failed",
			logging.Error(err),
			logging.Int("files", len(tracks)),
			logging.String(logging.FieldImpact, "every readable file in the batch is rejected"))
		for _, lt := range tracks {
			decisions = append(decisions, decision.NewDecision(lt, decision.Rejection{Reason: ReasonUnexpectedError, Category: decision.Permanent}))
		}
		return decisions, nil
	}

	for _, release := range releases {
		decisions = append(decisions, m.decideRelease(ctx, release, item, logger)...)
	}

	accepted := 0
	for _, d := range decisions {
		if d.Accepted() {
			accepted++
		}
	}
	logger.Info("import decisions complete",
		logging.Int("files", len(paths)),
		logging.Int("accepted", accepted),
		logging.Int("rejected", len(decisions)-accepted))
	return decisions, nil
}

func (m *DecisionMaker) filterKnown(ctx context.Context, paths []string) ([]string, error) {
	if m.files == nil {
		return paths, nil
	}
	kept := make([]string, 0, len(paths))
	for _, path := range paths {
		known, err := m.files.TrackFileByPath(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("look up %s: %w", path, err)
		}
		if known == nil {
			kept = append(kept, path)
		}
	}
	return kept, nil
}

// readTracks reads every path concurrently, keeping input order. Unreadable
// files come back as rejected decisions.
func (m *DecisionMaker) readTracks(ctx context.Context, paths []string, overrides Overrides, item *ItemInfo, cfg Config, logger *slog.Logger) ([]*music.LocalTrack, []*Decision) {
	var clientInfo *parser.ParsedAlbumInfo
	if item.Item != nil {
		clientInfo = parser.ParseAlbumTitle(item.Item.Title)
	}

	tracks := make([]*music.LocalTrack, len(paths))
	failed := make([]*Decision, len(paths))
	var g errgroup.Group
	g.SetLimit(m.workers)
	for i, path := range paths {
		g.Go(func() error {
			tracks[i], failed[i] = m.readTrack(ctx, path, overrides, clientInfo, item, cfg, logger)
			return nil
		})
	}
	_ = g.Wait()

	var ok []*music.LocalTrack
	var rejected []*Decision
	for i := range paths {
		if failed[i] != nil {
			rejected = append(rejected, failed[i])
			continue
		}
		ok = append(ok, tracks[i])
	}
	return ok, rejected
}

func (m *DecisionMaker) readTrack(ctx context.Context, path string, overrides Overrides, clientInfo *parser.ParsedAlbumInfo, item *ItemInfo, cfg Config, logger *slog.Logger) (lt *music.LocalTrack, rejected *Decision) {
	lt = &music.LocalTrack{Path: path, ExistingFile: !cfg.NewDownload, ClientInfo: clientInfo}
	defer func() {
		if err := decision.Recovered(recover()); err != nil {
			logging.ErrorWithContext(logger, "file processing failed", "import_file_error",
				logging.String(logging.FieldPath, path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "file rejected; remaining files continue"))
			lt, rejected = nil, decision.NewDecision(&music.LocalTrack{Path: path}, decision.Rejection{Reason: ReasonUnexpectedError, Category: decision.Permanent})
		}
	}()

	reject := func(err error) (*music.LocalTrack, *Decision) {
		logging.WarnWithContext(logger, "unable to parse file", "import_parse_failed",
			logging.String(logging.FieldPath, path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the file name and folder layout"),
			logging.String(logging.FieldImpact, "file rejected; remaining files continue"))
		return nil, decision.NewDecision(lt, decision.Rejection{Reason: ReasonUnableToParse, Category: decision.Permanent})
	}

	stat, err := os.Stat(path)
	if err != nil {
		return reject(err)
	}
	lt.Size = stat.Size()
	lt.Modified = stat.ModTime()

	info, err := m.tags.ReadTags(ctx, path)
	if err != nil {
		return reject(err)
	}
	lt.FileInfo = info
	lt.Quality = info.Quality
	lt.ReleaseGroup = info.ReleaseGroup

	lt.FolderInfo = overrides.Folder
	if lt.FolderInfo == nil {
		lt.FolderInfo = parser.ParseAlbumTitle(filepath.Base(parser.AlbumFolder(path)))
	}
	if lt.ReleaseGroup == "" && lt.FolderInfo != nil {
		lt.ReleaseGroup = lt.FolderInfo.ReleaseGroup
	}
	if item.Item != nil {
		lt.SceneName = item.Item.Title
		if clientInfo != nil && lt.ReleaseGroup == "" {
			lt.ReleaseGroup = clientInfo.ReleaseGroup
		}
	}
	return lt, nil
}

// decideRelease judges one identified group: album rejections apply to every
// track, otherwise each track is judged on its own.
func (m *DecisionMaker) decideRelease(ctx context.Context, release *music.LocalAlbumRelease, item *ItemInfo, logger *slog.Logger) []*Decision {
	decisions := make([]*Decision, 0, len(release.LocalTracks))
	if release.Matched() && m.files != nil {
		existing, err := m.files.TrackFilesByAlbum(ctx, release.Album.ID)
		if err != nil {
			logging.WarnWithContext(logger, "existing files unavailable", "import_existing_files_failed",
				logging.String(logging.FieldAlbum, release.Album.Title),
				logging.Error(err),
				logging.String(logging.FieldImpact, "album upgrade check runs without existing files"))
		}
		release.ExistingTracks = existing
	}

	albumRejections := decision.Evaluate(ctx, logger, m.album, release, item)
	if len(albumRejections) > 0 {
		logger.Debug("album rejected",
			logging.String(logging.FieldPath, groupFolderName(release.LocalTracks)),
			logging.String("reasons", joinReasons(albumRejections)))
		for _, lt := range release.LocalTracks {
			decisions = append(decisions, decision.NewDecision(lt, albumRejections...))
		}
		return decisions
	}

	for _, lt := range release.LocalTracks {
		decisions = append(decisions, m.decideTrack(ctx, lt, item, logger))
	}
	return decisions
}

func (m *DecisionMaker) decideTrack(ctx context.Context, lt *music.LocalTrack, item *ItemInfo, logger *slog.Logger) (d *Decision) {
	defer func() {
		if err := decision.Recovered(recover()); err != nil {
			logging.ErrorWithContext(logger, "file processing failed", "import_file_error",
				logging.String(logging.FieldPath, lt.Path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "file rejected; remaining files continue"))
			d = decision.NewDecision(lt, decision.Rejection{Reason: ReasonUnexpectedError, Category: decision.Permanent})
		}
	}()
	if len(lt.Tracks) == 0 {
		return decision.NewDecision(lt, decision.Rejection{Reason: fmt.Sprintf(reasonNoTracks, filepath.Base(lt.Path)), Category: decision.Permanent})
	}
	d = decision.NewDecision(lt, decision.Evaluate(ctx, logger, m.track, lt, item)...)
	result, reason := "accepted", ""
	if !d.Accepted() {
		result, reason = "rejected", strings.Join(d.Reasons(), "; ")
	}
	logger.Debug("import decision",
		append([]any{logging.String(logging.FieldPath, lt.Path)}, logging.Args(logging.DecisionAttrs("import", result, reason)...)...)...)
	return d
}

func joinReasons(rejections []decision.Rejection) string {
	reasons := make([]string, 0, len(rejections))
	for _, r := range rejections {
		reasons = append(reasons, r.Reason)
	}
	return strings.Join(reasons, "; ")
}
