package importer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sort"
	"time"

	"github.com/dustin/go-humanize"

	"needle/internal/config"
	"needle/internal/decision"
	"needle/internal/downloadclient"
	"needle/internal/events"
	"needle/internal/fileops"
	"needle/internal/logging"
	"needle/internal/music"
	"needle/internal/quality"
)

// ReasonAlreadyImported rejects a second file for a track filled earlier in
// the same batch.
const ReasonAlreadyImported = "Track has already been imported"

// FileMover places files in the library.
type FileMover interface {
	Transfer(ctx context.Context, src, dst string, mode fileops.Mode) error
	// Replace transfers src onto an existing dst, restoring dst on failure.
	Replace(ctx context.Context, src, dst string, mode fileops.Mode) error
	// Recycle removes a superseded library file and returns where it went.
	Recycle(path string) (string, error)
}

// DiskMover is the FileMover backed by fileops.
type DiskMover struct {
	RecycleBin string
	Verify     bool
	Now        func() time.Time
}

func (d DiskMover) Transfer(ctx context.Context, src, dst string, mode fileops.Mode) error {
	return fileops.Transfer(ctx, src, dst, mode, fileops.Options{Verify: d.Verify})
}

func (d DiskMover) Replace(ctx context.Context, src, dst string, mode fileops.Mode) error {
	return fileops.ReplaceSafely(ctx, src, dst, mode, fileops.Options{Verify: d.Verify})
}

func (d DiskMover) Recycle(path string) (string, error) {
	return fileops.Recycle(path, d.RecycleBin, clock(d.Now).now())
}

// ExecutorOptions configures an Executor.
type ExecutorOptions struct {
	Files      FileRepository
	Mover      FileMover
	Bus        *events.Bus
	Profiles   map[int]*quality.Profile
	LibraryDir string
	Now        func() time.Time
	Logger     *slog.Logger
}

// Executor writes accepted import decisions into the library.
type Executor struct {
	files    FileRepository
	mover    FileMover
	bus      *events.Bus
	profiles map[int]*quality.Profile
	library  string
	now      clock
	logger   *slog.Logger
}

// NewExecutor builds an Executor.
func NewExecutor(opts ExecutorOptions) *Executor {
	mover := opts.Mover
	if mover == nil {
		mover = DiskMover{Now: opts.Now}
	}
	return &Executor{
		files:    opts.Files,
		mover:    mover,
		bus:      opts.Bus,
		profiles: opts.Profiles,
		library:  opts.LibraryDir,
		now:      opts.Now,
		logger:   logging.NewComponentLogger(opts.Logger, "importer"),
	}
}

type albumBatch struct {
	artist     *music.Artist
	album      *music.Album
	release    *music.AlbumRelease
	files      []*music.TrackFile
	superseded []*music.TrackFile
}

// Import executes decisions and returns one result per decision. Accepted
// decisions are attempted best first per track slot; rejected decisions are
// passed through with their reasons. A failure on one file never stops the
// others.
func (e *Executor) Import(ctx context.Context, decisions []*Decision, newDownload bool, item *downloadclient.Item, mode string) []*Result {
	logger := logging.WithContext(ctx, e.logger)
	var qualified, rejected []*Decision
	for _, d := range decisions {
		if d.Accepted() {
			qualified = append(qualified, d)
		} else {
			rejected = append(rejected, d)
		}
	}
	e.order(qualified)

	results := make([]*Result, 0, len(decisions))
	imported := make(map[int64]bool)
	batches := make(map[int64]*albumBatch)
	var albumOrder []int64

	for _, d := range qualified {
		if err := ctx.Err(); err != nil {
			results = append(results, &Result{Decision: d, Type: Skipped, Errors: []string{fmt.Sprintf("Import cancelled: %v", err)}})
			continue
		}
		lt := d.Subject
		if slices.ContainsFunc(lt.Tracks, func(t *music.Track) bool { return imported[t.ID] }) {
			results = append(results, &Result{Decision: d, Type: Rejected, Errors: []string{ReasonAlreadyImported}})
			continue
		}

		file, superseded, err := e.importOne(ctx, lt, newDownload, item, mode, logger)
		if err != nil {
			logging.ErrorWithContext(logger, "track import failed", "track_import_failed",
				logging.String(logging.FieldPath, lt.Path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check permissions and free space on the library volume"),
				logging.String(logging.FieldImpact, "file skipped; remaining files continue"))
			results = append(results, &Result{Decision: d, Type: Rejected, Errors: []string{fmt.Sprintf("Failed to import track: %v", err)}})
			continue
		}
		for _, t := range lt.Tracks {
			imported[t.ID] = true
		}
		results = append(results, &Result{Decision: d, Type: Imported, File: file})

		batch, ok := batches[lt.Album.ID]
		if !ok {
			batch = &albumBatch{artist: lt.Artist, album: lt.Album, release: lt.Release}
			batches[lt.Album.ID] = batch
			albumOrder = append(albumOrder, lt.Album.ID)
		}
		batch.files = append(batch.files, file)
		batch.superseded = append(batch.superseded, superseded...)
	}

	for _, albumID := range albumOrder {
		batch := batches[albumID]
		e.bus.Publish(ctx, events.AlbumImported{
			Artist:      batch.artist,
			Album:       batch.album,
			Release:     batch.release,
			Files:       batch.files,
			Superseded:  batch.superseded,
			NewDownload: newDownload,
			DownloadID:  downloadID(item),
			Client:      clientName(item),
		})
	}

	for _, d := range rejected {
		results = append(results, &Result{Decision: d, Type: Rejected, Errors: d.Reasons()})
	}

	logger.Info("import batch complete",
		logging.Int("decisions", len(decisions)),
		logging.Int("imported", countType(results, Imported)),
		logging.Int("rejected", countType(results, Rejected)))
	return results
}

// order sorts accepted decisions by track slot, then largest file. The
// artist's profile ranking breaks ties between files of equal size.
func (e *Executor) order(decisions []*Decision) {
	sort.SliceStable(decisions, func(i, j int) bool {
		a, b := decisions[i].Subject, decisions[j].Subject
		if sa, sb := slot(a), slot(b); sa != sb {
			return sa < sb
		}
		if a.Size != b.Size {
			return a.Size > b.Size
		}
		if a.Artist != nil && b.Artist != nil && a.Artist.ID == b.Artist.ID {
			if profile := e.profiles[a.Artist.QualityProfileID]; profile != nil {
				return profile.CompareModels(a.Quality, b.Quality, true) > 0
			}
		}
		return false
	})
}

// slot is a sortable position of the earliest track a file covers.
func slot(lt *music.LocalTrack) int {
	best := -1
	for _, t := range lt.Tracks {
		pos := t.AbsoluteTrackNumber
		if pos <= 0 {
			pos = max(t.MediumNumber, 1)*1000 + t.TrackNumber
		}
		if best < 0 || pos < best {
			best = pos
		}
	}
	return best
}

func (e *Executor) importOne(ctx context.Context, lt *music.LocalTrack, newDownload bool, item *downloadclient.Item, mode string, logger *slog.Logger) (file *music.TrackFile, superseded []*music.TrackFile, err error) {
	defer func() {
		if recovered := decision.Recovered(recover()); recovered != nil {
			file, superseded, err = nil, nil, recovered
		}
	}()

	existing, err := existingFiles(ctx, e.files, lt)
	if err != nil {
		return nil, nil, err
	}

	file = &music.TrackFile{
		ArtistID:     lt.Artist.ID,
		AlbumID:      lt.Album.ID,
		Path:         lt.Path,
		Size:         lt.Size,
		Modified:     lt.Modified,
		DateAdded:    e.now.now(),
		Quality:      lt.Quality,
		ReleaseGroup: lt.ReleaseGroup,
		SceneName:    lt.SceneName,
		TrackIDs:     trackIDs(lt.Tracks),
	}

	if newDownload {
		dst := TrackPath(e.library, lt.Artist, lt.Album, lt.Release, lt.Tracks, filepath.Ext(lt.Path))
		transferMode := resolveMode(mode, item, lt.Path)
		replacing := slices.ContainsFunc(existing, func(f *music.TrackFile) bool { return f.Path == dst })
		if replacing {
			err = e.mover.Replace(ctx, lt.Path, dst, transferMode)
		} else {
			err = e.mover.Transfer(ctx, lt.Path, dst, transferMode)
		}
		if err != nil {
			return nil, nil, err
		}
		file.Path = dst
		for _, old := range existing {
			if old.Path == dst {
				continue
			}
			target, recycleErr := e.mover.Recycle(old.Path)
			if recycleErr != nil {
				logging.WarnWithContext(logger, "superseded file not removed", "track_recycle_failed",
					logging.String(logging.FieldPath, old.Path),
					logging.Error(recycleErr),
					logging.String(logging.FieldErrorHint, "remove the old file by hand"),
					logging.String(logging.FieldImpact, "the upgraded file is imported; the old file stays on disk"))
				continue
			}
			logger.Debug("recycled superseded file", logging.String(logging.FieldPath, old.Path), logging.String("recycled_to", target))
		}
		logger.Info("track imported",
			logging.String(logging.FieldPath, dst),
			logging.String("mode", string(transferMode)),
			logging.String("size", humanize.IBytes(uint64(max(lt.Size, 0)))),
			logging.String("quality", lt.Quality.String()))
	}
	for _, old := range existing {
		if old.Path != file.Path || newDownload {
			superseded = append(superseded, old)
		}
	}

	if hash, hashErr := fileops.HashFile(file.Path); hashErr == nil {
		file.Hash = hash
	} else {
		logger.Debug("track hash unavailable", logging.String(logging.FieldPath, file.Path), logging.Error(hashErr))
	}

	if e.files != nil {
		for _, old := range superseded {
			if err := e.files.DeleteTrackFile(ctx, old.ID); err != nil {
				return nil, nil, fmt.Errorf("remove superseded track file: %w", err)
			}
		}
		if err := e.files.InsertTrackFile(ctx, file); err != nil {
			return nil, nil, fmt.Errorf("save track file: %w", err)
		}
	}

	e.bus.Publish(ctx, events.TrackImported{
		Track:       lt,
		File:        file,
		Superseded:  superseded,
		NewDownload: newDownload,
		DownloadID:  downloadID(item),
		Client:      clientName(item),
	})
	return file, superseded, nil
}

// resolveMode maps the configured import mode onto a transfer. Auto copies
// when the client keeps seeding the files or the source is read-only.
func resolveMode(mode string, item *downloadclient.Item, src string) fileops.Mode {
	switch mode {
	case config.ImportModeCopy:
		return fileops.ModeCopy
	case config.ImportModeMove:
		return fileops.ModeMove
	}
	if item != nil && !item.CanMoveFiles {
		return fileops.ModeCopy
	}
	if fileops.IsReadOnly(src) {
		return fileops.ModeCopy
	}
	return fileops.ModeMove
}

func downloadID(item *downloadclient.Item) string {
	if item == nil {
		return ""
	}
	return item.DownloadID
}

func clientName(item *downloadclient.Item) string {
	if item == nil {
		return ""
	}
	return item.Client
}

func countType(results []*Result, t ResultType) int {
	n := 0
	for _, r := range results {
		if r.Type == t {
			n++
		}
	}
	return n
}
