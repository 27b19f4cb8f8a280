package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"needle/internal/decision"
	"needle/internal/downloadclient"
	"needle/internal/events"
	"needle/internal/fileops"
	"needle/internal/history"
	"needle/internal/importer"
	"needle/internal/indexer"
	"needle/internal/logging"
	"needle/internal/music"
	"needle/internal/parser"
	"needle/internal/services"
)

// Status messages shown on tracked downloads.
const (
	MessageNoOutputPath   = "Download client reported completion without an output path"
	MessageForeignPath    = "Import failed, path is not usable on this host: %s"
	MessageUnknownGrab    = "Download wasn't grabbed by needle and has no category, skipping"
	MessageUnmatched      = "Found matching release but couldn't match it to an artist and album"
	MessageNothingToDo    = "No files found are eligible for import in %s"
	MessageIncomplete     = "Not all tracks were imported"
	MessageAllRejected    = "Every album in the download was rejected"
	MessageAlreadyInLib   = "Every file is already in the library, nothing was imported from this download"
	MessageUnexpected     = "Unexpected error while reconciling the download"
	messageImportFailedAt = "Import failed: %v"
)

// HistoryProvider reads history records of a download.
type HistoryProvider interface {
	FindByDownloadID(ctx context.Context, downloadID string) ([]*history.Record, error)
}

// Catalog resolves history ids and release titles to library entities.
type Catalog interface {
	ArtistByID(ctx context.Context, id int64) (*music.Artist, error)
	AlbumByID(ctx context.Context, id int64) (*music.Album, error)
	ArtistByCleanName(ctx context.Context, cleanName string) (*music.Artist, error)
	AlbumsByArtist(ctx context.Context, artistID int64) ([]*music.Album, error)
}

// FileProvider reads the library's track files.
type FileProvider interface {
	TrackFilesByAlbum(ctx context.Context, albumID int64) ([]*music.TrackFile, error)
}

// Importer imports a completed download's output path.
type Importer interface {
	ProcessPath(ctx context.Context, path string, opts importer.ProcessOptions) ([]*importer.Result, error)
}

// ReconcilerOptions wires a Reconciler.
type ReconcilerOptions struct {
	Tracker  *Tracker
	History  HistoryProvider
	Catalog  Catalog
	Files    FileProvider
	Importer Importer
	Bus      *events.Bus
	Now      func() time.Time
	Logger   *slog.Logger
}

// ReconcileOptions tunes one reconcile pass.
type ReconcileOptions struct {
	// IgnoreWarnings imports downloads of unknown provenance or without a
	// matching artist and album.
	IgnoreWarnings bool
	// Sequence orders passes over the same download. Zero takes the next
	// number from the tracker.
	Sequence uint64
}

// Reconciler advances tracked downloads from client observations.
type Reconciler struct {
	tracker  *Tracker
	history  HistoryProvider
	catalog  Catalog
	files    FileProvider
	importer Importer
	bus      *events.Bus
	now      func() time.Time
	logger   *slog.Logger
}

// NewReconciler returns a reconciler; a nil Tracker gets a fresh one.
func NewReconciler(opts ReconcilerOptions) *Reconciler {
	tracker := opts.Tracker
	if tracker == nil {
		tracker = NewTracker()
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Reconciler{
		tracker:  tracker,
		history:  opts.History,
		catalog:  opts.Catalog,
		files:    opts.Files,
		importer: opts.Importer,
		bus:      opts.Bus,
		now:      now,
		logger:   logging.NewComponentLogger(opts.Logger, "reconciler"),
	}
}

// Tracker returns the tracker the reconciler records into.
func (r *Reconciler) Tracker() *Tracker { return r.tracker }

// Reconcile runs one pass over a client item and returns the resulting
// tracked download. Imported and failed downloads are left alone, and a pass
// older than the last applied one is discarded.
func (r *Reconciler) Reconcile(ctx context.Context, item downloadclient.Item, opts ReconcileOptions) (*TrackedDownload, error) {
	seq := opts.Sequence
	if seq == 0 {
		seq = r.tracker.Next()
	}
	key := KeyOf(item)
	s, unlock := r.tracker.acquire(key)
	defer unlock()

	logger := logging.WithContext(ctx, r.logger).With(
		logging.String(logging.FieldDownloadID, item.DownloadID),
		logging.String(logging.FieldClient, item.Client),
	)

	current := s.download
	if current == nil {
		current = &TrackedDownload{Key: key, State: StateDownloading}
	}
	if current.Sequence > seq {
		logger.Debug("stale reconcile pass discarded",
			logging.Int64("sequence", int64(seq)),
			logging.Int64("applied_sequence", int64(current.Sequence)),
		)
		return current.clone(), nil
	}
	if current.State.Terminal() {
		current.Item = item
		current.Sequence = seq
		s.download = current
		return current.clone(), nil
	}

	work := current.clone()
	work.Item = item
	obs, err := r.observeSafely(ctx, work, opts, logger)
	work.State = Transition(current.State, obs)
	work.Sequence = seq
	work.Updated = r.now()
	s.download = work

	if work.State != current.State {
		logger.Info("tracked download state changed",
			logging.String("from", string(current.State)),
			logging.String("to", string(work.State)),
			logging.String(logging.FieldRelease, item.Title),
		)
	}
	return work.clone(), err
}

func (r *Reconciler) observeSafely(ctx context.Context, td *TrackedDownload, opts ReconcileOptions, logger *slog.Logger) (obs Observation, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = decision.Recovered(rec)
			obs = ""
			td.setMessage(MessageUnexpected)
			logging.ErrorWithContext(logger, "reconcile pass panicked", "reconcile_panic",
				logging.Error(err),
				logging.String(logging.FieldImpact, "the download keeps its state until the next poll"))
		}
	}()
	return r.observe(ctx, td, opts, logger)
}

func (r *Reconciler) observe(ctx context.Context, td *TrackedDownload, opts ReconcileOptions, logger *slog.Logger) (Observation, error) {
	item := td.Item
	switch item.Status {
	case downloadclient.StatusFailed:
		r.fail(ctx, td, logger)
		return ObservedClientFailed, nil
	case downloadclient.StatusCompleted:
	default:
		td.Messages = nil
		if item.Message != "" {
			td.setMessage(item.Message)
		}
		if td.Remote == nil {
			r.correlatePending(ctx, td, logger)
		}
		return ObservedPending, nil
	}

	records, err := r.findHistory(ctx, item.DownloadID)
	if err != nil {
		return ObservedPending, services.Wrap(services.ErrTransient, "reconcile", "load history", item.DownloadID, err)
	}
	if findEvent(records, history.EventDownloadImported) != nil {
		logger.Info("download already imported according to history")
		td.Messages = nil
		return ObservedImported, nil
	}

	if strings.TrimSpace(item.OutputPath) == "" {
		td.setMessage(MessageNoOutputPath)
		logging.WarnWithContext(logger, "completed download has no output path", "download_path_missing",
			logging.String(logging.FieldErrorHint, "the client may still be moving files"),
			logging.String(logging.FieldImpact, "import waits for the next poll"))
		return ObservedUnusablePath, nil
	}
	if err := fileops.CheckPathShape(item.OutputPath); err != nil {
		td.setMessage(fmt.Sprintf(MessageForeignPath, item.OutputPath))
		logging.WarnWithContext(logger, "download path unusable on this host", "download_path_foreign",
			logging.String(logging.FieldPath, item.OutputPath),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "configure a remote path mapping in the download client"),
			logging.String(logging.FieldImpact, "no import is attempted"))
		return ObservedBlocked, nil
	}

	grabbed := findEvent(records, history.EventGrabbed)
	if td.Remote == nil || !matched(td.Remote) {
		remote, err := r.correlate(ctx, item, records)
		if err != nil {
			return ObservedPending, services.Wrap(services.ErrTransient, "reconcile", "correlate", item.Title, err)
		}
		td.Remote = remote
	}
	if grabbed == nil && strings.TrimSpace(item.Category) == "" && !opts.IgnoreWarnings {
		td.setMessage(MessageUnknownGrab)
		logging.WarnWithContext(logger, "download has no grab history and no category", "download_provenance_unknown",
			logging.String(logging.FieldRelease, item.Title),
			logging.String(logging.FieldErrorHint, "import it manually or retry with warnings ignored"),
			logging.String(logging.FieldImpact, "no import is attempted"))
		return ObservedBlocked, nil
	}
	if !matched(td.Remote) && !opts.IgnoreWarnings {
		td.setMessage(MessageUnmatched)
		logging.WarnWithContext(logger, "download does not match an artist and album", "download_unmatched",
			logging.String(logging.FieldRelease, item.Title),
			logging.String(logging.FieldErrorHint, "check the release title or import it manually"),
			logging.String(logging.FieldImpact, "no import is attempted"))
		return ObservedBlocked, nil
	}

	td.State = StateImporting
	results, err := r.importer.ProcessPath(ctx, item.OutputPath, importer.ProcessOptions{
		Overrides:   overridesFor(td.Remote),
		Item:        &item,
		NewDownload: true,
	})
	if err != nil {
		td.setMessage(fmt.Sprintf(messageImportFailedAt, err))
		if errors.Is(err, services.ErrValidation) || errors.Is(err, services.ErrNotFound) {
			logging.WarnWithContext(logger, "download output cannot be imported", "download_import_blocked",
				logging.String(logging.FieldPath, item.OutputPath),
				logging.Error(err),
				logging.String(logging.FieldImpact, "no import is attempted until the path is fixed"))
			return ObservedBlocked, nil
		}
		return ObservedImportable, err
	}
	return r.verifyImport(ctx, td, results, records, logger)
}

// verifyImport decides whether an import batch finished the download. Files
// rejected only as duplicates count as settled, so a repeated pass over a
// partly imported folder is judged on the tracks still missing. A batch that
// imported nothing only completes a download whose history already holds
// imported tracks.
func (r *Reconciler) verifyImport(ctx context.Context, td *TrackedDownload, results []*importer.Result, records []*history.Record, logger *slog.Logger) (Observation, error) {
	monitored := monitoredAlbums(td.Remote, results)
	wanted := make(map[int64]bool, len(monitored))
	for _, album := range monitored {
		wanted[album.ID] = true
	}

	td.Messages = rejectionMessages(results)
	importedWanted, settled := 0, 0
	for _, res := range results {
		if !wanted[albumIDOf(res)] {
			continue
		}
		switch {
		case res.Successful():
			importedWanted++
			settled++
		case res.DuplicateOrExtra():
			settled++
		}
	}

	if settled == 0 {
		switch {
		case len(results) == 0:
			td.setMessage(fmt.Sprintf(MessageNothingToDo, td.Item.OutputPath))
		case len(rejectedAlbums(results)) >= max(1, len(td.Remote.Albums)):
			td.Messages = append([]StatusMessage{{Title: td.Item.Title, Messages: []string{MessageAllRejected}}}, td.Messages...)
		}
		r.notice(ctx, td, noticeText(td), logger)
		return ObservedIncomplete, nil
	}
	if importedWanted == 0 && findEvent(records, history.EventTrackImported) == nil {
		td.Messages = append([]StatusMessage{{Title: td.Item.Title, Messages: []string{MessageAlreadyInLib}}}, td.Messages...)
		r.notice(ctx, td, MessageAlreadyInLib, logger)
		return ObservedIncomplete, nil
	}

	complete, err := r.albumsComplete(ctx, monitored, results)
	if err != nil {
		return ObservedIncomplete, services.Wrap(services.ErrTransient, "reconcile", "verify import", td.Item.Title, err)
	}
	if !complete {
		td.Messages = append([]StatusMessage{{Title: td.Item.Title, Messages: []string{MessageIncomplete}}}, td.Messages...)
		r.notice(ctx, td, MessageIncomplete, logger)
		return ObservedIncomplete, nil
	}

	td.Messages = nil
	r.bus.Publish(ctx, events.DownloadCompleted{
		DownloadID:  td.Item.DownloadID,
		Client:      td.Item.Client,
		SourceTitle: sourceTitle(td),
		Artist:      td.Remote.Artist,
		Albums:      monitored,
		Item:        td.Item,
	})
	logger.Info("download imported",
		logging.String(logging.FieldRelease, td.Item.Title),
		logging.Int("imported_files", importedWanted),
		logging.Int("albums", len(monitored)),
	)
	return ObservedImported, nil
}

// albumsComplete reports whether every track of every monitored release has
// a file, counting files of this batch and files already in the library.
func (r *Reconciler) albumsComplete(ctx context.Context, albums []*music.Album, results []*importer.Result) (bool, error) {
	covered := make(map[int64]bool)
	for _, res := range results {
		switch {
		case res.Successful() && res.File != nil:
			for _, id := range res.File.TrackIDs {
				covered[id] = true
			}
		case res.DuplicateOrExtra() && res.Decision != nil:
			for _, track := range res.Decision.Subject.Tracks {
				covered[track.ID] = true
			}
		}
	}
	for _, album := range albums {
		release := album.MonitoredRelease()
		if release == nil || len(release.Tracks) == 0 {
			continue
		}
		if r.files != nil {
			files, err := r.files.TrackFilesByAlbum(ctx, album.ID)
			if err != nil {
				return false, err
			}
			for _, file := range files {
				for _, id := range file.TrackIDs {
					covered[id] = true
				}
			}
		}
		for _, track := range release.Tracks {
			if !covered[track.ID] && !track.HasFile() {
				return false, nil
			}
		}
	}
	return true, nil
}

// notice publishes an incomplete import once per distinct message.
func (r *Reconciler) notice(ctx context.Context, td *TrackedDownload, message string, logger *slog.Logger) {
	if td.lastNotice == message {
		return
	}
	td.lastNotice = message
	logging.WarnWithContext(logger, "download import incomplete", "download_import_incomplete",
		logging.String(logging.FieldRelease, td.Item.Title),
		logging.String("reason", message),
		logging.String(logging.FieldErrorHint, "review the rejected files of the download"),
		logging.String(logging.FieldImpact, "the download stays queued and is retried on the next poll"))
	var artistID int64
	if td.Remote != nil && td.Remote.Artist != nil {
		artistID = td.Remote.Artist.ID
	}
	r.bus.Publish(ctx, events.DownloadImportIncomplete{
		DownloadID:  td.Item.DownloadID,
		Client:      td.Item.Client,
		SourceTitle: sourceTitle(td),
		ArtistID:    artistID,
		AlbumIDs:    remoteAlbumIDs(td.Remote),
		Message:     message,
	})
}

func (r *Reconciler) fail(ctx context.Context, td *TrackedDownload, logger *slog.Logger) {
	if td.Remote == nil {
		if records, err := r.findHistory(ctx, td.Item.DownloadID); err == nil {
			if remote, err := r.correlate(ctx, td.Item, records); err == nil {
				td.Remote = remote
			}
		}
	}
	message := td.Item.Message
	if message == "" {
		message = "Download client reported the download as failed"
	}
	td.setMessage(message)
	var (
		artistID int64
		idx      string
	)
	if td.Remote != nil {
		if td.Remote.Artist != nil {
			artistID = td.Remote.Artist.ID
		}
		if td.Remote.Release != nil {
			idx = td.Remote.Release.Indexer
		}
	}
	logging.WarnWithContext(logger, "download failed in client", "download_failed",
		logging.String(logging.FieldRelease, td.Item.Title),
		logging.String("reason", message),
		logging.String(logging.FieldErrorHint, "the release is blocklisted; search again for another one"),
		logging.String(logging.FieldImpact, "the download will not be imported"))
	r.bus.Publish(ctx, events.DownloadFailed{
		DownloadID:  td.Item.DownloadID,
		Client:      td.Item.Client,
		SourceTitle: sourceTitle(td),
		Indexer:     idx,
		Message:     message,
		ArtistID:    artistID,
		AlbumIDs:    remoteAlbumIDs(td.Remote),
	})
}

func (r *Reconciler) findHistory(ctx context.Context, downloadID string) ([]*history.Record, error) {
	if r.history == nil || strings.TrimSpace(downloadID) == "" {
		return nil, nil
	}
	return r.history.FindByDownloadID(ctx, downloadID)
}

// correlatePending attaches the grab to a download still in flight so it shows
// up in the queue. Failures are retried on the next poll.
func (r *Reconciler) correlatePending(ctx context.Context, td *TrackedDownload, logger *slog.Logger) {
	records, err := r.findHistory(ctx, td.Item.DownloadID)
	if err == nil {
		td.Remote, err = r.correlate(ctx, td.Item, records)
	}
	if err != nil {
		logger.Debug("queued download not correlated yet", logging.Error(err))
	}
}

// correlate rebuilds the remote album of a download, from its grab records
// when there are any and from the item title otherwise.
func (r *Reconciler) correlate(ctx context.Context, item downloadclient.Item, records []*history.Record) (*decision.RemoteAlbum, error) {
	var grabs []*history.Record
	for _, record := range records {
		if record.EventType == history.EventGrabbed {
			grabs = append(grabs, record)
		}
	}
	if len(grabs) > 0 {
		return r.remoteFromHistory(ctx, grabs)
	}

	parsed := parser.ParseAlbumTitle(item.Title)
	remote := &decision.RemoteAlbum{
		Release:    &indexer.Release{Title: item.Title, Protocol: item.Protocol, Size: item.TotalSize},
		ParsedInfo: parsed,
	}
	if parsed == nil || r.catalog == nil {
		return remote, nil
	}
	artist, err := r.catalog.ArtistByCleanName(ctx, parsed.CleanArtistName())
	if err != nil || artist == nil {
		return remote, err
	}
	remote.Artist = artist
	albums, err := r.catalog.AlbumsByArtist(ctx, artist.ID)
	if err != nil {
		return remote, err
	}
	remote.Albums = decision.MatchAlbums(parsed, albums)
	return remote, nil
}

func (r *Reconciler) remoteFromHistory(ctx context.Context, grabs []*history.Record) (*decision.RemoteAlbum, error) {
	first := grabs[0]
	size, _ := strconv.ParseInt(first.Get(history.DataSize), 10, 64)
	score, _ := strconv.Atoi(first.Get(history.DataCustomFormatScore))
	parsed := parser.ParseAlbumTitle(first.SourceTitle)
	if parsed == nil {
		parsed = &parser.ParsedAlbumInfo{}
	}
	parsed.Quality = first.Quality
	remote := &decision.RemoteAlbum{
		Release: &indexer.Release{
			Title:    first.SourceTitle,
			Indexer:  first.Get(history.DataIndexer),
			Protocol: indexer.Protocol(first.Get(history.DataProtocol)),
			Size:     size,
		},
		ParsedInfo:        parsed,
		CustomFormatScore: score,
	}
	if r.catalog == nil {
		return remote, nil
	}
	artist, err := r.catalog.ArtistByID(ctx, first.ArtistID)
	if err != nil {
		return nil, err
	}
	remote.Artist = artist
	seen := make(map[int64]bool)
	for _, grab := range grabs {
		if grab.AlbumID == 0 || seen[grab.AlbumID] {
			continue
		}
		seen[grab.AlbumID] = true
		album, err := r.catalog.AlbumByID(ctx, grab.AlbumID)
		if err != nil {
			return nil, err
		}
		if album != nil {
			remote.Albums = append(remote.Albums, album)
		}
	}
	return remote, nil
}

func matched(remote *decision.RemoteAlbum) bool {
	return remote != nil && remote.Artist != nil && len(remote.Albums) > 0
}

func overridesFor(remote *decision.RemoteAlbum) importer.Overrides {
	if !matched(remote) {
		return importer.Overrides{}
	}
	overrides := importer.Overrides{Artist: remote.Artist}
	if len(remote.Albums) == 1 {
		overrides.Album = remote.Albums[0]
	}
	return overrides
}

// monitoredAlbums returns the monitored albums of the download. Without a
// matched remote the albums come from the import results.
func monitoredAlbums(remote *decision.RemoteAlbum, results []*importer.Result) []*music.Album {
	var albums []*music.Album
	if remote != nil {
		albums = remote.Albums
	}
	if len(albums) == 0 {
		seen := make(map[int64]bool)
		for _, res := range results {
			if res.Decision == nil || res.Decision.Subject.Album == nil {
				continue
			}
			album := res.Decision.Subject.Album
			if !seen[album.ID] {
				seen[album.ID] = true
				albums = append(albums, album)
			}
		}
	}
	monitored := slices.DeleteFunc(slices.Clone(albums), func(a *music.Album) bool { return !a.Monitored })
	if len(monitored) == 0 {
		return albums
	}
	return monitored
}

func albumIDOf(res *importer.Result) int64 {
	if res.Decision == nil || res.Decision.Subject.Album == nil {
		return 0
	}
	return res.Decision.Subject.Album.ID
}

func rejectedAlbums(results []*importer.Result) map[int64]bool {
	out := make(map[int64]bool)
	for _, res := range results {
		if !res.Successful() && !res.DuplicateOrExtra() {
			out[albumIDOf(res)] = true
		}
	}
	return out
}

// rejectionMessages groups the reasons of failed results by file name.
func rejectionMessages(results []*importer.Result) []StatusMessage {
	var out []StatusMessage
	for _, res := range results {
		if res.Successful() || res.DuplicateOrExtra() || res.Decision == nil {
			continue
		}
		out = append(out, StatusMessage{
			Title:    filepath.Base(res.Decision.Subject.Path),
			Messages: slices.Clone(res.Errors),
		})
	}
	return out
}

func noticeText(td *TrackedDownload) string {
	if len(td.Messages) == 0 {
		return MessageIncomplete
	}
	return strings.Join(td.Messages[0].Messages, "; ")
}

func findEvent(records []*history.Record, eventType history.EventType) *history.Record {
	for _, record := range records {
		if record.EventType == eventType {
			return record
		}
	}
	return nil
}

func remoteAlbumIDs(remote *decision.RemoteAlbum) []int64 {
	if remote == nil {
		return nil
	}
	return remote.AlbumIDs()
}

func sourceTitle(td *TrackedDownload) string {
	if td.Remote != nil && td.Remote.Release != nil && td.Remote.Release.Title != "" {
		return td.Remote.Release.Title
	}
	return td.Item.Title
}
