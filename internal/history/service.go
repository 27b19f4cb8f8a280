package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"needle/internal/events"
	"needle/internal/logging"
	"needle/internal/quality"
)

// Service writes history from events and answers history queries.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService returns a history service over repo.
func NewService(repo Repository, logger *slog.Logger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, logger: logging.NewComponentLogger(logger, "history"), now: now}
}

// Subscribe registers the service's handlers on bus.
func (s *Service) Subscribe(bus *events.Bus) {
	events.On(bus, "history.grabbed", s.onGrabbed)
	events.On(bus, "history.track_imported", s.onTrackImported)
	events.On(bus, "history.download_completed", s.onDownloadCompleted)
	events.On(bus, "history.download_failed", s.onDownloadFailed)
	events.On(bus, "history.import_incomplete", s.onImportIncomplete)
}

func (s *Service) onGrabbed(ctx context.Context, ev events.AlbumGrabbed) error {
	remote := ev.Remote
	if remote == nil || remote.Release == nil {
		return errors.New("grab event without release")
	}
	date := ev.Date
	if date.IsZero() {
		date = s.now()
	}
	var model quality.Model
	if remote.ParsedInfo != nil {
		model = remote.ParsedInfo.Quality
	}
	var artistID int64
	if remote.Artist != nil {
		artistID = remote.Artist.ID
	}
	data := map[string]string{
		DataIndexer:           remote.Release.Indexer,
		DataProtocol:          string(remote.Release.Protocol),
		DataClient:            ev.Client,
		DataSize:              strconv.FormatInt(remote.Release.Size, 10),
		DataCustomFormatScore: strconv.Itoa(remote.CustomFormatScore),
		DataCategory:          ev.Category,
	}
	for _, album := range remote.Albums {
		err := s.repo.InsertHistory(ctx, &Record{
			EventType:   EventGrabbed,
			ArtistID:    artistID,
			AlbumID:     album.ID,
			SourceTitle: remote.Release.Title,
			Quality:     model,
			DownloadID:  ev.DownloadID,
			Date:        date,
			Data:        cloneData(data),
		})
		if err != nil {
			return fmt.Errorf("record grab: %w", err)
		}
	}
	return nil
}

func (s *Service) onTrackImported(ctx context.Context, ev events.TrackImported) error {
	if ev.File == nil {
		return errors.New("import event without track file")
	}
	source := ev.File.SceneName
	if source == "" && ev.Track != nil {
		source = filepath.Base(ev.Track.Path)
	}
	now := s.now()
	for _, trackID := range ev.File.TrackIDs {
		err := s.repo.InsertHistory(ctx, &Record{
			EventType:   EventTrackImported,
			ArtistID:    ev.File.ArtistID,
			AlbumID:     ev.File.AlbumID,
			TrackID:     trackID,
			SourceTitle: source,
			Quality:     ev.File.Quality,
			DownloadID:  ev.DownloadID,
			Date:        now,
			Data:        map[string]string{DataPath: ev.File.Path, DataClient: ev.Client},
		})
		if err != nil {
			return fmt.Errorf("record import: %w", err)
		}
	}
	for _, old := range ev.Superseded {
		for _, trackID := range old.TrackIDs {
			err := s.repo.InsertHistory(ctx, &Record{
				EventType:   EventTrackDeleted,
				ArtistID:    old.ArtistID,
				AlbumID:     old.AlbumID,
				TrackID:     trackID,
				SourceTitle: filepath.Base(old.Path),
				Quality:     old.Quality,
				Date:        now,
				Data:        map[string]string{DataPath: old.Path, DataMessage: "upgraded"},
			})
			if err != nil {
				return fmt.Errorf("record superseded file: %w", err)
			}
		}
	}
	return nil
}

func (s *Service) onDownloadCompleted(ctx context.Context, ev events.DownloadCompleted) error {
	var artistID int64
	if ev.Artist != nil {
		artistID = ev.Artist.ID
	}
	for _, album := range ev.Albums {
		err := s.repo.InsertHistory(ctx, &Record{
			EventType:   EventDownloadImported,
			ArtistID:    artistID,
			AlbumID:     album.ID,
			SourceTitle: ev.SourceTitle,
			DownloadID:  ev.DownloadID,
			Date:        s.now(),
			Data:        map[string]string{DataClient: ev.Client, DataPath: ev.Item.OutputPath},
		})
		if err != nil {
			return fmt.Errorf("record completed download: %w", err)
		}
	}
	return nil
}

func (s *Service) onDownloadFailed(ctx context.Context, ev events.DownloadFailed) error {
	return s.recordPerAlbum(ctx, EventDownloadFailed, ev.ArtistID, ev.AlbumIDs, ev.SourceTitle, ev.DownloadID,
		map[string]string{DataClient: ev.Client, DataIndexer: ev.Indexer, DataMessage: ev.Message})
}

func (s *Service) onImportIncomplete(ctx context.Context, ev events.DownloadImportIncomplete) error {
	return s.recordPerAlbum(ctx, EventImportIncomplete, ev.ArtistID, ev.AlbumIDs, ev.SourceTitle, ev.DownloadID,
		map[string]string{DataClient: ev.Client, DataMessage: ev.Message})
}

func (s *Service) recordPerAlbum(ctx context.Context, eventType EventType, artistID int64, albumIDs []int64, title, downloadID string, data map[string]string) error {
	if len(albumIDs) == 0 {
		albumIDs = []int64{0}
	}
	for _, albumID := range albumIDs {
		err := s.repo.InsertHistory(ctx, &Record{
			EventType:   eventType,
			ArtistID:    artistID,
			AlbumID:     albumID,
			SourceTitle: title,
			DownloadID:  downloadID,
			Date:        s.now(),
			Data:        cloneData(data),
		})
		if err != nil {
			return fmt.Errorf("record %s: %w", eventType, err)
		}
	}
	s.logger.Debug("history recorded",
		logging.String(logging.FieldEventType, string(eventType)),
		logging.String(logging.FieldDownloadID, downloadID),
	)
	return nil
}

// FindByDownloadID returns every record of a download, newest first.
func (s *Service) FindByDownloadID(ctx context.Context, downloadID string) ([]*Record, error) {
	if strings.TrimSpace(downloadID) == "" {
		return nil, nil
	}
	return s.repo.HistoryByDownloadID(ctx, downloadID)
}

// MostRecentForDownloadID returns the newest record of a download, or nil.
func (s *Service) MostRecentForDownloadID(ctx context.Context, downloadID string) (*Record, error) {
	records, err := s.FindByDownloadID(ctx, downloadID)
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return records[0], nil
}

// ForAlbum returns an album's records, newest first.
func (s *Service) ForAlbum(ctx context.Context, albumID int64) ([]*Record, error) {
	return s.repo.HistoryByAlbum(ctx, albumID)
}

// MostRecentForAlbum returns the newest record of an album, or nil.
func (s *Service) MostRecentForAlbum(ctx context.Context, albumID int64) (*Record, error) {
	records, err := s.repo.HistoryByAlbum(ctx, albumID)
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return records[0], nil
}

// GrabbedSince returns grabs recorded at or after since.
func (s *Service) GrabbedSince(ctx context.Context, since time.Time) ([]*Record, error) {
	return s.repo.HistorySince(ctx, since, EventGrabbed)
}

// FailedForRelease returns failed-download records for a release title,
// restricted to indexer when it is set.
func (s *Service) FailedForRelease(ctx context.Context, sourceTitle, indexer string) ([]*Record, error) {
	records, err := s.repo.HistoryBySourceTitle(ctx, sourceTitle)
	if err != nil {
		return nil, err
	}
	var out []*Record
	for _, r := range records {
		if r.EventType != EventDownloadFailed {
			continue
		}
		if indexer != "" && r.Get(DataIndexer) != "" && !strings.EqualFold(r.Get(DataIndexer), indexer) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Recent returns records of any type newer than since.
func (s *Service) Recent(ctx context.Context, since time.Time) ([]*Record, error) {
	return s.repo.HistorySince(ctx, since, "")
}

func cloneData(data map[string]string) map[string]string {
	out := make(map[string]string, len(data))
	for k, v := range data {
		if v != "" {
			out[k] = v
		}
	}
	return out
}
