package specs

import (
	"context"
	"time"

	"needle/internal/config"
	"needle/internal/customformat"
	"needle/internal/decision"
	"needle/internal/history"
	"needle/internal/music"
	"needle/internal/quality"
)

// FileProvider reads the library's track files.
type FileProvider interface {
	TrackFilesByAlbum(ctx context.Context, albumID int64) ([]*music.TrackFile, error)
}

// HistoryProvider reads grab and failure history.
type HistoryProvider interface {
	MostRecentForAlbum(ctx context.Context, albumID int64) (*history.Record, error)
	FailedForRelease(ctx context.Context, sourceTitle, indexer string) ([]*history.Record, error)
}

// QueueEntry is a release currently tracked in a download client.
type QueueEntry struct {
	Title  string
	Remote *decision.RemoteAlbum
}

// QueueProvider lists what is currently downloading.
type QueueProvider interface {
	QueuedAlbums(ctx context.Context) ([]QueueEntry, error)
}

// Dependencies is everything the release specifications read.
type Dependencies struct {
	Decisions     config.Decisions
	Profiles      map[int]*quality.Profile
	Definitions   quality.Definitions
	DelayProfiles []config.DelayProfile
	Formats       *customformat.Calculator
	Files         FileProvider
	History       HistoryProvider
	Queue         QueueProvider
	Now           func() time.Time
}

func (d Dependencies) now() time.Time {
	if d.Now == nil {
		return time.Now().UTC()
	}
	return d.Now()
}

func (d Dependencies) profile(remote *decision.RemoteAlbum) *quality.Profile {
	if remote.Artist == nil {
		return nil
	}
	return d.Profiles[remote.Artist.QualityProfileID]
}

func (d Dependencies) policy() decision.UpgradePolicy {
	return decision.NewUpgradePolicy(d.Decisions.DownloadPropersAndRepacks)
}

// fileScore scores an existing file the way a release with its scene name
// would have been scored.
func (d Dependencies) fileScore(profile *quality.Profile, file *music.TrackFile) int {
	if file.SceneName == "" {
		return 0
	}
	return profile.FormatScore(d.Formats.Match(customformat.Input{
		Title:        file.SceneName,
		ReleaseGroup: file.ReleaseGroup,
		Size:         file.Size,
	}))
}

// Default returns every release specification in evaluation order.
func Default(deps Dependencies) []decision.ReleaseSpecification {
	return []decision.ReleaseSpecification{
		MonitoredAlbum{},
		Discography{deps: deps},
		ProtocolAllowed{deps: deps},
		QualityAllowedByProfile{deps: deps},
		CustomFormatAllowedByProfile{deps: deps},
		AcceptableSize{deps: deps},
		MaximumSize{deps: deps},
		ReleaseRestrictions{deps: deps},
		LanguageAllowed{deps: deps},
		Retention{deps: deps},
		MinimumAge{deps: deps},
		TorrentSeeding{},
		Blocklist{deps: deps},
		Queue{deps: deps},
		AlreadyGrabbed{deps: deps},
		UpgradeDisk{deps: deps},
		Cutoff{deps: deps},
		Proper{deps: deps},
	}
}
