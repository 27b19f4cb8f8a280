package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"needle/internal/config"
	"needle/internal/logging"
	"needle/internal/services"
	"needle/internal/textutil"
)

// StaticFeed serves releases from a JSON file, one of the reference adapters
// the daemon can run against without network indexers.
type StaticFeed struct {
	name           string
	path           string
	priority       int
	minimumSeeders int
	logger         *slog.Logger
	now            func() time.Time
}

type feedFile struct {
	Releases []feedRelease `json:"releases"`
}

type feedRelease struct {
	GUID        string    `json:"guid"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Magnet      string    `json:"magnet"`
	InfoURL     string    `json:"info_url"`
	Size        int64     `json:"size"`
	PublishDate time.Time `json:"publish_date"`
	Protocol    string    `json:"protocol"`
	Seeders     *int      `json:"seeders"`
	Peers       *int      `json:"peers"`
	Artist      string    `json:"artist"`
	Album       string    `json:"album"`
	Categories  []int     `json:"categories"`
}

// NewStaticFeed returns a feed backed by cfg.Path.
func NewStaticFeed(cfg config.Indexer, logger *slog.Logger, now func() time.Time) *StaticFeed {
	if now == nil {
		now = time.Now
	}
	return &StaticFeed{
		name:           cfg.Name,
		path:           cfg.Path,
		priority:       cfg.Priority,
		minimumSeeders: cfg.MinimumSeeders,
		logger:         logging.NewComponentLogger(logger, "indexer").With(logging.String(logging.FieldIndexer, cfg.Name)),
		now:            now,
	}
}

func (f *StaticFeed) Name() string { return f.name }

// Protocol is unknown for a feed: each entry carries its own.
func (f *StaticFeed) Protocol() Protocol { return ProtocolUnknown }

// GetRecent returns every release in the feed.
func (f *StaticFeed) GetRecent(ctx context.Context) ([]*Release, error) {
	return f.load(ctx)
}

// Search returns feed releases whose title contains the artist and, when
// given, one of the albums.
func (f *StaticFeed) Search(ctx context.Context, criteria SearchCriteria) ([]*Release, error) {
	releases, err := f.load(ctx)
	if err != nil {
		return nil, err
	}
	if criteria.Artist == nil {
		return releases, nil
	}
	artist := textutil.CleanName(criteria.Artist.Name)
	var matched []*Release
	for _, release := range releases {
		title := textutil.CleanName(release.Title)
		if !strings.Contains(title, artist) {
			continue
		}
		if len(criteria.Albums) == 0 || criteria.Discography {
			matched = append(matched, release)
			continue
		}
		for _, album := range criteria.Albums {
			if strings.Contains(title, textutil.CleanName(album.Title)) {
				matched = append(matched, release)
				break
			}
		}
	}
	f.logger.Debug("static feed search",
		logging.String(logging.FieldArtist, criteria.Artist.Name),
		logging.Int("candidates", len(releases)),
		logging.Int("matched", len(matched)),
	)
	return matched, nil
}

// GetDownloadRequest resolves a release link. Magnets pass through; file links
// are read relative to the feed file.
func (f *StaticFeed) GetDownloadRequest(ctx context.Context, release *Release) (DownloadRequest, error) {
	if err := ctx.Err(); err != nil {
		return DownloadRequest{}, err
	}
	if release.MagnetURL != "" && release.DownloadURL == "" {
		return DownloadRequest{Link: release.MagnetURL, Magnet: release.MagnetURL}, nil
	}
	link := strings.TrimPrefix(release.DownloadURL, "file://")
	if link == "" {
		return DownloadRequest{}, services.Wrap(services.ErrValidation, "indexer", "download request", "release has no link", nil)
	}
	if !filepath.IsAbs(link) {
		link = filepath.Join(filepath.Dir(f.path), link)
	}
	payload, err := os.ReadFile(link)
	if err != nil {
		return DownloadRequest{}, services.Wrap(services.ErrTransient, "indexer", "download request", fmt.Sprintf("read %s", link), err)
	}
	return DownloadRequest{Link: link, Magnet: release.MagnetURL, Payload: payload}, nil
}

func (f *StaticFeed) load(ctx context.Context) ([]*Release, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "indexer", "read feed", f.name, err)
	}
	var feed feedFile
	if err := json.Unmarshal(data, &feed); err != nil {
		return nil, services.Wrap(services.ErrValidation, "indexer", "parse feed", f.name, err)
	}
	releases := make([]*Release, 0, len(feed.Releases))
	for _, entry := range feed.Releases {
		protocol := Protocol(strings.ToLower(entry.Protocol))
		if protocol == ProtocolUnknown {
			protocol = ProtocolTorrent
			if strings.HasSuffix(strings.ToLower(entry.Link), ".nzb") {
				protocol = ProtocolUsenet
			}
		}
		guid := entry.GUID
		if guid == "" {
			guid = f.name + ":" + entry.Title
		}
		releases = append(releases, &Release{
			GUID:            guid,
			Title:           entry.Title,
			DownloadURL:     entry.Link,
			MagnetURL:       entry.Magnet,
			InfoURL:         entry.InfoURL,
			Indexer:         f.name,
			IndexerPriority: f.priority,
			MinimumSeeders:  f.minimumSeeders,
			Size:            entry.Size,
			PublishDate:     entry.PublishDate,
			Protocol:        protocol,
			Seeders:         entry.Seeders,
			Peers:           entry.Peers,
			ArtistHint:      entry.Artist,
			AlbumHint:       entry.Album,
			Categories:      entry.Categories,
		})
	}
	return releases, nil
}
