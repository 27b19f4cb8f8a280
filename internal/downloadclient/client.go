package downloadclient

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anacrolix/torrent/metainfo"

	"needle/internal/config"
	"needle/internal/decision"
	"needle/internal/indexer"
)

// Status is the external state of a download.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusDownloading Status = "downloading"
	StatusPaused      Status = "paused"
	StatusWarning     Status = "warning"
	StatusFailed      Status = "failed"
	StatusCompleted   Status = "completed"
)

// Item is one download as the client reports it.
type Item struct {
	DownloadID    string
	Title         string
	Category      string
	Client        string
	Protocol      indexer.Protocol
	Status        Status
	Message       string
	OutputPath    string
	TotalSize     int64
	RemainingSize int64
	CanMoveFiles  bool
	CanBeRemoved  bool
}

// Client is a download client adapter.
type Client interface {
	Name() string
	Protocol() indexer.Protocol
	Priority() int
	Category() string
	GetItems(ctx context.Context) ([]Item, error)
	Add(ctx context.Context, remote *decision.RemoteAlbum, req indexer.DownloadRequest) (string, error)
	Remove(ctx context.Context, downloadID string, deleteData bool) error
}

// FromConfig builds the enabled clients.
func FromConfig(clients []config.DownloadClient, logger *slog.Logger) ([]Client, error) {
	out := make([]Client, 0, len(clients))
	for _, cfg := range clients {
		if !cfg.Enabled {
			continue
		}
		switch cfg.Kind {
		case config.DownloadClientBlackhole:
			out = append(out, NewBlackhole(cfg, logger))
		default:
			return nil, fmt.Errorf("download client %q: unsupported kind %q", cfg.Name, cfg.Kind)
		}
	}
	return out, nil
}

// InfoHash returns the lower-case hex info hash of a torrent request, read
// from the payload or the magnet link. It returns "" for anything else.
func InfoHash(req indexer.DownloadRequest) string {
	if len(req.Payload) > 0 {
		if mi, err := metainfo.Load(bytes.NewReader(req.Payload)); err == nil {
			return strings.ToLower(mi.HashInfoBytes().HexString())
		}
	}
	magnet := req.Magnet
	if magnet == "" && strings.HasPrefix(req.Link, "magnet:") {
		magnet = req.Link
	}
	if magnet != "" {
		if m, err := metainfo.ParseMagnetUri(magnet); err == nil {
			return strings.ToLower(m.InfoHash.HexString())
		}
	}
	return ""
}
