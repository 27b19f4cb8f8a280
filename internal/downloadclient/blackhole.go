package downloadclient

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"needle/internal/config"
	"needle/internal/decision"
	"needle/internal/indexer"
	"needle/internal/logging"
	"needle/internal/services"
	"needle/internal/textutil"
)

var watchExtensions = map[string]bool{".torrent": true, ".magnet": true, ".nzb": true}

// Blackhole drops release files into a watch folder for an external client and
// reports whatever appears in the completed folder.
type Blackhole struct {
	name         string
	protocol     indexer.Protocol
	watchDir     string
	completedDir string
	category     string
	priority     int
	canMoveFiles bool
	logger       *slog.Logger
}

// NewBlackhole returns a blackhole client for cfg.
func NewBlackhole(cfg config.DownloadClient, logger *slog.Logger) *Blackhole {
	return &Blackhole{
		name:         cfg.Name,
		protocol:     indexer.Protocol(cfg.Protocol),
		watchDir:     cfg.WatchDir,
		completedDir: cfg.CompletedDir,
		category:     cfg.Category,
		priority:     cfg.Priority,
		canMoveFiles: cfg.CanMoveFiles,
		logger:       logging.NewComponentLogger(logger, "downloadclient").With(logging.String(logging.FieldClient, cfg.Name)),
	}
}

func (b *Blackhole) Name() string               { return b.name }
func (b *Blackhole) Protocol() indexer.Protocol { return b.protocol }
func (b *Blackhole) Priority() int              { return b.priority }
func (b *Blackhole) Category() string           { return b.category }

// DownloadID is the id the blackhole uses for a release title. It is derived
// from the title so completed folders map back to their grab.
func (b *Blackhole) DownloadID(title string) string {
	return strings.ToLower(b.name + "_" + textutil.SanitizeFileName(title))
}

// Add writes the release into the watch folder.
func (b *Blackhole) Add(ctx context.Context, remote *decision.RemoteAlbum, req indexer.DownloadRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	title := textutil.SanitizeFileName(remote.Release.Title)
	if title == "" {
		return "", services.Wrap(services.ErrValidation, "download", "blackhole add", "release has no title", nil)
	}

	var (
		ext  string
		data []byte
	)
	switch {
	case b.protocol == indexer.ProtocolUsenet:
		if len(req.Payload) == 0 {
			return "", services.Wrap(services.ErrValidation, "download", "blackhole add", "nzb payload missing", nil)
		}
		ext, data = ".nzb", req.Payload
	case len(req.Payload) > 0:
		if InfoHash(indexer.DownloadRequest{Payload: req.Payload}) == "" {
			return "", services.Wrap(services.ErrValidation, "download", "blackhole add", "payload is not a torrent", nil)
		}
		ext, data = ".torrent", req.Payload
	case req.Magnet != "" || strings.HasPrefix(req.Link, "magnet:"):
		magnet := req.Magnet
		if magnet == "" {
			magnet = req.Link
		}
		ext, data = ".magnet", []byte(magnet+"\n")
	default:
		return "", services.Wrap(services.ErrValidation, "download", "blackhole add", "nothing to add", nil)
	}

	if err := os.MkdirAll(b.watchDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrTransient, "download", "blackhole add", "create watch dir", err)
	}
	target := filepath.Join(b.watchDir, title+ext)
	tmp := target + ".partial"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", services.Wrap(services.ErrTransient, "download", "blackhole add", "write release", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return "", services.Wrap(services.ErrTransient, "download", "blackhole add", "publish release", err)
	}

	id := b.DownloadID(title)
	b.logger.Info("release written to watch folder",
		logging.String(logging.FieldDownloadID, id),
		logging.String(logging.FieldPath, target),
		logging.String("info_hash", InfoHash(req)),
		logging.String("size", humanize.IBytes(uint64(max(remote.Release.Size, 0)))),
	)
	return id, nil
}

// GetItems lists completed folder entries as completed and release files still
// waiting in the watch folder as queued.
func (b *Blackhole) GetItems(ctx context.Context) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var items []Item
	seen := make(map[string]bool)

	completed, err := readDir(b.completedDir)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "download", "blackhole scan", "read completed dir", err)
	}
	for _, entry := range completed {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		title := entry.Name()
		if !entry.IsDir() {
			title = strings.TrimSuffix(title, filepath.Ext(title))
		}
		path := filepath.Join(b.completedDir, entry.Name())
		size, err := treeSize(path)
		if err != nil {
			b.logger.Debug("size scan failed", logging.String(logging.FieldPath, path), logging.Error(err))
		}
		id := b.DownloadID(title)
		seen[id] = true
		items = append(items, b.item(id, title, StatusCompleted, path, size))
	}

	watching, err := readDir(b.watchDir)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "download", "blackhole scan", "read watch dir", err)
	}
	for _, entry := range watching {
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if entry.IsDir() || !watchExtensions[ext] {
			continue
		}
		title := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		id := b.DownloadID(title)
		if seen[id] {
			continue
		}
		items = append(items, b.item(id, title, StatusQueued, "", 0))
	}
	return items, nil
}

func (b *Blackhole) item(id, title string, status Status, path string, size int64) Item {
	return Item{
		DownloadID:   id,
		Title:        title,
		Category:     b.category,
		Client:       b.name,
		Protocol:     b.protocol,
		Status:       status,
		OutputPath:   path,
		TotalSize:    size,
		CanMoveFiles: b.canMoveFiles,
		CanBeRemoved: true,
	}
}

// Remove forgets a download. With deleteData the completed output is deleted
// as well; the watch folder file is always removed.
func (b *Blackhole) Remove(ctx context.Context, downloadID string, deleteData bool) error {
	items, err := b.GetItems(ctx)
	if err != nil {
		return err
	}
	for _, item := range items {
		if item.DownloadID != downloadID {
			continue
		}
		for ext := range watchExtensions {
			_ = os.Remove(filepath.Join(b.watchDir, item.Title+ext))
		}
		if deleteData && item.OutputPath != "" {
			if err := os.RemoveAll(item.OutputPath); err != nil {
				return services.Wrap(services.ErrTransient, "download", "blackhole remove", item.Title, err)
			}
		}
		b.logger.Info("download removed",
			logging.String(logging.FieldDownloadID, downloadID),
			logging.Bool("delete_data", deleteData),
		)
		return nil
	}
	return services.Wrap(services.ErrNotFound, "download", "blackhole remove", downloadID, nil)
}

func readDir(dir string) ([]os.DirEntry, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return entries, err
}

func treeSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return fmt.Errorf("stat: %w", err)
			}
			total += info.Size()
		}
		return nil
	})
	return total, err
}
