package downloadclient_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/anacrolix/torrent/bencode"
	"github.com/anacrolix/torrent/metainfo"

	"needle/internal/config"
	"needle/internal/decision"
	"needle/internal/downloadclient"
	"needle/internal/indexer"
	"needle/internal/services"
)

func newBlackhole(t *testing.T, protocol string) (*downloadclient.Blackhole, config.DownloadClient) {
	t.Helper()
	root := t.TempDir()
	cfg := config.DownloadClient{
		Name:         "Hole",
		Kind:         config.DownloadClientBlackhole,
		Protocol:     protocol,
		WatchDir:     filepath.Join(root, "watch"),
		CompletedDir: filepath.Join(root, "done"),
		Category:     "music",
		Priority:     1,
		Enabled:      true,
	}
	return downloadclient.NewBlackhole(cfg, nil), cfg
}

func torrentPayload(t *testing.T) ([]byte, string) {
	t.Helper()
	info := metainfo.Info{PieceLength: 16384, Name: "album", Length: 10, Pieces: make([]byte, 20)}
	infoBytes, err := bencode.Marshal(info)
	if err != nil {
		t.Fatalf("marshal info failed: %v", err)
	}
	mi := metainfo.MetaInfo{InfoBytes: infoBytes}
	var buf bytes.Buffer
	if err := mi.Write(&buf); err != nil {
		t.Fatalf("write torrent failed: %v", err)
	}
	return buf.Bytes(), mi.HashInfoBytes().HexString()
}

func remote(title string) *decision.RemoteAlbum {
	return &decision.RemoteAlbum{Release: &indexer.Release{Title: title, Size: 200 << 20}}
}

func TestInfoHash(t *testing.T) {
	payload, hash := torrentPayload(t)
	if got := downloadclient.InfoHash(indexer.DownloadRequest{Payload: payload}); got != strings.ToLower(hash) {
		t.Fatalf("payload hash: got %q want %q", got, hash)
	}
	magnet := "magnet:?xt=urn:btih:" + hash + "&dn=album"
	if got := downloadclient.InfoHash(indexer.DownloadRequest{Link: magnet}); got != strings.ToLower(hash) {
		t.Fatalf("magnet hash: got %q want %q", got, hash)
	}
	if got := downloadclient.InfoHash(indexer.DownloadRequest{Payload: []byte("<nzb/>")}); got != "" {
		t.Fatalf("expected no hash for nzb payload, got %q", got)
	}
}

func TestBlackholeAddAndTrack(t *testing.T) {
	hole, cfg := newBlackhole(t, config.ProtocolTorrent)
	ctx := context.Background()
	payload, _ := torrentPayload(t)

	id, err := hole.Add(ctx, remote("Artist - Album (2020) [FLAC]"), indexer.DownloadRequest{Payload: payload})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.WatchDir, "Artist - Album (2020) [FLAC].torrent")); err != nil {
		t.Fatalf("expected torrent in watch dir: %v", err)
	}

	items, err := hole.GetItems(ctx)
	if err != nil {
		t.Fatalf("GetItems failed: %v", err)
	}
	if len(items) != 1 || items[0].DownloadID != id || items[0].Status != downloadclient.StatusQueued {
		t.Fatalf("expected queued item %q, got %+v", id, items)
	}

	out := filepath.Join(cfg.CompletedDir, "Artist - Album (2020) [FLAC]")
	if err := os.MkdirAll(out, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(out, "01 - Song.flac"), make([]byte, 2048), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	items, err = hole.GetItems(ctx)
	if err != nil {
		t.Fatalf("GetItems failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected completed item to replace queued one, got %+v", items)
	}
	item := items[0]
	if item.DownloadID != id || item.Status != downloadclient.StatusCompleted || item.OutputPath != out || item.TotalSize != 2048 {
		t.Fatalf("unexpected completed item %+v", item)
	}
	if item.Category != "music" || item.Client != "Hole" {
		t.Fatalf("expected client metadata on item, got %+v", item)
	}

	if err := hole.Remove(ctx, id, true); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("expected output removed, stat err %v", err)
	}
	if err := hole.Remove(ctx, id, false); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found on second remove, got %v", err)
	}
}

func TestBlackholeAddRejectsBadRequests(t *testing.T) {
	ctx := context.Background()
	torrentHole, _ := newBlackhole(t, config.ProtocolTorrent)
	usenetHole, cfg := newBlackhole(t, config.ProtocolUsenet)

	cases := []struct {
		name   string
		client *downloadclient.Blackhole
		req    indexer.DownloadRequest
	}{
		{"empty", torrentHole, indexer.DownloadRequest{}},
		{"garbage torrent", torrentHole, indexer.DownloadRequest{Payload: []byte("not bencode")}},
		{"nzb without payload", usenetHole, indexer.DownloadRequest{Link: "http://x/y.nzb"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.client.Add(ctx, remote("Artist - Album"), tc.req); !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	if _, err := usenetHole.Add(ctx, remote("Artist - Album"), indexer.DownloadRequest{Payload: []byte("<nzb/>")}); err != nil {
		t.Fatalf("Add nzb failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.WatchDir, "Artist - Album.nzb")); err != nil {
		t.Fatalf("expected nzb in watch dir: %v", err)
	}
}

func TestBlackholeWritesMagnets(t *testing.T) {
	hole, cfg := newBlackhole(t, config.ProtocolTorrent)
	_, hash := torrentPayload(t)
	magnet := "magnet:?xt=urn:btih:" + hash
	if _, err := hole.Add(context.Background(), remote("Artist - Album"), indexer.DownloadRequest{Magnet: magnet}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(cfg.WatchDir, "Artist - Album.magnet"))
	if err != nil {
		t.Fatalf("read magnet: %v", err)
	}
	if strings.TrimSpace(string(data)) != magnet {
		t.Fatalf("unexpected magnet file %q", data)
	}
}

func TestFromConfigSkipsDisabled(t *testing.T) {
	clients, err := downloadclient.FromConfig([]config.DownloadClient{
		{Name: "on", Kind: config.DownloadClientBlackhole, Protocol: config.ProtocolTorrent, Enabled: true},
		{Name: "off", Kind: config.DownloadClientBlackhole, Protocol: config.ProtocolUsenet},
	}, nil)
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}
	if len(clients) != 1 || clients[0].Name() != "on" || clients[0].Protocol() != indexer.ProtocolTorrent {
		t.Fatalf("unexpected clients %+v", clients)
	}
}
