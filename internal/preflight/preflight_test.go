package preflight

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"needle/internal/config"
)

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		name string
		path string
		pass bool
	}{
		{"existing dir", dir, true},
		{"missing dir", filepath.Join(dir, "nope"), false},
		{"file instead of dir", file, false},
		{"unset", "", false},
	}
	for _, tc := range cases {
		result := CheckDirectoryAccess("test", tc.path)
		if result.Passed != tc.pass || result.Detail == "" {
			t.Fatalf("%s: got %+v", tc.name, result)
		}
	}
}

func TestCheckFileReadable(t *testing.T) {
	dir := t.TempDir()
	feed := filepath.Join(dir, "feed.json")
	if err := os.WriteFile(feed, []byte(`{"releases":[]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckFileReadable("feed", feed); !result.Passed {
		t.Fatalf("expected pass, got %s", result.Detail)
	}
	if result := CheckFileReadable("feed", dir); result.Passed {
		t.Fatal("expected failure for a directory")
	}
	if result := CheckFileReadable("feed", filepath.Join(dir, "missing.json")); result.Passed {
		t.Fatal("expected failure for a missing file")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckFreeSpace("space", dir, 1); !result.Passed {
		t.Fatalf("expected one byte to be available, got %s", result.Detail)
	}
	if result := CheckFreeSpace("space", dir, 1<<62); result.Passed {
		t.Fatal("expected an impossible floor to fail")
	}
}

func TestRunAllCoversConfiguredFolders(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.LibraryDir = filepath.Join(base, "library")
	cfg.Import.SkipFreeSpaceCheck = true
	cfg.Indexers = []config.Indexer{
		{Name: "feed", Path: filepath.Join(base, "feed.json"), Enabled: true},
		{Name: "off", Path: filepath.Join(base, "off.json")},
	}
	cfg.DownloadClients = []config.DownloadClient{{
		Name: "hole", WatchDir: filepath.Join(base, "watch"), CompletedDir: filepath.Join(base, "done"), Enabled: true,
	}}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	results := RunAll(context.Background(), &cfg)
	if len(results) != 6 {
		t.Fatalf("expected six checks, got %d: %+v", len(results), results)
	}
	failed := Failed(results)
	names := make(map[string]bool)
	for _, r := range failed {
		names[r.Name] = true
	}
	if !names["Indexer feed feed"] || names["Library directory"] {
		t.Fatalf("unexpected failures %+v", failed)
	}
}
