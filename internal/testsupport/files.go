package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates path and its parent folders and fills it with size bytes.
// The content is seeded from the file name so two tracks of equal size still
// hash differently. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()
	size = max(size, 1)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}

	seed := []byte(filepath.Base(path))
	chunk := bytes.Repeat(seed, 32*1024/len(seed)+1)
	data := make([]byte, 0, size)
	for int64(len(data)) < size {
		data = append(data, chunk[:min(int64(len(chunk)), size-int64(len(data)))]...)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteTracks writes one file per name under dir and returns their paths.
func WriteTracks(t testing.TB, dir string, size int64, names ...string) []string {
	t.Helper()
	paths := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		WriteFile(t, path, size)
		paths = append(paths, path)
	}
	return paths
}
