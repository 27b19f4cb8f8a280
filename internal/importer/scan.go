package importer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"needle/internal/parser"
	"needle/internal/quality"
)

// PathTagReader reads track metadata from the file path and its folders. It
// stands in for an audio tag codec.
type PathTagReader struct{}

// ReadTags implements TagReader.
func (PathTagReader) ReadTags(_ context.Context, path string) (*parser.ParsedTrackInfo, error) {
	info := parser.ParseMusicPath(path)
	if info == nil {
		return nil, fmt.Errorf("no track information in %q", filepath.Base(path))
	}
	return info, nil
}

// ScanAudioFiles lists audio files under root in lexical order. A root that
// is itself an audio file is returned alone. Hidden entries are skipped.
func ScanAudioFiles(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if quality.IsAudioFile(root) {
			return []string{root}, nil
		}
		return nil, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && quality.IsAudioFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	return files, nil
}
