package fileops

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const backupSuffix = ".needle-backup"

// ReplaceSafely transfers src onto dst. An existing dst is set aside first and
// restored if the transfer fails.
func ReplaceSafely(ctx context.Context, src, dst string, mode Mode, opts Options) error {
	backup := ""
	if _, err := os.Lstat(dst); err == nil {
		backup = dst + backupSuffix
		_ = os.Remove(backup)
		if err := os.Rename(dst, backup); err != nil {
			return fmt.Errorf("set aside existing file: %w", err)
		}
	}
	if err := Transfer(ctx, src, dst, mode, opts); err != nil {
		if backup != "" {
			_ = os.Remove(dst)
			if restoreErr := os.Rename(backup, dst); restoreErr != nil {
				return errors.Join(err, fmt.Errorf("restore %s: %w", dst, restoreErr))
			}
		}
		return err
	}
	if backup != "" {
		if err := os.Remove(backup); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove backup: %w", err)
		}
	}
	return nil
}

// Recycle removes path, moving it into recycleBin when one is configured. It
// returns where the file went, or "" when it was deleted.
func Recycle(path, recycleBin string, now time.Time) (string, error) {
	if strings.TrimSpace(recycleBin) == "" {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		return "", nil
	}
	if err := os.MkdirAll(recycleBin, 0o755); err != nil {
		return "", fmt.Errorf("create recycle bin: %w", err)
	}
	target, err := nextFreePath(recycleBin, filepath.Base(path), now)
	if err != nil {
		return "", err
	}
	if err := Transfer(context.Background(), path, target, ModeMove, Options{Verify: true}); err != nil {
		return "", fmt.Errorf("recycle %s: %w", path, err)
	}
	return target, nil
}

func nextFreePath(dir, name string, now time.Time) (string, error) {
	const maxAttempts = 1000
	candidate := filepath.Join(dir, name)
	if _, err := os.Lstat(candidate); errors.Is(err, fs.ErrNotExist) {
		return candidate, nil
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	stamp := now.UTC().Format("20060102T150405")
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s.%s-%d%s", stem, stamp, attempt, ext))
		if _, err := os.Lstat(candidate); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return candidate, nil
			}
			return "", err
		}
	}
	return "", fmt.Errorf("exhausted recycle filename slots in %s", dir)
}

// DeleteEmptyFolders removes empty directories below root, deepest first, and
// root itself when it ends up empty. It returns the removed directories.
func DeleteEmptyFolders(root string) ([]string, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, nil
	}
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	var removed []string
	for i := len(dirs) - 1; i >= 0; i-- {
		entries, err := os.ReadDir(dirs[i])
		if err != nil || len(entries) > 0 {
			continue
		}
		if err := os.Remove(dirs[i]); err == nil {
			removed = append(removed, dirs[i])
		}
	}
	return removed, nil
}
