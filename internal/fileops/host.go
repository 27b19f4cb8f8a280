package fileops

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// ErrForeignPath marks a path shaped for another operating system.
var ErrForeignPath = errors.New("path is not valid on this host")

var windowsPath = regexp.MustCompile(`^(?:[A-Za-z]:[\\/]|\\\\)`)

// CheckPathShape rejects paths this host cannot use, such as a Windows drive
// or UNC path reported by a download client to a POSIX host.
func CheckPathShape(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("empty path: %w", ErrForeignPath)
	}
	if windowsPath.MatchString(path) {
		return fmt.Errorf("%q looks like a Windows path: %w", path, ErrForeignPath)
	}
	if !filepath.IsAbs(path) {
		return fmt.Errorf("%q is not absolute: %w", path, ErrForeignPath)
	}
	return nil
}

// IsReadOnly reports whether files under path cannot be removed by this
// process, which forces copies instead of moves.
func IsReadOnly(path string) bool {
	dir := path
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		dir = filepath.Dir(path)
	}
	return unix.Access(dir, unix.W_OK) != nil
}

// FreeSpace returns the bytes available to unprivileged users on the
// filesystem holding path, walking up to the nearest existing ancestor.
func FreeSpace(path string) (uint64, error) {
	dir := filepath.Clean(path)
	for {
		if _, err := os.Stat(dir); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return 0, fmt.Errorf("no existing ancestor for %s", path)
		}
		dir = parent
	}
	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", dir, err)
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

var unavailableErrors = []error{
	syscall.ENOTCONN,
	syscall.EHOSTDOWN,
	syscall.EHOSTUNREACH,
	syscall.ETIMEDOUT,
	syscall.EIO,
	syscall.ESTALE,
}

// IsUnavailable reports whether err means the filesystem went away rather
// than that a single file is bad.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range unavailableErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
