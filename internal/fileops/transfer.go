package fileops

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/zeebo/blake3"
)

// Mode selects how a file reaches the library.
type Mode string

const (
	ModeMove Mode = "move"
	ModeCopy Mode = "copy"
)

// ErrDestinationExists is returned when Transfer would overwrite a file.
var ErrDestinationExists = errors.New("destination already exists")

// Options tunes transfers.
type Options struct {
	Verify bool
}

// Transfer moves or copies src to dst, creating parent directories. Moves
// across devices fall back to a verified copy followed by removal of src.
func Transfer(ctx context.Context, src, dst string, mode Mode, opts Options) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("%s: %w", dst, ErrDestinationExists)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create destination folder: %w", err)
	}

	switch mode {
	case ModeMove:
		err := os.Rename(src, dst)
		if err == nil {
			return nil
		}
		var linkErr *os.LinkError
		if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
			return fmt.Errorf("move: %w", err)
		}
		if err := CopyVerified(src, dst); err != nil {
			return fmt.Errorf("cross-device copy: %w", err)
		}
		if err := os.Remove(src); err != nil {
			return fmt.Errorf("remove source after copy: %w", err)
		}
		return nil
	case ModeCopy:
		if opts.Verify {
			return CopyVerified(src, dst)
		}
		return Copy(src, dst)
	default:
		return fmt.Errorf("unsupported transfer mode %q", mode)
	}
}

// Copy streams src to dst, keeping the source permissions.
func Copy(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, info.Mode().Perm()|0o200)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}

// CopyVerified streams src to dst hashing both sides with BLAKE3 and checking
// the size. dst is removed on mismatch.
func CopyVerified(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, srcInfo.Mode().Perm()|0o200)
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
	}()

	srcHasher := blake3.New()
	tee := io.TeeReader(in, srcHasher)
	written, err := io.Copy(out, tee)
	if err != nil {
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}
	if written != srcInfo.Size() {
		_ = os.Remove(dst)
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcInfo.Size(), written)
	}

	dstHash, err := HashFile(dst)
	if err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("hash copy: %w", err)
	}
	if hex.EncodeToString(srcHasher.Sum(nil)) != dstHash {
		_ = os.Remove(dst)
		return errors.New("copy hash mismatch: file corrupted during copy")
	}
	return nil
}

// HashFile returns the hex BLAKE3 digest of a file.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
