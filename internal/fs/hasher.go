package fs

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"

	"github.com/spf13/afero"

	"github.com/artemvlas/veretino-sub000/internal/vt"
)

// DefaultChunkSize bounds both memory use and cancellation latency of Hash.
const DefaultChunkSize = 1 << 20

// Hasher streams files from an afero filesystem through a digest.
type Hasher struct {
	fs        afero.Fs
	chunkSize int
}

// NewHasher creates a Hasher reading chunkSize bytes at a time. A chunkSize
// of zero or less selects DefaultChunkSize.
func NewHasher(afs afero.Fs, chunkSize int) *Hasher {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Hasher{fs: afs, chunkSize: chunkSize}
}

// Hash implements vt.Hasher. Cancellation is checked before every chunk.
// A file that ends before the size it had when opened is a read error.
func (h *Hasher) Hash(ctx context.Context, path string, alg vt.Algorithm, progress func(int64)) (string, error) {
	digest, err := alg.New()
	if err != nil {
		return "", err
	}

	f, err := h.fs.Open(path)
	if err != nil {
		return "", mapError("open", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", mapError("stat", path, err)
	}
	if info.IsDir() {
		return "", vt.NewPathError("open", path, fmt.Errorf("is a folder: %w", vt.ErrReadError))
	}
	want := info.Size()

	buf := make([]byte, h.chunkSize)
	var total int64
	for {
		if ctx.Err() != nil {
			return "", vt.NewPathError("hash", path, vt.ErrCanceled)
		}
		n, err := f.Read(buf)
		if n > 0 {
			digest.Write(buf[:n])
			total += int64(n)
			if progress != nil {
				progress(int64(n))
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", vt.NewPathError("read", path, fmt.Errorf("%w: %v", vt.ErrReadError, err))
		}
	}
	if total < want {
		return "", vt.NewPathError("read", path,
			fmt.Errorf("%w: got %d of %d bytes", vt.ErrReadError, total, want))
	}
	return hex.EncodeToString(digest.Sum(nil)), nil
}

// mapError translates filesystem errors to the engine's error kinds.
func mapError(op, path string, err error) error {
	switch {
	case errors.Is(err, iofs.ErrNotExist):
		return vt.NewPathError(op, path, vt.ErrNotFound)
	case errors.Is(err, iofs.ErrPermission):
		return vt.NewPathError(op, path, vt.ErrPermissionDenied)
	default:
		return vt.NewPathError(op, path, fmt.Errorf("%w: %v", vt.ErrReadError, err))
	}
}

var _ vt.Hasher = (*Hasher)(nil)
