package vt

import "context"

// ScannedFile is one candidate found under a working folder.
type ScannedFile struct {
	Path     string // relative, '/'-separated
	Size     int64
	ModTime  int64 // unix seconds
	Readable bool
}

// Scanner enumerates the files of a working folder.
type Scanner interface {
	// Scan walks root recursively and returns every file admitted by filter,
	// in walk order. Unreadable files are returned with Readable=false unless
	// filter.IgnoreUnreadable is set. On cancellation it returns ErrCanceled
	// and no partial result.
	Scan(ctx context.Context, root string, filter FilterRule) ([]ScannedFile, error)
}

// Hasher computes file digests.
type Hasher interface {
	// Hash streams the file at path through alg in fixed-size chunks and
	// returns the lowercase hex digest. progress, if not nil, receives the
	// byte count of every chunk. Errors wrap ErrNotFound, ErrPermissionDenied,
	// ErrReadError or ErrCanceled.
	Hash(ctx context.Context, path string, alg Algorithm, progress func(n int64)) (string, error)
}

// DigestReader reads single-file digest summaries.
type DigestReader interface {
	// ReadDigest returns the checksum recorded for the file at path in its
	// sibling digest file for alg. ok is false when there is no such file.
	ReadDigest(path string, alg Algorithm) (checksum string, ok bool, err error)
}
