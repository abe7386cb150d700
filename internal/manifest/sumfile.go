package manifest

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/artemvlas/veretino-sub000/internal/vt"
)

// Digest is the content of a single-file digest summary.
type Digest struct {
	Checksum  string
	Name      string // file name the checksum belongs to
	Algorithm vt.Algorithm
}

// DigestFiles reads and writes "<hex> *<name>" digest summaries next to the
// files they describe. The extension names the algorithm.
type DigestFiles struct {
	fs afero.Fs
}

// NewDigestFiles creates a DigestFiles over afs.
func NewDigestFiles(afs afero.Fs) *DigestFiles {
	return &DigestFiles{fs: afs}
}

// DigestPath is where the digest summary of file for alg lives.
func DigestPath(file string, alg vt.Algorithm) string {
	return file + alg.Ext()
}

// Write stores the digest of file and returns the summary path.
func (d *DigestFiles) Write(file string, alg vt.Algorithm, checksum string) (string, error) {
	if len(checksum) != alg.HexLen() {
		return "", fmt.Errorf("%s checksum must have %d characters, got %d", alg, alg.HexLen(), len(checksum))
	}
	out := DigestPath(file, alg)
	line := fmt.Sprintf("%s *%s\n", strings.ToLower(checksum), filepath.Base(file))
	if err := afero.WriteFile(d.fs, out, []byte(line), 0o644); err != nil {
		return "", vt.NewPathError("write", out, err)
	}
	return out, nil
}

// Read parses the digest summary at path. The algorithm comes from the
// extension, or from the checksum length when the extension is unknown.
func (d *DigestFiles) Read(path string) (Digest, error) {
	data, err := afero.ReadFile(d.fs, path)
	if err != nil {
		return Digest{}, mapError("read", path, err)
	}
	dg, err := ParseDigest(data)
	if err != nil {
		return Digest{}, vt.NewPathError("read", path, err)
	}
	if alg, ok := vt.AlgorithmFromExt(filepath.Ext(path)); ok {
		if len(dg.Checksum) != alg.HexLen() {
			return Digest{}, vt.NewPathError("read", path,
				fmt.Errorf("%w: %s checksum has %d characters", vt.ErrCorruptDatabase, alg, len(dg.Checksum)))
		}
		dg.Algorithm = alg
	}
	if dg.Name == "" {
		dg.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return dg, nil
}

// ReadDigest implements vt.DigestReader.
func (d *DigestFiles) ReadDigest(file string, alg vt.Algorithm) (string, bool, error) {
	dg, err := d.Read(DigestPath(file, alg))
	if errors.Is(err, vt.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if dg.Name != filepath.Base(file) {
		return "", false, nil
	}
	return dg.Checksum, true, nil
}

// ParseDigest reads the first non-empty line of a digest summary. Both the
// binary ("<hex> *<name>") and text ("<hex>  <name>") forms are accepted.
func ParseDigest(data []byte) (Digest, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sum, name, _ := strings.Cut(line, " ")
		name = strings.TrimPrefix(strings.TrimSpace(name), "*")
		alg, ok := vt.AlgorithmFromHexLen(len(sum))
		if !ok || !isHex(sum) {
			return Digest{}, fmt.Errorf("%w: %q is not a checksum", vt.ErrCorruptDatabase, sum)
		}
		return Digest{Checksum: strings.ToLower(sum), Name: name, Algorithm: alg}, nil
	}
	if err := sc.Err(); err != nil {
		return Digest{}, err
	}
	return Digest{}, fmt.Errorf("%w: no checksum line", vt.ErrEmptyDatabase)
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

var _ vt.DigestReader = (*DigestFiles)(nil)
