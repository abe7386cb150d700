package vt

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"strings"
)

// Algorithm identifies a digest function.
type Algorithm int

const (
	AlgorithmUnknown Algorithm = iota
	SHA1
	SHA256
	SHA512
)

// DefaultAlgorithm is used when nothing else is configured.
const DefaultAlgorithm = SHA256

func (a Algorithm) String() string {
	switch a {
	case SHA1:
		return "SHA-1"
	case SHA256:
		return "SHA-256"
	case SHA512:
		return "SHA-512"
	default:
		return "unknown"
	}
}

// Ext is the digest-file extension for the algorithm, with the leading dot.
func (a Algorithm) Ext() string {
	switch a {
	case SHA1:
		return ".sha1"
	case SHA256:
		return ".sha256"
	case SHA512:
		return ".sha512"
	default:
		return ""
	}
}

// HexLen is the length of a hex-encoded digest.
func (a Algorithm) HexLen() int {
	switch a {
	case SHA1:
		return 40
	case SHA256:
		return 64
	case SHA512:
		return 128
	default:
		return 0
	}
}

// New returns a fresh hash state.
func (a Algorithm) New() (hash.Hash, error) {
	switch a {
	case SHA1:
		return sha1.New(), nil
	case SHA256:
		return sha256.New(), nil
	case SHA512:
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("unsupported algorithm: %d", int(a))
	}
}

// ParseAlgorithm accepts "sha256", "SHA-256", "SHA256" and the like.
func ParseAlgorithm(s string) (Algorithm, error) {
	norm := strings.ToLower(strings.NewReplacer("-", "", "_", "", " ", "").Replace(s))
	switch norm {
	case "sha1":
		return SHA1, nil
	case "sha256", "":
		return SHA256, nil
	case "sha512":
		return SHA512, nil
	default:
		return AlgorithmUnknown, fmt.Errorf("unknown algorithm: %q", s)
	}
}

// AlgorithmFromHexLen infers the algorithm from the length of a hex digest.
func AlgorithmFromHexLen(n int) (Algorithm, bool) {
	switch n {
	case 40:
		return SHA1, true
	case 64:
		return SHA256, true
	case 128:
		return SHA512, true
	default:
		return AlgorithmUnknown, false
	}
}

// AlgorithmFromExt maps a digest-file extension (".sha256") to its algorithm.
func AlgorithmFromExt(ext string) (Algorithm, bool) {
	switch strings.ToLower(ext) {
	case ".sha1":
		return SHA1, true
	case ".sha256":
		return SHA256, true
	case ".sha512":
		return SHA512, true
	default:
		return AlgorithmUnknown, false
	}
}
