package app

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/artemvlas/veretino-sub000/internal/manifest"
	"github.com/artemvlas/veretino-sub000/internal/vt"
)

// SumResult is the outcome of checking one file against its digest summary.
type SumResult struct {
	File     string
	Expected string
	Actual   string
	Match    bool
}

// SumMake hashes file and writes its digest summary beside it. An empty
// algorithm selects the configured one.
func (a *VeretinoApp) SumMake(ctx context.Context, file, algorithm string) (string, error) {
	alg := a.algorithm
	if algorithm != "" {
		var err error
		if alg, err = vt.ParseAlgorithm(algorithm); err != nil {
			return "", err
		}
	}
	sum, err := a.hasher.Hash(ctx, file, alg, nil)
	if err != nil {
		return "", err
	}
	out, err := a.digests.Write(file, alg, sum)
	if err != nil {
		return "", err
	}
	a.logger.Info("digest written", "file", file, "algorithm", alg.String(), "path", out)
	return out, nil
}

// SumCheck verifies the file named by the digest summary at sumPath. The file
// is looked up beside the summary.
func (a *VeretinoApp) SumCheck(ctx context.Context, sumPath string) (*SumResult, error) {
	var res *SumResult
	_, err := a.record("sum-check", sumPath, func() (vt.Summary, error) {
		dg, err := a.digests.Read(sumPath)
		if err != nil {
			return vt.Summary{}, err
		}
		file := filepath.Join(filepath.Dir(sumPath), filepath.FromSlash(dg.Name))
		actual, err := a.hasher.Hash(ctx, file, dg.Algorithm, nil)
		if err != nil {
			return vt.Summary{}, err
		}
		res = &SumResult{File: file, Expected: dg.Checksum, Actual: actual, Match: actual == dg.Checksum}
		sum := vt.Summary{Queued: 1, Processed: 1}
		if res.Match {
			sum.Matched = 1
		} else {
			sum.Mismatched = 1
		}
		return sum, nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// SumPathFor is the digest summary path SumMake would write for file.
func (a *VeretinoApp) SumPathFor(file string) string {
	return manifest.DigestPath(file, a.algorithm)
}

func (r *SumResult) String() string {
	if r.Match {
		return fmt.Sprintf("%s: OK", r.File)
	}
	return fmt.Sprintf("%s: MISMATCH (expected %s, got %s)", r.File, r.Expected, r.Actual)
}
