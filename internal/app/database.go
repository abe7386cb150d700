package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/artemvlas/veretino-sub000/internal/vt"
)

// BuildOptions override the configured defaults for a new database.
type BuildOptions struct {
	DbPath     string // defaults to <root>/<folder>.ver.json (or .ver when compressed)
	Algorithm  string
	Filter     *vt.FilterRule
	Comment    string
	Compressed bool
}

// UpdateMode selects which side of an update runs.
type UpdateMode int

const (
	UpdateAll UpdateMode = iota
	UpdateAddNew
	UpdateClearLost
)

// StatusReport describes a loaded database without changing it.
type StatusReport struct {
	Meta    vt.Metadata
	Numbers *vt.Numbers
}

// Build creates a database for the folder root.
func (a *VeretinoApp) Build(ctx context.Context, root string, o BuildOptions) (vt.Summary, error) {
	p := vt.BuildParams{
		Root:      root,
		DbPath:    o.DbPath,
		Algorithm: a.algorithm,
		Filter:    a.filter,
		Comment:   o.Comment,
	}
	if o.Algorithm != "" {
		alg, err := vt.ParseAlgorithm(o.Algorithm)
		if err != nil {
			return vt.Summary{Operation: "build"}, err
		}
		p.Algorithm = alg
	}
	if o.Filter != nil {
		p.Filter = *o.Filter
	}
	if p.DbPath == "" {
		abs, err := filepath.Abs(root)
		if err != nil {
			return vt.Summary{Operation: "build"}, fmt.Errorf("resolving root: %w", err)
		}
		ext := vt.DatabaseExt
		if o.Compressed || a.cfg.Save.Compressed {
			ext = vt.DatabaseShortExt
		}
		p.DbPath = filepath.Join(abs, filepath.Base(abs)+ext)
	}

	return a.record("build", p.DbPath, func() (vt.Summary, error) {
		sum, err := a.session.BuildDatabase(ctx, p)
		if err == nil {
			a.afterSave(ctx, sum.SavedTo)
		}
		return sum, err
	})
}

// Open loads dbPath and reconciles it with its working folder.
func (a *VeretinoApp) Open(ctx context.Context, dbPath string) error {
	return a.session.OpenDatabase(ctx, dbPath)
}

// Status loads dbPath and reports its header and per-status numbers.
func (a *VeretinoApp) Status(ctx context.Context, dbPath string) (*StatusReport, error) {
	if err := a.Open(ctx, dbPath); err != nil {
		return nil, err
	}
	meta, _ := a.session.Metadata()
	return &StatusReport{Meta: meta, Numbers: a.session.Numbers()}, nil
}

// Items loads dbPath and lists the records of class c below scope.
func (a *VeretinoApp) Items(ctx context.Context, dbPath, scope string, c vt.Class) ([]vt.FileRecord, error) {
	if err := a.Open(ctx, dbPath); err != nil {
		return nil, err
	}
	return a.session.Items(a.scope(scope), c)
}

// Verify checks the files below scope (the whole database when empty).
func (a *VeretinoApp) Verify(ctx context.Context, dbPath, scope string) (vt.Summary, error) {
	return a.record("verify", dbPath, func() (vt.Summary, error) {
		if err := a.Open(ctx, dbPath); err != nil {
			return vt.Summary{}, err
		}
		sum, err := a.session.Verify(ctx, a.scope(scope))
		if err == nil {
			a.afterSave(ctx, sum.SavedTo)
		}
		return sum, err
	})
}

// Update adds new files and drops missing ones according to mode.
func (a *VeretinoApp) Update(ctx context.Context, dbPath string, mode UpdateMode) (vt.Summary, error) {
	name := map[UpdateMode]string{UpdateAll: "update", UpdateAddNew: "add-new", UpdateClearLost: "clear-lost"}[mode]
	return a.record(name, dbPath, func() (vt.Summary, error) {
		if err := a.Open(ctx, dbPath); err != nil {
			return vt.Summary{}, err
		}
		var (
			sum vt.Summary
			err error
		)
		switch mode {
		case UpdateAddNew:
			sum, err = a.session.AddNew(ctx)
		case UpdateClearLost:
			sum, err = a.session.ClearLost(ctx)
		default:
			sum, err = a.session.UpdateNewLost(ctx)
		}
		if err == nil {
			a.afterSave(ctx, sum.SavedTo)
		}
		return sum, err
	})
}

// UpdateMismatched verifies dbPath and replaces the stored checksums of
// mismatched files with the recomputed ones.
func (a *VeretinoApp) UpdateMismatched(ctx context.Context, dbPath string) (vt.Summary, error) {
	return a.record("update-mismatched", dbPath, func() (vt.Summary, error) {
		if err := a.Open(ctx, dbPath); err != nil {
			return vt.Summary{}, err
		}
		verified, err := a.session.Verify(ctx, "")
		if err != nil || verified.Canceled {
			return verified, err
		}
		sum, err := a.session.UpdateMismatched(ctx)
		if err == nil {
			a.afterSave(ctx, sum.SavedTo)
		}
		return sum, err
	})
}

// Undo restores the backup taken by the last save of dbPath. A database
// that no longer loads is restored in place.
func (a *VeretinoApp) Undo(ctx context.Context, dbPath string) (vt.Summary, error) {
	return a.record("undo", dbPath, func() (vt.Summary, error) {
		err := a.Open(ctx, dbPath)
		switch {
		case err == nil:
			err = a.session.Undo(ctx)
		case errors.Is(err, vt.ErrCorruptDatabase), errors.Is(err, vt.ErrEmptyDatabase):
			abs, aerr := filepath.Abs(dbPath)
			if aerr != nil {
				return vt.Summary{}, aerr
			}
			if err = a.store.Restore(abs); err == nil {
				err = a.Open(ctx, abs)
			}
		}
		if err != nil {
			return vt.Summary{}, err
		}
		meta, _ := a.session.Metadata()
		a.afterSave(ctx, meta.DbPath)
		return vt.Summary{SavedTo: meta.DbPath}, nil
	})
}

// scope turns a path given on the command line into one relative to the
// working folder of the loaded database.
func (a *VeretinoApp) scope(p string) string {
	if p == "" || !filepath.IsAbs(p) {
		return filepath.ToSlash(p)
	}
	meta, ok := a.session.Metadata()
	if !ok {
		return p
	}
	rel, err := filepath.Rel(meta.WorkingDir(), p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(p)
	}
	if rel == "." {
		return ""
	}
	return filepath.ToSlash(rel)
}

// ResolveDatabase turns a command-line argument into a database path. A
// folder is searched for a database named after it, or else for its only
// database file.
func (a *VeretinoApp) ResolveDatabase(arg string) (string, error) {
	if arg == "" {
		arg = "."
	}
	abs, err := filepath.Abs(arg)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	info, err := a.fs.Stat(abs)
	if err != nil {
		return "", vt.NewPathError("open", abs, vt.ErrNotFound)
	}
	if !info.IsDir() {
		return abs, nil
	}

	entries, err := afero.ReadDir(a.fs, abs)
	if err != nil {
		return "", vt.NewPathError("open", abs, err)
	}
	var found []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasSuffix(name, vt.BackupSuffix) || !vt.IsDatabaseFile(name) {
			continue
		}
		base := filepath.Base(abs)
		if name == base+vt.DatabaseExt || name == base+vt.DatabaseShortExt {
			return filepath.Join(abs, name), nil
		}
		found = append(found, name)
	}
	switch len(found) {
	case 0:
		return "", vt.NewPathError("open", abs, fmt.Errorf("%w: no database in folder", vt.ErrNotFound))
	case 1:
		return filepath.Join(abs, found[0]), nil
	default:
		return "", fmt.Errorf("%s holds several databases (%s): name one", abs, strings.Join(found, ", "))
	}
}
