package manifest

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/artemvlas/veretino-sub000/internal/vt"
)

// denyFs refuses writes beneath prefix and can fail renames, to simulate
// read-only folders and crashes between writing and replacing a file.
type denyFs struct {
	afero.Fs
	prefix     string
	failRename bool
}

func (d *denyFs) denied(name string) bool {
	return d.prefix != "" && strings.HasPrefix(name, d.prefix)
}

func (d *denyFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE) != 0 && d.denied(name) {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrPermission}
	}
	return d.Fs.OpenFile(name, flag, perm)
}

func (d *denyFs) Create(name string) (afero.File, error) {
	if d.denied(name) {
		return nil, &os.PathError{Op: "create", Path: name, Err: os.ErrPermission}
	}
	return d.Fs.Create(name)
}

func (d *denyFs) Rename(oldname, newname string) error {
	if d.failRename || d.denied(newname) {
		return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: os.ErrPermission}
	}
	return d.Fs.Rename(oldname, newname)
}

func storeDocument(comment string) *vt.Document {
	doc := sampleDocument()
	doc.Meta.WorkDir = ""
	doc.Meta.DbPath = "/data/data.ver.json"
	doc.Meta.Comment = comment
	return doc
}

func TestStore_SaveLoad(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		t.Parallel()
		afs := afero.NewMemMapFs()
		s := NewStore(afs, StoreOptions{Origin: "Veretino test", Backup: true})

		got, err := s.Save("/data/data.ver.json", storeDocument("one"))
		if err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if got != "/data/data.ver.json" {
			t.Errorf("Save() = %q", got)
		}
		doc, err := s.Load("/data/data.ver.json")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if doc.Meta.Comment != "one" || doc.Meta.DbPath != "/data/data.ver.json" || len(doc.Entries) != 3 {
			t.Errorf("loaded = %+v", doc)
		}
		if doc.Meta.WorkingDir() != "/data" {
			t.Errorf("WorkingDir() = %q", doc.Meta.WorkingDir())
		}
		if exists, _ := afero.Exists(afs, "/data/data.ver.json.bak"); exists {
			t.Error("first save created a backup")
		}
	})

	t.Run("compressed name writes an archive", func(t *testing.T) {
		t.Parallel()
		afs := afero.NewMemMapFs()
		s := NewStore(afs, StoreOptions{})
		if _, err := s.Save("/data/data.ver", storeDocument("zip")); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		raw, _ := afero.ReadFile(afs, "/data/data.ver")
		if !bytes.HasPrefix(raw, zipMagic) {
			t.Error("compressed database is not an archive")
		}
		doc, err := s.Load("/data/data.ver")
		if err != nil || doc.Meta.Comment != "zip" {
			t.Errorf("Load() = %+v, %v", doc, err)
		}
	})

	t.Run("load errors carry the path", func(t *testing.T) {
		t.Parallel()
		afs := afero.NewMemMapFs()
		afero.WriteFile(afs, "/data/bad.ver.json", []byte("{nope"), 0o644)
		s := NewStore(afs, StoreOptions{})

		_, err := s.Load("/data/missing.ver.json")
		if !errors.Is(err, vt.ErrNotFound) || vt.ErrorPath(err) != "/data/missing.ver.json" {
			t.Errorf("Load(missing) error = %v", err)
		}
		_, err = s.Load("/data/bad.ver.json")
		if !errors.Is(err, vt.ErrCorruptDatabase) || vt.ErrorPath(err) != "/data/bad.ver.json" {
			t.Errorf("Load(bad) error = %v", err)
		}
	})
}

func TestStore_BackupAndRestore(t *testing.T) {
	t.Parallel()
	afs := afero.NewMemMapFs()
	s := NewStore(afs, StoreOptions{Backup: true})
	const path = "/data/data.ver.json"

	if _, err := s.Save(path, storeDocument("first")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := s.Save(path, storeDocument("second")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	bak, err := s.Load(path + vt.BackupSuffix)
	if err != nil {
		t.Fatalf("Load(backup) error = %v", err)
	}
	if bak.Meta.Comment != "first" {
		t.Errorf("backup comment = %q, want first", bak.Meta.Comment)
	}

	if err := s.Restore(path); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	doc, _ := s.Load(path)
	if doc.Meta.Comment != "first" {
		t.Errorf("restored comment = %q, want first", doc.Meta.Comment)
	}
	if err := s.Restore(path); !errors.Is(err, vt.ErrNotFound) {
		t.Errorf("second Restore() error = %v, want ErrNotFound", err)
	}
}

func TestStore_Fallback(t *testing.T) {
	t.Run("read-only folder saves to the fallback", func(t *testing.T) {
		t.Parallel()
		afs := &denyFs{Fs: afero.NewMemMapFs(), prefix: "/data/"}
		s := NewStore(afs, StoreOptions{FallbackDir: "/home/u/.veretino/saved"})

		got, err := s.Save("/data/data.ver.json", storeDocument("fb"))
		if err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if got != "/home/u/.veretino/saved/data.ver.json" {
			t.Errorf("Save() = %q", got)
		}
		doc, err := s.Load(got)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if doc.Meta.WorkingDir() != "/data" {
			t.Errorf("fallback copy resolves to %q, want /data", doc.Meta.WorkingDir())
		}
	})

	t.Run("no fallback fails", func(t *testing.T) {
		t.Parallel()
		afs := &denyFs{Fs: afero.NewMemMapFs(), prefix: "/data/"}
		s := NewStore(afs, StoreOptions{})

		_, err := s.Save("/data/data.ver.json", storeDocument("x"))
		if !errors.Is(err, vt.ErrSaveFailed) {
			t.Errorf("Save() error = %v, want ErrSaveFailed", err)
		}
	})

	t.Run("every target refused", func(t *testing.T) {
		t.Parallel()
		afs := &denyFs{Fs: afero.NewMemMapFs(), prefix: "/"}
		s := NewStore(afs, StoreOptions{FallbackDir: "/fallback"})

		_, err := s.Save("/data/data.ver.json", storeDocument("x"))
		if !errors.Is(err, vt.ErrSaveFailed) {
			t.Errorf("Save() error = %v, want ErrSaveFailed", err)
		}
	})
}

// A failure after the temp file is written but before it replaces the
// primary must leave the primary intact and no temp file behind.
func TestStore_InterruptedSaveKeepsPrimary(t *testing.T) {
	t.Parallel()
	mem := afero.NewMemMapFs()
	afs := &denyFs{Fs: mem}
	s := NewStore(afs, StoreOptions{Backup: true})
	const path = "/data/data.ver.json"

	if _, err := s.Save(path, storeDocument("good")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	before, _ := afero.ReadFile(mem, path)

	afs.failRename = true
	if _, err := s.Save(path, storeDocument("lost")); !errors.Is(err, vt.ErrSaveFailed) {
		t.Fatalf("Save() error = %v, want ErrSaveFailed", err)
	}

	after, _ := afero.ReadFile(mem, path)
	if !bytes.Equal(before, after) {
		t.Error("primary changed by a failed save")
	}
	entries, _ := afero.ReadDir(mem, "/data")
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("temp file %s left behind", e.Name())
		}
	}
	// The backup, if one was taken, is a complete earlier version.
	if bak, err := s.Load(path + vt.BackupSuffix); err == nil && bak.Meta.Comment != "good" {
		t.Errorf("backup comment = %q", bak.Meta.Comment)
	}
}
