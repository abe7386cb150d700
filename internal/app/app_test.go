package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/artemvlas/veretino-sub000/internal/config"
	"github.com/artemvlas/veretino-sub000/internal/history"
	"github.com/artemvlas/veretino-sub000/internal/testutil"
	"github.com/artemvlas/veretino-sub000/internal/vault"
	"github.com/artemvlas/veretino-sub000/internal/vt"
)

const (
	testRoot = "/data/photos"
	testDB   = "/data/photos/photos.ver.json"
)

func newTestApp(t *testing.T, mutate func(cfg *config.Config)) (*VeretinoApp, afero.Fs) {
	t.Helper()
	cfg := config.NewConfig("test-host", t.TempDir())
	cfg.LogDir = t.TempDir()
	cfg.History = config.HistoryConfig{Type: "memory"}
	cfg.Vaults = []config.VaultConfig{{Type: "memory", Name: "mem"}}
	cfg.Encryption = config.EncryptionConfig{Type: "test"}
	if mutate != nil {
		mutate(cfg)
	}

	afs := afero.NewMemMapFs()
	afero.WriteFile(afs, testRoot+"/a.jpg", []byte("alpha"), 0o644)
	afero.WriteFile(afs, testRoot+"/sub/b.jpg", []byte("bravo"), 0o644)

	a, err := NewVeretinoApp(context.Background(), cfg, Options{
		Fs:     afs,
		Stderr: io.Discard,
		Clock:  testutil.FixedClock(),
		IDs:    testutil.NewStubIDGenerator(),
	})
	if err != nil {
		t.Fatalf("NewVeretinoApp() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a, afs
}

func build(t *testing.T, a *VeretinoApp) vt.Summary {
	t.Helper()
	sum, err := a.Build(context.Background(), testRoot, BuildOptions{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return sum
}

func TestNewVeretinoApp(t *testing.T) {
	t.Run("rejects unknown algorithm", func(t *testing.T) {
		cfg := config.NewConfig("h", t.TempDir())
		cfg.LogDir = t.TempDir()
		cfg.History.Type = "none"
		cfg.Hashing.Algorithm = "md5"
		_, err := NewVeretinoApp(context.Background(), cfg, Options{Fs: afero.NewMemMapFs(), Stderr: io.Discard})
		if err == nil || !strings.Contains(err.Error(), "hashing.algorithm") {
			t.Errorf("NewVeretinoApp() error = %v, want hashing.algorithm error", err)
		}
	})

	t.Run("rejects unknown vault type", func(t *testing.T) {
		cfg := config.NewConfig("h", t.TempDir())
		cfg.LogDir = t.TempDir()
		cfg.History.Type = "none"
		cfg.Vaults = []config.VaultConfig{{Type: "tape", Name: "x"}}
		if _, err := NewVeretinoApp(context.Background(), cfg, Options{Fs: afero.NewMemMapFs(), Stderr: io.Discard}); err == nil {
			t.Error("NewVeretinoApp() expected error for unknown vault type")
		}
	})

	t.Run("uses stub id as operation id", func(t *testing.T) {
		a, _ := newTestApp(t, nil)
		if got := a.OperationID(); got != "id-1" {
			t.Errorf("OperationID() = %q, want %q", got, "id-1")
		}
	})
}

func TestVeretinoApp_BuildAndVerify(t *testing.T) {
	t.Parallel()
	a, afs := newTestApp(t, nil)

	sum := build(t, a)
	if sum.Added != 2 {
		t.Errorf("Build() added = %d, want 2", sum.Added)
	}
	if sum.SavedTo != testDB {
		t.Errorf("Build() saved to %q, want %q", sum.SavedTo, testDB)
	}
	if ok, _ := afero.Exists(afs, testDB); !ok {
		t.Fatal("database file was not written")
	}

	sum, err := a.Verify(context.Background(), testDB, "")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if sum.Matched != 2 || !sum.Verified {
		t.Errorf("Verify() = %+v, want 2 matched and verified", sum)
	}

	afero.WriteFile(afs, testRoot+"/a.jpg", []byte("tampered"), 0o644)
	sum, err = a.Verify(context.Background(), testDB, "")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if sum.Mismatched != 1 {
		t.Errorf("Verify() mismatched = %d, want 1", sum.Mismatched)
	}

	sum, err = a.UpdateMismatched(context.Background(), testDB)
	if err != nil {
		t.Fatalf("UpdateMismatched() error = %v", err)
	}
	if sum.Updated != 1 {
		t.Errorf("UpdateMismatched() updated = %d, want 1", sum.Updated)
	}

	ops, err := a.History(10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	want := []string{"update-mismatched", "verify", "verify", "build"}
	if len(ops) != len(want) {
		t.Fatalf("History() returned %d operations, want %d", len(ops), len(want))
	}
	for i, op := range ops {
		if op.Operation != want[i] {
			t.Errorf("ops[%d].Operation = %q, want %q", i, op.Operation, want[i])
		}
		if op.Status != history.StatusSuccess {
			t.Errorf("ops[%d].Status = %q, want %q", i, op.Status, history.StatusSuccess)
		}
	}
}

func TestVeretinoApp_VerifyScope(t *testing.T) {
	t.Parallel()
	a, _ := newTestApp(t, nil)
	build(t, a)

	sum, err := a.Verify(context.Background(), testDB, testRoot+"/sub")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if sum.Processed != 1 {
		t.Errorf("Verify() processed = %d, want 1", sum.Processed)
	}
	if sum.SavedTo != "" {
		t.Errorf("scoped Verify() saved to %q, want no save", sum.SavedTo)
	}
}

func TestVeretinoApp_Update(t *testing.T) {
	t.Parallel()

	t.Run("adds new and clears lost", func(t *testing.T) {
		a, afs := newTestApp(t, nil)
		build(t, a)
		afero.WriteFile(afs, testRoot+"/c.jpg", []byte("charlie"), 0o644)
		afs.Remove(testRoot + "/sub/b.jpg")

		sum, err := a.Update(context.Background(), testDB, UpdateAll)
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if sum.Added != 1 || sum.Removed != 1 {
			t.Errorf("Update() = %+v, want 1 added and 1 removed", sum)
		}
	})

	t.Run("add-new keeps missing records", func(t *testing.T) {
		a, afs := newTestApp(t, nil)
		build(t, a)
		afero.WriteFile(afs, testRoot+"/c.jpg", []byte("charlie"), 0o644)
		afs.Remove(testRoot + "/sub/b.jpg")

		sum, err := a.Update(context.Background(), testDB, UpdateAddNew)
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if sum.Operation != "add-new" || sum.Added != 1 || sum.Removed != 0 {
			t.Errorf("Update() = %+v, want add-new with 1 added", sum)
		}
		missing, err := a.Items(context.Background(), testDB, "", vt.Of(vt.StatusMissing))
		if err != nil {
			t.Fatalf("Items() error = %v", err)
		}
		if len(missing) != 1 || missing[0].Path != "sub/b.jpg" {
			t.Errorf("missing = %+v, want sub/b.jpg", missing)
		}
	})

	t.Run("reports moves", func(t *testing.T) {
		a, afs := newTestApp(t, nil)
		build(t, a)
		afs.Rename(testRoot+"/sub/b.jpg", testRoot+"/b-moved.jpg")

		sum, err := a.Update(context.Background(), testDB, UpdateAll)
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if len(sum.Moves) != 1 || sum.Moves[0] != (vt.Move{From: "sub/b.jpg", To: "b-moved.jpg"}) {
			t.Errorf("Update() moves = %+v", sum.Moves)
		}
		if sum.Moved != 1 || sum.Added != 0 || sum.Removed != 0 {
			t.Errorf("Update() = %+v, want one move and nothing added or removed", sum)
		}
	})
}

func TestVeretinoApp_Undo(t *testing.T) {
	t.Parallel()

	t.Run("restores the previous save", func(t *testing.T) {
		a, afs := newTestApp(t, nil)
		build(t, a)
		afero.WriteFile(afs, testRoot+"/c.jpg", []byte("charlie"), 0o644)
		if _, err := a.Update(context.Background(), testDB, UpdateAll); err != nil {
			t.Fatalf("Update() error = %v", err)
		}

		if _, err := a.Undo(context.Background(), testDB); err != nil {
			t.Fatalf("Undo() error = %v", err)
		}
		newFiles, err := a.Session().Items("", vt.Of(vt.StatusNew))
		if err != nil {
			t.Fatalf("Items() error = %v", err)
		}
		if len(newFiles) != 1 || newFiles[0].Path != "c.jpg" {
			t.Errorf("new files after undo = %+v, want c.jpg", newFiles)
		}
	})

	t.Run("restores a corrupt database", func(t *testing.T) {
		a, afs := newTestApp(t, nil)
		build(t, a)
		afero.WriteFile(afs, testRoot+"/c.jpg", []byte("charlie"), 0o644)
		if _, err := a.Update(context.Background(), testDB, UpdateAll); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		afero.WriteFile(afs, testDB, []byte("{not json"), 0o644)

		if _, err := a.Undo(context.Background(), testDB); err != nil {
			t.Fatalf("Undo() error = %v", err)
		}
		if n := a.Session().Numbers().Query(vt.ClassHasChecksum).Count; n != 2 {
			t.Errorf("records with checksum = %d, want 2", n)
		}
	})

	t.Run("fails without backup", func(t *testing.T) {
		a, _ := newTestApp(t, nil)
		build(t, a)
		_, err := a.Undo(context.Background(), testDB)
		if !errors.Is(err, vt.ErrNotFound) {
			t.Errorf("Undo() error = %v, want ErrNotFound", err)
		}
	})
}

func TestVeretinoApp_Vault(t *testing.T) {
	t.Parallel()
	pass := func() (string, error) { return "secret", nil }

	t.Run("build pushes an encrypted snapshot", func(t *testing.T) {
		a, _ := newTestApp(t, nil)
		build(t, a)

		name := vault.SnapshotName("test-host", testDB)
		v := a.vaults[0].vault
		version, err := v.SnapshotVersion(name)
		if err != nil {
			t.Fatalf("SnapshotVersion() error = %v", err)
		}
		if want := testutil.FixedClock().Now().Unix(); version != want {
			t.Errorf("SnapshotVersion() = %d, want %d", version, want)
		}
		var buf bytes.Buffer
		if err := v.GetSnapshot(name, &buf); err != nil {
			t.Fatalf("GetSnapshot() error = %v", err)
		}
		if !bytes.HasPrefix(buf.Bytes(), []byte("VTENC")) {
			t.Error("snapshot is not encrypted")
		}
	})

	t.Run("pull restores a deleted database", func(t *testing.T) {
		a, afs := newTestApp(t, nil)
		build(t, a)
		afs.Remove(testDB)

		sum, err := a.Pull(context.Background(), testDB, PullOptions{Passphrase: pass})
		if err != nil {
			t.Fatalf("Pull() error = %v", err)
		}
		if sum.SavedTo != testDB {
			t.Errorf("Pull() saved to %q, want %q", sum.SavedTo, testDB)
		}
		if n := a.Session().Numbers().Query(vt.ClassHasChecksum).Count; n != 2 {
			t.Errorf("records with checksum = %d, want 2", n)
		}
	})

	t.Run("pull requires a passphrase for encrypted snapshots", func(t *testing.T) {
		a, _ := newTestApp(t, nil)
		build(t, a)
		if _, err := a.Pull(context.Background(), testDB, PullOptions{}); err == nil {
			t.Error("Pull() expected error without passphrase")
		}
	})

	t.Run("pull from unknown vault fails", func(t *testing.T) {
		a, _ := newTestApp(t, nil)
		build(t, a)
		if _, err := a.Pull(context.Background(), testDB, PullOptions{Vault: "nope", Passphrase: pass}); err == nil {
			t.Error("Pull() expected error for unknown vault")
		}
	})

	t.Run("push refuses to overwrite a newer snapshot", func(t *testing.T) {
		a, _ := newTestApp(t, nil)
		build(t, a)
		name := vault.SnapshotName("test-host", testDB)
		newer := []byte("newer")
		if err := a.vaults[0].vault.PutSnapshot(name, bytes.NewReader(newer), int64(len(newer)), 1<<40); err != nil {
			t.Fatalf("PutSnapshot() error = %v", err)
		}

		if err := a.Push(context.Background(), testDB, false); err == nil {
			t.Fatal("Push() expected error for newer remote snapshot")
		}
		if err := a.Push(context.Background(), testDB, true); err != nil {
			t.Fatalf("Push(force) error = %v", err)
		}
	})

	t.Run("missing age keys do not fail the build", func(t *testing.T) {
		a, _ := newTestApp(t, func(cfg *config.Config) {
			dir := t.TempDir()
			cfg.Encryption = config.EncryptionConfig{
				Type:           "age",
				PublicKeyPath:  dir + "/k.pub",
				PrivateKeyPath: dir + "/k.key",
			}
		})
		build(t, a)

		version, err := a.vaults[0].vault.SnapshotVersion(vault.SnapshotName("test-host", testDB))
		if err != nil {
			t.Fatalf("SnapshotVersion() error = %v", err)
		}
		if version != 0 {
			t.Errorf("SnapshotVersion() = %d, want 0", version)
		}
		if err := a.Push(context.Background(), testDB, false); err == nil || !strings.Contains(err.Error(), "keys init") {
			t.Errorf("Push() error = %v, want keys init hint", err)
		}
	})
}

func TestVeretinoApp_Sum(t *testing.T) {
	t.Parallel()
	a, afs := newTestApp(t, nil)
	file := testRoot + "/a.jpg"

	out, err := a.SumMake(context.Background(), file, "")
	if err != nil {
		t.Fatalf("SumMake() error = %v", err)
	}
	if out != file+".sha256" || out != a.SumPathFor(file) {
		t.Errorf("SumMake() = %q, want %q", out, file+".sha256")
	}

	res, err := a.SumCheck(context.Background(), out)
	if err != nil {
		t.Fatalf("SumCheck() error = %v", err)
	}
	if !res.Match {
		t.Errorf("SumCheck() = %s, want match", res)
	}

	afero.WriteFile(afs, file, []byte("changed"), 0o644)
	res, err = a.SumCheck(context.Background(), out)
	if err != nil {
		t.Fatalf("SumCheck() error = %v", err)
	}
	if res.Match {
		t.Error("SumCheck() matched a changed file")
	}
	if !strings.Contains(res.String(), "MISMATCH") {
		t.Errorf("String() = %q", res.String())
	}

	if _, err := a.SumMake(context.Background(), file, "md5"); err == nil {
		t.Error("SumMake() expected error for unknown algorithm")
	}
}

func TestVeretinoApp_ResolveDatabase(t *testing.T) {
	t.Parallel()

	t.Run("folder named database", func(t *testing.T) {
		a, afs := newTestApp(t, nil)
		build(t, a)
		afero.WriteFile(afs, testRoot+"/other.ver.json", []byte("[]"), 0o644)
		got, err := a.ResolveDatabase(testRoot)
		if err != nil {
			t.Fatalf("ResolveDatabase() error = %v", err)
		}
		if got != testDB {
			t.Errorf("ResolveDatabase() = %q, want %q", got, testDB)
		}
	})

	t.Run("single database", func(t *testing.T) {
		a, afs := newTestApp(t, nil)
		afero.WriteFile(afs, testRoot+"/sub/x.ver", []byte("zip"), 0o644)
		got, err := a.ResolveDatabase(testRoot + "/sub")
		if err != nil {
			t.Fatalf("ResolveDatabase() error = %v", err)
		}
		if got != testRoot+"/sub/x.ver" {
			t.Errorf("ResolveDatabase() = %q", got)
		}
	})

	t.Run("ambiguous folder", func(t *testing.T) {
		a, afs := newTestApp(t, nil)
		afero.WriteFile(afs, testRoot+"/one.ver.json", []byte("[]"), 0o644)
		afero.WriteFile(afs, testRoot+"/two.ver.json", []byte("[]"), 0o644)
		if _, err := a.ResolveDatabase(testRoot); err == nil {
			t.Error("ResolveDatabase() expected error for several databases")
		}
	})

	t.Run("empty folder", func(t *testing.T) {
		a, _ := newTestApp(t, nil)
		if _, err := a.ResolveDatabase(testRoot + "/sub"); !errors.Is(err, vt.ErrNotFound) {
			t.Errorf("ResolveDatabase() error = %v, want ErrNotFound", err)
		}
	})
}
