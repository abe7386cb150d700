package vt_test

import (
	"slices"
	"testing"

	"github.com/artemvlas/veretino-sub000/internal/vt"
)

func leafPaths(tree *vt.Tree, root vt.NodeID) []string {
	var paths []string
	for _, rec := range tree.Leaves(root) {
		paths = append(paths, rec.Path)
	}
	return paths
}

func TestTree_Insert(t *testing.T) {
	t.Run("builds folders on demand", func(t *testing.T) {
		t.Parallel()
		tree := vt.NewTree()
		for _, p := range []string{"b/x.txt", "a.txt", "b/c/y.txt", "b/z.txt"} {
			if _, ok := tree.Insert(vt.FileRecord{Path: p, Status: vt.StatusNew, Size: 1}); !ok {
				t.Fatalf("Insert(%q) = false", p)
			}
		}

		if tree.Len() != 4 {
			t.Errorf("Len() = %d, want 4", tree.Len())
		}
		folder, ok := tree.Lookup("b/c")
		if !ok {
			t.Fatal("Lookup(b/c) = false")
		}
		if tree.IsLeaf(folder) {
			t.Error("b/c is reported as a leaf")
		}
		if _, ok := tree.Find("b/c"); ok {
			t.Error("Find(b/c) found a folder")
		}
	})

	t.Run("rejects duplicates and conflicts", func(t *testing.T) {
		t.Parallel()
		tree := vt.NewTree()
		tree.Insert(vt.FileRecord{Path: "a/b", Status: vt.StatusNew})

		cases := []vt.FileRecord{
			{Path: "a/b", Status: vt.StatusNew},
			{Path: "a/b/c", Status: vt.StatusNew},
			{Path: "a", Status: vt.StatusNew},
			{Path: "", Status: vt.StatusNew},
			{Path: "x", Status: vt.StatusNew | vt.StatusAdded},
		}
		for _, rec := range cases {
			if _, ok := tree.Insert(rec); ok {
				t.Errorf("Insert(%q, %d) = true, want false", rec.Path, rec.Status)
			}
		}
		if tree.Numbers().Total().Count != 1 {
			t.Errorf("Total().Count = %d, want 1", tree.Numbers().Total().Count)
		}
	})
}

func TestTree_Leaves(t *testing.T) {
	t.Parallel()
	tree := vt.NewTree()
	for _, p := range []string{"z.txt", "m/b.txt", "a.txt", "m/a.txt", "m/n/c.txt"} {
		tree.Insert(vt.FileRecord{Path: p, Status: vt.StatusNew})
	}

	want := []string{"z.txt", "m/b.txt", "m/a.txt", "m/n/c.txt", "a.txt"}
	if got := leafPaths(tree, vt.RootID); !slices.Equal(got, want) {
		t.Errorf("Leaves() = %v, want %v", got, want)
	}

	sub, _ := tree.Lookup("m")
	want = []string{"m/b.txt", "m/a.txt", "m/n/c.txt"}
	if got := leafPaths(tree, sub); !slices.Equal(got, want) {
		t.Errorf("Leaves(m) = %v, want %v", got, want)
	}

	leaf, _ := tree.Find("a.txt")
	if got := leafPaths(tree, leaf); !slices.Equal(got, []string{"a.txt"}) {
		t.Errorf("Leaves(a.txt) = %v", got)
	}
}

func TestTree_Update(t *testing.T) {
	t.Run("moves numbers with the status", func(t *testing.T) {
		t.Parallel()
		tree := vt.NewTree()
		id, _ := tree.Insert(vt.FileRecord{Path: "f", Status: vt.StatusNotChecked, Size: 7, Checksum: "aa"})

		err := tree.Update(id, func(rec *vt.FileRecord) {
			rec.Status = vt.StatusMismatched
			rec.Recomputed = "bb"
		})
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		rec, _ := tree.Record(id)
		if rec.Recomputed != "bb" || rec.Checksum != "aa" {
			t.Errorf("record = %+v", rec)
		}
		if got := tree.Numbers().Get(vt.StatusMismatched); got.Count != 1 || got.Size != 7 {
			t.Errorf("Mismatched = %+v", got)
		}
		if tree.Numbers().Contains(vt.Of(vt.StatusNotChecked)) {
			t.Error("NotChecked still counted")
		}
	})

	t.Run("clears recomputed outside mismatched", func(t *testing.T) {
		t.Parallel()
		tree := vt.NewTree()
		id, _ := tree.Insert(vt.FileRecord{Path: "f", Status: vt.StatusMismatched, Recomputed: "bb"})
		tree.SetStatus(id, vt.StatusMatched)
		rec, _ := tree.Record(id)
		if rec.Recomputed != "" {
			t.Errorf("Recomputed = %q, want empty", rec.Recomputed)
		}
	})

	t.Run("cannot rename or set invalid status", func(t *testing.T) {
		t.Parallel()
		tree := vt.NewTree()
		id, _ := tree.Insert(vt.FileRecord{Path: "f", Status: vt.StatusNew})
		tree.Update(id, func(rec *vt.FileRecord) { rec.Path = "g" })
		if rec, _ := tree.Record(id); rec.Path != "f" {
			t.Errorf("Path = %q, want f", rec.Path)
		}
		if err := tree.SetStatus(id, 0); err == nil {
			t.Error("SetStatus(0) expected error")
		}
	})
}

func TestTree_Remove(t *testing.T) {
	t.Parallel()
	tree := vt.NewTree()
	id, _ := tree.Insert(vt.FileRecord{Path: "a/b/c.txt", Status: vt.StatusMissing, Size: vt.SizeUnknown})
	tree.Insert(vt.FileRecord{Path: "a/d.txt", Status: vt.StatusNew, Size: 3})

	if err := tree.Remove(id); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, ok := tree.Lookup("a/b"); ok {
		t.Error("empty folder a/b was not pruned")
	}
	if _, ok := tree.Lookup("a"); !ok {
		t.Error("folder a was pruned while holding d.txt")
	}
	if tree.Numbers().Contains(vt.Of(vt.StatusMissing)) {
		t.Error("Missing still counted")
	}
	if err := tree.Remove(id); err == nil {
		t.Error("second Remove() expected error")
	}
	if tree.Len() != 1 {
		t.Errorf("Len() = %d, want 1", tree.Len())
	}

	// The freed path can be reused.
	if _, ok := tree.Insert(vt.FileRecord{Path: "a/b/c.txt", Status: vt.StatusNew}); !ok {
		t.Error("re-Insert after Remove = false")
	}
}

func TestTree_Park(t *testing.T) {
	t.Parallel()
	tree := vt.NewTree()
	tree.Insert(vt.FileRecord{Path: "a", Status: vt.StatusNew, Size: 1})
	if _, ok := tree.Insert(vt.FileRecord{Path: "a/b.txt", Status: vt.StatusMissing, Size: vt.SizeUnknown}); ok {
		t.Fatal("Insert() below a file = true")
	}

	id, ok := tree.Place(vt.FileRecord{Path: "a/b.txt", Status: vt.StatusMissing, Size: vt.SizeUnknown})
	if !ok {
		t.Fatal("Place() = false")
	}
	if !tree.Parked(id) {
		t.Error("Parked() = false")
	}
	if got, ok := tree.Find("a/b.txt"); !ok || got != id {
		t.Errorf("Find() = %d, %v, want %d", got, ok, id)
	}
	if _, ok := tree.Park(vt.FileRecord{Path: "a/b.txt", Status: vt.StatusNew}); ok {
		t.Error("second Park() = true")
	}
	if want := []string{"a", "a/b.txt"}; !slices.Equal(leafPaths(tree, vt.RootID), want) {
		t.Errorf("leaves = %v, want %v", leafPaths(tree, vt.RootID), want)
	}
	if tree.Len() != 2 || !tree.Numbers().Equal(tree.Recount()) {
		t.Errorf("Len() = %d, numbers in sync = %v", tree.Len(), tree.Numbers().Equal(tree.Recount()))
	}

	if err := tree.Remove(id); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, ok := tree.Find("a/b.txt"); ok {
		t.Error("parked leaf still found after Remove")
	}
	if got, ok := tree.Find("a"); !ok || tree.Parked(got) {
		t.Error("Remove of the parked leaf disturbed a")
	}
}
