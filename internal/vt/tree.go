package vt

import (
	"fmt"
	"iter"
	"strings"
)

// SizeUnknown marks a record whose size is not defined (missing from disk).
const SizeUnknown int64 = -1

// FileRecord is one tracked file.
type FileRecord struct {
	Path       string // relative to the working root, '/'-separated
	Size       int64
	Status     Status
	Checksum   string
	Recomputed string // only while Status == StatusMismatched
	ModTime    int64  // unix seconds, zero when unknown
}

// NodeID addresses a node inside a Tree. The zero value is the root folder.
type NodeID int32

// RootID is the handle of the root folder of every Tree.
const RootID NodeID = 0

const noNode NodeID = -1

type node struct {
	name     string
	parent   NodeID
	children []NodeID
	index    map[string]NodeID
	leaf     bool
	removed  bool
	record   FileRecord
}

// Tree is an arena of folder and leaf nodes built from relative paths.
// Nodes refer to each other by NodeID; the arena owns every node. A Tree
// maintains its Numbers as part of every mutation.
//
// Tree is not safe for concurrent use; Session serializes access.
type Tree struct {
	nodes   []node
	numbers *Numbers
	leaves  int
	parked  map[string]NodeID
}

// NewTree returns an empty tree holding only the root folder.
func NewTree() *Tree {
	return &Tree{
		nodes:   []node{{parent: noNode}},
		numbers: NewNumbers(),
	}
}

// Numbers returns the live aggregate counters of the tree.
func (t *Tree) Numbers() *Numbers {
	return t.numbers
}

// Len returns the number of leaves.
func (t *Tree) Len() int {
	return t.leaves
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func (t *Tree) child(parent NodeID, name string) (NodeID, bool) {
	n := &t.nodes[parent]
	if n.index == nil {
		return noNode, false
	}
	id, ok := n.index[name]
	return id, ok
}

func (t *Tree) addNode(parent NodeID, name string, leaf bool) NodeID {
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, node{name: name, parent: parent, leaf: leaf})
	p := &t.nodes[parent]
	if p.index == nil {
		p.index = make(map[string]NodeID)
	}
	p.index[name] = id
	p.children = append(p.children, id)
	return id
}

// Insert adds rec at rec.Path, creating intermediate folders on demand.
// It returns false and leaves the tree untouched when a node already exists
// at that path.
func (t *Tree) Insert(rec FileRecord) (NodeID, bool) {
	parts := splitPath(rec.Path)
	if len(parts) == 0 || !rec.Status.Valid() {
		return noNode, false
	}
	cur := RootID
	for _, part := range parts[:len(parts)-1] {
		next, ok := t.child(cur, part)
		if ok && t.nodes[next].leaf {
			return noNode, false
		}
		if !ok {
			next = t.addNode(cur, part, false)
		}
		cur = next
	}
	name := parts[len(parts)-1]
	if _, ok := t.child(cur, name); ok {
		return noNode, false
	}
	rec.Path = strings.Join(parts, "/")
	id := t.addNode(cur, name, true)
	t.nodes[id].record = rec
	t.numbers.Add(rec.Status, rec.Size)
	t.leaves++
	return id, true
}

// Park adds rec as a leaf hanging directly off the root, outside the folder
// structure of its path. It keeps records whose path is blocked by another
// entry, such as a stored "a/b" once "a" has become a file. Parked leaves are
// counted in Numbers, visited by Leaves(RootID) and found by Find, but not
// listed beneath any other folder. It returns false when a leaf already
// exists at rec.Path.
func (t *Tree) Park(rec FileRecord) (NodeID, bool) {
	parts := splitPath(rec.Path)
	if len(parts) == 0 || !rec.Status.Valid() {
		return noNode, false
	}
	rec.Path = strings.Join(parts, "/")
	if _, ok := t.Find(rec.Path); ok {
		return noNode, false
	}
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, node{name: rec.Path, parent: RootID, leaf: true, record: rec})
	t.nodes[RootID].children = append(t.nodes[RootID].children, id)
	if t.parked == nil {
		t.parked = make(map[string]NodeID)
	}
	t.parked[rec.Path] = id
	t.numbers.Add(rec.Status, rec.Size)
	t.leaves++
	return id, true
}

// Place inserts rec at its path, parking it when the path is blocked.
func (t *Tree) Place(rec FileRecord) (NodeID, bool) {
	if id, ok := t.Insert(rec); ok {
		return id, true
	}
	return t.Park(rec)
}

// Parked reports whether leaf id was placed with Park.
func (t *Tree) Parked(id NodeID) bool {
	if !t.IsLeaf(id) {
		return false
	}
	pid, ok := t.parked[t.nodes[id].record.Path]
	return ok && pid == id
}

// Lookup returns the node at path, which may be a folder or a leaf.
// The empty path is the root.
func (t *Tree) Lookup(path string) (NodeID, bool) {
	cur := RootID
	for _, part := range splitPath(path) {
		next, ok := t.child(cur, part)
		if !ok {
			return noNode, false
		}
		cur = next
	}
	return cur, true
}

// Find returns the leaf at path.
func (t *Tree) Find(path string) (NodeID, bool) {
	if id, ok := t.Lookup(path); ok && t.nodes[id].leaf {
		return id, true
	}
	if id, ok := t.parked[strings.Join(splitPath(path), "/")]; ok {
		return id, true
	}
	return noNode, false
}

// IsLeaf reports whether id is a live leaf.
func (t *Tree) IsLeaf(id NodeID) bool {
	return t.valid(id) && t.nodes[id].leaf
}

func (t *Tree) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(t.nodes) && !t.nodes[id].removed
}

// Record returns a copy of the record held by leaf id.
func (t *Tree) Record(id NodeID) (FileRecord, bool) {
	if !t.IsLeaf(id) {
		return FileRecord{}, false
	}
	return t.nodes[id].record, true
}

// Parent returns the folder holding id.
func (t *Tree) Parent(id NodeID) (NodeID, bool) {
	if !t.valid(id) || id == RootID {
		return noNode, false
	}
	return t.nodes[id].parent, true
}

// Update applies fn to the record of leaf id and keeps Numbers consistent
// with the result. The path cannot be changed through Update.
func (t *Tree) Update(id NodeID, fn func(rec *FileRecord)) error {
	if !t.IsLeaf(id) {
		return fmt.Errorf("node %d is not a file", id)
	}
	n := &t.nodes[id]
	before := n.record
	after := before
	fn(&after)
	if !after.Status.Valid() {
		return fmt.Errorf("invalid status %d for %s", after.Status, before.Path)
	}
	after.Path = before.Path
	if after.Status != StatusMismatched {
		after.Recomputed = ""
	}
	if before.Status != after.Status || before.Size != after.Size {
		t.numbers.Remove(before.Status, before.Size)
		t.numbers.Add(after.Status, after.Size)
	}
	n.record = after
	return nil
}

// SetStatus moves leaf id to status.
func (t *Tree) SetStatus(id NodeID, status Status) error {
	return t.Update(id, func(rec *FileRecord) { rec.Status = status })
}

// Remove deletes leaf id. Folders left empty are pruned.
func (t *Tree) Remove(id NodeID) error {
	if !t.IsLeaf(id) {
		return fmt.Errorf("node %d is not a file", id)
	}
	rec := t.nodes[id].record
	t.numbers.Remove(rec.Status, rec.Size)
	t.leaves--
	if pid, ok := t.parked[rec.Path]; ok && pid == id {
		delete(t.parked, rec.Path)
	}
	for id != RootID {
		parent := t.nodes[id].parent
		t.detach(parent, id)
		t.nodes[id].removed = true
		if len(t.nodes[parent].children) > 0 {
			break
		}
		id = parent
	}
	return nil
}

func (t *Tree) detach(parent, id NodeID) {
	p := &t.nodes[parent]
	if cur, ok := p.index[t.nodes[id].name]; ok && cur == id {
		delete(p.index, t.nodes[id].name)
	}
	for i, c := range p.children {
		if c == id {
			p.children = append(p.children[:i], p.children[i+1:]...)
			break
		}
	}
}

// Leaves returns a pre-order sequence of the leaves beneath root (or root
// itself when it is a leaf). Children are visited in insertion order. The
// sequence can be ranged over any number of times.
//
// Mutating records while ranging is allowed; inserting or removing nodes is not.
func (t *Tree) Leaves(root NodeID) iter.Seq2[NodeID, FileRecord] {
	return func(yield func(NodeID, FileRecord) bool) {
		if !t.valid(root) {
			return
		}
		stack := []NodeID{root}
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			n := &t.nodes[id]
			if n.leaf {
				if !yield(id, n.record) {
					return
				}
				continue
			}
			for i := len(n.children) - 1; i >= 0; i-- {
				stack = append(stack, n.children[i])
			}
		}
	}
}

// Collect returns the leaves beneath root whose status is in class c.
func (t *Tree) Collect(root NodeID, c Class) []NodeID {
	var ids []NodeID
	for id, rec := range t.Leaves(root) {
		if rec.Status.In(c) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Recount rebuilds Numbers from the records. It exists for consistency
// checks; normal code never needs it.
func (t *Tree) Recount() *Numbers {
	n := NewNumbers()
	for _, rec := range t.Leaves(RootID) {
		n.Add(rec.Status, rec.Size)
	}
	return n
}
