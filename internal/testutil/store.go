package testutil

import (
	"fmt"
	"sync"

	"github.com/artemvlas/veretino-sub000/internal/vt"
)

// MemoryStore is an in-memory vt.Store. Documents are deep-copied on the way
// in and out.
type MemoryStore struct {
	mu      sync.Mutex
	docs    map[string]*vt.Document
	backups map[string]*vt.Document
	saves   int

	// FailSave makes every Save return vt.ErrSaveFailed.
	FailSave bool
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:    make(map[string]*vt.Document),
		backups: make(map[string]*vt.Document),
	}
}

// Put seeds the store with a document at path.
func (s *MemoryStore) Put(path string, doc *vt.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[path] = copyDocument(doc)
}

// Get returns the document stored at path.
func (s *MemoryStore) Get(path string) (*vt.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[path]
	if !ok {
		return nil, false
	}
	return copyDocument(doc), true
}

// Saves returns the number of successful saves.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *MemoryStore) Load(path string) (*vt.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[path]
	if !ok {
		return nil, vt.NewPathError("load", path, vt.ErrNotFound)
	}
	if len(doc.Entries) == 0 {
		return nil, vt.NewPathError("load", path, vt.ErrEmptyDatabase)
	}
	return copyDocument(doc), nil
}

func (s *MemoryStore) Save(path string, doc *vt.Document) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSave {
		return "", vt.NewPathError("save", path, vt.ErrSaveFailed)
	}
	if prev, ok := s.docs[path]; ok {
		s.backups[path] = prev
	}
	s.docs[path] = copyDocument(doc)
	s.saves++
	return path, nil
}

func (s *MemoryStore) Restore(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bak, ok := s.backups[path]
	if !ok {
		return fmt.Errorf("no backup for %s: %w", path, vt.ErrNotFound)
	}
	s.docs[path] = bak
	delete(s.backups, path)
	return nil
}

func copyDocument(doc *vt.Document) *vt.Document {
	out := *doc
	out.Entries = append([]vt.Entry(nil), doc.Entries...)
	out.Unreadable = append([]string(nil), doc.Unreadable...)
	out.Meta.Filter.Extensions = append([]string(nil), doc.Meta.Filter.Extensions...)
	return &out
}
