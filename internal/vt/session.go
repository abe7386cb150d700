package vt

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"
)

// Options tune a Session.
type Options struct {
	// DetectMoved pairs Added files with Missing files of equal checksum
	// during update-new-lost and reports them as moved.
	DetectMoved bool
	// ImportDigests takes checksums from sibling digest files when a
	// database is built, instead of hashing those files.
	ImportDigests bool
	// Progress receives progress events of every operation.
	Progress ProgressFunc
	// Digests reads sibling digest files; required for ImportDigests.
	Digests DigestReader
}

// Session holds one loaded checksum database and runs operations on it.
//
// Only one operation runs at a time. Starting an operation while another is
// in flight cancels the running one and waits for it to settle. Accessors may
// be called from any goroutine while an operation runs.
type Session struct {
	hasher  Hasher
	scanner Scanner
	store   Store
	logger  Logger
	clock   Clock
	opts    Options

	mu   sync.RWMutex // guards tree and meta
	tree *Tree
	meta *Metadata

	opMu    sync.Mutex
	current *operation
}

type operation struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSession creates a Session with the provided dependencies.
func NewSession(hasher Hasher, scanner Scanner, store Store, logger Logger, clock Clock, opts Options) *Session {
	if logger == nil {
		logger = NewNopLogger()
	}
	if clock == nil {
		clock = RealClock{}
	}
	return &Session{
		hasher:  hasher,
		scanner: scanner,
		store:   store,
		logger:  logger,
		clock:   clock,
		opts:    opts,
	}
}

// begin registers a new operation, preempting the running one.
func (s *Session) begin(ctx context.Context, name string) (context.Context, func()) {
	s.opMu.Lock()
	for s.current != nil {
		cur := s.current
		s.logger.Debug("preempting operation", "running", cur.name, "next", name)
		cur.cancel()
		s.opMu.Unlock()
		<-cur.done
		s.opMu.Lock()
	}
	opCtx, cancel := context.WithCancel(ctx)
	op := &operation{name: name, cancel: cancel, done: make(chan struct{})}
	s.current = op
	s.opMu.Unlock()

	return opCtx, func() {
		cancel()
		s.opMu.Lock()
		if s.current == op {
			s.current = nil
		}
		s.opMu.Unlock()
		close(op.done)
	}
}

// Cancel requests cancellation of the running operation, if any.
// It does not wait for the operation to settle.
func (s *Session) Cancel() {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if s.current != nil {
		s.current.cancel()
	}
}

// Running returns the name of the running operation, or "".
func (s *Session) Running() string {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if s.current == nil {
		return ""
	}
	return s.current.name
}

// Loaded reports whether a database is loaded.
func (s *Session) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree != nil
}

// Numbers returns a snapshot of the aggregate counters.
func (s *Session) Numbers() *Numbers {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tree == nil {
		return NewNumbers()
	}
	return s.tree.Numbers().Clone()
}

// Metadata returns a copy of the database metadata.
func (s *Session) Metadata() (Metadata, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.meta == nil {
		return Metadata{}, false
	}
	return *s.meta, true
}

// Item returns the record at a relative path.
func (s *Session) Item(path string) (FileRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tree == nil {
		return FileRecord{}, false
	}
	id, ok := s.tree.Find(filepath.ToSlash(path))
	if !ok {
		return FileRecord{}, false
	}
	return s.tree.Record(id)
}

// Items returns the records beneath scope (a folder or file path, "" for the
// whole database) whose status is in class c, in traversal order.
func (s *Session) Items(scope string, c Class) ([]FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tree == nil {
		return nil, ErrNoDatabase
	}
	root, ok := s.tree.Lookup(filepath.ToSlash(scope))
	if !ok {
		return nil, NewPathError("lookup", scope, ErrNotFound)
	}
	var out []FileRecord
	for _, rec := range s.tree.Leaves(root) {
		if rec.Status.In(c) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// SetChecksum assigns a checksum to the record at path, for example one taken
// from an external digest file. The record becomes Imported.
func (s *Session) SetChecksum(path, checksum string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tree == nil {
		return ErrNoDatabase
	}
	if s.meta.Immutable {
		return ErrReadOnly
	}
	if _, ok := AlgorithmFromHexLen(len(checksum)); !ok {
		return fmt.Errorf("invalid checksum length %d", len(checksum))
	}
	id, ok := s.tree.Find(filepath.ToSlash(path))
	if !ok {
		return NewPathError("set checksum", path, ErrNotFound)
	}
	return s.tree.Update(id, func(rec *FileRecord) {
		rec.Checksum = normalizeChecksum(checksum)
		rec.Status = StatusImported
	})
}

// OpenDatabase loads the database at dbPath and reconciles it with its
// working folder. On failure the previously loaded database is kept.
func (s *Session) OpenDatabase(ctx context.Context, dbPath string) error {
	ctx, done := s.begin(ctx, "open")
	defer done()
	return s.open(ctx, dbPath)
}

// open loads dbPath and reconciles it with the disk. The caller holds the
// operation slot.
func (s *Session) open(ctx context.Context, dbPath string) error {
	abs, err := filepath.Abs(dbPath)
	if err != nil {
		return fmt.Errorf("resolving database path: %w", err)
	}
	doc, err := s.store.Load(abs)
	if err != nil {
		return err
	}
	doc.Meta.DbPath = abs
	for i := range doc.Entries {
		doc.Entries[i].Checksum = normalizeChecksum(doc.Entries[i].Checksum)
	}

	workDir := doc.Meta.WorkingDir()
	files, err := s.scanner.Scan(ctx, workDir, doc.Meta.Filter)
	if err != nil {
		return fmt.Errorf("scanning %s: %w", workDir, err)
	}

	tree := Reconcile(doc, files, doc.Meta.Updated)
	meta := doc.Meta

	s.mu.Lock()
	s.tree, s.meta = tree, &meta
	s.mu.Unlock()

	n := tree.Numbers()
	s.logger.Info("database opened",
		"path", abs,
		"files", tree.Len(),
		"new", n.Get(StatusNew).Count,
		"missing", n.Get(StatusMissing).Count)
	return nil
}

// BuildParams describe a new database.
type BuildParams struct {
	Root      string
	DbPath    string // defaults to <root>/<folder name>.ver.json
	Algorithm Algorithm
	Filter    FilterRule
	Comment   string
}

// BuildDatabase scans root, hashes every admitted file and writes a new
// database. An empty scan, or a scan where nothing could be hashed, returns
// ErrEmptyDatabase and writes nothing.
func (s *Session) BuildDatabase(ctx context.Context, p BuildParams) (Summary, error) {
	ctx, done := s.begin(ctx, "build")
	defer done()

	sum := Summary{Operation: "build"}
	root, err := filepath.Abs(p.Root)
	if err != nil {
		return sum, fmt.Errorf("resolving root: %w", err)
	}
	dbPath := p.DbPath
	if dbPath == "" {
		dbPath = filepath.Join(root, filepath.Base(root)+DatabaseExt)
	}
	if dbPath, err = filepath.Abs(dbPath); err != nil {
		return sum, fmt.Errorf("resolving database path: %w", err)
	}
	alg := p.Algorithm
	if alg == AlgorithmUnknown {
		alg = DefaultAlgorithm
	}

	files, err := s.scanner.Scan(ctx, root, p.Filter)
	if err != nil {
		return sum, fmt.Errorf("scanning %s: %w", root, err)
	}
	if len(files) == 0 {
		return sum, NewPathError("build", root, ErrEmptyDatabase)
	}

	tree := NewTree()
	for _, f := range files {
		status := StatusNew
		if !f.Readable {
			status = StatusUnreadable
		}
		if _, ok := tree.Place(FileRecord{Path: f.Path, Size: f.Size, ModTime: f.ModTime, Status: status}); !ok {
			return sum, fmt.Errorf("scan of %s listed %s twice", root, f.Path)
		}
	}
	now := s.clock.Now()
	meta := &Metadata{
		Algorithm: alg,
		Created:   now,
		Comment:   p.Comment,
		Filter:    p.Filter,
		DbPath:    dbPath,
	}
	if filepath.Clean(root) != filepath.Dir(dbPath) {
		meta.WorkDir = root
	}

	s.mu.Lock()
	s.tree, s.meta = tree, meta
	s.mu.Unlock()

	if s.opts.ImportDigests && s.opts.Digests != nil {
		s.importDigests(&sum)
	}

	if s.runQueue(ctx, "build", s.collect(RootID, Of(StatusNew)), &sum) {
		return sum, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.tree.Numbers().Contains(ClassHasChecksum) {
		return sum, NewPathError("build", root, ErrEmptyDatabase)
	}
	savedTo, err := s.saveLocked(true)
	sum.SavedTo = savedTo
	return sum, err
}

func (s *Session) importDigests(sum *Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	workDir := s.meta.WorkingDir()
	for _, id := range s.tree.Collect(RootID, Of(StatusNew)) {
		rec, _ := s.tree.Record(id)
		checksum, ok, err := s.opts.Digests.ReadDigest(s.absPath(workDir, rec.Path), s.meta.Algorithm)
		if err != nil {
			s.logger.Warn("reading digest file", "path", rec.Path, "error", err)
			continue
		}
		if !ok || len(checksum) != s.meta.Algorithm.HexLen() {
			continue
		}
		s.tree.Update(id, func(r *FileRecord) {
			r.Checksum = normalizeChecksum(checksum)
			r.Status = StatusImported
		})
		sum.count(StatusImported)
	}
}

// Save writes the loaded database to its path.
func (s *Session) Save() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tree == nil {
		return "", ErrNoDatabase
	}
	return s.saveLocked(false)
}

// saveLocked writes the database. The updated timestamp moves when changed
// is set, when records carry a changed status, or on first save.
func (s *Session) saveLocked(changed bool) (string, error) {
	now := s.clock.Now()
	if changed || s.tree.Numbers().Contains(ClassChanged) || s.meta.Updated.IsZero() {
		s.meta.Updated = now
	}
	doc := s.documentLocked()
	savedTo, err := s.store.Save(s.meta.DbPath, doc)
	if err != nil {
		return "", err
	}
	s.meta.SavedTo = savedTo
	if savedTo != s.meta.DbPath {
		s.logger.Warn("database saved to fallback location", "wanted", s.meta.DbPath, "saved", savedTo)
	} else {
		s.logger.Info("database saved", "path", savedTo, "checksums", len(doc.Entries))
	}
	return savedTo, nil
}

// Document renders the loaded database in its persisted form.
func (s *Session) Document() (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tree == nil {
		return nil, ErrNoDatabase
	}
	return s.documentLocked(), nil
}

func (s *Session) documentLocked() *Document {
	doc := &Document{Meta: *s.meta}
	for _, rec := range s.tree.Leaves(RootID) {
		switch {
		case rec.Status == StatusRemoved || rec.Status == StatusMovedOut:
		case rec.Checksum != "":
			doc.Entries = append(doc.Entries, Entry{Path: rec.Path, Checksum: rec.Checksum})
			if rec.Size > 0 {
				doc.TotalSize += rec.Size
			}
		case rec.Status == StatusUnreadable:
			doc.Unreadable = append(doc.Unreadable, rec.Path)
		}
	}
	return doc
}

func (s *Session) collect(root NodeID, c Class) []NodeID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Collect(root, c)
}

func (s *Session) absPath(workDir, rel string) string {
	return filepath.Join(workDir, filepath.FromSlash(rel))
}

func (s *Session) scopeRoot(scope string) (NodeID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tree == nil {
		return noNode, ErrNoDatabase
	}
	id, ok := s.tree.Lookup(filepath.ToSlash(scope))
	if !ok {
		return noNode, NewPathError("lookup", scope, ErrNotFound)
	}
	return id, nil
}

func (s *Session) report(p Progress) {
	if s.opts.Progress != nil {
		s.opts.Progress(p)
	}
}

func (s *Session) since(start time.Time) time.Duration {
	return s.clock.Now().Sub(start)
}

func isCanceled(err error) bool {
	return errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
