package vt

import (
	"fmt"
	"strings"
)

// Summary is the count breakdown reported at the end of an operation.
type Summary struct {
	Operation  string `json:"operation"`
	Queued     int    `json:"queued"`
	Processed  int    `json:"processed"`
	Matched    int    `json:"matched"`
	Mismatched int    `json:"mismatched"`
	Added      int    `json:"added"`
	Imported   int    `json:"imported"`
	Updated    int    `json:"updated"`
	Moved      int    `json:"moved"`
	Removed    int    `json:"removed"`
	Missing    int    `json:"missing"`
	Unreadable int    `json:"unreadable"`
	Canceled   bool   `json:"canceled"`
	Verified   bool   `json:"verified"`
	SavedTo    string `json:"saved_to,omitempty"`
	Moves      []Move `json:"moves,omitempty"`
}

// Move pairs a vanished file with the new file that holds its content.
type Move struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (s *Summary) count(status Status) {
	switch status {
	case StatusMatched:
		s.Matched++
	case StatusMismatched:
		s.Mismatched++
	case StatusAdded:
		s.Added++
	case StatusImported:
		s.Imported++
	case StatusUpdated:
		s.Updated++
	case StatusMoved:
		s.Moved++
	case StatusRemoved:
		s.Removed++
	case StatusMissing:
		s.Missing++
	case StatusUnreadable:
		s.Unreadable++
	}
}

// String renders the non-zero counts, e.g. "matched: 10, mismatched: 1".
func (s Summary) String() string {
	parts := make([]string, 0, 8)
	add := func(name string, n int) {
		if n > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d", name, n))
		}
	}
	add("matched", s.Matched)
	add("mismatched", s.Mismatched)
	add("added", s.Added)
	add("imported", s.Imported)
	add("updated", s.Updated)
	add("moved", s.Moved)
	add("removed", s.Removed)
	add("missing", s.Missing)
	add("unreadable", s.Unreadable)
	out := strings.Join(parts, ", ")
	if out == "" {
		out = "no changes"
	}
	if s.Canceled {
		out += fmt.Sprintf(" (canceled after %d of %d)", s.Processed, s.Queued)
	}
	return out
}

// Progress reports the state of a running operation.
type Progress struct {
	Operation  string
	Path       string
	Done       int
	Total      int
	BytesDone  int64
	BytesTotal int64
}

// Percent is the byte-weighted completion, falling back to file counts.
func (p Progress) Percent() int {
	if p.BytesTotal > 0 {
		return int(p.BytesDone * 100 / p.BytesTotal)
	}
	if p.Total > 0 {
		return p.Done * 100 / p.Total
	}
	return 0
}

// ProgressFunc receives progress events. It is called from the goroutine
// running the operation and must not call back into the Session.
type ProgressFunc func(Progress)
