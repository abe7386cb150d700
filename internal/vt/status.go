package vt

import "strings"

// Status is the primary state of a single file record. Every record holds
// exactly one Status at a time. Values are distinct bits so that membership in
// a Class is a single mask test, but a record never stores more than one bit.
type Status uint32

const (
	StatusQueued Status = 1 << iota
	StatusCalculating
	StatusNotChecked
	StatusNotCheckedModified
	StatusMatched
	StatusMismatched
	StatusNew
	StatusMissing
	StatusAdded
	StatusRemoved
	StatusUpdated
	StatusImported
	StatusMoved
	StatusMovedOut
	StatusUnreadable
)

// AllStatuses lists every primary status in declaration order.
var AllStatuses = []Status{
	StatusQueued,
	StatusCalculating,
	StatusNotChecked,
	StatusNotCheckedModified,
	StatusMatched,
	StatusMismatched,
	StatusNew,
	StatusMissing,
	StatusAdded,
	StatusRemoved,
	StatusUpdated,
	StatusImported,
	StatusMoved,
	StatusMovedOut,
	StatusUnreadable,
}

var statusNames = map[Status]string{
	StatusQueued:             "queued",
	StatusCalculating:        "calculating",
	StatusNotChecked:         "not checked",
	StatusNotCheckedModified: "not checked (modified)",
	StatusMatched:            "matched",
	StatusMismatched:         "mismatched",
	StatusNew:                "new",
	StatusMissing:            "missing",
	StatusAdded:              "added",
	StatusRemoved:            "removed",
	StatusUpdated:            "updated",
	StatusImported:           "imported",
	StatusMoved:              "moved",
	StatusMovedOut:           "moved out",
	StatusUnreadable:         "unreadable",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "invalid"
}

// Valid reports whether s is exactly one primary status.
func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// In reports whether s belongs to class c.
func (s Status) In(c Class) bool {
	return Class(s)&c != 0
}

// Class is a named union of primary statuses. Classes are used only to query
// and aggregate; they are never assigned to a record.
type Class uint32

// Of builds a Class from individual statuses.
func Of(statuses ...Status) Class {
	var c Class
	for _, s := range statuses {
		c |= Class(s)
	}
	return c
}

const (
	// ClassInProgress holds the transient statuses of a running batch.
	ClassInProgress = Class(StatusQueued) | Class(StatusCalculating)

	// ClassNotChecked is every present file with a stored checksum that has
	// not been compared in this session.
	ClassNotChecked = Class(StatusNotChecked) | Class(StatusNotCheckedModified)

	// ClassVerifiable is what a verify pass queues by default.
	ClassVerifiable = ClassNotChecked | Class(StatusAdded) | Class(StatusUpdated) |
		Class(StatusImported) | Class(StatusMoved)

	// ClassAvailable is every file that is present on disk, readable, and has
	// a checksum to compare against.
	ClassAvailable = ClassVerifiable | Class(StatusMatched) | Class(StatusMismatched)

	// ClassHasChecksum is every record whose checksum belongs in the database body.
	ClassHasChecksum = ClassAvailable | Class(StatusMissing) | Class(StatusMovedOut)

	// ClassNewLost is what an update-new-lost pass acts on.
	ClassNewLost = Class(StatusNew) | Class(StatusMissing)

	// ClassChanged marks records whose state differs from the saved database.
	ClassChanged = Class(StatusAdded) | Class(StatusRemoved) | Class(StatusUpdated) |
		Class(StatusImported) | Class(StatusMoved) | Class(StatusMovedOut)

	// ClassAll covers every primary status.
	ClassAll = Class(1<<15 - 1)
)

// Statuses expands the class into its primary statuses in declaration order.
func (c Class) Statuses() []Status {
	var out []Status
	for _, s := range AllStatuses {
		if s.In(c) {
			out = append(out, s)
		}
	}
	return out
}

func (c Class) String() string {
	names := make([]string, 0, 4)
	for _, s := range c.Statuses() {
		names = append(names, s.String())
	}
	return strings.Join(names, "|")
}
