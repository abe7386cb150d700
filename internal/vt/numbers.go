package vt

// Tally is the aggregate of a set of records: how many and how many bytes.
type Tally struct {
	Count int
	Size  int64
}

func (t Tally) plus(o Tally) Tally {
	return Tally{Count: t.Count + o.Count, Size: t.Size + o.Size}
}

// Numbers keeps a Tally per primary status. It is maintained incrementally:
// every record transition calls Add, Remove or Move exactly once, so a Query
// never needs to walk the tree.
//
// Sizes below zero mean "unknown" and contribute nothing to Size.
type Numbers struct {
	tallies map[Status]Tally
}

// NewNumbers returns an empty Numbers.
func NewNumbers() *Numbers {
	return &Numbers{tallies: make(map[Status]Tally)}
}

// Add records a new record with the given status and size.
func (n *Numbers) Add(status Status, size int64) {
	t := n.tallies[status]
	t.Count++
	if size > 0 {
		t.Size += size
	}
	n.tallies[status] = t
}

// Remove forgets a record with the given status and size.
func (n *Numbers) Remove(status Status, size int64) {
	t, ok := n.tallies[status]
	if !ok {
		return
	}
	t.Count--
	if size > 0 {
		t.Size -= size
	}
	if t.Count <= 0 {
		delete(n.tallies, status)
		return
	}
	n.tallies[status] = t
}

// Move transfers a record from one status to another.
func (n *Numbers) Move(from, to Status, size int64) {
	if from == to {
		return
	}
	n.Remove(from, size)
	n.Add(to, size)
}

// Get returns the tally of a single status.
func (n *Numbers) Get(status Status) Tally {
	return n.tallies[status]
}

// Query sums the tallies of every status in class c.
func (n *Numbers) Query(c Class) Tally {
	var total Tally
	for s, t := range n.tallies {
		if s.In(c) {
			total = total.plus(t)
		}
	}
	return total
}

// Contains reports whether any record belongs to class c.
func (n *Numbers) Contains(c Class) bool {
	for s, t := range n.tallies {
		if t.Count > 0 && s.In(c) {
			return true
		}
	}
	return false
}

// Total is the tally over every record.
func (n *Numbers) Total() Tally {
	return n.Query(ClassAll)
}

// Clone returns an independent copy.
func (n *Numbers) Clone() *Numbers {
	c := NewNumbers()
	for s, t := range n.tallies {
		c.tallies[s] = t
	}
	return c
}

// Equal reports whether both hold the same tallies.
func (n *Numbers) Equal(o *Numbers) bool {
	if len(n.tallies) != len(o.tallies) {
		return false
	}
	for s, t := range n.tallies {
		if o.tallies[s] != t {
			return false
		}
	}
	return true
}
