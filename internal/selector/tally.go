package selector

import (
	"slices"

	"github.com/giantswarm/agentcatalog/internal/api"
)

// Entry describes an indexed selector by its shape only: how many pairs it
// has and how they combine.
type Entry struct {
	ID     string
	Size   int
	Method api.SelectorMethod
}

// Tally accumulates per-pair hits for one resource and decides which
// selectors match. AND entries match when every pair was hit, OR entries on
// any hit, and universal (empty) entries always.
type Tally struct {
	entries map[string]Entry
	hits    map[string]int
}

// NewTally returns an empty Tally.
func NewTally() *Tally {
	return &Tally{
		entries: make(map[string]Entry),
		hits:    make(map[string]int),
	}
}

// Hit records that one pair of the entry's selector is present on the
// resource. Each pair of a selector must be reported at most once.
func (t *Tally) Hit(e Entry) {
	t.entries[e.ID] = e
	t.hits[e.ID]++
}

// Universal records an empty-selector entry.
func (t *Tally) Universal(id string) {
	t.entries[id] = Entry{ID: id, Method: api.SelectorMethodAnd}
}

// Matches returns the IDs of matching entries, sorted.
func (t *Tally) Matches() []string {
	matched := make([]string, 0, len(t.entries))
	for id, e := range t.entries {
		hits := t.hits[id]
		switch {
		case e.Size == 0:
			matched = append(matched, id)
		case e.Method == api.SelectorMethodOr && hits > 0:
			matched = append(matched, id)
		case hits == e.Size:
			matched = append(matched, id)
		}
	}
	slices.Sort(matched)
	return matched
}
