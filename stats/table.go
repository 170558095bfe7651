package stats

import (
	"bytes"
	"math/bits"

	"github.com/cespare/xxhash/v2"
)

const MIN_TABLE_SLOTS = 16

// Entry is a station name and its aggregate. Key aliases the input buffer
// it was parsed from.
type Entry struct {
	Key   []byte
	Stats Stats
}

type slot struct {
	hash uint64
	// Index into entries plus one; zero marks an empty slot.
	idx int32
}

// Table maps station names to aggregates. It uses open addressing with
// linear probing and keeps entries densely packed in insertion order.
// Keys are stored as given, not copied.
//
// A Table is not safe for concurrent use.
type Table struct {
	slots   []slot
	mask    uint64
	entries []Entry
}

// NewTable returns a table sized for capacity keys.
func NewTable(capacity int) *Table {
	capacity = max(capacity, 0)
	n := MIN_TABLE_SLOTS
	if c := 2 * capacity; c > n {
		n = 1 << bits.Len(uint(c-1))
	}
	return &Table{
		slots:   make([]slot, n),
		mask:    uint64(n - 1),
		entries: make([]Entry, 0, capacity),
	}
}

// Get returns the aggregate for key, inserting an empty one if key is
// absent. The pointer is valid until the next call to Get or MergeFrom.
func (t *Table) Get(key []byte) *Stats {
	return t.get(key, xxhash.Sum64(key))
}

func (t *Table) get(key []byte, h uint64) *Stats {
	for i := h & t.mask; ; i = (i + 1) & t.mask {
		s := &t.slots[i]
		if s.idx == 0 {
			if 2*(len(t.entries)+1) > len(t.slots) {
				t.grow()
				return t.get(key, h)
			}
			t.entries = append(t.entries, Entry{Key: key, Stats: New()})
			s.hash = h
			s.idx = int32(len(t.entries))
			return &t.entries[len(t.entries)-1].Stats
		}
		if s.hash == h && bytes.Equal(t.entries[s.idx-1].Key, key) {
			return &t.entries[s.idx-1].Stats
		}
	}
}

func (t *Table) grow() {
	slots := make([]slot, 2*len(t.slots))
	mask := uint64(len(slots) - 1)
	for _, s := range t.slots {
		if s.idx == 0 {
			continue
		}
		i := s.hash & mask
		for slots[i].idx != 0 {
			i = (i + 1) & mask
		}
		slots[i] = s
	}
	t.slots = slots
	t.mask = mask
}

func (t *Table) Len() int {
	return len(t.entries)
}

// Entries returns the entries in insertion order. The slice is owned by
// the table.
func (t *Table) Entries() []Entry {
	return t.entries
}

func (t *Table) Range(f func(key []byte, s Stats)) {
	for _, e := range t.entries {
		f(e.Key, e.Stats)
	}
}

// MergeFrom folds every entry of o into t.
func (t *Table) MergeFrom(o *Table) {
	for _, s := range o.slots {
		if s.idx == 0 {
			continue
		}
		e := &o.entries[s.idx-1]
		t.get(e.Key, s.hash).Merge(e.Stats)
	}
}

// Merge takes ownership of tables and folds them, in order, into the
// first one, which is returned. Nil tables are skipped.
func Merge(tables []*Table) *Table {
	var acc *Table
	for _, t := range tables {
		if t == nil {
			continue
		}
		if acc == nil {
			acc = t
			continue
		}
		acc.MergeFrom(t)
	}
	if acc == nil {
		acc = NewTable(0)
	}
	return acc
}
