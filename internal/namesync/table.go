package namesync

import (
	"fmt"
	"sort"
)

type Storage int

const (
	// StorageRegister entries are persisted as per-function associations
	// keyed by the native name.
	StorageRegister Storage = iota
	// StorageStack entries are persisted as frame members at Offset.
	StorageStack
)

func (s Storage) String() string {
	if s == StorageStack {
		return "stack"
	}
	return "register"
}

// Entry tracks one local variable of a decompiled function.
type Entry struct {
	// Native is the decompiler's own name. It never changes and is the key
	// used for register associations.
	Native string
	// Display is the name currently shown in the rendered code.
	Display string
	Storage Storage
	// Offset is the frame offset of a stack entry.
	Offset int64
	// Persisted is false while the display name has no counterpart in the
	// database.
	Persisted bool
}

// Table maps display names to entries for one session. Display names are
// unique within a table.
type Table struct {
	entries map[string]*Entry
}

func NewTable() *Table {
	return &Table{entries: make(map[string]*Entry)}
}

// Lookup returns the entry currently displayed as name.
func (t *Table) Lookup(name string) (*Entry, bool) {
	e, ok := t.entries[name]
	return e, ok
}

func (t *Table) Has(name string) bool {
	_, ok := t.entries[name]
	return ok
}

func (t *Table) Len() int {
	return len(t.entries)
}

// Rekey moves the entry displayed as from to the display name to.
func (t *Table) Rekey(from, to string) error {
	e, ok := t.entries[from]
	if !ok {
		return fmt.Errorf("no entry named %q", from)
	}
	if from == to {
		return nil
	}
	if _, taken := t.entries[to]; taken {
		return fmt.Errorf("name %q already in use", to)
	}
	delete(t.entries, from)
	e.Display = to
	t.entries[to] = e
	return nil
}

// Entries returns copies of all entries ordered by display name.
func (t *Table) Entries() []Entry {
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Display < out[j].Display })
	return out
}

func (t *Table) add(e *Entry) bool {
	if _, taken := t.entries[e.Display]; taken {
		return false
	}
	t.entries[e.Display] = e
	return true
}
