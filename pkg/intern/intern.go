// Package intern maps distinct strings to dense integer ids. A language pack
// owns one Table: ids are assigned during load and never change afterward,
// so downstream tables can key on a uint32 instead of repeating string data.
package intern

import "sync"

// ID is a dense identifier assigned to an interned string.
type ID uint32

// Table interns strings to dense ids. The zero value is ready to use. A
// Table built during language-pack load is safe to read concurrently once
// loading has finished; Intern itself is safe to call concurrently at any
// time but callers should not rely on id stability until loading completes.
type Table struct {
	mu      sync.RWMutex
	byID    []string
	byValue map[string]ID
}

// NewTable constructs a Table pre-sized for the given number of distinct
// strings, matching the capacity hints carried in a bundle header so the
// backing slice and map are allocated once.
func NewTable(capacityHint int) *Table {
	if capacityHint < 0 {
		capacityHint = 0
	}
	return &Table{
		byID:    make([]string, 0, capacityHint),
		byValue: make(map[string]ID, capacityHint),
	}
}

// Intern returns the id for s, assigning a new one if s has not been seen.
func (t *Table) Intern(s string) ID {
	t.mu.RLock()
	if id, ok := t.byValue[s]; ok {
		t.mu.RUnlock()
		return id
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.byValue[s]; ok {
		return id
	}
	if t.byValue == nil {
		t.byValue = make(map[string]ID)
	}
	id := ID(len(t.byID))
	t.byID = append(t.byID, s)
	t.byValue[s] = id
	return id
}

// Lookup returns the string for id and whether it was found.
func (t *Table) Lookup(id ID) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(id) < 0 || int(id) >= len(t.byID) {
		return "", false
	}
	return t.byID[id], true
}

// MustLookup returns the string for id, panicking if id is out of range.
// Used on hot read paths after load, where an unknown id indicates the
// bundle itself is corrupt rather than a recoverable input error.
func (t *Table) MustLookup(id ID) string {
	s, ok := t.Lookup(id)
	if !ok {
		panic("intern: id out of range")
	}
	return s
}

// Len returns the number of distinct interned strings.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID)
}

// Strings returns every interned string ordered by id, for serialization.
func (t *Table) Strings() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, len(t.byID))
	copy(out, t.byID)
	return out
}

// FromStrings rebuilds a Table from an ordered string list produced by
// Strings, restoring the same id assignment.
func FromStrings(values []string) *Table {
	t := NewTable(len(values))
	for _, v := range values {
		t.Intern(v)
	}
	return t
}
