package table

import (
	"errors"
	"fmt"

	"github.com/ProtonMail/uidlist/imap"
	"github.com/bradenaw/juniper/xslices"
	"golang.org/x/exp/slices"
)

// FormatVersion is the list file format this package reads and writes.
const FormatVersion = 1

// ErrInconsistentState is returned when a table violates its ordering or uniqueness invariants.
var ErrInconsistentState = errors.New("inconsistent uid list state")

// Table is one process's view of a mailbox's uid list.
// It is not safe for concurrent mutation; readers should use a Snapshot.
type Table struct {
	Version     int
	UIDValidity imap.UID
	NextUID     imap.UID
	GUID        string

	// Header holds the header fields this package does not know, as raw tag+value
	// tokens in the order they were read.
	Header []string

	entries []Entry
	byUID   map[imap.UID]int
	byKey   map[string]int
}

func New() *Table {
	return &Table{
		Version: FormatVersion,
		NextUID: 1,
		byUID:   make(map[imap.UID]int),
		byKey:   make(map[string]int),
	}
}

// Append adds an entry at the end of the table.
// The entry's UID must be above every UID already present and its key must be new.
func (t *Table) Append(entry Entry) error {
	if entry.UID == 0 {
		return fmt.Errorf("%w: uid 0 for %q", ErrInconsistentState, entry.Filename)
	}

	if n := len(t.entries); n > 0 && t.entries[n-1].UID >= entry.UID {
		return fmt.Errorf("%w: uid %v after uid %v", ErrInconsistentState, entry.UID, t.entries[n-1].UID)
	}

	key := entry.Key()

	if idx, ok := t.byKey[key]; ok {
		return fmt.Errorf("%w: %q bound to uid %v and uid %v", ErrInconsistentState, key, t.entries[idx].UID, entry.UID)
	}

	t.entries = append(t.entries, entry)
	t.byUID[entry.UID] = len(t.entries) - 1
	t.byKey[key] = len(t.entries) - 1

	return nil
}

func (t *Table) Len() int {
	return len(t.entries)
}

// At returns the entry at position i for in-place update.
// Callers must not change the entry's UID or key.
func (t *Table) At(i int) *Entry {
	return &t.entries[i]
}

// IndexOfKey returns the position of the entry whose maildir key is key.
func (t *Table) IndexOfKey(key string) (int, bool) {
	idx, ok := t.byKey[key]

	return idx, ok
}

// IndexOfUID returns the position of the entry with the given UID.
func (t *Table) IndexOfUID(uid imap.UID) (int, bool) {
	idx, ok := t.byUID[uid]

	return idx, ok
}

// MaxUID returns the highest UID still present, or 0 for an empty table.
func (t *Table) MaxUID() imap.UID {
	if len(t.entries) == 0 {
		return 0
	}

	return t.entries[len(t.entries)-1].UID
}

// Remove drops the entries with the given UIDs. Their UIDs are never handed out again
// because NextUID is left untouched.
func (t *Table) Remove(uids ...imap.UID) int {
	drop := make(map[imap.UID]struct{}, len(uids))

	for _, uid := range uids {
		if _, ok := t.byUID[uid]; ok {
			drop[uid] = struct{}{}
		}
	}

	if len(drop) == 0 {
		return 0
	}

	t.entries = xslices.Filter(t.entries, func(e Entry) bool {
		_, ok := drop[e.UID]
		return !ok
	})

	t.reindex()

	return len(drop)
}

func (t *Table) reindex() {
	t.byUID = make(map[imap.UID]int, len(t.entries))
	t.byKey = make(map[string]int, len(t.entries))

	for idx, entry := range t.entries {
		t.byUID[entry.UID] = idx
		t.byKey[entry.Key()] = idx
	}
}

// Validate checks the invariants that Append enforces plus the NextUID bound.
func (t *Table) Validate() error {
	if len(t.byUID) != len(t.entries) || len(t.byKey) != len(t.entries) {
		return fmt.Errorf("%w: index out of sync with %v entries", ErrInconsistentState, len(t.entries))
	}

	for idx, entry := range t.entries {
		if idx > 0 && t.entries[idx-1].UID >= entry.UID {
			return fmt.Errorf("%w: uid %v after uid %v", ErrInconsistentState, entry.UID, t.entries[idx-1].UID)
		}

		if got, ok := t.byKey[entry.Key()]; !ok || got != idx {
			return fmt.Errorf("%w: key %q is not uniquely indexed", ErrInconsistentState, entry.Key())
		}
	}

	if max := t.MaxUID(); max != 0 && t.NextUID <= max {
		return fmt.Errorf("%w: next uid %v does not exceed uid %v", ErrInconsistentState, t.NextUID, max)
	}

	return nil
}

// Clone returns a deep copy that can be mutated without affecting t.
func (t *Table) Clone() *Table {
	clone := &Table{
		Version:     t.Version,
		UIDValidity: t.UIDValidity,
		NextUID:     t.NextUID,
		GUID:        t.GUID,
		Header:      slices.Clone(t.Header),
		entries:     xslices.Map(t.entries, Entry.clone),
	}

	clone.reindex()

	return clone
}

// Snapshot freezes a copy of the table for lock-free readers.
func (t *Table) Snapshot() *Snapshot {
	return &Snapshot{table: t.Clone()}
}
