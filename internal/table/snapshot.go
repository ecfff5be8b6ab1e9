package table

import (
	"iter"
	"sort"

	"github.com/ProtonMail/uidlist/imap"
	goimap "github.com/emersion/go-imap"
)

// Snapshot is an immutable view of a table. Any number of goroutines may read it
// while a sync pass prepares the next one.
type Snapshot struct {
	table *Table
}

func (s *Snapshot) Len() int {
	return s.table.Len()
}

func (s *Snapshot) NextUID() imap.UID {
	return s.table.NextUID
}

func (s *Snapshot) UIDValidity() imap.UID {
	return s.table.UIDValidity
}

func (s *Snapshot) GUID() string {
	return s.table.GUID
}

// All yields the entries in ascending UID order. The sequence can be ranged over
// any number of times; each entry is a copy.
func (s *Snapshot) All() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for _, entry := range s.table.entries {
			if !yield(entry.clone()) {
				return
			}
		}
	}
}

func (s *Snapshot) ByUID(uid imap.UID) (Entry, bool) {
	idx, ok := s.table.byUID[uid]
	if !ok {
		return Entry{}, false
	}

	return s.table.entries[idx].clone(), true
}

// ByFilename finds an entry by its full filename or by its maildir key.
func (s *Snapshot) ByFilename(name string) (Entry, bool) {
	idx, ok := s.table.byKey[Key(name)]
	if !ok {
		return Entry{}, false
	}

	return s.table.entries[idx].clone(), true
}

// Seq returns the 1-based sequence number of the message with the given UID.
func (s *Snapshot) Seq(uid imap.UID) (imap.SeqID, bool) {
	idx, ok := s.table.byUID[uid]
	if !ok {
		return 0, false
	}

	return imap.SeqID(idx + 1), true
}

// Select returns the entries whose UIDs fall in set, in ascending UID order.
// A "*" bound stands for the highest UID in the snapshot.
func (s *Snapshot) Select(set *goimap.SeqSet) []Entry {
	entries := s.table.entries

	if set == nil || len(entries) == 0 {
		return nil
	}

	max := uint32(s.table.MaxUID())

	picked := make([]bool, len(entries))

	for _, seq := range set.Set {
		start, stop := seq.Start, seq.Stop

		if start == 0 {
			start = max
		}

		if stop == 0 {
			stop = max
		}

		if start > stop {
			start, stop = stop, start
		}

		first := sort.Search(len(entries), func(i int) bool {
			return uint32(entries[i].UID) >= start
		})

		for i := first; i < len(entries) && uint32(entries[i].UID) <= stop; i++ {
			picked[i] = true
		}
	}

	var res []Entry

	for i, ok := range picked {
		if ok {
			res = append(res, entries[i].clone())
		}
	}

	return res
}
