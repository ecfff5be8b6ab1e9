// Package reconcile brings a uid list table in line with a directory listing.
package reconcile

import (
	"fmt"
	"strings"

	"github.com/ProtonMail/uidlist/imap"
	"github.com/ProtonMail/uidlist/internal/table"
	"github.com/ProtonMail/uidlist/limits"
	"github.com/ProtonMail/uidlist/maildir"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
)

// DefaultConfirmScans is how many consecutive scans must miss a file before its entry is retired.
const DefaultConfirmScans = 2

type Policy struct {
	// ConfirmScans is the number of consecutive scans that must miss a file before
	// its entry is retired. Values below 1 select DefaultConfirmScans.
	ConfirmScans int

	// ForceRemove lists filenames or maildir keys whose entries are retired as soon
	// as a scan misses them.
	ForceRemove []string

	// Limits bounds UID assignment. Nil selects limits.DefaultLimits.
	Limits *limits.Mailbox
}

func (p Policy) confirmScans() int {
	if p.ConfirmScans < 1 {
		return DefaultConfirmScans
	}

	return p.ConfirmScans
}

func (p Policy) limits() limits.Mailbox {
	if p.Limits == nil {
		return limits.DefaultLimits()
	}

	return *p.Limits
}

// Result describes what a pass changed.
type Result struct {
	// Changed is set when the table must be written back.
	Changed bool

	Added   []imap.UID
	Retired []imap.UID
	Missing []imap.UID
	Updated []imap.UID

	// Skipped holds listed names that cannot be stored in the list, including the
	// losers of two names sharing a maildir key.
	Skipped []string

	// Deferred holds new names left without a UID because the mailbox is at its
	// message limit. They are picked up by a later pass once there is room.
	Deferred []string
}

func (r Result) Unchanged() bool {
	return !r.Changed
}

// Reconcile updates tbl in place so it describes listing. Entries are matched by
// maildir key, so a flag rename keeps its UID. New files get UIDs from NextUID in
// filename order; UIDs are never reused. On error tbl may be partially updated and
// must be discarded.
func Reconcile(tbl *table.Table, listing maildir.Listing, policy Policy) (Result, error) {
	if err := tbl.Validate(); err != nil {
		return Result{}, err
	}

	var res Result

	seen := make(map[string]maildir.File, len(listing))

	for _, file := range listing {
		if !storable(file.Name) {
			res.Skipped = append(res.Skipped, file.Name)
			continue
		}

		key := table.Key(file.Name)

		if prev, ok := seen[key]; ok && !prefer(file, prev) {
			res.Skipped = append(res.Skipped, file.Name)
			continue
		} else if ok {
			logrus.WithField("key", key).WithField("kept", file.Name).WithField("dropped", prev.Name).Warn("Maildir key listed twice")
			res.Skipped = append(res.Skipped, prev.Name)
		}

		seen[key] = file
	}

	added := make([]maildir.File, 0, len(seen))

	for key, file := range seen {
		if _, ok := tbl.IndexOfKey(key); !ok {
			added = append(added, file)
		}
	}

	if err := policy.limits().CheckUIDCount(tbl.NextUID, len(added)); err != nil {
		return Result{}, err
	}

	force := make(map[string]struct{}, len(policy.ForceRemove))

	for _, name := range policy.ForceRemove {
		force[table.Key(name)] = struct{}{}
	}

	var retired []imap.UID

	for i := 0; i < tbl.Len(); i++ {
		entry := tbl.At(i)

		file, ok := seen[entry.Key()]
		if !ok {
			entry.Missed++

			if _, forced := force[entry.Key()]; forced || entry.Missed >= policy.confirmScans() {
				retired = append(retired, entry.UID)
			} else {
				res.Missing = append(res.Missing, entry.UID)
			}

			continue
		}

		if entry.Filename != file.Name || entry.Hint != file.Hint || entry.Missed != 0 {
			entry.Filename = file.Name
			entry.Hint = file.Hint
			entry.Missed = 0

			res.Updated = append(res.Updated, entry.UID)
		}
	}

	if len(retired) > 0 {
		tbl.Remove(retired...)
		res.Retired = retired
	}

	slices.SortFunc(added, func(a, b maildir.File) bool {
		return a.Name < b.Name
	})

	// Counted after retirement so a full mailbox can still swap a vanished file for a new one.
	// What does not fit waits; the rest of the pass is still committed.
	if err := policy.limits().CheckMessageCount(tbl.Len(), len(added)); err != nil {
		room := policy.limits().MessageRoom(tbl.Len())

		for _, file := range added[room:] {
			res.Deferred = append(res.Deferred, file.Name)
		}

		added = added[:room]

		logrus.WithError(err).WithField("deferred", len(res.Deferred)).Warn("Mailbox is full, new files wait for a UID")
	}

	for _, file := range added {
		uid := tbl.NextUID

		if err := tbl.Append(table.Entry{UID: uid, Filename: file.Name, Hint: file.Hint}); err != nil {
			return Result{}, err
		}

		tbl.NextUID++

		res.Added = append(res.Added, uid)
	}

	if err := tbl.Validate(); err != nil {
		return Result{}, fmt.Errorf("after reconcile: %w", err)
	}

	res.Changed = len(res.Added)+len(res.Retired)+len(res.Missing)+len(res.Updated) > 0

	if len(res.Skipped) > 0 {
		logrus.WithField("names", res.Skipped).Warn("Skipped maildir files that cannot be listed")
	}

	return res, nil
}

// storable reports whether name can be written to a list line and belongs in the list at all.
// A name needs a non-empty maildir key to be told apart from its renames.
func storable(name string) bool {
	return table.Key(name) != "" && !strings.HasPrefix(name, ".") && !strings.ContainsAny(name, "\r\n")
}

// prefer reports whether file should win over prev when both share a maildir key.
// cur/ wins over new/, and between two names in the same directory the smaller one wins.
func prefer(file, prev maildir.File) bool {
	if file.Hint != prev.Hint {
		return file.Hint == table.HintCur
	}

	return file.Name < prev.Name
}
