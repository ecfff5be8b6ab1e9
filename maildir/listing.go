package maildir

import (
	"github.com/ProtonMail/uidlist/internal/table"
	"github.com/bradenaw/juniper/xslices"
	"golang.org/x/exp/slices"
)

// File is one message file found by a scan.
type File struct {
	Name string
	Hint table.Hint
}

// Listing is the set of message files present in new/ and cur/ at scan time.
type Listing []File

// Sorted returns the listing ordered by filename.
func (l Listing) Sorted() Listing {
	sorted := slices.Clone(l)

	slices.SortFunc(sorted, func(a, b File) bool {
		return a.Name < b.Name
	})

	return sorted
}

func (l Listing) Names() []string {
	return xslices.Map(l, func(f File) string { return f.Name })
}

// In returns the files found in the given subdirectory.
func (l Listing) In(hint table.Hint) Listing {
	return xslices.Filter(l, func(f File) bool { return f.Hint == hint })
}
