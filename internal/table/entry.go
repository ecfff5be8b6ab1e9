package table

import (
	"strings"

	"github.com/ProtonMail/uidlist/imap"
	"golang.org/x/exp/maps"
)

// Hint records which maildir subdirectory a file was last observed in.
type Hint int

const (
	HintCur Hint = iota
	HintNew
)

func (h Hint) String() string {
	if h == HintNew {
		return "new"
	}

	return "cur"
}

func ParseHint(s string) (Hint, bool) {
	switch s {
	case "new":
		return HintNew, true

	case "cur":
		return HintCur, true

	default:
		return HintCur, false
	}
}

// InfoSeparator separates a maildir message's unique key from its info (flags).
const InfoSeparator = ':'

// Key returns the unique part of a maildir filename, dropping the ":2,FLAGS" info.
func Key(filename string) string {
	if idx := strings.IndexRune(filename, InfoSeparator); idx >= 0 {
		return filename[:idx]
	}

	return filename
}

// Entry binds one message file to its UID.
type Entry struct {
	UID      imap.UID
	Filename string
	Hint     Hint

	// Extra holds metadata this package does not interpret. It is written back untouched.
	Extra map[string]string

	// Missed counts the consecutive sync passes that did not find the file.
	Missed int
}

func (e Entry) Key() string {
	return Key(e.Filename)
}

func (e Entry) clone() Entry {
	if e.Extra != nil {
		e.Extra = maps.Clone(e.Extra)
	}

	return e
}
