package imap

import (
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const (
	FlagSeen     = `\Seen`
	FlagAnswered = `\Answered`
	FlagFlagged  = `\Flagged`
	FlagDeleted  = `\Deleted`
	FlagDraft    = `\Draft`
	FlagRecent   = `\Recent` // Read-only!.
)

// FlagSet is a set of IMAP flags. Flags are case-insensitive; the first spelling added is kept.
type FlagSet map[string]string

func NewFlagSet(flags ...string) FlagSet {
	fs := make(FlagSet, len(flags))

	for _, flag := range flags {
		if _, ok := fs[strings.ToLower(flag)]; !ok {
			fs[strings.ToLower(flag)] = flag
		}
	}

	return fs
}

func (fs FlagSet) Len() int {
	return len(fs)
}

func (fs FlagSet) Contains(flag string) bool {
	_, ok := fs[strings.ToLower(flag)]
	return ok
}

// ToSlice returns the flags sorted.
func (fs FlagSet) ToSlice() []string {
	flags := maps.Values(fs)

	slices.Sort(flags)

	return flags
}

func (fs FlagSet) String() string {
	return "(" + strings.Join(fs.ToSlice(), " ") + ")"
}
