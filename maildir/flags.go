package maildir

import (
	"strings"

	"github.com/ProtonMail/uidlist/imap"
	"github.com/ProtonMail/uidlist/internal/table"
	gomaildir "github.com/emersion/go-maildir"
)

const infoPrefix = "2,"

var imapFlags = map[gomaildir.Flag]string{
	gomaildir.FlagSeen:    imap.FlagSeen,
	gomaildir.FlagReplied: imap.FlagAnswered,
	gomaildir.FlagFlagged: imap.FlagFlagged,
	gomaildir.FlagDraft:   imap.FlagDraft,
	gomaildir.FlagTrashed: imap.FlagDeleted,
}

// Flags returns the IMAP flags encoded in a maildir filename's info part.
// Files still in new/ are recent.
func Flags(name string, hint table.Hint) imap.FlagSet {
	var flags []string

	if hint == table.HintNew {
		flags = append(flags, imap.FlagRecent)
	}

	if idx := strings.IndexRune(name, table.InfoSeparator); idx >= 0 {
		if info := name[idx+1:]; strings.HasPrefix(info, infoPrefix) {
			for _, r := range info[len(infoPrefix):] {
				if flag, ok := imapFlags[gomaildir.Flag(r)]; ok {
					flags = append(flags, flag)
				}
			}
		}
	}

	return imap.NewFlagSet(flags...)
}
