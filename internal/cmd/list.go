package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/ProtonMail/uidlist"
	"github.com/ProtonMail/uidlist/imap"
	"github.com/ProtonMail/uidlist/maildir"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list <maildir>",
	Short: "Show the uid list of a maildir",
	Long: `Print every entry of the uid list with its flags, as last committed.
The maildir is not scanned; run sync first to pick up new messages.`,
	Args: cobra.ExactArgs(1),
	RunE: runList,
}

var (
	listJSON bool
)

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output the list as JSON")
	rootCmd.AddCommand(listCmd)
}

type listedMailbox struct {
	UIDValidity imap.UID      `json:"uid_validity"`
	NextUID     imap.UID      `json:"next_uid"`
	GUID        string        `json:"guid"`
	Messages    []listedEntry `json:"messages"`
}

type listedEntry struct {
	UID      imap.UID          `json:"uid"`
	Dir      string            `json:"dir"`
	Filename string            `json:"filename"`
	Flags    []string          `json:"flags"`
	Missed   int               `json:"missed,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
}

func newListedEntry(entry uidlist.Entry) listedEntry {
	return listedEntry{
		UID:      entry.UID,
		Dir:      entry.Hint.String(),
		Filename: entry.Filename,
		Flags:    maildir.Flags(entry.Filename, entry.Hint).ToSlice(),
		Missed:   entry.Missed,
		Extra:    entry.Extra,
	}
}

func runList(cmd *cobra.Command, args []string) error {
	mailbox, err := openMailbox(args[0])
	if err != nil {
		return err
	}

	defer func() { _ = mailbox.Close() }()

	snap := mailbox.Snapshot()

	if listJSON {
		listed := listedMailbox{
			UIDValidity: snap.UIDValidity(),
			NextUID:     snap.NextUID(),
			GUID:        snap.GUID(),
			Messages:    make([]listedEntry, 0, snap.Len()),
		}

		for entry := range snap.All() {
			listed.Messages = append(listed.Messages, newListedEntry(entry))
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")

		return enc.Encode(listed)
	}

	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "UIDVALIDITY %v, next uid %v, %v messages\n", snap.UIDValidity(), snap.NextUID(), snap.Len())

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	for entry := range snap.All() {
		listed := newListedEntry(entry)

		status := ""
		if listed.Missed > 0 {
			status = fmt.Sprintf("missing x%v", listed.Missed)
		}

		fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\n", listed.UID, listed.Dir, imap.NewFlagSet(listed.Flags...), listed.Filename, status)
	}

	return w.Flush()
}
