package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/ProtonMail/uidlist"
	"github.com/ProtonMail/uidlist/imap"
	"github.com/ProtonMail/uidlist/maildir"
	"github.com/spf13/cobra"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <maildir> <uid|filename>",
	Short: "Find a message by UID or by filename",
	Args:  cobra.ExactArgs(2),
	RunE:  runLookup,
}

var (
	lookupByName bool
)

func init() {
	lookupCmd.Flags().BoolVar(&lookupByName, "name", false, "treat the argument as a filename even if it is a number")
	rootCmd.AddCommand(lookupCmd)
}

func runLookup(cmd *cobra.Command, args []string) error {
	dir, key := args[0], args[1]

	mailbox, err := openMailbox(dir)
	if err != nil {
		return err
	}

	defer func() { _ = mailbox.Close() }()

	snap := mailbox.Snapshot()

	var (
		entry uidlist.Entry
		ok    bool
	)

	if uid, err := imap.ParseUID(key); err == nil && !lookupByName {
		entry, ok = snap.ByUID(uid)
	} else {
		entry, ok = snap.ByFilename(key)
	}

	if !ok {
		return fmt.Errorf("%v: %w", key, uidlist.ErrNoSuchMessage)
	}

	seq, _ := snap.Seq(entry.UID)

	fmt.Fprintf(cmd.OutOrStdout(), "uid %v seq %v %v %v\n",
		entry.UID, seq, maildir.Flags(entry.Filename, entry.Hint), filepath.Join(dir, entry.Hint.String(), entry.Filename))

	return nil
}
