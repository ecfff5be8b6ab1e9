package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ProtonMail/uidlist"
	goimap "github.com/emersion/go-imap"
	"github.com/emersion/go-mbox"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export <maildir> [uid-set]",
	Short: "Write messages to an mbox file in UID order",
	Long: `Copy the messages of a maildir into mbox format, ordered by UID.
The optional uid-set uses IMAP syntax, e.g. "1:10,15,20:*". The default is all messages.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runExport,
}

var (
	exportOutput string
)

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "mbox file to write (default is stdout)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	set := "1:*"
	if len(args) == 2 {
		set = args[1]
	}

	seqSet, err := goimap.ParseSeqSet(set)
	if err != nil {
		return fmt.Errorf("invalid uid set %q: %w", set, err)
	}

	mailbox, err := openMailbox(args[0])
	if err != nil {
		return err
	}

	defer func() { _ = mailbox.Close() }()

	if exportOutput == "" {
		_, err := exportMBox(cmd.OutOrStdout(), mailbox, seqSet)
		return err
	}

	f, err := os.Create(exportOutput)
	if err != nil {
		return err
	}

	n, err := exportMBox(f, mailbox, seqSet)
	if err != nil {
		_ = f.Close()
		return err
	}

	// The file is only complete once it is closed.
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %v: %w", exportOutput, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "exported %v messages to %v\n", n, exportOutput)

	return nil
}

func exportMBox(out io.Writer, mailbox *uidlist.Mailbox, seqSet *goimap.SeqSet) (int, error) {
	w := mbox.NewWriter(out)

	var n int

	for _, entry := range mailbox.Snapshot().Select(seqSet) {
		if err := exportMessage(w, mailbox, entry); uidlist.IsNoSuchMessage(err) || errors.Is(err, os.ErrNotExist) {
			logrus.WithField("uid", entry.UID).WithField("filename", entry.Filename).Warn("Message file is gone, skipping")
			continue
		} else if err != nil {
			return n, err
		}

		n++
	}

	if err := w.Close(); err != nil {
		return n, err
	}

	return n, nil
}

func exportMessage(w *mbox.Writer, mailbox *uidlist.Mailbox, entry uidlist.Entry) error {
	rc, err := mailbox.OpenMessage(entry.UID)
	if err != nil {
		return err
	}

	defer func() { _ = rc.Close() }()

	date := time.Now()

	if f, ok := rc.(*os.File); ok {
		if info, err := f.Stat(); err == nil {
			date = info.ModTime()
		}
	}

	mw, err := w.CreateMessage("MAILER-DAEMON", date)
	if err != nil {
		return err
	}

	if _, err := io.Copy(mw, rc); err != nil {
		return fmt.Errorf("failed to export uid %v: %w", entry.UID, err)
	}

	return nil
}
