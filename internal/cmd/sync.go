package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ProtonMail/uidlist"
	"github.com/ProtonMail/uidlist/async"
	"github.com/ProtonMail/uidlist/events"
	"github.com/ProtonMail/uidlist/logging"
	"github.com/ProtonMail/uidlist/reporter"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync <maildir>...",
	Short: "Assign UIDs to new messages and retire vanished ones",
	Long: `Run one sync pass on each maildir: new message files get UIDs, files missing
for enough consecutive passes lose theirs, and the uid list is rewritten if
anything changed. A maildir whose lock is held by another process is skipped.

With --watch, keep running and sync whenever the maildir changes.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSync,
}

var (
	syncForceRemove []string
	syncWatch       bool
)

func init() {
	syncCmd.Flags().StringSliceVar(&syncForceRemove, "force-remove", nil, "retire these files right away if they are gone")
	syncCmd.Flags().BoolVar(&syncWatch, "watch", false, "keep syncing as the maildir changes")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	if syncWatch {
		if len(args) != 1 {
			return fmt.Errorf("--watch takes exactly one maildir")
		}

		return watch(cmd, args[0])
	}

	var errs []error

	for _, dir := range args {
		if err := syncOne(cmd, dir); err != nil {
			errs = append(errs, fmt.Errorf("%v: %w", dir, err))
		}
	}

	return errors.Join(errs...)
}

func syncOne(cmd *cobra.Command, dir string) error {
	mailbox, err := openMailbox(dir)
	if err != nil {
		return err
	}

	defer func() { _ = mailbox.Close() }()

	res, err := mailbox.Sync(cmd.Context(), uidlist.WithForceRemove(syncForceRemove...))
	if uidlist.IsWouldBlock(err) {
		fmt.Fprintf(cmd.ErrOrStderr(), "%v: locked by another process, skipped\n", dir)
		return nil
	} else if err != nil {
		return err
	}

	for _, name := range res.Skipped {
		fmt.Fprintf(cmd.ErrOrStderr(), "%v: cannot index %q\n", dir, name)
	}

	if len(res.Deferred) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "%v: mailbox full, %v new files wait for a uid\n", dir, len(res.Deferred))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%v: %v added, %v retired, %v missing, %v updated, next uid %v\n",
		dir, len(res.Added), len(res.Retired), len(res.Missing), len(res.Updated), mailbox.Snapshot().NextUID())

	return nil
}

func watch(cmd *cobra.Command, dir string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mailbox, err := openMailbox(dir,
		uidlist.WithAutoSync(cfg.Sync.WatchInterval),
		uidlist.WithPanicHandler(async.ReportingPanicHandler{Reporter: reporter.LogReporter{Entry: logging.WithMailbox(dir)}}),
	)
	if err != nil {
		return err
	}

	defer func() { _ = mailbox.Close() }()

	eventCh := mailbox.AddWatcher(events.SyncCompleted{}, events.ListRecovered{}, events.LockReclaimed{})

	out := cmd.OutOrStdout()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-eventCh:
			if !ok {
				return nil
			}

			switch event := event.(type) {
			case events.SyncCompleted:
				fmt.Fprintf(out, "%v: %v added, %v retired, %v missing, %v updated, next uid %v\n",
					dir, len(event.Added), len(event.Retired), len(event.Missing), len(event.Updated), event.NextUID)

			case events.ListRecovered:
				fmt.Fprintf(out, "%v: rebuilt corrupt list, uid validity %v -> %v\n", dir, event.OldUIDValidity, event.NewUIDValidity)

			case events.LockReclaimed:
				fmt.Fprintf(out, "%v: took over stale lock from %v\n", dir, event.Owner)
			}
		}
	}
}
