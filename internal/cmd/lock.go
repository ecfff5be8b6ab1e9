package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ProtonMail/uidlist/internal/dotlock"
	"github.com/ProtonMail/uidlist/store"
	"github.com/spf13/cobra"
)

var lockCmd = &cobra.Command{
	Use:   "lock <maildir>",
	Short: "Show or hold the uid list lock",
	Long: `Show who holds the uid list lock of a maildir.

With --hold, take the lock and keep it for the given time or until interrupted,
so the maildir can be worked on by hand without the list changing underneath.`,
	Args: cobra.ExactArgs(1),
	RunE: runLock,
}

var (
	lockHold time.Duration
)

func init() {
	lockCmd.Flags().DurationVar(&lockHold, "hold", 0, "take the lock and keep it this long")
	rootCmd.AddCommand(lockCmd)
}

func runLock(cmd *cobra.Command, args []string) error {
	dir := args[0]

	if lockHold > 0 {
		return holdLock(cmd, dir)
	}

	path := filepath.Join(dir, store.LockName)

	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(cmd.OutOrStdout(), "unlocked")
		return nil
	} else if err != nil {
		return err
	}

	age := time.Since(info.ModTime()).Round(time.Second)

	state := "held"
	if age > cfg.Lock.StaleAfter {
		state = "stale"
	}

	owner, err := dotlock.ReadOwner(path)
	if err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "%v by unknown owner (%v), age %v\n", state, err, age)
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%v by %v, age %v\n", state, owner, age)

	return nil
}

func holdLock(cmd *cobra.Command, dir string) error {
	mailbox, err := openMailbox(dir)
	if err != nil {
		return err
	}

	defer func() { _ = mailbox.Close() }()

	if err := mailbox.TryLock(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "locked %v for %v\n", dir, lockHold)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	timer := time.NewTimer(lockHold)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}

	return mailbox.Unlock()
}
