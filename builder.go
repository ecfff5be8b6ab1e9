package uidlist

import (
	"fmt"
	"os"
	"time"

	"github.com/ProtonMail/uidlist/async"
	"github.com/ProtonMail/uidlist/imap"
	"github.com/ProtonMail/uidlist/internal/dotlock"
	"github.com/ProtonMail/uidlist/internal/reconcile"
	"github.com/ProtonMail/uidlist/limits"
	"github.com/ProtonMail/uidlist/logging"
	"github.com/ProtonMail/uidlist/maildir"
	"github.com/ProtonMail/uidlist/observability"
	"github.com/ProtonMail/uidlist/reporter"
	"github.com/ProtonMail/uidlist/store"
)

type mailboxBuilder struct {
	dir                  string
	staleAfter           time.Duration
	confirmScans         int
	scanner              maildir.Scanner
	limits               *limits.Mailbox
	reporter             reporter.Reporter
	sender               observability.Sender
	create               bool
	autoSync             time.Duration
	uidValidityGenerator imap.UIDValidityGenerator
	panicHandler         async.PanicHandler
}

func newBuilder(dir string) *mailboxBuilder {
	return &mailboxBuilder{
		dir:                  dir,
		staleAfter:           dotlock.DefaultStaleAfter,
		confirmScans:         reconcile.DefaultConfirmScans,
		uidValidityGenerator: imap.DefaultEpochUIDValidityGenerator(),
		panicHandler:         async.NoopPanicHandler{},
	}
}

func (builder *mailboxBuilder) build() (*Mailbox, error) {
	if builder.create {
		if err := maildir.Init(builder.dir); err != nil {
			return nil, err
		}
	}

	if info, err := os.Stat(builder.dir); err != nil {
		return nil, fmt.Errorf("failed to open mailbox: %w", err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("failed to open mailbox: %v: %w", builder.dir, maildir.ErrNotMaildir)
	}

	if builder.scanner == nil {
		builder.scanner = maildir.Dir(builder.dir)
	}

	if builder.confirmScans < 1 {
		return nil, fmt.Errorf("confirm scans must be at least 1, got %v", builder.confirmScans)
	}

	if builder.reporter == nil {
		builder.reporter = reporter.LogReporter{Entry: logging.WithMailbox(builder.dir)}
	}

	mailbox := &Mailbox{
		dir:      builder.dir,
		store:    store.New(builder.dir, store.WithUIDValidityGenerator(builder.uidValidityGenerator)),
		scanner:  builder.scanner,
		reporter: builder.reporter,
		sender:   builder.sender,
		log:      logging.WithMailbox(builder.dir),
		lockOpts: dotlock.Options{StaleAfter: builder.staleAfter},
		policy: reconcile.Policy{
			ConfirmScans: builder.confirmScans,
			Limits:       builder.limits,
		},
	}

	mailbox.wg.PanicHandler = builder.panicHandler

	return mailbox, nil
}
