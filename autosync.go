package uidlist

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ProtonMail/uidlist/internal/table"
	"github.com/ProtonMail/uidlist/logging"
	"github.com/ProtonMail/uidlist/maildir"
	"github.com/ProtonMail/uidlist/store"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"
)

// debounceDelay collects the bursts of events a single delivery or flag change produces.
const debounceDelay = 50 * time.Millisecond

type change int

const (
	changeNone change = iota
	changeFiles
	changeList
)

func (m *Mailbox) startAutoSync(minInterval time.Duration) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	for _, dir := range []string{m.dir, maildir.Dir(m.dir).Path(table.HintNew), maildir.Dir(m.dir).Path(table.HintCur)} {
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return fmt.Errorf("failed to watch %v: %w", dir, err)
		}
	}

	ctx, cancel := context.WithCancel(m.metricContext(context.Background()))

	m.stopAutoSync = cancel

	limiter := rate.NewLimiter(rate.Every(minInterval), 1)

	m.wg.Go(ctx, logging.Labels{"mailbox": m.dir, "worker": "autosync"}, func(ctx context.Context) {
		defer func() { _ = w.Close() }()

		m.autoSync(ctx, w, limiter, minInterval)
	})

	return nil
}

func (m *Mailbox) autoSync(ctx context.Context, w *fsnotify.Watcher, limiter *rate.Limiter, retry time.Duration) {
	debounce := time.NewTimer(debounceDelay)
	defer debounce.Stop()

	// Sync once at start so files delivered before the watch began get their UIDs.
	needSync, needRefresh := true, false

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.Events:
			if !ok {
				return
			}

			switch m.classify(event) {
			case changeFiles:
				needSync = true

			case changeList:
				needRefresh = true

			default:
				continue
			}

			debounce.Reset(debounceDelay)

		case err, ok := <-w.Errors:
			if !ok {
				return
			}

			m.log.WithError(err).Warn("Filesystem watcher error")

		case <-debounce.C:
			switch {
			case needSync:
				if err := limiter.Wait(ctx); err != nil {
					return
				}

				_, err := m.Sync(ctx)

				switch {
				case err == nil:
					needSync, needRefresh = false, false

				case IsWouldBlock(err):
					// The lock holder may commit our files too; try again unless it does.
					debounce.Reset(retry)

				case IsClosed(err), errors.Is(err, context.Canceled):
					return

				default:
					needSync = false
					m.log.WithError(err).Error("Background sync failed")
				}

			case needRefresh:
				needRefresh = false

				if _, err := m.Refresh(); err != nil && !IsClosed(err) {
					m.log.WithError(err).Warn("Background refresh failed")
				}
			}
		}
	}
}

func (m *Mailbox) classify(event fsnotify.Event) change {
	name := filepath.Base(event.Name)

	switch filepath.Dir(event.Name) {
	case maildir.Dir(m.dir).Path(table.HintNew), maildir.Dir(m.dir).Path(table.HintCur):
		if event.Op&(fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
			return changeFiles
		}

	case filepath.Clean(m.dir):
		if name == store.FileName && event.Op&(fsnotify.Create|fsnotify.Rename|fsnotify.Write) != 0 {
			return changeList
		}
	}

	return changeNone
}
