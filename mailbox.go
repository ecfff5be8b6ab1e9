package uidlist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ProtonMail/uidlist/events"
	"github.com/ProtonMail/uidlist/imap"
	"github.com/ProtonMail/uidlist/internal/dotlock"
	"github.com/ProtonMail/uidlist/internal/reconcile"
	"github.com/ProtonMail/uidlist/internal/table"
	"github.com/ProtonMail/uidlist/logging"
	"github.com/ProtonMail/uidlist/maildir"
	"github.com/ProtonMail/uidlist/observability"
	"github.com/ProtonMail/uidlist/observability/metrics"
	"github.com/ProtonMail/uidlist/reporter"
	"github.com/ProtonMail/uidlist/store"
	"github.com/ProtonMail/uidlist/wait"
	"github.com/ProtonMail/uidlist/watcher"
	"github.com/sirupsen/logrus"
)

// tempFileAge is how old an orphaned list temp file must be before a sync pass removes it.
const tempFileAge = time.Hour

// Mailbox is one process's handle on a maildir's uid list.
type Mailbox struct {
	dir      string
	store    *store.Store
	scanner  maildir.Scanner
	policy   reconcile.Policy
	lockOpts dotlock.Options
	reporter reporter.Reporter
	sender   observability.Sender
	log      *logrus.Entry

	// view is the last loaded or committed list. It is replaced, never mutated.
	view atomic.Pointer[view]

	// syncLock serializes this process's sync passes and reloads.
	syncLock sync.Mutex

	// held is the lock taken by TryLock, if any.
	held     *dotlock.Handle
	heldLock sync.Mutex

	watchers     []*watcher.Watcher[events.Event]
	watchersLock sync.RWMutex

	stopAutoSync context.CancelFunc
	wg           wait.Group
	closed       atomic.Bool
}

type view struct {
	tbl    *table.Table
	snap   *table.Snapshot
	marker store.Marker

	// recovery is set while tbl is a rebuild of a corrupt list that has not been committed yet.
	recovery *recovery
}

type recovery struct {
	salvaged       imap.UID
	oldUIDValidity imap.UID
}

func newView(tbl *table.Table, marker store.Marker, recovery *recovery) *view {
	return &view{
		tbl:      tbl,
		snap:     tbl.Snapshot(),
		marker:   marker,
		recovery: recovery,
	}
}

// Open loads the uid list of the maildir at dir. A missing list is not an error;
// it is created by the first sync. A corrupt list is rebuilt from a directory scan,
// with a new UIDVALIDITY, as soon as the lock can be taken.
func Open(dir string, options ...Option) (*Mailbox, error) {
	builder := newBuilder(dir)

	for _, opt := range options {
		opt.config(builder)
	}

	mailbox, err := builder.build()
	if err != nil {
		return nil, err
	}

	ctx := mailbox.metricContext(context.Background())

	v, err := mailbox.load(ctx)
	if err != nil {
		return nil, err
	}

	mailbox.view.Store(v)

	if v.recovery != nil {
		if _, err := mailbox.Sync(ctx); err != nil && !IsWouldBlock(err) {
			return nil, fmt.Errorf("failed to rebuild corrupt uid list: %w", err)
		}
	}

	if builder.autoSync > 0 {
		if err := mailbox.startAutoSync(builder.autoSync); err != nil {
			return nil, err
		}
	}

	return mailbox, nil
}

func (m *Mailbox) Dir() string {
	return m.dir
}

// Snapshot returns the current immutable view of the list. It never blocks.
func (m *Mailbox) Snapshot() *Snapshot {
	return m.view.Load().snap
}

// Refresh reloads the list if another process replaced it since it was last read.
// It does not take the lock. If the file on disk is unreadable, the current snapshot is kept.
func (m *Mailbox) Refresh() (bool, error) {
	if m.closed.Load() {
		return false, ErrClosed
	}

	m.syncLock.Lock()
	defer m.syncLock.Unlock()

	ctx := m.metricContext(context.Background())

	return m.refresh(ctx)
}

func (m *Mailbox) refresh(ctx context.Context) (bool, error) {
	fresh, err := m.store.Fresh(m.view.Load().marker)
	if err != nil {
		return false, err
	} else if fresh {
		return false, nil
	}

	v, err := m.load(ctx)
	if err != nil {
		return false, err
	}

	if v.recovery != nil {
		return false, fmt.Errorf("uid list was replaced by an unreadable one: %w", ErrCorruptFormat)
	}

	m.view.Store(v)

	m.publish(events.ListReloaded{Dir: m.dir, NextUID: v.tbl.NextUID})

	return true, nil
}

// Sync runs one sync pass: it scans the maildir, assigns UIDs to new files, retires
// confirmed-missing ones and commits the list if anything changed. If another process
// holds the lock, ErrWouldBlock is returned and the current snapshot stays in place.
func (m *Mailbox) Sync(ctx context.Context, options ...SyncOption) (SyncResult, error) {
	if m.closed.Load() {
		return SyncResult{}, ErrClosed
	}

	var cfg syncConfig

	for _, opt := range options {
		opt.configSync(&cfg)
	}

	m.syncLock.Lock()
	defer m.syncLock.Unlock()

	var (
		res SyncResult
		err error
	)

	logging.DoAnnotate(m.metricContext(ctx), func(ctx context.Context) {
		res, err = m.sync(ctx, cfg)
	}, logging.Labels{"mailbox": m.dir})

	if err != nil {
		if IsWouldBlock(err) {
			m.log.WithError(err).Debug("Sync skipped")
		}

		m.publish(events.SyncSkipped{Dir: m.dir, Error: err})
	}

	return res, err
}

func (m *Mailbox) sync(ctx context.Context, cfg syncConfig) (SyncResult, error) {
	if err := ctx.Err(); err != nil {
		return SyncResult{}, err
	}

	lock, release, err := m.acquire(ctx)
	if err != nil {
		return SyncResult{}, err
	}

	defer release()

	if _, err := m.refreshLocked(ctx); err != nil {
		return SyncResult{}, err
	}

	cur := m.view.Load()

	listing, err := m.scanner.Scan(ctx)
	if err != nil {
		return SyncResult{}, fmt.Errorf("failed to scan maildir: %w", err)
	}

	policy := m.policy
	policy.ForceRemove = cfg.forceRemove

	tbl := cur.tbl.Clone()

	res, err := reconcile.Reconcile(tbl, listing, policy)
	if err != nil {
		if IsInconsistentState(err) {
			m.reportInconsistent(ctx, err)
		}

		return SyncResult{}, err
	}

	if !res.Changed && cur.recovery == nil {
		return res, nil
	}

	marker, err := m.store.Commit(lock, cur.marker, tbl)
	if err != nil {
		observability.AddListMetric(ctx, metrics.GenerateFailedCommitMetric())

		return SyncResult{}, fmt.Errorf("failed to commit uid list: %w", err)
	}

	res.Changed = true

	m.view.Store(newView(tbl, marker, nil))

	if cur.recovery != nil {
		m.log.WithField("uidValidity", tbl.UIDValidity).WithField("nextUID", tbl.NextUID).Warn("Rebuilt corrupt uid list")

		m.publish(events.ListRecovered{
			Dir:            m.dir,
			Salvaged:       cur.recovery.salvaged,
			OldUIDValidity: cur.recovery.oldUIDValidity,
			NewUIDValidity: tbl.UIDValidity,
		})
	}

	m.log.WithFields(logrus.Fields{
		"added":   len(res.Added),
		"retired": len(res.Retired),
		"missing": len(res.Missing),
		"updated": len(res.Updated),
	}).Debug("Committed uid list")

	m.publish(events.SyncCompleted{
		Dir:     m.dir,
		NextUID: tbl.NextUID,
		Added:   res.Added,
		Retired: res.Retired,
		Missing: res.Missing,
		Updated: res.Updated,
	})

	if n, err := m.store.Sweep(lock, tempFileAge); err != nil {
		m.log.WithError(err).Warn("Failed to remove stale temp files")
	} else if n > 0 {
		m.log.WithField("count", n).Info("Removed stale temp files")
	}

	return res, nil
}

// refreshLocked reloads the list if needed while the lock is held. Unlike Refresh,
// an unreadable list is swapped in as a pending rebuild, since the caller is about to commit.
func (m *Mailbox) refreshLocked(ctx context.Context) (bool, error) {
	fresh, err := m.store.Fresh(m.view.Load().marker)
	if err != nil {
		return false, err
	} else if fresh {
		return false, nil
	}

	v, err := m.load(ctx)
	if err != nil {
		return false, err
	}

	m.view.Store(v)

	if v.recovery == nil {
		m.publish(events.ListReloaded{Dir: m.dir, NextUID: v.tbl.NextUID})
	}

	return true, nil
}

// acquire returns the lock for a sync pass and the function that gives it back.
// A lock taken with TryLock is reused and kept.
func (m *Mailbox) acquire(ctx context.Context) (*dotlock.Handle, func(), error) {
	m.heldLock.Lock()
	defer m.heldLock.Unlock()

	if m.held != nil {
		if err := m.held.Touch(); err != nil {
			m.held = nil
			return nil, nil, fmt.Errorf("explicit lock was lost: %w", err)
		}

		return m.held, func() {}, nil
	}

	lock, err := m.tryAcquire(ctx)
	if err != nil {
		return nil, nil, err
	}

	return lock, func() {
		if err := lock.Release(); err != nil {
			m.log.WithError(err).Warn("Failed to release uid list lock")
		}
	}, nil
}

func (m *Mailbox) tryAcquire(ctx context.Context) (*dotlock.Handle, error) {
	lock, err := dotlock.TryAcquire(m.store.LockPath(), m.lockOpts)
	if err != nil {
		return nil, err
	}

	if lock.Reclaimed() {
		observability.AddLockMetric(ctx, metrics.GenerateStaleLockReclaimedMetric())

		m.publish(events.LockReclaimed{Dir: m.dir, Owner: lock.Owner().String()})
	}

	return lock, nil
}

// TryLock takes the mailbox lock and keeps it until Unlock or Close.
// Sync passes run in between reuse it. It returns ErrWouldBlock if another owner holds it.
func (m *Mailbox) TryLock() error {
	if m.closed.Load() {
		return ErrClosed
	}

	m.heldLock.Lock()
	defer m.heldLock.Unlock()

	if m.held != nil && m.held.Held() {
		return nil
	}

	lock, err := m.tryAcquire(m.metricContext(context.Background()))
	if err != nil {
		return err
	}

	m.held = lock

	return nil
}

// Unlock releases the lock taken by TryLock. It returns ErrLockNotHeld if there is none.
func (m *Mailbox) Unlock() error {
	m.heldLock.Lock()
	defer m.heldLock.Unlock()

	if m.held == nil {
		return ErrLockNotHeld
	}

	lock := m.held
	m.held = nil

	return lock.Release()
}

// Deliver writes a message into new/ and runs a sync pass so it gets a UID right away.
// If the lock is busy the message is still delivered; it gets its UID on a later pass and
// the error is ErrWouldBlock.
func (m *Mailbox) Deliver(ctx context.Context, r io.Reader) (SyncResult, error) {
	if m.closed.Load() {
		return SyncResult{}, ErrClosed
	}

	if err := maildir.Deliver(ctx, m.dir, r); err != nil {
		return SyncResult{}, err
	}

	return m.Sync(ctx)
}

// OpenMessage opens the file of the message with the given UID.
func (m *Mailbox) OpenMessage(uid imap.UID) (io.ReadCloser, error) {
	entry, ok := m.Snapshot().ByUID(uid)
	if !ok {
		return nil, fmt.Errorf("uid %v: %w", uid, ErrNoSuchMessage)
	}

	return maildir.Open(m.dir, entry.Filename, entry.Hint)
}

// AddWatcher returns a channel of the mailbox's events of the given types, or of all events if none are given.
// The channel is closed when the mailbox is closed.
func (m *Mailbox) AddWatcher(ofType ...events.Event) <-chan events.Event {
	m.watchersLock.Lock()
	defer m.watchersLock.Unlock()

	w := watcher.New(ofType...)

	if m.closed.Load() {
		w.Close()
	} else {
		m.watchers = append(m.watchers, w)
	}

	return w.GetChannel()
}

func (m *Mailbox) publish(event events.Event) {
	m.watchersLock.RLock()
	defer m.watchersLock.RUnlock()

	for _, w := range m.watchers {
		if w.IsWatching(event) {
			if ok := w.Send(event); !ok {
				m.log.WithField("event", fmt.Sprintf("%T", event)).Warn("Failed to send event to watcher")
			}
		}
	}
}

// Close stops background syncing, releases a lock taken with TryLock and closes all watchers.
func (m *Mailbox) Close() error {
	if m.closed.Swap(true) {
		return nil
	}

	if m.stopAutoSync != nil {
		m.stopAutoSync()
	}

	m.wg.Wait()

	var err error

	m.heldLock.Lock()

	if m.held != nil {
		err = m.held.Release()
		m.held = nil
	}

	m.heldLock.Unlock()

	m.watchersLock.Lock()
	defer m.watchersLock.Unlock()

	for _, w := range m.watchers {
		w.Close()
	}

	m.watchers = nil

	return err
}

// load reads the list from disk and turns the benign failures into a usable view.
func (m *Mailbox) load(ctx context.Context) (*view, error) {
	tbl, marker, err := m.store.Load()

	var corrupt *store.CorruptError

	switch {
	case err == nil:
		return newView(tbl, marker, nil), nil

	case errors.Is(err, store.ErrNotFound):
		tbl, err := m.store.Empty(0, 0)
		if err != nil {
			return nil, err
		}

		return newView(tbl, marker, nil), nil

	case errors.As(err, &corrupt):
		m.log.WithError(err).WithField("salvaged", corrupt.Salvaged).Error("UID list is corrupt, rebuilding it from a directory scan")

		observability.AddListMetric(ctx, metrics.GenerateCorruptListMetric())

		reporter.MessageWithContext(m.reporter, "Corrupt uid list", reporter.Context{
			"mailbox":  m.dir,
			"error":    err.Error(),
			"salvaged": corrupt.Salvaged,
		})

		tbl, err := m.store.Empty(corrupt.Salvaged, corrupt.UIDValidity)
		if err != nil {
			return nil, err
		}

		return newView(tbl, marker, &recovery{salvaged: corrupt.Salvaged, oldUIDValidity: corrupt.UIDValidity}), nil

	case errors.Is(err, table.ErrInconsistentState):
		m.reportInconsistent(ctx, err)

		return nil, err

	default:
		return nil, err
	}
}

func (m *Mailbox) reportInconsistent(ctx context.Context, err error) {
	m.log.WithError(err).Error("UID list is inconsistent")

	observability.AddListMetric(ctx, metrics.GenerateInconsistentListMetric())

	reporter.ExceptionWithContext(m.reporter, err, reporter.Context{"mailbox": m.dir})
}

func (m *Mailbox) metricContext(ctx context.Context) context.Context {
	if m.sender == nil {
		return ctx
	}

	return observability.NewContextWithObservabilitySender(ctx, m.sender)
}
