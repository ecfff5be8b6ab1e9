// Package dotlock implements a non-blocking exclusive lock that only relies on
// atomic link and rename, so it also works on network filesystems shared by
// processes that know nothing of each other.
package dotlock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultStaleAfter is how old a lock file must be before it may be taken over.
const DefaultStaleAfter = 2 * time.Minute

var (
	// ErrWouldBlock is returned when the lock is held by a live owner.
	ErrWouldBlock = errors.New("lock is held by another owner")

	// ErrNotOwner is returned when releasing a lock that was taken over by someone else.
	ErrNotOwner = errors.New("lock is not owned by this handle")
)

// attempts bounds the retries after losing a race against another acquirer or reclaimer.
const attempts = 3

type Options struct {
	// StaleAfter overrides DefaultStaleAfter.
	StaleAfter time.Duration

	// Now overrides time.Now.
	Now func() time.Time
}

func (o Options) staleAfter() time.Duration {
	if o.StaleAfter <= 0 {
		return DefaultStaleAfter
	}

	return o.StaleAfter
}

func (o Options) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}

	return o.Now()
}

// Handle is an acquired lock.
type Handle struct {
	path      string
	owner     Owner
	reclaimed bool
	released  bool
}

// TryAcquire takes the lock at path without waiting.
// It returns ErrWouldBlock if a live owner holds it. A stale lock is taken over,
// in which case the returned handle reports Reclaimed.
func TryAcquire(path string, opts Options) (*Handle, error) {
	owner := newOwner(opts.now())

	tmp, err := writeTemp(path, owner)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := os.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
			logrus.WithError(err).WithField("path", tmp).Warn("Failed to remove lock temp file")
		}
	}()

	handle := &Handle{path: path, owner: owner}

	for i := 0; i < attempts; i++ {
		if err := os.Link(tmp, path); err == nil {
			return handle, nil
		} else if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("failed to create lock file: %w", err)
		}

		current, stale, err := inspect(path, opts)
		if errors.Is(err, os.ErrNotExist) {
			continue
		} else if err != nil {
			return nil, err
		}

		if !stale {
			return nil, fmt.Errorf("%w: %v", ErrWouldBlock, current)
		}

		ok, err := evict(path, owner.Token, opts)
		if err != nil {
			return nil, err
		} else if !ok {
			return nil, fmt.Errorf("%w: %v", ErrWouldBlock, current)
		}

		logrus.WithField("path", path).WithField("owner", current).Warn("Reclaiming stale lock")

		handle.reclaimed = true
	}

	return nil, fmt.Errorf("%w: lost acquisition race", ErrWouldBlock)
}

func writeTemp(path string, owner Owner) (string, error) {
	b, err := json.Marshal(owner)
	if err != nil {
		return "", fmt.Errorf("failed to marshal lock: %w", err)
	}

	tmp := fmt.Sprintf("%v.%v.tmp", path, owner.Token)

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("failed to create lock temp file: %w", err)
	}

	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)

		return "", fmt.Errorf("failed to write lock temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)

		return "", fmt.Errorf("failed to close lock temp file: %w", err)
	}

	return tmp, nil
}

// inspect reads the lock at path and reports whether it may be taken over.
func inspect(path string, opts Options) (Owner, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Owner{}, false, err
	}

	owner, err := ReadOwner(path)
	if errors.Is(err, os.ErrNotExist) {
		return Owner{}, false, err
	} else if err != nil {
		logrus.WithError(err).WithField("path", path).Warn("Unreadable lock owner, judging by age only")
	}

	if opts.now().Sub(info.ModTime()) > opts.staleAfter() {
		return owner, true, nil
	}

	if err == nil && owner.Hostname == hostname() && owner.PID != os.Getpid() && !processAlive(owner.PID) {
		return owner, true, nil
	}

	return owner, false, nil
}

// evict moves a stale lock out of the way. Only one of several concurrent reclaimers
// wins the rename; the winner re-checks staleness on the moved file and puts it back
// if it turned out to be a fresh lock that replaced the stale one in between.
func evict(path, token string, opts Options) (bool, error) {
	aside := fmt.Sprintf("%v.%v.stale", path, token)

	if err := os.Rename(path, aside); errors.Is(err, os.ErrNotExist) {
		return true, nil
	} else if err != nil {
		return false, fmt.Errorf("failed to move stale lock: %w", err)
	}

	defer func() {
		if err := os.Remove(aside); err != nil && !errors.Is(err, os.ErrNotExist) {
			logrus.WithError(err).WithField("path", aside).Warn("Failed to remove evicted lock")
		}
	}()

	_, stale, err := inspect(aside, opts)
	if err != nil {
		return false, err
	}

	if !stale {
		if err := os.Link(aside, path); err != nil && !errors.Is(err, os.ErrExist) {
			return false, fmt.Errorf("failed to restore live lock: %w", err)
		}

		return false, nil
	}

	return true, nil
}

// Reclaimed reports whether acquiring the lock evicted a stale owner.
func (h *Handle) Reclaimed() bool {
	return h.reclaimed
}

func (h *Handle) Owner() Owner {
	return h.owner
}

func (h *Handle) Path() string {
	return h.path
}

// Held reports whether the lock file still carries this handle's token.
func (h *Handle) Held() bool {
	if h == nil || h.released {
		return false
	}

	owner, err := ReadOwner(h.path)
	if err != nil {
		return false
	}

	return owner.Token == h.owner.Token
}

// Touch refreshes the lock's modification time so a long pass is not judged stale.
func (h *Handle) Touch() error {
	if !h.Held() {
		return ErrNotOwner
	}

	now := time.Now()

	if err := os.Chtimes(h.path, now, now); err != nil {
		return fmt.Errorf("failed to touch lock: %w", err)
	}

	return nil
}

// Release removes the lock if this handle still owns it.
// Releasing twice is a no-op.
func (h *Handle) Release() error {
	if h == nil || h.released {
		return nil
	}

	aside := fmt.Sprintf("%v.%v.release", h.path, h.owner.Token)

	if err := os.Rename(h.path, aside); errors.Is(err, os.ErrNotExist) {
		h.released = true
		return fmt.Errorf("%w: lock file is gone", ErrNotOwner)
	} else if err != nil {
		return fmt.Errorf("failed to move lock: %w", err)
	}

	h.released = true

	defer func() {
		if err := os.Remove(aside); err != nil && !errors.Is(err, os.ErrNotExist) {
			logrus.WithError(err).WithField("path", aside).Warn("Failed to remove released lock")
		}
	}()

	owner, err := ReadOwner(aside)
	if err == nil && owner.Token == h.owner.Token {
		return nil
	}

	if err := os.Link(aside, h.path); err != nil && !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("failed to restore foreign lock: %w", err)
	}

	return fmt.Errorf("%w: held by %v", ErrNotOwner, owner)
}
