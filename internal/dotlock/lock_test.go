package dotlock

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bradenaw/juniper/parallel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lockPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "uidlist.lock")
}

func age(t *testing.T, path string, by time.Duration) {
	then := time.Now().Add(-by)
	require.NoError(t, os.Chtimes(path, then, then))
}

func writeOwner(t *testing.T, path string, owner Owner) {
	b, err := json.Marshal(owner)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
}

func TestAcquireRelease(t *testing.T) {
	path := lockPath(t)

	handle, err := TryAcquire(path, Options{})
	require.NoError(t, err)
	require.False(t, handle.Reclaimed())
	require.True(t, handle.Held())

	owner, err := ReadOwner(path)
	require.NoError(t, err)
	require.Equal(t, handle.Owner().Token, owner.Token)
	require.Equal(t, os.Getpid(), owner.PID)

	require.NoError(t, handle.Release())
	require.False(t, handle.Held())
	require.NoFileExists(t, path)

	// Releasing twice is harmless.
	require.NoError(t, handle.Release())

	// No temp files are left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestYoungLockWouldBlock(t *testing.T) {
	path := lockPath(t)

	first, err := TryAcquire(path, Options{})
	require.NoError(t, err)

	_, err = TryAcquire(path, Options{})
	require.ErrorIs(t, err, ErrWouldBlock)

	require.True(t, first.Held())
	require.NoError(t, first.Release())
}

func TestStaleLockReclaimed(t *testing.T) {
	path := lockPath(t)

	first, err := TryAcquire(path, Options{})
	require.NoError(t, err)

	age(t, path, 3*time.Minute)

	second, err := TryAcquire(path, Options{})
	require.NoError(t, err)
	require.True(t, second.Reclaimed())
	require.True(t, second.Held())
	require.False(t, first.Held())

	// The evicted owner must not remove the new owner's lock.
	require.ErrorIs(t, first.Release(), ErrNotOwner)
	require.True(t, second.Held())

	require.NoError(t, second.Release())
}

func TestStaleAfterOption(t *testing.T) {
	path := lockPath(t)

	_, err := TryAcquire(path, Options{})
	require.NoError(t, err)

	age(t, path, 10*time.Second)

	_, err = TryAcquire(path, Options{})
	require.ErrorIs(t, err, ErrWouldBlock)

	handle, err := TryAcquire(path, Options{StaleAfter: 5 * time.Second})
	require.NoError(t, err)
	require.True(t, handle.Reclaimed())
}

func TestClockOption(t *testing.T) {
	path := lockPath(t)

	_, err := TryAcquire(path, Options{})
	require.NoError(t, err)

	handle, err := TryAcquire(path, Options{Now: func() time.Time { return time.Now().Add(time.Hour) }})
	require.NoError(t, err)
	require.True(t, handle.Reclaimed())
}

func TestDeadOwnerReclaimed(t *testing.T) {
	path := lockPath(t)

	writeOwner(t, path, Owner{
		Token:      "dead",
		PID:        1 << 30,
		Hostname:   hostname(),
		AcquiredAt: time.Now(),
	})

	handle, err := TryAcquire(path, Options{})
	require.NoError(t, err)
	require.True(t, handle.Reclaimed())
	require.NoError(t, handle.Release())
}

func TestForeignHostNotJudgedByPID(t *testing.T) {
	path := lockPath(t)

	writeOwner(t, path, Owner{
		Token:      "remote",
		PID:        1 << 30,
		Hostname:   hostname() + ".elsewhere",
		AcquiredAt: time.Now(),
	})

	_, err := TryAcquire(path, Options{})
	require.ErrorIs(t, err, ErrWouldBlock)
}

func TestUnreadableLockJudgedByAge(t *testing.T) {
	path := lockPath(t)

	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))

	_, err := TryAcquire(path, Options{})
	require.ErrorIs(t, err, ErrWouldBlock)

	age(t, path, time.Hour)

	handle, err := TryAcquire(path, Options{})
	require.NoError(t, err)
	require.True(t, handle.Reclaimed())
}

func TestTouch(t *testing.T) {
	path := lockPath(t)

	handle, err := TryAcquire(path, Options{})
	require.NoError(t, err)

	age(t, path, time.Hour)
	require.NoError(t, handle.Touch())

	_, err = TryAcquire(path, Options{})
	require.ErrorIs(t, err, ErrWouldBlock)

	require.NoError(t, handle.Release())
	require.ErrorIs(t, handle.Touch(), ErrNotOwner)
}

func TestReleaseAfterRemoval(t *testing.T) {
	path := lockPath(t)

	handle, err := TryAcquire(path, Options{})
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))
	require.ErrorIs(t, handle.Release(), ErrNotOwner)
}

func TestConcurrentAcquireSingleWinner(t *testing.T) {
	path := lockPath(t)

	var winners atomic.Int32

	parallel.Do(0, 16, func(int) {
		if _, err := TryAcquire(path, Options{}); err == nil {
			winners.Add(1)
		} else {
			assert.ErrorIs(t, err, ErrWouldBlock)
		}
	})

	require.Equal(t, int32(1), winners.Load())
}

func TestProcessAlive(t *testing.T) {
	require.True(t, processAlive(os.Getpid()))
	require.True(t, processAlive(0))
}
