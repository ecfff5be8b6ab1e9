package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ProtonMail/uidlist/imap"
	"github.com/ProtonMail/uidlist/internal/codec"
	"github.com/ProtonMail/uidlist/internal/dotlock"
	"github.com/ProtonMail/uidlist/internal/table"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	FileName = "uidlist"
	LockName = FileName + ".lock"

	tempPattern = FileName + ".*.tmp"
)

var (
	ErrNotFound      = errors.New("uid list does not exist")
	ErrStale         = errors.New("uid list changed since it was loaded")
	ErrLockNotHeld   = errors.New("uid list lock is not held")
	ErrCorruptFormat = codec.ErrCorruptFormat
)

// CorruptError is returned by Load when the list cannot be parsed.
// Salvaged is the highest UID that could still be read from it, UIDValidity the
// UIDVALIDITY it recorded, if readable.
type CorruptError struct {
	Salvaged    imap.UID
	UIDValidity imap.UID

	err error
}

func (e *CorruptError) Error() string {
	return e.err.Error()
}

func (e *CorruptError) Unwrap() error {
	return e.err
}

type Store struct {
	dir  string
	gen  imap.UIDValidityGenerator
	mode os.FileMode
}

func New(dir string, opts ...Option) *Store {
	store := &Store{
		dir:  dir,
		gen:  imap.DefaultEpochUIDValidityGenerator(),
		mode: 0o600,
	}

	for _, opt := range opts {
		opt.config(store)
	}

	return store
}

func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) Path() string {
	return filepath.Join(s.dir, FileName)
}

func (s *Store) LockPath() string {
	return filepath.Join(s.dir, LockName)
}

// Load reads and parses the list file.
// A missing file yields ErrNotFound, an unparsable one a *CorruptError.
// The marker is valid whenever the file exists, even if it could not be parsed.
func (s *Store) Load() (*table.Table, Marker, error) {
	f, err := os.Open(s.Path())
	if errors.Is(err, os.ErrNotExist) {
		return nil, Marker{}, ErrNotFound
	} else if err != nil {
		return nil, Marker{}, fmt.Errorf("failed to open uid list: %w", err)
	}

	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, Marker{}, fmt.Errorf("failed to stat uid list: %w", err)
	}

	b, err := io.ReadAll(f)
	if err != nil {
		return nil, Marker{}, fmt.Errorf("failed to read uid list: %w", err)
	}

	marker := Marker{info: info}

	tbl, err := codec.Parse(b)
	if errors.Is(err, codec.ErrCorruptFormat) {
		return nil, marker, &CorruptError{Salvaged: codec.Salvage(b), UIDValidity: codec.SalvageUIDValidity(b), err: err}
	} else if err != nil {
		return nil, marker, err
	}

	return tbl, marker, nil
}

// Empty returns a new list whose UIDs start above highest.
// Its UIDVALIDITY is strictly greater than prev.
func (s *Store) Empty(highest, prev imap.UID) (*table.Table, error) {
	if highest == imap.MaxUID {
		return nil, fmt.Errorf("cannot start a list above uid %v", highest)
	}

	validity, err := s.gen.Generate(prev)
	if err != nil {
		return nil, fmt.Errorf("failed to generate uid validity: %w", err)
	}

	tbl := table.New()
	tbl.UIDValidity = validity
	tbl.NextUID = highest + 1
	tbl.GUID = strings.ReplaceAll(uuid.NewString(), "-", "")

	return tbl, nil
}

// Fresh reports whether the list file is still the version the marker was taken from.
func (s *Store) Fresh(marker Marker) (bool, error) {
	info, err := os.Stat(s.Path())
	if errors.Is(err, os.ErrNotExist) {
		return marker.Absent(), nil
	} else if err != nil {
		return false, fmt.Errorf("failed to stat uid list: %w", err)
	}

	return marker.Matches(info), nil
}

// Commit atomically replaces the list file with tbl.
// The caller must hold lock, and marker must still describe the file on disk;
// otherwise ErrLockNotHeld or ErrStale is returned and nothing is written.
func (s *Store) Commit(lock *dotlock.Handle, marker Marker, tbl *table.Table) (Marker, error) {
	if lock == nil || lock.Path() != s.LockPath() || !lock.Held() {
		return Marker{}, ErrLockNotHeld
	}

	if fresh, err := s.Fresh(marker); err != nil {
		return Marker{}, err
	} else if !fresh {
		return Marker{}, ErrStale
	}

	if err := tbl.Validate(); err != nil {
		return Marker{}, err
	}

	if err := s.writeFile(codec.Serialize(tbl)); err != nil {
		return Marker{}, err
	}

	info, err := os.Stat(s.Path())
	if err != nil {
		return Marker{}, fmt.Errorf("failed to stat uid list: %w", err)
	}

	return Marker{info: info}, nil
}

func (s *Store) writeFile(b []byte) error {
	tmp, err := os.CreateTemp(s.dir, tempPattern)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	success := false

	defer func() {
		if !success {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := tmp.Chmod(s.mode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.Path()); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true

	return syncDir(s.dir)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("failed to open directory: %w", err)
	}

	defer func() { _ = d.Close() }()

	if err := d.Sync(); err != nil {
		logrus.WithError(err).WithField("dir", dir).Debug("Directory sync not supported")
	}

	return nil
}

// Sweep removes temp files left behind by writers that died before renaming them.
// Only files older than age are touched, and the caller must hold lock.
func (s *Store) Sweep(lock *dotlock.Handle, age time.Duration) (int, error) {
	if lock == nil || !lock.Held() {
		return 0, ErrLockNotHeld
	}

	matches, err := filepath.Glob(filepath.Join(s.dir, tempPattern))
	if err != nil {
		return 0, err
	}

	var removed int

	// Lock temp files (uidlist.lock.<token>.tmp) match too. An acquirer removes its own
	// within moments, so only ones abandoned by a crash are old enough to go.
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || time.Since(info.ModTime()) < age {
			continue
		}

		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("failed to remove stale temp file: %w", err)
		}

		logrus.WithField("path", path).Info("Removed stale uid list temp file")

		removed++
	}

	return removed, nil
}
