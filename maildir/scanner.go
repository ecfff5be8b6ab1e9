package maildir

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ProtonMail/uidlist/internal/table"
	"golang.org/x/sync/errgroup"
)

//go:generate mockgen -destination mock_maildir/scanner.go . Scanner

var ErrNotMaildir = errors.New("not a maildir")

// Scanner lists the message files of a mailbox.
type Scanner interface {
	Scan(ctx context.Context) (Listing, error)
}

// Dir is the path of a maildir on disk.
type Dir string

func (d Dir) Path(hint table.Hint) string {
	return filepath.Join(string(d), hint.String())
}

// Scan lists new/ and cur/ concurrently. Directories and dotfiles are skipped.
func (d Dir) Scan(ctx context.Context) (Listing, error) {
	var newFiles, curFiles Listing

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		files, err := d.list(ctx, table.HintNew)
		newFiles = files

		return err
	})

	group.Go(func() error {
		files, err := d.list(ctx, table.HintCur)
		curFiles = files

		return err
	})

	if err := group.Wait(); err != nil {
		return nil, err
	}

	return append(newFiles, curFiles...), nil
}

func (d Dir) list(ctx context.Context, hint table.Hint) (Listing, error) {
	entries, err := os.ReadDir(d.Path(hint))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %v is missing", ErrNotMaildir, d.Path(hint))
	} else if err != nil {
		return nil, fmt.Errorf("failed to read %v: %w", d.Path(hint), err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	files := make(Listing, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		files = append(files, File{Name: entry.Name(), Hint: hint})
	}

	return files, nil
}
