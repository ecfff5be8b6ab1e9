// Package maildir is the boundary between the uid list and the message files it indexes.
package maildir

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ProtonMail/uidlist/internal/table"
	gomaildir "github.com/emersion/go-maildir"
)

// Init creates dir along with its tmp/, new/ and cur/ subdirectories if they are missing.
func Init(dir string) error {
	if _, err := os.Stat(Dir(dir).Path(table.HintCur)); err == nil {
		return nil
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create maildir: %w", err)
	}

	if err := gomaildir.Dir(dir).Init(); err != nil {
		return fmt.Errorf("failed to init maildir: %w", err)
	}

	return nil
}

// Deliver writes a message into new/ through tmp/, the way a delivery agent does.
func Deliver(ctx context.Context, dir string, r io.Reader) error {
	delivery, err := gomaildir.NewDelivery(dir)
	if err != nil {
		return fmt.Errorf("failed to start delivery: %w", err)
	}

	if _, err := io.Copy(delivery, &contextReader{ctx: ctx, r: r}); err != nil {
		if abortErr := delivery.Abort(); abortErr != nil {
			return fmt.Errorf("failed to abort delivery: %v - original error: %w", abortErr, err)
		}

		return fmt.Errorf("failed to write message: %w", err)
	}

	if err := delivery.Close(); err != nil {
		return fmt.Errorf("failed to finish delivery: %w", err)
	}

	return nil
}

// Open opens the message file named name, looking in the subdirectory it was last seen in first.
// If it is in neither, the file may have been renamed by a flag change; the key is used to find it.
func Open(dir string, name string, hint table.Hint) (io.ReadCloser, error) {
	other := table.HintNew
	if hint == table.HintNew {
		other = table.HintCur
	}

	for _, hint := range []table.Hint{hint, other} {
		f, err := os.Open(filepath.Join(Dir(dir).Path(hint), name))
		if err == nil {
			return f, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	msg, err := gomaildir.Dir(dir).MessageByKey(table.Key(name))
	if err != nil {
		return nil, fmt.Errorf("message %v: %w", name, err)
	}

	return msg.Open()
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *contextReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}

	return r.r.Read(p)
}
