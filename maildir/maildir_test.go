package maildir

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/ProtonMail/uidlist/imap"
	"github.com/ProtonMail/uidlist/internal/table"
	"github.com/stretchr/testify/require"
)

func newMaildir(t *testing.T) string {
	dir := filepath.Join(t.TempDir(), "INBOX")
	require.NoError(t, Init(dir))

	return dir
}

func touch(t *testing.T, dir string, hint table.Hint, name string) {
	require.NoError(t, os.WriteFile(filepath.Join(Dir(dir).Path(hint), name), []byte("Subject: "+name+"\r\n\r\n"), 0o600))
}

func TestInit(t *testing.T) {
	dir := newMaildir(t)

	for _, sub := range []string{"tmp", "new", "cur"} {
		require.DirExists(t, filepath.Join(dir, sub))
	}

	// Initialising twice is harmless.
	require.NoError(t, Init(dir))
}

func TestScan(t *testing.T) {
	dir := newMaildir(t)

	touch(t, dir, table.HintNew, "b")
	touch(t, dir, table.HintCur, "a:2,S")
	touch(t, dir, table.HintCur, ".hidden")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "cur", "sub"), 0o700))

	listing, err := Dir(dir).Scan(context.Background())
	require.NoError(t, err)

	require.Equal(t, Listing{
		{Name: "a:2,S", Hint: table.HintCur},
		{Name: "b", Hint: table.HintNew},
	}, listing.Sorted())

	require.Equal(t, []string{"b"}, listing.In(table.HintNew).Names())
}

func TestScanNotMaildir(t *testing.T) {
	_, err := Dir(t.TempDir()).Scan(context.Background())
	require.ErrorIs(t, err, ErrNotMaildir)
}

func TestScanCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Dir(newMaildir(t)).Scan(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDeliver(t *testing.T) {
	dir := newMaildir(t)

	require.NoError(t, Deliver(context.Background(), dir, bytes.NewReader([]byte("Subject: hi\r\n\r\nbody"))))

	listing, err := Dir(dir).Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, listing, 1)
	require.Equal(t, table.HintNew, listing[0].Hint)

	tmp, err := os.ReadDir(filepath.Join(dir, "tmp"))
	require.NoError(t, err)
	require.Empty(t, tmp)

	rc, err := Open(dir, listing[0].Name, table.HintCur)
	require.NoError(t, err)
	defer func() { require.NoError(t, rc.Close()) }()

	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "Subject: hi\r\n\r\nbody", string(b))
}

func TestDeliverCanceled(t *testing.T) {
	dir := newMaildir(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, Deliver(ctx, dir, bytes.NewReader([]byte("x"))), context.Canceled)

	listing, err := Dir(dir).Scan(context.Background())
	require.NoError(t, err)
	require.Empty(t, listing)
}

func TestOpenRenamed(t *testing.T) {
	dir := newMaildir(t)

	touch(t, dir, table.HintCur, "1.2.host:2,RS")

	rc, err := Open(dir, "1.2.host:2,S", table.HintCur)
	require.NoError(t, err)
	require.NoError(t, rc.Close())

	_, err = Open(dir, "missing", table.HintCur)
	require.Error(t, err)
}

func TestFlags(t *testing.T) {
	require.Equal(t, imap.NewFlagSet(imap.FlagSeen, imap.FlagAnswered), Flags("k:2,RS", table.HintCur))
	require.Equal(t, imap.NewFlagSet(imap.FlagRecent), Flags("k", table.HintNew))
	require.Equal(t, imap.NewFlagSet(imap.FlagFlagged, imap.FlagDraft, imap.FlagDeleted), Flags("k:2,DFTx", table.HintCur))
	require.Equal(t, imap.NewFlagSet(), Flags("k:1,S", table.HintCur))
}
