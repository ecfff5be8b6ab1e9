package reconcile

import (
	"testing"

	"github.com/ProtonMail/uidlist/imap"
	"github.com/ProtonMail/uidlist/internal/codec"
	"github.com/ProtonMail/uidlist/internal/table"
	"github.com/ProtonMail/uidlist/limits"
	"github.com/ProtonMail/uidlist/maildir"
	"github.com/stretchr/testify/require"
)

func inCur(name string) maildir.File {
	return maildir.File{Name: name, Hint: table.HintCur}
}

func inNew(name string) maildir.File {
	return maildir.File{Name: name, Hint: table.HintNew}
}

func entries(tbl *table.Table) map[imap.UID]string {
	res := make(map[imap.UID]string)

	for i := 0; i < tbl.Len(); i++ {
		res[tbl.At(i).UID] = tbl.At(i).Filename
	}

	return res
}

func TestReconcile_EmptyMailbox(t *testing.T) {
	tbl := table.New()

	res, err := Reconcile(tbl, maildir.Listing{inCur("msg1"), inNew("msg2")}, Policy{})
	require.NoError(t, err)
	require.True(t, res.Changed)
	require.Equal(t, []imap.UID{1, 2}, res.Added)

	require.Equal(t, imap.UID(3), tbl.NextUID)
	require.Equal(t, table.HintCur, tbl.At(0).Hint)
	require.Equal(t, "msg1", tbl.At(0).Filename)
	require.Equal(t, table.HintNew, tbl.At(1).Hint)
	require.Equal(t, "msg2", tbl.At(1).Filename)
}

func TestReconcile_GraceThenRetire(t *testing.T) {
	tbl := table.New()

	_, err := Reconcile(tbl, maildir.Listing{inCur("a"), inCur("b")}, Policy{})
	require.NoError(t, err)

	// First pass without a: tentatively missing only.
	res, err := Reconcile(tbl, maildir.Listing{inCur("b")}, Policy{})
	require.NoError(t, err)
	require.True(t, res.Changed)
	require.Equal(t, []imap.UID{1}, res.Missing)
	require.Empty(t, res.Retired)
	require.Equal(t, map[imap.UID]string{1: "a", 2: "b"}, entries(tbl))
	require.Equal(t, 1, tbl.At(0).Missed)

	// Confirming pass: retired.
	res, err = Reconcile(tbl, maildir.Listing{inCur("b")}, Policy{})
	require.NoError(t, err)
	require.Equal(t, []imap.UID{1}, res.Retired)
	require.Equal(t, map[imap.UID]string{2: "b"}, entries(tbl))

	// A new file with the old name gets a fresh uid.
	res, err = Reconcile(tbl, maildir.Listing{inCur("a"), inCur("b")}, Policy{})
	require.NoError(t, err)
	require.Equal(t, []imap.UID{3}, res.Added)
	require.Equal(t, map[imap.UID]string{2: "b", 3: "a"}, entries(tbl))
}

func TestReconcile_MissingOnceNeverRetired(t *testing.T) {
	tbl := table.New()

	_, err := Reconcile(tbl, maildir.Listing{inCur("a"), inCur("b")}, Policy{})
	require.NoError(t, err)

	_, err = Reconcile(tbl, maildir.Listing{inCur("b")}, Policy{})
	require.NoError(t, err)

	res, err := Reconcile(tbl, maildir.Listing{inCur("a"), inCur("b")}, Policy{})
	require.NoError(t, err)
	require.Equal(t, []imap.UID{1}, res.Updated)
	require.Zero(t, tbl.At(0).Missed)

	// The counter starts over, so another single miss does not retire either.
	res, err = Reconcile(tbl, maildir.Listing{inCur("b")}, Policy{})
	require.NoError(t, err)
	require.Empty(t, res.Retired)
	require.Equal(t, map[imap.UID]string{1: "a", 2: "b"}, entries(tbl))
}

func TestReconcile_ConfirmScansPolicy(t *testing.T) {
	tbl := table.New()

	_, err := Reconcile(tbl, maildir.Listing{inCur("a")}, Policy{})
	require.NoError(t, err)

	res, err := Reconcile(tbl, nil, Policy{ConfirmScans: 1})
	require.NoError(t, err)
	require.Equal(t, []imap.UID{1}, res.Retired)

	tbl = table.New()

	_, err = Reconcile(tbl, maildir.Listing{inCur("a")}, Policy{})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		res, err = Reconcile(tbl, nil, Policy{ConfirmScans: 3})
		require.NoError(t, err)
		require.Empty(t, res.Retired)
	}

	res, err = Reconcile(tbl, nil, Policy{ConfirmScans: 3})
	require.NoError(t, err)
	require.Equal(t, []imap.UID{1}, res.Retired)
}

func TestReconcile_ForceRemove(t *testing.T) {
	tbl := table.New()

	_, err := Reconcile(tbl, maildir.Listing{inCur("a:2,S"), inCur("b"), inCur("c")}, Policy{})
	require.NoError(t, err)

	// Forcing a present file has no effect; forcing a missing one retires it at once.
	res, err := Reconcile(tbl, maildir.Listing{inCur("b")}, Policy{ForceRemove: []string{"a", "b"}})
	require.NoError(t, err)
	require.Equal(t, []imap.UID{1}, res.Retired)
	require.Equal(t, []imap.UID{3}, res.Missing)
	require.Equal(t, map[imap.UID]string{2: "b", 3: "c"}, entries(tbl))
}

func TestReconcile_Idempotent(t *testing.T) {
	tbl := table.New()
	listing := maildir.Listing{inCur("x:2,S"), inNew("y"), inCur("z")}

	res, err := Reconcile(tbl, listing, Policy{})
	require.NoError(t, err)
	require.True(t, res.Changed)

	first := codec.Serialize(tbl)

	res, err = Reconcile(tbl, listing, Policy{})
	require.NoError(t, err)
	require.True(t, res.Unchanged())
	require.Equal(t, first, codec.Serialize(tbl))
}

func TestReconcile_FlagRenameAndMove(t *testing.T) {
	tbl := table.New()

	_, err := Reconcile(tbl, maildir.Listing{inNew("k"), inCur("j:2,")}, Policy{})
	require.NoError(t, err)

	res, err := Reconcile(tbl, maildir.Listing{inCur("k:2,S"), inCur("j:2,RS")}, Policy{})
	require.NoError(t, err)
	require.Empty(t, res.Added)
	require.ElementsMatch(t, []imap.UID{1, 2}, res.Updated)

	require.Equal(t, map[imap.UID]string{1: "j:2,RS", 2: "k:2,S"}, entries(tbl))
	require.Equal(t, table.HintCur, tbl.At(1).Hint)
}

func TestReconcile_AssignsInFilenameOrder(t *testing.T) {
	tbl := table.New()

	res, err := Reconcile(tbl, maildir.Listing{inCur("c"), inNew("a"), inCur("b")}, Policy{})
	require.NoError(t, err)
	require.Equal(t, []imap.UID{1, 2, 3}, res.Added)
	require.Equal(t, map[imap.UID]string{1: "a", 2: "b", 3: "c"}, entries(tbl))
}

func TestReconcile_DuplicateKeyPrefersCur(t *testing.T) {
	tbl := table.New()

	_, err := Reconcile(tbl, maildir.Listing{inNew("k"), inCur("k:2,S")}, Policy{})
	require.NoError(t, err)
	require.Equal(t, 1, tbl.Len())
	require.Equal(t, "k:2,S", tbl.At(0).Filename)
	require.Equal(t, table.HintCur, tbl.At(0).Hint)
}

func TestReconcile_DuplicateKeyLoserSkipped(t *testing.T) {
	tbl := table.New()

	res, err := Reconcile(tbl, maildir.Listing{inCur("k:2,S"), inNew("k"), inCur("k:2,RS")}, Policy{})
	require.NoError(t, err)
	require.Equal(t, []imap.UID{1}, res.Added)
	require.Equal(t, map[imap.UID]string{1: "k:2,RS"}, entries(tbl))
	require.ElementsMatch(t, []string{"k", "k:2,S"}, res.Skipped)
}

func TestReconcile_EmptyKeyNotStored(t *testing.T) {
	tbl := table.New()

	res, err := Reconcile(tbl, maildir.Listing{inCur(":a"), inCur(":b"), inCur("m")}, Policy{})
	require.NoError(t, err)
	require.Equal(t, []imap.UID{1}, res.Added)
	require.Equal(t, map[imap.UID]string{1: "m"}, entries(tbl))
	require.Equal(t, []string{":a", ":b"}, res.Skipped)
}

func TestReconcile_SkipsUnstorableNames(t *testing.T) {
	tbl := table.New()

	res, err := Reconcile(tbl, maildir.Listing{inCur("ok"), inCur("bad\nname"), inCur(".hidden"), inCur("")}, Policy{})
	require.NoError(t, err)
	require.Equal(t, []imap.UID{1}, res.Added)
	require.Len(t, res.Skipped, 3)
}

func TestReconcile_EmptyListing(t *testing.T) {
	tbl := table.New()

	res, err := Reconcile(tbl, nil, Policy{})
	require.NoError(t, err)
	require.True(t, res.Unchanged())
	require.Equal(t, imap.UID(1), tbl.NextUID)
}

func TestReconcile_NextUIDNeverDecreases(t *testing.T) {
	tbl := table.New()
	last := tbl.NextUID

	for _, listing := range []maildir.Listing{
		{inCur("a"), inCur("b"), inCur("c")},
		{},
		{},
		{inCur("d")},
		{inCur("a")},
		{},
		{},
	} {
		_, err := Reconcile(tbl, listing, Policy{})
		require.NoError(t, err)
		require.GreaterOrEqual(t, tbl.NextUID, last)

		last = tbl.NextUID
	}

	require.Equal(t, imap.UID(6), tbl.NextUID)
}

func TestReconcile_Limits(t *testing.T) {
	tbl := table.New()
	lim := limits.NewMailboxLimits(100, 2, 100)

	_, err := Reconcile(tbl, maildir.Listing{inCur("a"), inCur("b"), inCur("c")}, Policy{Limits: &lim})
	require.ErrorIs(t, err, limits.ErrMaxUIDReached)
	require.Zero(t, tbl.Len())
	require.Equal(t, imap.UID(1), tbl.NextUID)

	_, err = Reconcile(tbl, maildir.Listing{inCur("a"), inCur("b")}, Policy{Limits: &lim})
	require.NoError(t, err)
}

func TestReconcile_FullMailboxSwapsVanishedFile(t *testing.T) {
	tbl := table.New()
	lim := limits.NewMailboxLimits(2, 100, 100)
	policy := Policy{Limits: &lim}

	_, err := Reconcile(tbl, maildir.Listing{inCur("a"), inCur("b")}, policy)
	require.NoError(t, err)

	// a vanished and c arrived. a still holds its slot while it is only missing.
	res, err := Reconcile(tbl, maildir.Listing{inCur("b"), inCur("c")}, policy)
	require.NoError(t, err)
	require.True(t, res.Changed)
	require.Equal(t, []imap.UID{1}, res.Missing)
	require.Empty(t, res.Added)
	require.Equal(t, []string{"c"}, res.Deferred)
	require.Equal(t, 1, tbl.At(0).Missed)

	// The miss is confirmed, which frees the slot for c.
	res, err = Reconcile(tbl, maildir.Listing{inCur("b"), inCur("c")}, policy)
	require.NoError(t, err)
	require.Equal(t, []imap.UID{1}, res.Retired)
	require.Equal(t, []imap.UID{3}, res.Added)
	require.Empty(t, res.Deferred)
	require.Equal(t, map[imap.UID]string{2: "b", 3: "c"}, entries(tbl))

	for i := 0; i < 3; i++ {
		res, err = Reconcile(tbl, maildir.Listing{inCur("b"), inCur("c")}, policy)
		require.NoError(t, err)
		require.True(t, res.Unchanged())
	}
}

func TestReconcile_FullMailboxAssignsWhatFits(t *testing.T) {
	tbl := table.New()
	lim := limits.NewMailboxLimits(2, 100, 100)
	policy := Policy{Limits: &lim}

	res, err := Reconcile(tbl, maildir.Listing{inCur("c"), inCur("a"), inCur("b")}, policy)
	require.NoError(t, err)
	require.Equal(t, []imap.UID{1, 2}, res.Added)
	require.Equal(t, []string{"c"}, res.Deferred)
	require.Equal(t, map[imap.UID]string{1: "a", 2: "b"}, entries(tbl))
	require.Equal(t, imap.UID(3), tbl.NextUID)
}

func TestReconcile_InconsistentTable(t *testing.T) {
	tbl := table.New()
	require.NoError(t, tbl.Append(table.Entry{UID: 4, Filename: "a"}))

	_, err := Reconcile(tbl, maildir.Listing{inCur("a")}, Policy{})
	require.ErrorIs(t, err, table.ErrInconsistentState)
}
