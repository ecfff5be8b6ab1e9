package codec

import (
	"testing"

	"github.com/ProtonMail/uidlist/imap"
	"github.com/ProtonMail/uidlist/internal/table"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func newTable(t *testing.T, entries ...table.Entry) *table.Table {
	tbl := table.New()
	tbl.UIDValidity = 1700000000
	tbl.GUID = "0123abcd"

	for _, entry := range entries {
		require.NoError(t, tbl.Append(entry))
		tbl.NextUID = entry.UID + 1
	}

	return tbl
}

func dump(tbl *table.Table) []table.Entry {
	var res []table.Entry

	for i := 0; i < tbl.Len(); i++ {
		res = append(res, *tbl.At(i))
	}

	return res
}

func TestRoundTrip(t *testing.T) {
	tbl := newTable(t,
		table.Entry{UID: 1, Filename: "1700000000.M1P1.host:2,S"},
		table.Entry{UID: 2, Filename: "1700000001.M2P1.host", Hint: table.HintNew, Missed: 1},
		table.Entry{UID: 7, Filename: "name with spaces:2,RS", Extra: map[string]string{
			"size":      "1024",
			"note":      "50% off\r\nnow",
			"odd key:x": "v",
		}},
	)
	tbl.Header = []string{"Xfuture", "Afirst", "Xagain"}

	parsed, err := Parse(Serialize(tbl))
	require.NoError(t, err)

	require.Equal(t, tbl.Version, parsed.Version)
	require.Equal(t, tbl.UIDValidity, parsed.UIDValidity)
	require.Equal(t, tbl.NextUID, parsed.NextUID)
	require.Equal(t, tbl.GUID, parsed.GUID)
	require.Equal(t, tbl.Header, parsed.Header)

	if diff := cmp.Diff(dump(tbl), dump(parsed)); diff != "" {
		t.Fatalf("entries differ (-want +got):\n%s", diff)
	}
}

func TestSerializeDeterministic(t *testing.T) {
	extra := map[string]string{"b": "2", "a": "1", "c": "3"}

	tbl := newTable(t, table.Entry{UID: 3, Filename: "f", Extra: extra})

	want := "1 V1700000000 N4 G0123abcd\n3 dir:cur a:1 b:2 c:3 :f\n"

	for i := 0; i < 10; i++ {
		require.Equal(t, want, string(Serialize(tbl)))
	}
}

func TestSerializeEmpty(t *testing.T) {
	tbl := table.New()
	tbl.UIDValidity = 5

	require.Equal(t, "1 V5 N1\n", string(Serialize(tbl)))

	parsed, err := Parse(Serialize(tbl))
	require.NoError(t, err)
	require.Zero(t, parsed.Len())
	require.Equal(t, imap.UID(1), parsed.NextUID)
}

func TestSerializeDropsUnrepresentableKeys(t *testing.T) {
	tbl := newTable(t, table.Entry{UID: 1, Filename: "f", Extra: map[string]string{
		"":     "x",
		"dir":  "new",
		"miss": "4",
		"ok":   "y",
	}})

	require.Equal(t, "1 V1700000000 N2 G0123abcd\n1 dir:cur ok:y :f\n", string(Serialize(tbl)))
}

func TestParseUnknownFieldsPreserved(t *testing.T) {
	in := "1 V9 N10 Gabc Zzz Q1\n" +
		"3 dir:new miss:2 flags:S%20T :msg:2,S\n" +
		"4 :plain\n"

	tbl, err := Parse([]byte(in))
	require.NoError(t, err)

	require.Equal(t, []string{"Zzz", "Q1"}, tbl.Header)
	require.Equal(t, 2, tbl.Len())

	first := tbl.At(0)
	require.Equal(t, "msg:2,S", first.Filename)
	require.Equal(t, table.HintNew, first.Hint)
	require.Equal(t, 2, first.Missed)
	require.Equal(t, map[string]string{"flags": "S T"}, first.Extra)

	second := tbl.At(1)
	require.Equal(t, table.HintCur, second.Hint)
	require.Nil(t, second.Extra)

	require.Equal(t, "1 V9 N10 Gabc Zzz Q1\n3 dir:new miss:2 flags:S%20T :msg:2,S\n4 dir:cur :plain\n", string(Serialize(tbl)))
}

func TestParseRepeatedUnknownHeaderFields(t *testing.T) {
	in := "1 V5 N9 Gabc Xone Xtwo Yy Xthree\n"

	tbl, err := Parse([]byte(in))
	require.NoError(t, err)
	require.Equal(t, []string{"Xone", "Xtwo", "Yy", "Xthree"}, tbl.Header)

	require.Equal(t, in, string(Serialize(tbl)))
	require.Equal(t, in, string(Serialize(tbl.Clone())))
}

func TestSerializeDropsUnrepresentableHeaderFields(t *testing.T) {
	tbl := table.New()
	tbl.UIDValidity = 5
	tbl.Header = []string{"", "Nbogus", "two words", "Kept", "Vx", "Gy"}

	require.Equal(t, "1 V5 N1 Kept\n", string(Serialize(tbl)))
}

func TestParseRaisesNextUID(t *testing.T) {
	tbl, err := Parse([]byte("1 V9 N2\n1 :a\n5 :b\n"))
	require.NoError(t, err)
	require.Equal(t, imap.UID(6), tbl.NextUID)
}

func TestParseCorrupt(t *testing.T) {
	for name, in := range map[string]string{
		"empty":             "",
		"no header":         "\n1 :a\n",
		"bad version":       "x V1 N2\n",
		"future version":    "2 V1 N2\n",
		"no next uid":       "1 V1\n",
		"bad next uid":      "1 V1 Nx\n",
		"zero next uid":     "1 V1 N0\n",
		"bad validity":      "1 V-1 N2\n",
		"empty header item": "1 V1  N2\n",
		"bad uid":           "1 V1 N5\nx :a\n",
		"zero uid":          "1 V1 N5\n0 :a\n",
		"no filename":       "1 V1 N5\n1 dir:cur\n",
		"bare uid":          "1 V1 N5\n1\n",
		"empty filename":    "1 V1 N5\n1 :\n",
		"bad dir":           "1 V1 N5\n1 dir:tmp :a\n",
		"bad miss":          "1 V1 N5\n1 miss:-1 :a\n",
		"bad field":         "1 V1 N5\n1 nocolon :a\n",
		"bad escape":        "1 V1 N5\n1 k:%zz :a\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(in))
			require.ErrorIs(t, err, ErrCorruptFormat)
		})
	}
}

func TestParseInconsistent(t *testing.T) {
	for name, in := range map[string]string{
		"duplicate uid":  "1 V1 N5\n2 :a\n2 :b\n",
		"descending uid": "1 V1 N5\n3 :a\n2 :b\n",
		"duplicate key":  "1 V1 N5\n1 :a:2,S\n2 :a:2,RS\n",
		"uid exhausted":  "1 V1 N5\n4294967295 :a\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(in))
			require.ErrorIs(t, err, table.ErrInconsistentState)
			require.NotErrorIs(t, err, ErrCorruptFormat)
		})
	}
}

func TestSalvage(t *testing.T) {
	require.Equal(t, imap.UID(0), Salvage(nil))
	require.Equal(t, imap.UID(9), Salvage([]byte("1 V1 N10\ngarbage\n")))
	require.Equal(t, imap.UID(42), Salvage([]byte("1 V1 N10\n3 :a\n42 dir:??? \n7 :b")))
	require.Equal(t, imap.UID(5), Salvage([]byte("xx\n5 :a\n")))
}

func TestSalvageUIDValidity(t *testing.T) {
	require.Equal(t, imap.UID(0), SalvageUIDValidity(nil))
	require.Equal(t, imap.UID(77), SalvageUIDValidity([]byte("1 V77 Nxx\n???")))
	require.Equal(t, imap.UID(0), SalvageUIDValidity([]byte("1 Vx N5\n")))
}
