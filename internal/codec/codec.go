// Package codec reads and writes the line-oriented uid list format.
//
// The first line is a header:
//
//	1 V<uidvalidity> N<next uid> G<guid> [<tag><value> ...]
//
// followed by one line per message:
//
//	<uid> [dir:new|dir:cur] [miss:<n>] [<key>:<value> ...] :<filename>
//
// Everything after the " :" marker is the filename, so filenames may contain
// spaces and colons. Field keys and values are %-escaped.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ProtonMail/uidlist/imap"
	"github.com/ProtonMail/uidlist/internal/table"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// ErrCorruptFormat is returned when the list cannot be parsed. The list must be rebuilt from a directory scan.
var ErrCorruptFormat = errors.New("corrupt uid list format")

const (
	fieldDir  = "dir"
	fieldMiss = "miss"

	tagUIDValidity = "V"
	tagNextUID     = "N"
	tagGUID        = "G"
)

// Parse decodes a whole list file. A syntax error anywhere rejects the whole file with
// ErrCorruptFormat; a well-formed file that breaks table invariants yields
// table.ErrInconsistentState.
func Parse(b []byte) (*table.Table, error) {
	lines := strings.Split(string(b), "\n")

	if len(lines) == 0 || lines[0] == "" {
		return nil, fmt.Errorf("%w: missing header", ErrCorruptFormat)
	}

	tbl, err := parseHeader(lines[0])
	if err != nil {
		return nil, err
	}

	for n, line := range lines[1:] {
		if line == "" {
			continue
		}

		entry, err := parseEntry(line)
		if err != nil {
			return nil, fmt.Errorf("line %v: %w", n+2, err)
		}

		if err := tbl.Append(entry); err != nil {
			return nil, fmt.Errorf("line %v: %w", n+2, err)
		}

		if entry.UID >= tbl.NextUID {
			logrus.WithField("uid", entry.UID).WithField("next", tbl.NextUID).Warn("UID list entry above next uid, raising next uid")

			if entry.UID == imap.MaxUID {
				return nil, fmt.Errorf("line %v: %w: uid space exhausted", n+2, table.ErrInconsistentState)
			}

			tbl.NextUID = entry.UID + 1
		}
	}

	return tbl, nil
}

func parseHeader(line string) (*table.Table, error) {
	fields := strings.Split(line, " ")

	version, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, fmt.Errorf("%w: bad version %q", ErrCorruptFormat, fields[0])
	}

	if version != table.FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %v", ErrCorruptFormat, version)
	}

	tbl := table.New()

	var haveNext bool

	for _, field := range fields[1:] {
		if field == "" {
			return nil, fmt.Errorf("%w: empty header field", ErrCorruptFormat)
		}

		tag, value := field[:1], field[1:]

		switch tag {
		case tagUIDValidity:
			if tbl.UIDValidity, err = imap.ParseUID(value); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrCorruptFormat, err)
			}

		case tagNextUID:
			if tbl.NextUID, err = imap.ParseUID(value); err != nil || tbl.NextUID == 0 {
				return nil, fmt.Errorf("%w: bad next uid %q", ErrCorruptFormat, value)
			}

			haveNext = true

		case tagGUID:
			tbl.GUID = value

		default:
			tbl.Header = append(tbl.Header, field)
		}
	}

	if !haveNext {
		return nil, fmt.Errorf("%w: header has no next uid", ErrCorruptFormat)
	}

	return tbl, nil
}

func parseEntry(line string) (table.Entry, error) {
	uidField, rest, ok := strings.Cut(line, " ")
	if !ok {
		return table.Entry{}, fmt.Errorf("%w: no filename", ErrCorruptFormat)
	}

	uid, err := imap.ParseUID(uidField)
	if err != nil || uid == 0 {
		return table.Entry{}, fmt.Errorf("%w: bad uid %q", ErrCorruptFormat, uidField)
	}

	entry := table.Entry{UID: uid, Hint: table.HintCur}

	for !strings.HasPrefix(rest, ":") {
		var field string

		if field, rest, ok = strings.Cut(rest, " "); !ok {
			return table.Entry{}, fmt.Errorf("%w: uid %v has no filename", ErrCorruptFormat, uid)
		}

		if err := parseField(&entry, field); err != nil {
			return table.Entry{}, fmt.Errorf("uid %v: %w", uid, err)
		}
	}

	if entry.Filename = rest[1:]; entry.Filename == "" {
		return table.Entry{}, fmt.Errorf("%w: uid %v has an empty filename", ErrCorruptFormat, uid)
	}

	return entry, nil
}

func parseField(entry *table.Entry, field string) error {
	rawKey, rawValue, ok := strings.Cut(field, ":")
	if !ok || rawKey == "" {
		return fmt.Errorf("%w: bad field %q", ErrCorruptFormat, field)
	}

	key, err := unescape(rawKey)
	if err != nil {
		return err
	}

	value, err := unescape(rawValue)
	if err != nil {
		return err
	}

	switch key {
	case fieldDir:
		hint, ok := table.ParseHint(value)
		if !ok {
			return fmt.Errorf("%w: bad directory %q", ErrCorruptFormat, value)
		}

		entry.Hint = hint

	case fieldMiss:
		missed, err := strconv.Atoi(value)
		if err != nil || missed < 0 {
			return fmt.Errorf("%w: bad miss count %q", ErrCorruptFormat, value)
		}

		entry.Missed = missed

	default:
		if entry.Extra == nil {
			entry.Extra = make(map[string]string)
		}

		entry.Extra[key] = value
	}

	return nil
}

// Serialize encodes the table. The output depends only on the table's content:
// entries in UID order, reserved fields first, other entry fields sorted by key.
// Unknown header fields are written back as read, in their original order.
// Fields with an empty or reserved key cannot be represented and are dropped.
func Serialize(tbl *table.Table) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "%d %s%d %s%d", tbl.Version, tagUIDValidity, tbl.UIDValidity, tagNextUID, tbl.NextUID)

	if tbl.GUID != "" {
		fmt.Fprintf(&buf, " %s%s", tagGUID, tbl.GUID)
	}

	for _, field := range tbl.Header {
		if !headerField(field) {
			continue
		}

		fmt.Fprintf(&buf, " %s", field)
	}

	buf.WriteByte('\n')

	for i := 0; i < tbl.Len(); i++ {
		writeEntry(&buf, tbl.At(i))
	}

	return buf.Bytes()
}

// headerField reports whether field can be written to the header line without
// changing how it parses.
func headerField(field string) bool {
	if field == "" || strings.ContainsAny(field, " \r\n") {
		return false
	}

	switch field[:1] {
	case tagUIDValidity, tagNextUID, tagGUID:
		return false
	}

	return true
}

func writeEntry(buf *bytes.Buffer, entry *table.Entry) {
	fmt.Fprintf(buf, "%d %s:%s", entry.UID, fieldDir, entry.Hint)

	if entry.Missed > 0 {
		fmt.Fprintf(buf, " %s:%d", fieldMiss, entry.Missed)
	}

	keys := maps.Keys(entry.Extra)
	slices.Sort(keys)

	for _, key := range keys {
		if key == "" || key == fieldDir || key == fieldMiss {
			continue
		}

		fmt.Fprintf(buf, " %s:%s", keyEscaper.Replace(key), valueEscaper.Replace(entry.Extra[key]))
	}

	fmt.Fprintf(buf, " :%s\n", entry.Filename)
}

// Salvage returns the highest UID that can still be inferred from a list that failed to parse,
// or 0 if nothing can be inferred. A table rebuilt from a scan must start above it.
func Salvage(b []byte) imap.UID {
	var highest imap.UID

	for n, line := range strings.Split(string(b), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		if n == 0 {
			for _, field := range fields[1:] {
				if strings.HasPrefix(field, tagNextUID) {
					if next, err := imap.ParseUID(field[1:]); err == nil && next > 0 && next-1 > highest {
						highest = next - 1
					}
				}
			}

			continue
		}

		if uid, err := imap.ParseUID(fields[0]); err == nil && uid > highest {
			highest = uid
		}
	}

	return highest
}

// SalvageUIDValidity returns the UIDVALIDITY recorded in a list that failed to parse, or 0.
func SalvageUIDValidity(b []byte) imap.UID {
	header, _, _ := strings.Cut(string(b), "\n")

	for _, field := range strings.Fields(header) {
		if strings.HasPrefix(field, tagUIDValidity) {
			if validity, err := imap.ParseUID(field[1:]); err == nil {
				return validity
			}
		}
	}

	return 0
}
