package imap

import (
	"fmt"
	"math"
	"strconv"
)

// UID is a mailbox-scoped message identifier. Zero is never assigned.
type UID uint32

// MaxUID is the highest value a UID can take.
const MaxUID = UID(math.MaxUint32)

func (u UID) String() string {
	return strconv.FormatUint(uint64(u), 10)
}

func ParseUID(s string) (UID, error) {
	num, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid uid %q: %w", s, err)
	}

	return UID(num), nil
}

// SeqID is the 1-based position of a message in a mailbox snapshot.
type SeqID uint32
