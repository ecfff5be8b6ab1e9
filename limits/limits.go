// Package limits holds configurable upper bounds enforced when UIDs are handed out.
package limits

import (
	"errors"
	"fmt"

	"github.com/ProtonMail/uidlist/imap"
)

// Mailbox contains the upper limits enforced on a single uid list.
type Mailbox struct {
	maxMessageCount int64
	maxUIDValidity  int64
	maxUID          int64
}

// CheckUIDCount checks that newCount more UIDs can be assigned starting at next.
func (m Mailbox) CheckUIDCount(next imap.UID, newCount int) error {
	if newCount <= 0 {
		return nil
	}

	last := int64(next) + int64(newCount) - 1

	if last > m.maxUID {
		return fmt.Errorf("%w: need uids %v..%v, limit is %v", ErrMaxUIDReached, next, last, m.maxUID)
	}

	return nil
}

func (m Mailbox) CheckMessageCount(existingCount int, newCount int) error {
	nextMessageCount := int64(existingCount) + int64(newCount)

	if nextMessageCount > m.maxMessageCount || nextMessageCount < int64(existingCount) {
		return ErrMaxMessageCountReached
	}

	return nil
}

// MessageRoom returns how many more messages fit next to existingCount.
func (m Mailbox) MessageRoom(existingCount int) int {
	if room := m.maxMessageCount - int64(existingCount); room > 0 {
		return int(room)
	}

	return 0
}

func (m Mailbox) CheckUIDValidity(uid imap.UID) error {
	if int64(uid) > m.maxUIDValidity {
		return ErrMaxUIDValidityReached
	}

	return nil
}

func (m Mailbox) MaxUID() imap.UID {
	return imap.UID(m.maxUID)
}

// DefaultLimits keeps one UID in reserve so the next uid never overflows.
func DefaultLimits() Mailbox {
	return Mailbox{
		maxMessageCount: int64(imap.MaxUID),
		maxUIDValidity:  int64(imap.MaxUID),
		maxUID:          int64(imap.MaxUID) - 1,
	}
}

func NewMailboxLimits(maxMessageCount uint32, maxUID imap.UID, maxUIDValidity imap.UID) Mailbox {
	if maxUID == imap.MaxUID {
		maxUID--
	}

	return Mailbox{
		maxMessageCount: int64(maxMessageCount),
		maxUIDValidity:  int64(maxUIDValidity),
		maxUID:          int64(maxUID),
	}
}

var ErrMaxMessageCountReached = errors.New("max message count for mailbox reached")
var ErrMaxUIDReached = errors.New("max UID value reached")
var ErrMaxUIDValidityReached = errors.New("max UIDValidity value reached")
