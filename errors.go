// Package uidlist keeps the UIDs of a maildir's messages stable across processes.
//
// Every maildir gets a uid list file that binds each message file to an IMAP UID.
// Any number of uncoordinated processes may open the same maildir: readers work
// from immutable snapshots without locking, and writers serialize through a
// dotlock next to the list.
package uidlist

import (
	"errors"

	"github.com/ProtonMail/uidlist/internal/dotlock"
	"github.com/ProtonMail/uidlist/internal/table"
	"github.com/ProtonMail/uidlist/limits"
	"github.com/ProtonMail/uidlist/store"
)

var (
	ErrNotFound          = store.ErrNotFound
	ErrCorruptFormat     = store.ErrCorruptFormat
	ErrInconsistentState = table.ErrInconsistentState
	ErrStale             = store.ErrStale
	ErrLockNotHeld       = store.ErrLockNotHeld
	ErrWouldBlock        = dotlock.ErrWouldBlock
	ErrNotOwner          = dotlock.ErrNotOwner

	ErrNoSuchMessage = errors.New("no such message")
	ErrClosed        = errors.New("mailbox is closed")
)

// IsWouldBlock returns true if the error is ErrWouldBlock.
// The operation did not run because another process holds the lock; the previous snapshot is still valid.
func IsWouldBlock(err error) bool {
	return errors.Is(err, ErrWouldBlock)
}

// IsCorruptFormat returns true if the error is ErrCorruptFormat.
func IsCorruptFormat(err error) bool {
	return errors.Is(err, ErrCorruptFormat)
}

// IsInconsistentState returns true if the error is ErrInconsistentState.
func IsInconsistentState(err error) bool {
	return errors.Is(err, ErrInconsistentState)
}

// IsNoSuchMessage returns true if the error is ErrNoSuchMessage.
func IsNoSuchMessage(err error) bool {
	return errors.Is(err, ErrNoSuchMessage)
}

// IsMaxUIDReached returns true if the mailbox ran out of UIDs.
func IsMaxUIDReached(err error) bool {
	return errors.Is(err, limits.ErrMaxUIDReached)
}

func IsNotOwner(err error) bool {
	return errors.Is(err, ErrNotOwner)
}

func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}
