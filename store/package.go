// Package store persists a mailbox's uid list next to its maildir.
//
// The list is only ever replaced by an atomic rename, so readers never see a
// partially written file and need no lock. Writers must hold the dotlock and
// present the freshness marker of the list they started from.
package store
