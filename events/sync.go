package events

import "github.com/ProtonMail/uidlist/imap"

// SyncCompleted is sent after a sync pass committed a changed list.
type SyncCompleted struct {
	eventBase

	Dir     string
	NextUID imap.UID

	Added   []imap.UID
	Retired []imap.UID
	Missing []imap.UID
	Updated []imap.UID
}

// SyncSkipped is sent when a sync pass could not run, for instance because another process holds the lock.
// The previous snapshot is still being served.
type SyncSkipped struct {
	eventBase

	Dir   string
	Error error
}

// ListReloaded is sent when another process replaced the list file and it was read again.
type ListReloaded struct {
	eventBase

	Dir     string
	NextUID imap.UID
}

// ListRecovered is sent when an unreadable list was rebuilt from a directory scan.
// Clients must discard cached UIDs since the UIDVALIDITY changed.
type ListRecovered struct {
	eventBase

	Dir            string
	Salvaged       imap.UID
	OldUIDValidity imap.UID
	NewUIDValidity imap.UID
}
