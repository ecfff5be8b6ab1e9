package uidlist

import (
	"github.com/ProtonMail/uidlist/internal/reconcile"
	"github.com/ProtonMail/uidlist/internal/table"
)

type (
	// Snapshot is an immutable view of a uid list. It is safe for concurrent use.
	Snapshot = table.Snapshot

	// Entry binds one message file to its UID.
	Entry = table.Entry

	// Hint tells which maildir subdirectory a message was last seen in.
	Hint = table.Hint

	// SyncResult describes what a sync pass changed.
	SyncResult = reconcile.Result
)

const (
	HintCur = table.HintCur
	HintNew = table.HintNew
)
