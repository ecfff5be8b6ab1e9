package events

// LockReclaimed is sent when a stale lock left by a dead or hung process was taken over.
type LockReclaimed struct {
	eventBase

	Dir   string
	Owner string
}
