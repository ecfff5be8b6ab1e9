// Package events defines what a mailbox reports to its watchers.
package events

type Event interface {
	_isEvent()
}

type eventBase struct{}

func (eventBase) _isEvent() {}
