// Package watcher fans events out to subscribers that only care about some event types.
package watcher

import (
	"reflect"

	"github.com/ProtonMail/uidlist/internal/queue"
)

type Watcher[T any] struct {
	types   map[reflect.Type]struct{}
	eventCh *queue.QueuedChannel[T]
}

// New returns a watcher for the given event types, or for every event if none are given.
func New[T any](ofType ...T) *Watcher[T] {
	types := make(map[reflect.Type]struct{}, len(ofType))

	for _, t := range ofType {
		types[reflect.TypeOf(t)] = struct{}{}
	}

	return &Watcher[T]{
		types:   types,
		eventCh: queue.NewQueuedChannel[T](1, 1),
	}
}

func (w *Watcher[T]) IsWatching(event T) bool {
	if len(w.types) == 0 {
		return true
	}

	_, ok := w.types[reflect.TypeOf(event)]

	return ok
}

func (w *Watcher[T]) GetChannel() <-chan T {
	return w.eventCh.GetChannel()
}

// Send queues event for the subscriber. It returns false once the watcher is closed.
func (w *Watcher[T]) Send(event T) bool {
	return w.eventCh.Enqueue(event)
}

// Close drops undelivered events and closes the channel once the subscriber has drained it.
func (w *Watcher[T]) Close() {
	w.eventCh.CloseAndDiscardQueued()
}
