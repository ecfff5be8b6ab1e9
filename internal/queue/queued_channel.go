package queue

import (
	"sync"
	"sync/atomic"
)

// QueuedChannel is a channel with an unbounded backlog: Enqueue never blocks on a slow reader.
type QueuedChannel[T any] struct {
	ch     chan T
	items  []T
	cond   *sync.Cond
	closed atomic.Bool
	done   chan struct{}
}

func NewQueuedChannel[T any](chanBufferSize, queueCapacity int) *QueuedChannel[T] {
	queue := &QueuedChannel[T]{
		ch:    make(chan T, chanBufferSize),
		items: make([]T, 0, queueCapacity),
		cond:  sync.NewCond(&sync.Mutex{}),
		done:  make(chan struct{}),
	}

	go func() {
		defer close(queue.done)
		defer close(queue.ch)

		for {
			item, ok := queue.pop()
			if !ok {
				return
			}

			queue.ch <- item
		}
	}()

	return queue
}

// Enqueue appends items to the backlog. It returns false once the queue is closed.
func (q *QueuedChannel[T]) Enqueue(items ...T) bool {
	q.cond.L.Lock()
	defer q.cond.L.Unlock()

	if q.closed.Load() {
		return false
	}

	q.items = append(q.items, items...)

	q.cond.Broadcast()

	return true
}

func (q *QueuedChannel[T]) GetChannel() <-chan T {
	return q.ch
}

// Close stops accepting items. Items already queued are still delivered.
func (q *QueuedChannel[T]) Close() {
	q.cond.L.Lock()
	defer q.cond.L.Unlock()

	q.closed.Store(true)

	q.cond.Broadcast()
}

// CloseAndDiscardQueued stops accepting items and drops the backlog.
// Items already handed to the channel buffer can still be read.
func (q *QueuedChannel[T]) CloseAndDiscardQueued() {
	q.cond.L.Lock()
	defer q.cond.L.Unlock()

	q.closed.Store(true)
	q.items = nil

	q.cond.Broadcast()
}

// Wait blocks until the channel has been closed, which requires the reader to drain it.
func (q *QueuedChannel[T]) Wait() {
	<-q.done
}

func (q *QueuedChannel[T]) pop() (T, bool) {
	q.cond.L.Lock()
	defer q.cond.L.Unlock()

	var item T

	// Keep popping after close until the backlog is empty.
	for len(q.items) == 0 {
		if q.closed.Load() {
			return item, false
		}

		q.cond.Wait()
	}

	item, q.items = q.items[0], q.items[1:]

	return item, true
}
