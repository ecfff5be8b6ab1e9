package queue

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestQueuedChannel(t *testing.T) {
	queue := NewQueuedChannel[int](3, 3)

	require.True(t, queue.Enqueue(1, 2, 3))

	resCh := queue.GetChannel()

	// Close the queue before reading the items.
	queue.Close()
	require.False(t, queue.Enqueue(4))

	// Check we can still read the three items.
	require.Equal(t, 1, <-resCh)
	require.Equal(t, 2, <-resCh)
	require.Equal(t, 3, <-resCh)

	_, ok := <-resCh
	require.False(t, ok)

	queue.Wait()
}

func TestQueuedChannelDoesNotBlockWriter(t *testing.T) {
	queue := NewQueuedChannel[int](1, 1)

	for i := 0; i < 1000; i++ {
		require.True(t, queue.Enqueue(i))
	}

	for i := 0; i < 1000; i++ {
		require.Equal(t, i, <-queue.GetChannel())
	}

	queue.Close()
	queue.Wait()
}

func TestQueuedChannelDiscard(t *testing.T) {
	queue := NewQueuedChannel[int](0, 1)

	require.True(t, queue.Enqueue(1, 2, 3))

	queue.CloseAndDiscardQueued()

	var got []int
	for item := range queue.GetChannel() {
		got = append(got, item)
	}

	// At most the item the forwarder was already holding survives.
	require.LessOrEqual(t, len(got), 1)

	queue.Wait()
}
