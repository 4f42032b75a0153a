package queue_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustrail/trustrail/pkg/queue"
)

func TestQueue_FIFO(t *testing.T) {
	q := queue.New()
	q.Enqueue(queue.Task{Kind: queue.KindSendRequest, ReferenceID: "a"})
	q.Enqueue(queue.Task{Kind: queue.KindRunFollowUp, ReferenceID: "b"})
	q.Enqueue(queue.Task{Kind: queue.KindSendRequest, ReferenceID: "c"})
	require.Equal(t, 3, q.Len())

	first, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, queue.Task{Kind: queue.KindSendRequest, ReferenceID: "a"}, first)

	second, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "b", second.ReferenceID)

	third, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "c", third.ReferenceID)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_PopEmpty(t *testing.T) {
	q := queue.New()
	task, ok := q.Pop()
	assert.False(t, ok)
	assert.Equal(t, queue.Task{}, task)
}

func TestQueue_ConcurrentEnqueue(t *testing.T) {
	q := queue.New()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Enqueue(queue.Task{Kind: queue.KindRunFollowUp, ReferenceID: "ref"})
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, q.Len())
}
