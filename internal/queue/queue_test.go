package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityQueue_Ordering(t *testing.T) {
	pq := NewPriorityQueue[string]()
	pq.Enqueue("third", 30)
	pq.Enqueue("first", 10)
	pq.Enqueue("second", 20)

	for _, want := range []string{"first", "second", "third"} {
		got, ok := pq.Dequeue()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}

	_, ok := pq.Dequeue()
	assert.False(t, ok)
}

func TestPriorityQueue_Len(t *testing.T) {
	pq := NewPriorityQueue[int]()
	assert.Equal(t, 0, pq.Len())

	pq.Enqueue(1, 1)
	pq.Enqueue(2, 2)
	assert.Equal(t, 2, pq.Len())

	pq.Dequeue()
	assert.Equal(t, 1, pq.Len())
}

func TestPriorityQueue_Concurrent(t *testing.T) {
	pq := NewPriorityQueue[int]()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			pq.Enqueue(n, n)
		}(i)
	}
	wg.Wait()

	require.Equal(t, 100, pq.Len())

	prev := -1
	for pq.Len() > 0 {
		v, ok := pq.Dequeue()
		require.True(t, ok)
		assert.Greater(t, v, prev)
		prev = v
	}
}
