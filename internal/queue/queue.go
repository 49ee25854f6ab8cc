// Package queue provides a thread-safe generic priority queue, used by the
// sync scheduler as its work queue.
package queue

import (
	"container/heap"
	"sync"
)

// Item pairs a value with its priority. Lower priority values dequeue
// first.
type Item[T any] struct {
	Value    T
	Priority int
	index    int
}

type itemHeap[T any] []*Item[T]

func (h itemHeap[T]) Len() int { return len(h) }

func (h itemHeap[T]) Less(i, j int) bool {
	return h[i].Priority < h[j].Priority
}

func (h itemHeap[T]) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *itemHeap[T]) Push(x any) {
	item := x.(*Item[T])
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *itemHeap[T]) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// PriorityQueue is a mutex-guarded min-heap.
type PriorityQueue[T any] struct {
	heap itemHeap[T]
	mu   sync.Mutex
}

func NewPriorityQueue[T any]() *PriorityQueue[T] {
	pq := &PriorityQueue[T]{heap: make(itemHeap[T], 0)}
	heap.Init(&pq.heap)
	return pq
}

// Len returns the number of queued items.
func (pq *PriorityQueue[T]) Len() int {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	return pq.heap.Len()
}

// Enqueue adds a value with the given priority.
func (pq *PriorityQueue[T]) Enqueue(value T, priority int) {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	heap.Push(&pq.heap, &Item[T]{Value: value, Priority: priority})
}

// Dequeue removes and returns the lowest-priority-value item. The second
// return is false when the queue is empty.
func (pq *PriorityQueue[T]) Dequeue() (T, bool) {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	if pq.heap.Len() == 0 {
		var zero T
		return zero, false
	}
	item := heap.Pop(&pq.heap).(*Item[T])
	return item.Value, true
}
