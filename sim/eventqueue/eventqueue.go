// Package eventqueue provides the binary min-heap that orders simulation events.
//
// The heap gives no ordering guarantee for items that compare equal. Callers
// that need a total order (the simulator always does) must embed a tie-breaker
// such as a monotonic sequence number in the comparator.
package eventqueue

import (
	"container/heap"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrEmptyQueue is returned by PeekMin and DeleteMin on an empty queue.
	ErrEmptyQueue = errors.New("eventqueue: queue is empty")
	// ErrCapacityExceeded is returned when an insert would grow the queue past its maximum capacity.
	ErrCapacityExceeded = errors.New("eventqueue: capacity exceeded")
)

// DefaultMaxCapacity bounds queue growth when no explicit limit is given.
const DefaultMaxCapacity = math.MaxInt32

// LessFunc reports whether a orders strictly before b.
type LessFunc[T any] func(a, b T) bool

// MinHeap is a resizable binary min-heap ordered by a caller comparator.
// Storage grows on demand and is never released by DeleteMin or Clear.
type MinHeap[T any] struct {
	items       []T
	less        LessFunc[T]
	maxCapacity int
	loading     bool // true between InitialInsert and InitialInsertionComplete
}

// New creates an empty heap. maxCapacity <= 0 selects DefaultMaxCapacity.
func New[T any](less LessFunc[T], maxCapacity int) *MinHeap[T] {
	if less == nil {
		panic("eventqueue.New: less must not be nil")
	}
	if maxCapacity <= 0 {
		maxCapacity = DefaultMaxCapacity
	}
	return &MinHeap[T]{
		items:       make([]T, 0, 64),
		less:        less,
		maxCapacity: maxCapacity,
	}
}

// heap.Interface plumbing, kept on an unexported adapter so the public API
// cannot be misused to break heap order.
type adapter[T any] struct{ h *MinHeap[T] }

func (a adapter[T]) Len() int           { return len(a.h.items) }
func (a adapter[T]) Less(i, j int) bool { return a.h.less(a.h.items[i], a.h.items[j]) }
func (a adapter[T]) Swap(i, j int)      { a.h.items[i], a.h.items[j] = a.h.items[j], a.h.items[i] }
func (a adapter[T]) Push(x any)         { a.h.items = append(a.h.items, x.(T)) }
func (a adapter[T]) Pop() any {
	old := a.h.items
	n := len(old)
	item := old[n-1]
	var zero T
	old[n-1] = zero // release the reference, keep the slot
	a.h.items = old[:n-1]
	return item
}

// Len returns the number of queued items.
func (h *MinHeap[T]) Len() int {
	return len(h.items)
}

// Cap returns the currently allocated storage.
func (h *MinHeap[T]) Cap() int {
	return cap(h.items)
}

func (h *MinHeap[T]) ensureRoom() error {
	if len(h.items) >= h.maxCapacity {
		return fmt.Errorf("%w: limit %d", ErrCapacityExceeded, h.maxCapacity)
	}
	return nil
}

// InitialInsert appends an item without restoring heap order. It must be
// followed by InitialInsertionComplete before any other heap operation.
func (h *MinHeap[T]) InitialInsert(item T) error {
	if err := h.ensureRoom(); err != nil {
		return err
	}
	h.loading = true
	h.items = append(h.items, item)
	return nil
}

// InitialInsertionComplete heapifies everything added by InitialInsert in O(n).
func (h *MinHeap[T]) InitialInsertionComplete() {
	heap.Init(adapter[T]{h})
	h.loading = false
}

func (h *MinHeap[T]) mustBeOrdered(op string) {
	if h.loading {
		panic(fmt.Sprintf("eventqueue.%s: called before InitialInsertionComplete", op))
	}
}

// Insert adds an item in O(log n).
func (h *MinHeap[T]) Insert(item T) error {
	h.mustBeOrdered("Insert")
	if err := h.ensureRoom(); err != nil {
		return err
	}
	heap.Push(adapter[T]{h}, item)
	return nil
}

// PeekMin returns the minimum item without removing it.
func (h *MinHeap[T]) PeekMin() (T, error) {
	h.mustBeOrdered("PeekMin")
	if len(h.items) == 0 {
		var zero T
		return zero, ErrEmptyQueue
	}
	return h.items[0], nil
}

// DeleteMin removes and returns the minimum item in O(log n).
func (h *MinHeap[T]) DeleteMin() (T, error) {
	h.mustBeOrdered("DeleteMin")
	if len(h.items) == 0 {
		var zero T
		return zero, ErrEmptyQueue
	}
	return heap.Pop(adapter[T]{h}).(T), nil
}

// Clear drops every item but keeps the allocated storage.
func (h *MinHeap[T]) Clear() {
	var zero T
	for i := range h.items {
		h.items[i] = zero
	}
	h.items = h.items[:0]
	h.loading = false
}

// Validate checks that no child orders strictly before its parent.
func (h *MinHeap[T]) Validate() error {
	for i := 1; i < len(h.items); i++ {
		parent := (i - 1) / 2
		if h.less(h.items[i], h.items[parent]) {
			return fmt.Errorf("eventqueue: heap order violated at index %d (parent %d)", i, parent)
		}
	}
	return nil
}
