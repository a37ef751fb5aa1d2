package eventqueue

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intLess(a, b int) bool { return a < b }

func drain(t *testing.T, h *MinHeap[int]) []int {
	t.Helper()
	out := make([]int, 0, h.Len())
	for h.Len() > 0 {
		v, err := h.DeleteMin()
		require.NoError(t, err)
		require.NoError(t, h.Validate())
		out = append(out, v)
	}
	return out
}

func TestMinHeap_DeleteMinYieldsNonDecreasingOrder(t *testing.T) {
	// GIVEN 500 values inserted in pseudo-random order
	rng := rand.New(rand.NewSource(7))
	h := New(intLess, 0)
	for i := 0; i < 500; i++ {
		require.NoError(t, h.Insert(rng.Intn(100)))
		require.NoError(t, h.Validate(), "heap order broken after insert %d", i)
	}

	// WHEN draining the heap
	got := drain(t, h)

	// THEN values come out sorted
	assert.Len(t, got, 500)
	assert.True(t, sort.IntsAreSorted(got))
}

func TestMinHeap_BulkHeapifyMatchesSequentialInserts(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	values := make([]int, 257)
	for i := range values {
		values[i] = rng.Intn(40)
	}

	bulk := New(intLess, 0)
	for _, v := range values {
		require.NoError(t, bulk.InitialInsert(v))
	}
	bulk.InitialInsertionComplete()
	require.NoError(t, bulk.Validate())

	seq := New(intLess, 0)
	for _, v := range values {
		require.NoError(t, seq.Insert(v))
	}

	assert.Equal(t, drain(t, seq), drain(t, bulk))
}

func TestMinHeap_EmptyQueueErrors(t *testing.T) {
	h := New(intLess, 0)

	_, err := h.PeekMin()
	assert.ErrorIs(t, err, ErrEmptyQueue)

	_, err = h.DeleteMin()
	assert.ErrorIs(t, err, ErrEmptyQueue)
}

func TestMinHeap_CapacityExceeded(t *testing.T) {
	h := New(intLess, 3)
	for i := 0; i < 3; i++ {
		require.NoError(t, h.Insert(i))
	}

	err := h.Insert(99)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, 3, h.Len(), "rejected insert must not change the queue")

	err = h.InitialInsert(99)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestMinHeap_ClearKeepsStorage(t *testing.T) {
	h := New(intLess, 0)
	for i := 0; i < 200; i++ {
		require.NoError(t, h.Insert(200-i))
	}
	capBefore := h.Cap()

	h.Clear()

	assert.Equal(t, 0, h.Len())
	assert.Equal(t, capBefore, h.Cap(), "Clear must not shrink storage")

	// AND the heap keeps working after Clear
	require.NoError(t, h.Insert(5))
	require.NoError(t, h.Insert(2))
	v, err := h.PeekMin()
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestMinHeap_DeleteMinDoesNotShrink(t *testing.T) {
	h := New(intLess, 0)
	for i := 0; i < 100; i++ {
		require.NoError(t, h.Insert(i))
	}
	capFull := h.Cap()
	drain(t, h)
	assert.Equal(t, capFull, h.Cap())
}

func TestMinHeap_InsertDuringInitialLoadPanics(t *testing.T) {
	h := New(intLess, 0)
	require.NoError(t, h.InitialInsert(1))
	assert.Panics(t, func() { _ = h.Insert(2) })
}

type stamped struct {
	time int64
	seq  uint64
}

func TestMinHeap_TieBreakIsComparatorNotInsertionOrder(t *testing.T) {
	// GIVEN equal-time items inserted in reverse sequence order
	less := func(a, b stamped) bool {
		if a.time != b.time {
			return a.time < b.time
		}
		return a.seq < b.seq
	}
	h := New(less, 0)
	for seq := uint64(10); seq > 0; seq-- {
		require.NoError(t, h.Insert(stamped{time: 100, seq: seq}))
	}

	// THEN they dequeue by sequence number
	for want := uint64(1); want <= 10; want++ {
		got, err := h.DeleteMin()
		require.NoError(t, err)
		assert.Equal(t, want, got.seq)
	}
}
