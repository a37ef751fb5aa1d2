package sim

import (
	"fmt"
	"sort"
)

// IntervalKind is the state of a resource over a timeline interval.
type IntervalKind int

const (
	Online IntervalKind = iota
	Offline
	Cleanout
)

func (k IntervalKind) String() string {
	switch k {
	case Online:
		return "online"
	case Offline:
		return "offline"
	case Cleanout:
		return "cleanout"
	default:
		return fmt.Sprintf("IntervalKind(%d)", int(k))
	}
}

// Interval is a half-open span [Start, End) of one kind.
type Interval struct {
	Start int64
	End   int64
	Kind  IntervalKind
}

// IntervalHandle refers to a timeline interval. A handle goes stale when the
// interval is split or replaced; stale handles never resolve again, even if
// the arena slot is reused.
type IntervalHandle struct {
	slot int32
	gen  uint32
}

// NoInterval is the zero handle; it never resolves.
var NoInterval = IntervalHandle{slot: -1}

type slot struct {
	iv   Interval
	gen  uint32
	live bool
}

// Timeline is an ordered, gap-free partition of [0, horizon) into intervals,
// stored in an arena with generation-checked handles.
type Timeline struct {
	slots []slot
	free  []int32
	order []int32 // live slots sorted by Start
}

// NewTimeline builds an Online timeline over [0, horizon) and overlays the
// given intervals in order.
func NewTimeline(horizon int64, overlays ...Interval) *Timeline {
	if horizon <= 0 {
		panic(fmt.Sprintf("sim.NewTimeline: horizon must be positive, got %d", horizon))
	}
	t := &Timeline{}
	t.order = append(t.order, t.alloc(Interval{Start: 0, End: horizon, Kind: Online}))
	for _, iv := range overlays {
		t.Insert(iv)
	}
	return t
}

func (t *Timeline) alloc(iv Interval) int32 {
	if n := len(t.free); n > 0 {
		idx := t.free[n-1]
		t.free = t.free[:n-1]
		s := &t.slots[idx]
		s.gen++
		s.iv = iv
		s.live = true
		return idx
	}
	t.slots = append(t.slots, slot{iv: iv, gen: 1, live: true})
	return int32(len(t.slots) - 1)
}

func (t *Timeline) retire(idx int32) {
	t.slots[idx].live = false
	t.free = append(t.free, idx)
}

func (t *Timeline) handle(idx int32) IntervalHandle {
	return IntervalHandle{slot: idx, gen: t.slots[idx].gen}
}

// Valid reports whether h still names a live interval.
func (t *Timeline) Valid(h IntervalHandle) bool {
	if h.slot < 0 || int(h.slot) >= len(t.slots) {
		return false
	}
	s := t.slots[h.slot]
	return s.live && s.gen == h.gen
}

// Get resolves h. Resolving a stale handle panics.
func (t *Timeline) Get(h IntervalHandle) Interval {
	if !t.Valid(h) {
		panic(fmt.Sprintf("sim: stale interval handle %v", h))
	}
	return t.slots[h.slot].iv
}

// End returns the end of the timeline.
func (t *Timeline) End() int64 {
	return t.slots[t.order[len(t.order)-1]].iv.End
}

func (t *Timeline) position(tick int64) int {
	return sort.Search(len(t.order), func(i int) bool { return t.slots[t.order[i]].iv.End > tick })
}

// At returns the interval containing tick.
func (t *Timeline) At(tick int64) (IntervalHandle, bool) {
	i := t.position(tick)
	if i == len(t.order) || tick < 0 {
		return NoInterval, false
	}
	return t.handle(t.order[i]), true
}

// Next returns the interval following h.
func (t *Timeline) Next(h IntervalHandle) (IntervalHandle, bool) {
	iv := t.Get(h)
	i := t.position(iv.Start)
	if i+1 >= len(t.order) {
		return NoInterval, false
	}
	return t.handle(t.order[i+1]), true
}

// Insert overlays iv. Every interval it touches is retired and replaced by
// its uncovered fragments, so handles to touched intervals go stale. Parts of
// iv beyond the timeline end are dropped.
func (t *Timeline) Insert(iv Interval) IntervalHandle {
	if iv.End <= iv.Start {
		panic(fmt.Sprintf("sim: empty interval [%d, %d)", iv.Start, iv.End))
	}
	if iv.Start < 0 {
		iv.Start = 0
	}
	if end := t.End(); iv.End > end {
		iv.End = end
	}
	if iv.Start >= iv.End {
		return NoInterval
	}

	first := t.position(iv.Start)
	last := first
	for last < len(t.order) && t.slots[t.order[last]].iv.Start < iv.End {
		last++
	}

	var repl []int32
	head := t.slots[t.order[first]].iv
	if head.Start < iv.Start {
		repl = append(repl, t.alloc(Interval{Start: head.Start, End: iv.Start, Kind: head.Kind}))
	}
	tail := t.slots[t.order[last-1]].iv
	mid := t.alloc(iv)
	repl = append(repl, mid)
	if tail.End > iv.End {
		repl = append(repl, t.alloc(Interval{Start: iv.End, End: tail.End, Kind: tail.Kind}))
	}
	for _, idx := range t.order[first:last] {
		t.retire(idx)
	}

	order := make([]int32, 0, len(t.order)-(last-first)+len(repl))
	order = append(order, t.order[:first]...)
	order = append(order, repl...)
	order = append(order, t.order[last:]...)
	t.order = order
	return t.handle(mid)
}

// Intervals returns the live intervals in time order.
func (t *Timeline) Intervals() []Interval {
	out := make([]Interval, len(t.order))
	for i, idx := range t.order {
		out[i] = t.slots[idx].iv
	}
	return out
}

// OnlineUntil returns the end of the run of Online intervals containing tick,
// or tick itself when the resource is not online there.
func (t *Timeline) OnlineUntil(tick int64) int64 {
	i := t.position(tick)
	end := tick
	for ; i < len(t.order); i++ {
		iv := t.slots[t.order[i]].iv
		if iv.Kind != Online || iv.Start > end {
			break
		}
		end = iv.End
	}
	return end
}

// Clone copies the timeline. Handles into the original resolve identically
// in the copy.
func (t *Timeline) Clone() *Timeline {
	c := &Timeline{
		slots: make([]slot, len(t.slots)),
		free:  make([]int32, len(t.free)),
		order: make([]int32, len(t.order)),
	}
	copy(c.slots, t.slots)
	copy(c.free, t.free)
	copy(c.order, t.order)
	return c
}
