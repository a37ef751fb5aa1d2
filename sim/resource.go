package sim

// Resource is a capacity-limited machine or line. Timeline is its calendar;
// SetDowntime edits it. Each simulation pass works on a clone so that
// cleanouts inserted by the pass never leak into the calendar.
type Resource struct {
	ID            string
	BatchCapacity int   // activities per batch; 1 or less disables batching
	CleanoutEvery int   // batches between cleanouts; 0 disables cleanouts
	CleanoutTicks int64 // length of one cleanout
	Timeline      *Timeline

	// Pass state. Online changes only in availability event handlers.
	working      *Timeline
	online       bool
	busyUntil    int64
	batches      []*Batch
	waiting      []*Activity
	reservations []*Reservation
	sinceClean   int
	transition   IntervalHandle
	transitionEv uint64 // sequence number of the one live transition event
}

// Online reports the resource state at the end of the last pass.
func (r *Resource) Online() bool { return r.online }

// BusyUntil returns the end of the last batch placed in the last pass.
func (r *Resource) BusyUntil() int64 { return r.busyUntil }

// Batches returns the batches the last pass placed on the resource.
func (r *Resource) Batches() []*Batch { return r.batches }

// WorkingTimeline returns the calendar including the last pass's cleanouts.
func (r *Resource) WorkingTimeline() *Timeline {
	if r.working == nil {
		return r.Timeline
	}
	return r.working
}

func (r *Resource) reset() {
	r.working = r.Timeline.Clone()
	r.online = false
	r.busyUntil = 0
	r.batches = nil
	r.waiting = nil
	r.reservations = nil
	r.sinceClean = 0
	r.transition = NoInterval
	r.transitionEv = 0
}

func (r *Resource) addWaiting(a *Activity) {
	for _, w := range r.waiting {
		if w == a {
			return
		}
	}
	r.waiting = append(r.waiting, a)
}

func (r *Resource) lastBatch() *Batch {
	if len(r.batches) == 0 {
		return nil
	}
	return r.batches[len(r.batches)-1]
}

// blockingReservation returns a reservation held for other activities that
// overlaps [start, end).
func (r *Resource) blockingReservation(a *Activity, start, end int64) *Reservation {
	for _, res := range r.reservations {
		if !res.owns(a) && res.overlaps(start, end) {
			return res
		}
	}
	return nil
}

func (r *Resource) removeReservation(res *Reservation) {
	for i, x := range r.reservations {
		if x == res {
			r.reservations = append(r.reservations[:i:i], r.reservations[i+1:]...)
			return
		}
	}
}

type resourceState struct {
	working      *Timeline
	online       bool
	busyUntil    int64
	batches      []*Batch
	waiting      []*Activity
	reservations []*Reservation
	sinceClean   int
	transition   IntervalHandle
	transitionEv uint64
}

func (r *Resource) capture() resourceState {
	return resourceState{
		working: r.working, online: r.online, busyUntil: r.busyUntil,
		batches: r.batches, waiting: r.waiting, reservations: r.reservations,
		sinceClean: r.sinceClean, transition: r.transition, transitionEv: r.transitionEv,
	}
}

func (r *Resource) restore(st resourceState) {
	r.working, r.online, r.busyUntil = st.working, st.online, st.busyUntil
	r.batches, r.waiting, r.reservations = st.batches, st.waiting, st.reservations
	r.sinceClean, r.transition, r.transitionEv = st.sinceClean, st.transition, st.transitionEv
}
