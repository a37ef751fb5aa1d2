package sim

import (
	"github.com/sirupsen/logrus"

	"github.com/schedsim/schedsim/sim/material"
)

// attempt tries to place a on r at the clock. When the placement cannot
// happen now it queues the retry that can succeed next: at the end of the
// current batch, at the end of a blocking reservation, at the next supply of
// a short material, or when the resource comes back online.
func (sim *Simulator) attempt(a *Activity, r *Resource) {
	now := sim.Clock
	if a.Scheduled {
		sim.Cancelled++
		return
	}
	if !sim.ready(a, r) {
		return
	}
	end := now + a.ProcessingTicks

	if b := sim.joinable(a, r, now); b != nil {
		if plans, ok := sim.reserveMaterials(a, r, now); ok {
			sim.place(a, r, now, end, plans, b)
		}
		return
	}
	if !r.online {
		r.addWaiting(a)
		return
	}
	if r.busyUntil > now {
		sim.release(ReleaseToResource, r.busyUntil, a, r)
		return
	}
	if r.working.OnlineUntil(now) < end {
		r.addWaiting(a)
		return
	}
	if res := r.blockingReservation(a, now, end); res != nil {
		sim.release(RightMovingNeighborRelease, res.End, a, r)
		return
	}
	plans, ok := sim.reserveMaterials(a, r, now)
	if !ok {
		return
	}
	sim.place(a, r, now, end, plans, nil)
}

// ready reports whether the order release and the predecessor operation let
// a start now. Otherwise a is retried on r at the first tick they allow, or
// held until every predecessor activity is placed.
func (sim *Simulator) ready(a *Activity, r *Resource) bool {
	at := a.op.order.ReleaseTick
	if prev := a.op.Previous(); prev != nil {
		latest, ok := prev.complete()
		if !ok {
			sim.held[a] = r
			return false
		}
		at = latest + prev.TransferTicks
	}
	if at > sim.Clock {
		sim.release(ReleaseToResource, at, a, r)
		return false
	}
	return true
}

// joinable returns the batch a can join on r at now, or nil.
func (sim *Simulator) joinable(a *Activity, r *Resource, now int64) *Batch {
	if a.BatchKey == "" || r.BatchCapacity <= 1 || !r.online {
		return nil
	}
	b := r.lastBatch()
	if b == nil || b.Start != now || b.Key != a.BatchKey || len(b.Activities) >= r.BatchCapacity {
		return nil
	}
	end := max(b.End, now+a.ProcessingTicks)
	if r.working.OnlineUntil(now) < end || r.blockingReservation(a, now, end) != nil {
		return nil
	}
	return b
}

// forcedBatch returns the batch a joins when it is placed without capacity
// checks, or nil for a new batch.
func (sim *Simulator) forcedBatch(a *Activity, r *Resource, start int64) *Batch {
	b := r.lastBatch()
	if b != nil && a.BatchKey != "" && b.Start == start && b.Key == a.BatchKey {
		return b
	}
	return nil
}

// planMaterials builds one allocation plan per requirement of a against a
// shared promise ledger. When a requirement is short it also reports the
// earliest tick at which more eligible supply appears.
func (sim *Simulator) planMaterials(a *Activity, now int64) (plans []*material.Plan, ok bool, retry int64, hasRetry bool) {
	ok = true
	if a.consumed {
		return nil, true, 0, false
	}
	for _, req := range a.Materials {
		d := material.NewDemand(req.Item, req.Qty)
		d.Policy = req.Policy
		d.AllowPartialSupply = req.AllowPartialSupply
		d.AllowMultiStorageAreaSupply = req.AllowMultiStorageAreaSupply
		d.Constraints = req.Constraints

		storages := sim.sc.storagesFor(req.Item)
		p := material.NewPlan(d, storages, now, sim.tentative)
		plans = append(plans, p)
		if p.Satisfied() {
			continue
		}
		ok = false
		age := req.Constraints.MinAge
		for _, st := range storages {
			next, found := material.BuildSupplyProfile(st).NextSupplyAfter(now - age)
			if !found {
				continue
			}
			if next += age; !hasRetry || next < retry {
				retry, hasRetry = next, true
			}
		}
	}
	return plans, ok, retry, hasRetry
}

// reserveMaterials returns satisfied plans for a, or releases every promise
// and queues a HeadStartWindowRetry at the next supply tick.
func (sim *Simulator) reserveMaterials(a *Activity, r *Resource, now int64) ([]*material.Plan, bool) {
	plans, ok, retry, hasRetry := sim.planMaterials(a, now)
	if ok {
		return plans, true
	}
	for _, p := range plans {
		p.Release()
	}
	if hasRetry {
		sim.release(HeadStartWindowRetry, retry, a, r)
	} else {
		logrus.Debugf("[tick %07d] %s: material short with no further supply", now, a.Key)
	}
	return nil, false
}

// place commits plans and puts a on r over [start, end), in batch when one
// is given.
func (sim *Simulator) place(a *Activity, r *Resource, start, end int64, plans []*material.Plan, batch *Batch) {
	sc := sim.sc
	for _, p := range plans {
		p.Commit(nil)
		for _, al := range p.Allocations {
			sc.profileFor(al.Storage).Add(start, al.Qty)
			a.Allocations = append(a.Allocations, al)
		}
	}

	newBatch := batch == nil
	if newBatch {
		batch = &Batch{ID: sc.newBatchID(), Resource: r.ID, Key: a.BatchKey, Start: start, End: end}
		r.batches = append(r.batches, batch)
		sc.Batches = append(sc.Batches, batch)
		r.sinceClean++
	}
	batch.Activities = append(batch.Activities, a)
	if end > batch.End {
		batch.End = end
	}
	a.Scheduled, a.Start, a.End, a.Resource, a.Batch = true, start, end, r.ID, batch
	if batch.End > r.busyUntil {
		r.busyUntil = batch.End
	}
	logrus.Debugf("[tick %07d] placed %s on %s [%d, %d) in batch %d", sim.Clock, a.Key, r.ID, start, end, batch.ID)

	if newBatch && r.CleanoutEvery > 0 && r.sinceClean >= r.CleanoutEvery {
		r.sinceClean = 0
		sim.insertCleanout(r, batch.End)
	}
	sim.releaseSuccessors(a.op)
}

// insertCleanout overlays a cleanout at tick on the working timeline and
// re-arms the resource's next transition. The superseded transition event
// stays queued and is discarded when it fires.
func (sim *Simulator) insertCleanout(r *Resource, at int64) {
	if r.CleanoutTicks <= 0 || at <= sim.Clock || at >= r.working.End() {
		return
	}
	r.working.Insert(Interval{Start: at, End: at + r.CleanoutTicks, Kind: Cleanout})
	sim.armNext(r)
}

// releaseSuccessors releases the next operation once every activity of op
// has a placement, TransferTicks after the latest end.
func (sim *Simulator) releaseSuccessors(op *Operation) {
	if op.successorsReleased {
		return
	}
	latest, ok := op.complete()
	if !ok {
		return
	}
	op.successorsReleased = true
	next := op.Next()
	if next == nil {
		return
	}
	at := max(latest+op.TransferTicks, sim.Clock)
	for _, a := range next.Activities {
		if !a.Finished && !a.Scheduled {
			sim.release(DelayedReleaseToResource, at, a, nil)
		}
	}
}
