// sim/simulator.go
package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/schedsim/schedsim/sim/eventqueue"
	"github.com/schedsim/schedsim/sim/material"
)

// pin fixes how one activity is released during a pass instead of the
// normal order-release path.
type pin struct {
	kind     EventKind
	resource *Resource // nil releases to every eligible resource
	tick     int64
}

// Simulator runs one simulation pass: it re-places every unfinished activity
// of a scenario from the scenario clock. It holds the event queue and the
// per-pass sequence counter; both are discarded when the pass ends.
//
// Thread-safety: NOT thread-safe. One pass runs to completion on one goroutine.
type Simulator struct {
	Clock   int64
	Horizon int64

	sc        *Scenario
	queue     *eventqueue.MinHeap[*Event]
	nextSeq   uint64
	pins      map[*Activity]*pin
	held      map[*Activity]*Resource // pinned, waiting for the predecessor operation
	tentative *material.Tentative
	err       error

	Events    int64
	Cancelled int64
}

func newSimulator(sc *Scenario, pins map[*Activity]*pin) *Simulator {
	maxEvents := sc.MaxEvents
	if maxEvents <= 0 {
		maxEvents = eventqueue.DefaultMaxCapacity
	}
	if pins == nil {
		pins = make(map[*Activity]*pin)
	}
	return &Simulator{
		Clock:     sc.Clock,
		Horizon:   sc.Horizon,
		sc:        sc,
		queue:     eventqueue.New(eventLess, maxEvents),
		pins:      pins,
		held:      make(map[*Activity]*Resource),
		tentative: material.NewTentative(),
	}
}

// schedule stamps ev with the next sequence number and queues it.
func (sim *Simulator) schedule(ev *Event) {
	if ev.Time < sim.Clock {
		panic(fmt.Sprintf("sim: scheduling %s in the past (clock %d)", ev, sim.Clock))
	}
	sim.nextSeq++
	ev.Seq = sim.nextSeq
	if sim.err != nil {
		return
	}
	if err := sim.queue.Insert(ev); err != nil {
		sim.err = fmt.Errorf("scheduling %s: %w", ev, err)
	}
}

func (sim *Simulator) release(kind EventKind, t int64, a *Activity, r *Resource) {
	sim.schedule(&Event{Kind: kind, Time: t, Activity: a, Resource: r})
}

// Run dispatches events until the queue drains or the horizon is passed.
func (sim *Simulator) Run() error {
	for sim.queue.Len() > 0 && sim.err == nil {
		ev, err := sim.queue.DeleteMin()
		if err != nil {
			return err
		}
		if ev.Time < sim.Clock {
			panic(fmt.Sprintf("Clock went backwards: %d -> %d (%s)", sim.Clock, ev.Time, ev))
		}
		if ev.Time > sim.Horizon {
			break
		}
		sim.Clock = ev.Time
		sim.Events++
		logrus.Debugf("[tick %07d] %s", sim.Clock, ev)
		sim.dispatch(ev)
	}
	return sim.err
}

// seed queues the initial events of a pass: one availability transition per
// resource, every pin, and the release of each order's first operation.
func (sim *Simulator) seed() {
	sc := sim.sc
	for _, r := range sc.Resources {
		sim.armCurrent(r)
	}
	for _, a := range sc.Activities() {
		if p := sim.pins[a]; p != nil {
			sim.seedPin(a, p)
		}
	}
	for _, j := range sc.Jobs {
		for _, mo := range j.Orders {
			for i, op := range mo.Operations {
				if i == 0 {
					sim.seedOrderRelease(mo, op)
					continue
				}
				prev := op.Previous()
				if allFinished(prev) {
					sim.releaseSuccessors(prev)
				}
			}
		}
	}
}

func (sim *Simulator) seedOrderRelease(mo *ManufacturingOrder, op *Operation) {
	for _, a := range op.Activities {
		if a.Finished || sim.pins[a] != nil {
			continue
		}
		if mo.ReleaseTick > sim.Clock {
			sim.release(ClockRelease, mo.ReleaseTick, a, nil)
		} else {
			sim.release(OptimizationRelease, sim.Clock, a, nil)
		}
	}
}

func (sim *Simulator) seedPin(a *Activity, p *pin) {
	at := p.tick
	if at < sim.Clock {
		at = sim.Clock
	}
	switch p.kind {
	case ResourceReservation:
		return // queued once per reservation by seedReservation
	case AnchorRelease:
		// Others must leave the anchored span free.
		p.resource.reservations = append(p.resource.reservations,
			&Reservation{Resource: p.resource, Start: at, End: at + a.ProcessingTicks, owners: []*Activity{a}})
	}
	sim.release(p.kind, at, a, p.resource)
}

// seedReservation registers res on its resource for the whole pass and
// queues its start and end.
func (sim *Simulator) seedReservation(res *Reservation) {
	r := res.Resource
	r.reservations = append(r.reservations, res)
	sim.schedule(&Event{Kind: ResourceReservation, Time: res.Start, Resource: r, Reservation: res})
	if res.End <= sim.Horizon {
		sim.schedule(&Event{Kind: BlockReservation, Time: res.End, Resource: r, Reservation: res})
	}
}

func allFinished(op *Operation) bool {
	for _, a := range op.Activities {
		if !a.Finished {
			return false
		}
	}
	return true
}

// simulate resets the unfinished schedule and runs one pass with pins.
func (s *Scenario) simulate(pins map[*Activity]*pin, reservations ...*Reservation) error {
	s.resetSchedule()
	sim := newSimulator(s, s.basePins(pins))
	for _, res := range reservations {
		sim.seedReservation(res)
	}
	sim.seed()
	err := sim.Run()

	s.Unscheduled = nil
	s.eachActivity(func(a *Activity) {
		if !a.Scheduled && !a.Finished {
			s.Unscheduled = append(s.Unscheduled, a)
		}
	})
	s.Stats.Events += sim.Events
	s.Stats.Cancelled += sim.Cancelled
	s.Stats.Passes++
	if err != nil {
		return fmt.Errorf("simulating scenario %s: %w", s.ID, err)
	}
	logrus.Debugf("scenario %s: pass done at tick %d, %d events, %d unscheduled",
		s.ID, sim.Clock, sim.Events, len(s.Unscheduled))
	return nil
}

// basePins adds the pins every pass has: in-process activities stay where
// they run and anchored activities stay at their anchor unless the caller
// pinned them otherwise.
func (s *Scenario) basePins(pins map[*Activity]*pin) map[*Activity]*pin {
	if pins == nil {
		pins = make(map[*Activity]*pin)
	}
	s.eachActivity(func(a *Activity) {
		switch {
		case a.Finished:
		case a.InProcess:
			pins[a] = &pin{kind: InProcessRelease, resource: s.Resource(a.Resource), tick: s.Clock}
		case a.Anchored && pins[a] == nil:
			pins[a] = &pin{kind: AnchorRelease, resource: s.Resource(a.AnchorResource), tick: a.AnchorTick}
		}
	})
	return pins
}

// resetSchedule clears every unfinished placement before a pass. Finished
// batches stay in the schedule.
func (s *Scenario) resetSchedule() {
	var kept []*Batch
	for _, b := range s.Batches {
		if b.Finished(s.Clock) {
			kept = append(kept, b)
		}
	}
	s.Batches = kept
	s.Consumption = nil
	s.eachActivity(func(a *Activity) {
		if !a.Finished {
			a.unschedule()
		}
		a.op.successorsReleased = false
	})
	for _, r := range s.Resources {
		r.reset()
	}
	for _, c := range s.Connectors {
		c.busyUntil = 0
		c.queue = nil
	}
	s.eachLot(func(l *material.Lot) { l.Reset() })
}
