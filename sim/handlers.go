package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// dispatch runs the handler for ev. The switch is exhaustive over EventKind.
func (sim *Simulator) dispatch(ev *Event) {
	switch ev.Kind {
	case ClockRelease, OptimizationRelease, DelayedReleaseToResource, JITCompressRelease:
		sim.onOrderRelease(ev)
	case RightMovingNeighborRelease:
		sim.onNeighborRelease(ev)
	case ReleaseToResource, HeadStartWindowRetry, ScheduledDateBeforeMoveRelease:
		sim.attempt(ev.Activity, ev.Resource)
	case InProcessRelease:
		sim.onInProcessRelease(ev)
	case AnchorRelease:
		sim.onAnchorRelease(ev)
	case ResourceAvailable, ResourceUnavailable, ResourceCleanout:
		sim.onTransition(ev)
	case ResourceReservation:
		sim.onReservationStart(ev)
	case BlockReservation:
		sim.onReservationEnd(ev)
	case ConnectorRelease:
		sim.onConnectorRelease(ev)
	default:
		panic(fmt.Sprintf("sim: unknown event kind %d", uint8(ev.Kind)))
	}
}

func (sim *Simulator) cancel(ev *Event, why string) {
	sim.Cancelled++
	logrus.Debugf("[tick %07d] cancelled %s: %s", sim.Clock, ev, why)
}

// onOrderRelease handles the normal release path. Pinned activities ignore
// it unless their pin fired before the predecessor operation was placed; those
// go to the resource their pin named.
func (sim *Simulator) onOrderRelease(ev *Event) {
	a := ev.Activity
	switch {
	case a.Scheduled:
		sim.cancel(ev, "already scheduled")
	case sim.held[a] != nil:
		r := sim.held[a]
		delete(sim.held, a)
		sim.attempt(a, r)
	case sim.pins[a] != nil:
		sim.cancel(ev, "pinned")
	default:
		sim.fanOut(a)
	}
}

// onNeighborRelease re-releases an activity pushed right by a reservation:
// to one resource when the event names it, otherwise to all eligible ones.
func (sim *Simulator) onNeighborRelease(ev *Event) {
	a := ev.Activity
	if a.Scheduled {
		sim.cancel(ev, "already scheduled")
		return
	}
	if ev.Resource != nil {
		sim.attempt(a, ev.Resource)
		return
	}
	sim.fanOut(a)
}

// fanOut releases a to every eligible resource in preference order. The
// first placement wins; the other attempts find the activity scheduled.
func (sim *Simulator) fanOut(a *Activity) {
	if a.NeedTick > 0 {
		if hold := a.NeedTick - a.ProcessingTicks; hold > sim.Clock {
			sim.release(JITCompressRelease, hold, a, nil)
			return
		}
	}
	from := ""
	if prev := a.op.Previous(); prev != nil && len(prev.Activities) > 0 {
		from = prev.Activities[0].Resource
	}
	for _, id := range a.EligibleResources {
		r := sim.sc.Resource(id)
		if c := sim.sc.connector(from, id); c != nil && from != "" {
			sim.requestTransfer(c, a, r)
			continue
		}
		sim.release(ReleaseToResource, sim.Clock, a, r)
	}
}

func (sim *Simulator) onInProcessRelease(ev *Event) {
	a, r := ev.Activity, ev.Resource
	if a.Scheduled {
		sim.cancel(ev, "already scheduled")
		return
	}
	sim.place(a, r, a.Start, a.Start+a.ProcessingTicks, nil, sim.forcedBatch(a, r, a.Start))
}

func (sim *Simulator) onAnchorRelease(ev *Event) {
	a, r := ev.Activity, ev.Resource
	if a.Scheduled {
		sim.cancel(ev, "already scheduled")
		return
	}
	start := sim.Clock
	plans, ok, _, _ := sim.planMaterials(a, start)
	if !ok {
		logrus.Warnf("[tick %07d] locked activity %s placed with a material shortage", sim.Clock, a.Key)
	}
	sim.place(a, r, start, start+a.ProcessingTicks, plans, sim.forcedBatch(a, r, start))
}

// onTransition applies a timeline transition unless its interval handle went
// stale or was superseded.
func (sim *Simulator) onTransition(ev *Event) {
	r := ev.Resource
	if !r.working.Valid(ev.Interval) || ev.Interval != r.transition || ev.Seq != r.transitionEv {
		sim.cancel(ev, "superseded transition")
		return
	}
	iv := r.working.Get(ev.Interval)
	r.online = iv.Kind == Online
	if r.online {
		waiting := r.waiting
		r.waiting = nil
		for _, a := range waiting {
			if !a.Scheduled {
				sim.release(ReleaseToResource, sim.Clock, a, r)
			}
		}
	}
	sim.armNext(r)
}

func transitionKind(k IntervalKind) EventKind {
	switch k {
	case Online:
		return ResourceAvailable
	case Cleanout:
		return ResourceCleanout
	default:
		return ResourceUnavailable
	}
}

// armCurrent queues the transition into the interval holding the clock.
func (sim *Simulator) armCurrent(r *Resource) {
	h, ok := r.working.At(sim.Clock)
	if !ok {
		return
	}
	sim.arm(r, h, sim.Clock)
}

// armNext keeps exactly one live transition queued: the one into the
// interval after the current tick.
func (sim *Simulator) armNext(r *Resource) {
	cur, ok := r.working.At(sim.Clock)
	if !ok {
		return
	}
	next, ok := r.working.Next(cur)
	if !ok {
		r.transition = NoInterval
		return
	}
	if next == r.transition && r.transitionEv != 0 {
		return
	}
	sim.arm(r, next, r.working.Get(next).Start)
}

func (sim *Simulator) arm(r *Resource, h IntervalHandle, at int64) {
	ev := &Event{Kind: transitionKind(r.working.Get(h).Kind), Time: at, Resource: r, Interval: h}
	sim.schedule(ev)
	r.transition = h
	r.transitionEv = ev.Seq
}

func (sim *Simulator) onReservationStart(ev *Event) {
	res := ev.Reservation
	for _, a := range res.owners {
		if !a.Scheduled {
			sim.attempt(a, res.Resource)
		}
	}
}

func (sim *Simulator) onReservationEnd(ev *Event) {
	r := ev.Resource
	r.removeReservation(ev.Reservation)
	if !r.online {
		return
	}
	waiting := r.waiting
	r.waiting = nil
	for _, a := range waiting {
		if !a.Scheduled {
			sim.release(ReleaseToResource, sim.Clock, a, r)
		}
	}
}

// requestTransfer starts moving a over c to r, or queues it behind the
// transfer in progress.
func (sim *Simulator) requestTransfer(c *Connector, a *Activity, r *Resource) {
	t := &transfer{activity: a, to: r}
	if c.busyUntil > sim.Clock {
		c.queue = append(c.queue, t)
		return
	}
	sim.startTransfer(c, t)
}

func (sim *Simulator) startTransfer(c *Connector, t *transfer) {
	c.busyUntil = sim.Clock + c.TransferTicks
	sim.schedule(&Event{Kind: ConnectorRelease, Time: c.busyUntil, Activity: t.activity, Resource: t.to, Connector: c})
}

func (sim *Simulator) onConnectorRelease(ev *Event) {
	c := ev.Connector
	if !ev.Activity.Scheduled {
		sim.release(ReleaseToResource, sim.Clock, ev.Activity, ev.Resource)
	}
	for len(c.queue) > 0 {
		next := c.queue[0]
		c.queue = c.queue[1:]
		if next.activity.Scheduled {
			continue
		}
		sim.startTransfer(c, next)
		return
	}
}
