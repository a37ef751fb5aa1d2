package sim

import (
	"fmt"

	"github.com/schedsim/schedsim/sim/command"
	"github.com/schedsim/schedsim/sim/material"
	"github.com/schedsim/schedsim/sim/move"
)

// Apply runs one command to quiescence. Commands that change the model
// re-simulate the schedule from the clock. A rejected command returns an
// error and leaves the scenario unchanged; a pass that overflows the event
// queue also returns an error, with the schedule as far as it got. Move
// commands return their result, including fatal move failures, which are not
// errors and leave the scenario unchanged.
func (s *Scenario) Apply(cmd command.Command, maxReapply int) (*move.Result, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	prev := s.Stats
	s.Stats = PassStats{}
	res, err := s.apply(cmd, maxReapply)
	if err != nil || (res != nil && res.Terminal()) {
		s.Stats = prev
	}
	return res, err
}

func (s *Scenario) apply(cmd command.Command, maxReapply int) (*move.Result, error) {
	switch cmd.Kind {
	case command.KindOptimize:
		return nil, s.simulate(nil)
	case command.KindAdvanceClock:
		return nil, s.advanceClock(cmd.AdvanceClock.To)
	case command.KindMove:
		return s.applyMove(*cmd.Move, maxReapply)
	case command.KindReceiveLot:
		return nil, s.receiveLot(*cmd.ReceiveLot)
	case command.KindSetDowntime:
		return nil, s.setDowntime(*cmd.SetDowntime)
	case command.KindLockActivity:
		return nil, s.lockActivity(*cmd.LockActivity)
	default:
		return nil, fmt.Errorf("command %d: unhandled kind %q", cmd.Seq, cmd.Kind)
	}
}

// advanceClock moves the clock to to. Batches that ended become finished and
// batches that started become in-process; their material leaves the lots
// for good.
func (s *Scenario) advanceClock(to int64) error {
	if to < s.Clock {
		return fmt.Errorf("advance clock: %d is before the clock %d", to, s.Clock)
	}
	if to >= s.Horizon {
		return fmt.Errorf("advance clock: %d is not before the horizon %d", to, s.Horizon)
	}
	s.Clock = to
	for _, b := range s.Batches {
		switch {
		case b.End <= to:
			for _, a := range b.Activities {
				a.Finished, a.InProcess = true, false
				consume(a)
			}
		case b.Start < to:
			for _, a := range b.Activities {
				a.InProcess = true
				consume(a)
			}
		}
	}
	return s.simulate(nil)
}

func consume(a *Activity) {
	if a.consumed {
		return
	}
	for _, al := range a.Allocations {
		al.Lot.Consume(al.Qty)
	}
	a.consumed = true
}

func (s *Scenario) receiveLot(r command.ReceiveLot) error {
	var dup bool
	s.eachLot(func(l *material.Lot) { dup = dup || l.ID == r.Lot })
	if dup {
		return fmt.Errorf("receive lot: duplicate lot %q", r.Lot)
	}
	area := s.Area(r.Area)
	if area == nil {
		area = &material.StorageArea{ID: r.Area}
		s.AddArea(area)
	}
	lot := material.NewLot(r.Lot, r.Item, r.Qty, r.ProductionTick)
	lot.LotCode = r.LotCode
	lot.ExpirationTick = r.ExpirationTick
	lot.Wear = r.Wear
	st := area.EnsureStorage(r.Item)
	st.Lots = append(st.Lots, lot)
	return s.simulate(nil)
}

func (s *Scenario) setDowntime(d command.SetDowntime) error {
	r := s.Resource(d.Resource)
	if r == nil {
		return fmt.Errorf("set downtime: unknown resource %q", d.Resource)
	}
	r.Timeline.Insert(Interval{Start: d.Start, End: d.End, Kind: Offline})
	return s.simulate(nil)
}

func (s *Scenario) lockActivity(l command.LockActivity) error {
	key := ActivityKey(l.Activity)
	a := s.Activity(key)
	if a == nil {
		return fmt.Errorf("lock activity: unknown activity %s", key)
	}
	if !l.Locked {
		a.Locked, a.Anchored = false, false
		return s.simulate(nil)
	}
	if !a.Scheduled {
		return fmt.Errorf("lock activity: %s is not scheduled", key)
	}
	a.Locked = true
	a.anchor()
	return s.simulate(nil)
}
