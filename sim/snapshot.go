package sim

import (
	"github.com/shopspring/decimal"

	"github.com/schedsim/schedsim/sim/material"
)

// ScheduleSnapshot is a read-only copy of a scenario's schedule. It shares no
// memory with the scenario.
type ScheduleSnapshot struct {
	Scenario    string
	Clock       int64
	Horizon     int64
	Resources   []ResourceView
	Batches     []BatchView
	Activities  []ActivityView
	Unscheduled []ActivityKey
	Lots        []LotView
	Stats       PassStats
}

// ResourceView is a resource with the calendar of the last pass.
type ResourceView struct {
	ID        string
	Online    bool
	BusyUntil int64
	Batches   int
	Intervals []Interval
}

// BatchView is one placed batch.
type BatchView struct {
	ID         int64
	Resource   string
	Key        string
	Start      int64
	End        int64
	Activities []ActivityKey
}

// AllocationView is material committed to an activity.
type AllocationView struct {
	Area string
	Item string
	Lot  string
	Qty  decimal.Decimal
}

// ActivityView is an activity and its placement.
type ActivityView struct {
	Key             ActivityKey
	ProcessingTicks int64
	Scheduled       bool
	InProcess       bool
	Finished        bool
	Locked          bool
	Anchored        bool
	Start           int64
	End             int64
	Resource        string
	Batch           int64
	Allocations     []AllocationView
}

// LotView is the state of one lot.
type LotView struct {
	Area           string
	Item           string
	ID             string
	LotCode        string
	OnHand         decimal.Decimal
	Remaining      decimal.Decimal
	ProductionTick int64
	ExpirationTick int64
	Wear           int64
}

// Snapshot copies the current schedule.
func (s *Scenario) Snapshot() *ScheduleSnapshot {
	snap := &ScheduleSnapshot{
		Scenario: s.ID,
		Clock:    s.Clock,
		Horizon:  s.Horizon,
		Stats:    s.Stats,
	}
	for _, r := range s.Resources {
		snap.Resources = append(snap.Resources, ResourceView{
			ID:        r.ID,
			Online:    r.online,
			BusyUntil: r.busyUntil,
			Batches:   len(r.batches),
			Intervals: r.WorkingTimeline().Intervals(),
		})
	}
	for _, b := range s.Batches {
		bv := BatchView{ID: b.ID, Resource: b.Resource, Key: b.Key, Start: b.Start, End: b.End}
		for _, a := range b.Activities {
			bv.Activities = append(bv.Activities, a.Key)
		}
		snap.Batches = append(snap.Batches, bv)
	}
	s.eachActivity(func(a *Activity) {
		av := ActivityView{
			Key:             a.Key,
			ProcessingTicks: a.ProcessingTicks,
			Scheduled:       a.Scheduled,
			InProcess:       a.InProcess,
			Finished:        a.Finished,
			Locked:          a.Locked,
			Anchored:        a.Anchored,
			Start:           a.Start,
			End:             a.End,
			Resource:        a.Resource,
		}
		if a.Batch != nil {
			av.Batch = a.Batch.ID
		}
		for _, al := range a.Allocations {
			av.Allocations = append(av.Allocations, AllocationView{
				Area: al.Storage.Area, Item: al.Storage.Item, Lot: al.Lot.ID, Qty: al.Qty,
			})
		}
		snap.Activities = append(snap.Activities, av)
	})
	for _, a := range s.Unscheduled {
		snap.Unscheduled = append(snap.Unscheduled, a.Key)
	}
	for _, area := range s.Areas {
		for _, st := range area.Storages {
			for _, l := range st.Lots {
				snap.Lots = append(snap.Lots, lotView(st, l))
			}
		}
	}
	return snap
}

func lotView(st *material.ItemStorage, l *material.Lot) LotView {
	return LotView{
		Area:           st.Area,
		Item:           st.Item,
		ID:             l.ID,
		LotCode:        l.LotCode,
		OnHand:         l.OnHand,
		Remaining:      l.Remaining,
		ProductionTick: l.ProductionTick,
		ExpirationTick: l.ExpirationTick,
		Wear:           l.Wear,
	}
}

// Activity returns the view of key, or false.
func (snap *ScheduleSnapshot) Activity(key ActivityKey) (ActivityView, bool) {
	for _, a := range snap.Activities {
		if a.Key == key {
			return a, true
		}
	}
	return ActivityView{}, false
}
