package sim

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/schedsim/schedsim/sim/material"
)

// PassStats counts the work of the last simulation pass.
type PassStats struct {
	Events    int64 // events dispatched
	Cancelled int64 // events discarded as stale or redundant
	Passes    int64 // passes run by the last command
}

// Scenario owns the model: resources, inventory, jobs and the current
// schedule. It is not safe for concurrent use; Engine serialises access.
type Scenario struct {
	ID      string
	Clock   int64
	Horizon int64

	// MaxEvents caps the event queue of one pass.
	MaxEvents int

	Resources  []*Resource
	Connectors []*Connector
	Areas      []*material.StorageArea
	Jobs       []*Job

	// Current schedule.
	Batches     []*Batch
	Unscheduled []*Activity
	Consumption []*material.DemandProfile
	Stats       PassStats

	nextBatchID int64
	resources   map[string]*Resource
	activities  map[ActivityKey]*Activity
}

// NewScenario creates an empty scenario.
func NewScenario(id string, clock, horizon int64) *Scenario {
	if horizon <= clock {
		panic(fmt.Sprintf("sim.NewScenario: horizon %d must be after clock %d", horizon, clock))
	}
	return &Scenario{
		ID:          id,
		Clock:       clock,
		Horizon:     horizon,
		nextBatchID: 1,
		resources:   make(map[string]*Resource),
		activities:  make(map[ActivityKey]*Activity),
	}
}

// AddResource registers r. A nil timeline becomes an always-online calendar.
func (s *Scenario) AddResource(r *Resource) error {
	if _, dup := s.resources[r.ID]; dup {
		return fmt.Errorf("duplicate resource %q", r.ID)
	}
	if r.Timeline == nil {
		r.Timeline = NewTimeline(s.Horizon)
	}
	r.transition = NoInterval
	s.resources[r.ID] = r
	s.Resources = append(s.Resources, r)
	return nil
}

// AddConnector registers c between two known resources.
func (s *Scenario) AddConnector(c *Connector) error {
	if s.resources[c.From] == nil || s.resources[c.To] == nil {
		return fmt.Errorf("connector %q joins unknown resources %q -> %q", c.ID, c.From, c.To)
	}
	if s.connector(c.From, c.To) != nil {
		return fmt.Errorf("duplicate connector %q -> %q", c.From, c.To)
	}
	s.Connectors = append(s.Connectors, c)
	return nil
}

// AddArea registers a storage area.
func (s *Scenario) AddArea(a *material.StorageArea) {
	s.Areas = append(s.Areas, a)
}

// AddJob links j into the scenario and indexes its activities.
func (s *Scenario) AddJob(j *Job) error {
	j.link()
	for _, mo := range j.Orders {
		for _, op := range mo.Operations {
			for _, a := range op.Activities {
				if _, dup := s.activities[a.Key]; dup {
					return fmt.Errorf("duplicate activity %s", a.Key)
				}
				if a.ProcessingTicks <= 0 {
					return fmt.Errorf("activity %s: processing ticks must be positive", a.Key)
				}
				for _, rid := range a.EligibleResources {
					if s.resources[rid] == nil {
						return fmt.Errorf("activity %s: unknown resource %q", a.Key, rid)
					}
				}
				s.activities[a.Key] = a
			}
		}
	}
	s.Jobs = append(s.Jobs, j)
	return nil
}

// Resource returns the resource with id, or nil.
func (s *Scenario) Resource(id string) *Resource {
	return s.resources[id]
}

// Activity returns the activity with key, or nil.
func (s *Scenario) Activity(key ActivityKey) *Activity {
	return s.activities[key]
}

// Batch returns the batch with id in the current schedule, or nil.
func (s *Scenario) Batch(id int64) *Batch {
	for _, b := range s.Batches {
		if b.ID == id {
			return b
		}
	}
	return nil
}

// Area returns the storage area with id, or nil.
func (s *Scenario) Area(id string) *material.StorageArea {
	for _, a := range s.Areas {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// Activities returns every activity in job, order, operation order.
func (s *Scenario) Activities() []*Activity {
	var out []*Activity
	s.eachActivity(func(a *Activity) { out = append(out, a) })
	return out
}

func (s *Scenario) eachActivity(fn func(*Activity)) {
	for _, j := range s.Jobs {
		for _, mo := range j.Orders {
			for _, op := range mo.Operations {
				for _, a := range op.Activities {
					fn(a)
				}
			}
		}
	}
}

func (s *Scenario) eachLot(fn func(*material.Lot)) {
	for _, area := range s.Areas {
		for _, st := range area.Storages {
			for _, l := range st.Lots {
				fn(l)
			}
		}
	}
}

func (s *Scenario) storagesFor(item string) []*material.ItemStorage {
	var out []*material.ItemStorage
	for _, area := range s.Areas {
		if st := area.Storage(item); st != nil {
			out = append(out, st)
		}
	}
	return out
}

func (s *Scenario) connector(from, to string) *Connector {
	for _, c := range s.Connectors {
		if c.From == from && c.To == to {
			return c
		}
	}
	return nil
}

func (s *Scenario) profileFor(st *material.ItemStorage) *material.DemandProfile {
	for _, p := range s.Consumption {
		if p.Area == st.Area && p.Item == st.Item {
			return p
		}
	}
	p := material.NewDemandProfile(st.Area, st.Item)
	s.Consumption = append(s.Consumption, p)
	return p
}

func (s *Scenario) newBatchID() int64 {
	id := s.nextBatchID
	s.nextBatchID++
	return id
}

// memento is everything a simulation pass rewrites, captured so a failed move
// can put the schedule back exactly.
type memento struct {
	activities  []activityState
	byActivity  map[*Activity]activityState
	resources   []resourceState
	connectors  []connectorState
	lots        []decimal.Decimal
	batches     []*Batch
	unscheduled []*Activity
	consumption []*material.DemandProfile
	stats       PassStats
	nextBatchID int64
}

type activityState struct {
	scheduled   bool
	start, end  int64
	resource    string
	batch       *Batch
	allocations []material.Allocation
}

type connectorState struct {
	busyUntil int64
	queue     []*transfer
}

func (s *Scenario) capture() *memento {
	m := &memento{
		batches:     s.Batches,
		unscheduled: s.Unscheduled,
		consumption: s.Consumption,
		stats:       s.Stats,
		nextBatchID: s.nextBatchID,
		byActivity:  make(map[*Activity]activityState),
	}
	s.eachActivity(func(a *Activity) {
		st := activityState{
			scheduled: a.Scheduled, start: a.Start, end: a.End,
			resource: a.Resource, batch: a.Batch, allocations: a.Allocations,
		}
		m.activities = append(m.activities, st)
		m.byActivity[a] = st
	})
	for _, r := range s.Resources {
		m.resources = append(m.resources, r.capture())
	}
	for _, c := range s.Connectors {
		m.connectors = append(m.connectors, connectorState{busyUntil: c.busyUntil, queue: c.queue})
	}
	s.eachLot(func(l *material.Lot) { m.lots = append(m.lots, l.Remaining) })
	return m
}

// prior returns the captured schedule of a.
func (m *memento) prior(a *Activity) activityState {
	return m.byActivity[a]
}

func (s *Scenario) restore(m *memento) {
	s.Batches, s.Unscheduled, s.Consumption = m.batches, m.unscheduled, m.consumption
	s.Stats, s.nextBatchID = m.stats, m.nextBatchID
	i := 0
	s.eachActivity(func(a *Activity) {
		st := m.activities[i]
		a.Scheduled, a.Start, a.End = st.scheduled, st.start, st.end
		a.Resource, a.Batch, a.Allocations = st.resource, st.batch, st.allocations
		i++
	})
	for i, r := range s.Resources {
		r.restore(m.resources[i])
	}
	for i, c := range s.Connectors {
		c.busyUntil, c.queue = m.connectors[i].busyUntil, m.connectors[i].queue
	}
	i = 0
	s.eachLot(func(l *material.Lot) {
		l.Remaining = m.lots[i]
		i++
	})
}
