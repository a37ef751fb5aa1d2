package sim

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/schedsim/schedsim/sim/material"
)

// ActivityKey identifies an activity by job, manufacturing order, operation
// and activity.
type ActivityKey struct {
	Job       string
	Order     string
	Operation string
	Activity  string
}

func (k ActivityKey) String() string {
	return k.Job + "/" + k.Order + "/" + k.Operation + "/" + k.Activity
}

// MaterialRequirement is one item an activity consumes when it starts.
type MaterialRequirement struct {
	Item                        string
	Qty                         decimal.Decimal
	Policy                      material.Policy
	AllowPartialSupply          bool
	AllowMultiStorageAreaSupply bool
	Constraints                 material.Constraints
}

// Activity is the schedulable unit. Its schedule fields are rewritten by every
// simulation pass except once it is finished.
type Activity struct {
	Key               ActivityKey
	ProcessingTicks   int64
	EligibleResources []string // preference order
	Materials         []MaterialRequirement
	BatchKey          string // activities with equal non-empty keys may share a batch
	NeedTick          int64  // just-in-time need date, 0 when none

	// Anchored activities are placed at AnchorTick on AnchorResource in every
	// pass. Locking anchors an activity and also forbids moving it; a
	// successful move anchors the moved activities.
	Locked         bool
	Anchored       bool
	AnchorResource string
	AnchorTick     int64

	// InProcess activities started before the clock; Finished ones ended at or
	// before it. Both keep their Start and Resource.
	InProcess bool
	Finished  bool

	Scheduled bool
	Start     int64
	End       int64
	Resource  string
	Batch     *Batch

	// Allocations committed for this activity in the current pass.
	Allocations []material.Allocation
	// consumed is set once the activity's material left the lots for good.
	consumed bool

	op *Operation
}

// Operation returns the owning operation.
func (a *Activity) Operation() *Operation {
	return a.op
}

// CanRunOn reports whether resourceID is in the eligible list.
func (a *Activity) CanRunOn(resourceID string) bool {
	for _, r := range a.EligibleResources {
		if r == resourceID {
			return true
		}
	}
	return false
}

// anchor pins a to its current placement.
func (a *Activity) anchor() {
	a.Anchored = true
	a.AnchorResource = a.Resource
	a.AnchorTick = a.Start
}

func (a *Activity) unschedule() {
	a.Scheduled = false
	a.Batch = nil
	a.Allocations = nil
	if !a.InProcess {
		a.Start, a.End, a.Resource = 0, 0, ""
	}
}

// Operation is a step of a manufacturing order. Its activities run in
// parallel; the next operation is released when all of them are scheduled,
// TransferTicks after the latest end.
type Operation struct {
	ID            string
	TransferTicks int64
	Activities    []*Activity

	order *ManufacturingOrder
	index int

	successorsReleased bool
}

// Next returns the following operation of the order, or nil.
func (op *Operation) Next() *Operation {
	if op.index+1 < len(op.order.Operations) {
		return op.order.Operations[op.index+1]
	}
	return nil
}

// Previous returns the preceding operation of the order, or nil.
func (op *Operation) Previous() *Operation {
	if op.index > 0 {
		return op.order.Operations[op.index-1]
	}
	return nil
}

// complete reports whether every activity has a placement, and the latest end.
func (op *Operation) complete() (int64, bool) {
	var latest int64
	for _, a := range op.Activities {
		if !a.Scheduled {
			return 0, false
		}
		if a.End > latest {
			latest = a.End
		}
	}
	return latest, true
}

// ManufacturingOrder is an ordered list of operations released at ReleaseTick.
type ManufacturingOrder struct {
	ID          string
	ReleaseTick int64
	Operations  []*Operation

	job *Job
}

// Job groups manufacturing orders.
type Job struct {
	ID     string
	Orders []*ManufacturingOrder
}

// link wires the parent pointers of the job tree.
func (j *Job) link() {
	for _, mo := range j.Orders {
		mo.job = j
		for i, op := range mo.Operations {
			op.order = mo
			op.index = i
			for _, a := range op.Activities {
				a.op = op
				a.Key = ActivityKey{Job: j.ID, Order: mo.ID, Operation: op.ID, Activity: a.Key.Activity}
			}
		}
	}
}

// Batch is a placement of one or more activities on a resource over
// [Start, End). Moves address batches as blocks by ID.
type Batch struct {
	ID         int64
	Resource   string
	Key        string
	Start      int64
	End        int64
	Activities []*Activity
}

func (b *Batch) String() string {
	return fmt.Sprintf("batch %d on %s [%d, %d)", b.ID, b.Resource, b.Start, b.End)
}

// Finished reports whether the batch ended at or before clock.
func (b *Batch) Finished(clock int64) bool {
	return b.End <= clock
}

// Reservation holds a resource window for the activities of a move.
type Reservation struct {
	Resource *Resource
	Start    int64
	End      int64
	owners   []*Activity
}

// owns reports whether a may be placed inside the window.
func (r *Reservation) owns(a *Activity) bool {
	for _, o := range r.owners {
		if o == a {
			return true
		}
	}
	return false
}

func (r *Reservation) overlaps(start, end int64) bool {
	return start < r.End && r.Start < end
}

// Connector moves work between two resources. It carries one transfer at a
// time; further transfers queue in arrival order.
type Connector struct {
	ID            string
	From          string
	To            string
	TransferTicks int64

	busyUntil int64
	queue     []*transfer
}

type transfer struct {
	activity *Activity
	to       *Resource
}
