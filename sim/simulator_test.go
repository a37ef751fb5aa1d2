package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schedsim/schedsim/sim/eventqueue"
)

func TestEventLess_TimeThenPriorityThenSeq(t *testing.T) {
	// GIVEN events inserted out of order, two of them at the same tick and kind
	q := eventqueue.New(eventLess, 0)
	late := &Event{Kind: ReleaseToResource, Time: 5, Seq: 4}
	early := &Event{Kind: ReleaseToResource, Time: 5, Seq: 1}
	down := &Event{Kind: ResourceUnavailable, Time: 5, Seq: 9}
	first := &Event{Kind: OptimizationRelease, Time: 3, Seq: 7}
	for _, ev := range []*Event{late, down, early, first} {
		require.NoError(t, q.Insert(ev))
	}

	// WHEN drained
	var got []*Event
	for q.Len() > 0 {
		ev, err := q.DeleteMin()
		require.NoError(t, err)
		got = append(got, ev)
	}

	// THEN time wins, then the resource going down, then insertion sequence
	assert.Equal(t, []*Event{first, down, early, late}, got)
}

func TestEventKind_PriorityCoversEveryKind(t *testing.T) {
	seen := make(map[int]EventKind)
	for k := AnchorRelease; k < numEventKinds; k++ {
		p := k.Priority()
		prev, dup := seen[p]
		assert.False(t, dup, "%s shares priority %d with %s", k, p, prev)
		seen[p] = k
	}
	assert.Panics(t, func() { EventKind(0).Priority() })
	assert.Panics(t, func() { numEventKinds.Priority() })
}

func TestDispatch_UnknownKindPanics(t *testing.T) {
	sc := newTestScenario(t, "R1")
	sim := newSimulator(sc, nil)
	assert.Panics(t, func() { sim.dispatch(&Event{Kind: numEventKinds}) })
}

func TestSimulate_PlacesInJobOrder(t *testing.T) {
	// GIVEN two jobs competing for one resource
	sc := newTestScenario(t, "R1")
	addSingleOpJob(t, sc, "J1", 0, testActivity("A", 30, "R1"))
	addSingleOpJob(t, sc, "J2", 0, testActivity("B", 20, "R1"))

	// WHEN optimized
	optimize(t, sc)

	// THEN the first job runs first and the second follows it
	a, b := sc.Activity(singleOpKey("J1", "A")), sc.Activity(singleOpKey("J2", "B"))
	assert.Equal(t, int64(0), a.Start)
	assert.Equal(t, int64(30), a.End)
	assert.Equal(t, int64(30), b.Start)
	assert.Equal(t, int64(50), b.End)
	require.Len(t, sc.Batches, 2)
	assert.Equal(t, a.Batch, sc.Batches[0])
	assert.Empty(t, sc.Unscheduled)
}

func TestSimulate_ScheduledActivityHasBatchSpanningIt(t *testing.T) {
	sc := newTestScenario(t, "R1", "R2")
	for _, id := range []string{"J1", "J2", "J3"} {
		addSingleOpJob(t, sc, id, 0, testActivity("A", 15, "R1", "R2"))
	}

	optimize(t, sc)

	for _, a := range sc.Activities() {
		require.True(t, a.Scheduled)
		require.NotNil(t, a.Batch)
		assert.LessOrEqual(t, a.Batch.Start, a.Start)
		assert.GreaterOrEqual(t, a.Batch.End, a.End)
		assert.Equal(t, a.Batch.Resource, a.Resource)
	}
}

func TestSimulate_FanOutPrefersFirstEligibleResource(t *testing.T) {
	sc := newTestScenario(t, "R1", "R2")
	addSingleOpJob(t, sc, "J1", 0, testActivity("A", 30, "R1", "R2"))
	addSingleOpJob(t, sc, "J2", 0, testActivity("B", 30, "R1", "R2"))

	optimize(t, sc)

	assert.Equal(t, "R1", sc.Activity(singleOpKey("J1", "A")).Resource)
	b := sc.Activity(singleOpKey("J2", "B"))
	assert.Equal(t, "R2", b.Resource)
	assert.Equal(t, int64(0), b.Start)
	assert.Positive(t, sc.Stats.Cancelled, "losing fan-out attempts are cancelled")
}

func TestSimulate_ClockReleaseWaitsForOrderRelease(t *testing.T) {
	sc := newTestScenario(t, "R1")
	addSingleOpJob(t, sc, "J1", 250, testActivity("A", 30, "R1"))

	optimize(t, sc)

	assert.Equal(t, int64(250), sc.Activity(singleOpKey("J1", "A")).Start)
}

func TestSimulate_DowntimeDefersPlacement(t *testing.T) {
	// GIVEN a resource offline over [10, 40) and an activity too long to finish before it
	sc := NewScenario("test", 0, testHorizon)
	require.NoError(t, sc.AddResource(&Resource{ID: "R1", Timeline: NewTimeline(testHorizon, Interval{Start: 10, End: 40, Kind: Offline})}))
	addSingleOpJob(t, sc, "J1", 0, testActivity("A", 30, "R1"))

	// WHEN optimized
	optimize(t, sc)

	// THEN it waits for the resource to come back
	a := sc.Activity(singleOpKey("J1", "A"))
	assert.Equal(t, int64(40), a.Start)
	assert.Equal(t, int64(70), a.End)
}

func TestSimulate_CleanoutSupersedesQueuedTransition(t *testing.T) {
	// GIVEN a resource that cleans after every batch and has downtime [12, 20)
	sc := NewScenario("test", 0, testHorizon)
	r := &Resource{
		ID: "R1", CleanoutEvery: 1, CleanoutTicks: 5,
		Timeline: NewTimeline(testHorizon, Interval{Start: 12, End: 20, Kind: Offline}),
	}
	require.NoError(t, sc.AddResource(r))
	addSingleOpJob(t, sc, "J1", 0, testActivity("A", 10, "R1"))
	addSingleOpJob(t, sc, "J2", 0, testActivity("B", 10, "R1"))

	// WHEN optimized
	optimize(t, sc)

	// THEN the cleanout after A replaces the start of the downtime, the
	// transition armed for the old downtime interval is discarded, and B
	// runs once the downtime ends
	assert.Equal(t, int64(0), sc.Activity(singleOpKey("J1", "A")).Start)
	assert.Equal(t, int64(20), sc.Activity(singleOpKey("J2", "B")).Start)
	assert.Positive(t, sc.Stats.Cancelled)
	assert.Equal(t, []Interval{
		{Start: 0, End: 10, Kind: Online},
		{Start: 10, End: 15, Kind: Cleanout},
		{Start: 15, End: 20, Kind: Offline},
		{Start: 20, End: 30, Kind: Online},
		{Start: 30, End: 35, Kind: Cleanout},
		{Start: 35, End: testHorizon, Kind: Online},
	}, r.WorkingTimeline().Intervals())

	// AND the calendar itself is untouched
	assert.Len(t, r.Timeline.Intervals(), 3)
}

func TestSimulate_BatchingJoinsUpToCapacity(t *testing.T) {
	sc := NewScenario("test", 0, testHorizon)
	require.NoError(t, sc.AddResource(&Resource{ID: "R1", BatchCapacity: 2}))
	for _, j := range []struct {
		id   string
		proc int64
	}{{"J1", 10}, {"J2", 20}, {"J3", 10}} {
		a := testActivity("A", j.proc, "R1")
		a.BatchKey = "oven"
		addSingleOpJob(t, sc, j.id, 0, a)
	}

	optimize(t, sc)

	first, second, third := sc.Activity(singleOpKey("J1", "A")), sc.Activity(singleOpKey("J2", "A")), sc.Activity(singleOpKey("J3", "A"))
	assert.Same(t, first.Batch, second.Batch)
	assert.Equal(t, int64(20), first.Batch.End, "the batch runs as long as its longest member")
	assert.NotSame(t, first.Batch, third.Batch)
	assert.Equal(t, int64(20), third.Start)
	assert.Len(t, sc.Batches, 2)
}

func TestSimulate_JITHoldsUntilNeedMinusProcessing(t *testing.T) {
	sc := newTestScenario(t, "R1")
	a := testActivity("A", 30, "R1")
	a.NeedTick = 100
	addSingleOpJob(t, sc, "J1", 0, a)

	optimize(t, sc)

	assert.Equal(t, int64(70), a.Start)
	assert.Equal(t, int64(100), a.End)
}

func TestSimulate_SuccessorWaitsForTransferTicks(t *testing.T) {
	sc := newTestScenario(t, "R1", "R2")
	job := &Job{ID: "J1", Orders: []*ManufacturingOrder{{
		ID: "MO",
		Operations: []*Operation{
			{ID: "OP10", TransferTicks: 7, Activities: []*Activity{testActivity("A", 10, "R1")}},
			{ID: "OP20", Activities: []*Activity{testActivity("B", 10, "R2")}},
		},
	}}}
	require.NoError(t, sc.AddJob(job))

	optimize(t, sc)

	b := sc.Activity(ActivityKey{Job: "J1", Order: "MO", Operation: "OP20", Activity: "B"})
	assert.Equal(t, int64(17), b.Start)
}

func TestSimulate_ConnectorQueuesTransfersInArrivalOrder(t *testing.T) {
	// GIVEN two two-step orders whose second steps cross a slow connector
	sc := newTestScenario(t, "R1", "R2")
	require.NoError(t, sc.AddConnector(&Connector{ID: "C1", From: "R1", To: "R2", TransferTicks: 15}))
	for _, id := range []string{"J1", "J2"} {
		require.NoError(t, sc.AddJob(&Job{ID: id, Orders: []*ManufacturingOrder{{
			ID: "MO",
			Operations: []*Operation{
				{ID: "OP10", Activities: []*Activity{testActivity("A", 10, "R1")}},
				{ID: "OP20", Activities: []*Activity{testActivity("B", 10, "R2")}},
			},
		}}}))
	}

	// WHEN optimized
	optimize(t, sc)

	// THEN the second transfer starts only when the first one is done
	b1 := sc.Activity(ActivityKey{Job: "J1", Order: "MO", Operation: "OP20", Activity: "B"})
	b2 := sc.Activity(ActivityKey{Job: "J2", Order: "MO", Operation: "OP20", Activity: "B"})
	assert.Equal(t, int64(25), b1.Start)
	assert.Equal(t, int64(40), b2.Start)
}

func TestSimulate_AllocatesMaterialFromLot(t *testing.T) {
	// GIVEN a lot of 100 and an activity needing 60
	sc := newTestScenario(t, "R1")
	lot := addLot(sc, "A1", "steel", "L1", 100, 0)
	a := needs(testActivity("A", 10, "R1"), "steel", 60)
	addSingleOpJob(t, sc, "J1", 0, a)

	// WHEN optimized
	optimize(t, sc)

	// THEN 60 is allocated and 40 remains
	require.True(t, a.Scheduled)
	require.Len(t, a.Allocations, 1)
	assert.Equal(t, "60", a.Allocations[0].Qty.String())
	assert.Equal(t, "40", lot.Remaining.String())
	require.Len(t, sc.Consumption, 1)
	assert.Equal(t, "60", sc.Consumption[0].Total().String())
}

func TestSimulate_ShortMaterialRetriesAtNextSupply(t *testing.T) {
	sc := newTestScenario(t, "R1")
	addLot(sc, "A1", "steel", "L1", 10, 200)
	a := needs(testActivity("A", 30, "R1"), "steel", 10)
	addSingleOpJob(t, sc, "J1", 0, a)

	optimize(t, sc)

	assert.Equal(t, int64(200), a.Start)
}

func TestSimulate_NoSupplyLeavesActivityUnscheduled(t *testing.T) {
	sc := newTestScenario(t, "R1")
	a := needs(testActivity("A", 30, "R1"), "steel", 10)
	addSingleOpJob(t, sc, "J1", 0, a)

	optimize(t, sc)

	assert.False(t, a.Scheduled)
	assert.Equal(t, []*Activity{a}, sc.Unscheduled)
}

func TestSimulate_LotIsNeverOverdrawn(t *testing.T) {
	// GIVEN three activities needing 40 each from one lot of 100
	sc := newTestScenario(t, "R1", "R2", "R3")
	lot := addLot(sc, "A1", "steel", "L1", 100, 0)
	for _, id := range []string{"J1", "J2", "J3"} {
		addSingleOpJob(t, sc, id, 0, needs(testActivity("A", 10, "R1", "R2", "R3"), "steel", 40))
	}

	optimize(t, sc)

	// THEN only two run and the lot keeps 20
	assert.Len(t, sc.Unscheduled, 1)
	assert.Equal(t, "20", lot.Remaining.String())
}

func TestSimulate_ExceedingMaxEventsFails(t *testing.T) {
	sc := newTestScenario(t, "R1")
	sc.MaxEvents = 2
	for _, id := range []string{"J1", "J2", "J3"} {
		addSingleOpJob(t, sc, id, 0, testActivity("A", 10, "R1"))
	}

	err := sc.simulate(nil)

	assert.ErrorIs(t, err, eventqueue.ErrCapacityExceeded)
}
