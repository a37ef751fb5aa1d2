package sim

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/schedsim/schedsim/sim/command"
	"github.com/schedsim/schedsim/sim/material"
)

const testHorizon = 10_000

// newTestScenario creates a scenario at clock 0 with always-online resources.
func newTestScenario(t *testing.T, resources ...string) *Scenario {
	t.Helper()
	sc := NewScenario("test", 0, testHorizon)
	for _, id := range resources {
		require.NoError(t, sc.AddResource(&Resource{ID: id}))
	}
	return sc
}

// testActivity returns an activity with no materials.
func testActivity(id string, proc int64, resources ...string) *Activity {
	return &Activity{Key: ActivityKey{Activity: id}, ProcessingTicks: proc, EligibleResources: resources}
}

// addSingleOpJob adds job id with one order "MO" holding one operation "OP".
func addSingleOpJob(t *testing.T, sc *Scenario, id string, release int64, acts ...*Activity) {
	t.Helper()
	job := &Job{ID: id, Orders: []*ManufacturingOrder{{
		ID:          "MO",
		ReleaseTick: release,
		Operations:  []*Operation{{ID: "OP", Activities: acts}},
	}}}
	require.NoError(t, sc.AddJob(job))
}

// addTwoOpJob adds job id with one order "MO" running first in "OP1", then
// second in "OP2", transfer ticks apart.
func addTwoOpJob(t *testing.T, sc *Scenario, id string, transfer int64, first, second *Activity) {
	t.Helper()
	job := &Job{ID: id, Orders: []*ManufacturingOrder{{
		ID: "MO",
		Operations: []*Operation{
			{ID: "OP1", TransferTicks: transfer, Activities: []*Activity{first}},
			{ID: "OP2", Activities: []*Activity{second}},
		},
	}}}
	require.NoError(t, sc.AddJob(job))
}

// placements maps every activity to its resource and span.
func placements(sc *Scenario) map[ActivityKey]string {
	out := make(map[ActivityKey]string)
	for _, a := range sc.Activities() {
		if a.Scheduled {
			out[a.Key] = fmt.Sprintf("%s [%d,%d)", a.Resource, a.Start, a.End)
		}
	}
	return out
}

func singleOpKey(job, activity string) ActivityKey {
	return ActivityKey{Job: job, Order: "MO", Operation: "OP", Activity: activity}
}

func addLot(sc *Scenario, area, item, lot string, qty int64, produced int64) *material.Lot {
	a := sc.Area(area)
	if a == nil {
		a = &material.StorageArea{ID: area}
		sc.AddArea(a)
	}
	st := a.EnsureStorage(item)
	l := material.NewLot(lot, item, decimal.NewFromInt(qty), produced)
	st.Lots = append(st.Lots, l)
	return l
}

func needs(a *Activity, item string, qty int64) *Activity {
	a.Materials = append(a.Materials, MaterialRequirement{Item: item, Qty: decimal.NewFromInt(qty)})
	return a
}

// mustApply applies cmd and fails the test on a rejection.
func mustApply(t *testing.T, sc *Scenario, cmd command.Command) {
	t.Helper()
	_, err := sc.Apply(cmd, 0)
	require.NoError(t, err)
}

func optimize(t *testing.T, sc *Scenario) {
	t.Helper()
	mustApply(t, sc, command.Optimize(1))
}
