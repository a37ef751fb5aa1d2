package sim

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schedsim/schedsim/sim/command"
)

func TestNewMetrics_UtilisationAndDelays(t *testing.T) {
	// GIVEN A [0,30) and B [30,50) on R1 with R2 idle
	sc := newTestScenario(t, "R1", "R2")
	addSingleOpJob(t, sc, "J1", 0, testActivity("A", 30, "R1"))
	addSingleOpJob(t, sc, "J2", 0, testActivity("B", 20, "R1"))
	optimize(t, sc)

	// WHEN metrics are computed
	m := NewMetrics(sc.Snapshot())

	// THEN R1 is saturated up to the makespan and R2 unused
	assert.Equal(t, int64(50), m.Makespan)
	assert.Equal(t, 2, m.Scheduled)
	require.Len(t, m.Resources, 2)
	assert.Equal(t, ResourceMetrics{ID: "R1", BusyTicks: 50, OnlineTicks: 50, Utilization: 1}, m.Resources[0])
	assert.Equal(t, ResourceMetrics{ID: "R2", BusyTicks: 0, OnlineTicks: 50}, m.Resources[1])
	assert.Equal(t, []int64{0, 30}, m.StartDelays)

	var buf bytes.Buffer
	m.Print(&buf)
	assert.Contains(t, buf.String(), "Makespan             : 50 ticks")
	assert.Contains(t, buf.String(), "Mean Start Delay     : 15.00 ticks")
	assert.Contains(t, buf.String(), "100.00%")
}

func TestNewMetrics_CountsFromTheClock(t *testing.T) {
	// GIVEN the clock moved into B after A finished
	sc := newTestScenario(t, "R1")
	addSingleOpJob(t, sc, "J1", 0, testActivity("A", 30, "R1"))
	addSingleOpJob(t, sc, "J2", 0, testActivity("B", 20, "R1"))
	optimize(t, sc)
	mustApply(t, sc, command.NewAdvanceClock(2, 40))

	m := NewMetrics(sc.Snapshot())

	// THEN only the remaining window of B counts as load
	assert.Equal(t, 1, m.Finished)
	assert.Equal(t, 1, m.InProcess)
	assert.Equal(t, 0, m.Scheduled)
	assert.Empty(t, m.StartDelays)
	assert.Equal(t, ResourceMetrics{ID: "R1", BusyTicks: 10, OnlineTicks: 10, Utilization: 1}, m.Resources[0])
}

func TestNewMetrics_EmptySchedule(t *testing.T) {
	sc := newTestScenario(t, "R1")
	m := NewMetrics(sc.Snapshot())
	assert.Equal(t, int64(0), m.Makespan)
	assert.Zero(t, m.Resources[0].Utilization)
}
