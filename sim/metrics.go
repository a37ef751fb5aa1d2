// Summarises a schedule for reporting: makespan, resource utilisation and how
// long scheduled work waits past the clock.

package sim

import (
	"fmt"
	"io"
	"sort"
)

// ResourceMetrics is the load of one resource between the clock and the
// makespan.
type ResourceMetrics struct {
	ID          string
	BusyTicks   int64
	OnlineTicks int64
	Utilization float64 // BusyTicks / OnlineTicks, 0 when never online
}

// Metrics aggregates statistics about a schedule
// for final reporting.
type Metrics struct {
	Clock       int64
	Makespan    int64 // latest end of any scheduled activity, at least Clock
	Scheduled   int   // placed and not yet started
	InProcess   int
	Finished    int
	Unscheduled int

	Resources   []ResourceMetrics
	StartDelays []int64 // start - clock of each waiting activity, ascending
}

// NewMetrics computes the metrics of snap.
func NewMetrics(snap *ScheduleSnapshot) *Metrics {
	m := &Metrics{Clock: snap.Clock, Makespan: snap.Clock, Unscheduled: len(snap.Unscheduled)}
	for _, a := range snap.Activities {
		switch {
		case a.Finished:
			m.Finished++
		case a.InProcess:
			m.InProcess++
		case a.Scheduled:
			m.Scheduled++
			m.StartDelays = append(m.StartDelays, a.Start-snap.Clock)
		}
		if a.Scheduled && a.End > m.Makespan {
			m.Makespan = a.End
		}
	}
	sort.Slice(m.StartDelays, func(i, j int) bool { return m.StartDelays[i] < m.StartDelays[j] })

	busy := make(map[string]int64)
	for _, b := range snap.Batches {
		busy[b.Resource] += overlap(b.Start, b.End, m.Clock, m.Makespan)
	}
	for _, r := range snap.Resources {
		rm := ResourceMetrics{ID: r.ID, BusyTicks: busy[r.ID]}
		for _, iv := range r.Intervals {
			if iv.Kind == Online {
				rm.OnlineTicks += overlap(iv.Start, iv.End, m.Clock, m.Makespan)
			}
		}
		if rm.OnlineTicks > 0 {
			rm.Utilization = float64(rm.BusyTicks) / float64(rm.OnlineTicks)
		}
		m.Resources = append(m.Resources, rm)
	}
	return m
}

func overlap(start, end, from, to int64) int64 {
	if start < from {
		start = from
	}
	if end > to {
		end = to
	}
	if end <= start {
		return 0
	}
	return end - start
}

// Print writes the metrics as a fixed-width report.
func (m *Metrics) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Schedule Metrics ===")
	fmt.Fprintf(w, "Makespan             : %d ticks\n", m.Makespan)
	fmt.Fprintf(w, "Waiting / Running    : %d / %d\n", m.Scheduled, m.InProcess)
	fmt.Fprintf(w, "Finished             : %d\n", m.Finished)
	fmt.Fprintf(w, "Unscheduled          : %d\n", m.Unscheduled)
	if len(m.StartDelays) > 0 {
		fmt.Fprintf(w, "Mean Start Delay     : %.2f ticks\n", CalculateMean(m.StartDelays))
		fmt.Fprintf(w, "P95 Start Delay      : %.2f ticks\n", CalculatePercentile(m.StartDelays, 95))
	}
	for _, r := range m.Resources {
		fmt.Fprintf(w, "%-20s : %6.2f%% (%d / %d ticks)\n", r.ID, 100*r.Utilization, r.BusyTicks, r.OnlineTicks)
	}
}
