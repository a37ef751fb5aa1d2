package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalCommands       int
	RejectedCount       int
	TotalMoves          int
	MoveStates          map[string]int // move state → count
	MeanReapply         float64
	MaxReapply          int
	ProblemDistribution map[string]int // problem kind → count
	FailureDistribution map[string]int // failure → count
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		MoveStates:          make(map[string]int),
		ProblemDistribution: make(map[string]int),
		FailureDistribution: make(map[string]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalCommands = len(st.Commands)
	for _, c := range st.Commands {
		if c.Rejected {
			summary.RejectedCount++
		}
	}

	summary.TotalMoves = len(st.Moves)
	if len(st.Moves) > 0 {
		total := 0
		for _, m := range st.Moves {
			summary.MoveStates[m.State]++
			total += m.ReapplyCount
			if m.ReapplyCount > summary.MaxReapply {
				summary.MaxReapply = m.ReapplyCount
			}
			for _, p := range m.Problems {
				summary.ProblemDistribution[p]++
			}
			for _, f := range m.Failures {
				summary.FailureDistribution[f]++
			}
		}
		summary.MeanReapply = float64(total) / float64(len(st.Moves))
	}

	return summary
}
