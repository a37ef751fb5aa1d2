// Package trace provides decision-trace recording for command and move
// analysis. This package has no dependencies on sim/; it stores pure data
// types.
package trace

// CommandRecord captures one processed command.
type CommandRecord struct {
	Seq      uint64
	Kind     string
	Clock    int64 // clock after the command
	Rejected bool
	Reason   string
}

// MoveRecord captures the outcome of one move command.
type MoveRecord struct {
	Seq          uint64
	Blocks       []int64
	Resource     string
	Tick         int64
	State        string
	Mode         string
	ReapplyCount int
	Problems     []string // problem kind per recorded problem
	Failures     []string
}
