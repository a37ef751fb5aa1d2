package trace

// TraceLevel controls the verbosity of decision tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelDecisions captures every command and move outcome.
	TraceLevelDecisions TraceLevel = "decisions"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelDecisions: true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// Enabled reports whether level records anything.
func Enabled(level string) bool {
	return TraceLevel(level) == TraceLevelDecisions
}

// SimulationTrace collects decision records while commands are processed.
type SimulationTrace struct {
	Level    TraceLevel
	Commands []CommandRecord
	Moves    []MoveRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(level TraceLevel) *SimulationTrace {
	return &SimulationTrace{
		Level:    level,
		Commands: make([]CommandRecord, 0),
		Moves:    make([]MoveRecord, 0),
	}
}

// RecordCommand appends a command record.
func (st *SimulationTrace) RecordCommand(record CommandRecord) {
	st.Commands = append(st.Commands, record)
}

// RecordMove appends a move record.
func (st *SimulationTrace) RecordMove(record MoveRecord) {
	st.Moves = append(st.Moves, record)
}
