package move

import (
	"fmt"
	"strings"
)

// ProblemKind classifies a recoverable reason some activities cannot move.
type ProblemKind int

const (
	ActivityLocked ProblemKind = iota
	ActivityInProcess
	ResourceIneligible
	CannotScheduleOnDestination
	BlockFinished
)

var problemKindNames = [...]string{
	ActivityLocked:              "activity-locked",
	ActivityInProcess:           "activity-in-process",
	ResourceIneligible:          "resource-ineligible",
	CannotScheduleOnDestination: "cannot-schedule-on-destination",
	BlockFinished:               "block-finished",
}

func (k ProblemKind) String() string {
	if k < 0 || int(k) >= len(problemKindNames) {
		return fmt.Sprintf("ProblemKind(%d)", int(k))
	}
	return problemKindNames[k]
}

// Problem is a recoverable move problem against one block. An empty
// Activities list means the problem applies to the whole block.
type Problem struct {
	Kind       ProblemKind
	BlockID    int64
	Activities []string
}

// BlockWide reports whether the problem applies to the entire block.
func (p *Problem) BlockWide() bool {
	return len(p.Activities) == 0
}

// merge folds o into p. Activity sets union in first-seen order; a
// block-wide side makes the merged problem block-wide.
func (p *Problem) merge(o Problem) {
	if p.BlockWide() {
		return
	}
	if len(o.Activities) == 0 {
		p.Activities = nil
		return
	}
	for _, a := range o.Activities {
		if !contains(p.Activities, a) {
			p.Activities = append(p.Activities, a)
		}
	}
}

func (p *Problem) String() string {
	if p.BlockWide() {
		return fmt.Sprintf("%s(block %d)", p.Kind, p.BlockID)
	}
	return fmt.Sprintf("%s(block %d: %s)", p.Kind, p.BlockID, strings.Join(p.Activities, ","))
}
