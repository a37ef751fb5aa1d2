// Package move holds the records produced while a block move is applied:
// the per-block activity lists, recoverable problems, the fatal failure set
// and the undo/re-apply state. It is pure data; the simulator in package sim
// drives it.
//
// Activities are referred to by their string key so this package never
// depends on the scenario model.
package move

import "fmt"

// State is the lifecycle of one move request.
type State int

const (
	Attempted State = iota
	Succeeded
	PartiallyExcluded
	Failed
)

func (s State) String() string {
	switch s {
	case Attempted:
		return "attempted"
	case Succeeded:
		return "succeeded"
	case PartiallyExcluded:
		return "partially-excluded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// BlockData is one requested block with its original activity list and the
// activities removed from the move so far.
type BlockData struct {
	BlockID    int64
	Activities []string
	excluded   []string
	cleared    bool
}

// NewBlockData records the original activities of a block in order.
func NewBlockData(blockID int64, activities []string) *BlockData {
	acts := make([]string, len(activities))
	copy(acts, activities)
	return &BlockData{BlockID: blockID, Activities: acts}
}

// Exclude removes activities from the move. Unknown keys are ignored.
func (b *BlockData) Exclude(keys ...string) {
	for _, k := range keys {
		if b.IsExcluded(k) || !contains(b.Activities, k) {
			continue
		}
		b.excluded = append(b.excluded, k)
	}
}

// Clear removes the whole block from the move.
func (b *BlockData) Clear() {
	b.cleared = true
}

// Cleared reports whether the block was removed by a block-wide problem.
func (b *BlockData) Cleared() bool {
	return b.cleared
}

// IsExcluded reports whether key no longer takes part in the move.
func (b *BlockData) IsExcluded(key string) bool {
	return b.cleared || contains(b.excluded, key)
}

// Remaining returns the activities still being moved, in original order.
func (b *BlockData) Remaining() []string {
	if b.cleared {
		return nil
	}
	var out []string
	for _, a := range b.Activities {
		if !contains(b.excluded, a) {
			out = append(out, a)
		}
	}
	return out
}

// Result is the outcome of one move request.
type Result struct {
	State    State
	Blocks   []*BlockData
	Problems []*Problem
	Failures FailureSet

	// ReapplyCount is the number of extra simulation passes the move needed.
	ReapplyCount int
	Mode         Mode
}

// NewResult returns an Attempted result.
func NewResult() *Result {
	return &Result{State: Attempted}
}

// AddBlock appends the data for one requested block.
func (r *Result) AddBlock(b *BlockData) {
	r.Blocks = append(r.Blocks, b)
}

// Block returns the data for blockID, or nil.
func (r *Result) Block(blockID int64) *BlockData {
	for _, b := range r.Blocks {
		if b.BlockID == blockID {
			return b
		}
	}
	return nil
}

// AddProblem merges p into the result. A problem with the same kind against
// the same block is merged into the existing one; anything else is appended.
func (r *Result) AddProblem(p Problem) {
	for _, existing := range r.Problems {
		if existing.Kind == p.Kind && existing.BlockID == p.BlockID {
			existing.merge(p)
			return
		}
	}
	cp := p
	cp.Activities = append([]string(nil), p.Activities...)
	r.Problems = append(r.Problems, &cp)
}

// ApplyProblems removes the activities named by each problem from their
// block; block-wide problems clear the block.
func (r *Result) ApplyProblems() {
	for _, p := range r.Problems {
		b := r.Block(p.BlockID)
		if b == nil {
			continue
		}
		if p.BlockWide() {
			b.Clear()
			continue
		}
		b.Exclude(p.Activities...)
	}
}

// Remaining returns every activity still being moved, block by block.
func (r *Result) Remaining() []string {
	var out []string
	for _, b := range r.Blocks {
		out = append(out, b.Remaining()...)
	}
	return out
}

// Fail sets a fatal failure bit. The result becomes terminal.
func (r *Result) Fail(f Failure) {
	r.Failures.Set(f)
	r.State = Failed
}

// Terminal reports whether a fatal failure has been recorded.
func (r *Result) Terminal() bool {
	return !r.Failures.Empty()
}

// Finish settles a non-terminal result: no activities left is a fatal
// NoActivitiesToMove, any problem makes it PartiallyExcluded, otherwise it
// Succeeded.
func (r *Result) Finish() {
	if r.Terminal() {
		return
	}
	switch {
	case len(r.Remaining()) == 0:
		r.Fail(NoActivitiesToMove)
	case len(r.Problems) > 0:
		r.State = PartiallyExcluded
	default:
		r.State = Succeeded
	}
}

func contains(list []string, key string) bool {
	for _, k := range list {
		if k == key {
			return true
		}
	}
	return false
}
