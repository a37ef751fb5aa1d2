package move

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddProblem_SameKindSameBlockMerges(t *testing.T) {
	// GIVEN two ActivityLocked problems on block 7 naming {a} and {b}
	r := NewResult()
	r.AddProblem(Problem{Kind: ActivityLocked, BlockID: 7, Activities: []string{"a"}})
	r.AddProblem(Problem{Kind: ActivityLocked, BlockID: 7, Activities: []string{"b", "a"}})

	// THEN exactly one problem remains holding the union in first-seen order
	require.Len(t, r.Problems, 1)
	assert.Equal(t, []string{"a", "b"}, r.Problems[0].Activities)
}

func TestAddProblem_DifferentKindsStayDistinct(t *testing.T) {
	r := NewResult()
	r.AddProblem(Problem{Kind: ActivityLocked, BlockID: 7, Activities: []string{"a"}})
	r.AddProblem(Problem{Kind: ActivityInProcess, BlockID: 7, Activities: []string{"a"}})
	r.AddProblem(Problem{Kind: ActivityLocked, BlockID: 8, Activities: []string{"a"}})

	assert.Len(t, r.Problems, 3)
}

func TestAddProblem_BlockWideAbsorbsActivitySet(t *testing.T) {
	r := NewResult()
	r.AddProblem(Problem{Kind: BlockFinished, BlockID: 1, Activities: []string{"a"}})
	r.AddProblem(Problem{Kind: BlockFinished, BlockID: 1})
	r.AddProblem(Problem{Kind: BlockFinished, BlockID: 1, Activities: []string{"b"}})

	require.Len(t, r.Problems, 1)
	assert.True(t, r.Problems[0].BlockWide())
}

func TestAddProblem_CallerSliceNotAliased(t *testing.T) {
	acts := []string{"a"}
	r := NewResult()
	r.AddProblem(Problem{Kind: ActivityLocked, BlockID: 1, Activities: acts})
	r.AddProblem(Problem{Kind: ActivityLocked, BlockID: 1, Activities: []string{"b"}})

	assert.Equal(t, []string{"a"}, acts)
}

func TestApplyProblems_ExcludesAndClears(t *testing.T) {
	// GIVEN two blocks and one activity-qualified plus one block-wide problem
	r := NewResult()
	r.AddBlock(NewBlockData(1, []string{"a", "b", "c"}))
	r.AddBlock(NewBlockData(2, []string{"d"}))
	r.AddProblem(Problem{Kind: ResourceIneligible, BlockID: 1, Activities: []string{"b"}})
	r.AddProblem(Problem{Kind: BlockFinished, BlockID: 2})

	// WHEN applied
	r.ApplyProblems()

	// THEN block 1 keeps a and c, block 2 is cleared
	assert.Equal(t, []string{"a", "c"}, r.Block(1).Remaining())
	assert.True(t, r.Block(2).Cleared())
	assert.Empty(t, r.Block(2).Remaining())
	assert.Equal(t, []string{"a", "b", "c"}, r.Block(1).Activities, "original list is kept")
}

func TestFinish_States(t *testing.T) {
	ok := NewResult()
	ok.AddBlock(NewBlockData(1, []string{"a"}))
	ok.Finish()
	assert.Equal(t, Succeeded, ok.State)

	partial := NewResult()
	partial.AddBlock(NewBlockData(1, []string{"a", "b"}))
	partial.AddProblem(Problem{Kind: ActivityLocked, BlockID: 1, Activities: []string{"a"}})
	partial.ApplyProblems()
	partial.Finish()
	assert.Equal(t, PartiallyExcluded, partial.State)

	empty := NewResult()
	empty.AddBlock(NewBlockData(1, []string{"a"}))
	empty.AddProblem(Problem{Kind: BlockFinished, BlockID: 1})
	empty.ApplyProblems()
	empty.Finish()
	assert.Equal(t, Failed, empty.State)
	assert.True(t, empty.Failures.Has(NoActivitiesToMove))
}

func TestResult_TerminalOnceFailed(t *testing.T) {
	r := NewResult()
	r.AddBlock(NewBlockData(1, []string{"a"}))
	r.Fail(MoveBeforeClock)
	r.Finish()

	assert.Equal(t, Failed, r.State)
	assert.True(t, r.Terminal())
}

func TestFailureSet_AccumulatesAndDeduplicates(t *testing.T) {
	var s FailureSet
	s.Set(ReapplyLimitExceeded)
	s.Set(BlockNotFound)
	s.Set(BlockNotFound)

	assert.Equal(t, []Failure{BlockNotFound, ReapplyLimitExceeded}, s.List())
	assert.Equal(t, "[block-not-found reapply-limit-exceeded]", s.String())
	assert.Panics(t, func() { s.Set(numFailures) })
}

func TestUndoReceive_KnownTimesAreRecordedOnce(t *testing.T) {
	u := NewUndoReceive(0)
	assert.Equal(t, DefaultMaxReapply, u.MaxReapply)

	assert.True(t, u.LockIn("a", 40))
	assert.False(t, u.LockIn("a", 90), "known time is never recomputed")
	tick, ok := u.KnownTime("a")
	assert.True(t, ok)
	assert.Equal(t, int64(40), tick)

	assert.Equal(t, int64(10), u.RecordIntersector("b", 10))
	assert.Equal(t, int64(10), u.RecordIntersector("b", 99))
}

func TestUndoReceive_NextAttemptBound(t *testing.T) {
	u := NewUndoReceive(2)
	assert.NoError(t, u.NextAttempt())
	assert.NoError(t, u.NextAttempt())

	err := u.NextAttempt()
	assert.True(t, errors.Is(err, ErrReapplyLimit))
	assert.Equal(t, 3, u.Attempts)
}

func TestUndoReceive_NegativeBoundAllowsNoReapply(t *testing.T) {
	u := NewUndoReceive(-1)
	assert.Equal(t, 0, u.MaxReapply)
	assert.ErrorIs(t, u.NextAttempt(), ErrReapplyLimit)
}
