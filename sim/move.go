package sim

import (
	"github.com/sirupsen/logrus"

	"github.com/schedsim/schedsim/sim/command"
	"github.com/schedsim/schedsim/sim/move"
)

type movedActivity struct {
	activity *Activity
	blockID  int64
}

// moveRun is the context of one move command across its passes.
type moveRun struct {
	sc        *Scenario
	req       command.Move
	dest      *Resource
	before    *memento
	undo      *move.UndoReceive
	result    *move.Result
	windowEnd int64
}

// applyMove validates the request, then re-simulates with the move applied
// until every moved activity lands where the previous pass put it. Fatal
// failures leave the scenario exactly as it was before the command.
func (s *Scenario) applyMove(req command.Move, maxReapply int) (*move.Result, error) {
	res := move.NewResult()
	if req.MaxReapply != 0 {
		maxReapply = req.MaxReapply
	}
	if len(req.Blocks) == 0 {
		res.Fail(move.EmptyRequest)
	}
	dest := s.Resource(req.Resource)
	if dest == nil {
		res.Fail(move.DestinationNotFound)
	}
	if req.Tick < s.Clock {
		res.Fail(move.MoveBeforeClock)
	}
	for _, id := range req.Blocks {
		b := s.Batch(id)
		if b == nil {
			res.Fail(move.BlockNotFound)
			continue
		}
		if res.Block(id) != nil {
			continue
		}
		keys := make([]string, len(b.Activities))
		for i, a := range b.Activities {
			keys[i] = a.Key.String()
		}
		res.AddBlock(move.NewBlockData(id, keys))
		if dest != nil {
			s.checkMovable(res, b, dest)
		}
	}
	if res.Terminal() {
		return res, nil
	}
	res.ApplyProblems()
	if len(res.Remaining()) == 0 {
		res.Fail(move.NoActivitiesToMove)
		return res, nil
	}

	run := &moveRun{
		sc:     s,
		req:    req,
		dest:   dest,
		before: s.capture(),
		undo:   move.NewUndoReceive(maxReapply),
		result: res,
	}
	return run.loop()
}

// checkMovable records the recoverable problems of moving b to dest.
func (s *Scenario) checkMovable(res *move.Result, b *Batch, dest *Resource) {
	if b.Finished(s.Clock) {
		res.AddProblem(move.Problem{Kind: move.BlockFinished, BlockID: b.ID})
		return
	}
	for _, a := range b.Activities {
		key := []string{a.Key.String()}
		switch {
		case a.InProcess:
			res.AddProblem(move.Problem{Kind: move.ActivityInProcess, BlockID: b.ID, Activities: key})
		case a.Locked:
			res.AddProblem(move.Problem{Kind: move.ActivityLocked, BlockID: b.ID, Activities: key})
		case !a.CanRunOn(dest.ID):
			res.AddProblem(move.Problem{Kind: move.ResourceIneligible, BlockID: b.ID, Activities: key})
		}
	}
}

func (m *moveRun) loop() (*move.Result, error) {
	s, res, undo := m.sc, m.result, m.undo
	intersectors := m.intersectors()
	for {
		moved := m.moved()
		pins, reservation := m.pins(moved, intersectors)
		var err error
		if reservation != nil {
			err = s.simulate(pins, reservation)
		} else {
			err = s.simulate(pins)
		}
		if err != nil {
			s.restore(m.before)
			return res, err
		}

		excluded, unresolved := m.settle(moved)
		if !excluded && !unresolved {
			break
		}
		if excluded {
			res.ApplyProblems()
			if len(res.Remaining()) == 0 {
				res.Fail(move.NoActivitiesToMove)
				s.restore(m.before)
				return res, nil
			}
		}
		if err := undo.NextAttempt(); err != nil {
			logrus.Warnf("scenario %s: move to %s@%d: %v", s.ID, m.req.Resource, m.req.Tick, err)
			res.Fail(move.ReapplyLimitExceeded)
			res.ReapplyCount, res.Mode = undo.Attempts, undo.Mode
			s.restore(m.before)
			return res, nil
		}
	}

	res.ReapplyCount, res.Mode = undo.Attempts, undo.Mode
	res.Finish()
	for _, mv := range m.moved() {
		mv.activity.anchor()
	}
	for _, a := range intersectors {
		if !a.Locked {
			a.Anchored = false
		}
	}
	return res, nil
}

// moved returns the activities still being moved, block by block.
func (m *moveRun) moved() []movedActivity {
	var out []movedActivity
	for _, bd := range m.result.Blocks {
		keep := make(map[string]bool)
		for _, k := range bd.Remaining() {
			keep[k] = true
		}
		for _, a := range m.before.batchActivities(bd.BlockID) {
			if keep[a.Key.String()] {
				out = append(out, movedActivity{activity: a, blockID: bd.BlockID})
			}
		}
	}
	return out
}

// window returns the reserved span on the destination: the move tick plus
// the processing time of every moved activity.
func (m *moveRun) window(moved []movedActivity) int64 {
	end := m.req.Tick
	for _, mv := range moved {
		end += mv.activity.ProcessingTicks
	}
	return end
}

// intersectors are the activities that sat on the destination across the
// move window in the pre-move schedule and are free to be displaced.
func (m *moveRun) intersectors() []*Activity {
	moving := make(map[*Activity]bool)
	moved := m.moved()
	for _, mv := range moved {
		moving[mv.activity] = true
	}
	down := downstream(moved)
	start, end := m.req.Tick, m.window(moved)
	var out []*Activity
	for _, a := range m.sc.Activities() {
		if moving[a] || down[a] || a.Finished || a.InProcess || a.Locked {
			continue
		}
		p := m.before.prior(a)
		if p.scheduled && p.resource == m.dest.ID && p.start < end && start < p.end {
			out = append(out, a)
		}
	}
	return out
}

// downstream returns the activities of every operation after a moved one in
// the same order. They follow the moved activities through the successor
// release rather than keeping their prior start.
func downstream(moved []movedActivity) map[*Activity]bool {
	out := make(map[*Activity]bool)
	for _, mv := range moved {
		for op := mv.activity.op.Next(); op != nil; op = op.Next() {
			for _, a := range op.Activities {
				out[a] = true
			}
		}
	}
	return out
}

// earliestStart is the first tick a could start in the pre-move schedule:
// after its order release and after its predecessor operation plus transfer.
func (m *moveRun) earliestStart(a *Activity) (int64, bool) {
	earliest := m.sc.Clock
	op := a.op
	prev := op.Previous()
	if prev == nil {
		return max(earliest, op.order.ReleaseTick), true
	}
	for _, pa := range prev.Activities {
		p := m.before.prior(pa)
		if !p.scheduled {
			return 0, false
		}
		earliest = max(earliest, p.end+prev.TransferTicks)
	}
	return earliest, true
}

// pins builds the release plan of one pass.
func (m *moveRun) pins(moved []movedActivity, intersectors []*Activity) (map[*Activity]*pin, *Reservation) {
	s, undo, dest, tick := m.sc, m.undo, m.dest, m.req.Tick
	m.windowEnd = m.window(moved)
	pins := make(map[*Activity]*pin)

	var owners []*Activity
	for _, mv := range moved {
		a := mv.activity
		if undo.Mode == move.NonLockingMoveRelease {
			at := tick
			if known, ok := undo.KnownTime(a.Key.String()); ok {
				at = known
			}
			pins[a] = &pin{kind: ReleaseToResource, resource: dest, tick: at}
			continue
		}
		owners = append(owners, a)
		pins[a] = &pin{kind: ResourceReservation, resource: dest, tick: tick}
	}

	for _, a := range intersectors {
		back := tick - a.ProcessingTicks
		if earliest, ok := m.earliestStart(a); !ok || back < earliest {
			back = m.windowEnd
		}
		at := undo.RecordIntersector(a.Key.String(), back)
		if at < tick {
			pins[a] = &pin{kind: ScheduledDateBeforeMoveRelease, resource: dest, tick: at}
		} else {
			pins[a] = &pin{kind: RightMovingNeighborRelease, tick: at}
		}
	}

	down := downstream(moved)
	s.eachActivity(func(a *Activity) {
		if pins[a] != nil || down[a] || a.Finished || a.InProcess || a.Anchored {
			return
		}
		p := m.before.prior(a)
		if p.scheduled && p.start < tick {
			pins[a] = &pin{kind: ScheduledDateBeforeMoveRelease, resource: s.Resource(p.resource), tick: p.start}
		}
	})

	if len(owners) == 0 {
		return pins, nil
	}
	return pins, &Reservation{Resource: dest, Start: tick, End: m.windowEnd, owners: owners}
}

// settle inspects the pass. Moved activities that could not be placed on the
// destination, or only out of operation order, are excluded; the rest get
// their start recorded once. A start outside the reserved window, or off a
// recorded start, needs another pass without the reservation.
func (m *moveRun) settle(moved []movedActivity) (excluded, unresolved bool) {
	res, undo := m.result, m.undo
	for _, mv := range moved {
		a := mv.activity
		key := a.Key.String()
		if !a.Scheduled || a.Resource != m.dest.ID || !inOrder(a) {
			res.AddProblem(move.Problem{Kind: move.CannotScheduleOnDestination, BlockID: mv.blockID, Activities: []string{key}})
			excluded = true
			continue
		}
		if known, ok := undo.KnownTime(key); ok {
			if a.Start != known {
				unresolved = true
			}
			continue
		}
		undo.LockIn(key, a.Start)
		if a.Start < m.req.Tick || a.Start >= m.windowEnd {
			unresolved = true
		}
	}
	if unresolved {
		undo.SwitchToNonLocking()
	}
	return excluded, unresolved
}

// inOrder reports whether a starts after its predecessor operation and ends
// before its successor operation starts, transfer times included.
func inOrder(a *Activity) bool {
	op := a.op
	if prev := op.Previous(); prev != nil {
		latest, ok := prev.complete()
		if !ok || a.Start < latest+prev.TransferTicks {
			return false
		}
	}
	if next := op.Next(); next != nil {
		for _, n := range next.Activities {
			if n.Scheduled && n.Start < a.End+op.TransferTicks {
				return false
			}
		}
	}
	return true
}

// batchActivities returns the activities of a batch in the captured schedule.
func (m *memento) batchActivities(id int64) []*Activity {
	for _, b := range m.batches {
		if b.ID == id {
			return b.Activities
		}
	}
	return nil
}
