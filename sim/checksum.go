package sim

import (
	"strconv"

	"github.com/schedsim/schedsim/sim/checksum"
	"github.com/schedsim/schedsim/sim/material"
)

// Checksum fingerprints the scenario after the last command. Fields named in
// ignore are left out of both the sum and the description. Slices are
// walked in scenario order only.
func (s *Scenario) Checksum(ignore ...string) checksum.Fingerprint {
	b := checksum.NewBuilder(ignore...)
	b.Tick("clock", s.Clock)
	b.Tick("horizon", s.Horizon)
	b.Int("next_batch", s.nextBatchID)
	s.Stats.visit(b.With("stats"))
	for _, r := range s.Resources {
		r.visit(b.With("resource[" + r.ID + "]"))
	}
	for _, c := range s.Connectors {
		cb := b.With("connector[" + c.ID + "]")
		cb.Tick("busy_until", c.busyUntil)
		cb.Int("queued", int64(len(c.queue)))
	}
	for _, bt := range s.Batches {
		bt.visit(b.With("batch[" + formatID(bt.ID) + "]"))
	}
	s.eachActivity(func(a *Activity) {
		a.visit(b.With("activity[" + a.Key.String() + "]"))
	})
	b.Int("unscheduled", int64(len(s.Unscheduled)))
	s.eachLot(func(l *material.Lot) {
		lb := b.With("lot[" + l.ID + "]")
		lb.Decimal("on_hand", l.OnHand)
		lb.Decimal("remaining", l.Remaining)
	})
	for _, p := range s.Consumption {
		pb := b.With("demand[" + p.Area + "/" + p.Item + "]")
		pb.Int("nodes", int64(len(p.Nodes)))
		pb.Decimal("total", p.Total())
	}
	return b.Fingerprint()
}

func (st PassStats) visit(b *checksum.Builder) {
	b.Int("events", st.Events)
	b.Int("cancelled", st.Cancelled)
	b.Int("passes", st.Passes)
}

func (r *Resource) visit(b *checksum.Builder) {
	b.Bool("online", r.online)
	b.Tick("busy_until", r.busyUntil)
	b.Int("batches", int64(len(r.batches)))
	for i, iv := range r.WorkingTimeline().Intervals() {
		ib := b.With("interval[" + formatID(int64(i)) + "]")
		ib.Tick("start", iv.Start)
		ib.Tick("end", iv.End)
		ib.Enum("kind", int(iv.Kind))
	}
}

func (bt *Batch) visit(b *checksum.Builder) {
	b.Tick("start", bt.Start)
	b.Tick("end", bt.End)
	b.Int("activities", int64(len(bt.Activities)))
}

func (a *Activity) visit(b *checksum.Builder) {
	b.Bool("scheduled", a.Scheduled)
	b.Tick("start", a.Start)
	b.Tick("end", a.End)
	var batch int64
	if a.Batch != nil {
		batch = a.Batch.ID
	}
	b.Int("batch", batch)
	b.Bool("in_process", a.InProcess)
	b.Bool("finished", a.Finished)
	b.Bool("locked", a.Locked)
	b.Bool("anchored", a.Anchored)
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
