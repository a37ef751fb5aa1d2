package material

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Tentative tracks quantities promised by plans that are not yet committed, so
// several plans built for one activity never promise the same units twice.
// The map is only used for lookup, never iterated.
type Tentative struct {
	taken map[*Lot]decimal.Decimal
}

// NewTentative returns an empty promise ledger.
func NewTentative() *Tentative {
	return &Tentative{taken: make(map[*Lot]decimal.Decimal)}
}

// Available returns the lot quantity not yet promised.
func (t *Tentative) Available(l *Lot) decimal.Decimal {
	return l.Remaining.Sub(t.taken[l])
}

func (t *Tentative) take(l *Lot, qty decimal.Decimal) {
	if qty.GreaterThan(t.Available(l)) {
		panic(fmt.Sprintf("material: promising %s exceeds available %s in lot %s", qty, t.Available(l), l.ID))
	}
	t.taken[l] = t.taken[l].Add(qty)
}

func (t *Tentative) release(l *Lot, qty decimal.Decimal) {
	left := t.taken[l].Sub(qty)
	if left.IsNegative() {
		panic(fmt.Sprintf("material: releasing %s more than promised from lot %s", qty, l.ID))
	}
	if left.IsZero() {
		delete(t.taken, l)
		return
	}
	t.taken[l] = left
}

// Allocation is one slice of a lot assigned to a demand.
type Allocation struct {
	Storage *ItemStorage
	Lot     *Lot
	Qty     decimal.Decimal
}

// candidate is a storage able to contribute at the plan's clock.
type candidate struct {
	storage  *ItemStorage
	qty      decimal.Decimal
	earliest int64
	latest   int64
}

// Plan orders eligible supply and drains it against one demand. Allocations
// are promises until Commit withdraws them from the lots.
type Plan struct {
	Demand      *Demand
	Now         int64
	Allocations []Allocation

	tentative *Tentative
	done      bool
}

// NewPlan builds and runs the allocation walk for d over storages at now.
// A nil tentative ledger gets a private one.
func NewPlan(d *Demand, storages []*ItemStorage, now int64, tentative *Tentative) *Plan {
	if tentative == nil {
		tentative = NewTentative()
	}
	p := &Plan{Demand: d, Now: now, tentative: tentative}
	p.allocate(storages)
	return p
}

// Satisfied reports whether the demand is fully covered.
func (p *Plan) Satisfied() bool {
	return p.Demand.Satisfied()
}

// Allocated returns the total quantity promised by the plan.
func (p *Plan) Allocated() decimal.Decimal {
	total := decimal.Zero
	for _, a := range p.Allocations {
		total = total.Add(a.Qty)
	}
	return total
}

func (p *Plan) allocate(storages []*ItemStorage) {
	d := p.Demand
	for !d.Satisfied() {
		order := p.order(storages)
		if len(order) == 0 {
			return
		}
		allocated := false
		for _, c := range order {
			if d.Satisfied() {
				break
			}
			if p.drain(c.storage) {
				allocated = true
			}
			if !d.AllowMultiStorageAreaSupply {
				return
			}
		}
		if !allocated {
			return
		}
	}
}

// order partitions the storages into exact matches and contributors, sorts
// each partition by policy, and returns exact matches first.
func (p *Plan) order(storages []*ItemStorage) []candidate {
	d := p.Demand
	var exact, contributing []candidate
	for _, s := range storages {
		if s.Item != d.Item {
			continue
		}
		c, ok := p.contribution(s)
		if !ok {
			continue
		}
		switch {
		case c.qty.Equal(d.Remaining):
			exact = append(exact, c)
		case c.qty.GreaterThan(d.Remaining), d.AllowPartialSupply:
			contributing = append(contributing, c)
		}
	}
	sortCandidates(exact, d.Policy)
	sortCandidates(contributing, d.Policy)
	return append(exact, contributing...)
}

func (p *Plan) contribution(s *ItemStorage) (candidate, bool) {
	c := candidate{storage: s, qty: decimal.Zero}
	found := false
	for _, l := range s.Lots {
		if !Eligible(l, p.Demand.Constraints, p.Now) {
			continue
		}
		avail := p.tentative.Available(l)
		if !avail.IsPositive() {
			continue
		}
		if !found || l.ProductionTick < c.earliest {
			c.earliest = l.ProductionTick
		}
		if !found || l.ProductionTick > c.latest {
			c.latest = l.ProductionTick
		}
		found = true
		c.qty = c.qty.Add(avail)
	}
	return c, found
}

func sortCandidates(cs []candidate, policy Policy) {
	switch policy {
	case UseOldestFirst:
		sort.SliceStable(cs, func(i, j int) bool {
			if cs[i].earliest != cs[j].earliest {
				return cs[i].earliest < cs[j].earliest
			}
			return cs[i].storage.LeadTime < cs[j].storage.LeadTime
		})
	case UseNewestFirst:
		sort.SliceStable(cs, func(i, j int) bool {
			if cs[i].latest != cs[j].latest {
				return cs[i].latest > cs[j].latest
			}
			return cs[i].storage.LeadTime < cs[j].storage.LeadTime
		})
	}
}

// drain allocates from the lots of one storage in policy order and reports
// whether anything was allocated.
func (p *Plan) drain(s *ItemStorage) bool {
	d := p.Demand
	lots := make([]*Lot, len(s.Lots))
	copy(lots, s.Lots)
	switch d.Policy {
	case UseOldestFirst:
		sort.SliceStable(lots, func(i, j int) bool { return lots[i].ProductionTick < lots[j].ProductionTick })
	case UseNewestFirst:
		sort.SliceStable(lots, func(i, j int) bool { return lots[i].ProductionTick > lots[j].ProductionTick })
	}

	allocated := false
	for _, l := range lots {
		if d.Satisfied() {
			break
		}
		if !Eligible(l, d.Constraints, p.Now) {
			continue
		}
		avail := p.tentative.Available(l)
		if !avail.IsPositive() {
			continue
		}
		qty := decimal.Min(avail, d.Remaining)
		p.tentative.take(l, qty)
		d.consume(qty)
		p.Allocations = append(p.Allocations, Allocation{Storage: s, Lot: l, Qty: qty})
		allocated = true
	}
	return allocated
}

// Commit withdraws every allocation from its lot and records the consumption
// in profile when one is given. Committing twice panics.
func (p *Plan) Commit(profile *DemandProfile) {
	if p.done {
		panic("material: plan already committed or released")
	}
	p.done = true
	for _, a := range p.Allocations {
		p.tentative.release(a.Lot, a.Qty)
		a.Lot.Withdraw(a.Qty)
		if profile != nil {
			profile.Add(p.Now, a.Qty)
		}
	}
}

// Release drops the plan's promises without touching the lots.
func (p *Plan) Release() {
	if p.done {
		return
	}
	p.done = true
	for _, a := range p.Allocations {
		p.tentative.release(a.Lot, a.Qty)
	}
}
