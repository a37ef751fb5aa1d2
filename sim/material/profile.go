package material

import (
	"sort"

	"github.com/shopspring/decimal"
)

// QtyNode is a quantity change at one tick.
type QtyNode struct {
	Tick int64
	Qty  decimal.Decimal
}

// profile is a tick-ordered series of quantity nodes. Nodes at equal ticks
// keep insertion order.
type profile struct {
	Item  string
	Area  string
	Nodes []QtyNode
}

// Add inserts a node after any existing node with the same tick.
func (p *profile) Add(tick int64, qty decimal.Decimal) {
	i := sort.Search(len(p.Nodes), func(i int) bool { return p.Nodes[i].Tick > tick })
	p.Nodes = append(p.Nodes, QtyNode{})
	copy(p.Nodes[i+1:], p.Nodes[i:])
	p.Nodes[i] = QtyNode{Tick: tick, Qty: qty}
}

// Total sums every node.
func (p *profile) Total() decimal.Decimal {
	total := decimal.Zero
	for _, n := range p.Nodes {
		total = total.Add(n.Qty)
	}
	return total
}

// CumulativeAt sums nodes with Tick <= tick.
func (p *profile) CumulativeAt(tick int64) decimal.Decimal {
	total := decimal.Zero
	for _, n := range p.Nodes {
		if n.Tick > tick {
			break
		}
		total = total.Add(n.Qty)
	}
	return total
}

// DemandProfile records quantities consumed from one item storage.
type DemandProfile struct {
	profile
}

// NewDemandProfile creates an empty consumption series.
func NewDemandProfile(area, item string) *DemandProfile {
	return &DemandProfile{profile{Item: item, Area: area}}
}

// SupplyProfile is the series of quantities becoming available in one item storage.
type SupplyProfile struct {
	profile
}

// BuildSupplyProfile derives the supply series from the lots' remaining quantities.
func BuildSupplyProfile(s *ItemStorage) *SupplyProfile {
	sp := &SupplyProfile{profile{Item: s.Item, Area: s.Area}}
	for _, l := range s.Lots {
		if l.Remaining.IsPositive() {
			sp.Add(l.ProductionTick, l.Remaining)
		}
	}
	return sp
}

// NextSupplyAfter returns the first tick strictly after tick at which new
// supply arrives.
func (sp *SupplyProfile) NextSupplyAfter(tick int64) (int64, bool) {
	for _, n := range sp.Nodes {
		if n.Tick > tick {
			return n.Tick, true
		}
	}
	return 0, false
}
