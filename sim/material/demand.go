package material

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Policy selects the order in which eligible storages are drained.
type Policy int

const (
	NotSet Policy = iota
	UseOldestFirst
	UseNewestFirst
)

// String returns the policy name used in configuration files.
func (p Policy) String() string {
	switch p {
	case NotSet:
		return "not-set"
	case UseOldestFirst:
		return "oldest-first"
	case UseNewestFirst:
		return "newest-first"
	default:
		return "unknown"
	}
}

// ParsePolicy maps a configuration name to a Policy. Empty means NotSet.
func ParsePolicy(name string) (Policy, error) {
	switch name {
	case "", "not-set":
		return NotSet, nil
	case "oldest-first":
		return UseOldestFirst, nil
	case "newest-first":
		return UseNewestFirst, nil
	default:
		return NotSet, fmt.Errorf("unknown material policy %q", name)
	}
}

// Demand is the quantity of one item an activity still needs.
type Demand struct {
	Item      string
	Required  decimal.Decimal
	Remaining decimal.Decimal

	Policy                      Policy
	AllowPartialSupply          bool // a single storage may cover part of the demand
	AllowMultiStorageAreaSupply bool // more than one storage may be drained

	Constraints Constraints
}

// NewDemand creates a demand with Remaining equal to Required.
func NewDemand(item string, qty decimal.Decimal) *Demand {
	if qty.IsNegative() {
		panic(fmt.Sprintf("material.NewDemand: negative quantity %s for item %s", qty, item))
	}
	return &Demand{Item: item, Required: qty, Remaining: qty}
}

// Satisfied reports whether nothing remains to allocate.
func (d *Demand) Satisfied() bool {
	return !d.Remaining.IsPositive()
}

// Allocated returns Required minus Remaining.
func (d *Demand) Allocated() decimal.Decimal {
	return d.Required.Sub(d.Remaining)
}

func (d *Demand) consume(qty decimal.Decimal) {
	if qty.GreaterThan(d.Remaining) {
		panic(fmt.Sprintf("material: allocating %s exceeds remaining demand %s for %s", qty, d.Remaining, d.Item))
	}
	d.Remaining = d.Remaining.Sub(qty)
}
