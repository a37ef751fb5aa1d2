// Package material models inventory held in storage areas and the allocation of
// that inventory against activity demand.
//
// Quantities are decimal so that every replica computes bit-identical results.
// Nothing in this package iterates over a map; ordering is always taken from
// slices that the scenario owns.
package material

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Lot is a trackable quantity of one item.
type Lot struct {
	ID      string
	Item    string
	LotCode string

	// OnHand is the quantity the lot started the simulation with.
	OnHand decimal.Decimal
	// Remaining is OnHand minus everything committed during the current simulation.
	Remaining decimal.Decimal

	ProductionTick int64 // tick the lot becomes usable
	ExpirationTick int64 // 0 means the lot does not expire
	Wear           int64 // usage count for reusable material
}

// NewLot creates a lot with Remaining equal to OnHand.
func NewLot(id, item string, qty decimal.Decimal, producedAt int64) *Lot {
	if qty.IsNegative() {
		panic(fmt.Sprintf("material.NewLot: negative quantity %s for lot %s", qty, id))
	}
	return &Lot{
		ID:             id,
		Item:           item,
		OnHand:         qty,
		Remaining:      qty,
		ProductionTick: producedAt,
	}
}

// Reset restores Remaining to OnHand before a new simulation pass.
func (l *Lot) Reset() {
	l.Remaining = l.OnHand
}

// Withdraw removes qty from the lot. Withdrawing more than Remaining is a
// contract violation and panics; it is never clamped.
func (l *Lot) Withdraw(qty decimal.Decimal) {
	if qty.IsNegative() {
		panic(fmt.Sprintf("material: negative withdrawal %s from lot %s", qty, l.ID))
	}
	if qty.GreaterThan(l.Remaining) {
		panic(fmt.Sprintf("material: withdrawal %s exceeds remaining %s in lot %s", qty, l.Remaining, l.ID))
	}
	l.Remaining = l.Remaining.Sub(qty)
}

// Consume removes qty from OnHand for good, used once the activity that
// allocated it has started. Remaining follows OnHand.
func (l *Lot) Consume(qty decimal.Decimal) {
	if qty.IsNegative() || qty.GreaterThan(l.OnHand) {
		panic(fmt.Sprintf("material: cannot consume %s from lot %s holding %s", qty, l.ID, l.OnHand))
	}
	l.OnHand = l.OnHand.Sub(qty)
	l.Remaining = l.OnHand
}

// ItemStorage is the inventory of one item inside one storage area.
type ItemStorage struct {
	Area     string
	Item     string
	LeadTime int64 // ticks to withdraw from this storage
	Lots     []*Lot
}

// StorageArea groups the item storages of one physical location.
type StorageArea struct {
	ID       string
	Storages []*ItemStorage
}

// Storage returns the item storage for item, or nil.
func (a *StorageArea) Storage(item string) *ItemStorage {
	for _, s := range a.Storages {
		if s.Item == item {
			return s
		}
	}
	return nil
}

// EnsureStorage returns the storage for item, creating it when missing.
func (a *StorageArea) EnsureStorage(item string) *ItemStorage {
	if s := a.Storage(item); s != nil {
		return s
	}
	s := &ItemStorage{Area: a.ID, Item: item}
	a.Storages = append(a.Storages, s)
	return s
}
