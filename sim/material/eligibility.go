package material

import "slices"

// Constraints are the lot-level gates a demand imposes on its supply.
// A lot failing any gate is excluded from consideration, not deprioritised.
type Constraints struct {
	MinShelfLife           int64 // ticks of shelf life that must remain at use
	ShelfLifeNonConstraint bool  // shelf life is tracked but not enforced
	MinAge                 int64 // ticks since production before the lot may be used
	WearLimited            bool
	MaxWear                int64

	RequireEligibleLotCodes bool
	EligibleLotCodes        []string
}

// ShelfLifeOK reports whether enough shelf life remains at now.
func ShelfLifeOK(l *Lot, c Constraints, now int64) bool {
	if c.ShelfLifeNonConstraint || l.ExpirationTick == 0 {
		return true
	}
	return l.ExpirationTick-now >= c.MinShelfLife
}

// AgeOK reports whether the lot has aged at least MinAge ticks.
func AgeOK(l *Lot, c Constraints, now int64) bool {
	return now-l.ProductionTick >= c.MinAge
}

// WearOK reports whether the lot is under the wear ceiling.
func WearOK(l *Lot, c Constraints) bool {
	return !c.WearLimited || l.Wear <= c.MaxWear
}

// LotCodeOK reports whether the lot code is in the eligible set when one is mandated.
func LotCodeOK(l *Lot, c Constraints) bool {
	return !c.RequireEligibleLotCodes || slices.Contains(c.EligibleLotCodes, l.LotCode)
}

// Eligible applies every gate plus availability at now.
func Eligible(l *Lot, c Constraints, now int64) bool {
	return l.ProductionTick <= now &&
		ShelfLifeOK(l, c, now) &&
		AgeOK(l, c, now) &&
		WearOK(l, c) &&
		LotCodeOK(l, c)
}
