// Package triangle turns an exchange's flat set of active pairs into the
// catalogue of valid stablecoin -> X -> Y -> stablecoin cycles.
package triangle

import (
	"github.com/alanyoungcy/triarb/internal/domain"
)

// Validator decides whether a candidate triangle forms a legal three-trade
// cycle. It holds no mutable state and is safe for concurrent use.
type Validator struct {
	stables domain.StableSet
}

// NewValidator creates a Validator for the given stablecoin set.
func NewValidator(stables domain.StableSet) Validator {
	return Validator{stables: stables}
}

// Validate returns the ordered pair symbols to trade for t, or false if no
// legal cycle exists in active.
//
// The opening leg must buy X with the stablecoin (X/stable), the middle leg
// may trade X/Y or Y/X (X/Y preferred), and the closing leg must sell Y for
// the stablecoin (Y/stable).
func (v Validator) Validate(t domain.Triangle, active domain.PairSet) (domain.Cycle, bool) {
	if !v.stables.Has(t.Stable) {
		return domain.Cycle{}, false
	}
	if t.X == "" || t.Y == "" || t.X == t.Y || v.stables.Has(t.X) || v.stables.Has(t.Y) {
		return domain.Cycle{}, false
	}

	first := domain.TradingPair{Base: t.X, Quote: t.Stable}.Symbol()
	if !active.Has(first) {
		return domain.Cycle{}, false
	}

	var middle string
	forward := domain.TradingPair{Base: t.X, Quote: t.Y}.Symbol()
	reverse := domain.TradingPair{Base: t.Y, Quote: t.X}.Symbol()
	switch {
	case active.Has(forward):
		middle = forward
	case active.Has(reverse):
		middle = reverse
	default:
		return domain.Cycle{}, false
	}

	last := domain.TradingPair{Base: t.Y, Quote: t.Stable}.Symbol()
	if !active.Has(last) {
		return domain.Cycle{}, false
	}

	cycle := domain.Cycle{first, middle, last}
	if !closesAt(cycle, t.Stable) {
		return domain.Cycle{}, false
	}
	return cycle, true
}

// closesAt re-walks the cycle from stable, leg by leg. Holding a pair's quote
// means the leg buys its base; holding its base means the leg sells for the
// quote. The first leg must be a buy, the last a sell, and the walk must end
// holding stable.
func closesAt(cycle domain.Cycle, stable string) bool {
	holding := stable
	for i, sym := range cycle {
		p, ok := domain.ParsePair(sym)
		if !ok {
			return false
		}
		switch holding {
		case p.Quote:
			if i == len(cycle)-1 {
				return false
			}
			holding = p.Base
		case p.Base:
			if i == 0 {
				return false
			}
			holding = p.Quote
		default:
			return false
		}
	}
	return holding == stable
}
