package models

import (
	"fmt"
	"math"
	"sort"
)

// ScalingTier is one account-equity band and the trading configuration that
// applies while equity sits inside it. Bands are half-open: [MinEquity, MaxEquity).
// Tiers are immutable after startup validation.
type ScalingTier struct {
	Name              string  `yaml:"name" json:"name"`
	MinEquity         float64 `yaml:"min_equity" json:"min_equity"`
	MaxEquity         float64 `yaml:"max_equity" json:"max_equity"`
	TargetDTE         int     `yaml:"target_dte" json:"target_dte"`
	VolHorizonDays    int     `yaml:"vol_horizon_days" json:"vol_horizon_days"`
	MaxContracts      int     `yaml:"max_contracts" json:"max_contracts"`
	TradesPerWeek     int     `yaml:"trades_per_week" json:"trades_per_week"`
	CommissionPerLeg  float64 `yaml:"commission_per_leg" json:"commission_per_leg"`
	SlippagePerSpread float64 `yaml:"slippage_per_spread" json:"slippage_per_spread"`
}

// Contains reports whether equity falls inside the tier's half-open band.
func (t ScalingTier) Contains(equity float64) bool {
	return equity >= t.MinEquity && equity < t.MaxEquity
}

// TierSet is an ordered, validated collection of scaling tiers.
type TierSet struct {
	tiers []ScalingTier
}

// NewTierSet validates that the tiers partition [min, +inf) with no gaps or
// overlaps and returns them sorted by MinEquity ascending.
func NewTierSet(tiers []ScalingTier) (*TierSet, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("at least one scaling tier is required")
	}
	sorted := make([]ScalingTier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinEquity < sorted[j].MinEquity })

	for i, t := range sorted {
		if t.MaxEquity <= t.MinEquity {
			return nil, fmt.Errorf("tier %q: max_equity (%.2f) must exceed min_equity (%.2f)",
				t.Name, t.MaxEquity, t.MinEquity)
		}
		if t.TargetDTE < 0 {
			return nil, fmt.Errorf("tier %q: target_dte must be >= 0", t.Name)
		}
		if t.VolHorizonDays <= 0 {
			return nil, fmt.Errorf("tier %q: vol_horizon_days must be > 0", t.Name)
		}
		if t.MaxContracts <= 0 {
			return nil, fmt.Errorf("tier %q: max_contracts must be > 0", t.Name)
		}
		if t.TradesPerWeek <= 0 {
			return nil, fmt.Errorf("tier %q: trades_per_week must be > 0", t.Name)
		}
		if t.CommissionPerLeg < 0 || t.SlippagePerSpread < 0 {
			return nil, fmt.Errorf("tier %q: costs must be >= 0", t.Name)
		}
		if i > 0 {
			prev := sorted[i-1]
			if t.MinEquity != prev.MaxEquity {
				return nil, fmt.Errorf("tier %q: band [%.2f, %.2f) does not abut previous band [%.2f, %.2f)",
					t.Name, t.MinEquity, t.MaxEquity, prev.MinEquity, prev.MaxEquity)
			}
		}
	}
	return &TierSet{tiers: sorted}, nil
}

// Lookup returns the tier whose half-open band contains equity. Equity above
// every band resolves to the highest tier; equity below the lowest band
// resolves to the lowest. Boundary equity belongs to the higher tier.
func (ts *TierSet) Lookup(equity float64) ScalingTier {
	for _, t := range ts.tiers {
		if t.Contains(equity) {
			return t
		}
	}
	if equity < ts.tiers[0].MinEquity {
		return ts.tiers[0]
	}
	return ts.tiers[len(ts.tiers)-1]
}

// Index returns the position of the tier matching equity, for bucketed tallies.
func (ts *TierSet) Index(equity float64) int {
	for i, t := range ts.tiers {
		if t.Contains(equity) {
			return i
		}
	}
	if equity < ts.tiers[0].MinEquity {
		return 0
	}
	return len(ts.tiers) - 1
}

// Tiers returns the ordered tier bands.
func (ts *TierSet) Tiers() []ScalingTier {
	out := make([]ScalingTier, len(ts.tiers))
	copy(out, ts.tiers)
	return out
}

// Len returns the number of tiers.
func (ts *TierSet) Len() int { return len(ts.tiers) }

// DefaultTiers builds a conservative three-band ladder used when the config
// file does not define its own.
func DefaultTiers() []ScalingTier {
	return []ScalingTier{
		{
			Name: "starter", MinEquity: 0, MaxEquity: 25_000,
			TargetDTE: 0, VolHorizonDays: 1, MaxContracts: 1, TradesPerWeek: 2,
			CommissionPerLeg: 0.65, SlippagePerSpread: 0.05,
		},
		{
			Name: "growth", MinEquity: 25_000, MaxEquity: 100_000,
			TargetDTE: 0, VolHorizonDays: 1, MaxContracts: 3, TradesPerWeek: 3,
			CommissionPerLeg: 0.65, SlippagePerSpread: 0.05,
		},
		{
			Name: "scale", MinEquity: 100_000, MaxEquity: math.MaxFloat64,
			TargetDTE: 0, VolHorizonDays: 1, MaxContracts: 10, TradesPerWeek: 5,
			CommissionPerLeg: 0.50, SlippagePerSpread: 0.05,
		},
	}
}
