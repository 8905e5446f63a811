// Package risk gates trade entry and sizes accepted candidates against the
// account's scaling tier.
package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/utica_condor/internal/config"
	"github.com/eddiefleurent/utica_condor/internal/models"
)

// Governor owns tier lookup, the entry gate, and position sizing. Run state
// stays with the caller; the governor only mutates it through the Record
// methods at settlement boundaries.
type Governor struct {
	tiers           *models.TierSet
	filters         config.FilterConfig
	riskPerTradePct float64
	maxOverride     int
	logger          *logrus.Logger
}

// NewGovernor builds a Governor from validated configuration.
func NewGovernor(tiers *models.TierSet, filters config.FilterConfig,
	riskPerTradePct float64, maxContractsOverride int, logger *logrus.Logger) *Governor {
	if logger == nil {
		logger = logrus.New()
	}
	return &Governor{
		tiers:           tiers,
		filters:         filters,
		riskPerTradePct: riskPerTradePct,
		maxOverride:     maxContractsOverride,
		logger:          logger,
	}
}

// Tier returns the scaling tier for the current equity.
func (g *Governor) Tier(equity float64) models.ScalingTier {
	return g.tiers.Lookup(equity)
}

// Gate decides whether a new trade may be entered today. It resets the
// weekly counter on ISO-week boundaries as a side effect, which must happen
// even on blocked days so a Monday block cannot leak last week's count.
func (g *Governor) Gate(date time.Time, vix float64, tier models.ScalingTier, state *models.RunState) (bool, string) {
	if key := models.WeekKeyFor(date); key != state.Week {
		state.Week = key
		state.TradesThisWeek = 0
	}

	if !weekdayAllowed(tier.TradesPerWeek, date.Weekday()) {
		return false, fmt.Sprintf("%s not in the %d-per-week calendar", date.Weekday(), tier.TradesPerWeek)
	}
	// A zero VIX is a data gap, not a reading; the bounds don't apply to it.
	if vix > 0 {
		if g.filters.VIXMin > 0 && vix < g.filters.VIXMin {
			return false, fmt.Sprintf("VIX %.2f below minimum %.2f", vix, g.filters.VIXMin)
		}
		if g.filters.VIXMax > 0 && vix > g.filters.VIXMax {
			return false, fmt.Sprintf("VIX %.2f above maximum %.2f", vix, g.filters.VIXMax)
		}
	}
	if state.TradesThisWeek >= tier.TradesPerWeek {
		return false, fmt.Sprintf("weekly cap of %d reached", tier.TradesPerWeek)
	}
	return true, ""
}

// weekdayAllowed maps a trades-per-week value onto its entry calendar. Any
// value outside the known calendars blocks trading entirely.
func weekdayAllowed(tradesPerWeek int, wd time.Weekday) bool {
	switch tradesPerWeek {
	case 5:
		return wd >= time.Monday && wd <= time.Friday
	case 3:
		return wd == time.Monday || wd == time.Wednesday || wd == time.Friday
	case 2:
		return wd == time.Tuesday || wd == time.Thursday
	default:
		return false
	}
}

// Size converts equity and a candidate's per-share max loss into a contract
// count. Returns the capped count and the uncapped request.
func (g *Governor) Size(equity, maxLoss float64, tier models.ScalingTier) (contracts, requested int) {
	riskBudget := equity * g.riskPerTradePct / 100
	requested = int(math.Floor(riskBudget / (maxLoss * models.SharesPerContract)))
	if requested < 1 {
		requested = 1
	}

	contracts = requested
	if contracts > tier.MaxContracts {
		contracts = tier.MaxContracts
	}
	if g.maxOverride > 0 && contracts > g.maxOverride {
		contracts = g.maxOverride
	}
	return contracts, requested
}

// RecordEntry counts an entered trade against the weekly cap.
func (g *Governor) RecordEntry(state *models.RunState) {
	state.TradesThisWeek++
}

// RecordOutcome advances the consecutive-loss streak after settlement.
func (g *Governor) RecordOutcome(state *models.RunState, win bool) {
	if win {
		state.ConsecutiveLosses = 0
		return
	}
	state.ConsecutiveLosses++
	if state.ConsecutiveLosses > state.MaxConsecutiveLosses {
		state.MaxConsecutiveLosses = state.ConsecutiveLosses
	}
}
