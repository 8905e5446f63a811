// Package strikes turns price, volatility, and chain data into strike
// distances for the strategy builders. All modes return a distance from spot
// snapped onto the chain's strike grid.
package strikes

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/utica_condor/internal/models"
	"github.com/eddiefleurent/utica_condor/internal/util"
)

// ErrNoUsableWall means neither gamma wall sits far enough from spot to
// anchor a strike. Callers fall back to the SD path.
var ErrNoUsableWall = errors.New("no usable gamma wall")

// tradingDaysPerYear annualizes the volatility horizon.
const tradingDaysPerYear = 252.0

// Params carries the per-mode knobs for a distance request.
type Params struct {
	SDMultiplier    float64
	FixedDistance   float64
	TargetDelta     float64
	StrikeIncrement float64
}

// Policy resolves strike distances for one run. It owns the delta-fallback
// counter so the degradation is logged once, not once per day.
type Policy struct {
	logger *logrus.Logger

	deltaFallbacks int
	fallbackLogged bool
}

// NewPolicy returns a Policy logging through the given logger.
func NewPolicy(logger *logrus.Logger) *Policy {
	if logger == nil {
		logger = logrus.New()
	}
	return &Policy{logger: logger}
}

// DeltaFallbacks returns how many delta requests degraded to the SD path.
func (p *Policy) DeltaFallbacks() int {
	return p.deltaFallbacks
}

// ExpectedMove is the one-standard-deviation move of spot over horizonDays,
// annualized from ivProxy. Monotone in both ivProxy and horizonDays.
func ExpectedMove(spot, ivProxy float64, horizonDays int) float64 {
	if horizonDays <= 0 {
		return 0
	}
	return spot * ivProxy * math.Sqrt(float64(horizonDays)/tradingDaysPerYear)
}

// Distance resolves a strike distance from spot for the requested side.
func (p *Policy) Distance(spot, ivProxy float64, horizonDays int, chain models.Chain,
	side models.Side, mode models.SelectionMode, params Params) (float64, error) {
	var dist float64
	switch mode {
	case models.SelectionSD:
		dist = params.SDMultiplier * ExpectedMove(spot, ivProxy, horizonDays)
	case models.SelectionFixed:
		dist = params.FixedDistance
	case models.SelectionDelta:
		dist = p.deltaDistance(spot, ivProxy, horizonDays, chain, side, params)
	default:
		return 0, fmt.Errorf("selection mode %q cannot produce a plain distance", mode)
	}
	// Snap before the positivity check: a small positive distance can round
	// down to zero, which would put the short strike at the money.
	dist = util.SnapToIncrement(dist, params.StrikeIncrement)
	if dist <= 0 {
		return 0, fmt.Errorf("selection mode %q produced non-positive distance %.2f", mode, dist)
	}
	return dist, nil
}

// deltaDistance scans the chain for the strike whose |delta| is closest to
// the target on the requested side. Chains without greeks degrade to SD.
func (p *Policy) deltaDistance(spot, ivProxy float64, horizonDays int,
	chain models.Chain, side models.Side, params Params) float64 {
	if !chain.HasDeltaData() {
		p.recordFallback()
		return params.SDMultiplier * ExpectedMove(spot, ivProxy, horizonDays)
	}

	bestStrike := 0.0
	bestDiff := math.MaxFloat64
	for _, q := range chain {
		// Only OTM strikes on the requested side are candidates.
		if side == models.SidePut && q.Strike >= spot {
			continue
		}
		if side == models.SideCall && q.Strike <= spot {
			continue
		}
		diff := math.Abs(math.Abs(q.Delta(side)) - params.TargetDelta)
		if diff < bestDiff {
			bestDiff = diff
			bestStrike = q.Strike
		}
	}
	if bestStrike == 0 {
		p.recordFallback()
		return params.SDMultiplier * ExpectedMove(spot, ivProxy, horizonDays)
	}
	return math.Abs(spot - bestStrike)
}

func (p *Policy) recordFallback() {
	p.deltaFallbacks++
	if !p.fallbackLogged {
		p.fallbackLogged = true
		p.logger.Warn("Chain has no delta data; degrading to SD strike selection")
	}
}

// WallDistances derives per-side distances from gamma walls, widened outward
// by bufferPct of spot. A wall anchors a strike only when it sits at least
// minWallDistancePct away from spot; a pinned wall right at spot would put
// the short strike at the money. When a side has no meaningful gamma wall,
// the strike with the most open interest on that side stands in for it,
// held to the stricter oiFallbackPct distance.
func (p *Policy) WallDistances(spot float64, walls *models.GEXWalls, chain models.Chain,
	minWallDistancePct, oiFallbackPct, bufferPct, increment float64) (putDist, callDist float64, err error) {
	buffer := spot * bufferPct / 100

	putWall := sideWall(spot, walls, chain, models.SidePut, minWallDistancePct, oiFallbackPct)
	if putWall > 0 {
		putDist = spot - putWall + buffer
	}
	callWall := sideWall(spot, walls, chain, models.SideCall, minWallDistancePct, oiFallbackPct)
	if callWall > 0 {
		callDist = callWall - spot + buffer
	}
	if putDist == 0 && callDist == 0 {
		return 0, 0, ErrNoUsableWall
	}
	return util.SnapToIncrement(putDist, increment), util.SnapToIncrement(callDist, increment), nil
}

// sideWall resolves one side's anchor: the gamma wall when meaningful,
// otherwise the side's open-interest peak. Returns 0 when neither qualifies.
func sideWall(spot float64, walls *models.GEXWalls, chain models.Chain,
	side models.Side, minWallDistancePct, oiFallbackPct float64) float64 {
	var wall float64
	if walls != nil {
		if side == models.SidePut {
			wall = walls.PutWall
		} else {
			wall = walls.CallWall
		}
	}
	if wallMeaningful(spot, wall, minWallDistancePct) && outside(spot, wall, side) {
		return wall
	}
	oi := oiPeak(chain, side, spot)
	if wallMeaningful(spot, oi, oiFallbackPct) {
		return oi
	}
	return 0
}

// oiPeak returns the out-of-the-money strike carrying the most open interest
// on the given side, or 0 when the chain has none.
func oiPeak(chain models.Chain, side models.Side, spot float64) float64 {
	best := 0.0
	var bestOI int64
	for _, q := range chain {
		if !outside(spot, q.Strike, side) || q.OpenInterest <= 0 {
			continue
		}
		if q.OpenInterest > bestOI {
			bestOI = q.OpenInterest
			best = q.Strike
		}
	}
	return best
}

func outside(spot, strike float64, side models.Side) bool {
	if side == models.SidePut {
		return strike < spot
	}
	return strike > spot
}

// WallProximityPct returns each wall's distance from spot as a percentage.
// Walls at zero read as infinitely far so they never win a proximity race.
func WallProximityPct(spot float64, walls *models.GEXWalls) (putPct, callPct float64) {
	putPct, callPct = math.Inf(1), math.Inf(1)
	if walls == nil || spot <= 0 {
		return putPct, callPct
	}
	if walls.PutWall > 0 {
		putPct = math.Abs(spot-walls.PutWall) / spot * 100
	}
	if walls.CallWall > 0 {
		callPct = math.Abs(spot-walls.CallWall) / spot * 100
	}
	return putPct, callPct
}

func wallMeaningful(spot, wall, minPct float64) bool {
	if wall <= 0 || spot <= 0 {
		return false
	}
	return math.Abs(spot-wall)/spot*100 >= minPct
}
