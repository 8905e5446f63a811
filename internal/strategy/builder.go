// Package strategy assembles priced multi-leg candidates from a daily chain
// snapshot. Every builder is deterministic: nearest expiration to target,
// then nearest strike to target among eligible quotes, ties broken by
// ascending absolute strike distance and then by the lower strike.
package strategy

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/utica_condor/internal/config"
	"github.com/eddiefleurent/utica_condor/internal/models"
	"github.com/eddiefleurent/utica_condor/internal/strikes"
	"github.com/eddiefleurent/utica_condor/internal/util"
)

// minShortBid is the minimum bid for a short leg. Quotes below it are stale
// or worthless and cannot anchor a credit.
const minShortBid = 0.05

// debitOffsetFactor places the long leg of a debit vertical slightly in the
// money, at a quarter of the target distance.
const debitOffsetFactor = 0.25

// minDiagonalGapDays is the preferred expiration gap between the short and
// long legs of a diagonal.
const minDiagonalGapDays = 14

// Input is one day's market snapshot handed to the builder. Walls and Bias
// are optional; nil/empty mean the corresponding signal was unavailable.
type Input struct {
	Spot    float64
	IVProxy float64 // annualized vol fraction, e.g. VIX/100
	Chain   models.Chain

	// TargetDTE and VolHorizonDays come from the active scaling tier.
	TargetDTE      int
	VolHorizonDays int

	Walls *models.GEXWalls
	Bias  models.Bias
}

// Builder constructs candidates for the configured strategy type.
type Builder struct {
	cfg    config.StrategyConfig
	gex    config.GEXConfig
	policy *strikes.Policy
	logger *logrus.Logger
}

// NewBuilder returns a Builder for the given strategy configuration.
func NewBuilder(cfg config.StrategyConfig, gex config.GEXConfig,
	policy *strikes.Policy, logger *logrus.Logger) *Builder {
	if logger == nil {
		logger = logrus.New()
	}
	return &Builder{cfg: cfg, gex: gex, policy: policy, logger: logger}
}

// Build assembles a candidate for the configured strategy type. A nil
// candidate with a reason string means no trade today; the reason is never
// empty in that case.
func (b *Builder) Build(in Input) (*models.StrategyCandidate, string) {
	if len(in.Chain) == 0 {
		return nil, "empty chain"
	}
	if in.Spot <= 0 {
		return nil, fmt.Sprintf("invalid spot %.2f", in.Spot)
	}

	switch b.cfg.Type {
	case models.StrategyIronCondor:
		return b.buildIronCondor(in, false, false)
	case models.StrategyBullPutSpread:
		return b.buildCreditVertical(in, models.SidePut)
	case models.StrategyBearCallSpread:
		return b.buildCreditVertical(in, models.SideCall)
	case models.StrategyBullCallSpread:
		return b.buildDebitVertical(in, models.SideCall, models.BiasNone)
	case models.StrategyBearPutSpread:
		return b.buildDebitVertical(in, models.SidePut, models.BiasNone)
	case models.StrategyIronButterfly:
		return b.buildIronButterfly(in)
	case models.StrategyDiagonalCall:
		return b.buildDiagonal(in, models.SideCall)
	case models.StrategyDiagonalPut:
		return b.buildDiagonal(in, models.SidePut)
	case models.StrategyGEXCondor:
		return b.buildGEXCondor(in)
	case models.StrategyGEXDirectional:
		return b.buildGEXDirectional(in)
	default:
		return nil, fmt.Sprintf("unsupported strategy %q", b.cfg.Type)
	}
}

// nearSubchain returns the quotes at the expiration closest to the tier target.
func (b *Builder) nearSubchain(in Input) (models.Chain, int, string) {
	dte, ok := in.Chain.NearestDTE(in.TargetDTE)
	if !ok {
		return nil, 0, "chain has no expirations"
	}
	sub := in.Chain.AtDTE(dte)
	if len(sub) == 0 {
		return nil, 0, fmt.Sprintf("no quotes at %d DTE", dte)
	}
	return sub, dte, ""
}

func (b *Builder) distanceParams() strikes.Params {
	return strikes.Params{
		SDMultiplier:    b.cfg.SDMultiplier,
		FixedDistance:   b.cfg.FixedDistance,
		TargetDelta:     b.cfg.TargetDelta,
		StrikeIncrement: b.cfg.StrikeIncrement,
	}
}

// sideLegs is one priced vertical: a short and a long leg on the same side.
type sideLegs struct {
	short, long models.OptionQuote
	credit      float64
	width       float64
}

// creditSide builds one credit vertical side: short leg nearest the target
// distance among OTM quotes with a live bid, long leg one width further out.
func (b *Builder) creditSide(in Input, sub models.Chain, side models.Side, dist float64) (sideLegs, string) {
	var shortTarget float64
	eligible := func(q models.OptionQuote) bool { return q.Bid(side) > minShortBid }
	if side == models.SidePut {
		shortTarget = in.Spot - dist
		otm := eligible
		eligible = func(q models.OptionQuote) bool { return q.Strike < in.Spot && otm(q) }
	} else {
		shortTarget = in.Spot + dist
		otm := eligible
		eligible = func(q models.OptionQuote) bool { return q.Strike > in.Spot && otm(q) }
	}

	short, ok := nearestQuote(sub, shortTarget, eligible)
	if !ok {
		return sideLegs{}, fmt.Sprintf("no %s quote with a live bid near %.0f", side, shortTarget)
	}

	longTarget := short.Strike - b.cfg.SpreadWidth
	if side == models.SideCall {
		longTarget = short.Strike + b.cfg.SpreadWidth
	}
	long, ok := nearestQuote(sub, longTarget, func(q models.OptionQuote) bool {
		return q.Strike != short.Strike
	})
	if !ok || math.Abs(long.Strike-longTarget) > b.cfg.StrikeTolerance {
		return sideLegs{}, fmt.Sprintf("no %s long leg near %.0f", side, longTarget)
	}

	width := short.Strike - long.Strike
	if side == models.SideCall {
		width = long.Strike - short.Strike
	}
	if width <= 0 {
		return sideLegs{}, fmt.Sprintf("%s long leg %.0f landed inside short %.0f", side, long.Strike, short.Strike)
	}

	credit := util.Round2(short.Bid(side) - long.Ask(side))
	if credit <= 0 {
		return sideLegs{}, fmt.Sprintf("%s side credit %.2f is not positive", side, credit)
	}
	return sideLegs{short: short, long: long, credit: credit, width: width}, ""
}

// debitSide builds one debit vertical side: long leg slightly in the money,
// short leg one width toward the money's far side.
func (b *Builder) debitSide(in Input, sub models.Chain, side models.Side, dist float64) (legs sideLegs, debit float64, reason string) {
	offset := util.SnapToIncrement(dist*debitOffsetFactor, b.cfg.StrikeIncrement)

	var longTarget, shortTarget float64
	if side == models.SideCall {
		// Bull call: long just below spot, short above it.
		longTarget = in.Spot - offset
	} else {
		// Bear put: long just above spot, short below it.
		longTarget = in.Spot + offset
	}

	long, ok := nearestQuote(sub, longTarget, nil)
	if !ok {
		return sideLegs{}, 0, fmt.Sprintf("no %s long leg near %.0f", side, longTarget)
	}

	if side == models.SideCall {
		shortTarget = long.Strike + b.cfg.SpreadWidth
	} else {
		shortTarget = long.Strike - b.cfg.SpreadWidth
	}
	short, ok := nearestQuote(sub, shortTarget, func(q models.OptionQuote) bool {
		return q.Strike != long.Strike
	})
	if !ok || math.Abs(short.Strike-shortTarget) > b.cfg.StrikeTolerance {
		return sideLegs{}, 0, fmt.Sprintf("no %s short leg near %.0f", side, shortTarget)
	}

	width := short.Strike - long.Strike
	if side == models.SidePut {
		width = long.Strike - short.Strike
	}
	if width <= 0 {
		return sideLegs{}, 0, fmt.Sprintf("%s short leg %.0f landed inside long %.0f", side, short.Strike, long.Strike)
	}

	debit = util.Round2(long.Ask(side) - short.Bid(side))
	if debit <= 0 {
		return sideLegs{}, 0, fmt.Sprintf("%s side debit %.2f is not positive", side, debit)
	}
	if width-debit <= 0 {
		return sideLegs{}, 0, fmt.Sprintf("%s side max profit %.2f is not positive", side, width-debit)
	}
	return sideLegs{short: short, long: long, width: width}, debit, ""
}

func (b *Builder) buildCreditVertical(in Input, side models.Side) (*models.StrategyCandidate, string) {
	sub, dte, reason := b.nearSubchain(in)
	if reason != "" {
		return nil, reason
	}
	dist, err := b.policy.Distance(in.Spot, in.IVProxy, in.VolHorizonDays, sub, side,
		b.cfg.SelectionMode, b.distanceParams())
	if err != nil {
		return nil, err.Error()
	}
	legs, reason := b.creditSide(in, sub, side, dist)
	if reason != "" {
		return nil, reason
	}

	cand := &models.StrategyCandidate{
		Strategy:    b.cfg.Type,
		EntrySpot:   in.Spot,
		DTE:         dte,
		SpreadWidth: legs.width,
		NetCredit:   legs.credit,
		MaxLoss:     util.Round2(legs.width - legs.credit),
		MaxProfit:   legs.credit,
	}
	if side == models.SidePut {
		cand.PutShortStrike, cand.PutLongStrike, cand.PutCredit = legs.short.Strike, legs.long.Strike, legs.credit
	} else {
		cand.CallShortStrike, cand.CallLongStrike, cand.CallCredit = legs.short.Strike, legs.long.Strike, legs.credit
	}
	if cand.MaxLoss <= 0 {
		return nil, fmt.Sprintf("credit %.2f at or above width %.2f", legs.credit, legs.width)
	}
	return cand, ""
}

func (b *Builder) buildDebitVertical(in Input, side models.Side, bias models.Bias) (*models.StrategyCandidate, string) {
	sub, dte, reason := b.nearSubchain(in)
	if reason != "" {
		return nil, reason
	}
	dist, err := b.policy.Distance(in.Spot, in.IVProxy, in.VolHorizonDays, sub, side,
		b.cfg.SelectionMode, b.distanceParams())
	if err != nil {
		return nil, err.Error()
	}
	legs, debit, reason := b.debitSide(in, sub, side, dist)
	if reason != "" {
		return nil, reason
	}

	strategy := b.cfg.Type
	if bias != models.BiasNone {
		// Called from the GEX directional path; keep its own strategy tag.
		strategy = models.StrategyGEXDirectional
	}
	cand := &models.StrategyCandidate{
		Strategy:    strategy,
		EntrySpot:   in.Spot,
		DTE:         dte,
		SpreadWidth: legs.width,
		NetDebit:    debit,
		MaxLoss:     debit,
		MaxProfit:   util.Round2(legs.width - debit),
		DebitSpread: true,
		Bias:        bias,
	}
	if side == models.SidePut {
		cand.PutShortStrike, cand.PutLongStrike = legs.short.Strike, legs.long.Strike
	} else {
		cand.CallShortStrike, cand.CallLongStrike = legs.short.Strike, legs.long.Strike
	}
	return cand, ""
}

// condorAt builds an iron condor with explicit per-side distances.
func (b *Builder) condorAt(in Input, putDist, callDist float64, wallProtected, sdFallback bool) (*models.StrategyCandidate, string) {
	sub, dte, reason := b.nearSubchain(in)
	if reason != "" {
		return nil, reason
	}
	put, reason := b.creditSide(in, sub, models.SidePut, putDist)
	if reason != "" {
		return nil, reason
	}
	call, reason := b.creditSide(in, sub, models.SideCall, callDist)
	if reason != "" {
		return nil, reason
	}
	if put.short.Strike >= call.short.Strike {
		return nil, fmt.Sprintf("put short %.0f crosses call short %.0f", put.short.Strike, call.short.Strike)
	}

	netCredit := util.Round2(put.credit + call.credit)
	width := math.Max(put.width, call.width)
	maxLoss := util.Round2(width - netCredit)
	if maxLoss <= 0 {
		return nil, fmt.Sprintf("condor credit %.2f at or above width %.2f", netCredit, width)
	}

	strategy := models.StrategyIronCondor
	if wallProtected || sdFallback {
		strategy = models.StrategyGEXCondor
	}
	return &models.StrategyCandidate{
		Strategy:        strategy,
		EntrySpot:       in.Spot,
		DTE:             dte,
		SpreadWidth:     width,
		PutShortStrike:  put.short.Strike,
		PutLongStrike:   put.long.Strike,
		CallShortStrike: call.short.Strike,
		CallLongStrike:  call.long.Strike,
		PutCredit:       put.credit,
		CallCredit:      call.credit,
		NetCredit:       netCredit,
		MaxLoss:         maxLoss,
		MaxProfit:       netCredit,
		WallProtected:   wallProtected,
		SDFallback:      sdFallback,
	}, ""
}

func (b *Builder) buildIronCondor(in Input, wallProtected, sdFallback bool) (*models.StrategyCandidate, string) {
	sub, _, reason := b.nearSubchain(in)
	if reason != "" {
		return nil, reason
	}
	putDist, err := b.policy.Distance(in.Spot, in.IVProxy, in.VolHorizonDays, sub,
		models.SidePut, b.cfg.SelectionMode, b.distanceParams())
	if err != nil {
		return nil, err.Error()
	}
	callDist, err := b.policy.Distance(in.Spot, in.IVProxy, in.VolHorizonDays, sub,
		models.SideCall, b.cfg.SelectionMode, b.distanceParams())
	if err != nil {
		return nil, err.Error()
	}
	return b.condorAt(in, putDist, callDist, wallProtected, sdFallback)
}

func (b *Builder) buildIronButterfly(in Input) (*models.StrategyCandidate, string) {
	sub, dte, reason := b.nearSubchain(in)
	if reason != "" {
		return nil, reason
	}

	atmTarget := util.RoundToTick(in.Spot, b.cfg.StrikeIncrement)
	atm, ok := nearestQuote(sub, atmTarget, func(q models.OptionQuote) bool {
		return q.PutBid > minShortBid && q.CallBid > minShortBid
	})
	if !ok {
		return nil, fmt.Sprintf("no liquid straddle strike near %.0f", atmTarget)
	}

	putWing, ok := nearestQuote(sub, atm.Strike-b.cfg.SpreadWidth, func(q models.OptionQuote) bool {
		return q.Strike < atm.Strike
	})
	if !ok || math.Abs(putWing.Strike-(atm.Strike-b.cfg.SpreadWidth)) > b.cfg.StrikeTolerance {
		return nil, fmt.Sprintf("no put wing near %.0f", atm.Strike-b.cfg.SpreadWidth)
	}
	callWing, ok := nearestQuote(sub, atm.Strike+b.cfg.SpreadWidth, func(q models.OptionQuote) bool {
		return q.Strike > atm.Strike
	})
	if !ok || math.Abs(callWing.Strike-(atm.Strike+b.cfg.SpreadWidth)) > b.cfg.StrikeTolerance {
		return nil, fmt.Sprintf("no call wing near %.0f", atm.Strike+b.cfg.SpreadWidth)
	}

	putCredit := util.Round2(atm.PutBid - putWing.PutAsk)
	callCredit := util.Round2(atm.CallBid - callWing.CallAsk)
	netCredit := util.Round2(putCredit + callCredit)
	if netCredit <= 0 {
		return nil, fmt.Sprintf("butterfly credit %.2f is not positive", netCredit)
	}

	width := math.Max(atm.Strike-putWing.Strike, callWing.Strike-atm.Strike)
	maxLoss := util.Round2(width - netCredit)
	if maxLoss <= 0 {
		return nil, fmt.Sprintf("butterfly credit %.2f at or above width %.2f", netCredit, width)
	}

	return &models.StrategyCandidate{
		Strategy:        models.StrategyIronButterfly,
		EntrySpot:       in.Spot,
		DTE:             dte,
		SpreadWidth:     width,
		PutShortStrike:  atm.Strike,
		PutLongStrike:   putWing.Strike,
		CallShortStrike: atm.Strike,
		CallLongStrike:  callWing.Strike,
		PutCredit:       putCredit,
		CallCredit:      callCredit,
		NetCredit:       netCredit,
		MaxLoss:         maxLoss,
		MaxProfit:       netCredit,
	}, ""
}

// buildDiagonal sells a near-term leg at the target distance and buys a
// longer-dated leg at or through the short strike.
func (b *Builder) buildDiagonal(in Input, side models.Side) (*models.StrategyCandidate, string) {
	dtes := in.Chain.DTEs()
	if len(dtes) < 2 {
		return nil, "diagonal needs at least two expirations"
	}
	nearDTE, _ := in.Chain.NearestDTE(in.TargetDTE)

	// Prefer an expiration two weeks further out; otherwise the next longer.
	farDTE := 0
	for _, d := range dtes {
		if d >= nearDTE+minDiagonalGapDays {
			farDTE = d
			break
		}
	}
	if farDTE == 0 {
		for _, d := range dtes {
			if d > nearDTE {
				farDTE = d
				break
			}
		}
	}
	if farDTE == 0 {
		return nil, fmt.Sprintf("no expiration beyond %d DTE for the long leg", nearDTE)
	}

	nearSub := in.Chain.AtDTE(nearDTE)
	farSub := in.Chain.AtDTE(farDTE)

	dist, err := b.policy.Distance(in.Spot, in.IVProxy, in.VolHorizonDays, nearSub, side,
		b.cfg.SelectionMode, b.distanceParams())
	if err != nil {
		return nil, err.Error()
	}

	shortTarget := in.Spot - dist
	if side == models.SideCall {
		shortTarget = in.Spot + dist
	}
	short, ok := nearestQuote(nearSub, shortTarget, func(q models.OptionQuote) bool {
		return q.Bid(side) > minShortBid
	})
	if !ok {
		return nil, fmt.Sprintf("no %s short leg near %.0f at %d DTE", side, shortTarget, nearDTE)
	}

	// The long leg sits at or through the short strike: at or above for puts,
	// at or below for calls, so the position is covered at expiry.
	long, ok := nearestQuote(farSub, short.Strike, func(q models.OptionQuote) bool {
		if side == models.SidePut {
			return q.Strike >= short.Strike
		}
		return q.Strike <= short.Strike
	})
	if !ok {
		return nil, fmt.Sprintf("no protective %s leg at %d DTE", side, farDTE)
	}

	width := math.Abs(short.Strike - long.Strike)
	net := util.Round2(long.Ask(side) - short.Bid(side))

	cand := &models.StrategyCandidate{
		Strategy:    b.cfg.Type,
		EntrySpot:   in.Spot,
		DTE:         nearDTE,
		FarDTE:      farDTE,
		SpreadWidth: width,
	}
	if side == models.SidePut {
		cand.PutShortStrike, cand.PutLongStrike = short.Strike, long.Strike
	} else {
		cand.CallShortStrike, cand.CallLongStrike = short.Strike, long.Strike
	}

	if net > 0 {
		// Paid for the far-dated protection.
		maxProfit := util.Round2(width - net)
		if maxProfit <= 0 {
			return nil, fmt.Sprintf("diagonal debit %.2f leaves no profit inside width %.2f", net, width)
		}
		cand.NetDebit = net
		cand.MaxLoss = net
		cand.MaxProfit = maxProfit
		cand.DebitSpread = true
		return cand, ""
	}

	// Collected a credit; risk is the width plus the credit given back on a
	// full move through both strikes, floored at a cent.
	credit := util.Round2(-net)
	if credit <= 0 {
		return nil, "diagonal nets to zero premium"
	}
	cand.NetCredit = credit
	if side == models.SidePut {
		cand.PutCredit = credit
	} else {
		cand.CallCredit = credit
	}
	cand.MaxLoss = math.Max(util.Round2(width+credit), 0.01)
	cand.MaxProfit = credit
	return cand, ""
}

// buildGEXCondor anchors condor strikes on gamma walls, falling back to the
// SD path when no meaningful wall pair exists.
func (b *Builder) buildGEXCondor(in Input) (*models.StrategyCandidate, string) {
	putDist, callDist, err := b.policy.WallDistances(in.Spot, in.Walls, in.Chain,
		b.gex.MinWallDistancePct, b.gex.OIFallbackPct, b.gex.WallBufferPct, b.cfg.StrikeIncrement)
	if err == nil && putDist > 0 && callDist > 0 {
		return b.condorAt(in, putDist, callDist, true, false)
	}
	return b.buildIronCondor(in, false, true)
}

// buildGEXDirectional trades toward the nearer gamma wall with a debit
// vertical, gated on wall proximity and the external predictor.
func (b *Builder) buildGEXDirectional(in Input) (*models.StrategyCandidate, string) {
	putPct, callPct := strikes.WallProximityPct(in.Spot, in.Walls)
	threshold := b.gex.ProximityThresholdPct
	if putPct > threshold && callPct > threshold {
		return nil, fmt.Sprintf("no wall within %.1f%% of spot", threshold)
	}

	// Spot hugging the put wall reads as support below; hugging the call
	// wall reads as resistance above.
	bias := models.BiasBullish
	side := models.SideCall
	if callPct < putPct {
		bias = models.BiasBearish
		side = models.SidePut
	}

	if in.Bias != models.BiasNone && in.Bias != bias {
		return nil, fmt.Sprintf("predictor bias %s disagrees with wall bias %s", in.Bias, bias)
	}
	return b.buildDebitVertical(in, side, bias)
}

// nearestQuote returns the eligible quote whose strike is closest to target.
// Ties go to the lower strike. A nil eligible accepts every quote.
func nearestQuote(sub models.Chain, target float64, eligible func(models.OptionQuote) bool) (models.OptionQuote, bool) {
	var best models.OptionQuote
	bestDiff := math.MaxFloat64
	found := false
	for _, q := range sub {
		if eligible != nil && !eligible(q) {
			continue
		}
		diff := math.Abs(q.Strike - target)
		switch {
		case diff < bestDiff:
			best, bestDiff, found = q, diff, true
		case diff == bestDiff && found && q.Strike < best.Strike:
			best = q
		}
	}
	return best, found
}
