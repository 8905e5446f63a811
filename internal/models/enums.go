// Package models defines the value types shared across the replay engine:
// option quotes, strategy candidates, positions, trade records, scaling
// tiers, and the mutable run state owned by the orchestration loop.
package models

// StrategyType identifies a supported multi-leg strategy variant.
type StrategyType string

const (
	// StrategyIronCondor is a short put vertical plus a short call vertical.
	StrategyIronCondor StrategyType = "iron_condor"
	// StrategyBullPutSpread is a short put vertical (credit).
	StrategyBullPutSpread StrategyType = "bull_put_spread"
	// StrategyBearCallSpread is a short call vertical (credit).
	StrategyBearCallSpread StrategyType = "bear_call_spread"
	// StrategyBullCallSpread is a long call vertical (debit).
	StrategyBullCallSpread StrategyType = "bull_call_spread"
	// StrategyBearPutSpread is a long put vertical (debit).
	StrategyBearPutSpread StrategyType = "bear_put_spread"
	// StrategyIronButterfly is a short ATM straddle with protective wings.
	StrategyIronButterfly StrategyType = "iron_butterfly"
	// StrategyDiagonalCall sells a near-term call against a longer-dated long call.
	StrategyDiagonalCall StrategyType = "diagonal_call"
	// StrategyDiagonalPut sells a near-term put against a longer-dated long put.
	StrategyDiagonalPut StrategyType = "diagonal_put"
	// StrategyGEXCondor is an iron condor with strikes anchored to gamma walls.
	StrategyGEXCondor StrategyType = "gex_condor"
	// StrategyGEXDirectional is a debit vertical gated by wall proximity.
	StrategyGEXDirectional StrategyType = "gex_directional"
)

// Valid returns true if the StrategyType is one of the defined constants.
func (s StrategyType) Valid() bool {
	switch s {
	case StrategyIronCondor, StrategyBullPutSpread, StrategyBearCallSpread,
		StrategyBullCallSpread, StrategyBearPutSpread, StrategyIronButterfly,
		StrategyDiagonalCall, StrategyDiagonalPut, StrategyGEXCondor,
		StrategyGEXDirectional:
		return true
	default:
		return false
	}
}

// IsCredit returns true for strategies that collect net premium at entry.
func (s StrategyType) IsCredit() bool {
	switch s {
	case StrategyIronCondor, StrategyBullPutSpread, StrategyBearCallSpread,
		StrategyIronButterfly, StrategyGEXCondor:
		return true
	default:
		return false
	}
}

// LegCount returns the number of option legs the strategy trades.
func (s StrategyType) LegCount() int {
	switch s {
	case StrategyIronCondor, StrategyIronButterfly, StrategyGEXCondor:
		return 4
	default:
		return 2
	}
}

// Outcome classifies the settled result of a trade.
type Outcome string

const (
	// OutcomeMaxProfit means no short strike was breached at settlement.
	OutcomeMaxProfit Outcome = "MAX_PROFIT"
	// OutcomePutBreached means the close finished through the put short strike only.
	OutcomePutBreached Outcome = "PUT_BREACHED"
	// OutcomeCallBreached means the close finished through the call short strike only.
	OutcomeCallBreached Outcome = "CALL_BREACHED"
	// OutcomeDoubleBreach means both short strikes were breached.
	OutcomeDoubleBreach Outcome = "DOUBLE_BREACH"
	// OutcomeWin is a non-negative net P&L for debit and swing strategies.
	OutcomeWin Outcome = "WIN"
	// OutcomeLoss is a negative net P&L for debit and swing strategies.
	OutcomeLoss Outcome = "LOSS"
)

// Valid returns true if the Outcome is one of the defined constants.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeMaxProfit, OutcomePutBreached, OutcomeCallBreached,
		OutcomeDoubleBreach, OutcomeWin, OutcomeLoss:
		return true
	default:
		return false
	}
}

// IsWin reports whether the outcome counts as a winning trade.
func (o Outcome) IsWin() bool {
	return o == OutcomeMaxProfit || o == OutcomeWin
}

// SelectionMode identifies how the strike selection policy derives distances.
type SelectionMode string

const (
	// SelectionSD derives distance from the volatility-implied expected move.
	SelectionSD SelectionMode = "sd"
	// SelectionFixed uses a caller-supplied constant distance.
	SelectionFixed SelectionMode = "fixed"
	// SelectionDelta scans the chain for a target absolute delta.
	SelectionDelta SelectionMode = "delta"
	// SelectionGEXWall anchors strikes to externally supplied gamma walls.
	SelectionGEXWall SelectionMode = "gex_wall"
)

// Valid returns true if the SelectionMode is one of the defined constants.
func (m SelectionMode) Valid() bool {
	switch m {
	case SelectionSD, SelectionFixed, SelectionDelta, SelectionGEXWall:
		return true
	default:
		return false
	}
}

// Side distinguishes the put and call side of a chain or spread.
type Side string

const (
	// SidePut is the put side.
	SidePut Side = "put"
	// SideCall is the call side.
	SideCall Side = "call"
)

// Bias is an optional directional label from an external predictor.
type Bias string

const (
	// BiasBullish expects the underlying to rise.
	BiasBullish Bias = "BULLISH"
	// BiasBearish expects the underlying to fall.
	BiasBearish Bias = "BEARISH"
	// BiasFlat expects no meaningful move.
	BiasFlat Bias = "FLAT"
	// BiasNone means no predictor output was available.
	BiasNone Bias = ""
)
