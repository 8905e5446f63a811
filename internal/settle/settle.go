// Package settle computes realized P&L and outcome classification for a
// position at a settlement price. Everything here is a pure function of its
// inputs; the engine owns when settlement happens.
package settle

import (
	"math"
	"time"

	"github.com/eddiefleurent/utica_condor/internal/models"
	"github.com/eddiefleurent/utica_condor/internal/util"
)

// CreditLegPayoff is the per-share payoff of one credit vertical side.
// Outside the short strike the full credit is kept; a breach loses the
// breach depth, capped at the spread width.
func CreditLegPayoff(price, shortStrike, width, credit float64, side models.Side) float64 {
	depth := shortStrike - price
	if side == models.SideCall {
		depth = price - shortStrike
	}
	if depth <= 0 {
		return credit
	}
	if depth >= width {
		return credit - width
	}
	return credit - depth
}

// DebitLegPayoff is the per-share payoff of one debit vertical side. Beyond
// the long strike the debit is forfeit; beyond the short strike the profit
// caps at width minus debit; in between it is linear.
func DebitLegPayoff(price, longStrike, width, debit float64, side models.Side) float64 {
	gain := price - longStrike
	if side == models.SidePut {
		gain = longStrike - price
	}
	if gain <= 0 {
		return -debit
	}
	if gain >= width {
		return width - debit
	}
	return gain - debit
}

// Settle closes a position against the day's bar and returns the finished
// trade record. The settlement price is the bar's close.
func Settle(pos *models.Position, bar models.OHLC, exitDate time.Time) models.TradeRecord {
	c := pos.Candidate
	price := bar.Close

	var putPnL, callPnL float64
	if c.DebitSpread {
		if c.HasPutSide() {
			putPnL = DebitLegPayoff(price, c.PutLongStrike, sideWidth(c.PutShortStrike, c.PutLongStrike, c.SpreadWidth), c.NetDebit, models.SidePut)
		}
		if c.HasCallSide() {
			callPnL = DebitLegPayoff(price, c.CallLongStrike, sideWidth(c.CallShortStrike, c.CallLongStrike, c.SpreadWidth), c.NetDebit, models.SideCall)
		}
	} else {
		if c.HasPutSide() {
			putPnL = CreditLegPayoff(price, c.PutShortStrike, sideWidth(c.PutShortStrike, c.PutLongStrike, c.SpreadWidth), c.PutCredit, models.SidePut)
		}
		if c.HasCallSide() {
			callPnL = CreditLegPayoff(price, c.CallShortStrike, sideWidth(c.CallShortStrike, c.CallLongStrike, c.SpreadWidth), c.CallCredit, models.SideCall)
		}
	}

	contracts := float64(pos.Contracts)
	gross := util.Round2((putPnL + callPnL) * models.SharesPerContract * contracts)
	net := util.Round2(gross - pos.EntryCosts)

	// Intraday flags are informational: they record that the day's range
	// pierced a short strike even when the close settled back inside.
	putIntraday := c.HasPutSide() && bar.Low < c.PutShortStrike
	callIntraday := c.HasCallSide() && bar.High > c.CallShortStrike

	rec := models.TradeRecord{
		Position:             *pos,
		ExitDate:             exitDate,
		SettlePrice:          price,
		PutLegPnL:            util.Round2(putPnL),
		CallLegPnL:           util.Round2(callPnL),
		GrossPnL:             gross,
		NetPnL:               net,
		Outcome:              classify(pos, price, net, putIntraday, callIntraday),
		PutBreachedIntraday:  putIntraday,
		CallBreachedIntraday: callIntraday,
	}
	if pos.MaxLossDollars > 0 {
		rec.ReturnPct = util.Round2(net / pos.MaxLossDollars * 100)
	}
	return rec
}

// classify maps a settled position to its outcome. Credit day trades get the
// breach taxonomy; debit structures and swings reduce to win/loss by net sign.
func classify(pos *models.Position, price, net float64, putIntraday, callIntraday bool) models.Outcome {
	c := pos.Candidate
	if c.DebitSpread || pos.IsSwing() {
		if net >= 0 {
			return models.OutcomeWin
		}
		return models.OutcomeLoss
	}

	putBreached := c.HasPutSide() && price < c.PutShortStrike
	callBreached := c.HasCallSide() && price > c.CallShortStrike
	switch {
	case putIntraday && callIntraday:
		// The close can only breach one side; both walls pierced in a
		// single session is the double-breach case.
		return models.OutcomeDoubleBreach
	case putBreached:
		return models.OutcomePutBreached
	case callBreached:
		return models.OutcomeCallBreached
	default:
		return models.OutcomeMaxProfit
	}
}

// sideWidth prefers the actual strike gap of the side, falling back to the
// candidate's nominal width when a leg strike is unset.
func sideWidth(shortStrike, longStrike, fallback float64) float64 {
	if shortStrike != 0 && longStrike != 0 && shortStrike != longStrike {
		return math.Abs(shortStrike - longStrike)
	}
	return fallback
}
