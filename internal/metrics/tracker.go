// Package metrics accumulates equity, drawdown, and bucketed statistics as
// trades settle, and derives the end-of-run summary.
package metrics

import (
	"math"
	"time"

	"github.com/eddiefleurent/utica_condor/internal/models"
	"github.com/eddiefleurent/utica_condor/internal/util"
)

// tradingDaysPerYear annualizes per-trade return statistics.
const tradingDaysPerYear = 252.0

// VIX regime boundaries for the bucketed tallies.
const (
	vixLowMax  = 15.0
	vixHighMin = 25.0
)

// Tally is one bucket's running win/loss/P&L count.
type Tally struct {
	Trades int     `json:"trades"`
	Wins   int     `json:"wins"`
	Losses int     `json:"losses"`
	NetPnL float64 `json:"net_pnl"`
}

func (t *Tally) add(net float64) {
	t.Trades++
	if net >= 0 {
		t.Wins++
	} else {
		t.Losses++
	}
	t.NetPnL = util.Round2(t.NetPnL + net)
}

// WinRate returns the bucket's win percentage, zero when empty.
func (t Tally) WinRate() float64 {
	if t.Trades == 0 {
		return 0
	}
	return float64(t.Wins) / float64(t.Trades) * 100
}

// MonthlyReturn is one month's compounded equity return.
type MonthlyReturn struct {
	Month     string  `json:"month"` // YYYY-MM
	ReturnPct float64 `json:"return_pct"`
}

// Tracker mutates the run state's equity fields at settlement boundaries and
// keeps the fixed-shape bucket tallies. One tracker per run.
type Tracker struct {
	state *models.RunState
	tiers *models.TierSet

	perTier    []Tally
	perWeekday [5]Tally // Monday..Friday
	perVIX     [3]Tally // <15, 15-25, >=25
	outcomes   map[models.Outcome]int

	returns     []float64 // per-trade ReturnPct
	grossProfit float64
	grossLoss   float64

	maxDrawdownPct  float64
	maxDrawdownDate time.Time
}

// NewTracker builds a tracker over the given run state and tier set.
func NewTracker(state *models.RunState, tiers *models.TierSet) *Tracker {
	return &Tracker{
		state:    state,
		tiers:    tiers,
		perTier:  make([]Tally, tiers.Len()),
		outcomes: make(map[models.Outcome]int),
	}
}

// Record applies a settled trade: equity, high-water mark, an equity-curve
// point, and every bucket the trade falls into.
func (t *Tracker) Record(rec models.TradeRecord) {
	net := rec.NetPnL
	t.state.Equity = util.Round2(t.state.Equity + net)
	if t.state.Equity > t.state.HighWaterMark {
		t.state.HighWaterMark = t.state.Equity
	}

	dd := t.state.DrawdownPct()
	t.state.Curve = append(t.state.Curve, models.EquityPoint{
		Date:        rec.ExitDate,
		Equity:      t.state.Equity,
		DrawdownPct: dd,
		DailyPnL:    net,
	})
	if dd > t.maxDrawdownPct {
		t.maxDrawdownPct = dd
		t.maxDrawdownDate = rec.ExitDate
	}

	// A tier's lower bound always falls inside the tier itself.
	if i := t.tiers.Index(rec.Tier.MinEquity); i >= 0 {
		t.perTier[i].add(net)
	}
	if wd := rec.EntryDate.Weekday(); wd >= time.Monday && wd <= time.Friday {
		t.perWeekday[wd-time.Monday].add(net)
	}
	// A zero entry VIX is a data gap; gap-day trades stay out of the buckets.
	if rec.EntryVIX > 0 {
		t.perVIX[vixBucket(rec.EntryVIX)].add(net)
	}
	t.outcomes[rec.Outcome]++

	t.returns = append(t.returns, rec.ReturnPct)
	if net >= 0 {
		t.grossProfit += net
	} else {
		t.grossLoss += net
	}
}

func vixBucket(vix float64) int {
	switch {
	case vix < vixLowMax:
		return 0
	case vix < vixHighMin:
		return 1
	default:
		return 2
	}
}

// Stats is the end-of-run summary derived from the recorded trades.
type Stats struct {
	Trades  int     `json:"trades"`
	Wins    int     `json:"wins"`
	Losses  int     `json:"losses"`
	WinRate float64 `json:"win_rate"`

	TotalNetPnL float64 `json:"total_net_pnl"`
	// ProfitFactor is |gross profit / gross loss|; +Inf when nothing lost.
	ProfitFactor float64 `json:"profit_factor"`
	Sharpe       float64 `json:"sharpe"`
	Sortino      float64 `json:"sortino"`

	MaxDrawdownPct  float64   `json:"max_drawdown_pct"`
	MaxDrawdownDate time.Time `json:"max_drawdown_date"`

	MaxConsecutiveLosses int `json:"max_consecutive_losses"`

	PerTier    []Tally                `json:"per_tier"`
	TierNames  []string               `json:"tier_names"`
	PerWeekday [5]Tally               `json:"per_weekday"`
	PerVIX     [3]Tally               `json:"per_vix"`
	Outcomes   map[models.Outcome]int `json:"outcomes"`

	MonthlyReturns []MonthlyReturn `json:"monthly_returns"`
}

// Summarize derives the final statistics. Call once, after the loop is done.
func (t *Tracker) Summarize(initialCapital float64) Stats {
	s := Stats{
		TotalNetPnL:          util.Round2(t.grossProfit + t.grossLoss),
		ProfitFactor:         profitFactor(t.grossProfit, t.grossLoss),
		Sharpe:               annualizedSharpe(t.returns),
		Sortino:              annualizedSortino(t.returns),
		MaxDrawdownPct:       t.maxDrawdownPct,
		MaxDrawdownDate:      t.maxDrawdownDate,
		MaxConsecutiveLosses: t.state.MaxConsecutiveLosses,
		PerTier:              t.perTier,
		PerWeekday:           t.perWeekday,
		PerVIX:               t.perVIX,
		Outcomes:             t.outcomes,
		MonthlyReturns:       monthlyReturns(initialCapital, t.state.Curve),
	}
	for i := 0; i < t.tiers.Len(); i++ {
		s.TierNames = append(s.TierNames, t.tiers.Tiers()[i].Name)
	}
	for _, tally := range t.perVIX {
		s.Trades += tally.Trades
		s.Wins += tally.Wins
		s.Losses += tally.Losses
	}
	if s.Trades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Trades) * 100
	}
	return s
}

func profitFactor(grossProfit, grossLoss float64) float64 {
	if grossLoss == 0 {
		if grossProfit == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return math.Abs(grossProfit / grossLoss)
}

// annualizedSharpe is avg*252 / (stdev*sqrt(252)) over per-trade returns.
func annualizedSharpe(returns []float64) float64 {
	avg, sd := meanStdev(returns)
	if sd == 0 {
		return 0
	}
	return avg * tradingDaysPerYear / (sd * math.Sqrt(tradingDaysPerYear))
}

// annualizedSortino uses the downside deviation in the denominator.
func annualizedSortino(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	avg, _ := meanStdev(returns)
	var sumSq float64
	for _, r := range returns {
		if r < 0 {
			sumSq += r * r
		}
	}
	downside := math.Sqrt(sumSq / float64(len(returns)))
	if downside == 0 {
		if avg > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return avg * tradingDaysPerYear / (downside * math.Sqrt(tradingDaysPerYear))
}

func meanStdev(xs []float64) (mean, stdev float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	if len(xs) < 2 {
		return mean, 0
	}
	var sumSq float64
	for _, x := range xs {
		d := x - mean
		sumSq += d * d
	}
	return mean, math.Sqrt(sumSq / float64(len(xs)-1))
}

// monthlyReturns compounds equity by calendar month off the curve.
func monthlyReturns(initialCapital float64, curve []models.EquityPoint) []MonthlyReturn {
	if len(curve) == 0 {
		return nil
	}
	var out []MonthlyReturn
	base := initialCapital
	month := curve[0].Date.Format("2006-01")
	last := base
	for _, pt := range curve {
		m := pt.Date.Format("2006-01")
		if m != month {
			out = append(out, MonthlyReturn{Month: month, ReturnPct: pctChange(base, last)})
			base = last
			month = m
		}
		last = pt.Equity
	}
	out = append(out, MonthlyReturn{Month: month, ReturnPct: pctChange(base, last)})
	return out
}

func pctChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return util.Round2((to - from) / from * 100)
}
