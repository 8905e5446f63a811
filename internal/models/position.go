package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SharesPerContract is the standard option contract multiplier.
const SharesPerContract = 100.0

// Position is an open trade. Day trades settle within the simulated day they
// were entered; swing positions persist in the engine's open set until their
// hold horizon or the run's final day.
type Position struct {
	ID        string            `json:"id"`
	EntryDate time.Time         `json:"entry_date"`
	Tier      ScalingTier       `json:"tier"`
	Candidate StrategyCandidate `json:"candidate"`

	Contracts          int `json:"contracts"`
	ContractsRequested int `json:"contracts_requested"`

	// MaxLossDollars is the total capital at risk: per-share max loss x100 x contracts.
	MaxLossDollars float64 `json:"max_loss_dollars"`
	// EntryCosts is commission plus slippage charged for the full round trip.
	EntryCosts float64 `json:"entry_costs"`

	// HoldDays is the configured swing horizon in trading days; 0 means day trade.
	HoldDays int `json:"hold_days"`
	// ElapsedDays counts trading days (by index, not calendar) since entry.
	ElapsedDays int `json:"elapsed_days"`

	// EntryVIX and entry weekday are carried for bucketed statistics.
	EntryVIX float64 `json:"entry_vix"`
}

// NewPosition creates a sized position from an accepted candidate.
func NewPosition(entryDate time.Time, tier ScalingTier, cand StrategyCandidate,
	contracts, requested, holdDays int, entryVIX float64) *Position {
	p := &Position{
		ID:                 uuid.NewString(),
		EntryDate:          entryDate,
		Tier:               tier,
		Candidate:          cand,
		Contracts:          contracts,
		ContractsRequested: requested,
		MaxLossDollars:     cand.MaxLoss * SharesPerContract * float64(contracts),
		HoldDays:           holdDays,
		EntryVIX:           entryVIX,
	}
	legs := float64(cand.LegCount())
	// Commission applies per leg, per contract, open and close. Slippage is
	// charged once per spread per contract on the full share lot.
	p.EntryCosts = tier.CommissionPerLeg*legs*float64(contracts)*2 +
		tier.SlippagePerSpread*float64(contracts)*SharesPerContract
	return p
}

// IsSwing reports whether the position holds across trading days.
func (p *Position) IsSwing() bool { return p.HoldDays > 0 }

// Validate enforces the invariants every entered position must satisfy.
func (p *Position) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("position missing ID")
	}
	if !p.Candidate.Strategy.Valid() {
		return fmt.Errorf("position %s: invalid strategy %q", p.ID, p.Candidate.Strategy)
	}
	if p.Contracts < 1 {
		return fmt.Errorf("position %s: contracts must be >= 1 (got %d)", p.ID, p.Contracts)
	}
	if p.Candidate.MaxLoss <= 0 {
		return fmt.Errorf("position %s: max loss must be > 0 (got %.4f)", p.ID, p.Candidate.MaxLoss)
	}
	if p.MaxLossDollars <= 0 {
		return fmt.Errorf("position %s: dollar max loss must be > 0 (got %.2f)", p.ID, p.MaxLossDollars)
	}
	if p.EntryDate.IsZero() {
		return fmt.Errorf("position %s: entry date must be set", p.ID)
	}
	if p.HoldDays < 0 || p.ElapsedDays < 0 {
		return fmt.Errorf("position %s: negative day counters", p.ID)
	}
	return nil
}

// TradeRecord is a closed trade: the position plus settlement outputs.
// Immutable once appended to the run ledger.
type TradeRecord struct {
	Position

	ExitDate    time.Time `json:"exit_date"`
	SettlePrice float64   `json:"settle_price"`

	// Per-leg P&L is per-share; gross and net are total dollars.
	PutLegPnL  float64 `json:"put_leg_pnl"`
	CallLegPnL float64 `json:"call_leg_pnl"`
	GrossPnL   float64 `json:"gross_pnl"`
	NetPnL     float64 `json:"net_pnl"`

	Outcome              Outcome `json:"outcome"`
	PutBreachedIntraday  bool    `json:"put_breached_intraday"`
	CallBreachedIntraday bool    `json:"call_breached_intraday"`

	// ReturnPct is net P&L over capital at risk.
	ReturnPct float64 `json:"return_pct"`
}

// EquityPoint is one entry in the run's equity curve.
type EquityPoint struct {
	Date        time.Time `json:"date"`
	Equity      float64   `json:"equity"`
	DrawdownPct float64   `json:"drawdown_pct"`
	DailyPnL    float64   `json:"daily_pnl"`
}

// WeekKey identifies an ISO week for the weekly trade counter.
type WeekKey struct {
	Year int `json:"year"`
	Week int `json:"week"`
}

// WeekKeyFor derives the ISO week key for a date.
func WeekKeyFor(date time.Time) WeekKey {
	y, w := date.ISOWeek()
	return WeekKey{Year: y, Week: w}
}

// RunState is the mutable run-wide state: equity, high-water mark, the weekly
// trade counter, and loss streaks. It is owned exclusively by the
// orchestration loop and mutated only at trade settlement boundaries.
type RunState struct {
	Equity        float64 `json:"equity"`
	HighWaterMark float64 `json:"high_water_mark"`

	Week           WeekKey `json:"week"`
	TradesThisWeek int     `json:"trades_this_week"`

	ConsecutiveLosses    int `json:"consecutive_losses"`
	MaxConsecutiveLosses int `json:"max_consecutive_losses"`

	Curve []EquityPoint `json:"curve"`
}

// NewRunState initializes run state at the starting capital.
func NewRunState(initialCapital float64) *RunState {
	return &RunState{
		Equity:        initialCapital,
		HighWaterMark: initialCapital,
	}
}

// DrawdownPct returns the current drawdown from the high-water mark in percent.
func (rs *RunState) DrawdownPct() float64 {
	if rs.HighWaterMark <= 0 {
		return 0
	}
	dd := (rs.HighWaterMark - rs.Equity) / rs.HighWaterMark * 100
	if dd < 0 {
		return 0
	}
	return dd
}
