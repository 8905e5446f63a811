package models

// StrategyCandidate is a fully priced multi-leg proposal built from one chain
// snapshot. It is constructed once by a strategy builder and never mutated:
// the sizing governor either accepts it into a Position or discards it.
//
// All premium fields are per-share; dollar amounts are derived at sizing time
// (x100 per contract). Unused strike fields are zero for two-leg strategies.
type StrategyCandidate struct {
	Strategy  StrategyType `json:"strategy"`
	EntrySpot float64      `json:"entry_spot"`
	DTE       int          `json:"dte"`
	// FarDTE is set only for the diagonal family (long-leg expiration).
	FarDTE      int     `json:"far_dte,omitempty"`
	SpreadWidth float64 `json:"spread_width"`

	PutShortStrike  float64 `json:"put_short_strike,omitempty"`
	PutLongStrike   float64 `json:"put_long_strike,omitempty"`
	CallShortStrike float64 `json:"call_short_strike,omitempty"`
	CallLongStrike  float64 `json:"call_long_strike,omitempty"`

	// PutCredit and CallCredit are per-side net credits for credit structures.
	PutCredit  float64 `json:"put_credit,omitempty"`
	CallCredit float64 `json:"call_credit,omitempty"`
	// NetCredit is the total credit collected; NetDebit the total premium paid.
	// Exactly one of the two is non-zero for any accepted candidate.
	NetCredit float64 `json:"net_credit,omitempty"`
	NetDebit  float64 `json:"net_debit,omitempty"`

	MaxLoss   float64 `json:"max_loss"`
	MaxProfit float64 `json:"max_profit"`

	DebitSpread   bool `json:"debit_spread,omitempty"`
	WallProtected bool `json:"wall_protected,omitempty"`
	SDFallback    bool `json:"sd_fallback,omitempty"`
	// Bias records the directional lean for the GEX directional variant.
	Bias Bias `json:"bias,omitempty"`
}

// HasPutSide reports whether the candidate trades a put vertical.
func (c *StrategyCandidate) HasPutSide() bool {
	return c.PutShortStrike != 0 || c.PutLongStrike != 0
}

// HasCallSide reports whether the candidate trades a call vertical.
func (c *StrategyCandidate) HasCallSide() bool {
	return c.CallShortStrike != 0 || c.CallLongStrike != 0
}

// LegCount returns the number of option legs in the candidate.
func (c *StrategyCandidate) LegCount() int {
	n := 0
	if c.HasPutSide() {
		n += 2
	}
	if c.HasCallSide() {
		n += 2
	}
	return n
}
