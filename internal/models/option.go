package models

import "sort"

// OptionQuote is one strike row from a historical chain snapshot. Both sides
// of the strike are carried on the row, mirroring how the chain provider
// stores daily snapshots. Read-only once loaded.
type OptionQuote struct {
	Strike       float64 `json:"strike"`
	DTE          int     `json:"dte"`
	Underlying   float64 `json:"underlying"`
	PutBid       float64 `json:"put_bid"`
	PutAsk       float64 `json:"put_ask"`
	CallBid      float64 `json:"call_bid"`
	CallAsk      float64 `json:"call_ask"`
	PutDelta     float64 `json:"put_delta"`
	CallDelta    float64 `json:"call_delta"`
	IV           float64 `json:"iv"`
	Gamma        float64 `json:"gamma"`
	OpenInterest int64   `json:"open_interest"`
}

// Delta returns the quote's delta on the requested side.
func (q OptionQuote) Delta(side Side) float64 {
	if side == SidePut {
		return q.PutDelta
	}
	return q.CallDelta
}

// Bid returns the quote's bid on the requested side.
func (q OptionQuote) Bid(side Side) float64 {
	if side == SidePut {
		return q.PutBid
	}
	return q.CallBid
}

// Ask returns the quote's ask on the requested side.
func (q OptionQuote) Ask(side Side) float64 {
	if side == SidePut {
		return q.PutAsk
	}
	return q.CallAsk
}

// Chain is a daily options-chain snapshot, possibly spanning several expirations.
type Chain []OptionQuote

// DTEs returns the distinct expirations present in the chain, ascending.
func (c Chain) DTEs() []int {
	seen := make(map[int]bool, 4)
	var out []int
	for _, q := range c {
		if !seen[q.DTE] {
			seen[q.DTE] = true
			out = append(out, q.DTE)
		}
	}
	sort.Ints(out)
	return out
}

// AtDTE returns the subset of the chain at exactly the given expiration.
func (c Chain) AtDTE(dte int) Chain {
	var out Chain
	for _, q := range c {
		if q.DTE == dte {
			out = append(out, q)
		}
	}
	return out
}

// NearestDTE returns the expiration closest to target. Ties go to the
// shorter expiration so same-day strategies never drift longer than asked.
// Returns false if the chain is empty.
func (c Chain) NearestDTE(target int) (int, bool) {
	dtes := c.DTEs()
	if len(dtes) == 0 {
		return 0, false
	}
	best := dtes[0]
	bestDiff := abs(best - target)
	for _, d := range dtes[1:] {
		if diff := abs(d - target); diff < bestDiff {
			best, bestDiff = d, diff
		}
	}
	return best, true
}

// HasDeltaData reports whether any quote in the chain carries delta greeks.
func (c Chain) HasDeltaData() bool {
	for _, q := range c {
		if q.PutDelta != 0 || q.CallDelta != 0 {
			return true
		}
	}
	return false
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// OHLC is one daily price bar for the underlying.
type OHLC struct {
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// GEXWalls carries externally computed gamma-exposure wall prices for a day.
type GEXWalls struct {
	PutWall  float64 `json:"put_wall"`
	CallWall float64 `json:"call_wall"`
	Regime   string  `json:"regime"`
}
