// Package marketdata defines the contract the replay engine needs from the
// historical data store, plus decorators that add resilience and caching
// around any concrete provider.
package marketdata

import (
	"errors"
	"time"

	"github.com/eddiefleurent/utica_condor/internal/models"
)

// ErrNoData marks a day for which the provider has nothing. The engine
// recovers locally (skip, count, continue); it never aborts the run on this.
var ErrNoData = errors.New("no data for requested date")

// ErrNoSignal marks an optional signal (GEX walls, directional bias) that is
// unavailable. Callers fall back to the volatility path and count the event.
var ErrNoSignal = errors.New("signal unavailable")

// BiasFeatures is the opaque feature bundle handed to a directional predictor.
type BiasFeatures struct {
	Date     time.Time
	Spot     float64
	VIX      float64
	PutWall  float64
	CallWall float64
}

// Provider is the historical market-data contract. Implementations are
// synchronous and blocking; per-day misses are reported as ErrNoData, and
// optional signals as ErrNoSignal. Only the bulk calls (TradingDays and the
// preloaded OHLC/VIX range) are allowed to be fatal for the run.
type Provider interface {
	// OHLC returns the daily bar for the underlying.
	OHLC(date time.Time) (models.OHLC, error)

	// VIX returns the volatility index close for the day.
	VIX(date time.Time) (float64, error)

	// TradingDays returns the ordered trading-day calendar between start and
	// end inclusive, from the options-chain source of truth.
	TradingDays(ticker string, start, end time.Time) ([]time.Time, error)

	// Chain returns the day's option quotes filtered to a DTE window around
	// the target.
	Chain(date time.Time, targetDTE int) (models.Chain, error)

	// GEXWalls returns externally computed gamma walls, or ErrNoSignal.
	GEXWalls(date time.Time) (*models.GEXWalls, error)

	// DirectionalBias returns an optional directional label, or ErrNoSignal.
	DirectionalBias(f BiasFeatures) (models.Bias, error)
}

const dateKeyLayout = "2006-01-02"

// DateKey formats a date the way every provider keys daily records.
func DateKey(date time.Time) string {
	return date.Format(dateKeyLayout)
}
