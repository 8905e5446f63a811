package marketdata

import (
	"fmt"
	"time"

	"github.com/eddiefleurent/utica_condor/internal/models"
)

// MemoProvider caches per-date chain and GEX lookups for the lifetime of one
// run. The memo tables are owned by the run context that constructs this
// decorator and are never evicted; a run touches each date a bounded number
// of times, so the tables stay small. Single-writer: the orchestration loop
// is the only caller.
type MemoProvider struct {
	provider Provider

	chains map[string]models.Chain
	walls  map[string]*models.GEXWalls
	// misses records negative answers so a missing day costs one provider
	// call, not one per retry.
	chainMiss map[string]error
	wallMiss  map[string]error
}

// Ensure MemoProvider implements Provider at compile time.
var _ Provider = (*MemoProvider)(nil)

// NewMemoProvider wraps provider with run-scoped memoization.
func NewMemoProvider(provider Provider) *MemoProvider {
	return &MemoProvider{
		provider:  provider,
		chains:    make(map[string]models.Chain),
		walls:     make(map[string]*models.GEXWalls),
		chainMiss: make(map[string]error),
		wallMiss:  make(map[string]error),
	}
}

// OHLC delegates to the wrapped provider; daily bars are bulk-loaded upstream.
func (m *MemoProvider) OHLC(date time.Time) (models.OHLC, error) {
	return m.provider.OHLC(date)
}

// VIX delegates to the wrapped provider.
func (m *MemoProvider) VIX(date time.Time) (float64, error) {
	return m.provider.VIX(date)
}

// TradingDays delegates to the wrapped provider; called once per run.
func (m *MemoProvider) TradingDays(ticker string, start, end time.Time) ([]time.Time, error) {
	return m.provider.TradingDays(ticker, start, end)
}

// Chain returns the memoized chain for the date, fetching on first touch.
func (m *MemoProvider) Chain(date time.Time, targetDTE int) (models.Chain, error) {
	key := fmt.Sprintf("%s|%d", DateKey(date), targetDTE)
	if chain, ok := m.chains[key]; ok {
		return chain, nil
	}
	if err, ok := m.chainMiss[key]; ok {
		return nil, err
	}
	chain, err := m.provider.Chain(date, targetDTE)
	if err != nil {
		m.chainMiss[key] = err
		return nil, err
	}
	m.chains[key] = chain
	return chain, nil
}

// GEXWalls returns the memoized walls for the date, fetching on first touch.
func (m *MemoProvider) GEXWalls(date time.Time) (*models.GEXWalls, error) {
	key := DateKey(date)
	if w, ok := m.walls[key]; ok {
		return w, nil
	}
	if err, ok := m.wallMiss[key]; ok {
		return nil, err
	}
	w, err := m.provider.GEXWalls(date)
	if err != nil {
		m.wallMiss[key] = err
		return nil, err
	}
	m.walls[key] = w
	return w, nil
}

// DirectionalBias delegates to the wrapped provider; bias features vary per
// call, so memoizing by date alone would be wrong.
func (m *MemoProvider) DirectionalBias(f BiasFeatures) (models.Bias, error) {
	return m.provider.DirectionalBias(f)
}
