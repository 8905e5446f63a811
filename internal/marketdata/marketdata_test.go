package marketdata

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddiefleurent/utica_condor/internal/models"
)

// countingProvider wraps a Provider and counts chain calls.
type countingProvider struct {
	Provider
	chainCalls int
	chainErr   error
}

func (c *countingProvider) Chain(date time.Time, targetDTE int) (models.Chain, error) {
	c.chainCalls++
	if c.chainErr != nil {
		return nil, c.chainErr
	}
	return c.Provider.Chain(date, targetDTE)
}

var _ Provider = (*countingProvider)(nil)

func TestMemoProviderCachesChains(t *testing.T) {
	inner := &countingProvider{Provider: NewSyntheticProvider(7)}
	memo := NewMemoProvider(inner)
	day := time.Date(2022, 3, 7, 0, 0, 0, 0, time.UTC)

	first, err := memo.Chain(day, 0)
	require.NoError(t, err)
	second, err := memo.Chain(day, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.chainCalls, "second lookup must hit the memo table")
	assert.Equal(t, first, second)

	// Different DTE target is a different memo entry.
	_, err = memo.Chain(day, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.chainCalls)
}

func TestMemoProviderCachesMisses(t *testing.T) {
	inner := &countingProvider{
		Provider: NewSyntheticProvider(7),
		chainErr: fmt.Errorf("%w: gone", ErrNoData),
	}
	memo := NewMemoProvider(inner)
	day := time.Date(2022, 3, 7, 0, 0, 0, 0, time.UTC)

	_, err := memo.Chain(day, 0)
	require.ErrorIs(t, err, ErrNoData)
	_, err = memo.Chain(day, 0)
	require.ErrorIs(t, err, ErrNoData)
	assert.Equal(t, 1, inner.chainCalls, "negative answers are memoized too")
}

func TestBreakerOpensAndReadsAsNoData(t *testing.T) {
	inner := &countingProvider{
		Provider: NewSyntheticProvider(7),
		chainErr: errors.New("store exploded"),
	}
	settings := BreakerSettings{
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		MinRequests:  3,
		FailureRatio: 0.5,
	}
	bp := NewBreakerProviderWithSettings(inner, settings, nil)
	day := time.Date(2022, 3, 7, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		_, err := bp.Chain(day, 0)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNoData, "hard failures surface until the breaker trips")
	}

	// The breaker is now open: calls short-circuit and read as a missing day.
	_, err := bp.Chain(day, 0)
	require.ErrorIs(t, err, ErrNoData)
	assert.Equal(t, 3, inner.chainCalls)
}

func TestBreakerIgnoresNoDataAnswers(t *testing.T) {
	inner := &countingProvider{
		Provider: NewSyntheticProvider(7),
		chainErr: fmt.Errorf("%w: thin day", ErrNoData),
	}
	bp := NewBreakerProviderWithSettings(inner, BreakerSettings{
		MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute,
		MinRequests: 2, FailureRatio: 0.5,
	}, nil)
	day := time.Date(2022, 3, 7, 0, 0, 0, 0, time.UTC)

	// ErrNoData is a valid answer; it must never trip the breaker.
	for i := 0; i < 10; i++ {
		_, err := bp.Chain(day, 0)
		require.ErrorIs(t, err, ErrNoData)
	}
	assert.Equal(t, 10, inner.chainCalls)
}

func TestSyntheticProviderDeterminism(t *testing.T) {
	a := NewSyntheticProvider(42)
	b := NewSyntheticProvider(42)
	day := time.Date(2022, 5, 10, 0, 0, 0, 0, time.UTC)

	barA, err := a.OHLC(day)
	require.NoError(t, err)
	barB, err := b.OHLC(day)
	require.NoError(t, err)
	assert.Equal(t, barA, barB)
	assert.GreaterOrEqual(t, barA.High, barA.Low)

	chainA, err := a.Chain(day, 0)
	require.NoError(t, err)
	chainB, err := b.Chain(day, 0)
	require.NoError(t, err)
	assert.Equal(t, chainA, chainB)
	assert.True(t, chainA.HasDeltaData())

	days, err := a.TradingDays("SPX", day, day.AddDate(0, 0, 13))
	require.NoError(t, err)
	for _, d := range days {
		wd := d.Weekday()
		assert.NotEqual(t, time.Saturday, wd)
		assert.NotEqual(t, time.Sunday, wd)
	}
	assert.Len(t, days, 10)
}

func TestFileProvider(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "chains"), 0o750))

	prices := "date,open,high,low,close\n2022-03-07,4500,4550,4480,4520\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prices.csv"), []byte(prices), 0o600))
	vix := "date,close\n2022-03-07,22.5\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vix.csv"), []byte(vix), 0o600))
	chain := "strike,dte,underlying,put_bid,put_ask,call_bid,call_ask,put_delta,call_delta,iv,gamma,open_interest\n" +
		"4400,1,4520,0.55,0.65,120.0,121.0,-0.10,0.92,0.22,0.001,1500\n" +
		"4600,1,4520,80.0,81.0,0.40,0.50,-0.90,0.08,0.22,0.001,1200\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chains", "2022-03-07.csv"), []byte(chain), 0o600))

	p, err := NewFileProvider(dir)
	require.NoError(t, err)

	day := time.Date(2022, 3, 7, 0, 0, 0, 0, time.UTC)

	bar, err := p.OHLC(day)
	require.NoError(t, err)
	assert.Equal(t, 4520.0, bar.Close)

	v, err := p.VIX(day)
	require.NoError(t, err)
	assert.Equal(t, 22.5, v)

	days, err := p.TradingDays("SPX", day.AddDate(0, 0, -3), day.AddDate(0, 0, 3))
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, day, days[0])

	got, err := p.Chain(day, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 4400.0, got[0].Strike)
	assert.Equal(t, int64(1500), got[0].OpenInterest)

	_, err = p.OHLC(day.AddDate(0, 0, 1))
	assert.ErrorIs(t, err, ErrNoData)
	_, err = p.Chain(day.AddDate(0, 0, 1), 0)
	assert.ErrorIs(t, err, ErrNoData)
	_, err = p.GEXWalls(day)
	assert.ErrorIs(t, err, ErrNoSignal)
}

func TestDiskCacheRoundTrip(t *testing.T) {
	inner := &countingProvider{Provider: NewSyntheticProvider(9)}
	cache, err := NewDiskCache(inner, filepath.Join(t.TempDir(), "cache"), nil)
	require.NoError(t, err)
	defer func() { _ = cache.Close() }()

	day := time.Date(2022, 3, 8, 0, 0, 0, 0, time.UTC)

	first, err := cache.Chain(day, 0)
	require.NoError(t, err)
	second, err := cache.Chain(day, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.chainCalls, "second read must come from badger")
	assert.Equal(t, first, second)
}
