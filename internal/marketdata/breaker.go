package marketdata

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/eddiefleurent/utica_condor/internal/models"
)

// BreakerSettings configures circuit breaker behavior around a provider.
type BreakerSettings struct {
	MaxRequests  uint32        // Max requests when half-open
	Interval     time.Duration // Reset counts interval
	Timeout      time.Duration // Open circuit duration
	MinRequests  uint32        // Min requests before tripping
	FailureRatio float64       // Failure ratio threshold
}

// DefaultBreakerSettings mirror the thresholds used against the live data API.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:  3,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		MinRequests:  5,
		FailureRatio: 0.6,
	}
}

// BreakerProvider wraps a Provider with a circuit breaker. A run that hammers
// a degraded store would otherwise stall on every day of the window; once the
// breaker opens, per-day calls read as ErrNoData and the engine skips ahead.
// ErrNoData and ErrNoSignal are valid answers and never count as failures.
type BreakerProvider struct {
	provider Provider
	breaker  *gobreaker.CircuitBreaker
}

// Ensure BreakerProvider implements Provider at compile time.
var _ Provider = (*BreakerProvider)(nil)

// NewBreakerProvider wraps provider with default breaker settings.
func NewBreakerProvider(provider Provider, logger *logrus.Logger) *BreakerProvider {
	return NewBreakerProviderWithSettings(provider, DefaultBreakerSettings(), logger)
}

// NewBreakerProviderWithSettings wraps provider with custom breaker settings.
func NewBreakerProviderWithSettings(provider Provider, settings BreakerSettings, logger *logrus.Logger) *BreakerProvider {
	gbSettings := gobreaker.Settings{
		Name:        "MarketDataBreaker",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 || counts.Requests < settings.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= settings.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNoData) || errors.Is(err, ErrNoSignal)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if logger != nil {
				logger.WithFields(logrus.Fields{
					"breaker": name,
					"from":    from.String(),
					"to":      to.String(),
				}).Warn("Market data circuit breaker state changed")
			}
		},
	}

	return &BreakerProvider{
		provider: provider,
		breaker:  gobreaker.NewCircuitBreaker(gbSettings),
	}
}

// execBreaker is a generic helper for circuit breaker wrapper methods.
func execBreaker[T any](b *BreakerProvider, fn func(Provider) (T, error)) (T, error) {
	var zero T
	res, err := b.breaker.Execute(func() (interface{}, error) { return fn(b.provider) })
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			// An open circuit reads as a missing day so the run keeps moving.
			return zero, fmt.Errorf("%w: circuit open", ErrNoData)
		}
		return zero, err
	}
	v, ok := res.(T)
	if !ok {
		return zero, errors.New("circuit breaker: type assertion failed")
	}
	return v, nil
}

// OHLC wraps the underlying provider call with the circuit breaker.
func (b *BreakerProvider) OHLC(date time.Time) (models.OHLC, error) {
	return execBreaker(b, func(p Provider) (models.OHLC, error) { return p.OHLC(date) })
}

// VIX wraps the underlying provider call with the circuit breaker.
func (b *BreakerProvider) VIX(date time.Time) (float64, error) {
	return execBreaker(b, func(p Provider) (float64, error) { return p.VIX(date) })
}

// TradingDays wraps the underlying provider call with the circuit breaker.
func (b *BreakerProvider) TradingDays(ticker string, start, end time.Time) ([]time.Time, error) {
	return execBreaker(b, func(p Provider) ([]time.Time, error) { return p.TradingDays(ticker, start, end) })
}

// Chain wraps the underlying provider call with the circuit breaker.
func (b *BreakerProvider) Chain(date time.Time, targetDTE int) (models.Chain, error) {
	return execBreaker(b, func(p Provider) (models.Chain, error) { return p.Chain(date, targetDTE) })
}

// GEXWalls wraps the underlying provider call with the circuit breaker.
func (b *BreakerProvider) GEXWalls(date time.Time) (*models.GEXWalls, error) {
	return execBreaker(b, func(p Provider) (*models.GEXWalls, error) { return p.GEXWalls(date) })
}

// DirectionalBias wraps the underlying provider call with the circuit breaker.
func (b *BreakerProvider) DirectionalBias(f BiasFeatures) (models.Bias, error) {
	return execBreaker(b, func(p Provider) (models.Bias, error) { return p.DirectionalBias(f) })
}
