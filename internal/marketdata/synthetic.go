package marketdata

import (
	"fmt"
	"math"
	"time"

	"github.com/eddiefleurent/utica_condor/internal/models"
)

// SyntheticProvider generates a deterministic market history from a seed.
// It exists so demo runs and tests need no data directory: the same seed
// always reproduces the same prices, chains, and walls.
type SyntheticProvider struct {
	seed      int64
	basePrice float64
	baseVIX   float64
	increment float64
}

// Ensure SyntheticProvider implements Provider at compile time.
var _ Provider = (*SyntheticProvider)(nil)

// NewSyntheticProvider creates a provider seeded for reproducibility.
func NewSyntheticProvider(seed int64) *SyntheticProvider {
	if seed == 0 {
		seed = 1
	}
	return &SyntheticProvider{
		seed:      seed,
		basePrice: 5000,
		baseVIX:   16,
		increment: 5,
	}
}

// noise returns a deterministic value in [-1, 1) derived from the seed and a
// per-date ordinal. A hashed LCG is enough here; nothing statistical rides on it.
func (s *SyntheticProvider) noise(date time.Time, salt int64) float64 {
	x := uint64(s.seed) ^ uint64(date.Unix()) ^ uint64(salt)*0x9e3779b97f4a7c15
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return float64(x%200_000)/100_000 - 1
}

// spot returns the deterministic close for a date: a slow drift plus a
// bounded oscillation, so multi-year runs stay in a plausible range.
func (s *SyntheticProvider) spot(date time.Time) float64 {
	days := float64(date.Unix() / 86_400)
	drift := days * 0.12
	swing := s.basePrice * 0.02 * math.Sin(days/9)
	return s.basePrice + drift + swing + s.noise(date, 1)*s.basePrice*0.004
}

// OHLC derives a bar around the deterministic close.
func (s *SyntheticProvider) OHLC(date time.Time) (models.OHLC, error) {
	c := s.spot(date)
	span := c * 0.006 * (1 + math.Abs(s.noise(date, 2)))
	o := c + s.noise(date, 3)*span/2
	return models.OHLC{
		Open:  o,
		High:  math.Max(o, c) + span/2,
		Low:   math.Min(o, c) - span/2,
		Close: c,
	}, nil
}

// VIX oscillates around the base level.
func (s *SyntheticProvider) VIX(date time.Time) (float64, error) {
	days := float64(date.Unix() / 86_400)
	return s.baseVIX + 4*math.Sin(days/17) + s.noise(date, 4)*1.5, nil
}

// TradingDays returns all weekdays in [start, end].
func (s *SyntheticProvider) TradingDays(_ string, start, end time.Time) ([]time.Time, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("%w: empty window", ErrNoData)
	}
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			days = append(days, d)
		}
	}
	return days, nil
}

// Chain builds a strike ladder around spot at the target expiration plus a
// longer one, with premiums decaying away from the money.
func (s *SyntheticProvider) Chain(date time.Time, targetDTE int) (models.Chain, error) {
	spot := s.spot(date)
	vix, _ := s.VIX(date)
	iv := vix / 100

	dtes := []int{targetDTE, targetDTE + 21}
	if targetDTE == 0 {
		dtes[0] = 1
	}

	var chain models.Chain
	for _, dte := range dtes {
		em := spot * iv * math.Sqrt(float64(dte)/252)
		atm := math.Round(spot/s.increment) * s.increment
		// 30 strikes per side covers several expected moves.
		for i := -30; i <= 30; i++ {
			strike := atm + float64(i)*s.increment
			chain = append(chain, s.quote(spot, strike, dte, em, iv))
		}
	}
	return chain, nil
}

func (s *SyntheticProvider) quote(spot, strike float64, dte int, em, iv float64) models.OptionQuote {
	timeValue := 0.4 * em * math.Exp(-math.Abs(strike-spot)/math.Max(em, 1))

	putIntrinsic := math.Max(0, strike-spot)
	callIntrinsic := math.Max(0, spot-strike)
	putMid := putIntrinsic + timeValue
	callMid := callIntrinsic + timeValue

	// Crude monotone delta proxy: 0.5 at the money, decaying with distance.
	otmFactor := 0.5 * math.Exp(-math.Abs(strike-spot)/math.Max(em, 1))
	putDelta := -otmFactor
	if strike > spot {
		putDelta = -(1 - otmFactor)
	}
	callDelta := otmFactor
	if strike < spot {
		callDelta = 1 - otmFactor
	}

	spread := 0.05 + timeValue*0.04
	return models.OptionQuote{
		Strike:       strike,
		DTE:          dte,
		Underlying:   spot,
		PutBid:       round2(putMid - spread),
		PutAsk:       round2(putMid + spread),
		CallBid:      round2(callMid - spread),
		CallAsk:      round2(callMid + spread),
		PutDelta:     putDelta,
		CallDelta:    callDelta,
		IV:           iv,
		Gamma:        otmFactor / math.Max(em, 1),
		OpenInterest: int64(5000 * otmFactor),
	}
}

// GEXWalls places walls one expected daily move out from spot.
func (s *SyntheticProvider) GEXWalls(date time.Time) (*models.GEXWalls, error) {
	spot := s.spot(date)
	vix, _ := s.VIX(date)
	em := spot * (vix / 100) * math.Sqrt(1.0/252)
	return &models.GEXWalls{
		PutWall:  math.Round((spot-em)/s.increment) * s.increment,
		CallWall: math.Round((spot+em)/s.increment) * s.increment,
		Regime:   "positive",
	}, nil
}

// DirectionalBias is derived from the day's drift sign.
func (s *SyntheticProvider) DirectionalBias(f BiasFeatures) (models.Bias, error) {
	n := s.noise(f.Date, 5)
	switch {
	case n > 0.3:
		return models.BiasBullish, nil
	case n < -0.3:
		return models.BiasBearish, nil
	default:
		return models.BiasFlat, nil
	}
}

func round2(x float64) float64 {
	if x < 0.01 {
		return 0.01
	}
	return math.Round(x*100) / 100
}
