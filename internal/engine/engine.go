// Package engine drives the day-by-day replay: gate, build, size, settle,
// track. It owns the run state and the open swing set; every other component
// is stateless across days.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/eddiefleurent/utica_condor/internal/config"
	"github.com/eddiefleurent/utica_condor/internal/marketdata"
	"github.com/eddiefleurent/utica_condor/internal/metrics"
	"github.com/eddiefleurent/utica_condor/internal/models"
	"github.com/eddiefleurent/utica_condor/internal/risk"
	"github.com/eddiefleurent/utica_condor/internal/settle"
	"github.com/eddiefleurent/utica_condor/internal/strategy"
	"github.com/eddiefleurent/utica_condor/internal/strikes"
	"github.com/eddiefleurent/utica_condor/internal/util"
)

// preloadWorkers bounds the concurrent bulk-load fan-out at startup.
const preloadWorkers = 8

// Observer receives periodic progress callbacks from the loop. Calls must
// return quickly; they have no effect on control flow.
type Observer interface {
	Progress(date time.Time, done, total, trades int)
}

type noopObserver struct{}

func (noopObserver) Progress(time.Time, int, int, int) {}

// Counters tallies the non-fatal reasons a day produced no trade.
type Counters struct {
	DaysProcessed   int `json:"days_processed"`
	SkippedNoPrice  int `json:"skipped_no_price"`
	SkippedNoChain  int `json:"skipped_no_chain"`
	GateBlocked     int `json:"gate_blocked"`
	BuilderRejected int `json:"builder_rejected"`
	DeltaFallbacks  int `json:"delta_fallbacks"`
}

// Result is the complete output of one replay. It is always populated, even
// for a run that entered zero trades.
type Result struct {
	Ticker      string    `json:"ticker"`
	Strategy    string    `json:"strategy"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	TradingDays int       `json:"trading_days"`

	InitialCapital float64 `json:"initial_capital"`
	FinalEquity    float64 `json:"final_equity"`
	TotalNetPnL    float64 `json:"total_net_pnl"`
	ReturnPct      float64 `json:"return_pct"`

	Stats    metrics.Stats        `json:"stats"`
	Ledger   []models.TradeRecord `json:"ledger"`
	Curve    []models.EquityPoint `json:"curve"`
	Counters Counters             `json:"counters"`
}

// Engine replays one configured strategy over the run window.
type Engine struct {
	cfg      *config.Config
	provider marketdata.Provider
	logger   *logrus.Logger
	observer Observer

	policy   *strikes.Policy
	builder  *strategy.Builder
	governor *risk.Governor
}

// New wires an engine from validated configuration and a data provider.
// A nil observer disables progress reporting.
func New(cfg *config.Config, provider marketdata.Provider, logger *logrus.Logger, observer Observer) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	if observer == nil {
		observer = noopObserver{}
	}
	policy := strikes.NewPolicy(logger)
	return &Engine{
		cfg:      cfg,
		provider: provider,
		logger:   logger,
		observer: observer,
		policy:   policy,
		builder:  strategy.NewBuilder(cfg.Strategy, cfg.GEX, policy, logger),
		governor: risk.NewGovernor(cfg.TierSet(), cfg.Filters,
			cfg.Strategy.RiskPerTradePct, cfg.Strategy.MaxContractsOverride, logger),
	}
}

// Run replays the configured window. The returned error is non-nil only for
// fatal setup failures; per-day data gaps are skipped and counted.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	start, end := e.cfg.Window()

	days, err := e.provider.TradingDays(e.cfg.Run.Ticker, start, end)
	if err != nil {
		return nil, fmt.Errorf("loading trading calendar: %w", err)
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("no trading days between %s and %s", e.cfg.Run.Start, e.cfg.Run.End)
	}

	bars, vixes, err := e.preload(ctx, days)
	if err != nil {
		return nil, fmt.Errorf("preloading market data: %w", err)
	}

	state := models.NewRunState(e.cfg.Run.InitialCapital)
	tracker := metrics.NewTracker(state, e.cfg.TierSet())

	res := &Result{
		Ticker:         e.cfg.Run.Ticker,
		Strategy:       string(e.cfg.Strategy.Type),
		Start:          start,
		End:            end,
		TradingDays:    len(days),
		InitialCapital: e.cfg.Run.InitialCapital,
	}

	var open []*models.Position
	var lastBar models.OHLC
	var lastDay time.Time
	haveBar := false

	for i, day := range days {
		res.Counters.DaysProcessed++

		bar, ok := bars[marketdata.DateKey(day)]
		if !ok {
			res.Counters.SkippedNoPrice++
			continue
		}
		lastBar, lastDay, haveBar = bar, day, true
		vix := vixes[marketdata.DateKey(day)]

		open = e.settleDue(open, day, bar, state, tracker, res)
		e.tradeDay(day, bar, vix, state, tracker, res, &open)

		if e.cfg.Run.ProgressEvery > 0 && (i+1)%e.cfg.Run.ProgressEvery == 0 {
			e.observer.Progress(day, i+1, len(days), len(res.Ledger))
		}
	}

	// The window closed with swings still open; settle them at the final bar.
	if haveBar {
		for _, pos := range open {
			e.closeTrade(pos, lastBar, lastDay, state, tracker, res)
		}
	}

	res.Counters.DeltaFallbacks = e.policy.DeltaFallbacks()
	res.Stats = tracker.Summarize(e.cfg.Run.InitialCapital)
	res.FinalEquity = state.Equity
	res.TotalNetPnL = util.Round2(state.Equity - e.cfg.Run.InitialCapital)
	if e.cfg.Run.InitialCapital > 0 {
		res.ReturnPct = util.Round2(res.TotalNetPnL / e.cfg.Run.InitialCapital * 100)
	}
	res.Curve = state.Curve

	e.logger.WithFields(logrus.Fields{
		"trades":       len(res.Ledger),
		"final_equity": res.FinalEquity,
		"return_pct":   res.ReturnPct,
	}).Info("Replay finished")
	return res, nil
}

// preload bulk-fetches the daily bars and VIX closes for the whole window.
// A hard provider failure aborts the run; a missing day is recorded by its
// absence from the maps and skipped later.
func (e *Engine) preload(ctx context.Context, days []time.Time) (map[string]models.OHLC, map[string]float64, error) {
	bars := make(map[string]models.OHLC, len(days))
	vixes := make(map[string]float64, len(days))
	var mu sync.Mutex

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(preloadWorkers)
	for _, day := range days {
		day := day
		g.Go(func() error {
			bar, err := e.provider.OHLC(day)
			if err != nil {
				if errors.Is(err, marketdata.ErrNoData) {
					return nil
				}
				return fmt.Errorf("OHLC %s: %w", marketdata.DateKey(day), err)
			}
			vix, err := e.provider.VIX(day)
			if err != nil && !errors.Is(err, marketdata.ErrNoData) {
				return fmt.Errorf("VIX %s: %w", marketdata.DateKey(day), err)
			}
			mu.Lock()
			bars[marketdata.DateKey(day)] = bar
			vixes[marketdata.DateKey(day)] = vix
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return bars, vixes, nil
}

// settleDue advances swing counters and settles positions at their horizon.
func (e *Engine) settleDue(open []*models.Position, day time.Time, bar models.OHLC,
	state *models.RunState, tracker *metrics.Tracker, res *Result) []*models.Position {
	remaining := open[:0]
	for _, pos := range open {
		pos.ElapsedDays++
		if pos.ElapsedDays >= pos.HoldDays {
			e.closeTrade(pos, bar, day, state, tracker, res)
			continue
		}
		remaining = append(remaining, pos)
	}
	return remaining
}

// tradeDay runs the gate/build/size path for one day and either settles the
// new position (day trade) or parks it in the open set (swing).
func (e *Engine) tradeDay(day time.Time, bar models.OHLC, vix float64,
	state *models.RunState, tracker *metrics.Tracker, res *Result, open *[]*models.Position) {
	tier := e.governor.Tier(state.Equity)

	ok, reason := e.governor.Gate(day, vix, tier, state)
	if !ok {
		res.Counters.GateBlocked++
		e.logger.WithFields(logrus.Fields{"date": marketdata.DateKey(day), "reason": reason}).
			Debug("Entry gate blocked")
		return
	}

	chain, err := e.provider.Chain(day, tier.TargetDTE)
	if err != nil {
		res.Counters.SkippedNoChain++
		if !errors.Is(err, marketdata.ErrNoData) {
			e.logger.WithError(err).WithField("date", marketdata.DateKey(day)).
				Warn("Chain fetch failed")
		}
		return
	}

	// Entries price off the open; settlement uses the close.
	in := strategy.Input{
		Spot:           bar.Open,
		IVProxy:        vix / 100,
		Chain:          chain,
		TargetDTE:      tier.TargetDTE,
		VolHorizonDays: tier.VolHorizonDays,
		Walls:          e.fetchWalls(day),
		Bias:           e.fetchBias(day, bar.Open, vix),
	}
	cand, why := e.builder.Build(in)
	if cand == nil {
		res.Counters.BuilderRejected++
		e.logger.WithFields(logrus.Fields{"date": marketdata.DateKey(day), "reason": why}).
			Debug("No candidate built")
		return
	}

	contracts, requested := e.governor.Size(state.Equity, cand.MaxLoss, tier)
	pos := models.NewPosition(day, tier, *cand, contracts, requested, e.cfg.Strategy.HoldDays, vix)
	if err := pos.Validate(); err != nil {
		res.Counters.BuilderRejected++
		e.logger.WithError(err).Warn("Discarding invalid position")
		return
	}
	e.governor.RecordEntry(state)

	if pos.IsSwing() {
		*open = append(*open, pos)
		return
	}
	e.closeTrade(pos, bar, day, state, tracker, res)
}

// closeTrade settles a position, records it, and advances the loss streak.
func (e *Engine) closeTrade(pos *models.Position, bar models.OHLC, day time.Time,
	state *models.RunState, tracker *metrics.Tracker, res *Result) {
	rec := settle.Settle(pos, bar, day)
	tracker.Record(rec)
	e.governor.RecordOutcome(state, rec.NetPnL >= 0)
	res.Ledger = append(res.Ledger, rec)
	e.logger.WithFields(logrus.Fields{
		"id":      util.ShortID(pos.ID),
		"date":    marketdata.DateKey(day),
		"outcome": rec.Outcome,
		"net":     rec.NetPnL,
	}).Debug("Trade settled")
}

// fetchWalls returns the day's gamma walls when the strategy uses them.
func (e *Engine) fetchWalls(day time.Time) *models.GEXWalls {
	switch e.cfg.Strategy.Type {
	case models.StrategyGEXCondor, models.StrategyGEXDirectional:
	default:
		return nil
	}
	walls, err := e.provider.GEXWalls(day)
	if err != nil {
		return nil
	}
	return walls
}

// fetchBias consults the external predictor for the directional variant.
func (e *Engine) fetchBias(day time.Time, spot, vix float64) models.Bias {
	if e.cfg.Strategy.Type != models.StrategyGEXDirectional {
		return models.BiasNone
	}
	walls := e.fetchWalls(day)
	features := marketdata.BiasFeatures{Date: day, Spot: spot, VIX: vix}
	if walls != nil {
		features.PutWall, features.CallWall = walls.PutWall, walls.CallWall
	}
	bias, err := e.provider.DirectionalBias(features)
	if err != nil {
		return models.BiasNone
	}
	return bias
}
