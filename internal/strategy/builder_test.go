package strategy

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddiefleurent/utica_condor/internal/config"
	"github.com/eddiefleurent/utica_condor/internal/models"
	"github.com/eddiefleurent/utica_condor/internal/strikes"
	"github.com/eddiefleurent/utica_condor/internal/util"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func newTestBuilder(t *testing.T, strat models.StrategyType) *Builder {
	t.Helper()
	cfg := config.StrategyConfig{
		Type:            strat,
		SpreadWidth:     5.0,
		SDMultiplier:    1.0,
		SelectionMode:   models.SelectionFixed,
		FixedDistance:   50.0,
		StrikeIncrement: 5.0,
		StrikeTolerance: 2.5,
	}
	gex := config.GEXConfig{
		MinWallDistancePct:    0.5,
		OIFallbackPct:         1.0,
		WallBufferPct:         0.2,
		ProximityThresholdPct: 1.0,
	}
	return NewBuilder(cfg, gex, strikes.NewPolicy(testLogger()), testLogger())
}

// ladderChain builds a dense strike grid with premiums decaying away from
// the money: calls cheapen as strikes rise, puts cheapen as strikes fall.
func ladderChain(dte int, spot float64) models.Chain {
	base := util.RoundToTick(spot, 5)
	var c models.Chain
	for k := base - 200; k <= base+200; k += 5 {
		callMid := 20 - (k-spot)*0.15
		putMid := 20 + (k-spot)*0.15
		if callMid < 0.10 {
			callMid = 0.10
		}
		if putMid < 0.10 {
			putMid = 0.10
		}
		c = append(c, models.OptionQuote{
			Strike:     k,
			DTE:        dte,
			Underlying: spot,
			PutBid:     putMid,
			PutAsk:     putMid + 0.10,
			CallBid:    callMid,
			CallAsk:    callMid + 0.10,
			IV:         0.20,
		})
	}
	return c
}

func ladderInput(spot float64) Input {
	return Input{
		Spot:           spot,
		IVProxy:        0.20,
		Chain:          ladderChain(1, spot),
		TargetDTE:      0,
		VolHorizonDays: 1,
	}
}

func TestCreditVerticalRejectsNonPositiveCredit(t *testing.T) {
	// Short bid 0.50 against a long ask of 0.60 nets -0.10.
	chain := models.Chain{
		{Strike: 4950, DTE: 1, PutBid: 0.50, PutAsk: 0.55},
		{Strike: 4945, DTE: 1, PutBid: 0.45, PutAsk: 0.60},
	}
	b := newTestBuilder(t, models.StrategyBullPutSpread)
	cand, reason := b.Build(Input{Spot: 5000, IVProxy: 0.20, Chain: chain, VolHorizonDays: 1})
	require.Nil(t, cand)
	assert.Contains(t, reason, "not positive")
}

func TestCreditVerticalAccepts(t *testing.T) {
	chain := models.Chain{
		{Strike: 4950, DTE: 1, PutBid: 0.50, PutAsk: 0.55},
		{Strike: 4945, DTE: 1, PutBid: 0.15, PutAsk: 0.20},
	}
	b := newTestBuilder(t, models.StrategyBullPutSpread)
	cand, reason := b.Build(Input{Spot: 5000, IVProxy: 0.20, Chain: chain, VolHorizonDays: 1})
	require.NotNil(t, cand, reason)

	assert.Equal(t, 4950.0, cand.PutShortStrike)
	assert.Equal(t, 4945.0, cand.PutLongStrike)
	assert.InDelta(t, 0.30, cand.NetCredit, 1e-9)
	assert.InDelta(t, 4.70, cand.MaxLoss, 1e-9)
	assert.InDelta(t, 0.30, cand.MaxProfit, 1e-9)
	assert.False(t, cand.DebitSpread)
	assert.False(t, cand.HasCallSide())
}

func TestDebitVerticalEconomics(t *testing.T) {
	// Long ask 2.00, short bid 0.50, 5-wide: debit 1.50, max profit 3.50.
	chain := models.Chain{
		{Strike: 4985, DTE: 1, CallBid: 1.90, CallAsk: 2.00},
		{Strike: 4990, DTE: 1, CallBid: 0.50, CallAsk: 0.60},
	}
	b := newTestBuilder(t, models.StrategyBullCallSpread)
	cand, reason := b.Build(Input{Spot: 5000, IVProxy: 0.20, Chain: chain, VolHorizonDays: 1})
	require.NotNil(t, cand, reason)

	assert.Equal(t, 4985.0, cand.CallLongStrike)
	assert.Equal(t, 4990.0, cand.CallShortStrike)
	assert.InDelta(t, 1.50, cand.NetDebit, 1e-9)
	assert.InDelta(t, 1.50, cand.MaxLoss, 1e-9)
	assert.InDelta(t, 3.50, cand.MaxProfit, 1e-9)
	assert.True(t, cand.DebitSpread)
}

func TestDebitVerticalRejectsNoProfit(t *testing.T) {
	// Debit of 5.10 against a 5-wide spread can never profit.
	chain := models.Chain{
		{Strike: 4985, DTE: 1, CallBid: 5.50, CallAsk: 5.60},
		{Strike: 4990, DTE: 1, CallBid: 0.50, CallAsk: 0.60},
	}
	b := newTestBuilder(t, models.StrategyBullCallSpread)
	cand, reason := b.Build(Input{Spot: 5000, IVProxy: 0.20, Chain: chain, VolHorizonDays: 1})
	require.Nil(t, cand)
	assert.Contains(t, reason, "max profit")
}

func TestIronCondor(t *testing.T) {
	b := newTestBuilder(t, models.StrategyIronCondor)
	cand, reason := b.Build(ladderInput(5000))
	require.NotNil(t, cand, reason)

	assert.Equal(t, models.StrategyIronCondor, cand.Strategy)
	assert.Equal(t, 4950.0, cand.PutShortStrike)
	assert.Equal(t, 4945.0, cand.PutLongStrike)
	assert.Equal(t, 5050.0, cand.CallShortStrike)
	assert.Equal(t, 5055.0, cand.CallLongStrike)
	assert.Positive(t, cand.PutCredit)
	assert.Positive(t, cand.CallCredit)
	assert.InDelta(t, cand.PutCredit+cand.CallCredit, cand.NetCredit, 1e-9)
	assert.InDelta(t, 5.0-cand.NetCredit, cand.MaxLoss, 1e-9)
	assert.Equal(t, 4, cand.LegCount())
}

func TestIronButterfly(t *testing.T) {
	b := newTestBuilder(t, models.StrategyIronButterfly)
	cand, reason := b.Build(ladderInput(5002))
	require.NotNil(t, cand, reason)

	// Straddle pinned at the nearest 5-multiple to spot, wings 5 out.
	assert.Equal(t, 5000.0, cand.PutShortStrike)
	assert.Equal(t, 5000.0, cand.CallShortStrike)
	assert.Equal(t, 4995.0, cand.PutLongStrike)
	assert.Equal(t, 5005.0, cand.CallLongStrike)
	assert.Positive(t, cand.NetCredit)
	assert.Positive(t, cand.MaxLoss)
}

func TestDiagonalPrefersTwoWeekGap(t *testing.T) {
	chain := models.Chain{
		{Strike: 5050, DTE: 1, CallBid: 1.00, CallAsk: 1.10},
		{Strike: 5045, DTE: 10, CallBid: 2.00, CallAsk: 2.10},
		{Strike: 5045, DTE: 21, CallBid: 3.00, CallAsk: 3.10},
	}
	b := newTestBuilder(t, models.StrategyDiagonalCall)
	cand, reason := b.Build(Input{Spot: 5000, IVProxy: 0.20, Chain: chain, TargetDTE: 1, VolHorizonDays: 1})
	require.NotNil(t, cand, reason)

	assert.Equal(t, 1, cand.DTE)
	assert.Equal(t, 21, cand.FarDTE, "a 14-day gap beats the nearer expiration")
	assert.Equal(t, 5050.0, cand.CallShortStrike)
	assert.Equal(t, 5045.0, cand.CallLongStrike)
	assert.InDelta(t, 2.10, cand.NetDebit, 1e-9) // 3.10 ask - 1.00 bid
	assert.InDelta(t, 2.90, cand.MaxProfit, 1e-9)
	assert.True(t, cand.DebitSpread)
}

func TestDiagonalFallsBackToNextExpiration(t *testing.T) {
	chain := models.Chain{
		{Strike: 5050, DTE: 1, CallBid: 1.00, CallAsk: 1.10},
		{Strike: 5045, DTE: 10, CallBid: 2.00, CallAsk: 2.10},
	}
	b := newTestBuilder(t, models.StrategyDiagonalCall)
	cand, reason := b.Build(Input{Spot: 5000, IVProxy: 0.20, Chain: chain, TargetDTE: 1, VolHorizonDays: 1})
	require.NotNil(t, cand, reason)
	assert.Equal(t, 10, cand.FarDTE)
}

func TestDiagonalCreditCase(t *testing.T) {
	// Cheap protection nets a credit; risk is width plus the credit.
	chain := models.Chain{
		{Strike: 5050, DTE: 1, CallBid: 1.00, CallAsk: 1.10},
		{Strike: 5045, DTE: 21, CallBid: 0.30, CallAsk: 0.40},
	}
	b := newTestBuilder(t, models.StrategyDiagonalCall)
	cand, reason := b.Build(Input{Spot: 5000, IVProxy: 0.20, Chain: chain, TargetDTE: 1, VolHorizonDays: 1})
	require.NotNil(t, cand, reason)

	assert.InDelta(t, 0.60, cand.NetCredit, 1e-9)
	assert.InDelta(t, 5.60, cand.MaxLoss, 1e-9)
	assert.False(t, cand.DebitSpread)
}

func TestDiagonalNeedsTwoExpirations(t *testing.T) {
	b := newTestBuilder(t, models.StrategyDiagonalCall)
	cand, reason := b.Build(ladderInput(5000))
	require.Nil(t, cand)
	assert.Contains(t, reason, "two expirations")
}

func TestGEXCondorWallProtected(t *testing.T) {
	in := ladderInput(5000)
	in.Walls = &models.GEXWalls{PutWall: 4900, CallWall: 5080}

	b := newTestBuilder(t, models.StrategyGEXCondor)
	cand, reason := b.Build(in)
	require.NotNil(t, cand, reason)

	assert.Equal(t, models.StrategyGEXCondor, cand.Strategy)
	assert.True(t, cand.WallProtected)
	assert.False(t, cand.SDFallback)
	// Wall distance plus the 0.2% buffer: 100+10 and 80+10 points out.
	assert.Equal(t, 4890.0, cand.PutShortStrike)
	assert.Equal(t, 5090.0, cand.CallShortStrike)
}

func TestGEXCondorFallsBackWithoutWalls(t *testing.T) {
	tests := []struct {
		name  string
		walls *models.GEXWalls
	}{
		{"no walls", nil},
		{"pinned walls", &models.GEXWalls{PutWall: 4995, CallWall: 5005}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := ladderInput(5000)
			in.Walls = tt.walls

			b := newTestBuilder(t, models.StrategyGEXCondor)
			cand, reason := b.Build(in)
			require.NotNil(t, cand, reason)

			assert.Equal(t, models.StrategyGEXCondor, cand.Strategy)
			assert.True(t, cand.SDFallback)
			assert.False(t, cand.WallProtected)
			assert.Equal(t, 4950.0, cand.PutShortStrike)
			assert.Equal(t, 5050.0, cand.CallShortStrike)
		})
	}
}

func TestGEXCondorAnchorsOnOpenInterestPeaks(t *testing.T) {
	in := ladderInput(5000)
	for i := range in.Chain {
		switch in.Chain[i].Strike {
		case 4910:
			in.Chain[i].OpenInterest = 9000
		case 5080:
			in.Chain[i].OpenInterest = 8000
		}
	}

	b := newTestBuilder(t, models.StrategyGEXCondor)
	cand, reason := b.Build(in)
	require.NotNil(t, cand, reason)

	assert.True(t, cand.WallProtected)
	assert.False(t, cand.SDFallback)
	// OI peaks at 4910 and 5080 plus the 0.2% buffer: 90+10 and 80+10 out.
	assert.Equal(t, 4900.0, cand.PutShortStrike)
	assert.Equal(t, 5090.0, cand.CallShortStrike)
}

func TestGEXDirectional(t *testing.T) {
	b := newTestBuilder(t, models.StrategyGEXDirectional)

	t.Run("no wall in range", func(t *testing.T) {
		in := ladderInput(5000)
		in.Walls = &models.GEXWalls{PutWall: 4900, CallWall: 5100}
		cand, reason := b.Build(in)
		require.Nil(t, cand)
		assert.Contains(t, reason, "no wall within")
	})

	t.Run("near put wall goes bullish", func(t *testing.T) {
		in := ladderInput(5000)
		in.Walls = &models.GEXWalls{PutWall: 4960, CallWall: 5150}
		cand, reason := b.Build(in)
		require.NotNil(t, cand, reason)

		assert.Equal(t, models.BiasBullish, cand.Bias)
		assert.True(t, cand.DebitSpread)
		assert.True(t, cand.HasCallSide(), "bullish lean trades a bull call spread")
		assert.False(t, cand.HasPutSide())
	})

	t.Run("near call wall goes bearish", func(t *testing.T) {
		in := ladderInput(5000)
		in.Walls = &models.GEXWalls{PutWall: 4850, CallWall: 5040}
		cand, reason := b.Build(in)
		require.NotNil(t, cand, reason)

		assert.Equal(t, models.BiasBearish, cand.Bias)
		assert.True(t, cand.HasPutSide(), "bearish lean trades a bear put spread")
	})

	t.Run("predictor disagreement rejects", func(t *testing.T) {
		in := ladderInput(5000)
		in.Walls = &models.GEXWalls{PutWall: 4960, CallWall: 5150}
		in.Bias = models.BiasBearish
		cand, reason := b.Build(in)
		require.Nil(t, cand)
		assert.Contains(t, reason, "disagrees")
	})

	t.Run("predictor agreement passes", func(t *testing.T) {
		in := ladderInput(5000)
		in.Walls = &models.GEXWalls{PutWall: 4960, CallWall: 5150}
		in.Bias = models.BiasBullish
		cand, _ := b.Build(in)
		require.NotNil(t, cand)
	})
}

func TestNearestQuoteTieBreak(t *testing.T) {
	sub := models.Chain{
		{Strike: 5005, DTE: 1},
		{Strike: 4995, DTE: 1},
	}
	q, ok := nearestQuote(sub, 5000, nil)
	require.True(t, ok)
	assert.Equal(t, 4995.0, q.Strike, "equidistant strikes resolve to the lower one")
}

func TestBuildEmptyChain(t *testing.T) {
	b := newTestBuilder(t, models.StrategyIronCondor)
	cand, reason := b.Build(Input{Spot: 5000})
	require.Nil(t, cand)
	assert.Equal(t, "empty chain", reason)
}
