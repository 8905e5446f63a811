package report

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddiefleurent/utica_condor/internal/engine"
	"github.com/eddiefleurent/utica_condor/internal/metrics"
	"github.com/eddiefleurent/utica_condor/internal/models"
)

func sampleResult() *engine.Result {
	entry := time.Date(2022, 3, 8, 0, 0, 0, 0, time.UTC)
	rec := models.TradeRecord{
		Position: models.Position{
			ID:        "abc-123",
			EntryDate: entry,
			Tier:      models.DefaultTiers()[0],
			Candidate: models.StrategyCandidate{
				Strategy:       models.StrategyIronCondor,
				PutShortStrike: 4950, PutLongStrike: 4945,
				CallShortStrike: 5050, CallLongStrike: 5055,
				NetCredit: 1.20,
			},
			Contracts: 1,
			EntryVIX:  18,
		},
		ExitDate:    entry,
		SettlePrice: 5000,
		GrossPnL:    120,
		NetPnL:      109.8,
		Outcome:     models.OutcomeMaxProfit,
		ReturnPct:   28.89,
	}
	stats := metrics.Stats{
		Trades: 1, Wins: 1, WinRate: 100,
		Outcomes:  map[models.Outcome]int{models.OutcomeMaxProfit: 1},
		TierNames: []string{"starter", "growth", "scale"},
		PerTier:   []metrics.Tally{{Trades: 1, Wins: 1, NetPnL: 109.8}, {}, {}},
		MonthlyReturns: []metrics.MonthlyReturn{
			{Month: "2022-03", ReturnPct: 1.1},
		},
	}
	stats.PerWeekday[1] = metrics.Tally{Trades: 1, Wins: 1, NetPnL: 109.8}
	stats.PerVIX[1] = metrics.Tally{Trades: 1, Wins: 1, NetPnL: 109.8}

	return &engine.Result{
		Ticker:         "SPX",
		Strategy:       "iron_condor",
		Start:          entry,
		End:            entry,
		TradingDays:    1,
		InitialCapital: 10_000,
		FinalEquity:    10_109.8,
		TotalNetPnL:    109.8,
		ReturnPct:      1.1,
		Stats:          stats,
		Ledger:         []models.TradeRecord{rec},
		Curve: []models.EquityPoint{
			{Date: entry, Equity: 10_109.8, DailyPnL: 109.8},
		},
	}
}

func TestRender(t *testing.T) {
	out := NewReporter(logrus.New()).Render(sampleResult())

	assert.Contains(t, out, "iron_condor")
	assert.Contains(t, out, "$10109.80")
	assert.Contains(t, out, "MAX_PROFIT")
	assert.Contains(t, out, "tier starter")
	assert.Contains(t, out, "Tuesday")
	assert.Contains(t, out, "2022-03")
}

func TestWriteTradesCSV(t *testing.T) {
	r := NewReporter(logrus.New())
	path := filepath.Join(t.TempDir(), "trades.csv")
	res := sampleResult()

	require.NoError(t, r.WriteTradesCSV(path, res.Ledger))

	f, err := os.Open(path) // #nosec G304 -- test temp dir
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, "id", rows[0][0])
	assert.Equal(t, "abc-123", rows[1][0])
	assert.Equal(t, "iron_condor", rows[1][1])
	assert.Equal(t, "2022-03-08", rows[1][2])
	assert.Equal(t, "MAX_PROFIT", rows[1][15])
}

func TestWriteEquityCSV(t *testing.T) {
	r := NewReporter(logrus.New())
	path := filepath.Join(t.TempDir(), "equity.csv")

	require.NoError(t, r.WriteEquityCSV(path, sampleResult().Curve))

	f, err := os.Open(path) // #nosec G304 -- test temp dir
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, []string{"date", "equity", "drawdown_pct", "daily_pnl"}, rows[0])
	assert.Equal(t, "10109.80", rows[1][1])
}

func TestWriteJSONRoundTrip(t *testing.T) {
	r := NewReporter(logrus.New())
	path := filepath.Join(t.TempDir(), "result.json")
	res := sampleResult()

	require.NoError(t, r.WriteJSON(path, res))

	// The temp file must be gone after the rename.
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	data, err := os.ReadFile(path) // #nosec G304 -- test temp dir
	require.NoError(t, err)
	var got engine.Result
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, res.FinalEquity, got.FinalEquity)
	assert.Len(t, got.Ledger, 1)
}
