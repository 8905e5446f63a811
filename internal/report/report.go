// Package report renders a finished run as terminal tables and exports the
// ledger, equity curve, and full result to files.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/utica_condor/internal/engine"
	"github.com/eddiefleurent/utica_condor/internal/marketdata"
	"github.com/eddiefleurent/utica_condor/internal/metrics"
	"github.com/eddiefleurent/utica_condor/internal/models"
)

// Reporter renders and exports run results.
type Reporter struct {
	logger *logrus.Logger
}

// NewReporter returns a Reporter logging through the given logger.
func NewReporter(logger *logrus.Logger) *Reporter {
	if logger == nil {
		logger = logrus.New()
	}
	return &Reporter{logger: logger}
}

// Render formats the run summary as terminal tables.
func (r *Reporter) Render(res *engine.Result) string {
	out := r.summaryTable(res) + "\n" + r.outcomeTable(res)
	if res.Stats.Trades > 0 {
		out += "\n" + r.bucketTable(res) + "\n" + r.monthlyTable(res)
	}
	return out
}

func (r *Reporter) summaryTable(res *engine.Result) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetTitle("Run %s %s .. %s (%s)", res.Ticker,
		res.Start.Format("2006-01-02"), res.End.Format("2006-01-02"), res.Strategy)
	t.AppendRows([]table.Row{
		{"Trading days", res.TradingDays},
		{"Initial capital", money(res.InitialCapital)},
		{"Final equity", money(res.FinalEquity)},
		{"Net P&L", money(res.TotalNetPnL)},
		{"Return", pct(res.ReturnPct)},
		{"Max drawdown", pct(res.Stats.MaxDrawdownPct)},
		{"Trades", res.Stats.Trades},
		{"Win rate", pct(res.Stats.WinRate)},
		{"Profit factor", ratio(res.Stats.ProfitFactor)},
		{"Sharpe", fmt.Sprintf("%.2f", res.Stats.Sharpe)},
		{"Sortino", ratio(res.Stats.Sortino)},
		{"Max loss streak", res.Stats.MaxConsecutiveLosses},
		{"Days skipped (no chain)", res.Counters.SkippedNoChain},
		{"Delta fallbacks", res.Counters.DeltaFallbacks},
	})
	return t.Render()
}

func (r *Reporter) outcomeTable(res *engine.Result) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetTitle("Outcomes")
	t.AppendHeader(table.Row{"Outcome", "Count"})
	for _, o := range []models.Outcome{
		models.OutcomeMaxProfit, models.OutcomePutBreached, models.OutcomeCallBreached,
		models.OutcomeDoubleBreach, models.OutcomeWin, models.OutcomeLoss,
	} {
		if n := res.Stats.Outcomes[o]; n > 0 {
			t.AppendRow(table.Row{string(o), n})
		}
	}
	return t.Render()
}

func (r *Reporter) bucketTable(res *engine.Result) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetTitle("Buckets")
	t.AppendHeader(table.Row{"Bucket", "Trades", "Win rate", "Net P&L"})

	for i, name := range res.Stats.TierNames {
		appendTally(t, "tier "+name, res.Stats.PerTier[i])
	}
	weekdays := []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}
	for i, name := range weekdays {
		appendTally(t, name, res.Stats.PerWeekday[i])
	}
	vixNames := []string{"VIX <15", "VIX 15-25", "VIX >=25"}
	for i, name := range vixNames {
		appendTally(t, name, res.Stats.PerVIX[i])
	}
	return t.Render()
}

func appendTally(t table.Writer, name string, tally metrics.Tally) {
	if tally.Trades == 0 {
		return
	}
	t.AppendRow(table.Row{name, tally.Trades, pct(tally.WinRate()), money(tally.NetPnL)})
}

func (r *Reporter) monthlyTable(res *engine.Result) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetTitle("Monthly returns")
	t.AppendHeader(table.Row{"Month", "Return"})
	for _, m := range res.Stats.MonthlyReturns {
		t.AppendRow(table.Row{m.Month, pct(m.ReturnPct)})
	}
	return t.Render()
}

// WriteTradesCSV exports the trade ledger.
func (r *Reporter) WriteTradesCSV(path string, ledger []models.TradeRecord) error {
	f, err := os.Create(path) // #nosec G304 -- path comes from the CLI flags
	if err != nil {
		return fmt.Errorf("creating trades csv: %w", err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	header := []string{
		"id", "strategy", "entry_date", "exit_date", "tier", "contracts",
		"put_short", "put_long", "call_short", "call_long",
		"net_credit", "net_debit", "settle_price",
		"gross_pnl", "net_pnl", "outcome", "return_pct", "entry_vix",
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("writing trades csv header: %w", err)
	}
	for _, rec := range ledger {
		row := []string{
			rec.ID,
			string(rec.Candidate.Strategy),
			marketdata.DateKey(rec.EntryDate),
			marketdata.DateKey(rec.ExitDate),
			rec.Tier.Name,
			strconv.Itoa(rec.Contracts),
			f2(rec.Candidate.PutShortStrike),
			f2(rec.Candidate.PutLongStrike),
			f2(rec.Candidate.CallShortStrike),
			f2(rec.Candidate.CallLongStrike),
			f2(rec.Candidate.NetCredit),
			f2(rec.Candidate.NetDebit),
			f2(rec.SettlePrice),
			f2(rec.GrossPnL),
			f2(rec.NetPnL),
			string(rec.Outcome),
			f2(rec.ReturnPct),
			f2(rec.EntryVIX),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("writing trade row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// WriteEquityCSV exports the equity curve.
func (r *Reporter) WriteEquityCSV(path string, curve []models.EquityPoint) error {
	f, err := os.Create(path) // #nosec G304 -- path comes from the CLI flags
	if err != nil {
		return fmt.Errorf("creating equity csv: %w", err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"date", "equity", "drawdown_pct", "daily_pnl"}); err != nil {
		return fmt.Errorf("writing equity csv header: %w", err)
	}
	for _, pt := range curve {
		row := []string{
			marketdata.DateKey(pt.Date), f2(pt.Equity), f2(pt.DrawdownPct), f2(pt.DailyPnL),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("writing equity row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// WriteJSON exports the full result. The write goes through a temp file and
// an atomic rename so a crash never leaves a torn result behind.
func (r *Reporter) WriteJSON(path string, res *engine.Result) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}

	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o600); err != nil {
		return fmt.Errorf("writing result temp file: %w", err)
	}
	if err := os.Rename(tmpFile, path); err != nil {
		return fmt.Errorf("renaming result file: %w", err)
	}
	return nil
}

func money(v float64) string { return fmt.Sprintf("$%.2f", v) }
func pct(v float64) string   { return fmt.Sprintf("%.2f%%", v) }
func f2(v float64) string    { return strconv.FormatFloat(v, 'f', 2, 64) }

func ratio(v float64) string {
	if math.IsInf(v, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.2f", v)
}
