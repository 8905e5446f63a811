package marketdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/eddiefleurent/utica_condor/internal/models"
)

// FileProvider serves historical data from a directory of CSV exports:
//
//	<dir>/prices.csv            date,open,high,low,close
//	<dir>/vix.csv               date,close
//	<dir>/chains/<date>.csv     strike,dte,underlying,put_bid,put_ask,call_bid,
//	                            call_ask,put_delta,call_delta,iv,gamma,open_interest
//	<dir>/gex.csv               date,put_wall,call_wall,regime   (optional)
//
// Prices and VIX are loaded eagerly at construction; chains are read lazily
// per day. The provider exposes no directional predictor.
type FileProvider struct {
	dir    string
	prices map[string]models.OHLC
	vix    map[string]float64
	gex    map[string]models.GEXWalls
	// dteWindow bounds which expirations a Chain call returns around the target.
	dteWindow int
}

// Ensure FileProvider implements Provider at compile time.
var _ Provider = (*FileProvider)(nil)

// NewFileProvider loads the bulk price/VIX/GEX files from dir.
func NewFileProvider(dir string) (*FileProvider, error) {
	p := &FileProvider{
		dir:       dir,
		prices:    make(map[string]models.OHLC),
		vix:       make(map[string]float64),
		gex:       make(map[string]models.GEXWalls),
		dteWindow: 7,
	}

	if err := p.loadPrices(filepath.Join(dir, "prices.csv")); err != nil {
		return nil, fmt.Errorf("loading prices: %w", err)
	}
	if err := p.loadVIX(filepath.Join(dir, "vix.csv")); err != nil {
		return nil, fmt.Errorf("loading vix: %w", err)
	}
	// GEX walls are optional input.
	if err := p.loadGEX(filepath.Join(dir, "gex.csv")); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading gex walls: %w", err)
	}
	return p, nil
}

func (p *FileProvider) loadPrices(path string) error {
	rows, err := readCSV(path)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if len(row) < 5 {
			return fmt.Errorf("prices.csv: expected 5 columns, got %d", len(row))
		}
		vals, err := parseFloats(row[1:5])
		if err != nil {
			return fmt.Errorf("prices.csv row %q: %w", row[0], err)
		}
		p.prices[row[0]] = models.OHLC{Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3]}
	}
	return nil
}

func (p *FileProvider) loadVIX(path string) error {
	rows, err := readCSV(path)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if len(row) < 2 {
			return fmt.Errorf("vix.csv: expected 2 columns, got %d", len(row))
		}
		v, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return fmt.Errorf("vix.csv row %q: %w", row[0], err)
		}
		p.vix[row[0]] = v
	}
	return nil
}

func (p *FileProvider) loadGEX(path string) error {
	rows, err := readCSV(path)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if len(row) < 3 {
			return fmt.Errorf("gex.csv: expected at least 3 columns, got %d", len(row))
		}
		vals, err := parseFloats(row[1:3])
		if err != nil {
			return fmt.Errorf("gex.csv row %q: %w", row[0], err)
		}
		w := models.GEXWalls{PutWall: vals[0], CallWall: vals[1]}
		if len(row) > 3 {
			w.Regime = row[3]
		}
		p.gex[row[0]] = w
	}
	return nil
}

// OHLC returns the daily bar, or ErrNoData.
func (p *FileProvider) OHLC(date time.Time) (models.OHLC, error) {
	bar, ok := p.prices[DateKey(date)]
	if !ok {
		return models.OHLC{}, fmt.Errorf("%w: ohlc %s", ErrNoData, DateKey(date))
	}
	return bar, nil
}

// VIX returns the volatility index close, or ErrNoData.
func (p *FileProvider) VIX(date time.Time) (float64, error) {
	v, ok := p.vix[DateKey(date)]
	if !ok {
		return 0, fmt.Errorf("%w: vix %s", ErrNoData, DateKey(date))
	}
	return v, nil
}

// TradingDays derives the calendar from the dates that have chain snapshots.
func (p *FileProvider) TradingDays(_ string, start, end time.Time) ([]time.Time, error) {
	entries, err := os.ReadDir(filepath.Join(p.dir, "chains"))
	if err != nil {
		return nil, fmt.Errorf("reading chain directory: %w", err)
	}
	var days []time.Time
	for _, e := range entries {
		name := e.Name()
		if filepath.Ext(name) != ".csv" {
			continue
		}
		d, err := time.Parse(dateKeyLayout, name[:len(name)-len(".csv")])
		if err != nil {
			continue
		}
		if d.Before(start) || d.After(end) {
			continue
		}
		days = append(days, d)
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("%w: no chain snapshots between %s and %s",
			ErrNoData, DateKey(start), DateKey(end))
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days, nil
}

// Chain reads the day's snapshot and filters it to a DTE window around target.
func (p *FileProvider) Chain(date time.Time, targetDTE int) (models.Chain, error) {
	path := filepath.Join(p.dir, "chains", DateKey(date)+".csv")
	rows, err := readCSV(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: chain %s", ErrNoData, DateKey(date))
		}
		return nil, err
	}

	var chain models.Chain
	for _, row := range rows {
		if len(row) < 12 {
			return nil, fmt.Errorf("chain %s: expected 12 columns, got %d", DateKey(date), len(row))
		}
		vals, err := parseFloats(row)
		if err != nil {
			return nil, fmt.Errorf("chain %s: %w", DateKey(date), err)
		}
		q := models.OptionQuote{
			Strike:       vals[0],
			DTE:          int(vals[1]),
			Underlying:   vals[2],
			PutBid:       vals[3],
			PutAsk:       vals[4],
			CallBid:      vals[5],
			CallAsk:      vals[6],
			PutDelta:     vals[7],
			CallDelta:    vals[8],
			IV:           vals[9],
			Gamma:        vals[10],
			OpenInterest: int64(vals[11]),
		}
		if q.DTE >= targetDTE-p.dteWindow && q.DTE <= targetDTE+p.dteWindow*4 {
			chain = append(chain, q)
		}
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("%w: chain %s has no quotes near %d DTE", ErrNoData, DateKey(date), targetDTE)
	}
	return chain, nil
}

// GEXWalls returns the day's walls, or ErrNoSignal when the file had none.
func (p *FileProvider) GEXWalls(date time.Time) (*models.GEXWalls, error) {
	w, ok := p.gex[DateKey(date)]
	if !ok {
		return nil, fmt.Errorf("%w: gex walls %s", ErrNoSignal, DateKey(date))
	}
	return &w, nil
}

// DirectionalBias is not provided by file exports.
func (p *FileProvider) DirectionalBias(BiasFeatures) (models.Bias, error) {
	return models.BiasNone, ErrNoSignal
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path) // #nosec G304 -- path is rooted at the configured data dir
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	var rows [][]string
	first := true
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		// Tolerate a header row.
		if first {
			first = false
			if _, err := strconv.ParseFloat(row[len(row)-1], 64); err != nil {
				continue
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
