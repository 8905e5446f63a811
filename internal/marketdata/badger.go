package marketdata

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/utica_condor/internal/models"
)

// DiskCache is a badger-backed decorator that persists chain snapshots across
// runs. Re-running a window against the same data dir then skips the CSV
// parse entirely. Cache misses and cache errors both fall through to the
// wrapped provider; a broken cache never fails a run.
type DiskCache struct {
	provider Provider
	db       *badger.DB
	logger   *logrus.Logger
}

// Ensure DiskCache implements Provider at compile time.
var _ Provider = (*DiskCache)(nil)

// NewDiskCache opens (or creates) a badger database at path around provider.
func NewDiskCache(provider Provider, path string, logger *logrus.Logger) (*DiskCache, error) {
	opts := badger.DefaultOptions(path)
	// Badger's own logging is noise next to the run log; errors still surface
	// from the DB operations themselves.
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening chain cache: %w", err)
	}
	return &DiskCache{provider: provider, db: db, logger: logger}, nil
}

// Close releases the underlying database.
func (d *DiskCache) Close() error {
	return d.db.Close()
}

func chainKey(date time.Time, targetDTE int) []byte {
	return []byte(fmt.Sprintf("chain|%s|%d", DateKey(date), targetDTE))
}

// Chain serves from the disk cache when possible, populating it on miss.
func (d *DiskCache) Chain(date time.Time, targetDTE int) (models.Chain, error) {
	key := chainKey(date, targetDTE)

	var cached models.Chain
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &cached)
		})
	})
	if err == nil && len(cached) > 0 {
		return cached, nil
	}
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) && d.logger != nil {
		d.logger.WithError(err).Warn("Chain cache read failed, falling back to provider")
	}

	chain, err := d.provider.Chain(date, targetDTE)
	if err != nil {
		return nil, err
	}

	if data, merr := json.Marshal(chain); merr == nil {
		werr := d.db.Update(func(txn *badger.Txn) error {
			return txn.Set(key, data)
		})
		if werr != nil && d.logger != nil {
			d.logger.WithError(werr).Warn("Chain cache write failed")
		}
	}
	return chain, nil
}

// OHLC delegates to the wrapped provider; daily bars live in memory already.
func (d *DiskCache) OHLC(date time.Time) (models.OHLC, error) { return d.provider.OHLC(date) }

// VIX delegates to the wrapped provider.
func (d *DiskCache) VIX(date time.Time) (float64, error) { return d.provider.VIX(date) }

// TradingDays delegates to the wrapped provider.
func (d *DiskCache) TradingDays(ticker string, start, end time.Time) ([]time.Time, error) {
	return d.provider.TradingDays(ticker, start, end)
}

// GEXWalls delegates to the wrapped provider.
func (d *DiskCache) GEXWalls(date time.Time) (*models.GEXWalls, error) {
	return d.provider.GEXWalls(date)
}

// DirectionalBias delegates to the wrapped provider.
func (d *DiskCache) DirectionalBias(f BiasFeatures) (models.Bias, error) {
	return d.provider.DirectionalBias(f)
}
