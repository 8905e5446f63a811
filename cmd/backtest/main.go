package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/utica_condor/internal/config"
	"github.com/eddiefleurent/utica_condor/internal/dashboard"
	"github.com/eddiefleurent/utica_condor/internal/engine"
	"github.com/eddiefleurent/utica_condor/internal/marketdata"
	"github.com/eddiefleurent/utica_condor/internal/models"
	"github.com/eddiefleurent/utica_condor/internal/report"
)

// shutdownTimeout bounds the dashboard drain on SIGINT/SIGTERM.
const shutdownTimeout = 10 * time.Second

type flags struct {
	configPath string
	start      string
	end        string
	capital    float64
	strategy   string
	width      float64
	sd         float64
	risk       float64
	ticker     string
	dataDir    string
	tradesCSV  string
	equityCSV  string
	jsonPath   string
	serve      string
}

func main() {
	f := parseFlags()

	// .env may carry ${VARS} referenced from config.yaml; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(f.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := applyOverrides(cfg, f); err != nil {
		fmt.Fprintf(os.Stderr, "flags: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Environment.LogLevel)

	provider, cleanup, err := buildProvider(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize market data provider")
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, stopping replay...")
		cancel()
	}()

	logger.WithFields(logrus.Fields{
		"ticker":   cfg.Run.Ticker,
		"strategy": cfg.Strategy.Type,
		"start":    cfg.Run.Start,
		"end":      cfg.Run.End,
		"capital":  cfg.Run.InitialCapital,
	}).Info("Starting replay")

	eng := engine.New(cfg, provider, logger, progressLogger{logger})
	result, err := eng.Run(ctx)
	if err != nil {
		logger.WithError(err).Fatal("Replay failed")
	}

	reporter := report.NewReporter(logger)
	fmt.Println(reporter.Render(result))

	if f.tradesCSV != "" {
		if err := reporter.WriteTradesCSV(f.tradesCSV, result.Ledger); err != nil {
			logger.WithError(err).Fatal("Failed to write trades CSV")
		}
		logger.WithField("path", f.tradesCSV).Info("Trades exported")
	}
	if f.equityCSV != "" {
		if err := reporter.WriteEquityCSV(f.equityCSV, result.Curve); err != nil {
			logger.WithError(err).Fatal("Failed to write equity CSV")
		}
		logger.WithField("path", f.equityCSV).Info("Equity curve exported")
	}
	if f.jsonPath != "" {
		if err := reporter.WriteJSON(f.jsonPath, result); err != nil {
			logger.WithError(err).Fatal("Failed to write JSON result")
		}
		logger.WithField("path", f.jsonPath).Info("Result exported")
	}

	if cfg.Dashboard.Port > 0 {
		serveDashboard(ctx, cfg, result, logger)
	}
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.configPath, "config", "config.yaml", "Path to configuration file")
	flag.StringVar(&f.start, "start", "", "Replay start date (YYYY-MM-DD), overrides config")
	flag.StringVar(&f.end, "end", "", "Replay end date (YYYY-MM-DD), overrides config")
	flag.Float64Var(&f.capital, "capital", 0, "Initial capital in dollars, overrides config")
	flag.StringVar(&f.strategy, "strategy", "", "Strategy type (e.g. iron_condor), overrides config")
	flag.Float64Var(&f.width, "width", 0, "Spread width in points, overrides config")
	flag.Float64Var(&f.sd, "sd", 0, "Standard-deviation multiplier, overrides config")
	flag.Float64Var(&f.risk, "risk", 0, "Risk per trade as percent of equity, overrides config")
	flag.StringVar(&f.ticker, "ticker", "", "Underlying ticker, overrides config")
	flag.StringVar(&f.dataDir, "data", "", "Historical data directory, overrides config (empty = synthetic)")
	flag.StringVar(&f.tradesCSV, "csv", "", "Write the trade ledger to this CSV path")
	flag.StringVar(&f.equityCSV, "equity", "", "Write the equity curve to this CSV path")
	flag.StringVar(&f.jsonPath, "json", "", "Write the full result to this JSON path")
	flag.StringVar(&f.serve, "serve", "", "Serve the results dashboard on this address (e.g. :8080)")
	flag.Parse()
	return f
}

// applyOverrides folds non-zero flags into the loaded config and revalidates,
// so flag values pass the same checks as file values.
func applyOverrides(cfg *config.Config, f flags) error {
	if f.start != "" {
		cfg.Run.Start = f.start
	}
	if f.end != "" {
		cfg.Run.End = f.end
	}
	if f.capital > 0 {
		cfg.Run.InitialCapital = f.capital
	}
	if f.strategy != "" {
		cfg.Strategy.Type = models.StrategyType(f.strategy)
	}
	if f.width > 0 {
		cfg.Strategy.SpreadWidth = f.width
	}
	if f.sd > 0 {
		cfg.Strategy.SDMultiplier = f.sd
	}
	if f.risk > 0 {
		cfg.Strategy.RiskPerTradePct = f.risk
	}
	if f.ticker != "" {
		cfg.Run.Ticker = f.ticker
	}
	if f.dataDir != "" {
		cfg.Data.Dir = f.dataDir
	}
	if f.serve != "" {
		port, err := parsePort(f.serve)
		if err != nil {
			return err
		}
		cfg.Dashboard.Port = port
	}
	return cfg.Validate()
}

func parsePort(addr string) (int, error) {
	var port int
	if _, err := fmt.Sscanf(strings.TrimPrefix(addr, ":"), "%d", &port); err != nil || port <= 0 {
		return 0, fmt.Errorf("invalid serve address %q", addr)
	}
	return port, nil
}

func newLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

// buildProvider assembles the provider stack: files (or synthetic), an
// optional disk cache, a circuit breaker, and an in-memory memoizer on top.
func buildProvider(cfg *config.Config, logger *logrus.Logger) (marketdata.Provider, func(), error) {
	cleanup := func() {}

	if cfg.Data.Dir == "" {
		logger.WithField("seed", cfg.Data.Seed).Info("No data directory configured, using synthetic market data")
		return marketdata.NewMemoProvider(marketdata.NewSyntheticProvider(cfg.Data.Seed)), cleanup, nil
	}

	var provider marketdata.Provider
	provider, err := marketdata.NewFileProvider(cfg.Data.Dir)
	if err != nil {
		return nil, cleanup, fmt.Errorf("opening data directory %s: %w", cfg.Data.Dir, err)
	}
	if cfg.Data.CacheDir != "" {
		cache, err := marketdata.NewDiskCache(provider, cfg.Data.CacheDir, logger)
		if err != nil {
			return nil, cleanup, fmt.Errorf("opening chain cache %s: %w", cfg.Data.CacheDir, err)
		}
		provider = cache
		cleanup = func() {
			if err := cache.Close(); err != nil {
				logger.WithError(err).Warn("Failed to close chain cache")
			}
		}
	}
	provider = marketdata.NewBreakerProvider(provider, logger)
	return marketdata.NewMemoProvider(provider), cleanup, nil
}

// progressLogger reports replay progress through the structured logger.
type progressLogger struct {
	logger *logrus.Logger
}

func (p progressLogger) Progress(date time.Time, done, total, trades int) {
	p.logger.WithFields(logrus.Fields{
		"date":   date.Format("2006-01-02"),
		"done":   done,
		"total":  total,
		"trades": trades,
	}).Info("Replay progress")
}

// serveDashboard blocks until the process receives a shutdown signal.
func serveDashboard(ctx context.Context, cfg *config.Config, result *engine.Result, logger *logrus.Logger) {
	srv := dashboard.NewServer(dashboard.Config{
		Port:      cfg.Dashboard.Port,
		AuthToken: cfg.Dashboard.AuthToken,
	}, result, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()
	logger.WithField("port", cfg.Dashboard.Port).Info("Dashboard serving results")

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Dashboard stopped")
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Dashboard shutdown failed")
		}
	}
}
