// Package config provides configuration management for the replay engine.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/eddiefleurent/utica_condor/internal/models"
)

const dateLayout = "2006-01-02"

// Defaults applied by normalize when the corresponding field is unset.
const (
	// defaultMinWallDistancePct is the minimum spot distance for a gamma wall
	// to count as meaningful. Empirically chosen upstream; configurable here.
	defaultMinWallDistancePct = 0.5
	// defaultOIFallbackPct is the secondary open-interest wall threshold.
	defaultOIFallbackPct = 1.0
	// defaultWallBufferPct widens wall-derived strikes outward.
	defaultWallBufferPct = 0.2
	// defaultProximityPct gates the directional variant on wall closeness.
	defaultProximityPct = 1.0
	// defaultStrikeIncrement matches the 5-point SPX strike grid.
	defaultStrikeIncrement = 5.0
	// defaultProgressEvery reports loop progress every N trading days.
	defaultProgressEvery = 20
)

// Config represents the complete application configuration.
type Config struct {
	Environment EnvironmentConfig    `yaml:"environment"`
	Run         RunConfig            `yaml:"run"`
	Strategy    StrategyConfig       `yaml:"strategy"`
	Filters     FilterConfig         `yaml:"filters"`
	GEX         GEXConfig            `yaml:"gex"`
	Tiers       []models.ScalingTier `yaml:"tiers"`
	Data        DataConfig           `yaml:"data"`
	Dashboard   DashboardConfig      `yaml:"dashboard"`

	tierSet *models.TierSet
}

// EnvironmentConfig defines runtime environment settings.
type EnvironmentConfig struct {
	LogLevel string `yaml:"log_level"` // debug | info | warn | error
}

// RunConfig defines the replay window and capital.
type RunConfig struct {
	Ticker         string  `yaml:"ticker"`
	Start          string  `yaml:"start"` // YYYY-MM-DD
	End            string  `yaml:"end"`   // YYYY-MM-DD
	InitialCapital float64 `yaml:"initial_capital"`
	ProgressEvery  int     `yaml:"progress_every"`
}

// StrategyConfig defines strategy selection and leg-building parameters.
type StrategyConfig struct {
	Type            models.StrategyType  `yaml:"type"`
	SpreadWidth     float64              `yaml:"spread_width"`
	SDMultiplier    float64              `yaml:"sd_multiplier"`
	RiskPerTradePct float64              `yaml:"risk_per_trade_pct"`
	HoldDays        int                  `yaml:"hold_days"` // 0 = day trade
	SelectionMode   models.SelectionMode `yaml:"selection_mode"`
	FixedDistance   float64              `yaml:"fixed_distance"`
	TargetDelta     float64              `yaml:"target_delta"`
	StrikeIncrement float64              `yaml:"strike_increment"`
	// StrikeTolerance bounds how far the long leg may land from the ideal
	// width before a vertical is rejected.
	StrikeTolerance float64 `yaml:"strike_tolerance"`
	// MaxContractsOverride caps sizing below the tier limit when > 0.
	MaxContractsOverride int `yaml:"max_contracts_override"`
}

// FilterConfig defines optional entry filters. Zero values disable a bound.
type FilterConfig struct {
	VIXMin float64 `yaml:"vix_min"`
	VIXMax float64 `yaml:"vix_max"`
}

// GEXConfig defines gamma-exposure wall thresholds. The defaults are
// empirically chosen constants carried from the research notebooks; they are
// deliberately configurable rather than hard-coded.
type GEXConfig struct {
	MinWallDistancePct    float64 `yaml:"min_wall_distance_pct"`
	OIFallbackPct         float64 `yaml:"oi_fallback_pct"`
	WallBufferPct         float64 `yaml:"wall_buffer_pct"`
	ProximityThresholdPct float64 `yaml:"proximity_threshold_pct"`
}

// DataConfig locates historical data. An empty Dir selects the deterministic
// synthetic provider, which keeps demo runs self-contained.
type DataConfig struct {
	Dir      string `yaml:"dir"`
	CacheDir string `yaml:"cache_dir"`
	Seed     int64  `yaml:"seed"`
}

// DashboardConfig defines the optional results dashboard. Port 0 disables it.
type DashboardConfig struct {
	Port      int    `yaml:"port"`
	AuthToken string `yaml:"auth_token"`
}

// Load reads and parses the configuration file from the specified path.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- configPath is a user-provided config file path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes and validates raw yaml configuration bytes.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var config Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate checks that all configuration values are valid and consistent.
// It also applies defaults and builds the validated tier set.
func (c *Config) Validate() error {
	c.normalize()

	// Run validation
	if c.Run.Ticker == "" {
		return fmt.Errorf("run.ticker is required")
	}
	start, err := time.Parse(dateLayout, c.Run.Start)
	if err != nil {
		return fmt.Errorf("run.start must be YYYY-MM-DD: %w", err)
	}
	end, err := time.Parse(dateLayout, c.Run.End)
	if err != nil {
		return fmt.Errorf("run.end must be YYYY-MM-DD: %w", err)
	}
	if !start.Before(end) {
		return fmt.Errorf("run.start (%s) must be before run.end (%s)", c.Run.Start, c.Run.End)
	}
	if c.Run.InitialCapital <= 0 {
		return fmt.Errorf("run.initial_capital must be > 0")
	}

	// Strategy validation
	if !c.Strategy.Type.Valid() {
		return fmt.Errorf("strategy.type %q is not a supported strategy", c.Strategy.Type)
	}
	if !c.Strategy.SelectionMode.Valid() {
		return fmt.Errorf("strategy.selection_mode %q is not a supported mode", c.Strategy.SelectionMode)
	}
	if c.Strategy.SpreadWidth <= 0 {
		return fmt.Errorf("strategy.spread_width must be > 0")
	}
	if c.Strategy.SDMultiplier <= 0 {
		return fmt.Errorf("strategy.sd_multiplier must be > 0")
	}
	if c.Strategy.RiskPerTradePct <= 0 || c.Strategy.RiskPerTradePct > 100 {
		return fmt.Errorf("strategy.risk_per_trade_pct must be in (0,100]")
	}
	if c.Strategy.HoldDays < 0 {
		return fmt.Errorf("strategy.hold_days must be >= 0")
	}
	if c.Strategy.SelectionMode == models.SelectionFixed && c.Strategy.FixedDistance <= 0 {
		return fmt.Errorf("strategy.fixed_distance must be > 0 in fixed selection mode")
	}
	if c.Strategy.SelectionMode == models.SelectionDelta &&
		(c.Strategy.TargetDelta <= 0 || c.Strategy.TargetDelta >= 1) {
		return fmt.Errorf("strategy.target_delta must be in (0,1) in delta selection mode")
	}
	if c.Strategy.StrikeIncrement <= 0 {
		return fmt.Errorf("strategy.strike_increment must be > 0")
	}
	if c.Strategy.MaxContractsOverride < 0 {
		return fmt.Errorf("strategy.max_contracts_override must be >= 0")
	}

	// Filter validation
	if c.Filters.VIXMin < 0 || c.Filters.VIXMax < 0 {
		return fmt.Errorf("filters.vix bounds must be >= 0")
	}
	if c.Filters.VIXMax > 0 && c.Filters.VIXMin > c.Filters.VIXMax {
		return fmt.Errorf("filters.vix_min (%.2f) must be <= filters.vix_max (%.2f)",
			c.Filters.VIXMin, c.Filters.VIXMax)
	}

	// GEX validation
	if c.GEX.MinWallDistancePct < 0 || c.GEX.OIFallbackPct < 0 ||
		c.GEX.WallBufferPct < 0 || c.GEX.ProximityThresholdPct < 0 {
		return fmt.Errorf("gex thresholds must be >= 0")
	}

	// Tier validation builds the lookup structure once.
	ts, err := models.NewTierSet(c.Tiers)
	if err != nil {
		return fmt.Errorf("tiers: %w", err)
	}
	c.tierSet = ts

	return nil
}

// normalize fills defaulted fields before validation.
func (c *Config) normalize() {
	if c.Environment.LogLevel == "" {
		c.Environment.LogLevel = "info"
	}
	if c.Run.ProgressEvery <= 0 {
		c.Run.ProgressEvery = defaultProgressEvery
	}
	if c.Strategy.Type == "" {
		c.Strategy.Type = models.StrategyIronCondor
	}
	if c.Strategy.SelectionMode == "" {
		c.Strategy.SelectionMode = models.SelectionSD
	}
	if c.Strategy.SDMultiplier == 0 {
		c.Strategy.SDMultiplier = 1.0
	}
	if c.Strategy.StrikeIncrement == 0 {
		c.Strategy.StrikeIncrement = defaultStrikeIncrement
	}
	if c.Strategy.StrikeTolerance == 0 {
		// Half the strike grid keeps the long leg within one listed strike.
		c.Strategy.StrikeTolerance = c.Strategy.StrikeIncrement / 2
		if c.Strategy.StrikeIncrement <= 0 {
			c.Strategy.StrikeTolerance = defaultStrikeIncrement / 2
		}
	}
	if c.GEX.MinWallDistancePct == 0 {
		c.GEX.MinWallDistancePct = defaultMinWallDistancePct
	}
	if c.GEX.OIFallbackPct == 0 {
		c.GEX.OIFallbackPct = defaultOIFallbackPct
	}
	if c.GEX.WallBufferPct == 0 {
		c.GEX.WallBufferPct = defaultWallBufferPct
	}
	if c.GEX.ProximityThresholdPct == 0 {
		c.GEX.ProximityThresholdPct = defaultProximityPct
	}
	if len(c.Tiers) == 0 {
		c.Tiers = models.DefaultTiers()
	}
}

// Window returns the parsed replay window. Validate must have succeeded.
func (c *Config) Window() (start, end time.Time) {
	start, _ = time.Parse(dateLayout, c.Run.Start)
	end, _ = time.Parse(dateLayout, c.Run.End)
	return start, end
}

// TierSet returns the validated tier lookup built during Validate.
func (c *Config) TierSet() *models.TierSet {
	return c.tierSet
}
