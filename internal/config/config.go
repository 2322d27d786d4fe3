// Package config loads and validates the scanner configuration. A
// malformed or incomplete file is fatal at startup; nothing in the
// per-cycle path re-validates thresholds.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/coinpulse/regimescan/internal/domain"
)

// Duration wraps time.Duration so cadences read as "30s" / "5m" in
// YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full configuration surface.
type Config struct {
	LogLevel   string           `yaml:"log_level"`
	Universe   UniverseConfig   `yaml:"universe"`
	Regime     RegimeConfig     `yaml:"regime"`
	Scoring    ScoringConfig    `yaml:"scoring"`
	Strategy   StrategyConfig   `yaml:"strategy"`
	Alerts     AlertConfig      `yaml:"alerts"`
	Refresh    RefreshConfig    `yaml:"refresh"`
	Datasource DatasourceConfig `yaml:"datasource"`
	Redis      RedisConfig      `yaml:"redis"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	HTTP       HTTPConfig       `yaml:"http"`
}

// UniverseConfig filters the tradable universe before analysis.
type UniverseConfig struct {
	Exclude    []string `yaml:"exclude"`
	MinPrice   float64  `yaml:"min_price"`
	MinVolume  float64  `yaml:"min_volume"`
	Benchmarks []string `yaml:"benchmarks"` // exactly two symbols
}

// RegimeConfig holds the classifier thresholds.
type RegimeConfig struct {
	VolatilityHigh  float64 `yaml:"volatility_high"`
	VolatilityLow   float64 `yaml:"volatility_low"`
	BullRatio       float64 `yaml:"bull_ratio"`
	BearRatio       float64 `yaml:"bear_ratio"`
	VolumeSpikeMult float64 `yaml:"volume_spike_mult"`
	TopNVolume      int     `yaml:"top_n_volume"`
}

// RegimeWeights is the additive point table for one regime's scorer.
// Each entry is the contribution granted when its predicate holds.
type RegimeWeights struct {
	RSI         float64 `yaml:"rsi"`
	MACD        float64 `yaml:"macd"`
	Flow        float64 `yaml:"flow"`
	BuyingPower float64 `yaml:"buying_power"`
	MASignal    float64 `yaml:"ma_signal"`
	Bonus       float64 `yaml:"bonus"`
}

func (w RegimeWeights) sum() float64 {
	return w.RSI + w.MACD + w.Flow + w.BuyingPower + w.MASignal + w.Bonus
}

// ScoringConfig keys weight tables and risk tiers by regime label.
type ScoringConfig struct {
	Weights  map[string]RegimeWeights `yaml:"weights"`
	RiskTier map[string]string        `yaml:"risk_tier"`
}

// PlanTable is the multiplier table the synthesizer applies to the
// current price for one regime.
type PlanTable struct {
	EntryMult    float64   `yaml:"entry_mult"`
	StopMult     float64   `yaml:"stop_mult"`
	TargetMults  []float64 `yaml:"target_mults"` // ascending
	PositionSize float64   `yaml:"position_size"`
	TimeHorizon  string    `yaml:"time_horizon"`
}

// StrategyConfig keys plan tables by regime label. Sideways anchor
// percentages position entries against support/resistance instead of
// the price multipliers.
type StrategyConfig struct {
	Plans             map[string]PlanTable `yaml:"plans"`
	SupportAnchorPct  float64              `yaml:"support_anchor_pct"`  // entry above support
	ResistanceClipPct float64              `yaml:"resistance_clip_pct"` // target below resistance
	VolatileSizeScale float64              `yaml:"volatile_size_scale"` // size x for volatile variants
}

// AlertConfig holds the thresholds evaluated when a cycle publishes.
type AlertConfig struct {
	MinScore        float64 `yaml:"min_score"`
	VolumeSpikeMult float64 `yaml:"volume_spike_mult"`
	BreakoutPct     float64 `yaml:"breakout_pct"`
}

// RefreshConfig is the three scheduler cadences.
type RefreshConfig struct {
	Fast   Duration `yaml:"fast"`   // price-only refresh
	Normal Duration `yaml:"normal"` // full analysis cycle
	Slow   Duration `yaml:"slow"`   // regime-only refresh
}

// DatasourceConfig configures the REST collaborator client.
type DatasourceConfig struct {
	BaseURL        string   `yaml:"base_url"`
	RequestTimeout Duration `yaml:"request_timeout"`
	RatePerSecond  float64  `yaml:"rate_per_second"`
	Burst          int      `yaml:"burst"`
	SeriesBars     int      `yaml:"series_bars"`
}

type RedisConfig struct {
	Addr    string   `yaml:"addr"`
	TTL     Duration `yaml:"ttl"`
	Enabled bool     `yaml:"enabled"`
}

type PostgresConfig struct {
	DSN     string `yaml:"dsn"`
	Enabled bool   `yaml:"enabled"`
}

type HTTPConfig struct {
	Listen string `yaml:"listen"`
}

// Load reads the YAML file, applies defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the built-in configuration. It passes Validate and
// is the base that file values override.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Universe: UniverseConfig{
			MinPrice:   0.01,
			MinVolume:  100_000,
			Benchmarks: []string{"BTC-USD", "ETH-USD"},
		},
		Regime: RegimeConfig{
			VolatilityHigh:  0.06,
			VolatilityLow:   0.02,
			BullRatio:       0.60,
			BearRatio:       0.45,
			VolumeSpikeMult: 2.0,
			TopNVolume:      5,
		},
		Scoring: ScoringConfig{
			Weights: map[string]RegimeWeights{
				"bull_stable":       {RSI: 20, MACD: 20, Flow: 15, BuyingPower: 15, MASignal: 10, Bonus: 20},
				"bull_volatile":     {RSI: 18, MACD: 18, Flow: 15, BuyingPower: 15, MASignal: 10, Bonus: 15},
				"bear_stable":       {RSI: 15, MACD: 15, Flow: 20, BuyingPower: 20, MASignal: 10, Bonus: 20},
				"bear_volatile":     {RSI: 12, MACD: 12, Flow: 20, BuyingPower: 20, MASignal: 10, Bonus: 15},
				"volatile_sideways": {RSI: 15, MACD: 10, Flow: 20, BuyingPower: 15, MASignal: 10, Bonus: 25},
				"sideways_stable":   {RSI: 18, MACD: 12, Flow: 18, BuyingPower: 15, MASignal: 12, Bonus: 20},
				"neutral":           {RSI: 20, MACD: 20, Flow: 20, BuyingPower: 20, MASignal: 20, Bonus: 0},
			},
			RiskTier: map[string]string{
				"bull_stable":       "medium",
				"bull_volatile":     "high",
				"bear_stable":       "high",
				"bear_volatile":     "very_high",
				"volatile_sideways": "very_high",
				"sideways_stable":   "low",
				"neutral":           "medium",
			},
		},
		Strategy: StrategyConfig{
			Plans: map[string]PlanTable{
				"bull_stable":       {EntryMult: 0.995, StopMult: 0.92, TargetMults: []float64{1.15, 1.30, 1.50}, PositionSize: 0.25, TimeHorizon: "2-4 weeks"},
				"bull_volatile":     {EntryMult: 0.99, StopMult: 0.90, TargetMults: []float64{1.12, 1.25, 1.40}, PositionSize: 0.20, TimeHorizon: "1-3 weeks"},
				"bear_stable":       {EntryMult: 0.97, StopMult: 0.94, TargetMults: []float64{1.05, 1.10}, PositionSize: 0.10, TimeHorizon: "1-2 weeks"},
				"bear_volatile":     {EntryMult: 0.96, StopMult: 0.93, TargetMults: []float64{1.04, 1.08}, PositionSize: 0.08, TimeHorizon: "days"},
				"volatile_sideways": {EntryMult: 0.98, StopMult: 0.95, TargetMults: []float64{1.06, 1.12}, PositionSize: 0.12, TimeHorizon: "1-2 weeks"},
				"sideways_stable":   {EntryMult: 0.985, StopMult: 0.955, TargetMults: []float64{1.05, 1.10}, PositionSize: 0.15, TimeHorizon: "2-3 weeks"},
				"neutral":           {EntryMult: 0.99, StopMult: 0.93, TargetMults: []float64{1.08, 1.15}, PositionSize: 0.15, TimeHorizon: "2-3 weeks"},
			},
			SupportAnchorPct:  0.02,
			ResistanceClipPct: 0.02,
			VolatileSizeScale: 0.7,
		},
		Alerts: AlertConfig{
			MinScore:        80,
			VolumeSpikeMult: 3.0,
			BreakoutPct:     0.03,
		},
		Refresh: RefreshConfig{
			Fast:   Duration(30 * time.Second),
			Normal: Duration(5 * time.Minute),
			Slow:   Duration(30 * time.Minute),
		},
		Datasource: DatasourceConfig{
			BaseURL:        "https://api.exchange.coinbase.com",
			RequestTimeout: Duration(10 * time.Second),
			RatePerSecond:  8,
			Burst:          4,
			SeriesBars:     30,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			TTL:  Duration(24 * time.Hour),
		},
		Postgres: PostgresConfig{},
		HTTP: HTTPConfig{
			Listen: ":8080",
		},
	}
}

// Validate checks the invariants the per-cycle path relies on.
func (c *Config) Validate() error {
	if c.Regime.VolatilityHigh <= c.Regime.VolatilityLow {
		return fmt.Errorf("regime: volatility_high %.4f must exceed volatility_low %.4f",
			c.Regime.VolatilityHigh, c.Regime.VolatilityLow)
	}
	if c.Regime.BullRatio <= 0 || c.Regime.BullRatio >= 1 {
		return fmt.Errorf("regime: bull_ratio %.3f outside (0,1)", c.Regime.BullRatio)
	}
	if c.Regime.BearRatio <= 0 || c.Regime.BearRatio >= 1 {
		return fmt.Errorf("regime: bear_ratio %.3f outside (0,1)", c.Regime.BearRatio)
	}
	if len(c.Universe.Benchmarks) != 2 {
		return fmt.Errorf("universe: want exactly 2 benchmarks, got %d", len(c.Universe.Benchmarks))
	}

	for _, regime := range domain.AllRegimes() {
		w, ok := c.Scoring.Weights[regime.String()]
		if !ok {
			return fmt.Errorf("scoring: missing weight table for regime %s", regime)
		}
		if w.sum() <= 0 || w.sum() > 120 {
			return fmt.Errorf("scoring: regime %s weights sum to %.1f, expected (0,120]", regime, w.sum())
		}

		tier, ok := c.Scoring.RiskTier[regime.String()]
		if !ok {
			return fmt.Errorf("scoring: missing risk tier for regime %s", regime)
		}
		switch domain.RiskTier(tier) {
		case domain.RiskLow, domain.RiskMedium, domain.RiskHigh, domain.RiskVeryHigh:
		default:
			return fmt.Errorf("scoring: invalid risk tier %q for regime %s", tier, regime)
		}

		p, ok := c.Strategy.Plans[regime.String()]
		if !ok {
			return fmt.Errorf("strategy: missing plan table for regime %s", regime)
		}
		if err := validatePlanTable(regime, p); err != nil {
			return err
		}
	}

	if c.Strategy.VolatileSizeScale <= 0 || c.Strategy.VolatileSizeScale > 1 {
		return fmt.Errorf("strategy: volatile_size_scale %.3f outside (0,1]", c.Strategy.VolatileSizeScale)
	}
	if c.Refresh.Fast <= 0 || c.Refresh.Normal <= 0 || c.Refresh.Slow <= 0 {
		return fmt.Errorf("refresh: cadences must be positive")
	}
	if c.Datasource.RatePerSecond <= 0 {
		return fmt.Errorf("datasource: rate_per_second must be positive")
	}
	return nil
}

func validatePlanTable(regime domain.Regime, p PlanTable) error {
	if p.StopMult <= 0 || p.EntryMult <= 0 {
		return fmt.Errorf("strategy: regime %s has non-positive multipliers", regime)
	}
	if p.StopMult >= p.EntryMult {
		return fmt.Errorf("strategy: regime %s stop_mult %.3f not below entry_mult %.3f",
			regime, p.StopMult, p.EntryMult)
	}
	if len(p.TargetMults) < 2 || len(p.TargetMults) > 3 {
		return fmt.Errorf("strategy: regime %s wants 2-3 targets, got %d", regime, len(p.TargetMults))
	}
	prev := p.EntryMult
	for i, t := range p.TargetMults {
		if i == 0 && t <= prev {
			return fmt.Errorf("strategy: regime %s target_mults[0]=%.3f not above entry_mult %.3f", regime, t, prev)
		}
		if t < prev {
			return fmt.Errorf("strategy: regime %s target_mults[%d]=%.3f not ascending", regime, i, t)
		}
		prev = t
	}
	if p.PositionSize <= 0 || p.PositionSize > 1 {
		return fmt.Errorf("strategy: regime %s position_size %.3f outside (0,1]", regime, p.PositionSize)
	}
	return nil
}
