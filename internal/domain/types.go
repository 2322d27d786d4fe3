package domain

import (
	"fmt"
	"time"
)

// Bar is one OHLCV candle.
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// PriceSeries is an ordered bar sequence for one asset, most-recent
// first. It is immutable once fetched and owned by the analysis pass
// that requested it.
type PriceSeries struct {
	Symbol string `json:"symbol"`
	Bars   []Bar  `json:"bars"`
}

// Closes returns the close prices in series order (most-recent first).
func (ps PriceSeries) Closes() []float64 {
	out := make([]float64, len(ps.Bars))
	for i, b := range ps.Bars {
		out[i] = b.Close
	}
	return out
}

// TickerSnapshot is the instantaneous per-asset quote collected once
// per refresh cycle, unique by symbol.
type TickerSnapshot struct {
	Symbol       string  `json:"symbol"`
	LastPrice    float64 `json:"last_price"`
	High24h      float64 `json:"high_24h"`
	Low24h       float64 `json:"low_24h"`
	Change24hPct float64 `json:"change_24h_pct"`
	Volume24h    float64 `json:"volume_24h"`
}

// Signal labels shared by indicator results.
const (
	SignalBullish      = "bullish"
	SignalBearish      = "bearish"
	SignalNeutral      = "neutral"
	SignalOverbought   = "overbought"
	SignalOversold     = "oversold"
	SignalAccumulation = "accumulation"
	SignalDistribution = "distribution"
	SignalBuy          = "buy"
	SignalSell         = "sell"
)

// Liquidity flow directions reported by MFI.
const (
	FlowPositive = "positive"
	FlowNegative = "negative"
)

// RSIResult carries the oscillator value plus its categorical reading.
type RSIResult struct {
	Value  float64 `json:"value"`
	Signal string  `json:"signal"` // overbought / oversold / neutral
	Trend  string  `json:"trend"`  // bullish / bearish
}

// MACDResult is the 12/26 EMA difference.
type MACDResult struct {
	Value  float64 `json:"value"`
	Signal string  `json:"signal"` // bullish / bearish
}

// MFIResult is the money-flow index reading.
type MFIResult struct {
	Value  float64 `json:"value"`
	Signal string  `json:"signal"` // overbought / oversold / neutral
	Flow   string  `json:"flow"`   // positive / negative
}

// ADResult is the cumulative accumulation/distribution reading over the
// short window.
type ADResult struct {
	Value float64 `json:"value"`
	Trend string  `json:"trend"` // accumulation / distribution
}

// MAResult bundles the moving averages consulted by scoring.
type MAResult struct {
	SMA20  float64 `json:"sma_20"`
	EMA12  float64 `json:"ema_12"`
	EMA26  float64 `json:"ema_26"`
	Signal string  `json:"signal"` // buy / sell / neutral
}

// AssetAnalysis is the full indicator bundle for one asset in one
// cycle. Every field is always populated, with documented neutral
// defaults when the series was too short, so downstream consumers never
// need existence checks.
type AssetAnalysis struct {
	Symbol        string     `json:"symbol"`
	RSI           RSIResult  `json:"rsi"`
	MACD          MACDResult `json:"macd"`
	MFI           MFIResult  `json:"mfi"`
	AD            ADResult   `json:"ad"`
	MA            MAResult   `json:"ma"`
	Support       []float64  `json:"support"`        // ascending, two levels
	Resistance    []float64  `json:"resistance"`     // descending, two levels
	Volatility    float64    `json:"volatility"`     // stddev of daily pct returns
	TrendStrength float64    `json:"trend_strength"` // fraction of up-days, [0,1]
	Change24hPct  float64    `json:"change_24h_pct"`
	Volume24h     float64    `json:"volume_24h"`
	BarCount      int        `json:"bar_count"`
}

// StrategyPlan is a generated entry/stop/targets/sizing recommendation.
// Invariant for long-biased plans: StopLoss < EntryPrice < Targets[0]
// <= Targets[1] <= ...; the synthesizer never emits a plan violating
// this.
type StrategyPlan struct {
	Type                 string    `json:"type"`
	EntryPrice           float64   `json:"entry_price"`
	StopLoss             float64   `json:"stop_loss"`
	Targets              []float64 `json:"targets"` // ascending
	PositionSizeFraction float64   `json:"position_size_fraction"`
	TimeHorizon          string    `json:"time_horizon"`
	Confidence           float64   `json:"confidence"` // [0,100]
	Notes                string    `json:"notes,omitempty"`
}

// Validate checks the long-plan price ordering contract.
func (p StrategyPlan) Validate() error {
	if p.EntryPrice <= 0 || p.StopLoss <= 0 {
		return fmt.Errorf("non-positive plan prices: entry=%.4f stop=%.4f", p.EntryPrice, p.StopLoss)
	}
	if p.StopLoss >= p.EntryPrice {
		return fmt.Errorf("stop %.4f not below entry %.4f", p.StopLoss, p.EntryPrice)
	}
	prev := p.EntryPrice
	for i, t := range p.Targets {
		if t <= 0 {
			return fmt.Errorf("non-positive target[%d]=%.4f", i, t)
		}
		// The first target must clear the entry; later ones may tie.
		if i == 0 && t <= prev {
			return fmt.Errorf("target[0]=%.4f not above entry %.4f", t, prev)
		}
		if t < prev {
			return fmt.Errorf("target[%d]=%.4f below %.4f, sequence not monotonic", i, t, prev)
		}
		prev = t
	}
	if p.Confidence < 0 || p.Confidence > 100 {
		return fmt.Errorf("confidence %.1f outside [0,100]", p.Confidence)
	}
	return nil
}

// ScoredAsset is one ranked entry of a cycle's output.
type ScoredAsset struct {
	Symbol   string        `json:"symbol"`
	Price    float64       `json:"price"`
	Analysis AssetAnalysis `json:"analysis"`
	Score    float64       `json:"score"` // [0,100]
	RiskTier RiskTier      `json:"risk_tier"`
	Plan     StrategyPlan  `json:"plan"`
	Regime   Regime        `json:"regime"`
	Rank     int           `json:"rank"` // 1-based, assigned after sorting
}

// TrendMetrics aggregates direction across the universe.
type TrendMetrics struct {
	BullishCount int     `json:"bullish_count"`
	BearishCount int     `json:"bearish_count"`
	NeutralCount int     `json:"neutral_count"`
	BullishRatio float64 `json:"bullish_ratio"`
	BearishRatio float64 `json:"bearish_ratio"`
	Strength     float64 `json:"strength"` // |bullish ratio - bearish ratio|
	AvgGainPct   float64 `json:"avg_gain_pct"`
	AvgLossPct   float64 `json:"avg_loss_pct"` // magnitude, >= 0
}

// VolatilityMetrics aggregates intraday range across the universe.
type VolatilityMetrics struct {
	Average      float64         `json:"average"` // mean (high-low)/close
	HighShare    float64         `json:"high_share"`
	Level        VolatilityLevel `json:"level"`
	BenchmarkVol float64         `json:"benchmark_vol"`
}

// VolumeMetrics aggregates turnover across the universe.
type VolumeMetrics struct {
	Average          float64     `json:"average"`
	SpikeSymbols     []string    `json:"spike_symbols,omitempty"`
	TopConcentration float64     `json:"top_concentration"` // share of top-N
	Trend            VolumeTrend `json:"trend"`
}

// StrengthMetrics aggregates oscillator readings across the universe.
// Index is in [0,1]: the mean of normalized RSI and the bullish-MACD
// share.
type StrengthMetrics struct {
	AvgRSI           float64 `json:"avg_rsi"`
	MACDBullishRatio float64 `json:"macd_bullish_ratio"`
	OverboughtRatio  float64 `json:"overbought_ratio"`
	OversoldRatio    float64 `json:"oversold_ratio"`
	Index            float64 `json:"index"`
}

// CorrelationMetrics is the supplementary benchmark co-movement
// reading; it never gates regime decisions on its own.
type CorrelationMetrics struct {
	Symbols     [2]string `json:"symbols"`
	Coefficient float64   `json:"coefficient"` // [-1,1]
}

// MarketSnapshot is the aggregated market view produced once per
// regime-detection cycle; superseded, never mutated.
type MarketSnapshot struct {
	Trend       TrendMetrics       `json:"trend"`
	Volatility  VolatilityMetrics  `json:"volatility"`
	Volume      VolumeMetrics      `json:"volume"`
	Strength    StrengthMetrics    `json:"strength"`
	Correlation CorrelationMetrics `json:"correlation"`
	Timestamp   time.Time          `json:"timestamp"`
}

// Alert is a threshold crossing noticed while publishing a cycle.
// Delivery is a downstream concern; the core only emits the record.
type Alert struct {
	Symbol    string    `json:"symbol"`
	Kind      string    `json:"kind"` // score / volume_spike / breakout
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	Message   string    `json:"message"`
	At        time.Time `json:"at"`
}

// CycleResult is the atomically published output of one full cycle.
type CycleResult struct {
	ID            string         `json:"id"`
	Regime        Regime         `json:"regime"`
	RegimeChanged bool           `json:"regime_changed"`
	Snapshot      MarketSnapshot `json:"snapshot"`
	Assets        []ScoredAsset  `json:"assets"` // rank ascending
	Alerts        []Alert        `json:"alerts,omitempty"`
	StartedAt     time.Time      `json:"started_at"`
	FinishedAt    time.Time      `json:"finished_at"`
}
