// Package snapshot aggregates the asset universe into the market-wide
// metrics the regime classifier consumes.
package snapshot

import (
	"sort"
	"time"

	"github.com/coinpulse/regimescan/internal/config"
	"github.com/coinpulse/regimescan/internal/domain"
	"github.com/coinpulse/regimescan/internal/indicators"
)

// Direction band: 24h moves inside +/-0.5% count as neutral.
const neutralBandPct = 0.5

// Volume trend hysteresis around flat.
const volumeTrendBand = 0.10

// Analyzer builds MarketSnapshots from one cycle's raw data.
type Analyzer struct {
	cfg config.RegimeConfig
}

func New(cfg config.RegimeConfig) *Analyzer {
	return &Analyzer{cfg: cfg}
}

// Build aggregates the universe into a MarketSnapshot. analyses and
// series are keyed by symbol; assets whose series fetch failed simply
// miss from those maps and only contribute their ticker stats.
func (a *Analyzer) Build(
	universe []domain.TickerSnapshot,
	analyses map[string]domain.AssetAnalysis,
	series map[string]domain.PriceSeries,
	benchA, benchB domain.PriceSeries,
	now time.Time,
) domain.MarketSnapshot {
	return domain.MarketSnapshot{
		Trend:       a.trend(universe),
		Volatility:  a.volatility(universe, benchA),
		Volume:      a.volume(universe, series),
		Strength:    a.strength(analyses),
		Correlation: a.correlation(benchA, benchB),
		Timestamp:   now,
	}
}

func (a *Analyzer) trend(universe []domain.TickerSnapshot) domain.TrendMetrics {
	m := domain.TrendMetrics{}
	var gainSum, lossSum float64
	var gains, losses int
	for _, t := range universe {
		switch {
		case t.Change24hPct > neutralBandPct:
			m.BullishCount++
			gainSum += t.Change24hPct
			gains++
		case t.Change24hPct < -neutralBandPct:
			m.BearishCount++
			lossSum += -t.Change24hPct
			losses++
		default:
			m.NeutralCount++
		}
	}
	total := len(universe)
	if total > 0 {
		m.BullishRatio = float64(m.BullishCount) / float64(total)
		m.BearishRatio = float64(m.BearishCount) / float64(total)
	}
	m.Strength = m.BullishRatio - m.BearishRatio
	if m.Strength < 0 {
		m.Strength = -m.Strength
	}
	if gains > 0 {
		m.AvgGainPct = gainSum / float64(gains)
	}
	if losses > 0 {
		m.AvgLossPct = lossSum / float64(losses)
	}
	return m
}

func (a *Analyzer) volatility(universe []domain.TickerSnapshot, bench domain.PriceSeries) domain.VolatilityMetrics {
	m := domain.VolatilityMetrics{Level: domain.VolatilityNormal}
	var sum float64
	var counted, high int
	for _, t := range universe {
		if t.LastPrice <= 0 {
			continue
		}
		r := (t.High24h - t.Low24h) / t.LastPrice
		if r < 0 {
			continue
		}
		sum += r
		counted++
		if r > a.cfg.VolatilityHigh {
			high++
		}
	}
	if counted > 0 {
		m.Average = sum / float64(counted)
		m.HighShare = float64(high) / float64(counted)
	}
	switch {
	case m.Average > a.cfg.VolatilityHigh:
		m.Level = domain.VolatilityHigh
	case m.Average < a.cfg.VolatilityLow:
		m.Level = domain.VolatilityLow
	}
	m.BenchmarkVol = indicators.RealizedVolatility(bench.Closes())
	return m
}

func (a *Analyzer) volume(universe []domain.TickerSnapshot, series map[string]domain.PriceSeries) domain.VolumeMetrics {
	m := domain.VolumeMetrics{Trend: domain.VolumeFlat}
	if len(universe) == 0 {
		return m
	}

	var total float64
	volumes := make([]float64, 0, len(universe))
	for _, t := range universe {
		total += t.Volume24h
		volumes = append(volumes, t.Volume24h)
	}
	m.Average = total / float64(len(universe))

	// Spikes: 24h volume above the configured multiple of the asset's
	// own trailing bar average.
	for _, t := range universe {
		ps, ok := series[t.Symbol]
		if !ok || len(ps.Bars) == 0 {
			continue
		}
		trailing := 0.0
		for _, b := range ps.Bars {
			trailing += b.Volume
		}
		trailing /= float64(len(ps.Bars))
		if trailing > 0 && t.Volume24h > a.cfg.VolumeSpikeMult*trailing {
			m.SpikeSymbols = append(m.SpikeSymbols, t.Symbol)
		}
	}

	// Concentration: share of universe volume in the top-N assets.
	if total > 0 {
		sort.Sort(sort.Reverse(sort.Float64Slice(volumes)))
		n := a.cfg.TopNVolume
		if n <= 0 || n > len(volumes) {
			n = len(volumes)
		}
		top := 0.0
		for _, v := range volumes[:n] {
			top += v
		}
		m.TopConcentration = top / total
	}

	// Trend: mean recent bar volume against the trailing mean, averaged
	// over assets with enough history.
	var ratioSum float64
	var counted int
	for _, ps := range series {
		if len(ps.Bars) < 6 {
			continue
		}
		recent := (ps.Bars[0].Volume + ps.Bars[1].Volume + ps.Bars[2].Volume) / 3.0
		trailing := 0.0
		n := len(ps.Bars)
		if n > 10 {
			n = 10
		}
		for _, b := range ps.Bars[:n] {
			trailing += b.Volume
		}
		trailing /= float64(n)
		if trailing > 0 {
			ratioSum += recent / trailing
			counted++
		}
	}
	if counted > 0 {
		ratio := ratioSum / float64(counted)
		switch {
		case ratio > 1+volumeTrendBand:
			m.Trend = domain.VolumeIncreasing
		case ratio < 1-volumeTrendBand:
			m.Trend = domain.VolumeDecreasing
		}
	}
	return m
}

func (a *Analyzer) strength(analyses map[string]domain.AssetAnalysis) domain.StrengthMetrics {
	m := domain.StrengthMetrics{AvgRSI: 50, Index: 0.5}
	if len(analyses) == 0 {
		return m
	}
	var rsiSum float64
	var macdBullish, overbought, oversold int
	for _, an := range analyses {
		rsiSum += an.RSI.Value
		if an.MACD.Signal == domain.SignalBullish {
			macdBullish++
		}
		switch an.RSI.Signal {
		case domain.SignalOverbought:
			overbought++
		case domain.SignalOversold:
			oversold++
		}
	}
	n := float64(len(analyses))
	m.AvgRSI = rsiSum / n
	m.MACDBullishRatio = float64(macdBullish) / n
	m.OverboughtRatio = float64(overbought) / n
	m.OversoldRatio = float64(oversold) / n
	m.Index = (m.AvgRSI/100.0 + m.MACDBullishRatio) / 2.0
	return m
}

func (a *Analyzer) correlation(benchA, benchB domain.PriceSeries) domain.CorrelationMetrics {
	return domain.CorrelationMetrics{
		Symbols:     [2]string{benchA.Symbol, benchB.Symbol},
		Coefficient: indicators.Correlation(benchA.Closes(), benchB.Closes()),
	}
}
