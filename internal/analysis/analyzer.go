// Package analysis builds the per-asset indicator bundle consumed by
// scoring and strategy synthesis.
package analysis

import (
	"github.com/coinpulse/regimescan/internal/domain"
	"github.com/coinpulse/regimescan/internal/indicators"
)

// Analyze derives the full AssetAnalysis for one asset from its series
// and its ticker snapshot. It never fails: a short or empty series
// yields the documented neutral defaults, which downstream scorers
// read as low-confidence rather than as an error.
func Analyze(ticker domain.TickerSnapshot, series domain.PriceSeries) domain.AssetAnalysis {
	closes := series.Closes()
	support, resistance := indicators.SupportResistance(series.Bars)

	return domain.AssetAnalysis{
		Symbol:        ticker.Symbol,
		RSI:           indicators.RSI(closes, indicators.RSIPeriod),
		MACD:          indicators.MACD(closes),
		MFI:           indicators.MFI(series.Bars, indicators.MFIPeriod),
		AD:            indicators.AD(series.Bars),
		MA:            indicators.MovingAverages(closes),
		Support:       support,
		Resistance:    resistance,
		Volatility:    indicators.RealizedVolatility(closes),
		TrendStrength: indicators.TrendStrength(closes),
		Change24hPct:  ticker.Change24hPct,
		Volume24h:     ticker.Volume24h,
		BarCount:      len(series.Bars),
	}
}
