// Package indicators holds the pure technical-indicator math. Every
// function is total: short or degenerate input degrades to a documented
// neutral fallback instead of returning an error or a NaN.
package indicators

import (
	"math"
	"sort"

	"github.com/coinpulse/regimescan/internal/domain"
)

const (
	RSIPeriod       = 14
	MFIPeriod       = 14
	MACDFastPeriod  = 12
	MACDSlowPeriod  = 26
	SMAPeriod       = 20
	VolatilityBars  = 7
	TrendWindowBars = 10
	ADWindowBars    = 10
)

// chronological returns the bars oldest-first. Series arrive
// most-recent first from the data source.
func chronological(bars []domain.Bar) []domain.Bar {
	out := make([]domain.Bar, len(bars))
	for i, b := range bars {
		out[len(bars)-1-i] = b
	}
	return out
}

func chronologicalPrices(prices []float64) []float64 {
	out := make([]float64, len(prices))
	for i, p := range prices {
		out[len(prices)-1-i] = p
	}
	return out
}

// SMA computes a simple moving average over the last period prices.
// With fewer points than the period it degrades to the average of what
// exists; with a single point it is that point. Callers treat short
// series as low-confidence, not as an error.
func SMA(prices []float64, period int) float64 {
	if len(prices) == 0 {
		return 0
	}
	n := period
	if len(prices) < n {
		n = len(prices)
	}
	sum := 0.0
	for _, p := range prices[:n] { // most-recent first
		sum += p
	}
	return sum / float64(n)
}

// EMA computes an exponential moving average seeded with the oldest
// price in the window. Fewer points than the period fall back to the
// most recent price.
func EMA(prices []float64, period int) float64 {
	if len(prices) == 0 {
		return 0
	}
	if len(prices) < period {
		return prices[0]
	}
	chrono := chronologicalPrices(prices)
	alpha := 2.0 / (float64(period) + 1.0)
	ema := chrono[0]
	for _, p := range chrono[1:] {
		ema = p*alpha + ema*(1-alpha)
	}
	return ema
}

// RSI computes the relative strength index over the lookback window.
// Below period+1 points it returns the neutral fallback (50,
// "neutral"). Thresholds: >70 overbought, <30 oversold; trend is
// bullish above 50.
func RSI(prices []float64, period int) domain.RSIResult {
	if len(prices) < period+1 {
		return domain.RSIResult{Value: 50.0, Signal: domain.SignalNeutral, Trend: domain.SignalNeutral}
	}
	chrono := chronologicalPrices(prices[:period+1])
	gains, losses := 0.0, 0.0
	for i := 1; i < len(chrono); i++ {
		change := chrono[i] - chrono[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}
	var value float64
	if gains == 0 && losses == 0 {
		// Flat window reads neutral, not trending.
		value = 50.0
	} else if losses == 0 {
		value = 100.0
	} else {
		rs := gains / losses
		value = 100.0 - 100.0/(1.0+rs)
	}

	signal := domain.SignalNeutral
	if value > 70 {
		signal = domain.SignalOverbought
	} else if value < 30 {
		signal = domain.SignalOversold
	}
	trend := domain.SignalBearish
	if value > 50 {
		trend = domain.SignalBullish
	}
	return domain.RSIResult{Value: value, Signal: signal, Trend: trend}
}

// MACD is the difference of the 12- and 26-period EMAs; bullish iff
// positive.
func MACD(prices []float64) domain.MACDResult {
	value := EMA(prices, MACDFastPeriod) - EMA(prices, MACDSlowPeriod)
	signal := domain.SignalBearish
	if value > 0 {
		signal = domain.SignalBullish
	}
	return domain.MACDResult{Value: value, Signal: signal}
}

// MFI computes the money flow index: typical-price-weighted positive
// versus negative flow over the window. Below period+1 bars it returns
// the neutral fallback (50, "neutral", negative flow). Thresholds:
// >80 overbought, <20 oversold.
func MFI(bars []domain.Bar, period int) domain.MFIResult {
	if len(bars) < period+1 {
		return domain.MFIResult{Value: 50.0, Signal: domain.SignalNeutral, Flow: domain.FlowNegative}
	}
	chrono := chronological(bars[:period+1])
	positive, negative := 0.0, 0.0
	prevTypical := (chrono[0].High + chrono[0].Low + chrono[0].Close) / 3.0
	for _, b := range chrono[1:] {
		typical := (b.High + b.Low + b.Close) / 3.0
		flow := typical * b.Volume
		if typical > prevTypical {
			positive += flow
		} else if typical < prevTypical {
			negative += flow
		}
		prevTypical = typical
	}
	var value float64
	if positive == 0 && negative == 0 {
		value = 50.0
	} else if negative == 0 {
		value = 100.0
	} else {
		ratio := positive / negative
		value = 100.0 - 100.0/(1.0+ratio)
	}

	signal := domain.SignalNeutral
	if value > 80 {
		signal = domain.SignalOverbought
	} else if value < 20 {
		signal = domain.SignalOversold
	}
	flow := domain.FlowNegative
	if positive > negative {
		flow = domain.FlowPositive
	}
	return domain.MFIResult{Value: value, Signal: signal, Flow: flow}
}

// AD accumulates close-location-value weighted by volume over the short
// window. Trend is "accumulation" iff the cumulative value is positive.
// Bars with a zero high-low range contribute nothing.
func AD(bars []domain.Bar) domain.ADResult {
	window := bars
	if len(window) > ADWindowBars {
		window = window[:ADWindowBars]
	}
	cum := 0.0
	for _, b := range window {
		spread := b.High - b.Low
		if spread == 0 {
			continue
		}
		clv := ((b.Close - b.Low) - (b.High - b.Close)) / spread
		cum += clv * b.Volume
	}
	trend := domain.SignalDistribution
	if cum > 0 {
		trend = domain.SignalAccumulation
	}
	return domain.ADResult{Value: cum, Trend: trend}
}

// MovingAverages bundles SMA20/EMA12/EMA26 with a buy/sell/neutral
// reading: buy when price sits above both the short EMA and SMA, sell
// when below both.
func MovingAverages(prices []float64) domain.MAResult {
	res := domain.MAResult{
		SMA20:  SMA(prices, SMAPeriod),
		EMA12:  EMA(prices, MACDFastPeriod),
		EMA26:  EMA(prices, MACDSlowPeriod),
		Signal: domain.SignalNeutral,
	}
	if len(prices) == 0 {
		return res
	}
	last := prices[0]
	switch {
	case last > res.EMA12 && last > res.SMA20:
		res.Signal = domain.SignalBuy
	case last < res.EMA12 && last < res.SMA20:
		res.Signal = domain.SignalSell
	}
	return res
}

// SupportResistance extracts the two lowest lows (ascending) and the
// two highest highs (descending) from the window. Order statistics
// only, no clustering. Fewer than two bars yield what exists.
func SupportResistance(bars []domain.Bar) (support, resistance []float64) {
	if len(bars) == 0 {
		return nil, nil
	}
	lows := make([]float64, len(bars))
	highs := make([]float64, len(bars))
	for i, b := range bars {
		lows[i] = b.Low
		highs[i] = b.High
	}
	sort.Float64s(lows)
	sort.Sort(sort.Reverse(sort.Float64Slice(highs)))
	n := 2
	if len(bars) < n {
		n = len(bars)
	}
	return lows[:n], highs[:n]
}

// RealizedVolatility is the standard deviation of day-over-day
// percentage returns over the short window. Fewer than two usable bars
// return 0.
func RealizedVolatility(prices []float64) float64 {
	window := prices
	if len(window) > VolatilityBars+1 {
		window = window[:VolatilityBars+1]
	}
	chrono := chronologicalPrices(window)
	var returns []float64
	for i := 1; i < len(chrono); i++ {
		if chrono[i-1] == 0 {
			continue
		}
		returns = append(returns, (chrono[i]-chrono[i-1])/chrono[i-1]*100.0)
	}
	if len(returns) < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))
	return math.Sqrt(variance)
}

// TrendStrength is the fraction of up-days over the short window, in
// [0,1]. Fewer than two bars return the neutral 0.5.
func TrendStrength(prices []float64) float64 {
	window := prices
	if len(window) > TrendWindowBars+1 {
		window = window[:TrendWindowBars+1]
	}
	chrono := chronologicalPrices(window)
	if len(chrono) < 2 {
		return 0.5
	}
	up := 0
	for i := 1; i < len(chrono); i++ {
		if chrono[i] > chrono[i-1] {
			up++
		}
	}
	return float64(up) / float64(len(chrono)-1)
}

// Correlation computes the Pearson coefficient between two equally
// long close series. Mismatched or short input returns 0
// (uncorrelated), as does a flat series.
func Correlation(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < 2 {
		return 0
	}
	a, b = a[:n], b[:n]
	meanA, meanB := 0.0, 0.0
	for i := 0; i < n; i++ {
		meanA += a[i]
		meanB += b[i]
	}
	meanA /= float64(n)
	meanB /= float64(n)
	var cov, varA, varB float64
	for i := 0; i < n; i++ {
		da, db := a[i]-meanA, b[i]-meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0
	}
	return cov / math.Sqrt(varA*varB)
}
