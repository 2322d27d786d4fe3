package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinpulse/regimescan/internal/domain"
)

func barsFromCloses(closes []float64) []domain.Bar {
	bars := make([]domain.Bar, len(closes))
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		bars[i] = domain.Bar{
			Timestamp: base.Add(-time.Duration(i) * 24 * time.Hour),
			Open:      c * 0.99,
			High:      c * 1.02,
			Low:       c * 0.98,
			Close:     c,
			Volume:    1000,
		}
	}
	return bars
}

func TestRSI_InsufficientDataFallback(t *testing.T) {
	cases := [][]float64{
		nil,
		{100},
		{100, 101, 102},
		make([]float64, RSIPeriod), // exactly period points, needs period+1
	}
	for _, prices := range cases {
		got := RSI(prices, RSIPeriod)
		assert.Equal(t, 50.0, got.Value)
		assert.Equal(t, domain.SignalNeutral, got.Signal)
	}
}

func TestRSI_FlatWindowIsNeutral(t *testing.T) {
	prices := make([]float64, RSIPeriod+1)
	for i := range prices {
		prices[i] = 100
	}
	got := RSI(prices, RSIPeriod)
	assert.Equal(t, 50.0, got.Value)
	assert.Equal(t, domain.SignalNeutral, got.Signal)
}

func TestRSI_AllGainsIsOverbought(t *testing.T) {
	// Most-recent first: strictly rising when read chronologically.
	prices := make([]float64, RSIPeriod+1)
	for i := range prices {
		prices[i] = 100 + float64(len(prices)-i)
	}
	got := RSI(prices, RSIPeriod)
	assert.Equal(t, 100.0, got.Value)
	assert.Equal(t, domain.SignalOverbought, got.Signal)
	assert.Equal(t, domain.SignalBullish, got.Trend)
}

func TestRSI_AllLossesIsOversold(t *testing.T) {
	prices := make([]float64, RSIPeriod+1)
	for i := range prices {
		prices[i] = 200 - float64(len(prices)-i)
	}
	got := RSI(prices, RSIPeriod)
	assert.Equal(t, 0.0, got.Value)
	assert.Equal(t, domain.SignalOversold, got.Signal)
	assert.Equal(t, domain.SignalBearish, got.Trend)
}

func TestSMA_ShortSeriesDegrades(t *testing.T) {
	assert.Equal(t, 0.0, SMA(nil, 20))
	assert.Equal(t, 100.0, SMA([]float64{100}, 20))
	assert.InDelta(t, 101.0, SMA([]float64{100, 101, 102}, 20), 1e-9)
}

func TestEMA_ShortSeriesFallsBackToLastPrice(t *testing.T) {
	assert.Equal(t, 42.0, EMA([]float64{42, 40, 38}, 12))
}

func TestEMA_ConstantSeries(t *testing.T) {
	prices := make([]float64, 30)
	for i := range prices {
		prices[i] = 55
	}
	assert.InDelta(t, 55.0, EMA(prices, 12), 1e-9)
}

func TestMACD_BullishIffPositive(t *testing.T) {
	rising := make([]float64, 40)
	for i := range rising {
		rising[i] = 100 + float64(len(rising)-i) // recent prices higher
	}
	got := MACD(rising)
	assert.Greater(t, got.Value, 0.0)
	assert.Equal(t, domain.SignalBullish, got.Signal)

	falling := make([]float64, 40)
	for i := range falling {
		falling[i] = 100 + float64(i)
	}
	got = MACD(falling)
	assert.Less(t, got.Value, 0.0)
	assert.Equal(t, domain.SignalBearish, got.Signal)
}

func TestMFI_InsufficientDataFallback(t *testing.T) {
	got := MFI(barsFromCloses([]float64{100, 101}), MFIPeriod)
	assert.Equal(t, 50.0, got.Value)
	assert.Equal(t, domain.SignalNeutral, got.Signal)
}

func TestMFI_RisingFlowIsPositive(t *testing.T) {
	closes := make([]float64, MFIPeriod+1)
	for i := range closes {
		closes[i] = 100 + float64(len(closes)-i)
	}
	got := MFI(barsFromCloses(closes), MFIPeriod)
	assert.Equal(t, domain.FlowPositive, got.Flow)
	assert.Equal(t, domain.SignalOverbought, got.Signal)
}

func TestAD_ZeroRangeBarsIgnored(t *testing.T) {
	bars := []domain.Bar{{High: 100, Low: 100, Close: 100, Volume: 5000}}
	got := AD(bars)
	assert.Equal(t, 0.0, got.Value)
	assert.Equal(t, domain.SignalDistribution, got.Trend)
}

func TestAD_ClosesNearHighAccumulate(t *testing.T) {
	bars := make([]domain.Bar, 5)
	for i := range bars {
		bars[i] = domain.Bar{High: 110, Low: 100, Close: 109, Volume: 1000}
	}
	got := AD(bars)
	assert.Greater(t, got.Value, 0.0)
	assert.Equal(t, domain.SignalAccumulation, got.Trend)
}

func TestSupportResistance_OrderStatistics(t *testing.T) {
	bars := []domain.Bar{
		{High: 105, Low: 95},
		{High: 120, Low: 90},
		{High: 110, Low: 99},
		{High: 130, Low: 85},
	}
	support, resistance := SupportResistance(bars)
	require.Len(t, support, 2)
	require.Len(t, resistance, 2)
	assert.Equal(t, []float64{85, 90}, support)
	assert.Equal(t, []float64{130, 120}, resistance)
}

func TestSupportResistance_SingleBar(t *testing.T) {
	support, resistance := SupportResistance([]domain.Bar{{High: 101, Low: 99}})
	assert.Equal(t, []float64{99}, support)
	assert.Equal(t, []float64{101}, resistance)
}

func TestRealizedVolatility_FlatSeriesIsZero(t *testing.T) {
	assert.Equal(t, 0.0, RealizedVolatility([]float64{100, 100, 100, 100}))
}

func TestRealizedVolatility_ShortSeriesIsZero(t *testing.T) {
	assert.Equal(t, 0.0, RealizedVolatility([]float64{100}))
	assert.Equal(t, 0.0, RealizedVolatility(nil))
}

func TestRealizedVolatility_AlternatingReturns(t *testing.T) {
	// +10% then roughly -9.1% alternating: non-zero dispersion.
	v := RealizedVolatility([]float64{110, 100, 110, 100, 110, 100})
	assert.Greater(t, v, 1.0)
	assert.False(t, math.IsNaN(v))
}

func TestTrendStrength_Bounds(t *testing.T) {
	rising := []float64{105, 104, 103, 102, 101}
	assert.Equal(t, 1.0, TrendStrength(rising))

	falling := []float64{101, 102, 103, 104, 105}
	assert.Equal(t, 0.0, TrendStrength(falling))

	assert.Equal(t, 0.5, TrendStrength([]float64{100}))
}

func TestCorrelation(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5}
	b := []float64{2, 4, 6, 8, 10}
	assert.InDelta(t, 1.0, Correlation(a, b), 1e-9)

	inv := []float64{10, 8, 6, 4, 2}
	assert.InDelta(t, -1.0, Correlation(a, inv), 1e-9)

	flat := []float64{7, 7, 7, 7, 7}
	assert.Equal(t, 0.0, Correlation(a, flat))
	assert.Equal(t, 0.0, Correlation(a, nil))
}
