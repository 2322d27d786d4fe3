package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinpulse/regimescan/internal/config"
	"github.com/coinpulse/regimescan/internal/domain"
)

func synth() *Synthesizer {
	return New(config.Default().Strategy)
}

func neutralAnalysis() domain.AssetAnalysis {
	return domain.AssetAnalysis{
		Symbol: "BTC-USD",
		RSI:    domain.RSIResult{Value: 50, Signal: domain.SignalNeutral, Trend: domain.SignalNeutral},
		MACD:   domain.MACDResult{Signal: domain.SignalBearish},
		MFI:    domain.MFIResult{Flow: domain.FlowNegative},
		AD:     domain.ADResult{Trend: domain.SignalDistribution},
	}
}

// Price 100 in bull_stable: entry ~99.5, stop ~92, targets
// ~[115, 130, 150] per the default multiplier table.
func TestSynthesize_BullStableTable(t *testing.T) {
	plan, err := synth().Synthesize(100, neutralAnalysis(), domain.RegimeBullStable, domain.VolatilityNormal)
	require.NoError(t, err)

	assert.InDelta(t, 99.5, plan.EntryPrice, 1e-9)
	assert.InDelta(t, 92.0, plan.StopLoss, 1e-9)
	require.Len(t, plan.Targets, 3)
	assert.InDelta(t, 115.0, plan.Targets[0], 1e-9)
	assert.InDelta(t, 130.0, plan.Targets[1], 1e-9)
	assert.InDelta(t, 150.0, plan.Targets[2], 1e-9)
	assert.Equal(t, 0.25, plan.PositionSizeFraction)
	assert.Equal(t, "long", plan.Type)
	require.NoError(t, plan.Validate())
}

func TestSynthesize_VolatileVariantShrinksSize(t *testing.T) {
	stable, err := synth().Synthesize(100, neutralAnalysis(), domain.RegimeBullStable, domain.VolatilityNormal)
	require.NoError(t, err)
	volatile, err := synth().Synthesize(100, neutralAnalysis(), domain.RegimeBullVolatile, domain.VolatilityHigh)
	require.NoError(t, err)

	table := config.Default().Strategy.Plans["bull_volatile"]
	assert.InDelta(t, table.PositionSize*0.7, volatile.PositionSizeFraction, 1e-9)
	assert.Greater(t, stable.PositionSizeFraction, volatile.PositionSizeFraction)
}

func TestSynthesize_SidewaysAnchorsToLevels(t *testing.T) {
	a := neutralAnalysis()
	a.Support = []float64{90, 85}
	a.Resistance = []float64{120, 115}

	plan, err := synth().Synthesize(100, a, domain.RegimeSidewaysStable, domain.VolatilityLow)
	require.NoError(t, err)

	// Entry 2% above first support, first target 2% below first
	// resistance.
	assert.InDelta(t, 90*1.02, plan.EntryPrice, 1e-9)
	assert.InDelta(t, 120*0.98, plan.Targets[0], 1e-9)
	assert.Less(t, plan.StopLoss, plan.EntryPrice)
	require.NoError(t, plan.Validate())
}

func TestSynthesize_SidewaysWithoutLevelsFallsBackToTable(t *testing.T) {
	plan, err := synth().Synthesize(100, neutralAnalysis(), domain.RegimeSidewaysStable, domain.VolatilityLow)
	require.NoError(t, err)
	table := config.Default().Strategy.Plans["sideways_stable"]
	assert.InDelta(t, 100*table.EntryMult, plan.EntryPrice, 1e-9)
	require.NoError(t, plan.Validate())
}

func TestSynthesize_SidewaysTightRangeFallsBack(t *testing.T) {
	a := neutralAnalysis()
	a.Support = []float64{99, 95}
	a.Resistance = []float64{100.5, 100} // clipped target would sit below entry
	plan, err := synth().Synthesize(100, a, domain.RegimeVolatileSideways, domain.VolatilityHigh)
	require.NoError(t, err)
	require.NoError(t, plan.Validate())
}

func TestSynthesize_NonPositivePriceRejected(t *testing.T) {
	_, err := synth().Synthesize(0, neutralAnalysis(), domain.RegimeNeutral, domain.VolatilityNormal)
	require.Error(t, err)
}

func TestSynthesize_InvariantAcrossRegimes(t *testing.T) {
	analyses := []domain.AssetAnalysis{
		neutralAnalysis(),
		{Symbol: "X", Support: []float64{40, 35}, Resistance: []float64{70, 65}},
		{Symbol: "Y", Support: []float64{0}, Resistance: []float64{0}},
	}
	for _, r := range domain.AllRegimes() {
		for _, a := range analyses {
			plan, err := synth().Synthesize(50, a, r, domain.VolatilityHigh)
			require.NoError(t, err, "regime %s asset %s", r, a.Symbol)
			require.NoError(t, plan.Validate(), "regime %s asset %s", r, a.Symbol)
		}
	}
}

func TestConfidence_NeutralBaseline(t *testing.T) {
	plan, err := synth().Synthesize(100, neutralAnalysis(), domain.RegimeNeutral, domain.VolatilityNormal)
	require.NoError(t, err)
	assert.Equal(t, 50.0, plan.Confidence)
}

func TestConfidence_FactorAdjustments(t *testing.T) {
	a := neutralAnalysis()
	a.RSI.Trend = domain.SignalBullish
	a.MACD.Signal = domain.SignalBullish
	a.MFI.Flow = domain.FlowPositive
	a.AD.Trend = domain.SignalAccumulation

	plan, err := synth().Synthesize(100, a, domain.RegimeNeutral, domain.VolatilityNormal)
	require.NoError(t, err)
	assert.Equal(t, 85.0, plan.Confidence) // 50 +10 +10 +10 +5

	// High market volatility takes points back off.
	plan, err = synth().Synthesize(100, a, domain.RegimeNeutral, domain.VolatilityHigh)
	require.NoError(t, err)
	assert.Equal(t, 75.0, plan.Confidence)
}

func TestConfidence_BearOversoldBonus(t *testing.T) {
	a := neutralAnalysis()
	a.RSI = domain.RSIResult{Value: 25, Signal: domain.SignalOversold, Trend: domain.SignalBearish}
	plan, err := synth().Synthesize(100, a, domain.RegimeBearStable, domain.VolatilityNormal)
	require.NoError(t, err)
	assert.Equal(t, 65.0, plan.Confidence) // 50 + 15 oversold-in-bear
}

func TestConfidence_OverboughtPenalty(t *testing.T) {
	a := neutralAnalysis()
	a.RSI = domain.RSIResult{Value: 85, Signal: domain.SignalOverbought, Trend: domain.SignalBullish}
	plan, err := synth().Synthesize(100, a, domain.RegimeNeutral, domain.VolatilityNormal)
	require.NoError(t, err)
	assert.Equal(t, 50.0, plan.Confidence) // +10 trend, -10 overbought
}
