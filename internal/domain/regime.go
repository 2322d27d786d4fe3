package domain

import "fmt"

// Regime is the classified market-wide condition for one refresh cycle.
// It is set once per cycle by the classifier and threaded as a value
// through every downstream computation; nothing reads it from ambient
// state.
type Regime string

const (
	RegimeBullStable       Regime = "bull_stable"
	RegimeBullVolatile     Regime = "bull_volatile"
	RegimeBearStable       Regime = "bear_stable"
	RegimeBearVolatile     Regime = "bear_volatile"
	RegimeVolatileSideways Regime = "volatile_sideways"
	RegimeSidewaysStable   Regime = "sideways_stable"
	RegimeNeutral          Regime = "neutral"
)

// AllRegimes lists every valid regime label. The order is stable and
// used for table-driven configuration validation.
func AllRegimes() []Regime {
	return []Regime{
		RegimeBullStable,
		RegimeBullVolatile,
		RegimeBearStable,
		RegimeBearVolatile,
		RegimeVolatileSideways,
		RegimeSidewaysStable,
		RegimeNeutral,
	}
}

// ParseRegime converts a persisted label back into a Regime.
func ParseRegime(s string) (Regime, error) {
	for _, r := range AllRegimes() {
		if string(r) == s {
			return r, nil
		}
	}
	return RegimeNeutral, fmt.Errorf("unknown regime %q", s)
}

func (r Regime) String() string { return string(r) }

func (r Regime) IsBull() bool {
	return r == RegimeBullStable || r == RegimeBullVolatile
}

func (r Regime) IsBear() bool {
	return r == RegimeBearStable || r == RegimeBearVolatile
}

func (r Regime) IsSideways() bool {
	return r == RegimeVolatileSideways || r == RegimeSidewaysStable
}

// IsVolatileVariant reports whether the regime is the high-volatility
// member of its bull/bear/sideways pair.
func (r Regime) IsVolatileVariant() bool {
	return r == RegimeBullVolatile || r == RegimeBearVolatile || r == RegimeVolatileSideways
}

// RiskTier is assigned directly from the regime branch that scored the
// asset, never derived from the numeric score.
type RiskTier string

const (
	RiskLow      RiskTier = "low"
	RiskMedium   RiskTier = "medium"
	RiskHigh     RiskTier = "high"
	RiskVeryHigh RiskTier = "very_high"
)

// VolatilityLevel is the three-way classification of aggregate market
// volatility against the configured high/low thresholds.
type VolatilityLevel string

const (
	VolatilityHigh   VolatilityLevel = "high"
	VolatilityNormal VolatilityLevel = "normal"
	VolatilityLow    VolatilityLevel = "low"
)

// VolumeTrend is the three-state short moving comparison of universe
// volume.
type VolumeTrend string

const (
	VolumeIncreasing VolumeTrend = "increasing"
	VolumeFlat       VolumeTrend = "flat"
	VolumeDecreasing VolumeTrend = "decreasing"
)
