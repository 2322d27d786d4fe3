// Package regime maps an aggregated MarketSnapshot to the market
// regime for the cycle.
package regime

import (
	"github.com/coinpulse/regimescan/internal/config"
	"github.com/coinpulse/regimescan/internal/domain"
)

// Strength index bands for the directional rules.
const (
	strongIndex = 0.6
	weakIndex   = 0.4
)

// Trend-strength bands for the sideways rules.
const (
	choppyTrendMax   = 0.2
	sidewaysTrendMax = 0.15
)

// Classifier is a pure decision procedure over MarketSnapshots.
type Classifier struct {
	cfg config.RegimeConfig
}

func New(cfg config.RegimeConfig) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify evaluates the rules in fixed priority order; the first
// match wins. The ordering is intentional: directional conviction
// overrides ambiguous volatility signals. Nothing here is an error
// path; an unclassifiable snapshot is simply neutral.
func (c *Classifier) Classify(s domain.MarketSnapshot) domain.Regime {
	highVol := s.Volatility.Level == domain.VolatilityHigh

	// Rule 1: broad bullish participation with strength and rising
	// volume.
	if s.Trend.BullishRatio > c.cfg.BullRatio &&
		s.Strength.Index > strongIndex &&
		s.Volume.Trend == domain.VolumeIncreasing {
		if highVol {
			return domain.RegimeBullVolatile
		}
		return domain.RegimeBullStable
	}

	// Rule 2: broad bearish participation with weak strength.
	if s.Trend.BearishRatio > 1-c.cfg.BearRatio &&
		s.Strength.Index < weakIndex {
		if highVol {
			return domain.RegimeBearVolatile
		}
		return domain.RegimeBearStable
	}

	// Rule 3: violent chop without direction.
	if highVol && s.Trend.Strength < choppyTrendMax {
		return domain.RegimeVolatileSideways
	}

	// Rule 4: quiet drift.
	if s.Trend.Strength < sidewaysTrendMax &&
		s.Volatility.Level == domain.VolatilityLow {
		return domain.RegimeSidewaysStable
	}

	return domain.RegimeNeutral
}

// Change pairs a classification with the previous cycle's regime.
type Change struct {
	Current  domain.Regime
	Previous domain.Regime
	Changed  bool
}

// Track compares the fresh classification with the persisted previous
// regime. An empty previous label (first run) never reports a change.
func Track(current domain.Regime, previous string) Change {
	ch := Change{Current: current}
	if previous == "" {
		ch.Previous = current
		return ch
	}
	prev, err := domain.ParseRegime(previous)
	if err != nil {
		ch.Previous = current
		return ch
	}
	ch.Previous = prev
	ch.Changed = prev != current
	return ch
}
