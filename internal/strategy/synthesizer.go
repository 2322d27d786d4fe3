// Package strategy turns (price, analysis, regime) into a concrete
// trade plan. All plans are long-biased; per-regime multiplier tables
// come from configuration.
package strategy

import (
	"fmt"

	"github.com/coinpulse/regimescan/internal/config"
	"github.com/coinpulse/regimescan/internal/domain"
)

const (
	confidenceBase = 50.0

	confRSITrend      = 10.0
	confMACD          = 10.0
	confFlow          = 10.0
	confBuyingPower   = 5.0
	confRegimeBonus   = 15.0
	confOverbought    = 10.0
	confHighMarketVol = 10.0
)

// Synthesizer builds StrategyPlans from the regime-indexed tables.
type Synthesizer struct {
	cfg config.StrategyConfig
}

func New(cfg config.StrategyConfig) *Synthesizer {
	return &Synthesizer{cfg: cfg}
}

// Synthesize produces the plan for one asset. It fails only on
// unusable input (non-positive price); a failed plan means the asset
// is excluded from the cycle, never published half-formed. The emitted
// plan always satisfies stop < entry < targets ascending.
func (s *Synthesizer) Synthesize(price float64, a domain.AssetAnalysis, regime domain.Regime, marketVol domain.VolatilityLevel) (domain.StrategyPlan, error) {
	if price <= 0 {
		return domain.StrategyPlan{}, fmt.Errorf("synthesize %s: non-positive price %.4f", a.Symbol, price)
	}
	table, ok := s.cfg.Plans[regime.String()]
	if !ok {
		return domain.StrategyPlan{}, fmt.Errorf("synthesize %s: no plan table for regime %s", a.Symbol, regime)
	}

	plan := domain.StrategyPlan{
		Type:                 "long",
		TimeHorizon:          table.TimeHorizon,
		PositionSizeFraction: table.PositionSize,
		Notes:                fmt.Sprintf("%s plan", regime),
	}
	if regime.IsVolatileVariant() {
		plan.PositionSizeFraction *= s.cfg.VolatileSizeScale
	}

	if regime.IsSideways() && s.anchorable(price, a) {
		s.anchorToLevels(&plan, price, a, table)
	} else {
		plan.EntryPrice = price * table.EntryMult
		plan.StopLoss = price * table.StopMult
		plan.Targets = make([]float64, len(table.TargetMults))
		for i, m := range table.TargetMults {
			plan.Targets[i] = price * m
		}
	}

	plan.Confidence = s.confidence(a, regime, marketVol)

	if err := plan.Validate(); err != nil {
		// A table that passed config validation cannot produce this;
		// treat it as a contract violation, not a plan.
		return domain.StrategyPlan{}, fmt.Errorf("synthesize %s: %w", a.Symbol, err)
	}
	return plan, nil
}

// anchorable reports whether the sideways range anchoring has usable
// levels: support below price and resistance far enough above it.
func (s *Synthesizer) anchorable(price float64, a domain.AssetAnalysis) bool {
	if len(a.Support) == 0 || len(a.Resistance) == 0 {
		return false
	}
	sup, res := a.Support[0], a.Resistance[0]
	if sup <= 0 || sup >= price {
		return false
	}
	entry := sup * (1 + s.cfg.SupportAnchorPct)
	target := res * (1 - s.cfg.ResistanceClipPct)
	return target > entry
}

// anchorToLevels positions the sideways entry just above support and
// the first target just below resistance; later targets extend by the
// table's own ratios so the sequence stays ascending.
func (s *Synthesizer) anchorToLevels(plan *domain.StrategyPlan, price float64, a domain.AssetAnalysis, table config.PlanTable) {
	entry := a.Support[0] * (1 + s.cfg.SupportAnchorPct)
	plan.EntryPrice = entry
	plan.StopLoss = entry * (table.StopMult / table.EntryMult)

	plan.Targets = make([]float64, len(table.TargetMults))
	plan.Targets[0] = a.Resistance[0] * (1 - s.cfg.ResistanceClipPct)
	for i := 1; i < len(table.TargetMults); i++ {
		plan.Targets[i] = plan.Targets[i-1] * (table.TargetMults[i] / table.TargetMults[i-1])
	}
	plan.Notes = fmt.Sprintf("%s range entry above %.4f support", plan.Notes, a.Support[0])
}

func (s *Synthesizer) confidence(a domain.AssetAnalysis, regime domain.Regime, marketVol domain.VolatilityLevel) float64 {
	conf := confidenceBase
	if a.RSI.Trend == domain.SignalBullish {
		conf += confRSITrend
	}
	if a.RSI.Signal == domain.SignalOverbought {
		conf -= confOverbought
	}
	if a.MACD.Signal == domain.SignalBullish {
		conf += confMACD
	}
	if a.MFI.Flow == domain.FlowPositive {
		conf += confFlow
	}
	if a.AD.Trend == domain.SignalAccumulation {
		conf += confBuyingPower
	}
	if regime.IsBear() && a.RSI.Signal == domain.SignalOversold {
		conf += confRegimeBonus
	}
	if marketVol == domain.VolatilityHigh {
		conf -= confHighMarketVol
	}
	if conf < 0 {
		return 0
	}
	if conf > 100 {
		return 100
	}
	return conf
}
