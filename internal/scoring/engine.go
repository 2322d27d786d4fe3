// Package scoring maps (per-asset analysis, regime) to the 0-100
// opportunity score. Every contribution is an independently gated
// additive term from the regime's weight table, so a total is always
// explainable as a sum of named factors.
package scoring

import (
	"github.com/coinpulse/regimescan/internal/config"
	"github.com/coinpulse/regimescan/internal/domain"
)

const (
	// Counter-trend spikes are untrustworthy in a downtrend.
	counterTrendGainPct = 10.0
	counterTrendPenalty = 0.7

	// Bear resilience: holding up while the market bleeds.
	resilienceMaxLossPct = 3.0
	resilienceRSIMax     = 40.0

	// Bull momentum confirmation.
	momentumTrendMin = 0.7
	momentumGainPct  = 3.0

	// Sideways bonuses.
	sidewaysOwnVolMin   = 3.0  // pct stddev of daily returns
	supportProximityPct = 0.02

	// Market-wide volatility adjustments, independent of regime.
	highVolDampening = 0.9
	stabilityBonus   = 5.0
)

// MarketContext carries the market-wide facts scoring needs beyond the
// asset itself. It is derived once per cycle from the MarketSnapshot
// and passed by value; scorers never read ambient state.
type MarketContext struct {
	Regime             domain.Regime
	Volatility         domain.VolatilityLevel
	AvgAssetVolatility float64
}

// scorer is one regime branch. Implementations add their regime bonus
// on top of the shared base sum.
type scorer interface {
	score(price float64, a domain.AssetAnalysis, w config.RegimeWeights) float64
}

// Engine scores assets with the table registered for the active
// regime, falling back to the regime-agnostic baseline.
type Engine struct {
	cfg      config.ScoringConfig
	scorers  map[domain.Regime]scorer
	baseline scorer
}

func NewEngine(cfg config.ScoringConfig) *Engine {
	bull := bullScorer{}
	bear := bearScorer{}
	side := sidewaysScorer{}
	return &Engine{
		cfg: cfg,
		scorers: map[domain.Regime]scorer{
			domain.RegimeBullStable:       bull,
			domain.RegimeBullVolatile:     bull,
			domain.RegimeBearStable:       bear,
			domain.RegimeBearVolatile:     bear,
			domain.RegimeVolatileSideways: side,
			domain.RegimeSidewaysStable:   side,
		},
		baseline: baselineScorer{},
	}
}

// Score computes the adapted score and the risk tier for one asset.
// The score is clamped to [0,100]; the tier is a direct function of
// the regime branch, never of the score.
func (e *Engine) Score(price float64, a domain.AssetAnalysis, mkt MarketContext) (float64, domain.RiskTier) {
	w := e.cfg.Weights[mkt.Regime.String()]
	s, ok := e.scorers[mkt.Regime]
	if !ok {
		s = e.baseline
	}
	score := s.score(price, a, w)

	// High aggregate volatility dampens everything and rewards assets
	// calmer than the universe average.
	if mkt.Volatility == domain.VolatilityHigh {
		score *= highVolDampening
		if a.Volatility < mkt.AvgAssetVolatility {
			score += stabilityBonus
		}
	}

	return clamp(score), e.riskTier(mkt.Regime)
}

func (e *Engine) riskTier(r domain.Regime) domain.RiskTier {
	if tier, ok := e.cfg.RiskTier[r.String()]; ok {
		return domain.RiskTier(tier)
	}
	return domain.RiskMedium
}

// base is the regime-independent additive core shared by every branch.
func base(a domain.AssetAnalysis, w config.RegimeWeights) float64 {
	score := 0.0
	if a.RSI.Trend == domain.SignalBullish && a.RSI.Signal != domain.SignalOverbought {
		score += w.RSI
	}
	if a.MACD.Signal == domain.SignalBullish {
		score += w.MACD
	}
	if a.MFI.Flow == domain.FlowPositive {
		score += w.Flow
	}
	if a.AD.Trend == domain.SignalAccumulation {
		score += w.BuyingPower
	}
	if a.MA.Signal == domain.SignalBuy {
		score += w.MASignal
	}
	return score
}

type bullScorer struct{}

func (bullScorer) score(_ float64, a domain.AssetAnalysis, w config.RegimeWeights) float64 {
	score := base(a, w)
	if a.TrendStrength >= momentumTrendMin && a.Change24hPct >= momentumGainPct {
		score += w.Bonus
	}
	return score
}

type bearScorer struct{}

func (bearScorer) score(_ float64, a domain.AssetAnalysis, w config.RegimeWeights) float64 {
	score := base(a, w)
	if a.Change24hPct < 0 && a.Change24hPct > -resilienceMaxLossPct && a.RSI.Value < resilienceRSIMax {
		score += w.Bonus
	}
	if a.Change24hPct > counterTrendGainPct {
		score *= counterTrendPenalty
	}
	return score
}

type sidewaysScorer struct{}

func (sidewaysScorer) score(price float64, a domain.AssetAnalysis, w config.RegimeWeights) float64 {
	score := base(a, w)
	half := w.Bonus / 2
	if a.Volatility > sidewaysOwnVolMin && a.MFI.Flow == domain.FlowPositive {
		score += half
	}
	if price > 0 && len(a.Support) > 0 {
		if (price-a.Support[0])/price < supportProximityPct && price >= a.Support[0] {
			score += half
		}
	}
	return score
}

// baselineScorer covers the neutral regime and any label without a
// registered branch.
type baselineScorer struct{}

func (baselineScorer) score(_ float64, a domain.AssetAnalysis, w config.RegimeWeights) float64 {
	return base(a, w)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
