// Package pipeline orchestrates one refresh cycle: fetch, analyze,
// classify, score, synthesize, rank, publish. A cycle's output
// replaces the previous one atomically; partial results are never
// visible.
package pipeline

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/coinpulse/regimescan/internal/analysis"
	"github.com/coinpulse/regimescan/internal/config"
	"github.com/coinpulse/regimescan/internal/datasource"
	"github.com/coinpulse/regimescan/internal/domain"
	"github.com/coinpulse/regimescan/internal/metrics"
	"github.com/coinpulse/regimescan/internal/regime"
	"github.com/coinpulse/regimescan/internal/scoring"
	"github.com/coinpulse/regimescan/internal/snapshot"
	"github.com/coinpulse/regimescan/internal/store"
	"github.com/coinpulse/regimescan/internal/strategy"
)

// Recorder is the optional history sink. Failures are logged, never
// propagated.
type Recorder interface {
	Record(ctx context.Context, result *domain.CycleResult) error
}

// Fetcher combines the two collaborator interfaces a cycle needs.
type Fetcher interface {
	datasource.UniverseFetcher
	datasource.SeriesFetcher
}

// Runner executes cycles and owns the published result. The scheduler
// serializes calls; if callers could overlap, the published pointer
// swap below is still atomic under the mutex.
type Runner struct {
	cfg        *config.Config
	fetcher    Fetcher
	snapshots  *snapshot.Analyzer
	classifier *regime.Classifier
	scorer     *scoring.Engine
	synth      *strategy.Synthesizer
	state      store.StateStore
	recorder   Recorder
	metrics    *metrics.Metrics
	now        func() time.Time

	mu         sync.RWMutex
	latest     *domain.CycleResult
	lastSeries map[string]domain.PriceSeries // bounded history for regime-only refreshes

	subMu sync.RWMutex
	subs  []func(*domain.CycleResult)
}

// Option tweaks a Runner at construction.
type Option func(*Runner)

// WithRecorder attaches the Postgres history sink.
func WithRecorder(r Recorder) Option {
	return func(run *Runner) { run.recorder = r }
}

// WithClock overrides the time source; used by tests.
func WithClock(now func() time.Time) Option {
	return func(run *Runner) { run.now = now }
}

func NewRunner(cfg *config.Config, fetcher Fetcher, state store.StateStore, m *metrics.Metrics, opts ...Option) *Runner {
	r := &Runner{
		cfg:        cfg,
		fetcher:    fetcher,
		snapshots:  snapshot.New(cfg.Regime),
		classifier: regime.New(cfg.Regime),
		scorer:     scoring.NewEngine(cfg.Scoring),
		synth:      strategy.New(cfg.Strategy),
		state:      state,
		metrics:    m,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Latest returns the most recently published cycle result, or nil
// before the first successful cycle.
func (r *Runner) Latest() *domain.CycleResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest
}

// Subscribe registers a callback invoked after each publish.
func (r *Runner) Subscribe(fn func(*domain.CycleResult)) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	r.subs = append(r.subs, fn)
}

// RunCycle executes one full analysis cycle. On any failure before
// publish the previously published result stays visible untouched.
func (r *Runner) RunCycle(ctx context.Context) (*domain.CycleResult, error) {
	started := r.now()
	result, err := r.runCycle(ctx, started)
	r.metrics.ObserveCycle(r.now().Sub(started), err)
	return result, err
}

func (r *Runner) runCycle(ctx context.Context, started time.Time) (*domain.CycleResult, error) {
	universe, err := r.fetcher.FetchUniverse(ctx)
	if err != nil {
		r.metrics.FetchError("universe")
		return nil, fmt.Errorf("cycle aborted: %w", err)
	}
	if len(universe) == 0 {
		return nil, fmt.Errorf("cycle aborted: empty universe")
	}

	benchA := r.fetchBenchmark(ctx, r.cfg.Universe.Benchmarks[0])
	benchB := r.fetchBenchmark(ctx, r.cfg.Universe.Benchmarks[1])

	seriesBySymbol := make(map[string]domain.PriceSeries, len(universe))
	analyses := make(map[string]domain.AssetAnalysis, len(universe))
	for _, t := range universe {
		series, err := r.fetcher.FetchSeries(ctx, t.Symbol)
		if err != nil {
			// Isolated: the asset sits out this cycle as "no data".
			log.Warn().Err(err).Str("symbol", t.Symbol).Msg("series fetch failed, excluding asset")
			r.metrics.FetchError("series")
			r.metrics.AssetExcluded()
			continue
		}
		seriesBySymbol[t.Symbol] = series
		analyses[t.Symbol] = analysis.Analyze(t, series)
	}

	snap := r.snapshots.Build(universe, analyses, seriesBySymbol, benchA, benchB, started)
	current := r.classifier.Classify(snap)

	previous, err := r.state.LastRegime(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("previous regime unavailable, assuming unchanged")
		previous = ""
	}
	change := regime.Track(current, previous)

	assets := r.scoreUniverse(universe, analyses, snap, current)

	result := &domain.CycleResult{
		ID:            uuid.New().String(),
		Regime:        current,
		RegimeChanged: change.Changed,
		Snapshot:      snap,
		Assets:        assets,
		Alerts:        r.evaluateAlerts(assets, seriesBySymbol, started),
		StartedAt:     started,
		FinishedAt:    r.now(),
	}

	r.publish(ctx, result, seriesBySymbol)

	log.Info().
		Str("cycle", result.ID).
		Str("regime", current.String()).
		Bool("regime_changed", change.Changed).
		Int("assets", len(assets)).
		Int("alerts", len(result.Alerts)).
		Msg("cycle complete")
	return result, nil
}

func (r *Runner) fetchBenchmark(ctx context.Context, symbol string) domain.PriceSeries {
	series, err := r.fetcher.FetchSeries(ctx, symbol)
	if err != nil {
		// Benchmarks degrade like any asset: insufficient data, not a
		// cycle abort.
		log.Warn().Err(err).Str("symbol", symbol).Msg("benchmark fetch failed")
		r.metrics.FetchError("benchmark")
		return domain.PriceSeries{Symbol: symbol}
	}
	return series
}

func (r *Runner) scoreUniverse(
	universe []domain.TickerSnapshot,
	analyses map[string]domain.AssetAnalysis,
	snap domain.MarketSnapshot,
	current domain.Regime,
) []domain.ScoredAsset {
	mkt := scoring.MarketContext{
		Regime:             current,
		Volatility:         snap.Volatility.Level,
		AvgAssetVolatility: avgVolatility(analyses),
	}

	assets := make([]domain.ScoredAsset, 0, len(universe))
	for _, t := range universe {
		an, ok := analyses[t.Symbol]
		if !ok {
			continue // no data this cycle
		}
		score, tier := r.scorer.Score(t.LastPrice, an, mkt)
		if math.IsNaN(score) || math.IsInf(score, 0) {
			log.Error().Str("symbol", t.Symbol).Msg("non-finite score, excluding asset")
			r.metrics.AssetExcluded()
			continue
		}
		plan, err := r.synth.Synthesize(t.LastPrice, an, current, snap.Volatility.Level)
		if err != nil {
			log.Warn().Err(err).Str("symbol", t.Symbol).Msg("plan synthesis failed, excluding asset")
			r.metrics.AssetExcluded()
			continue
		}
		assets = append(assets, domain.ScoredAsset{
			Symbol:   t.Symbol,
			Price:    t.LastPrice,
			Analysis: an,
			Score:    score,
			RiskTier: tier,
			Plan:     plan,
			Regime:   current,
		})
		r.metrics.AssetScored()
	}

	// Rank descending by score; the stable sort keeps fetch order for
	// ties.
	sort.SliceStable(assets, func(i, j int) bool {
		return assets[i].Score > assets[j].Score
	})
	for i := range assets {
		assets[i].Rank = i + 1
	}
	return assets
}

func avgVolatility(analyses map[string]domain.AssetAnalysis) float64 {
	if len(analyses) == 0 {
		return 0
	}
	sum := 0.0
	for _, a := range analyses {
		sum += a.Volatility
	}
	return sum / float64(len(analyses))
}

func (r *Runner) evaluateAlerts(assets []domain.ScoredAsset, series map[string]domain.PriceSeries, at time.Time) []domain.Alert {
	var alerts []domain.Alert
	cfg := r.cfg.Alerts
	for _, a := range assets {
		if a.Score >= cfg.MinScore {
			alerts = append(alerts, domain.Alert{
				Symbol:    a.Symbol,
				Kind:      "score",
				Value:     a.Score,
				Threshold: cfg.MinScore,
				Message:   fmt.Sprintf("%s scored %.1f in %s", a.Symbol, a.Score, a.Regime),
				At:        at,
			})
		}
		if ps, ok := series[a.Symbol]; ok && len(ps.Bars) > 0 {
			trailing := 0.0
			for _, b := range ps.Bars {
				trailing += b.Volume
			}
			trailing /= float64(len(ps.Bars))
			if trailing > 0 && a.Analysis.Volume24h > cfg.VolumeSpikeMult*trailing {
				alerts = append(alerts, domain.Alert{
					Symbol:    a.Symbol,
					Kind:      "volume_spike",
					Value:     a.Analysis.Volume24h,
					Threshold: cfg.VolumeSpikeMult * trailing,
					Message:   fmt.Sprintf("%s volume %.0f above %.1fx trailing average", a.Symbol, a.Analysis.Volume24h, cfg.VolumeSpikeMult),
					At:        at,
				})
			}
		}
		if len(a.Analysis.Resistance) > 0 {
			breakout := a.Analysis.Resistance[0] * (1 + cfg.BreakoutPct)
			if a.Price > breakout {
				alerts = append(alerts, domain.Alert{
					Symbol:    a.Symbol,
					Kind:      "breakout",
					Value:     a.Price,
					Threshold: breakout,
					Message:   fmt.Sprintf("%s broke above resistance %.4f", a.Symbol, a.Analysis.Resistance[0]),
					At:        at,
				})
			}
		}
	}
	return alerts
}

// publish swaps the visible result and persists cross-cycle state.
// Persistence failures are logged; the in-memory publish already
// happened and stands.
func (r *Runner) publish(ctx context.Context, result *domain.CycleResult, series map[string]domain.PriceSeries) {
	r.mu.Lock()
	r.latest = result
	r.lastSeries = series
	r.mu.Unlock()

	r.metrics.SetRegime(result.Regime, result.RegimeChanged)

	if err := r.state.SaveRegime(ctx, result.Regime); err != nil {
		log.Warn().Err(err).Msg("persist regime failed")
	}
	if err := r.state.SaveResult(ctx, result); err != nil {
		log.Warn().Err(err).Msg("persist cycle result failed")
	}
	if r.recorder != nil {
		if err := r.recorder.Record(ctx, result); err != nil {
			log.Warn().Err(err).Msg("record cycle history failed")
		}
	}

	r.notify(result)
}

func (r *Runner) notify(result *domain.CycleResult) {
	r.subMu.RLock()
	subs := r.subs
	r.subMu.RUnlock()
	for _, fn := range subs {
		fn(result)
	}
}

// RunPriceRefresh is the fast cadence: re-fetch tickers and update the
// published prices without re-scoring. Assets keep their rank until
// the next full cycle.
func (r *Runner) RunPriceRefresh(ctx context.Context) error {
	latest := r.Latest()
	if latest == nil {
		return nil // nothing published yet
	}
	universe, err := r.fetcher.FetchUniverse(ctx)
	if err != nil {
		r.metrics.FetchError("universe")
		return fmt.Errorf("price refresh: %w", err)
	}
	prices := make(map[string]float64, len(universe))
	for _, t := range universe {
		prices[t.Symbol] = t.LastPrice
	}

	updated := *latest
	updated.Assets = make([]domain.ScoredAsset, len(latest.Assets))
	copy(updated.Assets, latest.Assets)
	for i := range updated.Assets {
		if p, ok := prices[updated.Assets[i].Symbol]; ok && p > 0 {
			updated.Assets[i].Price = p
		}
	}

	r.mu.Lock()
	if r.latest != latest {
		// A full cycle published while prices were in flight; its
		// result is fresher than this copy of the old one.
		r.mu.Unlock()
		return nil
	}
	r.latest = &updated
	r.mu.Unlock()
	return nil
}

// RunRegimeRefresh is the slow cadence: re-fetch tickers and
// benchmarks, rebuild the snapshot against the retained analyses, and
// re-classify without re-scoring the universe. A changed regime is
// published and persisted so the alerting side sees it between full
// cycles; individual assets keep the regime they were scored under.
func (r *Runner) RunRegimeRefresh(ctx context.Context) (domain.Regime, error) {
	latest := r.Latest()
	if latest == nil {
		return domain.RegimeNeutral, fmt.Errorf("regime refresh: no prior cycle")
	}
	universe, err := r.fetcher.FetchUniverse(ctx)
	if err != nil {
		r.metrics.FetchError("universe")
		return latest.Regime, fmt.Errorf("regime refresh: %w", err)
	}

	benchA := r.fetchBenchmark(ctx, r.cfg.Universe.Benchmarks[0])
	benchB := r.fetchBenchmark(ctx, r.cfg.Universe.Benchmarks[1])

	analyses := make(map[string]domain.AssetAnalysis, len(latest.Assets))
	for _, a := range latest.Assets {
		analyses[a.Symbol] = a.Analysis
	}
	r.mu.RLock()
	series := r.lastSeries
	r.mu.RUnlock()

	snap := r.snapshots.Build(universe, analyses, series, benchA, benchB, r.now())
	current := r.classifier.Classify(snap)
	if current == latest.Regime {
		return current, nil
	}

	log.Info().Str("from", latest.Regime.String()).Str("to", current.String()).
		Msg("regime change between full cycles")

	updated := *latest
	updated.Regime = current
	updated.RegimeChanged = true
	updated.Snapshot = snap
	updated.FinishedAt = r.now()

	r.mu.Lock()
	if r.latest != latest {
		// A full cycle published while this check ran; its regime is
		// fresher than this snapshot's.
		r.mu.Unlock()
		return current, nil
	}
	r.latest = &updated
	r.mu.Unlock()

	r.metrics.SetRegime(current, true)
	if err := r.state.SaveRegime(ctx, current); err != nil {
		log.Warn().Err(err).Msg("persist regime failed")
	}
	r.notify(&updated)
	return current, nil
}
