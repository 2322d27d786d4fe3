// Package scheduler drives the pipeline on its three cadences: a fast
// price-only refresh, the normal full-analysis cycle, and a slow
// regime-only check. Cycles never overlap: a tick that arrives while
// the previous run is still going is skipped, not queued.
package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/coinpulse/regimescan/internal/config"
	"github.com/coinpulse/regimescan/internal/pipeline"
)

// Scheduler owns the cron instance and the overlap guards.
type Scheduler struct {
	cfg    config.RefreshConfig
	runner *pipeline.Runner
	cron   *cron.Cron

	fastBusy   atomic.Bool
	normalBusy atomic.Bool
	slowBusy   atomic.Bool
}

func New(cfg config.RefreshConfig, runner *pipeline.Runner) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		runner: runner,
		cron:   cron.New(),
	}
}

// Start registers the three jobs and begins ticking. The provided
// context bounds every pipeline run.
func (s *Scheduler) Start(ctx context.Context) error {
	jobs := []struct {
		name  string
		every time.Duration
		run   func()
	}{
		{"price-refresh", s.cfg.Fast.Std(), func() { s.guarded(&s.fastBusy, "price-refresh", func() error { return s.runner.RunPriceRefresh(ctx) }) }},
		{"full-cycle", s.cfg.Normal.Std(), func() {
			s.guarded(&s.normalBusy, "full-cycle", func() error {
				_, err := s.runner.RunCycle(ctx)
				return err
			})
		}},
		{"regime-check", s.cfg.Slow.Std(), func() {
			s.guarded(&s.slowBusy, "regime-check", func() error {
				_, err := s.runner.RunRegimeRefresh(ctx)
				return err
			})
		}},
	}
	for _, j := range jobs {
		spec := fmt.Sprintf("@every %s", j.every)
		if _, err := s.cron.AddFunc(spec, j.run); err != nil {
			return fmt.Errorf("schedule %s: %w", j.name, err)
		}
		log.Info().Str("job", j.name).Str("every", j.every.String()).Msg("job scheduled")
	}
	s.cron.Start()
	return nil
}

// Stop halts ticking and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
}

// guarded runs fn unless the previous invocation of the same job is
// still in flight. Failures are logged and the prior published state
// stays visible.
func (s *Scheduler) guarded(busy *atomic.Bool, name string, fn func() error) {
	if !busy.CompareAndSwap(false, true) {
		log.Warn().Str("job", name).Msg("previous run still in flight, skipping tick")
		return
	}
	defer busy.Store(false)

	started := time.Now()
	if err := fn(); err != nil {
		log.Error().Err(err).Str("job", name).Dur("took", time.Since(started)).Msg("job failed, prior results retained")
		return
	}
	log.Debug().Str("job", name).Dur("took", time.Since(started)).Msg("job done")
}
