package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/coinpulse/regimescan/internal/datasource"
	"github.com/coinpulse/regimescan/internal/httpapi"
	"github.com/coinpulse/regimescan/internal/metrics"
	"github.com/coinpulse/regimescan/internal/persistence"
	"github.com/coinpulse/regimescan/internal/pipeline"
	"github.com/coinpulse/regimescan/internal/scheduler"
	"github.com/coinpulse/regimescan/internal/store"
)

const historyTopN = 20

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scanner on its refresh cadences with the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var state store.StateStore = store.NewMemory()
			if cfg.Redis.Enabled {
				rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
				if err := rdb.Ping(ctx).Err(); err != nil {
					return err
				}
				defer rdb.Close()
				state = store.NewRedis(rdb, cfg.Redis.TTL.Std())
				log.Info().Str("addr", cfg.Redis.Addr).Msg("redis state store connected")
			}

			m := metrics.New()
			client := datasource.NewClient(cfg.Datasource, cfg.Universe)

			opts := []pipeline.Option{}
			if cfg.Postgres.Enabled {
				recorder, err := persistence.Open(cfg.Postgres.DSN, historyTopN)
				if err != nil {
					return err
				}
				defer recorder.Close()
				opts = append(opts, pipeline.WithRecorder(recorder))
				log.Info().Msg("postgres history recorder connected")
			}

			runner := pipeline.NewRunner(cfg, client, state, m, opts...)

			api := httpapi.NewServer(runner, m.Registry)
			runner.Subscribe(api.Broadcast)

			srv := &http.Server{Addr: cfg.HTTP.Listen, Handler: api.Handler()}
			go func() {
				log.Info().Str("listen", cfg.HTTP.Listen).Msg("http api listening")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error().Err(err).Msg("http server failed")
				}
			}()

			// Prime the published state before the cadences start.
			if _, err := runner.RunCycle(ctx); err != nil {
				log.Warn().Err(err).Msg("initial cycle failed, scheduler will retry")
			}

			sched := scheduler.New(cfg.Refresh, runner)
			if err := sched.Start(ctx); err != nil {
				return err
			}

			<-ctx.Done()
			log.Info().Msg("shutting down")
			sched.Stop()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}
