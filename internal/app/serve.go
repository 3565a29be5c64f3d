package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"swapwatch/internal/scheduler"
	"swapwatch/internal/server"
)

// Serve runs the webhook server and housekeeping jobs until interrupted.
func (a *App) Serve(ctx context.Context) error {
	if err := a.Config.ValidateServe(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.prices.Refresh(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("initial native price warm-up failed")
	}

	pingers := map[string]server.Pinger{}
	if c.pg != nil {
		pingers["postgres"] = c.pg
	}
	if c.redis != nil {
		pingers["redis"] = c.redis
	}

	srv := server.New(server.Options{
		Addr:            a.Config.Server.Addr,
		AuthSecret:      a.Config.Server.AuthSecret,
		ReadTimeout:     a.Config.Server.ReadTimeout,
		WriteTimeout:    a.Config.Server.WriteTimeout,
		ShutdownTimeout: a.Config.Server.ShutdownTimeout,
	}, c.service, pingers, c.metrics, c.registry, a.Logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})

	if a.Config.Scheduler.Enabled {
		sched, err := scheduler.New(scheduler.Options{
			AlignToStart: a.Config.Scheduler.AlignToBucket,
			StartupDelay: a.Config.Scheduler.StartupDelay,
			OnResult:     c.metrics.RecordJob,
		}, a.Logger, a.housekeepingJobs(c)...)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return sched.Run(gctx)
		})
	}

	a.Logger.Info().
		Str("addr", a.Config.Server.Addr).
		Bool("postgres", c.pg != nil).
		Str("dedup", a.Config.Alerting.DedupBackend).
		Bool("alerts", c.notifier != nil).
		Msg("swapwatch started")

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("swapwatch stopped")
	return nil
}

func (a *App) housekeepingJobs(c *components) []scheduler.Job {
	jobs := []scheduler.Job{{
		Name:     "native_price",
		Interval: a.Config.Scheduler.PriceInterval,
		Run: func(ctx context.Context, _ time.Time) error {
			return c.prices.Refresh(ctx)
		},
	}}

	if c.memDedup != nil {
		jobs = append(jobs, scheduler.Job{
			Name:     "symbol_prune",
			Interval: a.Config.Scheduler.PruneInterval,
			Run: func(_ context.Context, _ time.Time) error {
				if n := c.memDedup.Prune(time.Now()); n > 0 {
					a.Logger.Debug().Int("pruned", n).Int("remaining", c.memDedup.Len()).Msg("symbol cache pruned")
				}
				return nil
			},
		})
	}

	if retention := a.Config.Alerting.Retention; retention > 0 {
		jobs = append(jobs, scheduler.Job{
			Name:     "alert_retention",
			Interval: a.Config.Scheduler.PruneInterval,
			Run: func(ctx context.Context, _ time.Time) error {
				deleted, err := c.store.DeleteAlertsBefore(ctx, time.Now().Add(-retention))
				if err != nil {
					return err
				}
				if deleted > 0 {
					a.Logger.Info().Int64("deleted", deleted).Msg("old alert records removed")
				}
				return nil
			},
		})
	}
	return jobs
}
