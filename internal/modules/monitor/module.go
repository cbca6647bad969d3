package monitor

import (
	"context"

	"go.uber.org/fx"

	"robotrading/internal/broker"
	"robotrading/internal/feed"
	"robotrading/internal/modules/config"
	health "robotrading/internal/modules/health/service"
	"robotrading/internal/modules/monitor/service"
	"robotrading/internal/obs"
	"robotrading/internal/positions"
	"robotrading/internal/regime"
	"robotrading/internal/resilient"
)

func newExecutor(cfg *config.Config) *resilient.Executor {
	return resilient.NewExecutor(resilient.BreakerConfig{
		Threshold: cfg.BreakerThreshold,
		Cooldown:  cfg.BreakerCooldown,
	}, obs.NewReporter())
}

func newPriceFeed(cfg *config.Config) feed.PriceFeed {
	return feed.NewClient(cfg.Feed.BaseURL, cfg.Feed.WSURL)
}

func newOrderSubmitter(cfg *config.Config) broker.OrderSubmitter {
	c := broker.NewClient(cfg.Broker.BaseURL)
	c.SetCreds(cfg.Broker.APIKey, cfg.Broker.APISecret)
	return c
}

func newRegimeProvider(cfg *config.Config, exec *resilient.Executor) regime.Provider {
	if cfg.Regime.BaseURL == "" {
		return nil // WithFallback вернёт нейтральный режим
	}
	return regime.NewHTTPProvider(cfg.Regime.BaseURL, exec)
}

func run(lc fx.Lifecycle, m *service.Monitor, state *health.State) {
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := m.Restore(ctx); err != nil {
				return err
			}
			go func() {
				defer close(done)
				m.Run(runCtx)
			}()
			state.SetReady(true)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			state.SetReady(false)
			cancel()
			select {
			case <-done:
			case <-ctx.Done():
				return ctx.Err()
			}
			m.Shutdown(ctx)
			return nil
		},
	})
}

func Module() fx.Option {
	return fx.Module("monitor",
		fx.Provide(
			newExecutor,
			newPriceFeed,
			newOrderSubmitter,
			newRegimeProvider,
			positions.NewTracker,
			func(cfg *config.Config, tracker *positions.Tracker, f feed.PriceFeed,
				orders broker.OrderSubmitter, rp regime.Provider, exec *resilient.Executor,
				state *health.State, store *positions.Store) *service.Monitor {
				return service.NewMonitor(service.Deps{
					Cfg:     cfg,
					Tracker: tracker,
					Feed:    f,
					Orders:  orders,
					Regime:  rp,
					Exec:    exec,
					Health:  state,
					Store:   store,
				})
			},
		),
		fx.Invoke(run),
	)
}
