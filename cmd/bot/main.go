package main

import (
	"context"
	"log"

	"go.uber.org/fx"

	"robotrading/internal/modules/config"
	"robotrading/internal/modules/health"
	"robotrading/internal/modules/monitor"
	"robotrading/internal/modules/notify"
	"robotrading/internal/modules/postgres"
	"robotrading/pkg/logger"
	"robotrading/pkg/tracing"
)

func initTracing(lc fx.Lifecycle, cfg *config.Config) {
	_, closeTracer, err := tracing.InitTracer(tracing.Config{
		Host: cfg.Jaeger.Host,
		Port: cfg.Jaeger.Port,
	})
	if err != nil {
		logger.Error("tracing init: %v", err)
		return
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			closeTracer()
			return nil
		},
	})
}

func main() {
	if err := logger.Init(); err != nil {
		log.Fatal(err)
	}

	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
		),
		config.Module(),
		postgres.Module(),
		health.Module(),
		notify.Module(),
		monitor.Module(),
		fx.Invoke(initTracing),
	)
	app.Run()
}
