package postgres

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"robotrading/internal/modules/config"
	"robotrading/internal/positions"
	"robotrading/pkg/db"
)

func Module() fx.Option {
	return fx.Module("postgres",
		fx.Provide(
			func(ctx context.Context, cfg *config.Config) (db.TxManager, error) {
				poolMaster, err := db.NewPool(ctx, db.PoolConfig{
					DSN: cfg.DB,
				})
				if err != nil {
					return nil, fmt.Errorf("failed to create poolMaster: %w", err)
				}

				err = poolMaster.Ping(ctx)
				if err != nil {
					return nil, err
				}

				return db.NewPgTxManager(poolMaster), nil
			},
			positions.NewStore,
		),
		fx.Invoke(func(ctx context.Context, store *positions.Store) error {
			return store.Init(ctx)
		}),
	)
}
