package positions

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"robotrading/internal/models"
	"robotrading/pkg/db"
)

// Store хранит снапшот открытых позиций в Postgres: после рестарта процесс
// поднимает peak_price и entry_time, а не начинает трейлить с нуля.
type Store struct {
	txm db.TxManager
}

func NewStore(txm db.TxManager) *Store {
	return &Store{txm: txm}
}

const createPositionsTable = `
CREATE TABLE IF NOT EXISTS open_positions (
	symbol       TEXT PRIMARY KEY,
	asset_class  TEXT NOT NULL,
	quantity     DOUBLE PRECISION NOT NULL,
	entry_price  DOUBLE PRECISION NOT NULL,
	entry_time   TIMESTAMPTZ NOT NULL,
	peak_price   DOUBLE PRECISION NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`

func (s *Store) Init(ctx context.Context) error {
	_, err := s.txm.Conn().Exec(ctx, createPositionsTable)
	return errors.Wrap(err, "init open_positions")
}

// Save перезаписывает таблицу текущим снапшотом в одной транзакции.
func (s *Store) Save(ctx context.Context, snapshot []models.Position) error {
	return s.txm.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctxTx, `DELETE FROM open_positions`); err != nil {
			return errors.Wrap(err, "clear open_positions")
		}

		for _, p := range snapshot {
			_, err := tx.Exec(ctxTx, `
				INSERT INTO open_positions (symbol, asset_class, quantity, entry_price, entry_time, peak_price, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, now())`,
				p.Symbol, string(p.AssetClass), p.Quantity, p.EntryPrice, p.EntryTime, p.PeakPrice,
			)
			if err != nil {
				return errors.Wrapf(err, "insert position %s", p.Symbol)
			}
		}
		return nil
	})
}

func (s *Store) Load(ctx context.Context) ([]models.Position, error) {
	rows, err := s.txm.Conn().Query(ctx, `
		SELECT symbol, asset_class, quantity, entry_price, entry_time, peak_price
		FROM open_positions`)
	if err != nil {
		return nil, errors.Wrap(err, "load open_positions")
	}
	defer rows.Close()

	var out []models.Position
	for rows.Next() {
		var p models.Position
		var assetClass string
		if err := rows.Scan(&p.Symbol, &assetClass, &p.Quantity, &p.EntryPrice, &p.EntryTime, &p.PeakPrice); err != nil {
			return nil, errors.Wrap(err, "scan position")
		}
		p.AssetClass = models.AssetClass(assetClass)
		out = append(out, p)
	}
	return out, errors.Wrap(rows.Err(), "iterate open_positions")
}
