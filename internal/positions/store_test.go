package positions

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"robotrading/internal/models"
	"robotrading/pkg/db"
)

type execRecorder struct {
	sqls []string
	args [][]any
}

func (r *execRecorder) record(sql string, args []any) {
	r.sqls = append(r.sqls, sql)
	r.args = append(r.args, args)
}

// fakeTx реализует только Exec; остальное из встроенного интерфейса не дергается
type fakeTx struct {
	pgx.Tx
	rec *execRecorder
}

func (f fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.rec.record(sql, args)
	return pgconn.CommandTag{}, nil
}

type fakeRows struct {
	pgx.Rows
	data []models.Position
	idx  int
}

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx <= len(r.data)
}

func (r *fakeRows) Scan(dest ...any) error {
	p := r.data[r.idx-1]
	*dest[0].(*string) = p.Symbol
	*dest[1].(*string) = string(p.AssetClass)
	*dest[2].(*float64) = p.Quantity
	*dest[3].(*float64) = p.EntryPrice
	*dest[4].(*time.Time) = p.EntryTime
	*dest[5].(*float64) = p.PeakPrice
	return nil
}

func (r *fakeRows) Close()     {}
func (r *fakeRows) Err() error { return nil }

type fakeTxManager struct {
	rec  execRecorder
	rows *fakeRows
}

var _ db.TxManager = (*fakeTxManager)(nil)

func (m *fakeTxManager) RunMaster(ctx context.Context, fn func(ctxTx context.Context, tx pgx.Tx) error) error {
	return fn(ctx, fakeTx{rec: &m.rec})
}

func (m *fakeTxManager) Conn() db.Transaction { return fakeConn{m: m} }

type fakeConn struct{ m *fakeTxManager }

func (c fakeConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	c.m.rec.record(sql, args)
	return pgconn.CommandTag{}, nil
}

func (c fakeConn) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	c.m.rec.record(sql, args)
	return c.m.rows, nil
}

func (c fakeConn) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return nil
}

func TestStoreInitCreatesTable(t *testing.T) {
	m := &fakeTxManager{}
	require.NoError(t, NewStore(m).Init(context.Background()))

	require.Len(t, m.rec.sqls, 1)
	assert.Contains(t, m.rec.sqls[0], "CREATE TABLE IF NOT EXISTS open_positions")
}

func TestStoreSaveRewritesSnapshotInOneTx(t *testing.T) {
	m := &fakeTxManager{}
	entry := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	snapshot := []models.Position{
		{Symbol: "AAPL", AssetClass: models.AssetEquity, Quantity: 10, EntryPrice: 100, EntryTime: entry, PeakPrice: 120},
		{Symbol: "MSFT", AssetClass: models.AssetEquity, Quantity: 4, EntryPrice: 300, EntryTime: entry, PeakPrice: 310},
	}

	require.NoError(t, NewStore(m).Save(context.Background(), snapshot))

	require.Len(t, m.rec.sqls, 3)
	assert.Contains(t, m.rec.sqls[0], "DELETE FROM open_positions")
	assert.Contains(t, m.rec.sqls[1], "INSERT INTO open_positions")
	assert.Equal(t, "AAPL", m.rec.args[1][0])
	assert.Equal(t, "MSFT", m.rec.args[2][0])
}

func TestStoreLoadRestoresPositions(t *testing.T) {
	entry := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	m := &fakeTxManager{rows: &fakeRows{data: []models.Position{
		{Symbol: "AAPL", AssetClass: models.AssetEquity, Quantity: 10, EntryPrice: 100, EntryTime: entry, PeakPrice: 120},
	}}}

	got, err := NewStore(m).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "AAPL", got[0].Symbol)
	assert.Equal(t, models.AssetEquity, got[0].AssetClass)
	assert.InDelta(t, 120.0, got[0].PeakPrice, 1e-9)
	assert.True(t, got[0].EntryTime.Equal(entry))
}
