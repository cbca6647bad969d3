package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opentracing/opentracing-go"

	"robotrading/internal/broker"
	"robotrading/internal/cache"
	"robotrading/internal/feed"
	"robotrading/internal/helper"
	"robotrading/internal/models"
	"robotrading/internal/modules/config"
	health "robotrading/internal/modules/health/service"
	"robotrading/internal/obs"
	"robotrading/internal/positions"
	"robotrading/internal/regime"
	"robotrading/internal/resilient"
	"robotrading/pkg/logger"
)

const (
	serviceFeed   = "feed"
	serviceBroker = "broker"
)

// Monitor — интрадей-цикл защитных стопов. Работает параллельно первичному
// дневному циклу и трогает только свои данные: трекер позиций, кеши, ордера
// ликвидации.
type Monitor struct {
	cfg     *config.Config
	tracker *positions.Tracker
	feed    feed.PriceFeed
	orders  broker.OrderSubmitter
	regime  regime.Provider
	exec    *resilient.Executor
	health  *health.State
	store   *positions.Store // nil => без персистентности

	prices  *cache.Cache[float64]
	history *cache.Cache[[]models.Bar]

	window helper.MarketWindow

	scanning atomic.Bool

	// решения, по которым ликвидация не прошла: переносятся на следующий цикл
	mu      sync.Mutex
	pending map[string]models.StopDecision

	now func() time.Time
}

type Deps struct {
	Cfg     *config.Config
	Tracker *positions.Tracker
	Feed    feed.PriceFeed
	Orders  broker.OrderSubmitter
	Regime  regime.Provider
	Exec    *resilient.Executor
	Health  *health.State
	Store   *positions.Store
}

func NewMonitor(d Deps) *Monitor {
	reporter := obs.NewReporter()
	return &Monitor{
		cfg:     d.Cfg,
		tracker: d.Tracker,
		feed:    d.Feed,
		orders:  d.Orders,
		regime:  d.Regime,
		exec:    d.Exec,
		health:  d.Health,
		store:   d.Store,
		prices:  cache.New[float64]().WithReporter("prices", reporter),
		history: cache.New[[]models.Bar]().WithReporter("history", reporter),
		window:  helper.NYSEWindow(),
		pending: make(map[string]models.StopDecision),
		now:     time.Now,
	}
}

// Restore поднимает открытые позиции и кеш из снапшотов при старте.
func (m *Monitor) Restore(ctx context.Context) error {
	if m.store != nil {
		saved, err := m.store.Load(ctx)
		if err != nil {
			return err
		}
		if len(saved) > 0 {
			m.tracker.Restore(saved)
			logger.Info("[MONITOR] восстановлено %d позиций из снапшота", len(saved))
		}
	}

	if m.cfg.CacheSnapshot != "" {
		if n, err := m.prices.LoadFile(m.cfg.CacheSnapshot); err != nil {
			logger.Warn("[MONITOR] снапшот кеша не загрузился: %v", err)
		} else if n > 0 {
			logger.Info("[MONITOR] загружено %d записей кеша цен", n)
		}
	}
	return nil
}

// Shutdown сбрасывает снапшоты на диск/в базу.
func (m *Monitor) Shutdown(ctx context.Context) {
	if m.cfg.CacheSnapshot != "" {
		if err := m.prices.SaveFile(m.cfg.CacheSnapshot); err != nil {
			logger.Warn("[MONITOR] снапшот кеша не сохранился: %v", err)
		}
	}
	m.persistPositions(ctx)
}

// Run крутит цикл до отмены контекста.
func (m *Monitor) Run(ctx context.Context) {
	if !m.cfg.StopLossEnabled {
		logger.Info("[MONITOR] защитные стопы выключены конфигом")
		return
	}

	m.health.SetMonitorRunning(true)
	defer m.health.SetMonitorRunning(false)

	ticker := time.NewTicker(m.cfg.IntradayInterval)
	defer ticker.Stop()

	logger.Info("[MONITOR] старт, интервал %s", m.cfg.IntradayInterval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	now := m.now()
	if !m.window.Contains(now) {
		return
	}

	// перекрытие сканов запрещено: опоздавший тик пропускаем, не ставим в очередь
	if !m.scanning.CompareAndSwap(false, true) {
		logger.Warn("[MONITOR] прошлый скан ещё идёт, тик пропущен")
		obs.ScanCycles.WithLabelValues("skipped").Inc()
		return
	}
	defer m.scanning.Store(false)

	// мягкий дедлайн цикла: скан обязан уложиться до следующего тика
	scanCtx, cancel := context.WithTimeout(ctx, m.cfg.IntradayInterval)
	defer cancel()

	m.ScanOnce(scanCtx)
}

// ScanOnce — один проход по всем позициям.
func (m *Monitor) ScanOnce(ctx context.Context) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "monitor.scan")
	defer span.Finish()

	snapshot := m.tracker.Snapshot()

	m.health.TouchScan(m.now())
	m.health.SetOpenPositions(len(snapshot))
	obs.OpenPositions.Set(float64(len(snapshot)))

	triggered := 0
	for _, pos := range snapshot {
		if ctx.Err() != nil {
			logger.Warn("[MONITOR] дедлайн скана, %d позиций не проверено", len(snapshot)-triggered)
			break
		}
		if m.evaluateOne(ctx, pos) {
			triggered++
		}
	}

	obs.ScanCycles.WithLabelValues("completed").Inc()
	if triggered > 0 {
		logger.Info("[MONITOR] скан завершён: %d позиций, %d ликвидаций", len(snapshot), triggered)
	}
}

func (m *Monitor) persistPositions(ctx context.Context) {
	if m.store == nil {
		return
	}
	if err := m.store.Save(ctx, m.tracker.Snapshot()); err != nil {
		logger.Error("[MONITOR] снапшот позиций не сохранился: %v", err)
	}
}
