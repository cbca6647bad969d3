package service

import (
	"context"
	"errors"
	"sort"

	"robotrading/internal/helper"
	"robotrading/internal/models"
	"robotrading/internal/obs"
	"robotrading/internal/regime"
	"robotrading/internal/resilient"
	"robotrading/internal/stoploss"
	"robotrading/internal/volatility"
	"robotrading/pkg/logger"
)

// evaluateOne проверяет одну позицию; true = ликвидация отправлена и прошла.
// Любой сбой данных или ордера оставляет позицию открытой до следующего цикла.
func (m *Monitor) evaluateOne(ctx context.Context, pos models.Position) bool {
	price, err := m.currentPrice(ctx, pos.Symbol)
	if err != nil {
		logger.Error("[MONITOR] %s: цена недоступна, позиция не проверена: %v", pos.Symbol, err)
		return false
	}

	if err := m.tracker.UpdatePrice(pos.Symbol, price); err != nil {
		// позицию могли закрыть между Snapshot и сейчас
		logger.Warn("[MONITOR] %s: %v", pos.Symbol, err)
		return false
	}

	atr, atrAvailable := m.currentATR(ctx, pos.Symbol)
	prob := regime.WithFallback(ctx, m.regime, pos.Symbol)

	// перечитываем позицию: UpdatePrice мог подвинуть пик
	fresh, ok := m.tracker.Get(pos.Symbol)
	if !ok {
		return false
	}

	dec := stoploss.Evaluate(stoploss.Input{
		Position:          fresh,
		CurrentPrice:      price,
		ATR:               atr,
		ATRAvailable:      atrAvailable,
		RegimeProbability: prob,
		Now:               m.now(),
	}, m.cfg.StopLoss())

	if !dec.Triggered {
		m.clearPending(pos.Symbol)
		return false
	}

	return m.liquidate(ctx, fresh, price, dec)
}

// currentPrice — котировка через кеш и устойчивый вызов фида.
func (m *Monitor) currentPrice(ctx context.Context, symbol string) (float64, error) {
	return m.prices.GetOrFetch(ctx, "price:"+symbol, m.cfg.PriceTTL, func(ctx context.Context) (float64, error) {
		return resilient.Call(ctx, m.exec, serviceFeed, resilient.DefaultPolicy(), func(ctx context.Context) (float64, error) {
			return m.feed.GetPrice(ctx, symbol)
		})
	})
}

// currentATR считает ATR по кешированной истории. Нехватка истории — не
// ошибка: движок стопов умеет работать чистым trailing-ом.
func (m *Monitor) currentATR(ctx context.Context, symbol string) (float64, bool) {
	bars, err := m.history.GetOrFetch(ctx, "history:"+symbol, m.cfg.HistoryTTL, func(ctx context.Context) ([]models.Bar, error) {
		return resilient.Call(ctx, m.exec, serviceFeed, resilient.DefaultPolicy(), func(ctx context.Context) ([]models.Bar, error) {
			return m.feed.GetPriceHistory(ctx, symbol, m.cfg.HistoryLookback)
		})
	})
	if err != nil {
		logger.Warn("[MONITOR] %s: история недоступна, стоп без ATR: %v", symbol, err)
		return 0, false
	}

	atr, err := volatility.AverageTrueRange(bars, m.cfg.ATRPeriod)
	if err != nil {
		if !errors.Is(err, volatility.ErrInsufficientData) {
			logger.Warn("[MONITOR] %s: ATR не посчитался: %v", symbol, err)
		}
		return 0, false
	}
	return atr, true
}

// liquidate отправляет рыночный SELL на весь объём позиции.
//
// client order id детерминирован внутри 15-минутной корзины: повтор в той же
// корзине брокер дедуплицирует сам. Уведомления здесь нет намеренно — стоп
// попадает в алерт-лог и метрики, почтовый канал оставлен торговым сигналам.
func (m *Monitor) liquidate(ctx context.Context, pos models.Position, price float64, dec models.StopDecision) bool {
	clientOrderID := helper.ClientOrderID(pos.Symbol, m.now(), m.cfg.IntradayInterval)

	logger.Alert("[MONITOR] стоп сработал %s: %s; заявка %s", pos.Symbol, dec.Reason, clientOrderID)
	obs.StopTriggers.WithLabelValues(pos.Symbol, string(dec.Basis)).Inc()

	res, err := resilient.Call(ctx, m.exec, serviceBroker, resilient.OrderPolicy(), func(ctx context.Context) (models.OrderResult, error) {
		return m.orders.SubmitOrder(ctx, pos.Symbol, models.SideSell, pos.Quantity, clientOrderID)
	})
	if err != nil {
		obs.LiquidationFailures.WithLabelValues(pos.Symbol).Inc()
		m.recordPending(pos.Symbol, dec)
		logger.Error("[MONITOR] ликвидация %s не прошла, позиция остаётся до следующего цикла: %v", pos.Symbol, err)
		return false
	}
	if res.Status == models.OrderRejected {
		obs.LiquidationFailures.WithLabelValues(pos.Symbol).Inc()
		m.recordPending(pos.Symbol, dec)
		logger.Error("[MONITOR] заявка %s отклонена брокером", clientOrderID)
		return false
	}

	closed, err := m.tracker.Close(pos.Symbol)
	if err != nil {
		logger.Warn("[MONITOR] %s: %v", pos.Symbol, err)
		return false
	}
	m.clearPending(pos.Symbol)

	pnl := (price - closed.EntryPrice) * closed.Quantity
	logger.Alert("[MONITOR] позиция %s закрыта по стопу %s @ %.4f, PnL %.2f (заявка %s, статус %s)",
		closed.Symbol, dec.Basis, price, pnl, res.ClientOrderID, res.Status)

	m.persistPositions(ctx)
	return true
}

func (m *Monitor) recordPending(symbol string, dec models.StopDecision) {
	m.mu.Lock()
	m.pending[symbol] = dec
	m.mu.Unlock()
	m.health.SetPendingLiquidations(m.PendingLiquidations())
}

func (m *Monitor) clearPending(symbol string) {
	m.mu.Lock()
	_, had := m.pending[symbol]
	delete(m.pending, symbol)
	m.mu.Unlock()
	if had {
		m.health.SetPendingLiquidations(m.PendingLiquidations())
	}
}

// PendingLiquidations — позиции с сработавшим, но не исполненным стопом.
// Отдаётся в health-эндпоинт для наблюдаемости.
func (m *Monitor) PendingLiquidations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.pending))
	for sym := range m.pending {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
