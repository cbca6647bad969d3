package positions

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"robotrading/internal/models"
)

var (
	ErrDuplicatePosition = errors.New("position already open for symbol")
	ErrUnknownPosition   = errors.New("no open position for symbol")
)

// Tracker — единственный владелец открытых позиций. Все мутации идут через
// его методы под общим локом, наружу отдаются только копии.
type Tracker struct {
	mu        sync.RWMutex
	positions map[string]*models.Position
}

func NewTracker() *Tracker {
	return &Tracker{positions: make(map[string]*models.Position)}
}

// Open заводит позицию по symbol. Повторный Open без Close — ошибка:
// рассинхрон с брокером важно увидеть, а не замазать.
func (t *Tracker) Open(symbol string, assetClass models.AssetClass, quantity, entryPrice float64, entryTime time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.positions[symbol]; ok {
		return errors.Wrap(ErrDuplicatePosition, symbol)
	}

	t.positions[symbol] = &models.Position{
		Symbol:     symbol,
		AssetClass: assetClass,
		Quantity:   quantity,
		EntryPrice: entryPrice,
		EntryTime:  entryTime,
		PeakPrice:  entryPrice, // peak стартует с входа и дальше только растёт
	}
	return nil
}

// UpdatePrice — единственный мутатор PeakPrice: peak = max(peak, current).
func (t *Tracker) UpdatePrice(symbol string, currentPrice float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.positions[symbol]
	if !ok {
		return errors.Wrap(ErrUnknownPosition, symbol)
	}

	if currentPrice > p.PeakPrice {
		p.PeakPrice = currentPrice
	}
	return nil
}

// Close снимает позицию и возвращает её последнее состояние.
func (t *Tracker) Close(symbol string) (models.Position, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.positions[symbol]
	if !ok {
		return models.Position{}, errors.Wrap(ErrUnknownPosition, symbol)
	}

	delete(t.positions, symbol)
	return *p, nil
}

func (t *Tracker) Get(symbol string) (models.Position, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	p, ok := t.positions[symbol]
	if !ok {
		return models.Position{}, false
	}
	return *p, true
}

// Snapshot — read-only копия всех открытых позиций.
func (t *Tracker) Snapshot() []models.Position {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]models.Position, 0, len(t.positions))
	for _, p := range t.positions {
		out = append(out, *p)
	}
	return out
}

func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.positions)
}

// Restore заливает позиции из снапшота при старте процесса, чтобы рестарт
// не терял прогресс trailing-стопа. Инвариант peak >= entry чиним на входе.
func (t *Tracker) Restore(positions []models.Position) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, p := range positions {
		cp := p
		if cp.PeakPrice < cp.EntryPrice {
			cp.PeakPrice = cp.EntryPrice
		}
		t.positions[cp.Symbol] = &cp
	}
}
