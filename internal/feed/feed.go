package feed

import (
	"context"

	"robotrading/internal/models"
)

// PriceFeed — контракт поставщика рыночных данных. Реализация обязана
// различать временные сбои (сеть, rate-limit) и постоянные (неизвестный
// тикер) через resilient.Transient / resilient.Permanent.
type PriceFeed interface {
	GetPrice(ctx context.Context, symbol string) (float64, error)
	GetPriceHistory(ctx context.Context, symbol string, lookback int) ([]models.Bar, error)
}
