package broker

import (
	"context"

	"robotrading/internal/models"
)

// OrderSubmitter — контракт отправки заявок. clientOrderID — идемпотентный
// ключ вызывающего: повтор с тем же ключом не должен дать второй филл.
type OrderSubmitter interface {
	SubmitOrder(ctx context.Context, symbol string, side models.Side, quantity float64, clientOrderID string) (models.OrderResult, error)
}
