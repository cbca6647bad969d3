package models

type Side string

const (
	SideNone Side = ""
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

type OrderStatus string

const (
	OrderSubmitted OrderStatus = "SUBMITTED"
	OrderFilled    OrderStatus = "FILLED"
	OrderRejected  OrderStatus = "REJECTED"
)

type OrderResult struct {
	ClientOrderID string
	Status        OrderStatus
	FillPrice     float64
}

// Signal — решение первичного дневного цикла (BUY/SELL). Только такие решения
// уходят во внешние уведомления; ликвидации по стопу — никогда.
type Signal struct {
	Symbol string
	Side   Side
	Price  float64
	Reason string
}
