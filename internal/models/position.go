package models

import "time"

type AssetClass string

const (
	AssetEquity AssetClass = "equity"
	AssetBond   AssetClass = "bond"
	AssetCrypto AssetClass = "crypto"
)

// Position — открытая позиция. Владелец всех экземпляров — positions.Tracker,
// снаружи поля не мутируются: наружу уходят только копии.
type Position struct {
	Symbol     string
	AssetClass AssetClass
	Quantity   float64
	EntryPrice float64
	EntryTime  time.Time
	PeakPrice  float64 // максимум цены с момента входа, только растёт
}
