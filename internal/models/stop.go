package models

// StopBasis — какое правило дало действующий стоп (для аудита в логах).
type StopBasis string

const (
	BasisTrailing StopBasis = "TRAILING"
	BasisATR      StopBasis = "ATR"
)

// StopLevel считается заново на каждой оценке, нигде не хранится.
type StopLevel struct {
	Symbol        string
	TrailingStop  float64
	ATRStop       float64
	EffectiveStop float64
	Basis         StopBasis
}

type StopDecision struct {
	Triggered     bool
	EffectiveStop float64
	Basis         StopBasis
	Level         StopLevel
	Reason        string
}
