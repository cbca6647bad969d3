package models

import "time"

// Bar — универсальный OHLC-бар для расчётов волатильности.
type Bar struct {
	Time  time.Time
	Open  float64
	High  float64
	Low   float64
	Close float64
}
