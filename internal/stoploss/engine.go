package stoploss

import (
	"fmt"
	"time"

	"robotrading/internal/models"
)

// Config — неизменяемый снимок настроек защитных стопов. Передаётся значением,
// на лету не мутируется: хотите другие пороги — соберите новый Config.
type Config struct {
	TrailingPercent   float64       // % от peak для trailing-стопа
	ATRMultiplier     float64       // множитель ATR для волатильного стопа
	ATRPeriod         int           // баров в расчёте ATR
	RegimeAware       bool          // учитывать режимный сигнал
	HighVolThreshold  float64       // вероятность high-vol режима, выше — тянем стопы
	HighVolTightening float64       // фактор < 1, сужает буфер обоих стопов
	MinHoldTime       time.Duration // подавление срабатываний сразу после входа
}

func DefaultConfig() Config {
	return Config{
		TrailingPercent:   5.0,
		ATRMultiplier:     2.0,
		ATRPeriod:         14,
		RegimeAware:       true,
		HighVolThreshold:  0.5,
		HighVolTightening: 0.6,
		MinHoldTime:       30 * time.Minute,
	}
}

// Input — всё, что нужно для одной оценки. Движок ничего не читает сам
// и ничего не мутирует: данные входят, решение выходит.
type Input struct {
	Position          models.Position
	CurrentPrice      float64
	ATR               float64
	ATRAvailable      bool // false => истории не хватило, работаем чистым trailing-ом
	RegimeProbability float64
	Now               time.Time
}

// Evaluate считает действующий стоп и решает trigger/no-trigger.
// Идемпотентна и без побочных эффектов; действует по решению вызывающий.
func Evaluate(in Input, cfg Config) models.StopDecision {
	pos := in.Position

	trailingPct := cfg.TrailingPercent
	atrMult := cfg.ATRMultiplier

	// режимная поправка: в high-vol режиме сужаем буфер обоих стопов
	if cfg.RegimeAware && in.RegimeProbability > cfg.HighVolThreshold {
		trailingPct *= cfg.HighVolTightening
		atrMult *= cfg.HighVolTightening
	}

	trailingStop := pos.PeakPrice * (1 - trailingPct/100)

	level := models.StopLevel{
		Symbol:        pos.Symbol,
		TrailingStop:  trailingStop,
		EffectiveStop: trailingStop,
		Basis:         models.BasisTrailing,
	}

	if in.ATRAvailable && in.ATR > 0 {
		atrStop := pos.EntryPrice - atrMult*in.ATR
		if atrStop > pos.EntryPrice {
			atrStop = pos.EntryPrice
		}
		level.ATRStop = atrStop

		// побеждает более тугая (высокая для лонга) граница — её пробьют первой
		if atrStop > level.EffectiveStop {
			level.EffectiveStop = atrStop
			level.Basis = models.BasisATR
		}
	}

	held := in.Now.Sub(pos.EntryTime)
	breached := in.CurrentPrice <= level.EffectiveStop

	dec := models.StopDecision{
		EffectiveStop: level.EffectiveStop,
		Basis:         level.Basis,
		Level:         level,
	}

	if breached && held < cfg.MinHoldTime {
		// шум входного бара: стоп показываем, но не дёргаем
		dec.Reason = fmt.Sprintf("min hold time not reached (%.0fm < %.0fm)",
			held.Minutes(), cfg.MinHoldTime.Minutes())
		return dec
	}

	if breached {
		dec.Triggered = true
		dec.Reason = fmt.Sprintf("price %.4f <= %s stop %.4f (peak %.4f, entry %.4f)",
			in.CurrentPrice, level.Basis, level.EffectiveStop, pos.PeakPrice, pos.EntryPrice)
	}

	return dec
}
