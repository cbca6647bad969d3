package stoploss

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"robotrading/internal/models"
)

func testPosition(entry, peak float64, heldFor time.Duration, now time.Time) models.Position {
	return models.Position{
		Symbol:     "AAPL",
		AssetClass: models.AssetEquity,
		Quantity:   10,
		EntryPrice: entry,
		EntryTime:  now.Add(-heldFor),
		PeakPrice:  peak,
	}
}

func TestEvaluateTrailingWins(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig() // trailing 5%, atr mult 2

	dec := Evaluate(Input{
		Position:          testPosition(100, 120, 2*time.Hour, now),
		CurrentPrice:      113,
		ATR:               4,
		ATRAvailable:      true,
		RegimeProbability: 0.2, // ниже порога, без поправки
		Now:               now,
	}, cfg)

	// trailing = 120*0.95 = 114, atr = 100-2*4 = 92 => effective 114
	assert.InDelta(t, 114.0, dec.Level.TrailingStop, 1e-9)
	assert.InDelta(t, 92.0, dec.Level.ATRStop, 1e-9)
	assert.InDelta(t, 114.0, dec.EffectiveStop, 1e-9)
	assert.Equal(t, models.BasisTrailing, dec.Basis)
	assert.True(t, dec.Triggered)
}

func TestEvaluateNotTriggeredAboveStop(t *testing.T) {
	now := time.Now()

	dec := Evaluate(Input{
		Position:     testPosition(100, 120, 2*time.Hour, now),
		CurrentPrice: 118,
		ATR:          4,
		ATRAvailable: true,
		Now:          now,
	}, DefaultConfig())

	assert.False(t, dec.Triggered)
	assert.InDelta(t, 114.0, dec.EffectiveStop, 1e-9)
}

func TestEvaluateATRWins(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig()

	// peak у входа, trailing низко; ATR-стоп ближе к цене
	dec := Evaluate(Input{
		Position:     testPosition(100, 100, 2*time.Hour, now),
		CurrentPrice: 97,
		ATR:          1,
		ATRAvailable: true,
		Now:          now,
	}, cfg)

	// trailing = 95, atr = 100-2 = 98 => побеждает ATR
	assert.InDelta(t, 98.0, dec.EffectiveStop, 1e-9)
	assert.Equal(t, models.BasisATR, dec.Basis)
	assert.True(t, dec.Triggered)
}

func TestEvaluateRegimeTightening(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig() // threshold 0.5, tightening 0.6

	dec := Evaluate(Input{
		Position:          testPosition(100, 120, 2*time.Hour, now),
		CurrentPrice:      117,
		ATR:               4,
		ATRAvailable:      true,
		RegimeProbability: 0.7,
		Now:               now,
	}, cfg)

	// trailing percent 5*0.6 = 3 => 120*0.97 = 116.4
	assert.InDelta(t, 116.4, dec.Level.TrailingStop, 1e-9)
	assert.InDelta(t, 116.4, dec.EffectiveStop, 1e-9)
	assert.False(t, dec.Triggered)

	// цена под затянутым стопом — срабатывает
	dec = Evaluate(Input{
		Position:          testPosition(100, 120, 2*time.Hour, now),
		CurrentPrice:      116,
		ATR:               4,
		ATRAvailable:      true,
		RegimeProbability: 0.7,
		Now:               now,
	}, cfg)
	assert.True(t, dec.Triggered)
}

func TestEvaluateRegimeDisabled(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig()
	cfg.RegimeAware = false

	dec := Evaluate(Input{
		Position:          testPosition(100, 120, 2*time.Hour, now),
		CurrentPrice:      117,
		ATR:               4,
		ATRAvailable:      true,
		RegimeProbability: 0.9,
		Now:               now,
	}, cfg)

	assert.InDelta(t, 114.0, dec.EffectiveStop, 1e-9)
	assert.False(t, dec.Triggered)
}

func TestEvaluateMinHoldTimeSuppresses(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig() // min hold 30m

	dec := Evaluate(Input{
		Position:     testPosition(100, 100, 10*time.Minute, now),
		CurrentPrice: 90, // глубоко под стопом
		ATR:          2,
		ATRAvailable: true,
		Now:          now,
	}, cfg)

	assert.False(t, dec.Triggered, "entry-bar noise must not trigger within min hold time")
	assert.Greater(t, dec.EffectiveStop, 0.0, "stop is still reported for visibility")
	assert.Contains(t, dec.Reason, "min hold time")
}

func TestEvaluateATRUnavailableFallsBackToTrailing(t *testing.T) {
	now := time.Now()

	dec := Evaluate(Input{
		Position:     testPosition(100, 120, 2*time.Hour, now),
		CurrentPrice: 113,
		ATRAvailable: false, // истории не хватило
		Now:          now,
	}, DefaultConfig())

	// без ATR решение остаётся защищённым чистым trailing-ом, не no-stop
	assert.InDelta(t, 114.0, dec.EffectiveStop, 1e-9)
	assert.Equal(t, models.BasisTrailing, dec.Basis)
	assert.True(t, dec.Triggered)
}

func TestEffectiveStopNeverAbovePeak(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig()

	cases := []struct {
		name  string
		entry float64
		peak  float64
		atr   float64
	}{
		{"fresh position", 100, 100, 1},
		{"run up", 100, 150, 3},
		{"tiny atr", 100, 101, 0.01},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dec := Evaluate(Input{
				Position:     testPosition(tc.entry, tc.peak, time.Hour, now),
				CurrentPrice: tc.peak,
				ATR:          tc.atr,
				ATRAvailable: true,
				Now:          now,
			}, cfg)

			assert.LessOrEqual(t, dec.EffectiveStop, tc.peak,
				"stop above peak would self-trigger with no movement")
			assert.False(t, dec.Triggered)
		})
	}
}
