package volatility

import (
	"math"

	"github.com/pkg/errors"

	"robotrading/internal/models"
)

// ErrInsufficientData — баров меньше, чем period+1. Вызывающий обязан иметь
// явный фолбэк (чистый trailing-stop), а не гадать волатильность.
var ErrInsufficientData = errors.New("not enough bars for ATR")

// TrueRange одного бара относительно закрытия предыдущего.
func TrueRange(bar models.Bar, prevClose float64) float64 {
	hl := bar.High - bar.Low
	hc := math.Abs(bar.High - prevClose)
	lc := math.Abs(bar.Low - prevClose)
	return math.Max(hl, math.Max(hc, lc))
}

// AverageTrueRange — ATR по Уайлдеру: SMA первых period TR, дальше
// сглаживание atr = (atr*(period-1) + tr) / period. Чистая функция,
// bars идут от старых к новым.
func AverageTrueRange(bars []models.Bar, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.Errorf("invalid ATR period %d", period)
	}
	if len(bars) < period+1 {
		return 0, errors.Wrapf(ErrInsufficientData, "have %d bars, need %d", len(bars), period+1)
	}

	trs := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		trs = append(trs, TrueRange(bars[i], bars[i-1].Close))
	}

	atr := 0.0
	for i := 0; i < period; i++ {
		atr += trs[i]
	}
	atr /= float64(period)

	for i := period; i < len(trs); i++ {
		atr = (atr*float64(period-1) + trs[i]) / float64(period)
	}

	return atr, nil
}
