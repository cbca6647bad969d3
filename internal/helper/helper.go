package helper

import (
	"fmt"
	"math"
	"time"
)

// Slot опускает t на границу бакета длиной d (по Unix-секундам).
func Slot(t time.Time, d time.Duration) time.Time {
	sec := t.Unix()
	step := int64(d / time.Second)
	if step <= 0 {
		return t
	}
	sec -= sec % step
	return time.Unix(sec, 0).In(t.Location())
}

// ClientOrderID — детерминированный идемпотентный ключ ликвидации:
// один symbol + один временной бакет => один и тот же id, сколько бы раз
// цикл ни пытался отправить заявку.
func ClientOrderID(symbol string, t time.Time, bucket time.Duration) string {
	return fmt.Sprintf("SL-%s-%d", symbol, Slot(t, bucket).Unix())
}

// MarketWindow — окно торговой сессии в локальном времени биржи.
type MarketWindow struct {
	OpenHour    int
	OpenMinute  int
	CloseHour   int
	CloseMinute int
	Location    *time.Location
}

func NYSEWindow() MarketWindow {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	return MarketWindow{OpenHour: 9, OpenMinute: 30, CloseHour: 16, Location: loc}
}

// Contains: внутри ли t торгового окна. Выходные не торгуем.
func (w MarketWindow) Contains(t time.Time) bool {
	lt := t.In(w.Location)
	if wd := lt.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	minutes := lt.Hour()*60 + lt.Minute()
	open := w.OpenHour*60 + w.OpenMinute
	close := w.CloseHour*60 + w.CloseMinute
	return minutes >= open && minutes < close
}

func RoundDownToTick(px, tick float64) float64 {
	if tick <= 0 {
		return px
	}
	steps := math.Floor(px/tick + 1e-12)
	return steps * tick
}

func RoundUpToTick(px, tick float64) float64 {
	if tick <= 0 {
		return px
	}
	steps := math.Ceil(px/tick - 1e-12)
	return steps * tick
}
