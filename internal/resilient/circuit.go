package resilient

import (
	"sync"
	"time"
)

type CircuitState string

const (
	StateClosed   CircuitState = "CLOSED"
	StateOpen     CircuitState = "OPEN"
	StateHalfOpen CircuitState = "HALF_OPEN"
)

type BreakerConfig struct {
	Threshold int           // подряд идущих ошибок до размыкания
	Cooldown  time.Duration // сколько держим OPEN до пробной попытки
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Threshold: 5,
		Cooldown:  60 * time.Second,
	}
}

// circuit — состояние одного внешнего сервиса. Свой мьютекс на сервис,
// независимые сервисы друг друга не тормозят.
type circuit struct {
	mu                  sync.Mutex
	cfg                 BreakerConfig
	state               CircuitState
	consecutiveFailures int
	openedAt            time.Time
	trialInFlight       bool

	// вызывается на каждом переходе состояния; не должен лезть обратно в circuit
	notify func(CircuitState)
}

func (c *circuit) transition(to CircuitState) {
	c.state = to
	if c.notify != nil {
		c.notify(to)
	}
}

func newCircuit(cfg BreakerConfig) *circuit {
	return &circuit{cfg: cfg, state: StateClosed}
}

// allow решает, можно ли делать попытку. В HALF_OPEN пропускаем ровно один
// пробный вызов, остальные получают fast-fail.
func (c *circuit) allow(now time.Time) (ok bool, openedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateClosed:
		return true, time.Time{}
	case StateOpen:
		if now.Sub(c.openedAt) < c.cfg.Cooldown {
			return false, c.openedAt
		}
		c.transition(StateHalfOpen)
		c.trialInFlight = true
		return true, time.Time{}
	default: // HALF_OPEN
		if c.trialInFlight {
			return false, c.openedAt
		}
		c.trialInFlight = true
		return true, time.Time{}
	}
}

func (c *circuit) onSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.consecutiveFailures = 0
	c.trialInFlight = false
	if c.state != StateClosed {
		c.transition(StateClosed)
	}
}

func (c *circuit) onFailure(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateHalfOpen {
		// пробный вызов не удался — снова размыкаемся
		c.transition(StateOpen)
		c.openedAt = now
		c.trialInFlight = false
		return
	}

	c.consecutiveFailures++
	if c.state == StateClosed && c.cfg.Threshold > 0 && c.consecutiveFailures >= c.cfg.Threshold {
		c.transition(StateOpen)
		c.openedAt = now
	}
}

func (c *circuit) snapshot() (CircuitState, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.consecutiveFailures
}
