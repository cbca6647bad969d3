package resilient

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Policy описывает поведение ретраев одного типа вызовов.
type Policy struct {
	MaxRetries     int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	JitterFraction float64 // джиттер в [0, JitterFraction*delay]
	Timeout        time.Duration
	Retryable      func(error) bool // nil => DefaultRetryable
}

// DefaultPolicy — для обычных API-вызовов (котировки, справочники).
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:     3,
		BaseDelay:      time.Second,
		MaxDelay:       30 * time.Second,
		JitterFraction: 0.5,
		Timeout:        10 * time.Second,
	}
}

// OrderPolicy — для ордеров: минимум повторов, дубль заявки опаснее отказа.
func OrderPolicy() Policy {
	return Policy{
		MaxRetries:     1,
		BaseDelay:      2 * time.Second,
		MaxDelay:       10 * time.Second,
		JitterFraction: 0.5,
		Timeout:        15 * time.Second,
	}
}

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeTimeout Outcome = "timeout"
)

// Attempt — событие одной попытки для метрик/логов. Нигде не хранится.
type Attempt struct {
	Service string
	Number  int
	Delay   time.Duration
	Outcome Outcome
	Latency time.Duration
	Err     error
}

type Reporter interface {
	OnAttempt(a Attempt)
	// OnCircuitState дёргается на каждом переходе брейкера сервиса.
	OnCircuitState(service string, state CircuitState)
}

type Executor struct {
	mu       sync.RWMutex
	circuits map[string]*circuit

	breaker  BreakerConfig
	reporter Reporter

	// подменяются в тестах
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	randF func() float64
}

func NewExecutor(breaker BreakerConfig, reporter Reporter) *Executor {
	return &Executor{
		circuits: make(map[string]*circuit),
		breaker:  breaker,
		reporter: reporter,
		now:      time.Now,
		sleep:    sleepCtx,
		randF:    rand.Float64,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (e *Executor) circuitFor(service string) *circuit {
	e.mu.RLock()
	c, ok := e.circuits[service]
	e.mu.RUnlock()
	if ok {
		return c
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok = e.circuits[service]; ok {
		return c
	}
	c = newCircuit(e.breaker)
	c.notify = func(s CircuitState) { e.reportState(service, s) }
	e.circuits[service] = c
	return c
}

// CircuitState возвращает состояние брейкера сервиса (для health/метрик).
func (e *Executor) CircuitState(service string) (CircuitState, int) {
	return e.circuitFor(service).snapshot()
}

// Delay считает задержку перед попыткой attempt (0-based):
// min(maxDelay, base*2^attempt) + uniform[0, jitter*delay].
func (e *Executor) delay(p Policy, attempt int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	if max := float64(p.MaxDelay); p.MaxDelay > 0 && d > max {
		d = max
	}
	if p.JitterFraction > 0 {
		d += e.randF() * p.JitterFraction * d
	}
	if max := float64(p.MaxDelay); p.MaxDelay > 0 && d > max {
		d = max
	}
	return time.Duration(d)
}

func (e *Executor) report(a Attempt) {
	if e.reporter != nil {
		e.reporter.OnAttempt(a)
	}
}

func (e *Executor) reportState(service string, state CircuitState) {
	if e.reporter != nil {
		e.reporter.OnCircuitState(service, state)
	}
}

// Do выполняет op с ретраями, backoff-ом и circuit breaker-ом сервиса service.
func (e *Executor) Do(ctx context.Context, service string, p Policy, op func(ctx context.Context) error) error {
	retryable := p.Retryable
	if retryable == nil {
		retryable = DefaultRetryable
	}

	c := e.circuitFor(service)

	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		var pause time.Duration
		if attempt > 0 {
			pause = e.delay(p, attempt-1)
			if err := e.sleep(ctx, pause); err != nil {
				return errors.Wrap(err, "backoff interrupted")
			}
		}

		if ok, openedAt := c.allow(e.now()); !ok {
			return &CircuitOpenError{Service: service, OpenedAt: openedAt}
		}

		attempts++
		start := e.now()
		err := e.runOnce(ctx, p, op)
		latency := e.now().Sub(start)

		if err == nil {
			c.onSuccess()
			e.report(Attempt{Service: service, Number: attempts, Delay: pause, Outcome: OutcomeSuccess, Latency: latency})
			return nil
		}

		lastErr = err
		c.onFailure(e.now())

		outcome := OutcomeFailure
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = OutcomeTimeout
		}
		e.report(Attempt{Service: service, Number: attempts, Delay: pause, Outcome: outcome, Latency: latency, Err: err})

		if !retryable(err) {
			return err
		}
	}

	return &RetriesExhaustedError{Service: service, Attempts: attempts, Last: lastErr}
}

// runOnce — одна попытка со своим таймаутом.
func (e *Executor) runOnce(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	return op(ctx)
}

// Call — типизированная обёртка над Do для вызовов, возвращающих значение.
func Call[T any](ctx context.Context, e *Executor, service string, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := e.Do(ctx, service, p, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
