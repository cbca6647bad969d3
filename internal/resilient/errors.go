package resilient

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// TransientError — сетевые/временные сбои внешнего сервиса: ретраим и
// учитываем в circuit breaker.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError — неизвестный тикер, auth и прочее, что ретраить бессмысленно.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

func Transientf(format string, args ...any) error {
	return &TransientError{Err: errors.Errorf(format, args...)}
}

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

func Permanentf(format string, args ...any) error {
	return &PermanentError{Err: errors.Errorf(format, args...)}
}

func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// CircuitOpenError — fast-fail без единой попытки вызова.
type CircuitOpenError struct {
	Service  string
	OpenedAt time.Time
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit open for service %q (opened at %s)", e.Service, e.OpenedAt.Format(time.RFC3339))
}

func IsCircuitOpen(err error) bool {
	var ce *CircuitOpenError
	return errors.As(err, &ce)
}

// RetriesExhaustedError несёт последнюю ошибку и число сделанных попыток.
type RetriesExhaustedError struct {
	Service  string
	Attempts int
	Last     error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("service %q: %d attempts exhausted, last error: %v", e.Service, e.Attempts, e.Last)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.Last }

// DefaultRetryable: permanent — терминально, всё остальное (включая таймауты)
// считаем временным. Оригинальный брокерский API кидает что попало.
func DefaultRetryable(err error) bool {
	if err == nil {
		return false
	}
	if IsPermanent(err) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}
