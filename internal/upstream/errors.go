package upstream

import (
	"fmt"
	"time"
)

// ThrottleError — сервер попросил сбавить темп (429 + Retry-After).
// Ретраер учитывает подсказанную задержку вместо стандартного бэкоффа.
type ThrottleError struct {
	RetryAfter time.Duration
	Cause      error
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("throttled: retry after %v (cause: %v)", e.RetryAfter, e.Cause)
}

func (e *ThrottleError) Unwrap() error { return e.Cause }
