package webclient

import (
	"context"
	"net/http"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/retry"
)

const errTransientStatus = errors.ConstError("transient status")

// AttemptFunc performs one request and reports its status.
type AttemptFunc func(ctx context.Context) (status int, body []byte, err error)

// Retry repeats idempotent reads that hit rate limits or server errors.
type Retry struct {
	Attempts     int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Clock        clock.Clock
}

// Transient reports whether a status is worth another attempt.
func Transient(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// Do runs fn until it succeeds, returns a non-transient status, the attempts
// run out or ctx ends. Delays double up to MaxDelay. When the attempts run
// out on a transient status, that status is returned without an error.
func (r Retry) Do(ctx context.Context, fn AttemptFunc) (int, []byte, error) {
	attempts := r.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := r.InitialDelay
	if delay <= 0 {
		delay = time.Second
	}
	clk := r.Clock
	if clk == nil {
		clk = clock.WallClock
	}

	var (
		status  int
		body    []byte
		lastErr error
	)
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			status, body, lastErr = fn(ctx)
			switch {
			case lastErr != nil:
				return lastErr
			case Transient(status):
				return errTransientStatus
			}
			return nil
		},
		IsFatalError: func(error) bool { return ctx.Err() != nil },
		Attempts:     attempts,
		Delay:        delay,
		MaxDelay:     r.MaxDelay,
		BackoffFunc:  retry.DoubleDelay,
		Clock:        clk,
		Stop:         ctx.Done(),
	})
	switch {
	case err == nil:
		return status, body, nil
	case retry.IsRetryStopped(err), ctx.Err() != nil:
		return status, body, ctx.Err()
	}
	return status, body, lastErr
}
