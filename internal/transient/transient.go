// Package transient retries operations that fail for reasons expected to
// clear up on their own: dropped connections, rate limits, locked databases.
package transient

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/Ning0612/fsbridge/internal/domain"
	"github.com/Ning0612/fsbridge/internal/logger"
)

// Options returns the retry options for remote backend calls.
// Exponential backoff from 200ms, capped at 5s, four attempts.
// Only errors accepted by retryIf are retried.
func Options(ctx context.Context, log logger.Logger, op string, retryIf func(error) bool) []retry.Option {
	log = logger.OrNop(log)
	return []retry.Option{
		retry.Attempts(4),
		retry.Delay(200 * time.Millisecond),
		retry.MaxDelay(5 * time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryIf),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("retrying", "op", op, "attempt", n+1, "error", err)
		}),
	}
}

// Do executes fn, retrying transient failures
func Do(ctx context.Context, log logger.Logger, op string, retryIf func(error) bool, fn func() error) error {
	return retry.Do(fn, Options(ctx, log, op, retryIf)...)
}

// DoWithData executes fn, retrying transient failures, and returns its result
func DoWithData[T any](ctx context.Context, log logger.Logger, op string, retryIf func(error) bool, fn func() (T, error)) (T, error) {
	return retry.DoWithData(fn, Options(ctx, log, op, retryIf)...)
}

// IsNetwork reports whether err is a network failure worth retrying.
// Cancellation is never transient.
func IsNetwork(err error) bool {
	if err == nil || IsCanceled(err) {
		return false
	}
	if errors.Is(err, domain.ErrNetworkError) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE)
}

// IsCanceled reports whether err comes from a canceled job or context
func IsCanceled(err error) bool {
	return errors.Is(err, domain.ErrCanceled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// IsDatabaseLocked returns true if the error indicates a database lock
func IsDatabaseLocked(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "database is locked")
}
