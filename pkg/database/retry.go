package database

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"
)

const (
	defaultRetryAttempts = 3
	defaultRetryBaseWait = 1 * time.Second
	retryJitterFraction  = 0.25
)

// transientMarkers are substrings of driver errors caused by the network
// or a restarting server rather than by the statement itself.
var transientMarkers = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"i/o timeout",
	"dial tcp",
	"EOF",
	"connection timed out",
	"server closed the connection unexpectedly",
	"could not connect",
	"the database system is starting up",
}

// isConnectionError reports whether err is worth retrying. SQL and
// constraint errors never are.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// retryBackoff returns 1s, 2s, 4s... for attempt 0, 1, 2... with ±25% jitter.
func retryBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := defaultRetryBaseWait << attempt
	jitter := time.Duration(float64(base) * retryJitterFraction * (2*rand.Float64() - 1)) // #nosec G404 -- non-cryptographic jitter
	return base + jitter
}

// retryTransient runs fn up to defaultRetryAttempts times, backing off
// between attempts, for as long as it fails with a connection error.
func retryTransient(ctx context.Context, logger *slog.Logger, what string, fn func() error) error {
	return retry(ctx, logger, what, defaultRetryAttempts, retryBackoff, fn)
}

func retry(ctx context.Context, logger *slog.Logger, what string, attempts int, backoff func(int) time.Duration, fn func() error) error {
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(); err == nil || !isConnectionError(err) {
			return err
		}
		if attempt == attempts-1 {
			break
		}

		wait := backoff(attempt)
		if logger != nil {
			logger.Warn(what+" failed, retrying",
				slog.Int("attempt", attempt+1),
				slog.Int("max_attempts", attempts),
				slog.Duration("backoff", wait),
				slog.String("error", err.Error()),
			)
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("%s: %w", what, ctx.Err())
		case <-t.C:
		}
	}
	return fmt.Errorf("%s after %d attempts: %w", what, attempts, err)
}
