package collector

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// executor wraps a sqlx pool with a per-call timeout and an exponential
// backoff retry policy for transient failures. Both collectors share it
// through composition; there is no base-collector inheritance.
type executor struct {
	db      *sqlx.DB
	log     *logrus.Logger
	retries uint64 // retries after the first attempt
	delay   time.Duration
	factor  float64
	timeout time.Duration
}

func newExecutor(db *sqlx.DB, log *logrus.Logger, attempts int, delay time.Duration, factor float64, timeout time.Duration) *executor {
	if attempts < 1 {
		attempts = 1
	}
	return &executor{
		db:      db,
		log:     log,
		retries: uint64(attempts - 1),
		delay:   delay,
		factor:  factor,
		timeout: timeout,
	}
}

// selectRetry runs a multi-row query into dest, retrying transient failures.
func (e *executor) selectRetry(ctx context.Context, dest any, query string, args ...any) error {
	return e.retry(ctx, func(qctx context.Context) error {
		return e.db.SelectContext(qctx, dest, query, args...)
	})
}

// getRetry runs a single-row query into dest, retrying transient failures.
// sql.ErrNoRows is permanent; an absent row will not appear on retry.
func (e *executor) getRetry(ctx context.Context, dest any, query string, args ...any) error {
	return e.retry(ctx, func(qctx context.Context) error {
		return e.db.GetContext(qctx, dest, query, args...)
	})
}

func (e *executor) retry(ctx context.Context, op func(context.Context) error) error {
	attempt := 0
	wrapped := func() error {
		attempt++
		qctx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		err := op(qctx)
		if err == nil {
			return nil
		}
		// The caller's context ending is not transient; stop immediately.
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		if !isTransient(err) {
			return backoff.Permanent(err)
		}
		e.log.WithError(err).WithField("attempt", attempt).Debug("transient query failure, retrying")
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = e.delay
	policy.Multiplier = e.factor
	policy.RandomizationFactor = 0 // deterministic schedule keeps call latency bounded

	return backoff.Retry(wrapped, backoff.WithContext(backoff.WithMaxRetries(policy, e.retries), ctx))
}

// isTransient reports whether an error is worth retrying. Query timeouts and
// driver/network errors are transient; missing rows and SQL syntax problems
// are not.
func isTransient(err error) bool {
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var sqlErr interface{ SQLState() string }
	if errors.As(err, &sqlErr) {
		// Class 08 is connection exceptions in both Postgres and MySQL.
		state := sqlErr.SQLState()
		return len(state) >= 2 && state[:2] == "08"
	}
	// Everything else unknown is treated as transient so a flaky network
	// does not abort a collection cycle.
	return true
}

func (e *executor) close() error {
	return e.db.Close()
}
