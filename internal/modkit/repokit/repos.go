// Package repokit holds the seams and helpers repositories are written against
package repokit

import (
	"context"
	"time"

	perr "shapeshift/internal/platform/errors"
	"shapeshift/internal/platform/store"
)

type (
	// Queryer is the read and write surface a bound repo sees
	Queryer = store.RowQuerier

	// TxRunner opens transactions
	TxRunner = store.TxRunner

	// Rows are the result set of a query
	Rows = store.Rows

	// Row is a single row result
	Row = store.Row

	// CommandTag is the outcome of a write
	CommandTag = store.CommandTag
)

// WithTx runs fn inside a transaction
func WithTx(ctx context.Context, tx TxRunner, fn func(q Queryer) error) error {
	return tx.Tx(ctx, fn)
}

// RetryPolicy bounds WithRetryTx
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// DefaultRetry covers the short contention windows the ledger sees
var DefaultRetry = RetryPolicy{Attempts: 3, Backoff: 25 * time.Millisecond}

// WithRetryTx reruns the whole transaction on serialization failures, deadlocks and lock timeouts
func WithRetryTx(ctx context.Context, tx TxRunner, p RetryPolicy, fn func(q Queryer) error) error {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	var err error
	for i := 0; i < p.Attempts; i++ {
		err = tx.Tx(ctx, fn)
		if err == nil || !perr.IsRetryable(err) {
			return err
		}
		if i == p.Attempts-1 {
			break
		}
		t := time.NewTimer(p.Backoff * time.Duration(1<<i))
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return err
}
