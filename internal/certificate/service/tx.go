package service

import (
	"context"
	"time"

	dErrors "certify/pkg/domain-errors"
)

// TxRunner scopes registry writes and their audit events to one unit of
// work. The Postgres runner carries the transaction in ctx.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

const defaultTxTimeout = 5 * time.Second

// inlineTx runs fn directly under a deadline. Used with in-memory stores,
// which serialize their own mutations.
type inlineTx struct {
	timeout time.Duration
}

func NewInlineTx(timeout time.Duration) TxRunner {
	if timeout <= 0 {
		timeout = defaultTxTimeout
	}
	return &inlineTx{timeout: timeout}
}

func (t *inlineTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	return fn(ctx)
}
