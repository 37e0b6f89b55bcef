package main

import (
	"context"
	"database/sql"
	"time"

	dErrors "fiat/pkg/domain-errors"
	txcontext "fiat/pkg/platform/tx"
)

const defaultKernelTxTimeout = 5 * time.Second

// kernelPostgresTx runs the commit closure inside one database transaction,
// bound to the context so every store call inside joins it.
type kernelPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newKernelPostgresTx(db *sql.DB, timeout time.Duration) *kernelPostgresTx {
	return &kernelPostgresTx{db: db, timeout: timeout}
}

func (t *kernelPostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultKernelTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	return nil
}
