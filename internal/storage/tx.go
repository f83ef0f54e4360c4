package storage

import (
	"context"
	"fmt"
)

// View runs fn inside a read-only transaction.
func View(ctx context.Context, b Backend, fn func(tx Tx) error) error {
	return run(ctx, b, false, fn)
}

// Update runs fn inside a writable transaction. The transaction commits if fn
// returns nil and rolls back if fn returns an error or panics.
func Update(ctx context.Context, b Backend, fn func(tx Tx) error) error {
	return run(ctx, b, true, fn)
}

func run(ctx context.Context, b Backend, writable bool, fn func(tx Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx, err := b.Begin(ctx, writable)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		// Rollback errors are secondary to whatever aborted the transaction.
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if !writable {
		committed = true
		return tx.Rollback()
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}
