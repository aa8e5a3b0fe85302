package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/phrazzld/ereuna/internal/platform/logger"
)

// TxFn runs inside a transaction. Returning an error rolls the transaction back.
type TxFn func(ctx context.Context, tx *sql.Tx) error

// RunInTransaction commits the work done by fn, or rolls it back when fn
// returns an error or panics. A panic is re-raised after the rollback.
// Begin and commit failures wrap ErrTransactionFailed.
func RunInTransaction(ctx context.Context, db *sql.DB, fn TxFn) (err error) {
	log := logger.FromContext(ctx)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", ErrTransactionFailed, err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		p := recover()
		if rbErr := tx.Rollback(); rbErr != nil {
			log.ErrorContext(ctx, "transaction rollback failed", "error", rbErr, "panic", p)
			if p == nil && err != nil {
				err = fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
			}
		}
		if p != nil {
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		log.DebugContext(ctx, "rolling back transaction", "error", err)
		return err
	}

	committed = true
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrTransactionFailed, err)
	}
	return nil
}
