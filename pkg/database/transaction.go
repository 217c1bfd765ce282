package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type txContextKey struct{}

// unitOfWork is the transaction carried on a context by WithTx.
type unitOfWork struct {
	*sqlx.Tx
	done bool
}

func txFromContext(ctx context.Context) *unitOfWork {
	tx, ok := ctx.Value(txContextKey{}).(*unitOfWork)
	if !ok || tx.done {
		return nil
	}
	return tx
}

func (db *DatabaseInstance) begin(ctx context.Context) (context.Context, *unitOfWork, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		db.logger.WithContext(ctx).WithError(err).Error("Failed to begin transaction")
		return ctx, nil, fmt.Errorf("failed to begin transaction")
	}
	uow := &unitOfWork{Tx: tx}
	return context.WithValue(ctx, txContextKey{}, uow), uow, nil
}

func (db *DatabaseInstance) finish(ctx context.Context, uow *unitOfWork, fnErr error) error {
	uow.done = true
	if fnErr != nil {
		if err := uow.Rollback(); err != nil {
			db.logger.WithContext(ctx).WithError(err).Warn("Rollback after failed unit of work also failed")
		}
		return fnErr
	}
	if err := uow.Commit(); err != nil {
		db.logger.WithContext(ctx).WithError(err).Error("Failed to commit transaction")
		return fmt.Errorf("failed to commit transaction")
	}
	return nil
}
