package repositories

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/database"
)

// ErrConditionNotMet is returned by conditional writes whose guard no longer holds:
// another request moved the row first.
var ErrConditionNotMet = errors.New("row is no longer in the expected state")

// Repository provides common database access
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new base repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// Conn returns the transaction on ctx, or the pool.
func (r *Repository) Conn(ctx context.Context) database.Querier {
	return r.db.Conn(ctx)
}

// internal logs err and hides it behind a generic 500.
func (r *Repository) internal(ctx context.Context, err error, fields map[string]any, message string) error {
	r.logger.WithContext(ctx).WithError(err).WithFields(fields).Error(message)
	return httperror.NewHTTPError(http.StatusInternalServerError, message)
}

func now() time.Time {
	return time.Now().UTC()
}

// Transactor runs a unit of work atomically.
type Transactor struct {
	db database.DB
}

func NewTransactor(db database.DB) *Transactor {
	return &Transactor{db: db}
}

func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return t.db.WithTx(ctx, fn)
}
