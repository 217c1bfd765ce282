package repositories

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/database"
	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const productsTable = "products"

type ProductRepository struct {
	*Repository
}

func NewProductRepository(db database.DB, logger ectologger.Logger) *ProductRepository {
	return &ProductRepository{
		Repository: NewRepository(db, logger),
	}
}

// SetStatus is idempotent: writing the current status succeeds.
func (r *ProductRepository) SetStatus(ctx context.Context, id uuid.UUID, status models.ProductStatus) error {
	ctx, span := tracing.StartSpan(ctx, "ProductRepository.SetStatus")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(productsTable).
		Set(ub.Assign("status", status), ub.Assign("updated_at", now())).
		Where(ub.Equal("id", id))

	query, args := ub.Build()
	res, err := r.Conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return r.internal(ctx, err, map[string]any{"product_id": id, "status": status}, "failed to update product status")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fernerrors.NotFound("product %s does not exist", id)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"product_id": id,
		"status":     status,
	}).Debugf("Updated %s", productsTable)
	return nil
}
