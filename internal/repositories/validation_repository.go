package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const validationReportsTable = "validation_reports"

var validationReportStruct = database.NewStruct(new(models.ValidationReport))

// upsertReportQuery writes the report only while the exchange is still eligible for
// validation. submitted_at keeps the first submission.
const upsertReportQuery = `
INSERT INTO validation_reports (exchange_id, user_id, was_successful, rating, comment, problem_description, submitted_at, updated_at)
SELECT $1::uuid, $2::bigint, $3::boolean, $4::integer, $5::text, $6::text, $7::timestamptz, $7::timestamptz
WHERE EXISTS (SELECT 1 FROM exchanges WHERE id = $1::uuid AND status = ANY($8::text[]))
ON CONFLICT (exchange_id, user_id) DO UPDATE SET
	was_successful = EXCLUDED.was_successful,
	rating = EXCLUDED.rating,
	comment = EXCLUDED.comment,
	problem_description = EXCLUDED.problem_description,
	updated_at = EXCLUDED.updated_at
RETURNING submitted_at, updated_at`

type ValidationRepository struct {
	*Repository
}

func NewValidationRepository(db database.DB, logger ectologger.Logger) *ValidationRepository {
	return &ValidationRepository{
		Repository: NewRepository(db, logger),
	}
}

func (r *ValidationRepository) Upsert(ctx context.Context, report *models.ValidationReport, eligible []models.ExchangeStatus) error {
	ctx, span := tracing.StartSpan(ctx, "ValidationRepository.Upsert")
	defer span.End()

	statuses := make([]string, 0, len(eligible))
	for _, s := range eligible {
		statuses = append(statuses, string(s))
	}

	err := r.Conn(ctx).QueryRowxContext(ctx, upsertReportQuery,
		report.ExchangeID, report.UserID, report.WasSuccessful, report.Rating, report.Comment,
		report.ProblemDescription, now(), pq.Array(statuses),
	).Scan(&report.SubmittedAt, &report.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrConditionNotMet
	}
	if err != nil {
		return r.internal(ctx, err, map[string]any{
			"exchange_id": report.ExchangeID,
			"user_id":     report.UserID,
		}, "failed to store validation report")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"exchange_id":    report.ExchangeID,
		"user_id":        report.UserID,
		"was_successful": report.WasSuccessful,
	}).Debugf("Upserted %s", validationReportsTable)
	return nil
}

func (r *ValidationRepository) ListByExchange(ctx context.Context, exchangeID uuid.UUID) ([]models.ValidationReport, error) {
	ctx, span := tracing.StartSpan(ctx, "ValidationRepository.ListByExchange")
	defer span.End()

	sb := validationReportStruct.SelectFrom(validationReportsTable)
	sb.Where(sb.Equal("exchange_id", exchangeID)).OrderBy("submitted_at", "user_id")

	query, args := sb.Build()
	var reports []models.ValidationReport
	if err := r.Conn(ctx).SelectContext(ctx, &reports, query, args...); err != nil {
		return nil, r.internal(ctx, err, map[string]any{"exchange_id": exchangeID}, "failed to list validation reports")
	}
	return reports, nil
}
