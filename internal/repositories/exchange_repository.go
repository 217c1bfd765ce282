package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/database"
	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	exchangesTable       = "exchanges"
	defaultExchangeLimit = 100
)

var exchangeStruct = database.NewStruct(new(models.Exchange))

type ExchangeRepository struct {
	*Repository
}

func NewExchangeRepository(db database.DB, logger ectologger.Logger) *ExchangeRepository {
	return &ExchangeRepository{
		Repository: NewRepository(db, logger),
	}
}

func (r *ExchangeRepository) Create(ctx context.Context, e *models.Exchange) error {
	ctx, span := tracing.StartSpan(ctx, "ExchangeRepository.Create")
	defer span.End()

	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	ts := now()
	e.CreatedAt, e.UpdatedAt = ts, ts

	ib := exchangeStruct.InsertInto(exchangesTable, e)
	query, args := ib.Build()
	if _, err := r.Conn(ctx).ExecContext(ctx, query, args...); err != nil {
		return r.internal(ctx, err, map[string]any{"conversation_id": e.ConversationID}, "failed to create exchange")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"exchange_id":     e.ID,
		"conversation_id": e.ConversationID,
		"status":          e.Status,
	}).Debugf("Created %s", exchangesTable)
	return nil
}

func (r *ExchangeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Exchange, error) {
	ctx, span := tracing.StartSpan(ctx, "ExchangeRepository.GetByID")
	defer span.End()

	return r.get(ctx, id, false)
}

func (r *ExchangeRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Exchange, error) {
	ctx, span := tracing.StartSpan(ctx, "ExchangeRepository.GetForUpdate")
	defer span.End()

	return r.get(ctx, id, true)
}

func (r *ExchangeRepository) get(ctx context.Context, id uuid.UUID, lock bool) (*models.Exchange, error) {
	sb := exchangeStruct.SelectFrom(exchangesTable)
	sb.Where(sb.Equal("id", id))
	if lock {
		sb.ForUpdate()
	}

	query, args := sb.Build()
	var exchange models.Exchange
	err := r.Conn(ctx).GetContext(ctx, &exchange, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fernerrors.NotFound("exchange %s does not exist", id)
	}
	if err != nil {
		return nil, r.internal(ctx, err, map[string]any{"exchange_id": id}, "failed to get exchange")
	}
	return &exchange, nil
}

// List returns the user's exchanges, newest first.
func (r *ExchangeRepository) List(ctx context.Context, filter models.ExchangeFilter) ([]models.Exchange, error) {
	ctx, span := tracing.StartSpan(ctx, "ExchangeRepository.List")
	defer span.End()

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultExchangeLimit
	}

	sb := exchangeStruct.SelectFrom(exchangesTable)
	sb.Where(sb.Or(sb.Equal("proposer_id", filter.UserID), sb.Equal("receiver_id", filter.UserID)))
	if filter.Status != nil {
		sb.Where(sb.Equal("status", *filter.Status))
	}
	sb.OrderBy("updated_at").Desc().Limit(limit)

	query, args := sb.Build()
	var exchanges []models.Exchange
	if err := r.Conn(ctx).SelectContext(ctx, &exchanges, query, args...); err != nil {
		return nil, r.internal(ctx, err, map[string]any{"user_id": filter.UserID}, "failed to list exchanges")
	}
	return exchanges, nil
}

func (r *ExchangeRepository) Transition(ctx context.Context, id uuid.UUID, from []models.ExchangeStatus, to models.ExchangeStatus, changes models.ExchangeChanges) (*models.Exchange, error) {
	ctx, span := tracing.StartSpan(ctx, "ExchangeRepository.Transition")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(exchangesTable).
		Set(assignments(ub, to, changes)...).
		Where(ub.Equal("id", id), database.InStrings(ub, "status", from...))

	query, args := ub.BuildReturning()
	var exchange models.Exchange
	err := r.Conn(ctx).GetContext(ctx, &exchange, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConditionNotMet
	}
	if err != nil {
		return nil, r.internal(ctx, err, map[string]any{
			"exchange_id": id,
			"to":          to,
		}, "failed to transition exchange")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"exchange_id": id,
		"status":      to,
	}).Debug("Transitioned exchange")
	return &exchange, nil
}

func assignments(ub *database.UpdateBuilder, to models.ExchangeStatus, c models.ExchangeChanges) []string {
	set := []string{
		ub.Assign("status", to),
		ub.Assign("updated_at", now()),
	}
	if c.MeetingDate != nil {
		set = append(set, ub.Assign("meeting_date", *c.MeetingDate))
	}
	if c.MeetingPlace != nil {
		set = append(set, ub.Assign("meeting_place", *c.MeetingPlace))
	}
	if c.MeetingNotes != nil {
		set = append(set, ub.Assign("meeting_notes", *c.MeetingNotes))
	}
	if c.AdditionalAmount != nil {
		set = append(set, ub.Assign("additional_amount", *c.AdditionalAmount))
	}
	if c.AdditionalConditions != nil {
		set = append(set, ub.Assign("additional_conditions", *c.AdditionalConditions))
	}
	switch {
	case c.RejectionReason != nil:
		set = append(set, ub.Assign("rejection_reason", *c.RejectionReason))
	case c.ClearRejection:
		set = append(set, ub.Assign("rejection_reason", nil))
	}
	if c.RespondedAt != nil {
		set = append(set, ub.Assign("responded_at", *c.RespondedAt))
	}
	if c.CompletedAt != nil {
		set = append(set, ub.Assign("completed_at", *c.CompletedAt))
	}
	return set
}

// CountCompletedForUser counts completed exchanges the user took part in.
func (r *ExchangeRepository) CountCompletedForUser(ctx context.Context, userID int64) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "ExchangeRepository.CountCompletedForUser")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("COUNT(*)").From(exchangesTable).Where(
		sb.Equal("status", models.ExchangeStatusCompleted),
		sb.Or(sb.Equal("proposer_id", userID), sb.Equal("receiver_id", userID)),
	)

	query, args := sb.Build()
	var count int
	if err := r.Conn(ctx).GetContext(ctx, &count, query, args...); err != nil {
		return 0, r.internal(ctx, err, map[string]any{"user_id": userID}, "failed to count completed exchanges")
	}
	return count, nil
}
