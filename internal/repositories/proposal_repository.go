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

const proposalsTable = "proposals"

var proposalStruct = database.NewStruct(new(models.Proposal))

// ProposalRepository stores the negotiation ledger.
type ProposalRepository struct {
	*Repository
}

func NewProposalRepository(db database.DB, logger ectologger.Logger) *ProposalRepository {
	return &ProposalRepository{
		Repository: NewRepository(db, logger),
	}
}

func (r *ProposalRepository) Create(ctx context.Context, p *models.Proposal) error {
	ctx, span := tracing.StartSpan(ctx, "ProposalRepository.Create")
	defer span.End()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	ts := now()
	p.CreatedAt, p.UpdatedAt = ts, ts

	ib := proposalStruct.InsertInto(proposalsTable, p)
	query, args := ib.Build()
	if _, err := r.Conn(ctx).ExecContext(ctx, query, args...); err != nil {
		return r.internal(ctx, err, map[string]any{
			"conversation_id": p.ConversationID,
			"kind":            p.Kind,
		}, "failed to create proposal")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"proposal_id":     p.ID,
		"conversation_id": p.ConversationID,
	}).Debugf("Created %s", proposalsTable)
	return nil
}

func (r *ProposalRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	ctx, span := tracing.StartSpan(ctx, "ProposalRepository.GetByID")
	defer span.End()

	sb := proposalStruct.SelectFrom(proposalsTable)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var proposal models.Proposal
	err := r.Conn(ctx).GetContext(ctx, &proposal, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fernerrors.NotFound("proposal %s does not exist", id)
	}
	if err != nil {
		return nil, r.internal(ctx, err, map[string]any{"proposal_id": id}, "failed to get proposal")
	}
	return &proposal, nil
}

// ListByConversation returns the ledger newest first.
func (r *ProposalRepository) ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]models.Proposal, error) {
	ctx, span := tracing.StartSpan(ctx, "ProposalRepository.ListByConversation")
	defer span.End()

	sb := proposalStruct.SelectFrom(proposalsTable)
	sb.Where(sb.Equal("conversation_id", conversationID)).OrderBy("created_at").Desc()

	query, args := sb.Build()
	var proposals []models.Proposal
	if err := r.Conn(ctx).SelectContext(ctx, &proposals, query, args...); err != nil {
		return nil, r.internal(ctx, err, map[string]any{"conversation_id": conversationID}, "failed to list proposals")
	}
	return proposals, nil
}

func (r *ProposalRepository) Resolve(ctx context.Context, id uuid.UUID, status models.ProposalStatus, responseText *string) (*models.Proposal, error) {
	ctx, span := tracing.StartSpan(ctx, "ProposalRepository.Resolve")
	defer span.End()

	ts := now()
	ub := database.NewUpdateBuilder()
	ub.Update(proposalsTable).
		Set(
			ub.Assign("status", status),
			ub.Assign("response_text", responseText),
			ub.Assign("responded_at", ts),
			ub.Assign("updated_at", ts),
		).
		Where(ub.Equal("id", id), ub.Equal("status", models.ProposalStatusPending))

	query, args := ub.BuildReturning()
	var proposal models.Proposal
	err := r.Conn(ctx).GetContext(ctx, &proposal, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConditionNotMet
	}
	if err != nil {
		return nil, r.internal(ctx, err, map[string]any{"proposal_id": id}, "failed to resolve proposal")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"proposal_id": id,
		"status":      status,
	}).Debug("Resolved proposal")
	return &proposal, nil
}
