// Package proposals manages the negotiation ledger of a conversation.
package proposals

import (
	"context"
	"errors"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/internal/repositories"
	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// TermsApplier folds accepted terms into the conversation's exchange.
type TermsApplier interface {
	ApplyAcceptedTerms(ctx context.Context, conversationID uuid.UUID, proposal *models.Proposal, actorID int64) (*models.Exchange, []models.Intent, error)
}

// Response is the recipient's answer to a pending proposal.
type Response struct {
	Decision models.ProposalDecision
	Message  *string
	// Counter optionally carries the terms the responder proposes instead.
	Counter *models.ProposalDraft
}

type RespondResult struct {
	Proposal *models.Proposal `json:"proposal"`
	Counter  *models.Proposal `json:"counter_proposal,omitempty"`
	Exchange *models.Exchange `json:"exchange,omitempty"`
}

type Service struct {
	logger        ectologger.Logger
	tx            repositories.TxRunner
	proposals     repositories.ProposalRepo
	conversations repositories.ConversationRepo
	terms         TermsApplier
}

func NewService(logger ectologger.Logger, tx repositories.TxRunner, proposals repositories.ProposalRepo, conversations repositories.ConversationRepo, terms TermsApplier) *Service {
	return &Service{
		logger:        logger,
		tx:            tx,
		proposals:     proposals,
		conversations: conversations,
		terms:         terms,
	}
}

// Create appends a pending proposal from the caller to the other participant.
func (s *Service) Create(ctx context.Context, callerID int64, conversationID uuid.UUID, draft models.ProposalDraft) (*models.Proposal, []models.Intent, error) {
	ctx, span := tracing.StartSpan(ctx, "proposals.Create")
	defer span.End()

	conversation, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, nil, err
	}
	if !conversation.IsParticipant(callerID) {
		return nil, nil, fernerrors.AccessDenied("only conversation participants may make proposals")
	}

	proposal, err := newProposal(conversation.ID, callerID, conversation.Counterpart(callerID), nil, draft)
	if err != nil {
		return nil, nil, err
	}
	if err := s.proposals.Create(ctx, proposal); err != nil {
		return nil, nil, err
	}

	metrics.ProposalsCreatedTotal.WithLabelValues(string(proposal.Kind)).Inc()
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"proposal_id":     proposal.ID,
		"conversation_id": conversationID,
		"kind":            proposal.Kind,
		"user_id":         callerID,
	}).Info("proposal created")

	return proposal, createdIntents(proposal, conversation.ExchangeID), nil
}

// List returns the conversation's ledger, newest first.
func (s *Service) List(ctx context.Context, callerID int64, conversationID uuid.UUID) ([]models.Proposal, error) {
	ctx, span := tracing.StartSpan(ctx, "proposals.List")
	defer span.End()

	conversation, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.IsParticipant(callerID) {
		return nil, fernerrors.AccessDenied("only conversation participants may view proposals")
	}
	return s.proposals.ListByConversation(ctx, conversationID)
}

// Respond resolves a pending proposal exactly once. Accepting folds its terms into the
// exchange in the same transaction.
func (s *Service) Respond(ctx context.Context, callerID int64, conversationID, proposalID uuid.UUID, resp Response) (*RespondResult, []models.Intent, error) {
	ctx, span := tracing.StartSpan(ctx, "proposals.Respond")
	defer span.End()

	proposal, err := s.proposals.GetByID(ctx, proposalID)
	if err != nil {
		return nil, nil, err
	}
	if proposal.ConversationID != conversationID {
		return nil, nil, fernerrors.NotFound("proposal %s does not exist", proposalID)
	}
	if callerID != proposal.RecipientID {
		if callerID == proposal.ProposerID {
			return nil, nil, fernerrors.Forbidden("only the recipient may respond to a proposal")
		}
		return nil, nil, fernerrors.AccessDenied("only conversation participants may respond to proposals")
	}

	status, ok := resp.Decision.Status()
	if !ok {
		return nil, nil, fernerrors.InvalidRequest("unknown decision %q", resp.Decision).With("field", "decision")
	}
	if proposal.Status != models.ProposalStatusPending {
		return nil, nil, alreadyResolved(proposal)
	}

	var counter *models.Proposal
	if resp.Decision == models.DecisionCounter && resp.Counter != nil {
		counter, err = newProposal(proposal.ConversationID, callerID, proposal.ProposerID, &proposal.ID, *resp.Counter)
		if err != nil {
			return nil, nil, err
		}
	}

	result := &RespondResult{Counter: counter}
	var exchangeIntents []models.Intent
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		resolved, err := s.proposals.Resolve(ctx, proposal.ID, status, resp.Message)
		if errors.Is(err, repositories.ErrConditionNotMet) {
			return alreadyResolved(proposal)
		}
		if err != nil {
			return err
		}
		result.Proposal = resolved

		switch resp.Decision {
		case models.DecisionAccept:
			result.Exchange, exchangeIntents, err = s.terms.ApplyAcceptedTerms(ctx, conversationID, resolved, callerID)
			return err
		case models.DecisionCounter:
			if counter != nil {
				return s.proposals.Create(ctx, counter)
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	metrics.ProposalResponsesTotal.WithLabelValues(string(resp.Decision)).Inc()
	if counter != nil {
		metrics.ProposalsCreatedTotal.WithLabelValues(string(counter.Kind)).Inc()
	}
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"proposal_id": proposal.ID,
		"decision":    resp.Decision,
		"user_id":     callerID,
	}).Info("proposal resolved")

	var exchangeID *uuid.UUID
	if result.Exchange != nil {
		exchangeID = &result.Exchange.ID
	}
	intents := respondedIntents(result.Proposal, exchangeID)
	intents = append(intents, exchangeIntents...)
	if counter != nil {
		intents = append(intents, createdIntents(counter, exchangeID)...)
	}
	return result, intents, nil
}

func newProposal(conversationID uuid.UUID, proposerID, recipientID int64, parentID *uuid.UUID, draft models.ProposalDraft) (*models.Proposal, error) {
	terms, err := draft.BuildTerms()
	if err != nil {
		return nil, err
	}
	proposal := &models.Proposal{
		ID:             uuid.New(),
		ConversationID: conversationID,
		ProposerID:     proposerID,
		RecipientID:    recipientID,
		ParentID:       parentID,
		Description:    draft.Description,
		AttachmentURL:  draft.AttachmentURL,
		Status:         models.ProposalStatusPending,
	}
	proposal.SetTerms(terms)
	return proposal, nil
}

func alreadyResolved(p *models.Proposal) error {
	return fernerrors.AlreadyResolved("proposal %s was already answered", p.ID).
		With("proposal_id", p.ID.String())
}
