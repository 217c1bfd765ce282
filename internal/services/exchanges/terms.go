package exchanges

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/internal/repositories"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/statemachine"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// ApplyAcceptedTerms folds an accepted proposal into the conversation's exchange and moves it
// to in_progress. A conversation without an exchange gets one created and linked.
// It must run inside the transaction that resolved the proposal.
func (s *Service) ApplyAcceptedTerms(ctx context.Context, conversationID uuid.UUID, proposal *models.Proposal, actorID int64) (*models.Exchange, []models.Intent, error) {
	ctx, span := tracing.StartSpan(ctx, "exchanges.ApplyAcceptedTerms")
	defer span.End()

	var changes models.ExchangeChanges
	proposal.Terms().Apply(&changes)

	conversation, err := s.conversations.GetForUpdate(ctx, conversationID)
	if err != nil {
		return nil, nil, err
	}

	if conversation.ExchangeID == nil {
		return s.createFromTerms(ctx, conversation, changes, actorID)
	}

	exchange, err := s.exchanges.GetByID(ctx, *conversation.ExchangeID)
	if err != nil {
		return nil, nil, err
	}
	if _, err := statemachine.Next(exchange.Status, statemachine.ActionApplyTerms, exchange.RoleOf(actorID)); err != nil {
		return nil, nil, err
	}

	wasInProgress := exchange.Status == models.ExchangeStatusInProgress
	updated, err := s.exchanges.Transition(ctx, exchange.ID, statemachine.Sources(statemachine.ActionApplyTerms), models.ExchangeStatusInProgress, changes)
	if errors.Is(err, repositories.ErrConditionNotMet) {
		return nil, nil, s.conflict(ctx, exchange.ID, statemachine.ActionApplyTerms)
	}
	if err != nil {
		return nil, nil, err
	}

	metrics.ExchangeTransitionsTotal.WithLabelValues(string(statemachine.ActionApplyTerms), string(updated.Status)).Inc()
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"exchange_id": updated.ID,
		"proposal_id": proposal.ID,
		"from":        exchange.Status,
	}).Info("accepted terms applied to exchange")

	intents := []models.Intent{models.PublishEvent{Event: models.ExchangeEventFor(updated, actorID)}}
	if !wasInProgress {
		intents = append(intents, startedIntents(updated)...)
	}
	return updated, intents, nil
}

func (s *Service) createFromTerms(ctx context.Context, conversation *models.Conversation, changes models.ExchangeChanges, actorID int64) (*models.Exchange, []models.Intent, error) {
	ts := now()
	exchange := &models.Exchange{
		ConversationID:     conversation.ID,
		ProposerID:         conversation.InitiatorID,
		ReceiverID:         conversation.OwnerID,
		OfferedProductID:   conversation.OfferedProductID,
		RequestedProductID: conversation.RequestedProduct(),
		Status:             models.ExchangeStatusInProgress,
		RespondedAt:        &ts,
	}
	changes.ApplyTo(exchange)

	if err := s.exchanges.Create(ctx, exchange); err != nil {
		return nil, nil, err
	}
	if err := s.link(ctx, conversation.ID, exchange.ID); err != nil {
		return nil, nil, err
	}

	metrics.ExchangeTransitionsTotal.WithLabelValues(string(statemachine.ActionApplyTerms), string(exchange.Status)).Inc()
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"exchange_id":     exchange.ID,
		"conversation_id": conversation.ID,
	}).Info("exchange created from accepted terms")

	intents := []models.Intent{models.PublishEvent{Event: models.ExchangeEventFor(exchange, actorID)}}
	return exchange, append(intents, startedIntents(exchange)...), nil
}

// startedIntents asks both participants to report on the exchange once it happens.
func startedIntents(e *models.Exchange) []models.Intent {
	intents := []models.Intent{
		models.SystemMessage(e.ConversationID, models.MessageKindSystem, "The exchange is in progress.", transcriptData(e)),
	}
	for _, userID := range e.Participants() {
		intents = append(intents, models.NotifyUser(e, userID, models.NotificationExchangeStarted,
			"Exchange in progress", "Let us know how the exchange went once you have met."))
	}
	return intents
}
