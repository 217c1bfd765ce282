// Package exchanges drives the exchange lifecycle. Every status change is checked against
// the statemachine table and persisted as a conditional write.
package exchanges

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/internal/repositories"
	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/statemachine"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Draft is what a participant offers when opening an exchange.
type Draft struct {
	OfferedProductID     *uuid.UUID `json:"offered_product_id"`
	Message              *string    `json:"message"`
	AdditionalAmount     *float64   `json:"additional_amount"`
	AdditionalConditions *string    `json:"additional_conditions"`
}

type Service struct {
	logger        ectologger.Logger
	tx            repositories.TxRunner
	exchanges     repositories.ExchangeRepo
	conversations repositories.ConversationRepo
}

func NewService(logger ectologger.Logger, tx repositories.TxRunner, exchanges repositories.ExchangeRepo, conversations repositories.ConversationRepo) *Service {
	return &Service{
		logger:        logger,
		tx:            tx,
		exchanges:     exchanges,
		conversations: conversations,
	}
}

// Propose opens a pending exchange on a conversation that has none. The other participant receives it.
func (s *Service) Propose(ctx context.Context, callerID int64, conversationID uuid.UUID, draft Draft) (*models.Exchange, []models.Intent, error) {
	ctx, span := tracing.StartSpan(ctx, "exchanges.Propose")
	defer span.End()

	var exchange *models.Exchange
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		conversation, err := s.conversations.GetForUpdate(ctx, conversationID)
		if err != nil {
			return err
		}
		if !conversation.IsParticipant(callerID) {
			return fernerrors.AccessDenied("only conversation participants may propose an exchange")
		}
		if draft.AdditionalAmount != nil && *draft.AdditionalAmount < 0 {
			return fernerrors.InvalidRequest("additional_amount cannot be negative").With("field", "additional_amount")
		}
		if conversation.ExchangeID != nil {
			return fernerrors.InvalidState("conversation already has an exchange").
				With("exchange_id", conversation.ExchangeID.String())
		}

		offered := draft.OfferedProductID
		if offered == nil {
			offered = conversation.OfferedProductID
		}
		exchange = &models.Exchange{
			ConversationID:       conversation.ID,
			ProposerID:           callerID,
			ReceiverID:           conversation.Counterpart(callerID),
			OfferedProductID:     offered,
			RequestedProductID:   conversation.RequestedProduct(),
			Status:               models.ExchangeStatusPending,
			Message:              draft.Message,
			AdditionalAmount:     draft.AdditionalAmount,
			AdditionalConditions: draft.AdditionalConditions,
		}
		if err := s.exchanges.Create(ctx, exchange); err != nil {
			return err
		}
		return s.link(ctx, conversation.ID, exchange.ID)
	})
	if err != nil {
		return nil, nil, err
	}

	metrics.ExchangeTransitionsTotal.WithLabelValues("propose", string(exchange.Status)).Inc()
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"exchange_id":     exchange.ID,
		"conversation_id": conversationID,
		"user_id":         callerID,
	}).Info("exchange proposed")

	intents := []models.Intent{
		models.NotifyUser(exchange, exchange.ReceiverID, models.NotificationExchangeProposed,
			"New exchange proposal", "You received an exchange proposal."),
		models.SystemMessage(exchange.ConversationID, models.MessageKindSystem, "An exchange was proposed.", transcriptData(exchange)),
		models.PublishEvent{Event: models.ExchangeEventFor(exchange, callerID)},
	}
	return exchange, intents, nil
}

func (s *Service) Get(ctx context.Context, callerID int64, id uuid.UUID) (*models.Exchange, error) {
	ctx, span := tracing.StartSpan(ctx, "exchanges.Get")
	defer span.End()

	exchange, err := s.exchanges.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exchange.IsParticipant(callerID) {
		return nil, fernerrors.AccessDenied("only exchange participants may view this exchange")
	}
	return exchange, nil
}

// List returns the caller's exchanges, optionally narrowed to one status.
func (s *Service) List(ctx context.Context, callerID int64, status *models.ExchangeStatus) ([]models.Exchange, error) {
	ctx, span := tracing.StartSpan(ctx, "exchanges.List")
	defer span.End()

	if status != nil && !status.Valid() {
		return nil, fernerrors.InvalidRequest("unknown exchange status %q", *status).With("field", "status")
	}
	return s.exchanges.List(ctx, models.ExchangeFilter{UserID: callerID, Status: status})
}

func (s *Service) Accept(ctx context.Context, callerID int64, id uuid.UUID) (*models.Exchange, []models.Intent, error) {
	ctx, span := tracing.StartSpan(ctx, "exchanges.Accept")
	defer span.End()

	ts := now()
	return s.transition(ctx, callerID, id, statemachine.ActionAccept, models.ExchangeChanges{
		RespondedAt:    &ts,
		ClearRejection: true,
	})
}

func (s *Service) Reject(ctx context.Context, callerID int64, id uuid.UUID, reason *string) (*models.Exchange, []models.Intent, error) {
	ctx, span := tracing.StartSpan(ctx, "exchanges.Reject")
	defer span.End()

	ts := now()
	return s.transition(ctx, callerID, id, statemachine.ActionReject, models.ExchangeChanges{
		RespondedAt:     &ts,
		RejectionReason: reason,
	})
}

func (s *Service) Cancel(ctx context.Context, callerID int64, id uuid.UUID) (*models.Exchange, []models.Intent, error) {
	ctx, span := tracing.StartSpan(ctx, "exchanges.Cancel")
	defer span.End()

	return s.transition(ctx, callerID, id, statemachine.ActionCancel, models.ExchangeChanges{})
}

// Complete marks an accepted exchange done and owes its settlement. A second completion is
// rejected and never settles twice.
func (s *Service) Complete(ctx context.Context, callerID int64, id uuid.UUID) (*models.Exchange, []models.Intent, error) {
	ctx, span := tracing.StartSpan(ctx, "exchanges.Complete")
	defer span.End()

	ts := now()
	return s.transition(ctx, callerID, id, statemachine.ActionComplete, models.ExchangeChanges{CompletedAt: &ts})
}

func (s *Service) transition(ctx context.Context, callerID int64, id uuid.UUID, action statemachine.Action, changes models.ExchangeChanges) (*models.Exchange, []models.Intent, error) {
	exchange, err := s.exchanges.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !exchange.IsParticipant(callerID) {
		return nil, nil, fernerrors.AccessDenied("only exchange participants may %s this exchange", action)
	}

	next, err := statemachine.Next(exchange.Status, action, exchange.RoleOf(callerID))
	if err != nil {
		return nil, nil, err
	}

	updated, err := s.exchanges.Transition(ctx, id, statemachine.Sources(action), next, changes)
	if errors.Is(err, repositories.ErrConditionNotMet) {
		return nil, nil, s.conflict(ctx, id, action)
	}
	if err != nil {
		return nil, nil, err
	}

	metrics.ExchangeTransitionsTotal.WithLabelValues(string(action), string(updated.Status)).Inc()
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"exchange_id": id,
		"action":      action,
		"from":        exchange.Status,
		"to":          updated.Status,
		"user_id":     callerID,
	}).Info("exchange transitioned")

	return updated, transitionIntents(updated, action, callerID), nil
}

// conflict reports a transition that lost a race against another writer.
func (s *Service) conflict(ctx context.Context, id uuid.UUID, action statemachine.Action) error {
	metrics.TransitionConflictsTotal.WithLabelValues(string(action)).Inc()

	current, err := s.exchanges.GetByID(ctx, id)
	if err != nil {
		return err
	}
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"exchange_id": id,
		"action":      action,
		"status":      current.Status,
	}).Warn("exchange changed before the transition was written")

	return fernerrors.InvalidState("cannot %s an exchange that is %s", action, current.Status).
		With("status", string(current.Status)).
		With("action", string(action))
}

func transitionIntents(e *models.Exchange, action statemachine.Action, actorID int64) []models.Intent {
	counterpart := e.Counterpart(actorID)
	event := models.PublishEvent{Event: models.ExchangeEventFor(e, actorID)}

	switch action {
	case statemachine.ActionAccept:
		return []models.Intent{
			models.NotifyUser(e, counterpart, models.NotificationExchangeAccepted, "Exchange accepted", "Your exchange proposal was accepted."),
			models.SystemMessage(e.ConversationID, models.MessageKindSystem, "The exchange was accepted.", transcriptData(e)),
			event,
		}
	case statemachine.ActionReject:
		body := "Your exchange proposal was rejected."
		if e.RejectionReason != nil && *e.RejectionReason != "" {
			body = fmt.Sprintf("Your exchange proposal was rejected: %s", *e.RejectionReason)
		}
		return []models.Intent{
			models.NotifyUser(e, counterpart, models.NotificationExchangeRejected, "Exchange rejected", body),
			models.SystemMessage(e.ConversationID, models.MessageKindSystem, "The exchange was rejected.", transcriptData(e)),
			event,
		}
	case statemachine.ActionCancel:
		return []models.Intent{
			models.NotifyUser(e, counterpart, models.NotificationExchangeCancelled, "Exchange cancelled", "The other participant cancelled the exchange."),
			models.SystemMessage(e.ConversationID, models.MessageKindSystem, "The exchange was cancelled.", transcriptData(e)),
			event,
		}
	case statemachine.ActionComplete:
		intents := models.SettlementIntents(e)
		return append(intents,
			models.SystemMessage(e.ConversationID, models.MessageKindSystem, "The exchange was completed.", transcriptData(e)),
			event,
		)
	}
	return []models.Intent{event}
}

func (s *Service) link(ctx context.Context, conversationID, exchangeID uuid.UUID) error {
	err := s.conversations.LinkExchange(ctx, conversationID, exchangeID)
	if errors.Is(err, repositories.ErrConditionNotMet) {
		return fernerrors.InvalidState("conversation already has an exchange")
	}
	return err
}

func transcriptData(e *models.Exchange) map[string]any {
	return map[string]any{
		"exchange_id": e.ID.String(),
		"status":      string(e.Status),
	}
}

func now() time.Time {
	return time.Now().UTC()
}
