// Package validation collects participants' reports on whether an exchange happened and
// resolves the exchange once both agree or disagree.
package validation

import (
	"context"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/internal/repositories"
	"github.com/Ramsey-B/fern/pkg/consensus"
	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/statemachine"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/utils"
)

const (
	minRating = 1
	maxRating = 5
)

// ReportInput is the caller's attestation.
type ReportInput struct {
	WasSuccessful      bool    `json:"was_successful"`
	Rating             *int    `json:"rating"`
	Comment            *string `json:"comment" validate:"omitempty,max=2000"`
	ProblemDescription *string `json:"problem_description" validate:"omitempty,max=2000"`
}

type SubmitResult struct {
	Report   *models.ValidationReport `json:"report"`
	Exchange *models.Exchange         `json:"exchange"`
	Outcome  consensus.Outcome        `json:"outcome"`
}

type Service struct {
	logger    ectologger.Logger
	tx        repositories.TxRunner
	reports   repositories.ValidationRepo
	exchanges repositories.ExchangeRepo
}

func NewService(logger ectologger.Logger, tx repositories.TxRunner, reports repositories.ValidationRepo, exchanges repositories.ExchangeRepo) *Service {
	return &Service{
		logger:    logger,
		tx:        tx,
		reports:   reports,
		exchanges: exchanges,
	}
}

// Submit stores or replaces the caller's report and evaluates consensus. The report write,
// the read of both reports and the consensus transition share one transaction holding the
// exchange row lock, so a stored report always agrees with the state it resolved to.
func (s *Service) Submit(ctx context.Context, callerID int64, exchangeID uuid.UUID, input ReportInput) (*SubmitResult, []models.Intent, error) {
	ctx, span := tracing.StartSpan(ctx, "validation.Submit")
	defer span.End()

	exchange, err := s.exchanges.GetByID(ctx, exchangeID)
	if err != nil {
		return nil, nil, err
	}
	if !exchange.IsParticipant(callerID) {
		return nil, nil, fernerrors.AccessDenied("only exchange participants may report on this exchange")
	}
	if input.Rating != nil && (*input.Rating < minRating || *input.Rating > maxRating) {
		return nil, nil, fernerrors.InvalidReport("rating must be between %d and %d", minRating, maxRating).With("field", "rating")
	}
	if _, err := utils.Validate(input); err != nil {
		return nil, nil, fernerrors.InvalidReport("%s", err.Error()).With("field", utils.InvalidField(err))
	}
	if !statemachine.InValidationWindow(exchange.Status) {
		return nil, nil, notReportable(exchange.Status)
	}

	var (
		result  *SubmitResult
		intents []models.Intent
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var txErr error
		result, intents, txErr = s.submit(ctx, callerID, exchangeID, input)
		return txErr
	})
	if err != nil {
		return nil, nil, err
	}
	return result, intents, nil
}

func (s *Service) submit(ctx context.Context, callerID int64, exchangeID uuid.UUID, input ReportInput) (*SubmitResult, []models.Intent, error) {
	exchange, err := s.exchanges.GetForUpdate(ctx, exchangeID)
	if err != nil {
		return nil, nil, err
	}
	if !statemachine.InValidationWindow(exchange.Status) {
		return nil, nil, notReportable(exchange.Status)
	}

	report := &models.ValidationReport{
		ExchangeID:         exchangeID,
		UserID:             callerID,
		WasSuccessful:      input.WasSuccessful,
		Rating:             input.Rating,
		Comment:            input.Comment,
		ProblemDescription: input.ProblemDescription,
	}
	err = s.reports.Upsert(ctx, report, statemachine.ValidationWindow())
	if errors.Is(err, repositories.ErrConditionNotMet) {
		current, getErr := s.exchanges.GetByID(ctx, exchangeID)
		if getErr != nil {
			return nil, nil, getErr
		}
		return nil, nil, notReportable(current.Status)
	}
	if err != nil {
		return nil, nil, err
	}

	reports, err := s.reports.ListByExchange(ctx, exchangeID)
	if err != nil {
		return nil, nil, err
	}

	outcome := consensus.Evaluate(exchange.Participants(), reports)
	metrics.ConsensusOutcomesTotal.WithLabelValues(string(outcome)).Inc()

	logger := s.logger.WithContext(ctx).WithFields(map[string]any{
		"exchange_id":    exchangeID,
		"user_id":        callerID,
		"was_successful": input.WasSuccessful,
		"outcome":        outcome,
	})

	result := &SubmitResult{Report: report, Exchange: exchange, Outcome: outcome}
	action, resolved := outcome.Action()
	if !resolved {
		logger.Info("validation report stored, waiting for counterpart")
		return result, awaitingIntents(exchange, callerID, reports), nil
	}

	to, _ := outcome.Status()
	changes := models.ExchangeChanges{}
	if to == models.ExchangeStatusCompleted {
		ts := time.Now().UTC()
		changes.CompletedAt = &ts
	}

	updated, err := s.exchanges.Transition(ctx, exchangeID, statemachine.Sources(action), to, changes)
	if errors.Is(err, repositories.ErrConditionNotMet) {
		metrics.TransitionConflictsTotal.WithLabelValues(string(action)).Inc()
		return s.settledElsewhere(ctx, result, action, to)
	}
	if err != nil {
		return nil, nil, err
	}

	metrics.ExchangeTransitionsTotal.WithLabelValues(string(action), string(updated.Status)).Inc()
	logger.Info("validation consensus reached")

	result.Exchange = updated
	intents := outcome.Intents(updated)
	intents = append(intents,
		models.SystemMessage(updated.ConversationID, models.MessageKindSystem, transcriptLine(outcome), map[string]any{
			"exchange_id": updated.ID.String(),
			"status":      string(updated.Status),
		}),
		models.PublishEvent{Event: models.ExchangeEventFor(updated, 0)},
	)
	return result, intents, nil
}

// settledElsewhere handles a consensus write that lost to a concurrent one. The call succeeds
// without side effects only when the exchange already holds the outcome this report computed.
// Any other state fails the transaction so the contradicting report is not kept.
func (s *Service) settledElsewhere(ctx context.Context, result *SubmitResult, action statemachine.Action, want models.ExchangeStatus) (*SubmitResult, []models.Intent, error) {
	current, err := s.exchanges.GetByID(ctx, result.Exchange.ID)
	if err != nil {
		return nil, nil, err
	}

	if current.Status == want {
		s.logger.WithContext(ctx).WithFields(map[string]any{
			"exchange_id": current.ID,
			"status":      current.Status,
		}).Info("exchange was already resolved by a concurrent submission")
		result.Exchange = current
		return result, nil, nil
	}

	return nil, nil, fernerrors.InvalidState("cannot %s an exchange that is %s", action, current.Status).
		With("status", string(current.Status))
}

// List returns the exchange's reports to its participants.
func (s *Service) List(ctx context.Context, callerID int64, exchangeID uuid.UUID) ([]models.ValidationReport, error) {
	ctx, span := tracing.StartSpan(ctx, "validation.List")
	defer span.End()

	exchange, err := s.exchanges.GetByID(ctx, exchangeID)
	if err != nil {
		return nil, err
	}
	if !exchange.IsParticipant(callerID) {
		return nil, fernerrors.AccessDenied("only exchange participants may view its reports")
	}
	return s.reports.ListByExchange(ctx, exchangeID)
}

func notReportable(status models.ExchangeStatus) error {
	return fernerrors.InvalidState("reports cannot be filed for an exchange that is %s", status).
		With("status", string(status))
}

// awaitingIntents nudges the counterpart the first time only one side has reported.
func awaitingIntents(e *models.Exchange, callerID int64, reports []models.ValidationReport) []models.Intent {
	counterpart := e.Counterpart(callerID)
	for _, r := range reports {
		if r.UserID == counterpart {
			return nil
		}
		if r.UserID == callerID && r.UpdatedAt.After(r.SubmittedAt) {
			return nil
		}
	}
	return []models.Intent{
		models.NotifyUser(e, counterpart, models.NotificationValidationRequested,
			"How did the exchange go?", "The other participant reported on your exchange. Add your report to close it."),
	}
}

func transcriptLine(o consensus.Outcome) string {
	switch o {
	case consensus.OutcomeCompleted:
		return "Both participants confirmed the exchange. It is complete."
	case consensus.OutcomeFailed:
		return "Both participants reported that the exchange did not happen."
	default:
		return "The participants' reports disagree. The exchange is under review."
	}
}
