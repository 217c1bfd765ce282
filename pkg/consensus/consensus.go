// Package consensus folds the two participants' validation reports into an exchange outcome.
package consensus

import (
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/statemachine"
)

type Outcome string

const (
	OutcomeAwaitingCounterpart Outcome = "awaiting_counterpart"
	OutcomeCompleted           Outcome = "completed"
	OutcomeFailed              Outcome = "failed"
	OutcomeNeedsReview         Outcome = "needs_review"
)

// Fold combines two success flags. It is symmetric in its arguments.
func Fold(a, b bool) Outcome {
	switch {
	case a && b:
		return OutcomeCompleted
	case !a && !b:
		return OutcomeFailed
	default:
		return OutcomeNeedsReview
	}
}

// Evaluate considers the latest report of each participant. Reports from anyone else are ignored.
func Evaluate(participants []int64, reports []models.ValidationReport) Outcome {
	latest := make(map[int64]models.ValidationReport, len(participants))
	for _, r := range reports {
		if !isParticipant(participants, r.UserID) {
			continue
		}
		if prev, ok := latest[r.UserID]; ok && !r.UpdatedAt.After(prev.UpdatedAt) {
			continue
		}
		latest[r.UserID] = r
	}

	if len(participants) != 2 || len(latest) < 2 {
		return OutcomeAwaitingCounterpart
	}

	a, aok := latest[participants[0]]
	b, bok := latest[participants[1]]
	if !aok || !bok {
		return OutcomeAwaitingCounterpart
	}
	return Fold(a.WasSuccessful, b.WasSuccessful)
}

func isParticipant(participants []int64, userID int64) bool {
	for _, p := range participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Action maps a resolved outcome to its state machine action.
func (o Outcome) Action() (statemachine.Action, bool) {
	switch o {
	case OutcomeCompleted:
		return statemachine.ActionConsensusComplete, true
	case OutcomeFailed:
		return statemachine.ActionConsensusFail, true
	case OutcomeNeedsReview:
		return statemachine.ActionConsensusReview, true
	}
	return "", false
}

// Status is the exchange status an outcome resolves to.
func (o Outcome) Status() (models.ExchangeStatus, bool) {
	switch o {
	case OutcomeCompleted:
		return models.ExchangeStatusCompleted, true
	case OutcomeFailed:
		return models.ExchangeStatusFailed, true
	case OutcomeNeedsReview:
		return models.ExchangeStatusNeedsReview, true
	}
	return "", false
}

// Intents returns the side effects owed for an outcome on the resolved exchange.
func (o Outcome) Intents(e *models.Exchange) []models.Intent {
	switch o {
	case OutcomeCompleted:
		return models.SettlementIntents(e)
	case OutcomeFailed:
		return models.ReleaseIntents(e)
	case OutcomeNeedsReview:
		return models.ReviewIntents(e)
	}
	return nil
}
