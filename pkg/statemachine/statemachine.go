// Package statemachine holds the single transition table of the exchange lifecycle.
// Handlers, proposal acceptance and consensus all go through it.
package statemachine

import (
	"slices"

	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
)

type Action string

const (
	ActionAccept            Action = "accept"
	ActionReject            Action = "reject"
	ActionCancel            Action = "cancel"
	ActionComplete          Action = "complete"
	ActionApplyTerms        Action = "apply_terms"
	ActionConsensusComplete Action = "consensus_complete"
	ActionConsensusFail     Action = "consensus_fail"
	ActionConsensusReview   Action = "consensus_review"
)

// Actor says who may perform an action.
type Actor string

const (
	ActorReceiver    Actor = "receiver"
	ActorParticipant Actor = "participant"
	ActorSystem      Actor = "system"
)

type Rule struct {
	From  []models.ExchangeStatus
	To    models.ExchangeStatus
	Actor Actor
}

var (
	postAcceptance = []models.ExchangeStatus{models.ExchangeStatusAccepted, models.ExchangeStatusInProgress}

	rules = map[Action]Rule{
		ActionAccept: {
			From:  []models.ExchangeStatus{models.ExchangeStatusPending},
			To:    models.ExchangeStatusAccepted,
			Actor: ActorReceiver,
		},
		ActionReject: {
			From:  []models.ExchangeStatus{models.ExchangeStatusPending},
			To:    models.ExchangeStatusRejected,
			Actor: ActorReceiver,
		},
		ActionCancel: {
			From:  []models.ExchangeStatus{models.ExchangeStatusPending, models.ExchangeStatusAccepted},
			To:    models.ExchangeStatusCancelled,
			Actor: ActorParticipant,
		},
		ActionComplete: {
			From:  []models.ExchangeStatus{models.ExchangeStatusAccepted},
			To:    models.ExchangeStatusCompleted,
			Actor: ActorParticipant,
		},
		ActionApplyTerms: {
			From:  []models.ExchangeStatus{models.ExchangeStatusPending, models.ExchangeStatusAccepted, models.ExchangeStatusInProgress},
			To:    models.ExchangeStatusInProgress,
			Actor: ActorParticipant,
		},
		ActionConsensusComplete: {From: postAcceptance, To: models.ExchangeStatusCompleted, Actor: ActorSystem},
		ActionConsensusFail:     {From: postAcceptance, To: models.ExchangeStatusFailed, Actor: ActorSystem},
		ActionConsensusReview:   {From: postAcceptance, To: models.ExchangeStatusNeedsReview, Actor: ActorSystem},
	}
)

// Lookup returns the rule for action.
func Lookup(action Action) (Rule, bool) {
	r, ok := rules[action]
	return r, ok
}

// Sources lists the states action may leave. Used as the guard of the conditional write.
func Sources(action Action) []models.ExchangeStatus {
	return slices.Clone(rules[action].From)
}

// ValidationWindow lists the states in which participants may file validation reports.
func ValidationWindow() []models.ExchangeStatus {
	return slices.Clone(postAcceptance)
}

func InValidationWindow(status models.ExchangeStatus) bool {
	return slices.Contains(postAcceptance, status)
}

// Next validates that role may perform action from current and returns the resulting state.
func Next(current models.ExchangeStatus, action Action, role models.Role) (models.ExchangeStatus, error) {
	rule, ok := rules[action]
	if !ok {
		return "", fernerrors.InvalidState("unknown exchange action %q", action)
	}

	if !slices.Contains(rule.From, current) {
		return "", fernerrors.InvalidState("cannot %s an exchange that is %s", action, current).
			With("status", string(current)).
			With("action", string(action))
	}

	switch rule.Actor {
	case ActorReceiver:
		if role != models.RoleReceiver {
			return "", fernerrors.Forbidden("only the receiving participant may %s this exchange", action)
		}
	case ActorParticipant:
		if role != models.RoleProposer && role != models.RoleReceiver {
			return "", fernerrors.AccessDenied("only exchange participants may %s this exchange", action)
		}
	case ActorSystem:
		if role != models.RoleSystem {
			return "", fernerrors.Forbidden("%s is reserved for validation consensus", action)
		}
	}

	return rule.To, nil
}
