package statemachine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/statemachine"
)

func TestNext_LegalTransitions(t *testing.T) {
	tests := []struct {
		from   models.ExchangeStatus
		action statemachine.Action
		role   models.Role
		to     models.ExchangeStatus
	}{
		{models.ExchangeStatusPending, statemachine.ActionAccept, models.RoleReceiver, models.ExchangeStatusAccepted},
		{models.ExchangeStatusPending, statemachine.ActionReject, models.RoleReceiver, models.ExchangeStatusRejected},
		{models.ExchangeStatusPending, statemachine.ActionCancel, models.RoleProposer, models.ExchangeStatusCancelled},
		{models.ExchangeStatusAccepted, statemachine.ActionCancel, models.RoleReceiver, models.ExchangeStatusCancelled},
		{models.ExchangeStatusAccepted, statemachine.ActionComplete, models.RoleProposer, models.ExchangeStatusCompleted},
		{models.ExchangeStatusPending, statemachine.ActionApplyTerms, models.RoleReceiver, models.ExchangeStatusInProgress},
		{models.ExchangeStatusInProgress, statemachine.ActionApplyTerms, models.RoleProposer, models.ExchangeStatusInProgress},
		{models.ExchangeStatusInProgress, statemachine.ActionConsensusComplete, models.RoleSystem, models.ExchangeStatusCompleted},
		{models.ExchangeStatusAccepted, statemachine.ActionConsensusFail, models.RoleSystem, models.ExchangeStatusFailed},
		{models.ExchangeStatusInProgress, statemachine.ActionConsensusReview, models.RoleSystem, models.ExchangeStatusNeedsReview},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.action), func(t *testing.T) {
			to, err := statemachine.Next(tt.from, tt.action, tt.role)
			require.NoError(t, err)
			assert.Equal(t, tt.to, to)
		})
	}
}

func TestNext_IllegalTransitions(t *testing.T) {
	tests := []struct {
		name   string
		from   models.ExchangeStatus
		action statemachine.Action
		role   models.Role
		code   fernerrors.Code
	}{
		{"proposer cannot accept", models.ExchangeStatusPending, statemachine.ActionAccept, models.RoleProposer, fernerrors.CodeForbidden},
		{"proposer cannot reject", models.ExchangeStatusPending, statemachine.ActionReject, models.RoleProposer, fernerrors.CodeForbidden},
		{"accept twice", models.ExchangeStatusAccepted, statemachine.ActionAccept, models.RoleReceiver, fernerrors.CodeInvalidState},
		{"complete from pending", models.ExchangeStatusPending, statemachine.ActionComplete, models.RoleProposer, fernerrors.CodeInvalidState},
		{"complete twice", models.ExchangeStatusCompleted, statemachine.ActionComplete, models.RoleProposer, fernerrors.CodeInvalidState},
		{"cancel in progress", models.ExchangeStatusInProgress, statemachine.ActionCancel, models.RoleProposer, fernerrors.CodeInvalidState},
		{"stranger cancels", models.ExchangeStatusPending, statemachine.ActionCancel, models.RoleNone, fernerrors.CodeAccessDenied},
		{"user forces consensus", models.ExchangeStatusInProgress, statemachine.ActionConsensusComplete, models.RoleProposer, fernerrors.CodeForbidden},
		{"apply terms to completed", models.ExchangeStatusCompleted, statemachine.ActionApplyTerms, models.RoleProposer, fernerrors.CodeInvalidState},
		{"consensus on pending", models.ExchangeStatusPending, statemachine.ActionConsensusFail, models.RoleSystem, fernerrors.CodeInvalidState},
		{"unknown action", models.ExchangeStatusPending, statemachine.Action("teleport"), models.RoleSystem, fernerrors.CodeInvalidState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := statemachine.Next(tt.from, tt.action, tt.role)
			require.Error(t, err)
			assert.Equal(t, tt.code, fernerrors.CodeOf(err))
		})
	}
}

func TestTerminalStatesHaveNoExit(t *testing.T) {
	terminal := []models.ExchangeStatus{
		models.ExchangeStatusRejected,
		models.ExchangeStatusCancelled,
		models.ExchangeStatusCompleted,
		models.ExchangeStatusFailed,
		models.ExchangeStatusNeedsReview,
	}
	actions := []statemachine.Action{
		statemachine.ActionAccept, statemachine.ActionReject, statemachine.ActionCancel, statemachine.ActionComplete,
		statemachine.ActionApplyTerms, statemachine.ActionConsensusComplete, statemachine.ActionConsensusFail,
		statemachine.ActionConsensusReview,
	}

	for _, status := range terminal {
		for _, action := range actions {
			rule, ok := statemachine.Lookup(action)
			require.True(t, ok)
			assert.NotContains(t, rule.From, status, "%s must not leave %s", action, status)
		}
	}
}

func TestValidationWindow(t *testing.T) {
	assert.True(t, statemachine.InValidationWindow(models.ExchangeStatusAccepted))
	assert.True(t, statemachine.InValidationWindow(models.ExchangeStatusInProgress))
	assert.False(t, statemachine.InValidationWindow(models.ExchangeStatusPending))
	assert.False(t, statemachine.InValidationWindow(models.ExchangeStatusNeedsReview))

	sources := statemachine.Sources(statemachine.ActionConsensusComplete)
	sources[0] = models.ExchangeStatusPending
	assert.True(t, statemachine.InValidationWindow(models.ExchangeStatusAccepted), "Sources must return a copy")
}
