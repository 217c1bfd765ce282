package consensus_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/fern/pkg/consensus"
	"github.com/Ramsey-B/fern/pkg/models"
)

func report(userID int64, ok bool, at time.Time) models.ValidationReport {
	return models.ValidationReport{ExchangeID: uuid.Nil, UserID: userID, WasSuccessful: ok, SubmittedAt: at, UpdatedAt: at}
}

func TestFold_IsSymmetric(t *testing.T) {
	for _, a := range []bool{true, false} {
		for _, b := range []bool{true, false} {
			assert.Equal(t, consensus.Fold(a, b), consensus.Fold(b, a))
		}
	}
}

func TestFold(t *testing.T) {
	assert.Equal(t, consensus.OutcomeCompleted, consensus.Fold(true, true))
	assert.Equal(t, consensus.OutcomeFailed, consensus.Fold(false, false))
	assert.Equal(t, consensus.OutcomeNeedsReview, consensus.Fold(true, false))
}

func TestEvaluate(t *testing.T) {
	now := time.Now().UTC()
	participants := []int64{1, 2}

	tests := []struct {
		name    string
		reports []models.ValidationReport
		want    consensus.Outcome
	}{
		{"no reports", nil, consensus.OutcomeAwaitingCounterpart},
		{"one report", []models.ValidationReport{report(1, true, now)}, consensus.OutcomeAwaitingCounterpart},
		{
			"same user twice",
			[]models.ValidationReport{report(1, true, now), report(1, false, now.Add(time.Second))},
			consensus.OutcomeAwaitingCounterpart,
		},
		{
			"stranger does not count",
			[]models.ValidationReport{report(1, true, now), report(3, true, now)},
			consensus.OutcomeAwaitingCounterpart,
		},
		{"both succeed", []models.ValidationReport{report(1, true, now), report(2, true, now)}, consensus.OutcomeCompleted},
		{"both fail", []models.ValidationReport{report(2, false, now), report(1, false, now)}, consensus.OutcomeFailed},
		{"disagree", []models.ValidationReport{report(1, true, now), report(2, false, now)}, consensus.OutcomeNeedsReview},
		{
			"latest report per user wins",
			[]models.ValidationReport{
				report(1, false, now),
				report(2, true, now),
				report(1, true, now.Add(time.Minute)),
			},
			consensus.OutcomeCompleted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, consensus.Evaluate(participants, tt.reports))
		})
	}
}

func TestEvaluate_OrderIndependent(t *testing.T) {
	now := time.Now().UTC()
	a := report(1, true, now)
	b := report(2, false, now.Add(time.Second))

	assert.Equal(t,
		consensus.Evaluate([]int64{1, 2}, []models.ValidationReport{a, b}),
		consensus.Evaluate([]int64{1, 2}, []models.ValidationReport{b, a}),
	)
}

func TestOutcome_Mapping(t *testing.T) {
	status, ok := consensus.OutcomeNeedsReview.Status()
	assert.True(t, ok)
	assert.Equal(t, models.ExchangeStatusNeedsReview, status)

	_, ok = consensus.OutcomeAwaitingCounterpart.Action()
	assert.False(t, ok)
	assert.Nil(t, consensus.OutcomeAwaitingCounterpart.Intents(&models.Exchange{}))
}
