package models_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
)

func ptr[T any](v T) *T { return &v }

func TestProposalDraft_BuildTerms(t *testing.T) {
	meetingAt := time.Date(2026, 11, 2, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		draft   models.ProposalDraft
		want    models.ProposalTerms
		wantErr string
	}{
		{
			name:  "price",
			draft: models.ProposalDraft{Kind: models.ProposalKindPrice, Description: "add cash", Price: ptr(50000.0)},
			want:  models.PriceTerms{Price: 50000},
		},
		{
			name:    "price without amount",
			draft:   models.ProposalDraft{Kind: models.ProposalKindPrice, Description: "add cash"},
			wantErr: "price",
		},
		{
			name:    "price must be positive",
			draft:   models.ProposalDraft{Kind: models.ProposalKindPrice, Description: "add cash", Price: ptr(-1.0)},
			wantErr: "price",
		},
		{
			name: "meeting",
			draft: models.ProposalDraft{
				Kind: models.ProposalKindMeeting, Description: "meet", MeetingDate: &meetingAt, MeetingPlace: ptr("Central Park"),
			},
			want: models.MeetingTerms{Date: meetingAt, Place: "Central Park"},
		},
		{
			name:    "meeting without place",
			draft:   models.ProposalDraft{Kind: models.ProposalKindMeeting, Description: "meet", MeetingDate: &meetingAt},
			wantErr: "meeting place",
		},
		{
			name:    "meeting without date",
			draft:   models.ProposalDraft{Kind: models.ProposalKindMeeting, Description: "meet", MeetingPlace: ptr("Central Park")},
			wantErr: "meeting date",
		},
		{
			name:  "conditions",
			draft: models.ProposalDraft{Kind: models.ProposalKindConditions, Description: "terms", Conditions: ptr("box included")},
			want:  models.ConditionsTerms{Conditions: ptr("box included")},
		},
		{
			name:  "other",
			draft: models.ProposalDraft{Kind: models.ProposalKindOther, Description: "hello"},
			want:  models.OtherTerms{},
		},
		{
			name:    "missing description",
			draft:   models.ProposalDraft{Kind: models.ProposalKindOther},
			wantErr: "description",
		},
		{
			name:    "unknown kind",
			draft:   models.ProposalDraft{Kind: "barter", Description: "x"},
			wantErr: "unknown proposal kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			terms, err := tt.draft.BuildTerms()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, fernerrors.Is(err, fernerrors.CodeInvalidProposal))
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, terms)
		})
	}
}

func TestProposal_TermsRoundTrip(t *testing.T) {
	meetingAt := time.Date(2026, 11, 2, 15, 0, 0, 0, time.UTC)
	terms := []models.ProposalTerms{
		models.PriceTerms{Price: 12.5},
		models.MeetingTerms{Date: meetingAt, Place: "Library", Notes: ptr("north entrance")},
		models.ConditionsTerms{Conditions: ptr("cash only")},
		models.ExchangeTermsTerms{Conditions: ptr("swap both items")},
		models.OtherTerms{},
	}

	for _, term := range terms {
		t.Run(string(term.Kind()), func(t *testing.T) {
			p := &models.Proposal{ID: uuid.New()}
			p.SetTerms(term)

			assert.Equal(t, term.Kind(), p.Kind)
			assert.Equal(t, term, p.Terms())
		})
	}
}

func TestProposalTerms_Apply(t *testing.T) {
	meetingAt := time.Date(2026, 11, 2, 15, 0, 0, 0, time.UTC)

	t.Run("price sets additional amount", func(t *testing.T) {
		var changes models.ExchangeChanges
		models.PriceTerms{Price: 50000}.Apply(&changes)

		require.NotNil(t, changes.AdditionalAmount)
		assert.Equal(t, 50000.0, *changes.AdditionalAmount)
		assert.Nil(t, changes.MeetingDate)
	})

	t.Run("meeting copies date place and notes", func(t *testing.T) {
		var changes models.ExchangeChanges
		models.MeetingTerms{Date: meetingAt, Place: "Library", Notes: ptr("bring charger")}.Apply(&changes)

		require.NotNil(t, changes.MeetingDate)
		assert.True(t, meetingAt.Equal(*changes.MeetingDate))
		assert.Equal(t, "Library", *changes.MeetingPlace)
		assert.Equal(t, "bring charger", *changes.MeetingNotes)
		assert.Nil(t, changes.AdditionalAmount)
	})

	t.Run("conditions without text leaves exchange untouched", func(t *testing.T) {
		var changes models.ExchangeChanges
		models.ConditionsTerms{}.Apply(&changes)

		assert.Equal(t, models.ExchangeChanges{}, changes)
	})
}

func TestProposalDecision_Status(t *testing.T) {
	status, ok := models.DecisionCounter.Status()
	assert.True(t, ok)
	assert.Equal(t, models.ProposalStatusCounterOffered, status)

	_, ok = models.ProposalDecision("maybe").Status()
	assert.False(t, ok)
}
