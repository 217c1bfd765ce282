package models_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/fern/pkg/models"
)

func TestExchange_Roles(t *testing.T) {
	e := &models.Exchange{ProposerID: 1, ReceiverID: 2}

	assert.Equal(t, models.RoleProposer, e.RoleOf(1))
	assert.Equal(t, models.RoleReceiver, e.RoleOf(2))
	assert.Equal(t, models.RoleNone, e.RoleOf(3))
	assert.Equal(t, int64(2), e.Counterpart(1))
	assert.Equal(t, int64(0), e.Counterpart(3))
}

func TestExchange_ProductIDs(t *testing.T) {
	requested := uuid.New()
	offered := uuid.New()

	assert.Equal(t, []uuid.UUID{requested}, (&models.Exchange{RequestedProductID: &requested}).ProductIDs())
	assert.Equal(t, []uuid.UUID{requested, offered},
		(&models.Exchange{RequestedProductID: &requested, OfferedProductID: &offered}).ProductIDs())
	assert.Equal(t, []uuid.UUID{offered}, (&models.Exchange{OfferedProductID: &offered}).ProductIDs())
	assert.Empty(t, (&models.Exchange{}).ProductIDs())
}

func TestExchangeChanges_ApplyTo(t *testing.T) {
	reason := "changed my mind"
	amount := 10.0
	e := &models.Exchange{RejectionReason: &reason}

	models.ExchangeChanges{AdditionalAmount: &amount, ClearRejection: true}.ApplyTo(e)

	assert.Nil(t, e.RejectionReason)
	assert.Equal(t, 10.0, *e.AdditionalAmount)
}

func TestSettlementIntents(t *testing.T) {
	offered := uuid.New()
	requested := uuid.New()
	e := &models.Exchange{ID: uuid.New(), ProposerID: 1, ReceiverID: 2, RequestedProductID: &requested, OfferedProductID: &offered}

	var recounts, products, notifies int
	for _, intent := range models.SettlementIntents(e) {
		switch i := intent.(type) {
		case models.RecountReputation:
			recounts++
		case models.SetProductStatus:
			products++
			assert.Equal(t, models.ProductStatusExchanged, i.Status)
		case models.Notify:
			notifies++
		}
	}

	assert.Equal(t, 2, recounts)
	assert.Equal(t, 2, products)
	assert.Equal(t, 2, notifies)
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, models.ExchangeStatusPending.Terminal())
	assert.False(t, models.ExchangeStatusInProgress.Terminal())
	assert.True(t, models.ExchangeStatusCompleted.Terminal())
	assert.True(t, models.ExchangeStatusNeedsReview.Terminal())
}
