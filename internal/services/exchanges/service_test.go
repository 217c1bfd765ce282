package exchanges_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/internal/services/exchanges"
	"github.com/Ramsey-B/fern/internal/testutil"
	"github.com/Ramsey-B/fern/internal/testutil/memstore"
	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
)

type fixture struct {
	store        *memstore.Store
	svc          *exchanges.Service
	alice, bob   models.User
	mallory      models.User
	conversation models.Conversation
	bike, guitar models.Product
}

// newFixture: alice wants bob's bike and offers her guitar.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	f := &fixture{store: store}
	f.alice = store.AddUser("alice", "Alice")
	f.bob = store.AddUser("bob", "Bob")
	f.mallory = store.AddUser("mallory", "Mallory")
	f.bike = store.AddProduct(f.bob.ID, "Bike")
	f.guitar = store.AddProduct(f.alice.ID, "Guitar")
	f.conversation = store.AddConversation(f.alice.ID, f.bob.ID, f.bike.ID, &f.guitar.ID)
	f.svc = exchanges.NewService(testutil.Logger(), store, store.Exchanges(), store.Conversations())
	return f
}

func (f *fixture) propose(t *testing.T) models.Exchange {
	t.Helper()
	e, _, err := f.svc.Propose(context.Background(), f.alice.ID, f.conversation.ID, exchanges.Draft{})
	require.NoError(t, err)
	return *e
}

func (f *fixture) withStatus(t *testing.T, status models.ExchangeStatus) models.Exchange {
	t.Helper()
	return f.store.PutExchange(models.Exchange{
		ConversationID:     f.conversation.ID,
		ProposerID:         f.alice.ID,
		ReceiverID:         f.bob.ID,
		OfferedProductID:   &f.guitar.ID,
		RequestedProductID: &f.bike.ID,
		Status:             status,
	})
}

func intentNames(intents []models.Intent) []string {
	names := make([]string, 0, len(intents))
	for _, in := range intents {
		names = append(names, in.IntentName())
	}
	return names
}

func TestPropose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	message := "Swap?"

	e, intents, err := f.svc.Propose(ctx, f.alice.ID, f.conversation.ID, exchanges.Draft{Message: &message})
	require.NoError(t, err)

	assert.Equal(t, models.ExchangeStatusPending, e.Status)
	assert.Equal(t, f.alice.ID, e.ProposerID)
	assert.Equal(t, f.bob.ID, e.ReceiverID)
	assert.Equal(t, &f.bike.ID, e.RequestedProductID)
	require.NotNil(t, e.OfferedProductID)
	assert.Equal(t, f.guitar.ID, *e.OfferedProductID)
	assert.Contains(t, intentNames(intents), "publish_event")

	conversation, _ := f.store.Conversation(f.conversation.ID)
	require.NotNil(t, conversation.ExchangeID)
	assert.Equal(t, e.ID, *conversation.ExchangeID)

	t.Run("second exchange on the conversation is rejected", func(t *testing.T) {
		_, _, err := f.svc.Propose(ctx, f.bob.ID, f.conversation.ID, exchanges.Draft{})
		assert.Equal(t, fernerrors.CodeInvalidState, fernerrors.CodeOf(err))
	})

	t.Run("outsider is denied", func(t *testing.T) {
		other := f.store.AddConversation(f.alice.ID, f.bob.ID, f.bike.ID, nil)
		_, _, err := f.svc.Propose(ctx, f.mallory.ID, other.ID, exchanges.Draft{})
		assert.Equal(t, fernerrors.CodeAccessDenied, fernerrors.CodeOf(err))
	})
}

func TestAcceptAndReject(t *testing.T) {
	ctx := context.Background()

	t.Run("receiver accepts", func(t *testing.T) {
		f := newFixture(t)
		e := f.propose(t)

		updated, intents, err := f.svc.Accept(ctx, f.bob.ID, e.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ExchangeStatusAccepted, updated.Status)
		assert.NotNil(t, updated.RespondedAt)
		assert.Equal(t, []string{"notify", "post_system_message", "publish_event"}, intentNames(intents))

		notify := intents[0].(models.Notify)
		assert.Equal(t, f.alice.ID, notify.Notification.UserID)
	})

	t.Run("proposer cannot accept own exchange", func(t *testing.T) {
		f := newFixture(t)
		e := f.propose(t)

		_, _, err := f.svc.Accept(ctx, f.alice.ID, e.ID)
		assert.Equal(t, fernerrors.CodeForbidden, fernerrors.CodeOf(err))

		stored, _ := f.store.Exchange(e.ID)
		assert.Equal(t, models.ExchangeStatusPending, stored.Status)
	})

	t.Run("receiver rejects with reason", func(t *testing.T) {
		f := newFixture(t)
		e := f.propose(t)
		reason := "Found another bike"

		updated, _, err := f.svc.Reject(ctx, f.bob.ID, e.ID, &reason)
		require.NoError(t, err)
		assert.Equal(t, models.ExchangeStatusRejected, updated.Status)
		require.NotNil(t, updated.RejectionReason)
		assert.Equal(t, reason, *updated.RejectionReason)
	})

	t.Run("accepting a rejected exchange is an invalid state", func(t *testing.T) {
		f := newFixture(t)
		e := f.withStatus(t, models.ExchangeStatusRejected)

		_, _, err := f.svc.Accept(ctx, f.bob.ID, e.ID)
		assert.Equal(t, fernerrors.CodeInvalidState, fernerrors.CodeOf(err))
	})
}

func TestCancel(t *testing.T) {
	ctx := context.Background()

	for _, status := range []models.ExchangeStatus{models.ExchangeStatusPending, models.ExchangeStatusAccepted} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t)
			e := f.withStatus(t, status)

			updated, intents, err := f.svc.Cancel(ctx, f.alice.ID, e.ID)
			require.NoError(t, err)
			assert.Equal(t, models.ExchangeStatusCancelled, updated.Status)
			assert.Equal(t, f.bob.ID, intents[0].(models.Notify).Notification.UserID)
		})
	}

	t.Run("in progress cannot be cancelled", func(t *testing.T) {
		f := newFixture(t)
		e := f.withStatus(t, models.ExchangeStatusInProgress)

		_, _, err := f.svc.Cancel(ctx, f.bob.ID, e.ID)
		assert.Equal(t, fernerrors.CodeInvalidState, fernerrors.CodeOf(err))
	})
}

func TestComplete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	e := f.withStatus(t, models.ExchangeStatusAccepted)

	updated, intents, err := f.svc.Complete(ctx, f.alice.ID, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExchangeStatusCompleted, updated.Status)
	assert.NotNil(t, updated.CompletedAt)

	names := intentNames(intents)
	assert.Contains(t, names, "recount_reputation")
	assert.Contains(t, names, "set_product_status")

	_, intents, err = f.svc.Complete(ctx, f.bob.ID, e.ID)
	assert.Equal(t, fernerrors.CodeInvalidState, fernerrors.CodeOf(err))
	assert.Empty(t, intents)
}

func TestNonParticipantIsAlwaysDenied(t *testing.T) {
	ctx := context.Background()

	for _, status := range []models.ExchangeStatus{
		models.ExchangeStatusPending, models.ExchangeStatusAccepted, models.ExchangeStatusInProgress, models.ExchangeStatusCompleted,
	} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t)
			e := f.withStatus(t, status)
			reason := "nope"

			calls := map[string]func() error{
				"accept":   func() error { _, _, err := f.svc.Accept(ctx, f.mallory.ID, e.ID); return err },
				"reject":   func() error { _, _, err := f.svc.Reject(ctx, f.mallory.ID, e.ID, &reason); return err },
				"cancel":   func() error { _, _, err := f.svc.Cancel(ctx, f.mallory.ID, e.ID); return err },
				"complete": func() error { _, _, err := f.svc.Complete(ctx, f.mallory.ID, e.ID); return err },
				"get":      func() error { _, err := f.svc.Get(ctx, f.mallory.ID, e.ID); return err },
			}
			for name, call := range calls {
				assert.Equal(t, fernerrors.CodeAccessDenied, fernerrors.CodeOf(call()), name)
			}

			stored, _ := f.store.Exchange(e.ID)
			assert.Equal(t, status, stored.Status)
		})
	}
}

func TestConcurrentCompletionSettlesOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	e := f.withStatus(t, models.ExchangeStatusAccepted)

	const callers = 8
	var wg sync.WaitGroup
	results := make(chan []models.Intent, callers)
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		caller := f.alice.ID
		if i%2 == 1 {
			caller = f.bob.ID
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, intents, err := f.svc.Complete(ctx, caller, e.ID)
			if err != nil {
				errs <- err
				return
			}
			results <- intents
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	assert.Len(t, results, 1)
	for err := range errs {
		assert.Equal(t, fernerrors.CodeInvalidState, fernerrors.CodeOf(err))
	}
}

func TestList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	e := f.withStatus(t, models.ExchangeStatusNeedsReview)

	status := models.ExchangeStatusNeedsReview
	list, err := f.svc.List(ctx, f.bob.ID, &status)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, e.ID, list[0].ID)

	list, err = f.svc.List(ctx, f.mallory.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, list)

	bogus := models.ExchangeStatus("teleported")
	_, err = f.svc.List(ctx, f.bob.ID, &bogus)
	assert.Equal(t, fernerrors.CodeInvalidRequest, fernerrors.CodeOf(err))

	_, err = f.svc.Get(ctx, f.alice.ID, uuid.New())
	assert.Equal(t, fernerrors.CodeNotFound, fernerrors.CodeOf(err))
}
