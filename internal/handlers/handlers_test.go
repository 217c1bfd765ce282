package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/Ramsey-B/fern/internal/handlers"
	"github.com/Ramsey-B/fern/internal/services/exchanges"
	"github.com/Ramsey-B/fern/internal/services/proposals"
	"github.com/Ramsey-B/fern/internal/services/settlement"
	"github.com/Ramsey-B/fern/internal/services/validation"
	"github.com/Ramsey-B/fern/internal/testutil"
	"github.com/Ramsey-B/fern/internal/testutil/memstore"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/reputation"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

type fixture struct {
	e            *echo.Echo
	store        *memstore.Store
	outbox       *testutil.Outbox
	conversation models.Conversation
	requested    models.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	catalog, err := reputation.DefaultCatalog()
	require.NoError(t, err)

	logger := testutil.Logger()
	store := memstore.New()
	outbox := &testutil.Outbox{}

	alice := store.AddUser("alice", "Alice")
	bob := store.AddUser("bob", "Bob")
	store.AddUser("carol", "Carol")
	requested := store.AddProduct(bob.ID, "Bike")
	conversation := store.AddConversation(alice.ID, bob.ID, requested.ID, nil)

	exchangeService := exchanges.NewService(logger, store, store.Exchanges(), store.Conversations())
	proposalService := proposals.NewService(logger, store, store.Proposals(), store.Conversations(), exchangeService)
	validationService := validation.NewService(logger, store, store.Reports(), store.Exchanges())
	dispatcher := settlement.NewDispatcher(logger, settlement.Dependencies{
		Products:   store.Products(),
		Counter:    store.Exchanges(),
		Reputation: store.Users(),
		Messages:   store.ChatMessages(),
		Notifier:   outbox,
		Publisher:  outbox,
		Catalog:    catalog,
	})

	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(middleware.Context())
	api := e.Group("/api/v1", middleware.TestAuth(), middleware.Identity(logger, store.Users()))
	handlers.NewProposalHandler(logger, proposalService, dispatcher).RegisterRoutes(api)
	handlers.NewExchangeHandler(logger, exchangeService, dispatcher).RegisterRoutes(api)
	handlers.NewValidationHandler(validationService, dispatcher).RegisterRoutes(api)

	return &fixture{e: e, store: store, outbox: outbox, conversation: conversation, requested: requested}
}

type envelope struct {
	Data     json.RawMessage      `json:"data"`
	Warnings []settlement.Warning `json:"warnings"`
}

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Meta    map[string]any `json:"meta"`
}

func (f *fixture) do(t *testing.T, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if user != "" {
		req.Header.Set(middleware.HeaderUserID, user)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) (T, []settlement.Warning) {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	var data T
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data, env.Warnings
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func (f *fixture) proposalsPath() string {
	return "/api/v1/conversations/" + f.conversation.ID.String() + "/proposals"
}

func TestNegotiateAndSettleOverHTTP(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, f.proposalsPath(), "alice",
		`{"proposal_type":"price","description":"Cash for the bike","proposed_price":50000}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	proposal, warnings := decode[models.Proposal](t, rec)
	assert.Empty(t, warnings)
	assert.Equal(t, models.ProposalStatusPending, proposal.Status)

	rec = f.do(t, http.MethodPost, f.proposalsPath()+"/"+proposal.ID.String()+"/respond", "bob", `{"response":"accept"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	answered, _ := decode[proposals.RespondResult](t, rec)
	require.NotNil(t, answered.Exchange)
	assert.Equal(t, models.ExchangeStatusInProgress, answered.Exchange.Status)
	exchangePath := "/api/v1/exchanges/" + answered.Exchange.ID.String()

	rec = f.do(t, http.MethodPost, f.proposalsPath()+"/"+proposal.ID.String()+"/respond", "bob", `{"response":"accept"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_resolved", errorOf(t, rec).Code)

	rec = f.do(t, http.MethodPost, exchangePath+"/validations", "alice", `{"was_successful":true,"rating":5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first, _ := decode[validation.SubmitResult](t, rec)
	assert.Equal(t, "awaiting_counterpart", string(first.Outcome))

	rec = f.do(t, http.MethodPost, exchangePath+"/validations", "bob", `{"was_successful":true,"rating":4}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	second, warnings := decode[validation.SubmitResult](t, rec)
	assert.Empty(t, warnings)
	assert.Equal(t, models.ExchangeStatusCompleted, second.Exchange.Status)

	product, _ := f.store.Product(f.requested.ID)
	assert.Equal(t, models.ProductStatusExchanged, product.Status)

	rec = f.do(t, http.MethodGet, exchangePath+"/validations", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	reports, _ := decode[[]models.ValidationReport](t, rec)
	assert.Len(t, reports, 2)

	rec = f.do(t, http.MethodGet, "/api/v1/exchanges?status=completed", "bob", "")
	require.Equal(t, http.StatusOK, rec.Code)
	mine, _ := decode[[]models.Exchange](t, rec)
	require.Len(t, mine, 1)
	assert.Equal(t, answered.Exchange.ID, mine[0].ID)
}

func TestExchangeLifecycleOverHTTP(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/conversations/"+f.conversation.ID.String()+"/exchange", "alice",
		`{"message":"Swap?","additional_amount":10}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	exchange, _ := decode[models.Exchange](t, rec)
	assert.Equal(t, models.ExchangeStatusPending, exchange.Status)
	path := "/api/v1/exchanges/" + exchange.ID.String()

	rec = f.do(t, http.MethodPost, path+"/accept", "alice", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, path+"/reject", "bob", `{"reason":"Changed my mind"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rejected, _ := decode[models.Exchange](t, rec)
	assert.Equal(t, models.ExchangeStatusRejected, rejected.Status)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, "Changed my mind", *rejected.RejectionReason)

	rec = f.do(t, http.MethodPost, path+"/cancel", "alice", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_state", errorOf(t, rec).Code)

	rec = f.do(t, http.MethodGet, path, "bob", "")
	require.Equal(t, http.StatusOK, rec.Code)
	current, _ := decode[models.Exchange](t, rec)
	assert.Equal(t, models.ExchangeStatusRejected, current.Status)
}

func TestAuthorizationWinsOverPayloadErrors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		user   string
		body   string
		status int
		code   string
	}{
		{"outsider with bad payload", "carol", `{"proposal_type":"barter","description":""}`, http.StatusForbidden, "access_denied"},
		{"participant with bad payload", "alice", `{"proposal_type":"barter","description":"x"}`, http.StatusBadRequest, "invalid_proposal"},
		{"participant with bad link", "alice", `{"proposal_type":"other","description":"x","attachment_url":"nope"}`, http.StatusBadRequest, "invalid_proposal"},
		{"anonymous", "", `{}`, http.StatusUnauthorized, "unauthenticated"},
		{"unknown user", "mallory", `{}`, http.StatusUnauthorized, "unauthenticated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, f.proposalsPath(), tt.user, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, errorOf(t, rec).Code)
		})
	}
}

func TestBadPathAndQueryParameters(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/exchanges/not-a-uuid", "alice", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "id", errorOf(t, rec).Meta["field"])

	rec = f.do(t, http.MethodGet, "/api/v1/exchanges?status=teleported", "alice", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "status", errorOf(t, rec).Meta["field"])
}

func TestSideEffectFailuresAreWarnings(t *testing.T) {
	f := newFixture(t)
	f.outbox.NotifyErr = errors.New("redis unavailable")

	rec := f.do(t, http.MethodPost, f.proposalsPath(), "alice", `{"proposal_type":"other","description":"Coffee?"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	proposal, warnings := decode[models.Proposal](t, rec)
	assert.Equal(t, models.ProposalStatusPending, proposal.Status)
	require.Len(t, warnings, 1)
	assert.Equal(t, "dependency_failure", warnings[0].Code)
	assert.Equal(t, "notifications", warnings[0].Dependency)

	stored, ok := f.store.Proposal(proposal.ID)
	require.True(t, ok)
	assert.Equal(t, models.ProposalStatusPending, stored.Status)
}

// spanSettler records the name of the span active when intents are dispatched.
type spanSettler struct {
	spans []string
}

func (s *spanSettler) Dispatch(ctx context.Context, _ []models.Intent) []settlement.Warning {
	if span, ok := trace.SpanFromContext(ctx).(sdktrace.ReadOnlySpan); ok {
		s.spans = append(s.spans, span.Name())
	}
	return nil
}

func TestSettlementRunsUnderHandlerSpan(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	tracing.SetTracer(tp.Tracer("handlers-test"))
	t.Cleanup(func() {
		tracing.SetTracer(nil)
		_ = tp.Shutdown(context.Background())
	})

	logger := testutil.Logger()
	store := memstore.New()
	alice := store.AddUser("alice", "Alice")
	bob := store.AddUser("bob", "Bob")
	bike := store.AddProduct(bob.ID, "Bike")
	conversation := store.AddConversation(alice.ID, bob.ID, bike.ID, nil)

	exchangeService := exchanges.NewService(logger, store, store.Exchanges(), store.Conversations())
	proposalService := proposals.NewService(logger, store, store.Proposals(), store.Conversations(), exchangeService)
	settler := &spanSettler{}

	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(logger)
	api := e.Group("/api/v1", middleware.TestAuth(), middleware.Identity(logger, store.Users()))
	handlers.NewProposalHandler(logger, proposalService, settler).RegisterRoutes(api)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations/"+conversation.ID.String()+"/proposals",
		strings.NewReader(`{"proposal_type":"price","description":"Cash for the bike","proposed_price":50000}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(middleware.HeaderUserID, "alice")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"handlers.CreateProposal"}, settler.spans)
}
