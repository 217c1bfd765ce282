package handlers

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/internal/services/exchanges"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/utils"
)

type ExchangeService interface {
	Propose(ctx context.Context, callerID int64, conversationID uuid.UUID, draft exchanges.Draft) (*models.Exchange, []models.Intent, error)
	Get(ctx context.Context, callerID int64, id uuid.UUID) (*models.Exchange, error)
	List(ctx context.Context, callerID int64, status *models.ExchangeStatus) ([]models.Exchange, error)
	Accept(ctx context.Context, callerID int64, id uuid.UUID) (*models.Exchange, []models.Intent, error)
	Reject(ctx context.Context, callerID int64, id uuid.UUID, reason *string) (*models.Exchange, []models.Intent, error)
	Cancel(ctx context.Context, callerID int64, id uuid.UUID) (*models.Exchange, []models.Intent, error)
	Complete(ctx context.Context, callerID int64, id uuid.UUID) (*models.Exchange, []models.Intent, error)
}

// ExchangeHandler handles exchange lifecycle requests
type ExchangeHandler struct {
	logger  ectologger.Logger
	service ExchangeService
	settler Settler
}

func NewExchangeHandler(logger ectologger.Logger, service ExchangeService, settler Settler) *ExchangeHandler {
	return &ExchangeHandler{logger: logger, service: service, settler: settler}
}

// ListExchangesRequest filters the caller's exchanges
type ListExchangesRequest struct {
	Status string `json:"status" query:"status" validate:"omitempty,oneof=pending accepted rejected cancelled in_progress completed failed needs_review"`
}

type RejectRequest struct {
	Reason *string `json:"reason"`
}

// RegisterRoutes registers the exchange routes
func (h *ExchangeHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/conversations/:conversation_id/exchange", h.Propose)

	exchanges := g.Group("/exchanges")
	exchanges.GET("", h.List)
	exchanges.GET("/:id", h.Get)
	exchanges.POST("/:id/accept", h.Accept)
	exchanges.POST("/:id/reject", h.Reject)
	exchanges.POST("/:id/cancel", h.Cancel)
	exchanges.POST("/:id/complete", h.Complete)
}

// Propose handles POST /conversations/:conversation_id/exchange
func (h *ExchangeHandler) Propose(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "handlers.ProposeExchange")
	defer span.End()

	callerID, err := CallerID(c)
	if err != nil {
		return err
	}
	conversationID, err := ParseUUID(c, "conversation_id")
	if err != nil {
		return err
	}
	draft, err := decode[exchanges.Draft](c)
	if err != nil {
		return err
	}

	exchange, intents, err := h.service.Propose(ctx, callerID, conversationID, draft)
	if err != nil {
		return err
	}

	return settle(ctx, c, h.settler, http.StatusCreated, exchange, intents)
}

// Get handles GET /exchanges/:id
func (h *ExchangeHandler) Get(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "handlers.GetExchange")
	defer span.End()

	callerID, err := CallerID(c)
	if err != nil {
		return err
	}
	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	exchange, err := h.service.Get(ctx, callerID, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, exchange)
}

// List handles GET /exchanges
func (h *ExchangeHandler) List(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "handlers.ListExchanges")
	defer span.End()

	callerID, err := CallerID(c)
	if err != nil {
		return err
	}
	req, err := utils.BindRequest[ListExchangesRequest](c)
	if err != nil {
		return err
	}

	var status *models.ExchangeStatus
	if req.Status != "" {
		s := models.ExchangeStatus(req.Status)
		status = &s
	}

	list, err := h.service.List(ctx, callerID, status)
	if err != nil {
		return err
	}
	if list == nil {
		list = []models.Exchange{}
	}

	return SuccessResponse(c, list)
}

// Accept handles POST /exchanges/:id/accept
func (h *ExchangeHandler) Accept(c echo.Context) error {
	return h.transition(c, "handlers.AcceptExchange", h.service.Accept)
}

// Reject handles POST /exchanges/:id/reject
func (h *ExchangeHandler) Reject(c echo.Context) error {
	return h.transition(c, "handlers.RejectExchange", func(ctx context.Context, callerID int64, id uuid.UUID) (*models.Exchange, []models.Intent, error) {
		req, err := decode[RejectRequest](c)
		if err != nil {
			return nil, nil, err
		}
		return h.service.Reject(ctx, callerID, id, req.Reason)
	})
}

// Cancel handles POST /exchanges/:id/cancel
func (h *ExchangeHandler) Cancel(c echo.Context) error {
	return h.transition(c, "handlers.CancelExchange", h.service.Cancel)
}

// Complete handles POST /exchanges/:id/complete
func (h *ExchangeHandler) Complete(c echo.Context) error {
	return h.transition(c, "handlers.CompleteExchange", h.service.Complete)
}

type transitionFunc func(ctx context.Context, callerID int64, id uuid.UUID) (*models.Exchange, []models.Intent, error)

func (h *ExchangeHandler) transition(c echo.Context, spanName string, fn transitionFunc) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), spanName)
	defer span.End()

	callerID, err := CallerID(c)
	if err != nil {
		return err
	}
	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	exchange, intents, err := fn(ctx, callerID, id)
	if err != nil {
		return err
	}

	h.logger.WithContext(ctx).WithFields(map[string]any{
		"exchange_id": exchange.ID,
		"status":      exchange.Status,
	}).Debug("exchange updated")

	return settle(ctx, c, h.settler, http.StatusOK, exchange, intents)
}
