package handlers

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/internal/services/proposals"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

type ProposalService interface {
	Create(ctx context.Context, callerID int64, conversationID uuid.UUID, draft models.ProposalDraft) (*models.Proposal, []models.Intent, error)
	List(ctx context.Context, callerID int64, conversationID uuid.UUID) ([]models.Proposal, error)
	Respond(ctx context.Context, callerID int64, conversationID, proposalID uuid.UUID, resp proposals.Response) (*proposals.RespondResult, []models.Intent, error)
}

// ProposalHandler handles the negotiation ledger of a conversation
type ProposalHandler struct {
	logger  ectologger.Logger
	service ProposalService
	settler Settler
}

func NewProposalHandler(logger ectologger.Logger, service ProposalService, settler Settler) *ProposalHandler {
	return &ProposalHandler{logger: logger, service: service, settler: settler}
}

// RespondRequest is the request body for answering a proposal
type RespondRequest struct {
	Response        models.ProposalDecision `json:"response"`
	ResponseMessage *string                 `json:"response_message"`
	CounterProposal *models.ProposalDraft   `json:"counter_proposal"`
}

// RegisterRoutes registers the proposal routes
func (h *ProposalHandler) RegisterRoutes(g *echo.Group) {
	proposals := g.Group("/conversations/:conversation_id/proposals")
	proposals.POST("", h.Create)
	proposals.GET("", h.List)
	proposals.POST("/:proposal_id/respond", h.Respond)
}

// Create handles POST /conversations/:conversation_id/proposals
func (h *ProposalHandler) Create(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "handlers.CreateProposal")
	defer span.End()

	callerID, err := CallerID(c)
	if err != nil {
		return err
	}
	conversationID, err := ParseUUID(c, "conversation_id")
	if err != nil {
		return err
	}
	draft, err := decode[models.ProposalDraft](c)
	if err != nil {
		return err
	}

	proposal, intents, err := h.service.Create(ctx, callerID, conversationID, draft)
	if err != nil {
		return err
	}

	return settle(ctx, c, h.settler, http.StatusCreated, proposal, intents)
}

// List handles GET /conversations/:conversation_id/proposals
func (h *ProposalHandler) List(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "handlers.ListProposals")
	defer span.End()

	callerID, err := CallerID(c)
	if err != nil {
		return err
	}
	conversationID, err := ParseUUID(c, "conversation_id")
	if err != nil {
		return err
	}

	list, err := h.service.List(ctx, callerID, conversationID)
	if err != nil {
		return err
	}
	if list == nil {
		list = []models.Proposal{}
	}

	return SuccessResponse(c, list)
}

// Respond handles POST /conversations/:conversation_id/proposals/:proposal_id/respond
func (h *ProposalHandler) Respond(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "handlers.RespondToProposal")
	defer span.End()

	callerID, err := CallerID(c)
	if err != nil {
		return err
	}
	conversationID, err := ParseUUID(c, "conversation_id")
	if err != nil {
		return err
	}
	proposalID, err := ParseUUID(c, "proposal_id")
	if err != nil {
		return err
	}
	req, err := decode[RespondRequest](c)
	if err != nil {
		return err
	}

	result, intents, err := h.service.Respond(ctx, callerID, conversationID, proposalID, proposals.Response{
		Decision: req.Response,
		Message:  req.ResponseMessage,
		Counter:  req.CounterProposal,
	})
	if err != nil {
		return err
	}

	h.logger.WithContext(ctx).WithFields(map[string]any{
		"proposal_id": proposalID,
		"status":      result.Proposal.Status,
	}).Debug("proposal answered")

	return settle(ctx, c, h.settler, http.StatusOK, result, intents)
}
