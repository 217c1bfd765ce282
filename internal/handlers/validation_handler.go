package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/internal/services/validation"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

type ValidationService interface {
	Submit(ctx context.Context, callerID int64, exchangeID uuid.UUID, input validation.ReportInput) (*validation.SubmitResult, []models.Intent, error)
	List(ctx context.Context, callerID int64, exchangeID uuid.UUID) ([]models.ValidationReport, error)
}

// ValidationHandler handles participants' exchange reports
type ValidationHandler struct {
	service ValidationService
	settler Settler
}

func NewValidationHandler(service ValidationService, settler Settler) *ValidationHandler {
	return &ValidationHandler{service: service, settler: settler}
}

// RegisterRoutes registers the validation routes
func (h *ValidationHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/exchanges/:id/validations", h.Submit)
	g.GET("/exchanges/:id/validations", h.List)
}

// Submit handles POST /exchanges/:id/validations
func (h *ValidationHandler) Submit(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "handlers.SubmitValidationReport")
	defer span.End()

	callerID, err := CallerID(c)
	if err != nil {
		return err
	}
	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	input, err := decode[validation.ReportInput](c)
	if err != nil {
		return err
	}

	result, intents, err := h.service.Submit(ctx, callerID, id, input)
	if err != nil {
		return err
	}

	return settle(ctx, c, h.settler, http.StatusOK, result, intents)
}

// List handles GET /exchanges/:id/validations
func (h *ValidationHandler) List(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "handlers.ListValidationReports")
	defer span.End()

	callerID, err := CallerID(c)
	if err != nil {
		return err
	}
	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	reports, err := h.service.List(ctx, callerID, id)
	if err != nil {
		return err
	}
	if reports == nil {
		reports = []models.ValidationReport{}
	}

	return SuccessResponse(c, reports)
}
