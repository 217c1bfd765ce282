// Package handlers exposes the negotiation and validation services over HTTP. Side effects
// are dispatched only after the service call has committed.
package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/internal/services/settlement"
	appctx "github.com/Ramsey-B/fern/pkg/context"
	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
)

// Settler runs the side effects of a committed write.
type Settler interface {
	Dispatch(ctx context.Context, intents []models.Intent) []settlement.Warning
}

// Envelope wraps a mutation result with the side effects that failed after commit.
type Envelope struct {
	Data     any                  `json:"data"`
	Warnings []settlement.Warning `json:"warnings,omitempty"`
}

// ParseUUID parses a UUID from a path parameter
func ParseUUID(c echo.Context, param string) (uuid.UUID, error) {
	raw := c.Param(param)
	if raw == "" {
		return uuid.Nil, fernerrors.InvalidRequest("missing %s", param).With("field", param)
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fernerrors.InvalidRequest("invalid %s: must be a valid UUID", param).With("field", param)
	}

	return id, nil
}

// CallerID returns the internal user id resolved by the identity middleware.
func CallerID(c echo.Context) (int64, error) {
	userID, ok := appctx.GetUserID(c.Request().Context())
	if !ok {
		return 0, fernerrors.Unauthenticated("authentication required")
	}
	return userID, nil
}

// decode binds the request body without validating it. Payload rules are checked by the
// services once the caller is known to be allowed to act.
func decode[T any](c echo.Context) (T, error) {
	var v T
	if err := c.Bind(&v); err != nil {
		return v, fernerrors.InvalidRequest("invalid request body")
	}
	return v, nil
}

// SuccessResponse returns a 200 OK with data
func SuccessResponse(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, Envelope{Data: data})
}

// settle dispatches intents under the handler's span and writes data with any warnings.
func settle(ctx context.Context, c echo.Context, settler Settler, status int, data any, intents []models.Intent) error {
	warnings := settler.Dispatch(ctx, intents)
	return c.JSON(status, Envelope{Data: data, Warnings: warnings})
}
