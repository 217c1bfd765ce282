package utils

import (
	"github.com/labstack/echo/v4"

	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
)

// BindRequest decodes the request into T and checks its `validate` tags.
func BindRequest[T any](c echo.Context) (T, error) {
	var v T

	if err := c.Bind(&v); err != nil {
		return v, fernerrors.InvalidRequest("malformed request: %v", bindMessage(err))
	}

	if v, err := Validate(v); err != nil {
		return v, fernerrors.InvalidRequest("%s", err.Error()).With("field", InvalidField(err))
	}

	return v, nil
}

func bindMessage(err error) any {
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Message
	}
	return err
}
