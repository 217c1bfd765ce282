package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
)

func TestExchangeError_StatusCodes(t *testing.T) {
	tests := []struct {
		err    *fernerrors.ExchangeError
		status int
	}{
		{fernerrors.InvalidProposal("price is required"), http.StatusBadRequest},
		{fernerrors.InvalidReport("rating out of range"), http.StatusBadRequest},
		{fernerrors.Unauthenticated("no caller"), http.StatusUnauthorized},
		{fernerrors.AccessDenied("not a participant"), http.StatusForbidden},
		{fernerrors.Forbidden("only the recipient may respond"), http.StatusForbidden},
		{fernerrors.NotFound("proposal %d", 1), http.StatusNotFound},
		{fernerrors.AlreadyResolved("proposal resolved"), http.StatusConflict},
		{fernerrors.InvalidState("pending -> completed"), http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Code), func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.StatusCode())

			herr := tt.err.ToHTTPError()
			assert.Equal(t, tt.status, httperror.GetStatusCode(herr))
			assert.Equal(t, string(tt.err.Code), herr.Meta["code"])
		})
	}
}

func TestIs_FindsWrappedError(t *testing.T) {
	err := fmt.Errorf("responding: %w", fernerrors.AlreadyResolved("proposal %s", "p1"))

	assert.True(t, fernerrors.Is(err, fernerrors.CodeAlreadyResolved))
	assert.False(t, fernerrors.Is(err, fernerrors.CodeInvalidState))
	assert.Equal(t, fernerrors.CodeAlreadyResolved, fernerrors.CodeOf(err))
	assert.Equal(t, fernerrors.Code(""), fernerrors.CodeOf(stderrors.New("plain")))
}

func TestDependencyFailure_KeepsCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := fernerrors.DependencyFailure("notification", cause)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, "notification", err.Meta["dependency"])
	assert.Contains(t, err.Error(), "connection refused")
}
