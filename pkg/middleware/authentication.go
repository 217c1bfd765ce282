package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/fern/pkg/context"
	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// HeaderUserID carries the caller's subject when authentication is disabled.
const HeaderUserID = "X-User-ID"

// TokenVerifier turns a raw bearer token into the caller's subject.
type TokenVerifier interface {
	VerifySubject(ctx context.Context, rawToken string) (string, error)
}

type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the issuer and builds a verifier for clientID.
func NewOIDCVerifier(ctx context.Context, issuer, clientID string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, err
	}
	return &OIDCVerifier{verifier: provider.Verifier(&oidc.Config{ClientID: clientID})}, nil
}

func (v *OIDCVerifier) VerifySubject(ctx context.Context, rawToken string) (string, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return "", err
	}
	return idToken.Subject, nil
}

// Authentication verifies the bearer token and stores its subject on the request context.
func Authentication(logger ectologger.Logger, verifier TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, span := tracing.StartSpan(c.Request().Context(), "middleware.Authentication")
			defer span.End()

			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				logger.WithContext(ctx).Warn("request is missing bearer token")
				return fernerrors.Unauthenticated("missing bearer token")
			}

			verifyCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			subject, err := verifier.VerifySubject(verifyCtx, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				logger.WithContext(ctx).WithError(err).Warn("token is invalid")
				return fernerrors.Unauthenticated("invalid token")
			}

			c.SetRequest(c.Request().WithContext(appctx.SetSubject(c.Request().Context(), subject)))
			return next(c)
		}
	}
}

// TestAuth takes the subject from the X-User-ID header. Only for AUTH_ENABLED=false.
func TestAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if subject := c.Request().Header.Get(HeaderUserID); subject != "" {
				c.SetRequest(c.Request().WithContext(appctx.SetSubject(c.Request().Context(), subject)))
			}
			return next(c)
		}
	}
}

// IdentityResolver maps an external subject to an internal user id.
type IdentityResolver interface {
	ResolveUserID(ctx context.Context, subject string) (int64, error)
}

// Identity resolves the authenticated subject to the internal user id. Requests without
// a resolvable caller are rejected as unauthenticated.
func Identity(logger ectologger.Logger, resolver IdentityResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			subject := appctx.GetSubject(ctx)
			if subject == "" {
				return fernerrors.Unauthenticated("authentication required")
			}

			userID, err := resolver.ResolveUserID(ctx, subject)
			if err != nil {
				if fernerrors.Is(err, fernerrors.CodeNotFound) {
					logger.WithContext(ctx).WithField("subject", subject).Warn("no user for authenticated subject")
					return fernerrors.Unauthenticated("unknown user")
				}
				return err
			}

			c.SetRequest(c.Request().WithContext(appctx.SetUserID(ctx, userID)))
			return next(c)
		}
	}
}
