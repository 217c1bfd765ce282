// Package context carries request-scoped caller identity and request ids.
package context

import "context"

type key int

const (
	requestIDKey key = iota
	subjectKey
	userIDKey
)

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

// SetSubject stores the external identity (token subject or test header) of the caller.
func SetSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey, subject)
}

func GetSubject(ctx context.Context) string {
	value, _ := ctx.Value(subjectKey).(string)
	return value
}

// SetUserID stores the resolved internal user id of the caller.
func SetUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserID returns the internal user id, false when the caller was never resolved.
func GetUserID(ctx context.Context) (int64, bool) {
	value, ok := ctx.Value(userIDKey).(int64)
	if !ok || value == 0 {
		return 0, false
	}
	return value, true
}
