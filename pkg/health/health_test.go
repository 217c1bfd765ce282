package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/health"
)

func get(t *testing.T, e *echo.Echo, path string) (int, health.Response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var body health.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestReadiness(t *testing.T) {
	e := echo.New()
	checker := health.NewChecker("test")
	checker.AddCritical("postgres", health.PingFunc(func(context.Context) error { return nil }))
	checker.RegisterRoutes(e)

	code, body := get(t, e, "/api/v1/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, health.StatusUnhealthy, body.Status)

	checker.SetReady(true)
	code, body = get(t, e, "/api/v1/health/ready")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, health.StatusHealthy, body.Checks["postgres"].Status)
}

func TestHealth_CriticalFailureIsUnhealthy(t *testing.T) {
	e := echo.New()
	checker := health.NewChecker("test")
	checker.AddCritical("postgres", health.PingFunc(func(context.Context) error { return errors.New("connection refused") }))
	checker.AddOptional("redis", health.PingFunc(func(context.Context) error { return nil }))
	checker.RegisterRoutes(e)

	code, body := get(t, e, "/api/v1/health")

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, health.StatusUnhealthy, body.Status)
	assert.Equal(t, "connection refused", body.Checks["postgres"].Message)
	assert.True(t, body.Checks["postgres"].Critical)

	code, _ = get(t, e, "/api/v1/health/live")
	assert.Equal(t, http.StatusOK, code)
}

func TestHealth_SideEffectOutageDegrades(t *testing.T) {
	e := echo.New()
	checker := health.NewChecker("test")
	checker.AddCritical("postgres", health.PingFunc(func(context.Context) error { return nil }))
	checker.AddOptional("kafka", health.PingFunc(func(context.Context) error { return errors.New("no broker") }))
	checker.RegisterRoutes(e)

	code, body := get(t, e, "/api/v1/health")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, health.StatusDegraded, body.Status)
	assert.Equal(t, health.StatusUnhealthy, body.Checks["kafka"].Status)
}
