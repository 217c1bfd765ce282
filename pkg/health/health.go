// Package health reports process liveness and dependency readiness.
//
// Postgres holds every primary write, so it is critical. Redis and Kafka only carry
// side effects that degrade into response warnings, so their failure marks the service
// degraded while it keeps serving.
package health

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

const checkTimeout = 5 * time.Second

type CheckResult struct {
	Status   Status `json:"status"`
	Critical bool   `json:"critical"`
	Message  string `json:"message,omitempty"`
	Latency  string `json:"latency,omitempty"`
}

type Response struct {
	Status     Status                 `json:"status"`
	Version    string                 `json:"version,omitempty"`
	Uptime     string                 `json:"uptime,omitempty"`
	Checks     map[string]CheckResult `json:"checks,omitempty"`
	ReportedAt time.Time              `json:"reported_at"`
}

// Pinger is any dependency that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type check struct {
	name     string
	pinger   Pinger
	critical bool
}

type Checker struct {
	checks  []check
	started time.Time
	version string
	ready   atomic.Bool
}

func NewChecker(version string) *Checker {
	return &Checker{started: time.Now(), version: version}
}

// AddCritical registers a dependency the service cannot serve without.
func (c *Checker) AddCritical(name string, p Pinger) *Checker {
	c.checks = append(c.checks, check{name: name, pinger: p, critical: true})
	return c
}

// AddOptional registers a dependency whose outage only degrades the service.
func (c *Checker) AddOptional(name string, p Pinger) *Checker {
	c.checks = append(c.checks, check{name: name, pinger: p})
	return c
}

func (c *Checker) SetReady(ready bool) { c.ready.Store(ready) }

func (c *Checker) IsReady() bool { return c.ready.Load() }

// LivenessHandler reports that the process is up.
func (c *Checker) LivenessHandler(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.response(StatusHealthy, nil))
}

// ReadinessHandler fails until startup has finished, then reports dependency health.
func (c *Checker) ReadinessHandler(ctx echo.Context) error {
	if !c.IsReady() {
		return ctx.JSON(http.StatusServiceUnavailable, c.response(StatusUnhealthy, map[string]CheckResult{
			"startup": {Status: StatusUnhealthy, Critical: true, Message: "service is still starting up"},
		}))
	}
	return c.HealthHandler(ctx)
}

// HealthHandler pings every dependency. Only a critical failure makes it return 503.
func (c *Checker) HealthHandler(ctx echo.Context) error {
	results := c.run(ctx.Request().Context())

	overall := StatusHealthy
	for _, r := range results {
		if r.Status != StatusUnhealthy {
			continue
		}
		if r.Critical {
			overall = StatusUnhealthy
			break
		}
		overall = StatusDegraded
	}

	code := http.StatusOK
	if overall == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	return ctx.JSON(code, c.response(overall, results))
}

func (c *Checker) response(status Status, checks map[string]CheckResult) Response {
	return Response{
		Status:     status,
		Version:    c.version,
		Uptime:     time.Since(c.started).Round(time.Second).String(),
		Checks:     checks,
		ReportedAt: time.Now().UTC(),
	}
}

func (c *Checker) run(ctx context.Context) map[string]CheckResult {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]CheckResult, len(c.checks))
	)
	for _, chk := range c.checks {
		wg.Add(1)
		go func(chk check) {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()

			start := time.Now()
			result := CheckResult{Status: StatusHealthy, Critical: chk.critical}
			if err := chk.pinger.Ping(checkCtx); err != nil {
				result.Status = StatusUnhealthy
				result.Message = err.Error()
			}
			result.Latency = time.Since(start).String()

			mu.Lock()
			results[chk.name] = result
			mu.Unlock()
		}(chk)
	}
	wg.Wait()
	return results
}

// RegisterRoutes registers health check routes under /api/v1
func (c *Checker) RegisterRoutes(e *echo.Echo) {
	health := e.Group("/api/v1/health")
	health.GET("", c.HealthHandler)
	health.GET("/live", c.LivenessHandler)
	health.GET("/ready", c.ReadinessHandler)
}
