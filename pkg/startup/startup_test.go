package startup_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/pkg/startup"
)

func TestStartup_StartsInDependencyOrder(t *testing.T) {
	var started []string
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			started = append(started, name)
			return nil
		}
	}

	s := startup.NewStartup(zapadapter.NewZapEctoLogger(zap.NewNop(), nil), 1)
	s.AddDependency(&startup.Dependency{Name: "http", Requires: []string{"postgres", "redis"}, StartFunc: record("http")})
	s.AddDependency(&startup.Dependency{Name: "postgres", StartFunc: record("postgres")})
	s.AddDependency(&startup.Dependency{Name: "redis", StartFunc: record("redis")})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []string{"postgres", "redis", "http"}, started)
	assert.Equal(t, startup.StartupStatusStarted, s.Status("http"))
}

func TestStartup_RetriesUntilDependencyComesUp(t *testing.T) {
	calls := 0
	s := startup.NewStartup(zapadapter.NewZapEctoLogger(zap.NewNop(), nil), 3).WithBackoffUnit(time.Millisecond)
	s.AddDependency(&startup.Dependency{Name: "kafka", StartFunc: func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	}})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 3, calls)
}

func TestStartup_GivesUp(t *testing.T) {
	s := startup.NewStartup(zapadapter.NewZapEctoLogger(zap.NewNop(), nil), 2).WithBackoffUnit(time.Millisecond)
	s.AddDependency(&startup.Dependency{Name: "postgres", StartFunc: func(context.Context) error {
		return errors.New("connection refused")
	}})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "startup failed after 2 attempts")
	assert.Equal(t, startup.StartupStatusFailed, s.Status("postgres"))
}

func TestStartup_StopsInReverseOrder(t *testing.T) {
	var stopped []string
	stop := func(name string) func(context.Context) error {
		return func(context.Context) error {
			stopped = append(stopped, name)
			return nil
		}
	}

	s := startup.NewStartup(zapadapter.NewZapEctoLogger(zap.NewNop(), nil), 1)
	s.AddDependency(&startup.Dependency{Name: "postgres", StopFunc: stop("postgres")})
	s.AddDependency(&startup.Dependency{Name: "http", Requires: []string{"postgres"}, StopFunc: stop("http")})

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, []string{"http", "postgres"}, stopped)
}
