package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sserr "github.com/neoplatform/neo-commons/pkg/errors"
)

func newRunningService(t *testing.T) *BaseService {
	t.Helper()
	svc, err := NewBaseServiceBuilder("test-service", "1.0.0").Build()
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background()))
	return svc
}

// ===========================================================================
// Start / Stop Tests
// ===========================================================================

func TestBaseService_StartStop(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, err := NewBaseServiceBuilder("test-service", "1.0.0").Build()
	require.NoError(t, err)
	assert.Equal(t, StateUnknown, svc.State())

	require.NoError(t, svc.Start(ctx))
	assert.Equal(t, StateRunning, svc.State())

	require.NoError(t, svc.Stop(ctx))
	assert.Equal(t, StateStopped, svc.State())
}

func TestBaseService_StartTwiceConflicts(t *testing.T) {
	t.Parallel()
	svc := newRunningService(t)

	err := svc.Start(context.Background())
	require.Error(t, err)
	e, ok := sserr.AsError(err)
	require.True(t, ok)
	assert.Equal(t, sserr.CodeConflict, e.Code)
}

func TestBaseService_StopIsIdempotentInTerminalState(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newRunningService(t)

	require.NoError(t, svc.Stop(ctx))
	require.NoError(t, svc.Stop(ctx), "stop in a terminal state is a no-op")
	assert.Equal(t, StateStopped, svc.State())
}

func TestBaseService_RestartAfterStop(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newRunningService(t)

	require.NoError(t, svc.Stop(ctx))
	require.NoError(t, svc.Start(ctx), "a stopped service can be restarted")
	assert.Equal(t, StateRunning, svc.State())
}

func TestBaseService_StartHookRuns(t *testing.T) {
	t.Parallel()

	var started bool
	svc, err := NewBaseServiceBuilder("test-service", "1.0.0").
		WithOnStart(func(ctx context.Context) error {
			started = true
			return nil
		}).
		Build()
	require.NoError(t, err)

	require.NoError(t, svc.Start(context.Background()))
	assert.True(t, started)
}

func TestBaseService_StartHookFailureTransitionsToFailed(t *testing.T) {
	t.Parallel()

	svc, err := NewBaseServiceBuilder("test-service", "1.0.0").
		WithOnStart(func(ctx context.Context) error {
			return sserr.New(sserr.CodeUnavailable, "database unreachable")
		}).
		Build()
	require.NoError(t, err)

	err = svc.Start(context.Background())
	require.Error(t, err)
	assert.True(t, sserr.IsInternal(err))
	assert.Equal(t, StateFailed, svc.State())
}

func TestBaseService_StopHookFailureTransitionsToFailed(t *testing.T) {
	t.Parallel()

	svc, err := NewBaseServiceBuilder("test-service", "1.0.0").
		WithOnStop(func(ctx context.Context) error {
			return sserr.New(sserr.CodeInternal, "flush failed")
		}).
		Build()
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background()))

	err = svc.Stop(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateFailed, svc.State())

	require.NoError(t, svc.Start(context.Background()),
		"a failed service can be restarted")
	assert.Equal(t, StateRunning, svc.State())
}

func TestBaseService_StartWithCanceledContext(t *testing.T) {
	t.Parallel()

	svc, err := NewBaseServiceBuilder("test-service", "1.0.0").Build()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = svc.Start(ctx)
	require.Error(t, err)
	assert.True(t, sserr.IsTimeout(err))
	assert.Equal(t, StateUnknown, svc.State(), "state is untouched when the context is already canceled")
}

// ===========================================================================
// Pause / Resume Tests
// ===========================================================================

func TestBaseService_PauseResume(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newRunningService(t)

	require.NoError(t, svc.Pause(ctx))
	assert.Equal(t, StatePaused, svc.State())

	require.NoError(t, svc.Resume(ctx))
	assert.Equal(t, StateRunning, svc.State())
}

func TestBaseService_PauseWhenNotRunningConflicts(t *testing.T) {
	t.Parallel()

	svc, err := NewBaseServiceBuilder("test-service", "1.0.0").Build()
	require.NoError(t, err)

	err = svc.Pause(context.Background())
	require.Error(t, err)
	e, ok := sserr.AsError(err)
	require.True(t, ok)
	assert.Equal(t, sserr.CodeConflict, e.Code)
}

// ===========================================================================
// Health Tests
// ===========================================================================

func TestBaseService_HealthReflectsState(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, err := NewBaseServiceBuilder("test-service", "1.0.0").Build()
	require.NoError(t, err)

	err = svc.Health(ctx)
	require.Error(t, err, "a service that has not started is not healthy")
	assert.True(t, sserr.IsUnavailable(err))

	require.NoError(t, svc.Start(ctx))
	assert.NoError(t, svc.Health(ctx))

	require.NoError(t, svc.Stop(ctx))
	assert.Error(t, svc.Health(ctx))
}

func TestBaseService_HealthProbesDependencies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	depErr := sserr.New(sserr.CodeUnavailable, "connection refused")
	healthy := true
	svc, err := NewBaseServiceBuilder("test-service", "1.0.0").
		WithDependency(Dependency{Name: "redis", Check: func(ctx context.Context) error {
			if !healthy {
				return depErr
			}
			return nil
		}}).
		Build()
	require.NoError(t, err)
	require.NoError(t, svc.Start(ctx))

	assert.NoError(t, svc.Health(ctx))

	healthy = false
	err = svc.Health(ctx)
	require.Error(t, err)
	e, ok := sserr.AsError(err)
	require.True(t, ok)
	assert.Equal(t, sserr.CodeUnavailableDependency, e.Code)
	assert.Contains(t, e.Message, "redis")
}

// ===========================================================================
// Info and State Handler Tests
// ===========================================================================

func TestBaseService_Info(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, err := NewBaseServiceBuilder("authgate", "2.1.0").
		WithDependency(Dependency{Name: "postgres", Check: func(ctx context.Context) error { return nil }}).
		WithDependency(Dependency{Name: "redis", Check: func(ctx context.Context) error { return nil }}).
		Build()
	require.NoError(t, err)

	info := svc.Info()
	assert.Equal(t, "authgate", info.Name)
	assert.Equal(t, "2.1.0", info.Version)
	assert.Equal(t, StateUnknown, info.State)
	assert.Equal(t, []string{"postgres", "redis"}, info.Dependencies)
	assert.Nil(t, info.StartedAt)

	require.NoError(t, svc.Start(ctx))
	info = svc.Info()
	assert.Equal(t, StateRunning, info.State)
	require.NotNil(t, info.StartedAt)
	assert.WithinDuration(t, time.Now(), *info.StartedAt, 2*time.Second)

	require.NoError(t, svc.Stop(ctx))
	info = svc.Info()
	assert.Nil(t, info.StartedAt, "stop clears the start timestamp")
	assert.Zero(t, info.Uptime)
}

func TestBaseService_StateChangeHandlersObserveTransitions(t *testing.T) {
	t.Parallel()

	type transition struct{ old, new State }
	var seen []transition
	svc, err := NewBaseServiceBuilder("test-service", "1.0.0").
		OnStateChange(func(old, new State) {
			seen = append(seen, transition{old, new})
		}).
		Build()
	require.NoError(t, err)

	require.NoError(t, svc.Start(context.Background()))

	require.Len(t, seen, 2)
	assert.Equal(t, transition{StateUnknown, StateStarting}, seen[0])
	assert.Equal(t, transition{StateStarting, StateRunning}, seen[1])
}

func TestBaseService_PanickingHandlerDoesNotBlockTransition(t *testing.T) {
	t.Parallel()

	svc, err := NewBaseServiceBuilder("test-service", "1.0.0").
		OnStateChange(func(old, new State) {
			panic("handler bug")
		}).
		Build()
	require.NoError(t, err)

	require.NoError(t, svc.Start(context.Background()))
	assert.Equal(t, StateRunning, svc.State())
}

func TestBaseService_SetStateRejectsInvalidTransition(t *testing.T) {
	t.Parallel()

	svc, err := NewBaseServiceBuilder("test-service", "1.0.0").Build()
	require.NoError(t, err)

	err = svc.SetState(StateRunning)
	require.Error(t, err)
	e, ok := sserr.AsError(err)
	require.True(t, ok)
	assert.Equal(t, sserr.CodeConflict, e.Code)
	assert.Equal(t, StateUnknown, svc.State())
}
