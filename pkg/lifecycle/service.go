package lifecycle

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/neoplatform/neo-commons/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope name for this package.
// It follows the Go module path convention for OTel instrumentation libraries.
const tracerName = "github.com/neoplatform/neo-commons/pkg/lifecycle"

// StateChangeHandler is a callback invoked when a service's lifecycle
// state changes. It receives the previous state and the new state.
//
// Handlers execute synchronously under the service's state mutex during
// [BaseService.SetState]. Implementations must not block for extended
// periods or call lifecycle methods on the same service, as this will
// cause a deadlock. Handlers that panic are recovered and logged without
// preventing the state change.
//
// Typical uses include emitting metrics, flipping readiness probes, and
// triggering alerts on failure transitions.
type StateChangeHandler func(old, new State)

// Hook is a function called during a lifecycle transition (start, stop,
// pause, resume). It receives the caller's context, which may carry
// deadlines, cancellation signals, and identity information.
//
// If a hook returns a non-nil error, the lifecycle transition is aborted
// and the service transitions to [StateFailed]. Hooks should perform
// cleanup on error to avoid leaving resources in an inconsistent state.
//
// Hooks execute outside the service's state mutex, so they may safely
// call read-only methods ([BaseService.State], [BaseService.Info]) on
// the service without causing deadlocks.
type Hook func(ctx context.Context) error

// Service defines the lifecycle contract for long-running components
// built on neo-commons. Every component — an API gateway, a background
// worker, a scheduled job runner — implements this interface to provide
// uniform lifecycle management and health reporting to orchestration
// and deployment tooling.
//
// All methods must be safe for concurrent use by multiple goroutines.
//
// The library provides [BaseService] as a ready-to-use implementation
// with thread-safe state management, OpenTelemetry tracing, dependency
// health checks, and hook support. Concrete services embed or compose
// [BaseService] and register lifecycle hooks via [BaseServiceBuilder]
// to inject component-specific startup and shutdown logic.
//
// Example (concrete service using BaseService):
//
//	type Gateway struct {
//	    *lifecycle.BaseService
//	    server *http.Server
//	}
//
//	func NewGateway(server *http.Server, db *postgres.Client) (*Gateway, error) {
//	    gw := &Gateway{server: server}
//	    base, err := lifecycle.NewBaseServiceBuilder("authgate", "1.0.0").
//	        WithDependency(lifecycle.Dependency{Name: "postgres", Check: db.Health}).
//	        WithOnStart(gw.onStart).
//	        WithOnStop(gw.onStop).
//	        Build()
//	    if err != nil {
//	        return nil, err
//	    }
//	    gw.BaseService = base
//	    return gw, nil
//	}
type Service interface {
	// Name returns the human-readable name of the service (e.g.,
	// "authgate"). Names identify the component, not the instance.
	Name() string

	// Version returns the semantic version of the service
	// implementation (e.g., "1.2.0").
	Version() string

	// Info returns a point-in-time snapshot of the service's identity,
	// state, dependencies, and uptime. The returned [ServiceInfo] is a
	// copy safe to serialize or store.
	Info() ServiceInfo

	// Start begins the service's operation. It transitions the service
	// through [StateStarting] to [StateRunning], executing any
	// registered OnStart hook between the two transitions. If the hook
	// fails, the service transitions to [StateFailed].
	//
	// Start may only be called from [StateUnknown], [StateStopped], or
	// [StateFailed]. Calling Start from any other state returns a
	// [sserr.CodeConflict] error.
	//
	// The context controls the deadline for startup; if the context is
	// canceled, Start returns immediately with a [sserr.CodeTimeout]
	// error.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the service. It transitions the
	// service through [StateStopping] to [StateStopped], executing any
	// registered OnStop hook between the two transitions. If the hook
	// fails, the service transitions to [StateFailed].
	//
	// Stop may be called from [StateRunning], [StatePaused], or
	// [StateStarting]. Calling Stop from a terminal state is a no-op
	// and returns nil. Calling Stop from any other state returns a
	// [sserr.CodeConflict] error.
	Stop(ctx context.Context) error

	// Pause temporarily suspends the service. The service retains its
	// resources but stops accepting new work. It transitions from
	// [StateRunning] to [StatePaused], executing any registered OnPause
	// hook. If the hook fails, the service transitions to [StateFailed].
	//
	// Pause may only be called from [StateRunning]. Calling Pause from
	// any other state returns a [sserr.CodeConflict] error.
	Pause(ctx context.Context) error

	// Resume restores a paused service to [StateRunning]. It
	// transitions from [StatePaused] to [StateRunning], executing any
	// registered OnResume hook. If the hook fails, the service
	// transitions to [StateFailed].
	//
	// Resume may only be called from [StatePaused]. Calling Resume from
	// any other state returns a [sserr.CodeConflict] error.
	Resume(ctx context.Context) error

	// State returns the current lifecycle state of the service.
	State() State

	// Health performs a health check on the service. Returns nil if the
	// service is in [StateRunning] and every registered dependency
	// check passes. Returns a [sserr.CodeUnavailable] error describing
	// the current state otherwise, or a [sserr.CodeUnavailableDependency]
	// error naming the first dependency that failed its check.
	Health(ctx context.Context) error
}

// ServiceInfo provides a point-in-time snapshot of a service's identity,
// state, dependencies, and uptime. It is returned by [Service.Info] and
// is safe to serialize to JSON for readiness endpoints and deployment
// tooling.
//
// The Uptime field is computed at the time Info() is called and reflects
// the elapsed time since the service entered [StateRunning]. It is zero
// if the service has not yet started or has been stopped.
type ServiceInfo struct {
	// Name is the human-readable name of the service.
	Name string `json:"name"`

	// Version is the semantic version of the service implementation.
	Version string `json:"version"`

	// State is the current lifecycle state of the service.
	State State `json:"state"`

	// Dependencies lists the names of the registered dependency checks.
	Dependencies []string `json:"dependencies,omitempty"`

	// StartedAt is the time the service entered StateRunning. Nil if
	// the service has not started or has been stopped.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// Uptime is the elapsed time since the service entered StateRunning.
	// Zero if the service is not currently running.
	Uptime time.Duration `json:"uptime,omitempty"`
}

// BaseService provides a thread-safe base implementation of the
// [Service] interface with lifecycle state management, dependency
// health checks, observer hooks, and OpenTelemetry tracing. It is the
// recommended foundation for long-running components built on this
// library.
//
// A BaseService is safe for concurrent use by multiple goroutines.
// Create one using [BaseServiceBuilder] and share it across the
// application.
//
// BaseService enforces a state machine that prevents invalid lifecycle
// transitions. All state changes are validated against the transition
// matrix defined in [validTransitions]. State change observers
// registered via [BaseServiceBuilder.OnStateChange] are notified
// synchronously on every transition.
//
// Lifecycle hooks (OnStart, OnStop, OnPause, OnResume) execute outside
// the state mutex to prevent deadlocks. If a hook fails, the service
// transitions to [StateFailed] and the error is wrapped with a platform
// error code.
type BaseService struct {
	// Immutable fields — set at construction, never modified. These do
	// not require mutex protection.
	name    string
	version string

	// Mutable fields — protected by mu.
	mu        sync.RWMutex
	state     State
	startedAt *time.Time

	// Dependencies — set at construction, never modified.
	dependencies []Dependency

	// Observability — set at construction, never modified.
	tracer trace.Tracer
	logger *slog.Logger

	// Lifecycle hooks — set at construction via builder, never modified.
	onStart  Hook
	onStop   Hook
	onPause  Hook
	onResume Hook

	// State change observers — set at construction via builder, never modified.
	stateHandlers []StateChangeHandler
}

// Compile-time interface compliance check. This ensures that *BaseService
// satisfies the Service interface at compile time rather than at runtime.
var _ Service = (*BaseService)(nil)

// Name returns the human-readable name of the service. This value is
// immutable after construction.
func (s *BaseService) Name() string {
	return s.name
}

// Version returns the semantic version of the service. This value is
// immutable after construction.
func (s *BaseService) Version() string {
	return s.version
}

// State returns the current lifecycle state of the service. This method
// is safe for concurrent use.
func (s *BaseService) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Info returns a point-in-time snapshot of the service's identity,
// state, dependencies, and uptime. The returned [ServiceInfo] is safe
// to serialize to JSON. This method is safe for concurrent use.
func (s *BaseService) Info() ServiceInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info := ServiceInfo{
		Name:    s.name,
		Version: s.version,
		State:   s.state,
	}

	for _, dep := range s.dependencies {
		info.Dependencies = append(info.Dependencies, dep.Name)
	}

	if s.startedAt != nil && s.state == StateRunning {
		t := *s.startedAt
		info.StartedAt = &t
		info.Uptime = time.Since(t)
	}

	return info
}

// Health performs a health check on the service. Returns nil if the
// service is in [StateRunning] and every registered dependency check
// passes.
//
// If the service is in any other state, Health returns a [*sserr.Error]
// with code [sserr.CodeUnavailable]. If a dependency check fails, Health
// returns a [*sserr.Error] with code [sserr.CodeUnavailableDependency]
// naming the dependency; checks run in registration order and the first
// failure wins.
func (s *BaseService) Health(ctx context.Context) error {
	state := s.State()
	if state != StateRunning {
		return sserr.Newf(sserr.CodeUnavailable,
			"lifecycle: service is not running, current state is %q", state)
	}

	for _, dep := range s.dependencies {
		if err := dep.Check(ctx); err != nil {
			return sserr.Wrapf(err, sserr.CodeUnavailableDependency,
				"lifecycle: dependency %q is unhealthy", dep.Name)
		}
	}
	return nil
}

// SetState transitions the service to the given state after validating
// the transition against the lifecycle state machine. Returns a
// [*sserr.Error] with code [sserr.CodeConflict] if the transition is
// not allowed.
//
// On a successful transition, all registered [StateChangeHandler]
// functions are called synchronously with the old and new state values.
// Handlers execute under the state mutex; they must not call lifecycle
// methods on the same service or block for extended periods.
//
// SetState is exported for use by concrete service implementations that
// need to set state programmatically (e.g., transitioning to
// [StateFailed] when an internal error is detected).
func (s *BaseService) SetState(new State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.state
	if !ValidTransition(old, new) {
		return sserr.Newf(sserr.CodeConflict,
			"lifecycle: invalid state transition from %q to %q", old, new)
	}

	s.state = new

	// Notify state change handlers under the lock to guarantee ordering.
	// Each handler is called in a deferred-recover wrapper to prevent a
	// panicking handler from crashing the service or corrupting state.
	for _, h := range s.stateHandlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("lifecycle: state change handler panicked",
						"panic", r,
						"service", s.name,
						"old_state", string(old),
						"new_state", string(new),
					)
				}
			}()
			h(old, new)
		}()
	}

	return nil
}

// Start begins the service's operation. It transitions the service
// through [StateStarting] to [StateRunning], executing any registered
// OnStart hook between the two transitions.
//
// The context controls the deadline for startup. If the context is
// already canceled, Start returns immediately without modifying state.
//
// If the OnStart hook returns an error, the service transitions to
// [StateFailed] and the error is returned wrapped with
// [sserr.CodeInternal].
func (s *BaseService) Start(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "lifecycle.Start",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("service.name", s.name),
			attribute.String("service.version", s.version),
		),
	)
	defer span.End()

	// Check context before acquiring the lock.
	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return sserr.Wrap(err, sserr.CodeTimeout,
			"lifecycle: start canceled before execution")
	}

	// Transition to Starting.
	if err := s.SetState(StateStarting); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	s.logger.InfoContext(ctx, "lifecycle: starting service",
		"service", s.name,
		"version", s.version,
	)

	// Execute the OnStart hook outside the lock.
	if s.onStart != nil {
		if err := s.onStart(ctx); err != nil {
			s.logger.ErrorContext(ctx, "lifecycle: start hook failed",
				"service", s.name,
				"error", err,
			)
			_ = s.SetState(StateFailed)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return sserr.Wrap(err, sserr.CodeInternal,
				"lifecycle: start hook failed")
		}
	}

	// Transition to Running and record the start timestamp.
	if err := s.SetState(StateRunning); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	now := time.Now().UTC()
	s.mu.Lock()
	s.startedAt = &now
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "lifecycle: service started",
		"service", s.name,
	)
	span.SetStatus(codes.Ok, "")

	return nil
}

// Stop gracefully shuts down the service. It transitions the service
// through [StateStopping] to [StateStopped], executing any registered
// OnStop hook between the two transitions.
//
// If the service is already in a terminal state ([StateStopped] or
// [StateFailed]), Stop is a no-op and returns nil. This makes it safe
// to call Stop multiple times or in a deferred cleanup.
//
// If the OnStop hook returns an error, the service transitions to
// [StateFailed] and the error is returned wrapped with
// [sserr.CodeInternal].
func (s *BaseService) Stop(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "lifecycle.Stop",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("service.name", s.name),
		),
	)
	defer span.End()

	// Terminal states: Stop is a no-op.
	if s.State().IsTerminal() {
		span.SetStatus(codes.Ok, "")
		return nil
	}

	// Check context before proceeding.
	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return sserr.Wrap(err, sserr.CodeTimeout,
			"lifecycle: stop canceled before execution")
	}

	// Transition to Stopping.
	if err := s.SetState(StateStopping); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	s.logger.InfoContext(ctx, "lifecycle: stopping service",
		"service", s.name,
	)

	// Execute the OnStop hook outside the lock.
	if s.onStop != nil {
		if err := s.onStop(ctx); err != nil {
			s.logger.ErrorContext(ctx, "lifecycle: stop hook failed",
				"service", s.name,
				"error", err,
			)
			_ = s.SetState(StateFailed)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return sserr.Wrap(err, sserr.CodeInternal,
				"lifecycle: stop hook failed")
		}
	}

	// Transition to Stopped and clear the start timestamp.
	if err := s.SetState(StateStopped); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	s.mu.Lock()
	s.startedAt = nil
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "lifecycle: service stopped",
		"service", s.name,
	)
	span.SetStatus(codes.Ok, "")

	return nil
}

// Pause temporarily suspends the service. It transitions from
// [StateRunning] to [StatePaused], executing any registered OnPause hook.
//
// If the OnPause hook returns an error, the service transitions to
// [StateFailed] and the error is returned wrapped with
// [sserr.CodeInternal].
func (s *BaseService) Pause(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "lifecycle.Pause",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("service.name", s.name),
		),
	)
	defer span.End()

	// Check context before proceeding.
	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return sserr.Wrap(err, sserr.CodeTimeout,
			"lifecycle: pause canceled before execution")
	}

	// The state machine enforces that only Running -> Paused is valid.
	if err := s.SetState(StatePaused); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	s.logger.InfoContext(ctx, "lifecycle: pausing service",
		"service", s.name,
	)

	// Execute the OnPause hook outside the lock.
	if s.onPause != nil {
		if err := s.onPause(ctx); err != nil {
			s.logger.ErrorContext(ctx, "lifecycle: pause hook failed",
				"service", s.name,
				"error", err,
			)
			_ = s.SetState(StateFailed)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return sserr.Wrap(err, sserr.CodeInternal,
				"lifecycle: pause hook failed")
		}
	}

	s.logger.InfoContext(ctx, "lifecycle: service paused",
		"service", s.name,
	)
	span.SetStatus(codes.Ok, "")

	return nil
}

// Resume restores a paused service to [StateRunning]. It transitions
// from [StatePaused] to [StateRunning], executing any registered
// OnResume hook.
//
// If the OnResume hook returns an error, the service transitions to
// [StateFailed] and the error is returned wrapped with
// [sserr.CodeInternal].
func (s *BaseService) Resume(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "lifecycle.Resume",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("service.name", s.name),
		),
	)
	defer span.End()

	// Check context before proceeding.
	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return sserr.Wrap(err, sserr.CodeTimeout,
			"lifecycle: resume canceled before execution")
	}

	// The state machine enforces that only Paused -> Running is valid.
	if err := s.SetState(StateRunning); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	s.logger.InfoContext(ctx, "lifecycle: resuming service",
		"service", s.name,
	)

	// Execute the OnResume hook outside the lock.
	if s.onResume != nil {
		if err := s.onResume(ctx); err != nil {
			s.logger.ErrorContext(ctx, "lifecycle: resume hook failed",
				"service", s.name,
				"error", err,
			)
			_ = s.SetState(StateFailed)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return sserr.Wrap(err, sserr.CodeInternal,
				"lifecycle: resume hook failed")
		}
	}

	s.logger.InfoContext(ctx, "lifecycle: service resumed",
		"service", s.name,
	)
	span.SetStatus(codes.Ok, "")

	return nil
}
