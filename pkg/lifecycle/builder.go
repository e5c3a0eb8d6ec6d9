package lifecycle

import (
	"log/slog"

	"go.opentelemetry.io/otel"

	sserr "github.com/neoplatform/neo-commons/pkg/errors"
)

// BaseServiceBuilder constructs a [BaseService] with validated
// configuration and optional lifecycle hooks. Use
// [NewBaseServiceBuilder] to start building.
//
// The builder follows the fluent API pattern: all configuration methods
// return the builder for chaining. Call [BaseServiceBuilder.Build] to
// validate the configuration and produce the service.
//
// Example:
//
//	svc, err := lifecycle.NewBaseServiceBuilder("authgate", "1.0.0").
//	    WithDependency(lifecycle.Dependency{Name: "redis", Check: cache.Health}).
//	    WithOnStart(func(ctx context.Context) error {
//	        return db.Health(ctx)
//	    }).
//	    WithOnStop(func(ctx context.Context) error {
//	        db.Close()
//	        return nil
//	    }).
//	    OnStateChange(func(old, new lifecycle.State) {
//	        readiness.Set(new == lifecycle.StateRunning)
//	    }).
//	    Build()
type BaseServiceBuilder struct {
	name          string
	version       string
	dependencies  []Dependency
	logger        *slog.Logger
	onStart       Hook
	onStop        Hook
	onPause       Hook
	onResume      Hook
	stateHandlers []StateChangeHandler
}

// NewBaseServiceBuilder creates a new builder with the required identity
// fields. The name and version are validated during
// [BaseServiceBuilder.Build].
//
// Parameters:
//   - name: human-readable service name (e.g., "authgate")
//   - version: semantic version of the service implementation (e.g., "1.0.0")
func NewBaseServiceBuilder(name, version string) *BaseServiceBuilder {
	return &BaseServiceBuilder{
		name:    name,
		version: version,
	}
}

// WithDependency registers a single dependency health check on the
// service. The dependency is validated during
// [BaseServiceBuilder.Build]: its name must be non-empty and unique,
// and its check function must not be nil.
func (b *BaseServiceBuilder) WithDependency(dep Dependency) *BaseServiceBuilder {
	b.dependencies = append(b.dependencies, dep)
	return b
}

// WithDependencies registers multiple dependency health checks on the
// service. Each dependency is validated during
// [BaseServiceBuilder.Build].
func (b *BaseServiceBuilder) WithDependencies(deps []Dependency) *BaseServiceBuilder {
	b.dependencies = append(b.dependencies, deps...)
	return b
}

// WithLogger sets a custom [*slog.Logger] for the service. If not
// called, [slog.Default] is used. The logger is used for lifecycle
// event logging and panic recovery messages.
func (b *BaseServiceBuilder) WithLogger(logger *slog.Logger) *BaseServiceBuilder {
	b.logger = logger
	return b
}

// WithOnStart sets the lifecycle hook called during [BaseService.Start],
// after the service transitions to [StateStarting] and before it
// transitions to [StateRunning]. Use this to perform component-specific
// initialization (e.g., verifying database connectivity, binding
// listeners, warming caches).
func (b *BaseServiceBuilder) WithOnStart(hook Hook) *BaseServiceBuilder {
	b.onStart = hook
	return b
}

// WithOnStop sets the lifecycle hook called during [BaseService.Stop],
// after the service transitions to [StateStopping] and before it
// transitions to [StateStopped]. Use this to perform component-specific
// cleanup (e.g., draining in-flight requests, closing database
// connections, flushing buffers).
func (b *BaseServiceBuilder) WithOnStop(hook Hook) *BaseServiceBuilder {
	b.onStop = hook
	return b
}

// WithOnPause sets the lifecycle hook called during [BaseService.Pause],
// after the service transitions to [StatePaused]. Use this to suspend
// background workers or stop accepting new connections while the
// service is paused.
func (b *BaseServiceBuilder) WithOnPause(hook Hook) *BaseServiceBuilder {
	b.onPause = hook
	return b
}

// WithOnResume sets the lifecycle hook called during
// [BaseService.Resume], after the service transitions back to
// [StateRunning]. Use this to restart background workers or reacquire
// resources that were released during pause.
func (b *BaseServiceBuilder) WithOnResume(hook Hook) *BaseServiceBuilder {
	b.onResume = hook
	return b
}

// OnStateChange registers a [StateChangeHandler] that is called on every
// state transition. Multiple handlers may be registered and are called
// in registration order. Handlers execute synchronously under the state
// mutex during [BaseService.SetState].
//
// Handlers are defensively copied during [BaseServiceBuilder.Build] to
// prevent external modification of the handler list after construction.
func (b *BaseServiceBuilder) OnStateChange(handler StateChangeHandler) *BaseServiceBuilder {
	b.stateHandlers = append(b.stateHandlers, handler)
	return b
}

// Build validates the configuration and constructs a [*BaseService].
// Returns a [*sserr.Error] with code [sserr.CodeValidation] if the name
// or version is empty, if any dependency is invalid, or if two
// dependencies share a name.
//
// Build performs defensive copies of all mutable inputs (dependencies,
// state handlers) to prevent external mutation after construction. The
// initial state is [StateUnknown].
func (b *BaseServiceBuilder) Build() (*BaseService, error) {
	if b.name == "" {
		return nil, sserr.New(sserr.CodeValidation,
			"lifecycle: service name must not be empty")
	}
	if b.version == "" {
		return nil, sserr.New(sserr.CodeValidation,
			"lifecycle: service version must not be empty")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Validate and defensively copy dependencies.
	seen := make(map[string]struct{}, len(b.dependencies))
	deps := make([]Dependency, 0, len(b.dependencies))
	for _, dep := range b.dependencies {
		if dep.Name == "" {
			return nil, sserr.New(sserr.CodeValidation,
				"lifecycle: dependency name must not be empty")
		}
		if dep.Check == nil {
			return nil, sserr.Newf(sserr.CodeValidation,
				"lifecycle: dependency %q check must not be nil", dep.Name)
		}
		if _, dup := seen[dep.Name]; dup {
			return nil, sserr.Newf(sserr.CodeValidation,
				"lifecycle: duplicate dependency %q", dep.Name)
		}
		seen[dep.Name] = struct{}{}
		deps = append(deps, dep)
	}

	// Defensive copy of state handlers.
	handlers := make([]StateChangeHandler, len(b.stateHandlers))
	copy(handlers, b.stateHandlers)

	return &BaseService{
		name:          b.name,
		version:       b.version,
		state:         StateUnknown,
		dependencies:  deps,
		tracer:        otel.Tracer(tracerName),
		logger:        logger,
		onStart:       b.onStart,
		onStop:        b.onStop,
		onPause:       b.onPause,
		onResume:      b.onResume,
		stateHandlers: handlers,
	}, nil
}
