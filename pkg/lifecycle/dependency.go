package lifecycle

import (
	"context"
	"errors"
	"fmt"
)

// CheckFunc probes a single dependency and returns nil when it is
// reachable and healthy. The context carries the caller's deadline; a
// check must return promptly when the context is canceled.
type CheckFunc func(ctx context.Context) error

// Dependency describes a named external dependency of a service (a
// database, a cache, an identity provider) together with the health
// check used to probe it. Dependencies are registered at construction
// time via [BaseServiceBuilder.WithDependency] and probed by
// [BaseService.Health].
//
// Dependencies are value types. Use [NewDependency] to construct
// validated instances.
//
// Example:
//
//	dep, err := lifecycle.NewDependency("postgres", "primary permission store", db.Health)
//	if err != nil {
//	    return err
//	}
type Dependency struct {
	// Name is the identifier for the dependency (e.g., "postgres",
	// "redis", "keycloak"). Must not be empty and must be unique
	// within a service.
	Name string `json:"name"`

	// Description is a human-readable summary of what this dependency
	// provides. May be empty.
	Description string `json:"description,omitempty"`

	// Check probes the dependency. Must not be nil.
	Check CheckFunc `json:"-"`
}

// NewDependency creates a new [Dependency] with validated fields.
// Returns an error if name is empty or check is nil.
func NewDependency(name, description string, check CheckFunc) (Dependency, error) {
	if name == "" {
		return Dependency{}, errors.New("lifecycle: dependency name must not be empty")
	}
	if check == nil {
		return Dependency{}, fmt.Errorf("lifecycle: dependency %q check must not be nil", name)
	}
	return Dependency{
		Name:        name,
		Description: description,
		Check:       check,
	}, nil
}
