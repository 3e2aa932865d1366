package container

import (
	"errors"
	"fmt"
	"strings"

	"cogbot/internal/domain"
)

// ErrClosed is returned by Resolve once the container has been closed.
var ErrClosed = errors.New("container closed")

// DuplicateBindingError is returned when an identifier is registered twice.
type DuplicateBindingError struct {
	ID string
}

func (e *DuplicateBindingError) Error() string {
	return fmt.Sprintf("duplicate binding %q", e.ID)
}

func (e *DuplicateBindingError) Is(target error) bool { return target == domain.ErrConfiguration }

// UnresolvedDependencyError is returned when an identifier, or one of the
// dependencies reachable from it, has no binding.
type UnresolvedDependencyError struct {
	ID   string
	Path []string
}

func (e *UnresolvedDependencyError) Error() string {
	if len(e.Path) <= 1 {
		return fmt.Sprintf("unresolved dependency %q", e.ID)
	}
	return fmt.Sprintf("unresolved dependency %q (via %s)", e.ID, strings.Join(e.Path, " -> "))
}

func (e *UnresolvedDependencyError) Is(target error) bool { return target == domain.ErrConfiguration }

// CircularDependencyError is returned when resolution re-enters an
// identifier already on the resolution path. Path starts and ends with it.
type CircularDependencyError struct {
	Path []string
}

func (e *CircularDependencyError) Error() string {
	return "circular dependency: " + strings.Join(e.Path, " -> ")
}

func (e *CircularDependencyError) Is(target error) bool { return target == domain.ErrConfiguration }

// ConstructionError wraps a factory failure or panic.
type ConstructionError struct {
	ID  string
	Err error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("construct %q: %v", e.ID, e.Err)
}

func (e *ConstructionError) Unwrap() error { return e.Err }

// TypeMismatchError is returned by the typed helpers when a resolved value
// does not have the requested type.
type TypeMismatchError struct {
	ID   string
	Want string
	Got  string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("binding %q: want %s, got %s", e.ID, e.Want, e.Got)
}

func (e *TypeMismatchError) Is(target error) bool { return target == domain.ErrConfiguration }
