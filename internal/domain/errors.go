package domain

import (
	"errors"
	"fmt"
)

// Domain errors.
var (
	ErrNotFound          = errors.New("record not found")
	ErrTimeout           = errors.New("operation timed out")
	ErrConfiguration     = errors.New("configuration error")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrCommandNotAllowed = errors.New("command not enabled for this guild")
	ErrInvalidInput      = errors.New("invalid input")
	ErrForbidden         = errors.New("missing permission")
)

// ConfigurationError is fatal at startup: bad bindings, cyclic dependencies,
// missing settings. For a cog it is fatal to that cog only.
type ConfigurationError struct {
	Op  string
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %v", e.Op, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// PersistenceError wraps every failure coming from a storage driver. Callers
// above the repository boundary only ever match on this type, ErrNotFound or
// ErrTimeout.
type PersistenceError struct {
	Op         string
	Collection string
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Timeout reports whether the underlying call hit the I/O deadline.
func (e *PersistenceError) Timeout() bool { return errors.Is(e.Err, ErrTimeout) }

// CommandExecutionError is an uncaught handler failure. It is contained per
// invocation and never crosses the dispatcher.
type CommandExecutionError struct {
	Command string
	Err     error
}

func (e *CommandExecutionError) Error() string {
	return fmt.Sprintf("command %q: %v", e.Command, e.Err)
}

func (e *CommandExecutionError) Unwrap() error { return e.Err }

// ConnectionError is a platform handshake or stream failure.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection: %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// InvalidStateTransitionError is returned when a lifecycle operation is
// attempted from a state that does not allow it.
type InvalidStateTransitionError struct {
	Op   string
	From string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("cannot %s application in state %s", e.Op, e.From)
}

func (e *InvalidStateTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// KindOf classifies err into one of the four error origins. A handler
// failure stays a command execution failure whatever it wraps. Unknown
// errors are treated as command execution failures.
func KindOf(err error) Kind {
	var (
		cmdErr  *CommandExecutionError
		cfgErr  *ConfigurationError
		persErr *PersistenceError
		connErr *ConnectionError
	)
	switch {
	case errors.As(err, &cmdErr):
		return KindCommandExecution
	case errors.As(err, &cfgErr), errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.As(err, &persErr):
		return KindPersistence
	case errors.As(err, &connErr):
		return KindConnection
	default:
		return KindCommandExecution
	}
}
