package domain

import (
	"time"

	"github.com/google/uuid"
)

// Kind is the error class an envelope originates from.
type Kind string

const (
	KindConfiguration    Kind = "ConfigurationError"
	KindPersistence      Kind = "PersistenceError"
	KindCommandExecution Kind = "CommandExecutionError"
	KindConnection       Kind = "ConnectionError"
)

// Severity of a captured failure.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ErrorEnvelope describes one captured failure with enough context to
// diagnose it without reproducing.
type ErrorEnvelope struct {
	ID         uuid.UUID
	Origin     Kind
	Component  string
	Severity   Severity
	Message    string
	Cause      error
	GuildID    string
	UserID     string
	Command    string
	OccurredAt time.Time
}

// NewEnvelope builds an envelope for cause, classifying it with KindOf.
func NewEnvelope(component string, severity Severity, message string, cause error) ErrorEnvelope {
	return ErrorEnvelope{
		ID:         uuid.New(),
		Origin:     KindOf(cause),
		Component:  component,
		Severity:   severity,
		Message:    message,
		Cause:      cause,
		OccurredAt: time.Now().UTC(),
	}
}

// WithContext returns a copy of the envelope carrying guild/user/command.
func (e ErrorEnvelope) WithContext(guildID, userID, command string) ErrorEnvelope {
	e.GuildID = guildID
	e.UserID = userID
	e.Command = command
	return e
}
