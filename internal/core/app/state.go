package app

// State is a step of the application lifecycle.
type State int32

const (
	StateCreated State = iota
	StateStarting
	StateRunning
	StateStopping
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateStopped || s == StateFailed
}

// Well-known container identifiers bound by the registrars or by the
// application itself.
const (
	IDConfig     = "config"
	IDLogger     = "logger"
	IDErrorSink  = "errorsink"
	IDTranslator = "translator"
	IDMetrics    = "metrics"
	IDConnection = "platform.connection"
	// Bound by Start.
	IDDispatcher = "dispatcher"
	IDLoader     = "cogloader"
)
