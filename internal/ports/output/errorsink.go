package output

import "cogbot/internal/domain"

// ErrorSink accepts captured failures. Report must not block the caller on
// sink latency.
type ErrorSink interface {
	Report(env domain.ErrorEnvelope)
}
