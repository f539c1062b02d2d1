package sessions

import "github.com/tailored-agentic-units/gateway/observability"

// Registry event types emitted through the observer.
const (
	EventCreate        observability.EventType = "session.create"
	EventPairing       observability.EventType = "session.pairing"
	EventAuthenticated observability.EventType = "session.authenticated"
	EventReady         observability.EventType = "session.ready"
	EventAuthFailure   observability.EventType = "session.auth_failure"
	EventDisconnected  observability.EventType = "session.disconnected"
	EventRemoved       observability.EventType = "session.removed"
	EventInitFailed    observability.EventType = "session.init_failed"
	EventRestore       observability.EventType = "session.restore"
	EventRestoreFailed observability.EventType = "session.restore_failed"
	EventTeardownStep  observability.EventType = "session.teardown_step_failed"
)
