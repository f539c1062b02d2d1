package sessions

// Status is the lifecycle state of a session. Transitions are driven by
// transport callbacks; the only exit from any state is an explicit Remove.
type Status string

const (
	StatusUninitialized   Status = "uninitialized"
	StatusInitializing    Status = "initializing"
	StatusPairing         Status = "pairing"
	StatusAuthenticated   Status = "authenticated"
	StatusReady           Status = "ready"
	StatusUnauthenticated Status = "unauthenticated"
	StatusDisconnected    Status = "disconnected"
	StatusDestroyed       Status = "destroyed"
)

// Stale reports whether the session's connection is gone for good: auth was
// rejected or the transport dropped. A create request for a stale session
// tears it down and re-creates it; any other state is returned unchanged.
func (s Status) Stale() bool {
	return s == StatusUnauthenticated || s == StatusDisconnected
}
