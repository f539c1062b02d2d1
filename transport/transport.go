// Package transport defines the boundary to the external messaging network.
// The gateway core consumes this contract only; real network clients live
// outside the repository and are injected through a Factory.
package transport

import (
	"context"
	"errors"
)

// ErrPairingRequired is returned by Initialize when the stored credentials
// are missing or stale and the connection must be paired out-of-band. The
// caller reacts by requesting a pairing code rather than failing.
var ErrPairingRequired = errors.New("transport pairing required")

// Client is one live connection to the messaging network, bound to a single
// identity and its credential directory. A Client is exclusively owned by
// the session that created it and is destroyed exactly once on removal.
type Client interface {
	// Initialize connects using the stored credentials. It may suspend for
	// network round-trips and reports ErrPairingRequired when interactive
	// verification is needed.
	Initialize(ctx context.Context) error

	// RequestPairingCode obtains a short-lived one-time code the subscriber
	// enters on their device to authorize this connection.
	RequestPairingCode(ctx context.Context, identity string) (string, error)

	// SendMessage delivers text to a target identifier on the network.
	SendMessage(ctx context.Context, target, text string) error

	// Destroy releases the connection. Idempotent.
	Destroy() error
}

// Handlers receives the client's lifecycle and message events. The client
// delivers events for one identity in emission order; unset handlers are
// skipped. All fields are optional.
type Handlers struct {
	// PairingRequired fires when the network demands interactive
	// verification (a QR/code challenge) instead of accepting credentials.
	PairingRequired func()
	// Authenticated fires when credentials are accepted.
	Authenticated func()
	// Ready fires when the connection is fully operational.
	Ready func()
	// AuthFailure fires when authentication is rejected.
	AuthFailure func(reason string)
	// Disconnected fires when the network drops the connection.
	Disconnected func(reason string)
	// Message fires for each inbound message observed on the connection.
	Message func(from, body string)
}

// Factory builds a Client for an identity whose credentials live in
// credentialsDir, delivering events to h for the client's whole lifetime.
type Factory func(identity, credentialsDir string, h Handlers) (Client, error)
