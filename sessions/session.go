package sessions

import (
	"time"

	"github.com/tailored-agentic-units/gateway/transport"
)

// session is the registry's internal record for one identity. All fields
// are guarded by the registry mutex; the transport client is exclusively
// owned here and destroyed exactly once on removal.
type session struct {
	identity    string
	instanceID  string // UUIDv7, stable for this session instance only
	status      Status
	pairingCode string
	lastActive  time.Time
	client      transport.Client
}

// Snapshot is the observable view of a session handed to callers. It is a
// value copy; mutating it has no effect on the registry.
type Snapshot struct {
	Identity    string    `json:"number"`
	InstanceID  string    `json:"instance_id"`
	Status      Status    `json:"status"`
	Ready       bool      `json:"ready"`
	PairingCode string    `json:"pairing_code,omitempty"`
	LastActive  time.Time `json:"last_active"`
}

func (s *session) snapshot() Snapshot {
	return Snapshot{
		Identity:    s.identity,
		InstanceID:  s.instanceID,
		Status:      s.status,
		Ready:       s.status == StatusReady,
		PairingCode: s.pairingCode,
		LastActive:  s.lastActive,
	}
}

func (s *session) touch() {
	s.lastActive = time.Now()
}
