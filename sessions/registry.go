// Package sessions owns the registry of live transport connections: one
// capacity-capped map from normalized identity to session state, the
// lifecycle state machine driven by transport callbacks, and startup
// recovery from persisted credential directories.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tailored-agentic-units/gateway/core/identity"
	"github.com/tailored-agentic-units/gateway/history"
	"github.com/tailored-agentic-units/gateway/observability"
	"github.com/tailored-agentic-units/gateway/transport"
)

const defaultMaxSessions = 32

// Config holds registry initialization parameters.
type Config struct {
	Root        string `json:"root,omitempty"`         // Root directory for per-identity credential dirs.
	MaxSessions int    `json:"max_sessions,omitempty"` // Registry capacity cap.
}

// DefaultConfig returns the default registry configuration.
func DefaultConfig() Config {
	return Config{
		Root:        "data/sessions",
		MaxSessions: defaultMaxSessions,
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Root != "" {
		c.Root = source.Root
	}
	if source.MaxSessions > 0 {
		c.MaxSessions = source.MaxSessions
	}
}

// MessageHandler receives each inbound message observed on a session's
// transport, together with the identity that session authenticates as.
type MessageHandler func(ctx context.Context, owner, from, body string)

// Registry is the session registry and state machine. All map access and
// state transitions are serialized through one mutex, so callbacks arriving
// on transport goroutines and calls from the HTTP layer interleave safely;
// callbacks for one identity are applied in the order the transport emits
// them.
type Registry struct {
	cfg      Config
	factory  transport.Factory
	history  history.Store
	observer observability.Observer

	mu       sync.RWMutex
	sessions map[string]*session
	onMsg    MessageHandler
}

// New creates an empty Registry. The factory builds transport clients on
// demand; the history store is cleared per identity during teardown.
func New(cfg Config, factory transport.Factory, hist history.Store, observer observability.Observer) *Registry {
	return &Registry{
		cfg:      cfg,
		factory:  factory,
		history:  hist,
		observer: observer,
		sessions: make(map[string]*session),
	}
}

// SetMessageHandler installs the callback invoked for every inbound message.
// Install before Create or Restore; messages observed with no handler are
// dropped.
func (r *Registry) SetMessageHandler(h MessageHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onMsg = h
}

// Create registers a session for the identity and starts connecting it in
// the background. An existing session that is not stale (anything but
// unauthenticated or disconnected) is returned unchanged; a stale one is
// torn down and re-created. The staleness check, teardown of the registry
// entry, and registration of its replacement happen under one lock hold, so
// concurrent creates for the same identity agree on a single replacement
// and every displaced transport handle is destroyed exactly once. A new
// identity beyond capacity fails with ErrCapacityExceeded and leaves the
// registry untouched.
func (r *Registry) Create(ctx context.Context, rawIdentity string) (Snapshot, error) {
	id := identity.Normalize(rawIdentity)
	if id == "" {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrBadIdentity, rawIdentity)
	}

	var (
		displaced transport.Client
		recreated bool
	)

	r.mu.Lock()
	if existing, ok := r.sessions[id]; ok {
		if !existing.status.Stale() {
			snap := existing.snapshot()
			r.mu.Unlock()
			return snap, nil
		}
		displaced = existing.client
		existing.client = nil
		existing.status = StatusDestroyed
		delete(r.sessions, id)
		recreated = true
	}
	snap, err := r.registerLocked(id)
	r.mu.Unlock()
	if err != nil {
		return Snapshot{}, err
	}

	if recreated {
		// Recovery requires a fresh connection; the displaced handle and
		// on-disk state are cleaned up before the replacement connects.
		r.teardown(ctx, id, displaced)
	}

	observability.Emit(ctx, r.observer, EventCreate, observability.LevelInfo,
		"sessions.Registry", map[string]any{"identity": id, "instance": snap.InstanceID})

	client, err := r.factory(id, r.credentialsDir(id), r.handlers(id, snap.InstanceID))
	if err != nil {
		r.removeInstance(ctx, id, snap.InstanceID)
		return Snapshot{}, fmt.Errorf("create transport for %s: %w", id, err)
	}
	if r.attach(id, snap.InstanceID, client) {
		// Initialization runs detached from the caller's request lifetime;
		// its outcome surfaces through state transitions, never
		// synchronously.
		go r.initialize(context.WithoutCancel(ctx), id, snap.InstanceID, client)
	}

	return snap, nil
}

// Get returns the observable state of the identity's session.
func (r *Registry) Get(rawIdentity string) (Snapshot, bool) {
	id := identity.Normalize(rawIdentity)

	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return Snapshot{}, false
	}
	return s.snapshot(), true
}

// List returns snapshots of every registered session, sorted by identity.
func (r *Registry) List() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snaps := make([]Snapshot, 0, len(r.sessions))
	for _, s := range r.sessions {
		snaps = append(snaps, s.snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].Identity < snaps[j].Identity
	})
	return snaps
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Remove tears a session down: the transport handle is destroyed, the
// persisted credential directory deleted, the conversation history cleared,
// and the registry entry dropped. Every step is attempted even when an
// earlier one fails; removing an unknown identity re-runs the on-disk
// cleanup and reports no error, so Remove is idempotent.
func (r *Registry) Remove(ctx context.Context, rawIdentity string) error {
	id := identity.Normalize(rawIdentity)
	if id == "" {
		return fmt.Errorf("%w: %q", ErrBadIdentity, rawIdentity)
	}

	r.mu.Lock()
	s, ok := r.sessions[id]
	var client transport.Client
	if ok {
		client = s.client
		s.status = StatusDestroyed
		s.client = nil
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	r.teardown(ctx, id, client)

	observability.Emit(ctx, r.observer, EventRemoved, observability.LevelInfo,
		"sessions.Registry", map[string]any{"identity": id, "was_registered": ok})
	return nil
}

// removeInstance tears down one specific session instance. The registry
// entry is dropped only when it still belongs to that instance, so a
// failing initialization can never delete a replacement registered by a
// later Create.
func (r *Registry) removeInstance(ctx context.Context, id, instanceID string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok && s.instanceID != instanceID {
		r.mu.Unlock()
		return
	}
	var client transport.Client
	if ok {
		client = s.client
		s.status = StatusDestroyed
		s.client = nil
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	r.teardown(ctx, id, client)

	observability.Emit(ctx, r.observer, EventRemoved, observability.LevelInfo,
		"sessions.Registry", map[string]any{"identity": id, "was_registered": ok})
}

// teardown releases everything a session instance owns: the transport
// handle, the persisted credential directory, and the conversation history.
// Every step is attempted even when an earlier one fails.
func (r *Registry) teardown(ctx context.Context, id string, client transport.Client) {
	if client != nil {
		if err := client.Destroy(); err != nil {
			r.teardownStep(ctx, id, "destroy_transport", err)
		}
	}
	if err := os.RemoveAll(r.credentialsDir(id)); err != nil {
		r.teardownStep(ctx, id, "delete_credentials", err)
	}
	if r.history != nil {
		if err := r.history.Clear(ctx, id); err != nil {
			r.teardownStep(ctx, id, "clear_history", err)
		}
	}
}

// Send delivers text to a target through the identity's transport handle
// and bumps the session's activity timestamp.
func (r *Registry) Send(ctx context.Context, rawIdentity, target, text string) error {
	id := identity.Normalize(rawIdentity)

	r.mu.RLock()
	s, ok := r.sessions[id]
	var client transport.Client
	if ok {
		client = s.client
	}
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if client == nil {
		return fmt.Errorf("%w: %s", ErrNotConnected, id)
	}

	if err := client.SendMessage(ctx, target, text); err != nil {
		return fmt.Errorf("send from %s: %w", id, err)
	}

	r.mu.Lock()
	if s, ok := r.sessions[id]; ok {
		s.touch()
	}
	r.mu.Unlock()
	return nil
}

// Shutdown destroys every transport handle without touching persisted
// credentials or histories, so a later Restore can rehydrate the registry.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	clients := make(map[string]transport.Client, len(r.sessions))
	for id, s := range r.sessions {
		if s.client != nil {
			clients[id] = s.client
		}
		s.status = StatusDestroyed
		s.client = nil
	}
	r.sessions = make(map[string]*session)
	r.mu.Unlock()

	for id, client := range clients {
		if err := client.Destroy(); err != nil {
			r.teardownStep(context.Background(), id, "destroy_transport", err)
		}
	}
}

// registerLocked inserts a fresh initializing entry, enforcing the capacity
// cap. Caller holds the write lock.
func (r *Registry) registerLocked(id string) (Snapshot, error) {
	if len(r.sessions) >= r.cfg.MaxSessions {
		return Snapshot{}, fmt.Errorf("%w: %d sessions, max %d",
			ErrCapacityExceeded, len(r.sessions), r.cfg.MaxSessions)
	}

	s := &session{
		identity:   id,
		instanceID: uuid.Must(uuid.NewV7()).String(),
		status:     StatusInitializing,
		lastActive: time.Now(),
	}
	r.sessions[id] = s
	return s.snapshot(), nil
}

// attach hands the transport client to its session instance and reports
// whether it took effect. When the instance is gone by the time the client
// is built (concurrent Remove or replacement), the orphan client is
// destroyed so the handle never leaks and never displaces a newer one.
func (r *Registry) attach(id, instanceID string, client transport.Client) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok && s.instanceID == instanceID {
		s.client = client
		r.mu.Unlock()
		return true
	}
	r.mu.Unlock()

	_ = client.Destroy()
	return false
}

func (r *Registry) initialize(ctx context.Context, id, instanceID string, client transport.Client) {
	err := client.Initialize(ctx)
	if err == nil {
		return
	}
	if errors.Is(err, transport.ErrPairingRequired) {
		r.beginPairing(ctx, id, instanceID, client)
		return
	}

	observability.Emit(ctx, r.observer, EventInitFailed, observability.LevelError,
		"sessions.Registry", map[string]any{"identity": id, "error": err.Error()})

	// Partial state is torn down so a later create starts from nothing.
	r.removeInstance(ctx, id, instanceID)
}

// beginPairing moves an initializing session to pairing and requests a
// one-time code from the transport. The code is stored only if that same
// instance is still pairing when it arrives; transports that accept the
// pairing immediately will already have advanced past it.
func (r *Registry) beginPairing(ctx context.Context, id, instanceID string, client transport.Client) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok || s.instanceID != instanceID || s.status != StatusInitializing {
		r.mu.Unlock()
		return
	}
	s.status = StatusPairing
	s.pairingCode = ""
	s.touch()
	r.mu.Unlock()

	observability.Emit(ctx, r.observer, EventPairing, observability.LevelInfo,
		"sessions.Registry", map[string]any{"identity": id})

	code, err := client.RequestPairingCode(ctx, id)
	if err != nil {
		observability.Emit(ctx, r.observer, EventInitFailed, observability.LevelError,
			"sessions.Registry", map[string]any{"identity": id, "error": err.Error()})
		return
	}

	r.mu.Lock()
	if s, ok := r.sessions[id]; ok && s.instanceID == instanceID && s.status == StatusPairing {
		s.pairingCode = code
		s.touch()
	}
	r.mu.Unlock()
}

// handlers binds the transport callback set to one session instance. Each
// callback applies its transition under the registry lock, in arrival
// order; callbacks from a displaced instance fall on deaf ears.
func (r *Registry) handlers(id, instanceID string) transport.Handlers {
	ctx := context.Background()
	return transport.Handlers{
		PairingRequired: func() {
			r.mu.RLock()
			var client transport.Client
			if s, ok := r.sessions[id]; ok && s.instanceID == instanceID {
				client = s.client
			}
			r.mu.RUnlock()
			if client != nil {
				r.beginPairing(ctx, id, instanceID, client)
			}
		},
		Authenticated: func() {
			r.apply(ctx, id, instanceID, EventAuthenticated, observability.LevelInfo, nil,
				func(s *session) {
					s.status = StatusAuthenticated
				})
		},
		Ready: func() {
			r.apply(ctx, id, instanceID, EventReady, observability.LevelInfo, nil,
				func(s *session) {
					s.status = StatusReady
					s.pairingCode = ""
				})
		},
		AuthFailure: func(reason string) {
			// Handle retained for diagnostics; the session stays registered
			// until an operator removes it.
			r.apply(ctx, id, instanceID, EventAuthFailure, observability.LevelWarning,
				map[string]any{"reason": reason},
				func(s *session) {
					s.status = StatusUnauthenticated
				})
		},
		Disconnected: func(reason string) {
			r.apply(ctx, id, instanceID, EventDisconnected, observability.LevelWarning,
				map[string]any{"reason": reason},
				func(s *session) {
					s.status = StatusDisconnected
				})
		},
		Message: func(from, body string) {
			r.mu.Lock()
			handler := r.onMsg
			s, ok := r.sessions[id]
			if !ok || s.instanceID != instanceID {
				r.mu.Unlock()
				return
			}
			s.touch()
			r.mu.Unlock()
			if handler != nil {
				handler(ctx, id, from, body)
			}
		},
	}
}

// apply runs one typed transition under the lock and emits its event.
// Transitions for instances no longer registered are dropped.
func (r *Registry) apply(ctx context.Context, id, instanceID string, typ observability.EventType,
	level observability.Level, data map[string]any, mutate func(*session)) {

	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok && s.instanceID != instanceID {
		ok = false
	}
	if ok {
		mutate(s)
		s.touch()
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	if data == nil {
		data = map[string]any{}
	}
	data["identity"] = id
	observability.Emit(ctx, r.observer, typ, level, "sessions.Registry", data)
}

func (r *Registry) teardownStep(ctx context.Context, id, step string, err error) {
	observability.Emit(ctx, r.observer, EventTeardownStep, observability.LevelWarning,
		"sessions.Registry", map[string]any{"identity": id, "step": step, "error": err.Error()})
}

func (r *Registry) credentialsDir(id string) string {
	return filepath.Join(r.cfg.Root, id)
}
