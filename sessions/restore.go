package sessions

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tailored-agentic-units/gateway/core/identity"
	"github.com/tailored-agentic-units/gateway/observability"
	"github.com/tailored-agentic-units/gateway/transport"
)

const restoreParallelism = 4

// Restore rehydrates the registry from persisted credential directories.
// Each identity is recovered independently: its client is rebuilt with the
// standard callback set and initialized inline; a transport that instead
// demands fresh pairing leaves the session in the pairing state rather than
// failing. An identity whose initialization errors is torn down via Remove
// so no corrupt on-disk state survives, and its failure is joined into the
// returned error without aborting the others.
func (r *Registry) Restore(ctx context.Context) error {
	entries, err := os.ReadDir(r.cfg.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read sessions root: %w", err)
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(restoreParallelism)

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id := identity.Normalize(entry.Name())
		if id == "" {
			continue
		}

		g.Go(func() error {
			if err := r.restore(ctx, id); err != nil {
				observability.Emit(ctx, r.observer, EventRestoreFailed, observability.LevelError,
					"sessions.Registry", map[string]any{"identity": id, "error": err.Error()})
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}

	// Workers never return an error: one identity's failure must not stop
	// its siblings.
	_ = g.Wait()

	return errors.Join(errs...)
}

func (r *Registry) restore(ctx context.Context, id string) error {
	r.mu.Lock()
	if _, ok := r.sessions[id]; ok {
		r.mu.Unlock()
		return nil
	}
	snap, err := r.registerLocked(id)
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("restore %s: %w", id, err)
	}

	observability.Emit(ctx, r.observer, EventRestore, observability.LevelInfo,
		"sessions.Registry", map[string]any{"identity": id, "instance": snap.InstanceID})

	client, err := r.factory(id, r.credentialsDir(id), r.handlers(id, snap.InstanceID))
	if err != nil {
		r.removeInstance(ctx, id, snap.InstanceID)
		return fmt.Errorf("restore transport for %s: %w", id, err)
	}
	if !r.attach(id, snap.InstanceID, client) {
		return nil
	}

	if err := client.Initialize(ctx); err != nil {
		if errors.Is(err, transport.ErrPairingRequired) {
			// Stale credentials; fall back to pairing instead of failing.
			r.beginPairing(ctx, id, snap.InstanceID, client)
			return nil
		}
		r.removeInstance(ctx, id, snap.InstanceID)
		return fmt.Errorf("restore %s: %w", id, err)
	}

	return nil
}
