// Package history manages the per-identity conversation logs that feed the
// AI relay. Each identity owns an ordered, append-only sequence of turns,
// held authoritative in memory and mirrored to disk on every append.
package history

import (
	"context"

	"github.com/tailored-agentic-units/gateway/core/chat"
)

// Store holds one ordered turn log per identity. Implementations must be
// safe for concurrent use.
type Store interface {
	// Turns returns a defensive copy of the identity's conversation log,
	// in append order. An identity with no recorded turns yields an empty
	// slice, not an error.
	Turns(ctx context.Context, identity string) ([]chat.Turn, error)

	// Append adds a turn to the identity's log. Appending a turn whose
	// (role, text) pair equals the current last turn is a no-op, so a
	// retried call cannot double-record an exchange. An error wrapping
	// ErrSaveFailed means the turn was recorded in memory but the on-disk
	// mirror is stale; callers treat that as non-fatal.
	Append(ctx context.Context, identity string, turn chat.Turn) error

	// Clear discards the identity's log, in memory and on disk.
	Clear(ctx context.Context, identity string) error
}

// Config holds history store initialization parameters.
type Config struct {
	Path string `json:"path,omitempty"` // Root directory for per-identity history files.
}

// DefaultConfig returns the default history configuration.
func DefaultConfig() Config {
	return Config{Path: "data/history"}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Path != "" {
		c.Path = source.Path
	}
}
