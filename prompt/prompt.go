// Package prompt stores the per-identity system instructions that condition
// the AI relay, with a process-wide default used when an identity has no
// prompt of its own.
package prompt

import (
	"context"
	"errors"
)

// Prompt is the system-instruction text applied to one identity's replies.
type Prompt struct {
	SystemPrompt string `json:"system_prompt"`
}

// Store is a thin key/value surface over persisted prompts. Implementations
// must be safe for concurrent use.
type Store interface {
	// Get returns the identity's prompt, or an error wrapping ErrNotFound
	// when none is stored.
	Get(ctx context.Context, identity string) (Prompt, error)
	// Set creates or overwrites the identity's prompt.
	Set(ctx context.Context, identity string, p Prompt) error
	// Delete removes the identity's prompt, reverting it to the default.
	// Deleting a missing prompt is a no-op.
	Delete(ctx context.Context, identity string) error
	// Default returns the process-wide default prompt, or an error wrapping
	// ErrNotFound when none is configured.
	Default(ctx context.Context) (Prompt, error)
}

// Resolve returns the prompt governing an identity: its own if stored, the
// default otherwise. Only a missing identity prompt falls back to the
// default; a real read failure is propagated. When neither prompt exists
// the ErrNotFound from Default is returned; callers treat that as a
// configuration error.
func Resolve(ctx context.Context, s Store, identity string) (Prompt, error) {
	p, err := s.Get(ctx, identity)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Prompt{}, err
	}
	return s.Default(ctx)
}

// Config holds prompt store initialization parameters.
type Config struct {
	Path        string `json:"path,omitempty"`         // Root directory for per-identity prompt files.
	DefaultFile string `json:"default_file,omitempty"` // Default prompt file; resolved under Path when relative.
}

// DefaultConfig returns the default prompt configuration.
func DefaultConfig() Config {
	return Config{
		Path:        "data/prompts",
		DefaultFile: "default.json",
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Path != "" {
		c.Path = source.Path
	}
	if source.DefaultFile != "" {
		c.DefaultFile = source.DefaultFile
	}
}
