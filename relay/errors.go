package relay

import "errors"

// Sentinel errors for relay operations.
var (
	// ErrNoPrompt means neither an identity prompt nor a default prompt is
	// configured. Fatal for the call; never retried.
	ErrNoPrompt = errors.New("no system prompt configured")
	// ErrNoAPIKey means the generator cannot authenticate to its provider.
	ErrNoAPIKey = errors.New("generation API key missing")
	// ErrGeneration wraps failures from the generation provider. History
	// keeps the user turn already appended; no model turn is recorded.
	ErrGeneration = errors.New("generation failed")
)
