// Package relay turns inbound utterances into model replies. Each identity
// owns an independent conversation context, created lazily on its first
// message and memoized for the rest of the process lifetime, so many
// senders sharing one transport never contaminate each other's history.
package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tailored-agentic-units/gateway/core/chat"
	"github.com/tailored-agentic-units/gateway/history"
	"github.com/tailored-agentic-units/gateway/observability"
	"github.com/tailored-agentic-units/gateway/prompt"
)

// Relay event types emitted through the observer.
const (
	EventReply        observability.EventType = "relay.reply"
	EventGenerateFail observability.EventType = "relay.generate_failed"
	EventPersistFail  observability.EventType = "relay.persist_failed"
)

// Generator produces a model reply from a conversation and its system
// prompt. The last turn of turns is the utterance being answered.
type Generator interface {
	Generate(ctx context.Context, turns []chat.Turn, systemPrompt string) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, turns []chat.Turn, systemPrompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, turns []chat.Turn, systemPrompt string) (string, error) {
	return f(ctx, turns, systemPrompt)
}

// Relay drives the generation provider with per-identity history and the
// resolved system prompt.
type Relay struct {
	gen      Generator
	history  history.Store
	prompts  prompt.Store
	observer observability.Observer

	mu     sync.Mutex
	convos map[string]*conversation
}

// conversation serializes replies for one identity so its turns are
// appended in call order. Independent identities proceed concurrently.
type conversation struct {
	mu sync.Mutex
}

// New creates a Relay.
func New(gen Generator, hist history.Store, prompts prompt.Store, observer observability.Observer) *Relay {
	return &Relay{
		gen:      gen,
		history:  hist,
		prompts:  prompts,
		observer: observer,
		convos:   make(map[string]*conversation),
	}
}

// Reply answers an utterance for the given identity: it resolves the system
// prompt, appends the user turn, invokes the generator with the full
// history, records the model turn, and returns the reply text. A history
// persistence failure is logged and swallowed; in-memory history remains
// consistent. A generator failure surfaces as ErrGeneration with the user
// turn left standing.
func (r *Relay) Reply(ctx context.Context, identity, utterance string) (string, error) {
	convo := r.conversation(identity)
	convo.mu.Lock()
	defer convo.mu.Unlock()

	p, err := prompt.Resolve(ctx, r.prompts, identity)
	if err != nil {
		if errors.Is(err, prompt.ErrNotFound) {
			return "", fmt.Errorf("%w: identity %s", ErrNoPrompt, identity)
		}
		return "", fmt.Errorf("resolve prompt for %s: %w", identity, err)
	}

	if err := r.append(ctx, identity, chat.NewTurn(chat.RoleUser, utterance)); err != nil {
		return "", err
	}

	turns, err := r.history.Turns(ctx, identity)
	if err != nil {
		return "", fmt.Errorf("load history for %s: %w", identity, err)
	}

	text, err := r.gen.Generate(ctx, turns, p.SystemPrompt)
	if err != nil {
		observability.Emit(ctx, r.observer, EventGenerateFail, observability.LevelError,
			"relay.Relay", map[string]any{"identity": identity, "error": err.Error()})
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	if err := r.append(ctx, identity, chat.NewTurn(chat.RoleModel, text)); err != nil {
		return "", err
	}

	observability.Emit(ctx, r.observer, EventReply, observability.LevelVerbose,
		"relay.Relay", map[string]any{"identity": identity, "turns": len(turns) + 1})
	return text, nil
}

// append records a turn, downgrading a stale on-disk mirror to a logged
// warning per the persistence policy.
func (r *Relay) append(ctx context.Context, identity string, turn chat.Turn) error {
	err := r.history.Append(ctx, identity, turn)
	if err == nil {
		return nil
	}
	if errors.Is(err, history.ErrSaveFailed) {
		observability.Emit(ctx, r.observer, EventPersistFail, observability.LevelWarning,
			"relay.Relay", map[string]any{"identity": identity, "error": err.Error()})
		return nil
	}
	return fmt.Errorf("append %s turn for %s: %w", turn.Role, identity, err)
}

// conversation returns the identity's memoized context, creating it on
// first use. Deliberately independent of the session registry: transport
// lifecycle and AI-context lifetime are not coupled.
func (r *Relay) conversation(identity string) *conversation {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.convos[identity]
	if !ok {
		c = &conversation{}
		r.convos[identity] = c
	}
	return c
}
