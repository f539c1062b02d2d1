// Package router inspects inbound transport messages, separates
// administrative commands from conversational input, and dispatches to the
// prompt store or the AI relay. Only messages starting with the command
// prefix are handled; everything else is ignored.
package router

import (
	"context"
	"strings"

	"github.com/tailored-agentic-units/gateway/core/identity"
	"github.com/tailored-agentic-units/gateway/observability"
	"github.com/tailored-agentic-units/gateway/prompt"
	"github.com/tailored-agentic-units/gateway/relay"
	"github.com/tailored-agentic-units/gateway/sessions"
)

// Router event types emitted through the observer.
const (
	EventCommand     observability.EventType = "router.command"
	EventReplyFail   observability.EventType = "router.reply_failed"
	EventDeliverFail observability.EventType = "router.deliver_failed"
)

const defaultPrefix = "."

// setPromptCommand is the reserved administrative command. It is honored
// only when the sender is the session's own identity; from anyone else it
// is ordinary conversational input.
const setPromptCommand = "setprompt"

// Fixed reply texts.
const (
	welcomeText      = "Hi! Start a message with the command prefix followed by your question and I'll answer."
	promptSavedText  = "System prompt updated."
	promptFailedText = "Could not update the system prompt."
	apologyText      = "Sorry, I could not come up with an answer right now."
)

// Config holds router initialization parameters.
type Config struct {
	Prefix string `json:"prefix,omitempty"` // Command prefix; a single character by convention.
}

// DefaultConfig returns the default router configuration.
func DefaultConfig() Config {
	return Config{Prefix: defaultPrefix}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Prefix != "" {
		c.Prefix = source.Prefix
	}
}

// Router dispatches inbound messages for every session in the registry.
type Router struct {
	registry *sessions.Registry
	relay    *relay.Relay
	prompts  prompt.Store
	prefix   string
	observer observability.Observer
}

// New creates a Router. Wire it to the registry with
// registry.SetMessageHandler(router.Handle).
func New(cfg Config, registry *sessions.Registry, rel *relay.Relay, prompts prompt.Store, observer observability.Observer) *Router {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Router{
		registry: registry,
		relay:    rel,
		prompts:  prompts,
		prefix:   prefix,
		observer: observer,
	}
}

// Handle processes one inbound message observed on the owner session's
// transport. owner is the normalized identity the transport authenticates
// as; from is the sender as reported by the network.
func (r *Router) Handle(ctx context.Context, owner, from, body string) {
	if !strings.HasPrefix(body, r.prefix) {
		return
	}

	command := strings.TrimSpace(body[len(r.prefix):])
	sender := identity.Normalize(from)

	observability.Emit(ctx, r.observer, EventCommand, observability.LevelVerbose,
		"router.Router", map[string]any{"owner": owner, "sender": sender, "length": len(command)})

	if command == "" {
		r.deliver(ctx, owner, from, welcomeText)
		return
	}

	tokens := strings.Fields(command)
	if tokens[0] == setPromptCommand && sender == owner {
		r.setPrompt(ctx, owner, from, tokens[1:])
		return
	}

	// Replies are keyed to the sender: several senders share one transport
	// but each keeps an independent conversation.
	text, err := r.relay.Reply(ctx, sender, command)
	if err != nil {
		observability.Emit(ctx, r.observer, EventReplyFail, observability.LevelError,
			"router.Router", map[string]any{"owner": owner, "sender": sender, "error": err.Error()})
		text = apologyText
	}
	r.deliver(ctx, owner, from, text)
}

func (r *Router) setPrompt(ctx context.Context, owner, from string, args []string) {
	text := strings.Join(args, " ")
	if text == "" {
		r.deliver(ctx, owner, from, promptFailedText)
		return
	}

	if err := r.prompts.Set(ctx, owner, prompt.Prompt{SystemPrompt: text}); err != nil {
		observability.Emit(ctx, r.observer, EventReplyFail, observability.LevelError,
			"router.Router", map[string]any{"owner": owner, "error": err.Error()})
		r.deliver(ctx, owner, from, promptFailedText)
		return
	}
	r.deliver(ctx, owner, from, promptSavedText)
}

// deliver sends through the owning session's transport. A failed send is
// logged and never retried; session state is untouched.
func (r *Router) deliver(ctx context.Context, owner, to, text string) {
	if err := r.registry.Send(ctx, owner, to, text); err != nil {
		observability.Emit(ctx, r.observer, EventDeliverFail, observability.LevelWarning,
			"router.Router", map[string]any{"owner": owner, "to": to, "error": err.Error()})
	}
}
