// Package gateway composes the session registry, command router, AI relay,
// and their stores into one runtime, initialized from configuration.
//
// The gateway initializes from configuration via New, creating all
// subsystems internally. Functional options allow test overrides of any
// collaborator.
//
//	gw, err := gateway.New(ctx, cfg, gateway.WithTransportFactory(factory))
//	err = gw.Restore(ctx)
package gateway

import (
	"context"
	"fmt"

	"github.com/tailored-agentic-units/gateway/history"
	"github.com/tailored-agentic-units/gateway/observability"
	"github.com/tailored-agentic-units/gateway/prompt"
	"github.com/tailored-agentic-units/gateway/relay"
	"github.com/tailored-agentic-units/gateway/router"
	"github.com/tailored-agentic-units/gateway/sessions"
	"github.com/tailored-agentic-units/gateway/transport"
)

// Option configures a Gateway during New, before subsystems are wired.
type Option func(*composition)

type composition struct {
	factory   transport.Factory
	generator relay.Generator
	historyS  history.Store
	prompts   prompt.Store
	observer  observability.Observer
}

// WithTransportFactory injects the messaging-network client factory.
// Defaults to the loopback transport.LocalFactory.
func WithTransportFactory(f transport.Factory) Option {
	return func(c *composition) { c.factory = f }
}

// WithGenerator overrides the config-created Gemini generator.
func WithGenerator(g relay.Generator) Option {
	return func(c *composition) { c.generator = g }
}

// WithHistoryStore overrides the config-created history file store.
func WithHistoryStore(s history.Store) Option {
	return func(c *composition) { c.historyS = s }
}

// WithPromptStore overrides the config-created prompt file store.
func WithPromptStore(s prompt.Store) Option {
	return func(c *composition) { c.prompts = s }
}

// WithObserver overrides the default SlogObserver.
func WithObserver(o observability.Observer) Option {
	return func(c *composition) { c.observer = o }
}

// Gateway is the assembled runtime.
type Gateway struct {
	registry *sessions.Registry
	relay    *relay.Relay
	router   *router.Router
	prompts  prompt.Store
}

// New creates a Gateway from configuration. Stores and the generator are
// initialized from their config sections; options applied first can
// override any of them.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Gateway, error) {
	c := &composition{
		factory:  transport.LocalFactory,
		observer: observability.NewSlogObserver(nil),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.historyS == nil {
		c.historyS = history.NewFileStore(cfg.History.Path)
	}
	if c.prompts == nil {
		c.prompts = prompt.NewFileStore(cfg.Prompts.Path, cfg.Prompts.DefaultFile)
	}
	if c.generator == nil {
		gen, err := relay.NewGeminiGenerator(ctx, cfg.Relay)
		if err != nil {
			return nil, fmt.Errorf("failed to create generator: %w", err)
		}
		c.generator = gen
	}

	registry := sessions.New(cfg.Sessions, c.factory, c.historyS, c.observer)
	rel := relay.New(c.generator, c.historyS, c.prompts, c.observer)
	rt := router.New(cfg.Router, registry, rel, c.prompts, c.observer)
	registry.SetMessageHandler(rt.Handle)

	return &Gateway{
		registry: registry,
		relay:    rel,
		router:   rt,
		prompts:  c.prompts,
	}, nil
}

// Sessions returns the session registry, the surface consumed by the HTTP
// layer.
func (g *Gateway) Sessions() *sessions.Registry {
	return g.registry
}

// Relay returns the AI relay.
func (g *Gateway) Relay() *relay.Relay {
	return g.relay
}

// Prompts returns the prompt store.
func (g *Gateway) Prompts() prompt.Store {
	return g.prompts
}

// Restore rehydrates previously persisted sessions. Call once at startup,
// after New and before serving traffic.
func (g *Gateway) Restore(ctx context.Context) error {
	return g.registry.Restore(ctx)
}

// Shutdown releases every transport handle, keeping persisted state for the
// next start.
func (g *Gateway) Shutdown() {
	g.registry.Shutdown()
}
