package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tailored-agentic-units/gateway/api"
	"github.com/tailored-agentic-units/gateway/gateway"
	"github.com/tailored-agentic-units/gateway/observability"
	"github.com/tailored-agentic-units/gateway/prompt"
)

const apiKeyEnv = "GEMINI_API_KEY"

func main() {
	var (
		configFile    = flag.String("config", "", "Path to gateway config JSON file")
		listen        = flag.String("listen", "", "HTTP listen address (overrides config)")
		sessionsRoot  = flag.String("sessions", "", "Path to the sessions directory (overrides config)")
		defaultPrompt = flag.String("default-prompt", "", "Install this text as the default system prompt before serving")
		verbose       = flag.Bool("verbose", false, "Enable verbose logging to stderr")
	)
	flag.Parse()

	cfg := gateway.DefaultConfig()
	if *configFile != "" {
		loaded, err := gateway.LoadConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = *loaded
	}

	if *listen != "" {
		cfg.Listen = *listen
	}
	if *sessionsRoot != "" {
		cfg.Sessions.Root = *sessionsRoot
	}
	if cfg.Relay.APIKey == "" {
		cfg.Relay.APIKey = os.Getenv(apiKeyEnv)
	}

	level := cfg.SlogLevel()
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	observer := observability.NewSlogObserver(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw, err := gateway.New(ctx, &cfg, gateway.WithObserver(observer))
	if err != nil {
		log.Fatalf("Failed to create gateway: %v", err)
	}
	defer gw.Shutdown()

	if *defaultPrompt != "" {
		if err := installDefaultPrompt(ctx, gw.Prompts(), *defaultPrompt); err != nil {
			log.Fatalf("Failed to install default prompt: %v", err)
		}
	}

	if err := gw.Restore(ctx); err != nil {
		// Individual identities may fail to restore; the gateway still serves
		// the ones that came back.
		logger.Warn("startup recovery incomplete", "error", err)
	}

	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: api.NewHandler(gw.Sessions(), observer),
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	logger.Info("gateway listening", "addr", cfg.Listen, "sessions_root", cfg.Sessions.Root)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("HTTP server failed: %v", err)
	}
}

func installDefaultPrompt(ctx context.Context, store prompt.Store, text string) error {
	dw, ok := store.(interface {
		SetDefault(ctx context.Context, p prompt.Prompt) error
	})
	if !ok {
		return fmt.Errorf("prompt store does not support setting the default")
	}
	return dw.SetDefault(ctx, prompt.Prompt{SystemPrompt: text})
}
