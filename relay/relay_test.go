package relay_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tailored-agentic-units/gateway/core/chat"
	"github.com/tailored-agentic-units/gateway/history"
	"github.com/tailored-agentic-units/gateway/observability"
	"github.com/tailored-agentic-units/gateway/prompt"
	"github.com/tailored-agentic-units/gateway/relay"
)

func newStores(t *testing.T, defaultPrompt string) (history.Store, prompt.Store) {
	t.Helper()
	hist := history.NewFileStore(t.TempDir())
	prompts := prompt.NewFileStore(t.TempDir(), "default.json")
	if defaultPrompt != "" {
		dw := prompts.(interface {
			SetDefault(ctx context.Context, p prompt.Prompt) error
		})
		if err := dw.SetDefault(context.Background(), prompt.Prompt{SystemPrompt: defaultPrompt}); err != nil {
			t.Fatalf("SetDefault() error = %v", err)
		}
	}
	return hist, prompts
}

func echoGenerator(t *testing.T, wantPrompt string) relay.Generator {
	t.Helper()
	return relay.GeneratorFunc(func(_ context.Context, turns []chat.Turn, systemPrompt string) (string, error) {
		if wantPrompt != "" && systemPrompt != wantPrompt {
			t.Errorf("generator got system prompt %q, want %q", systemPrompt, wantPrompt)
		}
		if len(turns) == 0 {
			return "", fmt.Errorf("no turns")
		}
		return "echo: " + turns[len(turns)-1].Text, nil
	})
}

func TestRelay_Reply(t *testing.T) {
	hist, prompts := newStores(t, "You are helpful")
	r := relay.New(echoGenerator(t, "You are helpful"), hist, prompts, observability.NoOpObserver{})
	ctx := context.Background()

	text, err := r.Reply(ctx, "15551234567", "hello")
	if err != nil {
		t.Fatalf("Reply() error = %v", err)
	}
	if text != "echo: hello" {
		t.Errorf("Reply() = %q, want %q", text, "echo: hello")
	}

	turns, err := hist.Turns(ctx, "15551234567")
	if err != nil {
		t.Fatalf("Turns() error = %v", err)
	}
	want := []chat.Turn{
		chat.NewTurn(chat.RoleUser, "hello"),
		chat.NewTurn(chat.RoleModel, "echo: hello"),
	}
	if diff := cmp.Diff(want, turns); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestRelay_Reply_IdentityPromptWins(t *testing.T) {
	hist, prompts := newStores(t, "default prompt")
	ctx := context.Background()
	prompts.Set(ctx, "1", prompt.Prompt{SystemPrompt: "Be terse"})

	r := relay.New(echoGenerator(t, "Be terse"), hist, prompts, observability.NoOpObserver{})

	if _, err := r.Reply(ctx, "1", "hi"); err != nil {
		t.Fatalf("Reply() error = %v", err)
	}
}

func TestRelay_Reply_NoPromptAnywhere(t *testing.T) {
	hist, prompts := newStores(t, "")
	r := relay.New(echoGenerator(t, ""), hist, prompts, observability.NoOpObserver{})

	_, err := r.Reply(context.Background(), "1", "hello")
	if !errors.Is(err, relay.ErrNoPrompt) {
		t.Fatalf("Reply() error = %v, want ErrNoPrompt", err)
	}

	turns, _ := hist.Turns(context.Background(), "1")
	if len(turns) != 0 {
		t.Errorf("history has %d turns after configuration error, want 0", len(turns))
	}
}

func TestRelay_Reply_GenerationFailure(t *testing.T) {
	hist, prompts := newStores(t, "default")
	boom := relay.GeneratorFunc(func(context.Context, []chat.Turn, string) (string, error) {
		return "", fmt.Errorf("provider quota exhausted")
	})
	r := relay.New(boom, hist, prompts, observability.NoOpObserver{})
	ctx := context.Background()

	_, err := r.Reply(ctx, "1", "hello")
	if !errors.Is(err, relay.ErrGeneration) {
		t.Fatalf("Reply() error = %v, want ErrGeneration", err)
	}

	// The question stands in history even though no answer arrived.
	turns, _ := hist.Turns(ctx, "1")
	want := []chat.Turn{chat.NewTurn(chat.RoleUser, "hello")}
	if diff := cmp.Diff(want, turns); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestRelay_Reply_RetryAfterFailureDoesNotDuplicateUserTurn(t *testing.T) {
	hist, prompts := newStores(t, "default")
	calls := 0
	flaky := relay.GeneratorFunc(func(_ context.Context, turns []chat.Turn, _ string) (string, error) {
		calls++
		if calls == 1 {
			return "", fmt.Errorf("transient")
		}
		return "answer", nil
	})
	r := relay.New(flaky, hist, prompts, observability.NoOpObserver{})
	ctx := context.Background()

	r.Reply(ctx, "1", "hello")
	text, err := r.Reply(ctx, "1", "hello")
	if err != nil {
		t.Fatalf("second Reply() error = %v", err)
	}
	if text != "answer" {
		t.Errorf("Reply() = %q, want %q", text, "answer")
	}

	turns, _ := hist.Turns(ctx, "1")
	want := []chat.Turn{
		chat.NewTurn(chat.RoleUser, "hello"),
		chat.NewTurn(chat.RoleModel, "answer"),
	}
	if diff := cmp.Diff(want, turns); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestRelay_Reply_IndependentHistories(t *testing.T) {
	hist, prompts := newStores(t, "default")
	r := relay.New(echoGenerator(t, ""), hist, prompts, observability.NoOpObserver{})
	ctx := context.Background()

	r.Reply(ctx, "1", "from one")
	r.Reply(ctx, "2", "from two")

	turns, _ := hist.Turns(ctx, "1")
	if len(turns) != 2 {
		t.Fatalf("identity 1 has %d turns, want 2", len(turns))
	}
	if turns[0].Text != "from one" {
		t.Errorf("identity 1 history contaminated: %v", turns)
	}
}

func TestRelay_Reply_GeneratorSeesFullHistory(t *testing.T) {
	hist, prompts := newStores(t, "default")
	var seen []chat.Turn
	gen := relay.GeneratorFunc(func(_ context.Context, turns []chat.Turn, _ string) (string, error) {
		seen = turns
		return "ok", nil
	})
	r := relay.New(gen, hist, prompts, observability.NoOpObserver{})
	ctx := context.Background()

	r.Reply(ctx, "1", "first")
	r.Reply(ctx, "1", "second")

	want := []chat.Turn{
		chat.NewTurn(chat.RoleUser, "first"),
		chat.NewTurn(chat.RoleModel, "ok"),
		chat.NewTurn(chat.RoleUser, "second"),
	}
	if diff := cmp.Diff(want, seen); diff != "" {
		t.Errorf("generator context mismatch (-want +got):\n%s", diff)
	}
}

func TestNewGeminiGenerator_RequiresAPIKey(t *testing.T) {
	_, err := relay.NewGeminiGenerator(context.Background(), relay.Config{})
	if !errors.Is(err, relay.ErrNoAPIKey) {
		t.Errorf("NewGeminiGenerator() error = %v, want ErrNoAPIKey", err)
	}
}

func TestConfig_Merge(t *testing.T) {
	cfg := relay.DefaultConfig()
	cfg.Merge(&relay.Config{Model: "gemini-2.5-pro", MaxTokens: 1024})

	if cfg.Model != "gemini-2.5-pro" {
		t.Errorf("Model = %q, want %q", cfg.Model, "gemini-2.5-pro")
	}
	if cfg.MaxTokens != 1024 {
		t.Errorf("MaxTokens = %d, want 1024", cfg.MaxTokens)
	}
	if cfg.Temperature != 0.7 {
		t.Errorf("Temperature = %v, want default preserved", cfg.Temperature)
	}
}
