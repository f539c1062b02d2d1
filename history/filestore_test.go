package history_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tailored-agentic-units/gateway/core/chat"
	"github.com/tailored-agentic-units/gateway/history"
)

func TestFileStore_Turns_Empty(t *testing.T) {
	store := history.NewFileStore(t.TempDir())

	turns, err := store.Turns(context.Background(), "15551234567")
	if err != nil {
		t.Fatalf("Turns() error = %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("Turns() returned %d turns, want 0", len(turns))
	}
}

func TestFileStore_Append_Order(t *testing.T) {
	store := history.NewFileStore(t.TempDir())
	ctx := context.Background()

	want := []chat.Turn{
		chat.NewTurn(chat.RoleUser, "hello"),
		chat.NewTurn(chat.RoleModel, "hi there"),
		chat.NewTurn(chat.RoleUser, "how are you"),
	}
	for _, turn := range want {
		if err := store.Append(ctx, "15551234567", turn); err != nil {
			t.Fatalf("Append(%v) error = %v", turn, err)
		}
	}

	got, err := store.Turns(ctx, "15551234567")
	if err != nil {
		t.Fatalf("Turns() error = %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Turns() mismatch (-want +got):\n%s", diff)
	}
}

func TestFileStore_Append_ConsecutiveDuplicate(t *testing.T) {
	store := history.NewFileStore(t.TempDir())
	ctx := context.Background()

	turn := chat.NewTurn(chat.RoleUser, "hello")
	if err := store.Append(ctx, "1", turn); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := store.Append(ctx, "1", turn); err != nil {
		t.Fatalf("duplicate Append() error = %v", err)
	}

	turns, err := store.Turns(ctx, "1")
	if err != nil {
		t.Fatalf("Turns() error = %v", err)
	}
	if len(turns) != 1 {
		t.Errorf("got %d turns after duplicate append, want 1", len(turns))
	}
}

func TestFileStore_Append_NonConsecutiveDuplicateKept(t *testing.T) {
	store := history.NewFileStore(t.TempDir())
	ctx := context.Background()

	store.Append(ctx, "1", chat.NewTurn(chat.RoleUser, "hello"))
	store.Append(ctx, "1", chat.NewTurn(chat.RoleModel, "hi"))
	store.Append(ctx, "1", chat.NewTurn(chat.RoleUser, "hello"))

	turns, err := store.Turns(ctx, "1")
	if err != nil {
		t.Fatalf("Turns() error = %v", err)
	}
	if len(turns) != 3 {
		t.Errorf("got %d turns, want 3 (duplicate guard is consecutive-only)", len(turns))
	}
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()

	first := history.NewFileStore(root)
	first.Append(ctx, "15551234567", chat.NewTurn(chat.RoleUser, "hello"))
	first.Append(ctx, "15551234567", chat.NewTurn(chat.RoleModel, "hi"))

	second := history.NewFileStore(root)
	turns, err := second.Turns(ctx, "15551234567")
	if err != nil {
		t.Fatalf("Turns() error = %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("reloaded %d turns, want 2", len(turns))
	}
	if turns[1].Role != chat.RoleModel {
		t.Errorf("turns[1].Role = %q, want %q", turns[1].Role, chat.RoleModel)
	}
}

func TestFileStore_IdentityIsolation(t *testing.T) {
	store := history.NewFileStore(t.TempDir())
	ctx := context.Background()

	store.Append(ctx, "1", chat.NewTurn(chat.RoleUser, "from one"))
	store.Append(ctx, "2", chat.NewTurn(chat.RoleUser, "from two"))

	turns, err := store.Turns(ctx, "1")
	if err != nil {
		t.Fatalf("Turns() error = %v", err)
	}
	if len(turns) != 1 || turns[0].Text != "from one" {
		t.Errorf("identity 1 log contaminated: %v", turns)
	}
}

func TestFileStore_Clear(t *testing.T) {
	root := t.TempDir()
	store := history.NewFileStore(root)
	ctx := context.Background()

	store.Append(ctx, "1", chat.NewTurn(chat.RoleUser, "hello"))

	if err := store.Clear(ctx, "1"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	turns, err := store.Turns(ctx, "1")
	if err != nil {
		t.Fatalf("Turns() error = %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("got %d turns after Clear, want 0", len(turns))
	}

	if _, err := os.Stat(filepath.Join(root, "1.json")); !os.IsNotExist(err) {
		t.Error("history file should be removed by Clear")
	}
}

func TestFileStore_Clear_Missing(t *testing.T) {
	store := history.NewFileStore(t.TempDir())

	if err := store.Clear(context.Background(), "nope"); err != nil {
		t.Errorf("Clear() of unknown identity error = %v, want nil", err)
	}
}

func TestFileStore_Turns_DefensiveCopy(t *testing.T) {
	store := history.NewFileStore(t.TempDir())
	ctx := context.Background()

	store.Append(ctx, "1", chat.NewTurn(chat.RoleUser, "hello"))

	turns, _ := store.Turns(ctx, "1")
	turns[0].Text = "mutated"

	again, _ := store.Turns(ctx, "1")
	if again[0].Text != "hello" {
		t.Errorf("store log mutated through returned slice: %q", again[0].Text)
	}
}
