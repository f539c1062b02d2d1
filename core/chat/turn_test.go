package chat_test

import (
	"encoding/json"
	"testing"

	"github.com/tailored-agentic-units/gateway/core/chat"
)

func TestNewTurn(t *testing.T) {
	turn := chat.NewTurn(chat.RoleUser, "hello")

	if turn.Role != chat.RoleUser {
		t.Errorf("got role %q, want %q", turn.Role, chat.RoleUser)
	}
	if turn.Text != "hello" {
		t.Errorf("got text %q, want %q", turn.Text, "hello")
	}
}

func TestTurn_Same(t *testing.T) {
	tests := []struct {
		name string
		a, b chat.Turn
		want bool
	}{
		{"identical", chat.NewTurn(chat.RoleUser, "hi"), chat.NewTurn(chat.RoleUser, "hi"), true},
		{"different text", chat.NewTurn(chat.RoleUser, "hi"), chat.NewTurn(chat.RoleUser, "bye"), false},
		{"different role", chat.NewTurn(chat.RoleUser, "hi"), chat.NewTurn(chat.RoleModel, "hi"), false},
		{"both empty", chat.Turn{}, chat.Turn{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Same(tt.b); got != tt.want {
				t.Errorf("Same() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRole_IsValid(t *testing.T) {
	if !chat.RoleUser.IsValid() {
		t.Error("user role should be valid")
	}
	if !chat.RoleModel.IsValid() {
		t.Error("model role should be valid")
	}
	if chat.Role("assistant").IsValid() {
		t.Error("unknown role should not be valid")
	}
}

func TestTurn_JSON(t *testing.T) {
	turn := chat.NewTurn(chat.RoleModel, "reply text")

	data, err := json.Marshal(turn)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	want := `{"role":"model","text":"reply text"}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}
}
