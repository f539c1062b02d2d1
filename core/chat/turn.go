// Package chat defines the conversation vocabulary shared across the gateway:
// turn roles and the Turn record stored in per-identity histories.
package chat

// Role identifies the author of a conversation turn. The vocabulary matches
// the generation API: end users author "user" turns, the model authors
// "model" turns.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// IsValid reports whether the role is one of the known constants.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleModel
}

// Turn is one entry in an identity's conversation history.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// NewTurn creates a Turn with the given role and text.
func NewTurn(role Role, text string) Turn {
	return Turn{Role: role, Text: text}
}

// Same reports whether two turns carry an identical (role, text) pair.
// Used by the history store's consecutive-duplicate append guard.
func (t Turn) Same(other Turn) bool {
	return t.Role == other.Role && t.Text == other.Text
}
