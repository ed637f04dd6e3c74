package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message captures a single transcript entry. Messages are immutable once
// appended, except for the Failed marker set when the assistant reply for a
// user message could not be generated.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Failed    bool      `json:"failed,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
