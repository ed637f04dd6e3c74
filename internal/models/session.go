package models

import "time"

// Session holds all state scoped to one user's continuous use of the
// assistant: the API credential, the selected provider/model, the chat
// transcript, and the speech settings. Sessions live in memory only and are
// destroyed when the session ends.
type Session struct {
	ID         string    `json:"id"`
	Credential string    `json:"-"`
	Provider   string    `json:"provider"`
	Model      string    `json:"model"`
	Language   string    `json:"language"`
	Speed      float64   `json:"speed"`
	Transcript []Message `json:"transcript"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
