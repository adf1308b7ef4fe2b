package domain

import "time"

// Turn is one persisted message of a conversation session.
// Content is what gets replayed into prompts, so user turns hold the English working query.
// Original keeps the user's own wording when it differs from Content.
type Turn struct {
	ID        string
	SessionID string
	Role      Role
	Content   string
	Original  string
	CreatedAt time.Time
}
