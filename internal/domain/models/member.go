package models

import "github.com/google/uuid"

// Member is one participant of a room. The id is connection-scoped: a member
// lives exactly as long as the connection that joined it.
type Member struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	IsHost bool      `json:"isHost"`
}
