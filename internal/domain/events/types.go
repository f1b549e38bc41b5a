package events

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/gymsync/gymsync/internal/domain/models"
)

// Message is the envelope of every event on the wire, in both directions.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Client -> server event types.
const (
	TypeCreateRoom = "create_room"
	TypeJoinRoom   = "join_room"
	TypeLeaveRoom  = "leave_room"
	TypeAddSong    = "add_song"
	TypeRemoveSong = "remove_song"
	TypeVoteSong   = "vote_song"
	TypePlayPause  = "play_pause"
	TypeSkip       = "skip"
	TypeReconnect  = "reconnect"
	TypePing       = "ping"
)

// Server -> client event types.
const (
	TypeConnected       = "connected"
	TypeRoomCreated     = "room_created"
	TypeRoomJoined      = "room_joined"
	TypeUserJoined      = "user_joined"
	TypeUserLeft        = "user_left"
	TypeHostChanged     = "host_changed"
	TypeQueueUpdated    = "queue_updated"
	TypeTrackChanged    = "track_changed"
	TypePlaybackChanged = "playback_changed"
	TypeReconnected     = "reconnected"
	TypePong            = "pong"
	TypeError           = "error"
)

type CreateRoomEvent struct {
	Username string `json:"username"`
}

type JoinRoomEvent struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

type AddSongEvent struct {
	Song models.Track `json:"song"`
}

type RemoveSongEvent struct {
	SongID string `json:"songId"`
}

type VoteSongEvent struct {
	SongID string `json:"songId"`
}

type ReconnectEvent struct {
	SessionToken string `json:"sessionToken"`
}

type ConnectedEvent struct {
	ClientID uuid.UUID `json:"clientId"`
}

type RoomCreatedEvent struct {
	RoomID       string              `json:"roomId"`
	State        models.RoomSnapshot `json:"state"`
	SessionToken string              `json:"sessionToken"`
}

type RoomJoinedEvent struct {
	State        models.RoomSnapshot `json:"state"`
	SessionToken string              `json:"sessionToken"`
}

type ReconnectedEvent struct {
	State        models.RoomSnapshot `json:"state"`
	SessionToken string              `json:"sessionToken"`
}

// UserEvent carries the member a membership event is about: user_joined,
// user_left and host_changed.
type UserEvent struct {
	User models.Member `json:"user"`
}

type QueueUpdatedEvent struct {
	Queue []models.Track `json:"queue"`
}

type TrackChangedEvent struct {
	CurrentSong *models.Track `json:"currentSong"`
}

// PlaybackChangedEvent broadcasts the new anchor. Clients derive live
// position from (position, timestamp), nothing streams per-second updates.
type PlaybackChangedEvent struct {
	IsPlaying bool  `json:"isPlaying"`
	Position  int64 `json:"position"`
	Timestamp int64 `json:"timestamp"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}

// NewMessage marshals a payload into an envelope. Payloads are plain structs,
// marshaling them cannot fail in practice, so errors are swallowed here to
// keep every call site flat.
func NewMessage(eventType string, payload any) Message {
	data, _ := json.Marshal(payload)

	return Message{Type: eventType, Data: data}
}
