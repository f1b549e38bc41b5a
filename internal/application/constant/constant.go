package constant

// slog attribute keys.
const (
	Error    = "error"
	RoomCode = "room_code"
	ClientID = "client_id"
	UserName = "user_name"
	Event    = "event"
)
