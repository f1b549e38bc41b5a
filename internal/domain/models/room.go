package models

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Room is the authoritative state of one listening session: ordered members,
// the voted queue, the current track and the playback anchor.
//
// Mutating methods expect the caller to hold the room lock. Commands against
// the same room are serialized by it; rooms share no mutable state with each
// other.
type Room struct {
	Code    string
	Members []*Member
	Queue   []*Track
	Current *Track

	Playing bool

	// Playback anchor. Live position is derived from it on demand, nothing
	// broadcasts positions on a timer.
	AnchorPosition int64 // milliseconds into the current track at AnchorAt
	AnchorAt       int64 // unix milliseconds

	nextSeq int

	mu sync.Mutex
}

func NewRoom(code string) *Room {
	return &Room{Code: code}
}

func (r *Room) Lock()   { r.mu.Lock() }
func (r *Room) Unlock() { r.mu.Unlock() }

// AddMember appends a member in join order. The first member of a room
// becomes its host, including a reconnecting member reviving an empty room.
func (r *Room) AddMember(id uuid.UUID, name string) *Member {
	m := &Member{
		ID:     id,
		Name:   name,
		IsHost: len(r.Members) == 0,
	}

	r.Members = append(r.Members, m)

	return m
}

// RemoveMember removes the member if present; an unknown id is a no-op. When
// the host leaves, the earliest-joined survivor inherits the role and is
// returned as newHost.
func (r *Room) RemoveMember(id uuid.UUID) (removed, newHost *Member, empty bool) {
	for i, m := range r.Members {
		if m.ID == id {
			removed = m
			r.Members = append(r.Members[:i], r.Members[i+1:]...)

			break
		}
	}

	if removed == nil {
		return nil, nil, len(r.Members) == 0
	}

	if removed.IsHost && len(r.Members) > 0 {
		r.Members[0].IsHost = true
		newHost = r.Members[0]
	}

	return removed, newHost, len(r.Members) == 0
}

// MemberCount takes the room lock itself; the registry's reclaim timer calls
// it without holding it.
func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.Members)
}

// RoomSnapshot is the client-facing copy of a room's state.
type RoomSnapshot struct {
	RoomID      string   `json:"roomId"`
	Users       []Member `json:"users"`
	Queue       []Track  `json:"queue"`
	CurrentSong *Track   `json:"currentSong"`
	IsPlaying   bool     `json:"isPlaying"`
	Position    int64    `json:"position"`
	Timestamp   int64    `json:"timestamp"`
}

// Snapshot copies everything a client renders. The receiver keeps ownership
// of members and tracks.
func (r *Room) Snapshot(now time.Time) RoomSnapshot {
	s := RoomSnapshot{
		RoomID:    r.Code,
		Users:     make([]Member, 0, len(r.Members)),
		Queue:     r.QueueTracks(),
		IsPlaying: r.Playing,
		Position:  r.Position(now),
		Timestamp: r.AnchorAt,
	}

	for _, m := range r.Members {
		s.Users = append(s.Users, *m)
	}

	if r.Current != nil {
		current := *r.Current
		s.CurrentSong = &current
	}

	return s
}

// QueueTracks copies the queue in priority order.
func (r *Room) QueueTracks() []Track {
	q := make([]Track, 0, len(r.Queue))
	for _, t := range r.Queue {
		q = append(q, *t)
	}

	return q
}
