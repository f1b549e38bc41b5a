package memory

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/gymsync/gymsync/internal/domain/models"
)

const (
	roomCodeChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	roomCodeLength = 6

	// maxCodeAttempts bounds the collision retry loop. The code space holds
	// about 2.2e9 codes, so exhausting it means something else is broken.
	maxCodeAttempts = 100
)

// RoomRegistry owns the set of live rooms. The code-to-room map is the only
// structure shared across rooms, so every method is safe under concurrent
// create, lookup and remove.
type RoomRegistry interface {
	// Create registers a room under a fresh code, retrying on collision.
	Create() (*models.Room, error)

	// Get looks a room up without touching its reclaim timer.
	Get(code string) (*models.Room, bool)

	// Join looks a room up and disarms a pending reclaim, so a join or
	// reconnect during the grace period keeps the room alive.
	Join(code string) (*models.Room, bool)

	Remove(code string)
	Count() int

	// ScheduleReclaim arms the grace timer for a room that just became
	// empty. The room is destroyed when the timer fires while it is still
	// empty.
	ScheduleReclaim(code string)
}

type roomRegistry struct {
	rooms  map[string]*models.Room
	timers map[string]*time.Timer

	grace     time.Duration
	onReclaim func(roomCode string, remaining int)

	// newCode is swapped in tests to force collisions.
	newCode func() string

	mu sync.Mutex
}

func NewRoomRegistry(grace time.Duration, onReclaim func(roomCode string, remaining int)) RoomRegistry {
	return &roomRegistry{
		rooms:     make(map[string]*models.Room),
		timers:    make(map[string]*time.Timer),
		grace:     grace,
		onReclaim: onReclaim,
		newCode:   newRoomCode,
	}
}

func newRoomCode() string {
	code := make([]byte, roomCodeLength)
	for i := range code {
		code[i] = roomCodeChars[rand.Intn(len(roomCodeChars))]
	}

	return string(code)
}

func (r *roomRegistry) Create() (*models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := r.newCode()
		if _, taken := r.rooms[code]; taken {
			continue
		}

		room := models.NewRoom(code)
		r.rooms[code] = room

		return room, nil
	}

	return nil, fmt.Errorf("no free room code after %d attempts", maxCodeAttempts)
}

func (r *roomRegistry) Get(code string) (*models.Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[code]

	return room, ok
}

func (r *roomRegistry) Join(code string) (*models.Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[code]
	if !ok {
		return nil, false
	}

	if t, armed := r.timers[code]; armed {
		t.Stop()
		delete(r.timers, code)
	}

	return room, true
}

func (r *roomRegistry) Remove(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, armed := r.timers[code]; armed {
		t.Stop()
		delete(r.timers, code)
	}

	delete(r.rooms, code)
}

func (r *roomRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.rooms)
}

func (r *roomRegistry) ScheduleReclaim(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[code]; !ok {
		return
	}

	if t, armed := r.timers[code]; armed {
		t.Stop()
	}

	r.timers[code] = time.AfterFunc(r.grace, func() {
		r.reclaim(code)
	})
}

func (r *roomRegistry) reclaim(code string) {
	r.mu.Lock()

	delete(r.timers, code)

	room, live := r.rooms[code]
	reclaimed := live && room.MemberCount() == 0
	if reclaimed {
		delete(r.rooms, code)
	}

	remaining := len(r.rooms)

	r.mu.Unlock()

	if reclaimed && r.onReclaim != nil {
		r.onReclaim(code, remaining)
	}
}
