package memory

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/gymsync/gymsync/internal/application/constant"
)

// ConnectionRepository tracks live websocket connections by connection id and
// serializes writes to each of them.
type ConnectionRepository interface {
	Add(uuid.UUID, *websocket.Conn)
	Remove(connID uuid.UUID)

	Write(connID uuid.UUID, payload any)

	// Ping sends a websocket-level ping frame under the same per-connection
	// lock as Write, keepalive and broadcasts must not interleave.
	Ping(connID uuid.UUID) error
}

type safeWS struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

type connectionRepository struct {
	// conns holds map[conn_id]*ws.conn
	conns map[uuid.UUID]*safeWS

	mu sync.RWMutex
}

func NewConnectionRepository() ConnectionRepository {
	return &connectionRepository{
		conns: make(map[uuid.UUID]*safeWS, 10),
	}
}

func (w *connectionRepository) Add(connID uuid.UUID, conn *websocket.Conn) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.conns[connID] = &safeWS{conn: conn}
}

func (w *connectionRepository) Remove(connID uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.conns, connID)
}

// Write sends one JSON payload. A missing connection is not an error: the
// client may have disconnected while a broadcast was in flight, and the
// remaining members still get theirs.
func (w *connectionRepository) Write(connID uuid.UUID, payload any) {
	safews, ok := w.getSafeWS(connID)
	if !ok {
		return
	}

	safews.mu.Lock()
	defer safews.mu.Unlock()

	if err := safews.conn.WriteJSON(payload); err != nil {
		slog.Error("write to websocket", slog.Any(constant.ClientID, connID), slog.Any(constant.Error, err))
	}
}

func (w *connectionRepository) Ping(connID uuid.UUID) error {
	safews, ok := w.getSafeWS(connID)
	if !ok {
		return errors.New("connection not found")
	}

	safews.mu.Lock()
	defer safews.mu.Unlock()

	return safews.conn.WriteMessage(websocket.PingMessage, nil)
}

func (w *connectionRepository) getSafeWS(connID uuid.UUID) (*safeWS, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	conn, ok := w.conns[connID]

	return conn, ok
}
