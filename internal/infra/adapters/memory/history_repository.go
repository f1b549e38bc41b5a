package memory

import (
	"context"
	"sync"

	"github.com/gymsync/gymsync/internal/domain/models"
)

// historyRepository keeps play history in memory, newest first. It backs the
// history endpoint when postgres is disabled.
type historyRepository struct {
	records map[string][]*models.PlayRecord

	nextID int64

	mu sync.RWMutex
}

func NewHistoryRepository() *historyRepository {
	return &historyRepository{
		records: make(map[string][]*models.PlayRecord),
	}
}

func (h *historyRepository) Record(ctx context.Context, record *models.PlayRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	record.ID = h.nextID

	h.records[record.RoomCode] = append([]*models.PlayRecord{record}, h.records[record.RoomCode]...)

	return nil
}

func (h *historyRepository) ListByRoom(ctx context.Context, roomCode string, limit int) ([]*models.PlayRecord, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	records := h.records[roomCode]
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	out := make([]*models.PlayRecord, len(records))
	copy(out, records)

	return out, nil
}
