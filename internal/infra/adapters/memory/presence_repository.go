package memory

import (
	"sync"

	"github.com/google/uuid"
)

// Attachment binds a connection to the room it joined. The member id equals
// the connection id, so the attachment only needs the room side.
type Attachment struct {
	RoomCode string
	Username string
}

// PresenceRepository maps live connections to their room attachment. A
// connection without an attachment is connected but not in any room.
type PresenceRepository interface {
	Attach(connID uuid.UUID, att Attachment)
	Detach(connID uuid.UUID)
	Get(connID uuid.UUID) (Attachment, bool)
}

type presenceRepository struct {
	attachments map[uuid.UUID]Attachment

	mu sync.RWMutex
}

func NewPresenceRepository() PresenceRepository {
	return &presenceRepository{
		attachments: make(map[uuid.UUID]Attachment),
	}
}

func (p *presenceRepository) Attach(connID uuid.UUID, att Attachment) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.attachments[connID] = att
}

func (p *presenceRepository) Detach(connID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.attachments, connID)
}

func (p *presenceRepository) Get(connID uuid.UUID) (Attachment, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	att, ok := p.attachments[connID]

	return att, ok
}
