package models

import (
	"sort"

	"github.com/google/uuid"
)

// AddTrack appends the track to the queue and stamps its insertion order.
func (r *Room) AddTrack(t *Track) {
	t.seq = r.nextSeq
	r.nextSeq++

	r.Queue = append(r.Queue, t)
}

// RemoveTrack removes the track when present. Removing an unknown id is an
// idempotent no-op, not an error: the remover may have raced a promotion or
// another remover.
func (r *Room) RemoveTrack(id string) bool {
	for i, t := range r.Queue {
		if t.ID == id {
			r.Queue = append(r.Queue[:i], r.Queue[i+1:]...)

			return true
		}
	}

	return false
}

// VoteTrack counts at most one vote per member per track. A repeat vote or an
// unknown track id changes nothing. On success the queue is reordered by
// descending vote count, ties resolved by insertion order.
func (r *Room) VoteTrack(id string, voter uuid.UUID) bool {
	for _, t := range r.Queue {
		if t.ID != id {
			continue
		}

		if _, voted := t.voters[voter]; voted {
			return false
		}

		t.voters[voter] = struct{}{}
		t.Votes++

		r.sortQueue()

		return true
	}

	return false
}

func (r *Room) sortQueue() {
	sort.Slice(r.Queue, func(i, j int) bool {
		if r.Queue[i].Votes != r.Queue[j].Votes {
			return r.Queue[i].Votes > r.Queue[j].Votes
		}

		return r.Queue[i].seq < r.Queue[j].seq
	})
}

// PromoteNext moves the queue head into the current slot. It is the only way
// a track ever starts playing.
func (r *Room) PromoteNext() *Track {
	if r.Current != nil || len(r.Queue) == 0 {
		return nil
	}

	r.Current = r.Queue[0]
	r.Queue = r.Queue[1:]

	return r.Current
}
