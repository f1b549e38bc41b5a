package models

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQueuedRoom(t *testing.T, titles ...string) *Room {
	t.Helper()

	room := NewRoom("ABC123")
	for _, title := range titles {
		room.AddTrack(NewTrack(Track{ID: title, Title: title, Platform: PlatformLocal, Votes: 1}))
	}

	return room
}

func queueIDs(room *Room) []string {
	ids := make([]string, 0, len(room.Queue))
	for _, track := range room.Queue {
		ids = append(ids, track.ID)
	}

	return ids
}

func TestVoteReordersByDescendingVotes(t *testing.T) {
	room := newQueuedRoom(t, "t1", "t2")

	voterA := uuid.New()
	voterB := uuid.New()

	require.True(t, room.VoteTrack("t2", voterA))
	require.True(t, room.VoteTrack("t2", voterB))

	assert.Equal(t, []string{"t2", "t1"}, queueIDs(room))
	assert.Equal(t, 3, room.Queue[0].Votes)
}

func TestVoteTieBreaksByInsertionOrder(t *testing.T) {
	room := newQueuedRoom(t, "a", "b", "c")

	// b reaches 2 votes first, then a catches up. With equal votes the
	// earlier-added track must come first.
	require.True(t, room.VoteTrack("b", uuid.New()))
	require.True(t, room.VoteTrack("a", uuid.New()))

	assert.Equal(t, []string{"a", "b", "c"}, queueIDs(room))
}

func TestVoteIsIdempotentPerMember(t *testing.T) {
	room := newQueuedRoom(t, "t1")
	voter := uuid.New()

	require.True(t, room.VoteTrack("t1", voter))
	assert.False(t, room.VoteTrack("t1", voter))

	assert.Equal(t, 2, room.Queue[0].Votes)
}

func TestVoteUnknownTrackIsNoop(t *testing.T) {
	room := newQueuedRoom(t, "t1")

	assert.False(t, room.VoteTrack("missing", uuid.New()))
	assert.Equal(t, 1, room.Queue[0].Votes)
}

func TestVoteSequencesKeepQueueSorted(t *testing.T) {
	room := newQueuedRoom(t, "a", "b", "c", "d", "e")
	ids := []string{"a", "b", "c", "d", "e"}

	insertion := make(map[string]int, len(ids))
	for i, id := range ids {
		insertion[id] = i
	}

	for i := 0; i < 200; i++ {
		room.VoteTrack(ids[rand.Intn(len(ids))], uuid.New())

		for j := 1; j < len(room.Queue); j++ {
			prev, cur := room.Queue[j-1], room.Queue[j]

			require.GreaterOrEqual(t, prev.Votes, cur.Votes)

			if prev.Votes == cur.Votes {
				require.Less(t, insertion[prev.ID], insertion[cur.ID])
			}
		}
	}
}

func TestRemoveTrack(t *testing.T) {
	room := newQueuedRoom(t, "t1", "t2")

	assert.True(t, room.RemoveTrack("t1"))
	assert.Equal(t, []string{"t2"}, queueIDs(room))

	// Removing an unknown id is an idempotent no-op.
	assert.False(t, room.RemoveTrack("t1"))
	assert.Equal(t, []string{"t2"}, queueIDs(room))
}

func TestPromoteNextMovesQueueHead(t *testing.T) {
	room := newQueuedRoom(t, "t1", "t2")

	promoted := room.PromoteNext()

	require.NotNil(t, promoted)
	assert.Equal(t, "t1", promoted.ID)
	assert.Same(t, promoted, room.Current)
	assert.Equal(t, []string{"t2"}, queueIDs(room))

	// Occupied current slot blocks promotion.
	assert.Nil(t, room.PromoteNext())
}

func TestPromoteNextEmptyQueue(t *testing.T) {
	room := NewRoom("ABC123")

	assert.Nil(t, room.PromoteNext())
	assert.Nil(t, room.Current)
}

func TestNewTrackDefaults(t *testing.T) {
	track := NewTrack(Track{Title: "no id", Votes: -3})

	assert.NotEmpty(t, track.ID)
	assert.Equal(t, 0, track.Votes)
}
