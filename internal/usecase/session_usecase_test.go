package usecase

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gymsync/gymsync/internal/auth"
	"github.com/gymsync/gymsync/internal/domain/events"
	"github.com/gymsync/gymsync/internal/domain/models"
	"github.com/gymsync/gymsync/internal/infra/adapters/memory"
)

// connRecorder stands in for the websocket layer and captures every message
// written to every connection.
type connRecorder struct {
	mu   sync.Mutex
	msgs map[uuid.UUID][]events.Message
}

func newConnRecorder() *connRecorder {
	return &connRecorder{msgs: make(map[uuid.UUID][]events.Message)}
}

func (c *connRecorder) Add(uuid.UUID, *websocket.Conn) {}
func (c *connRecorder) Remove(uuid.UUID)               {}
func (c *connRecorder) Ping(uuid.UUID) error           { return nil }

func (c *connRecorder) Write(connID uuid.UUID, payload any) {
	msg, ok := payload.(events.Message)
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.msgs[connID] = append(c.msgs[connID], msg)
}

func (c *connRecorder) count(connID uuid.UUID) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.msgs[connID])
}

func (c *connRecorder) lastOfType(connID uuid.UUID, eventType string) (events.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	msgs := c.msgs[connID]
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Type == eventType {
			return msgs[i], true
		}
	}

	return events.Message{}, false
}

func decode[T any](t *testing.T, msg events.Message) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(msg.Data, &out))

	return out
}

type fixture struct {
	uc       SessionUsecase
	conns    *connRecorder
	registry memory.RoomRegistry
	history  HistoryRepository
	tokens   *auth.SessionTokens
}

func newFixture(t *testing.T, grace time.Duration) *fixture {
	t.Helper()

	conns := newConnRecorder()
	registry := memory.NewRoomRegistry(grace, nil)
	history := memory.NewHistoryRepository()
	tokens := auth.NewSessionTokens("test-secret", time.Minute)

	return &fixture{
		uc:       NewSessionUsecase(registry, conns, memory.NewPresenceRepository(), history, tokens),
		conns:    conns,
		registry: registry,
		history:  history,
		tokens:   tokens,
	}
}

func (f *fixture) createRoom(t *testing.T, username string) (uuid.UUID, events.RoomCreatedEvent) {
	t.Helper()

	connID := uuid.New()
	require.NoError(t, f.uc.HandleCreateRoom(context.Background(), connID, events.CreateRoomEvent{Username: username}))

	msg, ok := f.conns.lastOfType(connID, events.TypeRoomCreated)
	require.True(t, ok, "no room_created event")

	return connID, decode[events.RoomCreatedEvent](t, msg)
}

func (f *fixture) joinRoom(t *testing.T, roomID, username string) uuid.UUID {
	t.Helper()

	connID := uuid.New()
	require.NoError(t, f.uc.HandleJoinRoom(context.Background(), connID, events.JoinRoomEvent{RoomID: roomID, Username: username}))

	_, ok := f.conns.lastOfType(connID, events.TypeRoomJoined)
	require.True(t, ok, "no room_joined event")

	return connID
}

func (f *fixture) addSong(t *testing.T, connID uuid.UUID, id, title string) {
	t.Helper()

	require.NoError(t, f.uc.HandleAddSong(context.Background(), connID, events.AddSongEvent{
		Song: models.Track{ID: id, Title: title, Platform: models.PlatformLocal, Votes: 1},
	}))
}

func TestCreateRoom(t *testing.T) {
	f := newFixture(t, time.Minute)

	connID, created := f.createRoom(t, "Alice")

	assert.Len(t, created.RoomID, 6)
	assert.NotEmpty(t, created.SessionToken)

	require.Len(t, created.State.Users, 1)
	assert.Equal(t, "Alice", created.State.Users[0].Name)
	assert.True(t, created.State.Users[0].IsHost)
	assert.Equal(t, connID, created.State.Users[0].ID)

	claims, err := f.tokens.Parse(created.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, created.RoomID, claims.RoomCode)
}

func TestCreateRoomRequiresUsername(t *testing.T) {
	f := newFixture(t, time.Minute)
	connID := uuid.New()

	require.NoError(t, f.uc.HandleCreateRoom(context.Background(), connID, events.CreateRoomEvent{Username: "  "}))

	msg, ok := f.conns.lastOfType(connID, events.TypeError)
	require.True(t, ok)
	assert.Equal(t, "username is required", decode[events.ErrorEvent](t, msg).Message)
	assert.Equal(t, 0, f.registry.Count())
}

func TestJoinUnknownRoom(t *testing.T) {
	f := newFixture(t, time.Minute)
	connID := uuid.New()

	require.NoError(t, f.uc.HandleJoinRoom(context.Background(), connID, events.JoinRoomEvent{RoomID: "NOSUCH", Username: "Bob"}))

	msg, ok := f.conns.lastOfType(connID, events.TypeError)
	require.True(t, ok)
	assert.Equal(t, "Room not found", decode[events.ErrorEvent](t, msg).Message)

	// A failed join must not create state.
	assert.Equal(t, 0, f.registry.Count())
}

func TestJoinBroadcastsAndNormalizesCode(t *testing.T) {
	f := newFixture(t, time.Minute)

	hostConn, created := f.createRoom(t, "Alice")

	bobConn := uuid.New()
	require.NoError(t, f.uc.HandleJoinRoom(context.Background(), bobConn, events.JoinRoomEvent{
		RoomID:   " " + strings.ToLower(created.RoomID) + " ",
		Username: "Bob",
	}))

	joinMsg, ok := f.conns.lastOfType(bobConn, events.TypeRoomJoined)
	require.True(t, ok)

	joined := decode[events.RoomJoinedEvent](t, joinMsg)
	require.Len(t, joined.State.Users, 2)

	hostMsg, ok := f.conns.lastOfType(hostConn, events.TypeUserJoined)
	require.True(t, ok)
	assert.Equal(t, "Bob", decode[events.UserEvent](t, hostMsg).User.Name)
}

func TestVoteReordersQueueForEveryone(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()

	hostConn, created := f.createRoom(t, "Alice")
	f.addSong(t, hostConn, "t1", "First")
	f.addSong(t, hostConn, "t2", "Second")

	bobConn := f.joinRoom(t, created.RoomID, "Bob")
	carolConn := f.joinRoom(t, created.RoomID, "Carol")

	require.NoError(t, f.uc.HandleVoteSong(ctx, bobConn, events.VoteSongEvent{SongID: "t2"}))
	require.NoError(t, f.uc.HandleVoteSong(ctx, carolConn, events.VoteSongEvent{SongID: "t2"}))

	for _, conn := range []uuid.UUID{hostConn, bobConn, carolConn} {
		msg, ok := f.conns.lastOfType(conn, events.TypeQueueUpdated)
		require.True(t, ok)

		queue := decode[events.QueueUpdatedEvent](t, msg).Queue
		require.Len(t, queue, 2)
		assert.Equal(t, "t2", queue[0].ID)
		assert.Equal(t, "t1", queue[1].ID)
		assert.Equal(t, 3, queue[0].Votes)
	}
}

func TestDuplicateVoteIsSilent(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()

	hostConn, _ := f.createRoom(t, "Alice")
	f.addSong(t, hostConn, "t1", "First")

	require.NoError(t, f.uc.HandleVoteSong(ctx, hostConn, events.VoteSongEvent{SongID: "t1"}))

	before := f.conns.count(hostConn)
	require.NoError(t, f.uc.HandleVoteSong(ctx, hostConn, events.VoteSongEvent{SongID: "t1"}))

	assert.Equal(t, before, f.conns.count(hostConn))
}

func TestCommandsRequireMembership(t *testing.T) {
	f := newFixture(t, time.Minute)
	connID := uuid.New()

	require.NoError(t, f.uc.HandleAddSong(context.Background(), connID, events.AddSongEvent{
		Song: models.Track{Title: "Loose"},
	}))

	msg, ok := f.conns.lastOfType(connID, events.TypeError)
	require.True(t, ok)
	assert.Equal(t, "not in a room", decode[events.ErrorEvent](t, msg).Message)
}

func TestAddSongRejectsUnknownPlatform(t *testing.T) {
	f := newFixture(t, time.Minute)

	hostConn, _ := f.createRoom(t, "Alice")

	require.NoError(t, f.uc.HandleAddSong(context.Background(), hostConn, events.AddSongEvent{
		Song: models.Track{Title: "Bad", Platform: "tape-deck"},
	}))

	msg, ok := f.conns.lastOfType(hostConn, events.TypeError)
	require.True(t, ok)
	assert.Equal(t, "unknown platform", decode[events.ErrorEvent](t, msg).Message)
}

func TestPlayPausePromotesAndRecordsHistory(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()

	hostConn, created := f.createRoom(t, "Alice")
	f.addSong(t, hostConn, "t1", "First")

	require.NoError(t, f.uc.HandlePlayPause(ctx, hostConn))

	trackMsg, ok := f.conns.lastOfType(hostConn, events.TypeTrackChanged)
	require.True(t, ok)

	changed := decode[events.TrackChangedEvent](t, trackMsg)
	require.NotNil(t, changed.CurrentSong)
	assert.Equal(t, "t1", changed.CurrentSong.ID)

	queueMsg, ok := f.conns.lastOfType(hostConn, events.TypeQueueUpdated)
	require.True(t, ok)
	assert.Empty(t, decode[events.QueueUpdatedEvent](t, queueMsg).Queue)

	playMsg, ok := f.conns.lastOfType(hostConn, events.TypePlaybackChanged)
	require.True(t, ok)

	playback := decode[events.PlaybackChangedEvent](t, playMsg)
	assert.True(t, playback.IsPlaying)
	assert.Equal(t, int64(0), playback.Position)
	assert.NotZero(t, playback.Timestamp)

	records, err := f.history.ListByRoom(ctx, created.RoomID, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "First", records[0].Title)
}

func TestPauseKeepsCurrentTrack(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()

	hostConn, created := f.createRoom(t, "Alice")
	f.addSong(t, hostConn, "t1", "First")

	require.NoError(t, f.uc.HandlePlayPause(ctx, hostConn))
	require.NoError(t, f.uc.HandlePlayPause(ctx, hostConn))

	playMsg, ok := f.conns.lastOfType(hostConn, events.TypePlaybackChanged)
	require.True(t, ok)
	assert.False(t, decode[events.PlaybackChangedEvent](t, playMsg).IsPlaying)

	// Pausing does not change tracks, so history has the one promotion.
	records, err := f.history.ListByRoom(ctx, created.RoomID, 10)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestPlayPauseWithEmptyQueueIsSilent(t *testing.T) {
	f := newFixture(t, time.Minute)

	hostConn, _ := f.createRoom(t, "Alice")
	before := f.conns.count(hostConn)

	require.NoError(t, f.uc.HandlePlayPause(context.Background(), hostConn))

	assert.Equal(t, before, f.conns.count(hostConn))
}

func TestSkipAdvancesAndStops(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()

	hostConn, _ := f.createRoom(t, "Alice")
	f.addSong(t, hostConn, "t1", "First")
	f.addSong(t, hostConn, "t2", "Second")

	require.NoError(t, f.uc.HandlePlayPause(ctx, hostConn))
	require.NoError(t, f.uc.HandleSkip(ctx, hostConn))

	trackMsg, ok := f.conns.lastOfType(hostConn, events.TypeTrackChanged)
	require.True(t, ok)

	changed := decode[events.TrackChangedEvent](t, trackMsg)
	require.NotNil(t, changed.CurrentSong)
	assert.Equal(t, "t2", changed.CurrentSong.ID)

	// Skipping the last track clears playback.
	require.NoError(t, f.uc.HandleSkip(ctx, hostConn))

	trackMsg, ok = f.conns.lastOfType(hostConn, events.TypeTrackChanged)
	require.True(t, ok)
	assert.Nil(t, decode[events.TrackChangedEvent](t, trackMsg).CurrentSong)

	playMsg, ok := f.conns.lastOfType(hostConn, events.TypePlaybackChanged)
	require.True(t, ok)
	assert.False(t, decode[events.PlaybackChangedEvent](t, playMsg).IsPlaying)
}

func TestDisconnectHandsOffHost(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()

	hostConn, created := f.createRoom(t, "Alice")
	bobConn := f.joinRoom(t, created.RoomID, "Bob")
	carolConn := f.joinRoom(t, created.RoomID, "Carol")

	f.uc.HandleDisconnect(ctx, hostConn)

	leftMsg, ok := f.conns.lastOfType(bobConn, events.TypeUserLeft)
	require.True(t, ok)
	assert.Equal(t, "Alice", decode[events.UserEvent](t, leftMsg).User.Name)

	for _, conn := range []uuid.UUID{bobConn, carolConn} {
		hostMsg, ok := f.conns.lastOfType(conn, events.TypeHostChanged)
		require.True(t, ok)

		newHost := decode[events.UserEvent](t, hostMsg).User
		assert.Equal(t, "Bob", newHost.Name)
		assert.True(t, newHost.IsHost)
	}

	snapshot, err := f.uc.Snapshot(created.RoomID)
	require.NoError(t, err)
	require.Len(t, snapshot.Users, 2)
}

func TestLastLeaveReclaimsRoomAfterGrace(t *testing.T) {
	f := newFixture(t, 25*time.Millisecond)

	hostConn, created := f.createRoom(t, "Alice")

	require.NoError(t, f.uc.HandleLeaveRoom(context.Background(), hostConn))

	// Room lingers through the grace period, then goes away.
	_, ok := f.registry.Get(created.RoomID)
	assert.True(t, ok)

	require.Eventually(t, func() bool {
		_, ok := f.registry.Get(created.RoomID)
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestJoinDuringGraceKeepsRoom(t *testing.T) {
	f := newFixture(t, 25*time.Millisecond)

	hostConn, created := f.createRoom(t, "Alice")
	require.NoError(t, f.uc.HandleLeaveRoom(context.Background(), hostConn))

	f.joinRoom(t, created.RoomID, "Bob")

	time.Sleep(100 * time.Millisecond)

	_, ok := f.registry.Get(created.RoomID)
	assert.True(t, ok)
}

func TestCreateWhileInRoomVacatesOldSeat(t *testing.T) {
	f := newFixture(t, 25*time.Millisecond)

	connID, first := f.createRoom(t, "Alice")

	require.NoError(t, f.uc.HandleCreateRoom(context.Background(), connID, events.CreateRoomEvent{Username: "Alice"}))

	msg, ok := f.conns.lastOfType(connID, events.TypeRoomCreated)
	require.True(t, ok)

	second := decode[events.RoomCreatedEvent](t, msg)
	require.NotEqual(t, first.RoomID, second.RoomID)

	// The first room is left behind empty and gets reclaimed after the grace.
	firstRoom, ok := f.registry.Get(first.RoomID)
	require.True(t, ok)
	assert.Equal(t, 0, firstRoom.MemberCount())

	require.Eventually(t, func() bool {
		_, ok := f.registry.Get(first.RoomID)
		return !ok
	}, time.Second, 5*time.Millisecond)

	snapshot, err := f.uc.Snapshot(second.RoomID)
	require.NoError(t, err)
	require.Len(t, snapshot.Users, 1)
}

func TestJoinWhileInRoomMovesMembership(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()

	aliceConn, firstRoom := f.createRoom(t, "Alice")
	carolConn := f.joinRoom(t, firstRoom.RoomID, "Carol")

	_, secondRoom := f.createRoom(t, "Bob")

	require.NoError(t, f.uc.HandleJoinRoom(ctx, aliceConn, events.JoinRoomEvent{
		RoomID:   secondRoom.RoomID,
		Username: "Alice",
	}))

	// Alice holds exactly one seat, in the second room.
	first, err := f.uc.Snapshot(firstRoom.RoomID)
	require.NoError(t, err)
	require.Len(t, first.Users, 1)
	assert.Equal(t, "Carol", first.Users[0].Name)
	assert.True(t, first.Users[0].IsHost)

	second, err := f.uc.Snapshot(secondRoom.RoomID)
	require.NoError(t, err)
	require.Len(t, second.Users, 2)

	leftMsg, ok := f.conns.lastOfType(carolConn, events.TypeUserLeft)
	require.True(t, ok)
	assert.Equal(t, "Alice", decode[events.UserEvent](t, leftMsg).User.Name)

	// Broadcasts in the abandoned room no longer reach the moved connection.
	before := f.conns.count(aliceConn)
	f.addSong(t, carolConn, "t1", "First")

	assert.Equal(t, before, f.conns.count(aliceConn))
}

func TestReconnectRestoresSession(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()

	hostConn, created := f.createRoom(t, "Alice")
	f.uc.HandleDisconnect(ctx, hostConn)

	newConn := uuid.New()
	require.NoError(t, f.uc.HandleReconnect(ctx, newConn, events.ReconnectEvent{SessionToken: created.SessionToken}))

	msg, ok := f.conns.lastOfType(newConn, events.TypeReconnected)
	require.True(t, ok)

	reconnected := decode[events.ReconnectedEvent](t, msg)
	require.Len(t, reconnected.State.Users, 1)
	assert.Equal(t, "Alice", reconnected.State.Users[0].Name)
	assert.True(t, reconnected.State.Users[0].IsHost)
	assert.NotEmpty(t, reconnected.SessionToken)
}

func TestReconnectInvalidToken(t *testing.T) {
	f := newFixture(t, time.Minute)
	connID := uuid.New()

	require.NoError(t, f.uc.HandleReconnect(context.Background(), connID, events.ReconnectEvent{SessionToken: "garbage"}))

	msg, ok := f.conns.lastOfType(connID, events.TypeError)
	require.True(t, ok)
	assert.Equal(t, "invalid session token", decode[events.ErrorEvent](t, msg).Message)
}

func TestPingPong(t *testing.T) {
	f := newFixture(t, time.Minute)
	connID := uuid.New()

	f.uc.HandlePing(context.Background(), connID)

	_, ok := f.conns.lastOfType(connID, events.TypePong)
	assert.True(t, ok)
}

func TestSnapshotUnknownRoom(t *testing.T) {
	f := newFixture(t, time.Minute)

	_, err := f.uc.Snapshot("NOSUCH")
	assert.ErrorIs(t, err, models.ErrRoomNotFound)
}
