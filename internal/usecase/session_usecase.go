package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gymsync/gymsync/internal/application/constant"
	"github.com/gymsync/gymsync/internal/application/metric"
	"github.com/gymsync/gymsync/internal/auth"
	"github.com/gymsync/gymsync/internal/domain/events"
	"github.com/gymsync/gymsync/internal/domain/models"
	"github.com/gymsync/gymsync/internal/infra/adapters/memory"
)

// HistoryRepository records promoted tracks and serves them back per room.
type HistoryRepository interface {
	Record(ctx context.Context, record *models.PlayRecord) error
	ListByRoom(ctx context.Context, roomCode string, limit int) ([]*models.PlayRecord, error)
}

// SessionUsecase is the command pipeline behind the gateway. Every mutation
// of a room goes through here, applies atomically under that room's lock and
// fans its events out to the whole room, the sender included, so all replicas
// render the same state.
type SessionUsecase interface {
	HandleCreateRoom(ctx context.Context, connID uuid.UUID, ev events.CreateRoomEvent) error
	HandleJoinRoom(ctx context.Context, connID uuid.UUID, ev events.JoinRoomEvent) error
	HandleLeaveRoom(ctx context.Context, connID uuid.UUID) error
	HandleReconnect(ctx context.Context, connID uuid.UUID, ev events.ReconnectEvent) error

	HandleAddSong(ctx context.Context, connID uuid.UUID, ev events.AddSongEvent) error
	HandleRemoveSong(ctx context.Context, connID uuid.UUID, ev events.RemoveSongEvent) error
	HandleVoteSong(ctx context.Context, connID uuid.UUID, ev events.VoteSongEvent) error

	HandlePlayPause(ctx context.Context, connID uuid.UUID) error
	HandleSkip(ctx context.Context, connID uuid.UUID) error

	HandlePing(ctx context.Context, connID uuid.UUID)
	HandleDisconnect(ctx context.Context, connID uuid.UUID)

	Snapshot(code string) (models.RoomSnapshot, error)
	History(ctx context.Context, code string, limit int) ([]*models.PlayRecord, error)
}

type sessionUsecase struct {
	registry     memory.RoomRegistry
	connRepo     memory.ConnectionRepository
	presenceRepo memory.PresenceRepository
	historyRepo  HistoryRepository

	tokens *auth.SessionTokens
}

func NewSessionUsecase(
	registry memory.RoomRegistry,
	connRepo memory.ConnectionRepository,
	presenceRepo memory.PresenceRepository,
	historyRepo HistoryRepository,
	tokens *auth.SessionTokens,
) SessionUsecase {
	return &sessionUsecase{
		registry:     registry,
		connRepo:     connRepo,
		presenceRepo: presenceRepo,
		historyRepo:  historyRepo,
		tokens:       tokens,
	}
}

func (s *sessionUsecase) HandleCreateRoom(ctx context.Context, connID uuid.UUID, ev events.CreateRoomEvent) error {
	if strings.TrimSpace(ev.Username) == "" {
		s.sendError(connID, events.TypeCreateRoom, "username is required")
		return nil
	}

	s.leaveCurrent(connID)

	room, err := s.registry.Create()
	if err != nil {
		return fmt.Errorf("create room: %w", err)
	}

	token, err := s.tokens.Issue(room.Code, connID, ev.Username)
	if err != nil {
		s.registry.Remove(room.Code)
		metric.SetRoomsActive(s.registry.Count())

		return fmt.Errorf("issue session token: %w", err)
	}

	room.Lock()
	host := room.AddMember(connID, ev.Username)
	snapshot := room.Snapshot(time.Now())
	room.Unlock()

	s.presenceRepo.Attach(connID, memory.Attachment{RoomCode: room.Code, Username: ev.Username})

	s.connRepo.Write(connID, events.NewMessage(events.TypeRoomCreated, events.RoomCreatedEvent{
		RoomID:       room.Code,
		State:        snapshot,
		SessionToken: token,
	}))

	metric.SetRoomsActive(s.registry.Count())

	slog.Info("room created",
		slog.String(constant.RoomCode, room.Code),
		slog.String(constant.UserName, host.Name),
	)

	return nil
}

func (s *sessionUsecase) HandleJoinRoom(ctx context.Context, connID uuid.UUID, ev events.JoinRoomEvent) error {
	if strings.TrimSpace(ev.Username) == "" || strings.TrimSpace(ev.RoomID) == "" {
		s.sendError(connID, events.TypeJoinRoom, "roomId and username are required")
		return nil
	}

	code := strings.ToUpper(strings.TrimSpace(ev.RoomID))

	s.leaveCurrent(connID)

	// Join instead of Get: arriving during the empty-room grace period must
	// disarm the reclaim timer.
	room, ok := s.registry.Join(code)
	if !ok {
		s.sendError(connID, events.TypeJoinRoom, "Room not found")
		return nil
	}

	token, err := s.tokens.Issue(code, connID, ev.Username)
	if err != nil {
		return fmt.Errorf("issue session token: %w", err)
	}

	room.Lock()
	member := room.AddMember(connID, ev.Username)
	snapshot := room.Snapshot(time.Now())

	s.connRepo.Write(connID, events.NewMessage(events.TypeRoomJoined, events.RoomJoinedEvent{
		State:        snapshot,
		SessionToken: token,
	}))
	s.broadcast(room, events.NewMessage(events.TypeUserJoined, events.UserEvent{User: *member}))
	room.Unlock()

	s.presenceRepo.Attach(connID, memory.Attachment{RoomCode: code, Username: ev.Username})

	slog.Info("member joined",
		slog.String(constant.RoomCode, code),
		slog.String(constant.UserName, ev.Username),
	)

	return nil
}

func (s *sessionUsecase) HandleReconnect(ctx context.Context, connID uuid.UUID, ev events.ReconnectEvent) error {
	claims, err := s.tokens.Parse(ev.SessionToken)
	if err != nil {
		s.sendError(connID, events.TypeReconnect, models.ErrInvalidSessionToken.Error())
		return nil
	}

	s.leaveCurrent(connID)

	room, ok := s.registry.Join(claims.RoomCode)
	if !ok {
		s.sendError(connID, events.TypeReconnect, "Room not found")
		return nil
	}

	// A fresh token keeps the reconnect window rolling for flaky clients.
	token, err := s.tokens.Issue(claims.RoomCode, connID, claims.Username)
	if err != nil {
		return fmt.Errorf("issue session token: %w", err)
	}

	room.Lock()
	member := room.AddMember(connID, claims.Username)
	snapshot := room.Snapshot(time.Now())

	s.connRepo.Write(connID, events.NewMessage(events.TypeReconnected, events.ReconnectedEvent{
		State:        snapshot,
		SessionToken: token,
	}))
	s.broadcast(room, events.NewMessage(events.TypeUserJoined, events.UserEvent{User: *member}))
	room.Unlock()

	s.presenceRepo.Attach(connID, memory.Attachment{RoomCode: claims.RoomCode, Username: claims.Username})

	slog.Info("member reconnected",
		slog.String(constant.RoomCode, claims.RoomCode),
		slog.String(constant.UserName, claims.Username),
	)

	return nil
}

func (s *sessionUsecase) HandleLeaveRoom(ctx context.Context, connID uuid.UUID) error {
	att, ok := s.presenceRepo.Get(connID)
	if !ok {
		s.sendError(connID, events.TypeLeaveRoom, models.ErrNotInRoom.Error())
		return nil
	}

	s.leave(connID, att)

	return nil
}

// HandleDisconnect is the implicit leave. A connection that was never in a
// room just goes away.
func (s *sessionUsecase) HandleDisconnect(ctx context.Context, connID uuid.UUID) {
	att, ok := s.presenceRepo.Get(connID)
	if !ok {
		return
	}

	s.leave(connID, att)
}

// leaveCurrent detaches a connection that is already in a room before it
// enters another one. A connection holds at most one seat at a time.
func (s *sessionUsecase) leaveCurrent(connID uuid.UUID) {
	if att, ok := s.presenceRepo.Get(connID); ok {
		s.leave(connID, att)
	}
}

func (s *sessionUsecase) leave(connID uuid.UUID, att memory.Attachment) {
	s.presenceRepo.Detach(connID)

	room, ok := s.registry.Get(att.RoomCode)
	if !ok {
		return
	}

	room.Lock()
	removed, newHost, empty := room.RemoveMember(connID)

	if removed != nil {
		s.broadcast(room, events.NewMessage(events.TypeUserLeft, events.UserEvent{User: *removed}))

		if newHost != nil {
			s.broadcast(room, events.NewMessage(events.TypeHostChanged, events.UserEvent{User: *newHost}))
		}
	}
	room.Unlock()

	if empty {
		s.registry.ScheduleReclaim(att.RoomCode)
	}

	slog.Info("member left",
		slog.String(constant.RoomCode, att.RoomCode),
		slog.String(constant.UserName, att.Username),
	)
}

func (s *sessionUsecase) HandleAddSong(ctx context.Context, connID uuid.UUID, ev events.AddSongEvent) error {
	att, ok := s.requireAttachment(connID, events.TypeAddSong)
	if !ok {
		return nil
	}

	song := ev.Song

	if strings.TrimSpace(song.Title) == "" && strings.TrimSpace(song.URL) == "" {
		s.sendError(connID, events.TypeAddSong, "song needs a title or url")
		return nil
	}

	if song.Platform == "" {
		song.Platform = models.PlatformLocal
	}

	if !song.Platform.Valid() {
		s.sendError(connID, events.TypeAddSong, "unknown platform")
		return nil
	}

	if song.AddedBy == "" {
		song.AddedBy = att.Username
	}

	room, ok := s.registry.Get(att.RoomCode)
	if !ok {
		return nil
	}

	track := models.NewTrack(song)

	room.Lock()
	room.AddTrack(track)
	s.broadcast(room, events.NewMessage(events.TypeQueueUpdated, events.QueueUpdatedEvent{Queue: room.QueueTracks()}))
	room.Unlock()

	return nil
}

func (s *sessionUsecase) HandleRemoveSong(ctx context.Context, connID uuid.UUID, ev events.RemoveSongEvent) error {
	att, ok := s.requireAttachment(connID, events.TypeRemoveSong)
	if !ok {
		return nil
	}

	if ev.SongID == "" {
		s.sendError(connID, events.TypeRemoveSong, "songId is required")
		return nil
	}

	room, ok := s.registry.Get(att.RoomCode)
	if !ok {
		return nil
	}

	room.Lock()
	// Removing an already gone track is an idempotent no-op, nothing to tell
	// the room about.
	if room.RemoveTrack(ev.SongID) {
		s.broadcast(room, events.NewMessage(events.TypeQueueUpdated, events.QueueUpdatedEvent{Queue: room.QueueTracks()}))
	}
	room.Unlock()

	return nil
}

func (s *sessionUsecase) HandleVoteSong(ctx context.Context, connID uuid.UUID, ev events.VoteSongEvent) error {
	att, ok := s.requireAttachment(connID, events.TypeVoteSong)
	if !ok {
		return nil
	}

	if ev.SongID == "" {
		s.sendError(connID, events.TypeVoteSong, "songId is required")
		return nil
	}

	room, ok := s.registry.Get(att.RoomCode)
	if !ok {
		return nil
	}

	room.Lock()
	if room.VoteTrack(ev.SongID, connID) {
		s.broadcast(room, events.NewMessage(events.TypeQueueUpdated, events.QueueUpdatedEvent{Queue: room.QueueTracks()}))
	}
	room.Unlock()

	return nil
}

func (s *sessionUsecase) HandlePlayPause(ctx context.Context, connID uuid.UUID) error {
	att, ok := s.requireAttachment(connID, events.TypePlayPause)
	if !ok {
		return nil
	}

	room, ok := s.registry.Get(att.RoomCode)
	if !ok {
		return nil
	}

	now := time.Now()

	room.Lock()
	before := room.Current

	if !room.TogglePlayback(now) {
		room.Unlock()
		return nil
	}

	var promoted *models.PlayRecord

	if room.Current != before {
		promoted = models.NewPlayRecord(room.Code, room.Current, now)

		current := *room.Current
		s.broadcast(room,
			events.NewMessage(events.TypeTrackChanged, events.TrackChangedEvent{CurrentSong: &current}),
			events.NewMessage(events.TypeQueueUpdated, events.QueueUpdatedEvent{Queue: room.QueueTracks()}),
		)
	}

	s.broadcast(room, events.NewMessage(events.TypePlaybackChanged, events.PlaybackChangedEvent{
		IsPlaying: room.Playing,
		Position:  room.Position(now),
		Timestamp: room.AnchorAt,
	}))
	room.Unlock()

	s.recordPlay(ctx, promoted)

	return nil
}

func (s *sessionUsecase) HandleSkip(ctx context.Context, connID uuid.UUID) error {
	att, ok := s.requireAttachment(connID, events.TypeSkip)
	if !ok {
		return nil
	}

	room, ok := s.registry.Get(att.RoomCode)
	if !ok {
		return nil
	}

	now := time.Now()

	room.Lock()
	next, changed := room.SkipTrack(now)
	if !changed {
		room.Unlock()
		return nil
	}

	var promoted *models.PlayRecord

	trackChanged := events.TrackChangedEvent{}
	if next != nil {
		promoted = models.NewPlayRecord(room.Code, next, now)

		current := *next
		trackChanged.CurrentSong = &current
	}

	s.broadcast(room,
		events.NewMessage(events.TypeTrackChanged, trackChanged),
		events.NewMessage(events.TypeQueueUpdated, events.QueueUpdatedEvent{Queue: room.QueueTracks()}),
		events.NewMessage(events.TypePlaybackChanged, events.PlaybackChangedEvent{
			IsPlaying: room.Playing,
			Position:  room.Position(now),
			Timestamp: room.AnchorAt,
		}),
	)
	room.Unlock()

	s.recordPlay(ctx, promoted)

	return nil
}

func (s *sessionUsecase) HandlePing(ctx context.Context, connID uuid.UUID) {
	s.connRepo.Write(connID, events.Message{Type: events.TypePong})
}

func (s *sessionUsecase) Snapshot(code string) (models.RoomSnapshot, error) {
	room, ok := s.registry.Get(strings.ToUpper(code))
	if !ok {
		return models.RoomSnapshot{}, models.ErrRoomNotFound
	}

	room.Lock()
	snapshot := room.Snapshot(time.Now())
	room.Unlock()

	return snapshot, nil
}

func (s *sessionUsecase) History(ctx context.Context, code string, limit int) ([]*models.PlayRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	return s.historyRepo.ListByRoom(ctx, strings.ToUpper(code), limit)
}

// broadcast fans messages out to every member of the room, in order. The
// caller holds the room lock, which is what makes the per-room event order
// match the command serialization order.
func (s *sessionUsecase) broadcast(room *models.Room, msgs ...events.Message) {
	for _, msg := range msgs {
		for _, member := range room.Members {
			s.connRepo.Write(member.ID, msg)
		}
	}
}

func (s *sessionUsecase) requireAttachment(connID uuid.UUID, command string) (memory.Attachment, bool) {
	att, ok := s.presenceRepo.Get(connID)
	if !ok {
		s.sendError(connID, command, models.ErrNotInRoom.Error())
		return memory.Attachment{}, false
	}

	return att, true
}

func (s *sessionUsecase) recordPlay(ctx context.Context, record *models.PlayRecord) {
	if record == nil {
		return
	}

	if err := s.historyRepo.Record(ctx, record); err != nil {
		slog.Error("record play history",
			slog.String(constant.RoomCode, record.RoomCode),
			slog.Any(constant.Error, err),
		)
	}
}

// sendError rejects one command for one connection. The fault stays scoped
// there: no state changed and nobody else hears about it.
func (s *sessionUsecase) sendError(connID uuid.UUID, command, message string) {
	metric.RecordCommandError(command)

	slog.Warn("command rejected",
		slog.String(constant.Event, command),
		slog.Any(constant.ClientID, connID),
		slog.String(constant.Error, message),
	)

	s.connRepo.Write(connID, events.NewMessage(events.TypeError, events.ErrorEvent{Message: message}))
}
