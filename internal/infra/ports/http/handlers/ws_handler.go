package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/gymsync/gymsync/internal/application/config"
	"github.com/gymsync/gymsync/internal/application/constant"
	"github.com/gymsync/gymsync/internal/application/metric"
	"github.com/gymsync/gymsync/internal/domain/events"
	"github.com/gymsync/gymsync/internal/domain/models"
	"github.com/gymsync/gymsync/internal/infra/adapters/memory"
	"github.com/gymsync/gymsync/internal/usecase"
)

// WebSocketHandler is the connection gateway: it owns the socket lifecycle
// and hands every inbound event to the session usecase.
type WebSocketHandler struct {
	upgrader *websocket.Upgrader

	sessionUsecase usecase.SessionUsecase

	connRepo memory.ConnectionRepository
}

func NewWebSocketHandler(cfg *config.Config, sessionUsecase usecase.SessionUsecase, connRepo memory.ConnectionRepository) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if cfg.Debug {
					return true
				}

				return r.Header.Get("Origin") == cfg.Domain
			},
		},
		sessionUsecase: sessionUsecase,
		connRepo:       connRepo,
	}
}

func (h *WebSocketHandler) Handle(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"WebSocket upgrade error",
			slog.Any(constant.Error, err),
		)
		return err
	}
	defer ws.Close()

	connID := uuid.New()

	h.connRepo.Add(connID, ws)
	metric.IncrementWSActiveConnections()

	defer func() {
		// Detach before dropping the socket: the disconnect is an implicit
		// leave and the leave broadcast must not be written to a dead conn.
		h.sessionUsecase.HandleDisconnect(c.Request().Context(), connID)
		h.connRepo.Remove(connID)
		metric.DecrementWSActiveConnections()
	}()

	h.connRepo.Write(connID, events.NewMessage(events.TypeConnected, events.ConnectedEvent{ClientID: connID}))

	err = ws.SetReadDeadline(time.Now().Add(60 * time.Second))
	if err != nil {
		return err
	}
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := h.connRepo.Ping(connID); err != nil {
					return
				}
			case <-c.Request().Context().Done():
				return
			}
		}
	}()

	for {
		select {
		case <-c.Request().Context().Done():
			return nil
		default:
			_, msg, err := ws.ReadMessage()
			if err != nil {
				h.handleWebsocketError(connID, err)
				return nil
			}

			message := new(events.Message)

			if err = json.Unmarshal(msg, message); err != nil {
				slog.Warn("unmarshal websocket message", slog.Any(constant.Error, err))
				h.connRepo.Write(connID, events.NewMessage(events.TypeError, events.ErrorEvent{Message: models.ErrInvalidPayload.Error()}))

				continue
			}

			if err = h.handleMessage(c.Request().Context(), connID, message); err != nil {
				slog.Error("handle message",
					slog.String(constant.Event, message.Type),
					slog.Any(constant.Error, err),
				)
			}
		}
	}
}

func (h *WebSocketHandler) handleMessage(
	ctx context.Context,
	connID uuid.UUID,
	msg *events.Message,
) error {
	metric.RecordCommand(msg.Type)

	switch msg.Type {
	case events.TypeCreateRoom:
		var ev events.CreateRoomEvent

		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return h.rejectPayload(connID, msg.Type, err)
		}

		return h.sessionUsecase.HandleCreateRoom(ctx, connID, ev)

	case events.TypeJoinRoom:
		var ev events.JoinRoomEvent

		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return h.rejectPayload(connID, msg.Type, err)
		}

		return h.sessionUsecase.HandleJoinRoom(ctx, connID, ev)

	case events.TypeLeaveRoom:
		return h.sessionUsecase.HandleLeaveRoom(ctx, connID)

	case events.TypeReconnect:
		var ev events.ReconnectEvent

		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return h.rejectPayload(connID, msg.Type, err)
		}

		return h.sessionUsecase.HandleReconnect(ctx, connID, ev)

	case events.TypeAddSong:
		var ev events.AddSongEvent

		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return h.rejectPayload(connID, msg.Type, err)
		}

		return h.sessionUsecase.HandleAddSong(ctx, connID, ev)

	case events.TypeRemoveSong:
		var ev events.RemoveSongEvent

		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return h.rejectPayload(connID, msg.Type, err)
		}

		return h.sessionUsecase.HandleRemoveSong(ctx, connID, ev)

	case events.TypeVoteSong:
		var ev events.VoteSongEvent

		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return h.rejectPayload(connID, msg.Type, err)
		}

		return h.sessionUsecase.HandleVoteSong(ctx, connID, ev)

	case events.TypePlayPause:
		return h.sessionUsecase.HandlePlayPause(ctx, connID)

	case events.TypeSkip:
		return h.sessionUsecase.HandleSkip(ctx, connID)

	case events.TypePing:
		h.sessionUsecase.HandlePing(ctx, connID)
		return nil

	default:
		h.connRepo.Write(connID, events.NewMessage(events.TypeError, events.ErrorEvent{Message: "unknown event type"}))
		return nil
	}
}

func (h *WebSocketHandler) rejectPayload(connID uuid.UUID, eventType string, err error) error {
	metric.RecordCommandError(eventType)

	slog.Warn("invalid command payload",
		slog.String(constant.Event, eventType),
		slog.Any(constant.Error, err),
	)

	h.connRepo.Write(connID, events.NewMessage(events.TypeError, events.ErrorEvent{Message: models.ErrInvalidPayload.Error()}))

	return nil
}

func (h *WebSocketHandler) handleWebsocketError(connID uuid.UUID, err error) {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway:
			slog.Info("client disconnected from websocket", slog.Any(constant.ClientID, connID))
		default:
			slog.Error("websocket close error", slog.Any(constant.ClientID, connID))
		}
	} else {
		slog.Error(
			"websocket read",
			slog.Any(constant.Error, err),
		)
	}
}
