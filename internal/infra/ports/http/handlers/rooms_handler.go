package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/gymsync/gymsync/internal/application/constant"
	"github.com/gymsync/gymsync/internal/domain/models"
	"github.com/gymsync/gymsync/internal/usecase"
)

// RoomsHandler serves read-only room lookups over REST, so the UI can check
// a code before opening a socket.
type RoomsHandler struct {
	sessionUsecase usecase.SessionUsecase
}

func NewRoomsHandler(sessionUsecase usecase.SessionUsecase) *RoomsHandler {
	return &RoomsHandler{sessionUsecase: sessionUsecase}
}

func (h *RoomsHandler) GetRoomHandler(c echo.Context) error {
	snapshot, err := h.sessionUsecase.Snapshot(c.Param("code"))
	if err != nil {
		if errors.Is(err, models.ErrRoomNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Room not found"})
		}

		slog.Error("get room snapshot", slog.Any(constant.Error, err))

		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get room"})
	}

	return c.JSON(http.StatusOK, snapshot)
}

func (h *RoomsHandler) GetRoomHistoryHandler(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	records, err := h.sessionUsecase.History(c.Request().Context(), c.Param("code"), limit)
	if err != nil {
		slog.Error("get room history", slog.Any(constant.Error, err))

		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get history"})
	}

	return c.JSON(http.StatusOK, map[string]any{"history": records})
}
