package server

import (
	"github.com/labstack/echo/v4"

	"github.com/gymsync/gymsync/internal/infra/ports/http/handlers"
	"github.com/gymsync/gymsync/internal/infra/ports/http/middleware"
)

func New(
	roomsHandler *handlers.RoomsHandler,
	wsHandler *handlers.WebSocketHandler,
) *echo.Echo {
	e := echo.New()

	e.HideBanner = true

	e.Use(middleware.SlogLogger())
	e.Use(middleware.PrometheusMiddleware())

	api := e.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET("/ws", wsHandler.Handle)

			v1.GET("/rooms/:code", roomsHandler.GetRoomHandler)
			v1.GET("/rooms/:code/history", roomsHandler.GetRoomHistoryHandler)
		}
	}

	return e
}
