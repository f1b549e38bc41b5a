package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/gymsync/gymsync/internal/application/config"
	"github.com/gymsync/gymsync/internal/application/constant"
	"github.com/gymsync/gymsync/internal/application/metric"
	"github.com/gymsync/gymsync/internal/auth"
	"github.com/gymsync/gymsync/internal/infra/adapters/memory"
	"github.com/gymsync/gymsync/internal/infra/adapters/postgres"
	"github.com/gymsync/gymsync/internal/infra/adapters/postgres/repository"
	"github.com/gymsync/gymsync/internal/infra/ports/http/handlers"
	"github.com/gymsync/gymsync/internal/infra/ports/http/server"
	"github.com/gymsync/gymsync/internal/usecase"
)

func runApp() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	slog.SetDefault(
		slog.New(
			slog.NewJSONHandler(
				os.Stdout,
				&slog.HandlerOptions{Level: slog.LevelInfo},
			),
		),
	)

	cfg, err := config.New()
	if err != nil {
		slog.Error("parse config", slog.Any(constant.Error, err))
		os.Exit(1)
	}

	slog.Info("Running app", slog.Bool("debug", cfg.Debug))

	var historyRepo usecase.HistoryRepository
	if cfg.Postgres.Enabled {
		dbConn, err := postgres.NewPostgres(ctx, cfg.Postgres.DSN())
		if err != nil {
			slog.Error("connect to postgres", slog.Any(constant.Error, err))
			os.Exit(1)
		}
		defer dbConn.Close()

		historyRepo = repository.NewHistoryRepo(dbConn)
	} else {
		slog.Info("postgres disabled, keeping play history in memory")
		historyRepo = memory.NewHistoryRepository()
	}

	registry := memory.NewRoomRegistry(cfg.RoomGracePeriod, func(roomCode string, remaining int) {
		metric.SetRoomsActive(remaining)
		slog.Info("room reclaimed", slog.String(constant.RoomCode, roomCode))
	})
	connRepo := memory.NewConnectionRepository()
	presenceRepo := memory.NewPresenceRepository()
	tokens := auth.NewSessionTokens(cfg.JWTSecret, cfg.SessionTTL)

	sessionUsecase := usecase.NewSessionUsecase(registry, connRepo, presenceRepo, historyRepo, tokens)

	roomsHandler := handlers.NewRoomsHandler(sessionUsecase)
	wsHandler := handlers.NewWebSocketHandler(cfg, sessionUsecase, connRepo)

	echoSrv := server.New(roomsHandler, wsHandler)

	metricsSrv := metric.NewServer()

	echoSrvCh := make(chan error, 1)
	metricsSrvCh := make(chan error, 1)

	go func() {
		echoSrvCh <- echoSrv.Start(":" + cfg.Port)
	}()

	go func() {
		metricsSrvCh <- metricsSrv.Start(":" + cfg.MetricPort)
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutting down servers due to context cancel")
	case err := <-echoSrvCh:
		slog.Error(
			"HTTP server failed",
			slog.Any(constant.Error, err),
		)
		os.Exit(1)
	case err := <-metricsSrvCh:
		slog.Error(
			"Metrics server failed",
			slog.Any(constant.Error, err),
		)
		os.Exit(1)
	}

	timeoutCtx, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer timeoutCancel()

	if err := echoSrv.Shutdown(timeoutCtx); err != nil {
		slog.Error("Failed to gracefully shutdown HTTP server", slog.Any(constant.Error, err))
	}

	if err := metricsSrv.Shutdown(timeoutCtx); err != nil {
		slog.Error("Failed to gracefully shutdown metric server", slog.Any(constant.Error, err))
	}
}
