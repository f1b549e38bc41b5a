package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/gymsync/gymsync/internal/domain/models"
)

type historyRepo struct {
	db *sqlx.DB
}

func NewHistoryRepo(db *sqlx.DB) *historyRepo {
	return &historyRepo{db: db}
}

func (r *historyRepo) Record(ctx context.Context, record *models.PlayRecord) error {
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO play_history (room_code, title, artist, platform, url, added_by, votes, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		record.RoomCode,
		record.Title,
		record.Artist,
		record.Platform,
		record.URL,
		record.AddedBy,
		record.Votes,
		record.StartedAt,
	)

	return err
}

func (r *historyRepo) ListByRoom(ctx context.Context, roomCode string, limit int) ([]*models.PlayRecord, error) {
	var records []*models.PlayRecord

	query := `
		SELECT *
		FROM play_history
		WHERE room_code = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	err := r.db.SelectContext(ctx, &records, query, roomCode, limit)
	if err != nil {
		return nil, err
	}

	return records, nil
}
