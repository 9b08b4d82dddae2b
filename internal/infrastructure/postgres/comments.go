package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/powderplans/event-service/internal/domain"
)

func (r *Repository) AddComment(ctx context.Context, eventID, userID uuid.UUID, content string) (domain.Comment, error) {
	var c domain.Comment
	err := r.pool.QueryRow(ctx, `
		INSERT INTO comments (id, event_id, user_id, content, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, event_id, user_id, content, created_at
	`, uuid.New(), eventID, userID, content).Scan(
		&c.ID, &c.EventID, &c.UserID, &c.Content, &c.CreatedAt,
	)
	return c, err
}
