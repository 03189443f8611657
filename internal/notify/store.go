package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-scheduling/internal/scheduling"
)

// Store persists notifications in the notifications table, where the user's
// inbox reads them.
type Store struct {
	pool *pgxpool.Pool
}

var _ scheduling.Notifier = (*Store)(nil)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Notify(ctx context.Context, userID uuid.UUID, kind scheduling.NotificationKind, message string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notifications (id, user_id, kind, message, read, created_at)
		VALUES ($1, $2, $3, $4, FALSE, now())
	`, uuid.New(), userID, string(kind), message)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListUnread returns a user's unread notifications, newest first.
func (s *Store) ListUnread(ctx context.Context, userID uuid.UUID, limit int) ([]scheduling.Notification, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, kind, message, created_at
		FROM notifications
		WHERE user_id = $1 AND NOT read
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list unread notifications: %w", err)
	}
	defer rows.Close()

	result := make([]scheduling.Notification, 0)
	for rows.Next() {
		var (
			n    scheduling.Notification
			kind string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &kind, &n.Message, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Kind = scheduling.NotificationKind(kind)
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
