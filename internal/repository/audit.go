package repository

import (
	"context"
	"fmt"

	"github.com/mmeshcher/rentalhub/internal/model"
)

// LogActivity добавляет запись в журнал действий.
func (r *PostgresRepository) LogActivity(ctx context.Context, a *model.ActivityLog) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO activity_logs (user_id, action, entity, details)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		a.UserID, a.Action, a.Entity, a.Details,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert activity log: %w", err)
	}
	return nil
}

// CreateSystemNotification добавляет запись в ленту администратора.
func (r *PostgresRepository) CreateSystemNotification(ctx context.Context, n *model.SystemNotification) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO system_notifications (type, title, message)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		n.Type, n.Title, n.Message,
	).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert system notification: %w", err)
	}
	return nil
}

// ListSystemNotifications возвращает последние limit записей ленты администратора.
func (r *PostgresRepository) ListSystemNotifications(ctx context.Context, limit int) ([]model.SystemNotification, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, type, title, message, created_at
		 FROM system_notifications
		 ORDER BY created_at DESC, id DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select system notifications: %w", err)
	}
	defer rows.Close()

	var res []model.SystemNotification
	for rows.Next() {
		var n model.SystemNotification
		if err := rows.Scan(&n.ID, &n.Type, &n.Title, &n.Message, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan system notification: %w", err)
		}
		res = append(res, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
