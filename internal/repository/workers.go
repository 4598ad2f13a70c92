package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/rentalhub/internal/model"
)

// CreateSchedule создаёт выезд работника.
func (r *PostgresRepository) CreateSchedule(ctx context.Context, s *model.WorkerSchedule) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO worker_schedules (worker_id, order_id, assigned_by, scheduled_date, notes, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		s.WorkerID, s.OrderID, s.AssignedBy, s.ScheduledDate, s.Notes, string(s.Status),
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	return nil
}

// GetSchedule возвращает выезд по идентификатору.
func (r *PostgresRepository) GetSchedule(ctx context.Context, id int64) (*model.WorkerSchedule, error) {
	var (
		s      model.WorkerSchedule
		status string
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, worker_id, order_id, assigned_by, scheduled_date, notes, status, created_at, updated_at
		 FROM worker_schedules WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.WorkerID, &s.OrderID, &s.AssignedBy, &s.ScheduledDate, &s.Notes, &status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrScheduleNotFound
		}
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	s.Status = model.ScheduleStatus(status)
	return &s, nil
}

// ListSchedulesByWorker возвращает выезды работника вместе со сведениями о заказе, ближайшие по дате последними.
func (r *PostgresRepository) ListSchedulesByWorker(ctx context.Context, workerID int64) ([]model.WorkerSchedule, error) {
	rows, err := r.db.Query(ctx,
		`SELECT s.id, s.worker_id, s.order_id, s.assigned_by, s.scheduled_date, s.notes, s.status, s.created_at, s.updated_at,
		        o.order_number, o.total_amount, o.start_date, o.end_date, o.delivery_address,
		        COALESCE(u.full_name, o.guest_name), COALESCE(u.whatsapp, o.guest_whatsapp)
		 FROM worker_schedules s
		 JOIN orders o ON o.id = s.order_id
		 LEFT JOIN users u ON u.id = o.user_id
		 WHERE s.worker_id = $1
		 ORDER BY s.scheduled_date DESC`,
		workerID,
	)
	if err != nil {
		return nil, fmt.Errorf("select schedules: %w", err)
	}
	defer rows.Close()

	var res []model.WorkerSchedule
	for rows.Next() {
		var (
			s      model.WorkerSchedule
			o      model.ScheduledOrder
			status string
		)
		err := rows.Scan(
			&s.ID, &s.WorkerID, &s.OrderID, &s.AssignedBy, &s.ScheduledDate, &s.Notes, &status, &s.CreatedAt, &s.UpdatedAt,
			&o.OrderNumber, &o.TotalAmount, &o.StartDate, &o.EndDate, &o.DeliveryAddress,
			&o.CustomerName, &o.CustomerPhone,
		)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		s.Status = model.ScheduleStatus(status)
		s.Order = &o
		res = append(res, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// UpdateScheduleStatus изменяет статус выезда.
func (r *PostgresRepository) UpdateScheduleStatus(ctx context.Context, id int64, status model.ScheduleStatus) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE worker_schedules SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, string(status),
	)
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

// CreateWorkerNotification создаёт уведомление для работника.
func (r *PostgresRepository) CreateWorkerNotification(ctx context.Context, n *model.WorkerNotification) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO worker_notifications (worker_id, from_admin_id, type, title, message, is_read)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		n.WorkerID, n.FromAdminID, string(n.Type), n.Title, n.Message, n.IsRead,
	).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListWorkerNotifications возвращает последние limit уведомлений работника, новые первыми.
func (r *PostgresRepository) ListWorkerNotifications(ctx context.Context, workerID int64, limit int) ([]model.WorkerNotification, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, worker_id, from_admin_id, type, title, message, is_read, created_at
		 FROM worker_notifications
		 WHERE worker_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		workerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select notifications: %w", err)
	}
	defer rows.Close()

	var res []model.WorkerNotification
	for rows.Next() {
		var (
			n   model.WorkerNotification
			typ string
		)
		if err := rows.Scan(&n.ID, &n.WorkerID, &n.FromAdminID, &typ, &n.Title, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Type = model.NotificationType(typ)
		res = append(res, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CountUnreadNotifications возвращает количество непрочитанных уведомлений работника.
func (r *PostgresRepository) CountUnreadNotifications(ctx context.Context, workerID int64) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM worker_notifications WHERE worker_id = $1 AND NOT is_read`,
		workerID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}

// MarkNotificationRead отмечает уведомление прочитанным. Чужое уведомление считается ненайденным.
func (r *PostgresRepository) MarkNotificationRead(ctx context.Context, workerID, notificationID int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE worker_notifications SET is_read = TRUE WHERE id = $1 AND worker_id = $2`,
		notificationID, workerID,
	)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
