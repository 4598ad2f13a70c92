package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/rentalhub/internal/model"
	"github.com/mmeshcher/rentalhub/internal/repository"
	"github.com/mmeshcher/rentalhub/internal/validation"
)

// AssignJobInput содержит данные назначения выезда.
type AssignJobInput struct {
	OrderID       int64
	ScheduledDate string
	Notes         string
}

// WorkerFeed — данные, которые панель работника получает при опросе.
type WorkerFeed struct {
	Notifications []model.WorkerNotification `json:"notifications"`
	UnreadCount   int                        `json:"unreadCount"`
}

// WorkerDetails — учётная запись работника вместе с его выездами.
type WorkerDetails struct {
	Worker    *model.User            `json:"worker"`
	Schedules []model.WorkerSchedule `json:"schedules"`
}

func activeWorker(ctx context.Context, st repository.Store, workerID int64) (*model.User, error) {
	u, err := st.GetUserByID(ctx, workerID)
	if err != nil {
		return nil, err
	}
	if u.Role != model.RoleWorker {
		return nil, repository.ErrUserNotFound
	}
	if !u.IsActive {
		return nil, invalid("worker %s is inactive", u.Username)
	}
	return u, nil
}

// AssignJob назначает работнику выезд по заказу: создаёт расписание и уведомление,
// переводит доставку заказа в SCHEDULED и пишет журнал. Все записи выполняются в одной транзакции.
func (s *Service) AssignJob(ctx context.Context, adminID, workerID int64, in AssignJobInput) (*model.WorkerSchedule, error) {
	if in.OrderID <= 0 {
		return nil, invalid("orderId is required")
	}
	date, err := validation.ParseScheduledDate(in.ScheduledDate)
	if err != nil {
		return nil, invalid("invalid scheduled date")
	}

	var schedule *model.WorkerSchedule
	err = s.repo.WithTx(ctx, func(tx repository.Store) error {
		worker, err := activeWorker(ctx, tx, workerID)
		if err != nil {
			return err
		}

		o, err := tx.LockOrder(ctx, in.OrderID)
		if err != nil {
			return err
		}
		if o.Status.Final() {
			return invalid("cannot schedule delivery for %s order", strings.ToLower(string(o.Status)))
		}

		sc := &model.WorkerSchedule{
			WorkerID:      worker.ID,
			OrderID:       o.ID,
			AssignedBy:    adminID,
			ScheduledDate: date,
			Notes:         strings.TrimSpace(in.Notes),
			Status:        model.ScheduleStatusPending,
		}
		if err := tx.CreateSchedule(ctx, sc); err != nil {
			return err
		}

		if err := tx.CreateWorkerNotification(ctx, &model.WorkerNotification{
			WorkerID:    worker.ID,
			FromAdminID: &adminID,
			Type:        model.NotificationJobAssigned,
			Title:       "New Job Assigned",
			Message: fmt.Sprintf("You have been assigned delivery job for order %s scheduled for %s",
				o.OrderNumber, date.Format("2006-01-02")),
		}); err != nil {
			return err
		}

		if err := tx.UpdateDeliveryStatus(ctx, o.ID, model.DeliveryStatusScheduled); err != nil {
			return err
		}

		if err := audit(ctx, tx, adminID, "ASSIGN_JOB", "WORKER_SCHEDULE",
			fmt.Sprintf("Assigned order %s to worker %s", o.OrderNumber, worker.Username)); err != nil {
			return err
		}

		schedule = sc
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateWorker(ctx, workerID)
	s.metrics.JobAssigned()

	return schedule, nil
}

// SendWorkerMessage отправляет работнику сообщение от администратора.
func (s *Service) SendWorkerMessage(ctx context.Context, adminID, workerID int64, title, message string) (*model.WorkerNotification, error) {
	title, message = strings.TrimSpace(title), strings.TrimSpace(message)
	if title == "" || message == "" {
		return nil, invalid("title and message are required")
	}

	n := &model.WorkerNotification{
		WorkerID:    workerID,
		FromAdminID: &adminID,
		Type:        model.NotificationAdminMessage,
		Title:       title,
		Message:     message,
	}

	err := s.repo.WithTx(ctx, func(tx repository.Store) error {
		worker, err := activeWorker(ctx, tx, workerID)
		if err != nil {
			return err
		}
		if err := tx.CreateWorkerNotification(ctx, n); err != nil {
			return err
		}
		return audit(ctx, tx, adminID, "SEND_MESSAGE", "WORKER_NOTIFICATION",
			fmt.Sprintf("Sent message %q to worker %s", title, worker.Username))
	})
	if err != nil {
		return nil, err
	}

	s.invalidateWorker(ctx, workerID)
	return n, nil
}

// WorkerSchedules возвращает выезды работника.
func (s *Service) WorkerSchedules(ctx context.Context, workerID int64) ([]model.WorkerSchedule, error) {
	return s.repo.ListSchedulesByWorker(ctx, workerID)
}

// WorkerNotifications возвращает последние уведомления работника и число непрочитанных.
func (s *Service) WorkerNotifications(ctx context.Context, workerID int64) (*WorkerFeed, error) {
	list, err := s.repo.ListWorkerNotifications(ctx, workerID, notificationLimit)
	if err != nil {
		return nil, err
	}

	unread, ok, err := s.cache.UnreadCount(ctx, workerID)
	if err != nil {
		s.logger.Warn("read worker cache error", zap.Error(err), zap.Int64("workerID", workerID))
	}
	if !ok {
		unread, err = s.repo.CountUnreadNotifications(ctx, workerID)
		if err != nil {
			return nil, err
		}
		if err := s.cache.SetUnreadCount(ctx, workerID, unread); err != nil {
			s.logger.Warn("write worker cache error", zap.Error(err), zap.Int64("workerID", workerID))
		}
	}

	if list == nil {
		list = []model.WorkerNotification{}
	}
	return &WorkerFeed{Notifications: list, UnreadCount: unread}, nil
}

// MarkNotificationRead отмечает уведомление работника прочитанным.
func (s *Service) MarkNotificationRead(ctx context.Context, workerID, notificationID int64) error {
	if notificationID <= 0 {
		return invalid("notificationId is required")
	}
	if err := s.repo.MarkNotificationRead(ctx, workerID, notificationID); err != nil {
		return err
	}
	s.invalidateWorker(ctx, workerID)
	return nil
}

func parseScheduleStatus(v string) (model.ScheduleStatus, bool) {
	st := model.ScheduleStatus(strings.ToUpper(strings.TrimSpace(v)))
	switch st {
	case model.ScheduleStatusPending, model.ScheduleStatusOngoing, model.ScheduleStatusFinished,
		model.ScheduleStatusDelayed, model.ScheduleStatusCancelled:
		return st, true
	}
	return "", false
}

// CanChangeSchedule сообщает, допустим ли переход выезда из from в to.
// Отмена доступна только администратору; из FINISHED и CANCELLED выхода нет.
func CanChangeSchedule(from, to model.ScheduleStatus, admin bool) bool {
	if from == to {
		return true
	}
	if from == model.ScheduleStatusFinished || from == model.ScheduleStatusCancelled {
		return false
	}

	switch to {
	case model.ScheduleStatusCancelled:
		return admin
	case model.ScheduleStatusDelayed:
		return true
	case model.ScheduleStatusOngoing:
		return from == model.ScheduleStatusPending || from == model.ScheduleStatusDelayed
	case model.ScheduleStatusFinished:
		return from == model.ScheduleStatusOngoing
	}
	return false
}

// UpdateScheduleStatus изменяет статус выезда. Работник может менять только свои выезды.
// Завершение выезда отмечает доставку заказа выполненной.
func (s *Service) UpdateScheduleStatus(ctx context.Context, userID int64, role model.Role, scheduleID int64, status string) (*model.WorkerSchedule, error) {
	to, ok := parseScheduleStatus(status)
	if !ok {
		return nil, invalid("unknown schedule status %q", status)
	}

	var res *model.WorkerSchedule
	err := s.repo.WithTx(ctx, func(tx repository.Store) error {
		sc, err := tx.GetSchedule(ctx, scheduleID)
		if err != nil {
			return err
		}

		admin := role == model.RoleAdmin
		if !admin && sc.WorkerID != userID {
			return ErrForbidden
		}
		if sc.Status == to {
			res = sc
			return nil
		}
		if !CanChangeSchedule(sc.Status, to, admin) {
			return invalid("cannot change schedule status from %s to %s", sc.Status, to)
		}

		if err := tx.UpdateScheduleStatus(ctx, sc.ID, to); err != nil {
			return err
		}
		if to == model.ScheduleStatusFinished {
			if err := tx.UpdateDeliveryStatus(ctx, sc.OrderID, model.DeliveryStatusDelivered); err != nil {
				return err
			}
		}
		if err := tx.LogActivity(ctx, &model.ActivityLog{
			UserID:  userID,
			Action:  "UPDATE_SCHEDULE_STATUS",
			Entity:  "WORKER_SCHEDULE",
			Details: fmt.Sprintf("Schedule %d status changed from %s to %s", sc.ID, sc.Status, to),
		}); err != nil {
			return err
		}

		sc.Status = to
		res = sc
		return nil
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

// GetWorker возвращает работника и его выезды.
func (s *Service) GetWorker(ctx context.Context, workerID int64) (*WorkerDetails, error) {
	u, err := s.repo.GetUserByID(ctx, workerID)
	if err != nil {
		return nil, err
	}
	if u.Role != model.RoleWorker {
		return nil, repository.ErrUserNotFound
	}

	schedules, err := s.repo.ListSchedulesByWorker(ctx, workerID)
	if err != nil {
		return nil, err
	}
	if schedules == nil {
		schedules = []model.WorkerSchedule{}
	}

	return &WorkerDetails{Worker: u, Schedules: schedules}, nil
}

// UpdateWorker изменяет контакты или признак активности работника.
func (s *Service) UpdateWorker(ctx context.Context, adminID, workerID int64, upd repository.WorkerUpdate) (*model.User, error) {
	if upd.FullName != nil && strings.TrimSpace(*upd.FullName) == "" {
		return nil, invalid("full name must not be empty")
	}
	if upd.Email != nil && !validation.IsValidEmail(*upd.Email) {
		return nil, invalid("invalid email")
	}
	if upd.Whatsapp != nil && *upd.Whatsapp != "" && !validation.IsValidWhatsapp(*upd.Whatsapp) {
		return nil, invalid("invalid whatsapp number")
	}

	var worker *model.User
	err := s.repo.WithTx(ctx, func(tx repository.Store) error {
		u, err := tx.UpdateWorker(ctx, workerID, upd)
		if err != nil {
			return err
		}
		worker = u
		return tx.LogActivity(ctx, &model.ActivityLog{
			UserID:  adminID,
			Action:  "UPDATE_WORKER",
			Entity:  "USER",
			Details: fmt.Sprintf("Updated worker %s", u.FullName),
		})
	})
	if err != nil {
		return nil, err
	}

	return worker, nil
}
