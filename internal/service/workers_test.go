package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/rentalhub/internal/model"
	"github.com/mmeshcher/rentalhub/internal/repository"
)

func newJob(t *testing.T, f *fixture) (*model.User, *model.Order) {
	t.Helper()

	worker := f.repo.addUser(model.RoleWorker, "joko", "joko@rentalhub.local")
	p := f.repo.addProduct("Tent", "150000")

	res, err := f.svc.CreateOrder(context.Background(), nil, guestOrder(p.ID))
	require.NoError(t, err)

	return worker, res.Order
}

func TestAssignJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	worker, order := newJob(t, f)

	sc, err := f.svc.AssignJob(ctx, f.admin.ID, worker.ID, AssignJobInput{
		OrderID:       order.ID,
		ScheduledDate: "2025-01-15",
		Notes:         " call before arrival ",
	})
	require.NoError(t, err)

	assert.Equal(t, model.ScheduleStatusPending, sc.Status)
	assert.Equal(t, worker.ID, sc.WorkerID)
	assert.Equal(t, order.ID, sc.OrderID)
	assert.Equal(t, f.admin.ID, sc.AssignedBy)
	assert.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), sc.ScheduledDate)
	assert.Equal(t, "call before arrival", sc.Notes)

	require.Len(t, f.repo.schedules, 1)

	require.Len(t, f.repo.notifications, 1)
	for _, n := range f.repo.notifications {
		assert.Equal(t, model.NotificationJobAssigned, n.Type)
		assert.Equal(t, worker.ID, n.WorkerID)
		assert.False(t, n.IsRead)
		assert.Equal(t, "New Job Assigned", n.Title)
		assert.Contains(t, n.Message, order.OrderNumber)
		assert.Contains(t, n.Message, "2025-01-15")
	}

	assert.Equal(t, model.DeliveryStatusScheduled, f.repo.orders[order.ID].DeliveryStatus)
	assert.Equal(t, []int64{worker.ID}, f.cache.invalidations)

	require.Len(t, f.repo.activity, 1)
	assert.Equal(t, "ASSIGN_JOB", f.repo.activity[0].Action)
}

func TestAssignJob_Rejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	worker, order := newJob(t, f)
	customer := f.repo.addUser(model.RoleUser, "sari", "sari@example.com")

	tests := []struct {
		name     string
		workerID int64
		in       AssignJobInput
		wantErr  error
	}{
		{name: "no order", workerID: worker.ID, in: AssignJobInput{ScheduledDate: "2025-01-15"}, wantErr: ErrValidation},
		{name: "bad date", workerID: worker.ID, in: AssignJobInput{OrderID: order.ID, ScheduledDate: "15/01/2025"}, wantErr: ErrValidation},
		{name: "not a worker", workerID: customer.ID, in: AssignJobInput{OrderID: order.ID, ScheduledDate: "2025-01-15"}, wantErr: repository.ErrUserNotFound},
		{name: "unknown order", workerID: worker.ID, in: AssignJobInput{OrderID: 9999, ScheduledDate: "2025-01-15"}, wantErr: repository.ErrOrderNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.AssignJob(ctx, f.admin.ID, tt.workerID, tt.in)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Empty(t, f.repo.schedules)
	assert.Empty(t, f.repo.notifications)
}

func TestAssignJob_InactiveWorker(t *testing.T) {
	f := newFixture(t)
	worker, order := newJob(t, f)
	f.repo.users[worker.ID].IsActive = false

	_, err := f.svc.AssignJob(context.Background(), f.admin.ID, worker.ID, AssignJobInput{OrderID: order.ID, ScheduledDate: "2025-01-15"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestWorkerNotifications_UsesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	worker, _ := newJob(t, f)

	_, err := f.svc.SendWorkerMessage(ctx, f.admin.ID, worker.ID, "Reminder", "Bring the spare cables")
	require.NoError(t, err)

	feed, err := f.svc.WorkerNotifications(ctx, worker.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, feed.UnreadCount)
	assert.Len(t, feed.Notifications, 1)
	assert.Equal(t, 1, f.repo.countCalls)

	feed, err = f.svc.WorkerNotifications(ctx, worker.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, feed.UnreadCount)
	assert.Equal(t, 1, f.repo.countCalls)

	require.NoError(t, f.svc.MarkNotificationRead(ctx, worker.ID, feed.Notifications[0].ID))

	feed, err = f.svc.WorkerNotifications(ctx, worker.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, feed.UnreadCount)
	assert.Equal(t, 2, f.repo.countCalls)
}

func TestWorkerNotifications_EmptyFeed(t *testing.T) {
	f := newFixture(t)
	worker := f.repo.addUser(model.RoleWorker, "joko", "joko@rentalhub.local")

	feed, err := f.svc.WorkerNotifications(context.Background(), worker.ID)
	require.NoError(t, err)
	assert.NotNil(t, feed.Notifications)
	assert.Equal(t, 0, feed.UnreadCount)
}

func TestMarkNotificationRead_ForeignNotification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	worker, _ := newJob(t, f)
	other := f.repo.addUser(model.RoleWorker, "budi", "budi@rentalhub.local")

	n, err := f.svc.SendWorkerMessage(ctx, f.admin.ID, worker.ID, "Reminder", "Bring the spare cables")
	require.NoError(t, err)

	err = f.svc.MarkNotificationRead(ctx, other.ID, n.ID)
	assert.ErrorIs(t, err, repository.ErrNotificationNotFound)
	assert.False(t, f.repo.notifications[n.ID].IsRead)
}

func TestCanChangeSchedule(t *testing.T) {
	tests := []struct {
		from, to model.ScheduleStatus
		admin    bool
		want     bool
	}{
		{model.ScheduleStatusPending, model.ScheduleStatusOngoing, false, true},
		{model.ScheduleStatusPending, model.ScheduleStatusDelayed, false, true},
		{model.ScheduleStatusDelayed, model.ScheduleStatusOngoing, false, true},
		{model.ScheduleStatusOngoing, model.ScheduleStatusFinished, false, true},
		{model.ScheduleStatusOngoing, model.ScheduleStatusDelayed, false, true},
		{model.ScheduleStatusPending, model.ScheduleStatusFinished, false, false},
		{model.ScheduleStatusPending, model.ScheduleStatusCancelled, false, false},
		{model.ScheduleStatusPending, model.ScheduleStatusCancelled, true, true},
		{model.ScheduleStatusFinished, model.ScheduleStatusOngoing, true, false},
		{model.ScheduleStatusCancelled, model.ScheduleStatusPending, true, false},
		{model.ScheduleStatusOngoing, model.ScheduleStatusPending, true, false},
	}

	for _, tt := range tests {
		name := string(tt.from) + "->" + string(tt.to)
		if tt.admin {
			name += " (admin)"
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanChangeSchedule(tt.from, tt.to, tt.admin))
		})
	}
}

func TestUpdateScheduleStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	worker, order := newJob(t, f)
	other := f.repo.addUser(model.RoleWorker, "budi", "budi@rentalhub.local")

	sc, err := f.svc.AssignJob(ctx, f.admin.ID, worker.ID, AssignJobInput{OrderID: order.ID, ScheduledDate: "2025-01-15"})
	require.NoError(t, err)

	_, err = f.svc.UpdateScheduleStatus(ctx, other.ID, model.RoleWorker, sc.ID, "ONGOING")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.UpdateScheduleStatus(ctx, worker.ID, model.RoleWorker, sc.ID, "cancelled")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.UpdateScheduleStatus(ctx, worker.ID, model.RoleWorker, sc.ID, "finished")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.UpdateScheduleStatus(ctx, worker.ID, model.RoleWorker, sc.ID, "lost")
	assert.ErrorIs(t, err, ErrValidation)

	got, err := f.svc.UpdateScheduleStatus(ctx, worker.ID, model.RoleWorker, sc.ID, "ongoing")
	require.NoError(t, err)
	assert.Equal(t, model.ScheduleStatusOngoing, got.Status)
	assert.Equal(t, model.DeliveryStatusScheduled, f.repo.orders[order.ID].DeliveryStatus)

	got, err = f.svc.UpdateScheduleStatus(ctx, worker.ID, model.RoleWorker, sc.ID, "finished")
	require.NoError(t, err)
	assert.Equal(t, model.ScheduleStatusFinished, got.Status)
	assert.Equal(t, model.DeliveryStatusDelivered, f.repo.orders[order.ID].DeliveryStatus)

	_, err = f.svc.UpdateScheduleStatus(ctx, f.admin.ID, model.RoleAdmin, sc.ID, "cancelled")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.UpdateScheduleStatus(ctx, f.admin.ID, model.RoleAdmin, 4040, "cancelled")
	assert.ErrorIs(t, err, repository.ErrScheduleNotFound)
}

func TestGetAndUpdateWorker(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	worker, order := newJob(t, f)

	_, err := f.svc.AssignJob(ctx, f.admin.ID, worker.ID, AssignJobInput{OrderID: order.ID, ScheduledDate: "2025-01-15"})
	require.NoError(t, err)

	details, err := f.svc.GetWorker(ctx, worker.ID)
	require.NoError(t, err)
	assert.Equal(t, worker.ID, details.Worker.ID)
	assert.Len(t, details.Schedules, 1)

	_, err = f.svc.GetWorker(ctx, f.admin.ID)
	assert.ErrorIs(t, err, repository.ErrUserNotFound)

	badEmail := "joko"
	_, err = f.svc.UpdateWorker(ctx, f.admin.ID, worker.ID, repository.WorkerUpdate{Email: &badEmail})
	assert.ErrorIs(t, err, ErrValidation)

	inactive := false
	name := "Joko Widodo"
	u, err := f.svc.UpdateWorker(ctx, f.admin.ID, worker.ID, repository.WorkerUpdate{FullName: &name, IsActive: &inactive})
	require.NoError(t, err)
	assert.Equal(t, name, u.FullName)
	assert.False(t, u.IsActive)

	_, err = f.svc.AssignJob(ctx, f.admin.ID, worker.ID, AssignJobInput{OrderID: order.ID, ScheduledDate: "2025-01-16"})
	assert.ErrorIs(t, err, ErrValidation)
}
