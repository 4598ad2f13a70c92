package repository

import (
	"context"
	"time"

	"github.com/mmeshcher/rentalhub/internal/model"
)

// WorkerUpdate содержит изменяемые поля учётной записи работника. Nil означает «не менять».
type WorkerUpdate struct {
	FullName *string
	Email    *string
	Whatsapp *string
	IsActive *bool
}

// Store описывает операции с данными, доступные как вне транзакции, так и внутри WithTx.
type Store interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	ListWorkerEmails(ctx context.Context) ([]string, error)
	UpdateWorker(ctx context.Context, id int64, upd WorkerUpdate) (*model.User, error)

	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	ListProducts(ctx context.Context, category string) ([]model.Product, error)
	CreateProduct(ctx context.Context, p *model.Product) error
	GetPackage(ctx context.Context, id int64) (*model.RentalPackage, error)
	ListPackages(ctx context.Context) ([]model.RentalPackage, error)
	CreatePackage(ctx context.Context, p *model.RentalPackage) error
	UpdatePackage(ctx context.Context, p *model.RentalPackage) error
	DeletePackage(ctx context.Context, id int64) error

	CreateOrder(ctx context.Context, o *model.Order) error
	GetOrder(ctx context.Context, id int64) (*model.Order, error)
	LockOrder(ctx context.Context, id int64) (*model.Order, error)
	ListOrders(ctx context.Context) ([]model.Order, error)
	ListOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status model.OrderStatus) error
	MarkOrderPaid(ctx context.Context, id int64, method string, confirmedBy int64, status model.OrderStatus, at time.Time) error
	UpdateDeliveryStatus(ctx context.Context, id int64, status model.DeliveryStatus) error

	CreateInvoice(ctx context.Context, inv *model.Invoice) error
	GetInvoiceByOrder(ctx context.Context, orderID int64) (*model.Invoice, error)
	GetInvoiceByToken(ctx context.Context, token string) (*model.Invoice, error)
	ListInvoices(ctx context.Context) ([]model.Invoice, error)
	UpdateInvoiceAmounts(ctx context.Context, inv *model.Invoice) error
	MarkInvoiceEmailSent(ctx context.Context, id int64, at time.Time) error

	CreateSchedule(ctx context.Context, s *model.WorkerSchedule) error
	GetSchedule(ctx context.Context, id int64) (*model.WorkerSchedule, error)
	ListSchedulesByWorker(ctx context.Context, workerID int64) ([]model.WorkerSchedule, error)
	UpdateScheduleStatus(ctx context.Context, id int64, status model.ScheduleStatus) error

	CreateWorkerNotification(ctx context.Context, n *model.WorkerNotification) error
	ListWorkerNotifications(ctx context.Context, workerID int64, limit int) ([]model.WorkerNotification, error)
	CountUnreadNotifications(ctx context.Context, workerID int64) (int, error)
	MarkNotificationRead(ctx context.Context, workerID, notificationID int64) error

	LogActivity(ctx context.Context, a *model.ActivityLog) error
	CreateSystemNotification(ctx context.Context, n *model.SystemNotification) error
	ListSystemNotifications(ctx context.Context, limit int) ([]model.SystemNotification, error)
}
