// Package model содержит доменные сущности сервиса проката оборудования.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role описывает роль пользователя.
type Role string

const (
	RoleUser   Role = "USER"
	RoleWorker Role = "WORKER"
	RoleAdmin  Role = "ADMIN"
)

// User представляет учётную запись клиента, работника или администратора.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	FullName     string    `json:"fullName"`
	Email        string    `json:"email"`
	Whatsapp     string    `json:"whatsapp,omitempty"`
	PasswordHash []byte    `json:"-"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
}

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusActive    OrderStatus = "ACTIVE"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Final сообщает, что заказ больше не может менять статус.
func (s OrderStatus) Final() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// PaymentStatus описывает состояние оплаты заказа.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPaid    PaymentStatus = "PAID"
)

// DeliveryStatus описывает состояние доставки оборудования.
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "PENDING"
	DeliveryStatusScheduled DeliveryStatus = "SCHEDULED"
	DeliveryStatusDelivered DeliveryStatus = "DELIVERED"
)

// ItemKind различает позиции заказа: отдельный товар или пакет аренды.
type ItemKind string

const (
	ItemKindProduct ItemKind = "PRODUCT"
	ItemKindPackage ItemKind = "PACKAGE"
)

// GuestInfo содержит контакты покупателя без учётной записи.
type GuestInfo struct {
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Whatsapp string `json:"whatsapp,omitempty"`
	Address  string `json:"address,omitempty"`
}

// Order описывает заказ аренды.
type Order struct {
	ID                 int64           `json:"id"`
	OrderNumber        string          `json:"orderNumber"`
	Status             OrderStatus     `json:"status"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	TotalAmount        decimal.Decimal `json:"totalAmount"`
	Currency           string          `json:"currency"`
	PaymentMethod      string          `json:"paymentMethod"`
	PaymentStatus      PaymentStatus   `json:"paymentStatus"`
	PaymentConfirmedBy *int64          `json:"paymentConfirmedBy,omitempty"`
	PaymentConfirmedAt *time.Time      `json:"paymentConfirmedAt,omitempty"`
	DeliveryAddress    string          `json:"deliveryAddress"`
	DeliveryStatus     DeliveryStatus  `json:"deliveryStatus"`
	Notes              string          `json:"notes,omitempty"`
	StartDate          time.Time       `json:"startDate"`
	EndDate            time.Time       `json:"endDate"`
	Duration           int             `json:"duration"`
	UserID             *int64          `json:"userId,omitempty"`
	Guest              *GuestInfo      `json:"guest,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`

	RentalItems []RentalItem `json:"rentalItems"`
	Invoices    []Invoice    `json:"invoices,omitempty"`
	Customer    *Contact     `json:"user,omitempty"`
}

// Contact — краткие сведения о владельце заказа для списков.
type Contact struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Whatsapp string `json:"whatsapp,omitempty"`
}

// RentalItem — позиция заказа. Ровно одна из ссылок ProductID/PackageID задана в соответствии с Kind.
type RentalItem struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"orderId"`
	Kind      ItemKind        `json:"kind"`
	ProductID *int64          `json:"productId,omitempty"`
	PackageID *int64          `json:"rentalPackageId,omitempty"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// ReferenceID возвращает идентификатор товара или пакета позиции.
func (i RentalItem) ReferenceID() int64 {
	switch i.Kind {
	case ItemKindPackage:
		if i.PackageID != nil {
			return *i.PackageID
		}
	default:
		if i.ProductID != nil {
			return *i.ProductID
		}
	}
	return 0
}

// InvoiceStatus описывает состояние счёта.
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "PENDING"
	InvoiceStatusSent    InvoiceStatus = "SENT"
	InvoiceStatusPaid    InvoiceStatus = "PAID"
	InvoiceStatusOverdue InvoiceStatus = "OVERDUE"
)

// InvoiceLine — произвольная строка ручного счёта.
type InvoiceLine struct {
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

// Invoice описывает счёт, созданный по заказу или вручную.
type Invoice struct {
	ID             int64           `json:"id"`
	InvoiceNumber  string          `json:"invoiceNumber"`
	OrderID        *int64          `json:"orderId,omitempty"`
	UserID         *int64          `json:"userId,omitempty"`
	GuestName      string          `json:"guestName,omitempty"`
	GuestEmail     string          `json:"guestEmail,omitempty"`
	GuestWhatsapp  string          `json:"guestWhatsapp,omitempty"`
	GuestAddress   string          `json:"guestAddress,omitempty"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Tax            decimal.Decimal `json:"tax"`
	DeliveryFee    decimal.Decimal `json:"deliveryFee"`
	Total          decimal.Decimal `json:"total"`
	Currency       string          `json:"currency"`
	Status         InvoiceStatus   `json:"status"`
	ShareableToken string          `json:"shareableToken"`
	EmailSent      bool            `json:"emailSent"`
	EmailSentAt    *time.Time      `json:"emailSentAt,omitempty"`
	Items          []InvoiceLine   `json:"items,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Recalculate округляет составляющие счёта до двух знаков и пересчитывает итог: total = subtotal + tax + deliveryFee.
func (i *Invoice) Recalculate() {
	i.Subtotal = i.Subtotal.Round(2)
	i.Tax = i.Tax.Round(2)
	i.DeliveryFee = i.DeliveryFee.Round(2)
	i.Total = i.Subtotal.Add(i.Tax).Add(i.DeliveryFee)
}

// Balanced проверяет, что итог счёта согласован с его составляющими.
func (i *Invoice) Balanced() bool {
	return i.Total.Equal(i.Subtotal.Add(i.Tax).Add(i.DeliveryFee))
}

// ScheduleStatus описывает состояние выезда работника.
type ScheduleStatus string

const (
	ScheduleStatusPending   ScheduleStatus = "PENDING"
	ScheduleStatusOngoing   ScheduleStatus = "ONGOING"
	ScheduleStatusFinished  ScheduleStatus = "FINISHED"
	ScheduleStatusDelayed   ScheduleStatus = "DELAYED"
	ScheduleStatusCancelled ScheduleStatus = "CANCELLED"
)

// WorkerSchedule связывает работника с заказом на определённую дату.
type WorkerSchedule struct {
	ID            int64          `json:"id"`
	WorkerID      int64          `json:"workerId"`
	OrderID       int64          `json:"orderId"`
	AssignedBy    int64          `json:"assignedBy"`
	ScheduledDate time.Time      `json:"scheduledDate"`
	Notes         string         `json:"notes,omitempty"`
	Status        ScheduleStatus `json:"status"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`

	Order *ScheduledOrder `json:"order,omitempty"`
}

// ScheduledOrder — сведения о заказе, нужные работнику на выезде.
type ScheduledOrder struct {
	OrderNumber     string          `json:"orderNumber"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	StartDate       time.Time       `json:"startDate"`
	EndDate         time.Time       `json:"endDate"`
	DeliveryAddress string          `json:"deliveryAddress"`
	CustomerName    string          `json:"customerName,omitempty"`
	CustomerPhone   string          `json:"customerWhatsapp,omitempty"`
}

// NotificationType — тип уведомления работника.
type NotificationType string

const (
	NotificationAdminMessage NotificationType = "ADMIN_MESSAGE"
	NotificationJobAssigned  NotificationType = "JOB_ASSIGNED"
)

// WorkerNotification — уведомление для конкретного работника.
type WorkerNotification struct {
	ID          int64            `json:"id"`
	WorkerID    int64            `json:"workerId"`
	FromAdminID *int64           `json:"fromAdminId,omitempty"`
	Type        NotificationType `json:"type"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	IsRead      bool             `json:"isRead"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// SystemNotification — запись информационной ленты администратора.
type SystemNotification struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// ActivityLog — запись журнала действий.
type ActivityLog struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Action    string    `json:"action"`
	Entity    string    `json:"entity"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"createdAt"`
}

// Product — единица оборудования в каталоге.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category,omitempty"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// RentalPackage — пакет из нескольких товаров с общей ценой.
type RentalPackage struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Duration    int             `json:"duration"`
	Items       []PackageItem   `json:"items"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// PackageItem — товар, входящий в пакет.
type PackageItem struct {
	ID          int64  `json:"id"`
	ProductID   int64  `json:"productId"`
	ProductName string `json:"productName,omitempty"`
	Quantity    int    `json:"quantity"`
}
