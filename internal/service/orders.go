package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/rentalhub/internal/identifier"
	"github.com/mmeshcher/rentalhub/internal/model"
	"github.com/mmeshcher/rentalhub/internal/repository"
	"github.com/mmeshcher/rentalhub/internal/validation"
)

// OrderItem — позиция корзины при оформлении заказа.
type OrderItem struct {
	Kind     model.ItemKind
	ID       int64
	Quantity int
	Duration int
}

// CreateOrderInput содержит данные формы оформления заказа.
type CreateOrderInput struct {
	Item            *OrderItem
	Currency        string
	PaymentMethod   string
	DeliveryAddress string
	Notes           string
	Guest           *model.GuestInfo
}

// OrderResult — созданный заказ и выставленный по нему счёт.
type OrderResult struct {
	Order   *model.Order
	Invoice *model.Invoice
}

func validateOrder(userID *int64, in *CreateOrderInput) error {
	in.PaymentMethod = strings.TrimSpace(in.PaymentMethod)
	in.DeliveryAddress = strings.TrimSpace(in.DeliveryAddress)

	if in.Item == nil || in.PaymentMethod == "" || in.DeliveryAddress == "" {
		return invalid("missing required fields")
	}

	if in.Item.Kind == "" {
		in.Item.Kind = model.ItemKindProduct
	}
	if in.Item.Kind != model.ItemKindProduct && in.Item.Kind != model.ItemKindPackage {
		return invalid("unknown item kind %q", in.Item.Kind)
	}
	if in.Item.ID <= 0 {
		return invalid("item id is required")
	}
	if in.Item.Quantity < 0 || in.Item.Duration < 0 {
		return invalid("item quantity and duration must not be negative")
	}
	if in.Item.Quantity == 0 {
		in.Item.Quantity = 1
	}

	if userID != nil {
		in.Guest = nil
		return nil
	}

	if in.Guest == nil {
		return invalid("guest info required")
	}
	return validateGuest(in.Guest.Name, in.Guest.Email, in.Guest.Whatsapp)
}

func validateGuest(name, email, whatsapp string) error {
	if strings.TrimSpace(name) == "" {
		return invalid("guest name is required")
	}
	if email == "" && whatsapp == "" {
		return invalid("guest email or whatsapp is required")
	}
	if email != "" && !validation.IsValidEmail(email) {
		return invalid("invalid guest email")
	}
	if whatsapp != "" && !validation.IsValidWhatsapp(whatsapp) {
		return invalid("invalid guest whatsapp number")
	}
	return nil
}

// CreateOrder оформляет заказ с одной позицией и сразу выставляет по нему счёт.
// Заказ, позиция и счёт записываются в одной транзакции; письмо отправляется после фиксации,
// и его ошибка не влияет на результат.
func (s *Service) CreateOrder(ctx context.Context, userID *int64, in CreateOrderInput) (*OrderResult, error) {
	if err := validateOrder(userID, &in); err != nil {
		return nil, err
	}

	currency := strings.TrimSpace(in.Currency)
	if currency == "" {
		currency = s.opts.Currency
	}

	var res OrderResult
	err := s.repo.WithTx(ctx, func(tx repository.Store) error {
		item, duration, err := s.priceItem(ctx, tx, in.Item)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		subtotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))

		o := &model.Order{
			Status:          model.OrderStatusPending,
			Subtotal:        subtotal,
			TotalAmount:     subtotal,
			Currency:        currency,
			PaymentMethod:   in.PaymentMethod,
			PaymentStatus:   model.PaymentStatusPending,
			DeliveryAddress: in.DeliveryAddress,
			DeliveryStatus:  model.DeliveryStatusPending,
			Notes:           strings.TrimSpace(in.Notes),
			StartDate:       now,
			EndDate:         now.AddDate(0, 0, duration),
			Duration:        duration,
			UserID:          userID,
			RentalItems:     []model.RentalItem{item},
		}
		if in.Guest != nil {
			guest := *in.Guest
			guest.Address = in.DeliveryAddress
			o.Guest = &guest
		}

		if err := createWithNumber(func() error {
			o.OrderNumber = identifier.OrderNumber(now)
			return tx.CreateOrder(ctx, o)
		}); err != nil {
			return err
		}

		inv, err := s.createOrderInvoice(ctx, tx, o, nil, model.InvoiceStatusPending)
		if err != nil {
			return err
		}

		res = OrderResult{Order: o, Invoice: inv}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.OrderCreated()
	s.metrics.InvoiceCreated("order")

	s.notifyInvoice(ctx, res.Invoice)

	return &res, nil
}

// priceItem превращает позицию корзины в позицию заказа по ценам каталога и определяет срок аренды.
func (s *Service) priceItem(ctx context.Context, st repository.Store, it *OrderItem) (model.RentalItem, int, error) {
	item := model.RentalItem{Kind: it.Kind, Quantity: it.Quantity}
	duration := it.Duration

	switch it.Kind {
	case model.ItemKindPackage:
		p, err := st.GetPackage(ctx, it.ID)
		if err != nil {
			return item, 0, err
		}
		item.PackageID = &p.ID
		item.Name = p.Name
		item.UnitPrice = p.Price
		if duration == 0 {
			duration = p.Duration
		}
	default:
		p, err := st.GetProduct(ctx, it.ID)
		if err != nil {
			return item, 0, err
		}
		item.ProductID = &p.ID
		item.Name = p.Name
		item.UnitPrice = p.Price
	}

	if duration <= 0 {
		duration = defaultDuration
	}
	return item, duration, nil
}

// createWithNumber повторяет вставку с новым сгенерированным номером, если номер оказался занят.
func createWithNumber(insert func() error) error {
	var err error
	for range numberAttempts {
		err = insert()
		if !errors.Is(err, repository.ErrDuplicateNumber) {
			return err
		}
	}
	return fmt.Errorf("after %d attempts: %w", numberAttempts, err)
}

var orderTransitions = map[model.OrderStatus][]model.OrderStatus{
	model.OrderStatusPending:   {model.OrderStatusConfirmed, model.OrderStatusCancelled},
	model.OrderStatusConfirmed: {model.OrderStatusActive, model.OrderStatusCancelled},
	model.OrderStatusActive:    {model.OrderStatusCompleted},
}

// CanTransition сообщает, допустим ли переход заказа из from в to. Переход в тот же статус допустим.
func CanTransition(from, to model.OrderStatus) bool {
	if from == to {
		return true
	}
	for _, s := range orderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func parseOrderStatus(v string) (model.OrderStatus, bool) {
	st := model.OrderStatus(strings.ToUpper(strings.TrimSpace(v)))
	switch st {
	case model.OrderStatusPending, model.OrderStatusConfirmed, model.OrderStatusActive,
		model.OrderStatusCompleted, model.OrderStatusCancelled:
		return st, true
	}
	return "", false
}

// UpdateOrderStatus переводит заказ в новый статус, проверяя допустимость перехода.
func (s *Service) UpdateOrderStatus(ctx context.Context, adminID, orderID int64, status string) (*model.Order, error) {
	to, ok := parseOrderStatus(status)
	if !ok {
		return nil, invalid("unknown order status %q", status)
	}

	var order *model.Order
	err := s.repo.WithTx(ctx, func(tx repository.Store) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}

		if o.Status == to {
			order = o
			return nil
		}
		if !CanTransition(o.Status, to) {
			return invalid("cannot change order status from %s to %s", o.Status, to)
		}

		if err := tx.UpdateOrderStatus(ctx, o.ID, to); err != nil {
			return err
		}
		if err := audit(ctx, tx, adminID, "UPDATE_ORDER_STATUS", "ORDER",
			fmt.Sprintf("Order %s status changed from %s to %s", o.OrderNumber, o.Status, to)); err != nil {
			return err
		}

		o.Status = to
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

// MyOrders возвращает заказы пользователя вместе с позициями и счетами.
func (s *Service) MyOrders(ctx context.Context, userID int64) ([]model.Order, error) {
	return s.repo.ListOrdersByUser(ctx, userID)
}

// ListOrders возвращает все заказы для панели администратора.
func (s *Service) ListOrders(ctx context.Context) ([]model.Order, error) {
	return s.repo.ListOrders(ctx)
}
