package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/rentalhub/internal/identifier"
	"github.com/mmeshcher/rentalhub/internal/mailer"
	"github.com/mmeshcher/rentalhub/internal/model"
	"github.com/mmeshcher/rentalhub/internal/repository"
)

// createOrderInvoice выставляет счёт по заказу: сумма заказа плюс стоимость доставки, если она задана.
func (s *Service) createOrderInvoice(ctx context.Context, st repository.Store, o *model.Order, deliveryFee *decimal.Decimal, status model.InvoiceStatus) (*model.Invoice, error) {
	inv := &model.Invoice{
		OrderID:        &o.ID,
		UserID:         o.UserID,
		Subtotal:       o.TotalAmount,
		Tax:            decimal.Zero,
		DeliveryFee:    decimal.Zero,
		Currency:       o.Currency,
		Status:         status,
		ShareableToken: identifier.ShareableToken(),
		Items:          []model.InvoiceLine{},
	}
	if deliveryFee != nil {
		inv.DeliveryFee = *deliveryFee
	}
	if o.UserID == nil && o.Guest != nil {
		inv.GuestName = o.Guest.Name
		inv.GuestEmail = o.Guest.Email
		inv.GuestWhatsapp = o.Guest.Whatsapp
		inv.GuestAddress = o.DeliveryAddress
	}
	inv.Recalculate()

	now := s.now().UTC()
	if err := createWithNumber(func() error {
		inv.InvoiceNumber = identifier.InvoiceNumber(now)
		return st.CreateInvoice(ctx, inv)
	}); err != nil {
		return nil, err
	}

	return inv, nil
}

// ManualInvoiceInput содержит данные счёта, создаваемого администратором без заказа.
type ManualInvoiceInput struct {
	Type          string
	UserID        *int64
	GuestName     string
	GuestEmail    string
	GuestWhatsapp string
	GuestAddress  string
	Amount        decimal.Decimal
	Tax           decimal.Decimal
	DeliveryFee   decimal.Decimal
	Currency      string
	Items         []model.InvoiceLine
}

// CreateManualInvoice создаёт оплаченный счёт для зарегистрированного пользователя или гостя.
// Если сумма не задана, она считается по строкам счёта.
func (s *Service) CreateManualInvoice(ctx context.Context, adminID int64, in ManualInvoiceInput) (*model.Invoice, error) {
	inv := &model.Invoice{
		Tax:            in.Tax,
		DeliveryFee:    in.DeliveryFee,
		Currency:       strings.TrimSpace(in.Currency),
		Status:         model.InvoiceStatusPaid,
		ShareableToken: identifier.ShareableToken(),
		Items:          make([]model.InvoiceLine, 0, len(in.Items)),
	}
	if inv.Currency == "" {
		inv.Currency = s.opts.Currency
	}

	switch strings.ToLower(strings.TrimSpace(in.Type)) {
	case "registered":
		if in.UserID == nil {
			return nil, invalid("userId is required for registered invoices")
		}
		if _, err := s.repo.GetUserByID(ctx, *in.UserID); err != nil {
			return nil, err
		}
		inv.UserID = in.UserID
	case "guest":
		if err := validateGuest(in.GuestName, in.GuestEmail, in.GuestWhatsapp); err != nil {
			return nil, err
		}
		inv.GuestName = strings.TrimSpace(in.GuestName)
		inv.GuestEmail = in.GuestEmail
		inv.GuestWhatsapp = in.GuestWhatsapp
		inv.GuestAddress = strings.TrimSpace(in.GuestAddress)
	default:
		return nil, invalid("invoice type must be registered or guest")
	}

	linesTotal := decimal.Zero
	for _, l := range in.Items {
		if strings.TrimSpace(l.Description) == "" || l.Quantity <= 0 || l.UnitPrice.IsNegative() {
			return nil, invalid("invalid invoice line %q", l.Description)
		}
		linesTotal = linesTotal.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
		inv.Items = append(inv.Items, l)
	}

	inv.Subtotal = in.Amount
	if inv.Subtotal.IsZero() {
		inv.Subtotal = linesTotal
	}
	if !inv.Subtotal.IsPositive() {
		return nil, invalid("amount must be positive")
	}
	if inv.Tax.IsNegative() || inv.DeliveryFee.IsNegative() {
		return nil, invalid("tax and delivery fee must not be negative")
	}
	inv.Recalculate()

	now := s.now().UTC()
	err := s.repo.WithTx(ctx, func(tx repository.Store) error {
		if err := createWithNumber(func() error {
			inv.InvoiceNumber = identifier.InvoiceNumber(now)
			return tx.CreateInvoice(ctx, inv)
		}); err != nil {
			return err
		}
		return audit(ctx, tx, adminID, "CREATE_INVOICE", "INVOICE",
			fmt.Sprintf("Created manual invoice %s", inv.InvoiceNumber))
	})
	if err != nil {
		return nil, err
	}

	s.metrics.InvoiceCreated("manual")
	return inv, nil
}

// ResolveRecipients возвращает адресатов письма со счётом без повторов: клиент, почтовый ящик компании,
// затем все работники. Если адрес клиента неизвестен, он пропускается.
func (s *Service) ResolveRecipients(ctx context.Context, inv *model.Invoice) ([]string, error) {
	var customer string
	switch {
	case inv.UserID != nil:
		u, err := s.repo.GetUserByID(ctx, *inv.UserID)
		if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
			return nil, err
		}
		if u != nil {
			customer = u.Email
		}
	default:
		customer = inv.GuestEmail
	}

	workers, err := s.repo.ListWorkerEmails(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(workers)+2)
	res := make([]string, 0, len(workers)+2)
	add := func(addr string) {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			return
		}
		key := strings.ToLower(addr)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		res = append(res, addr)
	}

	add(customer)
	add(s.opts.CompanyMailbox)
	for _, w := range workers {
		add(w)
	}

	return res, nil
}

func (s *Service) customerName(ctx context.Context, inv *model.Invoice) string {
	if inv.UserID != nil {
		if u, err := s.repo.GetUserByID(ctx, *inv.UserID); err == nil {
			return u.FullName
		}
		return ""
	}
	return inv.GuestName
}

// InvoiceLink возвращает публичную ссылку на счёт.
func (s *Service) InvoiceLink(inv *model.Invoice) string {
	return s.opts.BaseURL + "/invoice/public/" + inv.ShareableToken
}

// notifyInvoice отправляет письмо со счётом и отмечает счёт отправленным.
// Возвращает число адресатов; ошибки логируются и не возвращаются.
func (s *Service) notifyInvoice(ctx context.Context, inv *model.Invoice) int {
	if s.mailer == nil {
		return 0
	}

	recipients, err := s.ResolveRecipients(ctx, inv)
	if err != nil {
		s.logMailError(fmt.Errorf("resolve recipients: %w", err), inv)
		return 0
	}

	err = s.mailer.SendInvoice(ctx, mailer.InvoiceEmail{
		To:            recipients,
		InvoiceNumber: inv.InvoiceNumber,
		CustomerName:  s.customerName(ctx, inv),
		Amount:        inv.Total,
		Currency:      inv.Currency,
		Link:          s.InvoiceLink(inv),
	})
	s.metrics.EmailSent(err == nil)
	if err != nil {
		s.logMailError(err, inv)
		return 0
	}

	now := s.now().UTC()
	if err := s.repo.MarkInvoiceEmailSent(ctx, inv.ID, now); err != nil {
		s.logger.Error("mark invoice email sent error", zap.Error(err), zap.String("invoice", inv.InvoiceNumber))
		return len(recipients)
	}

	inv.EmailSent = true
	inv.EmailSentAt = &now
	if inv.Status == model.InvoiceStatusPending {
		inv.Status = model.InvoiceStatusSent
	}

	return len(recipients)
}

func (s *Service) logMailError(err error, inv *model.Invoice) {
	s.logger.Warn("send invoice email error",
		zap.Error(err),
		zap.String("invoice", inv.InvoiceNumber),
		zap.Int64p("orderID", inv.OrderID),
	)
}

// ConfirmPaymentInput содержит данные подтверждения оплаты.
type ConfirmPaymentInput struct {
	PaymentMethod       string
	DeliveryFeeOverride *decimal.Decimal
}

// ConfirmPaymentResult — итог подтверждения оплаты.
type ConfirmPaymentResult struct {
	Order      *model.Order
	Invoice    *model.Invoice
	EmailsSent int
}

// ConfirmPayment отмечает заказ оплаченным, пересчитывает или создаёт счёт по нему и рассылает его.
//
// Повторное подтверждение идемпотентно: счёт по заказу остаётся единственным, номер и токен сохраняются,
// время и автор первого подтверждения не меняются. Письмо отправляется повторно, только если предыдущая
// отправка не удалась. Отменённый или завершённый заказ подтвердить нельзя.
func (s *Service) ConfirmPayment(ctx context.Context, adminID, orderID int64, in ConfirmPaymentInput) (*ConfirmPaymentResult, error) {
	method := strings.TrimSpace(in.PaymentMethod)
	if method == "" {
		return nil, invalid("payment method is required")
	}
	if in.DeliveryFeeOverride != nil && in.DeliveryFeeOverride.IsNegative() {
		return nil, invalid("delivery fee must not be negative")
	}

	var res ConfirmPaymentResult
	err := s.repo.WithTx(ctx, func(tx repository.Store) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status.Final() {
			return invalid("cannot confirm payment for %s order", strings.ToLower(string(o.Status)))
		}

		status := o.Status
		if status == model.OrderStatusPending {
			status = model.OrderStatusConfirmed
		}

		confirmedBy, confirmedAt := adminID, s.now().UTC()
		if o.PaymentStatus == model.PaymentStatusPaid && o.PaymentConfirmedAt != nil {
			confirmedAt = *o.PaymentConfirmedAt
			if o.PaymentConfirmedBy != nil {
				confirmedBy = *o.PaymentConfirmedBy
			}
		}

		if err := tx.MarkOrderPaid(ctx, o.ID, method, confirmedBy, status, confirmedAt); err != nil {
			return err
		}
		o.Status = status
		o.PaymentMethod = method
		o.PaymentStatus = model.PaymentStatusPaid
		o.PaymentConfirmedBy = &confirmedBy
		o.PaymentConfirmedAt = &confirmedAt

		inv, err := tx.GetInvoiceByOrder(ctx, o.ID)
		switch {
		case errors.Is(err, repository.ErrInvoiceNotFound):
			inv, err = s.createOrderInvoice(ctx, tx, o, in.DeliveryFeeOverride, model.InvoiceStatusPaid)
			if err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			inv.Subtotal = o.TotalAmount
			if in.DeliveryFeeOverride != nil {
				inv.DeliveryFee = *in.DeliveryFeeOverride
			}
			inv.Status = model.InvoiceStatusPaid
			inv.Recalculate()
			if err := tx.UpdateInvoiceAmounts(ctx, inv); err != nil {
				return err
			}
		}

		if err := audit(ctx, tx, adminID, "CONFIRM_PAYMENT", "ORDER",
			fmt.Sprintf("Confirmed payment for order %s", o.OrderNumber)); err != nil {
			return err
		}

		res.Order = o
		res.Invoice = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PaymentConfirmed()

	if !res.Invoice.EmailSent {
		res.EmailsSent = s.notifyInvoice(ctx, res.Invoice)
	}

	return &res, nil
}

// ListInvoices возвращает все счета для панели администратора.
func (s *Service) ListInvoices(ctx context.Context) ([]model.Invoice, error) {
	return s.repo.ListInvoices(ctx)
}

// PublicInvoice возвращает счёт по токену публичной ссылки.
func (s *Service) PublicInvoice(ctx context.Context, token string) (*model.Invoice, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, repository.ErrInvoiceNotFound
	}
	return s.repo.GetInvoiceByToken(ctx, token)
}
