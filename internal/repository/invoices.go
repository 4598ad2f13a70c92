package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/rentalhub/internal/model"
)

const invoiceColumns = `id, invoice_number, order_id, user_id, guest_name, guest_email, guest_whatsapp,
	guest_address, subtotal, tax, delivery_fee, total, currency, status, shareable_token,
	email_sent, email_sent_at, line_items, created_at, updated_at`

func scanInvoice(row pgx.Row) (*model.Invoice, error) {
	var (
		inv    model.Invoice
		status string
	)
	err := row.Scan(
		&inv.ID, &inv.InvoiceNumber, &inv.OrderID, &inv.UserID, &inv.GuestName, &inv.GuestEmail, &inv.GuestWhatsapp,
		&inv.GuestAddress, &inv.Subtotal, &inv.Tax, &inv.DeliveryFee, &inv.Total, &inv.Currency, &status, &inv.ShareableToken,
		&inv.EmailSent, &inv.EmailSentAt, &inv.Items, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	inv.Status = model.InvoiceStatus(status)
	return &inv, nil
}

// CreateInvoice сохраняет счёт. Если номер счёта уже занят, возвращает ErrDuplicateNumber,
// не прерывая транзакцию.
func (r *PostgresRepository) CreateInvoice(ctx context.Context, inv *model.Invoice) error {
	items := inv.Items
	if items == nil {
		items = []model.InvoiceLine{}
	}

	err := r.db.QueryRow(ctx,
		`INSERT INTO invoices (
		     invoice_number, order_id, user_id, guest_name, guest_email, guest_whatsapp, guest_address,
		     subtotal, tax, delivery_fee, total, currency, status, shareable_token, line_items
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 ON CONFLICT (invoice_number) DO NOTHING
		 RETURNING id, created_at, updated_at`,
		inv.InvoiceNumber, inv.OrderID, inv.UserID, inv.GuestName, inv.GuestEmail, inv.GuestWhatsapp, inv.GuestAddress,
		inv.Subtotal, inv.Tax, inv.DeliveryFee, inv.Total, inv.Currency, string(inv.Status), inv.ShareableToken, items,
	).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrDuplicateNumber, inv.InvoiceNumber)
		}
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

// GetInvoiceByOrder возвращает счёт, созданный по заказу.
func (r *PostgresRepository) GetInvoiceByOrder(ctx context.Context, orderID int64) (*model.Invoice, error) {
	inv, err := scanInvoice(r.db.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE order_id = $1`, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	return inv, nil
}

// GetInvoiceByToken возвращает счёт по токену публичной ссылки.
func (r *PostgresRepository) GetInvoiceByToken(ctx context.Context, token string) (*model.Invoice, error) {
	inv, err := scanInvoice(r.db.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE shareable_token = $1`, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	return inv, nil
}

// ListInvoices возвращает все счета, новые первыми.
func (r *PostgresRepository) ListInvoices(ctx context.Context) ([]model.Invoice, error) {
	rows, err := r.db.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("select invoices: %w", err)
	}
	defer rows.Close()

	var res []model.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		res = append(res, *inv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// UpdateInvoiceAmounts перезаписывает суммы и статус счёта. Номер и токен не меняются.
// При смене статуса отметка об отправке письма сбрасывается: клиент должен получить новую версию счёта.
func (r *PostgresRepository) UpdateInvoiceAmounts(ctx context.Context, inv *model.Invoice) error {
	err := r.db.QueryRow(ctx,
		`UPDATE invoices
		 SET subtotal = $2, tax = $3, delivery_fee = $4, total = $5, status = $6,
		     email_sent = email_sent AND status = $6, updated_at = NOW()
		 WHERE id = $1
		 RETURNING email_sent, email_sent_at, updated_at`,
		inv.ID, inv.Subtotal, inv.Tax, inv.DeliveryFee, inv.Total, string(inv.Status),
	).Scan(&inv.EmailSent, &inv.EmailSentAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInvoiceNotFound
		}
		return fmt.Errorf("update invoice: %w", err)
	}
	return nil
}

// MarkInvoiceEmailSent отмечает, что письмо со счётом отправлено. Счёт в статусе PENDING переходит в SENT.
func (r *PostgresRepository) MarkInvoiceEmailSent(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE invoices
		 SET email_sent = TRUE, email_sent_at = $2,
		     status = CASE WHEN status = 'PENDING' THEN 'SENT' ELSE status END,
		     updated_at = NOW()
		 WHERE id = $1`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("mark invoice email sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}
