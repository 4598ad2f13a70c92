package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/rentalhub/internal/model"
)

const orderColumns = `o.id, o.order_number, o.status, o.subtotal, o.total_amount, o.currency,
	o.payment_method, o.payment_status, o.payment_confirmed_by, o.payment_confirmed_at,
	o.delivery_address, o.delivery_status, o.notes, o.start_date, o.end_date, o.duration,
	o.user_id, o.guest_name, o.guest_email, o.guest_whatsapp, o.created_at, o.updated_at`

func scanOrder(row pgx.Row, extra ...any) (*model.Order, error) {
	var (
		o              model.Order
		status         string
		paymentStatus  string
		deliveryStatus string
		guest          model.GuestInfo
	)

	dest := []any{
		&o.ID, &o.OrderNumber, &status, &o.Subtotal, &o.TotalAmount, &o.Currency,
		&o.PaymentMethod, &paymentStatus, &o.PaymentConfirmedBy, &o.PaymentConfirmedAt,
		&o.DeliveryAddress, &deliveryStatus, &o.Notes, &o.StartDate, &o.EndDate, &o.Duration,
		&o.UserID, &guest.Name, &guest.Email, &guest.Whatsapp, &o.CreatedAt, &o.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	o.Status = model.OrderStatus(status)
	o.PaymentStatus = model.PaymentStatus(paymentStatus)
	o.DeliveryStatus = model.DeliveryStatus(deliveryStatus)
	if o.UserID == nil {
		guest.Address = o.DeliveryAddress
		o.Guest = &guest
	}

	return &o, nil
}

// CreateOrder сохраняет заказ вместе с позициями. Вызывается внутри WithTx, чтобы заказ
// и позиции записывались атомарно. Если номер заказа уже занят, возвращает ErrDuplicateNumber,
// не прерывая транзакцию.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o *model.Order) error {
	var guest model.GuestInfo
	if o.Guest != nil {
		guest = *o.Guest
	}

	err := r.db.QueryRow(ctx,
		`INSERT INTO orders (
		     order_number, status, subtotal, total_amount, currency, payment_method, payment_status,
		     delivery_address, delivery_status, notes, start_date, end_date, duration,
		     user_id, guest_name, guest_email, guest_whatsapp
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		 ON CONFLICT (order_number) DO NOTHING
		 RETURNING id, created_at, updated_at`,
		o.OrderNumber, string(o.Status), o.Subtotal, o.TotalAmount, o.Currency, o.PaymentMethod, string(o.PaymentStatus),
		o.DeliveryAddress, string(o.DeliveryStatus), o.Notes, o.StartDate, o.EndDate, o.Duration,
		o.UserID, guest.Name, guest.Email, guest.Whatsapp,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrDuplicateNumber, o.OrderNumber)
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range o.RentalItems {
		item := &o.RentalItems[i]
		item.OrderID = o.ID

		err := r.db.QueryRow(ctx,
			`INSERT INTO rental_items (order_id, kind, product_id, package_id, name, quantity, unit_price)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING id`,
			o.ID, string(item.Kind), item.ProductID, item.PackageID, item.Name, item.Quantity, item.UnitPrice,
		).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("insert rental item: %w", err)
		}
	}

	return nil
}

// GetOrder возвращает заказ вместе с позициями.
func (r *PostgresRepository) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	return r.getOrder(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = $1`, id)
}

// LockOrder возвращает заказ, блокируя его строку до конца транзакции.
func (r *PostgresRepository) LockOrder(ctx context.Context, id int64) (*model.Order, error) {
	return r.getOrder(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = $1 FOR UPDATE`, id)
}

func (r *PostgresRepository) getOrder(ctx context.Context, query string, id int64) (*model.Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	items, err := r.rentalItems(ctx, []int64{o.ID})
	if err != nil {
		return nil, err
	}
	o.RentalItems = items[o.ID]

	return o, nil
}

// ListOrders возвращает все заказы, новые первыми, с контактами владельца и позициями.
func (r *PostgresRepository) ListOrders(ctx context.Context) ([]model.Order, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+orderColumns+`, COALESCE(u.full_name, ''), COALESCE(u.email, ''), COALESCE(u.whatsapp, '')
		 FROM orders o
		 LEFT JOIN users u ON u.id = o.user_id
		 ORDER BY o.created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var res []model.Order
	for rows.Next() {
		var c model.Contact
		o, err := scanOrder(rows, &c.FullName, &c.Email, &c.Whatsapp)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		if o.UserID != nil {
			o.Customer = &c
		}
		res = append(res, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if err := r.attachItems(ctx, res); err != nil {
		return nil, err
	}

	return res, nil
}

// ListOrdersByUser возвращает заказы пользователя вместе с позициями и счетами.
func (r *PostgresRepository) ListOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+orderColumns+` FROM orders o WHERE o.user_id = $1 ORDER BY o.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var res []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		res = append(res, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if err := r.attachItems(ctx, res); err != nil {
		return nil, err
	}

	for i := range res {
		inv, err := r.GetInvoiceByOrder(ctx, res[i].ID)
		if errors.Is(err, ErrInvoiceNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		res[i].Invoices = []model.Invoice{*inv}
	}

	return res, nil
}

func (r *PostgresRepository) attachItems(ctx context.Context, orders []model.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}

	items, err := r.rentalItems(ctx, ids)
	if err != nil {
		return err
	}
	for i := range orders {
		orders[i].RentalItems = items[orders[i].ID]
	}
	return nil
}

func (r *PostgresRepository) rentalItems(ctx context.Context, orderIDs []int64) (map[int64][]model.RentalItem, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, order_id, kind, product_id, package_id, name, quantity, unit_price
		 FROM rental_items
		 WHERE order_id = ANY($1)
		 ORDER BY id`,
		orderIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("select rental items: %w", err)
	}
	defer rows.Close()

	res := make(map[int64][]model.RentalItem, len(orderIDs))
	for rows.Next() {
		var (
			item model.RentalItem
			kind string
		)
		if err := rows.Scan(&item.ID, &item.OrderID, &kind, &item.ProductID, &item.PackageID, &item.Name, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan rental item: %w", err)
		}
		item.Kind = model.ItemKind(kind)
		res[item.OrderID] = append(res[item.OrderID], item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// UpdateOrderStatus изменяет статус заказа.
func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, id int64, status model.OrderStatus) error {
	return r.execOrderUpdate(ctx,
		`UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, string(status),
	)
}

// MarkOrderPaid отмечает заказ оплаченным и переводит его в указанный статус.
func (r *PostgresRepository) MarkOrderPaid(ctx context.Context, id int64, method string, confirmedBy int64, status model.OrderStatus, at time.Time) error {
	return r.execOrderUpdate(ctx,
		`UPDATE orders
		 SET payment_status = $2, payment_method = $3, payment_confirmed_by = $4,
		     payment_confirmed_at = $5, status = $6, updated_at = NOW()
		 WHERE id = $1`,
		id, string(model.PaymentStatusPaid), method, confirmedBy, at, string(status),
	)
}

// UpdateDeliveryStatus изменяет статус доставки заказа.
func (r *PostgresRepository) UpdateDeliveryStatus(ctx context.Context, id int64, status model.DeliveryStatus) error {
	return r.execOrderUpdate(ctx,
		`UPDATE orders SET delivery_status = $2, updated_at = NOW() WHERE id = $1`,
		id, string(status),
	)
}

func (r *PostgresRepository) execOrderUpdate(ctx context.Context, query string, args ...any) error {
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}
