package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/rentalhub/internal/model"
	"github.com/mmeshcher/rentalhub/internal/repository"
)

func guestOrder(productID int64) CreateOrderInput {
	return CreateOrderInput{
		Item:            &OrderItem{Kind: model.ItemKindProduct, ID: productID, Duration: 7},
		PaymentMethod:   "bank_transfer",
		DeliveryAddress: "Jl. Merdeka 1, Jakarta",
		Guest: &model.GuestInfo{
			Name:     "Andi",
			Email:    "andi@example.com",
			Whatsapp: "+6281234567890",
		},
	}
}

func TestCreateOrder_MissingFieldsRejectedBeforeWrites(t *testing.T) {
	f := newFixture(t)
	p := f.repo.addProduct("Tent", "150000")

	tests := []struct {
		name   string
		mutate func(in *CreateOrderInput)
	}{
		{name: "no delivery address", mutate: func(in *CreateOrderInput) { in.DeliveryAddress = "  " }},
		{name: "no payment method", mutate: func(in *CreateOrderInput) { in.PaymentMethod = "" }},
		{name: "no item", mutate: func(in *CreateOrderInput) { in.Item = nil }},
		{name: "no guest info", mutate: func(in *CreateOrderInput) { in.Guest = nil }},
		{name: "guest without contacts", mutate: func(in *CreateOrderInput) { in.Guest.Email, in.Guest.Whatsapp = "", "" }},
		{name: "bad guest email", mutate: func(in *CreateOrderInput) { in.Guest.Email = "not-an-email" }},
		{name: "unknown kind", mutate: func(in *CreateOrderInput) { in.Item.Kind = "SERVICE" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := guestOrder(p.ID)
			tt.mutate(&in)

			_, err := f.svc.CreateOrder(context.Background(), nil, in)
			require.ErrorIs(t, err, ErrValidation)
			assert.Empty(t, f.repo.orders)
			assert.Empty(t, f.repo.invoices)
			assert.Empty(t, f.mail.sent)
		})
	}
}

func TestCreateOrder_MissingFieldsMessage(t *testing.T) {
	f := newFixture(t)
	p := f.repo.addProduct("Tent", "150000")

	in := guestOrder(p.ID)
	in.DeliveryAddress = ""

	_, err := f.svc.CreateOrder(context.Background(), nil, in)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "missing required fields", verr.Message)
}

func TestCreateOrder_GuestCheckout(t *testing.T) {
	f := newFixture(t)
	f.repo.addUser(model.RoleWorker, "joko", "joko@rentalhub.local")
	p := f.repo.addProduct("Tent", "150000")

	in := guestOrder(p.ID)
	in.Item.Quantity = 2

	res, err := f.svc.CreateOrder(context.Background(), nil, in)
	require.NoError(t, err)

	o := res.Order
	assert.Nil(t, o.UserID)
	assert.Equal(t, model.OrderStatusPending, o.Status)
	assert.Equal(t, model.PaymentStatusPending, o.PaymentStatus)
	assert.Equal(t, model.DeliveryStatusPending, o.DeliveryStatus)
	assert.Equal(t, "IDR", o.Currency)
	assert.True(t, o.TotalAmount.Equal(decimal.RequireFromString("300000")))
	require.Len(t, o.RentalItems, 1)
	assert.Equal(t, p.ID, o.RentalItems[0].ReferenceID())
	assert.Regexp(t, `^ORD-250110-[0-9A-F]{8}$`, o.OrderNumber)

	inv := res.Invoice
	require.NotNil(t, inv)
	assert.Nil(t, inv.UserID)
	assert.Equal(t, o.ID, *inv.OrderID)
	assert.Equal(t, "Andi", inv.GuestName)
	assert.Equal(t, "andi@example.com", inv.GuestEmail)
	assert.Equal(t, "+6281234567890", inv.GuestWhatsapp)
	assert.Equal(t, "Jl. Merdeka 1, Jakarta", inv.GuestAddress)
	assert.True(t, inv.Balanced())
	assert.Regexp(t, `^INV-20250110-[0-9A-F]{8}$`, inv.InvoiceNumber)
	assert.NotEmpty(t, inv.ShareableToken)

	require.Len(t, f.mail.sent, 1)
	msg := f.mail.sent[0]
	assert.Equal(t, []string{"andi@example.com", testMailbox, "joko@rentalhub.local"}, msg.To)
	assert.Equal(t, "Andi", msg.CustomerName)
	assert.Equal(t, "http://localhost:3000/invoice/public/"+inv.ShareableToken, msg.Link)

	assert.True(t, inv.EmailSent)
	assert.Equal(t, model.InvoiceStatusSent, inv.Status)
	assert.True(t, f.repo.invoices[inv.ID].EmailSent)
}

func TestCreateOrder_RegisteredUserIgnoresGuest(t *testing.T) {
	f := newFixture(t)
	u := f.repo.addUser(model.RoleUser, "sari", "sari@example.com")
	p := f.repo.addProduct("Tent", "150000")

	in := guestOrder(p.ID)
	res, err := f.svc.CreateOrder(context.Background(), &u.ID, in)
	require.NoError(t, err)

	assert.Equal(t, u.ID, *res.Order.UserID)
	assert.Nil(t, res.Order.Guest)
	assert.Equal(t, u.ID, *res.Invoice.UserID)
	assert.Empty(t, res.Invoice.GuestName)
	require.Len(t, f.mail.sent, 1)
	assert.Equal(t, "sari@example.com", f.mail.sent[0].To[0])
}

func TestCreateOrder_Duration(t *testing.T) {
	f := newFixture(t)
	p := f.repo.addProduct("Tent", "150000")
	pkg := f.repo.addPackage("Camping set", "500000", 3)

	tests := []struct {
		name string
		item OrderItem
		want int
	}{
		{name: "explicit", item: OrderItem{Kind: model.ItemKindProduct, ID: p.ID, Duration: 10}, want: 10},
		{name: "product default", item: OrderItem{Kind: model.ItemKindProduct, ID: p.ID}, want: defaultDuration},
		{name: "package default", item: OrderItem{Kind: model.ItemKindPackage, ID: pkg.ID}, want: 3},
		{name: "package explicit", item: OrderItem{Kind: model.ItemKindPackage, ID: pkg.ID, Duration: 5}, want: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := guestOrder(0)
			item := tt.item
			in.Item = &item

			res, err := f.svc.CreateOrder(context.Background(), nil, in)
			require.NoError(t, err)

			o := res.Order
			assert.Equal(t, tt.want, o.Duration)
			assert.Equal(t, f.now, o.StartDate)
			assert.Equal(t, o.StartDate.AddDate(0, 0, tt.want), o.EndDate)
			assert.Equal(t, time.Duration(tt.want)*24*time.Hour, o.EndDate.Sub(o.StartDate))
		})
	}
}

func TestCreateOrder_UnknownProduct(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateOrder(context.Background(), nil, guestOrder(999))
	assert.ErrorIs(t, err, repository.ErrProductNotFound)
	assert.Empty(t, f.repo.orders)
}

func TestCreateOrder_RetriesDuplicateNumber(t *testing.T) {
	f := newFixture(t)
	p := f.repo.addProduct("Tent", "150000")
	f.repo.duplicateOrderNumbers = numberAttempts - 1

	res, err := f.svc.CreateOrder(context.Background(), nil, guestOrder(p.ID))
	require.NoError(t, err)
	assert.NotZero(t, res.Order.ID)
	assert.Len(t, f.repo.orders, 1)
}

func TestCreateOrder_GivesUpAfterDuplicateNumbers(t *testing.T) {
	f := newFixture(t)
	p := f.repo.addProduct("Tent", "150000")
	f.repo.duplicateOrderNumbers = numberAttempts

	_, err := f.svc.CreateOrder(context.Background(), nil, guestOrder(p.ID))
	assert.ErrorIs(t, err, repository.ErrDuplicateNumber)
	assert.Empty(t, f.repo.orders)
}

func TestCreateOrder_MailFailureDoesNotFailCheckout(t *testing.T) {
	f := newFixture(t)
	p := f.repo.addProduct("Tent", "150000")
	f.mail.err = errors.New("smtp down")

	res, err := f.svc.CreateOrder(context.Background(), nil, guestOrder(p.ID))
	require.NoError(t, err)

	assert.False(t, res.Invoice.EmailSent)
	assert.Equal(t, model.InvoiceStatusPending, res.Invoice.Status)
	assert.Len(t, f.repo.orders, 1)
	assert.Len(t, f.repo.invoices, 1)
}

func TestCreateOrder_WithoutMailer(t *testing.T) {
	f := newFixture(t)
	p := f.repo.addProduct("Tent", "150000")
	f.svc.mailer = nil

	res, err := f.svc.CreateOrder(context.Background(), nil, guestOrder(p.ID))
	require.NoError(t, err)
	assert.False(t, res.Invoice.EmailSent)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to model.OrderStatus
		want     bool
	}{
		{model.OrderStatusPending, model.OrderStatusConfirmed, true},
		{model.OrderStatusPending, model.OrderStatusCancelled, true},
		{model.OrderStatusPending, model.OrderStatusActive, false},
		{model.OrderStatusConfirmed, model.OrderStatusActive, true},
		{model.OrderStatusConfirmed, model.OrderStatusCancelled, true},
		{model.OrderStatusActive, model.OrderStatusCompleted, true},
		{model.OrderStatusActive, model.OrderStatusCancelled, false},
		{model.OrderStatusCompleted, model.OrderStatusActive, false},
		{model.OrderStatusCancelled, model.OrderStatusPending, false},
		{model.OrderStatusActive, model.OrderStatusActive, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestUpdateOrderStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.repo.addProduct("Tent", "150000")

	res, err := f.svc.CreateOrder(ctx, nil, guestOrder(p.ID))
	require.NoError(t, err)
	id := res.Order.ID

	_, err = f.svc.UpdateOrderStatus(ctx, f.admin.ID, id, "active")
	assert.ErrorIs(t, err, ErrValidation)

	o, err := f.svc.UpdateOrderStatus(ctx, f.admin.ID, id, "confirmed")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusConfirmed, o.Status)
	assert.Equal(t, model.OrderStatusConfirmed, f.repo.orders[id].Status)

	_, err = f.svc.UpdateOrderStatus(ctx, f.admin.ID, id, "shipped")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.UpdateOrderStatus(ctx, f.admin.ID, 12345, "cancelled")
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)

	require.Len(t, f.repo.activity, 1)
	assert.Equal(t, "UPDATE_ORDER_STATUS", f.repo.activity[0].Action)
	require.Len(t, f.repo.system, 1)
	assert.Equal(t, "UPDATE ORDER STATUS", f.repo.system[0].Title)
}

func TestCatalog_PackageValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.repo.addProduct("Tent", "150000")

	err := f.svc.CreatePackage(ctx, &model.RentalPackage{Name: " ", Price: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrValidation)

	pkg := &model.RentalPackage{
		Name:  "Camping set",
		Price: decimal.NewFromInt(400000),
		Items: []model.PackageItem{{ProductID: p.ID}},
	}
	require.NoError(t, f.svc.CreatePackage(ctx, pkg))
	assert.Equal(t, defaultDuration, pkg.Duration)
	assert.Equal(t, 1, pkg.Items[0].Quantity)

	pkg.Price = decimal.NewFromInt(450000)
	updated, err := f.svc.UpdatePackage(ctx, pkg)
	require.NoError(t, err)
	assert.True(t, updated.Price.Equal(decimal.NewFromInt(450000)))

	require.NoError(t, f.svc.DeletePackage(ctx, pkg.ID))
	assert.ErrorIs(t, f.svc.DeletePackage(ctx, pkg.ID), repository.ErrPackageNotFound)
}
