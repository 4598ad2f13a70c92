package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/rentalhub/internal/mailer"
	"github.com/mmeshcher/rentalhub/internal/model"
	"github.com/mmeshcher/rentalhub/internal/repository"
)

// stubRepo — хранилище в памяти с семантикой ограничений PostgreSQL, которые важны сервису.
type stubRepo struct {
	mu     sync.Mutex
	nextID int64

	users         map[int64]*model.User
	products      map[int64]*model.Product
	packages      map[int64]*model.RentalPackage
	orders        map[int64]*model.Order
	invoices      map[int64]*model.Invoice
	schedules     map[int64]*model.WorkerSchedule
	notifications map[int64]*model.WorkerNotification
	activity      []model.ActivityLog
	system        []model.SystemNotification

	orderNumbers   map[string]bool
	invoiceNumbers map[string]bool

	// duplicateOrderNumbers — сколько первых вставок заказа завершатся ErrDuplicateNumber.
	duplicateOrderNumbers int
	countCalls            int
	txCalls               int
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		users:          map[int64]*model.User{},
		products:       map[int64]*model.Product{},
		packages:       map[int64]*model.RentalPackage{},
		orders:         map[int64]*model.Order{},
		invoices:       map[int64]*model.Invoice{},
		schedules:      map[int64]*model.WorkerSchedule{},
		notifications:  map[int64]*model.WorkerNotification{},
		orderNumbers:   map[string]bool{},
		invoiceNumbers: map[string]bool{},
	}
}

func (s *stubRepo) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *stubRepo) addUser(role model.Role, username, email string) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &model.User{ID: s.id(), Username: username, FullName: strings.ToUpper(username[:1]) + username[1:], Email: email, Role: role, IsActive: true}
	s.users[u.ID] = u
	return u
}

func (s *stubRepo) addProduct(name, price string) *model.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &model.Product{ID: s.id(), Name: name, Price: decimal.RequireFromString(price), Stock: 5}
	s.products[p.ID] = p
	return p
}

func (s *stubRepo) addPackage(name, price string, duration int) *model.RentalPackage {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &model.RentalPackage{ID: s.id(), Name: name, Price: decimal.RequireFromString(price), Duration: duration}
	s.packages[p.ID] = p
	return p
}

func (s *stubRepo) invoicesFor(orderID int64) []model.Invoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []model.Invoice
	for _, inv := range s.invoices {
		if inv.OrderID != nil && *inv.OrderID == orderID {
			res = append(res, *inv)
		}
	}
	return res
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) WithTx(ctx context.Context, fn func(repository.Store) error) error {
	s.txCalls++
	return fn(s)
}

func (s *stubRepo) CreateUser(ctx context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.users {
		if e.Username == u.Username || e.Email == u.Email {
			return repository.ErrUserExists
		}
	}
	u.ID = s.id()
	u.CreatedAt = time.Now()
	c := *u
	s.users[u.ID] = &c
	return nil
}

func (s *stubRepo) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (s *stubRepo) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			c := *u
			return &c, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (s *stubRepo) ListUsers(ctx context.Context) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		res = append(res, *u)
	}
	return res, nil
}

func (s *stubRepo) ListWorkerEmails(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for id, u := range s.users {
		if u.Role == model.RoleWorker && u.IsActive {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	res := make([]string, 0, len(ids))
	for _, id := range ids {
		res = append(res, s.users[id].Email)
	}
	return res, nil
}

func (s *stubRepo) UpdateWorker(ctx context.Context, id int64, upd repository.WorkerUpdate) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.Role != model.RoleWorker {
		return nil, repository.ErrUserNotFound
	}
	if upd.FullName != nil {
		u.FullName = *upd.FullName
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.Whatsapp != nil {
		u.Whatsapp = *upd.Whatsapp
	}
	if upd.IsActive != nil {
		u.IsActive = *upd.IsActive
	}
	c := *u
	return &c, nil
}

func (s *stubRepo) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	c := *p
	return &c, nil
}

func (s *stubRepo) ListProducts(ctx context.Context, category string) ([]model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []model.Product
	for _, p := range s.products {
		if category == "" || p.Category == category {
			res = append(res, *p)
		}
	}
	return res, nil
}

func (s *stubRepo) CreateProduct(ctx context.Context, p *model.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.id()
	c := *p
	s.products[p.ID] = &c
	return nil
}

func (s *stubRepo) GetPackage(ctx context.Context, id int64) (*model.RentalPackage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.packages[id]
	if !ok {
		return nil, repository.ErrPackageNotFound
	}
	c := *p
	return &c, nil
}

func (s *stubRepo) ListPackages(ctx context.Context) ([]model.RentalPackage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []model.RentalPackage
	for _, p := range s.packages {
		res = append(res, *p)
	}
	return res, nil
}

func (s *stubRepo) CreatePackage(ctx context.Context, p *model.RentalPackage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range p.Items {
		if _, ok := s.products[it.ProductID]; !ok {
			return repository.ErrProductNotFound
		}
	}
	p.ID = s.id()
	c := *p
	s.packages[p.ID] = &c
	return nil
}

func (s *stubRepo) UpdatePackage(ctx context.Context, p *model.RentalPackage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.packages[p.ID]; !ok {
		return repository.ErrPackageNotFound
	}
	c := *p
	s.packages[p.ID] = &c
	return nil
}

func (s *stubRepo) DeletePackage(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.packages[id]; !ok {
		return repository.ErrPackageNotFound
	}
	delete(s.packages, id)
	return nil
}

func (s *stubRepo) CreateOrder(ctx context.Context, o *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.duplicateOrderNumbers > 0 {
		s.duplicateOrderNumbers--
		return repository.ErrDuplicateNumber
	}
	if s.orderNumbers[o.OrderNumber] {
		return repository.ErrDuplicateNumber
	}
	s.orderNumbers[o.OrderNumber] = true
	o.ID = s.id()
	o.CreatedAt = time.Now()
	for i := range o.RentalItems {
		o.RentalItems[i].ID = s.id()
		o.RentalItems[i].OrderID = o.ID
	}
	c := *o
	s.orders[o.ID] = &c
	return nil
}

func (s *stubRepo) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	c := *o
	return &c, nil
}

func (s *stubRepo) LockOrder(ctx context.Context, id int64) (*model.Order, error) {
	return s.GetOrder(ctx, id)
}

func (s *stubRepo) ListOrders(ctx context.Context) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []model.Order
	for _, o := range s.orders {
		res = append(res, *o)
	}
	return res, nil
}

func (s *stubRepo) ListOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []model.Order
	for _, o := range s.orders {
		if o.UserID != nil && *o.UserID == userID {
			res = append(res, *o)
		}
	}
	return res, nil
}

func (s *stubRepo) withOrder(id int64, fn func(o *model.Order)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	fn(o)
	return nil
}

func (s *stubRepo) UpdateOrderStatus(ctx context.Context, id int64, status model.OrderStatus) error {
	return s.withOrder(id, func(o *model.Order) { o.Status = status })
}

func (s *stubRepo) MarkOrderPaid(ctx context.Context, id int64, method string, confirmedBy int64, status model.OrderStatus, at time.Time) error {
	return s.withOrder(id, func(o *model.Order) {
		o.PaymentStatus = model.PaymentStatusPaid
		o.PaymentMethod = method
		o.PaymentConfirmedBy = &confirmedBy
		o.PaymentConfirmedAt = &at
		o.Status = status
	})
}

func (s *stubRepo) UpdateDeliveryStatus(ctx context.Context, id int64, status model.DeliveryStatus) error {
	return s.withOrder(id, func(o *model.Order) { o.DeliveryStatus = status })
}

func (s *stubRepo) CreateInvoice(ctx context.Context, inv *model.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.invoiceNumbers[inv.InvoiceNumber] {
		return repository.ErrDuplicateNumber
	}
	if inv.OrderID != nil {
		for _, e := range s.invoices {
			if e.OrderID != nil && *e.OrderID == *inv.OrderID {
				return errors.New("duplicate key value violates unique constraint \"invoices_order_id_key\"")
			}
		}
	}
	if !inv.Balanced() {
		return errors.New("violates check constraint \"invoices_total_check\"")
	}
	s.invoiceNumbers[inv.InvoiceNumber] = true
	inv.ID = s.id()
	inv.CreatedAt = time.Now()
	c := *inv
	s.invoices[inv.ID] = &c
	return nil
}

func (s *stubRepo) GetInvoiceByOrder(ctx context.Context, orderID int64) (*model.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range s.invoices {
		if inv.OrderID != nil && *inv.OrderID == orderID {
			c := *inv
			return &c, nil
		}
	}
	return nil, repository.ErrInvoiceNotFound
}

func (s *stubRepo) GetInvoiceByToken(ctx context.Context, token string) (*model.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range s.invoices {
		if inv.ShareableToken == token {
			c := *inv
			return &c, nil
		}
	}
	return nil, repository.ErrInvoiceNotFound
}

func (s *stubRepo) ListInvoices(ctx context.Context) ([]model.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []model.Invoice
	for _, inv := range s.invoices {
		res = append(res, *inv)
	}
	return res, nil
}

func (s *stubRepo) UpdateInvoiceAmounts(ctx context.Context, inv *model.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.invoices[inv.ID]
	if !ok {
		return repository.ErrInvoiceNotFound
	}
	if !inv.Balanced() {
		return errors.New("violates check constraint \"invoices_total_check\"")
	}
	e.EmailSent = e.EmailSent && e.Status == inv.Status
	e.Subtotal, e.Tax, e.DeliveryFee, e.Total, e.Status = inv.Subtotal, inv.Tax, inv.DeliveryFee, inv.Total, inv.Status
	inv.EmailSent = e.EmailSent
	inv.EmailSentAt = e.EmailSentAt
	return nil
}

func (s *stubRepo) MarkInvoiceEmailSent(ctx context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.invoices[id]
	if !ok {
		return repository.ErrInvoiceNotFound
	}
	e.EmailSent = true
	e.EmailSentAt = &at
	if e.Status == model.InvoiceStatusPending {
		e.Status = model.InvoiceStatusSent
	}
	return nil
}

func (s *stubRepo) CreateSchedule(ctx context.Context, sc *model.WorkerSchedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc.ID = s.id()
	c := *sc
	s.schedules[sc.ID] = &c
	return nil
}

func (s *stubRepo) GetSchedule(ctx context.Context, id int64) (*model.WorkerSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.schedules[id]
	if !ok {
		return nil, repository.ErrScheduleNotFound
	}
	c := *sc
	return &c, nil
}

func (s *stubRepo) ListSchedulesByWorker(ctx context.Context, workerID int64) ([]model.WorkerSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []model.WorkerSchedule
	for _, sc := range s.schedules {
		if sc.WorkerID == workerID {
			res = append(res, *sc)
		}
	}
	return res, nil
}

func (s *stubRepo) UpdateScheduleStatus(ctx context.Context, id int64, status model.ScheduleStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.schedules[id]
	if !ok {
		return repository.ErrScheduleNotFound
	}
	sc.Status = status
	return nil
}

func (s *stubRepo) CreateWorkerNotification(ctx context.Context, n *model.WorkerNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = s.id()
	c := *n
	s.notifications[n.ID] = &c
	return nil
}

func (s *stubRepo) ListWorkerNotifications(ctx context.Context, workerID int64, limit int) ([]model.WorkerNotification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []model.WorkerNotification
	for _, n := range s.notifications {
		if n.WorkerID == workerID {
			res = append(res, *n)
		}
	}
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (s *stubRepo) CountUnreadNotifications(ctx context.Context, workerID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.countCalls++
	n := 0
	for _, nt := range s.notifications {
		if nt.WorkerID == workerID && !nt.IsRead {
			n++
		}
	}
	return n, nil
}

func (s *stubRepo) MarkNotificationRead(ctx context.Context, workerID, notificationID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[notificationID]
	if !ok || n.WorkerID != workerID {
		return repository.ErrNotificationNotFound
	}
	n.IsRead = true
	return nil
}

func (s *stubRepo) LogActivity(ctx context.Context, a *model.ActivityLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.id()
	s.activity = append(s.activity, *a)
	return nil
}

func (s *stubRepo) CreateSystemNotification(ctx context.Context, n *model.SystemNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = s.id()
	s.system = append(s.system, *n)
	return nil
}

func (s *stubRepo) ListSystemNotifications(ctx context.Context, limit int) ([]model.SystemNotification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.SystemNotification(nil), s.system...), nil
}

type stubMailer struct {
	sent []mailer.InvoiceEmail
	err  error
}

func (m *stubMailer) SendInvoice(ctx context.Context, msg mailer.InvoiceEmail) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type stubCache struct {
	counts        map[int64]int
	invalidations []int64
}

func (c *stubCache) UnreadCount(ctx context.Context, workerID int64) (int, bool, error) {
	n, ok := c.counts[workerID]
	return n, ok, nil
}

func (c *stubCache) SetUnreadCount(ctx context.Context, workerID int64, n int) error {
	c.counts[workerID] = n
	return nil
}

func (c *stubCache) InvalidateWorker(ctx context.Context, workerID int64) error {
	delete(c.counts, workerID)
	c.invalidations = append(c.invalidations, workerID)
	return nil
}

const testMailbox = "admin@rentalhub.local"

type fixture struct {
	repo  *stubRepo
	mail  *stubMailer
	cache *stubCache
	svc   *Service
	admin *model.User
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := newStubRepo()
	mail := &stubMailer{}
	c := &stubCache{counts: map[int64]int{}}
	svc := NewService(repo, mail, c, nil, zap.NewNop(), Options{
		BaseURL:        "http://localhost:3000/",
		CompanyMailbox: testMailbox,
		Currency:       "IDR",
	})

	now := time.Date(2025, 1, 10, 9, 30, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	return &fixture{
		repo:  repo,
		mail:  mail,
		cache: c,
		svc:   svc,
		admin: repo.addUser(model.RoleAdmin, "admin", "boss@rentalhub.local"),
		now:   now,
	}
}

func TestValidationError_IsErrValidation(t *testing.T) {
	err := invalid("missing %s", "field")
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "missing field", err.Error())
}

func TestRegisterUser_PropagatesDuplicateError(t *testing.T) {
	f := newFixture(t)

	in := AccountInput{Username: "budi", FullName: "Budi", Email: "budi@example.com", Password: "secret1"}
	_, err := f.svc.RegisterUser(context.Background(), in)
	require.NoError(t, err)

	_, err = f.svc.RegisterUser(context.Background(), in)
	assert.ErrorIs(t, err, repository.ErrUserExists)
}

func TestRegisterUser_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		in   AccountInput
	}{
		{name: "missing username", in: AccountInput{FullName: "A", Email: "a@example.com", Password: "secret1"}},
		{name: "bad email", in: AccountInput{Username: "a", FullName: "A", Email: "nope", Password: "secret1"}},
		{name: "short password", in: AccountInput{Username: "a", FullName: "A", Email: "a@example.com", Password: "123"}},
		{name: "bad whatsapp", in: AccountInput{Username: "a", FullName: "A", Email: "a@example.com", Whatsapp: "abc", Password: "secret1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.RegisterUser(context.Background(), tt.in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestAuthenticateUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.svc.RegisterUser(ctx, AccountInput{Username: "sari", FullName: "Sari", Email: "sari@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, u.Role)
	assert.NotEqual(t, []byte("correct-horse"), u.PasswordHash)

	got, err := f.svc.AuthenticateUser(ctx, "sari", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = f.svc.AuthenticateUser(ctx, "sari", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.AuthenticateUser(ctx, "nobody", "x")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCreateWorker_LogsActivity(t *testing.T) {
	f := newFixture(t)

	w, err := f.svc.CreateWorker(context.Background(), f.admin.ID, AccountInput{
		Username: "joko", FullName: "Joko", Email: "joko@rentalhub.local", Whatsapp: "+62 812-3456-7890", Password: "worker1",
	})
	require.NoError(t, err)
	assert.Equal(t, model.RoleWorker, w.Role)
	require.Len(t, f.repo.activity, 1)
	assert.Equal(t, "CREATE_WORKER", f.repo.activity[0].Action)
	assert.Equal(t, f.admin.ID, f.repo.activity[0].UserID)
}
