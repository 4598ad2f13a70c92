// Package handler содержит HTTP-обработчики API сервиса проката.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/rentalhub/internal/metrics"
	"github.com/mmeshcher/rentalhub/internal/middleware"
	"github.com/mmeshcher/rentalhub/internal/model"
	"github.com/mmeshcher/rentalhub/internal/repository"
	"github.com/mmeshcher/rentalhub/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, in service.AccountInput) (*model.User, error)
	AuthenticateUser(ctx context.Context, username, password string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)

	CreateOrder(ctx context.Context, userID *int64, in service.CreateOrderInput) (*service.OrderResult, error)
	MyOrders(ctx context.Context, userID int64) ([]model.Order, error)
	ListOrders(ctx context.Context) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, adminID, orderID int64, status string) (*model.Order, error)
	ConfirmPayment(ctx context.Context, adminID, orderID int64, in service.ConfirmPaymentInput) (*service.ConfirmPaymentResult, error)

	CreateManualInvoice(ctx context.Context, adminID int64, in service.ManualInvoiceInput) (*model.Invoice, error)
	ListInvoices(ctx context.Context) ([]model.Invoice, error)
	PublicInvoice(ctx context.Context, token string) (*model.Invoice, error)
	SystemNotifications(ctx context.Context) ([]model.SystemNotification, error)

	CreateWorker(ctx context.Context, adminID int64, in service.AccountInput) (*model.User, error)
	GetWorker(ctx context.Context, workerID int64) (*service.WorkerDetails, error)
	UpdateWorker(ctx context.Context, adminID, workerID int64, upd repository.WorkerUpdate) (*model.User, error)
	AssignJob(ctx context.Context, adminID, workerID int64, in service.AssignJobInput) (*model.WorkerSchedule, error)
	SendWorkerMessage(ctx context.Context, adminID, workerID int64, title, message string) (*model.WorkerNotification, error)
	WorkerSchedules(ctx context.Context, workerID int64) ([]model.WorkerSchedule, error)
	WorkerNotifications(ctx context.Context, workerID int64) (*service.WorkerFeed, error)
	MarkNotificationRead(ctx context.Context, workerID, notificationID int64) error
	UpdateScheduleStatus(ctx context.Context, userID int64, role model.Role, scheduleID int64, status string) (*model.WorkerSchedule, error)

	ListProducts(ctx context.Context, category string) ([]model.Product, error)
	CreateProduct(ctx context.Context, p *model.Product) error
	ListPackages(ctx context.Context) ([]model.RentalPackage, error)
	GetPackage(ctx context.Context, id int64) (*model.RentalPackage, error)
	CreatePackage(ctx context.Context, p *model.RentalPackage) error
	UpdatePackage(ctx context.Context, p *model.RentalPackage) (*model.RentalPackage, error)
	DeletePackage(ctx context.Context, id int64) error

	Ping(ctx context.Context) error
}

// Handler реализует HTTP-обработчики API сервиса проката.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	metrics        *metrics.Metrics
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов. Метрики могут быть nil.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, m *metrics.Metrics) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		metrics:        m,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

type successResponse struct {
	Success bool `json:"success"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	if msg == "" {
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

var errorStatuses = []struct {
	err    error
	status int
}{
	{service.ErrInvalidCredentials, http.StatusUnauthorized},
	{service.ErrForbidden, http.StatusForbidden},
	{repository.ErrUserNotFound, http.StatusNotFound},
	{repository.ErrOrderNotFound, http.StatusNotFound},
	{repository.ErrInvoiceNotFound, http.StatusNotFound},
	{repository.ErrProductNotFound, http.StatusNotFound},
	{repository.ErrPackageNotFound, http.StatusNotFound},
	{repository.ErrScheduleNotFound, http.StatusNotFound},
	{repository.ErrNotificationNotFound, http.StatusNotFound},
	{repository.ErrUserExists, http.StatusConflict},
	{repository.ErrPackageInUse, http.StatusConflict},
}

// handleError переводит ошибку сервиса в HTTP-ответ. Неизвестные ошибки логируются и отдаются как 500.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, verr.Message)
		return
	}
	if errors.Is(err, service.ErrValidation) {
		writeError(w, http.StatusBadRequest, "")
		return
	}

	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			writeError(w, e.status, e.err.Error())
			return
		}
	}

	h.logger.Error(op+" error", zap.Error(err), zap.String("uri", r.RequestURI))
	writeError(w, http.StatusInternalServerError, "")
}

// principal возвращает аутентифицированного пользователя запроса или отвечает 401.
func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (middleware.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "")
	}
	return p, ok
}

type registerRequest struct {
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Whatsapp string `json:"whatsapp"`
	Password string `json:"password"`
}

func (req registerRequest) input() service.AccountInput {
	return service.AccountInput{
		Username: req.Username,
		FullName: req.FullName,
		Email:    req.Email,
		Whatsapp: req.Whatsapp,
		Password: req.Password,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      *model.User `json:"user"`
}

func (h *Handler) writeToken(w http.ResponseWriter, status int, u *model.User) {
	token, expires := h.authMiddleware.IssueToken(u.ID, u.Role)
	writeJSON(w, status, authResponse{
		Token:     token,
		ExpiresAt: expires.UTC(),
		User:      u,
	})
}

// Register обрабатывает регистрацию нового клиента.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := h.service.RegisterUser(r.Context(), req.input())
	if err != nil {
		h.handleError(w, r, "register user", err)
		return
	}

	h.writeToken(w, http.StatusCreated, u)
}

// Login выполняет аутентификацию пользователя и выдаёт токен.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	u, err := h.service.AuthenticateUser(r.Context(), req.Username, req.Password)
	if err != nil {
		h.handleError(w, r, "login user", err)
		return
	}

	h.writeToken(w, http.StatusOK, u)
}

// Health проверяет доступность хранилища.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ping(r.Context()); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
