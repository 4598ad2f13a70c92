// Package service реализует бизнес-логику сервиса проката: приём заказов, выставление счетов,
// рассылку писем, подтверждение оплаты и назначение выездов работникам.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/rentalhub/internal/cache"
	"github.com/mmeshcher/rentalhub/internal/mailer"
	"github.com/mmeshcher/rentalhub/internal/metrics"
	"github.com/mmeshcher/rentalhub/internal/model"
	"github.com/mmeshcher/rentalhub/internal/repository"
)

const (
	defaultDuration   = 30
	numberAttempts    = 3
	notificationLimit = 50
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	repository.Store
	WithTx(ctx context.Context, fn func(repository.Store) error) error
	Close() error
}

// Mailer отправляет письма со счетами.
type Mailer interface {
	SendInvoice(ctx context.Context, msg mailer.InvoiceEmail) error
}

// Cache хранит данные, которые панель работника запрашивает при каждом опросе.
type Cache interface {
	UnreadCount(ctx context.Context, workerID int64) (int, bool, error)
	SetUnreadCount(ctx context.Context, workerID int64, n int) error
	InvalidateWorker(ctx context.Context, workerID int64) error
}

var (
	// ErrValidation — общий признак ошибок валидации входных данных.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials возвращается при неверном логине или пароле.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrForbidden возвращается, если операция недоступна роли пользователя.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError содержит сообщение об ошибке во входных данных, пригодное для клиента.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Options содержит параметры сервиса, не относящиеся к хранилищу.
type Options struct {
	BaseURL        string
	CompanyMailbox string
	Currency       string
}

// Service содержит бизнес-логику сервиса проката.
type Service struct {
	repo    Repository
	mailer  Mailer
	cache   Cache
	metrics *metrics.Metrics
	logger  *zap.Logger
	opts    Options
	now     func() time.Time
}

// NewService создаёт новый сервис. Кэш и метрики могут быть nil.
func NewService(repo Repository, m Mailer, c Cache, mtr *metrics.Metrics, logger *zap.Logger, opts Options) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Currency == "" {
		opts.Currency = "IDR"
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	return &Service{
		repo:    repo,
		mailer:  m,
		cache:   c,
		metrics: mtr,
		logger:  logger,
		opts:    opts,
		now:     time.Now,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Ping проверяет доступность хранилища, если оно это поддерживает.
func (s *Service) Ping(ctx context.Context) error {
	if p, ok := s.repo.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// audit записывает действие в журнал и дублирует его в ленту администратора.
func audit(ctx context.Context, st repository.Store, userID int64, action, entity, details string) error {
	if err := st.LogActivity(ctx, &model.ActivityLog{
		UserID:  userID,
		Action:  action,
		Entity:  entity,
		Details: details,
	}); err != nil {
		return err
	}

	return st.CreateSystemNotification(ctx, &model.SystemNotification{
		Type:    action,
		Title:   strings.ReplaceAll(action, "_", " "),
		Message: details,
	})
}

func (s *Service) invalidateWorker(ctx context.Context, workerID int64) {
	if err := s.cache.InvalidateWorker(ctx, workerID); err != nil {
		s.logger.Warn("invalidate worker cache error", zap.Error(err), zap.Int64("workerID", workerID))
	}
}
