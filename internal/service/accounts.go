package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/rentalhub/internal/model"
	"github.com/mmeshcher/rentalhub/internal/repository"
	"github.com/mmeshcher/rentalhub/internal/validation"
)

const minPasswordLen = 6

// AccountInput содержит данные новой учётной записи.
type AccountInput struct {
	Username string
	FullName string
	Email    string
	Whatsapp string
	Password string
}

func (in *AccountInput) validate() error {
	in.Username = strings.TrimSpace(in.Username)
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.TrimSpace(in.Email)
	in.Whatsapp = strings.TrimSpace(in.Whatsapp)

	if in.Username == "" || in.FullName == "" || in.Email == "" {
		return invalid("username, full name and email are required")
	}
	if !validation.IsValidEmail(in.Email) {
		return invalid("invalid email")
	}
	if in.Whatsapp != "" && !validation.IsValidWhatsapp(in.Whatsapp) {
		return invalid("invalid whatsapp number")
	}
	if len(in.Password) < minPasswordLen {
		return invalid("password must be at least %d characters", minPasswordLen)
	}
	return nil
}

func (s *Service) createAccount(ctx context.Context, in AccountInput, role model.Role) (*model.User, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &model.User{
		Username:     in.Username,
		FullName:     in.FullName,
		Email:        in.Email,
		Whatsapp:     in.Whatsapp,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// RegisterUser регистрирует нового клиента.
func (s *Service) RegisterUser(ctx context.Context, in AccountInput) (*model.User, error) {
	return s.createAccount(ctx, in, model.RoleUser)
}

// AuthenticateUser проверяет логин и пароль пользователя и возвращает его учётную запись.
func (s *Service) AuthenticateUser(ctx context.Context, username, password string) (*model.User, error) {
	u, err := s.repo.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

// CreateWorker создаёт учётную запись работника.
func (s *Service) CreateWorker(ctx context.Context, adminID int64, in AccountInput) (*model.User, error) {
	u, err := s.createAccount(ctx, in, model.RoleWorker)
	if err != nil {
		return nil, err
	}

	if err := s.repo.LogActivity(ctx, &model.ActivityLog{
		UserID:  adminID,
		Action:  "CREATE_WORKER",
		Entity:  "USER",
		Details: fmt.Sprintf("Created worker %s", u.Username),
	}); err != nil {
		return nil, err
	}

	return u, nil
}

// ListUsers возвращает всех пользователей.
func (s *Service) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.repo.ListUsers(ctx)
}

// SystemNotifications возвращает ленту администратора.
func (s *Service) SystemNotifications(ctx context.Context) ([]model.SystemNotification, error) {
	return s.repo.ListSystemNotifications(ctx, notificationLimit)
}
