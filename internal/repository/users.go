package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/rentalhub/internal/model"
)

const userColumns = `id, username, full_name, email, whatsapp, password_hash, role, is_active, created_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		u    model.User
		role string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.FullName, &u.Email, &u.Whatsapp, &u.PasswordHash, &role, &u.IsActive, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	return &u, nil
}

// CreateUser создаёт нового пользователя и заполняет его идентификатор.
func (r *PostgresRepository) CreateUser(ctx context.Context, u *model.User) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO users (username, full_name, email, whatsapp, password_hash, role, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		u.Username, u.FullName, u.Email, u.Whatsapp, u.PasswordHash, string(u.Role), u.IsActive,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "") {
			return fmt.Errorf("%w: %s", ErrUserExists, u.Username)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUserByID возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetUserByUsername возвращает пользователя по логину.
func (r *PostgresRepository) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// ListUsers возвращает всех пользователей, новые первыми.
func (r *PostgresRepository) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	defer rows.Close()

	var res []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		res = append(res, *u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ListWorkerEmails возвращает адреса всех активных работников в порядке регистрации.
func (r *PostgresRepository) ListWorkerEmails(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT email FROM users WHERE role = $1 AND is_active ORDER BY id`,
		string(model.RoleWorker),
	)
	if err != nil {
		return nil, fmt.Errorf("select worker emails: %w", err)
	}
	defer rows.Close()

	emails, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect worker emails: %w", err)
	}
	return emails, nil
}

// UpdateWorker изменяет контактные данные и признак активности работника.
func (r *PostgresRepository) UpdateWorker(ctx context.Context, id int64, upd WorkerUpdate) (*model.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`UPDATE users SET
		     full_name = COALESCE($2, full_name),
		     email     = COALESCE($3, email),
		     whatsapp  = COALESCE($4, whatsapp),
		     is_active = COALESCE($5, is_active)
		 WHERE id = $1 AND role = $6
		 RETURNING `+userColumns,
		id, upd.FullName, upd.Email, upd.Whatsapp, upd.IsActive, string(model.RoleWorker),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		if isUniqueViolation(err, "") {
			return nil, fmt.Errorf("%w: email taken", ErrUserExists)
		}
		return nil, fmt.Errorf("update worker: %w", err)
	}
	return u, nil
}
