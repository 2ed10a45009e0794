package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/field_rental/internal/apperr"
	"github.com/Freeeeeet/field_rental/internal/model"
	"github.com/Freeeeeet/field_rental/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, email, name, role, password_hash, avatar_url, telegram_chat_id, created_at`

type UserRepository struct {
	*base.Repository
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{Repository: base.NewRepository(pool)}
}

// Create создаёт нового пользователя
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, email, name, role, password_hash, avatar_url, telegram_chat_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Role == "" {
		user.Role = model.RoleUser
	}

	err := r.Do(ctx, "create user", func(ctx context.Context) error {
		return r.Pool().QueryRow(
			ctx, query,
			user.ID,
			user.Email,
			user.Name,
			user.Role,
			user.PasswordHash,
			user.AvatarURL,
			user.TelegramChatID,
		).Scan(&user.CreatedAt)
	})

	if err != nil {
		if base.IsUniqueViolation(err) {
			return apperr.Conflict("email already registered")
		}
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

// GetByID получает пользователя по ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getOne(ctx, "get user by id", query, id)
}

// GetByEmail получает пользователя по email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.getOne(ctx, "get user by email", query, email)
}

// SetRole меняет роль пользователя
func (r *UserRepository) SetRole(ctx context.Context, id uuid.UUID, role model.Role) error {
	var affected int64
	err := r.Do(ctx, "set user role", func(ctx context.Context) error {
		tag, err := r.Pool().Exec(ctx, `UPDATE users SET role = $1 WHERE id = $2`, role, id)
		affected = tag.RowsAffected()
		return err
	})

	if err != nil {
		return fmt.Errorf("set user role: %w", err)
	}

	if affected == 0 {
		return apperr.NotFound("user not found")
	}

	return nil
}

func (r *UserRepository) getOne(ctx context.Context, op, query string, arg any) (*model.User, error) {
	var user model.User
	err := r.Do(ctx, op, func(ctx context.Context) error {
		return r.Pool().QueryRow(ctx, query, arg).Scan(
			&user.ID,
			&user.Email,
			&user.Name,
			&user.Role,
			&user.PasswordHash,
			&user.AvatarURL,
			&user.TelegramChatID,
			&user.CreatedAt,
		)
	})

	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil // Пользователь не найден
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &user, nil
}
