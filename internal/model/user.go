package model

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleOwner Role = "owner"
	RoleAdmin Role = "admin"
)

type User struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	Role           Role      `json:"role"`
	PasswordHash   string    `json:"-"`
	AvatarURL      *string   `json:"avatar_url"`
	TelegramChatID *int64    `json:"telegram_chat_id,omitempty"` // куда слать уведомления
	CreatedAt      time.Time `json:"created_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// CanOwnFields владельцы и админы могут управлять полями
func (u *User) CanOwnFields() bool {
	return u.Role == RoleOwner || u.Role == RoleAdmin
}

type UserSummary struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}
