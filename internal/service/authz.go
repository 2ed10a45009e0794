package service

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/field_rental/internal/apperr"
	"github.com/Freeeeeet/field_rental/internal/model"
	"github.com/google/uuid"
)

// CanManageField владелец поля или админ
func CanManageField(user *model.User, field *model.Field) bool {
	if user == nil || field == nil {
		return false
	}
	if user.IsAdmin() {
		return true
	}
	return user.Role == model.RoleOwner && field.OwnerID == user.ID
}

// CanCreateBooking бронировать может любой аутентифицированный пользователь
func CanCreateBooking(user *model.User) bool {
	return user != nil
}

// CanViewBooking арендатор, владелец поля или админ
func CanViewBooking(user *model.User, booking *model.Booking, field *model.Field) bool {
	if user == nil || booking == nil {
		return false
	}
	return booking.UserID == user.ID || CanManageField(user, field)
}

// resolveCaller превращает идентификатор из сессии в пользователя.
// Роль всегда берётся из хранилища, а не из токена.
func resolveCaller(ctx context.Context, users UserStore, callerID uuid.UUID) (*model.User, error) {
	if callerID == uuid.Nil {
		return nil, apperr.Unauthorized("session expired")
	}

	user, err := users.GetByID(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("get caller: %w", err)
	}

	if user == nil {
		return nil, apperr.Unauthorized("session expired")
	}

	return user, nil
}
