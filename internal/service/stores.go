package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/field_rental/internal/model"
	"github.com/google/uuid"
)

// Хранилища, которые сервисы получают через конструкторы.
// Get-методы возвращают nil, nil если запись не найдена.

type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	SetRole(ctx context.Context, id uuid.UUID, role model.Role) error
}

type FieldFilter struct {
	ActiveOnly bool
	OwnerID    *uuid.UUID
}

type FieldStore interface {
	Create(ctx context.Context, field *model.Field) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Field, error)
	// List возвращает поля вместе с изображениями, новые первыми
	List(ctx context.Context, filter FieldFilter) ([]*model.Field, error)
	IDsByOwner(ctx context.Context, ownerID uuid.UUID) ([]uuid.UUID, error)
	Update(ctx context.Context, field *model.Field) error
	// Delete удаляет поле и его изображения; conflict если есть бронирования
	Delete(ctx context.Context, id uuid.UUID) error
	AddImage(ctx context.Context, image *model.FieldImage) error
}

type BookingStore interface {
	// CreateIfAvailable атомарно проверяет пересечения и вставляет бронирование.
	// Возвращает conflict, если интервал уже занят.
	CreateIfAvailable(ctx context.Context, booking *model.Booking) error
	// ListOccupying возвращает неотменённые бронирования поля, пересекающие [start, end)
	ListOccupying(ctx context.Context, fieldID uuid.UUID, start, end time.Time) ([]*model.Booking, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.Booking, error)
	ListByFields(ctx context.Context, fieldIDs []uuid.UUID) ([]*model.Booking, error)
	ListAll(ctx context.Context) ([]*model.Booking, error)
	// TransitionStatus меняет статус только если текущий равен from
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to model.BookingStatus) (*model.Booking, error)
	// SetPaymentProof записывает путь, только если бронирование ещё pending
	SetPaymentProof(ctx context.Context, id uuid.UUID, path string) (*model.Booking, error)
	// CompleteEnded переводит завершившиеся confirmed бронирования в completed
	CompleteEnded(ctx context.Context, now time.Time) (int64, error)
}

// Notifier сообщает участникам о событиях бронирования
type Notifier interface {
	BookingCreated(ctx context.Context, owner *model.User, field *model.Field, booking *model.Booking)
	BookingStatusChanged(ctx context.Context, renter *model.User, booking *model.Booking)
}

// CatalogCache кэширует список активных полей
type CatalogCache interface {
	GetActiveFields(ctx context.Context) ([]*model.Field, bool)
	SetActiveFields(ctx context.Context, fields []*model.Field)
	Invalidate(ctx context.Context)
}

// ObjectStore хранит загруженные файлы
type ObjectStore interface {
	Exists(ctx context.Context, path string) (bool, error)
	SignedURL(path string, ttl time.Duration) (string, error)
}

type nopNotifier struct{}

func (nopNotifier) BookingCreated(context.Context, *model.User, *model.Field, *model.Booking) {}
func (nopNotifier) BookingStatusChanged(context.Context, *model.User, *model.Booking)         {}

type nopCache struct{}

func (nopCache) GetActiveFields(context.Context) ([]*model.Field, bool) { return nil, false }
func (nopCache) SetActiveFields(context.Context, []*model.Field)        {}
func (nopCache) Invalidate(context.Context)                             {}
