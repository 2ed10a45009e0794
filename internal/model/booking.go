package model

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"   // Ожидает решения владельца
	BookingStatusConfirmed BookingStatus = "confirmed" // Подтверждено владельцем
	BookingStatusCancelled BookingStatus = "cancelled" // Отменено владельцем
	BookingStatusCompleted BookingStatus = "completed" // Время аренды прошло
)

// Valid проверяет что статус входит в допустимый набор
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusCancelled, BookingStatusCompleted:
		return true
	}
	return false
}

// Occupies сообщает, занимает ли бронирование интервал на поле
func (s BookingStatus) Occupies() bool {
	return s != BookingStatusCancelled
}

type Booking struct {
	ID                uuid.UUID     `json:"id"`
	FieldID           uuid.UUID     `json:"field_id"`
	UserID            uuid.UUID     `json:"user_id"`
	StartTime         time.Time     `json:"start_time"`
	EndTime           time.Time     `json:"end_time"`
	Status            BookingStatus `json:"status"`
	TotalPrice        int64         `json:"total_price"`
	ProofOfPaymentURL *string       `json:"proof_of_payment_url"` // путь в объектном хранилище
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`

	// Дополнительные поля для удобства (не из таблицы bookings)
	Field  *FieldSummary `json:"field,omitempty"`
	Renter *UserSummary  `json:"user,omitempty"`
}

// Overlaps проверяет пересечение полуоткрытых интервалов [start, end)
func Overlaps(start, end, otherStart, otherEnd time.Time) bool {
	return start.Before(otherEnd) && end.After(otherStart)
}
