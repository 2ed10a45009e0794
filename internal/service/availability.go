package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/field_rental/internal/apperr"
	"github.com/Freeeeeet/field_rental/internal/model"
	"github.com/google/uuid"
)

// AvailabilityChecker отвечает, свободен ли интервал на поле
type AvailabilityChecker struct {
	bookings BookingStore
}

func NewAvailabilityChecker(bookings BookingStore) *AvailabilityChecker {
	return &AvailabilityChecker{bookings: bookings}
}

// IsAvailable true если ни одно неотменённое бронирование поля не пересекает [start, end)
func (c *AvailabilityChecker) IsAvailable(ctx context.Context, fieldID uuid.UUID, start, end time.Time) (bool, error) {
	start, end = start.UTC(), end.UTC()
	if !start.Before(end) {
		return false, apperr.Validation("end time must be after start time")
	}

	existing, err := c.bookings.ListOccupying(ctx, fieldID, start, end)
	if err != nil {
		return false, fmt.Errorf("list occupying bookings: %w", err)
	}

	for _, b := range existing {
		if b.Status.Occupies() && model.Overlaps(start, end, b.StartTime, b.EndTime) {
			return false, nil
		}
	}

	return true, nil
}
