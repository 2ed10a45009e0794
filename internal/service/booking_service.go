package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/field_rental/internal/apperr"
	"github.com/Freeeeeet/field_rental/internal/model"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const proofURLTTL = time.Hour

var tracer = otel.Tracer("github.com/Freeeeeet/field_rental/internal/service")

type BookingService struct {
	users        UserStore
	fields       FieldStore
	bookings     BookingStore
	availability *AvailabilityChecker
	objects      ObjectStore
	notifier     Notifier
	logger       *zap.Logger
	now          func() time.Time
}

func NewBookingService(
	users UserStore,
	fields FieldStore,
	bookings BookingStore,
	objects ObjectStore,
	notifier Notifier,
	logger *zap.Logger,
) *BookingService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &BookingService{
		users:        users,
		fields:       fields,
		bookings:     bookings,
		availability: NewAvailabilityChecker(bookings),
		objects:      objects,
		notifier:     notifier,
		logger:       logger,
		now:          time.Now,
	}
}

// SetClock подменяет источник времени (для фоновой задачи и тестов)
func (s *BookingService) SetClock(now func() time.Time) {
	s.now = now
}

// IsAvailable проверяет свободен ли интервал на поле
func (s *BookingService) IsAvailable(ctx context.Context, fieldID uuid.UUID, start, end time.Time) (bool, error) {
	return s.availability.IsAvailable(ctx, fieldID, start, end)
}

// CreateBooking бронирует интервал [start, end) на поле для пользователя
func (s *BookingService) CreateBooking(ctx context.Context, userID, fieldID uuid.UUID, start, end time.Time) (booking *model.Booking, err error) {
	ctx, span := tracer.Start(ctx, "BookingService.CreateBooking", trace.WithAttributes(
		attribute.String("field_id", fieldID.String()),
		attribute.String("user_id", userID.String()),
	))
	defer func() { endSpan(span, err) }()

	user, err := resolveCaller(ctx, s.users, userID)
	if err != nil {
		return nil, err
	}

	if !CanCreateBooking(user) {
		return nil, apperr.Forbidden("booking is not allowed")
	}

	if start.IsZero() || end.IsZero() {
		return nil, apperr.Validation("start and end time are required")
	}

	// Все интервалы храним и сравниваем в UTC
	start, end = start.UTC(), end.UTC()
	if !end.After(start) {
		return nil, apperr.Validation("end time must be after start time")
	}

	field, err := s.fields.GetByID(ctx, fieldID)
	if err != nil {
		return nil, fmt.Errorf("get field: %w", err)
	}

	if field == nil {
		return nil, apperr.Validation("field does not exist")
	}

	if !field.IsActive {
		return nil, apperr.Validation("field is not available for booking")
	}

	available, err := s.availability.IsAvailable(ctx, fieldID, start, end)
	if err != nil {
		return nil, fmt.Errorf("check availability: %w", err)
	}

	if !available {
		return nil, apperr.Conflict("time slot already booked")
	}

	price, err := PriceFor(field.PricePerHour, start, end)
	if err != nil {
		return nil, err
	}

	booking = &model.Booking{
		FieldID:    fieldID,
		UserID:     user.ID,
		StartTime:  start,
		EndTime:    end,
		Status:     model.BookingStatusPending,
		TotalPrice: price,
	}

	// Хранилище повторяет проверку атомарно с вставкой
	err = s.bookings.CreateIfAvailable(ctx, booking)
	if err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}

	s.logger.Info("Booking created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("field_id", fieldID.String()),
		zap.String("user_id", user.ID.String()),
		zap.Time("start_time", start),
		zap.Time("end_time", end),
		zap.Int64("total_price", booking.TotalPrice),
	)

	booking.Field = field.Summary()
	booking.Renter = &model.UserSummary{Name: user.Name, Email: user.Email}

	owner, err := s.users.GetByID(ctx, field.OwnerID)
	if err != nil {
		s.logger.Warn("Failed to load field owner for notification",
			zap.String("field_id", fieldID.String()),
			zap.Error(err),
		)
		return booking, nil
	}
	if owner != nil {
		s.notifier.BookingCreated(ctx, owner, field, booking)
	}

	return booking, nil
}

// Occupancy занятые интервалы поля в [from, to) для публичного расписания
func (s *BookingService) Occupancy(ctx context.Context, fieldID uuid.UUID, from, to time.Time) (*model.Field, []*model.Booking, error) {
	field, err := s.fields.GetByID(ctx, fieldID)
	if err != nil {
		return nil, nil, fmt.Errorf("get field: %w", err)
	}

	if field == nil {
		return nil, nil, apperr.NotFound("field not found")
	}

	from, to = from.UTC(), to.UTC()
	if !from.Before(to) {
		return nil, nil, apperr.Validation("end time must be after start time")
	}

	bookings, err := s.bookings.ListOccupying(ctx, fieldID, from, to)
	if err != nil {
		return nil, nil, fmt.Errorf("list occupying bookings: %w", err)
	}

	return field, bookings, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
