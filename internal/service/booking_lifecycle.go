package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Freeeeeet/field_rental/internal/apperr"
	"github.com/Freeeeeet/field_rental/internal/model"
	"github.com/Freeeeeet/field_rental/internal/storage"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// BookingDetail бронирование с полем и временной ссылкой на чек
type BookingDetail struct {
	*model.Booking
	Venue          *model.Field `json:"venue,omitempty"`
	ProofSignedURL string       `json:"proof_signed_url,omitempty"`
}

// Dashboard данные кабинета владельца
type Dashboard struct {
	Role     model.Role       `json:"role"`
	Fields   []*model.Field   `json:"fields"`
	Bookings []*model.Booking `json:"bookings"`
}

// AttachPaymentProof прикрепляет загруженный чек к ожидающему бронированию
func (s *BookingService) AttachPaymentProof(ctx context.Context, bookingID, callerID uuid.UUID, fileRef string) (*model.Booking, error) {
	caller, err := resolveCaller(ctx, s.users, callerID)
	if err != nil {
		return nil, err
	}

	if fileRef == "" {
		return nil, apperr.Validation("file reference is required")
	}

	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}

	if booking == nil {
		return nil, apperr.NotFound("booking not found")
	}

	if booking.UserID != caller.ID {
		return nil, apperr.Forbidden("only the renter can attach payment proof")
	}

	if booking.Status != model.BookingStatusPending {
		return nil, apperr.InvalidState("payment proof can only be attached to a pending booking")
	}

	if !isProofOf(fileRef, bookingID) {
		return nil, apperr.Validation("file reference does not belong to this booking")
	}

	if s.objects != nil {
		exists, err := s.objects.Exists(ctx, fileRef)
		if err != nil {
			return nil, fmt.Errorf("check uploaded file: %w", err)
		}
		if !exists {
			return nil, apperr.Validation("uploaded file not found")
		}
	}

	updated, err := s.bookings.SetPaymentProof(ctx, bookingID, fileRef)
	if err != nil {
		return nil, fmt.Errorf("set payment proof: %w", err)
	}

	// Статус успел смениться между чтением и записью
	if updated == nil {
		return nil, apperr.InvalidState("payment proof can only be attached to a pending booking")
	}

	s.logger.Info("Payment proof attached",
		zap.String("booking_id", bookingID.String()),
		zap.String("user_id", caller.ID.String()),
		zap.String("file", fileRef),
	)

	return updated, nil
}

// isProofOf принимает только файлы из payment-proofs/<bookingID>_ без вложенных путей
func isProofOf(fileRef string, bookingID uuid.UUID) bool {
	name, ok := strings.CutPrefix(fileRef, storage.PaymentProofPrefix(bookingID))
	return ok && name != "" && !strings.ContainsAny(name, `/\`) && !strings.Contains(name, "..")
}

// SetStatus подтверждает или отменяет ожидающее бронирование
func (s *BookingService) SetStatus(ctx context.Context, bookingID, callerID uuid.UUID, newStatus model.BookingStatus) (booking *model.Booking, err error) {
	ctx, span := tracer.Start(ctx, "BookingService.SetStatus", trace.WithAttributes(
		attribute.String("booking_id", bookingID.String()),
		attribute.String("status", string(newStatus)),
	))
	defer func() { endSpan(span, err) }()

	caller, err := resolveCaller(ctx, s.users, callerID)
	if err != nil {
		return nil, err
	}

	if !newStatus.Valid() {
		return nil, apperr.Validation(fmt.Sprintf("unknown booking status %q", newStatus))
	}

	if newStatus != model.BookingStatusConfirmed && newStatus != model.BookingStatusCancelled {
		return nil, apperr.Validation("status must be confirmed or cancelled")
	}

	current, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}

	if current == nil {
		return nil, apperr.NotFound("booking not found")
	}

	field, err := s.fields.GetByID(ctx, current.FieldID)
	if err != nil {
		return nil, fmt.Errorf("get field: %w", err)
	}

	// Посторонний не узнаёт статус чужого бронирования
	if !CanViewBooking(caller, current, field) {
		return nil, apperr.Forbidden("only the field owner or an admin can change booking status")
	}

	// Для участников бронирования проверка состояния идёт раньше проверки роли
	if current.Status != model.BookingStatusPending {
		return nil, apperr.InvalidState(fmt.Sprintf("booking is %s, only pending bookings can change status", current.Status))
	}

	if !CanManageField(caller, field) {
		return nil, apperr.Forbidden("only the field owner or an admin can change booking status")
	}

	booking, err = s.bookings.TransitionStatus(ctx, bookingID, model.BookingStatusPending, newStatus)
	if err != nil {
		return nil, fmt.Errorf("update booking status: %w", err)
	}

	if booking == nil {
		return nil, apperr.InvalidState("booking is no longer pending")
	}

	s.logger.Info("Booking status changed",
		zap.String("booking_id", bookingID.String()),
		zap.String("caller_id", caller.ID.String()),
		zap.String("status", string(newStatus)),
	)

	renter, err := s.users.GetByID(ctx, booking.UserID)
	if err != nil {
		s.logger.Warn("Failed to load renter for notification",
			zap.String("booking_id", bookingID.String()),
			zap.Error(err),
		)
		return booking, nil
	}
	if renter != nil {
		s.notifier.BookingStatusChanged(ctx, renter, booking)
	}

	return booking, nil
}

// ListForRenter все бронирования пользователя, новые первыми
func (s *BookingService) ListForRenter(ctx context.Context, userID uuid.UUID) ([]*model.Booking, error) {
	caller, err := resolveCaller(ctx, s.users, userID)
	if err != nil {
		return nil, err
	}

	bookings, err := s.bookings.ListByUser(ctx, caller.ID)
	if err != nil {
		return nil, fmt.Errorf("list renter bookings: %w", err)
	}

	return nonNil(bookings), nil
}

// ListForOwner админ видит все бронирования, владелец - только по своим полям
func (s *BookingService) ListForOwner(ctx context.Context, callerID uuid.UUID) ([]*model.Booking, error) {
	caller, err := resolveCaller(ctx, s.users, callerID)
	if err != nil {
		return nil, err
	}

	return s.listManaged(ctx, caller)
}

func (s *BookingService) listManaged(ctx context.Context, caller *model.User) ([]*model.Booking, error) {
	if caller.IsAdmin() {
		bookings, err := s.bookings.ListAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("list all bookings: %w", err)
		}
		return nonNil(bookings), nil
	}

	if caller.Role != model.RoleOwner {
		return nil, apperr.Forbidden("owner or admin role required")
	}

	// Два шага: сначала поля владельца, потом бронирования по ним
	fieldIDs, err := s.fields.IDsByOwner(ctx, caller.ID)
	if err != nil {
		return nil, fmt.Errorf("list owner fields: %w", err)
	}

	if len(fieldIDs) == 0 {
		return []*model.Booking{}, nil
	}

	bookings, err := s.bookings.ListByFields(ctx, fieldIDs)
	if err != nil {
		return nil, fmt.Errorf("list field bookings: %w", err)
	}

	return nonNil(bookings), nil
}

// GetForViewer возвращает бронирование, если вызывающий может его видеть
func (s *BookingService) GetForViewer(ctx context.Context, bookingID, callerID uuid.UUID) (*BookingDetail, error) {
	caller, err := resolveCaller(ctx, s.users, callerID)
	if err != nil {
		return nil, err
	}

	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}

	if booking == nil {
		return nil, apperr.NotFound("booking not found")
	}

	field, err := s.fields.GetByID(ctx, booking.FieldID)
	if err != nil {
		return nil, fmt.Errorf("get field: %w", err)
	}

	if !CanViewBooking(caller, booking, field) {
		return nil, apperr.Forbidden("booking belongs to another user")
	}

	detail := &BookingDetail{Booking: booking, Venue: field}

	if booking.ProofOfPaymentURL != nil && s.objects != nil {
		url, err := s.objects.SignedURL(*booking.ProofOfPaymentURL, proofURLTTL)
		if err != nil {
			s.logger.Warn("Failed to sign payment proof url",
				zap.String("booking_id", bookingID.String()),
				zap.Error(err),
			)
		} else {
			detail.ProofSignedURL = url
		}
	}

	return detail, nil
}

// OwnerDashboard поля и бронирования владельца (всё - для админа)
func (s *BookingService) OwnerDashboard(ctx context.Context, callerID uuid.UUID) (*Dashboard, error) {
	caller, err := resolveCaller(ctx, s.users, callerID)
	if err != nil {
		return nil, err
	}

	if !caller.CanOwnFields() {
		return nil, apperr.Forbidden("owner or admin role required")
	}

	filter := FieldFilter{}
	if !caller.IsAdmin() {
		filter.OwnerID = &caller.ID
	}

	fields, err := s.fields.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list dashboard fields: %w", err)
	}

	bookings, err := s.listManaged(ctx, caller)
	if err != nil {
		return nil, err
	}

	if fields == nil {
		fields = []*model.Field{}
	}

	return &Dashboard{Role: caller.Role, Fields: fields, Bookings: bookings}, nil
}

// CompleteEnded закрывает прошедшие подтверждённые бронирования
func (s *BookingService) CompleteEnded(ctx context.Context) (int64, error) {
	n, err := s.bookings.CompleteEnded(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("complete ended bookings: %w", err)
	}

	if n > 0 {
		s.logger.Info("Bookings completed", zap.Int64("count", n))
	}

	return n, nil
}

func nonNil(bookings []*model.Booking) []*model.Booking {
	if bookings == nil {
		return []*model.Booking{}
	}
	return bookings
}
