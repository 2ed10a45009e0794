package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/field_rental/internal/apperr"
	"github.com/Freeeeeet/field_rental/internal/model"
	"github.com/Freeeeeet/field_rental/internal/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lifecycleSetup struct {
	*fixture
	owner, renter, stranger, otherOwner, admin *model.User
	venue                                      *model.Field
	booking                                    *model.Booking
}

func newLifecycle(t *testing.T) *lifecycleSetup {
	t.Helper()

	f := newFixture(t)
	s := &lifecycleSetup{
		fixture:    f,
		owner:      f.user(t, "owner@example.com", model.RoleOwner),
		renter:     f.user(t, "renter@example.com", model.RoleUser),
		stranger:   f.user(t, "stranger@example.com", model.RoleUser),
		otherOwner: f.user(t, "other-owner@example.com", model.RoleOwner),
		admin:      f.user(t, "admin@example.com", model.RoleAdmin),
	}
	s.venue = f.field(t, s.owner, 50000)

	booking, err := f.bookings.CreateBooking(context.Background(), s.renter.ID, s.venue.ID, at(8, 0), at(10, 0))
	require.NoError(t, err)
	s.booking = booking
	return s
}

func TestSetStatus_Authorization(t *testing.T) {
	s := newLifecycle(t)
	ctx := context.Background()

	for _, caller := range []*model.User{s.renter, s.stranger, s.otherOwner} {
		_, err := s.bookings.SetStatus(ctx, s.booking.ID, caller.ID, model.BookingStatusConfirmed)
		assert.True(t, apperr.Is(err, apperr.KindForbidden), "caller %s: got %v", caller.Email, err)
	}

	_, err := s.bookings.SetStatus(ctx, s.booking.ID, uuid.Nil, model.BookingStatusConfirmed)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	// Отказ не меняет состояние
	detail, err := s.bookings.GetForViewer(ctx, s.booking.ID, s.renter.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusPending, detail.Status)

	booking, err := s.bookings.SetStatus(ctx, s.booking.ID, s.admin.ID, model.BookingStatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusConfirmed, booking.Status)
}

func TestSetStatus_StateGuardForParticipants(t *testing.T) {
	s := newLifecycle(t)
	ctx := context.Background()

	_, err := s.bookings.SetStatus(ctx, s.booking.ID, s.owner.ID, model.BookingStatusConfirmed)
	require.NoError(t, err)

	// Участники бронирования видят ошибку состояния независимо от роли
	for _, caller := range []*model.User{s.renter, s.owner, s.admin} {
		_, err = s.bookings.SetStatus(ctx, s.booking.ID, caller.ID, model.BookingStatusCancelled)
		assert.True(t, apperr.Is(err, apperr.KindInvalidState), "caller %s: got %v", caller.Email, err)
	}

	// Посторонним статус не раскрывается
	for _, caller := range []*model.User{s.stranger, s.otherOwner} {
		_, err = s.bookings.SetStatus(ctx, s.booking.ID, caller.ID, model.BookingStatusCancelled)
		assert.True(t, apperr.Is(err, apperr.KindForbidden), "caller %s: got %v", caller.Email, err)
	}
}

func TestSetStatus_StateMachine(t *testing.T) {
	tests := []struct {
		name    string
		prepare []model.BookingStatus
		next    model.BookingStatus
		kind    apperr.Kind
	}{
		{"pending to confirmed", nil, model.BookingStatusConfirmed, ""},
		{"pending to cancelled", nil, model.BookingStatusCancelled, ""},
		{"pending to completed", nil, model.BookingStatusCompleted, apperr.KindValidation},
		{"pending to pending", nil, model.BookingStatusPending, apperr.KindValidation},
		{"unknown status", nil, model.BookingStatus("paid"), apperr.KindValidation},
		{"confirmed to cancelled", []model.BookingStatus{model.BookingStatusConfirmed}, model.BookingStatusCancelled, apperr.KindInvalidState},
		{"confirmed to confirmed", []model.BookingStatus{model.BookingStatusConfirmed}, model.BookingStatusConfirmed, apperr.KindInvalidState},
		{"cancelled to confirmed", []model.BookingStatus{model.BookingStatusCancelled}, model.BookingStatusConfirmed, apperr.KindInvalidState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newLifecycle(t)
			ctx := context.Background()

			for _, status := range tt.prepare {
				_, err := s.bookings.SetStatus(ctx, s.booking.ID, s.owner.ID, status)
				require.NoError(t, err)
			}

			booking, err := s.bookings.SetStatus(ctx, s.booking.ID, s.owner.ID, tt.next)
			if tt.kind == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.next, booking.Status)
				return
			}
			assert.True(t, apperr.Is(err, tt.kind), "got %v", err)
		})
	}
}

func TestSetStatus_NotFound(t *testing.T) {
	s := newLifecycle(t)

	_, err := s.bookings.SetStatus(context.Background(), uuid.New(), s.owner.ID, model.BookingStatusConfirmed)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestSetStatus_ConcurrentTransitions(t *testing.T) {
	s := newLifecycle(t)
	ctx := context.Background()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins []model.BookingStatus
	)

	for _, status := range []model.BookingStatus{
		model.BookingStatusConfirmed, model.BookingStatusCancelled,
		model.BookingStatusConfirmed, model.BookingStatusCancelled,
	} {
		wg.Add(1)
		go func(status model.BookingStatus) {
			defer wg.Done()
			_, err := s.bookings.SetStatus(ctx, s.booking.ID, s.owner.ID, status)
			if err == nil {
				mu.Lock()
				wins = append(wins, status)
				mu.Unlock()
				return
			}
			assert.True(t, apperr.Is(err, apperr.KindInvalidState), "got %v", err)
		}(status)
	}
	wg.Wait()

	require.Len(t, wins, 1)

	detail, err := s.bookings.GetForViewer(ctx, s.booking.ID, s.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, wins[0], detail.Status)
}

func TestAttachPaymentProof(t *testing.T) {
	s := newLifecycle(t)
	ctx := context.Background()

	prefix := storage.PaymentProofPrefix(s.booking.ID)
	first, second := prefix+"receipt-1.png", prefix+"receipt-2.png"
	s.objects.put(first)
	s.objects.put(second)

	_, err := s.bookings.AttachPaymentProof(ctx, s.booking.ID, s.stranger.ID, first)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = s.bookings.AttachPaymentProof(ctx, s.booking.ID, s.owner.ID, first)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = s.bookings.AttachPaymentProof(ctx, s.booking.ID, s.renter.ID, prefix+"missing.png")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = s.bookings.AttachPaymentProof(ctx, s.booking.ID, s.renter.ID, "")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = s.bookings.AttachPaymentProof(ctx, uuid.New(), s.renter.ID, first)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	booking, err := s.bookings.AttachPaymentProof(ctx, s.booking.ID, s.renter.ID, first)
	require.NoError(t, err)
	require.NotNil(t, booking.ProofOfPaymentURL)
	assert.Equal(t, first, *booking.ProofOfPaymentURL)
	assert.Equal(t, model.BookingStatusPending, booking.Status)

	// Повторная загрузка перезаписывает чек
	booking, err = s.bookings.AttachPaymentProof(ctx, s.booking.ID, s.renter.ID, second)
	require.NoError(t, err)
	assert.Equal(t, second, *booking.ProofOfPaymentURL)

	_, err = s.bookings.SetStatus(ctx, s.booking.ID, s.owner.ID, model.BookingStatusConfirmed)
	require.NoError(t, err)

	_, err = s.bookings.AttachPaymentProof(ctx, s.booking.ID, s.renter.ID, first)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))
}

func TestAttachPaymentProof_RejectsForeignObjects(t *testing.T) {
	s := newLifecycle(t)
	ctx := context.Background()

	other, err := s.bookings.CreateBooking(ctx, s.stranger.ID, s.venue.ID, at(12, 0), at(13, 0))
	require.NoError(t, err)

	own := storage.PaymentProofPrefix(s.booking.ID)
	refs := []string{
		storage.PaymentProofPrefix(other.ID) + "receipt.png",
		storage.BucketFieldImages + "/" + s.venue.ID.String() + "_photo.png",
		"payment-proofs/receipt.png",
		own,
		own + "x/../../field-images/photo.png",
		own + "..png",
	}

	for _, ref := range refs {
		s.objects.put(ref)
		_, err := s.bookings.AttachPaymentProof(ctx, s.booking.ID, s.renter.ID, ref)
		assert.True(t, apperr.Is(err, apperr.KindValidation), "ref %q: got %v", ref, err)
	}

	detail, err := s.bookings.GetForViewer(ctx, s.booking.ID, s.renter.ID)
	require.NoError(t, err)
	assert.Nil(t, detail.ProofOfPaymentURL)
	assert.Empty(t, detail.ProofSignedURL)
}

func TestListForOwner(t *testing.T) {
	s := newLifecycle(t)
	ctx := context.Background()

	otherField := s.field(t, s.otherOwner, 1000)
	_, err := s.bookings.CreateBooking(ctx, s.stranger.ID, otherField.ID, at(8, 0), at(9, 0))
	require.NoError(t, err)

	own, err := s.bookings.ListForOwner(ctx, s.owner.ID)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, s.booking.ID, own[0].ID)

	all, err := s.bookings.ListForOwner(ctx, s.admin.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = s.bookings.ListForOwner(ctx, s.renter.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	lonely := s.user(t, "lonely-owner@example.com", model.RoleOwner)
	none, err := s.bookings.ListForOwner(ctx, lonely.ID)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestListForRenter_NewestFirst(t *testing.T) {
	s := newLifecycle(t)
	ctx := context.Background()

	later, err := s.bookings.CreateBooking(ctx, s.renter.ID, s.venue.ID, at(12, 0), at(13, 0))
	require.NoError(t, err)

	list, err := s.bookings.ListForRenter(ctx, s.renter.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, later.ID, list[0].ID)
	assert.Equal(t, s.booking.ID, list[1].ID)

	empty, err := s.bookings.ListForRenter(ctx, s.stranger.ID)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestGetForViewer(t *testing.T) {
	s := newLifecycle(t)
	ctx := context.Background()

	for _, viewer := range []*model.User{s.renter, s.owner, s.admin} {
		detail, err := s.bookings.GetForViewer(ctx, s.booking.ID, viewer.ID)
		require.NoError(t, err, viewer.Email)
		assert.Equal(t, s.venue.ID, detail.Venue.ID)
		assert.Empty(t, detail.ProofSignedURL)
	}

	for _, viewer := range []*model.User{s.stranger, s.otherOwner} {
		_, err := s.bookings.GetForViewer(ctx, s.booking.ID, viewer.ID)
		assert.True(t, apperr.Is(err, apperr.KindForbidden), viewer.Email)
	}

	_, err := s.bookings.GetForViewer(ctx, uuid.New(), s.renter.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	receipt := storage.PaymentProofPrefix(s.booking.ID) + "receipt.png"
	s.objects.put(receipt)
	_, err = s.bookings.AttachPaymentProof(ctx, s.booking.ID, s.renter.ID, receipt)
	require.NoError(t, err)

	detail, err := s.bookings.GetForViewer(ctx, s.booking.ID, s.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://files.test/"+receipt+"?token=signed", detail.ProofSignedURL)
}

func TestOwnerDashboard(t *testing.T) {
	s := newLifecycle(t)
	ctx := context.Background()

	s.field(t, s.otherOwner, 1000)

	dashboard, err := s.bookings.OwnerDashboard(ctx, s.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleOwner, dashboard.Role)
	require.Len(t, dashboard.Fields, 1)
	assert.Equal(t, s.venue.ID, dashboard.Fields[0].ID)
	assert.Len(t, dashboard.Bookings, 1)

	adminView, err := s.bookings.OwnerDashboard(ctx, s.admin.ID)
	require.NoError(t, err)
	assert.Len(t, adminView.Fields, 2)

	_, err = s.bookings.OwnerDashboard(ctx, s.renter.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestCompleteEnded(t *testing.T) {
	s := newLifecycle(t)
	ctx := context.Background()

	pending, err := s.bookings.CreateBooking(ctx, s.renter.ID, s.venue.ID, at(10, 0), at(11, 0))
	require.NoError(t, err)

	future, err := s.bookings.CreateBooking(ctx, s.renter.ID, s.venue.ID, at(20, 0), at(21, 0))
	require.NoError(t, err)

	for _, id := range []uuid.UUID{s.booking.ID, future.ID} {
		_, err := s.bookings.SetStatus(ctx, id, s.owner.ID, model.BookingStatusConfirmed)
		require.NoError(t, err)
	}

	s.bookings.SetClock(func() time.Time { return at(12, 0) })

	n, err := s.bookings.CompleteEnded(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	statuses := map[uuid.UUID]model.BookingStatus{}
	list, err := s.bookings.ListForRenter(ctx, s.renter.ID)
	require.NoError(t, err)
	for _, b := range list {
		statuses[b.ID] = b.Status
	}

	assert.Equal(t, model.BookingStatusCompleted, statuses[s.booking.ID])
	assert.Equal(t, model.BookingStatusPending, statuses[pending.ID])
	assert.Equal(t, model.BookingStatusConfirmed, statuses[future.ID])

	// completed не принимает переходов через API
	_, err = s.bookings.SetStatus(ctx, s.booking.ID, s.owner.ID, model.BookingStatusCancelled)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))
}
