// Package memory хранит данные в памяти процесса. Используется в тестах и при STORAGE_DRIVER=memory.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Freeeeeet/field_rental/internal/apperr"
	"github.com/Freeeeeet/field_rental/internal/model"
	"github.com/Freeeeeet/field_rental/internal/service"
	"github.com/google/uuid"
)

type Store struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]*model.User
	fields   map[uuid.UUID]*model.Field
	images   map[uuid.UUID][]*model.FieldImage
	bookings map[uuid.UUID]*model.Booking

	// Один мьютекс на поле: проверка и вставка бронирования идут под ним
	fieldLocks sync.Map
	now        func() time.Time
}

func New() *Store {
	return &Store{
		users:    make(map[uuid.UUID]*model.User),
		fields:   make(map[uuid.UUID]*model.Field),
		images:   make(map[uuid.UUID][]*model.FieldImage),
		bookings: make(map[uuid.UUID]*model.Booking),
		now:      time.Now,
	}
}

// SetClock подменяет время, которое проставляется в created_at и updated_at
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) Users() *UserStore       { return &UserStore{s: s} }
func (s *Store) Fields() *FieldStore     { return &FieldStore{s: s} }
func (s *Store) Bookings() *BookingStore { return &BookingStore{s: s} }

var (
	_ service.UserStore    = (*UserStore)(nil)
	_ service.FieldStore   = (*FieldStore)(nil)
	_ service.BookingStore = (*BookingStore)(nil)
)

func (s *Store) fieldLock(fieldID uuid.UUID) *sync.Mutex {
	l, _ := s.fieldLocks.LoadOrStore(fieldID, &sync.Mutex{})
	return l.(*sync.Mutex)
}

// UserStore пользователи в памяти
type UserStore struct{ s *Store }

func (r *UserStore) Create(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.Email == user.Email {
			return apperr.Conflict("email already registered")
		}
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Role == "" {
		user.Role = model.RoleUser
	}
	user.CreatedAt = r.s.now().UTC()

	cp := *user
	r.s.users[user.ID] = &cp
	return nil
}

func (r *UserStore) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *UserStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

// SetRole меняет роль; административное действие вне HTTP API
func (r *UserStore) SetRole(_ context.Context, id uuid.UUID, role model.Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return apperr.NotFound("user not found")
	}
	u.Role = role
	return nil
}

// FieldStore поля и их изображения в памяти
type FieldStore struct{ s *Store }

func (r *FieldStore) Create(_ context.Context, field *model.Field) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[field.OwnerID]; !ok {
		return apperr.Validation("owner does not exist")
	}

	if field.ID == uuid.Nil {
		field.ID = uuid.New()
	}
	field.CreatedAt = r.s.now().UTC()

	cp := *field
	cp.Images = nil
	r.s.fields[field.ID] = &cp
	return nil
}

func (r *FieldStore) GetByID(_ context.Context, id uuid.UUID) (*model.Field, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	f, ok := r.s.fields[id]
	if !ok {
		return nil, nil
	}
	return r.withImages(f), nil
}

func (r *FieldStore) List(_ context.Context, filter service.FieldFilter) ([]*model.Field, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*model.Field
	for _, f := range r.s.fields {
		if filter.ActiveOnly && !f.IsActive {
			continue
		}
		if filter.OwnerID != nil && f.OwnerID != *filter.OwnerID {
			continue
		}
		out = append(out, r.withImages(f))
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *FieldStore) IDsByOwner(_ context.Context, ownerID uuid.UUID) ([]uuid.UUID, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var ids []uuid.UUID
	for id, f := range r.s.fields {
		if f.OwnerID == ownerID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *FieldStore) Update(_ context.Context, field *model.Field) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.fields[field.ID]
	if !ok {
		return apperr.NotFound("field not found")
	}

	cp := *field
	cp.OwnerID = existing.OwnerID
	cp.CreatedAt = existing.CreatedAt
	cp.Images = nil
	r.s.fields[field.ID] = &cp
	return nil
}

func (r *FieldStore) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.fields[id]; !ok {
		return apperr.NotFound("field not found")
	}

	for _, b := range r.s.bookings {
		if b.FieldID == id {
			return apperr.Conflict("field has bookings and cannot be deleted")
		}
	}

	delete(r.s.fields, id)
	delete(r.s.images, id)
	return nil
}

func (r *FieldStore) AddImage(_ context.Context, image *model.FieldImage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.fields[image.FieldID]; !ok {
		return apperr.NotFound("field not found")
	}

	if image.ID == uuid.Nil {
		image.ID = uuid.New()
	}
	image.CreatedAt = r.s.now().UTC()

	cp := *image
	r.s.images[image.FieldID] = append(r.s.images[image.FieldID], &cp)
	return nil
}

// withImages копирует поле вместе с изображениями; вызывать под mu
func (r *FieldStore) withImages(f *model.Field) *model.Field {
	cp := *f
	cp.Images = nil
	for _, img := range r.s.images[f.ID] {
		imgCp := *img
		cp.Images = append(cp.Images, &imgCp)
	}
	return &cp
}

// BookingStore бронирования в памяти
type BookingStore struct{ s *Store }

func (r *BookingStore) CreateIfAvailable(_ context.Context, booking *model.Booking) error {
	lock := r.s.fieldLock(booking.FieldID)
	lock.Lock()
	defer lock.Unlock()

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.fields[booking.FieldID]; !ok {
		return apperr.Validation("field does not exist")
	}

	for _, b := range r.s.bookings {
		if b.FieldID != booking.FieldID || !b.Status.Occupies() {
			continue
		}
		if model.Overlaps(booking.StartTime, booking.EndTime, b.StartTime, b.EndTime) {
			return apperr.Conflict("time slot already booked")
		}
	}

	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	now := r.s.now().UTC()
	booking.CreatedAt = now
	booking.UpdatedAt = now

	cp := *booking
	cp.Field, cp.Renter = nil, nil
	r.s.bookings[booking.ID] = &cp
	return nil
}

func (r *BookingStore) ListOccupying(_ context.Context, fieldID uuid.UUID, start, end time.Time) ([]*model.Booking, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*model.Booking
	for _, b := range r.s.bookings {
		if b.FieldID == fieldID && b.Status.Occupies() && model.Overlaps(start, end, b.StartTime, b.EndTime) {
			out = append(out, r.joined(b))
		}
	}
	return out, nil
}

func (r *BookingStore) GetByID(_ context.Context, id uuid.UUID) (*model.Booking, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	b, ok := r.s.bookings[id]
	if !ok {
		return nil, nil
	}
	return r.joined(b), nil
}

func (r *BookingStore) ListByUser(_ context.Context, userID uuid.UUID) ([]*model.Booking, error) {
	return r.list(func(b *model.Booking) bool { return b.UserID == userID }), nil
}

func (r *BookingStore) ListByFields(_ context.Context, fieldIDs []uuid.UUID) ([]*model.Booking, error) {
	set := make(map[uuid.UUID]struct{}, len(fieldIDs))
	for _, id := range fieldIDs {
		set[id] = struct{}{}
	}
	return r.list(func(b *model.Booking) bool {
		_, ok := set[b.FieldID]
		return ok
	}), nil
}

func (r *BookingStore) ListAll(_ context.Context) ([]*model.Booking, error) {
	return r.list(func(*model.Booking) bool { return true }), nil
}

func (r *BookingStore) TransitionStatus(_ context.Context, id uuid.UUID, from, to model.BookingStatus) (*model.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.bookings[id]
	if !ok || b.Status != from {
		return nil, nil
	}

	b.Status = to
	b.UpdatedAt = r.s.now().UTC()
	return r.joined(b), nil
}

func (r *BookingStore) SetPaymentProof(_ context.Context, id uuid.UUID, path string) (*model.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.bookings[id]
	if !ok || b.Status != model.BookingStatusPending {
		return nil, nil
	}

	p := path
	b.ProofOfPaymentURL = &p
	b.UpdatedAt = r.s.now().UTC()
	return r.joined(b), nil
}

func (r *BookingStore) CompleteEnded(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for _, b := range r.s.bookings {
		if b.Status == model.BookingStatusConfirmed && !b.EndTime.After(now) {
			b.Status = model.BookingStatusCompleted
			b.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (r *BookingStore) list(match func(*model.Booking) bool) []*model.Booking {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*model.Booking
	for _, b := range r.s.bookings {
		if match(b) {
			out = append(out, r.joined(b))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// joined копирует бронирование и подставляет краткие данные поля и арендатора; вызывать под mu
func (r *BookingStore) joined(b *model.Booking) *model.Booking {
	cp := *b
	if b.ProofOfPaymentURL != nil {
		p := *b.ProofOfPaymentURL
		cp.ProofOfPaymentURL = &p
	}
	if f, ok := r.s.fields[b.FieldID]; ok {
		cp.Field = f.Summary()
	}
	if u, ok := r.s.users[b.UserID]; ok {
		cp.Renter = &model.UserSummary{Name: u.Name, Email: u.Email}
	}
	return &cp
}
