package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/field_rental/internal/model"
	"github.com/Freeeeeet/field_rental/internal/repository/memory"
	"github.com/Freeeeeet/field_rental/internal/service"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var day = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

type fixture struct {
	store    *memory.Store
	users    *service.UserService
	fields   *service.FieldService
	bookings *service.BookingService
	objects  *fakeObjects
	notifier *recordingNotifier
	cache    *recordingCache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.New()
	store.SetClock(tickingClock(day.Add(-24 * time.Hour)))

	objects := &fakeObjects{paths: map[string]bool{}}
	notifier := &recordingNotifier{}
	cache := &recordingCache{}
	logger := zap.NewNop()

	return &fixture{
		store:    store,
		users:    service.NewUserService(store.Users(), logger),
		fields:   service.NewFieldService(store.Users(), store.Fields(), cache, logger),
		bookings: service.NewBookingService(store.Users(), store.Fields(), store.Bookings(), objects, notifier, logger),
		objects:  objects,
		notifier: notifier,
		cache:    cache,
	}
}

// tickingClock каждое обращение сдвигает время на секунду, чтобы порядок created_at был строгим
func tickingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func (f *fixture) user(t *testing.T, email string, role model.Role) *model.User {
	t.Helper()

	chatID := int64(len(email))
	u := &model.User{Email: email, Name: email, TelegramChatID: &chatID}
	require.NoError(t, f.store.Users().Create(context.Background(), u))

	if role != model.RoleUser {
		require.NoError(t, f.store.Users().SetRole(context.Background(), u.ID, role))
		u.Role = role
	}
	return u
}

func (f *fixture) field(t *testing.T, owner *model.User, pricePerHour int64) *model.Field {
	t.Helper()

	fld := &model.Field{
		OwnerID:      owner.ID,
		Name:         "Field of " + owner.Name,
		Description:  "5x5 artificial turf",
		PricePerHour: pricePerHour,
		Address:      "Main st. 1",
		IsActive:     true,
	}
	require.NoError(t, f.store.Fields().Create(context.Background(), fld))
	return fld
}

type fakeObjects struct {
	mu    sync.Mutex
	paths map[string]bool
}

func (o *fakeObjects) put(path string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.paths[path] = true
}

func (o *fakeObjects) Exists(_ context.Context, path string) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.paths[path], nil
}

func (o *fakeObjects) SignedURL(path string, _ time.Duration) (string, error) {
	return "https://files.test/" + path + "?token=signed", nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	created []*model.Booking
	changed []*model.Booking
}

func (n *recordingNotifier) BookingCreated(_ context.Context, _ *model.User, _ *model.Field, booking *model.Booking) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created = append(n.created, booking)
}

func (n *recordingNotifier) BookingStatusChanged(_ context.Context, _ *model.User, booking *model.Booking) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changed = append(n.changed, booking)
}

type recordingCache struct {
	mu            sync.Mutex
	fields        []*model.Field
	cached        bool
	invalidations int
}

func (c *recordingCache) GetActiveFields(context.Context) ([]*model.Field, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fields, c.cached
}

func (c *recordingCache) SetActiveFields(_ context.Context, fields []*model.Field) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fields, c.cached = fields, true
}

func (c *recordingCache) Invalidate(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fields, c.cached = nil, false
	c.invalidations++
}
