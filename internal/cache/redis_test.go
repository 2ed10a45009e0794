package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Freeeeeet/field_rental/internal/model"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockRedis переопределяет только команды, которые использует кэш
type mockRedis struct {
	redis.Cmdable
	mock.Mock
}

func (m *mockRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	args := m.Called(key)
	return redis.NewStringResult(args.String(0), args.Error(1))
}

func (m *mockRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	args := m.Called(key, value, expiration)
	return redis.NewStatusResult("OK", args.Error(0))
}

func (m *mockRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	args := m.Called(keys)
	return redis.NewIntResult(1, args.Error(0))
}

func TestGetActiveFields_Hit(t *testing.T) {
	fields := []*model.Field{{ID: uuid.New(), Name: "Futsal A", PricePerHour: 50000, IsActive: true}}
	data, err := json.Marshal(fields)
	require.NoError(t, err)

	m := &mockRedis{}
	m.On("Get", activeFieldsKey).Return(string(data), nil)

	c := NewCatalogCache(m, time.Minute, zap.NewNop())
	got, ok := c.GetActiveFields(context.Background())

	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, fields[0].ID, got[0].ID)
	assert.Equal(t, int64(50000), got[0].PricePerHour)
	m.AssertExpectations(t)
}

func TestGetActiveFields_MissAndError(t *testing.T) {
	m := &mockRedis{}
	m.On("Get", activeFieldsKey).Return("", redis.Nil).Once()
	m.On("Get", activeFieldsKey).Return("", errors.New("connection refused")).Once()

	c := NewCatalogCache(m, time.Minute, zap.NewNop())

	_, ok := c.GetActiveFields(context.Background())
	assert.False(t, ok)

	_, ok = c.GetActiveFields(context.Background())
	assert.False(t, ok)
	m.AssertExpectations(t)
}

func TestSetAndInvalidate(t *testing.T) {
	m := &mockRedis{}
	m.On("Set", activeFieldsKey, mock.AnythingOfType("[]uint8"), 5*time.Minute).Return(nil)
	m.On("Del", []string{activeFieldsKey}).Return(nil)

	c := NewCatalogCache(m, 5*time.Minute, zap.NewNop())
	c.SetActiveFields(context.Background(), []*model.Field{{Name: "Futsal A"}})
	c.Invalidate(context.Background())

	m.AssertExpectations(t)
}
