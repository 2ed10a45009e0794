// Package cache кэш каталога полей в Redis
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Freeeeeet/field_rental/internal/model"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const activeFieldsKey = "field_rental:fields:active"

// CatalogCache хранит JSON списка активных полей.
// Ошибки Redis не прерывают запрос: каталог читается из базы.
type CatalogCache struct {
	client redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

func NewCatalogCache(client redis.Cmdable, ttl time.Duration, logger *zap.Logger) *CatalogCache {
	return &CatalogCache{client: client, ttl: ttl, logger: logger}
}

// NewClient подключается к Redis и проверяет соединение
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

func (c *CatalogCache) GetActiveFields(ctx context.Context) ([]*model.Field, bool) {
	data, err := c.client.Get(ctx, activeFieldsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("Failed to read catalog cache", zap.Error(err))
		return nil, false
	}

	var fields []*model.Field
	if err := json.Unmarshal(data, &fields); err != nil {
		c.logger.Warn("Corrupted catalog cache entry", zap.Error(err))
		return nil, false
	}

	return fields, true
}

func (c *CatalogCache) SetActiveFields(ctx context.Context, fields []*model.Field) {
	data, err := json.Marshal(fields)
	if err != nil {
		c.logger.Warn("Failed to encode catalog cache entry", zap.Error(err))
		return
	}

	if err := c.client.Set(ctx, activeFieldsKey, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Failed to write catalog cache", zap.Error(err))
	}
}

func (c *CatalogCache) Invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, activeFieldsKey).Err(); err != nil {
		c.logger.Warn("Failed to invalidate catalog cache", zap.Error(err))
	}
}
