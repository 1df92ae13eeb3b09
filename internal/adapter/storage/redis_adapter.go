package storage

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/shop-order/internal/port"
)

const (
	idempotencyKeyPrefix = "idempotency:"
	imageKeyPrefix       = "product:rep-image:"
)

type RedisAdapter struct {
	client         *redis.Client
	idempotencyTTL time.Duration
	imageTTL       time.Duration
}

var (
	_ port.IdempotencyRepository = (*RedisAdapter)(nil)
	_ port.ImageCache            = (*RedisAdapter)(nil)
)

func NewRedisAdapter(client *redis.Client, idempotencyTTL, imageTTL time.Duration) *RedisAdapter {
	return &RedisAdapter{
		client:         client,
		idempotencyTTL: idempotencyTTL,
		imageTTL:       imageTTL,
	}
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKeyPrefix+key, 1, r.idempotencyTTL).Result()
	if err != nil {
		return false, errors.Wrap(err, "redis setnx")
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	return errors.Wrap(r.client.Del(ctx, idempotencyKeyPrefix+key).Err(), "redis del")
}

func (r *RedisAdapter) GetImageURL(ctx context.Context, productID int64) (string, bool, error) {
	url, err := r.client.Get(ctx, imageKey(productID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "redis get")
	}
	return url, true, nil
}

func (r *RedisAdapter) SetImageURL(ctx context.Context, productID int64, url string) error {
	return errors.Wrap(r.client.Set(ctx, imageKey(productID), url, r.imageTTL).Err(), "redis set")
}

func imageKey(productID int64) string {
	return imageKeyPrefix + strconv.FormatInt(productID, 10)
}
