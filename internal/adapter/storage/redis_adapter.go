package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/pos-checkout/internal/core/domain"
)

const (
	barcodeKeyPrefix     = "product:barcode:"
	idempotencyKeyPrefix = "idempotency:"
)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	data, err := r.client.Get(ctx, barcodeKeyPrefix+barcode).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var p domain.Product
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode cached product: %w", err)
	}
	return &p, nil
}

func (r *RedisAdapter) SetProduct(ctx context.Context, product domain.Product, ttl time.Duration) error {
	if product.Barcode == "" {
		return nil
	}
	data, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("encode product: %w", err)
	}
	return r.client.Set(ctx, barcodeKeyPrefix+product.Barcode, data, ttl).Err()
}

func (r *RedisAdapter) InvalidateBarcode(ctx context.Context, barcode string) error {
	if barcode == "" {
		return nil
	}
	return r.client.Del(ctx, barcodeKeyPrefix+barcode).Err()
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKeyPrefix+key, 1, ttl).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, idempotencyKeyPrefix+key).Err()
}
