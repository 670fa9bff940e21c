// Package cache хранит уже отрисованные PDF чеки, чтобы повторное скачивание не гоняло рендер.
package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReceiptCache - хранилище готовых чеков. Промах не ошибка: found == false.
type ReceiptCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte) error
}

type RedisReceiptCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ ReceiptCache = (*RedisReceiptCache)(nil)

func NewRedisReceiptCache(client *redis.Client, prefix string, ttl time.Duration) *RedisReceiptCache {
	return &RedisReceiptCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisReceiptCache) prefixKey(key string) string {
	var b strings.Builder
	b.Grow(len(c.prefix) + 1 + len(key))
	b.WriteString(c.prefix)
	b.WriteString(":")
	b.WriteString(key)
	return b.String()
}

func (c *RedisReceiptCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, c.prefixKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (c *RedisReceiptCache) Set(ctx context.Context, key string, data []byte) error {
	return c.client.Set(ctx, c.prefixKey(key), data, c.ttl).Err()
}

func (c *RedisReceiptCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Nop - кэш выключен, всегда промах
type Nop struct{}

var _ ReceiptCache = Nop{}

func (Nop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (Nop) Set(context.Context, string, []byte) error         { return nil }

// NewClient создаёт клиента redis и проверяет соединение
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
