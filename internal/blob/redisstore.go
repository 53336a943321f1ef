package blob

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	dataField = "data"
	mimeField = "mime"
)

// RedisStore keeps each blob in a Redis hash holding the data and MIME type.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore returns a store using client. Keys are namespaced by prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) key(key string) string {
	return r.prefix + key
}

// Exists reports whether key is stored.
func (r *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("checking blob: %w", err)
	}
	return n > 0, nil
}

// Put stores data under a new key from naming and returns the key.
func (r *RedisStore) Put(ctx context.Context, data []byte, mime string, naming NamingPolicy) (string, error) {
	key := naming(extFor(mime))
	if err := r.client.HSet(ctx, r.key(key), dataField, data, mimeField, mime).Err(); err != nil {
		return "", fmt.Errorf("storing blob: %w", err)
	}
	return key, nil
}

// Get returns the data and MIME type stored under key.
func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	values, err := r.client.HMGet(ctx, r.key(key), dataField, mimeField).Result()
	if err != nil {
		return nil, "", fmt.Errorf("getting blob: %w", err)
	}
	data, ok := values[0].(string)
	if !ok {
		return nil, "", ErrNotFound
	}
	mime, _ := values[1].(string)
	return []byte(data), mime, nil
}

// Delete removes key. Returns ErrNotFound if it was not stored.
func (r *RedisStore) Delete(ctx context.Context, key string) error {
	n, err := r.client.Del(ctx, r.key(key)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("deleting blob: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
