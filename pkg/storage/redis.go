package storage

import (
	"context"
	"errors"

	redisclient "github.com/anandmobiles/storefront-gateway/pkg/redis"
)

// Redis adapts the shared redis client to the Store interface. Entries are
// namespaced under the client's kv prefix and never expire; logout removes
// them explicitly.
type Redis struct {
	client *redisclient.Client
}

func NewRedis(client *redisclient.Client) (*Redis, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return &Redis{client: client}, nil
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, r.client.StorageKey(key))
	if errors.Is(err, redisclient.ErrNotFound) {
		return "", ErrNotFound
	}
	return val, err
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, r.client.StorageKey(key), value, 0)
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	namespaced := make([]string, 0, len(keys))
	for _, key := range keys {
		namespaced = append(namespaced, r.client.StorageKey(key))
	}
	return r.client.Del(ctx, namespaced...)
}
