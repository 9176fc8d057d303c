package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/searchapi-console/internal/model"
)

// Redis keeps the two entries under "<prefix>:access_token" and
// "<prefix>:refresh_token". A non-zero ttl expires both together.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

// OpenRedis parses redisURL and checks connectivity.
func OpenRedis(ctx context.Context, redisURL, prefix string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedis(client, prefix, ttl), nil
}

func (r *Redis) key(name string) string {
	return r.prefix + ":" + name
}

func (r *Redis) Save(ctx context.Context, accessToken, refreshToken string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, entry := range []struct{ name, value string }{
			{AccessTokenKey, accessToken},
			{RefreshTokenKey, refreshToken},
		} {
			if entry.value == "" {
				pipe.Del(ctx, r.key(entry.name))
				continue
			}
			pipe.Set(ctx, r.key(entry.name), entry.value, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}

func (r *Redis) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key(AccessTokenKey), r.key(RefreshTokenKey)).Err(); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}

func (r *Redis) Load(ctx context.Context) (model.Credentials, error) {
	vals, err := r.client.MGet(ctx, r.key(AccessTokenKey), r.key(RefreshTokenKey)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return model.Credentials{}, fmt.Errorf("load credentials: %w", err)
	}

	var creds model.Credentials
	if len(vals) == 2 {
		creds.AccessToken, _ = vals[0].(string)
		creds.RefreshToken, _ = vals[1].(string)
	}
	return creds, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
