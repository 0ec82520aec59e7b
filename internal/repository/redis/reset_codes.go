package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ResetCodeRepo keeps password-reset secrets in Redis so they expire on
// their own instead of lingering on the user row.
type ResetCodeRepo struct {
	client *redis.Client
}

func NewResetCodeRepo(client *redis.Client) *ResetCodeRepo {
	return &ResetCodeRepo{client: client}
}

func key(email string) string {
	return "reset:" + email
}

func (r *ResetCodeRepo) Set(ctx context.Context, email, hash string, ttl time.Duration) error {
	return r.client.Set(ctx, key(email), hash, ttl).Err()
}

func (r *ResetCodeRepo) Get(ctx context.Context, email string) (string, error) {
	val, err := r.client.Get(ctx, key(email)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (r *ResetCodeRepo) Delete(ctx context.Context, email string) error {
	return r.client.Del(ctx, key(email)).Err()
}
