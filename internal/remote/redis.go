package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Redis stores the backup object as a key holding the JSON payload, with the
// last-modified time kept in a sibling key. Useful as a self-hosted target.
type Redis struct {
	client *redis.Client
}

func NewRedis(addr string, password string, db int) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &Redis{client: client}
}

func (r *Redis) Name() string { return "redis" }

func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (r *Redis) Close() error { return r.client.Close() }

func (r *Redis) Find(ctx context.Context, name string) (*ObjectInfo, error) {
	raw, err := r.client.Get(ctx, modifiedKey(name)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, r.wrap(err)
	}

	modified, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: bad modified timestamp %q", ErrUnavailable, raw)
	}
	return &ObjectInfo{ID: name, ModifiedAt: modified}, nil
}

func (r *Redis) Upload(ctx context.Context, id string, name string, payload []byte) (*ObjectInfo, error) {
	key := id
	if key == "" {
		key = name
	}
	now := time.Now().UTC()

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, key, payload, 0)
	pipe.Set(ctx, modifiedKey(key), now.Format(time.RFC3339Nano), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, r.wrap(err)
	}

	return &ObjectInfo{ID: key, ModifiedAt: now}, nil
}

func (r *Redis) Download(ctx context.Context, id string) ([]byte, error) {
	payload, err := r.client.Get(ctx, id).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, r.wrap(err)
	}
	return payload, nil
}

func (r *Redis) wrap(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "noauth") || strings.Contains(msg, "wrongpass") || strings.Contains(msg, "noperm") {
		return fmt.Errorf("%w: %v", ErrAuth, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func modifiedKey(name string) string {
	return name + ":modified_at"
}
