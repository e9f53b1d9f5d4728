// Package cache holds the redis-backed fee.Sequencer and fee.Locker.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/masomofees/core/fee"
)

const keyPrefix = "masomofees:"

// releases a lock only while it still holds our token
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

type Redis struct {
	client *redis.Client

	mu     sync.Mutex
	tokens map[string]string // {lock key: token}
}

var (
	_ fee.Sequencer = (*Redis)(nil)
	_ fee.Locker    = (*Redis)(nil)
)

// NewRedis connects to the redis server at url (redis://[:password@]host:port/db).
func NewRedis(ctx context.Context, url string) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parsing redis url")
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return &Redis{client: client, tokens: make(map[string]string)}, nil
}

// Next increments the counter stored at key.
func (r *Redis) Next(ctx context.Context, key string) (int64, error) {
	n, err := r.client.Incr(ctx, keyPrefix+key).Result()
	if err != nil {
		return 0, errors.Wrap(err, "incrementing "+key)
	}
	return n, nil
}

func (r *Redis) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token := uuid.New().String()
	ok, err := r.client.SetNX(ctx, keyPrefix+key, token, ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, "locking "+key)
	}
	if ok {
		r.mu.Lock()
		r.tokens[key] = token
		r.mu.Unlock()
	}
	return ok, nil
}

func (r *Redis) Unlock(ctx context.Context, key string) error {
	r.mu.Lock()
	token, ok := r.tokens[key]
	delete(r.tokens, key)
	r.mu.Unlock()
	if !ok {
		return nil
	}

	if err := unlockScript.Run(ctx, r.client, []string{keyPrefix + key}, token).Err(); err != nil {
		return errors.Wrap(err, "unlocking "+key)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
