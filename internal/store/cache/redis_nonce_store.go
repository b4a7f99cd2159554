// internal/store/cache/redis_nonce_store.go
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const nonceKeyPrefix = "wechatpay:nonce:"

// RedisNonceStore shares the replay window across every instance behind the
// load balancer.
type RedisNonceStore struct {
	client *redis.Client
}

func NewRedisNonceStore(client *redis.Client) *RedisNonceStore {
	return &RedisNonceStore{client: client}
}

// Remember reports true the first time a nonce is seen within ttl.
func (s *RedisNonceStore) Remember(ctx context.Context, nonce string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, nonceKeyPrefix+nonce, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("cache: remember nonce: %w", err)
	}
	return ok, nil
}
