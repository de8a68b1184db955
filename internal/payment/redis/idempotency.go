package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// Guard is a short-window duplicate suppressor for payment-order creation.
// The first caller to acquire a key wins; repeats within the TTL are told to
// reuse the existing order instead of hitting the gateway again.
type Guard struct {
	Client *redis.Client
}

func NewGuard(client *redis.Client) *Guard {
	return &Guard{Client: client}
}

func (g *Guard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return g.Client.SetNX(ctx, "payorder:"+key, "1", ttl).Result()
}
