package throttle

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/tech-arch1tect/bilim/config"
)

// Store holds short-lived markers. Acquire must be atomic: of any number of
// concurrent callers for the same key, exactly one succeeds.
type Store interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Mark(ctx context.Context, key string, ttl time.Duration) error
	Release(ctx context.Context, key string) error
	// TTL reports the remaining lifetime of a marker, or zero when absent.
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// Key builds the resend marker key for a subject and action.
func Key(action string, subjectID uint) string {
	return fmt.Sprintf("otp:resend:%s:%d", action, subjectID)
}

func NewStore(cfg *config.Config) (Store, error) {
	switch cfg.Throttle.Store {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return NewRedisStore(client), nil
	case "memory", "":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported throttle store: %s (supported: memory, redis)", cfg.Throttle.Store)
	}
}
