package ports

import (
	"context"
	"time"
)

// Cache stores serialized values such as closed-month archive counts.
// A zero ttl means the entry does not expire.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
