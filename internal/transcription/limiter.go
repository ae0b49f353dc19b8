package transcription

import (
	"context"
	"time"

	"edu-crm/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter shares transcription slots between worker replicas so the
// speech-to-text quota is not exceeded when the worker scales out. It is
// handed to the queue consumer, which takes a slot before pulling a task.
type RedisLimiter struct {
	Client *redis.Client
	Key    string
	Limit  int
	// Lease must outlast one pull plus one task.
	Lease time.Duration
}

func (l RedisLimiter) Acquire(ctx context.Context) (string, bool, error) {
	return utils.AcquireConcurrencyCap(ctx, l.Client, l.Key, l.Limit, l.Lease)
}

func (l RedisLimiter) Release(ctx context.Context, token string) error {
	return utils.ReleaseConcurrencyCap(ctx, l.Client, l.Key, token)
}
