// internal/sweep/lock.go
package sweep

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Lock serializes sweep runs per sweep name. Two concurrent runs of the
// same sweep would not corrupt dedup state (the uniqueness invariant holds
// regardless) but would waste sends against the throttled kinds, so each
// run takes a short-lived Redis lock first. The TTL bounds how long a
// crashed holder can block the next run.
type Lock struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewLock(rdb *redis.Client, ttl time.Duration) *Lock {
	return &Lock{redis: rdb, ttl: ttl}
}

// Acquire attempts to take the lock for the named sweep. On success it
// returns true and a release function. The release is best-effort and only
// removes the lock when this holder still owns it.
func (l *Lock) Acquire(ctx context.Context, name string) (bool, func(), error) {
	key := "sweep:lock:" + name
	token := uuid.New().String()

	ok, err := l.redis.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return false, nil, err
	}
	if !ok {
		return false, nil, nil
	}

	release := func() {
		const script = `
			if redis.call("GET", KEYS[1]) == ARGV[1] then
				return redis.call("DEL", KEYS[1])
			end
			return 0`
		l.redis.Eval(context.Background(), script, []string{key}, token)
	}
	return true, release, nil
}
