package hold

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLease implements Lease with SET NX PX.  The lease is never released
// explicitly; it lapses after ttl so a crashed holder cannot block others.
type RedisLease struct {
	rdb    *redis.Client
	prefix string
	owner  string
}

// NewRedisLease returns a lease backed by rdb.  owner identifies this
// instance in the stored value.
func NewRedisLease(rdb *redis.Client, prefix, owner string) *RedisLease {
	return &RedisLease{rdb: rdb, prefix: prefix, owner: owner}
}

// TryAcquire reports whether this instance now holds the named lease.
func (l *RedisLease) TryAcquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	return l.rdb.SetNX(ctx, l.prefix+":lease:"+name, l.owner, ttl).Result()
}
