package keylock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/abhisek/lexiz/internal/logger"
)

// releaseScript deletes the lock only if this holder still owns it.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisOptions configures a Redis Locker.
type RedisOptions struct {
	// Prefix namespaces lock keys. Default: "lexiz:lock:".
	Prefix string

	// TTL bounds how long a crashed holder can block others. Default: 10s.
	TTL time.Duration

	// RetryEvery is the polling interval while waiting. Default: 25ms.
	RetryEvery time.Duration
}

// Redis is a Locker shared by every process talking to the same Redis.
// It uses SET NX PX with a random token per acquisition.
type Redis struct {
	rdb  goredis.UniversalClient
	opts RedisOptions
	log  *logger.Logger
}

// NewRedis wraps an existing client.
func NewRedis(rdb goredis.UniversalClient, opts RedisOptions, log *logger.Logger) *Redis {
	if opts.Prefix == "" {
		opts.Prefix = "lexiz:lock:"
	}
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Second
	}
	if opts.RetryEvery <= 0 {
		opts.RetryEvery = 25 * time.Millisecond
	}
	return &Redis{rdb: rdb, opts: opts, log: logger.OrNop(log).With("service", "RedisLocker")}
}

// Dial connects to addr and verifies the server answers.
func Dial(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// Lock polls until the key is acquired or ctx is done.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	k := r.opts.Prefix + key
	token := uuid.NewString()

	for {
		ok, err := r.rdb.SetNX(ctx, k, token, r.opts.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.opts.RetryEvery):
		}
	}

	return func() {
		// Release even if the caller's context is already done.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, r.rdb, []string{k}, token).Err(); err != nil {
			r.log.Warn("release lock failed", "key", key, "error", err)
		}
	}, nil
}
