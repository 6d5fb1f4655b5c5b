package cache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/jifunze/core"
)

// consumeScript deletes KEYS[1] only when it holds ARGV[1].
var consumeScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore shares entries between every process pointing at the same Redis.
type RedisStore struct {
	rdb redis.UniversalClient
}

var _ core.KeyValueStore = (*RedisStore)(nil)

func NewRedisStore(rdb redis.UniversalClient) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// NewRedisClient connects to the configured Redis and pings it.
func NewRedisClient(ctx context.Context, conf *core.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        conf.Cache.RedisAddr,
		Password:    conf.Cache.RedisPassword,
		DB:          conf.Cache.RedisDB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return rdb, nil
}

func (s *RedisStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	return errors.Wrap(s.rdb.Set(ctx, key, value, ttl).Err(), "redis SET")
}

func (s *RedisStore) GetAndDelete(ctx context.Context, key string) (string, bool, error) {
	val, err := s.rdb.GetDel(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "redis GETDEL")
	}
	return val, true, nil
}

func (s *RedisStore) Consume(ctx context.Context, key, value string) (bool, error) {
	n, err := consumeScript.Run(ctx, s.rdb, []string{key}, value).Int()
	if err != nil {
		return false, errors.Wrap(err, "redis consume")
	}
	return n == 1, nil
}
