package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisClient implementa Client usando Redis.
type redisClient struct {
	client *redis.Client
	prefix string
}

// NewRedis crea un cliente Redis y verifica la conexión. Addr acepta host:port
// o una URL redis://.
func NewRedis(ctx context.Context, cfg Config) (*redisClient, error) {
	var opts *redis.Options
	if strings.HasPrefix(cfg.Addr, "redis://") || strings.HasPrefix(cfg.Addr, "rediss://") {
		o, err := redis.ParseURL(cfg.Addr)
		if err != nil {
			return nil, fmt.Errorf("cache: parse redis url: %w", err)
		}
		opts = o
	} else {
		addr := cfg.Addr
		if addr == "" {
			addr = "localhost:6379"
		}
		opts = &redis.Options{Addr: addr, Password: cfg.Password, DB: cfg.DB}
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cache: redis ping failed: %w", err)
	}

	return &redisClient{client: rdb, prefix: cfg.Prefix}, nil
}

func (c *redisClient) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, prefixed(c.prefix, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (c *redisClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return c.client.Set(ctx, prefixed(c.prefix, key), value, ttl).Err()
}

func (c *redisClient) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, prefixed(c.prefix, key)).Err()
}

// Incr usa INCR y setea el EXPIRE en el primer hit (fixed window).
func (c *redisClient) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	k := prefixed(c.prefix, key)
	n, err := c.client.Incr(ctx, k).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 && ttl > 0 {
		if err := c.client.Expire(ctx, k, ttl).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// TrackWindow usa un sorted set (score = unix seconds) dentro de MULTI/EXEC.
func (c *redisClient) TrackWindow(ctx context.Context, key, member string, at time.Time, window time.Duration, limit int) (int64, error) {
	k := prefixed(c.prefix, key)
	cutoff := strconv.FormatInt(at.Add(-window).Unix(), 10)

	pipe := c.client.TxPipeline()
	pipe.ZAdd(ctx, k, redis.Z{Score: float64(at.Unix()), Member: member})
	pipe.ZRemRangeByScore(ctx, k, "-inf", cutoff)
	if limit > 0 {
		pipe.ZRemRangeByRank(ctx, k, 0, int64(-limit-1))
	}
	card := pipe.ZCard(ctx, k)
	if window > 0 {
		pipe.Expire(ctx, k, window)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return card.Val(), nil
}

func (c *redisClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *redisClient) Close() error {
	return c.client.Close()
}
