package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/quilpalta/alpalo/news"
)

// DefaultRedisKey holds the JSON-encoded listing.
const DefaultRedisKey = "alpalo:noticias:listado"

// Redis caches the listing in a Redis string with a TTL, shared by every
// instance of the site. The generation lives in "<key>:gen" and is checked
// under WATCH when saving.
type Redis struct {
	client *redis.Client
	key    string
	genKey string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisClient connects to url (redis://...) and pings it.
func NewRedisClient(ctx context.Context, url string, logger *zap.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}
	logger.Info("connected to redis", zap.String("address", opts.Addr))
	return client, nil
}

// NewRedis caches under key (DefaultRedisKey when empty).
func NewRedis(client *redis.Client, key string, ttl time.Duration, logger *zap.Logger) *Redis {
	if key == "" {
		key = DefaultRedisKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{client: client, key: key, genKey: key + ":gen", ttl: ttl, logger: logger}
}

// Load implements Backend.
func (r *Redis) Load(ctx context.Context) ([]news.Item, bool, error) {
	val, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get %s: %w", r.key, err)
	}
	var items []news.Item
	if err := json.Unmarshal(val, &items); err != nil {
		return nil, false, fmt.Errorf("decode cached listing: %w", err)
	}
	return items, true, nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func generation(ctx context.Context, c getter, key string) (uint64, error) {
	gen, err := c.Get(ctx, key).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get %s: %w", key, err)
	}
	return gen, nil
}

// Generation implements Backend.
func (r *Redis) Generation(ctx context.Context) (uint64, error) {
	return generation(ctx, r.client, r.genKey)
}

// Save implements Backend.
func (r *Redis) Save(ctx context.Context, items []news.Item, gen uint64) (bool, error) {
	if items == nil {
		items = []news.Item{}
	}
	val, err := json.Marshal(items)
	if err != nil {
		return false, fmt.Errorf("encode listing: %w", err)
	}

	saved := false
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := generation(ctx, tx, r.genKey)
		if err != nil {
			return err
		}
		if cur != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.key, val, r.ttl)
			return nil
		})
		if err == nil {
			saved = true
		}
		return err
	}, r.genKey)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis set %s: %w", r.key, err)
	}
	if saved {
		r.logger.Debug("listing cached", zap.Int("items", len(items)), zap.Duration("ttl", r.ttl))
	}
	return saved, nil
}

// Clear implements Backend.
func (r *Redis) Clear(ctx context.Context) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, r.genKey)
		pipe.Del(ctx, r.key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis clear %s: %w", r.key, err)
	}
	return nil
}
