// Package statscache keeps computed statistics in Redis. Entries are keyed
// under a global generation that every accepted submission bumps, so stale
// entries are never read and simply expire.
package statscache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mind-engage/mindengage-survey/internal/survey"
)

const genKey = "stats:gen"

// cmdable is the slice of the go-redis client the cache uses.
type cmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
}

type Redis struct {
	client cmdable
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Redis{client: client, ttl: ttl}
}

// Connect dials addr and pings it once.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// Get returns nil stats on a miss, along with the generation it read. Pass
// that generation to Set: a result computed across an Invalidate then lands
// under a retired generation and is never served.
func (c *Redis) Get(ctx context.Context, q survey.StatsQuery) (*survey.Stats, string, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return nil, "", err
	}
	data, err := c.client.Get(ctx, key(gen, q)).Result()
	if err == redis.Nil {
		return nil, gen, nil
	}
	if err != nil {
		return nil, "", err
	}
	var s survey.Stats
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, "", err
	}
	return &s, gen, nil
}

func (c *Redis) Set(ctx context.Context, gen string, q survey.StatsQuery, s survey.Stats) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key(gen, q), data, c.ttl).Err()
}

// Invalidate retires every cached entry at once.
func (c *Redis) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, genKey).Err()
}

func (c *Redis) generation(ctx context.Context) (string, error) {
	gen, err := c.client.Get(ctx, genKey).Result()
	if err == redis.Nil {
		return "0", nil
	}
	return gen, err
}

type cacheKey struct {
	Scope  survey.StatsScope `json:"s"`
	Period survey.Period     `json:"p,omitempty"`
	From   int64             `json:"f,omitempty"`
	To     int64             `json:"t,omitempty"`
}

func key(gen string, q survey.StatsQuery) string {
	k := cacheKey{Scope: q.StatsScope, Period: q.Period}
	if q.From != nil {
		k.From = q.From.Unix()
	}
	if q.To != nil {
		k.To = q.To.Unix()
	}
	b, _ := json.Marshal(k)
	return "stats:" + gen + ":" + string(b)
}
