package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// RequestDeduper tracks seen idempotency keys so a retried mutation is
// absorbed instead of re-executed.
type RequestDeduper interface {
	Seen(ctx context.Context, key string) (bool, error)
}

type redisRequestDeduper struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func (d *redisRequestDeduper) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.prefix+":"+key, "1", d.ttl).Result()
	if err != nil {
		return false, err
	}
	// false => already exists => duplicate
	return !ok, nil
}

type memoryRequestDeduper struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	ttl    time.Duration
	nextGC time.Time
}

func newMemoryRequestDeduper(ttl time.Duration) *memoryRequestDeduper {
	now := time.Now()
	return &memoryRequestDeduper{
		seen:   make(map[string]time.Time),
		ttl:    ttl,
		nextGC: now.Add(ttl),
	}
}

func (d *memoryRequestDeduper) Seen(_ context.Context, key string) (bool, error) {
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if exp, ok := d.seen[key]; ok && exp.After(now) {
		return true, nil
	}

	d.seen[key] = now.Add(d.ttl)
	if now.After(d.nextGC) {
		for k, exp := range d.seen {
			if exp.Before(now) {
				delete(d.seen, k)
			}
		}
		d.nextGC = now.Add(d.ttl)
	}

	return false, nil
}

// NewRequestDeduper builds a Redis deduper and falls back to in-memory on failure.
func NewRequestDeduper(addr, pass string, db int, ttl time.Duration) (RequestDeduper, error) {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if addr == "" {
		return newMemoryRequestDeduper(ttl), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: pass,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return newMemoryRequestDeduper(ttl), err
	}

	return &redisRequestDeduper{
		client: client,
		prefix: "api:idem",
		ttl:    ttl,
	}, nil
}

// Idempotency drops repeat mutations carrying the same Idempotency-Key
// header. Requests without the header pass through; the order state machine's
// conditional updates remain the real guard.
func Idempotency(deduper RequestDeduper) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if deduper == nil {
				return next(c)
			}

			key := c.Request().Header.Get("Idempotency-Key")
			if key == "" {
				return next(c)
			}

			isDuplicate, err := deduper.Seen(c.Request().Context(), key)
			if err != nil {
				return next(c)
			}
			if isDuplicate {
				return c.JSON(http.StatusConflict, map[string]interface{}{
					"status": false,
					"msg":    "Duplicate request",
					"obj":    nil,
				})
			}

			return next(c)
		}
	}
}
