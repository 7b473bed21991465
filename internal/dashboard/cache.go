package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/campusdesk/campusdesk/internal/debounce"
)

// InvalidationChannel carries institution ids whose data changed upstream.
const InvalidationChannel = "campusdesk.invalidate"

// CacheObserver receives cache hit/miss notifications.
type CacheObserver interface {
	CacheLookup(cache string, hit bool)
}

// Cache stores upstream datasets in redis under a per-institution version.
// Bumping the version orphans every key of that institution.
type Cache struct {
	client   *redis.Client
	ttl      time.Duration
	observer CacheObserver
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration, observer CacheObserver) *Cache {
	return &Cache{client: client, ttl: ttl, observer: observer}
}

func versionKey(institution string) string {
	return "dashboard:version:" + institution
}

// Version returns the institution's cache version, initialising it when missing.
func (c *Cache) Version(ctx context.Context, institution string) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	key := versionKey(institution)
	ver, err := c.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) || (err == nil && ver <= 0) {
		if err := c.client.SetNX(ctx, key, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, key).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// BuildKey composes a dataset key carrying the institution's current version.
func (c *Cache) BuildKey(ctx context.Context, institution string, parts ...string) (string, error) {
	ver, err := c.Version(ctx, institution)
	if err != nil {
		return "", err
	}
	all := append([]string{"dashboard", institution}, parts...)
	all = append(all, strconv.FormatInt(ver, 10))
	return strings.Join(all, ":"), nil
}

// FetchJSON loads a cached value into dest or populates it using loader.
// The label names the dataset for metrics.
func (c *Cache) FetchJSON(ctx context.Context, label, key string, dest interface{}, loader func(context.Context) (interface{}, error)) error {
	if loader == nil {
		return errors.New("dashboard cache: loader required")
	}
	if c == nil || c.client == nil {
		return loadInto(ctx, dest, loader)
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		c.observe(label, true)
		return json.Unmarshal(payload, dest)
	}
	if !errors.Is(err, redis.Nil) {
		return err
	}
	c.observe(label, false)
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func loadInto(ctx context.Context, dest interface{}, loader func(context.Context) (interface{}, error)) error {
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func (c *Cache) observe(label string, hit bool) {
	if c.observer != nil {
		c.observer.CacheLookup(label, hit)
	}
}

// Bump invalidates every dataset of the institution.
func (c *Cache) Bump(ctx context.Context, institution string) error {
	if c == nil || c.client == nil || institution == "" {
		return nil
	}
	return c.client.Incr(ctx, versionKey(institution)).Err()
}

// ListenForInvalidation subscribes to InvalidationChannel and bumps the
// version of each announced institution once its burst of announcements has
// been quiet for window. It returns once the subscription is established and
// stops when ctx is done.
func (c *Cache) ListenForInvalidation(ctx context.Context, window time.Duration, logger *slog.Logger, opts ...debounce.Option) error {
	if c == nil || c.client == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	pubsub := c.client.Subscribe(ctx, InvalidationChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}

	var mu sync.Mutex
	pending := make(map[string]*debounce.Debouncer[string])
	bump := func(institution string) {
		if err := c.Bump(context.WithoutCancel(ctx), institution); err != nil {
			logger.Warn("cache bump", slog.String("institution", institution), slog.Any("error", err))
		}
	}

	go func() {
		defer func() {
			_ = pubsub.Close()
			mu.Lock()
			for _, d := range pending {
				d.Stop()
			}
			mu.Unlock()
		}()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				institution := strings.TrimSpace(msg.Payload)
				if institution == "" {
					continue
				}
				mu.Lock()
				d, exists := pending[institution]
				if !exists {
					d = debounce.New(window, bump, opts...)
					pending[institution] = d
				}
				mu.Unlock()
				d.Trigger(institution)
			}
		}
	}()
	return nil
}
