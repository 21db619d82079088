package fiscal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Checker-Finance/pitdata/pkg/cache"
)

// Cache holds FYE months per ticker and scanned period lists per (ticker, fye).
// Entries are keyed by immutable inputs; writes are idempotent.
type Cache interface {
	GetFYE(ctx context.Context, ticker string) (int, bool)
	PutFYE(ctx context.Context, ticker string, month int)
	GetPeriods(ctx context.Context, ticker string, fyeMonth int) ([]KnownPeriod, bool)
	PutPeriods(ctx context.Context, ticker string, fyeMonth int, periods []KnownPeriod)
}

func fyeKey(ticker string) string {
	return "fye:" + strings.ToUpper(ticker)
}

func periodsKey(ticker string, fyeMonth int) string {
	return "periods:" + strings.ToUpper(ticker) + ":" + strconv.Itoa(fyeMonth)
}

// MemoryCache is an in-process Cache. Lifetime and size are chosen by the owner.
type MemoryCache struct {
	fye     *cache.Cache[int]
	periods *cache.Cache[[]KnownPeriod]
}

// NewMemoryCache creates a cache; ttl <= 0 keeps entries for the process
// lifetime and maxEntries <= 0 leaves each map unbounded.
func NewMemoryCache(ttl time.Duration, maxEntries int) *MemoryCache {
	return &MemoryCache{
		fye:     cache.New[int](ttl, maxEntries),
		periods: cache.New[[]KnownPeriod](ttl, maxEntries),
	}
}

func (m *MemoryCache) GetFYE(_ context.Context, ticker string) (int, bool) {
	return m.fye.Get(fyeKey(ticker))
}

func (m *MemoryCache) PutFYE(_ context.Context, ticker string, month int) {
	m.fye.Put(fyeKey(ticker), month)
}

func (m *MemoryCache) GetPeriods(_ context.Context, ticker string, fyeMonth int) ([]KnownPeriod, bool) {
	return m.periods.Get(periodsKey(ticker, fyeMonth))
}

func (m *MemoryCache) PutPeriods(_ context.Context, ticker string, fyeMonth int, periods []KnownPeriod) {
	cp := make([]KnownPeriod, len(periods))
	copy(cp, periods)
	m.periods.Put(periodsKey(ticker, fyeMonth), cp)
}

// RedisCache shares fiscal entries between processes. Redis failures are
// logged and treated as misses.
type RedisCache struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisCache wraps an existing client. ttl 0 stores entries without expiry.
func NewRedisCache(rdb redis.UniversalClient, prefix string, ttl time.Duration, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix == "" {
		prefix = "pit:fiscal:"
	}
	return &RedisCache{rdb: rdb, prefix: prefix, ttl: ttl, logger: logger}
}

// DialRedis connects and pings a Redis server.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

func (r *RedisCache) setJSON(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		r.logger.Warn("fiscal.cache.encode_failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := r.rdb.Set(ctx, r.prefix+key, data, r.ttl).Err(); err != nil {
		r.logger.Warn("fiscal.cache.set_failed", zap.String("key", key), zap.Error(err))
	}
}

func (r *RedisCache) getJSON(ctx context.Context, key string, dest any) bool {
	data, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("fiscal.cache.get_failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		r.logger.Warn("fiscal.cache.decode_failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (r *RedisCache) GetFYE(ctx context.Context, ticker string) (int, bool) {
	var month int
	if !r.getJSON(ctx, fyeKey(ticker), &month) {
		return 0, false
	}
	return month, true
}

func (r *RedisCache) PutFYE(ctx context.Context, ticker string, month int) {
	r.setJSON(ctx, fyeKey(ticker), month)
}

func (r *RedisCache) GetPeriods(ctx context.Context, ticker string, fyeMonth int) ([]KnownPeriod, bool) {
	var periods []KnownPeriod
	if !r.getJSON(ctx, periodsKey(ticker, fyeMonth), &periods) {
		return nil, false
	}
	return periods, true
}

func (r *RedisCache) PutPeriods(ctx context.Context, ticker string, fyeMonth int, periods []KnownPeriod) {
	if periods == nil {
		periods = []KnownPeriod{}
	}
	r.setJSON(ctx, periodsKey(ticker, fyeMonth), periods)
}
