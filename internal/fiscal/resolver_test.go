package fiscal

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSource struct {
	fye         map[string]int
	periods     map[string][]KnownPeriod
	err         error
	fyeCalls    atomic.Int32
	periodCalls atomic.Int32
	delay       time.Duration
}

func (f *fakeSource) FiscalYearEndMonth(_ context.Context, ticker string) (int, error) {
	f.fyeCalls.Add(1)
	time.Sleep(f.delay)
	if f.err != nil {
		return 0, f.err
	}
	return f.fye[ticker], nil
}

func (f *fakeSource) KnownPeriods(_ context.Context, ticker string, _ int) ([]KnownPeriod, error) {
	f.periodCalls.Add(1)
	time.Sleep(f.delay)
	if f.err != nil {
		return nil, f.err
	}
	return f.periods[ticker], nil
}

func TestResolver_UsesSourceThroughCache(t *testing.T) {
	src := &fakeSource{
		fye:     map[string]int{"AAPL": 9},
		periods: map[string][]KnownPeriod{"AAPL": septemberFiler},
	}
	r := NewResolver(zap.NewNop(), src, NewMemoryCache(0, 0))

	for i := 0; i < 3; i++ {
		p, err := r.ResolveFiscalPeriod(context.Background(), "AAPL", 2024, Q2, 0, nil)
		require.NoError(t, err)
		assert.Equal(t, "10q-2024-q2", p.ID)
	}
	assert.EqualValues(t, 1, src.fyeCalls.Load())
	assert.EqualValues(t, 1, src.periodCalls.Load())
}

func TestResolver_CallerPeriodsBypassSource(t *testing.T) {
	src := &fakeSource{periods: map[string][]KnownPeriod{"AAPL": septemberFiler}}
	r := NewResolver(zap.NewNop(), src, nil)

	p, err := r.ResolveFiscalPeriod(context.Background(), "AAPL", 2024, Q1, 12, []KnownPeriod{})
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, p.Source)
	assert.EqualValues(t, 0, src.periodCalls.Load())
}

func TestResolver_SourceFailureFallsBack(t *testing.T) {
	src := &fakeSource{err: errors.New("connection refused")}
	r := NewResolver(zap.NewNop(), src, nil)

	p, err := r.ResolveFiscalPeriod(context.Background(), "MSFT", 2024, Q3, 6, nil)
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, p.Source)
	assert.Equal(t, "2024-01-01", p.Start.Format(dateLayout))
}

func TestResolver_UnknownFYE(t *testing.T) {
	r := NewResolver(zap.NewNop(), nil, nil)
	_, err := r.ResolveFiscalPeriod(context.Background(), "MSFT", 2024, Q3, 0, nil)
	assert.ErrorIs(t, err, ErrInvalidFYEMonth)

	src := &fakeSource{fye: map[string]int{"ODD": 14}}
	r = NewResolver(zap.NewNop(), src, nil)
	_, err = r.ResolveFiscalPeriod(context.Background(), "ODD", 2024, Q3, 0, nil)
	assert.ErrorIs(t, err, ErrInvalidFYEMonth)
}

func TestResolver_SingleFlightPopulation(t *testing.T) {
	src := &fakeSource{fye: map[string]int{"NVDA": 1}, delay: 50 * time.Millisecond}
	r := NewResolver(zap.NewNop(), src, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := r.FYEMonth(context.Background(), "NVDA")
			assert.NoError(t, err)
			assert.Equal(t, 1, m)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, src.fyeCalls.Load(), int32(2))
}

func TestMemoryCache_CopiesPeriods(t *testing.T) {
	c := NewMemoryCache(0, 0)
	ps := []KnownPeriod{{ID: "a", Start: "2024-01-01", End: "2024-03-31"}}
	c.PutPeriods(context.Background(), "aapl", 9, ps)
	ps[0].ID = "mutated"

	got, ok := c.GetPeriods(context.Background(), "AAPL", 9)
	require.True(t, ok)
	assert.Equal(t, "a", got[0].ID)

	_, ok = c.GetPeriods(context.Background(), "AAPL", 12)
	assert.False(t, ok, "periods are keyed by fye month")
}

func newRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisCache(rdb, "", 0, zap.NewNop()), mr
}

func TestRedisCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t)
	defer mr.Close()

	_, ok := c.GetFYE(ctx, "AAPL")
	assert.False(t, ok)

	c.PutFYE(ctx, "aapl", 9)
	m, ok := c.GetFYE(ctx, "AAPL")
	require.True(t, ok)
	assert.Equal(t, 9, m)
	assert.True(t, mr.Exists("pit:fiscal:fye:AAPL"))

	c.PutPeriods(ctx, "AAPL", 9, septemberFiler)
	got, ok := c.GetPeriods(ctx, "AAPL", 9)
	require.True(t, ok)
	assert.Equal(t, septemberFiler, got)

	c.PutPeriods(ctx, "EMPTY", 12, nil)
	got, ok = c.GetPeriods(ctx, "EMPTY", 12)
	require.True(t, ok, "an empty scan is cached too")
	assert.Empty(t, got)
}

func TestRedisCache_TTL(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	c := NewRedisCache(rdb, "t:", time.Hour, zap.NewNop())
	c.PutFYE(context.Background(), "MSFT", 6)
	assert.Equal(t, time.Hour, mr.TTL("t:fye:MSFT"))
}

func TestRedisCache_UnavailableIsMiss(t *testing.T) {
	c, mr := newRedisCache(t)
	mr.Close()

	c.PutFYE(context.Background(), "AAPL", 9)
	_, ok := c.GetFYE(context.Background(), "AAPL")
	assert.False(t, ok)
}

func TestResolver_WithRedisCache(t *testing.T) {
	c, mr := newRedisCache(t)
	defer mr.Close()

	src := &fakeSource{
		fye:     map[string]int{"AAPL": 9},
		periods: map[string][]KnownPeriod{"AAPL": septemberFiler},
	}
	first := NewResolver(zap.NewNop(), src, c)
	_, err := first.ResolveFiscalPeriod(context.Background(), "AAPL", 2024, FY, 0, nil)
	require.NoError(t, err)

	// A second process sharing the same Redis sees the populated entries.
	second := NewResolver(zap.NewNop(), src, c)
	p, err := second.ResolveFiscalPeriod(context.Background(), "AAPL", 2024, FY, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, "10k-2024", p.ID)
	assert.EqualValues(t, 1, src.fyeCalls.Load())
	assert.EqualValues(t, 1, src.periodCalls.Load())
}

func TestResolver_WarmRefreshesCache(t *testing.T) {
	src := &fakeSource{
		fye:     map[string]int{"AAPL": 9},
		periods: map[string][]KnownPeriod{"AAPL": septemberFiler},
	}
	c := NewMemoryCache(0, 0)
	c.PutFYE(context.Background(), "AAPL", 12)
	r := NewResolver(zap.NewNop(), src, c)

	n, err := r.Warm(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, len(septemberFiler), n)

	m, err := r.FYEMonth(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 9, m, "stale entry overwritten")
	assert.EqualValues(t, 1, src.fyeCalls.Load())

	_, err = NewResolver(nil, nil, nil).Warm(context.Background(), "AAPL")
	assert.Error(t, err)

	src.err = errors.New("pg down")
	_, err = r.Warm(context.Background(), "AAPL")
	assert.ErrorContains(t, err, "pg down")
}
