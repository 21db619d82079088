package fiscal

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Checker-Finance/pitdata/internal/metrics"
)

// PeriodSource is the external store of historical filing periods.
type PeriodSource interface {
	FiscalYearEndMonth(ctx context.Context, ticker string) (int, error)
	KnownPeriods(ctx context.Context, ticker string, fyeMonth int) ([]KnownPeriod, error)
}

// Resolver resolves fiscal periods, loading observed periods through a
// caller-owned cache. Population is single-flight per key.
type Resolver struct {
	logger *zap.Logger
	source PeriodSource
	cache  Cache
	group  singleflight.Group
}

// NewResolver builds a resolver. source may be nil, in which case only
// caller-supplied periods and the fallback are used. A nil cache gets a
// process-lifetime MemoryCache.
func NewResolver(logger *zap.Logger, source PeriodSource, c Cache) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if c == nil {
		c = NewMemoryCache(0, 0)
	}
	return &Resolver{logger: logger, source: source, cache: c}
}

// ResolveFiscalPeriod maps (ticker, fiscal year, quarter) to calendar dates.
// fyeMonth 0 means unknown and is looked up from the period source. known,
// when non-nil, replaces the source's period list.
func (r *Resolver) ResolveFiscalPeriod(
	ctx context.Context,
	ticker string,
	fiscalYear int,
	q Quarter,
	fyeMonth int,
	known []KnownPeriod,
) (Period, error) {
	if fyeMonth == 0 {
		m, err := r.FYEMonth(ctx, ticker)
		if err != nil {
			return Period{}, err
		}
		fyeMonth = m
	}
	if err := validFYE(fyeMonth); err != nil {
		return Period{}, err
	}

	if known == nil && r.source != nil && ticker != "" {
		periods, err := r.periods(ctx, ticker, fyeMonth)
		if err != nil {
			r.logger.Warn("fiscal.periods_unavailable",
				zap.String("ticker", ticker),
				zap.Int("fye_month", fyeMonth),
				zap.Error(err))
		}
		known = periods
	}

	p, err := Resolve(known, fiscalYear, q, fyeMonth)
	if err != nil {
		return Period{}, err
	}
	r.logger.Debug("fiscal.resolved",
		zap.String("ticker", ticker),
		zap.String("period", Label(fiscalYear, q)),
		zap.String("source", string(p.Source)),
		zap.String("id", p.ID))
	return p, nil
}

// FYEMonth returns the fiscal-year-end month of ticker via the cache.
func (r *Resolver) FYEMonth(ctx context.Context, ticker string) (int, error) {
	if m, ok := r.cache.GetFYE(ctx, ticker); ok {
		metrics.IncFiscalCache("fye", "hit")
		return m, nil
	}
	metrics.IncFiscalCache("fye", "miss")
	if r.source == nil {
		return 0, fmt.Errorf("%w: unknown for %s and no period source", ErrInvalidFYEMonth, ticker)
	}

	v, err, _ := r.group.Do(fyeKey(ticker), func() (any, error) {
		m, err := r.source.FiscalYearEndMonth(ctx, ticker)
		if err != nil {
			return 0, fmt.Errorf("fye lookup for %s: %w", ticker, err)
		}
		if err := validFYE(m); err != nil {
			return 0, err
		}
		r.cache.PutFYE(ctx, ticker, m)
		return m, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

func (r *Resolver) periods(ctx context.Context, ticker string, fyeMonth int) ([]KnownPeriod, error) {
	if ps, ok := r.cache.GetPeriods(ctx, ticker, fyeMonth); ok {
		metrics.IncFiscalCache("periods", "hit")
		return ps, nil
	}
	metrics.IncFiscalCache("periods", "miss")

	v, err, _ := r.group.Do(periodsKey(ticker, fyeMonth), func() (any, error) {
		ps, err := r.source.KnownPeriods(ctx, ticker, fyeMonth)
		if err != nil {
			return nil, fmt.Errorf("period scan for %s: %w", ticker, err)
		}
		r.cache.PutPeriods(ctx, ticker, fyeMonth, ps)
		return ps, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]KnownPeriod), nil
}

// Warm reloads ticker's fiscal-year end and observed periods from the source
// and overwrites the cached entries. It returns the number of periods loaded.
func (r *Resolver) Warm(ctx context.Context, ticker string) (int, error) {
	if r.source == nil {
		return 0, fmt.Errorf("warm %s: no period source", ticker)
	}
	m, err := r.source.FiscalYearEndMonth(ctx, ticker)
	if err != nil {
		return 0, fmt.Errorf("fye lookup for %s: %w", ticker, err)
	}
	if err := validFYE(m); err != nil {
		return 0, err
	}
	ps, err := r.source.KnownPeriods(ctx, ticker, m)
	if err != nil {
		return 0, fmt.Errorf("period scan for %s: %w", ticker, err)
	}
	r.cache.PutFYE(ctx, ticker, m)
	r.cache.PutPeriods(ctx, ticker, m, ps)
	return len(ps), nil
}
