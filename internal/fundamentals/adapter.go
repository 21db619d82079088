// Package fundamentals adapts a provider of periodic financial snapshots:
// consensus estimates, reported statements and earnings calendars.
//
// Estimates carry no publish time. They are served with a cutoff through the
// coarse bucket approximation: the snapshot taken at a fixed offset before
// period end that is no later than the cutoff's day.
package fundamentals

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/pitdata/internal/adapter"
	"github.com/Checker-Finance/pitdata/internal/fiscal"
	"github.com/Checker-Finance/pitdata/pkg/envelope"
)

// Kinds.
const (
	KindEstimates  = "estimates"
	KindFinancials = "financials"
	KindCalendar   = "calendar"
	KindTTM        = "ttm"
)

// MaxLimit is the provider's ceiling on records per request.
const MaxLimit = 120

// Adapter serves fundamentals.
type Adapter struct {
	client   *Client
	creds    adapter.CredentialSource
	opts     adapter.HTTPOptions
	resolver *fiscal.Resolver
	logger   *zap.Logger
	now      func() time.Time
}

// NewAdapter builds the fundamentals adapter. resolver supplies period ends
// for estimates that lack one; it may be nil.
func NewAdapter(client *Client, creds adapter.CredentialSource, opts adapter.HTTPOptions, resolver *fiscal.Resolver, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{client: client, creds: creds, opts: opts, resolver: resolver, logger: logger, now: time.Now}
}

func (a *Adapter) Source() adapter.Source { return adapter.Fundamentals }

type periodFilter struct {
	year    int
	quarter fiscal.Quarter
}

func (f *periodFilter) match(year int, period string) bool {
	if f == nil {
		return true
	}
	q, err := fiscalQuarter(year, period)
	return err == nil && year == f.year && q == f.quarter
}

// Fetch implements adapter.Adapter.
func (a *Adapter) Fetch(ctx context.Context, q adapter.Query) envelope.Envelope {
	c := adapter.NewCollector(q)

	kind := q.Kind
	if kind == "" {
		kind = KindEstimates
	}
	switch kind {
	case KindEstimates, KindFinancials, KindCalendar, KindTTM:
	default:
		c.Gap(envelope.GapInputError, "unknown fundamentals kind %q", kind)
		return c.Envelope()
	}

	var filter *periodFilter
	if q.FiscalPeriod != "" {
		year, quarter, err := fiscal.ParseLabel(q.FiscalPeriod)
		if err != nil {
			c.Gap(envelope.GapInputError, "fiscal period: %v", err)
			return c.Envelope()
		}
		filter = &periodFilter{year: year, quarter: quarter}
	}

	var data Fixture
	var fetchedAt time.Time
	if q.InputFile != "" {
		if err := adapter.LoadFixture(q.InputFile, FixtureSchema, &data); err != nil {
			c.Fail("fundamentals fixture", err)
			return c.Envelope()
		}
	} else {
		if q.Ticker == "" {
			c.Gap(envelope.GapInputError, "fundamentals requires --ticker")
			return c.Envelope()
		}
		fetchedAt = a.now()
		if err := a.load(ctx, q, kind, &data); err != nil {
			a.logger.Warn("fundamentals.fetch_failed", zap.String("kind", kind), zap.Error(err))
			c.Fail("fundamentals "+kind, err)
			return c.Envelope()
		}
	}

	switch kind {
	case KindEstimates:
		for _, e := range data.Estimates {
			if !filter.match(e.FiscalYear, e.FiscalPeriod) {
				continue
			}
			c.Add(a.estimateRecord(ctx, q, e, fetchedAt))
		}
	case KindFinancials:
		siblings := siblingIndex(data.Quarterly)
		for _, r := range data.Quarterly {
			if filter.match(r.FiscalYear, r.Period) {
				c.Add(quarterRecord(r))
			}
		}
		for _, r := range data.Annual {
			if filter.match(r.FiscalYear, r.Period) {
				c.Add(annualRecord(r, siblings))
			}
		}
	case KindTTM:
		c.Add(ttmRecord(data.Quarterly))
	case KindCalendar:
		for _, e := range data.Calendar {
			c.Add(calendarRecord(e, fetchedAt))
		}
	}
	return c.Envelope()
}

func (a *Adapter) load(ctx context.Context, q adapter.Query, kind string, data *Fixture) error {
	creds, err := a.creds.Resolve(ctx, "fundamentals")
	if err != nil {
		return fmt.Errorf("credentials: %w", err)
	}
	base := adapter.ResolveBase(a.opts.BaseURL, creds)
	limit, _ := a.opts.Paging(q, MaxLimit)

	switch kind {
	case KindEstimates:
		data.Estimates, err = a.client.Estimates(ctx, base, creds.APIKey, q.Ticker, limit)
	case KindFinancials:
		if data.Quarterly, err = a.client.Reports(ctx, base, creds.APIKey, q.Ticker, "quarter", limit); err != nil {
			return err
		}
		data.Annual, err = a.client.Reports(ctx, base, creds.APIKey, q.Ticker, "annual", limit)
	case KindTTM:
		data.Quarterly, err = a.client.Reports(ctx, base, creds.APIKey, q.Ticker, "quarter", 8)
	case KindCalendar:
		data.Calendar, err = a.client.Calendar(ctx, base, creds.APIKey, q.Ticker)
	}
	return err
}
