package fundamentals

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/Checker-Finance/pitdata/internal/adapter"
	"github.com/Checker-Finance/pitdata/internal/fiscal"
	"github.com/Checker-Finance/pitdata/pkg/envelope"
	"github.com/Checker-Finance/pitdata/pkg/pit"
)

func fiscalQuarter(year int, period string) (fiscal.Quarter, error) {
	if period == "" {
		return 0, fmt.Errorf("%w: missing fiscal period", fiscal.ErrNoPeriod)
	}
	label := fmt.Sprintf("%d%s", year, period)
	if period == "FY" {
		label = fmt.Sprintf("FY%d", year)
	}
	_, q, err := fiscal.ParseLabel(label)
	return q, err
}

func pointFields(p EstimatePoint) map[string]any {
	return map[string]any{
		"eps_avg":     p.EPSAvg.String(),
		"revenue_avg": p.RevenueAvg.String(),
		"analysts":    p.NumAnalysts,
	}
}

// periodEnd takes the record's own period end, else resolves it from the
// fiscal calendar.
func (a *Adapter) periodEnd(ctx context.Context, ticker string, fyeMonth int, e Estimate, q fiscal.Quarter) (time.Time, error) {
	if e.PeriodEnd != "" {
		return pit.ParseDate(e.PeriodEnd)
	}
	if a.resolver == nil {
		return time.Time{}, fmt.Errorf("no period end and no fiscal calendar")
	}
	if e.Symbol != "" {
		ticker = e.Symbol
	}
	p, err := a.resolver.ResolveFiscalPeriod(ctx, ticker, e.FiscalYear, q, fyeMonth, nil)
	if err != nil {
		return time.Time{}, err
	}
	return p.End, nil
}

// estimateRecord normalizes one consensus record. With a cutoff only the
// coarse bucket selected for it is surfaced; every fresher snapshot and the
// current value are withheld.
func (a *Adapter) estimateRecord(ctx context.Context, query adapter.Query, e Estimate, fetchedAt time.Time) (adapter.Record, error) {
	q, err := fiscalQuarter(e.FiscalYear, e.FiscalPeriod)
	if err != nil {
		return adapter.Record{}, adapter.Skip(envelope.GapUnverifiable, "estimate period: %v", err)
	}
	label := fiscal.Label(e.FiscalYear, q)
	key := "est:" + label

	if query.Cutoff == nil {
		at := fetchedAt
		if e.UpdatedAt != "" {
			if t, err := pit.ParseAssumeMarket(e.UpdatedAt); err == nil {
				at = t
			}
		}
		if at.IsZero() {
			return adapter.Record{}, adapter.Skip(envelope.GapUnverifiable, "estimate %s without update time", label)
		}
		fields := pointFields(e.Current)
		fields["fiscal_period"] = label
		fields["bucket"] = "current"
		if e.PeriodEnd != "" {
			fields["period_end"] = e.PeriodEnd
		}
		offsets := make([]int, 0, len(e.Snapshots))
		for d := range e.Snapshots {
			offsets = append(offsets, d)
		}
		sort.Sort(sort.Reverse(sort.IntSlice(offsets)))
		revisions := make(map[string]any, len(offsets))
		for _, d := range offsets {
			revisions[strconv.Itoa(d)+"d"] = pointFields(e.Snapshots[d])
		}
		fields["revisions"] = revisions
		return adapter.Record{
			Key:         key,
			Fields:      fields,
			AvailableAt: at,
			Source:      envelope.SourceProviderMetadata,
			Precision:   adapter.PrecisionInstant,
		}, nil
	}

	end, err := a.periodEnd(ctx, query.Ticker, query.FYEMonth, e, q)
	if err != nil {
		return adapter.Record{}, adapter.Skip(envelope.GapUnverifiable, "estimate %s: %v", label, err)
	}
	b, ok := SelectBucket(end, *query.Cutoff, Offsets)
	if !ok {
		return adapter.Record{}, adapter.Skip(envelope.GapPITExcluded,
			"estimate period ends more than %d days after cutoff; outside approximation range", Offsets[0])
	}
	point := e.Current
	if !b.Final() {
		p, found := e.Snapshots[b.Offset]
		if !found {
			return adapter.Record{}, adapter.Skip(envelope.GapUnverifiable, "estimate %s has no %s snapshot", label, b.Label())
		}
		point = p
	}

	fields := pointFields(point)
	fields["fiscal_period"] = label
	fields["period_end"] = end.Format("2006-01-02")
	fields["bucket"] = b.Label()
	fields["anchor_date"] = b.Anchor.Format("2006-01-02")
	fields["approximation"] = "coarse_bucket"
	return adapter.Record{
		Key:         key,
		Fields:      fields,
		AvailableAt: b.Anchor,
		Source:      envelope.SourceTimeSeriesTimestamp,
		Precision:   adapter.PrecisionInstant,
	}, nil
}
