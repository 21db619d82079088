package fundamentals

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Checker-Finance/pitdata/internal/adapter"
	"github.com/Checker-Finance/pitdata/pkg/envelope"
	"github.com/Checker-Finance/pitdata/pkg/pit"
)

type availability struct {
	at        time.Time
	precision adapter.Precision
}

// reportAvailability prefers the acceptance timestamp and falls back to the
// filing day.
func reportAvailability(r Report) (availability, bool) {
	if r.AcceptedDate != "" {
		if t, err := pit.ParseAssumeMarket(r.AcceptedDate); err == nil {
			return availability{at: t, precision: adapter.PrecisionInstant}, true
		}
	}
	if r.FilingDate != "" {
		if t, err := pit.ParseDate(firstDay(r.FilingDate)); err == nil {
			return availability{at: t, precision: adapter.PrecisionDate}, true
		}
	}
	return availability{}, false
}

func firstDay(s string) string {
	if len(s) > 10 {
		return s[:10]
	}
	return s
}

func reportLabel(r Report) string {
	if r.Annual() {
		return fmt.Sprintf("FY%d", r.FiscalYear)
	}
	return fmt.Sprintf("FY%d%s", r.FiscalYear, r.Period)
}

func reportFields(r Report) map[string]any {
	return map[string]any{
		"fiscal_period": reportLabel(r),
		"period_end":    firstDay(r.Date),
		"revenue":       r.Revenue.String(),
		"net_income":    r.NetIncome.String(),
		"eps":           r.EPS.String(),
	}
}

func quarterRecord(r Report) (adapter.Record, error) {
	av, ok := reportAvailability(r)
	if !ok {
		return adapter.Record{}, adapter.Skip(envelope.GapUnverifiable, "report %s without filing time", reportLabel(r))
	}
	f := reportFields(r)
	if r.AcceptedDate != "" {
		f["accepted_at"] = pit.ToCanonicalZoneISO(av.at)
	}
	return adapter.Record{
		Key:         "fin:" + reportLabel(r) + ":" + firstDay(r.Date),
		Fields:      f,
		AvailableAt: av.at,
		Source:      envelope.SourceFilingAcceptance,
		Precision:   av.precision,
	}, nil
}

// siblingIndex maps period-end days to the availability of the quarterly
// report ending that day.
func siblingIndex(quarterly []Report) map[string]availability {
	idx := make(map[string]availability, len(quarterly))
	for _, r := range quarterly {
		if av, ok := reportAvailability(r); ok {
			day := firstDay(r.Date)
			if cur, seen := idx[day]; !seen || av.at.Before(cur.at) {
				idx[day] = av
			}
		}
	}
	return idx
}

// annualRecord takes its availability from the quarter that closes the same
// fiscal year. The annual record's own dates are not trusted.
func annualRecord(r Report, siblings map[string]availability) (adapter.Record, error) {
	day := firstDay(r.Date)
	av, ok := siblings[day]
	if !ok {
		return adapter.Record{}, adapter.Skip(envelope.GapUnverifiable,
			"annual report without a quarterly sibling ending %s", day)
	}
	f := reportFields(r)
	f["availability_from"] = "quarter_ending_" + day
	return adapter.Record{
		Key:         "fin:" + reportLabel(r) + ":" + day,
		Fields:      f,
		AvailableAt: av.at,
		Source:      envelope.SourceFilingAcceptance,
		Precision:   av.precision,
	}, nil
}

// ttmRecord sums the latest four quarters. The result is synthesized and only
// served in open mode.
func ttmRecord(quarterly []Report) (adapter.Record, error) {
	type dated struct {
		r  Report
		av availability
	}
	var rows []dated
	for _, r := range quarterly {
		if r.Annual() {
			continue
		}
		if av, ok := reportAvailability(r); ok {
			rows = append(rows, dated{r, av})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return firstDay(rows[i].r.Date) > firstDay(rows[j].r.Date) })
	if len(rows) < 4 {
		return adapter.Record{}, adapter.Skip(envelope.GapUnverifiable, "ttm needs four dated quarters, have %d", len(rows))
	}
	rows = rows[:4]

	revenue, income, eps := decimal.Zero, decimal.Zero, decimal.Zero
	latest := rows[0].av
	precision := adapter.PrecisionInstant
	quarters := make([]string, 0, 4)
	for _, row := range rows {
		revenue = revenue.Add(row.r.Revenue)
		income = income.Add(row.r.NetIncome)
		eps = eps.Add(row.r.EPS)
		if row.av.at.After(latest.at) {
			latest = row.av
		}
		if row.av.precision == adapter.PrecisionDate {
			precision = adapter.PrecisionDate
		}
		quarters = append(quarters, reportLabel(row.r))
	}
	asOf := firstDay(rows[0].r.Date)
	return adapter.Record{
		Key: "ttm:" + asOf,
		Fields: map[string]any{
			"fiscal_period": "TTM",
			"period_end":    asOf,
			"revenue":       revenue.String(),
			"net_income":    income.String(),
			"eps":           eps.String(),
			"quarters":      quarters,
		},
		AvailableAt: latest.at,
		Source:      envelope.SourceFilingAcceptance,
		Precision:   precision,
		Aggregated:  true,
	}, nil
}

// calendarRecord lists a scheduled release. Calendars are forward-looking
// snapshots and are served in open mode only.
func calendarRecord(e CalendarEntry, fetchedAt time.Time) (adapter.Record, error) {
	at, precision := fetchedAt, adapter.PrecisionInstant
	if e.UpdatedFromDate != "" {
		if t, err := pit.ParseDate(firstDay(e.UpdatedFromDate)); err == nil {
			at, precision = t, adapter.PrecisionDate
		}
	}
	if at.IsZero() {
		return adapter.Record{}, adapter.Skip(envelope.GapUnverifiable, "calendar entry %s without update time", e.Date)
	}
	f := map[string]any{
		"symbol":             e.Symbol,
		"date":               e.Date,
		"time":               e.Time,
		"fiscal_date_ending": e.FiscalDateEnding,
	}
	if e.EPSEstimated.Valid {
		f["eps_estimated"] = e.EPSEstimated.Decimal.String()
	}
	return adapter.Record{
		Key:           "cal:" + e.Symbol + ":" + e.Date,
		Fields:        f,
		AvailableAt:   at,
		Source:        envelope.SourceProviderMetadata,
		Precision:     precision,
		ModeSensitive: true,
	}, nil
}
