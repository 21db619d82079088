// Package fiscal maps (ticker, fiscal year, fiscal quarter) to calendar date
// ranges, preferring observed filing periods and falling back to month
// arithmetic from the fiscal-year-end month.
package fiscal

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidFYEMonth   = errors.New("fiscal: fye month must be 1..12")
	ErrContractViolation = errors.New("fiscal: fallback round-trip mismatch")
	ErrNoPeriod          = errors.New("fiscal: no such fiscal period")
)

// Quarter identifies a fiscal quarter or the full fiscal year.
type Quarter int

const (
	Q1 Quarter = iota + 1
	Q2
	Q3
	Q4
	FY
)

// Quarters lists every resolvable period kind.
func Quarters() []Quarter { return []Quarter{Q1, Q2, Q3, Q4, FY} }

func (q Quarter) String() string {
	switch q {
	case Q1, Q2, Q3, Q4:
		return "Q" + strconv.Itoa(int(q))
	case FY:
		return "FY"
	default:
		return fmt.Sprintf("Quarter(%d)", int(q))
	}
}

// Valid reports whether q is one of Q1..Q4 or FY.
func (q Quarter) Valid() bool { return q >= Q1 && q <= FY }

// Source records how a period was resolved.
type Source string

const (
	SourceLookup   Source = "lookup"
	SourceFallback Source = "fallback"
)

const dateLayout = "2006-01-02"

// Period is a resolved fiscal period. Start and End are civil dates at UTC midnight.
type Period struct {
	Start  time.Time
	End    time.Time
	ID     string
	Source Source
}

type periodJSON struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	PeriodID  string `json:"period_id"`
	Source    Source `json:"source"`
}

// MarshalJSON renders the period with date-only boundaries.
func (p Period) MarshalJSON() ([]byte, error) {
	return json.Marshal(periodJSON{
		StartDate: p.Start.Format(dateLayout),
		EndDate:   p.End.Format(dateLayout),
		PeriodID:  p.ID,
		Source:    p.Source,
	})
}

// KnownPeriod is an observed period boundary pair, usually from a filing.
// Dates are YYYY-MM-DD; a longer timestamp is truncated to its date.
type KnownPeriod struct {
	ID    string `json:"id"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// ParseLabel parses labels such as "2024Q1", "FY2024Q3", "2024-Q4" and "FY2024".
func ParseLabel(s string) (int, Quarter, error) {
	raw := strings.ToUpper(strings.TrimSpace(s))
	raw = strings.TrimPrefix(raw, "FY")
	raw = strings.ReplaceAll(raw, "-", "")
	raw = strings.ReplaceAll(raw, " ", "")

	yearPart, quarterPart, hasQuarter := strings.Cut(raw, "Q")
	year, err := strconv.Atoi(yearPart)
	if err != nil || year < 1900 || year > 2200 {
		return 0, 0, fmt.Errorf("%w: %q", ErrNoPeriod, s)
	}
	if !hasQuarter {
		return year, FY, nil
	}
	n, err := strconv.Atoi(quarterPart)
	if err != nil || n < 1 || n > 4 {
		return 0, 0, fmt.Errorf("%w: %q", ErrNoPeriod, s)
	}
	return year, Quarter(n), nil
}

// Label renders (year, quarter) in the form ParseLabel accepts.
func Label(year int, q Quarter) string {
	if q == FY {
		return fmt.Sprintf("FY%d", year)
	}
	return fmt.Sprintf("FY%d%s", year, q)
}

func civil(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func parseCivil(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func days(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

type kind int

const (
	kindNone kind = iota
	kindQuarter
	kindYear
)

const (
	quarterMinDays = 75
	quarterMaxDays = 120
	yearMinDays    = 340
	yearMaxDays    = 380
	slipDays       = 5
	q4MinSpanDays  = 60
)

func classifyDuration(d int) kind {
	switch {
	case d >= quarterMinDays && d <= quarterMaxDays:
		return kindQuarter
	case d >= yearMinDays && d <= yearMaxDays:
		return kindYear
	default:
		return kindNone
	}
}

// effectiveMonth applies the 52/53-week slip: an end date in the first days
// of a month belongs to the previous month.
func effectiveMonth(end time.Time) (int, time.Month) {
	y, m, d := end.Date()
	if d <= slipDays {
		if m == time.January {
			return y - 1, time.December
		}
		return y, m - 1
	}
	return y, m
}

// fiscalPosition returns the fiscal year named by its ending calendar year
// and the quarter that a period ending on end closes.
func fiscalPosition(end time.Time, fyeMonth int) (int, Quarter) {
	y, m := effectiveMonth(end)
	fy := y
	if int(m) > fyeMonth {
		fy = y + 1
	}
	off := (int(m) - fyeMonth + 12) % 12
	if off == 0 {
		off = 12
	}
	return fy, Quarter((off + 2) / 3)
}

// classify recomputes which fiscal period a start/end pair represents.
func classify(start, end time.Time, fyeMonth int) (int, Quarter, bool) {
	switch classifyDuration(days(start, end)) {
	case kindQuarter:
		fy, q := fiscalPosition(end, fyeMonth)
		return fy, q, true
	case kindYear:
		fy, _ := fiscalPosition(end, fyeMonth)
		return fy, FY, true
	default:
		return 0, 0, false
	}
}

func validFYE(fyeMonth int) error {
	if fyeMonth < 1 || fyeMonth > 12 {
		return fmt.Errorf("%w: got %d", ErrInvalidFYEMonth, fyeMonth)
	}
	return nil
}

// Fallback computes period boundaries from month arithmetic alone. The
// result is re-classified and must reproduce the request.
func Fallback(fiscalYear int, q Quarter, fyeMonth int) (Period, error) {
	if err := validFYE(fyeMonth); err != nil {
		return Period{}, err
	}
	if !q.Valid() {
		return Period{}, fmt.Errorf("%w: quarter %d", ErrNoPeriod, int(q))
	}

	// First day of the month after FYE, in the calendar year before the one
	// the fiscal year is named after (or January of it when FYE is December).
	fyStart := civil(fiscalYear-1, time.Month(fyeMonth)+1, 1)

	var start, end time.Time
	if q == FY {
		start = fyStart
		end = fyStart.AddDate(1, 0, -1)
	} else {
		start = fyStart.AddDate(0, 3*(int(q)-1), 0)
		end = start.AddDate(0, 3, -1)
	}

	gotYear, gotQuarter, ok := classify(start, end, fyeMonth)
	if !ok || gotYear != fiscalYear || gotQuarter != q {
		return Period{}, fmt.Errorf("%w: %s fye=%d produced %s..%s (classified %s)",
			ErrContractViolation, Label(fiscalYear, q), fyeMonth,
			start.Format(dateLayout), end.Format(dateLayout), Label(gotYear, gotQuarter))
	}

	return Period{
		Start:  start,
		End:    end,
		ID:     "fallback:" + Label(fiscalYear, q),
		Source: SourceFallback,
	}, nil
}
