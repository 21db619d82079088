package fiscal

import (
	"sort"
	"time"
)

type candidate struct {
	id      string
	start   time.Time
	end     time.Time
	year    int
	quarter Quarter
	kind    kind
}

func (c candidate) duration() int { return days(c.start, c.end) }

func (c candidate) period() Period {
	return Period{Start: c.start, End: c.end, ID: c.id, Source: SourceLookup}
}

// candidates parses and classifies known periods. Malformed, inverted and
// unclassifiable entries are dropped.
func candidates(known []KnownPeriod, fyeMonth int) []candidate {
	out := make([]candidate, 0, len(known))
	for _, k := range known {
		start, ok := parseCivil(k.Start)
		if !ok {
			continue
		}
		end, ok := parseCivil(k.End)
		if !ok || !end.After(start) {
			continue
		}
		fy, q, ok := classify(start, end, fyeMonth)
		if !ok {
			continue
		}
		out = append(out, candidate{
			id:      k.ID,
			start:   start,
			end:     end,
			year:    fy,
			quarter: q,
			kind:    classifyDuration(days(start, end)),
		})
	}
	return out
}

// rank orders matches by distance to the reference period: end, then start,
// then duration; remaining ties go to the latest end and then the lowest id.
func rank(cs []candidate, ref Period) {
	refDur := days(ref.Start, ref.End)
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if da, db := absInt(days(ref.End, a.end)), absInt(days(ref.End, b.end)); da != db {
			return da < db
		}
		if da, db := absInt(days(ref.Start, a.start)), absInt(days(ref.Start, b.start)); da != db {
			return da < db
		}
		if da, db := absInt(a.duration()-refDur), absInt(b.duration()-refDur); da != db {
			return da < db
		}
		if !a.end.Equal(b.end) {
			return a.end.After(b.end)
		}
		return a.id < b.id
	})
}

func best(cs []candidate, ref Period, keep func(candidate) bool) (candidate, bool) {
	var matches []candidate
	for _, c := range cs {
		if keep(c) {
			matches = append(matches, c)
		}
	}
	if len(matches) == 0 {
		return candidate{}, false
	}
	rank(matches, ref)
	return matches[0], true
}

// Lookup resolves a period from observed boundaries. ref is the fallback
// period for the same request and anchors the tie-break.
func Lookup(known []KnownPeriod, fiscalYear int, q Quarter, fyeMonth int, ref Period) (Period, bool) {
	cs := candidates(known, fyeMonth)
	if len(cs) == 0 {
		return Period{}, false
	}
	if q == Q4 {
		return lookupQ4(cs, fiscalYear, fyeMonth, ref)
	}
	c, ok := best(cs, ref, func(c candidate) bool {
		return c.year == fiscalYear && c.quarter == q
	})
	if !ok {
		return Period{}, false
	}
	return c.period(), true
}

// lookupQ4 handles companies that report the fourth quarter only inside the
// annual filing.
func lookupQ4(cs []candidate, fiscalYear, fyeMonth int, ref Period) (Period, bool) {
	isQuarter := func(c candidate) bool { return c.kind == kindQuarter && c.year == fiscalYear }

	fyRef, err := Fallback(fiscalYear, FY, fyeMonth)
	if err != nil {
		fyRef = ref
	}
	annual, hasAnnual := best(cs, fyRef, func(c candidate) bool {
		return c.kind == kindYear && c.year == fiscalYear
	})
	if !hasAnnual {
		c, ok := best(cs, ref, func(c candidate) bool { return isQuarter(c) && c.quarter == Q4 })
		if !ok {
			return Period{}, false
		}
		return c.period(), true
	}

	if c, ok := best(cs, ref, func(c candidate) bool {
		return isQuarter(c) && c.end.Equal(annual.end)
	}); ok {
		return c.period(), true
	}

	q3Ref, err := Fallback(fiscalYear, Q3, fyeMonth)
	if err != nil {
		q3Ref = ref
	}
	if q3, ok := best(cs, q3Ref, func(c candidate) bool { return isQuarter(c) && c.quarter == Q3 }); ok {
		start := q3.end.AddDate(0, 0, 1)
		if days(start, annual.end) >= q4MinSpanDays {
			return Period{Start: start, End: annual.end, ID: annual.id + "#Q4", Source: SourceLookup}, true
		}
	}

	length := inferQuarterLength(cs, fiscalYear, annual)
	return Period{
		Start:  annual.end.AddDate(0, 0, -length),
		End:    annual.end,
		ID:     annual.id + "#Q4",
		Source: SourceLookup,
	}, true
}

// inferQuarterLength averages sibling Q1..Q3 durations, or splits the annual
// period in four, clamped to the quarter-like range.
func inferQuarterLength(cs []candidate, fiscalYear int, annual candidate) int {
	total, n := 0, 0
	for _, c := range cs {
		if c.kind == kindQuarter && c.year == fiscalYear && c.quarter != Q4 {
			total += c.duration()
			n++
		}
	}
	length := annual.duration() / 4
	if n > 0 {
		length = (total + n/2) / n
	}
	if length < quarterMinDays {
		length = quarterMinDays
	}
	if length > quarterMaxDays {
		length = quarterMaxDays
	}
	return length
}

// Resolve runs lookup over known periods and falls back to month arithmetic.
func Resolve(known []KnownPeriod, fiscalYear int, q Quarter, fyeMonth int) (Period, error) {
	ref, err := Fallback(fiscalYear, q, fyeMonth)
	if err != nil {
		return Period{}, err
	}
	if p, ok := Lookup(known, fiscalYear, q, fyeMonth, ref); ok {
		return p, nil
	}
	return ref, nil
}
