package adapter

import (
	"errors"
	"fmt"
	"time"

	"github.com/Checker-Finance/pitdata/internal/secrets"
	"github.com/Checker-Finance/pitdata/pkg/envelope"
	"github.com/Checker-Finance/pitdata/pkg/pit"
)

// Precision is the granularity of a record's availability timestamp.
type Precision int

const (
	// PrecisionInstant: strict greater-than comparison against the cutoff.
	PrecisionInstant Precision = iota
	// PrecisionDate: the cutoff's market-local day is excluded entirely.
	PrecisionDate
)

// Record is one normalized provider record.
type Record struct {
	Key         string
	Fields      map[string]any
	AvailableAt time.Time
	Source      envelope.Source
	Precision   Precision

	// Aggregated marks items synthesized from several raw records.
	Aggregated bool
	// ModeSensitive marks forward-looking record types that are never
	// point-in-time verifiable.
	ModeSensitive bool
}

// SkipError drops a record with a gap of the given type.
type SkipError struct {
	Type   envelope.GapType
	Reason string
}

func (e *SkipError) Error() string { return string(e.Type) + ": " + e.Reason }

// Skip builds a SkipError.
func Skip(t envelope.GapType, format string, args ...any) error {
	return &SkipError{Type: t, Reason: fmt.Sprintf(format, args...)}
}

type gapEntry struct {
	gap   envelope.Gap
	count int
}

// Collector accumulates records for one fetch. It applies, in order: the
// mode checks, the cutoff filter, dedupe by key and the result limit.
// Per-record problems are counted and flushed as one gap per type.
type Collector struct {
	cutoff  *time.Time
	limit   int
	items   []envelope.Item
	seen    map[string]struct{}
	entries []*gapEntry
	counted map[envelope.GapType]*gapEntry
}

// NewCollector creates a collector for q.
func NewCollector(q Query) *Collector {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Collector{
		cutoff:  q.Cutoff,
		limit:   limit,
		seen:    make(map[string]struct{}),
		counted: make(map[envelope.GapType]*gapEntry),
	}
}

// Full reports whether the limit has been reached.
func (c *Collector) Full() bool { return len(c.items) >= c.limit }

// Len returns the number of accepted items.
func (c *Collector) Len() int { return len(c.items) }

// Add offers one normalization result. err, when set, is counted as a gap
// (its SkipError type, else unverifiable) and the record is dropped.
// It reports whether the record was accepted.
func (c *Collector) Add(rec Record, err error) bool {
	if err != nil {
		var skip *SkipError
		if errors.As(err, &skip) {
			c.count(skip.Type, skip.Reason)
		} else {
			c.count(envelope.GapUnverifiable, err.Error())
		}
		return false
	}

	if c.cutoff != nil {
		if rec.Aggregated {
			c.count(envelope.GapUnverifiable, "synthesized across records; not point-in-time verifiable")
			return false
		}
		if rec.ModeSensitive {
			c.count(envelope.GapUnverifiable, "forward-looking record type is only served in open mode")
			return false
		}
		if c.afterCutoff(rec) {
			c.count(envelope.GapPITExcluded, "available_at after cutoff "+pit.ToCanonicalZoneISO(*c.cutoff))
			return false
		}
	}

	if rec.Key != "" {
		if _, dup := c.seen[rec.Key]; dup {
			return false
		}
		c.seen[rec.Key] = struct{}{}
	}

	if c.Full() {
		return false
	}

	c.items = append(c.items, envelope.Item{
		Fields:            rec.Fields,
		AvailableAt:       pit.ToCanonicalZoneISO(rec.AvailableAt),
		AvailableAtSource: rec.Source,
	})
	return true
}

func (c *Collector) afterCutoff(rec Record) bool {
	if rec.Precision == PrecisionDate {
		return !pit.MarketDate(rec.AvailableAt).Before(pit.MarketDate(*c.cutoff))
	}
	return rec.AvailableAt.After(*c.cutoff)
}

func (c *Collector) count(t envelope.GapType, reason string) {
	if e, ok := c.counted[t]; ok {
		e.count++
		return
	}
	e := &gapEntry{gap: envelope.Gap{Type: t, Reason: reason}, count: 1}
	c.counted[t] = e
	c.entries = append(c.entries, e)
}

// Gap records a single explicit gap in arrival order.
func (c *Collector) Gap(t envelope.GapType, format string, args ...any) {
	c.entries = append(c.entries, &gapEntry{gap: envelope.Gap{Type: t, Reason: fmt.Sprintf(format, args...)}})
}

// Fail records a fetch-level error as a gap typed by its cause.
func (c *Collector) Fail(what string, err error) {
	c.Gap(Classify(err), "%s: %v", what, err)
}

// Envelope flushes counted gaps and returns the result. A terminal no_data
// gap is appended once when no item was accepted.
func (c *Collector) Envelope() envelope.Envelope {
	env := envelope.New()
	env.Data = append(env.Data, c.items...)
	for _, e := range c.entries {
		g := e.gap
		if e.count > 0 {
			g.Reason = fmt.Sprintf("%d record(s): %s", e.count, g.Reason)
		}
		env.Gaps = append(env.Gaps, g)
	}
	if len(env.Data) == 0 && !env.HasGap(envelope.GapNoData) {
		env.AddGap(envelope.GapNoData, "no items matched")
	}
	return env
}

// Classify maps a fetch error onto a gap type. Anything not recognized as a
// configuration or input problem is an upstream failure.
func Classify(err error) envelope.GapType {
	var skip *SkipError
	switch {
	case err == nil:
		return envelope.GapInternalError
	case errors.As(err, &skip):
		return skip.Type
	case errors.Is(err, secrets.ErrMissingCredentials):
		return envelope.GapConfig
	case errors.Is(err, ErrFixture):
		return envelope.GapInputError
	default:
		return envelope.GapUpstreamError
	}
}
