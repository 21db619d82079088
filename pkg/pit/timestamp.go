// Package pit normalizes point-in-time timestamps.
//
// Every timestamp string is classified by a single scanner into exactly one of
// four classes: valid (date, time of day and explicit zone), date-only,
// missing-timezone, or invalid. Callers that need a strict answer (the gate)
// use Parse; adapters that may assume the market zone use ParseAssumeMarket.
package pit

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // market zone must resolve on hosts without zoneinfo
)

// Class is the classification of a timestamp string.
type Class int

const (
	ClassInvalid Class = iota
	ClassValid
	ClassDateOnly
	ClassMissingTZ
)

func (c Class) String() string {
	switch c {
	case ClassValid:
		return "valid"
	case ClassDateOnly:
		return "date_only"
	case ClassMissingTZ:
		return "missing_tz"
	default:
		return "invalid"
	}
}

var (
	// ErrInvalidFormat is returned for strings outside the timestamp grammar.
	ErrInvalidFormat = errors.New("invalid timestamp format")
	// ErrDateOnly is a format error for a bare calendar date.
	ErrDateOnly = fmt.Errorf("%w: date-only value", ErrInvalidFormat)
	// ErrMissingTimezone is returned for a timestamp with a time of day but no zone.
	ErrMissingTimezone = errors.New("timestamp missing timezone")
)

// MarketZoneName is the reference zone for storage and day-granularity comparisons.
const MarketZoneName = "America/New_York"

var marketZone = mustLoadLocation(MarketZoneName)

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic("pit: load location " + name + ": " + err.Error())
	}
	return loc
}

// MarketZone returns the market's local zone.
func MarketZone() *time.Location { return marketZone }

// fields holds the components recognized by scan.
type fields struct {
	year, month, day  int
	hour, minute, sec int
	nsec              int
	offsetSec         int
	hasTime, hasZone  bool
}

// Classify scans text and returns its class. The returned time is only
// meaningful for ClassValid.
func Classify(text string) (time.Time, Class) {
	f, class := scan(text)
	if class != ClassValid {
		return time.Time{}, class
	}
	return f.build(time.FixedZone("", f.offsetSec)), ClassValid
}

// Parse accepts only fully qualified timestamps with an explicit zone.
func Parse(text string) (time.Time, error) {
	t, class := Classify(text)
	switch class {
	case ClassValid:
		return t, nil
	case ClassDateOnly:
		return time.Time{}, fmt.Errorf("%q: %w", text, ErrDateOnly)
	case ClassMissingTZ:
		return time.Time{}, fmt.Errorf("%q: %w", text, ErrMissingTimezone)
	default:
		return time.Time{}, fmt.Errorf("%q: %w", text, ErrInvalidFormat)
	}
}

// ParseAssumeMarket is Parse, except that a timestamp without a zone is read
// as wall-clock time in the market zone. Date-only strings are still rejected.
func ParseAssumeMarket(text string) (time.Time, error) {
	f, class := scan(text)
	switch class {
	case ClassValid:
		return f.build(time.FixedZone("", f.offsetSec)), nil
	case ClassMissingTZ:
		return f.build(marketZone), nil
	case ClassDateOnly:
		return time.Time{}, fmt.Errorf("%q: %w", text, ErrDateOnly)
	default:
		return time.Time{}, fmt.Errorf("%q: %w", text, ErrInvalidFormat)
	}
}

// ParseDate parses a bare YYYY-MM-DD date as midnight in the market zone.
func ParseDate(text string) (time.Time, error) {
	f, class := scan(text)
	if class != ClassDateOnly {
		return time.Time{}, fmt.Errorf("%q: %w", text, ErrInvalidFormat)
	}
	return time.Date(f.year, time.Month(f.month), f.day, 0, 0, 0, 0, marketZone), nil
}

// ToCanonicalZoneISO renders t as RFC3339 in the market zone.
func ToCanonicalZoneISO(t time.Time) string {
	return t.In(marketZone).Format(time.RFC3339Nano)
}

// MarketDate returns midnight (market zone) of the market-local day containing t.
func MarketDate(t time.Time) time.Time {
	y, m, d := t.In(marketZone).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, marketZone)
}

// DaysBetween returns the whole number of calendar days from a to b, counted
// on market-local dates. DST transitions do not affect the count.
func DaysBetween(a, b time.Time) int {
	ay, am, ad := a.In(marketZone).Date()
	by, bm, bd := b.In(marketZone).Date()
	ua := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	ub := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

func (f fields) build(loc *time.Location) time.Time {
	return time.Date(f.year, time.Month(f.month), f.day, f.hour, f.minute, f.sec, f.nsec, loc)
}

// scanner walks a timestamp string one token at a time.
type scanner struct {
	s   string
	pos int
}

func (sc *scanner) done() bool { return sc.pos >= len(sc.s) }

func (sc *scanner) peek() byte {
	if sc.done() {
		return 0
	}
	return sc.s[sc.pos]
}

func (sc *scanner) accept(chars string) (byte, bool) {
	c := sc.peek()
	if c != 0 && strings.IndexByte(chars, c) >= 0 {
		sc.pos++
		return c, true
	}
	return 0, false
}

// digits consumes exactly n ASCII digits.
func (sc *scanner) digits(n int) (int, bool) {
	if sc.pos+n > len(sc.s) {
		return 0, false
	}
	v := 0
	for i := 0; i < n; i++ {
		c := sc.s[sc.pos+i]
		if c < '0' || c > '9' {
			return 0, false
		}
		v = v*10 + int(c-'0')
	}
	sc.pos += n
	return v, true
}

func scan(text string) (fields, Class) {
	var f fields
	sc := &scanner{s: strings.TrimSpace(text)}
	if sc.s == "" {
		return f, ClassInvalid
	}

	var ok bool
	if f.year, ok = sc.digits(4); !ok {
		return f, ClassInvalid
	}
	if _, ok = sc.accept("-"); !ok {
		return f, ClassInvalid
	}
	if f.month, ok = sc.digits(2); !ok {
		return f, ClassInvalid
	}
	if _, ok = sc.accept("-"); !ok {
		return f, ClassInvalid
	}
	if f.day, ok = sc.digits(2); !ok {
		return f, ClassInvalid
	}
	if !validDate(f.year, f.month, f.day) {
		return f, ClassInvalid
	}
	if sc.done() {
		return f, ClassDateOnly
	}

	sep, ok := sc.accept("Tt ")
	if !ok {
		return f, ClassInvalid
	}
	legacy := sep == ' '

	if f.hour, ok = sc.digits(2); !ok {
		return f, ClassInvalid
	}
	if _, ok = sc.accept(":"); !ok {
		return f, ClassInvalid
	}
	if f.minute, ok = sc.digits(2); !ok {
		return f, ClassInvalid
	}
	if _, ok = sc.accept(":"); ok {
		if f.sec, ok = sc.digits(2); !ok {
			return f, ClassInvalid
		}
		if _, ok = sc.accept(".,"); ok {
			if f.nsec, ok = sc.fraction(); !ok {
				return f, ClassInvalid
			}
		}
	}
	if f.hour > 23 || f.minute > 59 || f.sec > 59 {
		return f, ClassInvalid
	}
	f.hasTime = true
	if sc.done() {
		return f, ClassMissingTZ
	}

	if legacy && sc.peek() == ' ' {
		sc.pos++
	}
	if !sc.zone(&f, legacy) || !sc.done() {
		return f, ClassInvalid
	}
	f.hasZone = true
	return f, ClassValid
}

// fraction consumes 1..9 fractional-second digits and returns nanoseconds.
func (sc *scanner) fraction() (int, bool) {
	start := sc.pos
	ns := 0
	for !sc.done() && sc.peek() >= '0' && sc.peek() <= '9' {
		if sc.pos-start >= 9 {
			return 0, false
		}
		ns = ns*10 + int(sc.peek()-'0')
		sc.pos++
	}
	n := sc.pos - start
	if n == 0 {
		return 0, false
	}
	for i := n; i < 9; i++ {
		ns *= 10
	}
	return ns, true
}

// zone consumes Z or a numeric offset. Compact offsets (+HHMM, +HH) are only
// accepted in the legacy space-separated form.
func (sc *scanner) zone(f *fields, legacy bool) bool {
	if _, ok := sc.accept("Zz"); ok {
		f.offsetSec = 0
		return true
	}
	sign, ok := sc.accept("+-")
	if !ok {
		return false
	}
	hh, ok := sc.digits(2)
	if !ok {
		return false
	}
	mm := 0
	switch {
	case sc.peek() == ':':
		sc.pos++
		if mm, ok = sc.digits(2); !ok {
			return false
		}
	case sc.done():
		if !legacy {
			return false
		}
	default:
		if !legacy {
			return false
		}
		if mm, ok = sc.digits(2); !ok {
			return false
		}
	}
	if hh > 23 || mm > 59 {
		return false
	}
	off := hh*3600 + mm*60
	if sign == '-' {
		off = -off
	}
	f.offsetSec = off
	return true
}

func validDate(y, m, d int) bool {
	if m < 1 || m > 12 || d < 1 {
		return false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	return t.Year() == y && int(t.Month()) == m && t.Day() == d
}
