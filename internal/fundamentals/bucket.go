package fundamentals

import (
	"fmt"
	"time"

	"github.com/Checker-Finance/pitdata/pkg/pit"
)

// Offsets are the provider's snapshot points, in days before period end,
// largest first.
var Offsets = []int{90, 60, 30, 7}

// Bucket is the snapshot selected for a cutoff. Offset 0 is the final value.
type Bucket struct {
	Offset int
	Anchor time.Time // market-local midnight of periodEnd - Offset
}

// Final reports whether the at-period-end value was selected.
func (b Bucket) Final() bool { return b.Offset == 0 }

// Label names the bucket as it appears on items.
func (b Bucket) Label() string {
	if b.Final() {
		return "final"
	}
	return fmt.Sprintf("%dd", b.Offset)
}

// SelectBucket picks the snapshot nearest to periodEnd whose anchor date does
// not exceed the cutoff's market-local date. periodEnd is a civil date. ok is
// false when the cutoff is further from period end than the largest offset.
func SelectBucket(periodEnd, cutoff time.Time, offsets []int) (b Bucket, ok bool) {
	end := time.Date(periodEnd.Year(), periodEnd.Month(), periodEnd.Day(), 0, 0, 0, 0, pit.MarketZone())
	lead := pit.DaysBetween(cutoff, end)
	if lead <= 0 {
		return Bucket{Offset: 0, Anchor: end}, true
	}
	best := -1
	for _, d := range offsets {
		if d >= lead && (best < 0 || d < best) {
			best = d
		}
	}
	if best < 0 {
		return Bucket{}, false
	}
	return Bucket{Offset: best, Anchor: end.AddDate(0, 0, -best)}, true
}
