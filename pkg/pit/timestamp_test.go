package pit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─── Classify ─────────────────────────────────────────────────────────────────

func TestClassify(t *testing.T) {
	tests := []struct {
		input string
		want  Class
	}{
		// Valid
		{"2024-02-15T16:00:00-05:00", ClassValid},
		{"2024-02-15T21:00:00Z", ClassValid},
		{"2024-02-15T21:00:00z", ClassValid},
		{"2024-02-15T16:00-05:00", ClassValid},
		{"2024-02-15T16:00:00.123456+01:00", ClassValid},
		{"  2024-02-15T16:00:00+00:00  ", ClassValid},

		// Legacy space-separated with explicit offset
		{"2024-02-15 16:00:00-0500", ClassValid},
		{"2024-02-15 16:00:00 -05:00", ClassValid},
		{"2024-02-15 16:00:00+01", ClassValid},

		// Date-only
		{"2024-02-15", ClassDateOnly},

		// Missing timezone
		{"2024-02-15T16:00:00", ClassMissingTZ},
		{"2024-02-15 16:00:00", ClassMissingTZ},
		{"2024-02-15T16:00", ClassMissingTZ},
		{"2024-02-15T16:00:00.5", ClassMissingTZ},

		// Invalid
		{"", ClassInvalid},
		{"not-a-date", ClassInvalid},
		{"2024-02-30", ClassInvalid},
		{"2024-13-01T00:00:00Z", ClassInvalid},
		{"2024-02-15T24:00:00Z", ClassInvalid},
		{"2024-02-15T16:00:00-0500", ClassInvalid},
		{"2024-02-15T16:00:00+05", ClassInvalid},
		{"2024-02-15T16:00:00ZZ", ClassInvalid},
		{"2024-02-15T16:00:00 EST", ClassInvalid},
		{"15/02/2024", ClassInvalid},
		{"2024-2-15", ClassInvalid},
		{"2024-02-15X16:00:00Z", ClassInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, got := Classify(tt.input)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify_OffsetsAreHonored(t *testing.T) {
	a, class := Classify("2024-02-15T16:00:00-05:00")
	require.Equal(t, ClassValid, class)
	b, class := Classify("2024-02-15T22:00:00+01:00")
	require.Equal(t, ClassValid, class)
	c, class := Classify("2024-02-15 16:00:00-0500")
	require.Equal(t, ClassValid, class)

	assert.True(t, a.Equal(b))
	assert.True(t, a.Equal(c))
}

func TestClassify_Fraction(t *testing.T) {
	got, class := Classify("2024-02-15T16:00:00.25Z")
	require.Equal(t, ClassValid, class)
	assert.Equal(t, 250*time.Millisecond, time.Duration(got.Nanosecond()))
}

// ─── Parse error categories ───────────────────────────────────────────────────

func TestParse_ErrorCategoriesAreDistinct(t *testing.T) {
	_, err := Parse("2024-02-15")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDateOnly)
	assert.ErrorIs(t, err, ErrInvalidFormat)
	assert.False(t, errors.Is(err, ErrMissingTimezone))

	_, err = Parse("2024-02-15T16:00:00")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingTimezone)
	assert.False(t, errors.Is(err, ErrInvalidFormat))

	_, err = Parse("yesterday")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidFormat)
	assert.False(t, errors.Is(err, ErrDateOnly))
}

func TestParseAssumeMarket(t *testing.T) {
	got, err := ParseAssumeMarket("2024-07-01T09:30:00")
	require.NoError(t, err)
	want := time.Date(2024, 7, 1, 9, 30, 0, 0, MarketZone())
	assert.True(t, want.Equal(got))
	assert.Equal(t, "2024-07-01T09:30:00-04:00", ToCanonicalZoneISO(got))

	got, err = ParseAssumeMarket("2024-07-01T13:30:00Z")
	require.NoError(t, err)
	assert.True(t, want.Equal(got))

	_, err = ParseAssumeMarket("2024-07-01")
	assert.ErrorIs(t, err, ErrDateOnly)
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2025-06-30")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-30T00:00:00-04:00", ToCanonicalZoneISO(got))

	_, err = ParseDate("2025-06-30T00:00:00Z")
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

// ─── Market calendar helpers ──────────────────────────────────────────────────

func TestToCanonicalZoneISO_Winter(t *testing.T) {
	ts := time.Date(2024, 2, 15, 21, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-02-15T16:00:00-05:00", ToCanonicalZoneISO(ts))
}

func TestMarketDate(t *testing.T) {
	// 02:00 UTC on the 16th is still the 15th in New York.
	ts := time.Date(2024, 2, 16, 2, 0, 0, 0, time.UTC)
	got := MarketDate(ts)
	assert.Equal(t, "2024-02-15T00:00:00-05:00", ToCanonicalZoneISO(got))
}

func TestDaysBetween(t *testing.T) {
	end, err := ParseDate("2025-06-30")
	require.NoError(t, err)
	start, err := ParseDate("2025-05-21")
	require.NoError(t, err)
	assert.Equal(t, 40, DaysBetween(start, end))
	assert.Equal(t, -40, DaysBetween(end, start))

	// Across the March DST change.
	a, _ := ParseDate("2024-03-09")
	b, _ := ParseDate("2024-03-11")
	assert.Equal(t, 2, DaysBetween(a, b))
}

func TestClassString(t *testing.T) {
	assert.Equal(t, "valid", ClassValid.String())
	assert.Equal(t, "date_only", ClassDateOnly.String())
	assert.Equal(t, "missing_tz", ClassMissingTZ.String())
	assert.Equal(t, "invalid", ClassInvalid.String())
}
