package fiscal

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) time.Time {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestFallback_Table(t *testing.T) {
	tests := []struct {
		name  string
		year  int
		q     Quarter
		fye   int
		start string
		end   string
	}{
		{"calendar Q1", 2024, Q1, 12, "2024-01-01", "2024-03-31"},
		{"calendar FY", 2024, FY, 12, "2024-01-01", "2024-12-31"},
		{"september Q1 starts prior year", 2024, Q1, 9, "2023-10-01", "2023-12-31"},
		{"september Q4", 2024, Q4, 9, "2024-07-01", "2024-09-30"},
		{"september FY", 2024, FY, 9, "2023-10-01", "2024-09-30"},
		{"june Q3", 2025, Q3, 6, "2025-01-01", "2025-03-31"},
		{"january Q4 spans year end", 2024, Q4, 1, "2023-11-01", "2024-01-31"},
		{"february Q4 leap year", 2024, Q4, 2, "2023-12-01", "2024-02-29"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Fallback(tt.year, tt.q, tt.fye)
			require.NoError(t, err)
			assert.Equal(t, tt.start, p.Start.Format(dateLayout))
			assert.Equal(t, tt.end, p.End.Format(dateLayout))
			assert.Equal(t, SourceFallback, p.Source)
		})
	}
}

func TestFallback_InvalidInputs(t *testing.T) {
	for _, fye := range []int{0, 13, -1} {
		_, err := Fallback(2024, Q1, fye)
		assert.ErrorIs(t, err, ErrInvalidFYEMonth, "fye=%d", fye)
	}
	_, err := Fallback(2024, Quarter(9), 12)
	assert.ErrorIs(t, err, ErrNoPeriod)
}

func TestClassify_SlipCorrection(t *testing.T) {
	// 52/53-week year ending on the first Saturday of October.
	fy, q, ok := classify(d("2022-07-03"), d("2022-10-01"), 9)
	require.True(t, ok)
	assert.Equal(t, 2022, fy)
	assert.Equal(t, Q4, q)

	// Same period without the slip rule would land in Q1 of the next year.
	fy, q, ok = classify(d("2022-07-08"), d("2022-10-06"), 9)
	require.True(t, ok)
	assert.Equal(t, 2023, fy)
	assert.Equal(t, Q1, q)
}

func TestClassify_Durations(t *testing.T) {
	_, _, ok := classify(d("2024-01-01"), d("2024-02-15"), 12)
	assert.False(t, ok, "45 days is neither quarter- nor year-like")

	_, _, ok = classify(d("2024-01-01"), d("2024-08-01"), 12)
	assert.False(t, ok, "half-year periods are dropped")

	fy, q, ok := classify(d("2023-10-01"), d("2024-09-28"), 9)
	require.True(t, ok)
	assert.Equal(t, 2024, fy)
	assert.Equal(t, FY, q)
}

func TestParseLabel(t *testing.T) {
	tests := []struct {
		in   string
		year int
		q    Quarter
	}{
		{"2024Q1", 2024, Q1},
		{"FY2024Q3", 2024, Q3},
		{"2024-Q4", 2024, Q4},
		{"fy2025", 2025, FY},
		{" 2023q2 ", 2023, Q2},
	}
	for _, tt := range tests {
		y, q, err := ParseLabel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.year, y, tt.in)
		assert.Equal(t, tt.q, q, tt.in)
	}

	for _, bad := range []string{"", "Q1", "2024Q5", "2024Q0", "abcd"} {
		_, _, err := ParseLabel(bad)
		assert.ErrorIs(t, err, ErrNoPeriod, bad)
	}

	assert.Equal(t, "FY2024Q2", Label(2024, Q2))
	assert.Equal(t, "FY2024", Label(2024, FY))
}

func TestPeriod_MarshalJSON(t *testing.T) {
	p := Period{Start: d("2024-01-01"), End: d("2024-03-31"), ID: "x", Source: SourceLookup}
	b, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"start_date":"2024-01-01","end_date":"2024-03-31","period_id":"x","source":"lookup"}`, string(b))
}

func TestFallback_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	genQuarter := gen.IntRange(1, 5).Map(func(n int) Quarter { return Quarter(n) })

	properties.Property("fallback is a pure, round-tripping function of fye and year", prop.ForAll(
		func(fye, year int, q Quarter) bool {
			p1, err1 := Fallback(year, q, fye)
			p2, err2 := Fallback(year, q, fye)
			if err1 != nil || err2 != nil {
				return false
			}
			if !p1.Start.Equal(p2.Start) || !p1.End.Equal(p2.End) || p1.ID != p2.ID {
				return false
			}
			gy, gq, ok := classify(p1.Start, p1.End, fye)
			return ok && gy == year && gq == q && p1.End.AddDate(0, 0, 1).Day() == 1
		},
		gen.IntRange(1, 12),
		gen.IntRange(1950, 2100),
		genQuarter,
	))

	properties.Property("lookup overrides fallback when a matching period exists", prop.ForAll(
		func(fye, year int, q Quarter, shift int) bool {
			ref, err := Fallback(year, q, fye)
			if err != nil {
				return false
			}
			observed := KnownPeriod{
				ID:    "observed",
				Start: ref.Start.AddDate(0, 0, -shift).Format(dateLayout),
				End:   ref.End.AddDate(0, 0, -shift).Format(dateLayout),
			}
			got, err := Resolve([]KnownPeriod{observed}, year, q, fye)
			if err != nil {
				return false
			}
			return got.Source == SourceLookup &&
				got.ID == "observed" &&
				got.Start.Format(dateLayout) == observed.Start &&
				got.End.Format(dateLayout) == observed.End
		},
		gen.IntRange(1, 12),
		gen.IntRange(1990, 2060),
		genQuarter,
		gen.IntRange(0, 3),
	))

	properties.TestingRun(t)
}
