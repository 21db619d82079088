package fundamentals

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Checker-Finance/pitdata/internal/adapter"
	"github.com/Checker-Finance/pitdata/internal/fiscal"
	"github.com/Checker-Finance/pitdata/internal/secrets"
	"github.com/Checker-Finance/pitdata/pkg/envelope"
)

type staticCreds struct {
	creds secrets.Credentials
	err   error
}

func (s staticCreds) Resolve(context.Context, string) (secrets.Credentials, error) {
	return s.creds, s.err
}

const estimatesFixture = `{"estimates": [
  {"symbol": "AAPL", "fiscal_year": 2025, "fiscal_period": "Q3", "period_end": "2025-06-30",
   "updated_at": "2025-07-30T09:00:00-04:00",
   "current": {"eps_avg": 1.43, "revenue_avg": 89300, "analysts": 28},
   "snapshots": {
     "7":  {"eps_avg": 1.42, "revenue_avg": 89100, "analysts": 28},
     "30": {"eps_avg": 1.41, "revenue_avg": 88900, "analysts": 27},
     "60": {"eps_avg": 1.39, "revenue_avg": 88200, "analysts": 27},
     "90": {"eps_avg": 1.37, "revenue_avg": 87600, "analysts": 26}}},
  {"symbol": "AAPL", "fiscal_year": 2025, "fiscal_period": "Q4", "period_end": "2025-09-30",
   "current": {"eps_avg": 1.72, "revenue_avg": 101000, "analysts": 25},
   "snapshots": {"90": {"eps_avg": 1.70, "revenue_avg": 100000, "analysts": 25}}},
  {"symbol": "AAPL", "fiscal_year": 2025, "fiscal_period": "Q2",
   "current": {"eps_avg": 1.61, "revenue_avg": 94000, "analysts": 29},
   "snapshots": {"7": {"eps_avg": 1.60, "revenue_avg": 93900, "analysts": 29}}}
]}`

const reportsFixture = `{
  "quarterly": [
    {"symbol": "AAPL", "date": "2025-03-29", "fiscal_year": 2025, "period": "Q2", "filing_date": "2025-05-02",
     "revenue": 95.4, "net_income": 24.8, "eps": 1.65},
    {"symbol": "AAPL", "date": "2024-12-28", "fiscal_year": 2025, "period": "Q1", "filing_date": "2025-01-31",
     "accepted_date": "2025-01-31 18:01:00", "revenue": 124.3, "net_income": 36.3, "eps": 2.43},
    {"symbol": "AAPL", "date": "2024-09-28", "fiscal_year": 2024, "period": "Q4", "filing_date": "2024-11-01",
     "accepted_date": "2024-11-01 18:04:43", "revenue": 94.9, "net_income": 14.7, "eps": 0.97},
    {"symbol": "AAPL", "date": "2024-06-29", "fiscal_year": 2024, "period": "Q3", "filing_date": "2024-08-02",
     "accepted_date": "2024-08-02T18:03:00-04:00", "revenue": 85.5, "net_income": 21.4, "eps": 1.41}
  ],
  "annual": [
    {"symbol": "AAPL", "date": "2024-09-28", "fiscal_year": 2024, "period": "FY", "filing_date": "2024-11-01",
     "revenue": 391.0, "net_income": 93.7, "eps": 6.08},
    {"symbol": "AAPL", "date": "2023-09-30", "fiscal_year": 2023, "period": "FY", "filing_date": "2023-11-03",
     "accepted_date": "2023-11-02 18:08:27", "revenue": 383.3, "net_income": 97.0, "eps": 6.13}
  ],
  "calendar": [
    {"symbol": "AAPL", "date": "2025-07-31", "time": "amc", "fiscal_date_ending": "2025-06-30",
     "eps_estimated": 1.43, "updated_from_date": "2025-07-20"}
  ]
}`

func writeFixture(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fundamentals.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func fixtureAdapter() *Adapter {
	return NewAdapter(nil, nil, adapter.HTTPOptions{}, fiscal.NewResolver(zap.NewNop(), nil, nil), zap.NewNop())
}

func TestEstimates_CoarseBucket(t *testing.T) {
	cutoff := mustCutoff(t, "2025-05-21T12:00:00-04:00")
	env := fixtureAdapter().Fetch(context.Background(), adapter.Query{
		Source: adapter.Fundamentals, Kind: KindEstimates, InputFile: writeFixture(t, estimatesFixture),
		Limit: 10, Cutoff: &cutoff,
	})

	require.Len(t, env.Data, 1)
	item := env.Data[0]
	assert.Equal(t, "FY2025Q3", item.Fields["fiscal_period"])
	assert.Equal(t, "60d", item.Fields["bucket"])
	assert.Equal(t, "1.39", item.Fields["eps_avg"])
	assert.Equal(t, "2025-05-01T00:00:00-04:00", item.AvailableAt)
	assert.Equal(t, envelope.SourceTimeSeriesTimestamp, item.AvailableAtSource)
	assert.NotContains(t, item.Fields, "revisions")

	// Fresher snapshots are present in the raw record but never surfaced.
	raw := string(env.Marshal())
	for _, fresher := range []string{"1.43", "1.42", "1.41"} {
		assert.NotContains(t, raw, fresher)
	}

	// Q4 ends 132 days after the cutoff; Q2 has no period end and no FYE.
	require.Len(t, env.Gaps, 2)
	assert.Equal(t, envelope.GapPITExcluded, env.Gaps[0].Type)
	assert.Contains(t, env.Gaps[0].Reason, "outside approximation range")
	assert.Equal(t, envelope.GapUnverifiable, env.Gaps[1].Type)
}

func TestEstimates_PeriodEndFromFiscalCalendar(t *testing.T) {
	cutoff := mustCutoff(t, "2025-03-25T16:00:00-04:00")
	env := fixtureAdapter().Fetch(context.Background(), adapter.Query{
		Source: adapter.Fundamentals, InputFile: writeFixture(t, estimatesFixture),
		FiscalPeriod: "FY2025Q2", FYEMonth: 9, Limit: 10, Cutoff: &cutoff,
	})

	// FYE September puts fiscal Q2 at January through March.
	require.Len(t, env.Data, 1)
	assert.Equal(t, "2025-03-31", env.Data[0].Fields["period_end"])
	assert.Equal(t, "7d", env.Data[0].Fields["bucket"])
	assert.Equal(t, "1.6", env.Data[0].Fields["eps_avg"])
	assert.Equal(t, "2025-03-24T00:00:00-04:00", env.Data[0].AvailableAt)
	assert.Empty(t, env.Gaps)
}

func TestEstimates_MissingSnapshotIsNotReplaced(t *testing.T) {
	cutoff := mustCutoff(t, "2025-08-15T10:00:00-04:00")
	env := fixtureAdapter().Fetch(context.Background(), adapter.Query{
		Source: adapter.Fundamentals, InputFile: writeFixture(t, estimatesFixture),
		FiscalPeriod: "FY2025Q4", Limit: 10, Cutoff: &cutoff,
	})
	assert.Empty(t, env.Data)
	require.Len(t, env.Gaps, 2)
	assert.Equal(t, envelope.GapUnverifiable, env.Gaps[0].Type)
	assert.Contains(t, env.Gaps[0].Reason, "no 60d snapshot")
	assert.Equal(t, envelope.GapNoData, env.Gaps[1].Type)
}

func TestEstimates_OpenMode(t *testing.T) {
	env := fixtureAdapter().Fetch(context.Background(), adapter.Query{
		Source: adapter.Fundamentals, InputFile: writeFixture(t, estimatesFixture), Limit: 10,
	})
	// Fixture records without updated_at have no availability in open mode.
	require.Len(t, env.Data, 1)
	item := env.Data[0]
	assert.Equal(t, "current", item.Fields["bucket"])
	assert.Equal(t, "1.43", item.Fields["eps_avg"])
	assert.Equal(t, "2025-07-30T09:00:00-04:00", item.AvailableAt)
	assert.Equal(t, envelope.SourceProviderMetadata, item.AvailableAtSource)
	revisions, ok := item.Fields["revisions"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, revisions, 4)
}

func TestFinancials_CrossReferencesAnnual(t *testing.T) {
	cutoff := mustCutoff(t, "2025-05-02T20:00:00-04:00")
	env := fixtureAdapter().Fetch(context.Background(), adapter.Query{
		Source: adapter.Fundamentals, Kind: KindFinancials, InputFile: writeFixture(t, reportsFixture),
		Limit: 10, Cutoff: &cutoff,
	})

	require.Len(t, env.Data, 4)
	assert.Equal(t, "FY2025Q1", env.Data[0].Fields["fiscal_period"])
	assert.Equal(t, "2025-01-31T18:01:00-05:00", env.Data[0].AvailableAt)
	assert.Equal(t, envelope.SourceFilingAcceptance, env.Data[0].AvailableAtSource)

	annual := env.Data[3]
	assert.Equal(t, "FY2024", annual.Fields["fiscal_period"])
	assert.Equal(t, "2024-11-01T18:04:43-04:00", annual.AvailableAt)
	assert.Equal(t, "quarter_ending_2024-09-28", annual.Fields["availability_from"])

	// Q2 was filed on the cutoff day; FY2023 has no sibling quarter.
	require.Len(t, env.Gaps, 2)
	assert.Equal(t, envelope.GapPITExcluded, env.Gaps[0].Type)
	assert.Equal(t, envelope.GapUnverifiable, env.Gaps[1].Type)
	assert.Contains(t, env.Gaps[1].Reason, "2023-09-30")
}

func TestTTM(t *testing.T) {
	a := fixtureAdapter()
	path := writeFixture(t, reportsFixture)

	env := a.Fetch(context.Background(), adapter.Query{Source: adapter.Fundamentals, Kind: KindTTM, InputFile: path, Limit: 5})
	require.Len(t, env.Data, 1)
	item := env.Data[0]
	assert.Equal(t, "400.1", item.Fields["revenue"])
	assert.Equal(t, "97.2", item.Fields["net_income"])
	assert.Equal(t, "6.46", item.Fields["eps"])
	assert.Equal(t, "2025-05-02T00:00:00-04:00", item.AvailableAt)
	assert.Equal(t, []string{"FY2025Q2", "FY2025Q1", "FY2024Q4", "FY2024Q3"}, item.Fields["quarters"])

	cutoff := mustCutoff(t, "2026-01-01T00:00:00Z")
	env = a.Fetch(context.Background(), adapter.Query{Source: adapter.Fundamentals, Kind: KindTTM, InputFile: path, Limit: 5, Cutoff: &cutoff})
	assert.Empty(t, env.Data)
	assert.Equal(t, envelope.GapUnverifiable, env.Gaps[0].Type)
	assert.Contains(t, env.Gaps[0].Reason, "synthesized")
}

func TestCalendar_OpenModeOnly(t *testing.T) {
	a := fixtureAdapter()
	path := writeFixture(t, reportsFixture)

	env := a.Fetch(context.Background(), adapter.Query{Source: adapter.Fundamentals, Kind: KindCalendar, InputFile: path, Limit: 5})
	require.Len(t, env.Data, 1)
	assert.Equal(t, "1.43", env.Data[0].Fields["eps_estimated"])
	assert.Equal(t, "2025-07-20T00:00:00-04:00", env.Data[0].AvailableAt)

	cutoff := mustCutoff(t, "2025-12-01T00:00:00Z")
	env = a.Fetch(context.Background(), adapter.Query{Source: adapter.Fundamentals, Kind: KindCalendar, InputFile: path, Limit: 5, Cutoff: &cutoff})
	assert.Empty(t, env.Data)
	assert.Equal(t, envelope.GapUnverifiable, env.Gaps[0].Type)
	assert.Contains(t, env.Gaps[0].Reason, "open mode")
}

func TestFetch_InputErrors(t *testing.T) {
	a := fixtureAdapter()
	env := a.Fetch(context.Background(), adapter.Query{Source: adapter.Fundamentals, Kind: "dividends", Ticker: "AAPL", Limit: 5})
	assert.Equal(t, envelope.GapInputError, env.Gaps[0].Type)

	env = a.Fetch(context.Background(), adapter.Query{Source: adapter.Fundamentals, FiscalPeriod: "soon", Ticker: "AAPL", Limit: 5})
	assert.Equal(t, envelope.GapInputError, env.Gaps[0].Type)

	env = a.Fetch(context.Background(), adapter.Query{Source: adapter.Fundamentals, Limit: 5})
	assert.Equal(t, envelope.GapInputError, env.Gaps[0].Type)

	env = a.Fetch(context.Background(), adapter.Query{Source: adapter.Fundamentals, InputFile: writeFixture(t, `{"prices": []}`), Limit: 5})
	assert.Equal(t, envelope.GapInputError, env.Gaps[0].Type)
}

func TestFetch_HTTP(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		switch r.URL.Path {
		case "/v1/estimates":
			var fx Fixture
			require.NoError(t, json.Unmarshal([]byte(estimatesFixture), &fx))
			_ = json.NewEncoder(w).Encode(fx.Estimates)
		default:
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"Error Message":"plan does not include this endpoint"}`))
		}
	}))
	defer srv.Close()

	a := NewAdapter(NewClient(zap.NewNop(), nil, srv.Client()), staticCreds{creds: secrets.Credentials{APIKey: "key"}},
		adapter.HTTPOptions{BaseURL: srv.URL, OverfetchFactor: 2}, nil, nil)
	a.now = func() time.Time { return time.Date(2025, 8, 1, 14, 0, 0, 0, time.UTC) }

	env := a.Fetch(context.Background(), adapter.Query{Source: adapter.Fundamentals, Ticker: "AAPL", Limit: 5})
	assert.Equal(t, "AAPL", gotQuery["symbol"])
	assert.Equal(t, "key", gotQuery["apikey"])
	assert.Equal(t, "10", gotQuery["limit"])
	require.Len(t, env.Data, 3)
	// Records without updated_at fall back to the fetch time.
	assert.Equal(t, "2025-08-01T10:00:00-04:00", env.Data[1].AvailableAt)

	env = a.Fetch(context.Background(), adapter.Query{Source: adapter.Fundamentals, Kind: KindCalendar, Ticker: "AAPL", Limit: 5})
	assert.Equal(t, envelope.GapUpstreamError, env.Gaps[0].Type)
	assert.Contains(t, env.Gaps[0].Reason, "plan does not include")

	a.creds = staticCreds{err: secrets.ErrMissingCredentials}
	env = a.Fetch(context.Background(), adapter.Query{Source: adapter.Fundamentals, Ticker: "AAPL", Limit: 5})
	assert.Equal(t, envelope.GapConfig, env.Gaps[0].Type)
}
