package fundamentals

import "github.com/shopspring/decimal"

// EstimatePoint is the consensus at one snapshot.
type EstimatePoint struct {
	EPSAvg      decimal.Decimal `json:"eps_avg"`
	RevenueAvg  decimal.Decimal `json:"revenue_avg"`
	NumAnalysts int             `json:"analysts"`
}

// Estimate is a consensus record for one fiscal period. Snapshots are keyed by
// days before period end; Current is the latest value.
type Estimate struct {
	Symbol       string                `json:"symbol"`
	FiscalYear   int                   `json:"fiscal_year"`
	FiscalPeriod string                `json:"fiscal_period"` // Q1..Q4 or FY
	PeriodEnd    string                `json:"period_end"`    // optional
	UpdatedAt    string                `json:"updated_at"`
	Current      EstimatePoint         `json:"current"`
	Snapshots    map[int]EstimatePoint `json:"snapshots"`
}

// Report is one reported financial statement.
type Report struct {
	Symbol       string          `json:"symbol"`
	Date         string          `json:"date"` // period end
	FiscalYear   int             `json:"fiscal_year"`
	Period       string          `json:"period"` // Q1..Q4 or FY
	FilingDate   string          `json:"filing_date"`
	AcceptedDate string          `json:"accepted_date"`
	Revenue      decimal.Decimal `json:"revenue"`
	NetIncome    decimal.Decimal `json:"net_income"`
	EPS          decimal.Decimal `json:"eps"`
}

// Annual reports whether the record covers a full fiscal year.
func (r Report) Annual() bool { return r.Period == "FY" }

// CalendarEntry is a scheduled earnings release.
type CalendarEntry struct {
	Symbol           string              `json:"symbol"`
	Date             string              `json:"date"`
	Time             string              `json:"time"` // bmo, amc
	FiscalDateEnding string              `json:"fiscal_date_ending"`
	EPSEstimated     decimal.NullDecimal `json:"eps_estimated"`
	UpdatedFromDate  string              `json:"updated_from_date"`
}

// ErrorResponse is the provider error body.
type ErrorResponse struct {
	ErrorMessage string `json:"Error Message"`
	Message      string `json:"message"`
}

// Fixture is an offline bundle of provider responses for one ticker.
type Fixture struct {
	Estimates []Estimate      `json:"estimates"`
	Quarterly []Report        `json:"quarterly"`
	Annual    []Report        `json:"annual"`
	Calendar  []CalendarEntry `json:"calendar"`
}

// FixtureSchema guards offline fixtures.
const FixtureSchema = `{
  "type": "object",
  "minProperties": 1,
  "additionalProperties": false,
  "properties": {
    "estimates": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["fiscal_year", "fiscal_period"],
        "properties": {
          "fiscal_year": {"type": "integer"},
          "fiscal_period": {"type": "string", "pattern": "^(Q[1-4]|FY)$"},
          "snapshots": {"type": "object", "propertyNames": {"pattern": "^[0-9]+$"}}
        }
      }
    },
    "quarterly": {"type": "array", "items": {"type": "object", "required": ["date", "period"]}},
    "annual": {"type": "array", "items": {"type": "object", "required": ["date", "period"]}},
    "calendar": {"type": "array", "items": {"type": "object", "required": ["date"]}}
  }
}`
