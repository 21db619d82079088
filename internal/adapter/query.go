package adapter

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Checker-Finance/pitdata/pkg/pit"
)

const DefaultLimit = 20

// Query is one adapter request. A nil Cutoff means open mode.
type Query struct {
	Source       Source     `json:"source" validate:"required,oneof=graph news qa fundamentals"`
	Cutoff       *time.Time `json:"-"`
	Ticker       string     `json:"ticker,omitempty" validate:"omitempty,max=16,excludesall=/"`
	Text         string     `json:"query,omitempty" validate:"omitempty,max=2000"`
	Kind         string     `json:"kind,omitempty" validate:"omitempty,max=32"`
	FiscalPeriod string     `json:"fiscal_period,omitempty" validate:"omitempty,max=16"`
	FYEMonth     int        `json:"fye_month,omitempty" validate:"min=0,max=12"`
	Limit        int        `json:"limit" validate:"min=1,max=500"`
	InputFile    string     `json:"input_file,omitempty"`
}

var validate = validator.New()

// Validate checks field bounds.
func (q Query) Validate() error {
	if err := validate.Struct(q); err != nil {
		return fmt.Errorf("invalid query: %w", err)
	}
	return nil
}

// PIT reports whether the query carries a cutoff.
func (q Query) PIT() bool { return q.Cutoff != nil }

// Mode labels the query for logs and metrics.
func (q Query) Mode() string {
	if q.PIT() {
		return "pit"
	}
	return "open"
}

// WithDefaults fills in the limit and normalizes the ticker.
func (q Query) WithDefaults() Query {
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	q.Ticker = strings.ToUpper(strings.TrimSpace(q.Ticker))
	q.Kind = strings.ToLower(strings.TrimSpace(q.Kind))
	return q
}

// FetchBudget is how many raw records an adapter may page through before
// filtering, given an overfetch factor.
func (q Query) FetchBudget(factor int) int {
	if factor < 1 {
		factor = 1
	}
	return q.Limit * factor
}

// ParseCutoff parses a --pit value. Empty means open mode. A value without a
// zone is read in the market zone; date-only values are rejected.
func ParseCutoff(text string) (*time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	t, err := pit.ParseAssumeMarket(text)
	if err != nil {
		return nil, fmt.Errorf("invalid --pit: %w", err)
	}
	return &t, nil
}
