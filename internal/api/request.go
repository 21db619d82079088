package api

import (
	"github.com/Checker-Finance/pitdata/internal/adapter"
)

// FetchRequest is the body of POST /api/v1/fetch. Offline fixtures are not
// reachable over HTTP.
type FetchRequest struct {
	Source       string `json:"source"`
	PIT          string `json:"pit,omitempty"`
	Ticker       string `json:"ticker,omitempty"`
	Query        string `json:"query,omitempty"`
	Kind         string `json:"kind,omitempty"`
	FiscalPeriod string `json:"fiscal_period,omitempty"`
	FYEMonth     int    `json:"fye_month,omitempty"`
	Limit        int    `json:"limit,omitempty"`
}

// toQuery maps the request onto an adapter query. An error means the cutoff
// did not parse.
func (r FetchRequest) toQuery(src adapter.Source) (adapter.Query, error) {
	cutoff, err := adapter.ParseCutoff(r.PIT)
	if err != nil {
		return adapter.Query{}, err
	}
	return adapter.Query{
		Source:       src,
		Cutoff:       cutoff,
		Ticker:       r.Ticker,
		Text:         r.Query,
		Kind:         r.Kind,
		FiscalPeriod: r.FiscalPeriod,
		FYEMonth:     r.FYEMonth,
		Limit:        r.Limit,
	}, nil
}
