// Package news adapts a news search API. Publish times carry full
// time-of-day precision; results are deduplicated by normalized URL.
package news

import (
	"context"

	"go.uber.org/zap"

	"github.com/Checker-Finance/pitdata/internal/adapter"
	"github.com/Checker-Finance/pitdata/pkg/envelope"
	"github.com/Checker-Finance/pitdata/pkg/pit"
)

// Adapter serves news articles.
type Adapter struct {
	client *Client
	creds  adapter.CredentialSource
	opts   adapter.HTTPOptions
	logger *zap.Logger
}

// NewAdapter builds the news adapter.
func NewAdapter(client *Client, creds adapter.CredentialSource, opts adapter.HTTPOptions, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{client: client, creds: creds, opts: opts, logger: logger}
}

func (a *Adapter) Source() adapter.Source { return adapter.News }

// Fetch implements adapter.Adapter.
func (a *Adapter) Fetch(ctx context.Context, q adapter.Query) envelope.Envelope {
	c := adapter.NewCollector(q)

	if q.InputFile != "" {
		var page SearchResponse
		if err := adapter.LoadFixture(q.InputFile, FixtureSchema, &page); err != nil {
			c.Fail("news fixture", err)
			return c.Envelope()
		}
		for _, art := range page.Results {
			c.Add(ToRecord(art))
		}
		return c.Envelope()
	}

	if q.Ticker == "" && q.Text == "" {
		c.Gap(envelope.GapInputError, "news requires --ticker or --query")
		return c.Envelope()
	}
	creds, err := a.creds.Resolve(ctx, "news")
	if err != nil {
		c.Fail("news credentials", err)
		return c.Envelope()
	}
	base := adapter.ResolveBase(a.opts.BaseURL, creds)

	params := SearchParams{Tickers: q.Ticker, Query: q.Text}
	if q.Cutoff != nil {
		// Inclusive day bound; the collector applies the exact instant.
		params.DateTo = pit.MarketDate(*q.Cutoff).Format("2006-01-02")
	}
	pageSize, maxPages := a.opts.Paging(q, MaxPageSize)
	params.PageSize = pageSize

	for page := 0; page < maxPages && !c.Full(); page++ {
		params.Page = page
		resp, err := a.client.Search(ctx, base, creds.APIKey, params)
		if err != nil {
			a.logger.Warn("news.fetch_failed", zap.Int("page", page), zap.Error(err))
			c.Fail("news search", err)
			break
		}
		for _, art := range resp.Results {
			c.Add(ToRecord(art))
		}
		if len(resp.Results) < pageSize || resp.NextPage == nil {
			break
		}
	}
	return c.Envelope()
}
