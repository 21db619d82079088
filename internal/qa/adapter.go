// Package qa adapts a chat-style Q&A search API. Cited documents carry only a
// publish day; the synthesized answer is served in open mode only.
package qa

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/pitdata/internal/adapter"
	"github.com/Checker-Finance/pitdata/pkg/envelope"
	"github.com/Checker-Finance/pitdata/pkg/pit"
)

const systemPrompt = "Answer concisely using financial sources. Cite every document you rely on."

// Adapter serves Q&A search results.
type Adapter struct {
	client *Client
	creds  adapter.CredentialSource
	opts   adapter.HTTPOptions
	model  string
	logger *zap.Logger
	now    func() time.Time
}

// NewAdapter builds the Q&A adapter.
func NewAdapter(client *Client, creds adapter.CredentialSource, opts adapter.HTTPOptions, model string, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if model == "" {
		model = "sonar"
	}
	return &Adapter{client: client, creds: creds, opts: opts, model: model, logger: logger, now: time.Now}
}

func (a *Adapter) Source() adapter.Source { return adapter.QA }

// Fetch implements adapter.Adapter.
func (a *Adapter) Fetch(ctx context.Context, q adapter.Query) envelope.Envelope {
	c := adapter.NewCollector(q)
	question := q.Text
	if question == "" && q.Ticker != "" {
		question = "Latest material developments for " + q.Ticker
	}

	var resp *ChatResponse
	var fetchedAt time.Time
	if q.InputFile != "" {
		var fixture ChatResponse
		if err := adapter.LoadFixture(q.InputFile, FixtureSchema, &fixture); err != nil {
			c.Fail("qa fixture", err)
			return c.Envelope()
		}
		resp = &fixture
	} else {
		if question == "" {
			c.Gap(envelope.GapInputError, "qa requires --query or --ticker")
			return c.Envelope()
		}
		creds, err := a.creds.Resolve(ctx, "qa")
		if err != nil {
			c.Fail("qa credentials", err)
			return c.Envelope()
		}
		pageSize, _ := a.opts.Paging(q, 0)
		body := ChatRequest{
			Model: a.model,
			Messages: []Message{
				{Role: "system", Content: systemPrompt},
				{Role: "user", Content: question},
			},
			MaxResults: pageSize,
		}
		if q.Cutoff != nil {
			body.SearchBeforeDate = pit.MarketDate(*q.Cutoff).Format("01/02/2006")
		}
		fetchedAt = a.now()
		resp, err = a.client.Ask(ctx, adapter.ResolveBase(a.opts.BaseURL, creds), creds.APIKey, body)
		if err != nil {
			a.logger.Warn("qa.fetch_failed", zap.Error(err))
			c.Fail("qa search", err)
			return c.Envelope()
		}
	}

	if resp.Answer() != "" {
		c.Add(AnswerToRecord(resp, question, fetchedAt))
	}
	for _, r := range resp.SearchResults {
		c.Add(ResultToRecord(r))
	}
	return c.Envelope()
}
