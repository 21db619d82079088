package graph

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Checker-Finance/pitdata/internal/adapter"
	"github.com/Checker-Finance/pitdata/pkg/envelope"
	"github.com/Checker-Finance/pitdata/pkg/pit"
)

const (
	KindFilings = "filings"
	KindNews    = "news"
)

// Reader is the query surface the adapter needs; *Store implements it.
type Reader interface {
	Filings(ctx context.Context, ticker string, limit int) ([]FilingRow, error)
	NewsNodes(ctx context.Context, ticker string, limit int) ([]NewsRow, error)
}

// Fixture is the --input-file shape for the graph source.
type Fixture struct {
	Filings []FilingRow `json:"filings"`
	News    []NewsRow   `json:"news"`
}

// FixtureSchema guards offline fixtures.
const FixtureSchema = `{
  "type": "object",
  "properties": {
    "filings": {"type": "array", "items": {"type": "object", "required": ["id"],
      "properties": {"id": {"type": "string", "minLength": 1}, "accepted_at": {"type": "string"}}}},
    "news": {"type": "array", "items": {"type": "object", "required": ["id"],
      "properties": {"id": {"type": "string", "minLength": 1}, "created_at": {"type": "string"}}}}
  },
  "anyOf": [{"required": ["filings"]}, {"required": ["news"]}]
}`

// Adapter serves filing and news nodes from the entity graph.
type Adapter struct {
	reader    Reader
	logger    *zap.Logger
	overfetch int
}

// NewAdapter builds the graph adapter. reader may be nil when no database is
// configured; fetches then report a config gap unless a fixture is supplied.
func NewAdapter(reader Reader, logger *zap.Logger, overfetch int) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{reader: reader, logger: logger, overfetch: overfetch}
}

func (a *Adapter) Source() adapter.Source { return adapter.Graph }

// Fetch implements adapter.Adapter.
func (a *Adapter) Fetch(ctx context.Context, q adapter.Query) envelope.Envelope {
	c := adapter.NewCollector(q)
	kind := q.Kind
	if kind == "" {
		kind = KindFilings
	}
	if kind != KindFilings && kind != KindNews {
		c.Gap(envelope.GapInputError, "unknown graph kind %q (want filings or news)", kind)
		return c.Envelope()
	}

	filings, news, err := a.load(ctx, q, kind)
	if err != nil {
		a.logger.Warn("graph.fetch_failed", zap.String("ticker", q.Ticker), zap.String("kind", kind), zap.Error(err))
		c.Fail("graph "+kind, err)
		return c.Envelope()
	}

	switch kind {
	case KindFilings:
		for _, r := range filings {
			c.Add(filingRecord(r))
		}
	case KindNews:
		for _, r := range news {
			c.Add(newsRecord(r))
		}
	}
	return c.Envelope()
}

func (a *Adapter) load(ctx context.Context, q adapter.Query, kind string) ([]FilingRow, []NewsRow, error) {
	if q.InputFile != "" {
		var fx Fixture
		if err := adapter.LoadFixture(q.InputFile, FixtureSchema, &fx); err != nil {
			return nil, nil, err
		}
		return fx.Filings, fx.News, nil
	}
	if a.reader == nil {
		return nil, nil, adapter.Skip(envelope.GapConfig, "DATABASE_URL is not set")
	}
	if q.Ticker == "" {
		return nil, nil, adapter.Skip(envelope.GapInputError, "--ticker is required for the graph source")
	}

	budget := q.FetchBudget(a.overfetch)
	if kind == KindNews {
		rows, err := a.reader.NewsNodes(ctx, q.Ticker, budget)
		return nil, rows, err
	}
	rows, err := a.reader.Filings(ctx, q.Ticker, budget)
	return rows, nil, err
}

func filingRecord(r FilingRow) (adapter.Record, error) {
	if r.AcceptedAt == "" {
		return adapter.Record{}, adapter.Skip(envelope.GapUnverifiable, "filing without acceptance time")
	}
	at, err := pit.ParseAssumeMarket(r.AcceptedAt)
	if err != nil {
		return adapter.Record{}, adapter.Skip(envelope.GapUnverifiable, "filing %s: %v", r.ID, err)
	}
	return adapter.Record{
		Key: "filing:" + r.ID,
		Fields: map[string]any{
			"id":            r.ID,
			"type":          "filing",
			"ticker":        r.Ticker,
			"form_type":     r.FormType,
			"accession":     r.Accession,
			"period_start":  r.PeriodStart,
			"period_end":    r.PeriodEnd,
			"fiscal_year":   r.FiscalYear,
			"fiscal_period": r.FiscalPeriod,
		},
		AvailableAt: at,
		Source:      envelope.SourceFilingAcceptance,
		Precision:   adapter.PrecisionInstant,
	}, nil
}

func newsRecord(r NewsRow) (adapter.Record, error) {
	if r.CreatedAt == "" {
		return adapter.Record{}, adapter.Skip(envelope.GapUnverifiable, "news node without store write time")
	}
	at, err := pit.ParseAssumeMarket(r.CreatedAt)
	if err != nil {
		return adapter.Record{}, adapter.Skip(envelope.GapUnverifiable, "news node %s: %v", r.ID, err)
	}
	fields := map[string]any{
		"id":    r.ID,
		"type":  "news",
		"title": r.Title,
		"url":   r.URL,
	}
	if r.PublishedAt != "" {
		fields["published_at"] = r.PublishedAt
	}
	return adapter.Record{
		Key:         fmt.Sprintf("news:%s", r.ID),
		Fields:      fields,
		AvailableAt: at,
		Source:      envelope.SourceStoreWrite,
		Precision:   adapter.PrecisionInstant,
	}, nil
}
