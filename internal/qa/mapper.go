package qa

import (
	"strings"
	"time"

	"github.com/Checker-Finance/pitdata/internal/adapter"
	"github.com/Checker-Finance/pitdata/pkg/envelope"
	"github.com/Checker-Finance/pitdata/pkg/pit"
)

// ResultToRecord normalizes one cited search result. Only the publish day is
// known, so the record is filtered with day precision.
func ResultToRecord(r SearchResult) (adapter.Record, error) {
	date := strings.TrimSpace(r.Date)
	if date == "" {
		return adapter.Record{}, adapter.Skip(envelope.GapUnverifiable, "search result without publish date")
	}
	day, err := pit.ParseDate(date)
	if err != nil {
		return adapter.Record{}, adapter.Skip(envelope.GapUnverifiable, "search result %q: %v", r.URL, err)
	}
	return adapter.Record{
		Key: adapter.NormalizeURL(r.URL),
		Fields: map[string]any{
			"kind":           "search_result",
			"title":          strings.TrimSpace(r.Title),
			"url":            r.URL,
			"published_date": date,
		},
		AvailableAt: day,
		Source:      envelope.SourceProviderMetadata,
		Precision:   adapter.PrecisionDate,
	}, nil
}

// AnswerToRecord wraps the synthesized answer. It is built from several
// documents, so it is never served with a cutoff. fetchedAt stands in when
// the response has no creation time; zero means none is known.
func AnswerToRecord(resp *ChatResponse, question string, fetchedAt time.Time) (adapter.Record, error) {
	text := strings.TrimSpace(resp.Answer())
	if text == "" {
		return adapter.Record{}, adapter.Skip(envelope.GapUnverifiable, "empty answer")
	}
	at := fetchedAt
	if resp.Created > 0 {
		at = time.Unix(resp.Created, 0)
	}
	if at.IsZero() {
		return adapter.Record{}, adapter.Skip(envelope.GapUnverifiable, "answer without creation time")
	}
	citations := make([]string, 0, len(resp.SearchResults))
	for _, r := range resp.SearchResults {
		citations = append(citations, r.URL)
	}
	key := "answer:" + resp.ID
	if resp.ID == "" {
		key = "answer"
	}
	return adapter.Record{
		Key: key,
		Fields: map[string]any{
			"kind":      "answer",
			"question":  question,
			"answer":    text,
			"model":     resp.Model,
			"citations": citations,
		},
		AvailableAt: at,
		Source:      envelope.SourceProviderMetadata,
		Precision:   adapter.PrecisionInstant,
		Aggregated:  true,
	}, nil
}
