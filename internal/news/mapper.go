package news

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/Checker-Finance/pitdata/internal/adapter"
	"github.com/Checker-Finance/pitdata/pkg/envelope"
	"github.com/Checker-Finance/pitdata/pkg/pit"
)

// publishedAt parses the provider's publish time. Besides ISO-8601 the API
// emits RFC 1123 dates on older articles.
func publishedAt(s string) (time.Time, error) {
	t, err := pit.ParseAssumeMarket(s)
	if err == nil {
		return t, nil
	}
	if t2, err2 := time.Parse(time.RFC1123Z, strings.TrimSpace(s)); err2 == nil {
		return t2, nil
	}
	return time.Time{}, err
}

// TeaserText flattens an HTML teaser to plain text.
func TeaserText(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.TrimSpace(html)
	}
	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// ToRecord normalizes one article.
func ToRecord(a Article) (adapter.Record, error) {
	if a.PublishedAt == "" {
		return adapter.Record{}, adapter.Skip(envelope.GapUnverifiable, "article without publish time")
	}
	at, err := publishedAt(a.PublishedAt)
	if err != nil {
		return adapter.Record{}, adapter.Skip(envelope.GapUnverifiable, "article %s: %v", a.ID, err)
	}

	key := adapter.NormalizeURL(a.URL)
	if key == "" {
		key = "id:" + a.ID
	}
	fields := map[string]any{
		"id":           a.ID,
		"title":        strings.TrimSpace(a.Title),
		"url":          a.URL,
		"summary":      TeaserText(a.Teaser),
		"published_at": pit.ToCanonicalZoneISO(at),
	}
	if a.Author != "" {
		fields["author"] = a.Author
	}
	if a.Publisher != "" {
		fields["publisher"] = a.Publisher
	}
	if len(a.Tickers) > 0 {
		fields["tickers"] = a.Tickers
	}
	return adapter.Record{
		Key:         key,
		Fields:      fields,
		AvailableAt: at,
		Source:      envelope.SourceProviderMetadata,
		Precision:   adapter.PrecisionInstant,
	}, nil
}
