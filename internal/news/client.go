package news

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/Checker-Finance/pitdata/internal/httpclient"
	"github.com/Checker-Finance/pitdata/internal/rate"
)

// MaxPageSize is the provider's page size ceiling.
const MaxPageSize = 100

// Client wraps the news search HTTP API.
type Client struct {
	logger *zap.Logger
	exec   *httpclient.Executor
}

// NewClient builds a client. httpClient carries the per-call timeout.
func NewClient(logger *zap.Logger, rateMgr *rate.Manager, httpClient *http.Client) *Client {
	exec := httpclient.New(logger, rateMgr, httpClient, "news", func(status int, body []byte) error {
		var errResp ErrorResponse
		_ = json.Unmarshal(body, &errResp)
		msg := errResp.Message
		if msg == "" {
			msg = errResp.Error
		}
		logger.Warn("news.client_error", zap.Int("status", status), zap.String("message", msg))
		return &httpclient.StatusError{Provider: "news", Status: status, Body: msg}
	})
	return &Client{logger: logger, exec: exec}
}

// Search fetches one page.
// GET {base}/news?token=...&tickers=...&q=...&dateTo=...&page=...&pageSize=...
func (c *Client) Search(ctx context.Context, baseURL, apiKey string, p SearchParams) (*SearchResponse, error) {
	v := url.Values{}
	v.Set("token", apiKey)
	if p.Tickers != "" {
		v.Set("tickers", p.Tickers)
	}
	if p.Query != "" {
		v.Set("q", p.Query)
	}
	if p.DateTo != "" {
		v.Set("dateTo", p.DateTo)
	}
	v.Set("page", strconv.Itoa(p.Page))
	v.Set("pageSize", strconv.Itoa(p.PageSize))
	v.Set("displayOutput", "full")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/news?%s", baseURL, v.Encode()), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	var resp SearchResponse
	if err := c.exec.DoJSON(ctx, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
