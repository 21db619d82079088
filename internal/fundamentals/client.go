package fundamentals

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

// Client wraps the fundamentals snapshot HTTP API.
type Client struct {
	logger *zap.Logger
	exec   *httpclient.Executor
}

// NewClient builds a client.
func NewClient(logger *zap.Logger, rateMgr *rate.Manager, httpClient *http.Client) *Client {
	exec := httpclient.New(logger, rateMgr, httpClient, "fundamentals", func(status int, body []byte) error {
		var errResp ErrorResponse
		_ = json.Unmarshal(body, &errResp)
		msg := errResp.ErrorMessage
		if msg == "" {
			msg = errResp.Message
		}
		logger.Warn("fundamentals.client_error", zap.Int("status", status), zap.String("message", msg))
		return &httpclient.StatusError{Provider: "fundamentals", Status: status, Body: msg}
	})
	return &Client{logger: logger, exec: exec}
}

func (c *Client) get(ctx context.Context, baseURL, path, apiKey string, v url.Values, out any) error {
	v.Set("apikey", apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s%s?%s", baseURL, path, v.Encode()), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	return c.exec.DoJSON(ctx, req, out)
}

// Estimates fetches consensus snapshots.
// GET {base}/v1/estimates?symbol=...&period=quarter&limit=...
func (c *Client) Estimates(ctx context.Context, baseURL, apiKey, symbol string, limit int) ([]Estimate, error) {
	var out []Estimate
	v := url.Values{"symbol": {symbol}, "period": {"quarter"}, "limit": {strconv.Itoa(limit)}}
	if err := c.get(ctx, baseURL, "/v1/estimates", apiKey, v, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Reports fetches income statements; period is "quarter" or "annual".
// GET {base}/v1/financials?symbol=...&period=...&limit=...
func (c *Client) Reports(ctx context.Context, baseURL, apiKey, symbol, period string, limit int) ([]Report, error) {
	var out []Report
	v := url.Values{"symbol": {symbol}, "period": {period}, "limit": {strconv.Itoa(limit)}}
	if err := c.get(ctx, baseURL, "/v1/financials", apiKey, v, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Calendar fetches upcoming earnings dates.
// GET {base}/v1/earnings-calendar?symbol=...
func (c *Client) Calendar(ctx context.Context, baseURL, apiKey, symbol string) ([]CalendarEntry, error) {
	var out []CalendarEntry
	if err := c.get(ctx, baseURL, "/v1/earnings-calendar", apiKey, url.Values{"symbol": {symbol}}, &out); err != nil {
		return nil, err
	}
	return out, nil
}
