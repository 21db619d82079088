package qa

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/Checker-Finance/pitdata/internal/httpclient"
	"github.com/Checker-Finance/pitdata/internal/rate"
)

// Client wraps the Q&A search HTTP API.
type Client struct {
	logger *zap.Logger
	exec   *httpclient.Executor
}

// NewClient builds a client.
func NewClient(logger *zap.Logger, rateMgr *rate.Manager, httpClient *http.Client) *Client {
	exec := httpclient.New(logger, rateMgr, httpClient, "qa", func(status int, body []byte) error {
		var errResp ErrorResponse
		_ = json.Unmarshal(body, &errResp)
		msg := errResp.Error.Message
		if msg == "" {
			msg = string(body)
		}
		logger.Warn("qa.client_error", zap.Int("status", status), zap.String("type", errResp.Error.Type))
		return &httpclient.StatusError{Provider: "qa", Status: status, Body: msg}
	})
	return &Client{logger: logger, exec: exec}
}

// Ask sends one chat request. POST {base}/chat/completions
func (c *Client) Ask(ctx context.Context, baseURL, apiKey string, body ChatRequest) (*ChatResponse, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/chat/completions", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	var resp ChatResponse
	if err := c.exec.DoJSON(ctx, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
