package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/pitdata/internal/metrics"
	"github.com/Checker-Finance/pitdata/internal/rate"
)

// maxBodyBytes caps how much of a provider response is read.
const maxBodyBytes = 16 << 20

// StatusError is returned for non-2xx provider responses.
type StatusError struct {
	Provider string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned %d", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s returned %d: %s", e.Provider, e.Status, e.Body)
}

// IsStatus reports whether err carries a provider StatusError with the given code.
func IsStatus(err error, status int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}

// Executor handles rate-limited, single-attempt HTTP execution with JSON decoding.
// Failures are returned to the caller, which records them as gaps.
type Executor struct {
	logger       *zap.Logger
	rateMgr      *rate.Manager
	http         *http.Client
	provider     string
	errorHandler func(status int, body []byte) error
}

// New creates an Executor. errorHandler is called on non-2xx responses to produce a
// provider-specific error. If nil, a *StatusError is returned.
func New(
	logger *zap.Logger,
	rateMgr *rate.Manager,
	httpClient *http.Client,
	provider string,
	errorHandler func(status int, body []byte) error,
) *Executor {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Executor{
		logger:       logger,
		rateMgr:      rateMgr,
		http:         httpClient,
		provider:     provider,
		errorHandler: errorHandler,
	}
}

// DoJSON executes req once, with rate limiting, then JSON-decodes the response into out.
func (e *Executor) DoJSON(ctx context.Context, req *http.Request, out any) error {
	if e.rateMgr != nil {
		if err := e.rateMgr.Wait(ctx, e.provider); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	start := time.Now()
	resp, err := e.http.Do(req.WithContext(ctx))
	if err != nil {
		metrics.IncProviderRequest(e.provider, "transport_error")
		e.logger.Warn(e.provider+".http_failed",
			zap.String("url", redactURL(req)),
			zap.Error(err))
		return fmt.Errorf("%s request failed: %w", e.provider, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	metrics.ObserveDuration(metrics.ProviderRequestDuration, start, e.provider)
	metrics.IncProviderRequest(e.provider, strconv.Itoa(resp.StatusCode))
	if err != nil {
		return fmt.Errorf("%s read body: %w", e.provider, err)
	}
	elapsed := time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		e.logger.Warn(e.provider+".http_status",
			zap.Int("status", resp.StatusCode),
			zap.String("url", redactURL(req)),
			zap.Duration("latency", elapsed))
		if e.errorHandler != nil {
			return e.errorHandler(resp.StatusCode, body)
		}
		return &StatusError{Provider: e.provider, Status: resp.StatusCode, Body: truncate(string(body), 200)}
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			e.logger.Warn(e.provider+".decode_failed",
				zap.Error(err),
				zap.String("url", redactURL(req)),
				zap.String("body", truncate(string(body), 500)))
			return fmt.Errorf("%s decode failed: %w", e.provider, err)
		}
	}

	e.logger.Debug(e.provider+".http_success",
		zap.String("url", redactURL(req)),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", elapsed))
	return nil
}

// redactURL drops the query string, which may carry an API key.
func redactURL(req *http.Request) string {
	if req == nil || req.URL == nil {
		return ""
	}
	u := *req.URL
	u.RawQuery = ""
	return u.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
