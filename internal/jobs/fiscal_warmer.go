package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/pitdata/pkg/model"
)

// WarmedSubject announces a completed fiscal cache refresh.
const WarmedSubject = "evt.pit.fiscal.warmed.v1"

// Warmer reloads one ticker's fiscal calendar. *fiscal.Resolver implements it.
type Warmer interface {
	Warm(ctx context.Context, ticker string) (int, error)
}

// EventPublisher emits the completion event. *publisher.Publisher implements it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, subject string, ev *model.Event) error
}

// FiscalWarmer periodically refreshes the fiscal cache for a watchlist so that
// estimate and financials lookups resolve period ends without a store round trip.
type FiscalWarmer struct {
	logger    *zap.Logger
	warmer    Warmer
	publisher EventPublisher
	tickers   []string
	interval  time.Duration
	stopCh    chan struct{}
}

// NewFiscalWarmer constructs the background job. publisher may be nil.
func NewFiscalWarmer(logger *zap.Logger, warmer Warmer, pub EventPublisher, tickers []string, interval time.Duration) *FiscalWarmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FiscalWarmer{
		logger:    logger,
		warmer:    warmer,
		publisher: pub,
		tickers:   tickers,
		interval:  interval,
		stopCh:    make(chan struct{}),
	}
}

// Start warms once, then on every tick until stopped.
func (w *FiscalWarmer) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("fiscal_warmer.started",
		zap.Duration("interval", w.interval),
		zap.Int("tickers", len(w.tickers)))
	w.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			w.RunOnce(ctx)
		case <-w.stopCh:
			w.logger.Info("fiscal_warmer.stopped (manual stop)")
			return
		case <-ctx.Done():
			w.logger.Info("fiscal_warmer.stopped (context canceled)")
			return
		}
	}
}

// Stop halts the warmer.
func (w *FiscalWarmer) Stop() {
	close(w.stopCh)
}

// RunOnce executes one refresh cycle and returns the number of tickers warmed.
// A failing ticker is logged and skipped.
func (w *FiscalWarmer) RunOnce(ctx context.Context) int {
	start := time.Now()
	warmed, periods := 0, 0
	for _, t := range w.tickers {
		if ctx.Err() != nil {
			break
		}
		n, err := w.warmer.Warm(ctx, t)
		if err != nil {
			w.logger.Warn("fiscal_warmer.ticker_failed", zap.String("ticker", t), zap.Error(err))
			continue
		}
		warmed++
		periods += n
	}

	if w.publisher != nil {
		ev, err := model.NewEvent(WarmedSubject, "fiscal.warmed", "pitd", map[string]any{
			"tickers":     warmed,
			"failed":      len(w.tickers) - warmed,
			"periods":     periods,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		if err == nil {
			err = w.publisher.PublishEvent(ctx, WarmedSubject, ev)
		}
		if err != nil {
			w.logger.Warn("fiscal_warmer.nats_publish_failed", zap.Error(err))
		}
	}

	w.logger.Info("fiscal_warmer.success",
		zap.Int("warmed", warmed),
		zap.Int("periods", periods),
		zap.Duration("duration", time.Since(start)))
	return warmed
}
