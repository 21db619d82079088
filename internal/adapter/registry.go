package adapter

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/pitdata/internal/metrics"
	"github.com/Checker-Finance/pitdata/pkg/envelope"
)

// Registry dispatches queries to adapters by source.
type Registry struct {
	logger   *zap.Logger
	adapters map[Source]Adapter
}

// NewRegistry registers adapters; a later adapter for the same source wins.
func NewRegistry(logger *zap.Logger, adapters ...Adapter) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{logger: logger, adapters: make(map[Source]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Source()] = a
	}
	return r
}

// Get returns the adapter for s.
func (r *Registry) Get(s Source) (Adapter, bool) {
	a, ok := r.adapters[s]
	return a, ok
}

// Fetch validates q, dispatches it and records metrics. It always returns a
// well-formed envelope.
func (r *Registry) Fetch(ctx context.Context, q Query) envelope.Envelope {
	q = q.WithDefaults()
	if err := q.Validate(); err != nil {
		return envelope.WithGap(envelope.GapInputError, "%v", err)
	}
	a, ok := r.Get(q.Source)
	if !ok {
		return envelope.WithGap(envelope.GapConfig, "source %s is not configured", q.Source)
	}

	start := time.Now()
	env := Run(ctx, r.logger, a, q)

	types := env.GapTypes()
	labels := make([]string, len(types))
	for i, t := range types {
		labels[i] = string(t)
	}
	metrics.AddEnvelope(string(q.Source), q.Mode(), len(env.Data), labels)

	r.logger.Info("adapter.fetch_complete",
		zap.String("source", string(q.Source)),
		zap.String("mode", q.Mode()),
		zap.Int("items", len(env.Data)),
		zap.Strings("gaps", labels),
		zap.Duration("elapsed", time.Since(start)))
	return env
}

// Run invokes a.Fetch, converting a panic into an internal_error gap.
func Run(ctx context.Context, logger *zap.Logger, a Adapter, q Query) (env envelope.Envelope) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("adapter.panic",
				zap.String("source", string(a.Source())),
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()))
			env = envelope.WithGap(envelope.GapInternalError, "%s adapter failed: %v", a.Source(), fmt.Sprint(rec))
		}
	}()
	env = a.Fetch(ctx, q)
	env.Normalize()
	return env
}
