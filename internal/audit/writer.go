// Package audit persists gate verdicts and fans them out to every
// configured sink.
package audit

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/Checker-Finance/pitdata/internal/gate"
	"github.com/Checker-Finance/pitdata/internal/publisher"
)

// Executor is the subset of pgxpool.Pool the writer needs.
type Executor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const insertVerdict = `
	INSERT INTO pit.gate_verdict (
		s_fingerprint,
		s_tool,
		s_decision,
		s_code,
		s_detail,
		s_source,
		dt_validated
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (s_fingerprint, dt_validated) DO NOTHING;
`

// VerdictWriter records gate verdicts in Postgres.
type VerdictWriter struct {
	db     Executor
	logger *zap.Logger
	source string
	now    func() time.Time
}

// NewVerdictWriter builds a writer. source names the process writing the row
// (e.g. "pitd", "pit-gate").
func NewVerdictWriter(db Executor, logger *zap.Logger, source string) *VerdictWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VerdictWriter{db: db, logger: logger, source: source, now: time.Now}
}

// PublishVerdict inserts one verdict row. A nil writer or database is a no-op.
func (w *VerdictWriter) PublishVerdict(ctx context.Context, in gate.HookInput, v gate.Verdict) error {
	if w == nil || w.db == nil {
		return nil
	}
	fp, err := publisher.Fingerprint(in)
	if err != nil {
		return err
	}
	decision := string(v.Decision)
	if decision == "" {
		decision = string(gate.DecisionAllow)
	}

	if _, err := w.db.Exec(ctx, insertVerdict,
		fp,             // s_fingerprint
		in.ToolName,    // s_tool
		decision,       // s_decision
		string(v.Code), // s_code
		v.Detail,       // s_detail
		w.source,       // s_source
		w.now().UTC(),  // dt_validated
	); err != nil {
		w.logger.Error("audit.verdict_write_failed",
			zap.String("tool", in.ToolName),
			zap.String("fingerprint", fp),
			zap.Error(err))
		return err
	}

	w.logger.Debug("audit.verdict_written",
		zap.String("tool", in.ToolName),
		zap.String("decision", decision),
		zap.String("code", string(v.Code)))
	return nil
}

// Sink receives gate verdicts.
type Sink interface {
	PublishVerdict(ctx context.Context, in gate.HookInput, v gate.Verdict) error
}

// Fanout delivers each verdict to every sink and joins their errors.
type Fanout []Sink

func (f Fanout) PublishVerdict(ctx context.Context, in gate.HookInput, v gate.Verdict) error {
	var errs []error
	for _, s := range f {
		if err := s.PublishVerdict(ctx, in, v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
