package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Checker-Finance/pitdata/internal/gate"
)

type fakeExec struct {
	sql  string
	args []any
	err  error
}

func (f *fakeExec) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql, f.args = sql, args
	return pgconn.NewCommandTag("INSERT 0 1"), f.err
}

func hookInput() gate.HookInput {
	return gate.HookInput{ToolName: "Bash", ToolInput: json.RawMessage(`{"command":"pit-fetch --pit 2024-01-02T16:00:00-05:00"}`)}
}

func TestVerdictWriter_Insert(t *testing.T) {
	db := &fakeExec{}
	w := NewVerdictWriter(db, zap.NewNop(), "pitd")
	w.now = func() time.Time { return time.Date(2024, 1, 2, 21, 0, 0, 0, time.UTC) }

	err := w.PublishVerdict(context.Background(), hookInput(), gate.Block(gate.CodeForbiddenField, "forbidden key at $.x"))
	require.NoError(t, err)

	assert.Contains(t, db.sql, "pit.gate_verdict")
	require.Len(t, db.args, 7)
	assert.Len(t, db.args[0], 64)
	assert.Equal(t, "Bash", db.args[1])
	assert.Equal(t, "block", db.args[2])
	assert.Equal(t, "PIT_FORBIDDEN_FIELD", db.args[3])
	assert.Equal(t, "pitd", db.args[5])
	assert.Equal(t, w.now(), db.args[6])
}

func TestVerdictWriter_AllowHasNoCode(t *testing.T) {
	db := &fakeExec{}
	require.NoError(t, NewVerdictWriter(db, nil, "pit-gate").PublishVerdict(context.Background(), hookInput(), gate.Verdict{}))
	assert.Equal(t, "allow", db.args[2])
	assert.Equal(t, "", db.args[3])
}

func TestVerdictWriter_NilIsNoop(t *testing.T) {
	var w *VerdictWriter
	assert.NoError(t, w.PublishVerdict(context.Background(), hookInput(), gate.Allow("")))
	assert.NoError(t, NewVerdictWriter(nil, nil, "x").PublishVerdict(context.Background(), hookInput(), gate.Allow("")))
}

func TestVerdictWriter_ExecError(t *testing.T) {
	db := &fakeExec{err: errors.New("relation does not exist")}
	err := NewVerdictWriter(db, nil, "pitd").PublishVerdict(context.Background(), hookInput(), gate.Allow(""))
	assert.ErrorContains(t, err, "relation does not exist")
}

type countingSink struct {
	n   int
	err error
}

func (c *countingSink) PublishVerdict(context.Context, gate.HookInput, gate.Verdict) error {
	c.n++
	return c.err
}

func TestFanout(t *testing.T) {
	a, b := &countingSink{err: errors.New("nats down")}, &countingSink{}
	err := Fanout{a, b}.PublishVerdict(context.Background(), hookInput(), gate.Allow(""))
	assert.ErrorContains(t, err, "nats down")
	assert.Equal(t, 1, a.n)
	assert.Equal(t, 1, b.n, "later sinks still receive the verdict")

	assert.NoError(t, Fanout{}.PublishVerdict(context.Background(), hookInput(), gate.Allow("")))
}
