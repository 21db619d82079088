package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Checker-Finance/pitdata/pkg/model"
)

type fakeWarmer struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
}

func (f *fakeWarmer) Warm(_ context.Context, ticker string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ticker)
	if f.fail[ticker] {
		return 0, errors.New("no filings")
	}
	return 4, nil
}

func (f *fakeWarmer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakePublisher struct {
	subject string
	ev      *model.Event
	err     error
}

func (f *fakePublisher) PublishEvent(_ context.Context, subject string, ev *model.Event) error {
	f.subject, f.ev = subject, ev
	return f.err
}

func TestFiscalWarmer_RunOnce(t *testing.T) {
	w := &fakeWarmer{fail: map[string]bool{"BAD": true}}
	pub := &fakePublisher{}
	job := NewFiscalWarmer(zap.NewNop(), w, pub, []string{"AAPL", "BAD", "MSFT"}, time.Hour)

	assert.Equal(t, 2, job.RunOnce(context.Background()))
	assert.Equal(t, []string{"AAPL", "BAD", "MSFT"}, w.calls)

	require.NotNil(t, pub.ev)
	assert.Equal(t, WarmedSubject, pub.subject)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(pub.ev.Payload, &payload))
	assert.EqualValues(t, 2, payload["tickers"])
	assert.EqualValues(t, 1, payload["failed"])
	assert.EqualValues(t, 8, payload["periods"])
}

func TestFiscalWarmer_PublishFailureIsLogged(t *testing.T) {
	job := NewFiscalWarmer(nil, &fakeWarmer{}, &fakePublisher{err: errors.New("nats down")}, []string{"AAPL"}, time.Hour)
	assert.Equal(t, 1, job.RunOnce(context.Background()))
}

func TestFiscalWarmer_CanceledContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := &fakeWarmer{}
	assert.Equal(t, 0, NewFiscalWarmer(nil, w, nil, []string{"AAPL"}, time.Hour).RunOnce(ctx))
	assert.Empty(t, w.calls)
}

func TestFiscalWarmer_StartAndStop(t *testing.T) {
	w := &fakeWarmer{}
	job := NewFiscalWarmer(zap.NewNop(), w, nil, []string{"AAPL"}, 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		job.Start(context.Background())
		close(done)
	}()

	assert.Eventually(t, func() bool { return w.count() >= 2 }, time.Second, 5*time.Millisecond)
	job.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("warmer did not stop")
	}
}
