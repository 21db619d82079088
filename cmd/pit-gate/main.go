// Command pit-gate is the post-tool-call hook. It reads one hook input
// document from stdin, writes one verdict object to stdout and always exits 0;
// the host enforces a block.
package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/Checker-Finance/pitdata/internal/app"
	"github.com/Checker-Finance/pitdata/internal/gate"
	"github.com/Checker-Finance/pitdata/internal/publisher"
	"github.com/Checker-Finance/pitdata/pkg/config"
	"github.com/Checker-Finance/pitdata/pkg/logger"
)

// maxInput bounds the hook document read from stdin.
const maxInput = 64 << 20

// auditTimeout bounds the optional verdict publish.
const auditTimeout = 2 * time.Second

type validator interface {
	Validate(in gate.HookInput) gate.Verdict
	ValidateJSON(raw []byte) gate.Verdict
}

type sink interface {
	PublishVerdict(ctx context.Context, in gate.HookInput, v gate.Verdict) error
}

// run validates one hook document. It never fails; audit problems are logged.
func run(stdin io.Reader, stdout io.Writer, v validator, audit sink, log *zap.Logger) {
	raw, err := io.ReadAll(io.LimitReader(stdin, maxInput))
	var verdict gate.Verdict
	if err != nil {
		log.Warn("pit_gate.read_failed", zap.Error(err))
		verdict = gate.Allow("unreadable hook input")
	} else {
		verdict = v.ValidateJSON(raw)
	}

	if _, err := stdout.Write(verdict.HookOutput()); err != nil {
		log.Warn("pit_gate.write_failed", zap.Error(err))
	}

	if audit != nil {
		var in gate.HookInput
		_ = json.Unmarshal(raw, &in)
		ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
		defer cancel()
		if err := audit.PublishVerdict(ctx, in, verdict); err != nil {
			log.Warn("pit_gate.audit_failed", zap.Error(err))
		}
	}
}

// connectAudit returns the NATS verdict publisher, or nil when NATS is not
// configured or unreachable.
func connectAudit(cfg *config.Config, log *zap.Logger) (*publisher.Publisher, func()) {
	if cfg.NATSURL == "" {
		return nil, func() {}
	}
	nc, err := nats.Connect(cfg.NATSURL, nats.Name(cfg.ServiceName), nats.Timeout(500*time.Millisecond))
	if err != nil {
		log.Warn("pit_gate.nats_unavailable", zap.Error(err))
		return nil, func() {}
	}
	pub, err := publisher.New(nc, cfg.VerdictSubject, cfg.ServiceName, log)
	if err != nil {
		log.Warn("pit_gate.publisher_init_failed", zap.Error(err))
		nc.Close()
		return nil, func() {}
	}
	return pub, func() { _ = nc.Drain() }
}

func main() {
	cfg := config.Load()
	cfg.ServiceName = "pit-gate"
	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	log := logger.L()

	var audit sink
	pub, closeAudit := connectAudit(cfg, log)
	defer closeAudit()
	if pub != nil {
		audit = pub
	}

	run(os.Stdin, os.Stdout, gate.New(app.GateConfig(cfg), log), audit, log)
}
