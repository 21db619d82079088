package publisher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gowebpki/jcs"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/Checker-Finance/pitdata/internal/gate"
	"github.com/Checker-Finance/pitdata/internal/metrics"
	"github.com/Checker-Finance/pitdata/pkg/model"
)

// DefaultVerdictSubject is the subject gate verdicts are audited on.
const DefaultVerdictSubject = "evt.pit.gate.verdict.v1"

// jetStream is the part of nats.JetStreamContext the publisher uses.
type jetStream interface {
	PublishMsg(m *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Publisher publishes canonical events to NATS JetStream.
type Publisher struct {
	nc      *nats.Conn
	js      jetStream
	subject string
	service string
	logger  *zap.Logger
}

// New creates a Publisher on nc with JetStream enabled.
func New(nc *nats.Conn, subject, service string, logger *zap.Logger) (*Publisher, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	return newPublisher(nc, js, subject, service, logger), nil
}

func newPublisher(nc *nats.Conn, js jetStream, subject, service string, logger *zap.Logger) *Publisher {
	if subject == "" {
		subject = DefaultVerdictSubject
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{nc: nc, js: js, subject: subject, service: service, logger: logger}
}

// PublishEvent serializes and publishes a canonical event. An empty subject
// uses the publisher's default.
func (p *Publisher) PublishEvent(ctx context.Context, subject string, ev *model.Event) error {
	if subject == "" {
		subject = p.subject
	}
	data, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("publisher.marshal_failed", zap.String("subject", subject), zap.Error(err))
		metrics.IncNATSMessage(subject, "marshal_failed")
		return err
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"event_type":     []string{ev.EventType},
			"correlation_id": []string{ev.CorrelationID.String()},
			"service":        []string{p.service},
			"content_type":   []string{"application/json"},
			// JetStream drops a second message with the same id.
			nats.MsgIdHdr: []string{ev.ID.String()},
		},
	}

	start := time.Now()
	_, err = p.js.PublishMsg(msg, nats.Context(ctx))
	metrics.ObserveDuration(metrics.NATSMessageLatency, start, subject)
	if err != nil {
		p.logger.Error("publisher.publish_failed",
			zap.String("subject", subject),
			zap.String("event_type", ev.EventType),
			zap.Error(err))
		metrics.IncNATSMessage(subject, "error")
		return err
	}

	p.logger.Debug("publisher.publish_success", zap.String("subject", subject), zap.String("event_type", ev.EventType))
	metrics.IncNATSMessage(subject, "ok")
	return nil
}

// Fingerprint hashes the RFC 8785 canonical form of a tool call, so key
// order and whitespace do not change it.
func Fingerprint(in gate.HookInput) (string, error) {
	raw, err := json.Marshal(in)
	if err != nil {
		return "", err
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize tool call: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// PublishVerdict audits one gate decision.
func (p *Publisher) PublishVerdict(ctx context.Context, in gate.HookInput, v gate.Verdict) error {
	fp, err := Fingerprint(in)
	if err != nil {
		// Calls that are not valid JSON are still audited.
		p.logger.Warn("publisher.fingerprint_failed", zap.Error(err))
	}
	ev, err := model.NewEvent(p.subject, "pit.gate.verdict", p.service, model.GateVerdictEvent{
		Tool:            in.ToolName,
		Decision:        string(v.Decision),
		Code:            string(v.Code),
		Detail:          v.Detail,
		CallFingerprint: fp,
		ValidatedAt:     time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return p.PublishEvent(ctx, p.subject, ev)
}

// Close closes the underlying connection.
func (p *Publisher) Close() {
	if p.nc != nil && p.nc.IsConnected() {
		p.nc.Close()
	}
}
