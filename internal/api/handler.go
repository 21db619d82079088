package api

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Checker-Finance/pitdata/internal/adapter"
	"github.com/Checker-Finance/pitdata/internal/gate"
	"github.com/Checker-Finance/pitdata/pkg/envelope"
)

// Fetcher dispatches adapter queries. *adapter.Registry implements it.
type Fetcher interface {
	Fetch(ctx context.Context, q adapter.Query) envelope.Envelope
}

// Validator judges tool calls. *gate.Validator implements it.
type Validator interface {
	Validate(in gate.HookInput) gate.Verdict
	ValidateJSON(raw []byte) gate.Verdict
}

// VerdictPublisher audits gate decisions. Optional.
type VerdictPublisher interface {
	PublishVerdict(ctx context.Context, in gate.HookInput, v gate.Verdict) error
}

// Handler serves the fetch and gate endpoints.
type Handler struct {
	logger    *zap.Logger
	fetcher   Fetcher
	validator Validator
	publisher VerdictPublisher
	timeout   time.Duration
}

// NewHandler creates a Handler. publisher may be nil; timeout bounds each
// fetch (zero means none).
func NewHandler(logger *zap.Logger, fetcher Fetcher, validator Validator, publisher VerdictPublisher, timeout time.Duration) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{logger: logger, fetcher: fetcher, validator: validator, publisher: publisher, timeout: timeout}
}

func sendEnvelope(c *fiber.Ctx, env envelope.Envelope) error {
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(fiber.StatusOK).Send(env.Marshal())
}

// FetchHandler runs one adapter query. Adapter failures are reported as gaps
// in a 200 response; only a malformed body is a 400.
func (h *Handler) FetchHandler(c *fiber.Ctx) error {
	var req FetchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	src, err := adapter.ParseSource(req.Source)
	if err != nil {
		return sendEnvelope(c, envelope.WithGap(envelope.GapInputError, "%v", err))
	}
	q, err := req.toQuery(src)
	if err != nil {
		return sendEnvelope(c, envelope.WithGap(envelope.GapInvalidPIT, "%v", err))
	}

	ctx := c.UserContext()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	env := h.fetcher.Fetch(ctx, q)
	return sendEnvelope(c, env)
}

// GateHandler validates one tool call and answers with the hook output.
func (h *Handler) GateHandler(c *fiber.Ctx) error {
	body := c.Body()
	var in gate.HookInput
	var verdict gate.Verdict
	if err := json.Unmarshal(body, &in); err != nil {
		verdict = h.validator.ValidateJSON(body)
	} else {
		verdict = h.validator.Validate(in)
	}

	if h.publisher != nil {
		if err := h.publisher.PublishVerdict(c.UserContext(), in, verdict); err != nil {
			h.logger.Warn("gate.audit_failed", zap.Error(err))
		}
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(fiber.StatusOK).Send(verdict.HookOutput())
}
