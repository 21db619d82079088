// Package gate re-validates a tool call's input and output against the
// point-in-time contract. It trusts nothing the adapters did: every item of
// the response is checked again against the cutoff found in the call.
package gate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/pitdata/internal/metrics"
	"github.com/Checker-Finance/pitdata/pkg/config"
	"github.com/Checker-Finance/pitdata/pkg/envelope"
	"github.com/Checker-Finance/pitdata/pkg/pit"
)

// Config is the gate policy.
type Config struct {
	// Wrappers are the PIT-aware scripts whose shell invocations are gated.
	Wrappers []string
	// ShellTools are tool names that carry a shell command.
	ShellTools []string
	// ForbiddenKeys block the call wherever they appear as a key.
	ForbiddenKeys []string
	// MaxDepth bounds the forbidden-key scan.
	MaxDepth int
}

// DefaultConfig returns the built-in policy.
func DefaultConfig() Config {
	return Config{
		Wrappers:      config.DefaultGateWrappers,
		ShellTools:    []string{"Bash", "shell"},
		ForbiddenKeys: config.DefaultForbiddenKeys,
		MaxDepth:      32,
	}
}

// Validator validates tool calls. It holds no per-call state and is safe for
// concurrent use.
type Validator struct {
	cfg       Config
	forbidden map[string]struct{}
	logger    *zap.Logger
}

// New builds a validator.
func New(cfg Config, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 32
	}
	forbidden := make(map[string]struct{}, len(cfg.ForbiddenKeys))
	for _, k := range cfg.ForbiddenKeys {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			forbidden[k] = struct{}{}
		}
	}
	return &Validator{cfg: cfg, forbidden: forbidden, logger: logger}
}

// ValidateJSON decodes a hook input document and validates it. Input that
// cannot be decoded carries no detectable cutoff and is allowed.
func (v *Validator) ValidateJSON(raw []byte) Verdict {
	var in HookInput
	if err := json.Unmarshal(bytes.TrimSpace(raw), &in); err != nil {
		verdict := Allow("hook input is not a JSON object; no cutoff detected")
		v.record(in, verdict)
		return verdict
	}
	return v.Validate(in)
}

// Validate returns the verdict for one tool call. It never panics: an
// internal failure blocks once a cutoff has been detected and allows
// otherwise.
func (v *Validator) Validate(in HookInput) (verdict Verdict) {
	cutoffSeen := false
	defer func() {
		if rec := recover(); rec != nil {
			v.logger.Error("gate.panic", zap.Any("panic", rec), zap.ByteString("stack", debug.Stack()))
			if cutoffSeen {
				verdict = Block(CodeParseError, "internal validation error: %v", rec)
			} else {
				verdict = Allow("internal validation error before a cutoff was detected")
			}
		}
		v.record(in, verdict)
	}()
	return evaluateFn(v, in, &cutoffSeen)
}

// evaluateFn is replaced in tests to exercise the recover path.
var evaluateFn = (*Validator).evaluate

func (v *Validator) evaluate(in HookInput, cutoffSeen *bool) Verdict {
	var input map[string]any
	if err := json.Unmarshal(in.ToolInput, &input); err != nil || input == nil {
		return Allow("tool input is not an object; open mode")
	}

	raw, found, err := extractCutoff(input)
	if !found {
		return Allow("no cutoff; open mode")
	}
	*cutoffSeen = true
	if err != nil {
		return Block(CodeInvalidPIT, "%v", err)
	}
	cutoff, err := pit.Parse(raw)
	if err != nil {
		return Block(CodeInvalidPIT, "cutoff %q: %v", raw, err)
	}

	if cmd, isShell := shellCommand(in.ToolName, v.cfg.ShellTools, input); isShell && !referencesWrapper(cmd, v.cfg.Wrappers) {
		return Allow("command does not reference a point-in-time wrapper")
	}

	payload, err := DecodePayload(in.ToolResponse)
	if err != nil {
		return Block(CodeInvalidJSON, "%s response: %v", payload.Kind, err)
	}

	doc, data, problem := normalizeEnvelope(payload.Value)
	if problem != "" {
		return Block(CodeMissingEnvelope, "%s", problem)
	}

	if at, found := findForbiddenKey(doc, v.forbidden, v.cfg.MaxDepth); found {
		return Block(CodeForbiddenField, "forbidden key at %s", at)
	}
	if payload.Kind != KindPlainObject && payload.Kind != KindPlainList {
		if at, found := scanKeys(payload.Outer, "response", v.forbidden, 0, v.cfg.MaxDepth); found {
			return Block(CodeForbiddenField, "forbidden key at %s", at)
		}
	}

	if len(data) == 0 {
		return Allow("empty data")
	}

	for i, el := range data {
		if verdict, ok := checkItem(i, el, cutoff); !ok {
			return verdict
		}
	}
	return Allow(fmt.Sprintf("%d item(s) within cutoff", len(data)))
}

// checkItem validates data[i]. ok is false with the blocking verdict on the
// first failed check.
func checkItem(i int, el any, cutoff time.Time) (Verdict, bool) {
	item, isObj := el.(map[string]any)
	if !isObj {
		return Block(CodeInvalidItemType, "data[%d] is %s, not an object", i, jsonType(el)), false
	}
	at, _ := item[envelope.KeyAvailableAt].(string)
	if strings.TrimSpace(at) == "" {
		return Block(CodeMissingAvailableAt, "data[%d] has no available_at", i), false
	}
	instant, class := pit.Classify(at)
	switch class {
	case pit.ClassDateOnly:
		return Block(CodeInvalidAvailableAtFormat, "data[%d] available_at %q is date-only", i, at), false
	case pit.ClassMissingTZ:
		return Block(CodeMissingTZ, "data[%d] available_at %q has no timezone", i, at), false
	case pit.ClassInvalid:
		return Block(CodeInvalidAvailableAtFormat, "data[%d] available_at %q is not a timestamp", i, at), false
	}
	src, _ := item[envelope.KeyAvailableAtSource].(string)
	if !envelope.Source(src).Valid() {
		return Block(CodeInvalidAvailableAtSource, "data[%d] available_at_source %q", i, src), false
	}
	if instant.After(cutoff) {
		return Block(CodeViolationGTCutoff, "data[%d] available_at %s is after cutoff %s",
			i, at, pit.ToCanonicalZoneISO(cutoff)), false
	}
	return Verdict{}, true
}

func (v *Validator) record(in HookInput, verdict Verdict) {
	metrics.IncVerdict(string(verdict.Decision), string(verdict.Code))
	if verdict.Blocked() {
		v.logger.Warn("gate.block",
			zap.String("tool", in.ToolName),
			zap.String("code", string(verdict.Code)),
			zap.String("detail", verdict.Detail))
		return
	}
	v.logger.Debug("gate.allow", zap.String("tool", in.ToolName), zap.String("detail", verdict.Detail))
}
