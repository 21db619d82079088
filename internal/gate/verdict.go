package gate

import (
	"encoding/json"
	"fmt"
)

// Code identifies why a call was blocked.
type Code string

const (
	CodeParseError               Code = "PIT_PARSE_ERROR"
	CodeInvalidPIT               Code = "PIT_INVALID_PIT"
	CodeInvalidJSON              Code = "PIT_INVALID_JSON"
	CodeMissingEnvelope          Code = "PIT_MISSING_ENVELOPE"
	CodeInvalidItemType          Code = "PIT_INVALID_ITEM_TYPE"
	CodeMissingAvailableAt       Code = "PIT_MISSING_AVAILABLE_AT"
	CodeInvalidAvailableAtFormat Code = "PIT_INVALID_AVAILABLE_AT_FORMAT"
	CodeMissingTZ                Code = "PIT_MISSING_TZ"
	CodeInvalidAvailableAtSource Code = "PIT_INVALID_AVAILABLE_AT_SOURCE"
	CodeViolationGTCutoff        Code = "PIT_VIOLATION_GT_CUTOFF"
	CodeForbiddenField           Code = "PIT_FORBIDDEN_FIELD"
)

// Decision is the outcome of one validation.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionBlock Decision = "block"
)

// Verdict is the result of validating one tool call. Detail on an allow
// verdict explains which path allowed it; it is not part of the hook output.
type Verdict struct {
	Decision Decision `json:"decision"`
	Code     Code     `json:"code,omitempty"`
	Detail   string   `json:"detail,omitempty"`
}

// Allow builds an allow verdict.
func Allow(detail string) Verdict {
	return Verdict{Decision: DecisionAllow, Detail: detail}
}

// Block builds a block verdict.
func Block(code Code, format string, args ...any) Verdict {
	return Verdict{Decision: DecisionBlock, Code: code, Detail: fmt.Sprintf(format, args...)}
}

// Blocked reports whether the verdict blocks the call.
func (v Verdict) Blocked() bool { return v.Decision == DecisionBlock }

// Reason renders "<CODE>: <detail>" for block verdicts.
func (v Verdict) Reason() string {
	if !v.Blocked() {
		return ""
	}
	return string(v.Code) + ": " + v.Detail
}

type hookOutput struct {
	Decision string `json:"decision,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// HookOutput is the single JSON object written for the host: {} to allow,
// {"decision":"block","reason":"..."} to block.
func (v Verdict) HookOutput() []byte {
	out := hookOutput{}
	if v.Blocked() {
		out = hookOutput{Decision: string(DecisionBlock), Reason: v.Reason()}
	}
	b, err := json.Marshal(out)
	if err != nil {
		return []byte(`{}`)
	}
	return b
}

// HookInput is the tool call as delivered by the host.
type HookInput struct {
	ToolName     string          `json:"tool_name"`
	ToolInput    json.RawMessage `json:"tool_input"`
	ToolResponse json.RawMessage `json:"tool_response"`
}
