package gate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// PayloadKind tags the transport shape a tool response arrived in.
type PayloadKind int

const (
	KindUnrecognized PayloadKind = iota
	// KindRawString: the response is a JSON document encoded as a string.
	KindRawString
	// KindContentBlocks: a list of {"type":"text","text":...} blocks, bare or
	// under "content".
	KindContentBlocks
	// KindResultWrapped: the document sits under "result" (or "stdout" for
	// shell tools), possibly inside a one-element list.
	KindResultWrapped
	// KindPlainObject: the response is the document itself.
	KindPlainObject
	// KindPlainList: a bare list, left to envelope normalization.
	KindPlainList
)

func (k PayloadKind) String() string {
	switch k {
	case KindRawString:
		return "raw_string"
	case KindContentBlocks:
		return "content_blocks"
	case KindResultWrapped:
		return "result_wrapped"
	case KindPlainObject:
		return "plain_object"
	case KindPlainList:
		return "plain_list"
	default:
		return "unrecognized"
	}
}

// Payload is a decoded tool response.
type Payload struct {
	Kind  PayloadKind
	Value any
	// Outer is the response as received, before unwrapping.
	Outer any
}

var errEmptyPayload = errors.New("empty response payload")

func decodeJSON(data []byte) (any, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, errEmptyPayload
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after JSON document")
	}
	return v, nil
}

func decodeText(s string) (any, error) {
	if strings.TrimSpace(s) == "" {
		return nil, errEmptyPayload
	}
	return decodeJSON([]byte(s))
}

// contentText joins the text of a content block list. ok is false unless
// every element is a typed block and at least one carries text.
func contentText(list []any) (string, bool) {
	var sb strings.Builder
	found := false
	for _, el := range list {
		block, ok := el.(map[string]any)
		if !ok {
			return "", false
		}
		typ, ok := block["type"].(string)
		if !ok {
			return "", false
		}
		if typ != "text" {
			continue
		}
		text, ok := block["text"].(string)
		if !ok {
			return "", false
		}
		sb.WriteString(text)
		found = true
	}
	return sb.String(), found
}

func unwrapResult(v any) (any, error) {
	if s, ok := v.(string); ok {
		return decodeText(s)
	}
	if v == nil {
		return nil, errEmptyPayload
	}
	return v, nil
}

// DecodePayload decodes a tool response, trying each known transport shape
// in order. Scalars are KindUnrecognized.
func DecodePayload(raw json.RawMessage) (Payload, error) {
	v, err := decodeJSON(raw)
	if err != nil {
		return Payload{}, err
	}
	p, err := unwrapPayload(v)
	p.Outer = v
	return p, err
}

func unwrapPayload(v any) (Payload, error) {
	switch t := v.(type) {
	case string:
		inner, err := decodeText(t)
		if err != nil {
			return Payload{Kind: KindRawString}, err
		}
		return Payload{Kind: KindRawString, Value: inner}, nil

	case []any:
		if text, ok := contentText(t); ok {
			inner, err := decodeText(text)
			return Payload{Kind: KindContentBlocks, Value: inner}, err
		}
		if len(t) == 1 {
			if m, ok := t[0].(map[string]any); ok && len(m) == 1 {
				if r, ok := m["result"]; ok {
					inner, err := unwrapResult(r)
					return Payload{Kind: KindResultWrapped, Value: inner}, err
				}
			}
		}
		return Payload{Kind: KindPlainList, Value: t}, nil

	case map[string]any:
		if _, ok := t["data"]; ok {
			return Payload{Kind: KindPlainObject, Value: t}, nil
		}
		if blocks, ok := t["content"].([]any); ok {
			if text, ok := contentText(blocks); ok {
				inner, err := decodeText(text)
				return Payload{Kind: KindContentBlocks, Value: inner}, err
			}
		}
		if r, ok := t["result"]; ok {
			inner, err := unwrapResult(r)
			return Payload{Kind: KindResultWrapped, Value: inner}, err
		}
		if s, ok := t["stdout"].(string); ok {
			inner, err := decodeText(s)
			return Payload{Kind: KindResultWrapped, Value: inner}, err
		}
		return Payload{Kind: KindPlainObject, Value: t}, nil
	}
	return Payload{Kind: KindUnrecognized, Value: v}, fmt.Errorf("unrecognized payload of type %T", v)
}

// normalizeEnvelope reduces a payload to its data list. A one-element list
// holding an envelope is unwrapped; any other list is ambiguous.
func normalizeEnvelope(v any) (map[string]any, []any, string) {
	if list, ok := v.([]any); ok {
		if len(list) != 1 {
			return nil, nil, fmt.Sprintf("top-level list of %d elements", len(list))
		}
		m, ok := list[0].(map[string]any)
		if !ok {
			return nil, nil, "top-level list element is not an object"
		}
		if _, ok := m["data"]; !ok {
			return nil, nil, "top-level list element has no data field"
		}
		v = m
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, nil, fmt.Sprintf("payload is %s, not an object", jsonType(v))
	}
	raw, ok := m["data"]
	if !ok {
		return nil, nil, "missing data field"
	}
	data, ok := raw.([]any)
	if !ok {
		return nil, nil, fmt.Sprintf("data is %s, not a list", jsonType(raw))
	}
	return m, data, ""
}

func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "a string"
	case json.Number, float64:
		return "a number"
	case bool:
		return "a boolean"
	case []any:
		return "a list"
	case map[string]any:
		return "an object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
