package envelope

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// WireSchema is the JSON Schema of the envelope wire format.
const WireSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["data", "gaps"],
  "properties": {
    "data": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["available_at", "available_at_source"],
        "properties": {
          "available_at": {"type": "string", "minLength": 1},
          "available_at_source": {
            "enum": ["store_write", "filing_acceptance", "time_series_timestamp", "provider_metadata"]
          }
        }
      }
    },
    "gaps": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["type", "reason"],
        "properties": {
          "type": {
            "enum": ["config", "input_error", "upstream_error", "internal_error",
                     "unverifiable", "pit_excluded", "no_data", "invalid_pit"]
          },
          "reason": {"type": "string"}
        }
      }
    }
  }
}`

// SchemaError lists the field-level failures of a schema check.
type SchemaError struct {
	Errors []string
}

func (e *SchemaError) Error() string {
	return "schema validation failed: " + strings.Join(e.Errors, "; ")
}

// ValidateDocument checks doc against a JSON Schema. A *SchemaError is
// returned when the document does not conform.
func ValidateDocument(schema string, doc []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewBytesLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("schema check: %w", err)
	}
	if result.Valid() {
		return nil
	}
	se := &SchemaError{}
	for _, re := range result.Errors() {
		se.Errors = append(se.Errors, fmt.Sprintf("%s: %s", re.Field(), re.Description()))
	}
	return se
}

// ValidateWire checks a serialized envelope against WireSchema.
func ValidateWire(doc []byte) error {
	return ValidateDocument(WireSchema, doc)
}
