package adapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/Checker-Finance/pitdata/pkg/envelope"
)

// ErrFixture marks an unreadable or malformed --input-file.
var ErrFixture = errors.New("malformed input file")

// LoadFixture reads a local provider response, checks it against schema and
// decodes it into out. Every failure wraps ErrFixture.
func LoadFixture(path, schema string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFixture, err)
	}
	if schema != "" {
		if err := envelope.ValidateDocument(schema, data); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrFixture, path, err)
		}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrFixture, path, err)
	}
	return nil
}
