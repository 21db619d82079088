package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// Provider looks up provider credentials by secret name ({env}/pit/{provider}).
// Values are flat string maps such as {"api_key": "...", "base_url": "..."}.
type Provider interface {
	GetSecret(ctx context.Context, key string) (map[string]string, error)
}

// FileProvider serves secrets from a local JSON document keyed by secret
// name. It backs PIT_SECRETS_BACKEND=file for development and offline runs.
type FileProvider struct {
	secrets map[string]map[string]string
}

// NewFileProvider reads and decodes path once.
func NewFileProvider(path string) (*FileProvider, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secrets file: %w", err)
	}
	var m map[string]map[string]string
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("invalid secrets file %s: %w", path, err)
	}
	return &FileProvider{secrets: m}, nil
}

// GetSecret returns a copy of the named secret.
func (p *FileProvider) GetSecret(_ context.Context, key string) (map[string]string, error) {
	s, ok := p.secrets[key]
	if !ok {
		return nil, fmt.Errorf("secret [%s] not found", key)
	}
	out := make(map[string]string, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out, nil
}
