package secrets

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"dev/pit/news":{"api_key":"abc","base_url":"http://localhost:8080"}}`), 0o600))

	p, err := NewFileProvider(path)
	require.NoError(t, err)

	got, err := p.GetSecret(context.Background(), "dev/pit/news")
	require.NoError(t, err)
	assert.Equal(t, "abc", got["api_key"])

	got["api_key"] = "mutated"
	again, _ := p.GetSecret(context.Background(), "dev/pit/news")
	assert.Equal(t, "abc", again["api_key"])

	_, err = p.GetSecret(context.Background(), "dev/pit/qa")
	assert.ErrorContains(t, err, "not found")
}

func TestFileProvider_BadFile(t *testing.T) {
	_, err := NewFileProvider(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"dev/pit/news":"abc"}`), 0o600))
	_, err = NewFileProvider(path)
	assert.ErrorContains(t, err, "invalid secrets file")
}
