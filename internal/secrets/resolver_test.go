package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockProvider struct {
	secrets map[string]map[string]string
	err     error
	calls   int
}

func (m *mockProvider) GetSecret(_ context.Context, key string) (map[string]string, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	s, ok := m.secrets[key]
	if !ok {
		return nil, errors.New("ResourceNotFoundException")
	}
	return s, nil
}

func newTestResolver(p *mockProvider, env map[string]string) *Resolver {
	var r *Resolver
	if p == nil {
		r = NewResolver(zap.NewNop(), "prod", nil, nil)
	} else {
		r = NewResolver(zap.NewNop(), "prod", p, nil)
	}
	r.getenv = func(k string) string { return env[k] }
	return r
}

func TestResolve_FromEnvironment(t *testing.T) {
	r := newTestResolver(nil, map[string]string{
		"NEWS_API_KEY":  "env-key",
		"NEWS_BASE_URL": "http://localhost:9999",
	})

	creds, err := r.Resolve(context.Background(), "news")
	require.NoError(t, err)
	assert.Equal(t, "env-key", creds.APIKey)
	assert.Equal(t, "http://localhost:9999", creds.BaseURL)
}

func TestResolve_EnvironmentWinsOverSecretsManager(t *testing.T) {
	p := &mockProvider{secrets: map[string]map[string]string{
		"prod/pit/qa": {"api_key": "sm-key"},
	}}
	r := newTestResolver(p, map[string]string{"QA_API_KEY": "env-key"})

	creds, err := r.Resolve(context.Background(), "qa")
	require.NoError(t, err)
	assert.Equal(t, "env-key", creds.APIKey)
	assert.Equal(t, 0, p.calls)
}

func TestResolve_FromSecretsManagerAndCached(t *testing.T) {
	p := &mockProvider{secrets: map[string]map[string]string{
		"prod/pit/fundamentals": {"api_key": "sm-key", "base_url": "https://av.example"},
	}}
	r := newTestResolver(p, nil)

	for i := 0; i < 3; i++ {
		creds, err := r.Resolve(context.Background(), "fundamentals")
		require.NoError(t, err)
		assert.Equal(t, "sm-key", creds.APIKey)
		assert.Equal(t, "https://av.example", creds.BaseURL)
	}
	assert.Equal(t, 1, p.calls, "second and third lookups must hit the cache")
}

func TestResolve_MissingEverywhere(t *testing.T) {
	_, err := newTestResolver(nil, nil).Resolve(context.Background(), "news")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingCredentials)
	assert.Contains(t, err.Error(), "NEWS_API_KEY")

	p := &mockProvider{err: errors.New("access denied")}
	_, err = newTestResolver(p, nil).Resolve(context.Background(), "news")
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestParseCredentials(t *testing.T) {
	creds, err := parseCredentials(map[string]string{"api_key": "k", "extra": "ignored"})
	require.NoError(t, err)
	assert.Equal(t, "k", creds.APIKey)
	assert.Empty(t, creds.BaseURL)

	_, err = parseCredentials(map[string]string{"base_url": "https://x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingCredentials)
	assert.Contains(t, err.Error(), "api_key")
}
