package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/Checker-Finance/pitdata/pkg/cache"
	pkgsecrets "github.com/Checker-Finance/pitdata/pkg/secrets"
	"github.com/Checker-Finance/pitdata/pkg/utils"
)

// ErrMissingCredentials is returned when no API key is configured for a provider.
var ErrMissingCredentials = errors.New("missing provider credentials")

// Credentials holds the API access configuration for one provider.
type Credentials struct {
	APIKey  string
	BaseURL string // optional override of the configured base URL
}

// Resolver resolves provider credentials from the environment first and,
// when a secrets provider is configured, from AWS Secrets Manager second.
// Results are cached locally to reduce API calls.
//
// Environment convention:  {PROVIDER}_API_KEY, {PROVIDER}_BASE_URL
// Secret naming convention: {env}/pit/{provider}
// Secret JSON format:       {"api_key": "...", "base_url": "https://..."}
type Resolver struct {
	logger   *zap.Logger
	env      string
	provider pkgsecrets.Provider
	cache    *cache.Cache[Credentials]
	getenv   func(string) string
}

// NewResolver constructs a credential resolver. provider may be nil, in which
// case only environment variables are consulted.
func NewResolver(logger *zap.Logger, env string, provider pkgsecrets.Provider, c *cache.Cache[Credentials]) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if c == nil {
		c = cache.New[Credentials](0, 0)
	}
	return &Resolver{
		logger:   logger,
		env:      env,
		provider: provider,
		cache:    c,
		getenv:   os.Getenv,
	}
}

func envPrefix(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// secretName builds the AWS Secrets Manager key for a provider.
func (r *Resolver) secretName(name string) string {
	return strings.ToLower(fmt.Sprintf("%s/pit/%s", r.env, name))
}

// Resolve returns credentials for the named provider (e.g. "news").
// ErrMissingCredentials is returned (wrapped) when nothing is configured.
func (r *Resolver) Resolve(ctx context.Context, name string) (Credentials, error) {
	key := strings.ToLower(name)
	if creds, ok := r.cache.Get(key); ok {
		return creds, nil
	}

	prefix := envPrefix(name)
	if apiKey := r.getenv(prefix + "_API_KEY"); apiKey != "" {
		creds := Credentials{APIKey: apiKey, BaseURL: r.getenv(prefix + "_BASE_URL")}
		r.cache.Put(key, creds)
		return creds, nil
	}

	if r.provider == nil {
		return Credentials{}, fmt.Errorf("%s: %w (set %s_API_KEY)", name, ErrMissingCredentials, prefix)
	}

	secretName := r.secretName(name)
	secretMap, err := r.provider.GetSecret(ctx, secretName)
	if err != nil {
		r.logger.Warn("secrets.fetch_failed",
			zap.String("key", secretName),
			zap.Error(err))
		return Credentials{}, fmt.Errorf("%s: %w: %v", name, ErrMissingCredentials, err)
	}

	creds, err := parseCredentials(secretMap)
	if err != nil {
		return Credentials{}, fmt.Errorf("parse secret %q: %w", secretName, err)
	}
	r.cache.Put(key, creds)

	r.logger.Info("secrets.credentials_resolved",
		zap.String("provider", name),
		zap.String("api_key", utils.MaskKey(creds.APIKey)))
	return creds, nil
}

// parseCredentials extracts Credentials from a raw secret map.
func parseCredentials(m map[string]string) (Credentials, error) {
	creds := Credentials{
		APIKey:  m["api_key"],
		BaseURL: m["base_url"],
	}
	if creds.APIKey == "" {
		return Credentials{}, fmt.Errorf("%w: missing required field 'api_key'", ErrMissingCredentials)
	}
	return creds, nil
}
