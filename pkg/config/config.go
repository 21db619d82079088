package config

import (
	"time"

	"github.com/joho/godotenv"
)

// Config holds the runtime configuration shared by pit-fetch, pit-gate and pitd.
type Config struct {
	ServiceName string
	Env         string
	LogLevel    string

	// Credentials for provider APIs are read from the environment first and
	// then, when SecretsBackend is "aws", from AWS Secrets Manager under
	// {env}/pit/{provider}, or with "file" from the JSON document at
	// SecretsFile. See internal/secrets/resolver.go.
	SecretsBackend     string
	SecretsFile        string
	AWSRegion          string
	CredentialCacheTTL time.Duration

	// Entity graph store (Postgres). Empty disables the graph source and
	// fiscal period lookup from the store.
	DatabaseURL         string
	PGMaxConns          int
	PGMinConns          int
	PGMaxConnLifetime   time.Duration
	PGMaxConnIdleTime   time.Duration
	PGHealthCheckPeriod time.Duration

	// Fiscal cache. Empty RedisAddr keeps the cache in process memory.
	RedisAddr             string
	RedisDB               int
	RedisPass             string
	FiscalCacheMaxEntries int
	FiscalCacheTTL        time.Duration

	// pitd refreshes the fiscal cache for these tickers in the background.
	FiscalWarmTickers  []string
	FiscalWarmInterval time.Duration

	// Verdict audit events. Empty NATSURL disables publishing.
	NATSURL        string
	VerdictSubject string

	// AuditVerdicts also writes gate verdicts to Postgres (pit.gate_verdict).
	AuditVerdicts bool

	// Outbound provider calls.
	HTTPTimeout     time.Duration
	RateLimitRPS    int
	RateLimitBurst  int
	OverfetchFactor int
	MaxPages        int

	NewsBaseURL         string
	QABaseURL           string
	QAModel             string
	FundamentalsBaseURL string

	// Gate policy.
	GateWrappers      []string
	GateForbiddenKeys []string
	GateMaxDepth      int

	// pitd HTTP server.
	Port             int
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	HTTPBodyLimit    int
}

// DefaultGateWrappers are the PIT-aware wrapper scripts the gate inspects
// when the tool call is a shell command.
var DefaultGateWrappers = []string{"pit-fetch", "pit_fetch"}

// DefaultForbiddenKeys are aggregate fields known to encode future price movement.
var DefaultForbiddenKeys = []string{
	"daily_return",
	"daily_returns",
	"hourly_return",
	"hourly_returns",
	"daily_stock_return",
	"hourly_stock_return",
	"next_day_return",
	"forward_return",
	"forward_returns",
}

// Load loads configuration from environment variables and optional .env file.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServiceName:           GetEnv("SERVICE_NAME", "pitdata"),
		Env:                   GetEnv("ENV", "dev"),
		LogLevel:              GetEnv("LOG_LEVEL", "info"),
		SecretsBackend:        GetEnv("PIT_SECRETS_BACKEND", "env"),
		SecretsFile:           GetEnv("PIT_SECRETS_FILE", "secrets.json"),
		AWSRegion:             GetEnv("AWS_REGION", "us-east-2"),
		CredentialCacheTTL:    GetEnvDuration("PIT_CREDENTIAL_CACHE_TTL", 1*time.Hour),
		DatabaseURL:           GetEnv("DATABASE_URL", ""),
		PGMaxConns:            GetEnvInt("PG_MAX_CONNS", 4),
		PGMinConns:            GetEnvInt("PG_MIN_CONNS", 0),
		PGMaxConnLifetime:     GetEnvDuration("PG_MAX_CONN_LIFETIME", 30*time.Minute),
		PGMaxConnIdleTime:     GetEnvDuration("PG_MAX_CONN_IDLE_TIME", 5*time.Minute),
		PGHealthCheckPeriod:   GetEnvDuration("PG_HEALTH_CHECK_PERIOD", 1*time.Minute),
		RedisAddr:             GetEnv("REDIS_ADDR", ""),
		RedisDB:               GetEnvInt("REDIS_DB", 0),
		RedisPass:             GetEnv("REDIS_PASS", ""),
		FiscalCacheMaxEntries: GetEnvInt("PIT_FISCAL_CACHE_MAX_ENTRIES", 0),
		FiscalCacheTTL:        GetEnvDuration("PIT_FISCAL_CACHE_TTL", 24*time.Hour),
		FiscalWarmTickers:     GetEnvList("PIT_FISCAL_WARM_TICKERS", nil),
		FiscalWarmInterval:    GetEnvDuration("PIT_FISCAL_WARM_INTERVAL", 6*time.Hour),
		NATSURL:               GetEnv("NATS_URL", ""),
		VerdictSubject:        GetEnv("PIT_VERDICT_SUBJECT", "evt.pit.gate.verdict.v1"),
		AuditVerdicts:         GetEnvBool("PIT_AUDIT_VERDICTS", false),
		HTTPTimeout:           GetEnvDuration("PIT_HTTP_TIMEOUT", 20*time.Second),
		RateLimitRPS:          GetEnvInt("PIT_RATE_LIMIT_RPS", 5),
		RateLimitBurst:        GetEnvInt("PIT_RATE_LIMIT_BURST", 10),
		OverfetchFactor:       GetEnvInt("PIT_OVERFETCH_FACTOR", 3),
		MaxPages:              GetEnvInt("PIT_MAX_PAGES", 5),
		NewsBaseURL:           GetEnv("NEWS_BASE_URL", "https://api.benzinga.com/api/v2"),
		QABaseURL:             GetEnv("QA_BASE_URL", "https://api.perplexity.ai"),
		QAModel:               GetEnv("QA_MODEL", "sonar"),
		FundamentalsBaseURL:   GetEnv("FUNDAMENTALS_BASE_URL", "https://www.alphavantage.co"),
		GateWrappers:          GetEnvList("PIT_GATE_WRAPPERS", DefaultGateWrappers),
		GateForbiddenKeys:     GetEnvList("PIT_GATE_FORBIDDEN_KEYS", DefaultForbiddenKeys),
		GateMaxDepth:          GetEnvInt("PIT_GATE_MAX_DEPTH", 32),
		Port:                  GetEnvInt("PITD_PORT", 9040),
		HTTPReadTimeout:       GetEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second),
		HTTPWriteTimeout:      GetEnvDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
		HTTPIdleTimeout:       GetEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		HTTPBodyLimit:         GetEnvInt("HTTP_BODY_LIMIT", 4*1024*1024),
	}
}
