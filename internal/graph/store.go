// Package graph reads the Postgres-hosted entity graph: filing nodes, news
// nodes and company fiscal metadata. It never writes.
package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Checker-Finance/pitdata/internal/fiscal"
)

// Querier is the subset of pgxpool.Pool used by the store.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PoolConfig bounds the Postgres connection pool.
type PoolConfig struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// Connect opens a pgx pool.
func Connect(ctx context.Context, url string, pc PoolConfig) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("invalid pg config: %w", err)
	}
	if pc.MaxConns > 0 {
		cfg.MaxConns = pc.MaxConns
	}
	if pc.MinConns > 0 {
		cfg.MinConns = pc.MinConns
	}
	if pc.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = pc.MaxConnLifetime
	}
	if pc.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = pc.MaxConnIdleTime
	}
	if pc.HealthCheckPeriod > 0 {
		cfg.HealthCheckPeriod = pc.HealthCheckPeriod
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return pool, nil
}

// FilingRow is one filing node.
type FilingRow struct {
	ID           string `json:"id"`
	Ticker       string `json:"ticker"`
	FormType     string `json:"form_type"`
	Accession    string `json:"accession"`
	PeriodStart  string `json:"period_start"`
	PeriodEnd    string `json:"period_end"`
	FiscalYear   int    `json:"fiscal_year"`
	FiscalPeriod string `json:"fiscal_period"`
	AcceptedAt   string `json:"accepted_at"` // empty when unknown
}

// NewsRow is one news node linked to a company.
type NewsRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	PublishedAt string `json:"published_at"`
	CreatedAt   string `json:"created_at"` // store write time
}

// Store runs read-only graph queries.
type Store struct {
	db     Querier
	logger *zap.Logger
}

// NewStore wraps a pool or any Querier.
func NewStore(db Querier, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}
}

func formatTS(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

// Filings returns the most recently accepted filings of ticker.
func (s *Store) Filings(ctx context.Context, ticker string, limit int) ([]FilingRow, error) {
	rows, err := s.db.Query(ctx, `
		SELECT f.id, c.ticker, f.form_type, f.accession,
		       f.period_start, f.period_end, f.fiscal_year, f.fiscal_period, f.accepted_at
		FROM graph.filing f
		JOIN graph.company c ON c.id = f.company_id
		WHERE c.ticker = $1
		ORDER BY f.accepted_at DESC NULLS LAST, f.id
		LIMIT $2;
	`, ticker, limit)
	if err != nil {
		return nil, fmt.Errorf("query filings: %w", err)
	}
	defer rows.Close()

	var out []FilingRow
	for rows.Next() {
		var (
			r                  FilingRow
			start, end, accept *time.Time
			fiscalYear         *int
			fiscalPeriod       *string
		)
		if err := rows.Scan(&r.ID, &r.Ticker, &r.FormType, &r.Accession,
			&start, &end, &fiscalYear, &fiscalPeriod, &accept); err != nil {
			return nil, fmt.Errorf("scan filing: %w", err)
		}
		r.PeriodStart, r.PeriodEnd, r.AcceptedAt = formatDate(start), formatDate(end), formatTS(accept)
		if fiscalYear != nil {
			r.FiscalYear = *fiscalYear
		}
		if fiscalPeriod != nil {
			r.FiscalPeriod = *fiscalPeriod
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// NewsNodes returns the most recently written news nodes mentioning ticker.
func (s *Store) NewsNodes(ctx context.Context, ticker string, limit int) ([]NewsRow, error) {
	rows, err := s.db.Query(ctx, `
		SELECT n.id, n.title, n.url, n.published_at, n.created_at
		FROM graph.news n
		JOIN graph.mentions m ON m.news_id = n.id
		JOIN graph.company c ON c.id = m.company_id
		WHERE c.ticker = $1
		ORDER BY n.created_at DESC, n.id
		LIMIT $2;
	`, ticker, limit)
	if err != nil {
		return nil, fmt.Errorf("query news nodes: %w", err)
	}
	defer rows.Close()

	var out []NewsRow
	for rows.Next() {
		var (
			r                  NewsRow
			url                *string
			published, created *time.Time
		)
		if err := rows.Scan(&r.ID, &r.Title, &url, &published, &created); err != nil {
			return nil, fmt.Errorf("scan news node: %w", err)
		}
		if url != nil {
			r.URL = *url
		}
		r.PublishedAt, r.CreatedAt = formatTS(published), formatTS(created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// FiscalYearEndMonth implements fiscal.PeriodSource.
func (s *Store) FiscalYearEndMonth(ctx context.Context, ticker string) (int, error) {
	var month *int
	err := s.db.QueryRow(ctx, `
		SELECT fiscal_year_end_month FROM graph.company WHERE ticker = $1;
	`, ticker).Scan(&month)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("company %s not found", ticker)
	}
	if err != nil {
		return 0, fmt.Errorf("query fye month: %w", err)
	}
	if month == nil {
		return 0, fmt.Errorf("company %s has no fiscal year end", ticker)
	}
	return *month, nil
}

// KnownPeriods implements fiscal.PeriodSource. Classification against the
// FYE month happens in the resolver; every reported period is returned.
func (s *Store) KnownPeriods(ctx context.Context, ticker string, _ int) ([]fiscal.KnownPeriod, error) {
	rows, err := s.db.Query(ctx, `
		SELECT f.accession, f.period_start, f.period_end
		FROM graph.filing f
		JOIN graph.company c ON c.id = f.company_id
		WHERE c.ticker = $1
		  AND f.form_type IN ('10-K', '10-Q', '10-K/A', '10-Q/A', '20-F', '40-F')
		  AND f.period_start IS NOT NULL AND f.period_end IS NOT NULL
		ORDER BY f.period_end, f.accession;
	`, ticker)
	if err != nil {
		return nil, fmt.Errorf("query periods: %w", err)
	}
	defer rows.Close()

	var out []fiscal.KnownPeriod
	for rows.Next() {
		var (
			id         string
			start, end *time.Time
		)
		if err := rows.Scan(&id, &start, &end); err != nil {
			return nil, fmt.Errorf("scan period: %w", err)
		}
		out = append(out, fiscal.KnownPeriod{ID: id, Start: formatDate(start), End: formatDate(end)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	s.logger.Debug("graph.periods_scanned", zap.String("ticker", ticker), zap.Int("count", len(out)))
	return out, nil
}
