package adapter

import (
	"context"
	"strings"

	"github.com/Checker-Finance/pitdata/internal/secrets"
)

// CredentialSource resolves API credentials for an HTTP provider.
// *secrets.Resolver implements it.
type CredentialSource interface {
	Resolve(ctx context.Context, name string) (secrets.Credentials, error)
}

// HTTPOptions configures an HTTP-backed adapter.
type HTTPOptions struct {
	BaseURL         string
	OverfetchFactor int
	MaxPages        int
}

// Paging returns the page size and page bound for q. Pages are sized to the
// overfetch budget; further pages are only requested while the collector
// still has room after filtering.
func (o HTTPOptions) Paging(q Query, providerMax int) (pageSize, maxPages int) {
	budget := q.FetchBudget(o.OverfetchFactor)
	pageSize = budget
	if providerMax > 0 && pageSize > providerMax {
		pageSize = providerMax
	}
	maxPages = o.MaxPages
	if maxPages < 1 {
		maxPages = 1
	}
	return pageSize, maxPages
}

// ResolveBase picks the credential override, then the configured base URL.
func ResolveBase(configured string, creds secrets.Credentials) string {
	base := configured
	if creds.BaseURL != "" {
		base = creds.BaseURL
	}
	return strings.TrimRight(base, "/")
}
