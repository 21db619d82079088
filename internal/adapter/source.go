// Package adapter holds the machinery shared by every source adapter: the
// closed source enum, the query, the collector that applies the cutoff
// filter, dedupe and limit, and the registry that dispatches fetches.
package adapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/Checker-Finance/pitdata/pkg/envelope"
)

// Source selects a provider family.
type Source string

const (
	Graph        Source = "graph"
	News         Source = "news"
	QA           Source = "qa"
	Fundamentals Source = "fundamentals"
)

// Sources lists every known source.
func Sources() []Source { return []Source{Graph, News, QA, Fundamentals} }

// ParseSource maps a CLI or API value onto the enum.
func ParseSource(s string) (Source, error) {
	v := Source(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Sources() {
		if v == known {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown source %q (want one of graph, news, qa, fundamentals)", s)
}

// Adapter fetches one provider family and returns a well-formed envelope.
// Fetch never panics into its caller when invoked through Run.
type Adapter interface {
	Source() Source
	Fetch(ctx context.Context, q Query) envelope.Envelope
}
