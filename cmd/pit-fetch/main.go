// Command pit-fetch runs one source adapter and writes its envelope to stdout.
// Logs go to stderr; stdout carries nothing but the envelope.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Checker-Finance/pitdata/internal/adapter"
	"github.com/Checker-Finance/pitdata/internal/app"
	"github.com/Checker-Finance/pitdata/pkg/config"
	"github.com/Checker-Finance/pitdata/pkg/envelope"
	"github.com/Checker-Finance/pitdata/pkg/logger"
)

// fetcher is the part of the runtime pit-fetch needs.
type fetcher interface {
	Fetch(ctx context.Context, q adapter.Query) envelope.Envelope
}

// buildFunc assembles the runtime. The returned func releases it.
type buildFunc func(ctx context.Context) (fetcher, func(), error)

type fetchFlags struct {
	source       string
	pit          string
	ticker       string
	query        string
	kind         string
	fiscalPeriod string
	fyeMonth     int
	limit        int
	inputFile    string
	timeout      time.Duration
}

func newRootCmd(stdout io.Writer, build buildFunc) *cobra.Command {
	var f fetchFlags
	cmd := &cobra.Command{
		Use:           "pit-fetch",
		Short:         "Fetch provider data as a point-in-time envelope",
		Long:          "Runs one source adapter. With --pit, only items whose available_at is at or before the cutoff are returned; everything else is reported as a gap.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env := runFetch(cmd.Context(), f, build)
			_, err := stdout.Write(append(env.Marshal(), '\n'))
			return err
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.source, "source", "", "Source adapter: graph, news, qa or fundamentals (required)")
	fl.StringVar(&f.pit, "pit", "", "Point-in-time cutoff, ISO-8601 with time of day; omit for open mode")
	fl.StringVar(&f.ticker, "ticker", "", "Ticker symbol")
	fl.StringVar(&f.query, "query", "", "Free-text query (news, qa)")
	fl.StringVar(&f.kind, "kind", "", "Source-specific record kind (graph: filings|news; fundamentals: estimates|financials|calendar|ttm)")
	fl.StringVar(&f.fiscalPeriod, "fiscal-period", "", "Fiscal period filter, e.g. FY2025Q2 or FY2024")
	fl.IntVar(&f.fyeMonth, "fye-month", 0, "Fiscal-year-end month (1-12); looked up when omitted")
	fl.IntVar(&f.limit, "limit", adapter.DefaultLimit, "Maximum items returned")
	fl.StringVar(&f.inputFile, "input-file", "", "Read provider records from a JSON fixture instead of the network")
	fl.DurationVar(&f.timeout, "timeout", 60*time.Second, "Overall deadline for the fetch")

	if err := cmd.MarkFlagRequired("source"); err != nil {
		panic(fmt.Sprintf("failed to mark source flag as required: %v", err))
	}
	return cmd
}

// runFetch never fails: every problem becomes a gap.
func runFetch(ctx context.Context, f fetchFlags, build buildFunc) envelope.Envelope {
	cutoff, err := adapter.ParseCutoff(f.pit)
	if err != nil {
		return envelope.WithGap(envelope.GapInvalidPIT, "%v", err)
	}
	src, err := adapter.ParseSource(f.source)
	if err != nil {
		return envelope.WithGap(envelope.GapInputError, "%v", err)
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	rt, release, err := build(ctx)
	if err != nil {
		return envelope.WithGap(envelope.GapConfig, "startup: %v", err)
	}
	defer release()

	return rt.Fetch(ctx, adapter.Query{
		Source:       src,
		Cutoff:       cutoff,
		Ticker:       f.ticker,
		Text:         f.query,
		Kind:         f.kind,
		FiscalPeriod: f.fiscalPeriod,
		FYEMonth:     f.fyeMonth,
		Limit:        f.limit,
		InputFile:    f.inputFile,
	})
}

func buildApp(ctx context.Context) (fetcher, func(), error) {
	cfg := config.Load()
	cfg.ServiceName = "pit-fetch"
	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)

	a, err := app.Build(ctx, cfg, logger.L(), app.Options{Service: cfg.ServiceName})
	if err != nil {
		return nil, nil, err
	}
	return a.Registry, func() {
		if err := a.Close(); err != nil {
			logger.L().Warn("pit_fetch.close_failed", zap.Error(err))
		}
		logger.Sync()
	}, nil
}

func main() {
	cmd := newRootCmd(os.Stdout, buildApp)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		// Flag errors still produce an envelope so callers can parse stdout.
		_, _ = os.Stdout.Write(append(envelope.WithGap(envelope.GapInputError, "%v", err).Marshal(), '\n'))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
