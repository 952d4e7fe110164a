package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"salesdash/internal/backend"
	"salesdash/internal/cli"
	"salesdash/internal/config"
	"salesdash/internal/core"
	"salesdash/internal/loader"
	"salesdash/internal/log"
	"salesdash/internal/report"
	"salesdash/internal/services"
)

func main() {
	cli.LoadEnvFile()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

type options struct {
	products []string
	records  bool
	markdown bool
	backend  string
	url      string
	seed     string
	currency string
	verbose  bool
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "salesreport",
		Short: "Print sales KPIs and the monthly trend",
		Long: `salesreport loads the sales dataset once from the configured source and
prints the summary and monthly tables. Flags override the environment.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringArrayVarP(&opts.products, "product", "p", nil, "Product to include (repeatable, default all)")
	f.BoolVar(&opts.records, "records", false, "Also print the filtered rows")
	f.BoolVar(&opts.markdown, "markdown", false, "Render markdown tables")
	f.StringVar(&opts.backend, "backend", "", "Source backend (csv|sheets|memory)")
	f.StringVar(&opts.url, "url", "", "CSV export URL for the csv backend")
	f.StringVar(&opts.seed, "seed", "", "CSV file for the memory backend")
	f.StringVar(&opts.currency, "currency", "", "Currency symbol")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Log source activity to stderr")

	_ = cmd.RegisterFlagCompletionFunc("backend", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return backend.GetSourceTypeStrings(), cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func run(cmd *cobra.Command, opts options) error {
	cfg := config.Load()
	if opts.backend != "" {
		cfg.SourceBackend = opts.backend
	}
	if opts.url != "" {
		cfg.SourceCSVURL = opts.url
		if opts.backend == "" {
			cfg.SourceBackend = backend.CSVSource.String()
		}
	}
	if opts.seed != "" {
		cfg.SourceSeedFile = opts.seed
	}
	if opts.currency != "" {
		cfg.CurrencySymbol = opts.currency
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level, Component: log.ComponentReport, Output: cmd.ErrOrStderr()})

	srcCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	res, err := backend.NewFactory(logger.Slog()).CreateSource(ctx, srcCfg)
	if err != nil {
		return err
	}
	if res.Cleanup != nil {
		defer res.Cleanup()
	}

	svc := services.NewDashboardService(loader.New(res.Source, logger.Slog()), cfg.FreshnessWindow,
		services.WithLogger(logger))
	v, err := svc.View(ctx, core.NewSelection(opts.products...))
	if err != nil {
		return fmt.Errorf("load sales data from %s: %w", svc.SourceName(), err)
	}

	return report.Render(cmd.OutOrStdout(), v, report.Options{
		Currency: cfg.CurrencySymbol,
		Records:  opts.records,
		Markdown: opts.markdown,
	})
}
