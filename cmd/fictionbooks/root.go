package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-fiction-books/config"
	"github.com/aluiziolira/go-fiction-books/fetcher"
	"github.com/aluiziolira/go-fiction-books/pipeline"
	"github.com/aluiziolira/go-fiction-books/report"
	"github.com/aluiziolira/go-fiction-books/store"
)

// flags holds raw command-line values. Only flags the user set override
// the file and environment layers.
type flags struct {
	configFile   string
	limit        int
	dbPath       string
	table        string
	chartFile    string
	openChart    bool
	exportFile   string
	exportFormat string
	metricsAddr  string
	verbose      bool
}

func newRootCmd() *cobra.Command {
	var f flags
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:           "fictionbooks",
		Short:         "Fetch fiction books, store them in SQLite and chart them by year",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, &f)
			if err != nil {
				return err
			}
			return execute(cmd.Context(), cfg, false)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&f.configFile, "config", "", "path to a YAML config file")
	pf.StringVar(&f.dbPath, "db", defaults.DBPath, "SQLite database file")
	pf.StringVar(&f.table, "table", defaults.Table, "table holding the clean dataset")
	pf.StringVar(&f.chartFile, "chart", defaults.ChartFile, "chart output file (PNG)")
	pf.BoolVar(&f.openChart, "open", false, "open the chart after saving when a display is available")
	pf.StringVar(&f.exportFile, "export", "", "also export the stored dataset to this file")
	pf.StringVar(&f.exportFormat, "format", defaults.ExportFormat, "export format: csv, json, or dual")
	pf.StringVar(&f.metricsAddr, "metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "enable verbose logging")
	cmd.Flags().IntVar(&f.limit, "limit", defaults.Limit, "maximum number of search results to fetch")

	cmd.AddCommand(newReportCmd(&f), newVersionCmd())
	return cmd
}

func newReportCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Re-plot the stored dataset without fetching",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, f)
			if err != nil {
				return err
			}
			return execute(cmd.Context(), cfg, true)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fictionbooks %s (commit: %s)\n", version, commit)
		},
	}
}

// resolveConfig layers defaults, the config file, BOOKS_* variables and
// explicitly set flags, in that order.
func resolveConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if f.configFile != "" {
		if err := cfg.LoadFile(f.configFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("limit") {
		cfg.Limit = f.limit
	}
	if changed("db") {
		cfg.DBPath = f.dbPath
	}
	if changed("table") {
		cfg.Table = f.table
	}
	if changed("chart") {
		cfg.ChartFile = f.chartFile
	}
	if changed("open") {
		cfg.OpenChart = f.openChart
	}
	if changed("export") {
		cfg.ExportFile = f.exportFile
	}
	if changed("format") {
		cfg.ExportFormat = strings.ToLower(f.exportFormat)
	}
	if changed("metrics-addr") {
		cfg.MetricsAddr = f.metricsAddr
	}
	if changed("verbose") {
		cfg.Verbose = f.verbose
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func execute(parent context.Context, cfg *config.Config, reportOnly bool) error {
	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	pipelineMetrics := pipeline.NewMetrics(registry)
	fetchMetrics := fetcher.NewMetrics(registry)

	if cfg.MetricsAddr != "" {
		srv := startMetricsServer(cfg.MetricsAddr, registry)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown failed", slog.Any("error", err))
			}
		}()
	}

	f, err := fetcher.New(cfg, fetchMetrics, logger)
	if err != nil {
		return fmt.Errorf("initialising fetcher: %w", err)
	}

	st, err := store.Open(cfg.DBPath, cfg.Table)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("close store", slog.Any("error", err))
		}
	}()

	renderer := report.New(report.Options{
		File:   cfg.ChartFile,
		Title:  report.DefaultTitle(cfg.Limit),
		DPI:    cfg.ChartDPI,
		Width:  cfg.ChartWidth,
		Height: cfg.ChartHeight,
		Open:   cfg.OpenChart,
		Logger: logger,
	})

	p := pipeline.NewPipeline(f, st, renderer, cfg.Limit).
		WithLogger(logger).
		WithMetrics(pipelineMetrics)

	if cfg.ExportFile != "" {
		writer, err := pipeline.NewOutputWriter(cfg.ExportFormat, cfg.ExportFile)
		if err != nil {
			return fmt.Errorf("creating writer: %w", err)
		}
		defer func() {
			if err := writer.Close(); err != nil {
				slog.Error("close writer", slog.Any("error", err))
			}
		}()
		p = p.WithExporter(writer)
	}

	var res *pipeline.Result
	if reportOnly {
		slog.Info("re-plotting stored dataset", slog.String("db", cfg.DBPath), slog.String("table", cfg.Table))
		res, err = p.Report(ctx)
	} else {
		slog.Info("starting run",
			slog.String("base_url", cfg.BaseURL),
			slog.String("subject", cfg.Subject),
			slog.Int("limit", cfg.Limit),
		)
		res, err = p.Run(ctx)
	}
	if err != nil {
		return err
	}

	printSummary(res, cfg.DBPath, st.Table(), cfg.ChartFile, cfg.ExportFile)
	return nil
}

func startMetricsServer(addr string, registry *prometheus.Registry) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))
	return srv
}
