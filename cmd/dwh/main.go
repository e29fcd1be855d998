// Command dwh runs the warehouse pipeline: transform raw extracts into the
// validated tables, scan the validated tables for quality issues, or both.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/config"
	"github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/dq"
	"github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/metrics"
	"github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/metrics/datadog"
	"github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/rawcsv"
	"github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/storage"
	"github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/transform"
	"github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/warehouse"

	// Registered storage backends.
	_ "github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/storage/mssql"
	_ "github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/storage/postgres"
	_ "github.com/onurkisa/eurozone-ecommerce-sql-data-warehouse/internal/storage/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:           "dwh",
		Short:         "E-commerce warehouse pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a YAML config file")

	root.AddCommand(
		newTransformCmd(&cfgPath),
		newScanCmd(&cfgPath),
		newRunCmd(&cfgPath),
	)
	return root
}

func newTransformCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "transform",
		Short: "Rebuild the validated tables from the raw extracts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := setup(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer rt.close()
			return rt.transform(cmd.Context())
		},
	}
}

func newScanCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Rebuild the issue sink from the validated tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := setup(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer rt.close()
			return rt.scan(cmd.Context())
		},
	}
}

func newRunCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Transform, then scan",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := setup(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer rt.close()
			if err := rt.transform(cmd.Context()); err != nil {
				return err
			}
			return rt.scan(cmd.Context())
		},
	}
}

// runtime holds the wired collaborators for one invocation.
type runtime struct {
	cfg     *config.Config
	repo    storage.Repository
	raw     transform.RawSource
	logger  *log.Logger
	metrics metrics.Backend

	closeMetrics func() error
}

func setup(ctx context.Context, cfgPath string) (*runtime, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	repo, err := storage.New(ctx, storage.Config{Kind: cfg.Storage.Kind, DSN: cfg.Storage.DSN})
	if err != nil {
		return nil, err
	}

	var raw transform.RawSource
	switch cfg.Raw.Mode {
	case "csv":
		raw = &rawcsv.Source{Dir: cfg.Raw.Dir}
	case "table":
		raw = &storage.TableSource{Repo: repo}
	}

	rt := &runtime{
		cfg:     cfg,
		repo:    repo,
		raw:     raw,
		logger:  log.New(os.Stderr, "", log.LstdFlags),
		metrics: metrics.Nop{},
	}

	if cfg.Metrics.Enabled {
		backend, err := datadog.NewBackend(ctx, datadog.Options{
			JobName:    cfg.Metrics.JobName,
			Tags:       datadog.ParseTagsCSV(cfg.Metrics.Tags),
			FlushEvery: cfg.Metrics.FlushEvery,
		})
		if err != nil {
			repo.Close()
			return nil, fmt.Errorf("datadog metrics init: %w", err)
		}
		rt.metrics = backend
		rt.closeMetrics = backend.Close
	}
	return rt, nil
}

func (rt *runtime) close() {
	if rt.closeMetrics != nil {
		if err := rt.closeMetrics(); err != nil {
			rt.logger.Printf("stage=metrics_close error=%v", err)
		}
	}
	rt.repo.Close()
}

func (rt *runtime) transform(ctx context.Context) error {
	engine, err := transform.New(transform.Options{
		Repo:        rt.repo,
		Raw:         rt.raw,
		Specs:       warehouse.Specs(),
		Logger:      rt.logger,
		Metrics:     rt.metrics,
		Parallelism: rt.cfg.Runtime.Workers,
	})
	if err != nil {
		return err
	}
	_, err = engine.Run(ctx)
	return err
}

func (rt *runtime) scan(ctx context.Context) error {
	tables := make([]storage.TableSpec, 0, len(warehouse.Specs()))
	for _, s := range warehouse.Specs() {
		tables = append(tables, s.Table)
	}
	scanner, err := dq.NewScanner(dq.Options{
		Repo:        rt.repo,
		Tables:      tables,
		IssueTable:  warehouse.IssueTable(),
		Checks:      dq.Catalog(),
		Logger:      rt.logger,
		Metrics:     rt.metrics,
		Parallelism: rt.cfg.Runtime.Workers,
	})
	if err != nil {
		return err
	}
	_, err = scanner.Run(ctx)
	return err
}
