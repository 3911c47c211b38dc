package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dd0wney/cluso-sybilrank/pkg/config"
	"github.com/dd0wney/cluso-sybilrank/pkg/export"
	"github.com/dd0wney/cluso-sybilrank/pkg/logging"
	"github.com/dd0wney/cluso-sybilrank/pkg/metrics"
	"github.com/dd0wney/cluso-sybilrank/pkg/pipeline"
	"github.com/dd0wney/cluso-sybilrank/pkg/ranker"
	"github.com/dd0wney/cluso-sybilrank/pkg/render"
	"github.com/dd0wney/cluso-sybilrank/pkg/store"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	dsn := flag.String("dsn", "", "Database URL (overrides config)")
	renderOut := flag.String("render", "", "Render HTML visualizations into this directory")
	flag.Parse()

	if err := run(*configPath, *dsn, *renderOut); err != nil {
		fmt.Fprintf(os.Stderr, "sybilrank: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, dsn, renderOut string) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if dsn != "" {
		cfg.Store.Driver = "postgres"
		cfg.Store.DSN = dsn
	}
	if renderOut != "" {
		cfg.Render.Enabled = true
		cfg.Render.OutDir = renderOut
	}

	level := logging.InfoLevel
	if cfg.LogLevel != "" {
		level = logging.ParseLevel(cfg.LogLevel)
	}
	logger := logging.NewJSONLogger(os.Stderr, level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	pipelineCfg := pipeline.Config{
		Store:  st,
		Oracle: ranker.NewSybilRank(),
		RankOptions: ranker.Options{
			Iterations:    cfg.Oracle.Iterations,
			MaxIterations: cfg.Oracle.MaxIterations,
			Tolerance:     cfg.Oracle.Tolerance,
		},
		Logger:  logger,
		Metrics: metrics.DefaultRegistry(),
	}
	if cfg.Render.Enabled {
		pipelineCfg.Renderer = render.NewHTMLRenderer(cfg.Render.OutDir, render.DefaultLayoutConfig())
	}
	if cfg.Export.Enabled {
		sink, err := openSink(ctx, cfg)
		if err != nil {
			return err
		}
		pipelineCfg.Exporter = export.NewSnapshotExporter(sink, logger)
	}

	report, err := pipeline.New(pipelineCfg).Run(ctx)
	if report != nil {
		fmt.Println(report.Summary())
	}

	// A partial persistence failure still produced a report; surface it as
	// a non-zero exit after printing what was committed.
	var perr *pipeline.PersistenceError
	if errors.As(err, &perr) {
		return perr
	}
	return err
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgresStore(ctx, cfg.Store.DSN)
	case "memory":
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func openSink(ctx context.Context, cfg *config.Config) (export.Sink, error) {
	if cfg.Export.S3.Bucket != "" {
		return export.NewS3Sink(ctx, export.S3Config{
			Region:          cfg.Export.S3.Region,
			Bucket:          cfg.Export.S3.Bucket,
			Endpoint:        cfg.Export.S3.Endpoint,
			AccessKeyID:     cfg.Export.S3.AccessKeyID,
			SecretAccessKey: cfg.Export.S3.SecretAccessKey,
			PathStyle:       cfg.Export.S3.PathStyle,
			Prefix:          cfg.Export.S3.Prefix,
		})
	}
	return &export.FileSink{Dir: cfg.Export.Dir}, nil
}
