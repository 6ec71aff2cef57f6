// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/danielhkuo/mrpcast/cache"
	"github.com/danielhkuo/mrpcast/cliparse"
	"github.com/danielhkuo/mrpcast/db"
	"github.com/danielhkuo/mrpcast/metrics"
	"github.com/danielhkuo/mrpcast/middleware"
	"github.com/danielhkuo/mrpcast/model"
	"github.com/danielhkuo/mrpcast/pipeline"
	"github.com/danielhkuo/mrpcast/report"
	"github.com/danielhkuo/mrpcast/router"
	"github.com/danielhkuo/mrpcast/sampler"
	"github.com/danielhkuo/mrpcast/store"
)

func main() {
	// Parse configuration (.env, then environment; flags override below)
	cfg, err := cliparse.Load(".env")
	if err != nil {
		slog.Error("Error loading configuration", "error", err)
		os.Exit(1)
	}

	if err := newRootCmd(&cfg).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(cfg *cliparse.Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "mrpcast",
		Short:         "Constituency vote share estimates by multilevel regression and post-stratification",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(cfg.LogLevel, cfg.LogFormat)
		},
	}
	root.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")
	root.PersistentFlags().StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: text or json")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Fit the model, post-stratify and print a report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := runPipeline(cmd, *cfg)
			if err != nil {
				slog.Error("run failed", "error", err)
			}
			return err
		},
	}
	cliparse.BindRunFlags(runCmd, cfg)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored runs over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := serve(*cfg)
			if err != nil {
				slog.Error("server failed", "error", err)
			}
			return err
		},
	}
	cliparse.BindServeFlags(serveCmd, cfg)

	root.AddCommand(runCmd, serveCmd)
	return root
}

func setupLogging(level, format string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	switch strings.ToLower(format) {
	case "", "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("invalid log format %q", format)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

func runPipeline(cmd *cobra.Command, cfg cliparse.Config) error {
	if err := cfg.Validate(cliparse.ModeRun); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	set, err := pipeline.SettingsFromConfig(cfg)
	if err != nil {
		return err
	}
	in, err := pipeline.LoadInputs(cfg)
	if err != nil {
		return err
	}

	var engine model.Engine = sampler.NewMetropolis()
	if len(cfg.DrawFiles) > 0 {
		engine = sampler.NewCSVEngine(cfg.DrawFiles...)
		slog.Info("replaying external draws", "files", len(cfg.DrawFiles))
	}

	deps := pipeline.Deps{
		Engine:     engine,
		Metrics:    metrics.New(prometheus.NewRegistry()),
		RunKeySalt: cfg.RunKeySalt,
	}

	// Runs are only persisted when a database is configured
	if cfg.DatabaseURL != "" {
		dbConn, err := openDatabase(ctx, cfg)
		if err != nil {
			return err
		}
		defer dbConn.Close()
		deps.Store = store.New(dbConn)
	}

	results, err := pipeline.Run(ctx, deps, in, set)
	out := cmd.OutOrStdout()
	for _, res := range results {
		if werr := report.Write(out, res.Snapshot, report.Options{}); werr != nil {
			return werr
		}
		if res.RunKey != "" {
			fmt.Fprintf(out, "Run key: %s\n", res.RunKey)
		}
		fmt.Fprintln(out)
	}
	return err
}

func openDatabase(ctx context.Context, cfg cliparse.Config) (*sql.DB, error) {
	dbConn, err := db.Open(ctx, cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	// Create schema (tables)
	if err := db.CreateSchema(dbConn); err != nil {
		dbConn.Close()
		return nil, fmt.Errorf("schema creation failed: %w", err)
	}
	slog.Info("Database schema ready", "type", cfg.DatabaseType)
	return dbConn, nil
}

func serve(cfg cliparse.Config) error {
	if err := cfg.Validate(cliparse.ModeServe); err != nil {
		return err
	}

	ctx := context.Background()
	dbConn, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	var runCache cache.RunCache = cache.Noop{}
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedis(ctx, cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			return err
		}
		defer rc.Close()
		runCache = rc
		slog.Info("Snapshot cache enabled", "ttl", cfg.CacheTTL)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Create router
	mux := router.NewRouter(dbConn, cfg, runCache, metrics.New(reg), reg)

	// Create server
	server := http.Server{
		Handler:           middleware.CORS(mux),
		Addr:              ":" + strconv.Itoa(cfg.Port),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// signal.Notify requires the channel to be buffered
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		// Wait for Ctrl-C signal
		<-ctrlc
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	// Start server
	slog.Info("Listening", "port", cfg.Port)
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	slog.Info("Server closed")
	return nil
}
