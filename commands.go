package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ingest/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-ingest/pkg/config"
	"github.com/ekaya-inc/ekaya-ingest/pkg/database"
	"github.com/ekaya-inc/ekaya-ingest/pkg/handlers"
	"github.com/ekaya-inc/ekaya-ingest/pkg/logging"
	"github.com/ekaya-inc/ekaya-ingest/pkg/middleware"
	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
	"github.com/ekaya-inc/ekaya-ingest/pkg/repositories"
	"github.com/ekaya-inc/ekaya-ingest/pkg/retry"
	"github.com/ekaya-inc/ekaya-ingest/pkg/services"
)

type command func(ctx context.Context, configPath string, args []string, stdout io.Writer) error

var commands = map[string]command{
	"serve":   runServe,
	"migrate": runMigrate,
	"load":    runLoad,
	"clear":   runClear,
	"status":  runStatus,
	"report":  runReport,
}

// app holds the wired services for one process.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *database.DB
	redis  *redis.Client
	guard  *services.LoadGuard

	schema  services.SchemaService
	loader  services.LoaderService
	reports services.ReportService
}

func newApp(ctx context.Context, configPath string, overrides ...func(*config.Config)) (*app, error) {
	cfg, err := config.Load(Version, configPath)
	if err != nil {
		return nil, err
	}
	for _, o := range overrides {
		o(cfg)
	}

	logger, err := logging.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	delimiter, err := cfg.Ingest.DelimiterRune()
	if err != nil {
		return nil, err
	}

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxRetries = cfg.Database.ConnectRetries

	logger.Debug("Connecting to database",
		zap.String("url", logging.SanitizeConnectionString(cfg.Database.URL())))

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.URL(),
		MaxConnections: cfg.Database.MaxConnections,
		Retry:          retryCfg,
	}, logger)
	if err != nil {
		return nil, err
	}

	redisClient, err := database.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		// The cache is optional; reports still work without it.
		logger.Warn("Redis unavailable, report cache disabled", zap.Error(err))
		redisClient = nil
	}

	dataset := repositories.NewDatasetRepository(db)
	runs := repositories.NewLoadRunRepository(db)
	guard := services.NewLoadGuard()

	return &app{
		cfg:    cfg,
		logger: logger,
		db:     db,
		redis:  redisClient,
		guard:  guard,
		schema: services.NewSchemaService(db, dataset, guard, logger),
		loader: services.NewLoaderService(dataset, runs, guard, services.LoaderConfig{
			Delimiter:     delimiter,
			MaxRejections: cfg.Ingest.MaxRejections,
		}, logger),
		reports: services.NewReportService(
			repositories.NewReportRepository(db),
			runs,
			services.NewReportCache(redisClient, cfg.Redis.CacheTTL),
			logger,
		),
	}, nil
}

func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	a.db.Close()
	_ = a.logger.Sync()
}

// withApp wires the application, runs fn and tears it down.
func withApp(ctx context.Context, configPath string, fn func(*app) error, overrides ...func(*config.Config)) error {
	a, err := newApp(ctx, configPath, overrides...)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func runServe(ctx context.Context, configPath string, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withApp(ctx, configPath, func(a *app) error {
		if err := a.schema.DefineSchema(ctx); err != nil {
			return err
		}

		mux := http.NewServeMux()
		handlers.NewHealthHandler(a.cfg, a.db, a.logger).RegisterRoutes(mux)
		handlers.NewLoadHandler(a.loader, a.schema, a.cfg.Ingest.Sources(""), a.logger).RegisterRoutes(mux)
		handlers.NewReportHandler(a.reports, a.logger).RegisterRoutes(mux)

		server := &http.Server{
			Addr:              net.JoinHostPort(a.cfg.BindAddr, a.cfg.Port),
			Handler:           middleware.Chain(mux, middleware.Recoverer(a.logger), middleware.RequestLogger(a.logger)),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			a.logger.Info("Starting ekaya-ingest",
				zap.String("addr", server.Addr),
				zap.String("version", a.cfg.Version),
				zap.String("env", a.cfg.Env))
			errCh <- server.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server failed: %w", err)
		case <-ctx.Done():
		}

		a.logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}

		// A load started over HTTP still needs the pool to finish its run.
		if a.guard.Busy() {
			a.logger.Info("Waiting for the running load to finish")
		}
		if err := a.guard.Wait(shutdownCtx); err != nil {
			a.logger.Warn("Load still running at shutdown; its run stays in progress until cleared",
				zap.Error(err))
		}
		return nil
	})
}

func runMigrate(ctx context.Context, configPath string, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withApp(ctx, configPath, func(a *app) error {
		if err := a.schema.DefineSchema(ctx); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "Schema is up to date")
		return nil
	})
}

func runLoad(ctx context.Context, configPath string, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("load", flag.ContinueOnError)
	clearFirst := fs.Bool("clear", false, "Delete existing rows before loading")
	dir := fs.String("dir", "", "Directory holding the input files (default: ingest.data_dir)")
	delimiter := fs.String("delimiter", "", "Field delimiter (default: ingest.delimiter)")
	format := fs.String("format", string(formatTable), "Output format: table, json or yaml")
	if err := fs.Parse(args); err != nil {
		return err
	}

	out, err := parseFormat(*format)
	if err != nil {
		return err
	}

	if *delimiter != "" {
		if _, err := config.ParseDelimiter(*delimiter); err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrInvalidParameter, err)
		}
	}

	return withApp(ctx, configPath, func(a *app) error {
		if err := a.schema.DefineSchema(ctx); err != nil {
			return err
		}
		if *clearFirst {
			if err := a.schema.ClearAll(ctx); err != nil {
				return err
			}
		}

		report, loadErr := a.loader.LoadAll(ctx, a.cfg.Ingest.Sources(*dir))
		if report != nil {
			if err := writeOutput(stdout, out, report, func(w io.Writer) error {
				return renderLoadReport(w, report)
			}); err != nil {
				return err
			}
		}
		if loadErr != nil {
			return loadErr
		}
		if report.Status == models.LoadStatusFailed {
			return errLoadFailed
		}
		return nil
	}, func(cfg *config.Config) {
		if *delimiter != "" {
			cfg.Ingest.Delimiter = *delimiter
		}
	})
}

func runClear(ctx context.Context, configPath string, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("clear", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withApp(ctx, configPath, func(a *app) error {
		if err := a.schema.ClearAll(ctx); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "All relations cleared")
		return nil
	})
}

func runStatus(ctx context.Context, configPath string, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	format := fs.String("format", string(formatTable), "Output format: table, json or yaml")
	if err := fs.Parse(args); err != nil {
		return err
	}

	out, err := parseFormat(*format)
	if err != nil {
		return err
	}

	return withApp(ctx, configPath, func(a *app) error {
		run, err := a.loader.Status(ctx)
		if err != nil {
			return err
		}
		return writeOutput(stdout, out, run, func(w io.Writer) error {
			return renderLoadRun(w, run)
		})
	})
}

func runReport(ctx context.Context, configPath string, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: report name required (top-customers, top-categories, monthly-sales)", apperrors.ErrInvalidParameter)
	}
	name, args := args[0], args[1:]

	fs := flag.NewFlagSet("report "+name, flag.ContinueOnError)
	n := fs.Int("n", handlers.DefaultReportLimit, "Number of rows for ranking reports")
	format := fs.String("format", string(formatTable), "Output format: table, json or yaml")
	if err := fs.Parse(args); err != nil {
		return err
	}

	out, err := parseFormat(*format)
	if err != nil {
		return err
	}

	switch name {
	case "top-customers", "top-categories", "monthly-sales":
	default:
		return fmt.Errorf("%w: unknown report %q", apperrors.ErrInvalidParameter, name)
	}

	return withApp(ctx, configPath, func(a *app) error {
		switch name {
		case "top-customers":
			rows, err := a.reports.TopSpendingCustomers(ctx, *n)
			if err != nil {
				return err
			}
			return writeOutput(stdout, out, rows, func(w io.Writer) error {
				return renderTopCustomers(w, rows)
			})
		case "top-categories":
			rows, err := a.reports.TopSellingCategories(ctx, *n)
			if err != nil {
				return err
			}
			return writeOutput(stdout, out, rows, func(w io.Writer) error {
				return renderTopCategories(w, rows)
			})
		default:
			rows, err := a.reports.MonthlySalesPattern(ctx)
			if err != nil {
				return err
			}
			return writeOutput(stdout, out, rows, func(w io.Writer) error {
				return renderMonthlySales(w, rows)
			})
		}
	})
}
