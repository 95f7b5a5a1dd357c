package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/viper"

	"github.com/dreschagin/dlp-kpi-monitor/internal/application/port"
	"github.com/dreschagin/dlp-kpi-monitor/internal/application/usecase"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/repository"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/service"
	redisCache "github.com/dreschagin/dlp-kpi-monitor/internal/infrastructure/cache/redis"
	natsInfra "github.com/dreschagin/dlp-kpi-monitor/internal/infrastructure/messaging/nats"
	wsInfra "github.com/dreschagin/dlp-kpi-monitor/internal/infrastructure/notification/websocket"
	"github.com/dreschagin/dlp-kpi-monitor/internal/infrastructure/observability/cloudwatch"
	dynamodbRepo "github.com/dreschagin/dlp-kpi-monitor/internal/infrastructure/persistence/dynamodb"
	"github.com/dreschagin/dlp-kpi-monitor/internal/infrastructure/persistence/postgres"
	"github.com/dreschagin/dlp-kpi-monitor/internal/infrastructure/report"
	s3storage "github.com/dreschagin/dlp-kpi-monitor/internal/infrastructure/storage/s3"
	"github.com/dreschagin/dlp-kpi-monitor/internal/metrics"
	"github.com/dreschagin/dlp-kpi-monitor/pkg/config"
	"github.com/dreschagin/dlp-kpi-monitor/pkg/logger"
)

// appOptions selects the optional parts of the wiring.
type appOptions struct {
	// Sinks are written after every suite run in addition to the configured archive.
	Sinks []port.ReportSink
	// Serve adds the WebSocket hub and the Prometheus registry.
	Serve bool
}

// app holds the wired use cases and the adapters that must be closed on exit.
type app struct {
	cfg *config.Config
	log *logger.Logger

	catalog  *usecase.CheckCatalog
	runSuite *usecase.RunSuiteUseCase
	history  *usecase.GetRunHistoryUseCase
	reports  *usecase.ListReportsUseCase
	prune    *usecase.PruneHistoryUseCase

	db       *sql.DB
	cache    *redisCache.RedisCache
	hub      *wsInfra.Hub
	metrics  *metrics.Metrics
	registry *prometheus.Registry

	closers []func(context.Context) error
}

// loadConfig applies the --thresholds flag before reading the environment.
func loadConfig() (*config.Config, error) {
	if path := viper.GetString("thresholds"); path != "" {
		if err := os.Setenv("KPIMON_THRESHOLDS_FILE", path); err != nil {
			return nil, fmt.Errorf("set thresholds file: %w", err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newLogger writes to stderr so reports on stdout stay machine-readable.
func newLogger(cfg *config.Config, out io.Writer) *logger.Logger {
	level := cfg.Log.Level
	if v := viper.GetString("log-level"); v != "" {
		level = v
	}
	if viper.GetBool("debug") {
		level = "debug"
	}
	return logger.NewWithOptions(logger.Options{Level: level, Format: cfg.Log.Format, Output: out})
}

// newApp wires every adapter enabled in cfg. Optional adapters that fail to
// connect are logged and skipped; storage the user explicitly enabled is fatal.
func newApp(ctx context.Context, cfg *config.Config, log *logger.Logger, opts appOptions) (*app, error) {
	a := &app{cfg: cfg, log: log}

	// 1. CloudWatch Logs первым, чтобы остальная инициализация тоже уходила в хук
	if cfg.CloudWatch.Enabled && cfg.CloudWatch.LogGroup != "" {
		logs, err := cloudwatch.NewLogsPublisher(ctx, cloudwatch.LogsPublisherConfig{
			LogGroupName:    cfg.CloudWatch.LogGroup,
			LogStreamName:   cfg.CloudWatch.LogStream,
			Region:          cfg.CloudWatch.Region,
			Endpoint:        cfg.CloudWatch.Endpoint,
			AccessKeyID:     cfg.CloudWatch.AccessKeyID,
			SecretAccessKey: cfg.CloudWatch.SecretAccessKey,
			FlushInterval:   cfg.CloudWatch.FlushInterval,
			AutoCreate:      true,
			Source:          cfg.Host,
		})
		if err != nil {
			return nil, fmt.Errorf("cloudwatch logs: %w", err)
		}
		a.log = log.WithHook(logs.Hook())
		a.closers = append(a.closers, logs.Close)
		a.log.Info("CloudWatch logs publisher initialized", "group", cfg.CloudWatch.LogGroup)
	}
	log = a.log

	deps := usecase.RunSuiteDeps{Sinks: append([]port.ReportSink(nil), opts.Sinks...)}

	// 2. Redis
	var cache port.Cache
	if cfg.Redis.Enabled {
		c, err := redisCache.NewRedisCache(redisCache.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		})
		if err != nil {
			log.Warn("Failed to connect to Redis, continuing without cache", "error", err.Error())
		} else {
			a.cache = c
			cache = c
			deps.Cache = c
			a.closers = append(a.closers, func(context.Context) error { return c.Close() })
			log.Info("Redis cache initialized", "addr", cfg.Redis.Addr)
		}
	}

	// 3. PostgreSQL
	var runs repository.SuiteRunRepository
	if cfg.Database.Enabled {
		db, err := postgres.Open(ctx, cfg.Database.DSN(), cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
		if err != nil {
			a.close(ctx)
			return nil, err
		}
		db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
		db.SetConnMaxIdleTime(cfg.Database.ConnMaxIdleTime)
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			a.close(ctx)
			return nil, err
		}
		a.db = db
		a.closers = append(a.closers, func(context.Context) error { return db.Close() })

		pg := postgres.NewPostgresSuiteRunRepository(db, cfg.Host)
		runs = pg
		deps.Repository = pg
		log.Info("Database connected successfully", "host", cfg.Database.Host)
	}

	// 4. NATS
	if cfg.NATS.Enabled {
		pub, err := natsInfra.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.Stream, log)
		if err != nil {
			log.Warn("Failed to connect to NATS, continuing without event publishing", "error", err.Error())
		} else {
			deps.Events = pub
			a.closers = append(a.closers, func(context.Context) error { return pub.Close() })
			log.Info("NATS event publisher initialized", "url", cfg.NATS.URL)
		}
	}

	// 5. CloudWatch Metrics
	if cfg.CloudWatch.Enabled {
		pub, err := cloudwatch.NewMetricsPublisher(ctx, cloudwatch.MetricsPublisherConfig{
			Namespace:         cfg.CloudWatch.Namespace,
			Region:            cfg.CloudWatch.Region,
			Endpoint:          cfg.CloudWatch.Endpoint,
			AccessKeyID:       cfg.CloudWatch.AccessKeyID,
			SecretAccessKey:   cfg.CloudWatch.SecretAccessKey,
			DefaultDimensions: map[string]string{"Host": cfg.Host},
			FlushInterval:     cfg.CloudWatch.FlushInterval,
			StorageResolution: 60,
		}, log)
		if err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("cloudwatch metrics: %w", err)
		}
		deps.KPI = append(deps.KPI, pub)
		a.closers = append(a.closers, pub.Close)
		log.Info("CloudWatch metrics publisher initialized", "namespace", cfg.CloudWatch.Namespace)
	}

	// 6. Сервер: Prometheus и WebSocket
	if opts.Serve {
		a.registry = prometheus.NewRegistry()
		a.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		a.metrics = metrics.New(a.registry)
		deps.KPI = append(deps.KPI, a.metrics)

		a.hub = wsInfra.NewHub(log)
		deps.Notifier = a.hub
	}

	// 7. Архив отчетов в S3 с индексом в DynamoDB
	if cfg.S3.Enabled {
		if err := a.wireArchive(ctx, &deps); err != nil {
			a.close(ctx)
			return nil, err
		}
	}

	// 8. Источники данных проб
	sources, err := newProbeSources(cfg, cache, log)
	if err != nil {
		a.close(ctx)
		return nil, err
	}

	catalog, err := buildCatalog(cfg, sources)
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	a.catalog = catalog

	// 9. Use cases
	runCheck := usecase.NewRunCheckUseCase(
		service.NewSampler(service.WithProbeTimeout(cfg.Sampling.ProbeTimeout)),
		service.NewAggregator(),
		service.NewThresholdEvaluator(),
		usecase.RunCheckConfig{MaxTicks: cfg.Sampling.MaxTicks},
		log,
	)
	a.runSuite = usecase.NewRunSuiteUseCase(catalog, runCheck, deps, usecase.RunSuiteConfig{
		Host:               cfg.Host,
		DefaultParallelism: cfg.Sampling.Parallelism,
	}, log)

	if runs != nil {
		a.history = usecase.NewGetRunHistoryUseCase(runs, service.NewAggregator(), cache, cfg.Host, log)
		if cfg.Schedule.RetentionDays > 0 {
			a.prune = usecase.NewPruneHistoryUseCase(runs, time.Duration(cfg.Schedule.RetentionDays)*24*time.Hour, log)
		}
	}

	return a, nil
}

func (a *app) wireArchive(ctx context.Context, deps *usecase.RunSuiteDeps) error {
	cfg := a.cfg
	storage, err := s3storage.NewReportStorage(ctx, s3storage.Config{
		Bucket:          cfg.S3.Bucket,
		Region:          cfg.S3.Region,
		Endpoint:        cfg.S3.Endpoint,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
		UsePathStyle:    cfg.S3.UsePathStyle,
		URLMode:         s3storage.URLMode(strings.ToLower(cfg.S3.URLMode)),
		PresignedTTL:    cfg.S3.PresignedTTL,
	})
	if err != nil {
		return fmt.Errorf("report storage: %w", err)
	}

	var index port.ReportIndexRepository
	if cfg.DynamoDB.Enabled {
		repo, err := dynamodbRepo.NewReportIndexRepository(ctx, dynamodbRepo.Config{
			TableName:       cfg.DynamoDB.TableName,
			Region:          cfg.DynamoDB.Region,
			Endpoint:        cfg.DynamoDB.Endpoint,
			AccessKeyID:     cfg.DynamoDB.AccessKeyID,
			SecretAccessKey: cfg.DynamoDB.SecretAccessKey,
		})
		if err != nil {
			return fmt.Errorf("report index: %w", err)
		}
		index = repo
		a.log.Info("Report index initialized", "provider", "dynamodb", "table", cfg.DynamoDB.TableName)
	} else {
		a.log.Warn("DynamoDB report index is disabled, using S3 listing mode")
	}

	archive := usecase.NewArchiveReportUseCase(storage, index, []port.ReportEncoder{
		report.NewCSVEncoder(cfg.Host),
		report.NewJSONEncoder(cfg.Host, false),
	}, usecase.ArchiveReportConfig{
		Host:      cfg.Host,
		KeyPrefix: cfg.S3.KeyPrefix,
		TTLDays:   cfg.DynamoDB.TTLDays,
	}, a.log)
	deps.Sinks = append(deps.Sinks, archive)

	a.reports = usecase.NewListReportsUseCase(storage, index, usecase.ListReportsConfig{
		KeyPrefix:           cfg.S3.KeyPrefix,
		FallbackToS3OnError: true,
	}, a.log)
	a.log.Info("Report archive initialized", "bucket", cfg.S3.Bucket)
	return nil
}

// close releases adapters in reverse order of creation.
func (a *app) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.log.Error("Failed to close adapter", err)
		}
	}
	a.closers = nil
	_ = a.log.Sync()
}
