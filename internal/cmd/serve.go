package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/dreschagin/dlp-kpi-monitor/internal/application/port"
	"github.com/dreschagin/dlp-kpi-monitor/internal/application/usecase"
	"github.com/dreschagin/dlp-kpi-monitor/internal/infrastructure/report"
	httpInterface "github.com/dreschagin/dlp-kpi-monitor/internal/interfaces/http"
	"github.com/dreschagin/dlp-kpi-monitor/internal/interfaces/http/handler"
	"github.com/dreschagin/dlp-kpi-monitor/internal/interfaces/http/middleware"
	"github.com/dreschagin/dlp-kpi-monitor/internal/scheduler"
)

var serveFlags struct {
	mode      string
	port      string
	noInitial bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run suites on a schedule and serve the dashboard and API",
	Long: `Run the configured mode every SCHEDULE_INTERVAL and serve:

  /            dashboard
  /ws          live check results
  /api/v1/...  runs, checks and archived reports
  /metrics     Prometheus exposition
  /healthz     liveness
  /readyz      readiness`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	// 1. Загружаем конфигурацию
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveFlags.port != "" {
		cfg.Server.Port = serveFlags.port
	}
	mode := cfg.Sampling.DefaultMode
	if serveFlags.mode != "" {
		mode = serveFlags.mode
	}

	// 2. Инициализируем logger
	log := newLogger(cfg, cmd.ErrOrStderr())
	log.Info("Starting DLP KPI monitor", "host", cfg.Host, "mode", mode)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	// parent is already bound to SIGINT/SIGTERM by Execute
	ctx, stop := context.WithCancel(parent)
	defer stop()

	// 3. Dependency Injection
	var sinks []port.ReportSink
	if cfg.Export.CSVPath != "" {
		sinks = append(sinks, report.NewCSVFileSink(cfg.Export.CSVPath, report.NewCSVEncoder(cfg.Host)))
	}
	a, err := newApp(ctx, cfg, log, appOptions{Sinks: sinks, Serve: true})
	if err != nil {
		return err
	}
	log = a.log

	// 4. Планировщик
	runner := scheduler.NewRunner(a.runSuite, usecase.RunSuiteCommand{Mode: mode}, scheduler.Config{
		Interval:   cfg.Schedule.Interval,
		RunTimeout: cfg.Schedule.RunTimeout,
		RunOnStart: !serveFlags.noInitial,
	}, log)
	if a.prune != nil {
		runner = runner.WithPruner(a.prune)
	}

	// 5. HTTP handlers
	var history handler.RunHistoryReader
	if a.history != nil {
		history = a.history
	}
	readiness := map[string]handler.ReadinessCheck{}
	if a.db != nil {
		readiness["postgres"] = a.db.PingContext
	}
	if a.cache != nil {
		readiness["redis"] = a.cache.Ping
	}

	handlers := httpInterface.Handlers{
		Dashboard: handler.NewDashboardHandler(history, a.catalog, runner, cfg.Host, log),
		Health:    handler.NewHealthHandler(runner, readiness),
		Runs:      handler.NewRunsAPIHandler(history, runner, cfg.Host, 0, log),
		Checks:    handler.NewChecksAPIHandler(a.catalog),
		WebSocket: handler.NewWebSocketHandler(a.hub, a.catalog, history, cfg.Security.AllowedOrigins, middleware.AuthConfig{
			Enabled:     cfg.Security.AuthEnabled,
			BearerToken: cfg.Security.AuthToken,
		}, log),
	}
	if a.reports != nil {
		handlers.Reports = handler.NewReportsAPIHandler(a.reports, cfg.Host, log)
	}
	router := httpInterface.NewRouter(handlers, cfg.Security, a.metrics, a.registry, log)

	// 6. Фоновые процессы
	go a.hub.Run(ctx)
	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		runner.Start(ctx)
	}()

	cleanupDone := make(chan struct{})
	go router.Limiter().RunCleanup(cleanupDone)
	defer close(cleanupDone)

	// 7. HTTP сервер
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// 8. Ожидаем сигнал для graceful shutdown
	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received, starting graceful shutdown...")
	case err := <-serverErr:
		if err != nil {
			runErr = fmt.Errorf("http server: %w", err)
			log.Error("HTTP server failed", err)
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", err)
	}
	// Прогон по расписанию или из /api/v1/runs/run еще пишет в хранилища
	select {
	case <-schedulerDone:
	case <-shutdownCtx.Done():
	}
	if err := runner.Wait(shutdownCtx); err != nil {
		log.Warn("Closing adapters with a suite in flight", "error", err.Error())
	}
	// Закрытие адаптеров сбрасывает буферы CloudWatch
	a.close(shutdownCtx)

	log.Info("Server stopped gracefully")
	return runErr
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.mode, "mode", "m", "", "scheduled mode (default: KPIMON_DEFAULT_MODE)")
	serveCmd.Flags().StringVarP(&serveFlags.port, "port", "p", "", "HTTP port (default: SERVER_PORT)")
	serveCmd.Flags().BoolVar(&serveFlags.noInitial, "no-initial-run", false, "wait one interval before the first run")
}
