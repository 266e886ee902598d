package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/sepa/internal/api"
	"github.com/wonny/sepa/internal/api/handlers"
	"github.com/wonny/sepa/internal/scheduler"
	"github.com/wonny/sepa/internal/scheduler/jobs"
	"github.com/wonny/sepa/pkg/config"
	"github.com/wonny/sepa/pkg/logger"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the screener service",
	Long: `Start the screener as a long-running service.

This command:
- schedules the daily screen job (SCAN_SCHEDULE, SCAN_TIMEZONE)
- starts the HTTP trigger/status server
- optionally runs one scan immediately (SCAN_ON_START)

Endpoints:
  GET  /health            - Health check
  POST /api/scan          - Trigger a scan now
  GET  /api/scan/status   - Engine state and last run summary
  GET  /api/jobs          - Scheduler statistics

Example:
  go run ./cmd/sepa serve
  go run ./cmd/sepa serve --port 8080`,
	RunE: runServe,
}

var servePort string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&servePort, "port", "", "HTTP server port (overrides PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if servePort != "" {
		cfg.Port = servePort
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	log.WithFields(map[string]interface{}{
		"port":     cfg.Port,
		"markets":  cfg.Scan.Markets,
		"schedule": cfg.Scan.Schedule,
		"timezone": cfg.Scan.Timezone,
	}).Info("Initializing screener service")

	// 3. Build the screening pipeline
	engine, notifier := buildEngine(cfg, log)
	if !notifier.Configured() {
		log.Warn("WhatsApp credentials missing, reports will only be logged")
	}

	// 4. Schedule the daily job
	loc := cfg.Location()
	screenJob := jobs.NewScreenJob(engine, notifier, cfg.Scan.Schedule, loc, log)
	engine.SetProgressFunc(screenJob.Progress(context.Background()))

	sched := scheduler.New(log, loc)
	if err := sched.AddJob(screenJob); err != nil {
		return fmt.Errorf("schedule screen job: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	// 5. Optional run on startup
	if cfg.Scan.OnStart {
		if err := sched.RunJob(screenJob.Name()); err != nil {
			log.WithError(err).Warn("Startup scan could not be triggered")
		}
	}

	// 6. HTTP trigger/status server
	scanHandler := handlers.NewScanHandler(engine, sched, log)
	router := api.NewRouter(scanHandler, log)
	server := api.New(cfg, log, router)

	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	log.Info("Screener service started")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Service stopped")
	return nil
}
