package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/leanfinance/onboarding-service/internal/config"
	"github.com/leanfinance/onboarding-service/internal/drive"
	"github.com/leanfinance/onboarding-service/internal/healthcheck"
	"github.com/leanfinance/onboarding-service/internal/holded"
	"github.com/leanfinance/onboarding-service/internal/hubspot"
	"github.com/leanfinance/onboarding-service/internal/mailer"
	"github.com/leanfinance/onboarding-service/internal/observer"
	"github.com/leanfinance/onboarding-service/internal/pipeline"
	"github.com/leanfinance/onboarding-service/internal/sheets"
	"github.com/leanfinance/onboarding-service/internal/slack"
	"github.com/leanfinance/onboarding-service/internal/storage"
	"github.com/leanfinance/onboarding-service/internal/usecase"
	"github.com/leanfinance/onboarding-service/pkg/logger"
	"github.com/leanfinance/onboarding-service/pkg/utils"
)

// scheduleTimezone anchors the cron schedules to the business's local time.
const scheduleTimezone = "Europe/Madrid"

func main() {
	// Set timezone to UTC for everything except the cron schedules
	time.Local = time.UTC

	runOnce := flag.Bool("now", false, "run a single polling cycle immediately and exit")
	flag.Parse()

	// Optional .env for local development; real deployments use env vars
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	metricsEnabled := cfg.Metrics.Enabled
	observer.InitMetrics(metricsEnabled)

	logger.Log.Info("Starting LeanFinance onboarding service",
		zap.String("environment", cfg.Environment),
		zap.Strings("schedules", cfg.Polling.Schedules),
		zap.Int("lookback_days", cfg.Polling.LookbackDays),
	)

	// Initialize the repository
	repo, err := initPostgresRepo(cfg.Database.PostgresDSN, cfg.Database.PostgresAutoMigrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize Postgres repository", zap.Error(err))
	}

	// External API clients
	hubspotClient := hubspot.NewClient(cfg.HubSpot)
	holdedClient := holded.NewClient(cfg.Holded)
	driveClient := drive.NewClient(cfg.Drive)
	slackClient := slack.NewClient(cfg.Slack)
	sheetsClient := sheets.NewClient(cfg.Sheets)
	mailSender := mailer.NewSMTPSender(cfg.SMTP)

	// Use cases
	mapper := usecase.NewServiceMapper(sheetsClient)
	detector := usecase.NewDealDetector(hubspotClient, repo, cfg.Polling.LookbackDays)
	engine := pipeline.NewEngine(repo)
	clients := pipeline.Clients{
		Drive:               driveClient,
		Holded:              holdedClient,
		Slack:               slackClient,
		Mail:                mailSender,
		HubSpot:             hubspotClient,
		DriveParentFolderID: cfg.Drive.ParentFolderID,
	}
	manager := usecase.NewOnboardingManager(repo, mapper, engine, slackClient, clients, cfg.HubSpot.PortalID)
	cycle := usecase.NewPollingCycle(detector, manager, repo, mailSender, cfg.Admin.Email)

	// One-shot mode: run a single cycle and exit with its outcome
	if *runOnce {
		logger.Log.Info("Running a single polling cycle (--now)")
		if err := cycle.Run(context.Background()); err != nil {
			cycle.NotifyCriticalError(context.Background(), err, "")
			logger.Log.Fatal("Polling cycle failed", zap.Error(err))
		}
		if err := repo.Close(context.Background()); err != nil {
			logger.Log.Error("Failed to close database connection", zap.Error(err))
		}
		return
	}

	// Create health check server
	healthServer := healthcheck.NewServer(strconv.Itoa(cfg.Server.Port), logger.Log)
	healthServer.RegisterReadinessCheck("database", repo.Ping)

	// Register metrics handler if enabled BEFORE starting the server
	if metricsEnabled {
		healthServer.RegisterMetricsHandler(promhttp.Handler())
		logger.Log.Info("Metrics endpoint enabled", zap.String("path", "/metrics"), zap.Int("port", cfg.Server.Port))
	} else {
		logger.Log.Info("Metrics endpoint disabled for environment", zap.String("environment", cfg.Environment))
	}

	healthServer.Start()

	logger.Log.Info("Health check endpoints available",
		zap.String("health", fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port)),
		zap.String("readiness", fmt.Sprintf("http://localhost:%d/ready", cfg.Server.Port)),
	)

	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	scheduler, err := startScheduler(mainCtx, cfg.Polling.Schedules, cycle)
	if err != nil {
		logger.Log.Fatal("Failed to start scheduler", zap.Error(err))
	}

	// Wait for termination signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Log.Info("Received termination signal", zap.String("signal", sig.String()))

	mainCancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Log.Info("Starting graceful shutdown", zap.Duration("timeout", 30*time.Second))

	var wg sync.WaitGroup
	wg.Add(3)

	// Stop the scheduler and wait for a running cycle to finish
	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping scheduler")
		start := time.Now()
		stopped := scheduler.Stop()
		select {
		case <-stopped.Done():
			logger.Log.Info("[shutdown] Scheduler stopped",
				zap.Duration("duration", time.Since(start)))
		case <-shutdownCtx.Done():
			logger.Log.Warn("[shutdown] Scheduler stop timed out with a cycle in flight")
		}
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping scheduler",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
		wg.Done()
	})

	// Shutdown health check server (includes metrics if enabled)
	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping health check server")
		start := time.Now()
		if err := healthServer.Stop(shutdownCtx); err != nil {
			logger.Log.Error("[shutdown] Error stopping health check server", zap.Error(err))
		} else {
			logger.Log.Info("[shutdown] Health check server stopped",
				zap.Duration("duration", time.Since(start)))
		}
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping health check server",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
		wg.Done()
	})

	// Close the database connection
	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Closing PostgreSQL connection")
		start := time.Now()
		if err := repo.Close(shutdownCtx); err != nil {
			logger.Log.Error("[shutdown] Failed to close PostgreSQL connection", zap.Error(err))
		} else {
			logger.Log.Info("[shutdown] PostgreSQL connection closed",
				zap.Duration("duration", time.Since(start)))
		}
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while closing database connection",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
		wg.Done()
	})

	// Wait with a timeout for all components to shut down
	waitCh := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Log.Info("[shutdown] All components stopped gracefully")
	case <-shutdownCtx.Done():
		logger.Log.Warn("[shutdown] Graceful shutdown timed out, forcing exit")
	}

	logger.Log.Info("LeanFinance onboarding service shutdown complete")
}

// initPostgresRepo initializes the PostgreSQL repository.
func initPostgresRepo(dsn string, autoMigrate bool) (*storage.PostgresRepo, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	repo, err := storage.NewPostgresRepo(dsn, autoMigrate)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres repository: %w", err)
	}

	logger.Log.Info("Initialized PostgreSQL repository")
	return repo, nil
}

// startScheduler registers one cron entry per configured schedule, all in the
// business timezone. A mutex skips a tick when the previous cycle is still
// running; a cycle error alerts the admin but never kills the process.
func startScheduler(ctx context.Context, schedules []string, cycle *usecase.PollingCycle) (*cron.Cron, error) {
	location, err := time.LoadLocation(scheduleTimezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %s: %w", scheduleTimezone, err)
	}

	scheduler := cron.New(cron.WithLocation(location))

	var running sync.Mutex
	runCycle := func() {
		if !running.TryLock() {
			logger.Log.Warn("Previous polling cycle still running, skipping this tick")
			return
		}
		defer running.Unlock()

		if err := cycle.Run(ctx); err != nil {
			logger.Log.Error("Polling cycle failed", zap.Error(err))
			cycle.NotifyCriticalError(ctx, err, "")
		}
	}

	for _, schedule := range schedules {
		if _, err := scheduler.AddFunc(schedule, runCycle); err != nil {
			return nil, fmt.Errorf("invalid polling schedule %q: %w", schedule, err)
		}
		logger.Log.Info("Polling schedule registered",
			zap.String("schedule", schedule),
			zap.String("timezone", scheduleTimezone))
	}

	scheduler.Start()
	return scheduler, nil
}
